package image

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rstms/akaifat"
	"github.com/rstms/akaifat/fat"
	"github.com/stretchr/testify/require"
)

func writeHostFile(t *testing.T, filename, content string) string {
	err := os.MkdirAll(filepath.Dir(filename), 0700)
	require.Nil(t, err)
	err = os.WriteFile(filename, []byte(content), 0600)
	require.Nil(t, err)
	return filename
}

func testFiles(t *testing.T, dir string) []string {
	return []string{
		writeHostFile(t, filepath.Join(dir, "foo"), "foo data"),
		writeHostFile(t, filepath.Join(dir, "bar"), "bar data bar data"),
		writeHostFile(t, filepath.Join(dir, "baz"), "baz"),
	}
}

func recordNames(records []FileRecord) []string {
	names := []string{}
	for _, record := range records {
		names = append(names, record.Name)
	}
	return names
}

func TestImageAddFiles(t *testing.T) {
	dir := t.TempDir()
	dstFile := filepath.Join(dir, "dst.img")
	i, err := CreateImage(dstFile, "add", "ffs", 12, 1440*1024)
	require.Nil(t, err)
	for _, file := range testFiles(t, dir) {
		_, name := filepath.Split(file)
		err := i.AddFile(name, file)
		require.Nil(t, err)
	}

	err = i.Mkdir("files")
	require.Nil(t, err)

	newFile := writeHostFile(t, filepath.Join(dir, "howdy"), "howdy howdy howdy")
	err = i.AddFile(filepath.Join("files", "howdy"), newFile)
	require.Nil(t, err)

	err = i.Close()
	require.Nil(t, err)

	i, err = OpenImage(dstFile)
	require.Nil(t, err)
	defer i.Close()
	records, err := i.ScanFiles()
	require.Nil(t, err)
	require.Equal(t, []string{"/foo", "/bar", "/baz", "/files", "/files/howdy"}, recordNames(records))
	require.Equal(t, int64(len("howdy howdy howdy")), records[4].Size)
	require.True(t, records[3].Dir)

	data, err := i.ReadFile("/files/howdy")
	require.Nil(t, err)
	require.Equal(t, "howdy howdy howdy", string(data))

	label, err := i.VolumeLabel()
	require.Nil(t, err)
	require.Equal(t, "add", label)
	oem, err := i.OEMName()
	require.Nil(t, err)
	require.Equal(t, "ffs", oem)
}

func TestImageWriteFileReplaces(t *testing.T) {
	dstFile := filepath.Join(t.TempDir(), "dst.img")
	i, err := CreateImage(dstFile, "", "", 12, 1440*1024)
	require.Nil(t, err)
	defer i.Close()

	err = i.WriteFile("notes.txt", make([]byte, 5000))
	require.Nil(t, err)
	err = i.WriteFile("notes.txt", []byte("short"))
	require.Nil(t, err)
	data, err := i.ReadFile("NOTES.TXT")
	require.Nil(t, err)
	require.Equal(t, "short", string(data))

	err = i.Mkdir("dir")
	require.Nil(t, err)
	err = i.WriteFile("dir", []byte("x"))
	require.Error(t, err)
	_, err = i.ReadFile("dir")
	require.Error(t, err)
}

func TestImageIsDir(t *testing.T) {
	srcFile := filepath.Join(t.TempDir(), "src.img")
	i, err := CreateImage(srcFile, "isdir", "ffs", 12, 1440*1024)
	require.Nil(t, err)
	defer i.Close()
	require.Nil(t, i.Mkdir("EFI"))
	require.Nil(t, i.Mkdir("EFI/BOOT"))
	require.Nil(t, i.WriteFile("syslinux.cfg", []byte("default menu")))
	require.Nil(t, i.WriteFile("IPXE", []byte{0x55, 0xAA}))

	ret, err := i.IsDir("/")
	require.Nil(t, err)
	require.True(t, ret)

	ret, err = i.IsDir("/foo")
	require.Nil(t, err)
	require.False(t, ret)

	ret, err = i.IsDir("foo/bar/baz")
	require.Nil(t, err)
	require.False(t, ret)

	ret, err = i.IsDir("syslinux.cfg")
	require.Nil(t, err)
	require.False(t, ret)

	ret, err = i.IsDir("IPXE")
	require.Nil(t, err)
	require.False(t, ret)

	ret, err = i.IsDir("efi")
	require.Nil(t, err)
	require.True(t, ret)

	ret, err = i.IsDir("EFI/foo")
	require.Nil(t, err)
	require.False(t, ret)

	ret, err = i.IsDir("/EFI/BOOT/")
	require.Nil(t, err)
	require.True(t, ret)

	ret, err = i.IsDir("EFI/BOOT/GROOT")
	require.Nil(t, err)
	require.False(t, ret)

	exists, err := i.Exists("syslinux.cfg")
	require.Nil(t, err)
	require.True(t, exists)
	exists, err = i.Exists("EFI/nothing")
	require.Nil(t, err)
	require.False(t, exists)
}

func TestImageMkdir(t *testing.T) {
	dstFile := filepath.Join(t.TempDir(), "dst.img")

	i, err := CreateImage(dstFile, "mkdir", "ffs", 12, 1440*1024)
	require.Nil(t, err)

	ret, err := i.IsDir("/foo")
	require.Nil(t, err)
	require.False(t, ret)

	err = i.Mkdir("/foo")
	require.Nil(t, err)

	ret, err = i.IsDir("/foo")
	require.Nil(t, err)
	require.True(t, ret)

	err = i.Mkdir("/foo")
	require.Error(t, err)

	err = i.Close()
	require.Nil(t, err)

	j, err := OpenImage(dstFile)
	require.Nil(t, err)

	err = j.Mkdir("/foo/bar")
	require.Nil(t, err)

	ret, err = j.IsDir("foo/bar")
	require.Nil(t, err)
	require.True(t, ret)

	err = j.Mkdir("/missing/bar")
	require.Error(t, err)
	require.Nil(t, j.Close())
}

func TestImageImport(t *testing.T) {
	dir := t.TempDir()
	imgFile := filepath.Join(dir, "import.img")
	i, err := CreateImage(imgFile, "import", "ffs", 12, 2880*1024)
	require.Nil(t, err)

	importPath := filepath.Join(dir, "files")
	writeHostFile(t, filepath.Join(importPath, "readme.txt"), "read me")
	writeHostFile(t, filepath.Join(importPath, "kits", "kick.wav"), "RIFF")
	err = i.Import(importPath)
	require.Nil(t, err)

	for _, file := range testFiles(t, dir) {
		_, name := filepath.Split(file)
		err := i.AddFile(name, file)
		require.Nil(t, err)
	}
	require.Nil(t, i.Close())

	i, err = OpenImage(imgFile)
	require.Nil(t, err)
	data, err := i.ReadFile("kits/kick.wav")
	require.Nil(t, err)
	require.Equal(t, "RIFF", string(data))
	err = i.SetAttr("foo", akaifat.AttrHidden, true)
	require.Nil(t, err)
	require.Nil(t, i.Close())

	i, err = OpenImage(imgFile)
	require.Nil(t, err)
	attr, err := i.GetAttr("foo")
	require.Nil(t, err)
	require.Equal(t, akaifat.AttrHidden, attr&akaifat.AttrHidden)
	err = i.SetAttr("foo", akaifat.AttrHidden, false)
	require.Nil(t, err)
	require.Nil(t, i.Close())

	i, err = OpenImage(imgFile)
	require.Nil(t, err)
	defer i.Close()
	attr, err = i.GetAttr("foo")
	require.Nil(t, err)
	require.Zero(t, attr&akaifat.AttrHidden)
}

func TestImageRemoveRenameMove(t *testing.T) {
	imgFile := filepath.Join(t.TempDir(), "edit.img")
	i, err := CreateImage(imgFile, "edit", "ffs", 16, 8*MB)
	require.Nil(t, err)
	require.Nil(t, i.Mkdir("kits"))
	require.Nil(t, i.Mkdir("kits/old"))
	require.Nil(t, i.WriteFile("kits/old/snare.wav", []byte("snare")))
	require.Nil(t, i.WriteFile("loop.wav", []byte("loop")))

	require.Nil(t, i.Rename("loop.wav", "Long Loop Name.wav"))
	require.Error(t, i.Rename("Long Loop Name.wav", "kits/x.wav"))
	require.Nil(t, i.Move("Long Loop Name.wav", "kits"))
	require.Nil(t, i.Move("kits/old/snare.wav", "/snare 2.wav"))
	require.Nil(t, i.Remove("kits/old"))
	require.Error(t, i.Remove("kits/old"))
	require.Nil(t, i.Close())

	i, err = OpenImageWithOptions(imgFile, Options{ReadOnly: true})
	require.Nil(t, err)
	defer i.Close()
	records, err := i.ScanFiles()
	require.Nil(t, err)
	require.Equal(t, []string{"/kits", "/kits/Long Loop Name.wav", "/snare 2.wav"}, recordNames(records))
	data, err := i.ReadFile("SNARE 2.WAV")
	require.Nil(t, err)
	require.Equal(t, "snare", string(data))

	listed, err := i.List("kits")
	require.Nil(t, err)
	require.Equal(t, []string{"/kits/Long Loop Name.wav"}, recordNames(listed))

	require.Error(t, i.WriteFile("new.txt", []byte("x")))
}

func TestImageMungeFiles(t *testing.T) {
	dir := t.TempDir()
	srcFile := filepath.Join(dir, "src.img")
	dstFile := filepath.Join(dir, "dst.img")
	src, err := CreateImage(srcFile, "src", "ffs", 12, 1440*1024)
	require.Nil(t, err)
	require.Nil(t, src.Mkdir("EFI"))
	require.Nil(t, src.WriteFile("EFI/boot.efi", []byte("efi")))
	require.Nil(t, src.SetAttr("EFI/boot.efi", akaifat.AttrSystem, true))
	require.Nil(t, src.Close())

	err = MungeImage(dstFile, srcFile, testFiles(t, filepath.Join(dir, "host")))
	require.Nil(t, err)

	dst, err := OpenImage(dstFile)
	require.Nil(t, err)
	defer dst.Close()
	records, err := dst.ScanFiles()
	require.Nil(t, err)
	require.Equal(t, []string{"/EFI", "/EFI/boot.efi", "/foo", "/bar", "/baz"}, recordNames(records))
	require.True(t, records[1].System)
	data, err := dst.ReadFile("bar")
	require.Nil(t, err)
	require.Equal(t, "bar data bar data", string(data))
}

func TestImageRewrite(t *testing.T) {
	dir := t.TempDir()
	srcFile := filepath.Join(dir, "src.img")
	dstFile := filepath.Join(dir, "dst.img")
	src, err := CreateImage(srcFile, "SAMPLES", "AKAI", 12, 1440*1024)
	require.Nil(t, err)
	require.Nil(t, src.Mkdir("drums"))
	require.Nil(t, src.WriteFile("drums/kick.wav", make([]byte, 3000)))
	require.Nil(t, src.SetAttr("drums/kick.wav", akaifat.AttrReadOnly, true))
	require.Nil(t, src.Close())

	err = RewriteImage(dstFile, srcFile, 16, 8*MB)
	require.Nil(t, err)

	dst, err := OpenImage(dstFile)
	require.Nil(t, err)
	defer dst.Close()
	bits, err := dst.FATType()
	require.Nil(t, err)
	require.Equal(t, 16, bits)
	label, err := dst.VolumeLabel()
	require.Nil(t, err)
	require.Equal(t, "SAMPLES", label)
	oem, err := dst.OEMName()
	require.Nil(t, err)
	require.Equal(t, "AKAI", oem)

	records, err := dst.ScanFiles()
	require.Nil(t, err)
	require.Equal(t, []string{"/drums", "/drums/kick.wav"}, recordNames(records))
	require.True(t, records[1].ReadOnly)
	require.Equal(t, int64(3000), records[1].Size)
}

func TestImageAkaiNames(t *testing.T) {
	dir := t.TempDir()
	imgFile := filepath.Join(dir, "akai.img")
	options := Options{Names: fat.AkaiNames}
	i, err := CreateImageWithOptions(imgFile, "S3000", "", 16, 8*MB, options)
	require.Nil(t, err)
	require.Nil(t, i.WriteFile("this is a very long name.data", []byte("sample")))
	require.Nil(t, i.Mkdir("programs"))
	info, err := i.Info()
	require.Nil(t, err)
	require.Equal(t, "akai", info["names"])
	require.Nil(t, i.Close())

	i, err = OpenImageWithOptions(imgFile, options)
	require.Nil(t, err)
	records, err := i.ScanFiles()
	require.Nil(t, err)
	require.Equal(t, []string{"/THISISAVERYLONGN.DAT", "/PROGRAMS"}, recordNames(records))
	require.Equal(t, "THISISAV.DAT", records[0].ShortName)
	require.Nil(t, i.Close())

	rewritten := filepath.Join(dir, "rewritten.img")
	require.Nil(t, RewriteImageWithOptions(rewritten, imgFile, 0, 0, options))
	i, err = OpenImageWithOptions(rewritten, options)
	require.Nil(t, err)
	defer i.Close()
	data, err := i.ReadFile("thisisaverylongn.dat")
	require.Nil(t, err)
	require.Equal(t, "sample", string(data))
}

func TestOpenImageMissing(t *testing.T) {
	_, err := OpenImage(filepath.Join(t.TempDir(), "missing.img"))
	require.Error(t, err)
}
