package fat

import (
	"testing"

	"github.com/rstms/akaifat"
	"github.com/stretchr/testify/require"
)

func testDiskSize(fatType FATType) int64 {
	switch fatType {
	case FAT12:
		return 1440 * 1024
	case FAT16:
		return 8 * 1024 * 1024
	}
	return 34 * 1024 * 1024
}

func newTestFS(t *testing.T, fatType FATType, names NameFormat) (*akaifat.RamDisk, *FileSystem) {
	disk := akaifat.NewRamDisk(testDiskSize(fatType))
	err := FormatSuperFloppy(disk, &SuperFloppyConfig{FATType: fatType, Label: "TEST"})
	require.Nil(t, err)
	fs, err := Open(disk, Options{Names: names})
	require.Nil(t, err)
	return disk, fs
}

// reopen flushes fs and mounts the same disk again.
func reopen(t *testing.T, disk *akaifat.RamDisk, fs *FileSystem, names NameFormat) *FileSystem {
	require.Nil(t, fs.Close())
	fs, err := Open(disk, Options{Names: names})
	require.Nil(t, err)
	return fs
}

func rootDir(t *testing.T, fs *FileSystem) *Directory {
	root, err := fs.RootDir()
	require.Nil(t, err)
	return root.(*Directory)
}

func TestFileSystemImplementsFileSystem(t *testing.T) {
	var raw interface{}
	raw = new(FileSystem)
	if _, ok := raw.(akaifat.FileSystem); !ok {
		t.Fatal("FileSystem should be a FileSystem")
	}
}

func TestFormatAndOpen(t *testing.T) {
	for _, fatType := range []FATType{FAT12, FAT16, FAT32} {
		_, fs := newTestFS(t, fatType, StandardNames)

		bits, err := fs.FATType()
		require.Nil(t, err)
		require.Equal(t, int(fatType), bits)

		label, err := fs.VolumeLabel()
		require.Nil(t, err)
		require.Equal(t, "TEST", label)

		oem, err := fs.OEMName()
		require.Nil(t, err)
		require.Equal(t, "akaifat", oem)

		root := rootDir(t, fs)
		require.Empty(t, root.Entries())
		require.Greater(t, fs.FreeSpace(), int64(0))
		require.LessOrEqual(t, fs.FreeSpace(), fs.TotalSpace())

		info, err := fs.Info()
		require.Nil(t, err)
		require.Equal(t, fatType.String(), info["type"])
	}
}

func TestFormatGeometry(t *testing.T) {
	for _, tc := range []struct {
		fatType  FATType
		spc      uint8
		spf      uint32
		clusters uint32
	}{
		{FAT12, 1, 12, 2823},
		{FAT16, 2, 32, 8143},
		{FAT32, 1, 540, 68520},
	} {
		disk := akaifat.NewRamDisk(testDiskSize(tc.fatType))
		require.Nil(t, FormatSuperFloppy(disk, &SuperFloppyConfig{FATType: tc.fatType}))
		bs, err := DecodeBootSector(disk)
		require.Nil(t, err)
		require.Equal(t, tc.fatType, bs.FATType())
		require.Equal(t, tc.spc, bs.SectorsPerCluster)
		require.Equal(t, tc.spf, bs.SectorsPerFAT)
		require.Equal(t, tc.clusters, bs.DataClusterCount())
		require.Equal(t, []byte{0x55, 0xAA}, disk.Bytes()[510:512])
	}
}

func TestFormatRejectsBadSize(t *testing.T) {
	disk := akaifat.NewRamDisk(1440 * 1024)
	err := FormatSuperFloppy(disk, &SuperFloppyConfig{FATType: FAT32})
	require.ErrorIs(t, err, akaifat.ErrInvalidArgument)

	err = FormatSuperFloppy(disk, &SuperFloppyConfig{FATType: FAT16})
	require.ErrorIs(t, err, akaifat.ErrInvalidArgument)

	err = FormatSuperFloppy(disk, &SuperFloppyConfig{Label: "TWELVE CHARS"})
	require.ErrorIs(t, err, akaifat.ErrInvalidArgument)
}

func TestFormatRootEntries(t *testing.T) {
	disk := akaifat.NewRamDisk(testDiskSize(FAT12))
	require.Nil(t, FormatSuperFloppy(disk, &SuperFloppyConfig{FATType: FAT12, RootEntries: 224}))
	bs, err := DecodeBootSector(disk)
	require.Nil(t, err)
	require.Equal(t, uint16(224), bs.RootEntryCount)

	fs, err := Open(disk, Options{Names: AkaiNames})
	require.Nil(t, err)
	require.Equal(t, AkaiNames, fs.Names())
	require.Equal(t, "akai", fs.Names().String())

	for _, entries := range []int{100, -16, 0x10000} {
		err = FormatSuperFloppy(disk, &SuperFloppyConfig{FATType: FAT12, RootEntries: entries})
		require.ErrorIs(t, err, akaifat.ErrInvalidArgument)
	}
}

func TestFormatFAT32BackupBootSector(t *testing.T) {
	disk := akaifat.NewRamDisk(testDiskSize(FAT32))
	require.Nil(t, FormatSuperFloppy(disk, &SuperFloppyConfig{FATType: FAT32}))
	backup := int64(fat32BackupBootSector) * akaifat.DefaultSectorSize
	require.Equal(t, disk.Bytes()[:bootSectorSize], disk.Bytes()[backup:backup+bootSectorSize])
}

func TestOpenFATMismatch(t *testing.T) {
	disk := akaifat.NewRamDisk(testDiskSize(FAT16))
	require.Nil(t, FormatSuperFloppy(disk, &SuperFloppyConfig{FATType: FAT16}))
	bs, err := DecodeBootSector(disk)
	require.Nil(t, err)
	disk.Bytes()[bs.FATOffset(1)+10] = 0x42

	_, err = Open(disk, Options{})
	require.ErrorIs(t, err, akaifat.ErrMalformedDirectory)

	_, err = Open(disk, Options{IgnoreFATDifferences: true})
	require.Nil(t, err)
}

func TestOpenReadOnly(t *testing.T) {
	disk, fs := newTestFS(t, FAT16, StandardNames)
	_, err := rootDir(t, fs).AddFile("keep.txt")
	require.Nil(t, err)
	require.Nil(t, fs.Close())
	before := append([]byte(nil), disk.Bytes()...)

	fs, err = Open(disk, Options{ReadOnly: true})
	require.Nil(t, err)
	require.True(t, fs.IsReadOnly())
	root := rootDir(t, fs)

	_, err = root.AddFile("new.txt")
	require.ErrorIs(t, err, akaifat.ErrReadOnly)
	_, err = root.AddDirectory("new")
	require.ErrorIs(t, err, akaifat.ErrReadOnly)
	require.ErrorIs(t, root.Remove("keep.txt"), akaifat.ErrReadOnly)
	require.ErrorIs(t, root.Entry("keep.txt").SetName("other.txt"), akaifat.ErrReadOnly)
	require.ErrorIs(t, fs.SetVolumeLabel("OTHER"), akaifat.ErrReadOnly)

	require.Nil(t, root.Flush())
	require.Nil(t, fs.Close())
	require.Equal(t, before, disk.Bytes())
}

func TestSetVolumeLabel(t *testing.T) {
	disk, fs := newTestFS(t, FAT12, StandardNames)
	require.Nil(t, fs.SetVolumeLabel("DRUMS"))
	fs = reopen(t, disk, fs, StandardNames)
	label, err := fs.VolumeLabel()
	require.Nil(t, err)
	require.Equal(t, "DRUMS", label)
	require.Equal(t, "DRUMS", fs.bs.VolumeLabel)
}

func TestClosedFileSystem(t *testing.T) {
	_, fs := newTestFS(t, FAT12, StandardNames)
	require.Nil(t, fs.Close())
	require.Nil(t, fs.Close())
	_, err := fs.RootDir()
	require.Error(t, err)
}
