package image

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rstms/akaifat"
	"github.com/rstms/akaifat/fat"
	log "github.com/sirupsen/logrus"
)

const MB = 1024 * 1024
const PAD_BYTES = 512

// FileRecord describes one file or directory found by ScanFiles. Name
// is the slash separated path from the image root.
type FileRecord struct {
	Name      string
	ShortName string
	Size      int64
	Dir       bool
	Hidden    bool
	System    bool
	ReadOnly  bool
	Archive   bool
}

// Options select how an image file is mounted.
type Options struct {
	Names    fat.NameFormat
	ReadOnly bool
}

type Image struct {
	Filename string
	file     *os.File
	disk     *akaifat.FileDisk
	fs       *fat.FileSystem
	options  Options
}

func OpenImage(filename string) (*Image, error) {
	return OpenImageWithOptions(filename, Options{})
}

func OpenImageWithOptions(filename string, options Options) (*Image, error) {
	if !IsFile(filename) {
		return nil, Fatalf("image not found: %s", filename)
	}
	i := Image{Filename: filename, options: options}
	var err error
	if options.ReadOnly {
		i.file, err = os.Open(filename)
	} else {
		i.file, err = os.OpenFile(filename, os.O_RDWR, 0600)
	}
	if err != nil {
		return nil, Fatal(err)
	}
	if options.ReadOnly {
		i.disk, err = akaifat.NewReadOnlyFileDisk(i.file)
	} else {
		i.disk, err = akaifat.NewFileDisk(i.file)
	}
	if err != nil {
		i.closeFile()
		return nil, Fatal(err)
	}
	err = i.mount()
	if err != nil {
		i.closeFile()
		return nil, Fatal(err)
	}
	return &i, nil
}

func CreateImage(filename, label, oem string, bits int, size int64) (*Image, error) {
	return CreateImageWithOptions(filename, label, oem, bits, size, Options{})
}

func CreateImageWithOptions(filename, label, oem string, bits int, size int64, options Options) (*Image, error) {
	options.ReadOnly = false
	i := Image{Filename: filename, options: options}
	var err error
	err = i.createImageFile(size)
	if err != nil {
		return nil, Fatal(err)
	}
	i.disk, err = akaifat.NewFileDisk(i.file)
	if err != nil {
		i.closeFile()
		return nil, Fatal(err)
	}
	err = i.format(bits, label, oem)
	if err != nil {
		i.closeFile()
		return nil, Fatal(err)
	}
	err = i.mount()
	if err != nil {
		i.closeFile()
		return nil, Fatal(err)
	}
	return &i, nil
}

func (i *Image) mount() error {
	var err error
	i.fs, err = fat.Open(i.disk, fat.Options{
		ReadOnly: i.options.ReadOnly,
		Names:    i.options.Names,
	})
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"image": i.Filename,
		"names": i.options.Names.String(),
	}).Debug("image mounted")
	return nil
}

func (i *Image) closeFile() error {
	if i.file != nil {
		err := i.file.Close()
		if err != nil {
			return Fatal(err)
		}
		i.file = nil
	}
	return nil
}

func (i *Image) closeDisk() error {
	if i.disk != nil {
		err := i.disk.Close()
		if err != nil {
			return Fatal(err)
		}
		i.disk = nil
	}
	return nil
}

// Close writes all pending changes to the image file and closes it.
func (i *Image) Close() error {
	defer i.closeFile()
	defer i.closeDisk()
	if i.fs != nil {
		err := i.fs.Close()
		i.fs = nil
		if err != nil {
			return Fatal(err)
		}
	}
	return nil
}

// Flush writes pending changes without closing the image.
func (i *Image) Flush() error {
	err := i.fs.Flush()
	if err != nil {
		return Fatal(err)
	}
	return nil
}

func (i *Image) FileSystem() *fat.FileSystem {
	return i.fs
}

func (i *Image) VolumeLabel() (string, error) {
	return i.fs.VolumeLabel()
}

func (i *Image) OEMName() (string, error) {
	return i.fs.OEMName()
}

func (i *Image) FATType() (int, error) {
	return i.fs.FATType()
}

func (i *Image) Info() (map[string]any, error) {
	info, err := i.fs.Info()
	if err != nil {
		return nil, Fatal(err)
	}
	info["image"] = i.Filename
	return info, nil
}

func (i *Image) ScanFiles() ([]FileRecord, error) {

	ret := []FileRecord{}

	imgRoot, err := i.fs.RootDir()
	if err != nil {
		return ret, Fatal(err)
	}

	records, err := walk("/", imgRoot)
	if err != nil {
		return ret, Fatal(err)
	}

	return records, nil
}

// List returns the records of a single directory.
func (i *Image) List(pathname string) ([]FileRecord, error) {
	dir, err := i.getDir(pathname)
	if err != nil {
		return nil, Fatal(err)
	}
	records := []FileRecord{}
	for entry := range dir.All() {
		if isDotEntry(entry) || entry.IsVolumeId() {
			continue
		}
		record, err := newFileRecord(path.Join("/", cleanPath(pathname), entry.Name()), entry)
		if err != nil {
			return nil, Fatal(err)
		}
		records = append(records, record)
	}
	return records, nil
}

// AddFile copies the host file srcPathname into the image.
func (i *Image) AddFile(dstPathname, srcPathname string) error {
	srcSize, err := hostFileSize(srcPathname)
	if err != nil {
		return Fatal(err)
	}
	src, err := os.Open(srcPathname)
	if err != nil {
		return Fatal(err)
	}
	defer src.Close()
	count, err := i.writeFile(dstPathname, src)
	if err != nil {
		return Fatal(err)
	}
	if count != srcSize {
		return Fatalf("write count mismatch; expected %d, wrote %d\n", srcSize, count)
	}
	return nil
}

// WriteFile creates or replaces a file in the image with data.
func (i *Image) WriteFile(dstPathname string, data []byte) error {
	_, err := i.writeFile(dstPathname, bytes.NewReader(data))
	if err != nil {
		return Fatal(err)
	}
	return nil
}

func (i *Image) writeFile(dstPathname string, src io.Reader) (int64, error) {
	dstDir, dstName := splitPath(dstPathname)
	if dstName == "" {
		return 0, Fatalf("missing file name: %s", dstPathname)
	}

	dir, err := i.getDir(dstDir)
	if err != nil {
		return 0, Fatal(err)
	}

	entry := dir.Entry(dstName)
	if entry != nil && !entry.IsFile() {
		return 0, Fatalf("not a file: %s", dstPathname)
	}
	if entry == nil {
		entry, err = dir.AddFile(dstName)
		if err != nil {
			return 0, Fatal(err)
		}
	}
	dst, err := entry.File()
	if err != nil {
		return 0, Fatal(err)
	}
	defer dst.Close()
	err = dst.SetLength(0)
	if err != nil {
		return 0, Fatal(err)
	}
	_, err = dst.Seek(0, io.SeekStart)
	if err != nil {
		return 0, Fatal(err)
	}
	count, err := io.Copy(dst, src)
	if err != nil {
		return count, Fatal(err)
	}
	log.Debugf("wrote %d bytes to %s", count, dstPathname)
	return count, nil
}

// MungeImage builds dstFilename from the tree of srcFilename plus the
// named host files, which are added to the root directory.
func MungeImage(dstFilename, srcFilename string, files []string) error {

	dstSize, err := hostFileSize(srcFilename)
	if err != nil {
		return Fatal(err)
	}
	for _, filename := range files {
		size, err := hostFileSize(filename)
		if err != nil {
			return Fatal(err)
		}
		dstSize += size + int64(PAD_BYTES)
	}

	srcImage, err := OpenImageWithOptions(srcFilename, Options{ReadOnly: true})
	if err != nil {
		return Fatal(err)
	}
	defer srcImage.Close()

	bits, err := srcImage.FATType()
	if err != nil {
		return Fatal(err)
	}
	bits = fatTypeForSize(bits, dstSize)

	dstImage, err := CreateImage(dstFilename, "munged", "akaifat", bits, dstSize)
	if err != nil {
		return Fatal(err)
	}
	defer dstImage.Close()

	records, err := srcImage.ScanFiles()
	if err != nil {
		return Fatal(err)
	}

	err = copyTree(dstImage, srcImage, records)
	if err != nil {
		return Fatal(err)
	}

	for _, filename := range files {
		_, name := filepath.Split(filename)
		err := dstImage.AddFile(name, filename)
		if err != nil {
			return Fatal(err)
		}
	}

	return nil
}

// fatTypeForSize keeps the source table width unless the new size
// cannot hold it.
func fatTypeForSize(bits int, size int64) int {
	fits := int(fat.FATTypeForSize(size))
	if fits > bits {
		return fits
	}
	return bits
}

// copyTree recreates the records of src in dst, in ScanFiles order so
// that every directory exists before its contents.
func copyTree(dst, src *Image, records []FileRecord) error {
	for _, record := range records {
		if record.Dir {
			err := dst.Mkdir(record.Name)
			if err != nil {
				return Fatal(err)
			}
			continue
		}
		err := copyFile(dst, src, record)
		if err != nil {
			return Fatal(err)
		}
	}
	for _, record := range records {
		attrs := map[akaifat.DirectoryAttr]bool{
			akaifat.AttrSystem:   record.System,
			akaifat.AttrHidden:   record.Hidden,
			akaifat.AttrReadOnly: record.ReadOnly,
			akaifat.AttrArchive:  record.Archive,
		}
		for attr, state := range attrs {
			err := dst.SetAttr(record.Name, attr, state)
			if err != nil {
				return Fatal(err)
			}
		}
	}
	return nil
}

func copyFile(dst, src *Image, record FileRecord) error {
	log.Debugf("copyFile: dst=%s src=%s name=%s", dst.Filename, src.Filename, record.Name)
	data, err := src.ReadFile(record.Name)
	if err != nil {
		return Fatal(err)
	}
	return dst.WriteFile(record.Name, data)
}

func cleanPath(name string) string {
	return strings.Trim(path.Clean("/"+name), "/")
}

// splitPath returns the parent directory and the final element of an
// image path.
func splitPath(pathname string) (string, string) {
	return path.Split(cleanPath(pathname))
}

func (i *Image) searchDir(name string) (akaifat.Directory, error) {
	dir, err := i.fs.RootDir()
	if err != nil {
		return nil, Fatal(err)
	}
	name = cleanPath(name)
	if name == "" {
		return dir, nil
	}
	subdirs := strings.Split(name, "/")
	log.Debugf("subdirs: %d %+v", len(subdirs), subdirs)
	for _, sub := range subdirs {
		entry := dir.Entry(sub)
		if entry == nil {
			// no entry present with this name
			log.Debugf("sub=%s not found", sub)
			return nil, nil
		}
		if !entry.IsDir() {
			// entry found, but not a directory
			log.Debugf("sub=%s entry=%s not a dir", sub, entry.Name())
			return nil, nil
		}
		// step to the next directory
		dir, err = entry.Dir()
		if err != nil {
			return nil, Fatal(err)
		}
	}
	return dir, nil
}

func (i *Image) getDir(name string) (akaifat.Directory, error) {
	dir, err := i.searchDir(name)
	if err != nil {
		return nil, Fatal(err)
	}
	if dir == nil {
		return nil, Fatalf("directory not found: %s", name)
	}
	return dir, nil
}

// lookup returns the directory holding pathname and its entry.
func (i *Image) lookup(pathname string) (akaifat.Directory, akaifat.DirectoryEntry, error) {
	dirName, name := splitPath(pathname)
	if name == "" {
		return nil, nil, Fatalf("invalid path: %s", pathname)
	}
	dir, err := i.getDir(dirName)
	if err != nil {
		return nil, nil, Fatal(err)
	}
	entry := dir.Entry(name)
	if entry == nil {
		return nil, nil, Fatalf("not found: %s", pathname)
	}
	return dir, entry, nil
}

func (i *Image) IsDir(name string) (bool, error) {
	dir, err := i.searchDir(name)
	if err != nil {
		return false, Fatal(err)
	}
	return dir != nil, nil
}

// Exists reports whether pathname names a file or directory.
func (i *Image) Exists(pathname string) (bool, error) {
	if cleanPath(pathname) == "" {
		return true, nil
	}
	dirName, name := splitPath(pathname)
	dir, err := i.searchDir(dirName)
	if err != nil {
		return false, Fatal(err)
	}
	return dir != nil && dir.Entry(name) != nil, nil
}

func (i *Image) Mkdir(pathname string) error {
	exists, err := i.IsDir(pathname)
	if err != nil {
		return Fatal(err)
	}
	if exists {
		return Fatalf("directory exists: %s", pathname)
	}
	dir, name := splitPath(pathname)
	if name == "" {
		return Fatalf("invalid path: %s", pathname)
	}
	parent, err := i.getDir(dir)
	if err != nil {
		return Fatal(err)
	}
	_, err = parent.AddDirectory(name)
	if err != nil {
		return Fatal(err)
	}
	return nil
}

// Remove deletes a file, or a directory with everything below it.
func (i *Image) Remove(pathname string) error {
	dir, entry, err := i.lookup(pathname)
	if err != nil {
		return Fatal(err)
	}
	err = dir.Remove(entry.Name())
	if err != nil {
		return Fatal(err)
	}
	return nil
}

// Rename changes the name of an entry within its directory.
func (i *Image) Rename(pathname, newName string) error {
	if strings.Contains(newName, "/") {
		return Fatalf("new name may not contain a path: %s", newName)
	}
	_, entry, err := i.lookup(pathname)
	if err != nil {
		return Fatal(err)
	}
	err = entry.SetName(newName)
	if err != nil {
		return Fatal(err)
	}
	return nil
}

// Move relinks an entry. When dstPathname is an existing directory the
// entry keeps its name inside it.
func (i *Image) Move(srcPathname, dstPathname string) error {
	_, entry, err := i.lookup(srcPathname)
	if err != nil {
		return Fatal(err)
	}
	target, err := i.searchDir(dstPathname)
	if err != nil {
		return Fatal(err)
	}
	name := entry.Name()
	if target == nil {
		var dirName string
		dirName, name = splitPath(dstPathname)
		target, err = i.getDir(dirName)
		if err != nil {
			return Fatal(err)
		}
	}
	err = entry.MoveTo(target, name)
	if err != nil {
		return Fatal(err)
	}
	return nil
}

func isDotEntry(entry akaifat.DirectoryEntry) bool {
	return entry.Name() == "." || entry.Name() == ".."
}

func newFileRecord(name string, entry akaifat.DirectoryEntry) (FileRecord, error) {
	attr := entry.Attr()
	record := FileRecord{
		Name:      name,
		ShortName: entry.ShortName(),
		Dir:       attr&akaifat.AttrDirectory == akaifat.AttrDirectory,
		Hidden:    attr&akaifat.AttrHidden == akaifat.AttrHidden,
		System:    attr&akaifat.AttrSystem == akaifat.AttrSystem,
		ReadOnly:  attr&akaifat.AttrReadOnly == akaifat.AttrReadOnly,
		Archive:   attr&akaifat.AttrArchive == akaifat.AttrArchive,
	}
	if entry.IsFile() {
		file, err := entry.File()
		if err != nil {
			return record, Fatal(err)
		}
		record.Size = file.Length()
	}
	return record, nil
}

func walk(pathname string, dir akaifat.Directory) ([]FileRecord, error) {
	records := []FileRecord{}
	for _, entry := range dir.Entries() {
		switch {
		case isDotEntry(entry):
		case entry.IsVolumeId():
		default:
			record, err := newFileRecord(path.Join(pathname, entry.Name()), entry)
			if err != nil {
				return []FileRecord{}, Fatal(err)
			}
			records = append(records, record)
			if entry.IsDir() {
				subdir, err := entry.Dir()
				if err != nil {
					return []FileRecord{}, Fatal(err)
				}
				subRecords, err := walk(path.Join(pathname, entry.Name()), subdir)
				if err != nil {
					return []FileRecord{}, Fatal(err)
				}
				records = append(records, subRecords...)
			}
		}
	}
	return records, nil
}

// ReadFile returns the content of a file in the image.
func (i *Image) ReadFile(filename string) ([]byte, error) {
	_, entry, err := i.lookup(filename)
	if err != nil {
		return []byte{}, Fatal(err)
	}
	src, err := entry.File()
	if err != nil {
		return []byte{}, Fatal(err)
	}
	defer src.Close()

	_, err = src.Seek(0, io.SeekStart)
	if err != nil {
		return []byte{}, Fatal(err)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return []byte{}, Fatal(err)
	}
	log.Debugf("read %d bytes from %s", len(data), filename)
	return data, nil
}

// Export writes the content of a file in the image to a host file.
func (i *Image) Export(filename, dstPathname string) error {
	data, err := i.ReadFile(filename)
	if err != nil {
		return Fatal(err)
	}
	err = os.WriteFile(dstPathname, data, 0600)
	if err != nil {
		return Fatal(err)
	}
	return nil
}

// create, truncate, and reopen the output file
func (i *Image) createImageFile(size int64) error {
	if size%int64(1024) != 0 {
		size = (size/int64(1024) + 1) * int64(1024)
	}
	log.Debugf("image size after rounding: %d", size)
	var err error
	i.file, err = os.OpenFile(i.Filename, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0600)
	if err != nil {
		return Fatal(err)
	}
	err = i.file.Truncate(size)
	if err != nil {
		i.closeFile()
		return Fatal(err)
	}
	return nil
}

func (i *Image) format(bits int, label, oem string) error {
	var ftype fat.FATType
	switch bits {
	case 0:
		ftype = fat.FATTypeForSize(i.disk.Size())
	case 12:
		ftype = fat.FAT12
	case 16:
		ftype = fat.FAT16
	case 32:
		ftype = fat.FAT32
	default:
		return Fatalf("FAT type not 12,16,or 32")
	}
	formatConfig := &fat.SuperFloppyConfig{
		FATType: ftype,
		Label:   label,
		OEMName: oem,
	}
	err := fat.FormatSuperFloppy(i.disk, formatConfig)
	if err != nil {
		return Fatal(err)
	}
	return nil
}

// write all files in a directory to the image
func (i *Image) Import(filename string) error {
	return i.ImportTo(filename, "/")
}

// ImportTo writes the tree below the host directory filename into the
// existing image directory dstDir.
func (i *Image) ImportTo(filename, dstDir string) error {
	err := filepath.WalkDir(filename, func(pathname string, d fs.DirEntry, err error) error {
		if err != nil {
			return Fatal(err)
		}
		if pathname == filename {
			return nil
		}
		dst, err := filepath.Rel(filename, pathname)
		if err != nil {
			return Fatal(err)
		}
		dst = path.Join(dstDir, filepath.ToSlash(dst))
		log.Debugf("import dir=%v dst=%s, path=%s", d.IsDir(), dst, pathname)
		if d.IsDir() {
			err := i.Mkdir(dst)
			if err != nil {
				return Fatal(err)
			}
		} else {
			err := i.AddFile(dst, pathname)
			if err != nil {
				return Fatal(err)
			}
		}
		return nil
	})
	if err != nil {
		return Fatal(err)
	}
	return nil
}

func (i *Image) SetAttr(filename string, attr akaifat.DirectoryAttr, state bool) error {
	_, entry, err := i.lookup(filename)
	if err != nil {
		return Fatal(err)
	}
	err = entry.SetAttr(attr, state)
	if err != nil {
		return Fatal(err)
	}
	return nil
}

func (i *Image) GetAttr(filename string) (akaifat.DirectoryAttr, error) {
	_, entry, err := i.lookup(filename)
	if err != nil {
		return 0, Fatal(err)
	}
	return entry.Attr(), nil
}
