package fat

import (
	"github.com/pkg/errors"
	"github.com/rstms/akaifat"
	log "github.com/sirupsen/logrus"
)

// Options control how a volume is mounted.
type Options struct {
	ReadOnly bool
	Names    NameFormat
	// IgnoreFATDifferences mounts volumes whose FAT copies disagree;
	// the first copy wins.
	IgnoreFATDifferences bool
}

// FileSystem is the implementation of akaifat.FileSystem that can read
// and write a FAT filesystem.
type FileSystem struct {
	bs       *BootSectorCommon
	device   akaifat.BlockDevice
	fat      *FAT
	names    NameFormat
	readOnly bool
	rootDir  *Directory
	rootData *dirStore
	bsDirty  bool
	closed   bool
}

// ensure FileSystem implements akaifat.FileSystem
var _ akaifat.FileSystem = (*FileSystem)(nil)

// New returns a new FileSystem for accessing a previously created
// FAT filesystem with standard long names.
func New(device akaifat.BlockDevice) (*FileSystem, error) {
	return Open(device, Options{})
}

// Open mounts the FAT filesystem on device.
func Open(device akaifat.BlockDevice, opts Options) (*FileSystem, error) {
	bs, err := DecodeBootSector(device)
	if err != nil {
		return nil, err
	}

	fat, err := DecodeFAT(device, bs, 0)
	if err != nil {
		return nil, err
	}
	if !opts.IgnoreFATDifferences {
		for n := 1; n < int(bs.NumFATs); n++ {
			other, err := DecodeFAT(device, bs, n)
			if err != nil {
				return nil, err
			}
			if !fat.Equal(other) {
				return nil, errors.Wrapf(akaifat.ErrMalformedDirectory, "FAT copy %d differs from the first", n)
			}
		}
	}

	readOnly := opts.ReadOnly || device.IsReadOnly()
	rootData, err := openRootStore(device, fat, readOnly)
	if err != nil {
		return nil, err
	}
	rootDir, err := newDirectory(device, fat, rootData, opts.Names.strategy(), readOnly)
	if err != nil {
		return nil, err
	}
	rootDir.root = true

	logger.WithFields(log.Fields{
		"type":     bs.FATType().String(),
		"names":    opts.Names.String(),
		"readOnly": readOnly,
	}).Debug("mounted FAT volume")

	result := &FileSystem{
		bs:       bs,
		device:   device,
		fat:      fat,
		names:    opts.Names,
		readOnly: readOnly,
		rootDir:  rootDir,
		rootData: rootData,
	}

	return result, nil
}

func (f *FileSystem) checkOpen() error {
	if f.closed {
		return errors.New("file system closed")
	}
	return nil
}

func (f *FileSystem) RootDir() (akaifat.Directory, error) {
	if err := f.checkOpen(); err != nil {
		return nil, err
	}
	return f.rootDir, nil
}

func (f *FileSystem) FATType() (int, error) {
	return int(f.bs.FATType()), nil
}

func (f *FileSystem) OEMName() (string, error) {
	return f.bs.OEMName, nil
}

// VolumeLabel prefers the root directory label record over the copy in
// the boot sector.
func (f *FileSystem) VolumeLabel() (string, error) {
	if label := f.rootData.Label(); label != "" {
		return label, nil
	}
	if f.bs.VolumeLabel == "NO NAME" {
		return "", nil
	}
	return f.bs.VolumeLabel, nil
}

// SetVolumeLabel stores label in the boot sector and the root
// directory.
func (f *FileSystem) SetVolumeLabel(label string) error {
	if f.readOnly {
		return akaifat.ErrReadOnly
	}
	if len(label) > 11 {
		return errors.Wrapf(akaifat.ErrInvalidArgument, "volume label %q longer than 11", label)
	}
	if err := f.rootData.SetLabel(label); err != nil {
		return err
	}
	f.bs.VolumeLabel = label
	f.bsDirty = true
	return nil
}

// Names reports the name format the volume was mounted with.
func (f *FileSystem) Names() NameFormat {
	return f.names
}

func (f *FileSystem) IsReadOnly() bool {
	return f.readOnly
}

// FreeSpace is the number of bytes in unallocated clusters.
func (f *FileSystem) FreeSpace() int64 {
	return int64(f.fat.FreeClusterCount()) * f.bs.ClusterSize()
}

// TotalSpace is the size of the data area in bytes.
func (f *FileSystem) TotalSpace() int64 {
	return int64(f.bs.DataClusterCount()) * f.bs.ClusterSize()
}

func (f *FileSystem) Info() (map[string]any, error) {
	label, err := f.VolumeLabel()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"type":           f.bs.FATType().String(),
		"oem":            f.bs.OEMName,
		"label":          label,
		"volumeId":       f.bs.VolumeID,
		"bytesPerSector": int(f.bs.BytesPerSector),
		"clusterSize":    f.bs.ClusterSize(),
		"clusters":       f.bs.DataClusterCount(),
		"freeClusters":   f.fat.FreeClusterCount(),
		"totalSpace":     f.TotalSpace(),
		"freeSpace":      f.FreeSpace(),
		"names":          f.names.String(),
		"readOnly":       f.readOnly,
	}, nil
}

// Flush writes the directory tree, every FAT copy and the boot sector,
// in that order, then flushes the device.
func (f *FileSystem) Flush() error {
	if err := f.checkOpen(); err != nil {
		return err
	}
	if f.readOnly {
		return nil
	}
	if err := f.rootDir.Flush(); err != nil {
		return err
	}
	if f.fat.IsDirty() {
		if err := f.fat.WriteToDevice(f.device); err != nil {
			return err
		}
	}
	if f.bsDirty {
		if err := f.bs.WriteToDevice(f.device); err != nil {
			return err
		}
		f.bsDirty = false
	}
	if err := f.device.Flush(); err != nil {
		return Fatal(err)
	}
	return nil
}

// Close flushes pending changes. The device stays open.
func (f *FileSystem) Close() error {
	if f.closed {
		return nil
	}
	err := f.Flush()
	f.closed = true
	return err
}
