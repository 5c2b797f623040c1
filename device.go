package akaifat

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

const DefaultSectorSize = 512

// BlockDevice is the random-access storage a filesystem lives on.
type BlockDevice interface {
	io.ReaderAt
	io.WriterAt
	Size() int64
	SectorSize() int
	Flush() error
	Close() error
	IsReadOnly() bool
}

// FileDisk is a BlockDevice backed by a host file. The caller keeps
// ownership of the file; Close only syncs it.
type FileDisk struct {
	file     *os.File
	size     int64
	readOnly bool
	closed   bool
}

var _ BlockDevice = (*FileDisk)(nil)

func NewFileDisk(file *os.File) (*FileDisk, error) {
	return newFileDisk(file, false)
}

func NewReadOnlyFileDisk(file *os.File) (*FileDisk, error) {
	return newFileDisk(file, true)
}

func newFileDisk(file *os.File, readOnly bool) (*FileDisk, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat disk file")
	}
	if info.IsDir() {
		return nil, errors.Wrapf(ErrInvalidArgument, "%s is a directory", file.Name())
	}
	return &FileDisk{file: file, size: info.Size(), readOnly: readOnly}, nil
}

func (d *FileDisk) check(off int64, length int) error {
	if d.closed {
		return errors.New("device closed")
	}
	if off < 0 || off+int64(length) > d.size {
		return errors.Wrapf(ErrInvalidArgument, "access at %d+%d beyond device size %d", off, length, d.size)
	}
	return nil
}

func (d *FileDisk) ReadAt(p []byte, off int64) (int, error) {
	if err := d.check(off, len(p)); err != nil {
		return 0, err
	}
	return d.file.ReadAt(p, off)
}

func (d *FileDisk) WriteAt(p []byte, off int64) (int, error) {
	if d.readOnly {
		return 0, ErrReadOnly
	}
	if err := d.check(off, len(p)); err != nil {
		return 0, err
	}
	return d.file.WriteAt(p, off)
}

func (d *FileDisk) Size() int64      { return d.size }
func (d *FileDisk) SectorSize() int  { return DefaultSectorSize }
func (d *FileDisk) IsReadOnly() bool { return d.readOnly }

func (d *FileDisk) Flush() error {
	if d.closed || d.readOnly {
		return nil
	}
	return d.file.Sync()
}

func (d *FileDisk) Close() error {
	if d.closed {
		return nil
	}
	err := d.Flush()
	d.closed = true
	return err
}

// RamDisk is a BlockDevice held entirely in memory.
type RamDisk struct {
	data       []byte
	sectorSize int
	readOnly   bool
}

var _ BlockDevice = (*RamDisk)(nil)

func NewRamDisk(size int64) *RamDisk {
	return &RamDisk{data: make([]byte, size), sectorSize: DefaultSectorSize}
}

// NewRamDiskFrom wraps an existing image; data is used in place.
func NewRamDiskFrom(data []byte, readOnly bool) *RamDisk {
	return &RamDisk{data: data, sectorSize: DefaultSectorSize, readOnly: readOnly}
}

func (d *RamDisk) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(d.data)) {
		return 0, errors.Wrapf(ErrInvalidArgument, "read at %d+%d beyond device size %d", off, len(p), len(d.data))
	}
	return copy(p, d.data[off:]), nil
}

func (d *RamDisk) WriteAt(p []byte, off int64) (int, error) {
	if d.readOnly {
		return 0, ErrReadOnly
	}
	if off < 0 || off+int64(len(p)) > int64(len(d.data)) {
		return 0, errors.Wrapf(ErrInvalidArgument, "write at %d+%d beyond device size %d", off, len(p), len(d.data))
	}
	return copy(d.data[off:], p), nil
}

func (d *RamDisk) Bytes() []byte    { return d.data }
func (d *RamDisk) Size() int64      { return int64(len(d.data)) }
func (d *RamDisk) SectorSize() int  { return d.sectorSize }
func (d *RamDisk) IsReadOnly() bool { return d.readOnly }
func (d *RamDisk) Flush() error     { return nil }
func (d *RamDisk) Close() error     { return nil }
