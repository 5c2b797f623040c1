package fat

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/rstms/akaifat"
)

// File implements akaifat.File on top of a cluster chain. Data is
// written through to the device; the length and start cluster live in
// the entry's primary record and are persisted by the directory.
type File struct {
	chain    *ClusterChain
	record   *Record
	position int64
	readOnly bool
}

var _ akaifat.File = (*File)(nil)

func newFile(device akaifat.BlockDevice, fat *FAT, record *Record, readOnly bool) *File {
	return &File{
		chain:    NewClusterChain(device, fat, record.StartCluster(), readOnly),
		record:   record,
		readOnly: readOnly,
	}
}

func (f *File) Length() int64 {
	return int64(f.record.Length())
}

// SetLength truncates or extends the file. Extended space is not
// cleared.
func (f *File) SetLength(length int64) error {
	if f.readOnly {
		return akaifat.ErrReadOnly
	}
	if length < 0 || length > 0xFFFFFFFF {
		return errors.Wrapf(akaifat.ErrInvalidArgument, "file length %d", length)
	}
	if length == f.Length() {
		return nil
	}
	if _, err := f.chain.SetSize(length); err != nil {
		return err
	}
	f.record.SetLength(uint32(length))
	f.record.SetStartCluster(f.chain.StartCluster())
	f.record.SetWriteTime(time.Now())
	return nil
}

func (f *File) ReadAt(p []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, errors.Wrapf(akaifat.ErrInvalidArgument, "offset %d", offset)
	}
	length := f.Length()
	if offset >= length {
		return 0, io.EOF
	}
	want := len(p)
	if remain := length - offset; int64(want) > remain {
		want = int(remain)
	}
	n, err := f.chain.ReadAt(p[:want], offset)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *File) WriteAt(p []byte, offset int64) (int, error) {
	if f.readOnly {
		return 0, akaifat.ErrReadOnly
	}
	if offset < 0 {
		return 0, errors.Wrapf(akaifat.ErrInvalidArgument, "offset %d", offset)
	}
	end := offset + int64(len(p))
	if end > f.Length() {
		if err := f.SetLength(end); err != nil {
			return 0, err
		}
	}
	n, err := f.chain.WriteAt(p, offset)
	f.record.SetWriteTime(time.Now())
	return n, err
}

func (f *File) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.position)
	f.position += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

func (f *File) Write(p []byte) (int, error) {
	n, err := f.WriteAt(p, f.position)
	f.position += int64(n)
	return n, err
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = f.position + offset
	case io.SeekEnd:
		pos = f.Length() + offset
	default:
		return 0, errors.Wrapf(akaifat.ErrInvalidArgument, "whence %d", whence)
	}
	if pos < 0 {
		return 0, errors.Wrapf(akaifat.ErrInvalidArgument, "negative position %d", pos)
	}
	f.position = pos
	return pos, nil
}

// Flush has nothing to write: data goes straight to the device and the
// record is written by its directory.
func (f *File) Flush() error {
	return nil
}

// Close rewinds the file. A cached File stays usable through its
// directory entry, which hands out the same instance again.
func (f *File) Close() error {
	f.position = 0
	return f.Flush()
}
