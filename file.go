package akaifat

import "io"

// File is the contents of a regular file entry. Reads and writes go
// straight to the backing cluster chain; the entry's length and start
// cluster are persisted when the owning directory is flushed.
type File interface {
	io.ReadWriteSeeker
	io.ReaderAt
	io.WriterAt
	io.Closer
	Length() int64
	SetLength(length int64) error
	Flush() error
}
