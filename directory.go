package akaifat

import "iter"

type DirectoryAttr uint8

const (
	AttrReadOnly  DirectoryAttr = 0x01
	AttrHidden    DirectoryAttr = 0x02
	AttrSystem    DirectoryAttr = 0x04
	AttrVolumeId  DirectoryAttr = 0x08
	AttrDirectory DirectoryAttr = 0x10
	AttrArchive   DirectoryAttr = 0x20
	AttrLongName                = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeId
)

// Directory is an entry in a filesystem that stores files.
//
// Names are compared case-insensitively after leading and trailing
// spaces are removed.
type Directory interface {
	Entry(name string) DirectoryEntry
	Entries() []DirectoryEntry

	// All ranges over the entries in insertion order. The directory
	// must not be modified while the sequence is being consumed.
	All() iter.Seq[DirectoryEntry]

	AddDirectory(name string) (DirectoryEntry, error)
	AddFile(name string) (DirectoryEntry, error)
	Remove(name string) error
	IsFreeName(name string) bool
	Flush() error
}

// DirectoryEntry represents a single entry within a directory,
// which can be either another Directory or a File.
type DirectoryEntry interface {
	Name() string
	ShortName() string
	SetName(name string) error
	MoveTo(target Directory, name string) error
	Parent() Directory

	IsDir() bool
	IsFile() bool
	IsVolumeId() bool
	IsDirty() bool
	Dir() (Directory, error)
	File() (File, error)

	Attr() DirectoryAttr
	SetAttr(DirectoryAttr, bool) error
	IsReadOnly() bool
	SetReadOnly(bool) error
	IsHidden() bool
	SetHidden(bool) error
	IsSystem() bool
	SetSystem(bool) error
	IsArchive() bool
	SetArchive(bool) error
}
