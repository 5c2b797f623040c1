package fat

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rstms/akaifat"
)

// DirectoryEntry implements akaifat.DirectoryEntry and represents a
// single file/folder within a directory in a FAT filesystem. Note that
// there may be more than one underlying record on the disk to account
// for long filenames; the primary record is always the last of the run.
type DirectoryEntry struct {
	dir  *Directory
	name string
	run  []*Record
	key  uint64
}

// ensure DirectoryEntry implements akaifat.DirectoryEntry
var _ akaifat.DirectoryEntry = (*DirectoryEntry)(nil)

func (e *DirectoryEntry) primary() *Record {
	return e.run[len(e.run)-1]
}

func (e *DirectoryEntry) isDot() bool {
	return e.primary().ShortName().IsDot()
}

func (e *DirectoryEntry) Name() string {
	return e.name
}

func (e *DirectoryEntry) ShortName() string {
	return e.primary().ShortName().String()
}

// AkaiPart returns the raw vendor field of the primary record.
func (e *DirectoryEntry) AkaiPart() string {
	return e.primary().AkaiPart().String()
}

func (e *DirectoryEntry) Length() int64 {
	return int64(e.primary().Length())
}

func (e *DirectoryEntry) WriteTime() time.Time {
	return e.primary().WriteTime()
}

func (e *DirectoryEntry) Parent() akaifat.Directory {
	return e.dir
}

func (e *DirectoryEntry) checkWritable() error {
	if e.dir.readOnly {
		return errors.Wrapf(akaifat.ErrReadOnly, "%q", e.name)
	}
	return nil
}

// SetName renames the entry within its directory. Changing only the
// case of the name is allowed.
func (e *DirectoryEntry) SetName(name string) error {
	if err := e.checkWritable(); err != nil {
		return err
	}
	if e.isDot() {
		return errors.Wrapf(akaifat.ErrInvalidArgument, "cannot rename %q", e.name)
	}
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	if other := e.dir.entry(name); other != nil && other != e {
		return errors.Wrapf(akaifat.ErrDuplicateName, "%q", name)
	}
	return e.dir.rename(e, name)
}

// MoveTo relinks the entry into target under name. A directory cannot
// be moved below itself.
func (e *DirectoryEntry) MoveTo(target akaifat.Directory, name string) error {
	t, ok := target.(*Directory)
	if !ok || t == nil {
		return errors.Wrap(akaifat.ErrInvalidArgument, "target is not a FAT directory")
	}
	if t == e.dir {
		return e.SetName(name)
	}
	if err := e.checkWritable(); err != nil {
		return err
	}
	if err := t.checkWritable(); err != nil {
		return err
	}
	if e.isDot() {
		return errors.Wrapf(akaifat.ErrInvalidArgument, "cannot move %q", e.name)
	}
	if t.fat != e.dir.fat {
		return errors.Wrap(akaifat.ErrInvalidArgument, "target is on another file system")
	}
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	if !t.IsFreeName(name) {
		return errors.Wrapf(akaifat.ErrDuplicateName, "%q", name)
	}
	if e.IsDir() {
		start := e.primary().StartCluster()
		for p := t; p != nil; p = p.parent {
			if !p.root && p.store.StorageCluster() == start {
				return errors.Wrapf(akaifat.ErrInvalidArgument, "cannot move %q below itself", e.name)
			}
		}
	}
	return e.dir.move(e, t, name)
}

func (e *DirectoryEntry) IsDir() bool {
	return e.primary().IsDir()
}

func (e *DirectoryEntry) IsFile() bool {
	return e.primary().IsFile()
}

func (e *DirectoryEntry) IsVolumeId() bool {
	return e.primary().IsVolumeLabel()
}

func (e *DirectoryEntry) IsDirty() bool {
	return e.primary().IsDirty()
}

func (e *DirectoryEntry) Dir() (akaifat.Directory, error) {
	d, err := e.dir.childDirectory(e)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (e *DirectoryEntry) File() (akaifat.File, error) {
	f, err := e.dir.file(e)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (e *DirectoryEntry) Attr() akaifat.DirectoryAttr {
	return e.primary().Flags()
}

// SetAttr changes one of the user settable flags. The change is written
// when the directory is flushed.
func (e *DirectoryEntry) SetAttr(attr akaifat.DirectoryAttr, state bool) error {
	switch attr {
	case akaifat.AttrHidden:
	case akaifat.AttrSystem:
	case akaifat.AttrReadOnly:
	case akaifat.AttrArchive:
	default:
		return errors.Wrapf(akaifat.ErrInvalidArgument, "unsettable attribute 0x%02x", uint8(attr))
	}
	if err := e.checkWritable(); err != nil {
		return err
	}
	e.primary().SetFlag(attr, state)
	return nil
}

func (e *DirectoryEntry) SetReadOnly(state bool) error {
	return e.SetAttr(akaifat.AttrReadOnly, state)
}

func (e *DirectoryEntry) SetSystem(state bool) error {
	return e.SetAttr(akaifat.AttrSystem, state)
}

func (e *DirectoryEntry) SetHidden(state bool) error {
	return e.SetAttr(akaifat.AttrHidden, state)
}

func (e *DirectoryEntry) SetArchive(state bool) error {
	return e.SetAttr(akaifat.AttrArchive, state)
}

func (e *DirectoryEntry) IsReadOnly() bool {
	return e.primary().HasFlag(akaifat.AttrReadOnly)
}

func (e *DirectoryEntry) IsSystem() bool {
	return e.primary().HasFlag(akaifat.AttrSystem)
}

func (e *DirectoryEntry) IsHidden() bool {
	return e.primary().HasFlag(akaifat.AttrHidden)
}

func (e *DirectoryEntry) IsArchive() bool {
	return e.primary().HasFlag(akaifat.AttrArchive)
}
