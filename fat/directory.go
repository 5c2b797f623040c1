package fat

import (
	"iter"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/rstms/akaifat"
)

// Directory implements akaifat.Directory and is used to interface with
// a directory on a FAT filesystem. Entries are indexed by their lower
// case name; opened files and subdirectories are cached per entry.
type Directory struct {
	device   akaifat.BlockDevice
	fat      *FAT
	store    RecordStore
	names    NameStrategy
	readOnly bool
	fat32    bool

	// root directories are referenced as cluster zero by ".." records
	root   bool
	parent *Directory

	index   map[string]*DirectoryEntry
	order   []*DirectoryEntry
	files   map[uint64]*File
	dirs    map[uint64]*Directory
	nextKey uint64
}

// ensure Directory implements akaifat.Directory
var _ akaifat.Directory = (*Directory)(nil)

// errTruncatedRun marks long name records cut off by the end of the
// directory storage. It is logged, never returned.
var errTruncatedRun = errors.New("truncated long name run")

func newDirectory(device akaifat.BlockDevice, fat *FAT, store RecordStore, names NameStrategy, readOnly bool) (*Directory, error) {
	d := &Directory{
		device:   device,
		fat:      fat,
		store:    store,
		names:    names,
		readOnly: readOnly,
		fat32:    fat != nil && fat.Type() == FAT32,
		index:    make(map[string]*DirectoryEntry),
		files:    make(map[uint64]*File),
		dirs:     make(map[uint64]*Directory),
	}
	if err := d.parse(); err != nil {
		return nil, err
	}
	return d, nil
}

func isLFNSlot(r *Record) bool {
	return r != nil && r.IsLFN()
}

// parse builds the index from the records in the store. Each run of
// long name records is closed by the primary record that follows it.
func (d *Directory) parse() error {
	size := d.store.EntryCount()
	i := 0
	for i < size {
		if r := d.store.EntryAt(i); r == nil || r.IsEnd() {
			i++
			continue
		}
		start := i
		for i < size && isLFNSlot(d.store.EntryAt(i)) {
			i++
		}
		if i >= size {
			logger.WithField("records", i-start).Debug(errTruncatedRun)
			break
		}
		if d.store.EntryAt(i) == nil {
			continue
		}
		run := make([]*Record, 0, i-start+1)
		for j := start; j <= i; j++ {
			run = append(run, d.store.EntryAt(j))
		}
		i++

		primary := run[len(run)-1]
		if primary.IsDeleted() || primary.IsVolumeLabel() {
			continue
		}
		if !primary.IsValid() {
			return errors.Wrapf(akaifat.ErrMalformedDirectory, "invalid record %q with flags 0x%02x",
				primary.ShortName().String(), uint8(primary.Flags()))
		}
		name := d.names.Decode(run)
		if name == "" {
			return errors.Wrap(akaifat.ErrMalformedDirectory, "entry without a name")
		}
		if _, ok := d.index[strings.ToLower(name)]; ok {
			return errors.Wrapf(akaifat.ErrMalformedDirectory, "duplicate entry %q", name)
		}
		d.link(&DirectoryEntry{dir: d, name: name, run: run})
	}
	return nil
}

func (d *Directory) link(e *DirectoryEntry) {
	e.dir = d
	e.key = d.nextKey
	d.nextKey++
	d.index[strings.ToLower(e.name)] = e
	d.order = append(d.order, e)
}

// unlink drops the entry from the index and forgets its cached file
// or subdirectory.
func (d *Directory) unlink(e *DirectoryEntry) {
	delete(d.index, strings.ToLower(e.name))
	if i := slices.Index(d.order, e); i >= 0 {
		d.order = slices.Delete(d.order, i, i+1)
	}
	delete(d.files, e.key)
	delete(d.dirs, e.key)
}

// records flattens the runs of all entries, substituting run for the
// records of entry replace. A nil run leaves the entry out.
func (d *Directory) records(replace *DirectoryEntry, run []*Record) []*Record {
	var records []*Record
	for _, e := range d.order {
		if e == replace {
			records = append(records, run...)
			continue
		}
		records = append(records, e.run...)
	}
	return records
}

// usedKeys returns the on-disk identities of all entries but except.
func (d *Directory) usedKeys(except *DirectoryEntry) map[string]struct{} {
	used := make(map[string]struct{}, len(d.order))
	for _, e := range d.order {
		if e != except {
			used[d.names.EncodedKey(e.primary())] = struct{}{}
		}
	}
	return used
}

// encode stores name into primary through the name strategy and
// returns the run together with the name it decodes to. primary is
// left as it was when that name belongs to an entry other than except.
func (d *Directory) encode(name string, primary *Record, except *DirectoryEntry) ([]*Record, string, error) {
	scratch := *primary
	run, err := d.names.Encode(name, &scratch, d.usedKeys(except))
	if err != nil {
		return nil, "", err
	}
	stored := d.names.Decode(run)
	if other := d.entry(stored); other != nil && other != except {
		return nil, "", errors.Wrapf(akaifat.ErrDuplicateName, "%q is stored as %q", name, stored)
	}
	*primary = scratch
	run[len(run)-1] = primary
	return run, stored, nil
}

func (d *Directory) checkWritable() error {
	if d.readOnly {
		return akaifat.ErrReadOnly
	}
	return nil
}

// clusterRef is the value a child's ".." record holds for d.
func (d *Directory) clusterRef() uint32 {
	if d.root {
		return 0
	}
	return d.store.StorageCluster()
}

func isDotName(name string) bool {
	return name == "." || name == ".."
}

// cleanName trims the name and rejects names no strategy can store.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", errors.Wrap(akaifat.ErrInvalidArgument, "empty name")
	case isDotName(name):
		return "", errors.Wrapf(akaifat.ErrInvalidArgument, "reserved name %q", name)
	case strings.ContainsAny(name, "/\x00"):
		return "", errors.Wrapf(akaifat.ErrInvalidArgument, "illegal character in %q", name)
	}
	return name, nil
}

func (d *Directory) Entry(name string) akaifat.DirectoryEntry {
	e := d.entry(name)
	if e == nil {
		return nil
	}
	return e
}

func (d *Directory) entry(name string) *DirectoryEntry {
	return d.index[strings.ToLower(strings.TrimSpace(name))]
}

func (d *Directory) Entries() []akaifat.DirectoryEntry {
	result := make([]akaifat.DirectoryEntry, 0, len(d.order))
	for _, e := range d.order {
		result = append(result, e)
	}
	return result
}

func (d *Directory) All() iter.Seq[akaifat.DirectoryEntry] {
	return func(yield func(akaifat.DirectoryEntry) bool) {
		for _, e := range d.order {
			if !yield(e) {
				return
			}
		}
	}
}

func (d *Directory) IsFreeName(name string) bool {
	return d.entry(name) == nil
}

func (d *Directory) AddFile(name string) (akaifat.DirectoryEntry, error) {
	if err := d.checkWritable(); err != nil {
		return nil, err
	}
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if !d.IsFreeName(name) {
		return nil, errors.Wrapf(akaifat.ErrDuplicateName, "%q", name)
	}

	primary := NewRecord(false, d.fat32)
	run, stored, err := d.encode(name, primary, nil)
	if err != nil {
		return nil, err
	}
	if err := d.store.AppendEntries(run...); err != nil {
		return nil, err
	}
	entry := &DirectoryEntry{name: stored, run: run}
	d.link(entry)
	return entry, nil
}

func (d *Directory) AddDirectory(name string) (akaifat.DirectoryEntry, error) {
	if err := d.checkWritable(); err != nil {
		return nil, err
	}
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if !d.IsFreeName(name) {
		return nil, errors.Wrapf(akaifat.ErrDuplicateName, "%q", name)
	}

	// the stored name is checked before any cluster is allocated
	if _, _, err := d.encode(name, NewRecord(true, d.fat32), nil); err != nil {
		return nil, err
	}
	primary, err := d.store.CreateChild()
	if err != nil {
		return nil, err
	}
	run, stored, err := d.encode(name, primary, nil)
	if err == nil {
		err = d.store.AppendEntries(run...)
	}
	if err != nil {
		d.releaseChain(primary)
		return nil, err
	}
	entry := &DirectoryEntry{name: stored, run: run}
	d.link(entry)

	if err := d.Flush(); err != nil {
		return nil, err
	}
	return entry, nil
}

// releaseChain frees the clusters of a record that never made it into
// the directory.
func (d *Directory) releaseChain(primary *Record) {
	chain := NewClusterChain(d.device, d.fat, primary.StartCluster(), false)
	if err := chain.SetChainLength(0); err != nil {
		logger.Debugf("directory: releasing cluster %d: %v", primary.StartCluster(), err)
	}
}

// Remove deletes the named entry and frees its clusters, including the
// whole tree below a directory. Removing an absent name does nothing.
func (d *Directory) Remove(name string) error {
	if err := d.checkWritable(); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if isDotName(name) {
		return errors.Wrapf(akaifat.ErrInvalidArgument, "cannot remove %q", name)
	}
	e := d.entry(name)
	if e == nil {
		return nil
	}
	if err := d.store.ReplaceAll(d.records(e, nil)); err != nil {
		return err
	}
	child := d.dirs[e.key]
	d.unlink(e)
	return d.release(e.primary(), child)
}

// release frees the chain of a removed entry. For a directory the
// clusters of everything below it are freed first.
func (d *Directory) release(primary *Record, child *Directory) error {
	if primary.StartCluster() == 0 {
		return nil
	}
	if primary.IsDir() {
		if child == nil {
			var err error
			child, err = d.openChild(primary)
			if err != nil {
				return err
			}
		}
		for _, e := range child.order {
			if e.isDot() {
				continue
			}
			if err := child.release(e.primary(), child.dirs[e.key]); err != nil {
				return err
			}
		}
	}
	logger.Debugf("directory: releasing chain at cluster %d", primary.StartCluster())
	return NewClusterChain(d.device, d.fat, primary.StartCluster(), false).SetChainLength(0)
}

func (d *Directory) openChild(primary *Record) (*Directory, error) {
	store, err := openChainStore(d.device, d.fat, primary.StartCluster(), d.readOnly)
	if err != nil {
		return nil, err
	}
	child, err := newDirectory(d.device, d.fat, store, d.names, d.readOnly)
	if err != nil {
		return nil, err
	}
	child.parent = d
	return child, nil
}

// childDirectory returns the cached subdirectory of e, opening it on
// first use.
func (d *Directory) childDirectory(e *DirectoryEntry) (*Directory, error) {
	if !e.IsDir() {
		return nil, errors.Wrapf(akaifat.ErrNotDirectory, "%q", e.name)
	}
	switch e.name {
	case ".":
		return d, nil
	case "..":
		if d.parent == nil {
			return nil, errors.Wrap(akaifat.ErrInvalidArgument, "parent directory not open")
		}
		return d.parent, nil
	}
	if child, ok := d.dirs[e.key]; ok {
		return child, nil
	}
	child, err := d.openChild(e.primary())
	if err != nil {
		return nil, err
	}
	d.dirs[e.key] = child
	return child, nil
}

// file returns the cached file of e, opening it on first use.
func (d *Directory) file(e *DirectoryEntry) (*File, error) {
	if !e.IsFile() {
		return nil, errors.Wrapf(akaifat.ErrNotFile, "%q", e.name)
	}
	if f, ok := d.files[e.key]; ok {
		return f, nil
	}
	f := newFile(d.device, d.fat, e.primary(), d.readOnly)
	d.files[e.key] = f
	return f, nil
}

// rename re-encodes e in place. The primary record is restored when
// the store rejects the new records.
func (d *Directory) rename(e *DirectoryEntry, name string) error {
	primary := e.primary()
	saved := *primary
	run, stored, err := d.encode(name, primary, e)
	if err != nil {
		return err
	}
	if err := d.store.ReplaceAll(d.records(e, run)); err != nil {
		*primary = saved
		return err
	}
	file, child := d.files[e.key], d.dirs[e.key]
	d.unlink(e)
	e.name = stored
	e.run = run
	d.link(e)
	d.adopt(e, file, child)
	return nil
}

// move appends e to target before dropping it here, so a failure on
// either side leaves e where it was.
func (d *Directory) move(e *DirectoryEntry, target *Directory, name string) error {
	primary := e.primary()
	saved := *primary
	run, stored, err := target.encode(name, primary, nil)
	if err != nil {
		return err
	}
	if err := target.store.AppendEntries(run...); err != nil {
		*primary = saved
		return err
	}
	if err := d.store.ReplaceAll(d.records(e, nil)); err != nil {
		for _, r := range run {
			if rerr := target.store.RemoveEntry(r); rerr != nil {
				logger.Debugf("directory: rolling back move of %q: %v", name, rerr)
			}
		}
		*primary = saved
		return err
	}

	file, child := d.files[e.key], d.dirs[e.key]
	d.unlink(e)
	e.name = stored
	e.run = run
	target.link(e)
	target.adopt(e, file, child)

	if primary.IsDir() {
		child, err := target.childDirectory(e)
		if err != nil {
			return err
		}
		if dotDot := child.entry(".."); dotDot != nil {
			dotDot.primary().SetStartCluster(target.clusterRef())
		}
	}
	return nil
}

// adopt re-registers caches that belonged to e before it was relinked.
func (d *Directory) adopt(e *DirectoryEntry, file *File, child *Directory) {
	if file != nil {
		d.files[e.key] = file
	}
	if child != nil {
		child.parent = d
		d.dirs[e.key] = child
	}
}

// Flush writes cached files, then cached subdirectories, then this
// directory's records. It stops at the first error. Flushing a read
// only directory does nothing.
func (d *Directory) Flush() error {
	if d.readOnly {
		return nil
	}
	for _, e := range d.order {
		if f, ok := d.files[e.key]; ok {
			if err := f.Flush(); err != nil {
				return err
			}
		}
	}
	for _, e := range d.order {
		if child, ok := d.dirs[e.key]; ok {
			if err := child.Flush(); err != nil {
				return err
			}
		}
	}
	return d.store.Flush()
}
