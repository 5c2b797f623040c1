package fat

import (
	"github.com/pkg/errors"
	"github.com/rstms/akaifat"
)

// maximum number of records in a cluster chain directory
const maxChainDirEntries = 65536

// RecordStore is the slot storage behind a directory. Slot indexes
// cover every record except the volume label of a root directory,
// which is kept aside and rewritten first on flush.
type RecordStore interface {
	EntryCount() int
	EntryAt(i int) *Record
	AppendEntries(records ...*Record) error
	RemoveEntry(record *Record) error
	Resize(entries int) error
	// ReplaceAll swaps the whole content. On error the store is
	// unchanged.
	ReplaceAll(records []*Record) error
	Flush() error
	// CreateChild allocates and initializes storage for a new
	// subdirectory and returns its primary record.
	CreateChild() (*Record, error)
	// StorageCluster is the first cluster of the store, zero for a
	// fixed root region.
	StorageCluster() uint32
}

// dirStore keeps directory records either in the fixed root region of
// a FAT12/16 volume or in a cluster chain.
type dirStore struct {
	device   akaifat.BlockDevice
	fat      *FAT
	readOnly bool
	root     bool

	// fixed root region, used when chain is nil
	offset   int64
	capacity int

	chain *ClusterChain

	label   *Record
	records []*Record
	dirty   bool
}

var _ RecordStore = (*dirStore)(nil)

func openRootStore(device akaifat.BlockDevice, fat *FAT, readOnly bool) (*dirStore, error) {
	bs := fat.bs
	var s *dirStore
	if bs.FATType() == FAT32 {
		var err error
		if s, err = newChainStore(device, fat, bs.RootCluster, readOnly); err != nil {
			return nil, err
		}
	} else {
		s = &dirStore{
			device:   device,
			fat:      fat,
			readOnly: readOnly,
			offset:   bs.RootDirOffset(),
			capacity: int(bs.RootEntryCount),
		}
	}
	s.root = true
	if err := s.read(); err != nil {
		return nil, err
	}
	return s, nil
}

func openChainStore(device akaifat.BlockDevice, fat *FAT, start uint32, readOnly bool) (*dirStore, error) {
	s, err := newChainStore(device, fat, start, readOnly)
	if err != nil {
		return nil, err
	}
	if err := s.read(); err != nil {
		return nil, err
	}
	return s, nil
}

func newChainStore(device akaifat.BlockDevice, fat *FAT, start uint32, readOnly bool) (*dirStore, error) {
	if start == 0 {
		return nil, errors.Wrap(akaifat.ErrMalformedDirectory, "directory without cluster chain")
	}
	s := &dirStore{
		device:   device,
		fat:      fat,
		readOnly: readOnly,
		chain:    NewClusterChain(device, fat, start, readOnly),
	}
	size, err := s.chain.LengthOnDisk()
	if err != nil {
		return nil, err
	}
	s.capacity = int(size / RecordSize)
	return s, nil
}

func (s *dirStore) fat32() bool {
	return s.fat.Type() == FAT32
}

func (s *dirStore) read() error {
	buf := make([]byte, s.capacity*RecordSize)
	if s.chain != nil {
		if _, err := s.chain.ReadAt(buf, 0); err != nil {
			return err
		}
	} else if _, err := s.device.ReadAt(buf, s.offset); err != nil {
		return Fatal(err)
	}
	for i := 0; i < s.capacity; i++ {
		r := DecodeRecord(buf[i*RecordSize:(i+1)*RecordSize], s.fat32())
		if r.IsEnd() {
			break
		}
		if s.root && r.IsVolumeLabel() && !r.IsDeleted() {
			if s.label == nil {
				s.label = r
			}
			continue
		}
		s.records = append(s.records, r)
	}
	return nil
}

func (s *dirStore) EntryCount() int {
	return len(s.records)
}

func (s *dirStore) EntryAt(i int) *Record {
	if i < 0 || i >= len(s.records) {
		return nil
	}
	return s.records[i]
}

func (s *dirStore) StorageCluster() uint32 {
	if s.chain == nil {
		return 0
	}
	return s.chain.StartCluster()
}

// parentRef is the cluster a child's ".." record points at; the root
// is always referenced as zero.
func (s *dirStore) parentRef() uint32 {
	if s.root {
		return 0
	}
	return s.StorageCluster()
}

func (s *dirStore) Resize(entries int) error {
	if s.readOnly {
		return akaifat.ErrReadOnly
	}
	if s.label != nil {
		entries++
	}
	if s.chain == nil {
		if entries > s.capacity {
			return errors.Wrapf(akaifat.ErrDirectoryFull, "root directory holds %d records", s.capacity)
		}
		return nil
	}
	if entries > maxChainDirEntries {
		return errors.Wrapf(akaifat.ErrDirectoryFull, "directory holds %d records", maxChainDirEntries)
	}
	clusterSize := s.fat.bs.ClusterSize()
	size, err := s.chain.SetSize(max(int64(entries)*RecordSize, clusterSize))
	if err != nil {
		return err
	}
	s.capacity = int(size / RecordSize)
	return nil
}

func (s *dirStore) AppendEntries(records ...*Record) error {
	if err := s.Resize(len(s.records) + len(records)); err != nil {
		return err
	}
	s.records = append(s.records, records...)
	s.dirty = true
	return nil
}

func (s *dirStore) RemoveEntry(record *Record) error {
	for i, r := range s.records {
		if r == record {
			s.records = append(s.records[:i:i], s.records[i+1:]...)
			s.dirty = true
			return s.Resize(len(s.records))
		}
	}
	return errors.Wrap(akaifat.ErrInvalidArgument, "record not in directory")
}

func (s *dirStore) ReplaceAll(records []*Record) error {
	if err := s.Resize(len(records)); err != nil {
		return err
	}
	s.records = append([]*Record(nil), records...)
	s.dirty = true
	return nil
}

func (s *dirStore) isDirty() bool {
	if s.dirty || (s.label != nil && s.label.IsDirty()) {
		return true
	}
	for _, r := range s.records {
		if r.IsDirty() {
			return true
		}
	}
	return false
}

// Flush rewrites the whole storage area, zero filling unused slots.
func (s *dirStore) Flush() error {
	if s.readOnly || !s.isDirty() {
		return nil
	}
	buf := make([]byte, s.capacity*RecordSize)
	slot := 0
	if s.label != nil {
		copy(buf, s.label.Bytes())
		slot++
	}
	for _, r := range s.records {
		copy(buf[slot*RecordSize:], r.Bytes())
		slot++
	}
	if s.chain != nil {
		if _, err := s.chain.WriteAt(buf, 0); err != nil {
			return err
		}
	} else if _, err := s.device.WriteAt(buf, s.offset); err != nil {
		return Fatal(err)
	}
	if s.label != nil {
		s.label.markClean()
	}
	for _, r := range s.records {
		r.markClean()
	}
	s.dirty = false
	return nil
}

func (s *dirStore) CreateChild() (*Record, error) {
	if s.readOnly {
		return nil, akaifat.ErrReadOnly
	}
	start, err := s.fat.AllocNew()
	if err != nil {
		return nil, err
	}
	child := &dirStore{
		device:   s.device,
		fat:      s.fat,
		chain:    NewClusterChain(s.device, s.fat, start, false),
		capacity: int(s.fat.bs.ClusterSize() / RecordSize),
	}

	dot := NewRecord(true, s.fat32())
	dot.SetShortName(dotName)
	dot.SetStartCluster(start)
	dotDot := NewRecord(true, s.fat32())
	dotDot.SetShortName(dotDotName)
	dotDot.SetStartCluster(s.parentRef())
	child.records = []*Record{dot, dotDot}
	child.dirty = true

	if err := child.Flush(); err != nil {
		if ferr := child.chain.SetChainLength(0); ferr != nil {
			logger.Debugf("store: releasing child chain: %v", ferr)
		}
		return nil, err
	}

	record := NewRecord(true, s.fat32())
	record.SetStartCluster(start)
	return record, nil
}

// Label returns the volume label record, if any.
func (s *dirStore) Label() string {
	if s.label == nil {
		return ""
	}
	return s.label.ShortName().label()
}

func (s *dirStore) SetLabel(label string) error {
	if s.readOnly {
		return akaifat.ErrReadOnly
	}
	if s.label == nil {
		if err := s.Resize(len(s.records) + 1); err != nil {
			return err
		}
		s.label = NewVolumeLabelRecord(label, s.fat32())
	} else {
		copy(s.label.data[:11], padded(label, 11))
		s.label.dirty = true
	}
	s.dirty = true
	return nil
}
