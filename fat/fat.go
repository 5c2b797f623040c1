package fat

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/rstms/akaifat"
)

// FAT is an in-memory copy of the file allocation table. All copies on
// the device are written from it.
type FAT struct {
	bs        *BootSectorCommon
	fatType   FATType
	data      []byte
	entries   uint32
	lastAlloc uint32
	dirty     bool
}

func fatSize(bs *BootSectorCommon) int {
	return int(bs.SectorsPerFAT) * int(bs.BytesPerSector)
}

// DecodeFAT reads FAT copy n from the device.
func DecodeFAT(device akaifat.BlockDevice, bs *BootSectorCommon, n int) (*FAT, error) {
	if n < 0 || n >= int(bs.NumFATs) {
		return nil, errors.Wrapf(akaifat.ErrInvalidArgument, "FAT index %d out of range", n)
	}
	f := newFAT(bs)
	if _, err := device.ReadAt(f.data, bs.FATOffset(n)); err != nil {
		return nil, Fatal(err)
	}
	return f, nil
}

// NewFAT returns an empty table for a freshly formatted volume, with
// the two reserved entries initialized.
func NewFAT(bs *BootSectorCommon) *FAT {
	f := newFAT(bs)
	f.set(0, (0x0FFFFF00|uint32(bs.Media))&f.fatType.mask())
	f.set(1, f.fatType.eofMarker())
	f.dirty = true
	return f
}

func newFAT(bs *BootSectorCommon) *FAT {
	f := &FAT{
		bs:        bs,
		fatType:   bs.FATType(),
		data:      make([]byte, fatSize(bs)),
		entries:   bs.DataClusterCount() + firstCluster,
		lastAlloc: firstCluster - 1,
	}
	// the table may describe fewer clusters than the sectors could hold
	if max := f.maxEntries(); f.entries > max {
		f.entries = max
	}
	return f
}

func (f *FAT) maxEntries() uint32 {
	switch f.fatType {
	case FAT12:
		return uint32(len(f.data)) * 2 / 3
	case FAT16:
		return uint32(len(f.data)) / 2
	}
	return uint32(len(f.data)) / 4
}

func (f *FAT) Type() FATType {
	return f.fatType
}

func (f *FAT) get(cluster uint32) uint32 {
	switch f.fatType {
	case FAT12:
		off := cluster + cluster/2
		v := uint32(f.data[off]) | uint32(f.data[off+1])<<8
		if cluster&1 == 0 {
			return v & 0xFFF
		}
		return v >> 4
	case FAT16:
		return uint32(binary.LittleEndian.Uint16(f.data[cluster*2:]))
	}
	return binary.LittleEndian.Uint32(f.data[cluster*4:]) & 0x0FFFFFFF
}

func (f *FAT) set(cluster, value uint32) {
	f.dirty = true
	switch f.fatType {
	case FAT12:
		off := cluster + cluster/2
		value &= 0xFFF
		if cluster&1 == 0 {
			f.data[off] = byte(value)
			f.data[off+1] = f.data[off+1]&0xF0 | byte(value>>8)
		} else {
			f.data[off] = f.data[off]&0x0F | byte(value<<4)
			f.data[off+1] = byte(value >> 4)
		}
	case FAT16:
		binary.LittleEndian.PutUint16(f.data[cluster*2:], uint16(value))
	default:
		// the top nibble is reserved and must be preserved
		old := binary.LittleEndian.Uint32(f.data[cluster*4:])
		binary.LittleEndian.PutUint32(f.data[cluster*4:], old&0xF0000000|value&0x0FFFFFFF)
	}
}

func (f *FAT) checkCluster(cluster uint32) error {
	if cluster < firstCluster || cluster >= f.entries {
		return errors.Wrapf(akaifat.ErrMalformedDirectory, "cluster %d outside [%d, %d)", cluster, firstCluster, f.entries)
	}
	return nil
}

// Get returns the table entry for cluster.
func (f *FAT) Get(cluster uint32) (uint32, error) {
	if err := f.checkCluster(cluster); err != nil {
		return 0, err
	}
	return f.get(cluster), nil
}

func (f *FAT) IsEOF(v uint32) bool {
	return f.fatType.isEOF(v)
}

func (f *FAT) IsFree(cluster uint32) bool {
	return f.get(cluster) == 0
}

// Chain returns the clusters linked from start, in order. A zero start
// cluster is an empty chain.
func (f *FAT) Chain(start uint32) ([]uint32, error) {
	if start == 0 {
		return nil, nil
	}
	var chain []uint32
	cluster := start
	for {
		if err := f.checkCluster(cluster); err != nil {
			return nil, err
		}
		chain = append(chain, cluster)
		if uint32(len(chain)) > f.entries {
			return nil, errors.Wrapf(akaifat.ErrMalformedDirectory, "cluster chain from %d loops", start)
		}
		next := f.get(cluster)
		if f.fatType.isEOF(next) {
			return chain, nil
		}
		if next == 0 || next == f.fatType.badCluster() {
			return nil, errors.Wrapf(akaifat.ErrMalformedDirectory, "cluster chain from %d broken at %d", start, cluster)
		}
		cluster = next
	}
}

// AllocNew allocates a single cluster and marks it as the end of a new
// chain. The search resumes after the last allocation and wraps around.
func (f *FAT) AllocNew() (uint32, error) {
	count := f.entries - firstCluster
	for i := uint32(0); i < count; i++ {
		cluster := firstCluster + (f.lastAlloc+1-firstCluster+i)%count
		if f.get(cluster) == 0 {
			f.set(cluster, f.fatType.eofMarker())
			f.lastAlloc = cluster
			logger.Debugf("fat: allocated cluster %d", cluster)
			return cluster, nil
		}
	}
	return 0, akaifat.ErrNoSpace
}

// AllocChain allocates a new chain of n clusters and returns its first
// cluster.
func (f *FAT) AllocChain(n int) (uint32, error) {
	if n <= 0 {
		return 0, errors.Wrapf(akaifat.ErrInvalidArgument, "chain length %d", n)
	}
	if f.FreeClusterCount() < uint32(n) {
		return 0, akaifat.ErrNoSpace
	}
	start, err := f.AllocNew()
	if err != nil {
		return 0, err
	}
	last := start
	for i := 1; i < n; i++ {
		last, err = f.AllocAppend(last)
		if err != nil {
			return 0, err
		}
	}
	return start, nil
}

// AllocAppend allocates a cluster and links it after last, which must
// be the end of its chain.
func (f *FAT) AllocAppend(last uint32) (uint32, error) {
	if err := f.checkCluster(last); err != nil {
		return 0, err
	}
	next, err := f.AllocNew()
	if err != nil {
		return 0, err
	}
	f.set(last, next)
	return next, nil
}

func (f *FAT) SetEOF(cluster uint32) error {
	if err := f.checkCluster(cluster); err != nil {
		return err
	}
	f.set(cluster, f.fatType.eofMarker())
	return nil
}

func (f *FAT) SetFree(cluster uint32) error {
	if err := f.checkCluster(cluster); err != nil {
		return err
	}
	f.set(cluster, 0)
	return nil
}

func (f *FAT) FreeClusterCount() uint32 {
	var free uint32
	for c := uint32(firstCluster); c < f.entries; c++ {
		if f.get(c) == 0 {
			free++
		}
	}
	return free
}

// LastCluster is the highest valid data cluster number.
func (f *FAT) LastCluster() uint32 {
	return f.entries - 1
}

func (f *FAT) IsDirty() bool {
	return f.dirty
}

// WriteToDevice writes every FAT copy.
func (f *FAT) WriteToDevice(device akaifat.BlockDevice) error {
	for n := 0; n < int(f.bs.NumFATs); n++ {
		if _, err := device.WriteAt(f.data, f.bs.FATOffset(n)); err != nil {
			return Fatal(err)
		}
	}
	f.dirty = false
	return nil
}

// Equal reports whether two tables have identical content.
func (f *FAT) Equal(other *FAT) bool {
	return f.fatType == other.fatType && bytes.Equal(f.data, other.data)
}
