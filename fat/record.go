package fat

import (
	"encoding/binary"
	"time"

	"github.com/rstms/akaifat"
)

// RecordSize is the size of one directory slot.
const RecordSize = 32

const (
	deletedMarker = 0xE5
	// a stored 0x05 stands for a leading 0xE5 name byte
	escapedE5 = 0x05

	offsetAttr        = 0x0B
	offsetAkaiPart    = 0x0C
	offsetClusterHigh = 0x14
	offsetWriteTime   = 0x16
	offsetWriteDate   = 0x18
	offsetClusterLow  = 0x1A
	offsetLength      = 0x1C
	offsetLFNChecksum = 0x0D
	lfnLastFragment   = 0x40
	lfnCharsPerRecord = 13
	maxLongNameLength = 255
)

// byte offsets of the UCS-2 characters in a long name record
var lfnCharOffsets = [lfnCharsPerRecord]int{1, 3, 5, 7, 9, 14, 16, 18, 20, 22, 24, 28, 30}

// Record is a raw 32-byte directory slot: either a primary record
// describing a file, directory or volume label, or a long name
// continuation record.
type Record struct {
	data  [RecordSize]byte
	fat32 bool
	dirty bool
}

// DecodeRecord copies one slot out of b.
func DecodeRecord(b []byte, fat32 bool) *Record {
	r := &Record{fat32: fat32}
	copy(r.data[:], b)
	return r
}

// NewRecord returns a blank primary record for a file or directory.
func NewRecord(dir bool, fat32 bool) *Record {
	r := &Record{fat32: fat32, dirty: true}
	copy(r.data[:11], "           ")
	if dir {
		r.data[offsetAttr] = byte(akaifat.AttrDirectory)
	} else {
		r.data[offsetAttr] = byte(akaifat.AttrArchive)
	}
	r.SetWriteTime(time.Now())
	return r
}

// NewVolumeLabelRecord returns a root directory record holding label.
func NewVolumeLabelRecord(label string, fat32 bool) *Record {
	r := &Record{fat32: fat32, dirty: true}
	copy(r.data[:11], padded(label, 11))
	r.data[offsetAttr] = byte(akaifat.AttrVolumeId | akaifat.AttrArchive)
	r.SetWriteTime(time.Now())
	return r
}

func (r *Record) Bytes() []byte {
	return r.data[:]
}

func (r *Record) IsDirty() bool {
	return r.dirty
}

func (r *Record) markClean() {
	r.dirty = false
}

func (r *Record) Flags() akaifat.DirectoryAttr {
	return akaifat.DirectoryAttr(r.data[offsetAttr])
}

func (r *Record) HasFlag(attr akaifat.DirectoryAttr) bool {
	return r.Flags()&attr == attr
}

func (r *Record) SetFlag(attr akaifat.DirectoryAttr, state bool) {
	flags := r.Flags()
	if state {
		flags |= attr
	} else {
		flags &^= attr
	}
	if flags != r.Flags() {
		r.data[offsetAttr] = byte(flags)
		r.dirty = true
	}
}

// IsEnd reports whether this slot terminates the directory.
func (r *Record) IsEnd() bool {
	return r.data[0] == 0
}

func (r *Record) IsDeleted() bool {
	return r.data[0] == deletedMarker
}

// MarkDeleted flags the slot as free for reuse.
func (r *Record) MarkDeleted() {
	r.data[0] = deletedMarker
	r.dirty = true
}

func (r *Record) IsLFN() bool {
	return r.Flags()&0x3F == akaifat.AttrLongName
}

func (r *Record) IsVolumeLabel() bool {
	return !r.IsLFN() && r.HasFlag(akaifat.AttrVolumeId) && !r.HasFlag(akaifat.AttrDirectory)
}

func (r *Record) IsDir() bool {
	return !r.IsLFN() && r.HasFlag(akaifat.AttrDirectory)
}

func (r *Record) IsFile() bool {
	return !r.IsLFN() && r.Flags()&(akaifat.AttrDirectory|akaifat.AttrVolumeId) == 0
}

// IsValid reports whether a primary record can describe an entry.
func (r *Record) IsValid() bool {
	if r.IsLFN() {
		return false
	}
	if r.HasFlag(akaifat.AttrDirectory | akaifat.AttrVolumeId) {
		return false
	}
	return r.ShortName().String() != ""
}

func (r *Record) StartCluster() uint32 {
	cluster := uint32(binary.LittleEndian.Uint16(r.data[offsetClusterLow:]))
	if r.fat32 {
		cluster |= uint32(binary.LittleEndian.Uint16(r.data[offsetClusterHigh:])) << 16
	}
	return cluster
}

func (r *Record) SetStartCluster(cluster uint32) {
	binary.LittleEndian.PutUint16(r.data[offsetClusterLow:], uint16(cluster))
	if r.fat32 {
		binary.LittleEndian.PutUint16(r.data[offsetClusterHigh:], uint16(cluster>>16))
	}
	r.dirty = true
}

func (r *Record) Length() uint32 {
	return binary.LittleEndian.Uint32(r.data[offsetLength:])
}

func (r *Record) SetLength(length uint32) {
	binary.LittleEndian.PutUint32(r.data[offsetLength:], length)
	r.dirty = true
}

func (r *Record) WriteTime() time.Time {
	t := binary.LittleEndian.Uint16(r.data[offsetWriteTime:])
	d := binary.LittleEndian.Uint16(r.data[offsetWriteDate:])
	return time.Date(1980+int(d>>9), time.Month(d>>5&0x0F), int(d&0x1F),
		int(t>>11), int(t>>5&0x3F), int(t&0x1F)*2, 0, time.Local)
}

// SetWriteTime stores t with the two second resolution of the format.
func (r *Record) SetWriteTime(t time.Time) {
	if t.Year() < 1980 {
		t = time.Date(1980, 1, 1, 0, 0, 0, 0, time.Local)
	}
	tm := uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
	dt := uint16(t.Year()-1980)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
	binary.LittleEndian.PutUint16(r.data[offsetWriteTime:], tm)
	binary.LittleEndian.PutUint16(r.data[offsetWriteDate:], dt)
	r.dirty = true
}

func (r *Record) ShortName() ShortName {
	return parseShortName(r.data[:11])
}

func (r *Record) SetShortName(sn ShortName) {
	sn.write(r.data[:11])
	r.dirty = true
}

// AkaiPart returns the vendor field stored in the create time slots.
func (r *Record) AkaiPart() AkaiPart {
	return ParseAkaiPart(r.data[:])
}

func (r *Record) SetAkaiPart(part AkaiPart) {
	part.Write(r.data[:])
	r.dirty = true
}

// LFNPart returns the UTF-16 units stored in a long name record, up to
// the first NUL.
func (r *Record) LFNPart() []uint16 {
	var part []uint16
	for _, off := range lfnCharOffsets {
		c := binary.LittleEndian.Uint16(r.data[off:])
		if c == 0 {
			break
		}
		part = append(part, c)
	}
	return part
}

func (r *Record) LFNOrdinal() uint8 {
	return r.data[0] &^ lfnLastFragment
}

func (r *Record) LFNChecksum() uint8 {
	return r.data[offsetLFNChecksum]
}

// newLFNRecord builds continuation record ordinal (1-based) holding the
// given characters. Unused slots after the terminating NUL are 0xFFFF.
func newLFNRecord(ordinal int, last bool, chars []uint16, checksum uint8) *Record {
	r := &Record{dirty: true}
	r.data[0] = byte(ordinal)
	if last {
		r.data[0] |= lfnLastFragment
	}
	r.data[offsetAttr] = byte(akaifat.AttrLongName)
	r.data[offsetLFNChecksum] = checksum
	for i, off := range lfnCharOffsets {
		var c uint16
		switch {
		case i < len(chars):
			c = chars[i]
		case i == len(chars):
			c = 0
		default:
			c = 0xFFFF
		}
		binary.LittleEndian.PutUint16(r.data[off:], c)
	}
	return r
}
