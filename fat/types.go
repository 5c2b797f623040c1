package fat

import "fmt"

// FATType is the width of the allocation table entries.
type FATType uint8

const (
	FAT12 FATType = 12
	FAT16 FATType = 16
	FAT32 FATType = 32
)

// Cluster counts above which a volume must use the next wider table.
const (
	maxFAT12Clusters = 4084
	maxFAT16Clusters = 65524
)

// first cluster that can hold data
const firstCluster = 2

func (t FATType) String() string {
	switch t {
	case FAT12, FAT16, FAT32:
		return fmt.Sprintf("FAT%d", uint8(t))
	}
	return fmt.Sprintf("FATType(%d)", uint8(t))
}

func (t FATType) mask() uint32 {
	switch t {
	case FAT12:
		return 0xFFF
	case FAT16:
		return 0xFFFF
	}
	return 0x0FFFFFFF
}

func (t FATType) eofMarker() uint32 {
	return 0x0FFFFFFF & t.mask()
}

func (t FATType) isEOF(v uint32) bool {
	return v >= 0x0FFFFFF8&t.mask()
}

func (t FATType) badCluster() uint32 {
	return 0x0FFFFFF7 & t.mask()
}

// label is the file system type string stored in the boot sector.
func (t FATType) label() string {
	return fmt.Sprintf("%-8s", t.String())
}

// fatBytes returns the table size in bytes needed for n entries.
func (t FATType) fatBytes(n uint32) uint32 {
	switch t {
	case FAT12:
		return (n*3 + 1) / 2
	case FAT16:
		return n * 2
	}
	return n * 4
}
