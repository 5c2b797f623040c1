package fat

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
	"github.com/rstms/akaifat"
)

const bootSectorSize = 512

const (
	extendedBootSignature = 0x29
	fat16ExtendedOffset   = 0x24
	fat32ExtendedOffset   = 0x40
)

// BootSectorCommon holds the BIOS parameter block shared by all FAT
// variants plus the extended fields of FAT16 and FAT32 volumes.
type BootSectorCommon struct {
	OEMName             string
	BytesPerSector      uint16
	SectorsPerCluster   uint8
	ReservedSectorCount uint16
	NumFATs             uint8
	RootEntryCount      uint16
	TotalSectors        uint32
	Media               uint8
	SectorsPerFAT       uint32
	SectorsPerTrack     uint16
	NumHeads            uint16
	HiddenSectors       uint32

	DriveNumber    uint8
	VolumeID       uint32
	VolumeLabel    string
	FileSystemType string

	// FAT32 only
	RootCluster      uint32
	FSInfoSector     uint16
	BackupBootSector uint16

	fatType FATType
	raw     [bootSectorSize]byte
}

// DecodeBootSector reads and validates the boot sector at the start of
// the device.
func DecodeBootSector(device akaifat.BlockDevice) (*BootSectorCommon, error) {
	bs := new(BootSectorCommon)
	if _, err := device.ReadAt(bs.raw[:], 0); err != nil {
		return nil, Fatal(err)
	}
	if err := bs.decode(); err != nil {
		return nil, err
	}
	return bs, nil
}

func (bs *BootSectorCommon) decode() error {
	data := bs.raw[:]
	if data[510] != 0x55 || data[511] != 0xAA {
		return errors.Wrap(akaifat.ErrInvalidArgument, "missing boot sector signature")
	}

	bs.OEMName = strings.TrimRight(string(data[3:11]), " \x00")
	bs.BytesPerSector = binary.LittleEndian.Uint16(data[0x0B:])
	bs.SectorsPerCluster = data[0x0D]
	bs.ReservedSectorCount = binary.LittleEndian.Uint16(data[0x0E:])
	bs.NumFATs = data[0x10]
	bs.RootEntryCount = binary.LittleEndian.Uint16(data[0x11:])
	bs.TotalSectors = uint32(binary.LittleEndian.Uint16(data[0x13:]))
	bs.Media = data[0x15]
	bs.SectorsPerFAT = uint32(binary.LittleEndian.Uint16(data[0x16:]))
	bs.SectorsPerTrack = binary.LittleEndian.Uint16(data[0x18:])
	bs.NumHeads = binary.LittleEndian.Uint16(data[0x1A:])
	bs.HiddenSectors = binary.LittleEndian.Uint32(data[0x1C:])
	if bs.TotalSectors == 0 {
		bs.TotalSectors = binary.LittleEndian.Uint32(data[0x20:])
	}

	if bs.BytesPerSector == 0 || bs.BytesPerSector%32 != 0 {
		return errors.Wrapf(akaifat.ErrInvalidArgument, "invalid bytes per sector %d", bs.BytesPerSector)
	}
	if bs.SectorsPerCluster == 0 || bs.NumFATs == 0 {
		return errors.Wrap(akaifat.ErrInvalidArgument, "invalid cluster or FAT count")
	}

	ext := fat16ExtendedOffset
	if bs.SectorsPerFAT == 0 {
		bs.SectorsPerFAT = binary.LittleEndian.Uint32(data[0x24:])
		bs.RootCluster = binary.LittleEndian.Uint32(data[0x2C:])
		bs.FSInfoSector = binary.LittleEndian.Uint16(data[0x30:])
		bs.BackupBootSector = binary.LittleEndian.Uint16(data[0x32:])
		ext = fat32ExtendedOffset
		bs.fatType = FAT32
	}
	bs.DriveNumber = data[ext]
	if data[ext+2] == extendedBootSignature {
		bs.VolumeID = binary.LittleEndian.Uint32(data[ext+3:])
		bs.VolumeLabel = strings.TrimRight(string(data[ext+7:ext+18]), " \x00")
		bs.FileSystemType = strings.TrimRight(string(data[ext+18:ext+26]), " \x00")
	}

	if bs.fatType != FAT32 {
		switch clusters := bs.DataClusterCount(); {
		case clusters > maxFAT16Clusters:
			bs.fatType = FAT32
		case clusters > maxFAT12Clusters:
			bs.fatType = FAT16
		default:
			bs.fatType = FAT12
		}
	}
	return nil
}

// Bytes serializes the boot sector, preserving any boot code and
// fields this package does not interpret.
func (bs *BootSectorCommon) Bytes() []byte {
	data := bs.raw
	copy(data[3:11], padded(bs.OEMName, 8))
	binary.LittleEndian.PutUint16(data[0x0B:], bs.BytesPerSector)
	data[0x0D] = bs.SectorsPerCluster
	binary.LittleEndian.PutUint16(data[0x0E:], bs.ReservedSectorCount)
	data[0x10] = bs.NumFATs
	binary.LittleEndian.PutUint16(data[0x11:], bs.RootEntryCount)
	if bs.TotalSectors <= 0xFFFF && bs.fatType != FAT32 {
		binary.LittleEndian.PutUint16(data[0x13:], uint16(bs.TotalSectors))
		binary.LittleEndian.PutUint32(data[0x20:], 0)
	} else {
		binary.LittleEndian.PutUint16(data[0x13:], 0)
		binary.LittleEndian.PutUint32(data[0x20:], bs.TotalSectors)
	}
	data[0x15] = bs.Media
	binary.LittleEndian.PutUint16(data[0x18:], bs.SectorsPerTrack)
	binary.LittleEndian.PutUint16(data[0x1A:], bs.NumHeads)
	binary.LittleEndian.PutUint32(data[0x1C:], bs.HiddenSectors)

	ext := fat16ExtendedOffset
	if bs.fatType == FAT32 {
		binary.LittleEndian.PutUint16(data[0x16:], 0)
		binary.LittleEndian.PutUint32(data[0x24:], bs.SectorsPerFAT)
		binary.LittleEndian.PutUint32(data[0x2C:], bs.RootCluster)
		binary.LittleEndian.PutUint16(data[0x30:], bs.FSInfoSector)
		binary.LittleEndian.PutUint16(data[0x32:], bs.BackupBootSector)
		ext = fat32ExtendedOffset
	} else {
		binary.LittleEndian.PutUint16(data[0x16:], uint16(bs.SectorsPerFAT))
	}
	data[ext] = bs.DriveNumber
	data[ext+2] = extendedBootSignature
	binary.LittleEndian.PutUint32(data[ext+3:], bs.VolumeID)
	copy(data[ext+7:ext+18], padded(bs.VolumeLabel, 11))
	copy(data[ext+18:ext+26], padded(bs.FileSystemType, 8))

	data[510] = 0x55
	data[511] = 0xAA
	return data[:]
}

// WriteToDevice writes the boot sector and, on FAT32, its backup copy.
func (bs *BootSectorCommon) WriteToDevice(device akaifat.BlockDevice) error {
	data := bs.Bytes()
	copy(bs.raw[:], data)
	if _, err := device.WriteAt(data, 0); err != nil {
		return Fatal(err)
	}
	if bs.fatType == FAT32 && bs.BackupBootSector != 0 {
		offset := int64(bs.BackupBootSector) * int64(bs.BytesPerSector)
		if _, err := device.WriteAt(data, offset); err != nil {
			return Fatal(err)
		}
	}
	return nil
}

func (bs *BootSectorCommon) FATType() FATType {
	return bs.fatType
}

func (bs *BootSectorCommon) ClusterSize() int64 {
	return int64(bs.BytesPerSector) * int64(bs.SectorsPerCluster)
}

func (bs *BootSectorCommon) rootDirSectors() uint32 {
	bps := uint32(bs.BytesPerSector)
	return (uint32(bs.RootEntryCount)*RecordSize + bps - 1) / bps
}

// DataClusterCount is the number of clusters available for file data.
func (bs *BootSectorCommon) DataClusterCount() uint32 {
	meta := uint32(bs.ReservedSectorCount) + uint32(bs.NumFATs)*bs.SectorsPerFAT + bs.rootDirSectors()
	if bs.TotalSectors <= meta {
		return 0
	}
	return (bs.TotalSectors - meta) / uint32(bs.SectorsPerCluster)
}

// FATOffset returns the device offset of FAT copy n.
func (bs *BootSectorCommon) FATOffset(n int) int64 {
	sector := int64(bs.ReservedSectorCount) + int64(n)*int64(bs.SectorsPerFAT)
	return sector * int64(bs.BytesPerSector)
}

// RootDirOffset is the device offset of the fixed FAT12/16 root
// directory region.
func (bs *BootSectorCommon) RootDirOffset() int64 {
	return bs.FATOffset(int(bs.NumFATs))
}

// FilesOffset is the device offset of cluster 2.
func (bs *BootSectorCommon) FilesOffset() int64 {
	return bs.RootDirOffset() + int64(bs.rootDirSectors())*int64(bs.BytesPerSector)
}

func padded(s string, n int) []byte {
	b := bytes.Repeat([]byte{' '}, n)
	copy(b, s)
	return b
}
