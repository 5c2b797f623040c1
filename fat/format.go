package fat

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rstms/akaifat"
)

const (
	mediumDescriptorHD     = 0xF8
	defaultFATCount        = 2
	defaultSectorsPerTrack = 32
	defaultHeads           = 64
	defaultOEMName         = "akaifat"
	maxRootEntries         = 512
	fat32ReservedSectors   = 32
	fat32FSInfoSector      = 1
	fat32BackupBootSector  = 6
	maxFAT12ClusterBytes   = 4096
)

// SuperFloppyConfig describes a volume without a partition table. Zero
// values select defaults derived from the device size.
type SuperFloppyConfig struct {
	FATType FATType
	Label   string
	OEMName string
	// RootEntries sizes the fixed FAT12/16 root directory. It is
	// ignored for FAT32.
	RootEntries int
}

// FATTypeForSize picks the table width the way DOS tools do for a
// device of the given size.
func FATTypeForSize(size int64) FATType {
	mb := size / (1024 * 1024)
	switch {
	case mb < 5:
		return FAT12
	case mb < 512:
		return FAT16
	}
	return FAT32
}

// FormatSuperFloppy writes an empty FAT filesystem covering the whole
// device.
func FormatSuperFloppy(device akaifat.BlockDevice, config *SuperFloppyConfig) error {
	if device.IsReadOnly() {
		return akaifat.ErrReadOnly
	}
	if config == nil {
		config = &SuperFloppyConfig{}
	}
	fatType := config.FATType
	if fatType == 0 {
		fatType = FATTypeForSize(device.Size())
	}
	oem := config.OEMName
	if oem == "" {
		oem = defaultOEMName
	}
	if len(oem) > 8 {
		return errors.Wrapf(akaifat.ErrInvalidArgument, "OEM name %q longer than 8", oem)
	}
	if len(config.Label) > 11 {
		return errors.Wrapf(akaifat.ErrInvalidArgument, "volume label %q longer than 11", config.Label)
	}

	bps := device.SectorSize()
	totalSectors := device.Size() / int64(bps)
	if totalSectors > 0xFFFFFFFF {
		return errors.Wrap(akaifat.ErrInvalidArgument, "device too large")
	}

	spc, err := sectorsPerCluster(fatType, totalSectors, bps)
	if err != nil {
		return err
	}

	id := uuid.New()
	bs := &BootSectorCommon{
		OEMName:             oem,
		BytesPerSector:      uint16(bps),
		SectorsPerCluster:   uint8(spc),
		ReservedSectorCount: 1,
		NumFATs:             defaultFATCount,
		TotalSectors:        uint32(totalSectors),
		Media:               mediumDescriptorHD,
		SectorsPerTrack:     defaultSectorsPerTrack,
		NumHeads:            defaultHeads,
		DriveNumber:         0x80,
		VolumeID:            binary.LittleEndian.Uint32(id[:4]),
		VolumeLabel:         config.Label,
		FileSystemType:      fatType.label(),
		fatType:             fatType,
	}
	if bs.VolumeLabel == "" {
		bs.VolumeLabel = "NO NAME"
	}
	bs.raw[0], bs.raw[1], bs.raw[2] = 0xEB, 0x3C, 0x90

	if fatType == FAT32 {
		bs.ReservedSectorCount = fat32ReservedSectors
		bs.FSInfoSector = fat32FSInfoSector
		bs.BackupBootSector = fat32BackupBootSector
		bs.raw[1] = 0x58
	} else {
		entries := config.RootEntries
		if entries == 0 {
			entries = rootDirectorySize(bps, totalSectors)
			entries -= entries % (bps / RecordSize)
		}
		if entries <= 0 || entries > 0xFFFF || entries%(bps/RecordSize) != 0 {
			return errors.Wrapf(akaifat.ErrInvalidArgument, "root directory of %d entries", entries)
		}
		bs.RootEntryCount = uint16(entries)
	}
	bs.SectorsPerFAT = sectorsPerFAT(bs, fatType)

	switch clusters := bs.DataClusterCount(); {
	case fatType == FAT12 && clusters > maxFAT12Clusters,
		fatType == FAT16 && (clusters <= maxFAT12Clusters || clusters > maxFAT16Clusters),
		fatType == FAT32 && clusters <= maxFAT16Clusters:
		return errors.Wrapf(akaifat.ErrInvalidArgument, "%d clusters do not fit %s", clusters, fatType)
	}

	fat := NewFAT(bs)
	if fatType == FAT32 {
		// the root directory chain is allocated first, at cluster 2
		bs.RootCluster, err = fat.AllocNew()
		if err != nil {
			return err
		}
		zero := make([]byte, bs.ClusterSize())
		if _, err := NewClusterChain(device, fat, bs.RootCluster, false).WriteAt(zero, 0); err != nil {
			return err
		}
		if err := writeFSInfo(device, bs, fat); err != nil {
			return err
		}
	} else {
		zero := make([]byte, int(bs.RootEntryCount)*RecordSize)
		if _, err := device.WriteAt(zero, bs.RootDirOffset()); err != nil {
			return Fatal(err)
		}
	}

	if err := fat.WriteToDevice(device); err != nil {
		return err
	}
	if err := bs.WriteToDevice(device); err != nil {
		return err
	}

	if config.Label != "" {
		root, err := openRootStore(device, fat, false)
		if err != nil {
			return err
		}
		if err := root.SetLabel(config.Label); err != nil {
			return err
		}
		if err := root.Flush(); err != nil {
			return err
		}
		if err := fat.WriteToDevice(device); err != nil {
			return err
		}
	}

	logger.Debugf("format: %s, %d sectors, %d sectors per cluster, %d sectors per FAT",
		fatType, totalSectors, spc, bs.SectorsPerFAT)
	return device.Flush()
}

func sectorsPerCluster(fatType FATType, sectors int64, bps int) (int, error) {
	switch fatType {
	case FAT12:
		spc := 1
		for sectors/int64(spc) > maxFAT12Clusters {
			spc *= 2
			if spc*bps > maxFAT12ClusterBytes {
				return 0, errors.Wrap(akaifat.ErrInvalidArgument, "disk too large for FAT12")
			}
		}
		return spc, nil
	case FAT16:
		switch {
		case sectors <= 8400:
			return 0, errors.Wrapf(akaifat.ErrInvalidArgument, "disk too small for FAT16 (%d sectors)", sectors)
		case sectors > 4194304:
			return 0, errors.Wrap(akaifat.ErrInvalidArgument, "disk too large for FAT16")
		case sectors > 2097152:
			return 64, nil
		case sectors > 1048576:
			return 32, nil
		case sectors > 524288:
			return 16, nil
		case sectors > 262144:
			return 8, nil
		case sectors > 32680:
			return 4, nil
		}
		return 2, nil
	case FAT32:
		switch {
		case sectors <= 66600:
			return 0, errors.Wrapf(akaifat.ErrInvalidArgument, "disk too small for FAT32 (%d sectors)", sectors)
		case sectors > 67108864:
			return 64, nil
		case sectors > 33554432:
			return 32, nil
		case sectors > 16777216:
			return 16, nil
		case sectors > 532480:
			return 8, nil
		}
		return 1, nil
	}
	return 0, errors.Wrapf(akaifat.ErrInvalidArgument, "unknown FAT type %d", fatType)
}

func rootDirectorySize(bps int, sectors int64) int {
	total := int64(bps) * sectors
	if total >= maxRootEntries*5*RecordSize {
		return maxRootEntries
	}
	return int(total / (5 * RecordSize))
}

func sectorsPerFAT(bs *BootSectorCommon, fatType FATType) uint32 {
	bps := int64(bs.BytesPerSector)
	rootDirSectors := (int64(bs.RootEntryCount)*RecordSize + bps - 1) / bps
	tmp1 := int64(bs.TotalSectors) - (int64(bs.ReservedSectorCount) + rootDirSectors)
	tmp2 := 256*int64(bs.SectorsPerCluster) + int64(bs.NumFATs)
	if fatType == FAT32 {
		tmp2 /= 2
	}
	return uint32((tmp1 + tmp2 - 1) / tmp2)
}

func writeFSInfo(device akaifat.BlockDevice, bs *BootSectorCommon, fat *FAT) error {
	data := make([]byte, bs.BytesPerSector)
	binary.LittleEndian.PutUint32(data[0:], 0x41615252)
	binary.LittleEndian.PutUint32(data[484:], 0x61417272)
	binary.LittleEndian.PutUint32(data[488:], fat.FreeClusterCount())
	binary.LittleEndian.PutUint32(data[492:], fat.lastAlloc)
	binary.LittleEndian.PutUint32(data[508:], 0xAA550000)
	if _, err := device.WriteAt(data, int64(bs.FSInfoSector)*int64(bs.BytesPerSector)); err != nil {
		return Fatal(err)
	}
	return nil
}
