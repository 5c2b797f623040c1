package image

import (
	"github.com/rstms/akaifat/fat"
	log "github.com/sirupsen/logrus"
)

// RewriteImage copies the tree of srcFile into a freshly formatted
// dstFile, keeping the volume label, OEM name and entry attributes. A
// zero fatType or size keeps the one of the source.
func RewriteImage(dstFile, srcFile string, fatType int, size int64) error {
	return RewriteImageWithOptions(dstFile, srcFile, fatType, size, Options{})
}

// RewriteImageWithOptions reads and writes names in options.Names, so
// an Akai image can be rewritten with Akai names intact.
func RewriteImageWithOptions(dstFile, srcFile string, fatType int, size int64, options Options) error {
	src, err := OpenImageWithOptions(srcFile, Options{Names: options.Names, ReadOnly: true})
	if err != nil {
		return Fatal(err)
	}
	defer src.Close()

	volume, err := src.VolumeLabel()
	if err != nil {
		return Fatal(err)
	}
	oem, err := src.OEMName()
	if err != nil {
		return Fatal(err)
	}
	if fatType == 0 {
		fatType, err = src.FATType()
		if err != nil {
			return Fatal(err)
		}
	}
	if size == 0 {
		size = src.disk.Size()
	}
	if fatType != int(fat.FAT32) {
		fatType = fatTypeForSize(fatType, size)
	}

	records, err := src.ScanFiles()
	if err != nil {
		return Fatal(err)
	}
	log.WithFields(log.Fields{
		"src":     srcFile,
		"dst":     dstFile,
		"records": len(records),
		"fat":     fatType,
	}).Debug("rewriting image")

	dst, err := CreateImageWithOptions(dstFile, volume, oem, fatType, size, options)
	if err != nil {
		return Fatal(err)
	}
	err = copyTree(dst, src, records)
	if err != nil {
		dst.Close()
		return Fatal(err)
	}
	err = dst.Close()
	if err != nil {
		return Fatal(err)
	}
	return nil
}
