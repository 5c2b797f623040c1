package main

import (
	"testing"

	"github.com/rstms/akaifat"
	"github.com/rstms/akaifat/image"
	"github.com/stretchr/testify/require"
)

func TestParseAttrChanges(t *testing.T) {
	changes, err := parseAttrChanges([]string{"+h", "-rS"})
	require.Nil(t, err)
	require.Equal(t, map[akaifat.DirectoryAttr]bool{
		akaifat.AttrHidden:   true,
		akaifat.AttrReadOnly: false,
		akaifat.AttrSystem:   false,
	}, changes)

	for _, arg := range []string{"h", "+", "+x", "*a"} {
		_, err = parseAttrChanges([]string{arg})
		require.Error(t, err, arg)
	}
}

func TestFormatAttr(t *testing.T) {
	require.Equal(t, "----", formatAttr(0))
	require.Equal(t, "r--a", formatAttr(akaifat.AttrReadOnly|akaifat.AttrArchive))
	require.Equal(t, "-hs-", formatAttr(akaifat.AttrHidden|akaifat.AttrSystem|akaifat.AttrDirectory))
}

func TestListingColumns(t *testing.T) {
	record := image.FileRecord{Name: "/KICK.WAV", Size: 2048, Archive: true}
	require.Equal(t, "----a", attrString(record))
	require.Equal(t, "2.048kB", sizeString(record))

	dir := image.FileRecord{Name: "/PROGRAMS", Dir: true, Hidden: true}
	require.Equal(t, "d-h--", attrString(dir))
	require.Equal(t, "<DIR>", sizeString(dir))
}
