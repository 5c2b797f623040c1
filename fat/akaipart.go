package fat

import (
	"strings"

	"github.com/elliotwutingfeng/asciiset"
	"github.com/pkg/errors"
	"github.com/rstms/akaifat"
)

// AkaiPartLength is the size of the vendor name field.
const AkaiPartLength = 8

var akaiPartChars, _ = asciiset.MakeASCIISet(" !#$%&'()-0123456789@ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz{}~")

// AkaiPart is the 8-byte field Akai samplers keep at offset 12 of a
// primary record, holding characters 9 to 16 of the entry's name.
type AkaiPart [AkaiPartLength]byte

var blankAkaiPart = AkaiPart{' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}

// NewAkaiPart pads value with spaces. Only values longer than the field
// are rejected; a field holding characters outside the sampler's set
// reads back blank.
func NewAkaiPart(value string) (AkaiPart, error) {
	if len(value) > AkaiPartLength {
		return blankAkaiPart, errors.Wrapf(akaifat.ErrInvalidArgument, "akai part %q longer than %d", value, AkaiPartLength)
	}
	part := blankAkaiPart
	copy(part[:], value)
	return part, nil
}

// ParseAkaiPart reads the field from a record. A field holding any
// character outside the accepted set reads as all spaces.
func ParseAkaiPart(record []byte) AkaiPart {
	var part AkaiPart
	copy(part[:], record[offsetAkaiPart:offsetAkaiPart+AkaiPartLength])
	for _, b := range part {
		if !akaiPartChars.Contains(b) {
			return blankAkaiPart
		}
	}
	return part
}

func (p AkaiPart) Write(record []byte) {
	copy(record[offsetAkaiPart:], p[:])
}

// String returns the raw, space padded content.
func (p AkaiPart) String() string {
	return string(p[:])
}

func (p AkaiPart) Trimmed() string {
	return strings.TrimSpace(string(p[:]))
}

func (p AkaiPart) Equal(other AkaiPart) bool {
	return p == other
}
