package fat

import (
	"strings"

	"github.com/elliotwutingfeng/asciiset"
	"github.com/pkg/errors"
	"github.com/rstms/akaifat"
	"golang.org/x/text/encoding/charmap"
)

// ShortName is the 8.3 name stored in the first 11 bytes of a primary
// record, space padded and in the OEM code page.
type ShortName struct {
	raw [11]byte
}

// bytes that may never appear in a short name
var illegalShortNameChars, _ = asciiset.MakeASCIISet("\"*+,./:;<=>?[\\]|")

var (
	dotName    = ShortName{raw: [11]byte{'.', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}}
	dotDotName = ShortName{raw: [11]byte{'.', '.', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}}
)

// NewShortName validates and encodes a base name and extension.
func NewShortName(base, ext string) (ShortName, error) {
	var sn ShortName
	base = strings.ToUpper(base)
	ext = strings.ToUpper(ext)
	if err := checkShortNamePart(base, "name", 1, 8); err != nil {
		return sn, err
	}
	if err := checkShortNamePart(ext, "extension", 0, 3); err != nil {
		return sn, err
	}
	copy(sn.raw[:], "           ")
	if err := encodeOEM(sn.raw[:8], base); err != nil {
		return sn, err
	}
	if err := encodeOEM(sn.raw[8:], ext); err != nil {
		return sn, err
	}
	if sn.raw[0] == ' ' {
		return sn, errors.Wrap(akaifat.ErrInvalidArgument, "short name may not start with a space")
	}
	return sn, nil
}

// ParseShortName splits "NAME.EXT" at its last dot.
func ParseShortName(nameExt string) (ShortName, error) {
	switch nameExt {
	case ".":
		return dotName, nil
	case "..":
		return dotDotName, nil
	}
	base, ext := splitName(nameExt)
	return NewShortName(base, ext)
}

func checkShortNamePart(s, kind string, minLen, maxLen int) error {
	if len(s) < minLen || len(s) > maxLen {
		return errors.Wrapf(akaifat.ErrInvalidArgument, "short %s %q must have %d to %d characters", kind, s, minLen, maxLen)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x80 && (s[i] < 0x20 || illegalShortNameChars.Contains(s[i])) {
			return errors.Wrapf(akaifat.ErrInvalidArgument, "illegal character %q in short %s %q", s[i], kind, s)
		}
	}
	return nil
}

func encodeOEM(dst []byte, s string) error {
	i := 0
	for _, c := range s {
		b, ok := charmap.CodePage437.EncodeRune(c)
		if !ok {
			return errors.Wrapf(akaifat.ErrInvalidArgument, "character %q has no OEM encoding", c)
		}
		dst[i] = b
		i++
	}
	return nil
}

func decodeOEM(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		sb.WriteRune(charmap.CodePage437.DecodeByte(c))
	}
	return sb.String()
}

func parseShortName(b []byte) ShortName {
	var sn ShortName
	copy(sn.raw[:], b)
	if sn.raw[0] == escapedE5 {
		sn.raw[0] = deletedMarker
	}
	return sn
}

func (sn ShortName) write(dst []byte) {
	copy(dst, sn.raw[:])
	if dst[0] == deletedMarker {
		dst[0] = escapedE5
	}
}

func (sn ShortName) Base() string {
	return strings.TrimRight(decodeOEM(sn.raw[:8]), " ")
}

func (sn ShortName) Ext() string {
	return strings.TrimRight(decodeOEM(sn.raw[8:]), " ")
}

// String returns the name in NAME.EXT form, without the dot when the
// extension is empty.
func (sn ShortName) String() string {
	if ext := sn.Ext(); ext != "" {
		return sn.Base() + "." + ext
	}
	return sn.Base()
}

func (sn ShortName) IsDot() bool {
	return sn == dotName || sn == dotDotName
}

// Checksum is stored in every long name record belonging to the short
// name.
func (sn ShortName) Checksum() uint8 {
	var sum uint8
	for _, b := range sn.raw {
		sum = (sum&1)<<7 + sum>>1 + b
	}
	return sum
}

// splitName splits s at its last dot.
func splitName(s string) (string, string) {
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+1:]
}

// label returns all 11 bytes as one string, the way volume labels are
// stored.
func (sn ShortName) label() string {
	return strings.TrimRight(decodeOEM(sn.raw[:]), " ")
}
