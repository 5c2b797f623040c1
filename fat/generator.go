package fat

import (
	"strconv"
	"strings"

	"github.com/elliotwutingfeng/asciiset"
	"github.com/pkg/errors"
	"github.com/rstms/akaifat"
)

const (
	akaiBaseLength  = 16
	shortBaseLength = 8
	shortExtLength  = 3
	maxSerial       = 99999
)

// characters DOS accepts in a short name
var validShortChars, _ = asciiset.MakeASCIISet("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_^$~!#%&-{}()@'`")

func isSkipChar(c rune) bool {
	return c == '.' || c == ' '
}

func isValidShortChar(c rune) bool {
	return c < 0x80 && validShortChars.Contains(byte(c))
}

// tidyName uppercases s, drops dots and spaces and replaces every other
// character that is not allowed in a short name with an underscore.
func tidyName(s string) string {
	var sb strings.Builder
	for _, c := range strings.ToUpper(s) {
		switch {
		case isSkipChar(c):
		case isValidShortChar(c):
			sb.WriteRune(c)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

func isCleanName(s string) bool {
	for _, c := range s {
		if isSkipChar(c) || !isValidShortChar(c) {
			return false
		}
	}
	return true
}

// splitLongName strips leading dots, uppercases and splits at the last
// dot into a tidied base and a tidied extension truncated to 3.
func splitLongName(longName string) (string, string, string) {
	full := strings.ToUpper(strings.TrimLeft(longName, "."))
	rawBase, rawExt := splitName(full)
	ext := tidyName(rawExt)
	if len(ext) > shortExtLength {
		ext = ext[:shortExtLength]
	}
	return rawBase, tidyName(rawBase), ext
}

func isUsed(used map[string]struct{}, name string) bool {
	_, ok := used[strings.ToLower(name)]
	return ok
}

// GenerateAkaiName derives a 16.3 name for longName that is not in
// used. Keys of used are lower case BASE.EXT strings; the result always
// contains the dot, even with an empty extension.
func GenerateAkaiName(used map[string]struct{}, longName string) (string, error) {
	_, base, ext := splitLongName(longName)

	// both tests are kept; the first is only reachable for long bases
	if (len(base) > akaiBaseLength && isUsed(used, base[:akaiBaseLength]+"."+ext)) ||
		isUsed(used, base+"."+ext) {
		keep := min(len(base), akaiBaseLength)
		for i := 1; i < maxSerial; i++ {
			serial := "~" + strconv.Itoa(i)
			candidate := base[:min(keep, akaiBaseLength-len(serial))] + serial + "." + ext
			if !isUsed(used, candidate) {
				return candidate, nil
			}
		}
		return "", errors.Wrapf(akaifat.ErrShortNameExhausted, "%q", longName)
	}

	if len(base) > akaiBaseLength {
		base = base[:akaiBaseLength]
	}
	return base + "." + ext, nil
}

// GenerateShortName derives a classic 8.3 name for longName that is not
// in used. Keys of used are lower case names in ShortName.String form.
func GenerateShortName(used map[string]struct{}, longName string) (ShortName, error) {
	rawBase, base, ext := splitLongName(longName)
	forceSuffix := !isCleanName(rawBase)

	if base == "" {
		base = "_"
		forceSuffix = true
	}

	simple := func(b string) string {
		if ext == "" {
			return b
		}
		return b + "." + ext
	}

	if forceSuffix || len(base) > shortBaseLength || isUsed(used, simple(base)) {
		keep := min(len(base), shortBaseLength)
		for i := 1; i < maxSerial; i++ {
			serial := "~" + strconv.Itoa(i)
			candidate := base[:min(keep, shortBaseLength-len(serial))] + serial
			if !isUsed(used, simple(candidate)) {
				return NewShortName(candidate, ext)
			}
		}
		return ShortName{}, errors.Wrapf(akaifat.ErrShortNameExhausted, "%q", longName)
	}
	return NewShortName(base, ext)
}
