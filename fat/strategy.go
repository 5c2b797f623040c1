package fat

import (
	"strings"
	"unicode/utf16"

	"github.com/pkg/errors"
	"github.com/rstms/akaifat"
)

// NameStrategy maps between logical entry names and the records that
// store them.
type NameStrategy interface {
	// Decode returns the logical name of a run of records ending in its
	// primary record.
	Decode(run []*Record) string

	// Encode writes name into primary and returns the complete run that
	// stores it. used holds the lower case EncodedKey of every other
	// entry in the directory.
	Encode(name string, primary *Record, used map[string]struct{}) ([]*Record, error)

	// EncodedKey is the lower case on-disk identity of a primary record,
	// used to keep generated names unique.
	EncodedKey(primary *Record) string
}

// NameFormat selects the name strategy of a file system.
type NameFormat int

const (
	// StandardNames uses 8.3 short names with long name records.
	StandardNames NameFormat = iota
	// AkaiNames composes 16.3 names from the short name and the Akai
	// vendor field.
	AkaiNames
)

func (f NameFormat) String() string {
	switch f {
	case StandardNames:
		return "standard"
	case AkaiNames:
		return "akai"
	}
	return "unknown"
}

// ParseNameFormat accepts "standard", "lfn" or "akai".
func ParseNameFormat(s string) (NameFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "lfn":
		return StandardNames, nil
	case "akai":
		return AkaiNames, nil
	}
	return StandardNames, errors.Wrapf(akaifat.ErrInvalidArgument, "unknown name format %q", s)
}

func (f NameFormat) strategy() NameStrategy {
	if f == AkaiNames {
		return akaiNames{}
	}
	return standardNames{}
}

type standardNames struct{}

func (standardNames) Decode(run []*Record) string {
	primary := run[len(run)-1]
	if len(run) == 1 {
		return primary.ShortName().String()
	}
	var units []uint16
	for i := len(run) - 2; i >= 0; i-- {
		units = append(units, run[i].LFNPart()...)
	}
	return strings.TrimSpace(string(utf16.Decode(units)))
}

func (standardNames) Encode(name string, primary *Record, used map[string]struct{}) ([]*Record, error) {
	units := utf16.Encode([]rune(name))
	if len(units) > maxLongNameLength {
		return nil, errors.Wrapf(akaifat.ErrInvalidArgument, "name longer than %d characters: %q", maxLongNameLength, name)
	}
	sn, err := GenerateShortName(used, name)
	if err != nil {
		return nil, err
	}
	primary.SetShortName(sn)
	if sn.String() == name {
		return []*Record{primary}, nil
	}

	count := (len(units) + lfnCharsPerRecord - 1) / lfnCharsPerRecord
	checksum := sn.Checksum()
	run := make([]*Record, 0, count+1)
	// the highest ordinal comes first on disk
	for ordinal := count; ordinal >= 1; ordinal-- {
		start := (ordinal - 1) * lfnCharsPerRecord
		end := min(start+lfnCharsPerRecord, len(units))
		run = append(run, newLFNRecord(ordinal, ordinal == count, units[start:end], checksum))
	}
	return append(run, primary), nil
}

func (standardNames) EncodedKey(primary *Record) string {
	return strings.ToLower(primary.ShortName().String())
}

type akaiNames struct{}

func (akaiNames) Decode(run []*Record) string {
	primary := run[len(run)-1]
	sn := primary.ShortName()
	if sn.IsDot() {
		return sn.String()
	}
	name := strings.TrimSpace(sn.Base()) + primary.AkaiPart().Trimmed()
	if ext := strings.TrimSpace(sn.Ext()); ext != "" {
		name += "." + ext
	}
	return name
}

// Encode stores the name as given when it fits the 16.3 layout and its
// on-disk form is still free. Otherwise a generated name is stored.
func (a akaiNames) Encode(name string, primary *Record, used map[string]struct{}) ([]*Record, error) {
	stored := strings.ToUpper(name)
	base, ext := splitName(stored)
	if !akaiFits(base, ext) || isUsed(used, base+"."+ext) {
		// the generator sees only characters the vendor field can hold
		_, tidy, tidyExt := splitLongName(name)
		if tidy == "" {
			return nil, errors.Wrapf(akaifat.ErrInvalidArgument, "no usable characters in %q", name)
		}
		generated, err := GenerateAkaiName(used, akaiTail(tidy)+"."+tidyExt)
		if err != nil {
			return nil, err
		}
		base, ext = splitName(generated)
	}

	head, tail := base, ""
	if len(head) > shortBaseLength {
		head, tail = base[:shortBaseLength], base[shortBaseLength:]
	}
	sn, err := NewShortName(head, ext)
	if err != nil {
		return nil, err
	}
	part, err := NewAkaiPart(tail)
	if err != nil {
		return nil, err
	}
	primary.SetShortName(sn)
	primary.SetAkaiPart(part)
	return []*Record{primary}, nil
}

// akaiFits reports whether an uppercased name can be stored unchanged.
func akaiFits(base, ext string) bool {
	if base == "" || len(base) > akaiBaseLength || len(ext) > shortExtLength {
		return false
	}
	if !isCleanName(base) || !isCleanName(ext) {
		return false
	}
	for i := shortBaseLength; i < len(base); i++ {
		if !akaiPartChars.Contains(base[i]) {
			return false
		}
	}
	return true
}

// akaiTail replaces characters the vendor field cannot hold.
func akaiTail(base string) string {
	b := []byte(base)
	for i := shortBaseLength; i < len(b); i++ {
		if !akaiPartChars.Contains(b[i]) {
			b[i] = '_'
		}
	}
	return string(b)
}

func (akaiNames) EncodedKey(primary *Record) string {
	sn := primary.ShortName()
	return strings.ToLower(strings.TrimSpace(sn.Base()) + primary.AkaiPart().Trimmed() + "." + strings.TrimSpace(sn.Ext()))
}
