package fat

import (
	"strconv"
	"testing"

	"github.com/rstms/akaifat"
	"github.com/stretchr/testify/require"
)

func usedSet(names ...string) map[string]struct{} {
	used := make(map[string]struct{}, len(names))
	for _, name := range names {
		used[name] = struct{}{}
	}
	return used
}

func TestGenerateAkaiNameLong(t *testing.T) {
	name, err := GenerateAkaiName(usedSet(), "this is a very long name.data")
	require.Nil(t, err)
	require.Equal(t, "THISISAVERYLONGN.DAT", name)

	name, err = GenerateAkaiName(usedSet("thisisaverylongn.dat"), "this is a very long name.data")
	require.Nil(t, err)
	require.Equal(t, "THISISAVERYLON~1.DAT", name)

	name, err = GenerateAkaiName(usedSet("thisisaverylongn.dat", "thisisaverylon~1.dat"), "this is a very long name.data")
	require.Nil(t, err)
	require.Equal(t, "THISISAVERYLON~2.DAT", name)
}

func TestGenerateAkaiNameIllegalChars(t *testing.T) {
	name, err := GenerateAkaiName(usedSet(), "bad/name:here.ext")
	require.Nil(t, err)
	require.Equal(t, "BAD_NAME_HERE.EXT", name)
}

func TestGenerateAkaiNameNoExtension(t *testing.T) {
	name, err := GenerateAkaiName(usedSet(), "..kick")
	require.Nil(t, err)
	require.Equal(t, "KICK.", name)

	name, err = GenerateAkaiName(usedSet("kick."), "kick")
	require.Nil(t, err)
	require.Equal(t, "KICK~1.", name)
}

// The truncated comparison only matters for bases longer than 16: the
// untruncated name is free but its 16 character prefix is not.
func TestGenerateAkaiNameTruncatedCollision(t *testing.T) {
	long := "ABCDEFGHIJKLMNOPQRS.WAV"

	name, err := GenerateAkaiName(usedSet(), long)
	require.Nil(t, err)
	require.Equal(t, "ABCDEFGHIJKLMNOP.WAV", name)

	name, err = GenerateAkaiName(usedSet("abcdefghijklmnop.wav"), long)
	require.Nil(t, err)
	require.Equal(t, "ABCDEFGHIJKLMN~1.WAV", name)

	// a short base only collides with itself
	name, err = GenerateAkaiName(usedSet("abcdefghijklmnop.wav"), "ABC.WAV")
	require.Nil(t, err)
	require.Equal(t, "ABC.WAV", name)

	name, err = GenerateAkaiName(usedSet("abc.wav"), "abc.wav")
	require.Nil(t, err)
	require.Equal(t, "ABC~1.WAV", name)
}

func TestGenerateAkaiNameIsPure(t *testing.T) {
	used := usedSet("snare.wav", "snare~1.wav")
	first, err := GenerateAkaiName(used, "snare.wav")
	require.Nil(t, err)
	second, err := GenerateAkaiName(used, "snare.wav")
	require.Nil(t, err)
	require.Equal(t, first, second)
	require.Equal(t, "SNARE~2.WAV", first)
	require.Len(t, used, 2)
	require.NotContains(t, used, "snare~2.wav")
}

func TestGenerateAkaiNameExhausted(t *testing.T) {
	used := usedSet("x.wav")
	for i := 1; i < maxSerial; i++ {
		used["x~"+strconv.Itoa(i)+".wav"] = struct{}{}
	}
	_, err := GenerateAkaiName(used, "x.wav")
	require.ErrorIs(t, err, akaifat.ErrShortNameExhausted)
}

func TestGenerateShortName(t *testing.T) {
	sn, err := GenerateShortName(usedSet(), "readme.txt")
	require.Nil(t, err)
	require.Equal(t, "README.TXT", sn.String())

	sn, err = GenerateShortName(usedSet(), "a long file name.text")
	require.Nil(t, err)
	require.Equal(t, "ALONGF~1.TEX", sn.String())

	sn, err = GenerateShortName(usedSet("alongf~1.tex"), "a long file name.text")
	require.Nil(t, err)
	require.Equal(t, "ALONGF~2.TEX", sn.String())

	sn, err = GenerateShortName(usedSet("readme.txt"), "README.TXT")
	require.Nil(t, err)
	require.Equal(t, "README~1.TXT", sn.String())

	sn, err = GenerateShortName(usedSet(), "Makefile")
	require.Nil(t, err)
	require.Equal(t, "MAKEFILE", sn.String())
}
