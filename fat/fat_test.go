package fat

import (
	"testing"

	"github.com/rstms/akaifat"
	"github.com/stretchr/testify/require"
)

func newTestFAT(t *testing.T, fatType FATType) *FAT {
	disk := akaifat.NewRamDisk(testDiskSize(fatType))
	err := FormatSuperFloppy(disk, &SuperFloppyConfig{FATType: fatType})
	require.Nil(t, err)
	bs, err := DecodeBootSector(disk)
	require.Nil(t, err)
	return NewFAT(bs)
}

func TestFAT12Packing(t *testing.T) {
	f := newTestFAT(t, FAT12)
	f.set(2, 0xABC)
	f.set(3, 0x123)
	require.Equal(t, []byte{0xBC, 0x3A, 0x12}, f.data[3:6])
	require.Equal(t, uint32(0xABC), f.get(2))
	require.Equal(t, uint32(0x123), f.get(3))

	f.set(2, 0)
	require.Equal(t, uint32(0), f.get(2))
	require.Equal(t, uint32(0x123), f.get(3))
}

func TestFATReservedEntries(t *testing.T) {
	for _, fatType := range []FATType{FAT12, FAT16, FAT32} {
		f := newTestFAT(t, fatType)
		require.True(t, f.IsEOF(f.get(1)), fatType.String())
		require.Equal(t, uint32(0xF8), f.get(0)&0xFF, fatType.String())
	}
}

func TestFATAllocChain(t *testing.T) {
	for _, fatType := range []FATType{FAT12, FAT16, FAT32} {
		f := newTestFAT(t, fatType)
		free := f.FreeClusterCount()

		start, err := f.AllocChain(3)
		require.Nil(t, err)
		chain, err := f.Chain(start)
		require.Nil(t, err)
		require.Len(t, chain, 3)
		require.Equal(t, free-3, f.FreeClusterCount())

		for _, c := range chain {
			require.Nil(t, f.SetFree(c))
		}
		require.Equal(t, free, f.FreeClusterCount())
	}
}

func TestFATAllocResumesAndWraps(t *testing.T) {
	f := newTestFAT(t, FAT16)
	first, err := f.AllocNew()
	require.Nil(t, err)
	require.Equal(t, uint32(2), first)
	second, err := f.AllocNew()
	require.Nil(t, err)
	require.Equal(t, uint32(3), second)

	require.Nil(t, f.SetFree(first))
	next, err := f.AllocNew()
	require.Nil(t, err)
	require.Equal(t, uint32(4), next)

	f.lastAlloc = f.LastCluster()
	wrapped, err := f.AllocNew()
	require.Nil(t, err)
	require.Equal(t, uint32(2), wrapped)
}

func TestFATNoSpace(t *testing.T) {
	f := newTestFAT(t, FAT12)
	_, err := f.AllocChain(int(f.FreeClusterCount()) + 1)
	require.ErrorIs(t, err, akaifat.ErrNoSpace)
}

func TestFATBrokenChains(t *testing.T) {
	f := newTestFAT(t, FAT16)
	start, err := f.AllocChain(2)
	require.Nil(t, err)

	f.set(start+1, start)
	_, err = f.Chain(start)
	require.ErrorIs(t, err, akaifat.ErrMalformedDirectory)

	f.set(start+1, 0)
	_, err = f.Chain(start)
	require.ErrorIs(t, err, akaifat.ErrMalformedDirectory)

	_, err = f.Chain(f.LastCluster() + 1)
	require.ErrorIs(t, err, akaifat.ErrMalformedDirectory)

	chain, err := f.Chain(0)
	require.Nil(t, err)
	require.Empty(t, chain)
}

func TestClusterChainResize(t *testing.T) {
	disk := akaifat.NewRamDisk(testDiskSize(FAT16))
	require.Nil(t, FormatSuperFloppy(disk, &SuperFloppyConfig{FATType: FAT16}))
	bs, err := DecodeBootSector(disk)
	require.Nil(t, err)
	f, err := DecodeFAT(disk, bs, 0)
	require.Nil(t, err)
	free := f.FreeClusterCount()

	chain := NewClusterChain(disk, f, 0, false)
	size, err := chain.SetSize(bs.ClusterSize() + 1)
	require.Nil(t, err)
	require.Equal(t, 2*bs.ClusterSize(), size)
	require.NotZero(t, chain.StartCluster())

	data := []byte("sample data spanning a cluster boundary")
	offset := bs.ClusterSize() - 10
	n, err := chain.WriteAt(data, offset)
	require.Nil(t, err)
	require.Equal(t, len(data), n)

	buf := make([]byte, len(data))
	_, err = chain.ReadAt(buf, offset)
	require.Nil(t, err)
	require.Equal(t, data, buf)

	_, err = chain.ReadAt(buf, 2*bs.ClusterSize())
	require.Error(t, err)

	require.Nil(t, chain.SetChainLength(0))
	require.Zero(t, chain.StartCluster())
	require.Equal(t, free, f.FreeClusterCount())
}
