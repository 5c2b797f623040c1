package fat

import (
	"io"

	"github.com/pkg/errors"
	"github.com/rstms/akaifat"
)

// ClusterChain is a byte stream stored in a linked list of clusters.
type ClusterChain struct {
	device       akaifat.BlockDevice
	fat          *FAT
	startCluster uint32
	readOnly     bool
}

func NewClusterChain(device akaifat.BlockDevice, fat *FAT, startCluster uint32, readOnly bool) *ClusterChain {
	return &ClusterChain{
		device:       device,
		fat:          fat,
		startCluster: startCluster,
		readOnly:     readOnly,
	}
}

func (c *ClusterChain) StartCluster() uint32 {
	return c.startCluster
}

func (c *ClusterChain) clusterSize() int64 {
	return c.fat.bs.ClusterSize()
}

func (c *ClusterChain) devOffset(cluster uint32, within int64) int64 {
	return c.fat.bs.FilesOffset() + int64(cluster-firstCluster)*c.clusterSize() + within
}

// ChainLength returns the number of clusters in the chain.
func (c *ClusterChain) ChainLength() (int, error) {
	chain, err := c.fat.Chain(c.startCluster)
	if err != nil {
		return 0, err
	}
	return len(chain), nil
}

// LengthOnDisk is the capacity of the chain in bytes.
func (c *ClusterChain) LengthOnDisk() (int64, error) {
	n, err := c.ChainLength()
	if err != nil {
		return 0, err
	}
	return int64(n) * c.clusterSize(), nil
}

// SetSize resizes the chain to hold size bytes and returns the new
// capacity, which is rounded up to whole clusters.
func (c *ClusterChain) SetSize(size int64) (int64, error) {
	clusterSize := c.clusterSize()
	n := (size + clusterSize - 1) / clusterSize
	if err := c.SetChainLength(int(n)); err != nil {
		return 0, err
	}
	return n * clusterSize, nil
}

// SetChainLength grows or shrinks the chain to exactly n clusters. A
// length of zero frees the chain and resets the start cluster.
func (c *ClusterChain) SetChainLength(n int) error {
	if c.readOnly {
		return akaifat.ErrReadOnly
	}
	if n < 0 {
		return errors.Wrapf(akaifat.ErrInvalidArgument, "chain length %d", n)
	}
	chain, err := c.fat.Chain(c.startCluster)
	if err != nil {
		return err
	}

	switch {
	case n == len(chain):
		return nil
	case n > len(chain):
		if uint32(n-len(chain)) > c.fat.FreeClusterCount() {
			return akaifat.ErrNoSpace
		}
		if len(chain) == 0 {
			start, err := c.fat.AllocNew()
			if err != nil {
				return err
			}
			c.startCluster = start
			chain = append(chain, start)
		}
		last := chain[len(chain)-1]
		for i := len(chain); i < n; i++ {
			last, err = c.fat.AllocAppend(last)
			if err != nil {
				return err
			}
		}
	default:
		if n == 0 {
			c.startCluster = 0
		} else if err := c.fat.SetEOF(chain[n-1]); err != nil {
			return err
		}
		for _, cluster := range chain[n:] {
			if err := c.fat.SetFree(cluster); err != nil {
				return err
			}
		}
		logger.Debugf("chain: released %d clusters", len(chain)-n)
	}
	return nil
}

// ReadAt reads len(p) bytes starting at offset. Reading past the end of
// the chain returns io.EOF.
func (c *ClusterChain) ReadAt(p []byte, offset int64) (int, error) {
	chain, err := c.fat.Chain(c.startCluster)
	if err != nil {
		return 0, err
	}
	return c.transfer(chain, p, offset, false)
}

// WriteAt writes p at offset, growing the chain when needed.
func (c *ClusterChain) WriteAt(p []byte, offset int64) (int, error) {
	if c.readOnly {
		return 0, akaifat.ErrReadOnly
	}
	if len(p) == 0 {
		return 0, nil
	}
	capacity, err := c.LengthOnDisk()
	if err != nil {
		return 0, err
	}
	if end := offset + int64(len(p)); end > capacity {
		if _, err := c.SetSize(end); err != nil {
			return 0, err
		}
	}
	chain, err := c.fat.Chain(c.startCluster)
	if err != nil {
		return 0, err
	}
	return c.transfer(chain, p, offset, true)
}

func (c *ClusterChain) transfer(chain []uint32, p []byte, offset int64, write bool) (int, error) {
	clusterSize := c.clusterSize()
	done := 0
	for done < len(p) {
		index := (offset + int64(done)) / clusterSize
		if index >= int64(len(chain)) {
			return done, io.EOF
		}
		within := (offset + int64(done)) % clusterSize
		size := min(clusterSize-within, int64(len(p)-done))
		buf := p[done : done+int(size)]
		devOffset := c.devOffset(chain[index], within)
		var err error
		if write {
			_, err = c.device.WriteAt(buf, devOffset)
		} else {
			_, err = c.device.ReadAt(buf, devOffset)
		}
		if err != nil {
			return done, Fatal(err)
		}
		done += int(size)
	}
	return done, nil
}
