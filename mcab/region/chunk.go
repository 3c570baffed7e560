package region

import (
	"github.com/ZanzyTHEbar/mca-batch/mcab/nbtree"

	"github.com/pkg/errors"
)

// Chunk is one occupied slot of a region. The NBT tree is decoded on demand
// through Tree and memoized, so chunks a filter never looks at are never parsed.
type Chunk struct {
	index       int
	compression Compression
	timestamp   uint32

	// location in the source container, zero for chunks added in memory
	offset  uint32
	sectors uint32

	// block is the on-disk payload (still compressed) and data the NBT bytes.
	block []byte
	data  []byte

	tree    nbtree.Compound
	treeErr error
	parsed  bool
	dirty   bool
}

// NewChunk builds a chunk from an in-memory tree, as used when a region is
// assembled rather than decoded.
func NewChunk(index int, compression Compression, timestamp uint32, tree nbtree.Compound) *Chunk {
	return &Chunk{
		index:       index,
		compression: compression,
		timestamp:   timestamp,
		tree:        tree,
		parsed:      true,
		dirty:       true,
	}
}

// Index is the slot index of the chunk inside its region.
func (c *Chunk) Index() int { return c.index }

// LocalPos is the chunk position inside its region.
func (c *Chunk) LocalPos() (x, z int) { return LocalPos(c.index) }

func (c *Chunk) Compression() Compression { return c.compression }

// Timestamp is the last-modified time from the region index, in epoch seconds.
func (c *Chunk) Timestamp() uint32 { return c.timestamp }

// Location returns the sector offset and count the chunk was read from.
func (c *Chunk) Location() (offset, sectors uint32) { return c.offset, c.sectors }

// Data returns the uncompressed NBT bytes as read from disk.
func (c *Chunk) Data() []byte { return c.data }

// Tree decodes the chunk's NBT on first use. A failure is remembered and
// returned on every later call.
func (c *Chunk) Tree() (nbtree.Compound, error) {
	if !c.parsed {
		c.parsed = true
		c.tree, c.treeErr = nbtree.Parse(c.data)
		if c.treeErr != nil {
			c.treeErr = errors.Wrapf(c.treeErr, "chunk %d", c.index)
		}
	}
	return c.tree, c.treeErr
}

// Parsed reports whether Tree has already been called.
func (c *Chunk) Parsed() bool { return c.parsed }

// MarkDirty flags the tree as modified so encoding re-serializes it.
func (c *Chunk) MarkDirty() { c.dirty = true }

// Dirty reports whether the chunk must be re-serialized on encode.
func (c *Chunk) Dirty() bool { return c.dirty }

// encodedBlock returns the payload to write: the original bytes for untouched
// chunks, otherwise the re-marshalled and re-compressed tree.
func (c *Chunk) encodedBlock() ([]byte, Compression, error) {
	if !c.dirty && c.block != nil {
		return c.block, c.compression, nil
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, 0, err
	}
	raw, err := nbtree.Marshal(tree)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "chunk %d", c.index)
	}
	comp := c.compression
	if !comp.Supported() {
		comp = CompressionZlib
	}
	block, err := comp.compress(raw)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "chunk %d", c.index)
	}
	return block, comp, nil
}
