package region

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Encode serializes the region.
//
// With compact set, chunks are written back to back in ascending slot order
// directly after the header and the file ends at the last used sector. Space
// held by removed or shrunk chunks is reclaimed this way.
//
// Without compact, untouched chunks keep their original location, removed
// slots are cleared from the index, and rewritten chunks go back to their
// old sectors when they still fit or are appended otherwise. Regions that
// were not decoded from a container are always compacted.
func (r *Region) Encode(compact bool) ([]byte, error) {
	if compact || len(r.raw) < HeaderSize {
		return r.encodeCompact()
	}
	return r.encodeInPlace()
}

func (r *Region) encodeCompact() ([]byte, error) {
	out := make([]byte, HeaderSize)
	for i, c := range r.chunks {
		if c == nil {
			continue
		}
		block, comp, err := c.encodedBlock()
		if err != nil {
			return nil, err
		}
		sectors, err := sectorsFor(len(block), i)
		if err != nil {
			return nil, err
		}
		offset := uint32(len(out) / SectorSize)
		out = appendBlock(out, block, comp, sectors)
		r.writeIndex(out, i, offset, sectors, r.timestampFor(c))
	}
	return out, nil
}

func (r *Region) encodeInPlace() ([]byte, error) {
	size := len(r.raw)
	if rem := size % SectorSize; rem != 0 {
		size += SectorSize - rem
	}
	for _, c := range r.chunks {
		if c != nil && c.offset != 0 {
			size = max(size, int(c.offset+c.sectors)*SectorSize)
		}
	}
	out := make([]byte, size)
	copy(out, r.raw)

	for i, c := range r.chunks {
		if c == nil {
			r.writeIndex(out, i, 0, 0, 0)
			continue
		}
		if !c.dirty && c.offset != 0 {
			continue
		}
		block, comp, err := c.encodedBlock()
		if err != nil {
			return nil, err
		}
		sectors, err := sectorsFor(len(block), i)
		if err != nil {
			return nil, err
		}

		if c.offset != 0 {
			start := int(c.offset) * SectorSize
			clear(out[start : start+int(c.sectors)*SectorSize])
			if sectors <= c.sectors {
				writeBlock(out[start:], block, comp)
				r.writeIndex(out, i, c.offset, sectors, r.timestampFor(c))
				continue
			}
		}
		offset := uint32(len(out) / SectorSize)
		out = appendBlock(out, block, comp, sectors)
		r.writeIndex(out, i, offset, sectors, r.timestampFor(c))
	}
	return out, nil
}

func (r *Region) timestampFor(c *Chunk) uint32 {
	if c.dirty && r.now != nil {
		return uint32(r.now().Unix())
	}
	return c.timestamp
}

func (r *Region) writeIndex(out []byte, index int, offset, sectors, timestamp uint32) {
	binary.BigEndian.PutUint32(out[index*4:], offset<<8|sectors&0xff)
	binary.BigEndian.PutUint32(out[SectorSize+index*4:], timestamp)
}

func sectorsFor(blockLen, index int) (uint32, error) {
	n := (blockLen + blockHeaderSize + SectorSize - 1) / SectorSize
	if n > MaxSectors {
		return 0, errors.Errorf("slot %d: chunk needs %d sectors, limit is %d", index, n, MaxSectors)
	}
	return uint32(n), nil
}

func appendBlock(out, block []byte, comp Compression, sectors uint32) []byte {
	start := len(out)
	out = append(out, make([]byte, int(sectors)*SectorSize)...)
	writeBlock(out[start:], block, comp)
	return out
}

func writeBlock(dst, block []byte, comp Compression) {
	binary.BigEndian.PutUint32(dst, uint32(len(block)+1))
	dst[4] = byte(comp)
	copy(dst[blockHeaderSize:], block)
}
