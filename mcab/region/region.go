package region

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/mca-batch/mcab/common"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

const (
	// SectorSize is the allocation unit of a region file.
	SectorSize = 4096
	// HeaderSize covers the location table and the timestamp table.
	HeaderSize = 2 * SectorSize
	// MaxSectors is the largest sector count a location entry can hold.
	MaxSectors = 255

	blockHeaderSize = 5
)

// SlotError reports a chunk slot that could not be decoded. The slot is
// treated as empty; the rest of the region is unaffected.
type SlotError struct {
	Index int
	Err   error
}

func (e *SlotError) Error() string {
	x, z := LocalPos(e.Index)
	return fmt.Sprintf("slot %d (%d,%d): %v", e.Index, x, z, e.Err)
}

func (e *SlotError) Unwrap() []error { return []error{common.ErrDecode, e.Err} }

// Region is the in-memory model of one region file: up to 1024 chunk slots,
// nil where no chunk was generated (or where the slot failed to decode).
type Region struct {
	coord  Coordinate
	chunks [SlotCount]*Chunk

	// raw is the container the region was decoded from, kept for encodes
	// that preserve existing locations.
	raw []byte

	removed    int
	decodeErrs *multierror.Error
	now        func() time.Time
}

// New returns an empty region.
func New(coord Coordinate) *Region {
	return &Region{coord: coord, now: time.Now}
}

// Decode parses a region container. Malformed slots are isolated: they are
// recorded in DecodeErrors and left empty. Only a buffer too short to hold
// the index table fails the whole region.
func Decode(coord Coordinate, raw []byte) (*Region, error) {
	r := New(coord)
	if len(raw) == 0 {
		return r, nil
	}
	if len(raw) < HeaderSize {
		return nil, errors.Wrapf(common.ErrDecode, "region %s: header truncated at %d bytes", coord, len(raw))
	}
	r.raw = raw

	for i := 0; i < SlotCount; i++ {
		loc := binary.BigEndian.Uint32(raw[i*4:])
		if loc == 0 {
			continue
		}
		chunk, err := decodeSlot(raw, i, loc)
		if err != nil {
			r.decodeErrs = multierror.Append(r.decodeErrs, &SlotError{Index: i, Err: err})
			continue
		}
		chunk.timestamp = binary.BigEndian.Uint32(raw[SectorSize+i*4:])
		r.chunks[i] = chunk
	}
	return r, nil
}

func decodeSlot(raw []byte, index int, loc uint32) (*Chunk, error) {
	offset, sectors := loc>>8, loc&0xff
	if offset == 0 {
		return nil, errors.New("sector count without offset")
	}
	if sectors == 0 {
		return nil, errors.Errorf("offset %d without sectors", offset)
	}
	if offset < HeaderSize/SectorSize {
		return nil, errors.Errorf("offset %d overlaps the header", offset)
	}

	start := int(offset) * SectorSize
	if start+blockHeaderSize > len(raw) {
		return nil, errors.Errorf("offset %d beyond end of file", offset)
	}
	length := int(binary.BigEndian.Uint32(raw[start:]))
	if length <= 1 {
		return nil, errors.Errorf("invalid payload length %d", length)
	}
	if length+4 > int(sectors)*SectorSize {
		return nil, errors.Errorf("payload length %d exceeds %d sectors", length, sectors)
	}
	end := start + 4 + length
	if end > len(raw) {
		return nil, errors.Errorf("payload truncated: need %d bytes, have %d", end-start, len(raw)-start)
	}

	scheme := raw[start+4]
	if scheme&externalFlag != 0 {
		return nil, errors.Wrap(ErrUnsupportedCompression, "external chunk storage")
	}
	comp := Compression(scheme)
	if !comp.Supported() {
		return nil, errors.Wrapf(ErrUnsupportedCompression, "scheme %s", comp)
	}

	block := raw[start+blockHeaderSize : end]
	data, err := comp.decompress(block)
	if err != nil {
		return nil, errors.Wrap(err, "decompress")
	}

	return &Chunk{
		index:       index,
		compression: comp,
		offset:      offset,
		sectors:     sectors,
		block:       block,
		data:        data,
	}, nil
}

// Coordinate returns the region's grid position.
func (r *Region) Coordinate() Coordinate { return r.coord }

// SetClock replaces the time source used to stamp rewritten chunks.
func (r *Region) SetClock(now func() time.Time) { r.now = now }

// DecodeErrors returns the slot errors collected by Decode, or nil.
func (r *Region) DecodeErrors() error {
	return r.decodeErrs.ErrorOrNil()
}

// Chunk returns the chunk in slot index, or nil when the slot is empty.
func (r *Region) Chunk(index int) *Chunk {
	if index < 0 || index >= SlotCount {
		return nil
	}
	return r.chunks[index]
}

// Chunks returns the occupied slots in ascending slot order.
func (r *Region) Chunks() []*Chunk {
	out := make([]*Chunk, 0, SlotCount)
	for _, c := range r.chunks {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Count returns the number of occupied slots.
func (r *Region) Count() int {
	n := 0
	for _, c := range r.chunks {
		if c != nil {
			n++
		}
	}
	return n
}

// Put stores c in its slot, replacing any previous chunk.
func (r *Region) Put(c *Chunk) {
	r.chunks[c.index] = c
}

// Remove empties slot index and reports whether a chunk was there.
func (r *Region) Remove(index int) bool {
	if index < 0 || index >= SlotCount || r.chunks[index] == nil {
		return false
	}
	r.chunks[index] = nil
	r.removed++
	return true
}

// Modified reports whether any chunk was removed or marked dirty since decode.
func (r *Region) Modified() bool {
	if r.removed > 0 {
		return true
	}
	for _, c := range r.chunks {
		if c != nil && c.dirty {
			return true
		}
	}
	return false
}
