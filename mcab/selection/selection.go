// Package selection holds the optional set of explicitly selected regions and
// chunks that narrows a batch operation.
package selection

import (
	"sort"

	"github.com/ZanzyTHEbar/mca-batch/mcab/region"

	roaring "github.com/RoaringBitmap/roaring"
)

// Set maps region coordinates to the slot indices selected in them. A region
// whose bitmap is nil is selected as a whole.
//
// A nil *Set selects everything. A Set is read-only once a batch starts and
// may then be shared by all workers.
type Set struct {
	regions map[region.Coordinate]*roaring.Bitmap
}

func New() *Set {
	return &Set{regions: make(map[region.Coordinate]*roaring.Bitmap)}
}

// AddRegion selects every chunk of c.
func (s *Set) AddRegion(c region.Coordinate) {
	s.regions[c] = nil
}

// AddSlot selects one chunk of region c by slot index. It is a no-op when
// the whole region is already selected.
func (s *Set) AddSlot(c region.Coordinate, index int) {
	bm, ok := s.regions[c]
	if ok && bm == nil {
		return
	}
	if !ok {
		bm = roaring.New()
		s.regions[c] = bm
	}
	bm.Add(uint32(index))
}

// Add selects the chunk at absolute chunk position x,z.
func (s *Set) Add(chunkX, chunkZ int) {
	s.AddSlot(region.RegionOf(chunkX, chunkZ), region.Index(chunkX, chunkZ))
}

// ContainsRegion reports whether any chunk of c is selected.
func (s *Set) ContainsRegion(c region.Coordinate) bool {
	if s == nil {
		return true
	}
	_, ok := s.regions[c]
	return ok
}

// WholeRegion reports whether every chunk of c is selected.
func (s *Set) WholeRegion(c region.Coordinate) bool {
	if s == nil {
		return true
	}
	bm, ok := s.regions[c]
	return ok && bm == nil
}

// Contains reports whether slot index of region c is selected.
func (s *Set) Contains(c region.Coordinate, index int) bool {
	if s == nil {
		return true
	}
	bm, ok := s.regions[c]
	if !ok {
		return false
	}
	return bm == nil || bm.Contains(uint32(index))
}

// Slots returns the selected slot indices of c in ascending order, or nil
// when the whole region (or nothing) is selected.
func (s *Set) Slots(c region.Coordinate) []int {
	bm := s.regions[c]
	if bm == nil {
		return nil
	}
	out := make([]int, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// Regions lists the regions with a selection, ordered by x then z.
func (s *Set) Regions() []region.Coordinate {
	out := make([]region.Coordinate, 0, len(s.regions))
	for c := range s.regions {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Z < out[j].Z
	})
	return out
}

// Len counts the selected chunks, whole regions counting as 1024.
func (s *Set) Len() int {
	n := 0
	for _, bm := range s.regions {
		if bm == nil {
			n += region.SlotCount
			continue
		}
		n += int(bm.GetCardinality())
	}
	return n
}

// Empty reports whether nothing is selected.
func (s *Set) Empty() bool { return len(s.regions) == 0 }
