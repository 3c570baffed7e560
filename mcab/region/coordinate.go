package region

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/ZanzyTHEbar/mca-batch/mcab/common"
)

const (
	// ChunksPerAxis is the edge length of a region in chunks.
	ChunksPerAxis = 32
	// SlotCount is the number of chunk slots in one region file.
	SlotCount = ChunksPerAxis * ChunksPerAxis
)

var filenamePattern = regexp.MustCompile(`^r\.(-?\d+)\.(-?\d+)\.mca$`)

// Coordinate identifies a region file on the region grid.
type Coordinate struct {
	X int
	Z int
}

// ParseFilename extracts the region coordinate from r.<x>.<z>.mca. Only the
// base name is inspected.
func ParseFilename(name string) (Coordinate, error) {
	m := filenamePattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return Coordinate{}, fmt.Errorf("%w: %s", common.ErrFilenamePattern, filepath.Base(name))
	}
	x, errX := strconv.Atoi(m[1])
	z, errZ := strconv.Atoi(m[2])
	if errX != nil || errZ != nil {
		return Coordinate{}, fmt.Errorf("%w: %s", common.ErrFilenamePattern, filepath.Base(name))
	}
	return Coordinate{X: x, Z: z}, nil
}

// Filename returns the canonical file name of the region.
func (c Coordinate) Filename() string {
	return fmt.Sprintf("r.%d.%d.mca", c.X, c.Z)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%d,%d", c.X, c.Z)
}

// ChunkMin returns the absolute coordinate of the region's first chunk.
func (c Coordinate) ChunkMin() (x, z int) {
	return c.X * ChunksPerAxis, c.Z * ChunksPerAxis
}

// ChunkMax returns the absolute coordinate of the region's last chunk.
func (c Coordinate) ChunkMax() (x, z int) {
	return c.X*ChunksPerAxis + ChunksPerAxis - 1, c.Z*ChunksPerAxis + ChunksPerAxis - 1
}

// ChunkPos converts a slot index into absolute chunk coordinates.
func (c Coordinate) ChunkPos(index int) (x, z int) {
	lx, lz := LocalPos(index)
	return c.X*ChunksPerAxis + lx, c.Z*ChunksPerAxis + lz
}

// RegionOf returns the region containing the absolute chunk coordinate.
func RegionOf(chunkX, chunkZ int) Coordinate {
	return Coordinate{X: chunkX >> 5, Z: chunkZ >> 5}
}

// Index maps a chunk position (absolute or local) to its slot index.
func Index(x, z int) int {
	return (x & 31) + (z&31)*ChunksPerAxis
}

// LocalPos maps a slot index to the chunk position inside its region.
func LocalPos(index int) (x, z int) {
	return index & 31, index >> 5
}
