// Package regiontest builds region files for tests.
package regiontest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/mca-batch/mcab/nbtree"
	"github.com/ZanzyTHEbar/mca-batch/mcab/region"

	"github.com/stretchr/testify/require"
)

// Timestamp is stamped on every fixture chunk.
const Timestamp uint32 = 1_600_000_000

// ChunkTree returns a pre-1.18 style chunk for absolute chunk position x,z.
// An empty status leaves the Status tag out.
func ChunkTree(x, z int, status string) nbtree.Compound {
	level := nbtree.Compound{
		"xPos":           int32(x),
		"zPos":           int32(z),
		"LightPopulated": int8(1),
		"InhabitedTime":  int64(100),
		"LastUpdate":     int64(2000),
	}
	if status != "" {
		level["Status"] = status
	}
	return nbtree.Compound{
		"DataVersion": int32(2230),
		"Level":       level,
	}
}

// Region assembles a region holding one chunk per slot index in trees.
func Region(coord region.Coordinate, trees map[int]nbtree.Compound) *region.Region {
	r := region.New(coord)
	for idx, tree := range trees {
		r.Put(region.NewChunk(idx, region.CompressionZlib, Timestamp, tree))
	}
	return r
}

// Bytes encodes a region made by Region.
func Bytes(t testing.TB, coord region.Coordinate, trees map[int]nbtree.Compound) []byte {
	t.Helper()
	r := Region(coord, trees)
	r.SetClock(nil)
	data, err := r.Encode(true)
	require.NoError(t, err)
	return data
}

// Full returns trees for every slot of the region, each with status.
func Full(coord region.Coordinate, status string) map[int]nbtree.Compound {
	trees := make(map[int]nbtree.Compound, region.SlotCount)
	for i := 0; i < region.SlotCount; i++ {
		x, z := coord.ChunkPos(i)
		trees[i] = ChunkTree(x, z, status)
	}
	return trees
}

// WriteFile writes an encoded region to dir under its canonical name and
// returns the path.
func WriteFile(t testing.TB, dir string, coord region.Coordinate, trees map[int]nbtree.Compound) string {
	t.Helper()
	path := filepath.Join(dir, coord.Filename())
	require.NoError(t, os.WriteFile(path, Bytes(t, coord, trees), 0o644))
	return path
}

// ReadFile decodes a region file and fails the test on any error.
func ReadFile(t testing.TB, path string) *region.Region {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	coord, err := region.ParseFilename(path)
	require.NoError(t, err)
	r, err := region.Decode(coord, raw)
	require.NoError(t, err)
	require.NoError(t, r.DecodeErrors())
	return r
}
