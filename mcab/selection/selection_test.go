package selection

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/mca-batch/mcab/common"
	"github.com/ZanzyTHEbar/mca-batch/mcab/region"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilSetSelectsEverything(t *testing.T) {
	var s *Set
	c := region.Coordinate{X: 4, Z: -2}
	assert.True(t, s.ContainsRegion(c))
	assert.True(t, s.WholeRegion(c))
	assert.True(t, s.Contains(c, 1023))
}

func TestSetChunksAndRegions(t *testing.T) {
	s := New()
	s.Add(33, -1) // region 1,-1 slot 1 + 31*32
	s.AddRegion(region.Coordinate{X: 0, Z: 0})
	s.AddSlot(region.Coordinate{X: 0, Z: 0}, 7)

	r := region.Coordinate{X: 1, Z: -1}
	assert.True(t, s.ContainsRegion(r))
	assert.False(t, s.WholeRegion(r))
	assert.True(t, s.Contains(r, region.Index(33, -1)))
	assert.False(t, s.Contains(r, 0))
	assert.Equal(t, []int{1 + 31*32}, s.Slots(r))

	assert.True(t, s.WholeRegion(region.Coordinate{}))
	assert.True(t, s.Contains(region.Coordinate{}, 500))
	assert.False(t, s.ContainsRegion(region.Coordinate{X: 9}))

	assert.Equal(t, region.SlotCount+1, s.Len())
	assert.Equal(t, []region.Coordinate{{X: 0, Z: 0}, {X: 1, Z: -1}}, s.Regions())
}

func TestReadWrite(t *testing.T) {
	in := "0;0\n-1;2;-30;64\n-1;2;-32;95\n"
	s, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 2+region.SlotCount, s.Len())

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, s))
	assert.Equal(t, "-1;2;-30;64\n-1;2;-32;95\n0;0\n", buf.String())

	again, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, s.Regions(), again.Regions())
}

func TestReadRejectsMalformed(t *testing.T) {
	for _, in := range []string{"1", "1;2;3", "a;b", "0;0;40;0"} {
		_, err := Read(strings.NewReader(in))
		assert.ErrorIs(t, err, common.ErrParse, in)
	}
}

func TestFileRoundTrip(t *testing.T) {
	s := New()
	s.Add(5, 5)
	path := filepath.Join(t.TempDir(), "sel.csv")
	require.NoError(t, SaveFile(path, s))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, loaded.Contains(region.Coordinate{}, region.Index(5, 5)))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, common.ErrIO)
}
