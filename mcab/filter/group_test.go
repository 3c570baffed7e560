package filter

import (
	"testing"

	"github.com/ZanzyTHEbar/mca-batch/mcab/region"
	"github.com/ZanzyTHEbar/mca-batch/mcab/region/regiontest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stub returns a fixed result and counts evaluations.
type stub struct {
	op     Operator
	result bool
	calls  int
}

func (s *stub) Operator() Operator     { return s.op }
func (s *stub) SetOperator(o Operator) { s.op = o }
func (s *stub) Valid() bool            { return true }
func (s *stub) Clone() Filter          { c := *s; return &c }
func (s *stub) String() string         { return "stub" }
func (s *stub) Matches(Data) bool {
	s.calls++
	return s.result
}

func chunkData(coord region.Coordinate, index int, status string) Data {
	x, z := coord.ChunkPos(index)
	return Data{
		Region: coord,
		Chunk:  region.NewChunk(index, region.CompressionZlib, regiontest.Timestamp, regiontest.ChunkTree(x, z, status)),
	}
}

func TestEmptyGroupMatchesEverything(t *testing.T) {
	g := NewGroup(And)
	assert.True(t, g.Matches(chunkData(region.Coordinate{}, 0, "full")))
	assert.True(t, g.AppliesToRegion(region.Coordinate{X: 9, Z: -4}))
	assert.True(t, g.Valid())
}

func TestGroupShortCircuit(t *testing.T) {
	d := chunkData(region.Coordinate{}, 0, "full")

	a, b, c := &stub{result: false}, &stub{op: And, result: true}, &stub{op: Or, result: true}
	g := NewGroup(And, a, b, c)
	assert.True(t, g.Matches(d))
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 0, b.calls, "AND after a false result must not be evaluated")
	assert.Equal(t, 1, c.calls)

	a, b, c = &stub{result: true}, &stub{op: And, result: true}, &stub{op: Or, result: false}
	g = NewGroup(And, a, b, c)
	assert.True(t, g.Matches(d))
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 0, c.calls, "OR reached with a true result decides the group")
}

func TestGroupLeftToRight(t *testing.T) {
	d := chunkData(region.Coordinate{}, 0, "full")
	cases := []struct {
		name string
		ops  []Operator
		vals []bool
		want bool
	}{
		{"single true", []Operator{And}, []bool{true}, true},
		{"single false", []Operator{And}, []bool{false}, false},
		{"and", []Operator{And, And}, []bool{true, false}, false},
		{"or", []Operator{And, Or}, []bool{false, true}, true},
		{"false and true or false", []Operator{And, And, Or}, []bool{false, true, false}, false},
		{"true or false and false", []Operator{And, Or, And}, []bool{true, false, false}, true},
		{"false or true and false", []Operator{And, Or, And}, []bool{false, true, false}, false},
		{"first operator ignored", []Operator{Or, And}, []bool{true, true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGroup(And)
			for i, v := range tc.vals {
				g.Add(&stub{op: tc.ops[i], result: v})
			}
			assert.Equal(t, tc.want, g.Matches(d))

			inv := g.Clone().(*Group)
			inv.SetInverted(true)
			assert.Equal(t, !tc.want, inv.Matches(d))
		})
	}
}

func TestGroupStructuralEdits(t *testing.T) {
	a, b, c := &stub{}, &stub{}, &stub{}
	inner := NewGroup(Or, b)
	root := NewGroup(And, a, inner)

	assert.Equal(t, 1, inner.AddAfter(c, b))
	parent, idx, ok := root.Find(c)
	require.True(t, ok)
	assert.Same(t, inner, parent)
	assert.Equal(t, 1, idx)

	parent, idx, ok = root.Find(a)
	require.True(t, ok)
	assert.Same(t, root, parent)
	assert.Equal(t, 0, idx)

	assert.True(t, inner.Remove(b))
	assert.False(t, inner.Remove(b))
	_, _, ok = root.Find(b)
	assert.False(t, ok)

	assert.Equal(t, 2, root.AddAfter(&stub{}, b), "unknown anchor appends")
}

func TestGroupCloneIsDeep(t *testing.T) {
	l, err := NewLeaf(And, XPos, Equal, "3")
	require.NoError(t, err)
	g := NewGroup(And, NewGroup(And, l))
	c := g.Clone().(*Group)
	c.Children()[0].(*Group).Children()[0].(*Leaf).SetValue("4")
	assert.Equal(t, "3", l.RawValue())
}

func TestAppliesToRegionIsSound(t *testing.T) {
	queries := []string{
		"xPos >= 40",
		"xPos < -10 AND zPos in 0..5",
		"zPos = 31",
		"xPos != 0",
		"xPos > 5 AND Status = full",
		"(xPos <= 3) AND zPos >= 10",
		"xPos > 100 OR Status = full",
		"NOT (xPos < 32)",
	}
	coords := []region.Coordinate{{X: 0, Z: 0}, {X: 1, Z: 0}, {X: -1, Z: 0}, {X: 0, Z: 1}, {X: 3, Z: -2}}
	for _, q := range queries {
		g, err := Parse(q)
		require.NoError(t, err, q)
		for _, coord := range coords {
			if g.AppliesToRegion(coord) {
				continue
			}
			for i := 0; i < region.SlotCount; i++ {
				require.False(t, g.Matches(chunkData(coord, i, "full")), "%s rejected %s but chunk %d matches", q, coord, i)
			}
		}
	}
}

func TestAppliesToRegionPrunes(t *testing.T) {
	g, err := Parse("xPos >= 40 AND zPos < 0")
	require.NoError(t, err)
	assert.False(t, g.AppliesToRegion(region.Coordinate{X: 0, Z: -1}))
	assert.True(t, g.AppliesToRegion(region.Coordinate{X: 1, Z: -1}))
	assert.False(t, g.AppliesToRegion(region.Coordinate{X: 1, Z: 0}))
}
