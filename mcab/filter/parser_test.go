package filter

import (
	"errors"
	"testing"

	"github.com/ZanzyTHEbar/mca-batch/mcab/common"
	"github.com/ZanzyTHEbar/mca-batch/mcab/region"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStructure(t *testing.T) {
	g, err := Parse(`xPos >= 10 AND (Status = full OR NOT (Entities > 5))`)
	require.NoError(t, err)
	require.Equal(t, 2, g.Len())

	first := g.Children()[0].(*Leaf)
	assert.Equal(t, XPos, first.Field())
	assert.Equal(t, GreaterEqual, first.Comparator())

	sub := g.Children()[1].(*Group)
	assert.Equal(t, And, sub.Operator())
	require.Equal(t, 2, sub.Len())
	assert.Equal(t, Or, sub.Children()[1].Operator())
	assert.True(t, sub.Children()[1].(*Group).Inverted())
}

func TestParseRoundTrip(t *testing.T) {
	queries := []string{
		"xPos >= 10 AND (Status = full OR NOT (Entities > 5))",
		"zPos in -5..5",
		`Status =~ "^(full|empty)$"`,
		"Biome !contains plains OR Biome contains 4",
		"NOT (NOT (DataVersion < 2500))",
		"LightPopulated = 0 AND Timestamp > 100 OR InhabitedTime <= 20",
	}
	for _, q := range queries {
		g, err := Parse(q)
		require.NoError(t, err, q)
		again, err := Parse(g.String())
		require.NoError(t, err, g.String())
		assert.Equal(t, g.String(), again.String())
		assert.Equal(t, q, g.String())
	}
}

func TestParseEmptyMatchesAll(t *testing.T) {
	for _, q := range []string{"", "   "} {
		g, err := Parse(q)
		require.NoError(t, err)
		assert.True(t, g.Empty())
		assert.True(t, g.Matches(chunkData(region.Coordinate{}, 5, "")))
	}
}

func TestParseCaseInsensitiveNames(t *testing.T) {
	g, err := Parse("xpos = 1 and STATUS = full or not zpos = 3")
	require.NoError(t, err)
	assert.Equal(t, "xPos = 1 AND Status = full OR NOT (zPos = 3)", g.String())
}

func TestParseErrors(t *testing.T) {
	queries := []string{
		"xPos",
		"xPos >=",
		"xPos ?? 3",
		"height = 3",
		"(xPos = 1",
		"xPos = 1)",
		"xPos = 1 AND",
		`Status = "full`,
		"xPos = nope",
		"Status < full",
	}
	for _, q := range queries {
		_, err := Parse(q)
		require.Error(t, err, q)
		assert.ErrorIs(t, err, common.ErrParse, q)
		var se *SyntaxError
		assert.True(t, errors.As(err, &se), q)
	}
}

func TestSuggestFields(t *testing.T) {
	assert.Equal(t, []string{"LastUpdate", "LightPopulated"}, SuggestFields("l"))
	f, ok := LookupField("inhabitedtime")
	require.True(t, ok)
	assert.Equal(t, InhabitedTime, f)
}
