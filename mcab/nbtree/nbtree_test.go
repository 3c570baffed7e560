package nbtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMarshalKeepsTagWidths(t *testing.T) {
	root := Compound{
		"DataVersion": int32(1976),
		"Level": Compound{
			"Status":         "full",
			"LightPopulated": int8(1),
			"InhabitedTime":  int64(4200),
			"Biomes":         []int32{1, 1, 2},
		},
	}

	data, err := Marshal(root)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)

	dv, ok := GetInt(parsed, "DataVersion")
	require.True(t, ok)
	assert.Equal(t, int64(1976), dv)

	level, ok := Path(parsed, "Level")
	require.True(t, ok)
	status, ok := GetString(level, "Status")
	assert.True(t, ok)
	assert.Equal(t, "full", status)

	lp, ok := GetInt(level, "LightPopulated")
	assert.True(t, ok)
	assert.Equal(t, int64(1), lp)

	biomes, ok := GetIntArray(level, "Biomes")
	assert.True(t, ok)
	assert.Equal(t, []int32{1, 1, 2}, biomes)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte{0xff, 0x00})
	assert.Error(t, err)
}

func TestPathAndEnsure(t *testing.T) {
	root := Compound{}

	_, ok := Path(root, "Level", "Structures")
	assert.False(t, ok)

	level := EnsureCompound(root, "Level")
	level["x"] = int32(1)
	again := EnsureCompound(root, "Level")
	assert.Equal(t, int32(1), again["x"])

	got, ok := Path(root)
	assert.True(t, ok)
	assert.Equal(t, root, got)
}

func TestAsInt(t *testing.T) {
	for _, v := range []any{int8(3), uint8(3), int16(3), int32(3), int64(3), 3} {
		n, ok := AsInt(v)
		assert.True(t, ok)
		assert.Equal(t, int64(3), n)
	}
	_, ok := AsInt("3")
	assert.False(t, ok)
}
