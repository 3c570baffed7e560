package changer

import (
	"testing"

	"github.com/ZanzyTHEbar/mca-batch/mcab/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	k, ok := Lookup("status")
	require.True(t, ok)
	assert.Equal(t, Status, k)

	k, ok = Lookup(" InhabitedTime ")
	require.True(t, ok)
	assert.Equal(t, InhabitedTime, k)

	_, ok = Lookup("Heightmaps")
	assert.False(t, ok)
}

func TestSuggest(t *testing.T) {
	assert.Equal(t, []string{"DataVersion", "DeleteEntities"}, Suggest("d"))
	assert.Equal(t, []string{"LastUpdate", "LightPopulated"}, Suggest("L"))
	assert.Len(t, Suggest(""), len(Kinds()))
	assert.Empty(t, Suggest("zz"))
}

func TestParseFields(t *testing.T) {
	fields, err := ParseFields(`Status = "finalized", LightPopulated=1`)
	require.NoError(t, err)
	require.Len(t, fields, 2)

	assert.Equal(t, Status, fields[0].Kind())
	v, ok := fields[0].Value()
	assert.True(t, ok)
	assert.Equal(t, "finalized", v)
	assert.Equal(t, "Status = finalized", fields[0].String())

	assert.Equal(t, LightPopulated, fields[1].Kind())
}

func TestParseFieldsErrors(t *testing.T) {
	for _, text := range []string{
		"",
		"Status",
		"Nope = 1",
		"Status = finalized, Status = full",
		"LightPopulated = 5",
	} {
		_, err := ParseFields(text)
		assert.ErrorIs(t, err, common.ErrParse, text)
	}
}
