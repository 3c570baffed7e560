package changer

import (
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/mca-batch/mcab/nbtree"
)

// Numeric biome ids used by chunks written before 1.18.
var biomeIDs = map[string]int32{
	"ocean": 0, "plains": 1, "desert": 2, "mountains": 3, "forest": 4,
	"taiga": 5, "swamp": 6, "river": 7, "nether_wastes": 8, "the_end": 9,
	"frozen_ocean": 10, "frozen_river": 11, "snowy_tundra": 12, "snowy_mountains": 13,
	"mushroom_fields": 14, "mushroom_field_shore": 15, "beach": 16, "desert_hills": 17,
	"wooded_hills": 18, "taiga_hills": 19, "mountain_edge": 20, "jungle": 21,
	"jungle_hills": 22, "jungle_edge": 23, "deep_ocean": 24, "stone_shore": 25,
	"snowy_beach": 26, "birch_forest": 27, "birch_forest_hills": 28, "dark_forest": 29,
	"snowy_taiga": 30, "snowy_taiga_hills": 31, "giant_tree_taiga": 32,
	"giant_tree_taiga_hills": 33, "wooded_mountains": 34, "savanna": 35,
	"savanna_plateau": 36, "badlands": 37, "wooded_badlands_plateau": 38,
	"badlands_plateau": 39, "small_end_islands": 40, "end_midlands": 41,
	"end_highlands": 42, "end_barrens": 43, "warm_ocean": 44, "lukewarm_ocean": 45,
	"cold_ocean": 46, "deep_warm_ocean": 47, "deep_lukewarm_ocean": 48,
	"deep_cold_ocean": 49, "deep_frozen_ocean": 50, "the_void": 127,
	"sunflower_plains": 129, "desert_lakes": 130, "gravelly_mountains": 131,
	"flower_forest": 132, "taiga_mountains": 133, "swamp_hills": 134,
	"ice_spikes": 140, "modified_jungle": 149, "tall_birch_forest": 155,
	"dark_forest_hills": 157, "giant_spruce_taiga": 160, "shattered_savanna": 163,
	"eroded_badlands": 165, "bamboo_jungle": 168, "bamboo_jungle_hills": 169,
	"soul_sand_valley": 170, "crimson_forest": 171, "warped_forest": 172,
	"basalt_deltas": 173,
}

var biomeNames = func() map[int32]string {
	m := make(map[int32]string, len(biomeIDs))
	for name, id := range biomeIDs {
		m[id] = name
	}
	return m
}()

// biomeValue carries both representations; Name is empty for ids without a
// known name, which then cannot be written into 1.18+ palettes.
type biomeValue struct {
	ID   int32
	Name string
}

func (b biomeValue) String() string {
	if b.Name == "" {
		return strconv.Itoa(int(b.ID))
	}
	return b.Name
}

func (b biomeValue) qualified() string {
	return "minecraft:" + b.Name
}

func parseBiome(s string) (biomeValue, bool) {
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		if n < 0 || n > 255 {
			return biomeValue{}, false
		}
		return biomeValue{ID: int32(n), Name: biomeNames[int32(n)]}, true
	}
	name := strings.TrimPrefix(strings.ToLower(s), "minecraft:")
	id, ok := biomeIDs[name]
	if !ok {
		return biomeValue{}, false
	}
	return biomeValue{ID: id, Name: name}, true
}

// BiomeName resolves a legacy numeric id.
func BiomeName(id int32) (string, bool) {
	n, ok := biomeNames[id]
	return n, ok
}

// BiomeID resolves a biome name, with or without namespace.
func BiomeID(name string) (int32, bool) {
	id, ok := biomeIDs[strings.TrimPrefix(strings.ToLower(name), "minecraft:")]
	return id, ok
}

func sectionBiomes(c nbtree.Compound) []nbtree.Compound {
	var key string
	if nbtree.Has(c, "sections") {
		key = "sections"
	} else {
		key = "Sections"
	}
	list, ok := nbtree.GetList(c, key)
	if !ok {
		return nil
	}
	var out []nbtree.Compound
	for _, s := range list {
		sec, ok := s.(map[string]any)
		if !ok {
			continue
		}
		if b, ok := nbtree.GetCompound(sec, "biomes"); ok {
			out = append(out, b)
		}
	}
	return out
}

func readBiome(c nbtree.Compound) (any, bool) {
	if ids, ok := nbtree.GetIntArray(c, "Biomes"); ok && len(ids) > 0 {
		return ids[0], true
	}
	if ids, ok := nbtree.GetByteArray(c, "Biomes"); ok && len(ids) > 0 {
		return int32(ids[0]), true
	}
	for _, b := range sectionBiomes(c) {
		if palette, ok := nbtree.GetList(b, "palette"); ok && len(palette) > 0 {
			if name, ok := palette[0].(string); ok {
				return name, true
			}
		}
	}
	return nil, false
}

// ContainsBiome reports whether any biome entry of the chunk matches the
// legacy id (old formats) or the name (1.18+ palettes).
func ContainsBiome(root nbtree.Compound, id int32, name string) bool {
	c := level(root, false)
	if ids, ok := nbtree.GetIntArray(c, "Biomes"); ok {
		for _, v := range ids {
			if v == id {
				return true
			}
		}
		return false
	}
	if ids, ok := nbtree.GetByteArray(c, "Biomes"); ok {
		for _, v := range ids {
			if int32(v) == id {
				return true
			}
		}
		return false
	}
	want := "minecraft:" + name
	for _, b := range sectionBiomes(c) {
		palette, _ := nbtree.GetList(b, "palette")
		for _, p := range palette {
			if s, ok := p.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func fillPalette(b nbtree.Compound, v biomeValue) {
	nbtree.PutList(b, "palette", []any{v.qualified()})
	delete(b, "data")
}

func changeBiome(c nbtree.Compound, v biomeValue) bool {
	if ids, ok := nbtree.GetIntArray(c, "Biomes"); ok {
		for i := range ids {
			ids[i] = v.ID
		}
		return true
	}
	if ids, ok := nbtree.GetByteArray(c, "Biomes"); ok {
		filled := make([]byte, len(ids))
		for i := range filled {
			filled[i] = byte(v.ID)
		}
		c["Biomes"] = filled
		return true
	}
	if v.Name == "" {
		return false
	}
	changed := false
	for _, b := range sectionBiomes(c) {
		fillPalette(b, v)
		changed = true
	}
	return changed
}

// biomeArrayLen is the legacy Biomes length: 3D biomes (1024 entries) from
// 19w36a on, a 16x16 column before.
func biomeArrayLen(dataVersion int64) int {
	if dataVersion >= 2203 {
		return 1024
	}
	return 256
}

func forceBiome(c nbtree.Compound, dataVersion int64, v biomeValue) bool {
	if changeBiome(c, v) {
		return true
	}
	if dataVersion >= flatteningVersion {
		return false
	}
	ids := make([]int32, biomeArrayLen(dataVersion))
	for i := range ids {
		ids[i] = v.ID
	}
	nbtree.PutIntArray(c, "Biomes", ids)
	return true
}
