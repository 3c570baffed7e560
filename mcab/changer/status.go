package changer

import "strings"

// Generation stages written by 1.13 - 1.17.
var legacyStatuses = []string{
	"empty", "base", "carved", "liquid_carved", "decorated", "lighted",
	"mobs_spawned", "finalized", "fullchunk", "postprocessed",
	"structure_starts", "structure_references", "biomes", "noise", "surface",
	"carvers", "liquid_carvers", "features", "light", "spawn", "heightmaps", "full",
}

var validStatuses = func() map[string]struct{} {
	m := make(map[string]struct{}, len(legacyStatuses))
	for _, s := range legacyStatuses {
		m[s] = struct{}{}
	}
	return m
}()

// ValidStatus reports whether s names a chunk generation stage. 1.18+
// chunks store the stage with a minecraft: namespace, which is accepted too.
func ValidStatus(s string) bool {
	_, ok := validStatuses[strings.TrimPrefix(s, "minecraft:")]
	return ok
}

// Statuses lists the accepted stage names without namespace.
func Statuses() []string {
	out := make([]string, len(legacyStatuses))
	copy(out, legacyStatuses)
	return out
}
