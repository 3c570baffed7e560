// Package nbtree gives typed access to a chunk's NBT data once it has been
// decoded into plain Go values by go-mc.
//
// Compounds are map[string]any, lists are []any, and scalars keep the width
// go-mc decoded them with (int8 for TAG_Byte, int32 for TAG_Int and so on).
// Setters write the width Minecraft expects for the tag so that a re-encoded
// chunk keeps its tag types.
package nbtree

import (
	"bytes"

	"github.com/Tnze/go-mc/nbt"
	"github.com/pkg/errors"
)

// Compound is a decoded TAG_Compound.
type Compound = map[string]any

// Parse decodes an uncompressed NBT document.
func Parse(data []byte) (Compound, error) {
	root := Compound{}
	if _, err := nbt.NewDecoder(bytes.NewReader(data)).Decode(&root); err != nil {
		return nil, errors.Wrap(err, "decode nbt")
	}
	return root, nil
}

// Marshal encodes root as an unnamed NBT document.
func Marshal(root Compound) ([]byte, error) {
	var buf bytes.Buffer
	if err := nbt.NewEncoder(&buf).Encode(root, ""); err != nil {
		return nil, errors.Wrap(err, "encode nbt")
	}
	return buf.Bytes(), nil
}

// GetCompound returns the compound stored under key.
func GetCompound(c Compound, key string) (Compound, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c[key].(map[string]any)
	return v, ok
}

// Path walks nested compounds. An empty path returns c itself.
func Path(c Compound, keys ...string) (Compound, bool) {
	cur := c
	for _, k := range keys {
		next, ok := GetCompound(cur, k)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, cur != nil
}

// EnsureCompound returns the compound under key, creating it when missing.
func EnsureCompound(c Compound, key string) Compound {
	if v, ok := GetCompound(c, key); ok {
		return v
	}
	v := Compound{}
	c[key] = v
	return v
}

// Has reports whether key is present, whatever its type.
func Has(c Compound, key string) bool {
	if c == nil {
		return false
	}
	_, ok := c[key]
	return ok
}

// GetInt returns any integral tag widened to int64.
func GetInt(c Compound, key string) (int64, bool) {
	if c == nil {
		return 0, false
	}
	return AsInt(c[key])
}

// AsInt widens an integral NBT value.
func AsInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int8:
		return int64(n), true
	case uint8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

// GetString returns a TAG_String.
func GetString(c Compound, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	s, ok := c[key].(string)
	return s, ok
}

// GetList returns a TAG_List.
func GetList(c Compound, key string) ([]any, bool) {
	if c == nil {
		return nil, false
	}
	l, ok := c[key].([]any)
	return l, ok
}

// GetIntArray returns a TAG_Int_Array.
func GetIntArray(c Compound, key string) ([]int32, bool) {
	if c == nil {
		return nil, false
	}
	a, ok := c[key].([]int32)
	return a, ok
}

// GetByteArray returns a TAG_Byte_Array.
func GetByteArray(c Compound, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	switch a := c[key].(type) {
	case []byte:
		return a, true
	case []int8:
		out := make([]byte, len(a))
		for i, b := range a {
			out[i] = byte(b)
		}
		return out, true
	}
	return nil, false
}

func PutByte(c Compound, key string, v int8)        { c[key] = v }
func PutInt(c Compound, key string, v int32)        { c[key] = v }
func PutLong(c Compound, key string, v int64)       { c[key] = v }
func PutString(c Compound, key string, v string)    { c[key] = v }
func PutList(c Compound, key string, v []any)       { c[key] = v }
func PutIntArray(c Compound, key string, v []int32) { c[key] = v }
