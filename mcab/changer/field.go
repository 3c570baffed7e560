// Package changer implements bulk edits of chunk fields.
//
// Every field kind knows how to read its current value from a chunk, how to
// parse a new value from user text, and how to write it either only where
// the field already exists (change) or unconditionally (force).
package changer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/mca-batch/mcab/common"
	"github.com/ZanzyTHEbar/mca-batch/mcab/nbtree"
)

// Kind identifies a field of the catalog.
type Kind int

const (
	LightPopulated Kind = iota
	DataVersion
	InhabitedTime
	LastUpdate
	Status
	Biome
	DeleteEntities

	kindCount
)

var kindNames = [kindCount]string{
	LightPopulated: "LightPopulated",
	DataVersion:    "DataVersion",
	InhabitedTime:  "InhabitedTime",
	LastUpdate:     "LastUpdate",
	Status:         "Status",
	Biome:          "Biome",
	DeleteEntities: "DeleteEntities",
}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds returns every field kind in catalog order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// flatteningVersion is the first data version (21w43a) that dropped the
// Level compound and moved chunk fields to the root.
const flatteningVersion = 2844

// Field is one staged edit: a kind plus the parsed value to write.
type Field struct {
	kind  Kind
	value any
	set   bool
}

// New returns an unconfigured field of kind k.
func New(k Kind) *Field {
	return &Field{kind: k}
}

func (f *Field) Kind() Kind { return f.kind }

// Value returns the parsed new value.
func (f *Field) Value() (any, bool) { return f.value, f.set }

func (f *Field) String() string {
	if !f.set {
		return f.kind.String()
	}
	switch v := f.value.(type) {
	case biomeValue:
		return fmt.Sprintf("%s = %s", f.kind, v)
	default:
		return fmt.Sprintf("%s = %v", f.kind, v)
	}
}

func parseErr(k Kind, text, reason string) error {
	return fmt.Errorf("%w: %s: %q %s", common.ErrParse, k, text, reason)
}

// ParseText validates text for this field and stages the typed value.
func (f *Field) ParseText(text string) error {
	s := strings.TrimSpace(text)
	var (
		v   any
		err error
	)
	switch f.kind {
	case LightPopulated:
		switch s {
		case "0":
			v = int8(0)
		case "1":
			v = int8(1)
		default:
			err = parseErr(f.kind, text, "must be 0 or 1")
		}
	case DataVersion:
		n, perr := strconv.ParseInt(s, 10, 32)
		if perr != nil || n < 0 {
			err = parseErr(f.kind, text, "must be a non-negative 32-bit integer")
		}
		v = int32(n)
	case InhabitedTime, LastUpdate:
		n, perr := strconv.ParseInt(s, 10, 64)
		if perr != nil || n < 0 {
			err = parseErr(f.kind, text, "must be a non-negative number of ticks")
		}
		v = n
	case Status:
		if !ValidStatus(s) {
			err = parseErr(f.kind, text, "is not a generation status")
		}
		v = s
	case Biome:
		b, ok := parseBiome(s)
		if !ok {
			err = parseErr(f.kind, text, "is not a biome name or id")
		}
		v = b
	case DeleteEntities:
		switch strings.ToLower(s) {
		case "1", "true":
			v = true
		case "0", "false":
			v = false
		default:
			err = parseErr(f.kind, text, "must be true or false")
		}
	default:
		err = parseErr(f.kind, text, "unknown field")
	}
	if err != nil {
		return err
	}
	f.value, f.set = v, true
	return nil
}

// level returns the compound holding per-chunk fields: Level for chunks
// written before the 1.18 format change, the root otherwise. With create set,
// a missing Level is added to old-format chunks.
func level(root nbtree.Compound, create bool) nbtree.Compound {
	if l, ok := nbtree.GetCompound(root, "Level"); ok {
		return l
	}
	if dv, ok := nbtree.GetInt(root, "DataVersion"); ok && dv < flatteningVersion && create {
		return nbtree.EnsureCompound(root, "Level")
	}
	return root
}

func (f *Field) key() string {
	switch f.kind {
	case LightPopulated:
		return "LightPopulated"
	case DataVersion:
		return "DataVersion"
	case InhabitedTime:
		return "InhabitedTime"
	case LastUpdate:
		return "LastUpdate"
	case Status:
		return "Status"
	case DeleteEntities:
		return "Entities"
	}
	return ""
}

func (f *Field) container(root nbtree.Compound, create bool) nbtree.Compound {
	if f.kind == DataVersion {
		return root
	}
	return level(root, create)
}

// ReadCurrent extracts the field's current value. Missing structure yields
// false, never an error.
func (f *Field) ReadCurrent(root nbtree.Compound) (any, bool) {
	if root == nil {
		return nil, false
	}
	c := f.container(root, false)
	switch f.kind {
	case LightPopulated:
		n, ok := nbtree.GetInt(c, f.key())
		return int8(n), ok
	case DataVersion:
		n, ok := nbtree.GetInt(c, f.key())
		return int32(n), ok
	case InhabitedTime, LastUpdate:
		return nbtree.GetInt(c, f.key())
	case Status:
		return nbtree.GetString(c, f.key())
	case Biome:
		return readBiome(c)
	case DeleteEntities:
		l, ok := nbtree.GetList(c, f.key())
		return len(l), ok
	}
	return nil, false
}

// ApplyChange writes the staged value only where the field already exists
// and reports whether the tree was modified.
func (f *Field) ApplyChange(root nbtree.Compound) bool {
	if !f.set || root == nil {
		return false
	}
	c := f.container(root, false)
	switch f.kind {
	case Biome:
		return changeBiome(c, f.value.(biomeValue))
	case DeleteEntities:
		if !f.value.(bool) || !nbtree.Has(c, f.key()) {
			return false
		}
		nbtree.PutList(c, f.key(), []any{})
		return true
	default:
		if !nbtree.Has(c, f.key()) {
			return false
		}
		f.put(c)
		return true
	}
}

// ApplyForce writes the staged value unconditionally, creating intermediate
// structure as needed, and reports whether the tree was modified.
func (f *Field) ApplyForce(root nbtree.Compound) bool {
	if !f.set || root == nil {
		return false
	}
	c := f.container(root, true)
	switch f.kind {
	case Biome:
		dv, _ := nbtree.GetInt(root, "DataVersion")
		return forceBiome(c, dv, f.value.(biomeValue))
	case DeleteEntities:
		if !f.value.(bool) {
			return false
		}
		nbtree.PutList(c, f.key(), []any{})
		return true
	default:
		f.put(c)
		return true
	}
}

// Apply dispatches to ApplyForce or ApplyChange.
func (f *Field) Apply(root nbtree.Compound, force bool) bool {
	if force {
		return f.ApplyForce(root)
	}
	return f.ApplyChange(root)
}

func (f *Field) put(c nbtree.Compound) {
	switch v := f.value.(type) {
	case int8:
		nbtree.PutByte(c, f.key(), v)
	case int32:
		nbtree.PutInt(c, f.key(), v)
	case int64:
		nbtree.PutLong(c, f.key(), v)
	case string:
		nbtree.PutString(c, f.key(), v)
	}
}

// ApplyAll applies every field to root and reports whether any changed it.
func ApplyAll(fields []*Field, root nbtree.Compound, force bool) bool {
	changed := false
	for _, f := range fields {
		if f.Apply(root, force) {
			changed = true
		}
	}
	return changed
}
