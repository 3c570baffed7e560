package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/mca-batch/mcab/changer"
	"github.com/ZanzyTHEbar/mca-batch/mcab/common"
	"github.com/ZanzyTHEbar/mca-batch/mcab/region"
)

// Field selects the chunk property a leaf compares.
type Field int

const (
	XPos Field = iota
	ZPos
	DataVersion
	InhabitedTime
	LastUpdate
	Timestamp
	Status
	LightPopulated
	Entities
	Biome

	fieldCount
)

// Comparator is the comparison a leaf performs. The zero value means no
// comparator has been chosen yet.
type Comparator int

const (
	NoComparator Comparator = iota
	Equal
	NotEqual
	Less
	LessEqual
	Greater
	GreaterEqual
	Between
	Regex
	Contains
	NotContains
)

var comparatorSymbols = map[Comparator]string{
	Equal:        "=",
	NotEqual:     "!=",
	Less:         "<",
	LessEqual:    "<=",
	Greater:      ">",
	GreaterEqual: ">=",
	Between:      "in",
	Regex:        "=~",
	Contains:     "contains",
	NotContains:  "!contains",
}

func (c Comparator) String() string {
	if s, ok := comparatorSymbols[c]; ok {
		return s
	}
	return "?"
}

// ParseComparator resolves a comparator symbol.
func ParseComparator(s string) (Comparator, bool) {
	s = strings.ToLower(s)
	for c, sym := range comparatorSymbols {
		if sym == s {
			return c, true
		}
	}
	return NoComparator, false
}

type valueKind int

const (
	numeric valueKind = iota
	text
	biome
)

var numericComparators = []Comparator{Equal, NotEqual, Less, LessEqual, Greater, GreaterEqual, Between}

type fieldDef struct {
	name        string
	kind        valueKind
	comparators []Comparator
	// reader extracts the value through the field catalog; nil for fields
	// that do not live in the chunk's NBT.
	reader *changer.Field
}

var fieldDefs = [fieldCount]fieldDef{
	XPos:           {name: "xPos", kind: numeric, comparators: numericComparators},
	ZPos:           {name: "zPos", kind: numeric, comparators: numericComparators},
	DataVersion:    {name: "DataVersion", kind: numeric, comparators: numericComparators, reader: changer.New(changer.DataVersion)},
	InhabitedTime:  {name: "InhabitedTime", kind: numeric, comparators: numericComparators, reader: changer.New(changer.InhabitedTime)},
	LastUpdate:     {name: "LastUpdate", kind: numeric, comparators: numericComparators, reader: changer.New(changer.LastUpdate)},
	Timestamp:      {name: "Timestamp", kind: numeric, comparators: numericComparators},
	Status:         {name: "Status", kind: text, comparators: []Comparator{Equal, NotEqual, Regex}, reader: changer.New(changer.Status)},
	LightPopulated: {name: "LightPopulated", kind: numeric, comparators: []Comparator{Equal, NotEqual}, reader: changer.New(changer.LightPopulated)},
	Entities:       {name: "Entities", kind: numeric, comparators: numericComparators, reader: changer.New(changer.DeleteEntities)},
	Biome:          {name: "Biome", kind: biome, comparators: []Comparator{Contains, NotContains}},
}

func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldDefs[f].name
}

// Comparators lists the comparators the field accepts.
func (f Field) Comparators() []Comparator {
	return fieldDefs[f].comparators
}

func (f Field) accepts(c Comparator) bool {
	for _, a := range fieldDefs[f].comparators {
		if a == c {
			return true
		}
	}
	return false
}

type span struct{ lo, hi int64 }

type biomeRef struct {
	id   int32
	name string
}

// Leaf compares one chunk property with a target value.
type Leaf struct {
	op    Operator
	field Field
	cmp   Comparator
	raw   string
	value any
}

// NewLeaf builds a leaf and validates comparator and value. On error the leaf
// is still returned, invalid, so an editor can keep it around.
func NewLeaf(op Operator, field Field, cmp Comparator, raw string) (*Leaf, error) {
	l := &Leaf{op: op, field: field}
	if err := l.SetComparator(cmp); err != nil {
		return l, err
	}
	return l, l.SetValue(raw)
}

func (l *Leaf) Operator() Operator     { return l.op }
func (l *Leaf) SetOperator(o Operator) { l.op = o }
func (l *Leaf) Field() Field           { return l.field }
func (l *Leaf) Comparator() Comparator { return l.cmp }
func (l *Leaf) RawValue() string       { return l.raw }

// SetComparator changes the comparator and re-parses the current value.
func (l *Leaf) SetComparator(c Comparator) error {
	if !l.field.accepts(c) {
		l.cmp = NoComparator
		return fmt.Errorf("%w: %s does not support comparator %s", common.ErrParse, l.field, c)
	}
	l.cmp = c
	if l.raw != "" {
		return l.SetValue(l.raw)
	}
	return nil
}

// SetValue parses raw for the leaf's field and comparator.
func (l *Leaf) SetValue(raw string) error {
	l.raw = raw
	l.value = nil
	v, err := l.parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %s %s %q: %v", common.ErrParse, l.field, l.cmp, raw, err)
	}
	l.value = v
	return nil
}

func (l *Leaf) parse(s string) (any, error) {
	def := fieldDefs[l.field]
	switch def.kind {
	case numeric:
		if l.cmp == Between {
			lo, hi, ok := strings.Cut(s, "..")
			if !ok {
				return nil, fmt.Errorf("range must look like min..max")
			}
			a, errA := strconv.ParseInt(strings.TrimSpace(lo), 10, 64)
			b, errB := strconv.ParseInt(strings.TrimSpace(hi), 10, 64)
			if errA != nil || errB != nil {
				return nil, fmt.Errorf("range bounds must be integers")
			}
			if a > b {
				return nil, fmt.Errorf("range minimum exceeds maximum")
			}
			return span{a, b}, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer")
		}
		if l.field == LightPopulated && n != 0 && n != 1 {
			return nil, fmt.Errorf("must be 0 or 1")
		}
		return n, nil
	case text:
		if l.cmp == Regex {
			re, err := regexp.Compile(s)
			if err != nil {
				return nil, err
			}
			return re, nil
		}
		if !changer.ValidStatus(s) {
			return nil, fmt.Errorf("unknown status")
		}
		return strings.TrimPrefix(s, "minecraft:"), nil
	case biome:
		if n, err := strconv.ParseInt(s, 10, 32); err == nil {
			name, _ := changer.BiomeName(int32(n))
			return biomeRef{id: int32(n), name: name}, nil
		}
		id, ok := changer.BiomeID(s)
		if !ok {
			return nil, fmt.Errorf("unknown biome")
		}
		name, _ := changer.BiomeName(id)
		return biomeRef{id: id, name: name}, nil
	}
	return nil, fmt.Errorf("unsupported field")
}

// Valid reports whether the leaf has a comparator and a parsed value.
func (l *Leaf) Valid() bool {
	return l.cmp != NoComparator && l.value != nil
}

func (l *Leaf) Clone() Filter {
	c := *l
	return &c
}

func (l *Leaf) String() string {
	v := l.raw
	if v == "" || strings.ContainsAny(v, " ()\"=<>!") {
		v = strconv.Quote(v)
	}
	return fmt.Sprintf("%s %s %s", l.field, l.cmp, v)
}

// Matches evaluates the leaf against one chunk. A chunk lacking the property
// never matches.
func (l *Leaf) Matches(d Data) bool {
	if !l.Valid() {
		return false
	}
	switch l.field {
	case XPos, ZPos:
		x, z := d.ChunkPos()
		if l.field == XPos {
			return l.compareInt(int64(x))
		}
		return l.compareInt(int64(z))
	case Timestamp:
		return l.compareInt(int64(d.Chunk.Timestamp()))
	case Biome:
		tree, ok := d.Tree()
		if !ok {
			return false
		}
		ref := l.value.(biomeRef)
		found := changer.ContainsBiome(tree, ref.id, ref.name)
		return found == (l.cmp == Contains)
	}

	tree, ok := d.Tree()
	if !ok {
		return false
	}
	v, ok := fieldDefs[l.field].reader.ReadCurrent(tree)
	if !ok {
		return false
	}
	switch cur := v.(type) {
	case string:
		return l.compareString(strings.TrimPrefix(cur, "minecraft:"))
	case int8:
		return l.compareInt(int64(cur))
	case int32:
		return l.compareInt(int64(cur))
	case int64:
		return l.compareInt(cur)
	case int:
		return l.compareInt(int64(cur))
	}
	return false
}

func (l *Leaf) compareInt(a int64) bool {
	if l.cmp == Between {
		s := l.value.(span)
		return a >= s.lo && a <= s.hi
	}
	b, ok := l.value.(int64)
	if !ok {
		return false
	}
	switch l.cmp {
	case Equal:
		return a == b
	case NotEqual:
		return a != b
	case Less:
		return a < b
	case LessEqual:
		return a <= b
	case Greater:
		return a > b
	case GreaterEqual:
		return a >= b
	}
	return false
}

func (l *Leaf) compareString(a string) bool {
	switch v := l.value.(type) {
	case *regexp.Regexp:
		return v.MatchString(a)
	case string:
		if l.cmp == NotEqual {
			return a != v
		}
		return a == v
	}
	return false
}

// matchesRegion reports whether some chunk of region r could satisfy a
// coordinate leaf. Leaves on other fields cannot rule out a region.
func (l *Leaf) matchesRegion(r region.Coordinate) bool {
	if !l.Valid() || (l.field != XPos && l.field != ZPos) {
		return true
	}
	minX, minZ := r.ChunkMin()
	maxX, maxZ := r.ChunkMax()
	lo, hi := int64(minX), int64(maxX)
	if l.field == ZPos {
		lo, hi = int64(minZ), int64(maxZ)
	}
	if l.cmp == Between {
		s := l.value.(span)
		return s.lo <= hi && s.hi >= lo
	}
	v := l.value.(int64)
	switch l.cmp {
	case Equal:
		return v >= lo && v <= hi
	case NotEqual:
		return lo != hi || lo != v
	case Less:
		return lo < v
	case LessEqual:
		return lo <= v
	case Greater:
		return hi > v
	case GreaterEqual:
		return hi >= v
	}
	return true
}
