// Package filter decides which chunks and regions a batch operation touches.
//
// A filter is a tree: leaves compare one chunk property against a value and
// groups combine their children left to right with AND/OR, optionally
// inverting the result.
package filter

import (
	"github.com/ZanzyTHEbar/mca-batch/mcab/nbtree"
	"github.com/ZanzyTHEbar/mca-batch/mcab/region"
)

// Operator combines a filter with the result accumulated before it.
type Operator int

const (
	And Operator = iota
	Or
)

func (o Operator) String() string {
	if o == Or {
		return "OR"
	}
	return "AND"
}

// Data is what a filter is evaluated against: one chunk of one region.
type Data struct {
	Region region.Coordinate
	Chunk  *region.Chunk
}

// ChunkPos returns the absolute chunk coordinate.
func (d Data) ChunkPos() (x, z int) {
	return d.Region.ChunkPos(d.Chunk.Index())
}

// Tree returns the chunk's decoded NBT, or false when it cannot be decoded.
func (d Data) Tree() (nbtree.Compound, bool) {
	if d.Chunk == nil {
		return nil, false
	}
	t, err := d.Chunk.Tree()
	return t, err == nil
}

// Filter is a node of the filter tree.
type Filter interface {
	// Operator is the operator joining this node to its preceding siblings.
	Operator() Operator
	SetOperator(Operator)
	Matches(d Data) bool
	Valid() bool
	Clone() Filter
	String() string
}
