package filter

import (
	"strings"

	"github.com/ZanzyTHEbar/mca-batch/mcab/region"
)

// Group owns an ordered list of child filters. Children do not point back at
// their group; Find recovers the parent and position when a structural edit
// needs it.
type Group struct {
	op       Operator
	children []Filter
	inverted bool
}

// NewGroup returns an empty group, which matches everything.
func NewGroup(op Operator, children ...Filter) *Group {
	g := &Group{op: op}
	for _, c := range children {
		g.Add(c)
	}
	return g
}

func (g *Group) Operator() Operator     { return g.op }
func (g *Group) SetOperator(o Operator) { g.op = o }
func (g *Group) Inverted() bool         { return g.inverted }
func (g *Group) SetInverted(inv bool)   { g.inverted = inv }
func (g *Group) Empty() bool            { return len(g.children) == 0 }
func (g *Group) Len() int               { return len(g.children) }

// Children returns the child list. The slice must not be modified.
func (g *Group) Children() []Filter { return g.children }

// Add appends f and returns its index.
func (g *Group) Add(f Filter) int {
	g.children = append(g.children, f)
	return len(g.children) - 1
}

// AddAfter inserts f right after the child after, or appends it when after
// is not a child of g. It returns the index f ended up at.
func (g *Group) AddAfter(f, after Filter) int {
	for i, c := range g.children {
		if c == after {
			g.children = append(g.children, nil)
			copy(g.children[i+2:], g.children[i+1:])
			g.children[i+1] = f
			return i + 1
		}
	}
	return g.Add(f)
}

// Remove deletes the child f and reports whether it was present.
func (g *Group) Remove(f Filter) bool {
	for i, c := range g.children {
		if c == f {
			g.children = append(g.children[:i], g.children[i+1:]...)
			return true
		}
	}
	return false
}

// Find locates target anywhere below g and returns its direct parent and
// index within that parent.
func (g *Group) Find(target Filter) (*Group, int, bool) {
	for i, c := range g.children {
		if c == target {
			return g, i, true
		}
		if sub, ok := c.(*Group); ok {
			if p, idx, found := sub.Find(target); found {
				return p, idx, true
			}
		}
	}
	return nil, 0, false
}

// Matches evaluates the children left to right. Inside an AND run, children
// after the first false one are not evaluated; an OR reached with a true
// result decides the whole group without evaluating the rest.
func (g *Group) Matches(d Data) bool {
	result := true
	for i, c := range g.children {
		if i == 0 || c.Operator() == And {
			if result {
				result = c.Matches(d)
			}
			continue
		}
		if result {
			return !g.inverted
		}
		result = c.Matches(d)
	}
	return g.inverted != result
}

// AppliesToRegion reports whether any chunk of the region can match. A
// false answer is exact; true only means the chunks must be checked.
func (g *Group) AppliesToRegion(r region.Coordinate) bool {
	if g.inverted {
		return true
	}
	for i, c := range g.children {
		if i > 0 && c.Operator() == Or {
			return true
		}
	}
	for _, c := range g.children {
		switch n := c.(type) {
		case *Leaf:
			if !n.matchesRegion(r) {
				return false
			}
		case *Group:
			if !n.AppliesToRegion(r) {
				return false
			}
		}
	}
	return true
}

// Valid reports whether every child is valid.
func (g *Group) Valid() bool {
	for _, c := range g.children {
		if !c.Valid() {
			return false
		}
	}
	return true
}

// Clone deep-copies the group.
func (g *Group) Clone() Filter {
	out := &Group{op: g.op, inverted: g.inverted, children: make([]Filter, len(g.children))}
	for i, c := range g.children {
		out.children[i] = c.Clone()
	}
	return out
}

// String renders the group in the query syntax accepted by Parse.
func (g *Group) String() string {
	return g.render(true)
}

func (g *Group) render(top bool) string {
	var sb strings.Builder
	if g.inverted {
		sb.WriteString("NOT ")
	}
	paren := !top || g.inverted
	if paren {
		sb.WriteByte('(')
	}
	for i, c := range g.children {
		if i > 0 {
			sb.WriteByte(' ')
			sb.WriteString(c.Operator().String())
			sb.WriteByte(' ')
		}
		if sub, ok := c.(*Group); ok {
			sb.WriteString(sub.render(false))
		} else {
			sb.WriteString(c.String())
		}
	}
	if paren {
		sb.WriteByte(')')
	}
	return sb.String()
}
