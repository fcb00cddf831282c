package graph

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

// MaxChildren is the number of child slots an ancestor lookup reports.
const MaxChildren = 3

// Role names one slot of an ancestor lookup.
type Role int

const (
	RoleParent Role = iota
	RoleGrandParent
	RoleChild1
	RoleChild2
	RoleChild3
)

// Roles lists every ancestor role in output order.
var Roles = []Role{RoleParent, RoleGrandParent, RoleChild1, RoleChild2, RoleChild3}

func (r Role) String() string {
	switch r {
	case RoleParent:
		return "parent"
	case RoleGrandParent:
		return "grand_parent"
	case RoleChild1:
		return "child_1"
	case RoleChild2:
		return "child_2"
	case RoleChild3:
		return "child_3"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Ancestors is the result of an ancestor lookup. Every field holds a global
// token index or Absent.
type Ancestors struct {
	Parent      int
	GrandParent int
	Children    [MaxChildren]int
}

func noAncestors() Ancestors {
	return Ancestors{
		Parent:      Absent,
		GrandParent: Absent,
		Children:    [MaxChildren]int{Absent, Absent, Absent},
	}
}

// Node returns the token resolved for role r.
func (a Ancestors) Node(r Role) int {
	switch r {
	case RoleParent:
		return a.Parent
	case RoleGrandParent:
		return a.GrandParent
	case RoleChild1, RoleChild2, RoleChild3:
		return a.Children[r-RoleChild1]
	}
	return Absent
}

type frame struct {
	node int // arena index
	next int // cursor into adj[node]
}

// search runs a depth-first search from start until target is on top of the
// stack. The returned stack holds the nodes from start to target inclusive;
// visited is owned by this call only.
func (g *Dependency) search(start, target int) ([]frame, *roaring.Bitmap, bool) {
	visited := roaring.New()
	visited.Add(uint32(start))
	stack := []frame{{node: start}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.node == target {
			return stack, visited, true
		}
		if top.next >= len(g.adj[top.node]) {
			stack = stack[:len(stack)-1]
			continue
		}
		v := g.adj[top.node][top.next]
		top.next++
		if visited.CheckedAdd(uint32(v)) {
			stack = append(stack, frame{node: v})
		}
	}
	return nil, visited, false
}

// LookupAncestors searches from the root for target and reports its parent,
// grandparent and up to three children in ascending index order.
func (g *Dependency) LookupAncestors(target int) (Ancestors, error) {
	res := noAncestors()
	if !g.Contains(target) {
		return res, fmt.Errorf("%w: token %d, proposition %d", ErrNotInGraph, target, g.proposition)
	}
	local := target - g.lower
	stack, visited, found := g.search(g.root, local)
	if !found {
		return res, fmt.Errorf("%w: proposition %d: token %d unreachable", ErrMalformedTree, g.proposition, target)
	}

	parent := Absent
	if d := len(stack); d >= 2 {
		parent = stack[d-2].node
		res.Parent = parent + g.lower
		if d >= 3 {
			res.GrandParent = stack[d-3].node + g.lower
		}
	}

	var n int
	for _, v := range g.adj[local] {
		if n == MaxChildren {
			break
		}
		if v == parent || visited.Contains(uint32(v)) {
			continue
		}
		res.Children[n] = v + g.lower
		n++
	}
	return res, nil
}

// LookupPath returns the tokens on the tree path from source towards
// predicate, source first and predicate excluded. The path is empty when
// source is the predicate.
func (g *Dependency) LookupPath(source, predicate int) ([]int, error) {
	for _, i := range []int{source, predicate} {
		if !g.Contains(i) {
			return nil, fmt.Errorf("%w: token %d, proposition %d", ErrNotInGraph, i, g.proposition)
		}
	}
	stack, _, found := g.search(source-g.lower, predicate-g.lower)
	if !found {
		return nil, fmt.Errorf("%w: proposition %d: no path %d -> %d", ErrMalformedTree, g.proposition, source, predicate)
	}
	path := make([]int, len(stack)-1)
	for k := range path {
		path[k] = stack[k].node + g.lower
	}
	return path, nil
}
