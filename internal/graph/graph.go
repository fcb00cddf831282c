// Package graph builds the dependency tree of one proposition from the
// head-offset column of a token table and answers structural queries on it.
//
// A Dependency is an arena: node k of the arena is the token Lower+k of the
// proposition. Adjacency lists are undirected, sorted ascending and never
// change after Build. Searches keep their traversal state to themselves.
package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/propfeat/internal/segment"
	"github.com/agentic-research/propfeat/internal/table"
)

// Absent marks a lookup role that resolved to no node.
const Absent = -1

var (
	ErrMalformedTree = errors.New("malformed dependency tree")
	ErrNotInGraph    = errors.New("token is not part of the graph")
)

// Columns names the table columns the builder reads.
type Columns struct {
	ID   string // 1-based ordinal within the proposition
	Head string // head offset, 0 for the root
}

func DefaultColumns() Columns {
	return Columns{ID: "ID", Head: "DTREE"}
}

// Dependency is the undirected dependency tree of one proposition.
type Dependency struct {
	proposition int
	lower       int
	root        int     // arena index
	adj         [][]int // arena indices
}

func malformed(p segment.Proposition, format string, args ...any) error {
	return fmt.Errorf("%w: proposition %d: %s", ErrMalformedTree, p.ID, fmt.Sprintf(format, args...))
}

// Build constructs the tree of proposition p. Every non-root token gets one
// edge to its head, head = i + (DTREE(i) - ID(i)).
func Build(t *table.Table, p segment.Proposition, cols Columns) (*Dependency, error) {
	n := p.Len()
	if n <= 0 {
		return nil, malformed(p, "empty token range [%d, %d)", p.Lower, p.Upper)
	}
	g := &Dependency{
		proposition: p.ID,
		lower:       p.Lower,
		root:        Absent,
		adj:         make([][]int, n),
	}
	for i := p.Lower; i < p.Upper; i++ {
		id, err := t.Int(cols.ID, i)
		if err != nil {
			return nil, malformed(p, "%v", err)
		}
		offset, err := t.Int(cols.Head, i)
		if err != nil {
			return nil, malformed(p, "%v", err)
		}
		if offset == 0 {
			if g.root != Absent {
				return nil, malformed(p, "second root at token %d, first at %d", i, g.root+p.Lower)
			}
			g.root = i - p.Lower
			continue
		}
		head := i + (offset - id)
		if !p.Contains(head) {
			return nil, malformed(p, "head %d of token %d outside [%d, %d)", head, i, p.Lower, p.Upper)
		}
		if head == i {
			return nil, malformed(p, "token %d is its own head", i)
		}
		u, v := i-p.Lower, head-p.Lower
		g.adj[u] = append(g.adj[u], v)
		g.adj[v] = append(g.adj[v], u)
	}
	if g.root == Absent {
		return nil, malformed(p, "no root token")
	}
	for _, nb := range g.adj {
		sort.Ints(nb)
	}
	if reached := g.reachable(); reached != n {
		return nil, malformed(p, "%d of %d tokens unreachable from root %d", n-reached, n, g.Root())
	}
	return g, nil
}

// reachable counts the nodes connected to the root. With n-1 edges anything
// short of n means the offsets encoded a cycle.
func (g *Dependency) reachable() int {
	seen := roaring.New()
	seen.Add(uint32(g.root))
	stack := []int{g.root}
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, v := range g.adj[u] {
			if seen.CheckedAdd(uint32(v)) {
				stack = append(stack, v)
			}
		}
	}
	return int(seen.GetCardinality())
}

// Proposition returns the id of the proposition the graph was built from.
func (g *Dependency) Proposition() int {
	return g.proposition
}

// Root returns the global index of the root token.
func (g *Dependency) Root() int {
	return g.root + g.lower
}

// Len returns the number of nodes.
func (g *Dependency) Len() int {
	return len(g.adj)
}

// Contains reports whether global token i is a node of the graph.
func (g *Dependency) Contains(i int) bool {
	return i >= g.lower && i < g.lower+len(g.adj)
}

// Edges returns the number of undirected edges.
func (g *Dependency) Edges() int {
	var deg int
	for _, nb := range g.adj {
		deg += len(nb)
	}
	return deg / 2
}
