package features

import (
	"errors"

	"github.com/agentic-research/propfeat/api"
	"github.com/agentic-research/propfeat/internal/graph"
)

var errNoColumns = errors.New("no columns requested")

// ancestorExtractor projects columns through parent, grandparent and the
// first three children of every token: {COL}_PARENT ... {COL}_CHILD_3.
type ancestorExtractor struct {
	columns []string
	names   [][]string // names[role][column]
}

func newAncestorExtractor(spec api.Extractor) (*ancestorExtractor, error) {
	if len(spec.Columns) == 0 {
		return nil, errNoColumns
	}
	x := &ancestorExtractor{
		columns: spec.Columns,
		names:   make([][]string, len(graph.Roles)),
	}
	for r, role := range graph.Roles {
		for _, col := range spec.Columns {
			x.names[r] = append(x.names[r], featureName(col, role.String()))
		}
	}
	return x, nil
}

func (x *ancestorExtractor) Kind() Kind {
	return KindAncestors
}

func (x *ancestorExtractor) Extract(v View, out *Block) error {
	for _, names := range x.names {
		for _, name := range names {
			out.Declare(name)
		}
	}
	p := v.Proposition
	for i := p.Lower; i < p.Upper; i++ {
		a, err := v.Graph.LookupAncestors(i)
		if err != nil {
			return err
		}
		for r, role := range graph.Roles {
			node := a.Node(role)
			for c, col := range x.columns {
				out.Set(x.names[r][c], i, project(v.Table, col, node))
			}
		}
	}
	return nil
}
