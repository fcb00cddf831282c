package features

import (
	"fmt"

	"github.com/agentic-research/propfeat/api"
	"github.com/agentic-research/propfeat/internal/table"
	"github.com/czcorpus/cnc-gokit/collections"
)

const (
	PolicySyntactic = "syntactic"
	PolicyAll       = "all"
)

// DefaultPathColumns are the columns meaningful along a syntactic path.
var DefaultPathColumns = []string{"GPOS", "FUNC"}

// pathExtractor projects columns through every node on the tree path from a
// token to its predicate: {COL}_00, {COL}_01, ...
type pathExtractor struct {
	columns   []string
	maxLength int
}

func newPathExtractor(t *table.Table, spec api.Extractor) (*pathExtractor, error) {
	pathCols := spec.PathColumns
	if len(pathCols) == 0 {
		pathCols = DefaultPathColumns
	}
	var cols []string
	switch orDefault(spec.Policy, PolicySyntactic) {
	case PolicySyntactic:
		if len(spec.Columns) == 0 {
			cols = pathCols
			break
		}
		for _, c := range spec.Columns {
			if collections.SliceContains(pathCols, c) {
				cols = append(cols, c)
			}
		}
	case PolicyAll:
		cols = spec.Columns
	default:
		return nil, fmt.Errorf("unknown path policy %q", spec.Policy)
	}
	if len(cols) == 0 {
		return nil, errNoColumns
	}
	if spec.MaxLength < 0 {
		return nil, fmt.Errorf("negative max_length %d", spec.MaxLength)
	}
	if err := requireColumns(t, KindPredicatePath, cols...); err != nil {
		return nil, err
	}
	return &pathExtractor{columns: cols, maxLength: spec.MaxLength}, nil
}

func (x *pathExtractor) Kind() Kind {
	return KindPredicatePath
}

func positionName(col string, k int) string {
	return featureName(col, fmt.Sprintf("%02d", k))
}

func (x *pathExtractor) Extract(v View, out *Block) error {
	for k := 0; k < x.maxLength; k++ {
		for _, col := range x.columns {
			out.Declare(positionName(col, k))
		}
	}
	p := v.Proposition
	if !p.HasPredicate() {
		return nil
	}
	for i := p.Lower; i < p.Upper; i++ {
		path, err := v.Graph.LookupPath(i, p.Predicate)
		if err != nil {
			return err
		}
		for k, node := range path {
			if x.maxLength > 0 && k >= x.maxLength {
				break
			}
			for _, col := range x.columns {
				out.Set(positionName(col, k), i, project(v.Table, col, node))
			}
		}
	}
	return nil
}
