package features

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agentic-research/propfeat/api"
)

var (
	DefaultWindowShifts  = []int{-3, -2, -1, 1, 2, 3}
	DefaultContextShifts = []int{-3, -2, -1, 0, 1, 2, 3}
)

// windowExtractor copies column values of neighbouring tokens. Without
// aroundPredicate the window is centred on each token ({COL}+d); with it the
// window is centred on the predicate ({COL}_CTX_P+d). Positions that leave the
// proposition are missing.
type windowExtractor struct {
	columns         []string
	shifts          []int
	names           [][]string // names[column][shift]
	aroundPredicate bool
}

func newWindowExtractor(spec api.Extractor, aroundPredicate bool) (*windowExtractor, error) {
	if len(spec.Columns) == 0 {
		return nil, errNoColumns
	}
	shifts := append([]int(nil), spec.Shifts...)
	if len(shifts) == 0 {
		shifts = DefaultWindowShifts
		if aroundPredicate {
			shifts = DefaultContextShifts
		}
	}
	sort.Ints(shifts)
	x := &windowExtractor{
		columns:         spec.Columns,
		shifts:          shifts,
		names:           make([][]string, len(spec.Columns)),
		aroundPredicate: aroundPredicate,
	}
	for c, col := range spec.Columns {
		for _, s := range shifts {
			if !aroundPredicate && s == 0 {
				return nil, fmt.Errorf("window shift 0 would copy the column itself")
			}
			name := fmt.Sprintf("%s%+d", strings.ToUpper(col), s)
			if aroundPredicate {
				name = fmt.Sprintf("%s_CTX_P%+d", strings.ToUpper(col), s)
			}
			x.names[c] = append(x.names[c], name)
		}
	}
	return x, nil
}

func (x *windowExtractor) Kind() Kind {
	if x.aroundPredicate {
		return KindPredicateContext
	}
	return KindWindow
}

func (x *windowExtractor) Extract(v View, out *Block) error {
	p := v.Proposition
	for c, col := range x.columns {
		for k, s := range x.shifts {
			name := x.names[c][k]
			out.Declare(name)
			if x.aroundPredicate && !p.HasPredicate() {
				continue
			}
			for i := p.Lower; i < p.Upper; i++ {
				j := i + s
				if x.aroundPredicate {
					j = p.Predicate + s
				}
				if p.Contains(j) {
					out.Set(name, i, project(v.Table, col, j))
				}
			}
		}
	}
	return nil
}
