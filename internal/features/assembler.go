package features

import (
	"errors"
	"fmt"

	"github.com/agentic-research/propfeat/api"
	"github.com/agentic-research/propfeat/internal/graph"
	"github.com/agentic-research/propfeat/internal/segment"
	"github.com/agentic-research/propfeat/internal/table"
)

var ErrNoExtractors = errors.New("no extractors configured")

// Options configures an Assembler.
type Options struct {
	Graph graph.Columns
}

func DefaultOptions() Options {
	return Options{Graph: graph.DefaultColumns()}
}

// Assembler runs the configured extractors over single propositions. It is
// safe for concurrent use: every call builds its own graph and block.
type Assembler struct {
	table      *table.Table
	extractors []Extractor
	needsGraph bool
	graphCols  graph.Columns
}

// NewAssembler validates specs against the table catalog and instantiates
// the extractors. Unknown columns fail here, before any proposition runs.
func NewAssembler(t *table.Table, specs []api.Extractor, opts Options) (*Assembler, error) {
	if len(specs) == 0 {
		return nil, ErrNoExtractors
	}
	a := &Assembler{
		table:     t,
		graphCols: opts.Graph,
	}
	for _, spec := range specs {
		x, err := newExtractor(t, spec)
		if err != nil {
			return nil, fmt.Errorf("extractor %s: %w", spec.Kind, err)
		}
		if x.Kind().NeedsGraph() {
			a.needsGraph = true
		}
		a.extractors = append(a.extractors, x)
	}
	if a.needsGraph {
		if err := requireColumns(t, KindAncestors, opts.Graph.ID, opts.Graph.Head); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Kinds returns the configured extractor kinds in run order.
func (a *Assembler) Kinds() []Kind {
	out := make([]Kind, len(a.extractors))
	for i, x := range a.extractors {
		out[i] = x.Kind()
	}
	return out
}

func (a *Assembler) NeedsGraph() bool {
	return a.needsGraph
}

// AssembleProposition extracts every configured feature family for p. A
// proposition marked invalid by the segmenter or with a malformed tree is
// returned as an error and produces no block.
func (a *Assembler) AssembleProposition(p segment.Proposition) (*Block, error) {
	if p.Invalid != nil {
		return nil, p.Invalid
	}
	view := View{Table: a.table, Proposition: p}
	if a.needsGraph {
		g, err := graph.Build(a.table, p, a.graphCols)
		if err != nil {
			return nil, err
		}
		view.Graph = g
	}
	block := NewBlock(p.Lower, p.Upper)
	for _, x := range a.extractors {
		if err := x.Extract(view, block); err != nil {
			return nil, fmt.Errorf("%s: %w", x.Kind(), err)
		}
	}
	return block, nil
}
