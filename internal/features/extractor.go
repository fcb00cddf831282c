// Package features turns propositions of a token table into named feature
// columns. Each extractor is one variant of the closed Kind enumeration.
package features

import (
	"fmt"
	"strings"

	"github.com/agentic-research/propfeat/api"
	"github.com/agentic-research/propfeat/internal/graph"
	"github.com/agentic-research/propfeat/internal/segment"
	"github.com/agentic-research/propfeat/internal/table"
)

// View is everything an extractor may read while processing one proposition.
type View struct {
	Table       *table.Table
	Proposition segment.Proposition
	// Graph is nil unless some configured extractor needs the tree.
	Graph *graph.Dependency
}

// Extractor fills the features of one family for every token of a proposition.
type Extractor interface {
	Kind() Kind
	Extract(v View, out *Block) error
}

// UnknownColumnError reports a requested column missing from the table.
type UnknownColumnError struct {
	Extractor string
	Column    string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("extractor %s: unknown column %q", e.Extractor, e.Column)
}

func (e *UnknownColumnError) Unwrap() error {
	return table.ErrUnknownColumn
}

// featureName builds an output column name, always upper-cased.
func featureName(column, suffix string) string {
	return strings.ToUpper(column + "_" + suffix)
}

// project reads column at node, missing when node is graph.Absent.
func project(t *table.Table, column string, node int) Value {
	if node == graph.Absent {
		return Missing()
	}
	v, err := t.Value(column, node)
	if err != nil {
		return Missing()
	}
	return Text(v)
}

func requireColumns(t *table.Table, kind Kind, cols ...string) error {
	for _, c := range cols {
		if !t.Has(c) {
			return &UnknownColumnError{Extractor: kind.String(), Column: c}
		}
	}
	return nil
}

func orDefault(v, dflt string) string {
	if v == "" {
		return dflt
	}
	return v
}

// newExtractor instantiates the variant selected by spec.Kind after checking
// every column it will read.
func newExtractor(t *table.Table, spec api.Extractor) (Extractor, error) {
	kind, err := ParseKind(spec.Kind)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(t, kind, spec.Columns...); err != nil {
		return nil, err
	}
	switch kind {
	case KindAncestors:
		return newAncestorExtractor(spec)
	case KindPredicatePath:
		return newPathExtractor(t, spec)
	case KindWindow:
		return newWindowExtractor(spec, false)
	case KindPredicateContext:
		return newWindowExtractor(spec, true)
	case KindPredicateDistance:
		return predicateDistance{}, nil
	case KindPredicateMarker:
		return predicateMarker{}, nil
	case KindPassiveVoice:
		return newPassiveVoice(t, spec)
	case KindPredicateMorph:
		return newPredicateMorph(t, spec)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
}
