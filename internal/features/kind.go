package features

import (
	"errors"
	"fmt"
	"sort"
)

// Kind enumerates the feature extractors. The set is closed: new extractors
// are added here and in newExtractor, never looked up by name at runtime.
type Kind int

const (
	KindAncestors Kind = iota + 1
	KindPredicatePath
	KindWindow
	KindPredicateContext
	KindPredicateDistance
	KindPredicateMarker
	KindPassiveVoice
	KindPredicateMorph
)

var ErrUnknownKind = errors.New("unknown extractor kind")

var kindNames = map[Kind]string{
	KindAncestors:         "ancestors",
	KindPredicatePath:     "predicate_path",
	KindWindow:            "window",
	KindPredicateContext:  "predicate_context",
	KindPredicateDistance: "predicate_distance",
	KindPredicateMarker:   "predicate_marker",
	KindPassiveVoice:      "passive_voice",
	KindPredicateMorph:    "predicate_morph",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// NeedsGraph reports whether the extractor reads the dependency tree.
func (k Kind) NeedsGraph() bool {
	return k == KindAncestors || k == KindPredicatePath
}

// ParseKind maps a configuration name to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// KindNames returns all configuration names, sorted.
func KindNames() []string {
	out := make([]string, 0, len(kindNames))
	for _, name := range kindNames {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
