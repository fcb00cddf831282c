// Package segment partitions a token table into propositions: contiguous
// half-open token ranges sharing one proposition id.
package segment

import (
	"errors"
	"fmt"

	"github.com/agentic-research/propfeat/internal/table"
)

// NoPredicate is the Predicate value of a proposition without a predicate token.
const NoPredicate = -1

var (
	// ErrNonContiguous means a proposition id reappears after its range was closed.
	ErrNonContiguous = errors.New("proposition tokens are not contiguous")
	// ErrDuplicatePredicate means more than one token of a proposition is flagged as predicate.
	ErrDuplicatePredicate = errors.New("proposition has more than one predicate")
)

// Proposition is the token range [Lower, Upper) of one proposition.
type Proposition struct {
	ID        int
	Lower     int
	Upper     int
	Predicate int // global token index, NoPredicate when absent

	// Invalid is set when the proposition cannot be feature-extracted.
	Invalid error
}

func (p Proposition) Len() int {
	return p.Upper - p.Lower
}

func (p Proposition) Contains(i int) bool {
	return i >= p.Lower && i < p.Upper
}

func (p Proposition) HasPredicate() bool {
	return p.Predicate != NoPredicate
}

// Options selects the predicate flag column and its placeholder value.
type Options struct {
	PredicateColumn string
	Placeholder     string
}

func DefaultOptions() Options {
	return Options{
		PredicateColumn: "PRED",
		Placeholder:     "-",
	}
}

// IsPredicate reports whether a predicate column value flags a predicate.
func (o Options) IsPredicate(v string) bool {
	return v != "" && v != o.Placeholder
}

// Segment scans t in token order and returns its propositions in order.
func Segment(t *table.Table, opts Options) ([]Proposition, error) {
	preds, ok := t.Column(opts.PredicateColumn)
	if !ok {
		return nil, fmt.Errorf("%w: %s", table.ErrUnknownColumn, opts.PredicateColumn)
	}

	var props []Proposition
	seen := make(map[int]struct{})
	for i := 0; i < t.Len(); i++ {
		id := t.Proposition(i)
		if len(props) == 0 || props[len(props)-1].ID != id {
			if _, dup := seen[id]; dup {
				return nil, fmt.Errorf("%w: proposition %d resumes at token %d", ErrNonContiguous, id, i)
			}
			seen[id] = struct{}{}
			if len(props) > 0 {
				props[len(props)-1].Upper = i
			}
			props = append(props, Proposition{ID: id, Lower: i, Predicate: NoPredicate})
		}
		cur := &props[len(props)-1]
		if !opts.IsPredicate(preds[i]) {
			continue
		}
		if cur.Predicate != NoPredicate {
			cur.Invalid = fmt.Errorf("%w: tokens %d and %d", ErrDuplicatePredicate, cur.Predicate, i)
			continue
		}
		cur.Predicate = i
	}
	if len(props) > 0 {
		props[len(props)-1].Upper = t.Len()
	}
	return props, nil
}

// Index maps a proposition id to its position in a Segment result.
type Index map[int]int

func NewIndex(props []Proposition) Index {
	idx := make(Index, len(props))
	for i, p := range props {
		idx[p.ID] = i
	}
	return idx
}

// Lookup returns the proposition with the given id.
func (idx Index) Lookup(props []Proposition, id int) (Proposition, bool) {
	i, ok := idx[id]
	if !ok {
		return Proposition{}, false
	}
	return props[i], true
}
