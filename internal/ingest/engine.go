// Package ingest drives feature extraction over a loaded corpus and moves
// corpora and feature tables in and out of SQLite and text files.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentic-research/propfeat/api"
	"github.com/agentic-research/propfeat/internal/config"
	"github.com/agentic-research/propfeat/internal/corpus"
	"github.com/agentic-research/propfeat/internal/features"
	"github.com/agentic-research/propfeat/internal/graph"
	"github.com/agentic-research/propfeat/internal/segment"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Rejection records a proposition excluded from the output.
type Rejection struct {
	Proposition int
	Lower       int
	Upper       int
	Err         error
}

// RejectedError fails a strict run. It lists every rejected proposition,
// not only the first one.
type RejectedError struct {
	Rejections []Rejection
}

func (e *RejectedError) Error() string {
	if len(e.Rejections) == 0 {
		return "no propositions rejected"
	}
	return fmt.Sprintf("%d proposition(s) rejected, first: %v", len(e.Rejections), e.Rejections[0].Err)
}

func (e *RejectedError) Unwrap() []error {
	errs := make([]error, len(e.Rejections))
	for i, r := range e.Rejections {
		errs[i] = r.Err
	}
	return errs
}

// Stats summarizes a run.
type Stats struct {
	Propositions     int
	Tokens           int
	Rejected         int
	MissingPredicate int
	Elapsed          time.Duration
}

// Result is everything a run produced.
type Result struct {
	RunID        string
	Config       *api.Config
	Propositions []segment.Proposition
	Partitions   []corpus.Partition
	Frame        *features.Frame
	Rejections   []Rejection
	Stats        Stats
}

// Engine extracts features from one corpus.
type Engine struct {
	conf      *api.Config
	corpus    *corpus.Corpus
	props     []segment.Proposition
	assembler *features.Assembler
}

// NewEngine segments the corpus and validates the extractors against its
// columns. conf must have passed config.ValidateAndDefaults.
func NewEngine(c *corpus.Corpus, conf *api.Config) (*Engine, error) {
	props, err := segment.Segment(c.Table, config.SegmentOptions(conf.Corpus))
	if err != nil {
		return nil, err
	}
	a, err := features.NewAssembler(c.Table, conf.Extractors, features.Options{
		Graph: config.GraphColumns(conf.Corpus),
	})
	if err != nil {
		return nil, err
	}
	kinds := make([]string, 0, len(conf.Extractors))
	for _, k := range a.Kinds() {
		kinds = append(kinds, k.String())
	}
	log.Debug().
		Strs("extractors", kinds).
		Bool("dependencyTrees", a.NeedsGraph()).
		Int("propositions", len(props)).
		Msg("engine ready")
	return &Engine{
		conf:      conf,
		corpus:    c,
		props:     props,
		assembler: a,
	}, nil
}

func (e *Engine) Propositions() []segment.Proposition {
	return e.props
}

// rejectable reports whether err excludes a single proposition rather than
// the whole run.
func rejectable(err error) bool {
	return errors.Is(err, graph.ErrMalformedTree) || errors.Is(err, segment.ErrDuplicatePredicate)
}

// Run extracts features for every proposition. Propositions are spread over
// conf.Workers goroutines; blocks are merged in proposition order, so the
// result does not depend on the worker count. A strict run with rejected
// propositions returns the result together with a *RejectedError.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	blocks := make([]*features.Block, len(e.props))
	failed := make([]error, len(e.props))

	g, gctx := errgroup.WithContext(ctx)
	workers := e.conf.Workers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)
	for i := range e.props {
		if gctx.Err() != nil {
			break
		}
		i := i // per-iteration copy; go.mod targets go 1.21
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := e.assembler.AssembleProposition(e.props[i])
			if err != nil {
				if rejectable(err) {
					failed[i] = err
					return nil
				}
				return fmt.Errorf("proposition %d: %w", e.props[i].ID, err)
			}
			blocks[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		RunID:        uuid.New().String(),
		Config:       e.conf,
		Propositions: e.props,
		Partitions:   e.corpus.Partitions,
		Frame:        features.NewFrame(e.corpus.Table.Len()),
	}
	for i, p := range e.props {
		if failed[i] != nil {
			res.Rejections = append(res.Rejections, Rejection{
				Proposition: p.ID,
				Lower:       p.Lower,
				Upper:       p.Upper,
				Err:         failed[i],
			})
			res.Frame.Drop(p.Lower, p.Upper)
			log.Warn().
				Int("proposition", p.ID).
				Int("lower", p.Lower).
				Int("upper", p.Upper).
				Err(failed[i]).
				Msg("proposition rejected")
			continue
		}
		if !p.HasPredicate() {
			res.Stats.MissingPredicate++
		}
		res.Frame.Merge(blocks[i])
		res.Stats.Tokens += p.Len()
	}
	res.Stats.Propositions = len(e.props)
	res.Stats.Rejected = len(res.Rejections)
	res.Stats.Elapsed = time.Since(start)

	log.Info().
		Str("run", res.RunID).
		Int("propositions", res.Stats.Propositions).
		Int("tokens", res.Stats.Tokens).
		Int("rejected", res.Stats.Rejected).
		Int("missingPredicate", res.Stats.MissingPredicate).
		Int("columns", len(res.Frame.Columns())).
		Dur("elapsed", res.Stats.Elapsed).
		Msg("feature extraction finished")

	if len(res.Rejections) > 0 && !e.conf.SkipMalformed {
		return res, &RejectedError{Rejections: res.Rejections}
	}
	return res, nil
}
