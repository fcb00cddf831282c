package ingest

import (
	"fmt"

	"github.com/agentic-research/propfeat/api"
	"github.com/agentic-research/propfeat/internal/config"
	"github.com/agentic-research/propfeat/internal/corpus"
	billy "github.com/go-git/go-billy/v5"
)

// OpenSink creates the sink selected by a validated output block. The
// SQLite store lives on the host filesystem; text output goes through fs.
func OpenSink(fs billy.Filesystem, out *api.Output, marker string) (Sink, error) {
	switch out.Format {
	case config.OutputSQLite:
		return NewFeatureWriter(out.Path)
	case config.OutputTSV:
		return NewTSVWriter(fs, out.Path, marker)
	}
	return nil, fmt.Errorf("%w: unknown output format %q", config.ErrInvalidConfig, out.Format)
}

// LoadCorpus reads the configured corpus from paths.
func LoadCorpus(fs billy.Filesystem, c *api.Corpus, paths ...string) (*corpus.Corpus, error) {
	switch c.Format {
	case config.FormatConll:
		return corpus.NewReader(fs, c.Columns).Read(paths...)
	case config.FormatSQLite:
		return LoadSQLiteCorpus(c.Columns, c.Selectors, paths...)
	}
	return nil, fmt.Errorf("%w: unknown corpus format %q", config.ErrInvalidConfig, c.Format)
}
