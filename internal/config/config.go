// Package config loads and validates extraction run configurations.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/agentic-research/propfeat/api"
	"github.com/agentic-research/propfeat/internal/corpus"
	"github.com/agentic-research/propfeat/internal/features"
	"github.com/agentic-research/propfeat/internal/graph"
	"github.com/agentic-research/propfeat/internal/segment"
	"github.com/agentic-research/propfeat/internal/table"
	"github.com/czcorpus/cnc-gokit/collections"
	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/rs/zerolog/log"
)

const (
	FormatConll  = "conll"
	FormatSQLite = "sqlite"
	OutputSQLite = "sqlite"
	OutputTSV    = "tsv"

	dfltLogLevel      = "info"
	dfltMissingMarker = "<NONE>"
	dfltOutputPath    = "features.db"
)

var (
	ErrUnsupportedConfig = errors.New("unsupported config file type")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrMarkerCollision   = errors.New("missing marker collides with a corpus value")

	corpusFormats = []string{FormatConll, FormatSQLite}
	outputFormats = []string{OutputSQLite, OutputTSV}
	logLevels     = []string{"debug", "info", "warn", "error"}
)

// Load decodes an .hcl or .json configuration file.
func Load(path string) (*api.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: path not specified", ErrInvalidConfig)
	}
	var conf api.Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		if err := hclsimple.DecodeFile(path, nil, &conf); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	case ".json":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := json.Unmarshal(raw, &conf); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedConfig, path)
	}
	return &conf, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// ValidateAndDefaults fills unset values with defaults, logging each one,
// and rejects configurations no run could satisfy.
func ValidateAndDefaults(conf *api.Config) error {
	if conf.LogLevel == "" {
		conf.LogLevel = dfltLogLevel
	} else if !collections.SliceContains(logLevels, conf.LogLevel) {
		return invalid("unknown log level %q", conf.LogLevel)
	}
	if conf.Workers <= 0 {
		conf.Workers = runtime.NumCPU()
		log.Warn().Int("workers", conf.Workers).Msg("workers not set, using number of CPUs")
	}
	if conf.MissingMarker == "" {
		conf.MissingMarker = dfltMissingMarker
		log.Warn().Str("value", dfltMissingMarker).Msg("missing_marker not set, using default")
	}
	if conf.Corpus == nil {
		conf.Corpus = &api.Corpus{}
	}
	if err := validateCorpus(conf.Corpus); err != nil {
		return err
	}
	if len(conf.Extractors) == 0 {
		return invalid("no extractor configured")
	}
	for i := range conf.Extractors {
		if err := validateExtractor(&conf.Extractors[i]); err != nil {
			return err
		}
	}
	if conf.Output == nil {
		conf.Output = &api.Output{}
	}
	if conf.Output.Path == "" {
		conf.Output.Path = dfltOutputPath
		log.Warn().Str("path", dfltOutputPath).Msg("output path not set, using default")
	}
	if conf.Output.Format == "" {
		conf.Output.Format = OutputFormat(conf.Output.Path)
	}
	if !collections.SliceContains(outputFormats, conf.Output.Format) {
		return invalid("unknown output format %q", conf.Output.Format)
	}
	return nil
}

// OutputFormat infers the sink from a file name.
func OutputFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".txt", ".csv":
		return OutputTSV
	}
	return OutputSQLite
}

func validateCorpus(c *api.Corpus) error {
	if c.Format == "" {
		c.Format = FormatConll
	}
	if !collections.SliceContains(corpusFormats, c.Format) {
		return invalid("unknown corpus format %q", c.Format)
	}
	switch c.Format {
	case FormatConll:
		if len(c.Columns) == 0 {
			c.Columns = append([]string(nil), corpus.DefaultColumns...)
		}
	case FormatSQLite:
		if len(c.Selectors) == 0 {
			return invalid("sqlite corpus needs selectors")
		}
		if len(c.Columns) == 0 {
			for name := range c.Selectors {
				c.Columns = append(c.Columns, name)
			}
			sort.Strings(c.Columns)
		}
		for _, name := range c.Columns {
			if _, ok := c.Selectors[name]; !ok {
				return invalid("column %s has no selector", name)
			}
		}
	}
	dflt := graph.DefaultColumns()
	if c.IDColumn == "" {
		c.IDColumn = dflt.ID
	}
	if c.HeadColumn == "" {
		c.HeadColumn = dflt.Head
	}
	seg := segment.DefaultOptions()
	if c.PredicateColumn == "" {
		c.PredicateColumn = seg.PredicateColumn
	}
	if c.PredicatePlaceholder == "" {
		c.PredicatePlaceholder = seg.Placeholder
	}
	return nil
}

func validateExtractor(x *api.Extractor) error {
	if !collections.SliceContains(features.KindNames(), x.Kind) {
		return invalid("unknown extractor %q", x.Kind)
	}
	if x.MaxLength < 0 {
		return invalid("extractor %s: negative max_length", x.Kind)
	}
	kind, _ := features.ParseKind(x.Kind)
	switch kind {
	case features.KindAncestors, features.KindWindow, features.KindPredicateContext:
		if len(x.Columns) == 0 {
			return invalid("extractor %s: no columns", x.Kind)
		}
	case features.KindPredicatePath:
		if x.Policy == "" {
			x.Policy = features.PolicySyntactic
		}
		if !collections.SliceContains([]string{features.PolicySyntactic, features.PolicyAll}, x.Policy) {
			return invalid("extractor %s: unknown policy %q", x.Kind, x.Policy)
		}
	}
	return nil
}

// SegmentOptions returns the segmenter settings of a validated corpus block.
func SegmentOptions(c *api.Corpus) segment.Options {
	return segment.Options{
		PredicateColumn: c.PredicateColumn,
		Placeholder:     c.PredicatePlaceholder,
	}
}

// GraphColumns returns the tree columns of a validated corpus block.
func GraphColumns(c *api.Corpus) graph.Columns {
	return graph.Columns{ID: c.IDColumn, Head: c.HeadColumn}
}

// projected lists the corpus columns whose values are copied into features.
func projected(conf *api.Config) []string {
	var out []string
	add := func(cols ...string) {
		for _, c := range cols {
			if !collections.SliceContains(out, c) {
				out = append(out, c)
			}
		}
	}
	for _, x := range conf.Extractors {
		add(x.Columns...)
		if x.Kind == features.KindPredicatePath.String() && x.Policy != features.PolicyAll {
			if len(x.PathColumns) > 0 {
				add(x.PathColumns...)
			} else {
				add(features.DefaultPathColumns...)
			}
		}
	}
	return out
}

func producesNumbers(conf *api.Config) bool {
	for _, x := range conf.Extractors {
		kind, err := features.ParseKind(x.Kind)
		if err != nil {
			continue
		}
		switch kind {
		case features.KindPredicateDistance, features.KindPredicateMarker,
			features.KindPassiveVoice, features.KindPredicateMorph:
			return true
		}
	}
	return false
}

// CheckMarker fails when the missing marker equals a real value a text
// sink would write, since the two could no longer be told apart.
func CheckMarker(t *table.Table, conf *api.Config) error {
	marker := conf.MissingMarker
	if _, err := strconv.Atoi(marker); err == nil && producesNumbers(conf) {
		return fmt.Errorf("%w: %q is a numeric feature value", ErrMarkerCollision, marker)
	}
	for _, name := range projected(conf) {
		col, ok := t.Column(name)
		if !ok {
			continue
		}
		for i, v := range col {
			if v == marker {
				return fmt.Errorf("%w: %s[%d] = %q", ErrMarkerCollision, name, i, v)
			}
		}
	}
	return nil
}

// SetupLogging configures the global zerolog logger.
func SetupLogging(conf *api.Config) {
	logging.SetupLogging(logging.LoggingConf{
		Path:  conf.LogFile,
		Level: logging.LogLevel(conf.LogLevel),
	})
}
