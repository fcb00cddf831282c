package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentic-research/propfeat/api"
	"github.com/agentic-research/propfeat/internal/corpus"
	"github.com/agentic-research/propfeat/internal/table"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hclConfig = `
log_level      = "debug"
workers        = 2
skip_malformed = true

corpus {
  format = "conll"
}

extractor "ancestors" {
  columns = ["FORM", "GPOS"]
}

extractor "predicate_path" {
  policy     = "all"
  columns    = ["FORM"]
  max_length = 4
}

extractor "window" {
  columns = ["LEMMA"]
  shifts  = [-1, 1]
}

output {
  path = "out.tsv"
}
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_HCL(t *testing.T) {
	conf, err := Load(writeFile(t, "run.hcl", hclConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", conf.LogLevel)
	assert.Equal(t, 2, conf.Workers)
	assert.True(t, conf.SkipMalformed)
	require.NotNil(t, conf.Corpus)
	assert.Equal(t, "conll", conf.Corpus.Format)
	require.Len(t, conf.Extractors, 3)
	assert.Equal(t, "ancestors", conf.Extractors[0].Kind)
	assert.Equal(t, []string{"FORM", "GPOS"}, conf.Extractors[0].Columns)
	assert.Equal(t, "all", conf.Extractors[1].Policy)
	assert.Equal(t, 4, conf.Extractors[1].MaxLength)
	assert.Equal(t, []int{-1, 1}, conf.Extractors[2].Shifts)
	require.NotNil(t, conf.Output)
	assert.Equal(t, "out.tsv", conf.Output.Path)

	require.NoError(t, ValidateAndDefaults(conf))
	assert.Equal(t, OutputTSV, conf.Output.Format)
}

func TestLoad_JSON(t *testing.T) {
	body := `{
  "workers": 1,
  "missingMarker": "NA",
  "corpus": {"format": "sqlite", "selectors": {"ID": "$.id", "DTREE": "$.head"}},
  "extractors": [{"kind": "ancestors", "columns": ["ID"]}]
}`
	conf, err := Load(writeFile(t, "run.json", body))
	require.NoError(t, err)
	assert.Equal(t, "NA", conf.MissingMarker)
	require.NoError(t, ValidateAndDefaults(conf))
	assert.Equal(t, []string{"DTREE", "ID"}, conf.Corpus.Columns)
	assert.Equal(t, OutputSQLite, conf.Output.Format)
	assert.Equal(t, "features.db", conf.Output.Path)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("")
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = Load(writeFile(t, "run.yaml", "a: 1"))
	assert.True(t, errors.Is(err, ErrUnsupportedConfig))

	_, err = Load(writeFile(t, "run.hcl", "corpus {"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "run.json", "{"))
	assert.Error(t, err)
}

func TestValidateAndDefaults_Defaults(t *testing.T) {
	conf := &api.Config{Extractors: []api.Extractor{{Kind: "predicate_path"}}}
	require.NoError(t, ValidateAndDefaults(conf))

	assert.Equal(t, "info", conf.LogLevel)
	assert.Positive(t, conf.Workers)
	assert.Equal(t, "<NONE>", conf.MissingMarker)
	assert.Equal(t, FormatConll, conf.Corpus.Format)
	assert.Equal(t, corpus.DefaultColumns, conf.Corpus.Columns)
	assert.Equal(t, "syntactic", conf.Extractors[0].Policy)

	seg := SegmentOptions(conf.Corpus)
	assert.Equal(t, "PRED", seg.PredicateColumn)
	assert.Equal(t, "-", seg.Placeholder)
	cols := GraphColumns(conf.Corpus)
	assert.Equal(t, "ID", cols.ID)
	assert.Equal(t, "DTREE", cols.Head)
}

func TestValidateAndDefaults_Rejects(t *testing.T) {
	cases := map[string]*api.Config{
		"no extractors":  {},
		"unknown kind":   {Extractors: []api.Extractor{{Kind: "semantic_role"}}},
		"no columns":     {Extractors: []api.Extractor{{Kind: "ancestors"}}},
		"bad policy":     {Extractors: []api.Extractor{{Kind: "predicate_path", Policy: "lexical"}}},
		"negative max":   {Extractors: []api.Extractor{{Kind: "predicate_path", MaxLength: -1}}},
		"bad log level":  {LogLevel: "verbose", Extractors: []api.Extractor{{Kind: "predicate_distance"}}},
		"bad format":     {Corpus: &api.Corpus{Format: "xml"}, Extractors: []api.Extractor{{Kind: "predicate_distance"}}},
		"no selectors":   {Corpus: &api.Corpus{Format: "sqlite"}, Extractors: []api.Extractor{{Kind: "predicate_distance"}}},
		"bad output":     {Output: &api.Output{Format: "parquet"}, Extractors: []api.Extractor{{Kind: "predicate_distance"}}},
		"column w/o sel": {Corpus: &api.Corpus{Format: "sqlite", Columns: []string{"ID"}, Selectors: map[string]string{"FORM": "$.f"}}, Extractors: []api.Extractor{{Kind: "predicate_distance"}}},
	}
	for name, conf := range cases {
		t.Run(name, func(t *testing.T) {
			err := ValidateAndDefaults(conf)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestCheckMarker(t *testing.T) {
	b, err := table.NewBuilder([]string{"FORM", "GPOS", "FUNC", "LEMMA"})
	require.NoError(t, err)
	_, err = b.Append(1, []string{"NA", "N", "SUBJ", "x"})
	require.NoError(t, err)
	tbl := b.Table()

	conf := &api.Config{
		MissingMarker: "NA",
		Extractors:    []api.Extractor{{Kind: "ancestors", Columns: []string{"GPOS"}}},
	}
	assert.NoError(t, CheckMarker(tbl, conf))

	conf.Extractors = append(conf.Extractors, api.Extractor{Kind: "window", Columns: []string{"FORM"}})
	assert.True(t, errors.Is(CheckMarker(tbl, conf), ErrMarkerCollision))

	conf.MissingMarker = "SUBJ"
	conf.Extractors = []api.Extractor{{Kind: "predicate_path", Policy: "syntactic"}}
	assert.True(t, errors.Is(CheckMarker(tbl, conf), ErrMarkerCollision))

	conf.MissingMarker = "0"
	conf.Extractors = []api.Extractor{{Kind: "predicate_marker"}}
	assert.True(t, errors.Is(CheckMarker(tbl, conf), ErrMarkerCollision))
}

func TestSetupLogging_File(t *testing.T) {
	saved, level := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = saved
		zerolog.SetGlobalLevel(level)
	})

	path := filepath.Join(t.TempDir(), "propfeat.log")
	SetupLogging(&api.Config{LogFile: path, LogLevel: "info"})
	log.Debug().Msg("hidden below info")
	log.Info().Str("run", "r1").Msg("logging ready")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "logging ready")
	assert.NotContains(t, string(raw), "hidden below info")
}
