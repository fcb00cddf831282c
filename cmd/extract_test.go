package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentic-research/propfeat/api"
	"github.com/agentic-research/propfeat/internal/config"
	"github.com/agentic-research/propfeat/internal/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Proposition 2 has two roots.
const corpusText = "1\tEle\tele\tPROPESS\tM|3S\t2\tSUBJ\t_\t-\t*\n" +
	"2\tfoi\tser\tV-FIN\tPS|3S\t0\tSTA\t_\t-\t*\n" +
	"3\tvisto\tver\tV-PCP\tPCP\t2\tPRED\t_\tver\t(V*)\n" +
	"\n" +
	"1\tA\ta\tART\t_\t0\tDN\t_\t-\t*\n" +
	"2\tcasa\tcasa\tN\tF|S\t0\tSTA\t_\tmorar\t(V*)\n" +
	"\n" +
	"1\tChove\tchover\tV-FIN\tPR|3S\t0\tSTA\t_\t-\t*\n" +
	"2\t.\t.\tPU\t_\t1\tPU\t_\t-\t*\n"

func setup(t *testing.T, skip bool, output string) (*api.Config, string) {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "train.conll")
	require.NoError(t, os.WriteFile(src, []byte(corpusText), 0o644))
	conf := &api.Config{
		Workers:       2,
		SkipMalformed: skip,
		Extractors:    defaultExtractors(),
		Output:        &api.Output{Path: filepath.Join(dir, output)},
	}
	require.NoError(t, config.ValidateAndDefaults(conf))
	return conf, src
}

func TestRunExtract_StoreAndExport(t *testing.T) {
	conf, src := setup(t, true, "features.db")
	var stdout bytes.Buffer

	res, err := runExtract(context.Background(), &stdout, conf, []string{src}, false)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Stats.Tokens)
	assert.Contains(t, stdout.String(), "1/3 propositions rejected")

	tsv := filepath.Join(filepath.Dir(conf.Output.Path), "features.tsv")
	stdout.Reset()
	require.NoError(t, runExport(context.Background(), &stdout, conf.Output.Path, tsv, "", noProposition, "<NONE>"))
	assert.Contains(t, stdout.String(), res.RunID)

	raw, err := os.ReadFile(tsv)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
	require.Len(t, lines, 6)
	header := strings.Split(lines[0], "\t")
	assert.Equal(t, []string{"TOKEN", "PROPOSITION", "FORM_PARENT"}, header[:3])
	assert.Contains(t, header, "GPOS_00")
	assert.True(t, strings.HasPrefix(lines[1], "0\t1\tfoi\t"))
}

func TestRunExport_SingleProposition(t *testing.T) {
	conf, src := setup(t, true, "features.db")
	_, err := runExtract(context.Background(), &bytes.Buffer{}, conf, []string{src}, false)
	require.NoError(t, err)

	tsv := filepath.Join(filepath.Dir(conf.Output.Path), "prop3.tsv")
	var stdout bytes.Buffer
	require.NoError(t, runExport(context.Background(), &stdout, conf.Output.Path, tsv, "", 3, "<NONE>"))
	assert.Contains(t, stdout.String(), ": 2 tokens")

	raw, err := os.ReadFile(tsv)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "5\t3\t"))
	assert.True(t, strings.HasPrefix(lines[2], "6\t3\tChove\t"))

	// rejected propositions are not stored
	err = runExport(context.Background(), &stdout, conf.Output.Path, tsv, "", 2, "<NONE>")
	assert.True(t, errors.Is(err, errNoProposition))
}

func TestRunExtract_TSV(t *testing.T) {
	conf, src := setup(t, true, "features.tsv")
	require.Equal(t, config.OutputTSV, conf.Output.Format)

	_, err := runExtract(context.Background(), &bytes.Buffer{}, conf, []string{src}, false)
	require.NoError(t, err)
	raw, err := os.ReadFile(conf.Output.Path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "<NONE>")
}

func TestRunExtract_StrictWritesNothing(t *testing.T) {
	conf, src := setup(t, false, "features.db")
	var stdout bytes.Buffer

	_, err := runExtract(context.Background(), &stdout, conf, []string{src}, false)
	var rejected *ingest.RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Contains(t, stdout.String(), "proposition 2 [3, 5)")
	_, statErr := os.Stat(conf.Output.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunExtract_MarkerCollision(t *testing.T) {
	conf, src := setup(t, true, "features.tsv")
	conf.MissingMarker = "SUBJ"

	_, err := runExtract(context.Background(), &bytes.Buffer{}, conf, []string{src}, false)
	assert.True(t, errors.Is(err, config.ErrMarkerCollision))
}

func TestRunCheck(t *testing.T) {
	conf, src := setup(t, false, "unused.db")
	var stdout bytes.Buffer

	err := runCheck(context.Background(), &stdout, conf, []string{src})
	var rejected *ingest.RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Len(t, rejected.Rejections, 1)
	assert.Contains(t, stdout.String(), "3 propositions, 7 tokens, 1 rejected, 1 without predicate")
	assert.False(t, conf.SkipMalformed)
}

func TestRootCommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"extract", "check", "export"})
}
