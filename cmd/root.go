package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/agentic-research/propfeat/api"
	"github.com/agentic-research/propfeat/internal/config"
	"github.com/agentic-research/propfeat/internal/corpus"
	"github.com/agentic-research/propfeat/internal/features"
	"github.com/agentic-research/propfeat/internal/ingest"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath    string
	logLevel      string
	logFile       string
	workers       int
	skipMalformed bool
	missingMarker string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Path to run configuration (.hcl or .json)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&logFile, "log-file", "", "Log to this file instead of stderr")
	pf.IntVarP(&workers, "workers", "w", 0, "Propositions processed concurrently (default: number of CPUs)")
	pf.BoolVar(&skipMalformed, "skip-malformed", false, "Drop malformed propositions instead of failing")
	pf.StringVar(&missingMarker, "missing-marker", "", "Text written for missing features")
}

var rootCmd = &cobra.Command{
	Use:           "propfeat",
	Short:         "Dependency-tree features for semantic role labeling corpora",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// defaultExtractors is used when neither a config file nor flags name any.
func defaultExtractors() []api.Extractor {
	return []api.Extractor{
		{Kind: features.KindAncestors.String(), Columns: []string{"FORM", "LEMMA", "GPOS", "FUNC"}},
		{Kind: features.KindPredicatePath.String()},
	}
}

// loadConfig reads --config, applies flag overrides, validates the result
// and sets up logging.
func loadConfig(cmd *cobra.Command) (*api.Config, error) {
	conf := &api.Config{}
	if configPath != "" {
		var err error
		if conf, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		conf.LogLevel = logLevel
	}
	if flags.Changed("log-file") {
		conf.LogFile = logFile
	}
	if flags.Changed("workers") {
		conf.Workers = workers
	}
	if flags.Changed("skip-malformed") {
		conf.SkipMalformed = skipMalformed
	}
	if flags.Changed("missing-marker") {
		conf.MissingMarker = missingMarker
	}
	defaulted := len(conf.Extractors) == 0
	if defaulted {
		conf.Extractors = defaultExtractors()
	}
	if err := config.ValidateAndDefaults(conf); err != nil {
		return nil, err
	}
	config.SetupLogging(conf)
	if defaulted {
		log.Warn().Strs("kinds", kindsOf(conf)).Msg("no extractors configured, using defaults")
	}
	return conf, nil
}

func kindsOf(conf *api.Config) []string {
	out := make([]string, len(conf.Extractors))
	for i, x := range conf.Extractors {
		out[i] = x.Kind
	}
	return out
}

// hostFS returns the host filesystem with paths made absolute.
func hostFS(paths ...string) (billy.Filesystem, []string, error) {
	abs := make([]string, len(paths))
	for i, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		abs[i] = a
	}
	return osfs.New("/"), abs, nil
}

func loadCorpus(fs billy.Filesystem, conf *api.Config, paths []string) (*corpus.Corpus, error) {
	c, err := ingest.LoadCorpus(fs, conf.Corpus, paths...)
	if err != nil {
		return nil, err
	}
	log.Info().
		Int("tokens", c.Table.Len()).
		Int("files", len(c.Partitions)).
		Msg("corpus loaded")
	return c, nil
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
