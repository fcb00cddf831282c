package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/agentic-research/propfeat/api"
	"github.com/agentic-research/propfeat/internal/config"
	"github.com/agentic-research/propfeat/internal/ingest"
	"github.com/spf13/cobra"
)

var (
	outputPath   string
	outputFormat string
	appendStore  bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [corpus...]",
	Short: "Extract features from CoNLL files or a SQLite record corpus",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("output") {
			conf.Output.Path = outputPath
			if !cmd.Flags().Changed("format") {
				conf.Output.Format = config.OutputFormat(outputPath)
			}
		}
		if cmd.Flags().Changed("format") {
			conf.Output.Format = outputFormat
		}
		_, err = runExtract(cmd.Context(), cmd.OutOrStdout(), conf, args, appendStore)
		return err
	},
}

func init() {
	extractCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (.db or .tsv)")
	extractCmd.Flags().StringVar(&outputFormat, "format", "", "Output format: sqlite or tsv")
	extractCmd.Flags().BoolVar(&appendStore, "append", false, "Add the run to an existing feature store")
	rootCmd.AddCommand(extractCmd)
}

// runExtract loads the corpus, extracts features and writes them to the
// configured sink. A strict run with rejected propositions writes nothing.
func runExtract(ctx context.Context, stdout io.Writer, conf *api.Config, paths []string, keep bool) (*ingest.Result, error) {
	fs, abs, err := hostFS(paths...)
	if err != nil {
		return nil, err
	}
	c, err := loadCorpus(fs, conf, abs)
	if err != nil {
		return nil, err
	}
	if conf.Output.Format == config.OutputTSV {
		if err := config.CheckMarker(c.Table, conf); err != nil {
			return nil, err
		}
	}
	engine, err := ingest.NewEngine(c, conf)
	if err != nil {
		return nil, err
	}
	res, err := engine.Run(ctx)
	if err != nil {
		var rejected *ingest.RejectedError
		if errors.As(err, &rejected) {
			printRejections(stdout, rejected.Rejections)
		}
		return nil, err
	}

	out := conf.Output
	if _, abs, err = hostFS(out.Path); err != nil {
		return nil, err
	}
	if out.Format == config.OutputSQLite && !keep {
		_ = os.Remove(abs[0]) // Overwrite
	}
	sink, err := ingest.OpenSink(fs, &api.Output{Path: abs[0], Format: out.Format}, conf.MissingMarker)
	if err != nil {
		return nil, err
	}
	if err := sink.Write(ctx, res); err != nil {
		_ = sink.Close()
		return nil, err
	}
	if err := sink.Close(); err != nil {
		return nil, err
	}
	_, _ = fmt.Fprintf(stdout, "Run %s: %d tokens, %d feature columns, %d/%d propositions rejected, done in %v -> %s\n",
		res.RunID, res.Stats.Tokens, len(res.Frame.Columns()), res.Stats.Rejected, res.Stats.Propositions,
		res.Stats.Elapsed, out.Path)
	return res, nil
}

func printRejections(w io.Writer, rs []ingest.Rejection) {
	for _, r := range rs {
		_, _ = fmt.Fprintf(w, "proposition %d [%d, %d): %v\n", r.Proposition, r.Lower, r.Upper, r.Err)
	}
}
