package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/agentic-research/propfeat/internal/ingest"
	"github.com/agentic-research/propfeat/internal/segment"
	"github.com/spf13/cobra"
)

var (
	exportRun         string
	exportProposition int
)

var exportCmd = &cobra.Command{
	Use:   "export [features.db] [output.tsv]",
	Short: "Export a stored run as tab separated text",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		marker := "<NONE>"
		if configPath != "" || cmd.Flags().Changed("missing-marker") {
			conf, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			marker = conf.MissingMarker
		}
		prop := noProposition
		if cmd.Flags().Changed("proposition") {
			prop = exportProposition
		}
		return runExport(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], exportRun, prop, marker)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportRun, "run", "", "Run id to export (default: most recent)")
	exportCmd.Flags().IntVarP(&exportProposition, "proposition", "p", 0, "Export only this proposition")
	rootCmd.AddCommand(exportCmd)
}

// noProposition exports every stored proposition.
const noProposition = -1

func runExport(ctx context.Context, stdout io.Writer, store, output, runID string, prop int, marker string) error {
	res, err := ingest.ReadFeatureStore(store, runID)
	if err != nil {
		return err
	}
	if prop != noProposition {
		if err := keepProposition(res, prop); err != nil {
			return err
		}
	}
	fs, abs, err := hostFS(output)
	if err != nil {
		return err
	}
	w, err := ingest.NewTSVWriter(fs, abs[0], marker)
	if err != nil {
		return err
	}
	if err := w.Write(ctx, res); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Exported run %s: %d tokens -> %s\n", res.RunID, res.Stats.Tokens, output)
	return nil
}

var errNoProposition = errors.New("proposition not in run")

// keepProposition drops every token outside proposition id.
func keepProposition(res *ingest.Result, id int) error {
	p, ok := segment.NewIndex(res.Propositions).Lookup(res.Propositions, id)
	if !ok {
		return fmt.Errorf("%w: %d", errNoProposition, id)
	}
	res.Frame.Drop(0, p.Lower)
	res.Frame.Drop(p.Upper, res.Frame.Len())
	res.Propositions = []segment.Proposition{p}
	res.Stats.Propositions = 1
	res.Stats.Tokens = p.Len()
	return nil
}
