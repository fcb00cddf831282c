package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/agentic-research/propfeat/api"
	"github.com/agentic-research/propfeat/internal/ingest"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [corpus...]",
	Short: "Validate a corpus and report every proposition that would be rejected",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runCheck(cmd.Context(), cmd.OutOrStdout(), conf, args)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// runCheck runs extraction without a sink. Every proposition is processed
// even in strict mode so that all problems are listed at once.
func runCheck(ctx context.Context, stdout io.Writer, conf *api.Config, paths []string) error {
	fs, abs, err := hostFS(paths...)
	if err != nil {
		return err
	}
	c, err := loadCorpus(fs, conf, abs)
	if err != nil {
		return err
	}
	probe := *conf
	probe.SkipMalformed = true
	engine, err := ingest.NewEngine(c, &probe)
	if err != nil {
		return err
	}
	res, err := engine.Run(ctx)
	if err != nil {
		return err
	}
	printRejections(stdout, res.Rejections)
	_, _ = fmt.Fprintf(stdout, "%d propositions, %d tokens, %d rejected, %d without predicate\n",
		res.Stats.Propositions, res.Frame.Len(), res.Stats.Rejected, res.Stats.MissingPredicate)
	if len(res.Rejections) > 0 {
		return &ingest.RejectedError{Rejections: res.Rejections}
	}
	return nil
}
