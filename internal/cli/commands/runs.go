package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapdiff/internal/state"
)

// RunsOptions holds options for the runs command.
type RunsOptions struct {
	Model string
	Limit int
}

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	opts := &RunsOptions{}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List past comparison runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRuns(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Model, "model", "", "Only show runs for this model")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Maximum number of runs to show")
	return cmd
}

func runRuns(cmd *cobra.Command, opts *RunsOptions) error {
	cfg := getConfig()
	logger := getLogger(cmd)

	store, err := state.Open(cfg.StatePath, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(opts.Model, opts.Limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No comparison runs recorded.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"started", "model", "old", "new", "status", "changes", "deltas", "impacts"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.Model,
			run.OldRef,
			run.NewRef,
			string(run.Status),
			run.SchemaChanges,
			run.StatDeltas,
			run.Impacts,
		})
	}
	t.Render()
	return nil
}
