package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/arkilian/lakeingest/internal/ledger"
)

func newHistoryCmd(state *rootState) *cobra.Command {
	var (
		ledgerPath string
		limit      int
		runID      string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded ingestion runs, newest first",
		Long: `List recorded ingestion runs, newest first.

With --run, list the failed chunks of that run instead.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := state.cfg.Ledger.Path
			if cmd.Flags().Changed("ledger") {
				path = ledgerPath
			}
			if path == "" {
				return fmt.Errorf("no ledger configured (use --ledger or ledger.path)")
			}

			l, err := ledger.Open(path)
			if err != nil {
				return err
			}
			defer l.Close()

			if runID != "" {
				return printFailedChunks(cmd, l, runID)
			}

			runs, err := l.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tSTARTED\tTABLE\tCHUNKS\tFAILED\tROWS\tDURATION\tSTATUS")
			for _, r := range runs {
				status := "ok"
				if !r.OverallSuccess {
					status = "failed"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
					r.RunID, r.StartedAt.Format(time.RFC3339), r.Table,
					r.TotalChunks, r.Failed, r.RowsAppended, r.Duration().Round(time.Millisecond), status)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "ledger database path")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "show the failed chunks of this run")
	return cmd
}

func printFailedChunks(cmd *cobra.Command, l *ledger.Ledger, runID string) error {
	chunks, err := l.FailedChunks(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "run %s: no failed chunks\n", runID)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHUNK\tROWS\tDURATION\tERROR")
	for _, c := range chunks {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", c.Index, c.Rows, c.Duration, c.Error)
	}
	return w.Flush()
}
