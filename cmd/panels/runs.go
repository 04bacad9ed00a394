package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/photo-panels/internal/repository"
)

var (
	runsLimit int
	runsPages bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs recorded in the ledger",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum runs to list")
	runsCmd.Flags().BoolVar(&runsPages, "pages", false, "also list page results of each run")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if !cfg.Database.Enabled {
		return errors.New("the run ledger is disabled in the configuration")
	}
	db, err := repository.Open(cmd.Context(), cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := repository.NewRunRepository(db, logger).ListRecent(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}
	pages := repository.NewPageRepository(db, logger)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tPAGES\tPANELS\tFAILED\tSOURCE")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status, r.TotalPages, r.PanelPages, r.PagesFailed, r.Source)
		if !runsPages {
			continue
		}
		recs, err := pages.ListByRun(cmd.Context(), r.ID)
		if err != nil {
			return err
		}
		for _, p := range recs {
			fmt.Fprintf(w, "\tpage %d\t%s\t%s\t%s\t%s\t\n", p.Page, p.Status, p.Activity, p.ErrorKind, p.Error)
		}
	}
	_ = w.Flush()
	return nil
}
