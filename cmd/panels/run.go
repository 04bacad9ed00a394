package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/photo-panels/constants"
	"github.com/joseph-ayodele/photo-panels/internal/app"
	"github.com/joseph-ayodele/photo-panels/internal/pipeline"
)

var (
	runInput   string
	runOutDir  string
	runWorkers int
	runClean   bool
	runNoDB    bool
)

var runCmd = &cobra.Command{
	Use:   "run [pdf]",
	Short: "Process a report into per-activity panels and one unified document",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "source PDF")
	runCmd.Flags().StringVarP(&runOutDir, "out", "o", "", "output directory (overrides config)")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 0, "concurrent pages (overrides config)")
	runCmd.Flags().BoolVar(&runClean, "clean", false, "empty the output directory first")
	runCmd.Flags().BoolVar(&runNoDB, "no-ledger", false, "do not record the run")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	input := runInput
	if len(args) == 1 {
		input = args[0]
	}
	if input == "" {
		return fmt.Errorf("an input PDF is required (positional or --input)")
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if runOutDir != "" {
		cfg.Output.Dir = runOutDir
	}
	if runWorkers > 0 {
		cfg.Pipeline.Workers = runWorkers
	}
	if runClean {
		cfg.Output.Clean = true
	}
	if runNoDB {
		cfg.Database.Enabled = false
	}

	svc, err := app.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	rep, runErr := svc.Runner.Run(cmd.Context(), input)
	if rep != nil {
		printReport(cmd.OutOrStdout(), rep)
	}
	return runErr
}

func printReport(out io.Writer, rep *pipeline.Report) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "run\t%s\n", rep.RunID)
	fmt.Fprintf(w, "source\t%s\n", rep.Source)
	fmt.Fprintf(w, "status\t%s\n", rep.Status)
	for _, label := range []constants.PageLabel{constants.LabelImagePanel, constants.LabelTextOnly} {
		if n, ok := rep.Counts[label]; ok {
			fmt.Fprintf(w, "pages %s\t%d\n", label, n)
		}
	}
	for _, a := range rep.Activities {
		state := a.Path
		if a.Err != nil {
			state = "failed: " + a.Err.Error()
		}
		fmt.Fprintf(w, "activity %q\tpages %v\t%s\n", a.Activity.Name, a.Activity.Pages, state)
	}
	for _, f := range rep.Failed() {
		fmt.Fprintf(w, "page %d\t%s\t%s\n", f.PageIndex, f.Kind, f.Error())
	}
	if rep.UnifiedPath != "" {
		fmt.Fprintf(w, "unified\t%s (%d pages)\n", rep.UnifiedPath, rep.UnifiedPages)
	}
	fmt.Fprintf(w, "elapsed\t%s\n", rep.Elapsed.Round(time.Millisecond))
	_ = w.Flush()
}
