package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/photo-panels/internal/classify"
	"github.com/joseph-ayodele/photo-panels/internal/pdfdoc"
)

var classifyInput string

var classifyCmd = &cobra.Command{
	Use:   "classify [pdf]",
	Short: "Label each page as an image panel or text only",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClassify,
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyInput, "input", "i", "", "source PDF")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	input := classifyInput
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

	doc, err := pdfdoc.Open(input, logger)
	if err != nil {
		return err
	}
	defer doc.Close()

	labels, err := classify.NewClassifier(cfg.Classifier, logger).Classify(cmd.Context(), doc)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PAGE\tLABEL\tIMAGES\tQUALIFYING")
	for _, l := range labels {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", l.Page.Index, l.Label, l.Total, l.Qualifying)
	}
	_ = w.Flush()
	return err
}
