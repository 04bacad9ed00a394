package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/photo-panels/internal/app"
	"github.com/joseph-ayodele/photo-panels/internal/unify"
)

var unifyOut string

var unifyCmd = &cobra.Command{
	Use:   "unify --out <pdf> <in.pdf>...",
	Short: "Merge PDFs in the given order into one document",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUnify,
}

func init() {
	unifyCmd.Flags().StringVarP(&unifyOut, "out", "o", "", "merged PDF path (required)")
	_ = unifyCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(unifyCmd)
}

func runUnify(cmd *cobra.Command, args []string) error {
	logger := app.NewLogger(os.Stderr, jsonLogs, verbose)

	docs := make([]unify.ActivityDocument, 0, len(args))
	for _, path := range args {
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		docs = append(docs, unify.ActivityDocument{Activity: name, Bytes: b})
	}

	res, err := unify.NewUnifier(logger).UnifyToFile(cmd.Context(), docs, unifyOut)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d pages from %d documents)\n", unifyOut, res.Pages, len(docs))
	return nil
}
