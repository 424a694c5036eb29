package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"OpenMCP-Intent/internal/corpus"
)

func newEvalCmd(opts *options) *cobra.Command {
	var (
		path        string
		workers     int
		minAccuracy float64
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Replay an annotated corpus through the parser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				return errors.New("--corpus is required")
			}
			parser, err := opts.parser()
			if err != nil {
				return err
			}
			store, err := corpus.OpenFileStore(path)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			records, err := store.List(ctx, corpus.WithLimit(-1), corpus.WithSortOrder(corpus.SortByCreatedAsc))
			if err != nil {
				return err
			}
			report, err := corpus.Evaluate(ctx, parser, records, workers)
			if err != nil {
				return err
			}

			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				writeReport(cmd.OutOrStdout(), report)
			}
			if report.Total > 0 && report.IntentAccuracy < minAccuracy {
				return fmt.Errorf("intent accuracy %.3f below threshold %.3f", report.IntentAccuracy, minAccuracy)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "corpus", "", "training data JSON file")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel workers (defaults to GOMAXPROCS)")
	cmd.Flags().Float64Var(&minAccuracy, "min-accuracy", 0, "fail when intent accuracy is below this value")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func writeReport(w io.Writer, report corpus.Report) {
	fmt.Fprintf(w, "annotated records: %d\n", report.Total)
	fmt.Fprintf(w, "intent accuracy:   %.3f (%d/%d)\n", report.IntentAccuracy, report.IntentCorrect, report.Total)
	fmt.Fprintf(w, "parse errors:      %d\n", report.ParseErrors)
	for _, label := range report.SlotLabels() {
		stat := report.Slots[label]
		fmt.Fprintf(w, "  %-16s recall %.3f (%d/%d)\n", label, stat.Recall, stat.Found, stat.Expected)
	}
	for _, m := range report.Mismatches {
		fmt.Fprintf(w, "mismatch: %q expected=%s got=%s\n", m.Prompt, m.Expected, orNone(m.Got))
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
