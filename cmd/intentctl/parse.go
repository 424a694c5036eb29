package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"OpenMCP-Intent/internal/intent"
)

func newParseCmd(opts *options) *cobra.Command {
	var explain bool
	cmd := &cobra.Command{
		Use:   "parse <text...>",
		Short: "Parse a prompt and print the JSON result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parser, err := opts.parser()
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			analysis, err := parser.Analyze(text)
			if err != nil {
				return err
			}
			if explain {
				writeExplain(cmd.OutOrStdout(), analysis)
			}
			return writeJSON(cmd.OutOrStdout(), analysis.Result)
		},
	}
	cmd.Flags().BoolVar(&explain, "explain", false, "print every detected clause before the result")
	return cmd
}

func writeExplain(w io.Writer, analysis intent.Analysis) {
	fmt.Fprintf(w, "tokens: %d, clauses: %d\n", len(analysis.Tokens), len(analysis.Clauses))
	for i, c := range analysis.Clauses {
		status := "admitted"
		if !c.Admitted {
			status = "dropped"
		}
		fmt.Fprintf(w, "#%d %-8s [%d,%d) %s %q\n", i+1, c.Clause.Label, c.Clause.Start, c.Clause.End, status, c.Text)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
