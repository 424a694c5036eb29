package main

import (
	"github.com/spf13/cobra"

	"OpenMCP-Intent/internal/chain"
	"OpenMCP-Intent/internal/intent"
)

// options 为各子命令共享的全局参数。
type options struct {
	vocabulary string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "intentctl",
		Short:         "Parse wallet prompts and evaluate the rule set offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.vocabulary, "vocabulary", "", "chain catalog YAML (defaults to the embedded catalog)")

	root.AddCommand(
		newParseCmd(opts),
		newEvalCmd(opts),
		newCatalogCmd(opts),
	)
	return root
}

func (o *options) catalog() (chain.Catalog, error) {
	return chain.LoadCatalog(o.vocabulary)
}

func (o *options) parser() (*intent.Parser, error) {
	catalog, err := o.catalog()
	if err != nil {
		return nil, err
	}
	return intent.New(intent.Options{Table: intent.NewTable(intent.VocabularyFromCatalog(catalog))}), nil
}
