package main

import (
	"fmt"

	"github.com/liamcoop/shelflife/rulebook"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a TOML rule book before publishing it",
		Long: `Check that a TOML rule book decodes, that each origin's tiers cover every
shelf life exactly once, and that every window fits its tier.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := rulebook.FileSource{Path: args[0]}.Fetch(cmd.Context())
			if err != nil {
				return err
			}
			if err := rulebook.ValidateDefinition(book); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d domestic tiers, %d import tiers)\n",
				args[0], len(book.Domestic), len(book.Import))
			return nil
		},
	}
}

func newExportCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print the rule book as TOML",
		Long: `Print the rule book in use as TOML. With no --rulebook this is the built-in
tables, a starting point for a custom rule book.`,
		Example: `  shelflife export > rulebook.toml
  shelflife validate rulebook.toml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := global.ruleBook(cmd.Context())
			if err != nil {
				return err
			}
			return rulebook.EncodeTOML(cmd.OutOrStdout(), book)
		},
	}
}
