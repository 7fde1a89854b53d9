// Command shelflife resolves DC acceptance deadlines and manages rule book
// files from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/liamcoop/shelflife/internal/logger"
	"github.com/liamcoop/shelflife/rulebook"
	"github.com/liamcoop/shelflife/shelflife"
	"github.com/spf13/cobra"
)

var version = "dev"

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	ruleBookFile string
	timezone     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "shelflife",
		Short: "Shelf-life acceptance deadlines for distribution centres",
		Long: `shelflife resolves the last day a distribution centre may accept a
product and the last day it may release it to stores, from the product's
expiry date and total shelf life.

Without --rulebook the built-in domestic and import tables are used.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// diagnostics go to stderr so stdout stays machine-readable
			return logger.Init(logger.Options{
				Level:      logger.LevelWarning,
				SampleRate: 1,
				Output:     cmd.ErrOrStderr(),
			})
		},
	}

	root.PersistentFlags().StringVar(&opts.ruleBookFile, "rulebook", os.Getenv("SHELFLIFE_RULEBOOK_FILE"), "TOML rule book to use instead of the built-in tables")
	root.PersistentFlags().StringVar(&opts.timezone, "timezone", envOr("SHELFLIFE_TIMEZONE", "Local"), "IANA timezone used to decide today's date")

	root.AddCommand(
		newCalcCmd(opts),
		newTiersCmd(opts),
		newValidateCmd(),
		newExportCmd(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ruleBook returns the rule book named by --rulebook, or the built-in one
func (o *globalOptions) ruleBook(ctx context.Context) (shelflife.RuleBook, error) {
	if o.ruleBookFile == "" {
		return shelflife.DefaultRuleBook(), nil
	}

	book, err := rulebook.FileSource{Path: o.ruleBookFile}.Fetch(ctx)
	if err != nil {
		return shelflife.RuleBook{}, err
	}
	if err := rulebook.ValidateDefinition(book); err != nil {
		return shelflife.RuleBook{}, fmt.Errorf("%s: %w", o.ruleBookFile, err)
	}
	return book, nil
}

// engine builds an engine over the selected rule book in the selected timezone
func (o *globalOptions) engine(ctx context.Context) (*shelflife.Engine, error) {
	loc, err := time.LoadLocation(o.timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", o.timezone, err)
	}

	book, err := o.ruleBook(ctx)
	if err != nil {
		return nil, err
	}

	en, err := shelflife.NewEngine(book, shelflife.WithLocation(loc))
	if err != nil {
		return nil, err
	}
	logger.Debug("engine ready", "rulebook_version", book.Version, "timezone", loc.String())
	return en, nil
}
