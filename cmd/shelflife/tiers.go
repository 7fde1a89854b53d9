package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/liamcoop/shelflife/shelflife"
	"github.com/spf13/cobra"
)

type tiersOptions struct {
	origin string
	days   int
}

func newTiersCmd(global *globalOptions) *cobra.Command {
	opts := &tiersOptions{days: -1}

	cmd := &cobra.Command{
		Use:   "tiers",
		Short: "Print the rule tables or the tier for one shelf life",
		Example: `  shelflife tiers
  shelflife tiers --origin import
  shelflife tiers --origin domestic --days 365`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTiers(cmd, global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.origin, "origin", "", "domestic or import (default both)")
	cmd.Flags().IntVar(&opts.days, "days", -1, "Print only the tier for this total shelf life")

	return cmd
}

func runTiers(cmd *cobra.Command, global *globalOptions, opts *tiersOptions) error {
	book, err := global.ruleBook(cmd.Context())
	if err != nil {
		return err
	}

	origins := []shelflife.Origin{shelflife.OriginDomestic, shelflife.OriginImported}
	if opts.origin != "" {
		origin, err := shelflife.ParseOrigin(opts.origin)
		if err != nil {
			return err
		}
		origins = []shelflife.Origin{origin}
	}

	out := cmd.OutOrStdout()

	if opts.days >= 0 {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ORIGIN\tTIER\tMODE\tDC\tSTORE")
		for _, origin := range origins {
			rule, err := book.For(origin).Resolve(opts.days)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", origin, rule.Label, rule.Mode, rule.DCDisplay, rule.StoreDisplay)
		}
		return w.Flush()
	}

	for i, origin := range origins {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%s (rule book %d)\n", strings.ToUpper(origin.String()), book.Version)
		if err := printRuleSet(out, book.For(origin)); err != nil {
			return err
		}
	}
	return nil
}

func printRuleSet(out io.Writer, rules shelflife.RuleSet) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIER\tDAYS\tMODE\tDC WINDOW\tSTORE WINDOW\tDC\tSTORE")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, rule := range rules {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rule.Label, dayRange(rule), rule.Mode,
			rule.DCWindow, rule.StoreWindow,
			rule.DCDisplay, rule.StoreDisplay)
	}
	return w.Flush()
}

func dayRange(rule shelflife.ShelfLifeRule) string {
	if !rule.Bounded() {
		return strconv.Itoa(rule.MinDays) + "+"
	}
	return fmt.Sprintf("%d-%d", rule.MinDays, *rule.MaxDays-1)
}
