package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/liamcoop/shelflife/shelflife"
	"github.com/spf13/cobra"
)

type calcOptions struct {
	expiry       string
	days         int
	imported     bool
	manufactured string
	today        string
	json         bool
}

func newCalcCmd(global *globalOptions) *cobra.Command {
	opts := &calcOptions{}

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Resolve the DC acceptance and store deadlines for a product",
		Long: `Resolve the DC acceptance and store deadlines for one product.

Without --manufactured the manufacture date is derived from the expiry date
and total shelf life. Without --today the current date in --timezone is used.`,
		Example: `  shelflife calc --expiry 2025-06-01 --days 365
  shelflife calc --expiry 2024-12-20 --days 14 --manufactured 2024-12-07 --today 2024-12-09
  shelflife calc --expiry 2025-06-01 --days 365 --import --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalc(cmd, global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.expiry, "expiry", "", "Expiry date printed on the product (YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.days, "days", 0, "Total shelf life in days")
	cmd.Flags().BoolVar(&opts.imported, "import", false, "Use the import table instead of the domestic one")
	cmd.Flags().StringVar(&opts.manufactured, "manufactured", "", "Manufacture date, when printed on the product")
	cmd.Flags().StringVar(&opts.today, "today", "", "Evaluate as of this date instead of today")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the result as JSON")
	cmd.MarkFlagRequired("expiry")
	cmd.MarkFlagRequired("days")

	return cmd
}

func runCalc(cmd *cobra.Command, global *globalOptions, opts *calcOptions) error {
	en, err := global.engine(cmd.Context())
	if err != nil {
		return err
	}

	req := shelflife.Request{
		ExpiryDate:         opts.expiry,
		TotalShelfLifeDays: opts.days,
		IsDomestic:         !opts.imported,
		ManufactureDate:    opts.manufactured,
	}

	today := en.Today()
	if opts.today != "" {
		if today, err = shelflife.ParseDate(opts.today); err != nil {
			return fmt.Errorf("--today: %w", err)
		}
	}

	result, err := en.CalculateAt(req, today)
	if errors.Is(err, shelflife.ErrInvalidDate) {
		return fmt.Errorf("invalid input: %w", err)
	}
	if err != nil {
		return err
	}

	if opts.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return printCalculation(cmd.OutOrStdout(), result)
}

func printCalculation(out io.Writer, r *shelflife.CalculationResult) error {
	manufactured := r.ManufactureDate.String()
	if r.ManufactureDateDerived {
		manufactured += " (derived)"
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Rule:\t%s (%s, %s, rule book %d)\n", r.RuleUsed, r.Origin, r.Mode, r.RuleBookVersion)
	fmt.Fprintf(w, "Shelf life:\t%d days\n", r.TotalShelfLife)
	fmt.Fprintf(w, "Manufactured:\t%s\n", manufactured)
	fmt.Fprintf(w, "Expiry:\t%s\n", r.ExpiryDate)
	fmt.Fprintf(w, "DC deadline:\t%s\t%s\t%s\n", r.DCAcceptanceDate, verdictWord(r.CanAccept, "accept"), daysLeft(r.EvaluatedOn, r.DCAcceptanceDate))
	fmt.Fprintf(w, "Store deadline:\t%s\t%s\t%s\n", r.StoreDeadline(), verdictWord(r.CanRelease, "release"), daysLeft(r.EvaluatedOn, r.StoreDeadline()))
	fmt.Fprintf(w, "Evaluated on:\t%s\n", r.EvaluatedOn)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "DC formula:\t%s\n", r.DCFormula)
	fmt.Fprintf(w, "Store formula:\t%s\n", r.StoreFormula)
	return w.Flush()
}

func verdictWord(ok bool, action string) string {
	if ok {
		return "can " + action
	}
	return "too late to " + action
}

// daysLeft describes how far deadline is from today
func daysLeft(today, deadline shelflife.Date) string {
	switch n := today.DaysUntil(deadline); {
	case n == 0:
		return "(last day)"
	case n == 1:
		return "(1 day left)"
	case n > 0:
		return fmt.Sprintf("(%d days left)", n)
	case n == -1:
		return "(1 day ago)"
	default:
		return fmt.Sprintf("(%d days ago)", -n)
	}
}
