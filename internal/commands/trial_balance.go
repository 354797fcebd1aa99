package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/odyssey-erp/ledger-core/internal/accounting/reports"
	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

func newTrialBalanceCommand(g *globals) *cobra.Command {
	var (
		from, to string
		grouped  bool
		showZero bool
	)
	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Print the trial balance for a branch and period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			branchID, err := g.branchID()
			if err != nil {
				return err
			}
			fromDate, err := shared.ParseDate("from", from)
			if err != nil {
				return err
			}
			toDate, err := shared.ParseDate("to", to)
			if err != nil {
				return err
			}
			deps, closeFn, err := g.deps(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			if deps.Reports == nil {
				return errors.New("trial balance: reports are not configured")
			}

			tb, err := deps.Reports.TrialBalance(cmd.Context(), reports.TrialBalanceRequest{
				BranchID: branchID,
				From:     fromDate,
				To:       toDate,
				Grouped:  grouped,
				ShowZero: showZero,
			})
			if err != nil {
				return fmt.Errorf("trial balance: %w", err)
			}
			if g.json {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(tb)
			}
			renderTrialBalance(cmd, g.printer(), tb)
			if !tb.Balanced {
				return fmt.Errorf("%w: trial balance off by %s", ErrFindings, tb.Difference)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "period start (YYYY-MM-DD), defaults to the fiscal year start")
	cmd.Flags().StringVar(&to, "to", "", "period end (YYYY-MM-DD), defaults to today")
	cmd.Flags().BoolVar(&grouped, "grouped", false, "insert group totals")
	cmd.Flags().BoolVar(&showZero, "show-zero", false, "include accounts without balances")
	return cmd
}

func renderTrialBalance(cmd *cobra.Command, p *message.Printer, tb reports.TrialBalance) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Trial balance, branch %s, %s to %s\n",
		shared.BranchToken(tb.BranchID), tb.From.Format(shared.DateLayout), tb.To.Format(shared.DateLayout))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(w, "Code\tAccount\tOpening Dr\tOpening Cr\tDebit\tCredit\tClosing Dr\tClosing Cr\t")
	for _, r := range tb.Rows {
		name := strings.Repeat("  ", r.Indent) + r.Name
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n", r.Code, name,
			amount(p, r.OpeningDebit), amount(p, r.OpeningCredit),
			amount(p, r.PeriodDebit), amount(p, r.PeriodCredit),
			amount(p, r.ClosingDebit), amount(p, r.ClosingCredit))
	}
	t := tb.Totals
	_, _ = fmt.Fprintf(w, "\tTotal\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
		amount(p, t.OpeningDebit), amount(p, t.OpeningCredit),
		amount(p, t.PeriodDebit), amount(p, t.PeriodCredit),
		amount(p, t.ClosingDebit), amount(p, t.ClosingCredit))
	_ = w.Flush()
	_, _ = fmt.Fprintln(out, p.Sprintf("%d account(s)", tb.AccountCount))
}

// amount formats a value for display only; totals are never recomputed from it.
func amount(p *message.Printer, d decimal.Decimal) string {
	if d.IsZero() {
		return "-"
	}
	return p.Sprint(number.Decimal(d.InexactFloat64(), number.Scale(2)))
}
