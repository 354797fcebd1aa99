package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/balances"
	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

// TrialBalanceRow is one account line or a synthetic group total.
type TrialBalanceRow struct {
	AccountID     int64           `json:"account_id,omitempty"`
	Code          string          `json:"code,omitempty"`
	Name          string          `json:"name"`
	GroupName     string          `json:"group_name,omitempty"`
	Nature        shared.Nature   `json:"nature,omitempty"`
	IsGroupTotal  bool            `json:"is_group_total,omitempty"`
	Indent        int             `json:"indent"`
	OpeningDebit  decimal.Decimal `json:"opening_debit"`
	OpeningCredit decimal.Decimal `json:"opening_credit"`
	PeriodDebit   decimal.Decimal `json:"period_debit"`
	PeriodCredit  decimal.Decimal `json:"period_credit"`
	ClosingDebit  decimal.Decimal `json:"closing_debit"`
	ClosingCredit decimal.Decimal `json:"closing_credit"`
}

func (r TrialBalanceRow) hasBalance() bool {
	for _, v := range []decimal.Decimal{r.OpeningDebit, r.OpeningCredit, r.PeriodDebit, r.PeriodCredit, r.ClosingDebit, r.ClosingCredit} {
		if v.IsPositive() {
			return true
		}
	}
	return false
}

func (r *TrialBalanceRow) add(o TrialBalanceRow) {
	r.OpeningDebit = r.OpeningDebit.Add(o.OpeningDebit)
	r.OpeningCredit = r.OpeningCredit.Add(o.OpeningCredit)
	r.PeriodDebit = r.PeriodDebit.Add(o.PeriodDebit)
	r.PeriodCredit = r.PeriodCredit.Add(o.PeriodCredit)
	r.ClosingDebit = r.ClosingDebit.Add(o.ClosingDebit)
	r.ClosingCredit = r.ClosingCredit.Add(o.ClosingCredit)
}

// TrialBalanceTotals are the grand totals over account rows.
type TrialBalanceTotals struct {
	OpeningDebit  decimal.Decimal `json:"opening_debit"`
	OpeningCredit decimal.Decimal `json:"opening_credit"`
	PeriodDebit   decimal.Decimal `json:"period_debit"`
	PeriodCredit  decimal.Decimal `json:"period_credit"`
	ClosingDebit  decimal.Decimal `json:"closing_debit"`
	ClosingCredit decimal.Decimal `json:"closing_credit"`
}

// NatureSummary aggregates closing columns per nature.
type NatureSummary struct {
	ClosingDebit  decimal.Decimal `json:"closing_debit"`
	ClosingCredit decimal.Decimal `json:"closing_credit"`
	Count         int             `json:"count"`
}

// TrialBalance is the trial balance report.
type TrialBalance struct {
	BranchID        *int64                          `json:"branch_id,omitempty"`
	From            time.Time                       `json:"date_from"`
	To              time.Time                       `json:"date_to"`
	Grouped         bool                            `json:"grouped"`
	Rows            []TrialBalanceRow               `json:"rows"`
	Totals          TrialBalanceTotals              `json:"totals"`
	AccountCount    int                             `json:"account_count"`
	Balanced        bool                            `json:"balanced"`
	Difference      decimal.Decimal                 `json:"difference"`
	SummaryByNature map[shared.Nature]NatureSummary `json:"summary_by_nature"`
}

// BuildTrialBalance turns per-account movements into trial balance rows.
// Opening and closing nets are split into debit and credit columns by sign.
func BuildTrialBalance(chart *accounts.Chart, moves map[int64]balances.Movement, from, to time.Time, grouped, showZero bool) TrialBalance {
	tb := TrialBalance{
		BranchID:        chart.BranchID(),
		From:            from,
		To:              to,
		Grouped:         grouped,
		SummaryByNature: map[shared.Nature]NatureSummary{},
	}

	var rows []TrialBalanceRow
	for _, acct := range chart.Accounts() {
		m := moves[acct.ID]
		group, _ := chart.Group(acct.GroupID)
		row := TrialBalanceRow{
			AccountID:    acct.ID,
			Code:         acct.Code,
			Name:         acct.Name,
			GroupName:    group.Name,
			Nature:       group.Nature,
			PeriodDebit:  m.PeriodDebit,
			PeriodCredit: m.PeriodCredit,
		}
		row.OpeningDebit, row.OpeningCredit = shared.SplitSide(m.OpeningNet())
		row.ClosingDebit, row.ClosingCredit = shared.SplitSide(m.ClosingNet())
		if !showZero && !row.hasBalance() {
			continue
		}
		rows = append(rows, row)

		tb.Totals.OpeningDebit = tb.Totals.OpeningDebit.Add(row.OpeningDebit)
		tb.Totals.OpeningCredit = tb.Totals.OpeningCredit.Add(row.OpeningCredit)
		tb.Totals.PeriodDebit = tb.Totals.PeriodDebit.Add(row.PeriodDebit)
		tb.Totals.PeriodCredit = tb.Totals.PeriodCredit.Add(row.PeriodCredit)
		tb.Totals.ClosingDebit = tb.Totals.ClosingDebit.Add(row.ClosingDebit)
		tb.Totals.ClosingCredit = tb.Totals.ClosingCredit.Add(row.ClosingCredit)

		sum := tb.SummaryByNature[row.Nature]
		sum.ClosingDebit = sum.ClosingDebit.Add(row.ClosingDebit)
		sum.ClosingCredit = sum.ClosingCredit.Add(row.ClosingCredit)
		sum.Count++
		tb.SummaryByNature[row.Nature] = sum
	}
	tb.AccountCount = len(rows)
	tb.Difference = tb.Totals.ClosingDebit.Sub(tb.Totals.ClosingCredit).Abs()
	tb.Balanced = tb.Difference.LessThan(shared.Cents)

	if grouped {
		tb.Rows = groupByParent(rows)
	} else {
		tb.Rows = rows
	}
	if tb.Rows == nil {
		tb.Rows = []TrialBalanceRow{}
	}
	return tb
}

// groupByParent orders rows by group name and appends a "Total <group>" row per group.
func groupByParent(rows []TrialBalanceRow) []TrialBalanceRow {
	byGroup := map[string][]TrialBalanceRow{}
	var names []string
	for _, r := range rows {
		if _, ok := byGroup[r.GroupName]; !ok {
			names = append(names, r.GroupName)
		}
		byGroup[r.GroupName] = append(byGroup[r.GroupName], r)
	}
	sort.Strings(names)

	out := make([]TrialBalanceRow, 0, len(rows)+len(names))
	for _, name := range names {
		total := TrialBalanceRow{Name: "Total " + name, GroupName: name, IsGroupTotal: true}
		for _, r := range byGroup[name] {
			r.Indent = 1
			out = append(out, r)
			total.add(r)
		}
		out = append(out, total)
	}
	return out
}
