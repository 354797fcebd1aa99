package balances

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

// Amount is a debit-natural net with the nature needed to present it.
type Amount struct {
	Net    decimal.Decimal `json:"net"`
	Nature shared.Nature   `json:"nature"`
}

// Reported returns the balance on the nature's natural side.
func (a Amount) Reported() decimal.Decimal {
	return shared.Present(a.Nature, a.Net)
}

// Movement is an account's opening and period activity.
type Movement struct {
	AccountID     int64           `json:"account_id"`
	OpeningDebit  decimal.Decimal `json:"opening_debit"`
	OpeningCredit decimal.Decimal `json:"opening_credit"`
	PeriodDebit   decimal.Decimal `json:"period_debit"`
	PeriodCredit  decimal.Decimal `json:"period_credit"`
}

// OpeningNet is the net strictly before the period.
func (m Movement) OpeningNet() decimal.Decimal { return m.OpeningDebit.Sub(m.OpeningCredit) }

// PeriodNet is the net inside the period.
func (m Movement) PeriodNet() decimal.Decimal { return m.PeriodDebit.Sub(m.PeriodCredit) }

// ClosingNet is opening plus period.
func (m Movement) ClosingNet() decimal.Decimal { return m.OpeningNet().Add(m.PeriodNet()) }

// AccountBalance pairs an account with its net in a scope.
type AccountBalance struct {
	AccountID int64           `json:"account_id"`
	Net       decimal.Decimal `json:"net"`
}

// Snapshot is the chart plus per-account nets and rolled-up group totals for one scope.
type Snapshot struct {
	Scope    shared.Scope
	Chart    *accounts.Chart
	accounts map[int64]decimal.Decimal
	groups   map[int64]decimal.Decimal
}

// NewSnapshot rolls nets up the chart.
func NewSnapshot(scope shared.Scope, chart *accounts.Chart, nets map[int64]decimal.Decimal) *Snapshot {
	return &Snapshot{Scope: scope, Chart: chart, accounts: nets, groups: Rollup(chart, nets)}
}

// AccountNet returns the debit-natural net of an account; zero when it has no activity.
func (s *Snapshot) AccountNet(id int64) decimal.Decimal { return s.accounts[id] }

// GroupNet returns the rolled-up debit-natural net of a group.
func (s *Snapshot) GroupNet(id int64) decimal.Decimal { return s.groups[id] }

// AccountAmount returns the account net with its nature.
func (s *Snapshot) AccountAmount(id int64) Amount {
	n, _ := s.Chart.NatureOf(id)
	return Amount{Net: s.accounts[id], Nature: n}
}

// GroupAmount returns the group total with its nature.
func (s *Snapshot) GroupAmount(id int64) Amount {
	g, _ := s.Chart.Group(id)
	return Amount{Net: s.groups[id], Nature: g.Nature}
}

// NatureTotal sums the root groups of a nature.
func (s *Snapshot) NatureTotal(n shared.Nature) Amount {
	total := decimal.Zero
	for _, g := range s.Chart.RootsOf(n) {
		total = total.Add(s.groups[g.ID])
	}
	return Amount{Net: total, Nature: n}
}

// Rollup seeds each group with the sum of its own accounts and then walks the
// groups deepest first, adding each total into its parent.
func Rollup(chart *accounts.Chart, nets map[int64]decimal.Decimal) map[int64]decimal.Decimal {
	totals := make(map[int64]decimal.Decimal, len(chart.Groups()))
	for _, g := range chart.Groups() {
		sum := decimal.Zero
		for _, a := range chart.AccountsIn(g.ID) {
			sum = sum.Add(nets[a.ID])
		}
		totals[g.ID] = sum
	}
	for _, id := range chart.RollupOrder() {
		g, _ := chart.Group(id)
		if g.ParentID != nil {
			totals[*g.ParentID] = totals[*g.ParentID].Add(totals[id])
		}
	}
	return totals
}
