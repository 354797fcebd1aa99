package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/balances"
	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

// BalanceSheetLine is an account inside a balance sheet group.
type BalanceSheetLine struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
}

// BalanceSheetNode is a group with its nested groups and accounts.
type BalanceSheetNode struct {
	GroupID  int64              `json:"group_id"`
	Code     string             `json:"code"`
	Name     string             `json:"name"`
	Amount   decimal.Decimal    `json:"amount"`
	Groups   []BalanceSheetNode `json:"groups,omitempty"`
	Accounts []BalanceSheetLine `json:"accounts,omitempty"`
}

// BalanceSheetSection is one side of the accounting equation.
type BalanceSheetSection struct {
	Nature shared.Nature      `json:"nature"`
	Label  string             `json:"label"`
	Groups []BalanceSheetNode `json:"groups"`
	Total  decimal.Decimal    `json:"total"`
}

// BalanceSheetRatios are liquidity and leverage figures rounded to two places.
type BalanceSheetRatios struct {
	CurrentAssets      decimal.Decimal `json:"current_assets"`
	CurrentLiabilities decimal.Decimal `json:"current_liabilities"`
	CurrentRatio       decimal.Decimal `json:"current_ratio"`
	QuickRatio         decimal.Decimal `json:"quick_ratio"`
	DebtToEquity       decimal.Decimal `json:"debt_to_equity"`
	WorkingCapital     decimal.Decimal `json:"working_capital"`
}

// BalanceSheet is the statement of financial position as of a date.
type BalanceSheet struct {
	BranchID                  *int64              `json:"branch_id,omitempty"`
	AsOf                      time.Time           `json:"as_of"`
	FiscalYearStart           time.Time           `json:"fiscal_year_start"`
	Assets                    BalanceSheetSection `json:"assets"`
	Liabilities               BalanceSheetSection `json:"liabilities"`
	Equity                    BalanceSheetSection `json:"equity"`
	NetProfit                 decimal.Decimal     `json:"net_profit"`
	ProfitBroughtForward      decimal.Decimal     `json:"profit_brought_forward"`
	TotalEquity               decimal.Decimal     `json:"total_equity"`
	TotalLiabilitiesAndEquity decimal.Decimal     `json:"total_liabilities_and_equity"`
	NetWorth                  decimal.Decimal     `json:"net_worth"`
	Difference                decimal.Decimal     `json:"difference"`
	Balanced                  bool                `json:"balanced"`
	Ratios                    *BalanceSheetRatios `json:"ratios,omitempty"`
	Problems                  []string            `json:"problems,omitempty"`
}

// BuildBalanceSheet renders the cumulative snapshot through asOf. The year
// snapshot covers fiscal-year start to asOf and yields the current profit;
// profit accrued earlier is shown as brought forward. Both fold into equity.
func BuildBalanceSheet(cumulative, year *balances.Snapshot, asOf, fyStart time.Time, includeZero bool) BalanceSheet {
	chart := cumulative.Chart
	bs := BalanceSheet{
		BranchID:        chart.BranchID(),
		AsOf:            asOf,
		FiscalYearStart: fyStart,
		Assets:          buildSection(cumulative, shared.NatureAsset, "Assets", includeZero),
		Liabilities:     buildSection(cumulative, shared.NatureLiability, "Liabilities", includeZero),
		Equity:          buildSection(cumulative, shared.NatureEquity, "Equity", includeZero),
	}

	total := profitOf(cumulative)
	bs.NetProfit = profitOf(year)
	bs.ProfitBroughtForward = total.Sub(bs.NetProfit)
	bs.TotalEquity = bs.Equity.Total.Add(total)
	bs.TotalLiabilitiesAndEquity = bs.Liabilities.Total.Add(bs.TotalEquity)
	bs.NetWorth = bs.Assets.Total.Sub(bs.Liabilities.Total)
	bs.Difference = bs.Assets.Total.Sub(bs.TotalLiabilitiesAndEquity)
	bs.Balanced = bs.Difference.Abs().LessThan(shared.Cents)

	ratios, err := buildRatios(cumulative, bs)
	if err != nil {
		bs.Problems = append(bs.Problems, "ratios: "+err.Error())
	} else {
		bs.Ratios = ratios
	}
	return bs
}

// profitOf is income minus expense in presented terms.
func profitOf(s *balances.Snapshot) decimal.Decimal {
	income := s.NatureTotal(shared.NatureIncome).Reported()
	expense := s.NatureTotal(shared.NatureExpense).Reported()
	return income.Sub(expense)
}

func buildSection(s *balances.Snapshot, n shared.Nature, label string, includeZero bool) BalanceSheetSection {
	sec := BalanceSheetSection{Nature: n, Label: label, Groups: []BalanceSheetNode{}}
	for _, root := range s.Chart.RootsOf(n) {
		amt := s.GroupAmount(root.ID).Reported()
		sec.Total = sec.Total.Add(amt)
		if node, ok := buildNode(s, root, includeZero); ok {
			sec.Groups = append(sec.Groups, node)
		}
	}
	return sec
}

func buildNode(s *balances.Snapshot, g accounts.Group, includeZero bool) (BalanceSheetNode, bool) {
	amt := s.GroupAmount(g.ID).Reported()
	if amt.IsZero() && !includeZero {
		return BalanceSheetNode{}, false
	}
	node := BalanceSheetNode{GroupID: g.ID, Code: g.Code, Name: g.Name, Amount: amt}
	for _, child := range s.Chart.Children(g.ID) {
		if sub, ok := buildNode(s, child, includeZero); ok {
			node.Groups = append(node.Groups, sub)
		}
	}
	for _, a := range s.Chart.AccountsIn(g.ID) {
		line := s.AccountAmount(a.ID).Reported()
		if line.IsZero() && !includeZero {
			continue
		}
		node.Accounts = append(node.Accounts, BalanceSheetLine{AccountID: a.ID, Code: a.Code, Name: a.Name, Amount: line})
	}
	return node, true
}

func buildRatios(s *balances.Snapshot, bs BalanceSheet) (*BalanceSheetRatios, error) {
	ca, err := roleTotal(s, accounts.RoleCurrentAssets, true)
	if err != nil {
		return nil, err
	}
	cl, err := roleTotal(s, accounts.RoleCurrentLiabilities, true)
	if err != nil {
		return nil, err
	}
	quick := decimal.Zero
	for _, role := range []accounts.SystemRole{accounts.RoleCashAccount, accounts.RoleBankAccount, accounts.RoleSundryDebtors} {
		v, _ := roleTotal(s, role, false)
		quick = quick.Add(v)
	}

	r := &BalanceSheetRatios{
		CurrentAssets:      ca,
		CurrentLiabilities: cl,
		WorkingCapital:     ca.Sub(cl).Round(2),
	}
	if cl.IsPositive() {
		r.CurrentRatio = ca.Div(cl).Round(2)
		r.QuickRatio = quick.Div(cl).Round(2)
	}
	if bs.TotalEquity.IsPositive() {
		r.DebtToEquity = bs.Liabilities.Total.Div(bs.TotalEquity).Round(2)
	}
	return r, nil
}

// roleTotal sums the presented totals of groups tagged role, skipping groups
// nested under another group with the same role.
func roleTotal(s *balances.Snapshot, role accounts.SystemRole, required bool) (decimal.Decimal, error) {
	total := decimal.Zero
	found := false
	for _, g := range s.Chart.Groups() {
		if g.Role != role {
			continue
		}
		found = true
		if g.ParentID != nil {
			if _, nested := s.Chart.Group(*g.ParentID); nested && s.Chart.NearestGroupRole(*g.ParentID) == role {
				continue
			}
		}
		total = total.Add(s.GroupAmount(g.ID).Reported())
	}
	if !found && required {
		return decimal.Zero, shared.Misconfigured(string(role), s.Chart.Scope(), "no group carries this system role")
	}
	return total, nil
}
