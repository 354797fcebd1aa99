package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/balances"
	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

// ProfitAndLossLine is one account's presented amount.
type ProfitAndLossLine struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
}

// ProfitAndLossGroup collects accounts of one group inside a section.
type ProfitAndLossGroup struct {
	GroupID  int64               `json:"group_id"`
	Code     string              `json:"code"`
	Name     string              `json:"name"`
	Amount   decimal.Decimal     `json:"amount"`
	Accounts []ProfitAndLossLine `json:"accounts"`
}

// ProfitAndLossSection is direct or indirect income or expense.
type ProfitAndLossSection struct {
	Label  string               `json:"label"`
	Nature shared.Nature        `json:"nature"`
	Bucket accounts.Bucket      `json:"bucket"`
	Amount decimal.Decimal      `json:"amount"`
	Groups []ProfitAndLossGroup `json:"groups"`
}

// ProfitAndLoss is the income statement for a period.
type ProfitAndLoss struct {
	BranchID           *int64               `json:"branch_id,omitempty"`
	From               time.Time            `json:"date_from"`
	To                 time.Time            `json:"date_to"`
	DirectIncome       ProfitAndLossSection `json:"direct_income"`
	DirectExpense      ProfitAndLossSection `json:"direct_expense"`
	IndirectIncome     ProfitAndLossSection `json:"indirect_income"`
	IndirectExpense    ProfitAndLossSection `json:"indirect_expense"`
	TotalIncome        decimal.Decimal      `json:"total_income"`
	TotalExpense       decimal.Decimal      `json:"total_expense"`
	GrossProfit        *decimal.Decimal     `json:"gross_profit,omitempty"`
	NetProfit          decimal.Decimal      `json:"net_profit"`
	GrossMargin        decimal.Decimal      `json:"gross_margin"`
	NetMargin          decimal.Decimal      `json:"net_margin"`
	IncomeExpenseRatio decimal.Decimal      `json:"income_expense_ratio"`
	Problems           []string             `json:"problems,omitempty"`
}

// BuildProfitAndLoss classifies income and expense accounts of a period snapshot.
// The bucket comes from the nearest tagged role; untagged accounts are indirect.
func BuildProfitAndLoss(snap *balances.Snapshot, from, to time.Time) ProfitAndLoss {
	chart := snap.Chart
	pl := ProfitAndLoss{
		BranchID:        chart.BranchID(),
		From:            from,
		To:              to,
		DirectIncome:    newSection("Direct Income", shared.NatureIncome, accounts.BucketDirect),
		DirectExpense:   newSection("Direct Expenses", shared.NatureExpense, accounts.BucketDirect),
		IndirectIncome:  newSection("Indirect Income", shared.NatureIncome, accounts.BucketIndirect),
		IndirectExpense: newSection("Indirect Expenses", shared.NatureExpense, accounts.BucketIndirect),
	}

	for _, acct := range chart.Accounts() {
		nature, _ := chart.NatureOf(acct.ID)
		if nature != shared.NatureIncome && nature != shared.NatureExpense {
			continue
		}
		net := snap.AccountNet(acct.ID)
		if net.IsZero() {
			continue
		}
		bucket := accounts.BucketIndirect
		if role, ok := chart.FindRole(acct.ID, hasBucket); ok {
			bucket, _ = role.Bucket()
		}
		section := pl.section(nature, bucket)
		group, _ := chart.Group(acct.GroupID)
		section.addLine(group, ProfitAndLossLine{
			AccountID: acct.ID,
			Code:      acct.Code,
			Name:      acct.Name,
			Amount:    shared.Present(nature, net),
		})
	}

	pl.TotalIncome = pl.DirectIncome.Amount.Add(pl.IndirectIncome.Amount)
	pl.TotalExpense = pl.DirectExpense.Amount.Add(pl.IndirectExpense.Amount)
	pl.NetProfit = pl.TotalIncome.Sub(pl.TotalExpense)

	hasDirectIncome := chart.HasGroupRole(accounts.RoleDirectIncome) || chart.HasGroupRole(accounts.RoleFeeIncome)
	hasDirectExpense := chart.HasGroupRole(accounts.RoleDirectExpenses) || chart.HasGroupRole(accounts.RoleAcademicExpenses)
	switch {
	case !hasDirectIncome:
		pl.Problems = append(pl.Problems, "gross profit: no group carries the direct_income role")
	case !hasDirectExpense:
		pl.Problems = append(pl.Problems, "gross profit: no group carries the direct_expenses role")
	default:
		gross := pl.DirectIncome.Amount.Sub(pl.DirectExpense.Amount)
		pl.GrossProfit = &gross
		if pl.DirectIncome.Amount.IsPositive() {
			pl.GrossMargin = shared.Percent(gross, pl.DirectIncome.Amount)
		}
	}
	if pl.TotalIncome.IsPositive() {
		pl.NetMargin = shared.Percent(pl.NetProfit, pl.TotalIncome)
	}
	if pl.TotalExpense.IsPositive() {
		pl.IncomeExpenseRatio = pl.TotalIncome.Div(pl.TotalExpense).Round(2)
	} else {
		pl.IncomeExpenseRatio = pl.TotalIncome
	}
	return pl
}

func hasBucket(r accounts.SystemRole) bool {
	_, ok := r.Bucket()
	return ok
}

func newSection(label string, n shared.Nature, b accounts.Bucket) ProfitAndLossSection {
	return ProfitAndLossSection{Label: label, Nature: n, Bucket: b, Groups: []ProfitAndLossGroup{}}
}

func (pl *ProfitAndLoss) section(n shared.Nature, b accounts.Bucket) *ProfitAndLossSection {
	switch {
	case n == shared.NatureIncome && b == accounts.BucketDirect:
		return &pl.DirectIncome
	case n == shared.NatureIncome:
		return &pl.IndirectIncome
	case b == accounts.BucketDirect:
		return &pl.DirectExpense
	default:
		return &pl.IndirectExpense
	}
}

// addLine keeps groups in first-seen order; chart.Accounts is code ordered.
func (s *ProfitAndLossSection) addLine(g accounts.Group, line ProfitAndLossLine) {
	s.Amount = s.Amount.Add(line.Amount)
	for i := range s.Groups {
		if s.Groups[i].GroupID == g.ID {
			s.Groups[i].Amount = s.Groups[i].Amount.Add(line.Amount)
			s.Groups[i].Accounts = append(s.Groups[i].Accounts, line)
			return
		}
	}
	s.Groups = append(s.Groups, ProfitAndLossGroup{
		GroupID:  g.ID,
		Code:     g.Code,
		Name:     g.Name,
		Amount:   line.Amount,
		Accounts: []ProfitAndLossLine{line},
	})
}
