package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/balances"
	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

// CashFlowLine is the cash impact of one non-cash account.
type CashFlowLine struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	GroupName string          `json:"group_name"`
	Amount    decimal.Decimal `json:"amount"`
}

// CashFlowSection is one activity of the statement.
type CashFlowSection struct {
	Activity accounts.Activity `json:"activity"`
	Lines    []CashFlowLine    `json:"lines"`
	Total    decimal.Decimal   `json:"total"`
}

func (s *CashFlowSection) add(l CashFlowLine) {
	s.Lines = append(s.Lines, l)
	s.Total = s.Total.Add(l.Amount)
}

// CashFlowRatios are percentages rounded to two places.
type CashFlowRatios struct {
	OperatingToCash   decimal.Decimal `json:"operating_to_cash"`
	CashGrowthRate    decimal.Decimal `json:"cash_growth_rate"`
	CashEfficiency    decimal.Decimal `json:"cash_efficiency"`
	CashPositionIndex decimal.Decimal `json:"cash_position_index"`
}

// CashFlow is the direct-method cash flow statement for a period.
type CashFlow struct {
	BranchID      *int64          `json:"branch_id,omitempty"`
	From          time.Time       `json:"date_from"`
	To            time.Time       `json:"date_to"`
	CashAccounts  []int64         `json:"cash_accounts"`
	Operating     CashFlowSection `json:"operating"`
	Investing     CashFlowSection `json:"investing"`
	Financing     CashFlowSection `json:"financing"`
	NetCashFlow   decimal.Decimal `json:"net_cash_flow"`
	OpeningCash   decimal.Decimal `json:"opening_cash"`
	ClosingCash   decimal.Decimal `json:"closing_cash"`
	ActualClosing decimal.Decimal `json:"actual_closing_cash"`
	Difference    decimal.Decimal `json:"difference"`
	Reconciled    bool            `json:"reconciled"`
	Ratios        CashFlowRatios  `json:"ratios"`
}

var hundred = decimal.NewFromInt(100)

// BuildCashFlow classifies the period movement of every non-cash account.
// A debit to a non-cash account is a cash outflow, so the impact is the
// negated period net. Accounts under investment roles (assets) or financing
// roles (liabilities and equity) leave the operating section.
func BuildCashFlow(chart *accounts.Chart, moves map[int64]balances.Movement, from, to time.Time) (CashFlow, error) {
	cf := CashFlow{
		BranchID:     chart.BranchID(),
		From:         from,
		To:           to,
		CashAccounts: []int64{},
		Operating:    CashFlowSection{Activity: accounts.ActivityOperating, Lines: []CashFlowLine{}},
		Investing:    CashFlowSection{Activity: accounts.ActivityInvesting, Lines: []CashFlowLine{}},
		Financing:    CashFlowSection{Activity: accounts.ActivityFinancing, Lines: []CashFlowLine{}},
	}

	isCash := func(id int64) bool {
		_, ok := chart.FindRole(id, accounts.SystemRole.IsCash)
		return ok
	}
	for _, a := range chart.Accounts() {
		if isCash(a.ID) {
			cf.CashAccounts = append(cf.CashAccounts, a.ID)
		}
	}
	if len(cf.CashAccounts) == 0 {
		return CashFlow{}, shared.Misconfigured(string(accounts.RoleCashAccount), chart.Scope(), "no cash or bank account is tagged")
	}

	for _, a := range chart.Accounts() {
		m := moves[a.ID]
		if isCash(a.ID) {
			cf.OpeningCash = cf.OpeningCash.Add(m.OpeningNet())
			cf.ActualClosing = cf.ActualClosing.Add(m.ClosingNet())
			continue
		}
		if m.PeriodNet().IsZero() {
			continue
		}
		group, _ := chart.Group(a.GroupID)
		line := CashFlowLine{
			AccountID: a.ID,
			Code:      a.Code,
			Name:      a.Name,
			GroupName: group.Name,
			Amount:    m.PeriodNet().Neg(),
		}
		switch activityOf(chart, a.ID, group.Nature) {
		case accounts.ActivityInvesting:
			cf.Investing.add(line)
		case accounts.ActivityFinancing:
			cf.Financing.add(line)
		default:
			cf.Operating.add(line)
		}
	}

	cf.NetCashFlow = cf.Operating.Total.Add(cf.Investing.Total).Add(cf.Financing.Total)
	cf.ClosingCash = cf.OpeningCash.Add(cf.NetCashFlow)
	cf.Difference = cf.ActualClosing.Sub(cf.ClosingCash)
	cf.Reconciled = cf.Difference.Abs().LessThan(shared.Cents)
	cf.Ratios = cashFlowRatios(cf)
	return cf, nil
}

func activityOf(chart *accounts.Chart, accountID int64, n shared.Nature) accounts.Activity {
	role, ok := chart.FindRole(accountID, func(r accounts.SystemRole) bool {
		_, forced := r.Activity()
		return forced
	})
	if !ok {
		return accounts.ActivityOperating
	}
	act, _ := role.Activity()
	switch {
	case act == accounts.ActivityInvesting && n == shared.NatureAsset:
		return act
	case act == accounts.ActivityFinancing && (n == shared.NatureLiability || n == shared.NatureEquity):
		return act
	}
	return accounts.ActivityOperating
}

func cashFlowRatios(cf CashFlow) CashFlowRatios {
	var r CashFlowRatios
	r.OperatingToCash = shared.Percent(cf.Operating.Total, cf.ClosingCash)
	r.CashEfficiency = shared.Percent(cf.NetCashFlow, cf.Operating.Total)
	switch {
	case !cf.OpeningCash.IsZero():
		r.CashGrowthRate = shared.Percent(cf.NetCashFlow, cf.OpeningCash)
		r.CashPositionIndex = shared.Percent(cf.ClosingCash, cf.OpeningCash)
	case cf.NetCashFlow.IsPositive():
		r.CashGrowthRate = hundred
		r.CashPositionIndex = hundred
	default:
		r.CashPositionIndex = hundred
	}
	return r
}
