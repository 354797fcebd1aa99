package accounts

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

// MainGroup places a group in a statement family.
type MainGroup string

const (
	MainGroupBalanceSheet  MainGroup = "balance_sheet"
	MainGroupProfitAndLoss MainGroup = "profit_and_loss"
	MainGroupCashFlow      MainGroup = "cash_flow"
	MainGroupOthers        MainGroup = "others"
)

// Valid reports whether m is a known main group.
func (m MainGroup) Valid() bool {
	switch m {
	case MainGroupBalanceSheet, MainGroupProfitAndLoss, MainGroupCashFlow, MainGroupOthers:
		return true
	}
	return false
}

// LedgerType tags the counterparty kind of an account.
type LedgerType string

const (
	LedgerGeneral  LedgerType = "general"
	LedgerCustomer LedgerType = "customer"
	LedgerSupplier LedgerType = "supplier"
	LedgerStudent  LedgerType = "student"
	LedgerEmployee LedgerType = "employee"
)

// Valid reports whether l is a known ledger type.
func (l LedgerType) Valid() bool {
	switch l {
	case LedgerGeneral, LedgerCustomer, LedgerSupplier, LedgerStudent, LedgerEmployee:
		return true
	}
	return false
}

// Group is a node of the chart-of-accounts forest.
type Group struct {
	ID          int64         `json:"id"`
	BranchID    *int64        `json:"branch_id,omitempty"`
	ParentID    *int64        `json:"parent_id,omitempty"`
	Code        string        `json:"code"`
	Name        string        `json:"name"`
	Nature      shared.Nature `json:"nature"`
	MainGroup   MainGroup     `json:"main_group"`
	Role        SystemRole    `json:"system_role,omitempty"`
	Locked      bool          `json:"locked"`
	Description string        `json:"description,omitempty"`
	Depth       int           `json:"depth"`
	Path        string        `json:"path"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	DeletedAt   *time.Time    `json:"deleted_at,omitempty"`
}

// Account is a postable leaf under exactly one group.
type Account struct {
	ID          int64           `json:"id"`
	BranchID    *int64          `json:"branch_id,omitempty"`
	GroupID     int64           `json:"group_id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	AliasName   string          `json:"alias_name,omitempty"`
	LedgerType  LedgerType      `json:"ledger_type"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	CreditDays  int             `json:"credit_days"`
	Role        SystemRole      `json:"system_role,omitempty"`
	Locked      bool            `json:"locked"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
}

// AvailableCredit returns the unused credit for a debit-natural balance. The
// second value is false when the account has no credit limit.
func (a Account) AvailableCredit(net decimal.Decimal) (decimal.Decimal, bool) {
	if !a.CreditLimit.IsPositive() {
		return decimal.Zero, false
	}
	switch a.LedgerType {
	case LedgerCustomer, LedgerStudent:
		return a.CreditLimit.Sub(decimal.Max(net, decimal.Zero)), true
	case LedgerSupplier:
		return a.CreditLimit.Sub(decimal.Max(net.Neg(), decimal.Zero)), true
	default:
		return a.CreditLimit, true
	}
}

// IsOverCreditLimit reports whether the outstanding balance exceeds the limit.
func (a Account) IsOverCreditLimit(net decimal.Decimal) bool {
	avail, ok := a.AvailableCredit(net)
	return ok && avail.IsNegative()
}

// OverdueCutoff is the last day whose balance must already be settled.
func (a Account) OverdueCutoff(now time.Time) (time.Time, bool) {
	if a.CreditDays <= 0 {
		return time.Time{}, false
	}
	switch a.LedgerType {
	case LedgerCustomer, LedgerSupplier:
		return shared.StartOfDay(now).AddDate(0, 0, -a.CreditDays), true
	}
	return time.Time{}, false
}

// IsOverdue reports whether the balance as of the cutoff is still outstanding.
func (a Account) IsOverdue(netAtCutoff decimal.Decimal) bool {
	switch a.LedgerType {
	case LedgerCustomer:
		return netAtCutoff.IsPositive()
	case LedgerSupplier:
		return netAtCutoff.IsNegative()
	}
	return false
}
