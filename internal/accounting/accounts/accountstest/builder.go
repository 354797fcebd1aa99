// Package accountstest builds in-memory charts for tests.
package accountstest

import (
	"testing"

	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

// Builder accumulates groups and accounts with sequential ids.
type Builder struct {
	branchID *int64
	groups   []accounts.Group
	accounts []accounts.Account
	next     int64
}

// New starts a chart owned by branchID (nil for global).
func New(branchID *int64) *Builder {
	return &Builder{branchID: branchID}
}

// StartAt makes the next id after id, so several builders can share a ledger.
func (b *Builder) StartAt(id int64) *Builder {
	b.next = id
	return b
}

// Group adds a group; parent 0 makes it a root.
func (b *Builder) Group(code, name string, nature shared.Nature, parent int64, role accounts.SystemRole) int64 {
	b.next++
	g := accounts.Group{
		ID:        b.next,
		BranchID:  b.branchID,
		Code:      code,
		Name:      name,
		Nature:    nature,
		MainGroup: accounts.DefaultMainGroup(nature),
		Role:      role,
	}
	if parent != 0 {
		p := parent
		g.ParentID = &p
	}
	b.groups = append(b.groups, g)
	return g.ID
}

// Account adds a general ledger account under group.
func (b *Builder) Account(code, name string, group int64, role accounts.SystemRole) int64 {
	b.next++
	b.accounts = append(b.accounts, accounts.Account{
		ID:         b.next,
		BranchID:   b.branchID,
		GroupID:    group,
		Code:       code,
		Name:       name,
		LedgerType: accounts.LedgerGeneral,
		Role:       role,
	})
	return b.next
}

// Groups returns the accumulated groups.
func (b *Builder) Groups() []accounts.Group { return b.groups }

// Accounts returns the accumulated accounts.
func (b *Builder) Accounts() []accounts.Account { return b.accounts }

// Chart builds the chart and fails the test on error.
func (b *Builder) Chart(t testing.TB) *accounts.Chart {
	t.Helper()
	chart, err := accounts.NewChart(b.branchID, b.groups, b.accounts)
	if err != nil {
		t.Fatalf("build chart: %v", err)
	}
	return chart
}

// Standard is a small institutional chart with every role the reports need.
type Standard struct {
	*Builder

	Assets, CurrentAssets, CashGroup, BankGroup, Receivables, FixedAssets     int64
	Liabilities, CurrentLiabilities, Loans                                    int64
	Equity, Capital                                                           int64
	Income, DirectIncome, IndirectIncome, Expenses, DirectExp, IndirectExp    int64
	Cash, Bank, Debtors, Furniture, Creditors, BankLoan, OwnerCapital         int64
	TuitionFee, InterestIncome, StaffSalary, Electricity, Rounding, Opening int64
}

// NewStandard builds the standard chart for branchID.
func NewStandard(branchID *int64) *Standard {
	s := &Standard{Builder: New(branchID)}
	s.Assets = s.Group("1", "Assets", shared.NatureAsset, 0, accounts.RoleNone)
	s.CurrentAssets = s.Group("11", "Current Assets", shared.NatureAsset, s.Assets, accounts.RoleCurrentAssets)
	s.CashGroup = s.Group("111", "Cash in Hand", shared.NatureAsset, s.CurrentAssets, accounts.RoleCashAccount)
	s.BankGroup = s.Group("112", "Bank Accounts", shared.NatureAsset, s.CurrentAssets, accounts.RoleBankAccount)
	s.Receivables = s.Group("113", "Sundry Debtors", shared.NatureAsset, s.CurrentAssets, accounts.RoleSundryDebtors)
	s.FixedAssets = s.Group("12", "Fixed Assets", shared.NatureAsset, s.Assets, accounts.RoleFixedAssets)

	s.Liabilities = s.Group("2", "Liabilities", shared.NatureLiability, 0, accounts.RoleNone)
	s.CurrentLiabilities = s.Group("21", "Current Liabilities", shared.NatureLiability, s.Liabilities, accounts.RoleCurrentLiabilities)
	s.Loans = s.Group("22", "Long Term Loans", shared.NatureLiability, s.Liabilities, accounts.RoleLongTermLoans)

	s.Equity = s.Group("3", "Equity", shared.NatureEquity, 0, accounts.RoleNone)
	s.Capital = s.Group("31", "Capital Account", shared.NatureEquity, s.Equity, accounts.RoleCapital)

	s.Income = s.Group("4", "Income", shared.NatureIncome, 0, accounts.RoleNone)
	s.DirectIncome = s.Group("41", "Direct Income", shared.NatureIncome, s.Income, accounts.RoleDirectIncome)
	s.IndirectIncome = s.Group("42", "Indirect Income", shared.NatureIncome, s.Income, accounts.RoleIndirectIncome)

	s.Expenses = s.Group("5", "Expenses", shared.NatureExpense, 0, accounts.RoleNone)
	s.DirectExp = s.Group("51", "Direct Expenses", shared.NatureExpense, s.Expenses, accounts.RoleDirectExpenses)
	s.IndirectExp = s.Group("52", "Indirect Expenses", shared.NatureExpense, s.Expenses, accounts.RoleIndirectExpenses)

	s.Cash = s.Account("1111", "Cash", s.CashGroup, accounts.RoleCashOnHand)
	s.Bank = s.Account("1121", "Main Bank", s.BankGroup, accounts.RoleMainBankAccount)
	s.Debtors = s.Account("1131", "Student Fees Receivable", s.Receivables, accounts.RoleFeesReceivable)
	s.Furniture = s.Account("1201", "Furniture", s.FixedAssets, accounts.RoleNone)
	s.Creditors = s.Account("2101", "Suppliers", s.CurrentLiabilities, accounts.RoleNone)
	s.Rounding = s.Account("2102", "Rounding Off", s.CurrentLiabilities, accounts.RoleRoundingOff)
	s.BankLoan = s.Account("2201", "Bank Loan", s.Loans, accounts.RoleNone)
	s.OwnerCapital = s.Account("3101", "Capital", s.Capital, accounts.RoleNone)
	s.Opening = s.Account("3102", "Opening Balance Adjustment", s.Capital, accounts.RoleOpeningBalanceAdjustment)
	s.TuitionFee = s.Account("4101", "Tuition Fee", s.DirectIncome, accounts.RoleTuitionFee)
	s.InterestIncome = s.Account("4201", "Interest Income", s.IndirectIncome, accounts.RoleNone)
	s.StaffSalary = s.Account("5101", "Teaching Staff Salary", s.DirectExp, accounts.RoleTeachingStaffSalary)
	s.Electricity = s.Account("5201", "Electricity", s.IndirectExp, accounts.RoleElectricityExpense)
	return s
}
