package accounts_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts/accountstest"
	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

func TestChartRollupOrderIsDeepestFirst(t *testing.T) {
	std := accountstest.NewStandard(nil)
	chart := std.Chart(t)

	seen := map[int64]int{}
	for i, id := range chart.RollupOrder() {
		seen[id] = i
	}
	for _, g := range chart.Groups() {
		if g.ParentID == nil {
			continue
		}
		if seen[g.ID] > seen[*g.ParentID] {
			t.Fatalf("group %s must come before its parent", g.Code)
		}
	}
	g, _ := chart.Group(std.CashGroup)
	if g.Depth != 2 {
		t.Fatalf("expected depth 2 for cash group, got %d", g.Depth)
	}
}

func TestChartFullPathAndDescendants(t *testing.T) {
	std := accountstest.NewStandard(nil)
	chart := std.Chart(t)

	path, err := chart.FullPath(std.BankGroup)
	if err != nil {
		t.Fatalf("full path: %v", err)
	}
	if path != "Assets > Current Assets > Bank Accounts" {
		t.Fatalf("unexpected path %q", path)
	}

	desc, err := chart.Descendants(std.Assets)
	if err != nil {
		t.Fatalf("descendants: %v", err)
	}
	if len(desc) != 6 || desc[0].ID != std.Assets {
		t.Fatalf("expected assets plus five sub-groups, got %d", len(desc))
	}

	under, err := chart.AccountsUnder(std.CurrentAssets)
	if err != nil {
		t.Fatalf("accounts under: %v", err)
	}
	if len(under) != 3 {
		t.Fatalf("expected cash, bank and debtors, got %d", len(under))
	}

	if _, err := chart.FullPath(999); !errors.Is(err, shared.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestChartRejectsCrossBranchParent(t *testing.T) {
	b1, b2 := int64(1), int64(2)
	parent := int64(1)
	groups := []accounts.Group{
		{ID: 1, BranchID: &b1, Code: "1", Name: "Assets", Nature: shared.NatureAsset},
		{ID: 2, BranchID: &b2, ParentID: &parent, Code: "11", Name: "Cash", Nature: shared.NatureAsset},
	}
	_, err := accounts.NewChart(nil, groups, nil)
	if !errors.Is(err, shared.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestChartRejectsCycleAndUnresolvedParent(t *testing.T) {
	one, two, missing := int64(1), int64(2), int64(77)
	cyclic := []accounts.Group{
		{ID: 1, ParentID: &two, Code: "A", Nature: shared.NatureAsset},
		{ID: 2, ParentID: &one, Code: "B", Nature: shared.NatureAsset},
	}
	if _, err := accounts.NewChart(nil, cyclic, nil); !errors.Is(err, shared.ErrConfiguration) {
		t.Fatalf("expected cycle rejection, got %v", err)
	}
	orphan := []accounts.Group{{ID: 3, ParentID: &missing, Code: "C", Nature: shared.NatureAsset}}
	if _, err := accounts.NewChart(nil, orphan, nil); !errors.Is(err, shared.ErrConfiguration) {
		t.Fatalf("expected unresolved parent rejection, got %v", err)
	}
}

func TestChartRoleLookups(t *testing.T) {
	std := accountstest.NewStandard(nil)
	chart := std.Chart(t)

	cash := chart.AccountsWithRole(accounts.RoleCashAccount)
	if len(cash) != 1 || cash[0].ID != std.Cash {
		t.Fatalf("expected cash account under cash group, got %+v", cash)
	}
	role, ok := chart.FindRole(std.Bank, accounts.SystemRole.IsCash)
	if !ok || role != accounts.RoleMainBankAccount {
		t.Fatalf("expected account tag to win, got %q", role)
	}
	activity, ok := chart.FindRole(std.Furniture, func(r accounts.SystemRole) bool {
		_, forced := r.Activity()
		return forced
	})
	if !ok || activity != accounts.RoleFixedAssets {
		t.Fatalf("expected fixed assets role, got %q", activity)
	}
	if got := chart.NearestGroupRole(std.CashGroup); got != accounts.RoleCashAccount {
		t.Fatalf("unexpected nearest role %q", got)
	}

	rounding, err := chart.RequireAccountWithRole(accounts.RoleRoundingOff)
	if err != nil || rounding.ID != std.Rounding {
		t.Fatalf("expected rounding account, got %+v %v", rounding, err)
	}
	_, err = chart.RequireAccountWithRole(accounts.RoleSuspenseAccount)
	var cfg *shared.ConfigurationError
	if !errors.As(err, &cfg) || cfg.Role != string(accounts.RoleSuspenseAccount) {
		t.Fatalf("expected configuration error naming the role, got %v", err)
	}
}

func TestAvailableCredit(t *testing.T) {
	limit := decimal.NewFromInt(1000)
	customer := accounts.Account{LedgerType: accounts.LedgerCustomer, CreditLimit: limit}
	supplier := accounts.Account{LedgerType: accounts.LedgerSupplier, CreditLimit: limit}
	general := accounts.Account{LedgerType: accounts.LedgerGeneral, CreditLimit: limit}

	if got, ok := customer.AvailableCredit(decimal.NewFromInt(300)); !ok || !got.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("customer available credit = %s", got)
	}
	if got, _ := customer.AvailableCredit(decimal.NewFromInt(-50)); !got.Equal(limit) {
		t.Fatalf("customer credit balance must not raise the limit, got %s", got)
	}
	if got, _ := supplier.AvailableCredit(decimal.NewFromInt(-400)); !got.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("supplier available credit = %s", got)
	}
	if got, _ := general.AvailableCredit(decimal.NewFromInt(5000)); !got.Equal(limit) {
		t.Fatalf("general account returns the limit, got %s", got)
	}
	if _, ok := (accounts.Account{LedgerType: accounts.LedgerCustomer}).AvailableCredit(decimal.NewFromInt(1)); ok {
		t.Fatalf("no limit must report ok=false")
	}
	if !customer.IsOverCreditLimit(decimal.NewFromInt(1200)) {
		t.Fatalf("expected over limit")
	}
	if customer.IsOverCreditLimit(decimal.NewFromInt(999)) {
		t.Fatalf("unexpected over limit")
	}
}

func TestOverdue(t *testing.T) {
	customer := accounts.Account{LedgerType: accounts.LedgerCustomer, CreditDays: 30}
	if _, ok := (accounts.Account{LedgerType: accounts.LedgerGeneral, CreditDays: 30}).OverdueCutoff(shared.StartOfDay(testNow)); ok {
		t.Fatalf("general ledgers have no overdue rule")
	}
	cutoff, ok := customer.OverdueCutoff(testNow)
	if !ok || cutoff.Day() != 1 || cutoff.Month() != 5 {
		t.Fatalf("unexpected cutoff %s", cutoff)
	}
	if !customer.IsOverdue(decimal.NewFromInt(10)) || customer.IsOverdue(decimal.Zero) {
		t.Fatalf("customer overdue only with a debit balance at cutoff")
	}
	supplier := accounts.Account{LedgerType: accounts.LedgerSupplier, CreditDays: 15}
	if !supplier.IsOverdue(decimal.NewFromInt(-10)) {
		t.Fatalf("supplier overdue with a credit balance at cutoff")
	}
}
