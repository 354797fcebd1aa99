package provisioning_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/provisioning"
	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

type memoryChart struct {
	groups   []accounts.Group
	accounts []accounts.Account
	next     int64
}

func (m *memoryChart) LoadChart(_ context.Context, branchID *int64) (*accounts.Chart, error) {
	var groups []accounts.Group
	for _, g := range m.groups {
		if g.BranchID == nil || shared.SameBranch(g.BranchID, branchID) {
			groups = append(groups, g)
		}
	}
	var accts []accounts.Account
	for _, a := range m.accounts {
		if a.BranchID == nil || shared.SameBranch(a.BranchID, branchID) {
			accts = append(accts, a)
		}
	}
	return accounts.NewChart(branchID, groups, accts)
}

func (m *memoryChart) CreateGroup(_ context.Context, in accounts.CreateGroupInput) (accounts.Group, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return accounts.Group{}, err
	}
	for _, g := range m.groups {
		if g.Code == in.Code && shared.SameBranch(g.BranchID, in.BranchID) {
			return accounts.Group{}, shared.Invalid("code", "already used in this branch")
		}
	}
	if in.ParentID != nil {
		found := false
		for _, g := range m.groups {
			found = found || (g.ID == *in.ParentID && shared.SameBranch(g.BranchID, in.BranchID))
		}
		if !found {
			return accounts.Group{}, shared.Invalid("parent_id", "parent group does not exist")
		}
	}
	m.next++
	g := accounts.Group{
		ID: m.next, BranchID: in.BranchID, ParentID: in.ParentID, Code: in.Code, Name: in.Name,
		Nature: in.Nature, MainGroup: in.MainGroup, Role: in.Role, Locked: in.Locked, Description: in.Description,
	}
	m.groups = append(m.groups, g)
	return g, nil
}

func (m *memoryChart) CreateAccount(_ context.Context, in accounts.CreateAccountInput) (accounts.Account, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return accounts.Account{}, err
	}
	for _, a := range m.accounts {
		if a.Code == in.Code && shared.SameBranch(a.BranchID, in.BranchID) {
			return accounts.Account{}, shared.Invalid("code", "already used in this branch")
		}
	}
	m.next++
	a := accounts.Account{
		ID: m.next, BranchID: in.BranchID, GroupID: in.GroupID, Code: in.Code, Name: in.Name,
		LedgerType: in.LedgerType, Role: in.Role, Locked: in.Locked,
	}
	m.accounts = append(m.accounts, a)
	return a, nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func template(t *testing.T) provisioning.Template {
	t.Helper()
	tpl, err := provisioning.LoadTemplate("../../../scripts/seed/chart_template.yaml")
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	return tpl
}

func TestProvisionBuildsUsableChart(t *testing.T) {
	ctx := context.Background()
	branch := int64(7)
	store := &memoryChart{}
	tpl := template(t)
	p := provisioning.NewChartProvisioner(store, tpl, quiet())

	res, err := p.EnsureDefaultAccounts(ctx, &branch)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if err := provisioning.EnsureReady(res); err != nil {
		t.Fatalf("expected ready chart: %v", err)
	}
	if len(res.CreatedGroups) != len(tpl.Groups) || len(res.CreatedAccounts) != len(tpl.Accounts) {
		t.Fatalf("unexpected counts %d groups %d accounts", len(res.CreatedGroups), len(res.CreatedAccounts))
	}

	chart, err := store.LoadChart(ctx, &branch)
	if err != nil {
		t.Fatalf("load chart: %v", err)
	}
	cash, err := chart.RequireAccountWithRole(accounts.RoleCashOnHand)
	if err != nil {
		t.Fatalf("cash account: %v", err)
	}
	if cash.Code != "BR007-1111" || !cash.Locked {
		t.Fatalf("unexpected cash account %+v", cash)
	}
	if role, ok := chart.FindRole(cash.ID, accounts.SystemRole.IsCash); !ok || role != accounts.RoleCashOnHand {
		t.Fatalf("cash role not visible: %q", role)
	}
	path, err := chart.FullPath(cash.GroupID)
	if err != nil || path != "Assets > Current Assets > Cash in Hand" {
		t.Fatalf("unexpected path %q (%v)", path, err)
	}
}

func TestProvisionIsRepeatable(t *testing.T) {
	ctx := context.Background()
	branch := int64(7)
	store := &memoryChart{}
	p := provisioning.NewChartProvisioner(store, template(t), quiet())

	if _, err := p.EnsureDefaultAccounts(ctx, &branch); err != nil {
		t.Fatalf("first run: %v", err)
	}
	groups, accts := len(store.groups), len(store.accounts)

	res, err := p.EnsureDefaultAccounts(ctx, &branch)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(res.CreatedGroups) != 0 || len(res.CreatedAccounts) != 0 {
		t.Fatalf("second run must create nothing, got %+v", res)
	}
	if len(store.groups) != groups || len(store.accounts) != accts {
		t.Fatalf("store grew on repeat run")
	}

	other := int64(8)
	res, err = p.EnsureDefaultAccounts(ctx, &other)
	if err != nil {
		t.Fatalf("other branch: %v", err)
	}
	if len(res.CreatedGroups) != groups {
		t.Fatalf("branches must be provisioned independently, got %d groups", len(res.CreatedGroups))
	}
}

func TestProvisionAvoidsTakenCodes(t *testing.T) {
	ctx := context.Background()
	branch := int64(3)
	store := &memoryChart{}
	tpl := provisioning.Template{
		Groups:   []provisioning.GroupSpec{{Code: "111", Name: "Cash in Hand", Nature: "asset", Role: "cash_account"}},
		Accounts: []provisioning.AccountSpec{{Role: "cash_on_hand", Code: "1111", Name: "Cash", Group: "111"}},
	}
	g, err := store.CreateGroup(ctx, accounts.CreateGroupInput{BranchID: &branch, Code: "X", Name: "Legacy", Nature: shared.NatureAsset})
	if err != nil {
		t.Fatalf("seed group: %v", err)
	}
	if _, err := store.CreateAccount(ctx, accounts.CreateAccountInput{BranchID: &branch, GroupID: g.ID, Code: "BR003-1111", Name: "Legacy cash"}); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	res, err := provisioning.NewChartProvisioner(store, tpl, quiet()).EnsureDefaultAccounts(ctx, &branch)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if len(res.CreatedAccounts) != 1 || res.CreatedAccounts[0].Code != "BR003-1111-01" {
		t.Fatalf("expected suffixed code, got %+v", res.CreatedAccounts)
	}
}

func TestEnsureReadyReportsLeftovers(t *testing.T) {
	ctx := context.Background()
	branch := int64(5)
	tpl := provisioning.Template{
		Groups: []provisioning.GroupSpec{
			{Code: "1", Name: "Assets", Nature: "asset"},
			{Code: "11", Name: "Orphan", Nature: "asset", Parent: "missing"},
		},
		Accounts: []provisioning.AccountSpec{
			{Role: "cash_on_hand", Code: "1111", Name: "Cash", Group: "11"},
		},
	}
	res, err := provisioning.NewChartProvisioner(&memoryChart{}, tpl, quiet()).EnsureDefaultAccounts(ctx, &branch)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if len(res.Unresolved) != 1 || len(res.Invalid) != 1 {
		t.Fatalf("expected one unresolved group and one invalid account, got %+v", res)
	}

	err = provisioning.EnsureReady(res)
	var cfg *shared.ConfigurationError
	if !errors.As(err, &cfg) || !errors.Is(err, shared.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if cfg.Scope != "5" {
		t.Fatalf("unexpected scope %q", cfg.Scope)
	}
}
