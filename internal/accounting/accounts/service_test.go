package accounts_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/ledger-core/internal/shared"
	_ "github.com/odyssey-erp/ledger-core/testing"
)

var testNow = time.Date(2024, 5, 31, 10, 0, 0, 0, time.UTC)

type memoryRepo struct {
	groups   map[int64]accounts.Group
	accounts map[int64]accounts.Account
	entries  map[int64]bool
	next     int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		groups:   map[int64]accounts.Group{},
		accounts: map[int64]accounts.Account{},
		entries:  map[int64]bool{},
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, accounts.TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) ListGroups(_ context.Context, branchID *int64) ([]accounts.Group, error) {
	scope := shared.Scope{BranchID: branchID}
	var out []accounts.Group
	for _, g := range m.groups {
		if g.DeletedAt == nil && scope.Covers(g.BranchID) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListAccounts(_ context.Context, branchID *int64) ([]accounts.Account, error) {
	scope := shared.Scope{BranchID: branchID}
	var out []accounts.Account
	for _, a := range m.accounts {
		if a.DeletedAt == nil && scope.Covers(a.BranchID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryRepo) GetGroup(_ context.Context, id int64, _ bool) (accounts.Group, error) {
	g, ok := m.groups[id]
	if !ok || g.DeletedAt != nil {
		return accounts.Group{}, shared.NotFound("account_group", id)
	}
	return g, nil
}

func (m *memoryRepo) GetAccount(_ context.Context, id int64, _ bool) (accounts.Account, error) {
	a, ok := m.accounts[id]
	if !ok || a.DeletedAt != nil {
		return accounts.Account{}, shared.NotFound("account", id)
	}
	return a, nil
}

func (m *memoryRepo) GroupCodeTaken(_ context.Context, branchID *int64, code string) (bool, error) {
	for _, g := range m.groups {
		if g.DeletedAt == nil && g.Code == code && shared.SameBranch(g.BranchID, branchID) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) AccountCodeTaken(_ context.Context, branchID *int64, code string) (bool, error) {
	for _, a := range m.accounts {
		if a.DeletedAt == nil && a.Code == code && shared.SameBranch(a.BranchID, branchID) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) InsertGroup(_ context.Context, in accounts.CreateGroupInput, parent *accounts.Group) (accounts.Group, error) {
	m.next++
	g := accounts.Group{ID: m.next, BranchID: in.BranchID, ParentID: in.ParentID, Code: in.Code, Name: in.Name,
		Nature: in.Nature, MainGroup: in.MainGroup, Role: in.Role, Locked: in.Locked, Path: "/"}
	if parent != nil {
		g.Depth = parent.Depth + 1
		g.Path = parent.Path
	}
	g.Path += strconv.FormatInt(g.ID, 10) + "/"
	m.groups[g.ID] = g
	return g, nil
}

func (m *memoryRepo) InsertAccount(_ context.Context, in accounts.CreateAccountInput) (accounts.Account, error) {
	m.next++
	a := accounts.Account{ID: m.next, BranchID: in.BranchID, GroupID: in.GroupID, Code: in.Code, Name: in.Name,
		LedgerType: in.LedgerType, Role: in.Role, Locked: in.Locked}
	m.accounts[a.ID] = a
	return a, nil
}

func (m *memoryRepo) UpdateGroupText(_ context.Context, id int64, name, description string) error {
	g := m.groups[id]
	g.Name, g.Description = name, description
	m.groups[id] = g
	return nil
}

func (m *memoryRepo) MoveSubtree(_ context.Context, moved accounts.Group, parent *accounts.Group) error {
	newPath := "/" + strconv.FormatInt(moved.ID, 10) + "/"
	newDepth := 0
	if parent != nil {
		newPath = parent.Path + strconv.FormatInt(moved.ID, 10) + "/"
		newDepth = parent.Depth + 1
	}
	for id, g := range m.groups {
		if !strings.HasPrefix(g.Path, moved.Path) {
			continue
		}
		g.Path = newPath + strings.TrimPrefix(g.Path, moved.Path)
		g.Depth += newDepth - moved.Depth
		if id == moved.ID {
			if parent != nil {
				p := parent.ID
				g.ParentID = &p
			} else {
				g.ParentID = nil
			}
		}
		m.groups[id] = g
	}
	return nil
}

func (m *memoryRepo) CountDependents(_ context.Context, groupID int64) (int, int, error) {
	var groups, accts int
	for _, g := range m.groups {
		if g.DeletedAt == nil && g.ParentID != nil && *g.ParentID == groupID {
			groups++
		}
	}
	for _, a := range m.accounts {
		if a.DeletedAt == nil && a.GroupID == groupID {
			accts++
		}
	}
	return groups, accts, nil
}

func (m *memoryRepo) AccountHasEntries(_ context.Context, id int64) (bool, error) {
	return m.entries[id], nil
}

func (m *memoryRepo) SoftDeleteGroup(_ context.Context, id int64, at time.Time) error {
	g := m.groups[id]
	g.DeletedAt = &at
	m.groups[id] = g
	return nil
}

func (m *memoryRepo) SoftDeleteAccount(_ context.Context, id int64, at time.Time) error {
	a := m.accounts[id]
	a.DeletedAt = &at
	m.accounts[id] = a
	return nil
}

func (m *memoryRepo) UpdateAccount(_ context.Context, a accounts.Account) error {
	m.accounts[a.ID] = a
	return nil
}

type recordingAudit struct {
	actions []string
}

func (r *recordingAudit) Record(_ context.Context, log internalShared.AuditLog) error {
	r.actions = append(r.actions, log.Action)
	return nil
}

func newTestService() (*accounts.Service, *memoryRepo, *recordingAudit) {
	repo := newMemoryRepo()
	audit := &recordingAudit{}
	svc := accounts.NewService(repo, audit)
	svc.WithNow(func() time.Time { return testNow })
	return svc, repo, audit
}

func ptr(v int64) *int64 { return &v }

func TestCreateGroupComputesPathAndDepth(t *testing.T) {
	ctx := context.Background()
	svc, _, audit := newTestService()

	root, err := svc.CreateGroup(ctx, accounts.CreateGroupInput{Code: "1", Name: "Assets", Nature: "Assets"})
	require.NoError(t, err)
	require.Equal(t, shared.NatureAsset, root.Nature)
	require.Equal(t, accounts.MainGroupBalanceSheet, root.MainGroup)

	child, err := svc.CreateGroup(ctx, accounts.CreateGroupInput{ParentID: ptr(root.ID), Code: "11", Name: "Current Assets", Nature: shared.NatureAsset})
	require.NoError(t, err)
	require.Equal(t, 1, child.Depth)
	require.Equal(t, "/1/2/", child.Path)

	path, err := svc.FullPath(ctx, child.ID)
	require.NoError(t, err)
	require.Equal(t, "Assets > Current Assets", path)
	require.Equal(t, []string{"account_group.create", "account_group.create"}, audit.actions)
}

func TestCreateGroupRejectsDuplicateAndCrossBranch(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	branch := ptr(7)

	root, err := svc.CreateGroup(ctx, accounts.CreateGroupInput{BranchID: branch, Code: "1", Name: "Assets", Nature: shared.NatureAsset})
	require.NoError(t, err)

	_, err = svc.CreateGroup(ctx, accounts.CreateGroupInput{BranchID: branch, Code: "1", Name: "Again", Nature: shared.NatureAsset})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateGroup(ctx, accounts.CreateGroupInput{BranchID: ptr(8), ParentID: ptr(root.ID), Code: "11", Name: "Cash", Nature: shared.NatureAsset})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "parent_id", verr.Field)

	_, err = svc.CreateGroup(ctx, accounts.CreateGroupInput{Code: "X", Name: "Bad", Nature: "stock"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateGroupMovesSubtreeAndRejectsCycle(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()

	assets, err := svc.CreateGroup(ctx, accounts.CreateGroupInput{Code: "1", Name: "Assets", Nature: shared.NatureAsset})
	require.NoError(t, err)
	current, err := svc.CreateGroup(ctx, accounts.CreateGroupInput{ParentID: ptr(assets.ID), Code: "11", Name: "Current", Nature: shared.NatureAsset})
	require.NoError(t, err)
	cash, err := svc.CreateGroup(ctx, accounts.CreateGroupInput{ParentID: ptr(current.ID), Code: "111", Name: "Cash", Nature: shared.NatureAsset})
	require.NoError(t, err)
	other, err := svc.CreateGroup(ctx, accounts.CreateGroupInput{Code: "9", Name: "Other", Nature: shared.NatureAsset})
	require.NoError(t, err)

	_, err = svc.UpdateGroup(ctx, accounts.UpdateGroupInput{ID: assets.ID, ParentID: ptr(cash.ID)})
	require.ErrorIs(t, err, shared.ErrValidation)

	moved, err := svc.UpdateGroup(ctx, accounts.UpdateGroupInput{ID: current.ID, ParentID: ptr(other.ID)})
	require.NoError(t, err)
	require.Equal(t, "/4/2/", moved.Path)
	require.Equal(t, "/4/2/3/", repo.groups[cash.ID].Path)
	require.Equal(t, 2, repo.groups[cash.ID].Depth)

	name := "Cash & Bank"
	renamed, err := svc.UpdateGroup(ctx, accounts.UpdateGroupInput{ID: cash.ID, Name: &name})
	require.NoError(t, err)
	require.Equal(t, name, renamed.Name)
}

func TestLockedGroupCannotChange(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	locked, err := svc.CreateGroup(ctx, accounts.CreateGroupInput{Code: "1", Name: "Assets", Nature: shared.NatureAsset, Locked: true})
	require.NoError(t, err)

	name := "Renamed"
	_, err = svc.UpdateGroup(ctx, accounts.UpdateGroupInput{ID: locked.ID, Name: &name})
	require.ErrorIs(t, err, shared.ErrLocked)
	require.ErrorIs(t, svc.DeleteGroup(ctx, locked.ID, 1), shared.ErrLocked)
}

func TestDeleteRules(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()

	group, err := svc.CreateGroup(ctx, accounts.CreateGroupInput{Code: "1", Name: "Assets", Nature: shared.NatureAsset})
	require.NoError(t, err)
	acct, err := svc.CreateAccount(ctx, accounts.CreateAccountInput{GroupID: group.ID, Code: "1001", Name: "Cash"})
	require.NoError(t, err)
	require.Equal(t, accounts.LedgerGeneral, acct.LedgerType)

	require.ErrorIs(t, svc.DeleteGroup(ctx, group.ID, 1), shared.ErrValidation)

	repo.entries[acct.ID] = true
	require.ErrorIs(t, svc.DeleteAccount(ctx, acct.ID, 1), shared.ErrValidation)

	repo.entries[acct.ID] = false
	require.NoError(t, svc.DeleteAccount(ctx, acct.ID, 1))
	require.NoError(t, svc.DeleteGroup(ctx, group.ID, 1))

	err = svc.DeleteGroup(ctx, group.ID, 1)
	require.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestCreateAccountRequiresLiveGroupInSameBranch(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	group, err := svc.CreateGroup(ctx, accounts.CreateGroupInput{BranchID: ptr(1), Code: "1", Name: "Assets", Nature: shared.NatureAsset})
	require.NoError(t, err)

	_, err = svc.CreateAccount(ctx, accounts.CreateAccountInput{BranchID: ptr(2), GroupID: group.ID, Code: "1001", Name: "Cash"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateAccount(ctx, accounts.CreateAccountInput{GroupID: 404, Code: "1001", Name: "Cash"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateAccount(ctx, accounts.CreateAccountInput{BranchID: ptr(1), GroupID: group.ID, Code: "1001", Name: "Cash"})
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, accounts.CreateAccountInput{BranchID: ptr(1), GroupID: group.ID, Code: "1001", Name: "Cash again"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateAccountRegroupsWithinBranch(t *testing.T) {
	ctx := context.Background()
	svc, repo, audit := newTestService()

	debtors, err := svc.CreateGroup(ctx, accounts.CreateGroupInput{BranchID: ptr(1), Code: "12", Name: "Debtors", Nature: shared.NatureAsset})
	require.NoError(t, err)
	students, err := svc.CreateGroup(ctx, accounts.CreateGroupInput{BranchID: ptr(1), Code: "13", Name: "Students", Nature: shared.NatureAsset})
	require.NoError(t, err)
	foreign, err := svc.CreateGroup(ctx, accounts.CreateGroupInput{BranchID: ptr(2), Code: "13", Name: "Students", Nature: shared.NatureAsset})
	require.NoError(t, err)
	acct, err := svc.CreateAccount(ctx, accounts.CreateAccountInput{BranchID: ptr(1), GroupID: debtors.ID, Code: "1201", Name: "Rina", LedgerType: accounts.LedgerStudent})
	require.NoError(t, err)

	_, err = svc.UpdateAccount(ctx, accounts.UpdateAccountInput{ID: acct.ID, GroupID: ptr(foreign.ID)})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.UpdateAccount(ctx, accounts.UpdateAccountInput{ID: acct.ID, GroupID: ptr(404)})
	require.ErrorIs(t, err, shared.ErrValidation)

	alias := " R. Putri "
	days := 45
	limit := decimal.RequireFromString("750")
	updated, err := svc.UpdateAccount(ctx, accounts.UpdateAccountInput{
		ID:          acct.ID,
		AliasName:   &alias,
		GroupID:     ptr(students.ID),
		CreditLimit: &limit,
		CreditDays:  &days,
	})
	require.NoError(t, err)
	require.Equal(t, "R. Putri", updated.AliasName)
	require.Equal(t, "Rina", updated.Name)
	require.Equal(t, students.ID, repo.accounts[acct.ID].GroupID)
	require.True(t, updated.CreditLimit.Equal(limit))
	require.Equal(t, 45, updated.CreditDays)
	require.Equal(t, "account.update", audit.actions[len(audit.actions)-1])

	negative := -1
	_, err = svc.UpdateAccount(ctx, accounts.UpdateAccountInput{ID: acct.ID, CreditDays: &negative})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestLockedAccountCannotChange(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	group, err := svc.CreateGroup(ctx, accounts.CreateGroupInput{Code: "1", Name: "Assets", Nature: shared.NatureAsset})
	require.NoError(t, err)
	cash, err := svc.CreateAccount(ctx, accounts.CreateAccountInput{GroupID: group.ID, Code: "1001", Name: "Cash", Locked: true})
	require.NoError(t, err)

	name := "Petty cash"
	_, err = svc.UpdateAccount(ctx, accounts.UpdateAccountInput{ID: cash.ID, Name: &name})
	require.ErrorIs(t, err, shared.ErrLocked)
}

type recordingInvalidator struct {
	scopes []string
	err    error
}

func (r *recordingInvalidator) InvalidateChart(_ context.Context, branchID *int64) error {
	r.scopes = append(r.scopes, shared.BranchToken(branchID))
	return r.err
}

func TestChartChangesInvalidateReports(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	inval := &recordingInvalidator{}
	svc.WithInvalidator(inval)

	global, err := svc.CreateGroup(ctx, accounts.CreateGroupInput{Code: "1", Name: "Assets", Nature: shared.NatureAsset})
	require.NoError(t, err)
	income, err := svc.CreateGroup(ctx, accounts.CreateGroupInput{BranchID: ptr(3), Code: "4", Name: "Income", Nature: shared.NatureIncome})
	require.NoError(t, err)
	expense, err := svc.CreateGroup(ctx, accounts.CreateGroupInput{BranchID: ptr(3), Code: "5", Name: "Expenses", Nature: shared.NatureExpense})
	require.NoError(t, err)
	acct, err := svc.CreateAccount(ctx, accounts.CreateAccountInput{BranchID: ptr(3), GroupID: income.ID, Code: "4101", Name: "Canteen"})
	require.NoError(t, err)
	require.Equal(t, []string{"all", "3", "3", "3"}, inval.scopes)

	_, err = svc.UpdateAccount(ctx, accounts.UpdateAccountInput{ID: acct.ID, GroupID: ptr(expense.ID)})
	require.NoError(t, err)
	name := "Fixed Assets"
	_, err = svc.UpdateGroup(ctx, accounts.UpdateGroupInput{ID: global.ID, Name: &name})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteAccount(ctx, acct.ID, 1))
	require.NoError(t, svc.DeleteGroup(ctx, global.ID, 1))
	require.Equal(t, []string{"all", "3", "3", "3", "3", "all", "3", "all"}, inval.scopes)

	// rejected edits leave the cache alone
	_, err = svc.UpdateGroup(ctx, accounts.UpdateGroupInput{ID: income.ID, ParentID: ptr(income.ID)})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Len(t, inval.scopes, 8)
}

func TestChartInvalidationFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	var buf bytes.Buffer
	svc.WithLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	svc.WithInvalidator(&recordingInvalidator{err: errors.New("redis down")})

	_, err := svc.CreateGroup(ctx, accounts.CreateGroupInput{BranchID: ptr(3), Code: "1", Name: "Assets", Nature: shared.NatureAsset})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "report cache invalidation failed")
	require.Contains(t, buf.String(), "branch=3")
	require.Contains(t, buf.String(), "redis down")
}
