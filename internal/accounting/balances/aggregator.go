package balances

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

// Store is the aggregate query surface the aggregator needs.
type Store interface {
	NetByAccount(ctx context.Context, scope shared.Scope) (map[int64]decimal.Decimal, error)
	NetForAccounts(ctx context.Context, scope shared.Scope, ids []int64) (map[int64]decimal.Decimal, error)
	Movements(ctx context.Context, branchID *int64, from, to *time.Time) (map[int64]Movement, error)
	AccountIDsAfter(ctx context.Context, branchID *int64, after int64, limit int) ([]int64, error)
	AccountBranch(ctx context.Context, id int64) (*int64, bool, error)
	GroupBranch(ctx context.Context, id int64) (*int64, bool, error)
}

// ChartLoader loads the chart visible to a branch.
type ChartLoader interface {
	LoadChart(ctx context.Context, branchID *int64) (*accounts.Chart, error)
}

// DefaultBatchSize is used by BulkBalances when the caller passes zero.
const DefaultBatchSize = 500

// Aggregator computes balances on demand from posted entries.
type Aggregator struct {
	store  Store
	charts ChartLoader
}

// NewAggregator wires the aggregator.
func NewAggregator(store Store, charts ChartLoader) *Aggregator {
	return &Aggregator{store: store, charts: charts}
}

// Balance returns one account's net for the scope.
func (a *Aggregator) Balance(ctx context.Context, accountID int64, scope shared.Scope) (Amount, error) {
	if err := scope.Validate(); err != nil {
		return Amount{}, err
	}
	acct, nature, err := a.Account(ctx, accountID, scope.BranchID)
	if err != nil {
		return Amount{}, err
	}
	nets, err := a.store.NetForAccounts(ctx, scope, []int64{acct.ID})
	if err != nil {
		return Amount{}, err
	}
	return Amount{Net: nets[acct.ID], Nature: nature}, nil
}

// Account resolves an account visible to branchID together with its nature.
func (a *Aggregator) Account(ctx context.Context, accountID int64, branchID *int64) (accounts.Account, shared.Nature, error) {
	chart, err := a.charts.LoadChart(ctx, branchID)
	if err != nil {
		return accounts.Account{}, "", err
	}
	acct, ok := chart.Account(accountID)
	if !ok {
		return accounts.Account{}, "", a.missing(ctx, "account", accountID, shared.Scope{BranchID: branchID}, a.store.AccountBranch)
	}
	nature, _ := chart.NatureOf(acct.ID)
	return acct, nature, nil
}

// GroupTotal returns the net of every account under a group.
func (a *Aggregator) GroupTotal(ctx context.Context, groupID int64, scope shared.Scope) (Amount, error) {
	if err := scope.Validate(); err != nil {
		return Amount{}, err
	}
	chart, err := a.charts.LoadChart(ctx, scope.BranchID)
	if err != nil {
		return Amount{}, err
	}
	group, ok := chart.Group(groupID)
	if !ok {
		return Amount{}, a.missing(ctx, "account_group", groupID, scope, a.store.GroupBranch)
	}
	under, err := chart.AccountsUnder(group.ID)
	if err != nil {
		return Amount{}, err
	}
	ids := make([]int64, 0, len(under))
	for _, acct := range under {
		ids = append(ids, acct.ID)
	}
	nets, err := a.store.NetForAccounts(ctx, scope, ids)
	if err != nil {
		return Amount{}, err
	}
	total := decimal.Zero
	for _, net := range nets {
		total = total.Add(net)
	}
	return Amount{Net: total, Nature: group.Nature}, nil
}

// Snapshot loads the chart and every account net in one aggregate, then rolls up.
func (a *Aggregator) Snapshot(ctx context.Context, scope shared.Scope) (*Snapshot, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	chart, err := a.charts.LoadChart(ctx, scope.BranchID)
	if err != nil {
		return nil, err
	}
	nets, err := a.store.NetByAccount(ctx, scope)
	if err != nil {
		return nil, err
	}
	if err := checkScope(chart, nets); err != nil {
		return nil, err
	}
	return NewSnapshot(scope, chart, nets), nil
}

// Movements returns opening (before from) and period ([from, to]) activity per account.
func (a *Aggregator) Movements(ctx context.Context, branchID *int64, from, to *time.Time) (map[int64]Movement, error) {
	if err := (shared.Scope{BranchID: branchID, From: from, To: to}).Validate(); err != nil {
		return nil, err
	}
	return a.store.Movements(ctx, branchID, from, to)
}

// BulkBalances visits every account in scope in id order, batchSize at a time.
func (a *Aggregator) BulkBalances(ctx context.Context, scope shared.Scope, batchSize int, fn func([]AccountBalance) error) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	var after int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids, err := a.store.AccountIDsAfter(ctx, scope.BranchID, after, batchSize)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		nets, err := a.store.NetForAccounts(ctx, scope, ids)
		if err != nil {
			return err
		}
		batch := make([]AccountBalance, 0, len(ids))
		for _, id := range ids {
			batch = append(batch, AccountBalance{AccountID: id, Net: nets[id]})
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(ids) < batchSize {
			return nil
		}
		after = ids[len(ids)-1]
	}
}

// missing tells a genuinely absent row apart from one owned by another branch.
func (a *Aggregator) missing(ctx context.Context, entity string, id int64, scope shared.Scope, owner func(context.Context, int64) (*int64, bool, error)) error {
	branchID, found, err := owner(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return shared.NotFound(entity, id)
	}
	return shared.Misconfigured("", scope.Key(), fmt.Sprintf("%s %d belongs to branch %s", entity, id, shared.BranchToken(branchID)))
}

// checkScope rejects activity on accounts the chart does not know about.
func checkScope(chart *accounts.Chart, nets map[int64]decimal.Decimal) error {
	for id, net := range nets {
		if _, ok := chart.Account(id); !ok && !net.IsZero() {
			return shared.Misconfigured("", chart.Scope(), fmt.Sprintf("posted activity on account %d outside the chart", id))
		}
	}
	return nil
}
