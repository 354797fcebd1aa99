package balances

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

// PgStore aggregates posted entries in Postgres.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore constructs the store.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// postedFilter keeps live entries of live posted transactions in a branch and window.
// $1 branch, $2 inclusive lower bound, $3 exclusive upper bound.
const postedFilter = `t.status = 'posted' AND t.deleted_at IS NULL AND e.deleted_at IS NULL
  AND ($1::bigint IS NULL OR t.branch_id = $1)
  AND ($2::timestamptz IS NULL OR t.date >= $2)
  AND ($3::timestamptz IS NULL OR t.date < $3)`

const netByAccountSQL = `SELECT e.account_id, COALESCE(SUM(e.debit), 0) - COALESCE(SUM(e.credit), 0)
FROM transaction_entries e
JOIN transactions t ON t.id = e.transaction_id
WHERE ` + postedFilter + `
GROUP BY e.account_id`

const netForAccountsSQL = `SELECT e.account_id, COALESCE(SUM(e.debit), 0) - COALESCE(SUM(e.credit), 0)
FROM transaction_entries e
JOIN transactions t ON t.id = e.transaction_id
WHERE ` + postedFilter + `
  AND e.account_id = ANY($4)
GROUP BY e.account_id`

// movementsSQL splits activity at $2: opening strictly before, period from $2 up to $3.
const movementsSQL = `SELECT e.account_id,
  COALESCE(SUM(e.debit) FILTER (WHERE $2::timestamptz IS NOT NULL AND t.date < $2), 0),
  COALESCE(SUM(e.credit) FILTER (WHERE $2::timestamptz IS NOT NULL AND t.date < $2), 0),
  COALESCE(SUM(e.debit) FILTER (WHERE $2::timestamptz IS NULL OR t.date >= $2), 0),
  COALESCE(SUM(e.credit) FILTER (WHERE $2::timestamptz IS NULL OR t.date >= $2), 0)
FROM transaction_entries e
JOIN transactions t ON t.id = e.transaction_id
WHERE t.status = 'posted' AND t.deleted_at IS NULL AND e.deleted_at IS NULL
  AND ($1::bigint IS NULL OR t.branch_id = $1)
  AND ($3::timestamptz IS NULL OR t.date < $3)
GROUP BY e.account_id`

// NetByAccount returns debit minus credit per account for the scope.
func (s *PgStore) NetByAccount(ctx context.Context, scope shared.Scope) (map[int64]decimal.Decimal, error) {
	rows, err := s.pool.Query(ctx, netByAccountSQL, scope.BranchID, scope.FromBound(), scope.ToExclusive())
	if err != nil {
		return nil, fmt.Errorf("balances: net by account: %w", err)
	}
	return collectNets(rows)
}

// NetForAccounts is NetByAccount restricted to ids.
func (s *PgStore) NetForAccounts(ctx context.Context, scope shared.Scope, ids []int64) (map[int64]decimal.Decimal, error) {
	if len(ids) == 0 {
		return map[int64]decimal.Decimal{}, nil
	}
	rows, err := s.pool.Query(ctx, netForAccountsSQL, scope.BranchID, scope.FromBound(), scope.ToExclusive(), ids)
	if err != nil {
		return nil, fmt.Errorf("balances: net for accounts: %w", err)
	}
	return collectNets(rows)
}

func collectNets(rows pgx.Rows) (map[int64]decimal.Decimal, error) {
	defer rows.Close()
	out := map[int64]decimal.Decimal{}
	for rows.Next() {
		var (
			id  int64
			net decimal.Decimal
		)
		if err := rows.Scan(&id, &net); err != nil {
			return nil, err
		}
		out[id] = net
	}
	return out, rows.Err()
}

// Movements returns opening and period activity per account.
func (s *PgStore) Movements(ctx context.Context, branchID *int64, from, to *time.Time) (map[int64]Movement, error) {
	scope := shared.Scope{BranchID: branchID, From: from, To: to}
	rows, err := s.pool.Query(ctx, movementsSQL, scope.BranchID, scope.FromBound(), scope.ToExclusive())
	if err != nil {
		return nil, fmt.Errorf("balances: movements: %w", err)
	}
	defer rows.Close()
	out := map[int64]Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.AccountID, &m.OpeningDebit, &m.OpeningCredit, &m.PeriodDebit, &m.PeriodCredit); err != nil {
			return nil, err
		}
		out[m.AccountID] = m
	}
	return out, rows.Err()
}

// AccountIDsAfter pages live account ids visible to a branch.
func (s *PgStore) AccountIDsAfter(ctx context.Context, branchID *int64, after int64, limit int) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM accounts
WHERE deleted_at IS NULL AND ($1::bigint IS NULL OR branch_id IS NULL OR branch_id = $1) AND id > $2
ORDER BY id LIMIT $3`, branchID, after, limit)
	if err != nil {
		return nil, fmt.Errorf("balances: page accounts: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

// AccountBranch reports the owning branch of a live account.
func (s *PgStore) AccountBranch(ctx context.Context, id int64) (*int64, bool, error) {
	return s.owner(ctx, `SELECT branch_id FROM accounts WHERE id = $1 AND deleted_at IS NULL`, id)
}

// GroupBranch reports the owning branch of a live group.
func (s *PgStore) GroupBranch(ctx context.Context, id int64) (*int64, bool, error) {
	return s.owner(ctx, `SELECT branch_id FROM account_groups WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (s *PgStore) owner(ctx context.Context, query string, id int64) (*int64, bool, error) {
	var branchID *int64
	err := s.pool.QueryRow(ctx, query, id).Scan(&branchID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return branchID, true, nil
}
