package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledger-core/internal/shared"
)

// BranchSource lists the live branches a scan visits.
type BranchSource interface {
	BranchIDs(ctx context.Context) ([]int64, error)
}

// PgBranches reads branch ids from Postgres.
type PgBranches struct {
	pool *pgxpool.Pool
}

// NewPgBranches constructs a BranchSource over pool.
func NewPgBranches(pool *pgxpool.Pool) *PgBranches {
	return &PgBranches{pool: pool}
}

// BranchIDs implements BranchSource.
func (b *PgBranches) BranchIDs(ctx context.Context) ([]int64, error) {
	rows, err := b.pool.Query(ctx, `SELECT id FROM branches WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// StaticBranches is a fixed BranchSource.
type StaticBranches []int64

// BranchIDs implements BranchSource.
func (s StaticBranches) BranchIDs(context.Context) ([]int64, error) { return s, nil }

// scopes expands a payload into the branch scopes to visit. A nil branch
// means every branch plus the unscoped view.
func scopes(ctx context.Context, src BranchSource, branchID *int64) ([]*int64, error) {
	if branchID != nil {
		return []*int64{branchID}, nil
	}
	out := []*int64{nil}
	if src == nil {
		return out, nil
	}
	ids, err := src.BranchIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	for i := range ids {
		out = append(out, &ids[i])
	}
	return out, nil
}

// Locker obtains single-runner locks.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// errLocked reports that another worker holds the scope lock.
var errLocked = errors.New("jobs: scope locked by another runner")

// withLock runs fn while holding the lock for job and branchID. A nil locker
// runs fn unguarded.
func withLock(ctx context.Context, locker Locker, logger *slog.Logger, job string, branchID *int64, ttl time.Duration, fn func(context.Context) error) error {
	if locker == nil {
		return fn(ctx)
	}
	key := shared.LedgerLockKey(job, branchID)
	lock, err := locker.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return errLocked
	}
	if err != nil {
		return fmt.Errorf("obtain %s: %w", key, err)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.Warn("release lock", slog.String("key", key), slog.Any("error", err))
		}
	}()
	return fn(ctx)
}
