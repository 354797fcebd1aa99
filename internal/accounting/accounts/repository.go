package accounts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
	"github.com/odyssey-erp/ledger-core/internal/platform/db"
)

// Repository persists the chart of accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes chart mutations inside one database transaction.
type TxRepository interface {
	GetGroup(ctx context.Context, id int64, forUpdate bool) (Group, error)
	GetAccount(ctx context.Context, id int64, forUpdate bool) (Account, error)
	GroupCodeTaken(ctx context.Context, branchID *int64, code string) (bool, error)
	AccountCodeTaken(ctx context.Context, branchID *int64, code string) (bool, error)
	InsertGroup(ctx context.Context, in CreateGroupInput, parent *Group) (Group, error)
	InsertAccount(ctx context.Context, in CreateAccountInput) (Account, error)
	UpdateGroupText(ctx context.Context, id int64, name, description string) error
	UpdateAccount(ctx context.Context, a Account) error
	MoveSubtree(ctx context.Context, g Group, parent *Group) error
	CountDependents(ctx context.Context, groupID int64) (groups, accounts int, err error)
	AccountHasEntries(ctx context.Context, id int64) (bool, error)
	SoftDeleteGroup(ctx context.Context, id int64, at time.Time) error
	SoftDeleteAccount(ctx context.Context, id int64, at time.Time) error
}

const groupColumns = `id, branch_id, parent_id, code, name, nature, main_group, COALESCE(system_role, ''), locked,
description, depth, path, created_at, updated_at, deleted_at`

const accountColumns = `id, branch_id, group_id, code, name, alias_name, ledger_type, credit_limit, credit_days,
COALESCE(system_role, ''), locked, created_at, updated_at, deleted_at`

// branchFilter keeps rows of the branch plus global rows; a nil branch keeps everything.
const branchFilter = `($1::bigint IS NULL OR branch_id IS NULL OR branch_id = $1)`

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("accounts repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ListGroups returns live groups visible in the branch scope.
func (r *Repository) ListGroups(ctx context.Context, branchID *int64) ([]Group, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+groupColumns+` FROM account_groups
WHERE deleted_at IS NULL AND `+branchFilter+` ORDER BY depth, code`, branchID)
	if err != nil {
		return nil, fmt.Errorf("accounts: list groups: %w", err)
	}
	defer rows.Close()
	var out []Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ListAccounts returns live accounts visible in the branch scope.
func (r *Repository) ListAccounts(ctx context.Context, branchID *int64) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE deleted_at IS NULL AND `+branchFilter+` ORDER BY code`, branchID)
	if err != nil {
		return nil, fmt.Errorf("accounts: list accounts: %w", err)
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetGroup(ctx context.Context, id int64, forUpdate bool) (Group, error) {
	query := `SELECT ` + groupColumns + ` FROM account_groups WHERE id=$1 AND deleted_at IS NULL`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	g, err := scanGroup(r.tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Group{}, shared.NotFound("account_group", id)
	}
	return g, err
}

func (r *txRepository) GetAccount(ctx context.Context, id int64, forUpdate bool) (Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1 AND deleted_at IS NULL`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	a, err := scanAccount(r.tx.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, shared.NotFound("account", id)
	}
	return a, err
}

func (r *txRepository) GroupCodeTaken(ctx context.Context, branchID *int64, code string) (bool, error) {
	var taken bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM account_groups
WHERE COALESCE(branch_id, 0) = COALESCE($1::bigint, 0) AND code = $2 AND deleted_at IS NULL)`, branchID, code).Scan(&taken)
	return taken, err
}

func (r *txRepository) AccountCodeTaken(ctx context.Context, branchID *int64, code string) (bool, error) {
	var taken bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts
WHERE COALESCE(branch_id, 0) = COALESCE($1::bigint, 0) AND code = $2 AND deleted_at IS NULL)`, branchID, code).Scan(&taken)
	return taken, err
}

func (r *txRepository) InsertGroup(ctx context.Context, in CreateGroupInput, parent *Group) (Group, error) {
	g := Group{
		BranchID:    in.BranchID,
		ParentID:    in.ParentID,
		Code:        in.Code,
		Name:        in.Name,
		Nature:      in.Nature,
		MainGroup:   in.MainGroup,
		Role:        in.Role,
		Locked:      in.Locked,
		Description: in.Description,
	}
	prefix := "/"
	if parent != nil {
		g.Depth = parent.Depth + 1
		prefix = parent.Path
	}
	err := r.tx.QueryRow(ctx, `INSERT INTO account_groups (branch_id, parent_id, code, name, nature, main_group, system_role, locked, description, depth)
VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''),$8,$9,$10) RETURNING id, created_at, updated_at`,
		g.BranchID, g.ParentID, g.Code, g.Name, g.Nature, g.MainGroup, string(g.Role), g.Locked, g.Description, g.Depth).
		Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_account_groups_branch_code") {
			return Group{}, shared.Invalid("code", "already used in this branch")
		}
		return Group{}, fmt.Errorf("accounts: insert group: %w", err)
	}
	g.Path = prefix + strconv.FormatInt(g.ID, 10) + "/"
	if _, err := r.tx.Exec(ctx, `UPDATE account_groups SET path=$2 WHERE id=$1`, g.ID, g.Path); err != nil {
		return Group{}, fmt.Errorf("accounts: set group path: %w", err)
	}
	return g, nil
}

func (r *txRepository) InsertAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	a := Account{
		BranchID:    in.BranchID,
		GroupID:     in.GroupID,
		Code:        in.Code,
		Name:        in.Name,
		AliasName:   in.AliasName,
		LedgerType:  in.LedgerType,
		CreditLimit: in.CreditLimit,
		CreditDays:  in.CreditDays,
		Role:        in.Role,
		Locked:      in.Locked,
	}
	err := r.tx.QueryRow(ctx, `INSERT INTO accounts (branch_id, group_id, code, name, alias_name, ledger_type, credit_limit, credit_days, system_role, locked)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULLIF($9,''),$10) RETURNING id, created_at, updated_at`,
		a.BranchID, a.GroupID, a.Code, a.Name, a.AliasName, a.LedgerType, a.CreditLimit, a.CreditDays, string(a.Role), a.Locked).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_accounts_branch_code") {
			return Account{}, shared.Invalid("code", "already used in this branch")
		}
		return Account{}, fmt.Errorf("accounts: insert account: %w", err)
	}
	return a, nil
}

func (r *txRepository) UpdateGroupText(ctx context.Context, id int64, name, description string) error {
	_, err := r.tx.Exec(ctx, `UPDATE account_groups SET name=$2, description=$3, updated_at=NOW() WHERE id=$1`, id, name, description)
	return err
}

func (r *txRepository) UpdateAccount(ctx context.Context, a Account) error {
	_, err := r.tx.Exec(ctx, `UPDATE accounts
SET name=$2, alias_name=$3, group_id=$4, credit_limit=$5, credit_days=$6, updated_at=NOW()
WHERE id=$1 AND deleted_at IS NULL`, a.ID, a.Name, a.AliasName, a.GroupID, a.CreditLimit, a.CreditDays)
	if err != nil {
		return fmt.Errorf("accounts: update account: %w", err)
	}
	return nil
}

// MoveSubtree re-parents g and rewrites the path prefix and depth of the
// whole subtree in one statement.
func (r *txRepository) MoveSubtree(ctx context.Context, g Group, parent *Group) error {
	newPath := "/" + strconv.FormatInt(g.ID, 10) + "/"
	newDepth := 0
	var parentID *int64
	if parent != nil {
		newPath = parent.Path + strconv.FormatInt(g.ID, 10) + "/"
		newDepth = parent.Depth + 1
		parentID = &parent.ID
	}
	_, err := r.tx.Exec(ctx, `UPDATE account_groups
SET path = $2 || substr(path, length($1) + 1),
    depth = depth + $3,
    parent_id = CASE WHEN id = $4 THEN $5 ELSE parent_id END,
    updated_at = NOW()
WHERE path LIKE $1 || '%' AND deleted_at IS NULL`, g.Path, newPath, newDepth-g.Depth, g.ID, parentID)
	if err != nil {
		return fmt.Errorf("accounts: move subtree: %w", err)
	}
	return nil
}

func (r *txRepository) CountDependents(ctx context.Context, groupID int64) (int, int, error) {
	var groups, accts int
	err := r.tx.QueryRow(ctx, `SELECT
  (SELECT COUNT(*) FROM account_groups WHERE parent_id=$1 AND deleted_at IS NULL),
  (SELECT COUNT(*) FROM accounts WHERE group_id=$1 AND deleted_at IS NULL)`, groupID).Scan(&groups, &accts)
	return groups, accts, err
}

func (r *txRepository) AccountHasEntries(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transaction_entries WHERE account_id=$1 AND deleted_at IS NULL)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) SoftDeleteGroup(ctx context.Context, id int64, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE account_groups SET deleted_at=$2, updated_at=$2 WHERE id=$1 AND deleted_at IS NULL`, id, at)
	return err
}

func (r *txRepository) SoftDeleteAccount(ctx context.Context, id int64, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE accounts SET deleted_at=$2, updated_at=$2 WHERE id=$1 AND deleted_at IS NULL`, id, at)
	return err
}

func scanGroup(row pgx.Row) (Group, error) {
	var g Group
	err := row.Scan(&g.ID, &g.BranchID, &g.ParentID, &g.Code, &g.Name, &g.Nature, &g.MainGroup, &g.Role, &g.Locked,
		&g.Description, &g.Depth, &g.Path, &g.CreatedAt, &g.UpdatedAt, &g.DeletedAt)
	return g, err
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.BranchID, &a.GroupID, &a.Code, &a.Name, &a.AliasName, &a.LedgerType, &a.CreditLimit, &a.CreditDays,
		&a.Role, &a.Locked, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt)
	return a, err
}
