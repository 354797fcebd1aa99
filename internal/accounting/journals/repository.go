package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
	"github.com/odyssey-erp/ledger-core/internal/platform/db"
)

// Repository persists transactions and entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes ledger writes inside one database transaction.
type TxRepository interface {
	AccountsForPosting(ctx context.Context, ids []int64) (map[int64]AccountRef, error)
	AccountIDByRole(ctx context.Context, branchID *int64, role string) (int64, bool, error)
	NextVoucherNumber(ctx context.Context, branchID *int64, prefix string) (string, error)
	InsertTransaction(ctx context.Context, t Transaction) (Transaction, error)
	InsertEntries(ctx context.Context, transactionID int64, entries []EntryInput) ([]Entry, error)
	GetTransaction(ctx context.Context, id int64, forUpdate bool) (Transaction, error)
	HasReversal(ctx context.Context, id int64) (bool, error)
	UpdateStatus(ctx context.Context, id int64, status Status, remark string, postedBy *int64, postedAt *time.Time) error
}

const transactionColumns = `id, branch_id, type, status, date, voucher_number, reference, narration, remark, total_amount,
source_module, source_id, reversal_of, created_by, posted_by, posted_at, created_at, updated_at, deleted_at`

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("journals repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// Get loads a transaction with its entries.
func (r *Repository) Get(ctx context.Context, id int64) (Transaction, error) {
	var out Transaction
	err := r.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.GetTransaction(ctx, id, false)
		return err
	})
	return out, err
}

// List returns transaction headers newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Transaction, error) {
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
WHERE deleted_at IS NULL
  AND ($1::bigint IS NULL OR branch_id = $1)
  AND ($2 = '' OR status = $2)
  AND ($3::timestamptz IS NULL OR date >= $3)
  AND ($4::timestamptz IS NULL OR date < $4)
ORDER BY date DESC, id DESC LIMIT $5`,
		f.BranchID, string(f.Status), shared.Scope{From: f.From}.FromBound(), shared.Scope{To: f.To}.ToExclusive(), limit)
	if err != nil {
		return nil, fmt.Errorf("journals: list: %w", err)
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// FindUnbalanced lists posted transactions whose live entries do not balance.
func (r *Repository) FindUnbalanced(ctx context.Context, branchID *int64, limit int) ([]Imbalance, error) {
	rows, err := r.pool.Query(ctx, `SELECT t.id, t.branch_id, t.voucher_number, COALESCE(SUM(e.debit), 0), COALESCE(SUM(e.credit), 0)
FROM transactions t
LEFT JOIN transaction_entries e ON e.transaction_id = t.id AND e.deleted_at IS NULL
WHERE t.status = 'posted' AND t.deleted_at IS NULL AND ($1::bigint IS NULL OR t.branch_id = $1)
GROUP BY t.id, t.branch_id, t.voucher_number
HAVING COALESCE(SUM(e.debit), 0) <> COALESCE(SUM(e.credit), 0) OR COUNT(e.id) < 2
ORDER BY t.id LIMIT $2`, branchID, limit)
	if err != nil {
		return nil, fmt.Errorf("journals: find unbalanced: %w", err)
	}
	defer rows.Close()
	var out []Imbalance
	for rows.Next() {
		var im Imbalance
		if err := rows.Scan(&im.TransactionID, &im.BranchID, &im.VoucherNumber, &im.Debit, &im.Credit); err != nil {
			return nil, err
		}
		out = append(out, im)
	}
	return out, rows.Err()
}

// AccountEntries lists posted entries of an account ordered by date, posting
// sequence and entry id. Voucher text is not an order key: JV10000 sorts
// before JV9999.
func (r *Repository) AccountEntries(ctx context.Context, accountID int64, scope shared.Scope) ([]AccountEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.id, t.id, t.date, t.voucher_number, t.type, t.narration, e.description, e.debit, e.credit
FROM transaction_entries e
JOIN transactions t ON t.id = e.transaction_id
WHERE e.account_id = $1 AND e.deleted_at IS NULL AND t.deleted_at IS NULL AND t.status = 'posted'
  AND ($2::bigint IS NULL OR t.branch_id = $2)
  AND ($3::timestamptz IS NULL OR t.date >= $3)
  AND ($4::timestamptz IS NULL OR t.date < $4)
ORDER BY t.date, t.id, e.id`,
		accountID, scope.BranchID, scope.FromBound(), scope.ToExclusive())
	if err != nil {
		return nil, fmt.Errorf("journals: account entries: %w", err)
	}
	defer rows.Close()
	var out []AccountEntry
	for rows.Next() {
		var e AccountEntry
		if err := rows.Scan(&e.EntryID, &e.TransactionID, &e.Date, &e.VoucherNumber, &e.Type, &e.Narration,
			&e.Description, &e.Debit, &e.Credit); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DraftSummary counts draft entries for an account in a window.
func (r *Repository) DraftSummary(ctx context.Context, accountID int64, scope shared.Scope) (DraftSummary, error) {
	var out DraftSummary
	err := r.pool.QueryRow(ctx, `SELECT COUNT(e.id), COALESCE(SUM(e.debit), 0), COALESCE(SUM(e.credit), 0)
FROM transaction_entries e
JOIN transactions t ON t.id = e.transaction_id
WHERE e.account_id = $1 AND e.deleted_at IS NULL AND t.deleted_at IS NULL AND t.status = 'draft'
  AND ($2::bigint IS NULL OR t.branch_id = $2)
  AND ($3::timestamptz IS NULL OR t.date >= $3)
  AND ($4::timestamptz IS NULL OR t.date < $4)`,
		accountID, scope.BranchID, scope.FromBound(), scope.ToExclusive()).Scan(&out.Count, &out.Debit, &out.Credit)
	if err != nil {
		return DraftSummary{}, fmt.Errorf("journals: draft summary: %w", err)
	}
	return out, nil
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) AccountsForPosting(ctx context.Context, ids []int64) (map[int64]AccountRef, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, branch_id, code FROM accounts
WHERE id = ANY($1) AND deleted_at IS NULL FOR SHARE`, ids)
	if err != nil {
		return nil, fmt.Errorf("journals: load accounts: %w", err)
	}
	defer rows.Close()
	out := make(map[int64]AccountRef, len(ids))
	for rows.Next() {
		var a AccountRef
		if err := rows.Scan(&a.ID, &a.BranchID, &a.Code); err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

// AccountIDByRole prefers a branch-owned account over a global one.
func (r *txRepository) AccountIDByRole(ctx context.Context, branchID *int64, role string) (int64, bool, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM accounts
WHERE system_role = $2 AND deleted_at IS NULL AND (branch_id IS NULL OR branch_id = $1)
ORDER BY branch_id NULLS LAST, code LIMIT 1`, branchID, role).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (r *txRepository) NextVoucherNumber(ctx context.Context, branchID *int64, prefix string) (string, error) {
	var key int64
	if branchID != nil {
		key = *branchID
	}
	var seq int64
	err := r.tx.QueryRow(ctx, `INSERT INTO voucher_sequences (branch_key, prefix, last_value) VALUES ($1, $2, 1)
ON CONFLICT (branch_key, prefix) DO UPDATE SET last_value = voucher_sequences.last_value + 1
RETURNING last_value`, key, prefix).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("journals: allocate voucher: %w", err)
	}
	return FormatVoucher(prefix, seq), nil
}

func (r *txRepository) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO transactions (branch_id, type, status, date, voucher_number, reference, narration, remark,
total_amount, source_module, source_id, reversal_of, created_by, posted_by, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15) RETURNING id, created_at, updated_at`,
		t.BranchID, t.Type, t.Status, t.Date, t.VoucherNumber, t.Reference, t.Narration, t.Remark,
		t.TotalAmount, t.SourceModule, t.SourceID, t.ReversalOf, t.CreatedBy, t.PostedBy, t.PostedAt).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		switch {
		case db.IsUniqueViolation(err, "uq_transactions_source"):
			return Transaction{}, shared.InvalidBecause("source_id", shared.ErrSourceAlreadyLinked)
		case db.IsUniqueViolation(err, "uq_transactions_voucher"):
			return Transaction{}, shared.Invalid("voucher_number", "already issued in this branch")
		}
		return Transaction{}, fmt.Errorf("journals: insert transaction: %w", err)
	}
	return t, nil
}

// InsertEntries writes every entry in a single batched round trip.
func (r *txRepository) InsertEntries(ctx context.Context, transactionID int64, entries []EntryInput) ([]Entry, error) {
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`INSERT INTO transaction_entries (transaction_id, account_id, debit, credit, description)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at`, transactionID, e.AccountID, e.Debit, e.Credit, e.Description)
	}
	results := r.tx.SendBatch(ctx, batch)
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		entry := Entry{TransactionID: transactionID, AccountID: e.AccountID, Debit: e.Debit, Credit: e.Credit, Description: e.Description}
		if err := results.QueryRow().Scan(&entry.ID, &entry.CreatedAt); err != nil {
			_ = results.Close()
			if db.IsCheckViolation(err) {
				return nil, shared.Invalid("entries", "entry violates the debit/credit rule")
			}
			return nil, fmt.Errorf("journals: insert entry: %w", err)
		}
		out = append(out, entry)
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("journals: close entry batch: %w", err)
	}
	return out, nil
}

func (r *txRepository) GetTransaction(ctx context.Context, id int64, forUpdate bool) (Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id=$1 AND deleted_at IS NULL`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	t, err := scanTransaction(r.tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, shared.NotFound("transaction", id)
		}
		return Transaction{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT id, transaction_id, account_id, debit, credit, description, created_at, deleted_at
FROM transaction_entries WHERE transaction_id=$1 AND deleted_at IS NULL ORDER BY id`, id)
	if err != nil {
		return Transaction{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.Debit, &e.Credit, &e.Description, &e.CreatedAt, &e.DeletedAt); err != nil {
			return Transaction{}, err
		}
		t.Entries = append(t.Entries, e)
	}
	return t, rows.Err()
}

func (r *txRepository) HasReversal(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions
WHERE reversal_of=$1 AND status <> 'cancelled' AND deleted_at IS NULL)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status Status, remark string, postedBy *int64, postedAt *time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE transactions
SET status=$2, remark=CASE WHEN $3 = '' THEN remark ELSE $3 END,
    posted_by=COALESCE($4, posted_by), posted_at=COALESCE($5, posted_at), updated_at=NOW()
WHERE id=$1 AND deleted_at IS NULL`, id, status, remark, postedBy, postedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("transaction", id)
	}
	return nil
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.BranchID, &t.Type, &t.Status, &t.Date, &t.VoucherNumber, &t.Reference, &t.Narration, &t.Remark,
		&t.TotalAmount, &t.SourceModule, &t.SourceID, &t.ReversalOf, &t.CreatedBy, &t.PostedBy, &t.PostedAt,
		&t.CreatedAt, &t.UpdatedAt, &t.DeletedAt)
	return t, err
}
