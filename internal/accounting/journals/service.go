package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
	"github.com/odyssey-erp/ledger-core/internal/platform/db"
	internalShared "github.com/odyssey-erp/ledger-core/internal/shared"
)

// RepositoryPort abstracts transactional persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Invalidator is told when posted balances of a branch changed.
type Invalidator interface {
	Invalidate(ctx context.Context, branchID *int64) error
}

// Recorder counts posting outcomes.
type Recorder interface {
	ObservePosting(txType, outcome string)
}

// Options tunes posting behaviour.
type Options struct {
	MaxAttempts       int
	Backoff           time.Duration
	RoundingTolerance decimal.Decimal
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{MaxAttempts: 3, Backoff: 20 * time.Millisecond, RoundingTolerance: decimal.NewFromInt(1)}
}

// Service coordinates posting and the transaction lifecycle.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	invalidator Invalidator
	recorder    Recorder
	logger      *slog.Logger
	opts        Options
	now         func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, audit AuditPort, opts Options) *Service {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Service{repo: repo, audit: audit, opts: opts, logger: slog.Default(), now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithInvalidator registers a hook run after balances change.
func (s *Service) WithInvalidator(inv Invalidator) { s.invalidator = inv }

// WithLogger replaces the default logger.
func (s *Service) WithLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// WithRecorder registers a posting metrics sink.
func (s *Service) WithRecorder(rec Recorder) { s.recorder = rec }

// PostTransaction validates and persists a posted transaction atomically.
func (s *Service) PostTransaction(ctx context.Context, in PostingInput) (Transaction, error) {
	t, err := s.create(ctx, in, StatusPosted)
	s.observe(in.Type, err)
	if err != nil {
		return Transaction{}, err
	}
	s.record(ctx, in.ActorID, "transaction.post", t.ID, t.BranchID, map[string]any{
		"voucher_number": t.VoucherNumber,
		"total_amount":   t.TotalAmount.String(),
	})
	s.invalidate(ctx, t.BranchID)
	return t, nil
}

// CreateDraft stores a balanced transaction that does not affect balances yet.
func (s *Service) CreateDraft(ctx context.Context, in PostingInput) (Transaction, error) {
	t, err := s.create(ctx, in, StatusDraft)
	if err != nil {
		return Transaction{}, err
	}
	s.record(ctx, in.ActorID, "transaction.draft", t.ID, t.BranchID, map[string]any{"voucher_number": t.VoucherNumber})
	return t, nil
}

func (s *Service) create(ctx context.Context, in PostingInput, status Status) (Transaction, error) {
	imbalance, err := in.Validate(s.opts.RoundingTolerance)
	if err != nil {
		return Transaction{}, err
	}
	var out Transaction
	err = s.withRetry(ctx, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			entries := in.Entries
			if !imbalance.IsZero() {
				roundID, ok, err := tx.AccountIDByRole(ctx, in.BranchID, string(accounts.RoleRoundingOff))
				if err != nil {
					return err
				}
				if !ok {
					return shared.Misconfigured(string(accounts.RoleRoundingOff), shared.BranchToken(in.BranchID), "no rounding account to absorb the difference")
				}
				entries = append(append([]EntryInput(nil), in.Entries...), balancingEntry(roundID, imbalance, "Rounding off"))
			}
			t, err := s.insert(ctx, tx, in, entries, status, nil)
			if err != nil {
				return err
			}
			out = t
			return nil
		})
	})
	return out, err
}

// insert runs the shared write path: account checks, voucher, header, entries.
func (s *Service) insert(ctx context.Context, tx TxRepository, in PostingInput, entries []EntryInput, status Status, reversalOf *int64) (Transaction, error) {
	if err := checkAccounts(ctx, tx, in.BranchID, entries); err != nil {
		return Transaction{}, err
	}
	voucher, err := tx.NextVoucherNumber(ctx, in.BranchID, in.Type.VoucherPrefix())
	if err != nil {
		return Transaction{}, err
	}
	var total decimal.Decimal
	for _, e := range entries {
		total = total.Add(e.Debit)
	}
	t := Transaction{
		BranchID:      in.BranchID,
		Type:          in.Type,
		Status:        status,
		Date:          in.Date,
		VoucherNumber: voucher,
		Reference:     in.Reference,
		Narration:     in.Narration,
		TotalAmount:   total,
		SourceID:      in.SourceID,
		ReversalOf:    reversalOf,
		CreatedBy:     actorPtr(in.ActorID),
	}
	if in.SourceModule != "" {
		module := in.SourceModule
		t.SourceModule = &module
	}
	if status == StatusPosted {
		now := s.now()
		t.PostedAt = &now
		t.PostedBy = actorPtr(in.ActorID)
	}
	inserted, err := tx.InsertTransaction(ctx, t)
	if err != nil {
		return Transaction{}, err
	}
	inserted.Entries, err = tx.InsertEntries(ctx, inserted.ID, entries)
	if err != nil {
		return Transaction{}, err
	}
	return inserted, nil
}

// checkAccounts requires every account to exist and to belong to the
// transaction's branch or to the global chart.
func checkAccounts(ctx context.Context, tx TxRepository, branchID *int64, entries []EntryInput) error {
	ids := make([]int64, 0, len(entries))
	seen := map[int64]bool{}
	for _, e := range entries {
		if !seen[e.AccountID] {
			seen[e.AccountID] = true
			ids = append(ids, e.AccountID)
		}
	}
	refs, err := tx.AccountsForPosting(ctx, ids)
	if err != nil {
		return err
	}
	for idx, e := range entries {
		ref, ok := refs[e.AccountID]
		if !ok {
			return shared.Invalid(fmt.Sprintf("entries[%d].account_id", idx), "account does not exist")
		}
		if ref.BranchID != nil && (branchID == nil || *ref.BranchID != *branchID) {
			return shared.Misconfigured("", shared.BranchToken(branchID), fmt.Sprintf("account %s is outside the branch scope", ref.Code))
		}
	}
	return nil
}

// Submit sends a draft for approval.
func (s *Service) Submit(ctx context.Context, in StatusChange) (Transaction, error) {
	return s.transition(ctx, in, StatusPendingApproval, "transaction.submit")
}

// Approve accepts a pending transaction.
func (s *Service) Approve(ctx context.Context, in StatusChange) (Transaction, error) {
	return s.transition(ctx, in, StatusApproved, "transaction.approve")
}

// Reject declines a pending transaction.
func (s *Service) Reject(ctx context.Context, in StatusChange) (Transaction, error) {
	return s.transition(ctx, in, StatusRejected, "transaction.reject")
}

// Post moves a draft or approved transaction into the ledger.
func (s *Service) Post(ctx context.Context, in StatusChange) (Transaction, error) {
	t, err := s.transition(ctx, in, StatusPosted, "transaction.post")
	s.observe(t.Type, err)
	if err == nil {
		s.invalidate(ctx, t.BranchID)
	}
	return t, err
}

// CancelTransaction marks a transaction cancelled. It returns false without
// error when the transaction was already cancelled. A posted transaction with
// a live reversal is refused until the reversal is cancelled.
func (s *Service) CancelTransaction(ctx context.Context, in StatusChange) (bool, error) {
	var (
		changed   bool
		wasPosted bool
		branchID  *int64
	)
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			current, err := tx.GetTransaction(ctx, in.TransactionID, true)
			if err != nil {
				return err
			}
			branchID = current.BranchID
			if current.Status == StatusCancelled {
				changed = false
				return nil
			}
			wasPosted = current.Status == StatusPosted
			if wasPosted {
				reversed, err := tx.HasReversal(ctx, current.ID)
				if err != nil {
					return err
				}
				if reversed {
					return &shared.ValidationError{Field: "id", Reason: "transaction has a live reversal; cancel the reversal first", Err: shared.ErrInvalidStatus}
				}
			}
			remark := "Cancelled"
			if in.Reason != "" {
				remark = "Cancelled: " + in.Reason
			}
			if err := tx.UpdateStatus(ctx, current.ID, StatusCancelled, remark, nil, nil); err != nil {
				return err
			}
			changed = true
			return nil
		})
	})
	if err != nil || !changed {
		return false, err
	}
	s.record(ctx, in.ActorID, "transaction.cancel", in.TransactionID, branchID, map[string]any{"reason": in.Reason})
	if wasPosted {
		s.invalidate(ctx, branchID)
	}
	return true, nil
}

func (s *Service) transition(ctx context.Context, in StatusChange, next Status, action string) (Transaction, error) {
	if in.TransactionID == 0 {
		return Transaction{}, shared.Invalid("id", "required")
	}
	var out Transaction
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			current, err := tx.GetTransaction(ctx, in.TransactionID, true)
			if err != nil {
				return err
			}
			if !current.Status.CanTransition(next) {
				return &shared.ValidationError{
					Field:  "status",
					Reason: fmt.Sprintf("cannot move from %s to %s", current.Status, next),
					Err:    shared.ErrInvalidStatus,
				}
			}
			var (
				postedBy *int64
				postedAt *time.Time
				remark   string
			)
			if next == StatusPosted {
				debit, credit := Totals(current.Entries)
				if len(current.Entries) < 2 {
					return shared.InvalidBecause("entries", shared.ErrTooFewEntries)
				}
				if !debit.Equal(credit) {
					return shared.InvalidBecause("entries", shared.ErrUnbalanced)
				}
				now := s.now()
				postedAt, postedBy = &now, actorPtr(in.ActorID)
				current.PostedAt, current.PostedBy = postedAt, postedBy
			}
			if next == StatusRejected && in.Reason != "" {
				remark = "Rejected: " + in.Reason
				current.Remark = remark
			}
			if err := tx.UpdateStatus(ctx, current.ID, next, remark, postedBy, postedAt); err != nil {
				return err
			}
			current.Status = next
			out = current
			return nil
		})
	})
	if err != nil {
		return Transaction{}, err
	}
	s.record(ctx, in.ActorID, action, out.ID, out.BranchID, map[string]any{"status": string(next), "reason": in.Reason})
	return out, nil
}

// Reverse posts a new transaction with every entry side swapped.
func (s *Service) Reverse(ctx context.Context, in ReverseInput) (Transaction, error) {
	if in.TransactionID == 0 {
		return Transaction{}, shared.Invalid("id", "required")
	}
	var reversal Transaction
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			original, err := tx.GetTransaction(ctx, in.TransactionID, true)
			if err != nil {
				return err
			}
			if original.Status != StatusPosted {
				return &shared.ValidationError{Field: "status", Reason: "only posted transactions can be reversed", Err: shared.ErrInvalidStatus}
			}
			reversed, err := tx.HasReversal(ctx, original.ID)
			if err != nil {
				return err
			}
			if reversed {
				return shared.Invalid("id", "transaction already reversed")
			}
			date := original.Date
			if in.Date != nil {
				date = *in.Date
			}
			narration := in.Narration
			if narration == "" {
				narration = "Reversal of " + original.VoucherNumber
			}
			posting := PostingInput{
				BranchID:  original.BranchID,
				Type:      original.Type,
				Date:      date,
				Reference: original.VoucherNumber,
				Narration: narration,
				Entries:   reverseEntries(original.Entries),
				ActorID:   in.ActorID,
			}
			reversal, err = s.insert(ctx, tx, posting, posting.Entries, StatusPosted, &original.ID)
			return err
		})
	})
	if err != nil {
		return Transaction{}, err
	}
	s.observe(reversal.Type, nil)
	s.record(ctx, in.ActorID, "transaction.reverse", in.TransactionID, reversal.BranchID, map[string]any{
		"reversal_id":      reversal.ID,
		"reversal_voucher": reversal.VoucherNumber,
	})
	s.invalidate(ctx, reversal.BranchID)
	return reversal, nil
}

// PostOpeningBalances posts opening positions, offsetting any difference to
// the opening-balance adjustment account.
func (s *Service) PostOpeningBalances(ctx context.Context, in OpeningBalanceInput) (Transaction, error) {
	if len(in.Lines) == 0 {
		return Transaction{}, shared.Invalid("lines", "at least one opening line is required")
	}
	entries := make([]EntryInput, 0, len(in.Lines)+1)
	var diff decimal.Decimal
	for idx, l := range in.Lines {
		e := EntryInput{AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit, Description: "Opening balance"}
		if err := e.validate(idx); err != nil {
			return Transaction{}, err
		}
		diff = diff.Add(l.Debit).Sub(l.Credit)
		entries = append(entries, e)
	}
	var out Transaction
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			all := entries
			if !diff.IsZero() {
				adjID, ok, err := tx.AccountIDByRole(ctx, in.BranchID, string(accounts.RoleOpeningBalanceAdjustment))
				if err != nil {
					return err
				}
				if !ok {
					return shared.Misconfigured(string(accounts.RoleOpeningBalanceAdjustment), shared.BranchToken(in.BranchID), "no account to offset opening differences")
				}
				all = append(append([]EntryInput(nil), entries...), balancingEntry(adjID, diff, "Opening balance difference"))
			}
			if len(all) < 2 {
				return shared.InvalidBecause("lines", shared.ErrTooFewEntries)
			}
			posting := PostingInput{
				BranchID:  in.BranchID,
				Type:      TypeOpeningBalance,
				Date:      in.Date,
				Narration: "Opening balances",
				ActorID:   in.ActorID,
			}
			t, err := s.insert(ctx, tx, posting, all, StatusPosted, nil)
			out = t
			return err
		})
	})
	s.observe(TypeOpeningBalance, err)
	if err != nil {
		return Transaction{}, err
	}
	s.record(ctx, in.ActorID, "transaction.opening_balance", out.ID, out.BranchID, map[string]any{"difference": diff.String()})
	s.invalidate(ctx, out.BranchID)
	return out, nil
}

// Get loads one transaction with its entries.
func (s *Service) Get(ctx context.Context, id int64) (Transaction, error) {
	var out Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.GetTransaction(ctx, id, false)
		return err
	})
	return out, err
}

func (s *Service) withRetry(ctx context.Context, fn func(context.Context) error) error {
	err := db.Retry(ctx, s.opts.MaxAttempts, s.opts.Backoff, fn)
	var exhausted *db.RetryExhaustedError
	if errors.As(err, &exhausted) {
		return &shared.ConcurrencyError{Attempts: exhausted.Attempts, Err: exhausted.Err}
	}
	return err
}

func reverseEntries(entries []Entry) []EntryInput {
	out := make([]EntryInput, 0, len(entries))
	for _, e := range entries {
		out = append(out, EntryInput{
			AccountID:   e.AccountID,
			Debit:       e.Credit,
			Credit:      e.Debit,
			Description: e.Description,
		})
	}
	return out
}

func actorPtr(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func (s *Service) observe(t Type, err error) {
	if s.recorder == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrValidation):
		outcome = "rejected"
	case errors.Is(err, shared.ErrConfiguration):
		outcome = "misconfigured"
	case errors.Is(err, shared.ErrConcurrency):
		outcome = "conflict"
	default:
		outcome = "error"
	}
	s.recorder.ObservePosting(string(t), outcome)
}

func (s *Service) invalidate(ctx context.Context, branchID *int64) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, branchID); err != nil {
		s.logger.Warn("report cache invalidation failed",
			slog.String("branch", shared.BranchToken(branchID)),
			slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, branchID *int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "transaction",
		EntityID: fmt.Sprintf("%d", id),
		BranchID: branchID,
		Meta:     meta,
		At:       s.now(),
	})
}
