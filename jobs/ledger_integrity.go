package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/balances"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journals"
	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/ledger-core/internal/jobs"
)

// Integrity check names, used as the anomaly metric label.
const (
	CheckUnbalancedTransaction = "unbalanced_transaction"
	CheckTrialBalance          = "trial_balance"
	CheckRollup                = "rollup"
	CheckBulkRecompute         = "bulk_recompute"
)

const defaultImbalanceLimit = 100

// UnbalancedFinder lists posted transactions whose entries do not balance.
type UnbalancedFinder interface {
	FindUnbalanced(ctx context.Context, branchID *int64, limit int) ([]journals.Imbalance, error)
}

// BalanceSource is the aggregator surface the scan reads.
type BalanceSource interface {
	Snapshot(ctx context.Context, scope shared.Scope) (*balances.Snapshot, error)
	BulkBalances(ctx context.Context, scope shared.Scope, batchSize int, fn func([]balances.AccountBalance) error) error
}

// Anomaly is one broken identity found by the scan.
type Anomaly struct {
	Check    string          `json:"check"`
	BranchID *int64          `json:"branch_id,omitempty"`
	Subject  string          `json:"subject"`
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
}

// LedgerIntegrityJob verifies that posted transactions balance, that the
// trial balance nets to zero and that group totals equal their accounts.
type LedgerIntegrityJob struct {
	Ledger   UnbalancedFinder
	Balances BalanceSource
	Branches BranchSource
	Locker   Locker
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	LockTTL  time.Duration
	clock    func() time.Time
}

// NewLedgerIntegrityJob wires the integrity scan.
func NewLedgerIntegrityJob(ledger UnbalancedFinder, bal BalanceSource, branches BranchSource, locker Locker, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{
		Ledger:   ledger,
		Balances: bal,
		Branches: branches,
		Locker:   locker,
		Logger:   logger,
		Metrics:  metrics,
		LockTTL:  10 * time.Minute,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskLedgerIntegrity tasks.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload IntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run scans every requested scope and returns the anomalies found. Scopes
// locked by another runner are skipped.
func (j *LedgerIntegrityJob) Run(ctx context.Context, payload IntegrityPayload) ([]Anomaly, error) {
	if payload.Limit <= 0 {
		payload.Limit = defaultImbalanceLimit
	}
	tracker := j.metrics().Track(TaskLedgerIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := j.now()
	targets, err := scopes(ctx, j.Branches, payload.BranchID)
	if err != nil {
		resultErr = err
		return nil, resultErr
	}

	var found []Anomaly
	scanned := 0
	for _, branchID := range targets {
		err := withLock(ctx, j.Locker, logger, "integrity", branchID, j.LockTTL, func(ctx context.Context) error {
			anomalies, err := j.scan(ctx, branchID, payload.Limit)
			if err != nil {
				return err
			}
			if len(anomalies) == 0 {
				j.metrics().MarkClean(TaskLedgerIntegrity, branchID, j.now())
			}
			found = append(found, anomalies...)
			return nil
		})
		if errors.Is(err, errLocked) {
			j.metrics().SkipScope(TaskLedgerIntegrity, branchID)
			logger.Info("scope locked, skipping", slog.String("branch", shared.BranchToken(branchID)))
			continue
		}
		if err != nil {
			resultErr = fmt.Errorf("scan branch %s: %w", shared.BranchToken(branchID), err)
			logger.Error("integrity scan failed", slog.Any("error", resultErr))
			return found, resultErr
		}
		scanned++
	}

	for _, a := range found {
		logger.Warn("ledger anomaly detected",
			slog.String("check", a.Check),
			slog.String("branch", shared.BranchToken(a.BranchID)),
			slog.String("subject", a.Subject),
			slog.String("expected", a.Expected.String()),
			slog.String("actual", a.Actual.String()),
		)
		j.metrics().AddAnomalies(a.Check, a.BranchID, 1)
	}
	logger.Info("completed integrity scan",
		slog.Int("scopes", scanned),
		slog.Int("anomalies", len(found)),
		slog.Duration("duration", time.Since(start)),
	)
	return found, resultErr
}

func (j *LedgerIntegrityJob) scan(ctx context.Context, branchID *int64, limit int) ([]Anomaly, error) {
	var out []Anomaly

	unbalanced, err := j.Ledger.FindUnbalanced(ctx, branchID, limit)
	if err != nil {
		return nil, err
	}
	for _, u := range unbalanced {
		out = append(out, Anomaly{
			Check:    CheckUnbalancedTransaction,
			BranchID: u.BranchID,
			Subject:  u.VoucherNumber,
			Expected: u.Debit,
			Actual:   u.Credit,
		})
	}

	today := shared.StartOfDay(j.now())
	scope := shared.Scope{BranchID: branchID, To: &today}
	snap, err := j.Balances.Snapshot(ctx, scope)
	if err != nil {
		return nil, err
	}

	sum := decimal.Zero
	for _, a := range snap.Chart.Accounts() {
		sum = sum.Add(snap.AccountNet(a.ID))
	}
	if !sum.IsZero() {
		out = append(out, Anomaly{Check: CheckTrialBalance, BranchID: branchID, Subject: "all accounts", Expected: decimal.Zero, Actual: sum})
	}

	for _, root := range snap.Chart.Roots() {
		under, err := snap.Chart.AccountsUnder(root.ID)
		if err != nil {
			return nil, err
		}
		direct := decimal.Zero
		for _, a := range under {
			direct = direct.Add(snap.AccountNet(a.ID))
		}
		if rolled := snap.GroupNet(root.ID); !rolled.Equal(direct) {
			out = append(out, Anomaly{Check: CheckRollup, BranchID: branchID, Subject: root.Code, Expected: direct, Actual: rolled})
		}
	}

	err = j.Balances.BulkBalances(ctx, scope, 0, func(batch []balances.AccountBalance) error {
		for _, b := range batch {
			if _, ok := snap.Chart.Account(b.AccountID); !ok {
				continue
			}
			if want := snap.AccountNet(b.AccountID); !want.Equal(b.Net) {
				out = append(out, Anomaly{Check: CheckBulkRecompute, BranchID: branchID, Subject: fmt.Sprintf("account %d", b.AccountID), Expected: want, Actual: b.Net})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *LedgerIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LedgerIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
