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

	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/balances"
	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/ledger-core/internal/jobs"
)

// Credit exposure check names.
const (
	CheckCreditLimit = "credit_limit"
	CheckOverdue     = "overdue"
)

// SnapshotSource computes balance snapshots for a scope.
type SnapshotSource interface {
	Snapshot(ctx context.Context, scope shared.Scope) (*balances.Snapshot, error)
}

// Exposure is one counterparty account breaching its credit terms.
type Exposure struct {
	Check     string          `json:"check"`
	BranchID  *int64          `json:"branch_id,omitempty"`
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Net       decimal.Decimal `json:"net"`
	Limit     decimal.Decimal `json:"credit_limit"`
	Available decimal.Decimal `json:"available"`
	Cutoff    *time.Time      `json:"cutoff,omitempty"`
}

// CreditExposureJob flags customer and supplier accounts that exceed their
// credit limit or still carry a balance older than their credit days.
type CreditExposureJob struct {
	Balances SnapshotSource
	Branches BranchSource
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewCreditExposureJob wires the credit scan.
func NewCreditExposureJob(bal SnapshotSource, branches BranchSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *CreditExposureJob {
	return &CreditExposureJob{Balances: bal, Branches: branches, Logger: logger, Metrics: metrics}
}

// Handle processes TaskCreditExposure tasks.
func (j *CreditExposureJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Balances == nil {
		return errors.New("credit exposure: handler not configured")
	}
	var payload CreditExposurePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskCreditExposure)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	_, err := j.Run(ctx, payload)
	return err
}

// Run scans the requested branches as of payload.AsOf, defaulting to today.
func (j *CreditExposureJob) Run(ctx context.Context, payload CreditExposurePayload) ([]Exposure, error) {
	asOf := shared.StartOfDay(j.now())
	d, err := shared.ParseDate("as_of", payload.AsOf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if d != nil {
		asOf = *d
	}
	targets := []*int64{payload.BranchID}
	if payload.BranchID == nil && j.Branches != nil {
		ids, err := j.Branches.BranchIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("list branches: %w", err)
		}
		targets = targets[:0]
		for i := range ids {
			targets = append(targets, &ids[i])
		}
	}

	logger := j.logger()
	var out []Exposure
	for _, branchID := range targets {
		found, err := j.scan(ctx, branchID, asOf)
		if err != nil {
			return out, fmt.Errorf("scan branch %s: %w", shared.BranchToken(branchID), err)
		}
		for _, e := range found {
			logger.Warn("credit terms breached",
				slog.String("check", e.Check),
				slog.String("branch", shared.BranchToken(branchID)),
				slog.String("account", e.Code),
				slog.String("net", e.Net.String()),
			)
			j.metrics().AddAnomalies(e.Check, branchID, 1)
		}
		out = append(out, found...)
	}
	logger.Info("completed credit scan", slog.Int("scopes", len(targets)), slog.Int("exposures", len(out)))
	return out, nil
}

func (j *CreditExposureJob) scan(ctx context.Context, branchID *int64, asOf time.Time) ([]Exposure, error) {
	snap, err := j.Balances.Snapshot(ctx, shared.Scope{BranchID: branchID, To: &asOf})
	if err != nil {
		return nil, err
	}
	var out []Exposure
	// Snapshots are cached per cutoff since many accounts share credit days.
	atCutoff := map[time.Time]*balances.Snapshot{}
	for _, a := range snap.Chart.Accounts() {
		if a.LedgerType != accounts.LedgerCustomer && a.LedgerType != accounts.LedgerSupplier && a.LedgerType != accounts.LedgerStudent {
			continue
		}
		net := snap.AccountNet(a.ID)
		if a.IsOverCreditLimit(net) {
			avail, _ := a.AvailableCredit(net)
			out = append(out, exposure(CheckCreditLimit, branchID, a, net, avail, nil))
		}
		cutoff, ok := a.OverdueCutoff(asOf)
		if !ok || !a.IsOverdue(net) {
			continue
		}
		old, ok := atCutoff[cutoff]
		if !ok {
			c := cutoff
			old, err = j.Balances.Snapshot(ctx, shared.Scope{BranchID: branchID, To: &c})
			if err != nil {
				return nil, err
			}
			atCutoff[cutoff] = old
		}
		if a.IsOverdue(old.AccountNet(a.ID)) {
			avail, _ := a.AvailableCredit(net)
			c := cutoff
			out = append(out, exposure(CheckOverdue, branchID, a, net, avail, &c))
		}
	}
	return out, nil
}

func exposure(check string, branchID *int64, a accounts.Account, net, avail decimal.Decimal, cutoff *time.Time) Exposure {
	return Exposure{
		Check:     check,
		BranchID:  branchID,
		AccountID: a.ID,
		Code:      a.Code,
		Name:      a.Name,
		Net:       net,
		Limit:     a.CreditLimit,
		Available: avail,
		Cutoff:    cutoff,
	}
}

func (j *CreditExposureJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCreditExposure))
	}
	return slog.Default().With(slog.String("job", TaskCreditExposure))
}

func (j *CreditExposureJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CreditExposureJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
