package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/ledger-core/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity scans posted data for broken accounting identities.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskReportWarmup rebuilds cached reports after balances change.
	TaskReportWarmup = "ledger:report_warmup"
	// TaskCreditExposure flags accounts over their credit terms.
	TaskCreditExposure = "ledger:credit_exposure"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ScopePayload selects one branch, or every branch when BranchID is nil.
type ScopePayload struct {
	BranchID *int64 `json:"branch_id,omitempty"`
}

// IntegrityPayload configures a ledger integrity scan.
type IntegrityPayload struct {
	ScopePayload
	// Limit caps the unbalanced transactions reported per branch.
	Limit int `json:"limit,omitempty"`
}

// CreditExposurePayload configures a credit exposure scan.
type CreditExposurePayload struct {
	ScopePayload
	AsOf string `json:"as_of,omitempty"`
}

// NewIntegrityTask builds a TaskLedgerIntegrity task.
func NewIntegrityTask(payload IntegrityPayload) (*asynq.Task, error) {
	return newTask(TaskLedgerIntegrity, payload, asynq.MaxRetry(1))
}

// NewReportWarmupTask builds a TaskReportWarmup task. Bumps for the same
// branch within a minute collapse into one task.
func NewReportWarmupTask(payload ScopePayload) (*asynq.Task, error) {
	return newTask(TaskReportWarmup, payload, asynq.Unique(time.Minute), asynq.MaxRetry(2))
}

// NewCreditExposureTask builds a TaskCreditExposure task.
func NewCreditExposureTask(payload CreditExposurePayload) (*asynq.Task, error) {
	return newTask(TaskCreditExposure, payload, asynq.MaxRetry(1))
}

func newTask(typ string, payload any, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	opts = append(opts, asynq.Queue(QueueDefault))
	return asynq.NewTask(typ, data, opts...), nil
}
