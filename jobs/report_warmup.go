package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
	jobmetrics "github.com/odyssey-erp/ledger-core/internal/jobs"
)

// Warmer rebuilds the cached reports of one branch.
type Warmer interface {
	Warm(ctx context.Context, branchID *int64) error
}

// Enqueuer submits tasks to the queue.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// BumpSource delivers cache version bumps.
type BumpSource interface {
	Listen(ctx context.Context, fn func(context.Context, *int64)) error
}

// ReportWarmupJob recomputes reports after a cache bump so the next reader
// hits a warm cache.
type ReportWarmupJob struct {
	Reports  Warmer
	Branches BranchSource
	Locker   Locker
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	LockTTL  time.Duration
}

// NewReportWarmupJob wires the warmup job.
func NewReportWarmupJob(reports Warmer, branches BranchSource, locker Locker, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	return &ReportWarmupJob{
		Reports:  reports,
		Branches: branches,
		Locker:   locker,
		Logger:   logger,
		Metrics:  metrics,
		LockTTL:  5 * time.Minute,
	}
}

// Handle processes TaskReportWarmup tasks.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Reports == nil {
		return errors.New("report warmup: handler not configured")
	}
	var payload ScopePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskReportWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	return j.Run(ctx, payload)
}

// Run warms every requested scope. Scopes warmed by another runner are skipped.
func (j *ReportWarmupJob) Run(ctx context.Context, payload ScopePayload) error {
	logger := j.logger()
	targets, err := scopes(ctx, j.Branches, payload.BranchID)
	if err != nil {
		return err
	}
	warmed := 0
	for _, branchID := range targets {
		err := withLock(ctx, j.Locker, logger, "warmup", branchID, j.LockTTL, func(ctx context.Context) error {
			return j.Reports.Warm(ctx, branchID)
		})
		if errors.Is(err, errLocked) {
			j.metrics().SkipScope(TaskReportWarmup, branchID)
			continue
		}
		if err != nil {
			return fmt.Errorf("warm branch %s: %w", shared.BranchToken(branchID), err)
		}
		warmed++
	}
	logger.Info("warmed report cache", slog.Int("scopes", warmed))
	return nil
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportWarmup))
}

func (j *ReportWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

// EnqueueOnBump subscribes to cache bumps and enqueues a warmup task for the
// bumped branch. It returns once the subscription is live.
func EnqueueOnBump(ctx context.Context, bumps BumpSource, queue Enqueuer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	return bumps.Listen(ctx, func(ctx context.Context, branchID *int64) {
		task, err := NewReportWarmupTask(ScopePayload{BranchID: branchID})
		if err != nil {
			logger.Error("build warmup task", slog.Any("error", err))
			return
		}
		if _, err := queue.EnqueueContext(ctx, task); err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
			logger.Warn("enqueue warmup", slog.String("branch", shared.BranchToken(branchID)), slog.Any("error", err))
		}
	})
}
