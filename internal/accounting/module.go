// Package accounting wires the ledger core: chart of accounts, postings,
// balance aggregation, financial reports and branch provisioning.
package accounting

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/balances"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journals"
	"github.com/odyssey-erp/ledger-core/internal/accounting/periods"
	"github.com/odyssey-erp/ledger-core/internal/accounting/provisioning"
	"github.com/odyssey-erp/ledger-core/internal/accounting/reports"
	internalShared "github.com/odyssey-erp/ledger-core/internal/shared"
)

// Options tunes the ledger core.
type Options struct {
	Calendar       periods.Calendar
	Posting        journals.Options
	ReportCacheTTL time.Duration
	// Template enables branch provisioning when set.
	Template *provisioning.Template
}

// Metrics receives posting and report observations.
type Metrics interface {
	journals.Recorder
	reports.Observer
}

// Module holds the wired services of the ledger core.
type Module struct {
	Accounts    *accounts.Service
	Journals    *journals.Service
	Ledger      *journals.Repository
	Balances    *balances.Aggregator
	Reports     *reports.Service
	ReportCache *reports.Cache
	Provisioner provisioning.Provisioner
}

// NewModule builds every service on top of pool. rdb may be nil, which
// disables the report cache.
func NewModule(pool *pgxpool.Pool, rdb *redis.Client, logger *slog.Logger, metrics Metrics, opts Options) *Module {
	audit := internalShared.NewAuditLogger(pool)
	chart := accounts.NewService(accounts.NewRepository(pool), audit)
	ledger := journals.NewRepository(pool)
	postings := journals.NewService(ledger, audit, opts.Posting)
	agg := balances.NewAggregator(balances.NewPgStore(pool), chart)

	var cache *reports.Cache
	if rdb != nil {
		cache = reports.NewCache(rdb, opts.ReportCacheTTL)
	}
	reportSvc := reports.NewService(agg, chart, ledger, opts.Calendar, cache, logger)
	postings.WithInvalidator(reportSvc)
	postings.WithLogger(logger)
	chart.WithInvalidator(reportSvc)
	chart.WithLogger(logger)
	if metrics != nil {
		postings.WithRecorder(metrics)
		reportSvc.WithObserver(metrics)
	}

	m := &Module{
		Accounts:    chart,
		Journals:    postings,
		Ledger:      ledger,
		Balances:    agg,
		Reports:     reportSvc,
		ReportCache: cache,
	}
	if opts.Template != nil {
		m.Provisioner = provisioning.NewChartProvisioner(chart, *opts.Template, logger)
	}
	return m
}
