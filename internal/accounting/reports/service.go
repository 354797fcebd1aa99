package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/balances"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journals"
	"github.com/odyssey-erp/ledger-core/internal/accounting/periods"
	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

// Report names used in cache keys and metrics.
const (
	ReportTrialBalance  = "trial_balance"
	ReportBalanceSheet  = "balance_sheet"
	ReportProfitAndLoss = "profit_and_loss"
	ReportCashFlow      = "cash_flow"
	ReportLedger        = "ledger"
)

// Aggregator is the balance surface reports read from.
type Aggregator interface {
	Snapshot(ctx context.Context, scope shared.Scope) (*balances.Snapshot, error)
	Movements(ctx context.Context, branchID *int64, from, to *time.Time) (map[int64]balances.Movement, error)
	Balance(ctx context.Context, accountID int64, scope shared.Scope) (balances.Amount, error)
	Account(ctx context.Context, accountID int64, branchID *int64) (accounts.Account, shared.Nature, error)
}

// ChartLoader loads the chart visible to a branch.
type ChartLoader interface {
	LoadChart(ctx context.Context, branchID *int64) (*accounts.Chart, error)
}

// EntrySource lists the entries behind an account ledger.
type EntrySource interface {
	AccountEntries(ctx context.Context, accountID int64, scope shared.Scope) ([]journals.AccountEntry, error)
	DraftSummary(ctx context.Context, accountID int64, scope shared.Scope) (journals.DraftSummary, error)
}

// Observer receives report timings and cache outcomes.
type Observer interface {
	ObserveReport(report string, d time.Duration, err error)
	ObserveReportCache(report string, hit bool)
}

// Service builds financial reports on top of the balance aggregator.
type Service struct {
	agg      Aggregator
	charts   ChartLoader
	entries  EntrySource
	calendar periods.Calendar
	cache    *Cache
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
	group    singleflight.Group
}

// NewService wires the reports service. cache may be nil.
func NewService(agg Aggregator, charts ChartLoader, entries EntrySource, calendar periods.Calendar, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		agg:      agg,
		charts:   charts,
		entries:  entries,
		calendar: calendar,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock used for default ranges.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithObserver registers metrics hooks.
func (s *Service) WithObserver(o Observer) { s.observer = o }

// TrialBalanceRequest selects a trial balance.
type TrialBalanceRequest struct {
	BranchID *int64
	From     *time.Time
	To       *time.Time
	Grouped  bool
	ShowZero bool
}

// RangeRequest selects a period report.
type RangeRequest struct {
	BranchID *int64
	From     *time.Time
	To       *time.Time
}

// BalanceSheetRequest selects a balance sheet.
type BalanceSheetRequest struct {
	BranchID    *int64
	AsOf        *time.Time
	IncludeZero bool
}

// LedgerRequest selects an account ledger. Without From there is no opening.
type LedgerRequest struct {
	AccountID int64
	BranchID  *int64
	From      *time.Time
	To        *time.Time
}

func (s *Service) window(branchID *int64, from, to *time.Time) (shared.Scope, error) {
	start, end := s.calendar.Range(from, to, s.now())
	scope := shared.Scope{BranchID: branchID, From: &start, To: &end}
	return scope, scope.Validate()
}

// TrialBalance lists opening, period and closing columns for every account.
func (s *Service) TrialBalance(ctx context.Context, req TrialBalanceRequest) (TrialBalance, error) {
	scope, err := s.window(req.BranchID, req.From, req.To)
	if err != nil {
		return TrialBalance{}, err
	}
	parts := []string{scope.Key(), strconv.FormatBool(req.Grouped), strconv.FormatBool(req.ShowZero)}
	return fetch(ctx, s, ReportTrialBalance, req.BranchID, parts, func(ctx context.Context) (TrialBalance, error) {
		chart, moves, err := s.movements(ctx, scope)
		if err != nil {
			return TrialBalance{}, err
		}
		return BuildTrialBalance(chart, moves, *scope.From, *scope.To, req.Grouped, req.ShowZero), nil
	})
}

// BalanceSheet reports the position as of a date, today by default.
func (s *Service) BalanceSheet(ctx context.Context, req BalanceSheetRequest) (BalanceSheet, error) {
	asOf := shared.StartOfDay(s.now())
	if req.AsOf != nil {
		asOf = shared.StartOfDay(*req.AsOf)
	}
	fyStart := s.calendar.YearStart(asOf)
	cumulative := shared.Scope{BranchID: req.BranchID, To: &asOf}
	year := shared.Scope{BranchID: req.BranchID, From: &fyStart, To: &asOf}
	parts := []string{cumulative.Key(), strconv.FormatBool(req.IncludeZero)}
	return fetch(ctx, s, ReportBalanceSheet, req.BranchID, parts, func(ctx context.Context) (BalanceSheet, error) {
		all, err := s.agg.Snapshot(ctx, cumulative)
		if err != nil {
			return BalanceSheet{}, err
		}
		fy, err := s.agg.Snapshot(ctx, year)
		if err != nil {
			return BalanceSheet{}, err
		}
		return BuildBalanceSheet(all, fy, asOf, fyStart, req.IncludeZero), nil
	})
}

// ProfitAndLoss reports income and expense over a period.
func (s *Service) ProfitAndLoss(ctx context.Context, req RangeRequest) (ProfitAndLoss, error) {
	scope, err := s.window(req.BranchID, req.From, req.To)
	if err != nil {
		return ProfitAndLoss{}, err
	}
	return fetch(ctx, s, ReportProfitAndLoss, req.BranchID, []string{scope.Key()}, func(ctx context.Context) (ProfitAndLoss, error) {
		snap, err := s.agg.Snapshot(ctx, scope)
		if err != nil {
			return ProfitAndLoss{}, err
		}
		return BuildProfitAndLoss(snap, *scope.From, *scope.To), nil
	})
}

// CashFlow reports cash movement by activity over a period.
func (s *Service) CashFlow(ctx context.Context, req RangeRequest) (CashFlow, error) {
	scope, err := s.window(req.BranchID, req.From, req.To)
	if err != nil {
		return CashFlow{}, err
	}
	return fetch(ctx, s, ReportCashFlow, req.BranchID, []string{scope.Key()}, func(ctx context.Context) (CashFlow, error) {
		chart, moves, err := s.movements(ctx, scope)
		if err != nil {
			return CashFlow{}, err
		}
		return BuildCashFlow(chart, moves, *scope.From, *scope.To)
	})
}

// Ledger lists an account's posted entries with a running balance.
func (s *Service) Ledger(ctx context.Context, req LedgerRequest) (Ledger, error) {
	scope := shared.Scope{BranchID: req.BranchID, From: req.From, To: req.To}
	if err := scope.Validate(); err != nil {
		return Ledger{}, err
	}
	parts := []string{strconv.FormatInt(req.AccountID, 10), scope.Key()}
	return fetch(ctx, s, ReportLedger, req.BranchID, parts, func(ctx context.Context) (Ledger, error) {
		acct, nature, err := s.agg.Account(ctx, req.AccountID, req.BranchID)
		if err != nil {
			return Ledger{}, err
		}
		opening := decimal.Zero
		if req.From != nil {
			amt, err := s.agg.Balance(ctx, acct.ID, scope.Before(*req.From))
			if err != nil {
				return Ledger{}, err
			}
			opening = amt.Net
		}
		entries, err := s.entries.AccountEntries(ctx, acct.ID, scope)
		if err != nil {
			return Ledger{}, err
		}
		drafts, err := s.entries.DraftSummary(ctx, acct.ID, scope)
		if err != nil {
			return Ledger{}, err
		}
		return BuildLedger(acct, nature, scope, opening, entries, drafts), nil
	})
}

// Warm renders the default-range statements for a branch so the next reader
// hits the cache.
func (s *Service) Warm(ctx context.Context, branchID *int64) error {
	var errs []error
	if _, err := s.TrialBalance(ctx, TrialBalanceRequest{BranchID: branchID}); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", ReportTrialBalance, err))
	}
	if _, err := s.BalanceSheet(ctx, BalanceSheetRequest{BranchID: branchID}); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", ReportBalanceSheet, err))
	}
	if _, err := s.ProfitAndLoss(ctx, RangeRequest{BranchID: branchID}); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", ReportProfitAndLoss, err))
	}
	if _, err := s.CashFlow(ctx, RangeRequest{BranchID: branchID}); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", ReportCashFlow, err))
	}
	return errors.Join(errs...)
}

// Invalidate forwards to the cache so the service can be handed to journals.
func (s *Service) Invalidate(ctx context.Context, branchID *int64) error {
	return s.cache.Invalidate(ctx, branchID)
}

// InvalidateChart drops cached reports after the chart of branchID changed.
func (s *Service) InvalidateChart(ctx context.Context, branchID *int64) error {
	return s.cache.InvalidateChart(ctx, branchID)
}

func (s *Service) movements(ctx context.Context, scope shared.Scope) (*accounts.Chart, map[int64]balances.Movement, error) {
	chart, err := s.charts.LoadChart(ctx, scope.BranchID)
	if err != nil {
		return nil, nil, err
	}
	moves, err := s.agg.Movements(ctx, scope.BranchID, scope.From, scope.To)
	if err != nil {
		return nil, nil, err
	}
	for id, m := range moves {
		if _, ok := chart.Account(id); ok {
			continue
		}
		if !m.ClosingNet().IsZero() || !m.PeriodDebit.IsZero() {
			return nil, nil, shared.Misconfigured("", chart.Scope(), fmt.Sprintf("posted activity on account %d outside the chart", id))
		}
	}
	return chart, moves, nil
}

// fetch serves a report from the cache, collapsing concurrent builds of the
// same key. Redis failures degrade to a direct build.
func fetch[T any](ctx context.Context, s *Service, report string, branchID *int64, parts []string, build func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	key, err := s.cache.BuildKey(ctx, branchID, append([]string{report}, parts...)...)
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.String("report", report), slog.Any("error", err))
		out, err := build(ctx)
		s.observe(report, start, err)
		return out, err
	}

	val, err, _ := flight(ctx, &s.group, key, func(ctx context.Context) (any, error) {
		var (
			cached   T
			fresh    T
			built    bool
			buildErr error
		)
		hit, err := s.cache.FetchJSON(ctx, key, &cached, func(ctx context.Context) (any, error) {
			built = true
			fresh, buildErr = build(ctx)
			return fresh, buildErr
		})
		switch {
		case built:
			s.observeCache(report, false)
			if buildErr != nil {
				return nil, buildErr
			}
			if err != nil {
				s.logger.Warn("report cache write failed", slog.String("report", report), slog.String("key", key), slog.Any("error", err))
			}
			return fresh, nil
		case err != nil:
			s.logger.Warn("report cache read failed", slog.String("report", report), slog.String("key", key), slog.Any("error", err))
			return build(ctx)
		default:
			s.observeCache(report, hit)
			return cached, nil
		}
	})
	s.observe(report, start, err)
	if err != nil {
		var zero T
		return zero, err
	}
	return val.(T), nil
}

func (s *Service) observe(report string, start time.Time, err error) {
	if s.observer != nil {
		s.observer.ObserveReport(report, time.Since(start), err)
	}
}

func (s *Service) observeCache(report string, hit bool) {
	if s.observer != nil && s.cache.enabled() {
		s.observer.ObserveReportCache(report, hit)
	}
}
