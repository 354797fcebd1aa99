package reports

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
	"github.com/odyssey-erp/ledger-core/internal/platform/httpx"
)

// Handler serves financial reports as JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/trial-balance", h.trialBalance)
		r.Get("/balance-sheet", h.balanceSheet)
		r.Get("/profit-loss", h.profitAndLoss)
		r.Get("/cash-flow", h.cashFlow)
		r.Get("/ledger/{accountID}", h.ledger)
	})
}

type rangeQuery struct {
	branchID *int64
	from     *time.Time
	to       *time.Time
}

func parseRange(r *http.Request) (rangeQuery, error) {
	var q rangeQuery
	var err error
	if q.branchID, err = httpx.OptionalInt64Query(r, "branch_id"); err != nil {
		return q, err
	}
	if q.from, err = shared.ParseDate("date_from", r.URL.Query().Get("date_from")); err != nil {
		return q, err
	}
	if q.to, err = shared.ParseDate("date_to", r.URL.Query().Get("date_to")); err != nil {
		return q, err
	}
	return q, nil
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	q, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), TrialBalanceRequest{
		BranchID: q.branchID,
		From:     q.from,
		To:       q.to,
		Grouped:  httpx.BoolQuery(r, "grouped", false),
		ShowZero: httpx.BoolQuery(r, "show_zero", false),
	})
	if err != nil {
		h.fail(w, ReportTrialBalance, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	branchID, err := httpx.OptionalInt64Query(r, "branch_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := shared.ParseDate("as_of", r.URL.Query().Get("as_of"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bs, err := h.service.BalanceSheet(r.Context(), BalanceSheetRequest{
		BranchID:    branchID,
		AsOf:        asOf,
		IncludeZero: httpx.BoolQuery(r, "include_zero", false),
	})
	if err != nil {
		h.fail(w, ReportBalanceSheet, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bs)
}

func (h *Handler) profitAndLoss(w http.ResponseWriter, r *http.Request) {
	q, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pl, err := h.service.ProfitAndLoss(r.Context(), RangeRequest{BranchID: q.branchID, From: q.from, To: q.to})
	if err != nil {
		h.fail(w, ReportProfitAndLoss, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pl)
}

func (h *Handler) cashFlow(w http.ResponseWriter, r *http.Request) {
	q, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	cf, err := h.service.CashFlow(r.Context(), RangeRequest{BranchID: q.branchID, From: q.from, To: q.to})
	if err != nil {
		h.fail(w, ReportCashFlow, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cf)
}

func (h *Handler) ledger(w http.ResponseWriter, r *http.Request) {
	accountID, err := httpx.Int64Param(r, "accountID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q, err := parseRange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	l, err := h.service.Ledger(r.Context(), LedgerRequest{AccountID: accountID, BranchID: q.branchID, From: q.from, To: q.to})
	if err != nil {
		h.fail(w, ReportLedger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, l)
}

func (h *Handler) fail(w http.ResponseWriter, report string, err error) {
	var coded httpx.StatusCoder
	if errors.As(err, &coded) {
		h.logger.Warn("report request rejected", slog.String("report", report), slog.Any("error", err))
	} else {
		h.logger.Error("report build failed", slog.String("report", report), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
