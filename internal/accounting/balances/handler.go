package balances

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
	"github.com/odyssey-erp/ledger-core/internal/platform/httpx"
)

// Handler exposes point balance queries.
type Handler struct {
	logger *slog.Logger
	agg    *Aggregator
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, agg *Aggregator) *Handler {
	return &Handler{logger: logger, agg: agg}
}

// MountRoutes registers balance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts/{id}/balance", h.accountBalance)
	r.Get("/groups/{id}/total", h.groupTotal)
}

type amountResponse struct {
	ID       int64           `json:"id"`
	BranchID *int64          `json:"branch_id,omitempty"`
	Nature   shared.Nature   `json:"nature"`
	Net      decimal.Decimal `json:"net"`
	Balance  decimal.Decimal `json:"balance"`
}

func scopeFrom(r *http.Request) (shared.Scope, error) {
	branchID, err := httpx.OptionalInt64Query(r, "branch_id")
	if err != nil {
		return shared.Scope{}, err
	}
	from, err := shared.ParseDate("date_from", r.URL.Query().Get("date_from"))
	if err != nil {
		return shared.Scope{}, err
	}
	to, err := shared.ParseDate("date_to", r.URL.Query().Get("date_to"))
	if err != nil {
		return shared.Scope{}, err
	}
	return shared.Scope{BranchID: branchID, From: from, To: to}, nil
}

func (h *Handler) accountBalance(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "account balance", h.agg.Balance)
}

func (h *Handler) groupTotal(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "group total", h.agg.GroupTotal)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, id int64, scope shared.Scope) (Amount, error)) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	scope, err := scopeFrom(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	amt, err := fn(r.Context(), id, scope)
	if err != nil {
		var coded httpx.StatusCoder
		if errors.As(err, &coded) {
			h.logger.Warn("balance request rejected", slog.String("op", op), slog.Any("error", err))
		} else {
			h.logger.Error("balance request failed", slog.String("op", op), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, amountResponse{
		ID:       id,
		BranchID: scope.BranchID,
		Nature:   amt.Nature,
		Net:      amt.Net,
		Balance:  amt.Reported(),
	})
}
