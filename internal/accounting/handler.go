package accounting

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/balances"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journals"
	"github.com/odyssey-erp/ledger-core/internal/accounting/provisioning"
	"github.com/odyssey-erp/ledger-core/internal/accounting/reports"
	"github.com/odyssey-erp/ledger-core/internal/platform/httpx"
)

// Handler wires the ledger core endpoints.
type Handler struct {
	logger      *slog.Logger
	module      *Module
	idempotency journals.IdempotencyPort
}

// NewHandler builds a Handler instance. idem may be nil.
func NewHandler(logger *slog.Logger, module *Module, idem journals.IdempotencyPort) *Handler {
	return &Handler{logger: logger, module: module, idempotency: idem}
}

// MountRoutes registers HTTP routes for the ledger core.
func (h *Handler) MountRoutes(r chi.Router) {
	accounts.NewHandler(h.logger, h.module.Accounts).MountRoutes(r)
	var lister journals.Lister
	if h.module.Ledger != nil {
		lister = h.module.Ledger
	}
	journals.NewHandler(h.logger, h.module.Journals, lister, h.idempotency).MountRoutes(r)
	balances.NewHandler(h.logger, h.module.Balances).MountRoutes(r)
	reports.NewHandler(h.logger, h.module.Reports).MountRoutes(r)
	if h.module.Provisioner != nil {
		r.Post("/branches/{id}/provision", h.provision)
	}
}

func (h *Handler) provision(w http.ResponseWriter, r *http.Request) {
	branchID, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.module.Provisioner.EnsureDefaultAccounts(r.Context(), &branchID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if len(res.CreatedGroups) > 0 || len(res.CreatedAccounts) > 0 {
		if h.module.Reports != nil {
			if err := h.module.Reports.Invalidate(r.Context(), &branchID); err != nil {
				h.logger.Warn("report cache invalidation failed", slog.Int64("branch_id", branchID), slog.Any("error", err))
			}
		}
	}
	if err := provisioning.EnsureReady(res); err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	var coded httpx.StatusCoder
	if errors.As(err, &coded) {
		h.logger.Warn("provisioning rejected", slog.Any("error", err))
	} else {
		h.logger.Error("provisioning failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
