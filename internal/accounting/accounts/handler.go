package accounts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/ledger-core/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/ledger-core/internal/shared"
)

// Handler exposes chart maintenance over JSON.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers chart routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/chart", h.chart)
	r.Post("/groups", h.createGroup)
	r.Patch("/groups/{id}", h.updateGroup)
	r.Delete("/groups/{id}", h.deleteGroup)
	r.Get("/groups/{id}/path", h.groupPath)
	r.Get("/groups/{id}/descendants", h.descendants)
	r.Get("/groups/{id}/accounts", h.accountsUnder)
	r.Post("/accounts", h.createAccount)
	r.Patch("/accounts/{id}", h.updateAccount)
	r.Delete("/accounts/{id}", h.deleteAccount)
}

type chartResponse struct {
	Groups   []Group   `json:"groups"`
	Accounts []Account `json:"accounts"`
}

func (h *Handler) chart(w http.ResponseWriter, r *http.Request) {
	branchID, err := httpx.OptionalInt64Query(r, "branch_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	chart, err := h.service.LoadChart(r.Context(), branchID)
	if err != nil {
		h.fail(w, "load chart", err)
		return
	}
	httpx.JSON(w, http.StatusOK, chartResponse{Groups: chart.Groups(), Accounts: chart.Accounts()})
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var in CreateGroupInput
	if err := httpx.DecodeValid(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.ActorID = internalShared.ActorFromContext(r.Context())
	group, err := h.service.CreateGroup(r.Context(), in)
	if err != nil {
		h.fail(w, "create group", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, group)
}

func (h *Handler) updateGroup(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in UpdateGroupInput
	if err := httpx.DecodeValid(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.ID = id
	in.ActorID = internalShared.ActorFromContext(r.Context())
	group, err := h.service.UpdateGroup(r.Context(), in)
	if err != nil {
		h.fail(w, "update group", err)
		return
	}
	httpx.JSON(w, http.StatusOK, group)
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteGroup(r.Context(), id, internalShared.ActorFromContext(r.Context())); err != nil {
		h.fail(w, "delete group", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) groupPath(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	path, err := h.service.FullPath(r.Context(), id)
	if err != nil {
		h.fail(w, "group path", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": id, "full_path": path})
}

func (h *Handler) descendants(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	groups, err := h.service.Descendants(r.Context(), id)
	if err != nil {
		h.fail(w, "group descendants", err)
		return
	}
	httpx.JSON(w, http.StatusOK, groups)
}

func (h *Handler) accountsUnder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accts, err := h.service.AccountsUnder(r.Context(), id)
	if err != nil {
		h.fail(w, "accounts under group", err)
		return
	}
	httpx.JSON(w, http.StatusOK, accts)
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var in CreateAccountInput
	if err := httpx.DecodeValid(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.ActorID = internalShared.ActorFromContext(r.Context())
	account, err := h.service.CreateAccount(r.Context(), in)
	if err != nil {
		h.fail(w, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in UpdateAccountInput
	if err := httpx.DecodeValid(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.ID = id
	in.ActorID = internalShared.ActorFromContext(r.Context())
	account, err := h.service.UpdateAccount(r.Context(), in)
	if err != nil {
		h.fail(w, "update account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteAccount(r.Context(), id, internalShared.ActorFromContext(r.Context())); err != nil {
		h.fail(w, "delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn("chart request failed", slog.String("op", op), slog.Any("error", err))
	httpx.RespondError(w, err)
}
