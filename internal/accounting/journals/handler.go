package journals

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
	"github.com/odyssey-erp/ledger-core/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/ledger-core/internal/shared"
)

// IdempotencyKeyHeader lets origination clients retry posts safely.
const IdempotencyKeyHeader = "Idempotency-Key"

const idempotencyScope = "accounting.transactions"

// Lister reads transaction headers.
type Lister interface {
	List(ctx context.Context, f ListFilter) ([]Transaction, error)
}

// IdempotencyPort claims request keys.
type IdempotencyPort interface {
	Claim(ctx context.Context, scope, key string) error
	Release(ctx context.Context, scope, key string) error
}

// Handler exposes the ledger over JSON.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	lister      Lister
	idempotency IdempotencyPort
	validator   *validator.Validate
}

// NewHandler builds a Handler instance. lister and idem may be nil.
func NewHandler(logger *slog.Logger, service *Service, lister Lister, idem IdempotencyPort) *Handler {
	return &Handler{logger: logger, service: service, lister: lister, idempotency: idem, validator: validator.New()}
}

// MountRoutes registers transaction routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/transactions", h.list)
	r.Post("/transactions", h.post)
	r.Post("/transactions/drafts", h.createDraft)
	r.Get("/transactions/{id}", h.get)
	r.Post("/transactions/{id}/submit", h.lifecycle(h.service.Submit))
	r.Post("/transactions/{id}/approve", h.lifecycle(h.service.Approve))
	r.Post("/transactions/{id}/reject", h.lifecycle(h.service.Reject))
	r.Post("/transactions/{id}/post", h.lifecycle(h.service.Post))
	r.Post("/transactions/{id}/cancel", h.cancel)
	r.Post("/transactions/{id}/reverse", h.reverse)
	r.Post("/opening-balances", h.openingBalances)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		httpx.Problem(w, http.StatusNotImplemented, "Not Implemented", "listing is not configured")
		return
	}
	branchID, err := httpx.OptionalInt64Query(r, "branch_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	from, err := shared.ParseDate("date_from", q.Get("date_from"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := shared.ParseDate("date_to", q.Get("date_to"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	status := Status(q.Get("status"))
	if status != "" && !status.Valid() {
		httpx.RespondError(w, shared.Invalid("status", "unknown status"))
		return
	}
	out, err := h.lister.List(r.Context(), ListFilter{BranchID: branchID, Status: status, From: from, To: to})
	if err != nil {
		h.fail(w, "list transactions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	var in PostingInput
	if err := httpx.DecodeValid(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.ActorID = internalShared.ActorFromContext(r.Context())

	key := r.Header.Get(IdempotencyKeyHeader)
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.Claim(r.Context(), idempotencyScope, key); err != nil {
			if errors.Is(err, internalShared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
				return
			}
			h.fail(w, "claim idempotency key", err)
			return
		}
	}
	t, err := h.service.PostTransaction(r.Context(), in)
	if err != nil {
		if key != "" && h.idempotency != nil {
			_ = h.idempotency.Release(r.Context(), idempotencyScope, key)
		}
		h.fail(w, "post transaction", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	var in PostingInput
	if err := httpx.DecodeValid(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.ActorID = internalShared.ActorFromContext(r.Context())
	t, err := h.service.CreateDraft(r.Context(), in)
	if err != nil {
		h.fail(w, "create draft", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) statusChange(r *http.Request) (StatusChange, error) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		return StatusChange{}, err
	}
	var in StatusChange
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &in); err != nil {
			return StatusChange{}, shared.Invalid("body", "malformed JSON")
		}
	}
	in.TransactionID = id
	in.ActorID = internalShared.ActorFromContext(r.Context())
	return in, nil
}

func (h *Handler) lifecycle(fn func(context.Context, StatusChange) (Transaction, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := h.statusChange(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		t, err := fn(r.Context(), in)
		if err != nil {
			h.fail(w, "transaction lifecycle", err)
			return
		}
		httpx.JSON(w, http.StatusOK, t)
	}
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	in, err := h.statusChange(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	changed, err := h.service.CancelTransaction(r.Context(), in)
	if err != nil {
		h.fail(w, "cancel transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"id": in.TransactionID, "cancelled": changed})
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.Int64Param(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in ReverseInput
	if r.ContentLength != 0 {
		if err := httpx.DecodeValid(r, h.validator, &in); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	in.TransactionID = id
	in.ActorID = internalShared.ActorFromContext(r.Context())
	t, err := h.service.Reverse(r.Context(), in)
	if err != nil {
		h.fail(w, "reverse transaction", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) openingBalances(w http.ResponseWriter, r *http.Request) {
	var in OpeningBalanceInput
	if err := httpx.DecodeValid(r, h.validator, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in.ActorID = internalShared.ActorFromContext(r.Context())
	t, err := h.service.PostOpeningBalances(r.Context(), in)
	if err != nil {
		h.fail(w, "post opening balances", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	level := slog.LevelWarn
	var coded httpx.StatusCoder
	if !errors.As(err, &coded) {
		level = slog.LevelError
	}
	h.logger.Log(context.Background(), level, "ledger request failed", slog.String("op", op), slog.Any("error", err))
	httpx.RespondError(w, err)
}
