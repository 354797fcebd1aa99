package accounting_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ledger-core/internal/accounting"
	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/provisioning"
)

type stubProvisioner struct {
	result provisioning.Result
	calls  []int64
}

func (p *stubProvisioner) EnsureDefaultAccounts(_ context.Context, branchID *int64) (provisioning.Result, error) {
	p.calls = append(p.calls, *branchID)
	res := p.result
	res.BranchID = branchID
	return res, nil
}

func router(module *accounting.Module) chi.Router {
	r := chi.NewRouter()
	r.Route("/accounting", accounting.NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), module, nil).MountRoutes)
	return r
}

func TestMountRoutesExposesLedgerSurface(t *testing.T) {
	r := router(&accounting.Module{Provisioner: &stubProvisioner{}})

	routes := map[string]bool{}
	err := chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes[method+" "+route] = true
		return nil
	})
	if err != nil {
		t.Fatalf("walk routes: %v", err)
	}

	for _, want := range []string{
		"POST /accounting/transactions",
		"POST /accounting/transactions/{id}/cancel",
		"POST /accounting/transactions/{id}/reverse",
		"GET /accounting/accounts/{id}/balance",
		"GET /accounting/groups/{id}/total",
		"GET /accounting/groups/{id}/path",
		"GET /accounting/chart",
		"GET /accounting/reports/trial-balance",
		"GET /accounting/reports/balance-sheet",
		"GET /accounting/reports/profit-loss",
		"GET /accounting/reports/cash-flow",
		"GET /accounting/reports/ledger/{accountID}",
		"POST /accounting/branches/{id}/provision",
	} {
		if !routes[want] {
			t.Fatalf("route %s not mounted; have %v", want, routes)
		}
	}
}

func TestProvisionWithoutTemplateIsNotMounted(t *testing.T) {
	r := router(&accounting.Module{})
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/accounting/branches/3/provision", nil))
	if rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected provisioning to be unavailable, got %d", rr.Code)
	}
}

func TestProvisionEndpoint(t *testing.T) {
	stub := &stubProvisioner{result: provisioning.Result{
		CreatedGroups: []accounts.Group{{ID: 1, Code: "1", Name: "Assets"}},
	}}
	r := router(&accounting.Module{Provisioner: stub})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/accounting/branches/3/provision", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body provisioning.Result
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.BranchID == nil || *body.BranchID != 3 || len(body.CreatedGroups) != 1 {
		t.Fatalf("unexpected body %+v", body)
	}

	stub.result = provisioning.Result{Unresolved: []string{"113"}}
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/accounting/branches/3/provision", nil))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for unresolved template, got %d", rr.Code)
	}
	if len(stub.calls) != 2 {
		t.Fatalf("expected two provisioning calls, got %v", stub.calls)
	}
}
