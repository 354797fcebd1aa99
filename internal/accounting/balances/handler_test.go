package balances_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ledger-core/internal/accounting/balances"
	"github.com/odyssey-erp/ledger-core/internal/accounting/balances/balancestest"
)

func TestHandlerReportsBalances(t *testing.T) {
	std, ledger, agg := setup(t)
	ledger.Post(&branch, day(2024, 4, 1), balancestest.Dr(std.Cash, "250.50"), balancestest.Cr(std.OwnerCapital, "250.50"))

	r := chi.NewRouter()
	balances.NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), agg).MountRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	get := func(path string) (*http.Response, map[string]any) {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		defer resp.Body.Close()
		var body map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		return resp, body
	}

	resp, body := get("/groups/" + itoa(std.Capital) + "/total?branch_id=1&date_to=2024-04-30")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", resp.StatusCode, body)
	}
	if body["balance"] != "250.5" || body["net"] != "-250.5" || body["nature"] != "equity" {
		t.Fatalf("unexpected body %v", body)
	}

	resp, body = get("/accounts/4242/balance?branch_id=1")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %v", resp.StatusCode, body)
	}

	resp, _ = get("/accounts/" + itoa(std.Cash) + "/balance?date_from=2024-05-01&date_to=2024-04-01")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for inverted range, got %d", resp.StatusCode)
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
