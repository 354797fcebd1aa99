package shared

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestErrorTaxonomyMatchesSentinels(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
		status   int
	}{
		{Invalid("code", "required"), ErrValidation, http.StatusUnprocessableEntity},
		{InvalidBecause("entries", ErrUnbalanced), ErrUnbalanced, http.StatusUnprocessableEntity},
		{InvalidBecause("source_id", ErrSourceAlreadyLinked), ErrSourceAlreadyLinked, http.StatusConflict},
		{Misconfigured("rounding_off", "7", "missing"), ErrConfiguration, http.StatusConflict},
		{NotFound("account", 9), ErrNotFound, http.StatusNotFound},
		{&ConcurrencyError{Attempts: 3, Err: errors.New("40001")}, ErrConcurrency, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("outer: %w", tc.err)
		if !errors.Is(wrapped, tc.sentinel) {
			t.Fatalf("%v should match %v", tc.err, tc.sentinel)
		}
		coder, ok := tc.err.(interface{ HTTPStatus() int })
		if !ok {
			t.Fatalf("%T lacks HTTPStatus", tc.err)
		}
		if coder.HTTPStatus() != tc.status {
			t.Fatalf("%v: expected status %d got %d", tc.err, tc.status, coder.HTTPStatus())
		}
	}
	if !errors.Is(InvalidBecause("entries", ErrUnbalanced), ErrValidation) {
		t.Fatalf("unbalanced must also classify as validation")
	}
}

func TestPresentFlipsCreditNatural(t *testing.T) {
	net := decimal.NewFromInt(-500)
	if got := Present(NatureEquity, net); !got.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("equity should present 500, got %s", got)
	}
	if got := Present(NatureAsset, decimal.NewFromInt(500)); !got.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("asset should present 500, got %s", got)
	}
	if got := Present(NatureIncome, decimal.NewFromInt(20)); !got.Equal(decimal.NewFromInt(-20)) {
		t.Fatalf("debit on income presents negative, got %s", got)
	}
}

func TestParseNatureAcceptsLabels(t *testing.T) {
	for raw, want := range map[string]Nature{"Assets": NatureAsset, " liabilities ": NatureLiability, "EXPENSES": NatureExpense, "equity": NatureEquity} {
		got, ok := ParseNature(raw)
		if !ok || got != want {
			t.Fatalf("ParseNature(%q) = %q,%v", raw, got, ok)
		}
	}
	if _, ok := ParseNature("capital"); ok {
		t.Fatalf("unexpected nature accepted")
	}
}

func TestScopeBounds(t *testing.T) {
	from := time.Date(2024, 4, 1, 15, 0, 0, 0, time.UTC)
	to := time.Date(2024, 4, 30, 9, 30, 0, 0, time.UTC)
	s := Scope{From: &from, To: &to}
	if got := *s.FromBound(); !got.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected from bound %s", got)
	}
	if got := *s.ToExclusive(); !got.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected exclusive to %s", got)
	}
	before := s.Before(from)
	if before.From != nil || !before.To.Equal(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected before scope %+v", before)
	}
	if err := (Scope{From: &to, To: &from}).Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected inverted range rejection, got %v", err)
	}
}

func TestScopeCoversGlobalRows(t *testing.T) {
	b1, b2 := int64(1), int64(2)
	s := Scope{BranchID: &b1}
	if !s.Covers(nil) || !s.Covers(&b1) || s.Covers(&b2) {
		t.Fatalf("unexpected coverage for branch scope")
	}
	if !(Scope{}).Covers(&b2) {
		t.Fatalf("unscoped must cover everything")
	}
}

func TestPercentRoundsAndGuardsZero(t *testing.T) {
	if got := Percent(decimal.NewFromInt(1), decimal.NewFromInt(3)); !got.Equal(decimal.RequireFromString("33.33")) {
		t.Fatalf("unexpected percent %s", got)
	}
	if got := Percent(decimal.NewFromInt(1), decimal.Zero); !got.IsZero() {
		t.Fatalf("zero denominator must give zero, got %s", got)
	}
}
