package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolationMatchesConstraint(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: CodeUniqueViolation, ConstraintName: "uq_transactions_source"})
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation")
	}
	if !IsUniqueViolation(err, "uq_transactions_source") {
		t.Fatalf("expected named constraint match")
	}
	if IsUniqueViolation(err, "uq_transactions_voucher") {
		t.Fatalf("unexpected match on other constraint")
	}
	if IsUniqueViolation(errors.New("plain")) {
		t.Fatalf("plain error must not match")
	}
}

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 2 {
			return &pgconn.PgError{Code: CodeSerializationFailure}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		calls++
		return &pgconn.PgError{Code: CodeDeadlockDetected}
	})
	var exhausted *RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected RetryExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 3 || calls != 3 {
		t.Fatalf("expected 3 attempts, got %d/%d", exhausted.Attempts, calls)
	}
}

func TestRetryPassesThroughOtherErrors(t *testing.T) {
	sentinel := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), 5, time.Millisecond, func(context.Context) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) || calls != 1 {
		t.Fatalf("expected single call with sentinel, got %v after %d", err, calls)
	}
}
