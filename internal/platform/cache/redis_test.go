package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
)

func TestNewAndLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := New(context.Background(), Options{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer client.Close()

	locker := NewLocker(client)
	lock, err := locker.Obtain(context.Background(), "ledger:test:lock", time.Minute, nil)
	if err != nil {
		t.Fatalf("obtain: %v", err)
	}
	if _, err := locker.Obtain(context.Background(), "ledger:test:lock", time.Minute, nil); err != redislock.ErrNotObtained {
		t.Fatalf("expected second obtain to fail, got %v", err)
	}
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	if _, err := New(context.Background(), Options{Addr: addr}); err == nil {
		t.Fatalf("expected ping failure")
	}
}
