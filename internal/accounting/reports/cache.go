package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

const (
	keyPrefix      = "ledger:reports"
	versionPrefix  = "ledger:reports:version:"
	epochKey       = "ledger:reports:epoch"
	BumpChannel    = "ledger.reports.bump"
	allBranchToken = "all"
)

// Cache stores rendered reports in Redis under per-branch versioned keys.
// Bumping a version orphans every key built from the previous one. Every key
// also carries a global epoch, bumped when rows shared by all branches change.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool { return c != nil && c.client != nil }

// Version returns the current version for a branch token, initialising when missing.
func (c *Cache) Version(ctx context.Context, branchID *int64) (int64, error) {
	return c.counter(ctx, versionPrefix+shared.BranchToken(branchID))
}

// Epoch returns the global version shared by every branch.
func (c *Cache) Epoch(ctx context.Context) (int64, error) {
	return c.counter(ctx, epochKey)
}

func (c *Cache) counter(ctx context.Context, key string) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		// SETNX so two first readers agree on the initial version.
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes a report key carrying the global epoch and the branch's
// current version.
func (c *Cache) BuildKey(ctx context.Context, branchID *int64, parts ...string) (string, error) {
	joined := strings.Join(append([]string{keyPrefix}, parts...), ":")
	if !c.enabled() {
		return joined, nil
	}
	epoch, err := c.Epoch(ctx)
	if err != nil {
		return "", err
	}
	ver, err := c.Version(ctx, branchID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:e%d:v%d", joined, epoch, ver), nil
}

// FetchJSON loads a cached value or populates it using the loader. hit
// reports whether the value came from Redis.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) (hit bool, err error) {
	if loader == nil {
		return false, errors.New("reports: cache loader required")
	}
	if c.enabled() {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return true, json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			return false, err
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return false, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	if c.enabled() {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return false, err
		}
	}
	return false, json.Unmarshal(raw, dest)
}

// Invalidate bumps the branch version and the unscoped version, then
// publishes the bump. A nil branch only touches the unscoped version since
// branch-scoped reports never include global transactions.
func (c *Cache) Invalidate(ctx context.Context, branchID *int64) error {
	if !c.enabled() {
		return nil
	}
	tokens := []string{allBranchToken}
	if branchID != nil {
		tokens = append([]string{shared.BranchToken(branchID)}, tokens...)
	}
	pipe := c.client.TxPipeline()
	for _, tok := range tokens {
		pipe.Incr(ctx, versionPrefix+tok)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return c.client.Publish(ctx, BumpChannel, tokens[0]).Err()
}

// InvalidateChart is Invalidate for chart edits. Global groups and accounts
// appear in every branch chart, so a nil branch bumps the epoch and with it
// every cached report.
func (c *Cache) InvalidateChart(ctx context.Context, branchID *int64) error {
	if branchID != nil {
		return c.Invalidate(ctx, branchID)
	}
	if !c.enabled() {
		return nil
	}
	if err := c.client.Incr(ctx, epochKey).Err(); err != nil {
		return err
	}
	return c.client.Publish(ctx, BumpChannel, allBranchToken).Err()
}

// Listen delivers the branch token of every bump to fn until ctx ends.
func (c *Cache) Listen(ctx context.Context, fn func(context.Context, *int64)) error {
	if !c.enabled() {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, BumpChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				fn(ctx, parseBranchToken(msg.Payload))
			}
		}
	}()
	return nil
}

func parseBranchToken(tok string) *int64 {
	id, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}
