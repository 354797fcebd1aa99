// Package testdb starts a disposable Postgres with the ledger schema for
// integration tests.
package testdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/odyssey-erp/ledger-core/internal/platform/db"
)

// TestDB is a running container plus a pool connected to it.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// tables in dependency order, children first.
var tables = []string{
	"idempotency_keys",
	"audit_logs",
	"voucher_sequences",
	"transaction_entries",
	"transactions",
	"accounts",
	"account_groups",
	"branches",
}

// New starts postgres:16-alpine with every *.up.sql migration applied.
func New(ctx context.Context) (*TestDB, error) {
	dir, err := migrationsDir()
	if err != nil {
		return nil, err
	}
	scripts, err := upScripts(dir)
	if err != nil {
		return nil, err
	}

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("ledger_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(scripts...),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("testdb: start container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("testdb: connection string: %w", err)
	}
	pool, err := db.New(ctx, connStr, db.PoolOptions{MaxConns: 8, AppName: "ledger-integration"})
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}
	return &TestDB{Container: container, Pool: pool, ConnStr: connStr}, nil
}

// Start is New for tests: it skips under -short and registers cleanup.
func Start(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test needs docker")
	}
	ctx := context.Background()
	tdb, err := New(ctx)
	if err != nil {
		t.Fatalf("start test database: %v", err)
	}
	t.Cleanup(func() {
		if err := tdb.Close(context.Background()); err != nil {
			t.Logf("close test database: %v", err)
		}
	})
	return tdb
}

// Reset empties every ledger table and restarts their sequences.
func (d *TestDB) Reset(ctx context.Context) error {
	_, err := d.Pool.Exec(ctx, "TRUNCATE TABLE "+strings.Join(tables, ", ")+" RESTART IDENTITY CASCADE")
	if err != nil {
		return fmt.Errorf("testdb: reset: %w", err)
	}
	return nil
}

// Branch inserts a branch row and returns its id.
func (d *TestDB) Branch(ctx context.Context, code string) (int64, error) {
	var id int64
	err := d.Pool.QueryRow(ctx, `INSERT INTO branches (code, name) VALUES ($1, $1) RETURNING id`, code).Scan(&id)
	return id, err
}

// Close releases the pool and stops the container.
func (d *TestDB) Close(ctx context.Context) error {
	if d.Pool != nil {
		d.Pool.Close()
	}
	if d.Container != nil {
		return d.Container.Terminate(ctx)
	}
	return nil
}

func migrationsDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("testdb: cannot locate source file")
	}
	dir := filepath.Join(filepath.Dir(file), "..", "..", "migrations")
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("testdb: migrations: %w", err)
	}
	return dir, nil
}

func upScripts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("testdb: read migrations: %w", err)
	}
	var out []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
