package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/odyssey-erp/ledger-core/internal/accounting"
	"github.com/odyssey-erp/ledger-core/internal/app"
	"github.com/odyssey-erp/ledger-core/internal/commands"
	"github.com/odyssey-erp/ledger-core/internal/platform/cache"
	"github.com/odyssey-erp/ledger-core/internal/platform/db"
	"github.com/odyssey-erp/ledger-core/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := commands.NewRootCommand(load).ExecuteContext(ctx)
	switch {
	case err == nil:
	case errors.Is(err, commands.ErrFindings):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(10)
	default:
		fmt.Fprintln(os.Stderr, "ledgerctl:", err)
		os.Exit(1)
	}
}

// load connects to Postgres and Redis and wires the same services the API uses.
func load(ctx context.Context) (*commands.Deps, func(), error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions("ledgerctl"))
	if err != nil {
		return nil, nil, err
	}
	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	moduleOpts, err := cfg.ModuleOptions()
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, nil, err
	}
	module := accounting.NewModule(pool, redisClient, logger, nil, moduleOpts)
	queue, err := jobs.NewClient(cfg.RedisClientOpt())
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, nil, err
	}

	branches := jobs.NewPgBranches(pool)
	deps := &commands.Deps{
		Provisioner: module.Provisioner,
		Reports:     module.Reports,
		Integrity:   jobs.NewLedgerIntegrityJob(module.Ledger, module.Balances, branches, cache.NewLocker(redisClient), logger, nil),
		Credit:      jobs.NewCreditExposureJob(module.Balances, branches, logger, nil),
		Queue:       queue,
	}
	closeFn := func() {
		_ = queue.Close()
		_ = redisClient.Close()
		pool.Close()
	}
	return deps, closeFn, nil
}
