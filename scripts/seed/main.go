package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting"
	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journals"
	"github.com/odyssey-erp/ledger-core/internal/accounting/provisioning"
	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
	"github.com/odyssey-erp/ledger-core/internal/app"
	"github.com/odyssey-erp/ledger-core/internal/platform/db"
)

// seedNamespace makes sample source ids stable so reruns are no-ops.
var seedNamespace = uuid.MustParse("6f1c2a7e-3d1b-4c55-9a0e-5b7f2f3e9c10")

type branchSeed struct {
	Code string
	Name string
}

var branches = []branchSeed{
	{Code: "MAIN", Name: "Main Campus"},
	{Code: "NORTH", Name: "North Campus"},
}

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.ChartTemplate == "" {
		cfg.ChartTemplate = getenv("CHART_TEMPLATE", "scripts/seed/chart_template.yaml")
	}
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions("ledger-seed"))
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	opts, err := cfg.ModuleOptions()
	if err != nil {
		log.Fatalf("load chart template: %v", err)
	}
	module := accounting.NewModule(pool, nil, app.NewLogger(cfg), nil, opts)

	fmt.Println("→ Seeding branches...")
	ids, err := seedBranches(ctx, pool)
	if err != nil {
		log.Fatalf("seed branches: %v", err)
	}

	fmt.Println("→ Provisioning default charts...")
	for _, id := range ids {
		branchID := id
		res, err := module.Provisioner.EnsureDefaultAccounts(ctx, &branchID)
		if err != nil {
			log.Fatalf("provision branch %d: %v", id, err)
		}
		if err := provisioning.EnsureReady(res); err != nil {
			log.Fatalf("provision branch %d: %v", id, err)
		}
		fmt.Printf("  branch %d: %d group(s), %d account(s) created\n", id, len(res.CreatedGroups), len(res.CreatedAccounts))
	}

	if getenv("SEED_SAMPLE_POSTINGS", "true") == "true" {
		fmt.Println("→ Posting sample transactions...")
		for _, id := range ids {
			if err := seedPostings(ctx, module, id); err != nil {
				log.Fatalf("sample postings for branch %d: %v", id, err)
			}
		}
	}
	fmt.Println("✓ Seed complete")
}

func seedBranches(ctx context.Context, pool *pgxpool.Pool) ([]int64, error) {
	ids := make([]int64, 0, len(branches))
	for _, b := range branches {
		var id int64
		err := pool.QueryRow(ctx, `SELECT id FROM branches WHERE code = $1 AND deleted_at IS NULL`, b.Code).Scan(&id)
		if err != nil {
			err = pool.QueryRow(ctx, `INSERT INTO branches (code, name) VALUES ($1, $2) RETURNING id`, b.Code, b.Name).Scan(&id)
		}
		if err != nil {
			return nil, fmt.Errorf("branch %s: %w", b.Code, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

type sample struct {
	name   string
	typ    journals.Type
	day    int
	debit  accounts.SystemRole
	credit accounts.SystemRole
	amount string
}

var samples = []sample{
	{name: "april-fees", typ: journals.TypeCourseFee, day: 5, debit: accounts.RoleFeesReceivable, credit: accounts.RoleTuitionFee, amount: "125000"},
	{name: "april-collection", typ: journals.TypeReceipt, day: 12, debit: accounts.RoleMainBankAccount, credit: accounts.RoleFeesReceivable, amount: "90000"},
	{name: "april-salaries", typ: journals.TypePayroll, day: 28, debit: accounts.RoleTeachingStaffSalary, credit: accounts.RoleMainBankAccount, amount: "60000"},
	{name: "april-rent", typ: journals.TypeExpense, day: 30, debit: accounts.RoleCampusRent, credit: accounts.RoleCashOnHand, amount: "8000"},
	{name: "april-power", typ: journals.TypeExpense, day: 30, debit: accounts.RoleElectricityExpense, credit: accounts.RoleCashOnHand, amount: "1850.75"},
}

func seedPostings(ctx context.Context, module *accounting.Module, branchID int64) error {
	chart, err := module.Accounts.LoadChart(ctx, &branchID)
	if err != nil {
		return err
	}
	roleID := func(role accounts.SystemRole) (int64, error) {
		a, err := chart.RequireAccountWithRole(role)
		return a.ID, err
	}

	cash, err := roleID(accounts.RoleCashOnHand)
	if err != nil {
		return err
	}
	year := time.Now().UTC().Year()
	opening, err := module.Balances.Balance(ctx, cash, shared.Scope{BranchID: &branchID})
	if err != nil {
		return err
	}
	if opening.Net.IsZero() {
		_, err = module.Journals.PostOpeningBalances(ctx, journals.OpeningBalanceInput{
			BranchID: &branchID,
			Date:     time.Date(year, time.April, 1, 0, 0, 0, 0, time.UTC),
			Lines:    []journals.OpeningLine{{AccountID: cash, Debit: decimal.NewFromInt(20000)}},
		})
		if err != nil {
			return fmt.Errorf("opening balances: %w", err)
		}
	}

	posted := 0
	for _, s := range samples {
		debit, err := roleID(s.debit)
		if err != nil {
			return err
		}
		credit, err := roleID(s.credit)
		if err != nil {
			return err
		}
		source := uuid.NewSHA1(seedNamespace, []byte(fmt.Sprintf("%d/%d/%s", branchID, year, s.name)))
		amount := decimal.RequireFromString(s.amount)
		_, err = module.Journals.PostTransaction(ctx, journals.PostingInput{
			BranchID:     &branchID,
			Type:         s.typ,
			Date:         time.Date(year, time.April, s.day, 0, 0, 0, 0, time.UTC),
			Narration:    "Sample " + s.name,
			SourceModule: "seed",
			SourceID:     &source,
			Entries: []journals.EntryInput{
				{AccountID: debit, Debit: amount},
				{AccountID: credit, Credit: amount},
			},
		})
		if errors.Is(err, shared.ErrSourceAlreadyLinked) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		posted++
	}
	fmt.Printf("  branch %d: %d sample transaction(s) posted\n", branchID, posted)
	return nil
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
