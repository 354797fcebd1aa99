// Package commands implements ledgerctl, the operator CLI for branch
// provisioning, ledger checks and report spot checks.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/ledger-core/internal/accounting/provisioning"
	"github.com/odyssey-erp/ledger-core/internal/accounting/reports"
	"github.com/odyssey-erp/ledger-core/jobs"
)

// ErrFindings is returned when a check completed but found problems.
var ErrFindings = errors.New("ledgerctl: check reported findings")

// TrialBalancer builds trial balances.
type TrialBalancer interface {
	TrialBalance(ctx context.Context, req reports.TrialBalanceRequest) (reports.TrialBalance, error)
}

// IntegrityRunner runs the ledger integrity scan in-process.
type IntegrityRunner interface {
	Run(ctx context.Context, payload jobs.IntegrityPayload) ([]jobs.Anomaly, error)
}

// CreditRunner runs the credit exposure scan in-process.
type CreditRunner interface {
	Run(ctx context.Context, payload jobs.CreditExposurePayload) ([]jobs.Exposure, error)
}

// Deps are the services the commands operate on.
type Deps struct {
	Provisioner provisioning.Provisioner
	Reports     TrialBalancer
	Integrity   IntegrityRunner
	Credit      CreditRunner
	Queue       jobs.Enqueuer
}

// Loader opens Deps for one command run and returns a closer.
type Loader func(ctx context.Context) (*Deps, func(), error)

type globals struct {
	load   Loader
	lang   string
	json   bool
	branch string
}

// branchID parses --branch; empty or "all" selects every branch.
func (g *globals) branchID() (*int64, error) {
	if g.branch == "" || g.branch == "all" {
		return nil, nil
	}
	id, err := strconv.ParseInt(g.branch, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("--branch must be a positive id or \"all\", got %q", g.branch)
	}
	return &id, nil
}

func (g *globals) printer() *message.Printer {
	tag, err := language.Parse(g.lang)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag)
}

func (g *globals) deps(cmd *cobra.Command) (*Deps, func(), error) {
	if g.load == nil {
		return nil, nil, errors.New("ledgerctl: no backend configured")
	}
	return g.load(cmd.Context())
}

// NewRootCommand creates the ledgerctl root command with all subcommands registered.
func NewRootCommand(load Loader) *cobra.Command {
	g := &globals{load: load}
	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the branch ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.branch, "branch", "", "branch id, or \"all\"")
	rootCmd.PersistentFlags().StringVar(&g.lang, "lang", "en", "BCP 47 tag used for number formatting")
	rootCmd.PersistentFlags().BoolVar(&g.json, "json", false, "print JSON instead of text")

	rootCmd.AddCommand(
		newProvisionCommand(g),
		newTrialBalanceCommand(g),
		newIntegrityCommand(g),
		newCreditCommand(g),
		newEnqueueCommand(g),
	)
	return rootCmd
}
