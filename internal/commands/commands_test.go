package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts/accountstest"
	"github.com/odyssey-erp/ledger-core/internal/accounting/balances"
	"github.com/odyssey-erp/ledger-core/internal/accounting/balances/balancestest"
	"github.com/odyssey-erp/ledger-core/internal/accounting/periods"
	"github.com/odyssey-erp/ledger-core/internal/accounting/provisioning"
	"github.com/odyssey-erp/ledger-core/internal/accounting/reports"
	"github.com/odyssey-erp/ledger-core/jobs"
	_ "github.com/odyssey-erp/ledger-core/testing"
)

var branch = int64(1)

type stubProvisioner struct {
	res provisioning.Result
	got *int64
}

func (s *stubProvisioner) EnsureDefaultAccounts(_ context.Context, branchID *int64) (provisioning.Result, error) {
	s.got = branchID
	s.res.BranchID = branchID
	return s.res, nil
}

type stubIntegrity struct {
	found   []jobs.Anomaly
	payload jobs.IntegrityPayload
}

func (s *stubIntegrity) Run(_ context.Context, p jobs.IntegrityPayload) ([]jobs.Anomaly, error) {
	s.payload = p
	return s.found, nil
}

type stubCredit struct {
	found []jobs.Exposure
	err   error
}

func (s stubCredit) Run(context.Context, jobs.CreditExposurePayload) ([]jobs.Exposure, error) {
	return s.found, s.err
}

type stubQueue struct{ tasks []*asynq.Task }

func (q *stubQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func run(t *testing.T, deps *Deps, args ...string) (string, error) {
	t.Helper()
	closed := false
	root := NewRootCommand(func(context.Context) (*Deps, func(), error) {
		return deps, func() { closed = true }, nil
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	if deps != nil && err == nil {
		require.True(t, closed, "loader closer must run")
	}
	return out.String(), err
}

func TestProvisionReportsCreatedRows(t *testing.T) {
	prov := &stubProvisioner{res: provisioning.Result{
		CreatedGroups:   []accounts.Group{{Code: "BR001-1"}},
		CreatedAccounts: []accounts.Account{{Code: "BR001-1111", Name: "Cash", Role: accounts.RoleCashOnHand}},
	}}
	out, err := run(t, &Deps{Provisioner: prov}, "provision", "--branch", "1")
	require.NoError(t, err)
	require.Equal(t, branch, *prov.got)
	require.Contains(t, out, "branch 1: 1 group(s), 1 account(s) created")
	require.Contains(t, out, "BR001-1111 Cash")
}

func TestProvisionFlagsIncompleteChart(t *testing.T) {
	prov := &stubProvisioner{res: provisioning.Result{Unresolved: []string{"99"}}}
	out, err := run(t, &Deps{Provisioner: prov}, "provision", "--branch", "2", "--json")
	require.ErrorIs(t, err, ErrFindings)

	var res provisioning.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, []string{"99"}, res.Unresolved)
}

func TestProvisionRequiresTemplate(t *testing.T) {
	_, err := run(t, &Deps{}, "provision", "--branch", "1")
	require.ErrorContains(t, err, "CHART_TEMPLATE")
}

func TestBranchFlagValidation(t *testing.T) {
	_, err := run(t, &Deps{}, "integrity", "--branch=abc")
	require.ErrorContains(t, err, "--branch")
}

func trialBalanceDeps(t *testing.T) *Deps {
	t.Helper()
	std := accountstest.NewStandard(&branch)
	ledger := balancestest.New(std.Groups(), std.Accounts())
	ledger.Post(&branch, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), balancestest.Dr(std.Cash, "1000"), balancestest.Cr(std.OwnerCapital, "1000"))
	ledger.Post(&branch, time.Date(2024, 4, 9, 0, 0, 0, 0, time.UTC), balancestest.Dr(std.Electricity, "2500.5"), balancestest.Cr(std.Creditors, "2500.5"))
	agg := balances.NewAggregator(ledger, ledger)
	svc := reports.NewService(agg, ledger, ledger, periods.NewCalendar(4), nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return &Deps{Reports: svc}
}

func TestTrialBalanceText(t *testing.T) {
	out, err := run(t, trialBalanceDeps(t), "trial-balance", "--branch", "1", "--from", "2024-04-01", "--to", "2024-04-30")
	require.NoError(t, err)
	require.Contains(t, out, "Trial balance, branch 1, 2024-04-01 to 2024-04-30")
	require.Contains(t, out, "1,000.00")
	require.Contains(t, out, "2,500.50")
	require.Contains(t, out, "Total")
}

func TestTrialBalanceLocalisedAmounts(t *testing.T) {
	out, err := run(t, trialBalanceDeps(t), "trial-balance", "--branch", "1", "--from", "2024-04-01", "--to", "2024-04-30", "--lang", "de")
	require.NoError(t, err)
	require.Contains(t, out, "2.500,50")
}

func TestTrialBalanceJSON(t *testing.T) {
	out, err := run(t, trialBalanceDeps(t), "trial-balance", "--branch", "1", "--from", "2024-04-01", "--to", "2024-04-30", "--json")
	require.NoError(t, err)
	var tb reports.TrialBalance
	require.NoError(t, json.Unmarshal([]byte(out), &tb))
	require.True(t, tb.Balanced)
	require.True(t, tb.Totals.PeriodDebit.Equal(decimal.RequireFromString("3500.5")))
}

func TestTrialBalanceRejectsBadDates(t *testing.T) {
	_, err := run(t, trialBalanceDeps(t), "trial-balance", "--from", "April")
	require.Error(t, err)
}

func TestIntegrityExitsWithFindings(t *testing.T) {
	scan := &stubIntegrity{}
	out, err := run(t, &Deps{Integrity: scan}, "integrity", "--limit", "5")
	require.NoError(t, err)
	require.Contains(t, out, "ledger is consistent")
	require.Nil(t, scan.payload.BranchID)
	require.Equal(t, 5, scan.payload.Limit)

	scan.found = []jobs.Anomaly{{Check: jobs.CheckTrialBalance, BranchID: &branch, Subject: "all accounts", Expected: decimal.Zero, Actual: decimal.NewFromInt(10)}}
	out, err = run(t, &Deps{Integrity: scan}, "integrity", "--branch", "1")
	require.ErrorIs(t, err, ErrFindings)
	require.Contains(t, out, "trial_balance")
	require.Contains(t, out, "10.00")
}

func TestCreditListsExposures(t *testing.T) {
	credit := stubCredit{found: []jobs.Exposure{{
		Check: jobs.CheckCreditLimit, Code: "1131", Name: "Fees Receivable",
		Net: decimal.NewFromInt(700), Limit: decimal.NewFromInt(500), Available: decimal.NewFromInt(-200),
	}}}
	out, err := run(t, &Deps{Credit: credit}, "credit", "--as-of", "2024-06-30")
	require.NoError(t, err)
	require.Contains(t, out, "credit_limit")
	require.Contains(t, out, "-200.00")

	_, err = run(t, &Deps{Credit: stubCredit{err: errors.New("boom")}}, "credit")
	require.ErrorContains(t, err, "boom")

	_, err = run(t, &Deps{Credit: credit}, "credit", "--as-of", "30/06/2024")
	require.Error(t, err)
}

func TestEnqueue(t *testing.T) {
	queue := &stubQueue{}
	out, err := run(t, &Deps{Queue: queue}, "enqueue", "warmup", "--branch", "1")
	require.NoError(t, err)
	require.Equal(t, "queued ledger:report_warmup as task-1 on default\n", out)
	require.Len(t, queue.tasks, 1)
	require.True(t, strings.Contains(string(queue.tasks[0].Payload()), `"branch_id":1`))

	_, err = run(t, &Deps{Queue: queue}, "enqueue", "nightly")
	require.ErrorContains(t, err, "unsupported job")
}
