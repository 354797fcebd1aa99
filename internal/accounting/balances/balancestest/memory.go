// Package balancestest provides an in-memory ledger for aggregator and report tests.
package balancestest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/balances"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journals"
	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

// Line is one entry of an in-memory transaction.
type Line struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Dr builds a debit line.
func Dr(accountID int64, amount string) Line {
	return Line{AccountID: accountID, Debit: decimal.RequireFromString(amount)}
}

// Cr builds a credit line.
func Cr(accountID int64, amount string) Line {
	return Line{AccountID: accountID, Credit: decimal.RequireFromString(amount)}
}

type posting struct {
	branchID *int64
	date     time.Time
	status   string
	lines    []Line
}

// Ledger implements balances.Store and balances.ChartLoader over slices, and
// serves account entries the way the journals repository does.
type Ledger struct {
	groups   []accounts.Group
	accounts []accounts.Account
	postings []posting

	ChartLoads int
	Queries    int
}

// New returns a ledger holding the given chart rows.
func New(groups []accounts.Group, accts []accounts.Account) *Ledger {
	return &Ledger{groups: groups, accounts: accts}
}

// Add appends more chart rows, for example another branch's.
func (l *Ledger) Add(groups []accounts.Group, accts []accounts.Account) {
	l.groups = append(l.groups, groups...)
	l.accounts = append(l.accounts, accts...)
}

// Post records a posted transaction.
func (l *Ledger) Post(branchID *int64, date time.Time, lines ...Line) {
	l.Record("posted", branchID, date, lines...)
}

// Record stores a transaction with an arbitrary status.
func (l *Ledger) Record(status string, branchID *int64, date time.Time, lines ...Line) {
	l.postings = append(l.postings, posting{branchID: branchID, date: date, status: status, lines: lines})
}

// LoadChart builds the chart visible to branchID.
func (l *Ledger) LoadChart(_ context.Context, branchID *int64) (*accounts.Chart, error) {
	l.ChartLoads++
	scope := shared.Scope{BranchID: branchID}
	var groups []accounts.Group
	for _, g := range l.groups {
		if scope.Covers(g.BranchID) {
			groups = append(groups, g)
		}
	}
	var accts []accounts.Account
	for _, a := range l.accounts {
		if scope.Covers(a.BranchID) {
			accts = append(accts, a)
		}
	}
	return accounts.NewChart(branchID, groups, accts)
}

func (l *Ledger) matches(p posting, branchID *int64, from, toExcl *time.Time) bool {
	if p.status != "posted" {
		return false
	}
	if branchID != nil && (p.branchID == nil || *p.branchID != *branchID) {
		return false
	}
	if from != nil && p.date.Before(*from) {
		return false
	}
	if toExcl != nil && !p.date.Before(*toExcl) {
		return false
	}
	return true
}

// NetByAccount implements balances.Store.
func (l *Ledger) NetByAccount(_ context.Context, scope shared.Scope) (map[int64]decimal.Decimal, error) {
	l.Queries++
	return l.nets(scope, nil), nil
}

// NetForAccounts implements balances.Store.
func (l *Ledger) NetForAccounts(_ context.Context, scope shared.Scope, ids []int64) (map[int64]decimal.Decimal, error) {
	l.Queries++
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return l.nets(scope, want), nil
}

func (l *Ledger) nets(scope shared.Scope, want map[int64]bool) map[int64]decimal.Decimal {
	out := map[int64]decimal.Decimal{}
	from, to := scope.FromBound(), scope.ToExclusive()
	for _, p := range l.postings {
		if !l.matches(p, scope.BranchID, from, to) {
			continue
		}
		for _, line := range p.lines {
			if want != nil && !want[line.AccountID] {
				continue
			}
			out[line.AccountID] = out[line.AccountID].Add(line.Debit).Sub(line.Credit)
		}
	}
	return out
}

// Movements implements balances.Store.
func (l *Ledger) Movements(_ context.Context, branchID *int64, from, to *time.Time) (map[int64]balances.Movement, error) {
	l.Queries++
	scope := shared.Scope{BranchID: branchID, From: from, To: to}
	lower, upper := scope.FromBound(), scope.ToExclusive()
	out := map[int64]balances.Movement{}
	for _, p := range l.postings {
		if !l.matches(p, branchID, nil, upper) {
			continue
		}
		opening := lower != nil && p.date.Before(*lower)
		for _, line := range p.lines {
			m := out[line.AccountID]
			m.AccountID = line.AccountID
			if opening {
				m.OpeningDebit = m.OpeningDebit.Add(line.Debit)
				m.OpeningCredit = m.OpeningCredit.Add(line.Credit)
			} else {
				m.PeriodDebit = m.PeriodDebit.Add(line.Debit)
				m.PeriodCredit = m.PeriodCredit.Add(line.Credit)
			}
			out[line.AccountID] = m
		}
	}
	return out, nil
}

// AccountIDsAfter implements balances.Store.
func (l *Ledger) AccountIDsAfter(_ context.Context, branchID *int64, after int64, limit int) ([]int64, error) {
	scope := shared.Scope{BranchID: branchID}
	var ids []int64
	for _, a := range l.accounts {
		if a.ID > after && scope.Covers(a.BranchID) {
			ids = append(ids, a.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// AccountBranch implements balances.Store.
func (l *Ledger) AccountBranch(_ context.Context, id int64) (*int64, bool, error) {
	for _, a := range l.accounts {
		if a.ID == id {
			return a.BranchID, true, nil
		}
	}
	return nil, false, nil
}

// GroupBranch implements balances.Store.
func (l *Ledger) GroupBranch(_ context.Context, id int64) (*int64, bool, error) {
	for _, g := range l.groups {
		if g.ID == id {
			return g.BranchID, true, nil
		}
	}
	return nil, false, nil
}

// AccountEntries lists posted lines of an account ordered by date,
// transaction id and entry id.
func (l *Ledger) AccountEntries(_ context.Context, accountID int64, scope shared.Scope) ([]journals.AccountEntry, error) {
	var out []journals.AccountEntry
	l.visit(accountID, "posted", scope, func(e journals.AccountEntry) { out = append(out, e) })
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].TransactionID != out[j].TransactionID {
			return out[i].TransactionID < out[j].TransactionID
		}
		return out[i].EntryID < out[j].EntryID
	})
	return out, nil
}

// DraftSummary totals draft lines of an account.
func (l *Ledger) DraftSummary(_ context.Context, accountID int64, scope shared.Scope) (journals.DraftSummary, error) {
	var sum journals.DraftSummary
	l.visit(accountID, "draft", scope, func(e journals.AccountEntry) {
		sum.Count++
		sum.Debit = sum.Debit.Add(e.Debit)
		sum.Credit = sum.Credit.Add(e.Credit)
	})
	return sum, nil
}

func (l *Ledger) visit(accountID int64, status string, scope shared.Scope, fn func(journals.AccountEntry)) {
	from, to := scope.FromBound(), scope.ToExclusive()
	var entryID int64
	for i, p := range l.postings {
		for _, line := range p.lines {
			entryID++
			if p.status != status || line.AccountID != accountID {
				continue
			}
			if scope.BranchID != nil && (p.branchID == nil || *p.branchID != *scope.BranchID) {
				continue
			}
			if (from != nil && p.date.Before(*from)) || (to != nil && !p.date.Before(*to)) {
				continue
			}
			fn(journals.AccountEntry{
				EntryID:       entryID,
				TransactionID: int64(i + 1),
				Date:          p.date,
				VoucherNumber: fmt.Sprintf("JV%04d", i+1),
				Type:          journals.TypeJournalVoucher,
				Debit:         line.Debit,
				Credit:        line.Credit,
			})
		}
	}
}

// FindUnbalanced lists posted transactions whose debits and credits differ.
func (l *Ledger) FindUnbalanced(_ context.Context, branchID *int64, limit int) ([]journals.Imbalance, error) {
	var out []journals.Imbalance
	for i, p := range l.postings {
		if !l.matches(p, branchID, nil, nil) {
			continue
		}
		var dr, cr decimal.Decimal
		for _, line := range p.lines {
			dr = dr.Add(line.Debit)
			cr = cr.Add(line.Credit)
		}
		if dr.Equal(cr) {
			continue
		}
		out = append(out, journals.Imbalance{
			TransactionID: int64(i + 1),
			BranchID:      p.branchID,
			VoucherNumber: fmt.Sprintf("JV%04d", i+1),
			Debit:         dr,
			Credit:        cr,
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
