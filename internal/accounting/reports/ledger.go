package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/accounts"
	"github.com/odyssey-erp/ledger-core/internal/accounting/journals"
	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

// LedgerAccount identifies the account a ledger report is about.
type LedgerAccount struct {
	ID     int64         `json:"id"`
	Code   string        `json:"code"`
	Name   string        `json:"name"`
	Nature shared.Nature `json:"nature"`
}

// LedgerLine is a posted entry with the running debit-natural balance.
type LedgerLine struct {
	journals.AccountEntry
	Balance decimal.Decimal `json:"balance"`
}

// Ledger is the account statement for a window.
type Ledger struct {
	Account         LedgerAccount         `json:"account"`
	BranchID        *int64                `json:"branch_id,omitempty"`
	From            *time.Time            `json:"date_from,omitempty"`
	To              *time.Time            `json:"date_to,omitempty"`
	Opening         decimal.Decimal       `json:"opening_balance"`
	Lines           []LedgerLine          `json:"lines"`
	TotalDebit      decimal.Decimal       `json:"total_debit"`
	TotalCredit     decimal.Decimal       `json:"total_credit"`
	Closing         decimal.Decimal       `json:"closing_balance"`
	ClosingReported decimal.Decimal       `json:"closing_reported"`
	Drafts          journals.DraftSummary `json:"drafts"`
}

// BuildLedger runs the balance from opening through entries, which must
// already be ordered by date, posting sequence and entry id.
func BuildLedger(acct accounts.Account, nature shared.Nature, scope shared.Scope, opening decimal.Decimal, entries []journals.AccountEntry, drafts journals.DraftSummary) Ledger {
	l := Ledger{
		Account:  LedgerAccount{ID: acct.ID, Code: acct.Code, Name: acct.Name, Nature: nature},
		BranchID: scope.BranchID,
		From:     scope.From,
		To:       scope.To,
		Opening:  opening,
		Lines:    make([]LedgerLine, 0, len(entries)),
		Drafts:   drafts,
	}
	running := opening
	for _, e := range entries {
		running = running.Add(e.Debit).Sub(e.Credit)
		l.TotalDebit = l.TotalDebit.Add(e.Debit)
		l.TotalCredit = l.TotalCredit.Add(e.Credit)
		l.Lines = append(l.Lines, LedgerLine{AccountEntry: e, Balance: running})
	}
	l.Closing = opening.Add(l.TotalDebit).Sub(l.TotalCredit)
	l.ClosingReported = shared.Present(nature, l.Closing)
	return l
}
