package journals

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

// EntryInput describes one entry of a posting request.
type EntryInput struct {
	AccountID   int64           `json:"account_id" validate:"required,gt=0"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

// PostingInput groups fields required to create a transaction.
type PostingInput struct {
	BranchID     *int64       `json:"branch_id"`
	Type         Type         `json:"type" validate:"required"`
	Date         time.Time    `json:"date" validate:"required"`
	Reference    string       `json:"reference"`
	Narration    string       `json:"narration"`
	SourceModule string       `json:"source_module"`
	SourceID     *uuid.UUID   `json:"source_id"`
	RoundOff     bool         `json:"round_off"`
	Entries      []EntryInput `json:"entries" validate:"required,dive"`
	ActorID      int64        `json:"-"`
}

// Validate enforces the entry rules and the balance rule. When RoundOff is
// set, an imbalance within tolerance is returned instead of rejected so the
// caller can book it to the rounding account.
func (in PostingInput) Validate(tolerance decimal.Decimal) (decimal.Decimal, error) {
	if !in.Type.Valid() {
		return decimal.Zero, shared.Invalid("type", "unknown transaction type")
	}
	if in.Date.IsZero() {
		return decimal.Zero, shared.Invalid("date", "required")
	}
	if (strings.TrimSpace(in.SourceModule) == "") != (in.SourceID == nil) {
		return decimal.Zero, shared.Invalid("source_id", "source_module and source_id go together")
	}
	if len(in.Entries) < 2 {
		return decimal.Zero, shared.InvalidBecause("entries", shared.ErrTooFewEntries)
	}
	var debit, credit decimal.Decimal
	for idx, e := range in.Entries {
		if err := e.validate(idx); err != nil {
			return decimal.Zero, err
		}
		debit = debit.Add(e.Debit)
		credit = credit.Add(e.Credit)
	}
	diff := debit.Sub(credit)
	if diff.IsZero() {
		return decimal.Zero, nil
	}
	if in.RoundOff && diff.Abs().LessThanOrEqual(tolerance) {
		return diff, nil
	}
	return decimal.Zero, &shared.ValidationError{
		Field:  "entries",
		Reason: fmt.Sprintf("debits %s do not equal credits %s", debit.StringFixed(2), credit.StringFixed(2)),
		Err:    shared.ErrUnbalanced,
	}
}

func (e EntryInput) validate(idx int) error {
	field := fmt.Sprintf("entries[%d]", idx)
	if e.AccountID <= 0 {
		return shared.Invalid(field+".account_id", "required")
	}
	if e.Debit.IsNegative() || e.Credit.IsNegative() {
		return shared.Invalid(field, "amounts must not be negative")
	}
	if e.Debit.IsPositive() && e.Credit.IsPositive() {
		return shared.Invalid(field, "entry cannot carry both debit and credit")
	}
	if !e.Debit.IsPositive() && !e.Credit.IsPositive() {
		return shared.Invalid(field, "entry needs a debit or a credit")
	}
	if !e.Debit.Equal(e.Debit.Round(2)) || !e.Credit.Equal(e.Credit.Round(2)) {
		return shared.Invalid(field, "amounts carry at most two decimal places")
	}
	return nil
}

// balancingEntry books diff (debit minus credit) to accountID.
func balancingEntry(accountID int64, diff decimal.Decimal, description string) EntryInput {
	e := EntryInput{AccountID: accountID, Description: description}
	if diff.IsPositive() {
		e.Credit = diff
	} else {
		e.Debit = diff.Neg()
	}
	return e
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	TransactionID int64      `json:"-"`
	Date          *time.Time `json:"date"`
	Narration     string     `json:"narration"`
	ActorID       int64      `json:"-"`
}

// OpeningLine is one account's opening position.
type OpeningLine struct {
	AccountID int64           `json:"account_id" validate:"required,gt=0"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

// OpeningBalanceInput posts opening positions for a branch.
type OpeningBalanceInput struct {
	BranchID *int64        `json:"branch_id"`
	Date     time.Time     `json:"date" validate:"required"`
	Lines    []OpeningLine `json:"lines" validate:"required,min=1,dive"`
	ActorID  int64         `json:"-"`
}

// StatusChange carries an actor and optional reason for lifecycle moves.
type StatusChange struct {
	TransactionID int64  `json:"-"`
	Reason        string `json:"reason"`
	ActorID       int64  `json:"-"`
}
