package journals

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status enumerates the transaction lifecycle.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusPosted          Status = "posted"
	StatusCancelled       Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPendingApproval, StatusApproved, StatusRejected, StatusPosted, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s Status) CanTransition(next Status) bool {
	switch next {
	case StatusPendingApproval:
		return s == StatusDraft
	case StatusApproved, StatusRejected:
		return s == StatusPendingApproval
	case StatusPosted:
		return s == StatusDraft || s == StatusApproved
	case StatusCancelled:
		return s != StatusCancelled
	}
	return false
}

// Type classifies the business event behind a transaction.
type Type string

const (
	TypeCourseFee             Type = "course_fee"
	TypePayroll               Type = "payroll"
	TypeSaleInvoice           Type = "sale_invoice"
	TypeSaleReturn            Type = "sale_return"
	TypePurchaseInvoice       Type = "purchase_invoice"
	TypePurchaseReturn        Type = "purchase_return"
	TypePayment               Type = "payment"
	TypeReceipt               Type = "receipt"
	TypeJournalVoucher        Type = "journal_voucher"
	TypeIncome                Type = "income"
	TypeExpense               Type = "expense"
	TypeContra                Type = "contra"
	TypeOpeningBalance        Type = "opening_balance"
	TypeStakeholderInvestment Type = "stakeholder_investment"
	TypeStakeholderWithdrawal Type = "stakeholder_withdrawal"
	TypeCreditNote            Type = "credit_note"
	TypeDebitNote             Type = "debit_note"
	TypeSaleOrder             Type = "sale_order"
	TypePurchaseOrder         Type = "purchase_order"
)

// Valid reports whether t is a known transaction type.
func (t Type) Valid() bool {
	switch t {
	case TypeCourseFee, TypePayroll, TypeSaleInvoice, TypeSaleReturn, TypePurchaseInvoice,
		TypePurchaseReturn, TypePayment, TypeReceipt, TypeJournalVoucher, TypeIncome, TypeExpense,
		TypeContra, TypeOpeningBalance, TypeStakeholderInvestment, TypeStakeholderWithdrawal,
		TypeCreditNote, TypeDebitNote, TypeSaleOrder, TypePurchaseOrder:
		return true
	}
	return false
}

// VoucherPrefix returns the numbering series for the type.
func (t Type) VoucherPrefix() string {
	switch t {
	case TypeSaleInvoice:
		return "SI"
	case TypeSaleOrder:
		return "SO"
	case TypeCreditNote, TypeSaleReturn:
		return "CN"
	case TypePurchaseInvoice:
		return "PI"
	case TypePurchaseOrder:
		return "PO"
	case TypeDebitNote, TypePurchaseReturn:
		return "DN"
	case TypeReceipt:
		return "RCP"
	case TypePayment:
		return "PAY"
	case TypeJournalVoucher:
		return "JV"
	case TypeIncome:
		return "INC"
	case TypeExpense:
		return "EXP"
	case TypeContra:
		return "CTR"
	case TypeOpeningBalance:
		return "OB"
	case TypeStakeholderInvestment, TypeStakeholderWithdrawal:
		return "STK"
	default:
		return "INV"
	}
}

// FormatVoucher renders a voucher number from its series and sequence.
func FormatVoucher(prefix string, seq int64) string {
	return fmt.Sprintf("%s%04d", prefix, seq)
}

// Transaction is a voucher header with its entries.
type Transaction struct {
	ID            int64           `json:"id"`
	BranchID      *int64          `json:"branch_id,omitempty"`
	Type          Type            `json:"type"`
	Status        Status          `json:"status"`
	Date          time.Time       `json:"date"`
	VoucherNumber string          `json:"voucher_number"`
	Reference     string          `json:"reference,omitempty"`
	Narration     string          `json:"narration,omitempty"`
	Remark        string          `json:"remark,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	SourceModule  *string         `json:"source_module,omitempty"`
	SourceID      *uuid.UUID      `json:"source_id,omitempty"`
	ReversalOf    *int64          `json:"reversal_of,omitempty"`
	CreatedBy     *int64          `json:"created_by,omitempty"`
	PostedBy      *int64          `json:"posted_by,omitempty"`
	PostedAt      *time.Time      `json:"posted_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     *time.Time      `json:"deleted_at,omitempty"`
	Entries       []Entry         `json:"entries"`
}

// Entry is one debit or credit line. Entries are never mutated.
type Entry struct {
	ID            int64           `json:"id"`
	TransactionID int64           `json:"transaction_id"`
	AccountID     int64           `json:"account_id"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	DeletedAt     *time.Time      `json:"deleted_at,omitempty"`
}

// Totals sums both sides of a set of entries.
func Totals(entries []Entry) (debit, credit decimal.Decimal) {
	for _, e := range entries {
		debit = debit.Add(e.Debit)
		credit = credit.Add(e.Credit)
	}
	return debit, credit
}

// AccountRef is the slice of an account a posting needs to check.
type AccountRef struct {
	ID       int64
	BranchID *int64
	Code     string
}

// Imbalance describes a posted transaction whose entries do not balance.
type Imbalance struct {
	TransactionID int64           `json:"transaction_id"`
	BranchID      *int64          `json:"branch_id,omitempty"`
	VoucherNumber string          `json:"voucher_number"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
}

// ListFilter narrows transaction listings.
type ListFilter struct {
	BranchID *int64
	Status   Status
	From     *time.Time
	To       *time.Time
	Limit    int
}

// AccountEntry is a posted entry seen from one account's ledger.
type AccountEntry struct {
	EntryID       int64           `json:"entry_id"`
	TransactionID int64           `json:"transaction_id"`
	Date          time.Time       `json:"date"`
	VoucherNumber string          `json:"voucher_number"`
	Type          Type            `json:"type"`
	Narration     string          `json:"narration,omitempty"`
	Description   string          `json:"description,omitempty"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
}

// DraftSummary totals draft entries; it never affects a balance.
type DraftSummary struct {
	Count  int             `json:"count"`
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
}
