package accounts

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

// CreateGroupInput describes a new account group.
type CreateGroupInput struct {
	BranchID    *int64        `json:"branch_id"`
	ParentID    *int64        `json:"parent_id"`
	Code        string        `json:"code" validate:"required,max=32"`
	Name        string        `json:"name" validate:"required,max=160"`
	Nature      shared.Nature `json:"nature" validate:"required"`
	MainGroup   MainGroup     `json:"main_group"`
	Role        SystemRole    `json:"system_role"`
	Locked      bool          `json:"locked"`
	Description string        `json:"description"`
	ActorID     int64         `json:"-"`
}

// Normalize trims text fields and fills defaults derived from the nature.
func (in *CreateGroupInput) Normalize() {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if n, ok := shared.ParseNature(string(in.Nature)); ok {
		in.Nature = n
	}
	if in.MainGroup == "" {
		in.MainGroup = DefaultMainGroup(in.Nature)
	}
	if r, ok := ParseSystemRole(string(in.Role)); ok {
		in.Role = r
	}
}

// Validate checks field-level rules. Relationship rules need the store.
func (in CreateGroupInput) Validate() error {
	if in.Code == "" {
		return shared.Invalid("code", "required")
	}
	if in.Name == "" {
		return shared.Invalid("name", "required")
	}
	if !in.Nature.Valid() {
		return shared.Invalid("nature", "must be one of asset, liability, equity, income, expense")
	}
	if !in.MainGroup.Valid() {
		return shared.Invalid("main_group", "unknown main group")
	}
	if !in.Role.Valid() {
		return shared.Invalid("system_role", "unknown system role")
	}
	return nil
}

// DefaultMainGroup maps a nature to the statement it normally appears on.
func DefaultMainGroup(n shared.Nature) MainGroup {
	switch n {
	case shared.NatureIncome, shared.NatureExpense:
		return MainGroupProfitAndLoss
	default:
		return MainGroupBalanceSheet
	}
}

// UpdateGroupInput renames or re-parents a group. Nil fields are unchanged.
type UpdateGroupInput struct {
	ID          int64   `json:"-"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ParentID    *int64  `json:"parent_id"`
	MakeRoot    bool    `json:"make_root"`
	ActorID     int64   `json:"-"`
}

func (in UpdateGroupInput) moves() bool { return in.ParentID != nil || in.MakeRoot }

// Validate checks field-level rules.
func (in UpdateGroupInput) Validate() error {
	if in.ID == 0 {
		return shared.Invalid("id", "required")
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return shared.Invalid("name", "must not be blank")
	}
	if in.ParentID != nil && in.MakeRoot {
		return shared.Invalid("parent_id", "conflicts with make_root")
	}
	if in.ParentID != nil && *in.ParentID == in.ID {
		return shared.Invalid("parent_id", "group cannot be its own parent")
	}
	return nil
}

// CreateAccountInput describes a new postable account.
type CreateAccountInput struct {
	BranchID    *int64          `json:"branch_id"`
	GroupID     int64           `json:"group_id" validate:"required,gt=0"`
	Code        string          `json:"code" validate:"required,max=32"`
	Name        string          `json:"name" validate:"required,max=160"`
	AliasName   string          `json:"alias_name"`
	LedgerType  LedgerType      `json:"ledger_type"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	CreditDays  int             `json:"credit_days" validate:"gte=0"`
	Role        SystemRole      `json:"system_role"`
	Locked      bool            `json:"locked"`
	ActorID     int64           `json:"-"`
}

// Normalize trims text fields and fills defaults.
func (in *CreateAccountInput) Normalize() {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.AliasName = strings.TrimSpace(in.AliasName)
	if in.LedgerType == "" {
		in.LedgerType = LedgerGeneral
	}
	if r, ok := ParseSystemRole(string(in.Role)); ok {
		in.Role = r
	}
}

// Validate checks field-level rules.
func (in CreateAccountInput) Validate() error {
	if in.GroupID == 0 {
		return shared.Invalid("group_id", "required")
	}
	if in.Code == "" {
		return shared.Invalid("code", "required")
	}
	if in.Name == "" {
		return shared.Invalid("name", "required")
	}
	if !in.LedgerType.Valid() {
		return shared.Invalid("ledger_type", "unknown ledger type")
	}
	if in.CreditLimit.IsNegative() {
		return shared.Invalid("credit_limit", "must not be negative")
	}
	if in.CreditDays < 0 {
		return shared.Invalid("credit_days", "must not be negative")
	}
	if !in.Role.Valid() {
		return shared.Invalid("system_role", "unknown system role")
	}
	return nil
}

// UpdateAccountInput edits an account. Nil fields are unchanged.
type UpdateAccountInput struct {
	ID          int64            `json:"-"`
	Name        *string          `json:"name"`
	AliasName   *string          `json:"alias_name"`
	GroupID     *int64           `json:"group_id"`
	CreditLimit *decimal.Decimal `json:"credit_limit"`
	CreditDays  *int             `json:"credit_days"`
	ActorID     int64            `json:"-"`
}

// Validate checks field-level rules.
func (in UpdateAccountInput) Validate() error {
	if in.ID == 0 {
		return shared.Invalid("id", "required")
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return shared.Invalid("name", "must not be blank")
	}
	if in.GroupID != nil && *in.GroupID <= 0 {
		return shared.Invalid("group_id", "must be positive")
	}
	if in.CreditLimit != nil && in.CreditLimit.IsNegative() {
		return shared.Invalid("credit_limit", "must not be negative")
	}
	if in.CreditDays != nil && *in.CreditDays < 0 {
		return shared.Invalid("credit_days", "must not be negative")
	}
	return nil
}

// apply returns a with the requested changes.
func (in UpdateAccountInput) apply(a Account) Account {
	if in.Name != nil {
		a.Name = strings.TrimSpace(*in.Name)
	}
	if in.AliasName != nil {
		a.AliasName = strings.TrimSpace(*in.AliasName)
	}
	if in.GroupID != nil {
		a.GroupID = *in.GroupID
	}
	if in.CreditLimit != nil {
		a.CreditLimit = *in.CreditLimit
	}
	if in.CreditDays != nil {
		a.CreditDays = *in.CreditDays
	}
	return a
}
