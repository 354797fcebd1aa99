package shared

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format accepted on every report boundary.
const DateLayout = "2006-01-02"

// Scope narrows balance computations to a branch and an inclusive date window.
// Nil fields are unbounded.
type Scope struct {
	BranchID *int64
	From     *time.Time
	To       *time.Time
}

// FromBound returns the inclusive lower bound truncated to midnight.
func (s Scope) FromBound() *time.Time {
	if s.From == nil {
		return nil
	}
	d := StartOfDay(*s.From)
	return &d
}

// ToExclusive returns the first instant after the inclusive upper day.
func (s Scope) ToExclusive() *time.Time {
	if s.To == nil {
		return nil
	}
	d := StartOfDay(*s.To).AddDate(0, 0, 1)
	return &d
}

// Before returns a scope covering everything strictly before day.
func (s Scope) Before(day time.Time) Scope {
	prev := StartOfDay(day).AddDate(0, 0, -1)
	return Scope{BranchID: s.BranchID, To: &prev}
}

// Validate rejects inverted ranges.
func (s Scope) Validate() error {
	if s.From != nil && s.To != nil && StartOfDay(*s.To).Before(StartOfDay(*s.From)) {
		return Invalid("date_to", "must not be before date_from")
	}
	return nil
}

// Key renders the scope for cache keys and log fields.
func (s Scope) Key() string {
	return fmt.Sprintf("%s:%s:%s", BranchToken(s.BranchID), dateToken(s.From), dateToken(s.To))
}

// Covers reports whether a row owned by branchID is visible in the scope.
// Global rows (nil branch) are visible everywhere.
func (s Scope) Covers(branchID *int64) bool {
	if s.BranchID == nil || branchID == nil {
		return true
	}
	return *branchID == *s.BranchID
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDate parses an optional YYYY-MM-DD value.
func ParseDate(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil, Invalid(field, "expected YYYY-MM-DD")
	}
	return &t, nil
}

// BranchToken renders an optional branch for keys.
func BranchToken(branchID *int64) string {
	if branchID == nil {
		return "all"
	}
	return strconv.FormatInt(*branchID, 10)
}

func dateToken(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(DateLayout)
}

// SameBranch compares two optional branch ids.
func SameBranch(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Cents is the tolerance used by every balance check.
var Cents = decimal.New(1, -2)

// SplitSide splits a debit-natural net into debit and credit columns.
func SplitSide(net decimal.Decimal) (debit, credit decimal.Decimal) {
	if net.IsPositive() {
		return net, decimal.Zero
	}
	return decimal.Zero, net.Neg()
}

// Percent returns num/den*100 rounded to two places, or zero when den is zero.
func Percent(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den).Mul(decimal.NewFromInt(100)).Round(2)
}
