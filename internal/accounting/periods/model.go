package periods

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/ledger-core/internal/accounting/shared"
)

// DefaultStartMonth opens the fiscal year on April 1.
const DefaultStartMonth = time.April

// Period is an inclusive fiscal window.
type Period struct {
	Code      string    `json:"code"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	day := shared.StartOfDay(t)
	return !day.Before(p.StartDate) && !day.After(p.EndDate)
}

// Calendar derives fiscal years from a fixed start month.
type Calendar struct {
	StartMonth time.Month
}

// NewCalendar builds a calendar, falling back to April for invalid months.
func NewCalendar(startMonth int) Calendar {
	if startMonth < 1 || startMonth > 12 {
		return Calendar{StartMonth: DefaultStartMonth}
	}
	return Calendar{StartMonth: time.Month(startMonth)}
}

func (c Calendar) month() time.Month {
	if c.StartMonth < time.January || c.StartMonth > time.December {
		return DefaultStartMonth
	}
	return c.StartMonth
}

// YearStart returns the first day of the fiscal year containing asOf.
func (c Calendar) YearStart(asOf time.Time) time.Time {
	m := c.month()
	year := asOf.Year()
	if asOf.Month() < m {
		year--
	}
	return time.Date(year, m, 1, 0, 0, 0, 0, asOf.Location())
}

// Year returns the fiscal year containing asOf.
func (c Calendar) Year(asOf time.Time) Period {
	start := c.YearStart(asOf)
	end := start.AddDate(1, 0, -1)
	code := fmt.Sprintf("FY%d", start.Year())
	if c.month() != time.January {
		code = fmt.Sprintf("FY%d-%02d", start.Year(), (start.Year()+1)%100)
	}
	return Period{Code: code, StartDate: start, EndDate: end}
}

// Range fills missing report bounds: from defaults to the fiscal year start of
// to, and to defaults to today.
func (c Calendar) Range(from, to *time.Time, today time.Time) (time.Time, time.Time) {
	end := shared.StartOfDay(today)
	if to != nil {
		end = shared.StartOfDay(*to)
	}
	start := c.YearStart(end)
	if from != nil {
		start = shared.StartOfDay(*from)
	}
	return start, end
}
