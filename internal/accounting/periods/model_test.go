package periods

import (
	"testing"
	"time"
)

func TestYearStartDefaultsToApril(t *testing.T) {
	cal := NewCalendar(0)
	cases := map[time.Time]time.Time{
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC): time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC):  time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 5, 0, 0, 0, 0, time.UTC): time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	for asOf, want := range cases {
		if got := cal.YearStart(asOf); !got.Equal(want) {
			t.Fatalf("YearStart(%s) = %s, want %s", asOf.Format("2006-01-02"), got, want)
		}
	}
}

func TestYearCodeAndBounds(t *testing.T) {
	fy := NewCalendar(4).Year(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	if fy.Code != "FY2024-25" {
		t.Fatalf("unexpected code %s", fy.Code)
	}
	if !fy.EndDate.Equal(time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %s", fy.EndDate)
	}
	if !fy.Contains(time.Date(2025, 3, 31, 18, 0, 0, 0, time.UTC)) || fy.Contains(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected containment")
	}
	if code := NewCalendar(1).Year(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)).Code; code != "FY2024" {
		t.Fatalf("calendar-year code %s", code)
	}
}

func TestRangeDefaults(t *testing.T) {
	cal := NewCalendar(4)
	today := time.Date(2024, 8, 15, 13, 0, 0, 0, time.UTC)
	from, to := cal.Range(nil, nil, today)
	if !from.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)) || !to.Equal(time.Date(2024, 8, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected default range %s..%s", from, to)
	}
	explicit := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	from, _ = cal.Range(&explicit, nil, today)
	if !from.Equal(explicit) {
		t.Fatalf("explicit from must win, got %s", from)
	}
}
