package contract

import (
	"strings"
	"time"
)

// BillingCycle is how often a contract is billed.
type BillingCycle string

const (
	CycleWeekly   BillingCycle = "weekly"
	CycleBiweekly BillingCycle = "biweekly"
	CycleMonthly  BillingCycle = "monthly"
	CycleOneTime  BillingCycle = "one_time"
)

// ParseBillingCycle maps user input onto a known cycle, case-insensitively.
func ParseBillingCycle(s string) (BillingCycle, bool) {
	c := BillingCycle(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CycleWeekly, CycleBiweekly, CycleMonthly, CycleOneTime:
		return c, true
	}
	return "", false
}

// NextDueDate returns the next occurrence of cycle after anchor.
// Monthly never overflows into the following month: Jan 31 becomes the
// last day of February. Unknown cycles and one_time return anchor unchanged.
func NextDueDate(cycle BillingCycle, anchor time.Time) time.Time {
	switch cycle {
	case CycleWeekly:
		return anchor.AddDate(0, 0, 7)
	case CycleBiweekly:
		return anchor.AddDate(0, 0, 14)
	case CycleMonthly:
		return addMonthClamped(anchor, 1)
	default:
		return anchor
	}
}

// NextDueDateFromDayOfMonth returns the first date on or after anchor that
// falls on day (clamped to [1,31] and to the month's length).
func NextDueDateFromDayOfMonth(day int, anchor time.Time) time.Time {
	if day < 1 {
		day = 1
	}
	if day > 31 {
		day = 31
	}

	candidate := dateInMonth(anchor.Year(), anchor.Month(), day, anchor)
	if candidate.Before(anchor) {
		first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location()).AddDate(0, 1, 0)
		candidate = dateInMonth(first.Year(), first.Month(), day, anchor)
	}
	return candidate
}

func addMonthClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	return dateInMonth(first.Year(), first.Month(), t.Day(), t)
}

// dateInMonth builds year-month-day keeping the clock of ref, clamping day
// to the number of days in that month.
func dateInMonth(year int, month time.Month, day int, ref time.Time) time.Time {
	if last := daysIn(year, month, ref.Location()); day > last {
		day = last
	}
	return time.Date(year, month, day, ref.Hour(), ref.Minute(), ref.Second(), ref.Nanosecond(), ref.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
