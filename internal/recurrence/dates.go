// Package recurrence computes due dates of explicit recurrence rules.
// It is pure date arithmetic with no dependencies on the rest of the
// engine.
package recurrence

import (
	"fmt"
	"time"

	"github.com/billfold/bill-service/internal/models"
)

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// withDay places t on the given day of its month, clamped to the actual
// month length.
func withDay(t time.Time, dayOfMonth int) time.Time {
	day := dayOfMonth
	if max := DaysInMonth(t.Year(), t.Month()); day > max {
		day = max
	}
	return time.Date(t.Year(), t.Month(), day, 0, 0, 0, 0, time.UTC)
}

// NextDueDate advances lastDate by one period of the given frequency and
// places the result on dayOfMonth, clamped to the target month length.
// The second return is false if the result would fall after endDate.
func NextDueDate(lastDate time.Time, freq models.Frequency, dayOfMonth int, endDate *time.Time) (time.Time, bool) {
	// Anchor on the first of the month before stepping so that e.g.
	// Jan 31 + 1 month lands in February, not March.
	anchor := time.Date(lastDate.Year(), lastDate.Month(), 1, 0, 0, 0, 0, time.UTC)
	next := withDay(anchor.AddDate(0, freq.Months(), 0), dayOfMonth)
	if endDate != nil && next.After(*endDate) {
		return time.Time{}, false
	}
	return next, true
}

// UpcomingDueDates lists due dates of a rule starting at startDate. The
// first result is startDate's month placed on dayOfMonth (or the next
// period if that falls before startDate); generation stops at count
// results or at endDate, whichever comes first.
func UpcomingDueDates(startDate time.Time, freq models.Frequency, dayOfMonth int, endDate *time.Time, count int) []time.Time {
	dates := make([]time.Time, 0, count)
	cur := withDay(startDate, dayOfMonth)
	ok := true
	if cur.Before(startDate) {
		cur, ok = NextDueDate(cur, freq, dayOfMonth, endDate)
	} else if endDate != nil && cur.After(*endDate) {
		ok = false
	}
	for ok && len(dates) < count {
		dates = append(dates, cur)
		cur, ok = NextDueDate(cur, freq, dayOfMonth, endDate)
	}
	return dates
}

// ValidateRule checks a recurrence rule for internal consistency. A nil
// return means the rule is valid; errors are reported, never fatal.
func ValidateRule(freq models.Frequency, dayOfMonth int, startDate time.Time, endDate *time.Time) error {
	if !freq.Valid() {
		return fmt.Errorf("unknown frequency %q", freq)
	}
	if dayOfMonth < 1 || dayOfMonth > 31 {
		return fmt.Errorf("day of month %d out of range 1-31", dayOfMonth)
	}
	if max := DaysInMonth(startDate.Year(), startDate.Month()); dayOfMonth > max {
		return fmt.Errorf("day of month %d exceeds the %d days of the start month", dayOfMonth, max)
	}
	if endDate != nil && endDate.Before(startDate) {
		return fmt.Errorf("end date %s before start date %s",
			endDate.Format("2006-01-02"), startDate.Format("2006-01-02"))
	}
	return nil
}
