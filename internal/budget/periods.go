package budget

import (
	"fmt"
	"time"

	"github.com/billfold/bill-service/internal/models"
)

// periodKey labels the reporting bucket a date falls into. Labels sort
// lexically in chronological order. Custom granularity degrades to
// monthly.
func periodKey(t time.Time, granularity models.Granularity) string {
	switch granularity {
	case models.GranularityQuarterly:
		return fmt.Sprintf("%04d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	case models.GranularityYearly:
		return fmt.Sprintf("%04d", t.Year())
	default:
		return t.Format("2006-01")
	}
}

// calculateMaxPeriods caps how many occurrences one rule may generate
// inside a window: the number of whole periods between start and end,
// at least one.
func calculateMaxPeriods(start, end time.Time, freq models.Frequency) int {
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()) + 1
	periods := months / freq.Months()
	if periods < 1 {
		periods = 1
	}
	return periods
}
