// Package pattern infers recurrence from historical bills that carry no
// explicit rule.
package pattern

import (
	"math"
	"sort"
	"time"

	"github.com/billfold/bill-service/internal/models"
)

// band maps a mean-interval window in days to a frequency.
type band struct {
	Min, Max  float64
	Frequency models.Frequency
}

// FrequencyBands classifies a mean interval between bills. Intervals
// outside every band yield no frequency.
var FrequencyBands = []band{
	{25, 35, models.FrequencyMonthly},
	{85, 95, models.FrequencyQuarterly},
	{175, 185, models.FrequencyBiannually},
	{360, 370, models.FrequencyYearly},
}

// Config holds the detector thresholds.
type Config struct {
	// MinGroupSize is the minimum number of bills with one matching key
	// before a series is considered at all.
	MinGroupSize int
	// MinConfidence is the acceptance threshold for a detected pattern.
	MinConfidence float64
}

// DefaultConfig returns the stock detector thresholds.
func DefaultConfig() Config {
	return Config{
		MinGroupSize:  3,
		MinConfidence: 0.6,
	}
}

// Detected is a recurrence inferred from history. It is transient and
// recomputed per analysis run.
type Detected struct {
	Bills      []models.Bill
	Frequency  models.Frequency
	Confidence float64
	DayOfMonth int
}

// Key returns the matching key shared by the detected group.
func (d Detected) Key() models.MatchKey {
	return d.Bills[0].Key()
}

// AverageAmount returns the mean amount of the detected group.
func (d Detected) AverageAmount() float64 {
	var sum float64
	for _, b := range d.Bills {
		sum += b.Amount
	}
	return sum / float64(len(d.Bills))
}

// LastDueDate returns the latest due date in the detected group.
func (d Detected) LastDueDate() time.Time {
	return d.Bills[len(d.Bills)-1].DueDate
}

// Detect groups bills without an explicit rule by matching key and keeps
// every group whose interval statistics identify a frequency with
// sufficient confidence. Results are ordered by matching key so repeated
// runs over the same snapshot produce identical output.
func Detect(bills []models.Bill, cfg Config) []Detected {
	groups := make(map[models.MatchKey][]models.Bill)
	for _, b := range bills {
		if b.Rule != nil {
			continue
		}
		groups[b.Key()] = append(groups[b.Key()], b)
	}

	keys := make([]models.MatchKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.CategoryID != b.CategoryID {
			return a.CategoryID < b.CategoryID
		}
		if a.VendorID != b.VendorID {
			return a.VendorID < b.VendorID
		}
		return a.VendorAccountID < b.VendorAccountID
	})

	var results []Detected
	for _, k := range keys {
		group := groups[k]
		if len(group) < cfg.MinGroupSize {
			continue
		}
		// Re-check full key equality against the first member; the
		// grouping above already guarantees it, but the detection math
		// must never mix series.
		template := group[0]
		matching := make([]models.Bill, 0, len(group))
		for _, b := range group {
			if models.SameSeries(template, b) {
				matching = append(matching, b)
			}
		}
		det := DetectRecurrence(matching)
		if det.Frequency == "" || det.Confidence <= cfg.MinConfidence {
			continue
		}
		results = append(results, det)
	}
	return results
}

// DetectRecurrence runs interval detection over one group of bills.
// Fewer than the minimum of three bills, or a mean interval outside
// every frequency band, yields no frequency and confidence 0.
func DetectRecurrence(bills []models.Bill) Detected {
	det := Detected{Bills: sortByDueDate(bills)}
	if len(det.Bills) < 3 {
		return det
	}

	intervals := make([]float64, 0, len(det.Bills)-1)
	for i := 1; i < len(det.Bills); i++ {
		days := det.Bills[i].DueDate.Sub(det.Bills[i-1].DueDate).Hours() / 24
		intervals = append(intervals, days)
	}

	avgInterval := mean(intervals)
	for _, b := range FrequencyBands {
		if avgInterval >= b.Min && avgInterval <= b.Max {
			det.Frequency = b.Frequency
			break
		}
	}
	if det.Frequency == "" {
		return det
	}

	consistency := math.Max(0, 1-coefficientOfVariation(intervals))
	sampleSize := math.Min(0.8, float64(len(det.Bills))/12)

	amounts := make([]float64, len(det.Bills))
	for i, b := range det.Bills {
		amounts[i] = b.Amount
	}
	amountConsistency := math.Max(0, 1-math.Min(1, coefficientOfVariation(amounts)))

	det.Confidence = clamp01(0.5*consistency + 0.3*sampleSize + 0.2*amountConsistency)

	if det.Frequency == models.FrequencyMonthly {
		det.DayOfMonth = modeDayOfMonth(det.Bills)
	}
	return det
}

// modeDayOfMonth returns the most common due day across the group,
// first-seen winning on ties.
func modeDayOfMonth(bills []models.Bill) int {
	counts := make(map[int]int)
	best, bestCount := 0, 0
	for _, b := range bills {
		day := b.DueDate.Day()
		counts[day]++
		if counts[day] > bestCount {
			best, bestCount = day, counts[day]
		}
	}
	return best
}

func sortByDueDate(bills []models.Bill) []models.Bill {
	sorted := make([]models.Bill, len(bills))
	copy(sorted, bills)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].DueDate.Equal(sorted[j].DueDate) {
			return sorted[i].DueDate.Before(sorted[j].DueDate)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// coefficientOfVariation is the population standard deviation divided by
// the mean. A zero mean yields 1 (maximally inconsistent); a zero
// deviation yields 0, keeping confidence scoring defined.
func coefficientOfVariation(values []float64) float64 {
	avg := mean(values)
	if avg <= 0 {
		return 1
	}
	var sumSq float64
	for _, v := range values {
		d := v - avg
		sumSq += d * d
	}
	stdDev := math.Sqrt(sumSq / float64(len(values)))
	return stdDev / avg
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
