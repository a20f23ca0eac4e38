// Package budget drives the forecasting engine end to end: explicit
// rule expansion, detected-pattern gap fill, reconciliation against
// actual bills, and period bucketing of the result.
package budget

import (
	"sort"
	"time"

	"github.com/billfold/bill-service/internal/forecast"
	"github.com/billfold/bill-service/internal/models"
	"github.com/billfold/bill-service/internal/pattern"
	"github.com/billfold/bill-service/internal/recurrence"
)

// Config bundles the tunable thresholds of the whole engine.
type Config struct {
	Pattern  pattern.Config
	Forecast forecast.Config
}

// DefaultConfig returns the stock thresholds for all engine layers.
func DefaultConfig() Config {
	return Config{
		Pattern:  pattern.DefaultConfig(),
		Forecast: forecast.DefaultConfig(),
	}
}

// GenerateBudgetPredictions projects recurring spend across the given
// window and groups it into reporting periods. templates are the bills
// that may carry an explicit recurrence rule; actuals are real bills
// inside the window; historical are bills preceding it, used for
// implicit pattern detection and seasonal forecasting. The computation
// is pure and deterministic: the same snapshot always yields the same
// report.
func GenerateBudgetPredictions(
	templates []models.Bill,
	start, end time.Time,
	granularity models.Granularity,
	actuals, historical []models.Bill,
	cfg Config,
) []models.BudgetPeriod {
	ruled := ruledTemplates(templates)

	var occurrences []models.PredictedOccurrence
	templateByID := make(map[string]models.Bill)
	seriesByID := make(map[string][]forecast.Point)
	ruleKeys := make(map[models.MatchKey]struct{})

	// Explicit rules first; they own their matching key outright.
	for _, tpl := range ruled {
		rule := tpl.Rule
		windowStart := start
		if rule.StartDate.After(windowStart) {
			windowStart = rule.StartDate
		}
		windowEnd := end
		if rule.EndDate != nil && rule.EndDate.Before(windowEnd) {
			windowEnd = *rule.EndDate
		}
		if windowEnd.Before(windowStart) {
			continue
		}
		ruleKeys[tpl.Key()] = struct{}{}

		matching := billsMatchingKey(actuals, tpl.Key())
		sparse := len(matching) < cfg.Forecast.MinTrendPoints

		points := forecast.PointsFromBills(matching)
		if sparse {
			points = forecast.PadSynthetic(points, tpl.DueDate, tpl.Amount, rule.Frequency, cfg.Forecast.MinTrendPoints)
		}
		templateByID[tpl.ID] = tpl
		seriesByID[tpl.ID] = points

		maxPeriods := calculateMaxPeriods(windowStart, windowEnd, rule.Frequency)
		for _, due := range recurrence.UpcomingDueDates(windowStart, rule.Frequency, rule.DayOfMonth, &windowEnd, maxPeriods) {
			occ := models.PredictedOccurrence{
				Title:      tpl.Title,
				Amount:     tpl.Amount,
				DueDate:    due,
				TemplateID: tpl.ID,
				Provenance: models.FromRule,
			}
			if sparse {
				occ.Method = models.MethodSyntheticFill
				occ.Confidence = cfg.Forecast.SyntheticConfidence
			}
			occurrences = append(occurrences, occ)
		}
	}

	// Detected patterns fill the keys no explicit rule covers.
	for _, det := range pattern.Detect(historical, cfg.Pattern) {
		if _, covered := ruleKeys[det.Key()]; covered {
			continue
		}
		occurrences = append(occurrences, expandPattern(det, start, end, actuals, templateByID, seriesByID, cfg)...)
	}

	if actuals != nil {
		occurrences = forecast.Reconcile(occurrences, actuals, templateByID, seriesByID, historical, cfg.Forecast)
	}

	return groupOccurrences(occurrences, granularity)
}

// expandPattern projects a detected series forward from its last
// observed bill through the end of the window. The most recent bill of
// the group acts as the template reference.
func expandPattern(det pattern.Detected, start, end time.Time, actuals []models.Bill, templateByID map[string]models.Bill, seriesByID map[string][]forecast.Point, cfg Config) []models.PredictedOccurrence {
	anchor := det.Bills[len(det.Bills)-1]
	avgAmount := det.AverageAmount()

	day := det.DayOfMonth
	if day == 0 {
		day = anchor.DueDate.Day()
	}

	// Register a synthesized template under the anchor's id so actual
	// bills can claim these occurrences during reconciliation. Its
	// amount is the group mean, not the anchor's own amount: the mean
	// is the base amount of a detected series.
	templateByID[anchor.ID] = models.Bill{
		ID:              anchor.ID,
		Title:           anchor.Title,
		Amount:          avgAmount,
		DueDate:         anchor.DueDate,
		CategoryID:      anchor.CategoryID,
		VendorID:        anchor.VendorID,
		VendorAccountID: anchor.VendorAccountID,
	}
	seriesByID[anchor.ID] = forecast.PointsFromBills(billsMatchingKey(actuals, det.Key()))

	var out []models.PredictedOccurrence
	maxPeriods := calculateMaxPeriods(start, end, det.Frequency)
	cur, ok := recurrence.NextDueDate(det.LastDueDate(), det.Frequency, day, &end)
	for ok && len(out) < maxPeriods {
		if !cur.Before(start) {
			out = append(out, models.PredictedOccurrence{
				Title:      anchor.Title,
				Amount:     avgAmount,
				DueDate:    cur,
				TemplateID: anchor.ID,
				Provenance: models.DetectedPattern,
				Method:     models.MethodAverage,
				Confidence: det.Confidence,
			})
		}
		cur, ok = recurrence.NextDueDate(cur, det.Frequency, day, &end)
	}
	return out
}

// GroupBillsByPeriod buckets actual bills the same way the forecast is
// bucketed, for side-by-side historic comparison.
func GroupBillsByPeriod(bills []models.Bill, granularity models.Granularity) []models.BillPeriod {
	buckets := make(map[string][]models.Bill)
	for _, b := range bills {
		key := periodKey(b.DueDate, granularity)
		buckets[key] = append(buckets[key], b)
	}

	periods := make([]models.BillPeriod, 0, len(buckets))
	for key, group := range buckets {
		sort.SliceStable(group, func(i, j int) bool {
			if !group[i].DueDate.Equal(group[j].DueDate) {
				return group[i].DueDate.Before(group[j].DueDate)
			}
			return group[i].ID < group[j].ID
		})
		var total float64
		for _, b := range group {
			total += b.Amount
		}
		periods = append(periods, models.BillPeriod{
			Period: key,
			Total:  total,
			Count:  len(group),
			Bills:  group,
		})
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Period < periods[j].Period })
	return periods
}

func groupOccurrences(occurrences []models.PredictedOccurrence, granularity models.Granularity) []models.BudgetPeriod {
	buckets := make(map[string][]models.PredictedOccurrence)
	for _, occ := range occurrences {
		key := periodKey(occ.DueDate, granularity)
		buckets[key] = append(buckets[key], occ)
	}

	periods := make([]models.BudgetPeriod, 0, len(buckets))
	for key, group := range buckets {
		sort.SliceStable(group, func(i, j int) bool {
			if !group[i].DueDate.Equal(group[j].DueDate) {
				return group[i].DueDate.Before(group[j].DueDate)
			}
			if group[i].Title != group[j].Title {
				return group[i].Title < group[j].Title
			}
			return group[i].TemplateID < group[j].TemplateID
		})
		var total float64
		for _, occ := range group {
			total += occ.Amount
		}
		periods = append(periods, models.BudgetPeriod{
			Period:      key,
			Total:       total,
			Count:       len(group),
			Occurrences: group,
		})
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Period < periods[j].Period })
	return periods
}

// ruledTemplates returns the templates carrying a recurrence rule, in a
// stable order.
func ruledTemplates(templates []models.Bill) []models.Bill {
	out := make([]models.Bill, 0, len(templates))
	for _, tpl := range templates {
		if tpl.Rule != nil {
			out = append(out, tpl)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func billsMatchingKey(bills []models.Bill, key models.MatchKey) []models.Bill {
	var out []models.Bill
	for _, b := range bills {
		if b.Key() == key {
			out = append(out, b)
		}
	}
	return out
}
