package forecast

import (
	"sort"

	"github.com/billfold/bill-service/internal/models"
)

// Reconcile walks predicted occurrences chronologically and lets actual
// bills claim them: an actual fulfills a prediction when the matching
// keys are equal and the due dates fall within the tolerance window.
// Each actual claims at most one prediction and vice versa, earliest
// unclaimed candidate first. Unclaimed predictions are re-forecast from
// their template's observed series.
//
// The claimed set lives for exactly one call; there is no shared state
// between invocations.
func Reconcile(
	occurrences []models.PredictedOccurrence,
	actuals []models.Bill,
	templates map[string]models.Bill,
	series map[string][]Point,
	historical []models.Bill,
	cfg Config,
) []models.PredictedOccurrence {
	sorted := make([]models.PredictedOccurrence, len(occurrences))
	copy(sorted, occurrences)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].DueDate.Equal(sorted[j].DueDate) {
			return sorted[i].DueDate.Before(sorted[j].DueDate)
		}
		return sorted[i].TemplateID < sorted[j].TemplateID
	})

	candidates := make([]models.Bill, len(actuals))
	copy(candidates, actuals)
	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].DueDate.Equal(candidates[j].DueDate) {
			return candidates[i].DueDate.Before(candidates[j].DueDate)
		}
		return candidates[i].ID < candidates[j].ID
	})

	claimed := make(map[string]struct{})
	result := make([]models.PredictedOccurrence, 0, len(sorted))
	for _, occ := range sorted {
		template, known := templates[occ.TemplateID]
		if known {
			if actual, ok := claimMatch(occ, template, candidates, claimed, cfg); ok {
				occ.Title = actual.Title
				occ.Amount = actual.Amount
				occ.DueDate = actual.DueDate
				occ.BillID = actual.ID
				occ.Confidence = 1
				occ.Method = ""
				result = append(result, occ)
				continue
			}
			points := series[occ.TemplateID]
			if len(points) == 0 && occ.Provenance == models.DetectedPattern {
				// No observed spend on this series inside the window;
				// the emitted group mean and pattern confidence stand.
				result = append(result, occ)
				continue
			}
			// Seasonality only makes sense within one series, so the
			// broader historical set is narrowed to the template's
			// matching key before forecasting.
			est := CalculateEnhancedAmount(occ.DueDate, template.Amount, points, billsMatchingKey(historical, template.Key()), cfg)
			occ.Amount = est.Amount
			occ.Confidence = est.Confidence
			occ.Method = est.Method
		}
		result = append(result, occ)
	}
	return result
}

// claimMatch finds the earliest unclaimed actual bill fulfilling the
// occurrence and marks it claimed.
func claimMatch(occ models.PredictedOccurrence, template models.Bill, candidates []models.Bill, claimed map[string]struct{}, cfg Config) (models.Bill, bool) {
	for _, actual := range candidates {
		if _, taken := claimed[actual.ID]; taken {
			continue
		}
		if actual.Key() != template.Key() {
			continue
		}
		if !IsDateMatch(actual.DueDate, occ.DueDate, cfg.ToleranceDays) {
			continue
		}
		claimed[actual.ID] = struct{}{}
		return actual, true
	}
	return models.Bill{}, false
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
