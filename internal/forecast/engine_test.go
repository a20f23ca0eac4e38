package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/billfold/bill-service/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestIsDateMatch(t *testing.T) {
	a := date(2024, time.June, 15)
	cases := []struct {
		b    time.Time
		want bool
	}{
		{date(2024, time.June, 15), true},
		{date(2024, time.June, 14), true},
		{date(2024, time.June, 18), true},
		{date(2024, time.June, 12), true},
		{date(2024, time.June, 19), false},
		{date(2024, time.June, 11), false},
		{date(2024, time.June, 20), false},
	}
	for _, c := range cases {
		if got := IsDateMatch(a, c.b, 3); got != c.want {
			t.Errorf("IsDateMatch(%s, %s) = %v, want %v",
				a.Format("2006-01-02"), c.b.Format("2006-01-02"), got, c.want)
		}
		// Symmetry.
		if IsDateMatch(a, c.b, 3) != IsDateMatch(c.b, a, 3) {
			t.Errorf("IsDateMatch not symmetric for %s", c.b.Format("2006-01-02"))
		}
	}
}

func TestCalculateEnhancedAmount_NoPoints(t *testing.T) {
	est := CalculateEnhancedAmount(date(2024, time.July, 1), 80, nil, nil, DefaultConfig())
	if est.Amount != 80 || est.Confidence != 0.3 || est.Method != models.MethodAverage {
		t.Errorf("expected base amount 80 / 0.3 / average, got %+v", est)
	}
}

func TestCalculateEnhancedAmount_SinglePoint(t *testing.T) {
	points := []Point{{Date: date(2024, time.May, 10), Amount: 45}}
	est := CalculateEnhancedAmount(date(2024, time.June, 10), 80, points, nil, DefaultConfig())
	if est.Amount != 45 {
		t.Errorf("expected exactly 45, got %.2f", est.Amount)
	}
	if est.Confidence != 0.5 || est.Method != models.MethodAverage {
		t.Errorf("expected 0.5 / average, got %+v", est)
	}
}

func TestCalculateEnhancedAmount_Trend(t *testing.T) {
	points := []Point{
		{Date: date(2024, time.January, 15), Amount: 200},
		{Date: date(2024, time.February, 15), Amount: 250},
		{Date: date(2024, time.March, 15), Amount: 275},
	}
	est := CalculateEnhancedAmount(date(2024, time.April, 15), 200, points, nil, DefaultConfig())
	if est.Method != models.MethodTrend {
		t.Fatalf("expected trend, got %q (confidence %.3f)", est.Method, est.Confidence)
	}
	if est.Confidence < 0.7 {
		t.Errorf("expected R^2 >= 0.7, got %.3f", est.Confidence)
	}
	// The fitted line evaluated one interval past the last point.
	if math.Abs(est.Amount-317.75) > 0.01 {
		t.Errorf("expected regression forecast 317.75, got %.4f", est.Amount)
	}
}

func TestCalculateEnhancedAmount_FlatSeriesIsNotATrend(t *testing.T) {
	points := []Point{
		{Date: date(2024, time.January, 15), Amount: 100},
		{Date: date(2024, time.February, 15), Amount: 100},
		{Date: date(2024, time.March, 15), Amount: 100},
	}
	est := CalculateEnhancedAmount(date(2024, time.April, 15), 100, points, nil, DefaultConfig())
	if est.Method != models.MethodWeighted {
		t.Fatalf("zero-variance series must fall back to weighted, got %q", est.Method)
	}
	if math.Abs(est.Amount-100) > 1e-9 {
		t.Errorf("expected 100, got %.4f", est.Amount)
	}
	if est.Confidence != 0.6 {
		t.Errorf("expected confidence 0.6 for 3 points, got %.3f", est.Confidence)
	}
}

func TestCalculateEnhancedAmount_SeasonalFallback(t *testing.T) {
	// Noisy series with a poor linear fit.
	points := []Point{
		{Date: date(2024, time.January, 15), Amount: 100},
		{Date: date(2024, time.February, 15), Amount: 300},
		{Date: date(2024, time.March, 15), Amount: 110},
	}
	historical := []models.Bill{
		{ID: "h1", Amount: 95, DueDate: date(2022, time.June, 15)},
		{ID: "h2", Amount: 105, DueDate: date(2023, time.June, 15)},
		{ID: "h3", Amount: 400, DueDate: date(2023, time.December, 15)},
	}
	est := CalculateEnhancedAmount(date(2024, time.June, 15), 100, points, historical, DefaultConfig())
	if est.Method != models.MethodSeasonal {
		t.Fatalf("expected seasonal, got %q", est.Method)
	}
	if math.Abs(est.Amount-100) > 1e-9 {
		t.Errorf("expected June mean 100, got %.4f", est.Amount)
	}
	if est.Confidence != 0.6 {
		t.Errorf("expected confidence 0.6, got %.3f", est.Confidence)
	}
}

func TestSeasonalAverage_RequiresTwoYears(t *testing.T) {
	historical := []models.Bill{
		{ID: "h1", Amount: 95, DueDate: date(2023, time.June, 1)},
		{ID: "h2", Amount: 105, DueDate: date(2023, time.June, 20)},
	}
	if _, ok := seasonalAverage(date(2024, time.June, 15), historical); ok {
		t.Error("one year of June bills must not satisfy the seasonal requirement")
	}
}

func TestCalculateEnhancedAmount_WeightedTwoPoints(t *testing.T) {
	points := []Point{
		{Date: date(2024, time.January, 15), Amount: 90},
		{Date: date(2024, time.February, 15), Amount: 120},
	}
	est := CalculateEnhancedAmount(date(2024, time.March, 15), 100, points, nil, DefaultConfig())
	if est.Method != models.MethodWeighted {
		t.Fatalf("expected weighted, got %q", est.Method)
	}
	// (90*1 + 120*2) / 3
	if math.Abs(est.Amount-110) > 1e-9 {
		t.Errorf("expected 110, got %.4f", est.Amount)
	}
	if est.Confidence != 0.5 {
		t.Errorf("expected confidence 0.5 for 2 points, got %.3f", est.Confidence)
	}
}

func TestCalculateEnhancedAmount_TrendFloorsAtZero(t *testing.T) {
	points := []Point{
		{Date: date(2024, time.January, 15), Amount: 60},
		{Date: date(2024, time.February, 15), Amount: 30},
		{Date: date(2024, time.March, 15), Amount: 1},
	}
	est := CalculateEnhancedAmount(date(2024, time.June, 15), 60, points, nil, DefaultConfig())
	if est.Method != models.MethodTrend {
		t.Fatalf("expected trend, got %q", est.Method)
	}
	if est.Amount != 0 {
		t.Errorf("declining trend past zero must floor at 0, got %.4f", est.Amount)
	}
}

func TestCalculateEnhancedAmount_SyntheticSeries(t *testing.T) {
	points := PadSynthetic(
		[]Point{{Date: date(2024, time.March, 15), Amount: 45}},
		date(2024, time.March, 15), 50, models.FrequencyMonthly, 3)
	if len(points) != 3 {
		t.Fatalf("expected padding to 3 points, got %d", len(points))
	}
	est := CalculateEnhancedAmount(date(2024, time.April, 15), 50, points, nil, DefaultConfig())
	if est.Method != models.MethodSyntheticFill {
		t.Errorf("padded series must report synthetic-fill, got %q", est.Method)
	}
	if est.Confidence != 0.4 {
		t.Errorf("expected confidence 0.4, got %.3f", est.Confidence)
	}
}

func TestPadSynthetic_SpreadsAroundTemplateDate(t *testing.T) {
	points := PadSynthetic(nil, date(2024, time.June, 15), 75, models.FrequencyMonthly, 3)
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	var before, after int
	for _, p := range points {
		if !p.Synthetic {
			t.Error("all padded points must be synthetic")
		}
		if p.Amount != 75 {
			t.Errorf("padded points carry the template amount, got %.2f", p.Amount)
		}
		if p.Date.Before(date(2024, time.June, 15)) {
			before++
		} else {
			after++
		}
	}
	if before == 0 || after == 0 {
		t.Errorf("padding must spread around the template date, got %d before / %d after", before, after)
	}
}

func TestReconcile_ActualReplacesPrediction(t *testing.T) {
	template := models.Bill{ID: "tpl", Title: "Internet", Amount: 60, DueDate: date(2024, time.May, 15), CategoryID: "utilities"}
	occurrences := []models.PredictedOccurrence{{
		Title: "Internet", Amount: 60, DueDate: date(2024, time.June, 15),
		TemplateID: "tpl", Provenance: models.FromRule,
	}}
	actuals := []models.Bill{
		{ID: "real-1", Title: "Internet June", Amount: 62.5, DueDate: date(2024, time.June, 14), CategoryID: "utilities"},
	}
	out := Reconcile(occurrences, actuals,
		map[string]models.Bill{"tpl": template},
		map[string][]Point{"tpl": PointsFromBills(actuals)},
		nil, DefaultConfig())
	if len(out) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(out))
	}
	occ := out[0]
	if occ.BillID != "real-1" {
		t.Fatalf("expected the actual to claim the prediction, got bill id %q", occ.BillID)
	}
	if occ.Amount != 62.5 || !occ.DueDate.Equal(date(2024, time.June, 14)) {
		t.Errorf("replaced occurrence must carry the actual amount and date, got %+v", occ)
	}
	if occ.Confidence != 1 || occ.Method != "" {
		t.Errorf("replaced occurrence is observed spend, got confidence %.2f method %q", occ.Confidence, occ.Method)
	}
}

func TestReconcile_OutsideToleranceNotMatched(t *testing.T) {
	template := models.Bill{ID: "tpl", Title: "Internet", Amount: 60, DueDate: date(2024, time.May, 15), CategoryID: "utilities"}
	occurrences := []models.PredictedOccurrence{{
		Title: "Internet", Amount: 60, DueDate: date(2024, time.June, 15),
		TemplateID: "tpl", Provenance: models.FromRule,
	}}
	actuals := []models.Bill{
		{ID: "real-1", Title: "Internet", Amount: 70, DueDate: date(2024, time.June, 20), CategoryID: "utilities"},
	}
	out := Reconcile(occurrences, actuals,
		map[string]models.Bill{"tpl": template},
		map[string][]Point{"tpl": PointsFromBills(actuals)},
		nil, DefaultConfig())
	if out[0].BillID != "" {
		t.Error("a 6-day gap must not match within the 3-day tolerance")
	}
}

func TestReconcile_EachActualClaimsOnePrediction(t *testing.T) {
	template := models.Bill{ID: "tpl", Title: "Gym", Amount: 30, DueDate: date(2024, time.May, 1), CategoryID: "fitness"}
	occurrences := []models.PredictedOccurrence{
		{Title: "Gym", Amount: 30, DueDate: date(2024, time.June, 1), TemplateID: "tpl", Provenance: models.FromRule},
		{Title: "Gym", Amount: 30, DueDate: date(2024, time.June, 3), TemplateID: "tpl", Provenance: models.FromRule},
	}
	actuals := []models.Bill{
		{ID: "real-1", Title: "Gym", Amount: 30, DueDate: date(2024, time.June, 2), CategoryID: "fitness"},
	}
	out := Reconcile(occurrences, actuals,
		map[string]models.Bill{"tpl": template},
		map[string][]Point{"tpl": PointsFromBills(actuals)},
		nil, DefaultConfig())
	matched := 0
	for _, occ := range out {
		if occ.BillID == "real-1" {
			matched++
		}
	}
	if matched != 1 {
		t.Errorf("one actual must claim exactly one prediction, claimed %d", matched)
	}
	// The chronologically earlier prediction wins.
	if out[0].BillID != "real-1" {
		t.Error("expected the earliest prediction to be claimed first")
	}
}

func TestReconcile_SeasonalIgnoresOtherSeries(t *testing.T) {
	template := models.Bill{ID: "tpl", Title: "Internet", Amount: 60, DueDate: date(2023, time.December, 15), CategoryID: "utilities"}
	occurrences := []models.PredictedOccurrence{{
		Title: "Internet", Amount: 60, DueDate: date(2024, time.September, 15),
		TemplateID: "tpl", Provenance: models.FromRule,
	}}
	// Noisy enough that the linear fit is rejected.
	actuals := []models.Bill{
		{ID: "a1", Title: "Internet", Amount: 50, DueDate: date(2024, time.January, 15), CategoryID: "utilities"},
		{ID: "a2", Title: "Internet", Amount: 150, DueDate: date(2024, time.February, 15), CategoryID: "utilities"},
		{ID: "a3", Title: "Internet", Amount: 55, DueDate: date(2024, time.March, 15), CategoryID: "utilities"},
	}
	// September history holds two rent bills on a different key; only
	// the two internet bills may feed the seasonal average.
	historical := []models.Bill{
		{ID: "h1", Title: "Internet", Amount: 58, DueDate: date(2022, time.September, 15), CategoryID: "utilities"},
		{ID: "h2", Title: "Internet", Amount: 62, DueDate: date(2023, time.September, 15), CategoryID: "utilities"},
		{ID: "h3", Title: "Rent", Amount: 2000, DueDate: date(2022, time.September, 1), CategoryID: "housing"},
		{ID: "h4", Title: "Rent", Amount: 2100, DueDate: date(2023, time.September, 1), CategoryID: "housing"},
	}
	out := Reconcile(occurrences, actuals,
		map[string]models.Bill{"tpl": template},
		map[string][]Point{"tpl": PointsFromBills(actuals)},
		historical, DefaultConfig())
	occ := out[0]
	if occ.Method != models.MethodSeasonal {
		t.Fatalf("expected seasonal, got %q", occ.Method)
	}
	if math.Abs(occ.Amount-60) > 1e-9 {
		t.Errorf("seasonal average must only use the template's series, got %.2f", occ.Amount)
	}
}

func TestReconcile_DetectedSeriesWithoutActualsKeepsConfidence(t *testing.T) {
	anchor := models.Bill{ID: "h5", Title: "Streaming", Amount: 55, DueDate: date(2024, time.May, 2), CategoryID: "streaming"}
	occurrences := []models.PredictedOccurrence{{
		Title: "Streaming", Amount: 55, DueDate: date(2024, time.June, 2),
		TemplateID: "h5", Provenance: models.DetectedPattern,
		Method: models.MethodAverage, Confidence: 0.81,
	}}
	out := Reconcile(occurrences, nil,
		map[string]models.Bill{"h5": anchor},
		map[string][]Point{"h5": nil},
		nil, DefaultConfig())
	occ := out[0]
	if occ.Amount != 55 || occ.Confidence != 0.81 || occ.Method != models.MethodAverage {
		t.Errorf("a detected series with no observed spend keeps its emitted values, got %+v", occ)
	}
}

func TestReconcile_KeyMismatchNotMatched(t *testing.T) {
	template := models.Bill{ID: "tpl", Title: "Internet", Amount: 60, DueDate: date(2024, time.May, 15), CategoryID: "utilities", VendorID: "acme"}
	occurrences := []models.PredictedOccurrence{{
		Title: "Internet", Amount: 60, DueDate: date(2024, time.June, 15),
		TemplateID: "tpl", Provenance: models.FromRule,
	}}
	actuals := []models.Bill{
		{ID: "real-1", Title: "Internet", Amount: 60, DueDate: date(2024, time.June, 15), CategoryID: "utilities", VendorID: "other"},
	}
	out := Reconcile(occurrences, actuals,
		map[string]models.Bill{"tpl": template},
		map[string][]Point{"tpl": nil},
		nil, DefaultConfig())
	if out[0].BillID != "" {
		t.Error("differing vendors must not match even on the same date")
	}
}
