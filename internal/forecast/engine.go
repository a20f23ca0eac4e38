// Package forecast reconciles predicted occurrences against actual bills
// and forecasts the amounts of the occurrences that remain open.
package forecast

import (
	"math"
	"sort"
	"time"

	"github.com/billfold/bill-service/internal/models"
)

// Config holds the engine thresholds.
type Config struct {
	// ToleranceDays is the due-date window within which an actual bill
	// fulfills a predicted occurrence.
	ToleranceDays int
	// TrendMinRSquared is the minimum fit quality before a linear trend
	// is trusted over the fallback strategies.
	TrendMinRSquared float64
	// MinTrendPoints is the minimum series length for regression.
	MinTrendPoints int
	// SyntheticConfidence is reported for occurrences forecast from a
	// padded series.
	SyntheticConfidence float64
}

// DefaultConfig returns the stock engine thresholds.
func DefaultConfig() Config {
	return Config{
		ToleranceDays:       3,
		TrendMinRSquared:    0.7,
		MinTrendPoints:      3,
		SyntheticConfidence: 0.4,
	}
}

// Point is one observation in an amount series. Synthetic points are
// manufactured fill for sparse series; they are never bills and never
// reach real-spend reporting.
type Point struct {
	Date      time.Time
	Amount    float64
	Synthetic bool
}

// PointsFromBills converts bills to observations, ordered by date.
func PointsFromBills(bills []models.Bill) []Point {
	points := make([]Point, len(bills))
	for i, b := range bills {
		points[i] = Point{Date: b.DueDate, Amount: b.Amount}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points
}

// PadSynthetic extends a sparse series to the target length with
// template-amount points stepped one rule interval before and after the
// template date, alternating, so the fill spreads roughly evenly.
func PadSynthetic(points []Point, templateDate time.Time, amount float64, freq models.Frequency, target int) []Point {
	padded := make([]Point, len(points), target)
	copy(padded, points)
	months := freq.Months()
	step := 1
	before := true
	for len(padded) < target {
		offset := -step
		if !before {
			offset = step
			step++
		}
		before = !before
		padded = append(padded, Point{
			Date:      templateDate.AddDate(0, offset*months, 0),
			Amount:    amount,
			Synthetic: true,
		})
	}
	sort.Slice(padded, func(i, j int) bool { return padded[i].Date.Before(padded[j].Date) })
	return padded
}

// HasSynthetic reports whether any point in the series is manufactured.
func HasSynthetic(points []Point) bool {
	for _, p := range points {
		if p.Synthetic {
			return true
		}
	}
	return false
}

// IsDateMatch reports whether two due dates fall within the tolerance
// window of each other. The check is symmetric.
func IsDateMatch(a, b time.Time, toleranceDays int) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(toleranceDays)*24*time.Hour
}

// Estimate is the outcome of one amount forecast.
type Estimate struct {
	Amount     float64
	Confidence float64
	Method     models.Method
}

// CalculateEnhancedAmount forecasts the amount of one future occurrence
// from the series of observed points, layering strategies: linear trend
// when the fit is good, seasonal month average when enough history
// spans multiple years, weighted moving average otherwise. Sparse series
// degrade confidence instead of failing.
func CalculateEnhancedAmount(target time.Time, baseAmount float64, points []Point, historical []models.Bill, cfg Config) Estimate {
	var est Estimate
	switch {
	case len(points) == 0:
		est = Estimate{Amount: baseAmount, Confidence: 0.3, Method: models.MethodAverage}
	case len(points) == 1:
		est = Estimate{Amount: points[0].Amount, Confidence: 0.5, Method: models.MethodAverage}
	default:
		est = layeredEstimate(target, points, historical, cfg)
	}
	if HasSynthetic(points) {
		est.Confidence = cfg.SyntheticConfidence
		est.Method = models.MethodSyntheticFill
	}
	return est
}

func layeredEstimate(target time.Time, points []Point, historical []models.Bill, cfg Config) Estimate {
	if len(points) >= cfg.MinTrendPoints {
		if amount, r2, ok := trendPredict(target, points); ok && r2 >= cfg.TrendMinRSquared {
			return Estimate{Amount: amount, Confidence: r2, Method: models.MethodTrend}
		}
	}
	if amount, ok := seasonalAverage(target, historical); ok {
		return Estimate{Amount: amount, Confidence: 0.6, Method: models.MethodSeasonal}
	}
	amount := weightedAverage(points)
	confidence := 0.5
	if len(points) >= 3 {
		confidence = 0.6
	}
	return Estimate{Amount: amount, Confidence: confidence, Method: models.MethodWeighted}
}

// trendPredict fits ordinary least squares of amount against days since
// the first point and evaluates the line at the target date. The result
// is floored at zero. ok is false when the series has no usable spread.
func trendPredict(target time.Time, points []Point) (amount, r2 float64, ok bool) {
	n := float64(len(points))
	first := points[0].Date

	var sumX, sumY, sumXY, sumXX float64
	for _, p := range points {
		x := p.Date.Sub(first).Hours() / 24
		sumX += x
		sumY += p.Amount
		sumXY += x * p.Amount
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0, false
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	// R² against the mean; a flat series has nothing to fit.
	meanY := sumY / n
	var ssRes, ssTot float64
	for _, p := range points {
		x := p.Date.Sub(first).Hours() / 24
		residual := p.Amount - (intercept + slope*x)
		ssRes += residual * residual
		d := p.Amount - meanY
		ssTot += d * d
	}
	if ssTot == 0 {
		return 0, 0, false
	}
	r2 = 1 - ssRes/ssTot

	x := target.Sub(first).Hours() / 24
	amount = math.Max(0, intercept+slope*x)
	return amount, r2, true
}

// seasonalAverage returns the mean amount of historical bills due in the
// target month. It requires matches from at least two distinct years and
// at least two bills overall.
func seasonalAverage(target time.Time, historical []models.Bill) (float64, bool) {
	var sum float64
	count := 0
	years := make(map[int]struct{})
	for _, b := range historical {
		if b.DueDate.Month() != target.Month() {
			continue
		}
		sum += b.Amount
		count++
		years[b.DueDate.Year()] = struct{}{}
	}
	if count < 2 || len(years) < 2 {
		return 0, false
	}
	return sum / float64(count), true
}

// weightedAverage weights the series oldest to newest as 1..n over
// n(n+1)/2, so the most recent observation carries the largest share.
func weightedAverage(points []Point) float64 {
	n := len(points)
	total := float64(n*(n+1)) / 2
	var sum float64
	for i, p := range points {
		sum += p.Amount * float64(i+1) / total
	}
	return sum
}
