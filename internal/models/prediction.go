package models

import "time"

// Provenance says where a predicted occurrence came from.
type Provenance string

const (
	FromRule        Provenance = "from-rule"
	DetectedPattern Provenance = "detected-pattern"
)

// Method is the forecasting strategy that produced an amount.
type Method string

const (
	MethodTrend         Method = "trend"
	MethodWeighted      Method = "weighted"
	MethodSeasonal      Method = "seasonal"
	MethodAverage       Method = "average"
	MethodSyntheticFill Method = "synthetic-fill"
)

// Granularity selects the reporting period size.
type Granularity string

const (
	GranularityMonthly   Granularity = "monthly"
	GranularityQuarterly Granularity = "quarterly"
	GranularityYearly    Granularity = "yearly"
	GranularityCustom    Granularity = "custom"
)

// Valid reports whether g is a known granularity.
func (g Granularity) Valid() bool {
	switch g {
	case GranularityMonthly, GranularityQuarterly, GranularityYearly, GranularityCustom:
		return true
	}
	return false
}

// PredictedOccurrence is a forecasted instance of a recurring series.
// It is a transient report artifact, never persisted, and fully
// reconstructible from the current bill snapshot.
type PredictedOccurrence struct {
	Title      string     `json:"title"`
	Amount     float64    `json:"amount"`
	DueDate    time.Time  `json:"due_date"`
	TemplateID string     `json:"template_id"`
	Provenance Provenance `json:"provenance"`
	Method     Method     `json:"method,omitempty"`
	Confidence float64    `json:"confidence"`
	// BillID links the actual bill that fulfilled this occurrence, if any.
	BillID string `json:"bill_id,omitempty"`
}

// BudgetPeriod is one reporting bucket of forecasted spend.
type BudgetPeriod struct {
	Period      string                `json:"period"`
	Total       float64               `json:"total"`
	Count       int                   `json:"count"`
	Occurrences []PredictedOccurrence `json:"occurrences"`
}

// BillPeriod is one reporting bucket of actual spend, for side-by-side
// comparison with the forecast.
type BillPeriod struct {
	Period string  `json:"period"`
	Total  float64 `json:"total"`
	Count  int     `json:"count"`
	Bills  []Bill  `json:"bills"`
}
