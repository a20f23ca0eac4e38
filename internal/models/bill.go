package models

import "time"

// Frequency is the cadence of a recurring bill series.
type Frequency string

const (
	FrequencyMonthly    Frequency = "MONTHLY"
	FrequencyQuarterly  Frequency = "QUARTERLY"
	FrequencyBiannually Frequency = "BIANNUALLY"
	FrequencyYearly     Frequency = "YEARLY"
)

// Months returns the period length of a frequency in calendar months.
func (f Frequency) Months() int {
	switch f {
	case FrequencyQuarterly:
		return 3
	case FrequencyBiannually:
		return 6
	case FrequencyYearly:
		return 12
	default:
		return 1
	}
}

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyBiannually, FrequencyYearly:
		return true
	}
	return false
}

// RecurrenceRule marks a bill as the template of a recurring series.
type RecurrenceRule struct {
	ID         string     `json:"id"`
	BillID     string     `json:"bill_id"`
	Frequency  Frequency  `json:"frequency"`
	DayOfMonth int        `json:"day_of_month"`
	StartDate  time.Time  `json:"start_date"`
	EndDate    *time.Time `json:"end_date,omitempty"`
}

// Bill represents a financial obligation. The forecasting engine only
// reads bills; they are created and mutated elsewhere.
type Bill struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Amount          float64         `json:"amount"`
	DueDate         time.Time       `json:"due_date"`
	PaidDate        *time.Time      `json:"paid_date,omitempty"`
	CategoryID      string          `json:"category_id"`
	VendorID        string          `json:"vendor_id,omitempty"`
	VendorAccountID string          `json:"vendor_account_id,omitempty"`
	Recurring       bool            `json:"recurring"`
	Rule            *RecurrenceRule `json:"rule,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// MatchKey is the (category, vendor, vendor-account) triple that decides
// whether two bills belong to the same recurring series. Absent vendor
// fields are empty strings, so two bills with no vendor still match.
type MatchKey struct {
	CategoryID      string
	VendorID        string
	VendorAccountID string
}

// Key returns the matching key of a bill.
func (b Bill) Key() MatchKey {
	return MatchKey{
		CategoryID:      b.CategoryID,
		VendorID:        b.VendorID,
		VendorAccountID: b.VendorAccountID,
	}
}

// SameSeries reports whether two bills share the full matching key.
func SameSeries(a, b Bill) bool {
	return a.Key() == b.Key()
}
