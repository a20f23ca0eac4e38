package service

import (
	"fmt"
	"time"

	"github.com/billfold/bill-service/internal/budget"
	"github.com/billfold/bill-service/internal/config"
	"github.com/billfold/bill-service/internal/models"
	"github.com/billfold/bill-service/internal/pattern"
	"github.com/billfold/bill-service/internal/recurrence"
	"github.com/billfold/bill-service/internal/repository"
	"github.com/sirupsen/logrus"
)

// Service handles business logic
type Service struct {
	repo   *repository.Repository
	log    *logrus.Logger
	config *config.Config
}

// NewService initializes a new service
func NewService(repo *repository.Repository, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{repo: repo, log: log, config: cfg}
}

// engineConfig maps deployment configuration onto the engine thresholds.
func (s *Service) engineConfig() budget.Config {
	cfg := budget.DefaultConfig()
	cfg.Pattern.MinConfidence = s.config.PatternMinConfidence
	cfg.Pattern.MinGroupSize = s.config.PatternMinGroupSize
	cfg.Forecast.TrendMinRSquared = s.config.TrendMinRSquared
	cfg.Forecast.ToleranceDays = s.config.MatchToleranceDays
	return cfg
}

// BudgetForecast runs the prediction engine over [start, end] and
// returns the forecast grouped into reporting periods.
func (s *Service) BudgetForecast(start, end time.Time, granularity models.Granularity) ([]models.BudgetPeriod, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("end date before start date")
	}
	if !granularity.Valid() {
		return nil, fmt.Errorf("unknown granularity %q", granularity)
	}

	templates, err := s.repo.ListRecurringTemplates()
	if err != nil {
		return nil, err
	}
	actuals, err := s.repo.ListBillsBetween(start, end)
	if err != nil {
		return nil, err
	}
	historical, err := s.repo.ListBillsBefore(start, start.AddDate(0, -s.config.HistoryMonths, 0))
	if err != nil {
		return nil, err
	}

	periods := budget.GenerateBudgetPredictions(templates, start, end, granularity, actuals, historical, s.engineConfig())

	occurrences := 0
	for _, p := range periods {
		occurrences += p.Count
	}
	s.log.Infof("Budget forecast %s..%s: %d templates, %d actuals, %d periods, %d occurrences",
		start.Format("2006-01-02"), end.Format("2006-01-02"),
		len(templates), len(actuals), len(periods), occurrences)
	return periods, nil
}

// HistoricReport groups actual bills in [start, end] into the same
// reporting periods as the forecast.
func (s *Service) HistoricReport(start, end time.Time, granularity models.Granularity) ([]models.BillPeriod, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("end date before start date")
	}
	if !granularity.Valid() {
		return nil, fmt.Errorf("unknown granularity %q", granularity)
	}
	bills, err := s.repo.ListBillsBetween(start, end)
	if err != nil {
		return nil, err
	}
	return budget.GroupBillsByPeriod(bills, granularity), nil
}

// CreateBill stores a new bill
func (s *Service) CreateBill(bill *models.Bill) error {
	if bill.Title == "" {
		return fmt.Errorf("title is required")
	}
	if bill.Amount < 0 {
		return fmt.Errorf("amount must not be negative")
	}
	if bill.CategoryID == "" {
		return fmt.Errorf("category is required")
	}
	if err := s.repo.CreateBill(bill); err != nil {
		return err
	}
	s.log.Infof("Bill created: %s (%s)", bill.Title, bill.ID)
	return nil
}

// AttachRule validates and stores a recurrence rule for an existing
// bill. Invalid rules are rejected here so they never reach the
// forecasting path.
func (s *Service) AttachRule(billID string, freq models.Frequency, dayOfMonth int, startDate time.Time, endDate *time.Time) (*models.RecurrenceRule, error) {
	if err := recurrence.ValidateRule(freq, dayOfMonth, startDate, endDate); err != nil {
		return nil, fmt.Errorf("invalid recurrence rule: %w", err)
	}
	if _, err := s.repo.FindBillByID(billID); err != nil {
		return nil, err
	}
	rule := &models.RecurrenceRule{
		BillID:     billID,
		Frequency:  freq,
		DayOfMonth: dayOfMonth,
		StartDate:  startDate,
		EndDate:    endDate,
	}
	if err := s.repo.CreateRecurrenceRule(rule); err != nil {
		return nil, err
	}
	s.log.Infof("Recurrence rule %s attached to bill %s (%s, day %d)", rule.ID, billID, freq, dayOfMonth)
	return rule, nil
}

// PatternSweep detects implicit recurring series over the historical
// lookback and logs them. Results are informational only; every
// forecast request recomputes detection from the live snapshot.
func (s *Service) PatternSweep(now time.Time) ([]pattern.Detected, error) {
	historical, err := s.repo.ListBillsBefore(now, now.AddDate(0, -s.config.HistoryMonths, 0))
	if err != nil {
		return nil, err
	}
	detected := pattern.Detect(historical, s.engineConfig().Pattern)
	for _, det := range detected {
		s.log.Infof("Detected recurring series: category=%s vendor=%s freq=%s confidence=%.2f bills=%d",
			det.Key().CategoryID, det.Key().VendorID, det.Frequency, det.Confidence, len(det.Bills))
	}
	return detected, nil
}
