package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/billfold/bill-service/internal/models"
	"github.com/google/uuid"
)

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateBill creates a new bill in the database
func (r *Repository) CreateBill(bill *models.Bill) error {
	bill.ID = uuid.NewString()
	query := `
		INSERT INTO billfold.bills (id, title, amount, due_date, paid_date, category_id, vendor_id, vendor_account_id, recurring, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING created_at, updated_at`
	err := r.db.QueryRow(query,
		bill.ID, bill.Title, bill.Amount, bill.DueDate, bill.PaidDate,
		bill.CategoryID, bill.VendorID, bill.VendorAccountID, bill.Recurring).
		Scan(&bill.CreatedAt, &bill.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bill: %w", err)
	}
	return nil
}

// CreateRecurrenceRule attaches a recurrence rule to a bill and flags
// the bill as recurring
func (r *Repository) CreateRecurrenceRule(rule *models.RecurrenceRule) error {
	rule.ID = uuid.NewString()
	query := `
		INSERT INTO billfold.recurrence_rules (id, bill_id, frequency, day_of_month, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.Exec(query,
		rule.ID, rule.BillID, string(rule.Frequency), rule.DayOfMonth, rule.StartDate, rule.EndDate); err != nil {
		return fmt.Errorf("failed to create recurrence rule: %w", err)
	}
	if _, err := r.db.Exec(`UPDATE billfold.bills SET recurring = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, rule.BillID); err != nil {
		return fmt.Errorf("failed to flag bill as recurring: %w", err)
	}
	return nil
}

// FindBillByID retrieves a single bill
func (r *Repository) FindBillByID(id string) (*models.Bill, error) {
	query := `
		SELECT b.id, b.title, b.amount, b.due_date, b.paid_date,
		       b.category_id, COALESCE(b.vendor_id, ''), COALESCE(b.vendor_account_id, ''),
		       b.recurring, b.created_at, b.updated_at
		FROM billfold.bills b
		WHERE b.id = $1`
	bill := &models.Bill{}
	err := r.db.QueryRow(query, id).Scan(
		&bill.ID, &bill.Title, &bill.Amount, &bill.DueDate, &bill.PaidDate,
		&bill.CategoryID, &bill.VendorID, &bill.VendorAccountID,
		&bill.Recurring, &bill.CreatedAt, &bill.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bill not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find bill: %w", err)
	}
	return bill, nil
}

// ListRecurringTemplates retrieves recurring bills joined with their
// recurrence rules
func (r *Repository) ListRecurringTemplates() ([]models.Bill, error) {
	query := `
		SELECT b.id, b.title, b.amount, b.due_date, b.paid_date,
		       b.category_id, COALESCE(b.vendor_id, ''), COALESCE(b.vendor_account_id, ''),
		       b.recurring, b.created_at, b.updated_at,
		       r.id, r.frequency, r.day_of_month, r.start_date, r.end_date
		FROM billfold.bills b
		LEFT JOIN billfold.recurrence_rules r ON r.bill_id = b.id
		WHERE b.recurring = TRUE
		ORDER BY b.id`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring templates: %w", err)
	}
	defer rows.Close()

	var bills []models.Bill
	for rows.Next() {
		var bill models.Bill
		var ruleID, frequency sql.NullString
		var dayOfMonth sql.NullInt64
		var startDate, endDate sql.NullTime
		if err := rows.Scan(
			&bill.ID, &bill.Title, &bill.Amount, &bill.DueDate, &bill.PaidDate,
			&bill.CategoryID, &bill.VendorID, &bill.VendorAccountID,
			&bill.Recurring, &bill.CreatedAt, &bill.UpdatedAt,
			&ruleID, &frequency, &dayOfMonth, &startDate, &endDate); err != nil {
			return nil, fmt.Errorf("failed to scan recurring template: %w", err)
		}
		if ruleID.Valid {
			rule := &models.RecurrenceRule{
				ID:         ruleID.String,
				BillID:     bill.ID,
				Frequency:  models.Frequency(frequency.String),
				DayOfMonth: int(dayOfMonth.Int64),
				StartDate:  startDate.Time,
			}
			if endDate.Valid {
				end := endDate.Time
				rule.EndDate = &end
			}
			bill.Rule = rule
		}
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recurring templates: %w", err)
	}
	return bills, nil
}

// ListBillsBetween retrieves non-template bills due within [start, end]
func (r *Repository) ListBillsBetween(start, end time.Time) ([]models.Bill, error) {
	return r.listBills(`
		SELECT b.id, b.title, b.amount, b.due_date, b.paid_date,
		       b.category_id, COALESCE(b.vendor_id, ''), COALESCE(b.vendor_account_id, ''),
		       b.recurring, b.created_at, b.updated_at
		FROM billfold.bills b
		WHERE b.due_date >= $1 AND b.due_date <= $2 AND b.recurring = FALSE
		ORDER BY b.due_date, b.id`, start, end)
}

// ListBillsBefore retrieves historical bills due before the cutoff,
// bounded by the lookback start
func (r *Repository) ListBillsBefore(cutoff time.Time, lookbackStart time.Time) ([]models.Bill, error) {
	return r.listBills(`
		SELECT b.id, b.title, b.amount, b.due_date, b.paid_date,
		       b.category_id, COALESCE(b.vendor_id, ''), COALESCE(b.vendor_account_id, ''),
		       b.recurring, b.created_at, b.updated_at
		FROM billfold.bills b
		WHERE b.due_date < $1 AND b.due_date >= $2 AND b.recurring = FALSE
		ORDER BY b.due_date, b.id`, cutoff, lookbackStart)
}

func (r *Repository) listBills(query string, args ...interface{}) ([]models.Bill, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	var bills []models.Bill
	for rows.Next() {
		var bill models.Bill
		if err := rows.Scan(
			&bill.ID, &bill.Title, &bill.Amount, &bill.DueDate, &bill.PaidDate,
			&bill.CategoryID, &bill.VendorID, &bill.VendorAccountID,
			&bill.Recurring, &bill.CreatedAt, &bill.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bills: %w", err)
	}
	return bills, nil
}
