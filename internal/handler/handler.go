package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/billfold/bill-service/internal/models"
	"github.com/billfold/bill-service/internal/service"
	"github.com/gorilla/mux"
)

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

type ruleRequest struct {
	Frequency  models.Frequency `json:"frequency"`
	DayOfMonth int              `json:"day_of_month"`
	StartDate  string           `json:"start_date"`
	EndDate    string           `json:"end_date,omitempty"`
}

type errorResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error"`
}

// BudgetForecast handles GET /api/v1/budget/forecast
func (h *Handler) BudgetForecast(w http.ResponseWriter, r *http.Request) {
	start, end, granularity, err := reportParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	periods, err := h.svc.BudgetForecast(start, end, granularity)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"periods": periods})
}

// HistoricReport handles GET /api/v1/budget/historic
func (h *Handler) HistoricReport(w http.ResponseWriter, r *http.Request) {
	start, end, granularity, err := reportParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	periods, err := h.svc.HistoricReport(start, end, granularity)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"periods": periods})
}

// CreateBill handles POST /api/v1/bills
func (h *Handler) CreateBill(w http.ResponseWriter, r *http.Request) {
	var bill models.Bill
	if err := json.NewDecoder(r.Body).Decode(&bill); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.svc.CreateBill(&bill); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, bill)
}

// AttachRule handles POST /api/v1/bills/{id}/rule
func (h *Handler) AttachRule(w http.ResponseWriter, r *http.Request) {
	billID := mux.Vars(r)["id"]
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var endDate *time.Time
	if req.EndDate != "" {
		parsed, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		endDate = &parsed
	}
	rule, err := h.svc.AttachRule(billID, req.Frequency, req.DayOfMonth, startDate, endDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func reportParams(r *http.Request) (start, end time.Time, granularity models.Granularity, err error) {
	q := r.URL.Query()
	start, err = time.Parse("2006-01-02", q.Get("start"))
	if err != nil {
		return
	}
	end, err = time.Parse("2006-01-02", q.Get("end"))
	if err != nil {
		return
	}
	granularity = models.Granularity(q.Get("granularity"))
	if granularity == "" {
		granularity = models.GranularityMonthly
	}
	return
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Valid: false, Error: err.Error()})
}
