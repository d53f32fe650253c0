package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"dentaldesk/internal/models"
	"dentaldesk/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ProvidersResponse struct {
	Providers []models.Provider `json:"providers"`
}

type AvailabilityResponse struct {
	ProviderID   int64                     `json:"provider_id"`
	Availability models.WeeklyAvailability `json:"availability"`
}

type SlotsResponse struct {
	ProviderID int64    `json:"provider_id"`
	Date       string   `json:"date"`
	Slots      []string `json:"slots"`
}

type AppointmentsResponse struct {
	Appointments []models.Appointment `json:"appointments"`
}

// GET /api/providers
func (s *HTTPServer) handleProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := s.svc.Providers(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if providers == nil {
		providers = []models.Provider{}
	}
	writeJSON(w, http.StatusOK, ProvidersResponse{Providers: providers})
}

// GET /api/providers/{id}/availability
func (s *HTTPServer) handleGetAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := providerID(w, r)
	if !ok {
		return
	}
	weekly, err := s.svc.Availability(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if weekly == nil {
		weekly = models.WeeklyAvailability{}
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{ProviderID: id, Availability: weekly})
}

// PUT /api/providers/{id}/availability/{day}
func (s *HTTPServer) handleSetAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := providerID(w, r)
	if !ok {
		return
	}
	var window models.Window
	if !decodeJSON(w, r, &window) {
		return
	}
	if err := s.svc.SetAvailability(r.Context(), id, mux.Vars(r)["day"], window); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/providers/{id}/availability/{day}
func (s *HTTPServer) handleClearAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := providerID(w, r)
	if !ok {
		return
	}
	if err := s.svc.ClearAvailability(r.Context(), id, mux.Vars(r)["day"]); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/providers/{id}/slots?date=YYYY-MM-DD
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	id, ok := providerID(w, r)
	if !ok {
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required (YYYY-MM-DD)")
		return
	}
	slots, err := s.svc.AvailableSlots(r.Context(), id, date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if slots == nil {
		slots = []string{}
	}
	writeJSON(w, http.StatusOK, SlotsResponse{ProviderID: id, Date: date, Slots: slots})
}

// GET /api/providers/{id}/appointments?date=&from=&to=&status=&limit=
func (s *HTTPServer) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	id, ok := providerID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := models.AppointmentFilter{
		ProviderID: id,
		Date:       q.Get("date"),
		From:       q.Get("from"),
		To:         q.Get("to"),
		Status:     q.Get("status"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	appts, err := s.svc.Appointments(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if appts == nil {
		appts = []models.Appointment{}
	}
	writeJSON(w, http.StatusOK, AppointmentsResponse{Appointments: appts})
}

// POST /api/providers/{id}/appointments
func (s *HTTPServer) handleBook(w http.ResponseWriter, r *http.Request) {
	id, ok := providerID(w, r)
	if !ok {
		return
	}
	var req service.BookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ProviderID = id

	appt, err := s.svc.Book(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// POST /api/appointments/{id}/cancel
func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.svc.Cancel)
}

// POST /api/appointments/{id}/complete
func (s *HTTPServer) handleComplete(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.svc.Complete)
}

func (s *HTTPServer) handleTransition(w http.ResponseWriter, r *http.Request, apply func(context.Context, string) (*models.Appointment, error)) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, http.StatusBadRequest, "appointment id is required")
		return
	}
	appt, err := apply(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// GET /api/providers/{id}/appointments/export?from=&to=
func (s *HTTPServer) handleExportAppointments(w http.ResponseWriter, r *http.Request) {
	id, ok := providerID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to are required (YYYY-MM-DD)")
		return
	}

	var buf bytes.Buffer
	name, err := s.svc.ExportAppointments(r.Context(), id, from, to, &buf)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeAttachment(w, name, &buf)
}

// GET /api/audit/export
func (s *HTTPServer) handleExportAudit(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	name, err := s.svc.ExportAudit(r.Context(), &buf)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeAttachment(w, name, &buf)
}

func writeAttachment(w http.ResponseWriter, name string, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// GET /healthz
func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz
func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.Warn().Err(err).Str("check", name).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, name+" not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
