package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dentaldesk/internal/config"
	"dentaldesk/internal/database"
	"dentaldesk/internal/events"
	"dentaldesk/internal/metrics"
	"dentaldesk/internal/models"
	"dentaldesk/internal/slots"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type AvailabilityStore interface {
	GetWeeklyAvailability(ctx context.Context, providerID int64) (models.WeeklyAvailability, error)
	SetAvailability(ctx context.Context, providerID int64, day, start, end string) error
	ClearAvailability(ctx context.Context, providerID int64, day string) error
}

type AppointmentStore interface {
	ListAppointments(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, error)
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	CreateAppointment(ctx context.Context, a *models.Appointment) error
	UpdateAppointmentStatus(ctx context.Context, id, from, to string) error
	CompleteAppointmentsBefore(ctx context.Context, date, clock string) ([]models.Appointment, error)
}

type ProviderStore interface {
	GetProvider(ctx context.Context, id int64) (*models.Provider, error)
	ListProviders(ctx context.Context, activeOnly bool) ([]models.Provider, error)
	SyncProvidersFromConfig(ctx context.Context, cfg *config.ProvidersConfig) error
}

// TableStore exposes raw tables for audit exports.
type TableStore interface {
	GetTableNames(ctx context.Context) ([]string, error)
	GetTableData(ctx context.Context, table string) ([]map[string]any, []string, error)
}

// Store is everything the booking service reads and writes.
type Store interface {
	AvailabilityStore
	AppointmentStore
	ProviderStore
	TableStore
}

type SlotCache interface {
	Get(ctx context.Context, providerID int64, date string) ([]string, bool)
	Set(ctx context.Context, providerID int64, date string, slots []string)
	InvalidateDate(ctx context.Context, providerID int64, date string)
	InvalidateProvider(ctx context.Context, providerID int64)
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, eventType string, payload any) error
}

// Options holds the booking rules.
type Options struct {
	SlotDurationMinutes int
	MinAdvance          time.Duration
	MaxAdvance          time.Duration
	HidePastSlots       bool
	Location            *time.Location
}

// OptionsFromConfig extracts booking rules from the app config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SlotDurationMinutes: cfg.Booking.SlotDurationMinutes,
		MinAdvance:          cfg.BookingMinAdvance(),
		MaxAdvance:          cfg.BookingMaxAdvance(),
		HidePastSlots:       cfg.Booking.HidePastSlots,
		Location:            cfg.Location(),
	}
}

type BookingService struct {
	store  Store
	cache  SlotCache
	events EventPublisher
	opts   Options
	now    func() time.Time
	logger zerolog.Logger
}

func NewBookingService(store Store, cache SlotCache, publisher EventPublisher, opts Options, logger *zerolog.Logger) *BookingService {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if cache == nil {
		cache = noCache{}
	}
	if publisher == nil {
		publisher = noEvents{}
	}
	return &BookingService{
		store:  store,
		cache:  cache,
		events: publisher,
		opts:   opts,
		now:    time.Now,
		logger: logger.With().Str("component", "booking").Logger(),
	}
}

// BookRequest describes a new appointment.
type BookRequest struct {
	ProviderID   int64  `json:"-"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	PatientName  string `json:"patient_name"`
	PatientPhone string `json:"patient_phone"`
	Notes        string `json:"notes"`
}

// AvailableSlots returns the free start times of an active provider on date (YYYY-MM-DD).
func (s *BookingService) AvailableSlots(ctx context.Context, providerID int64, date string) ([]string, error) {
	day, err := s.parseDate(date)
	if err != nil {
		return nil, err
	}
	if _, err := s.activeProvider(ctx, providerID); err != nil {
		return nil, err
	}

	now := s.now().In(s.opts.Location)
	today := now.Format(models.DateLayout)
	if s.opts.HidePastSlots && date < today {
		return []string{}, nil
	}

	free, err := s.freeSlots(ctx, providerID, day, true)
	if err != nil {
		return nil, err
	}

	if s.opts.HidePastSlots && date == today {
		free = laterThan(free, now.Format(models.ClockLayout))
	}
	return free, nil
}

// freeSlots loads availability and the day's bookings concurrently and generates slots.
func (s *BookingService) freeSlots(ctx context.Context, providerID int64, day time.Time, useCache bool) ([]string, error) {
	date := day.Format(models.DateLayout)
	if useCache {
		if cached, ok := s.cache.Get(ctx, providerID, date); ok {
			return cached, nil
		}
	}

	var (
		weekly models.WeeklyAvailability
		booked []models.Appointment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		weekly, err = s.store.GetWeeklyAvailability(gctx, providerID)
		return err
	})
	g.Go(func() error {
		var err error
		booked, err = s.store.ListAppointments(gctx, models.AppointmentFilter{
			ProviderID: providerID,
			Date:       date,
			Status:     models.StatusScheduled,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load schedule for provider %d on %s: %w", providerID, date, err)
	}

	free := slots.Generate(day, weekly, booked, s.opts.SlotDurationMinutes)
	metrics.ObserveGeneratedSlots(len(free))
	// A booking committed after the reads above leaves this entry stale until the TTL.
	// Book regenerates from the store, so a stale entry never admits a taken slot.
	s.cache.Set(ctx, providerID, date, free)
	return free, nil
}

func laterThan(labels []string, clock string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l > clock {
			out = append(out, l)
		}
	}
	return out
}

// Book creates a scheduled appointment for a free slot.
func (s *BookingService) Book(ctx context.Context, req BookRequest) (*models.Appointment, error) {
	day, err := s.parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if _, err := slots.ParseClock(req.Time); err != nil {
		return nil, invalid("time", "%v", err)
	}
	name := strings.TrimSpace(req.PatientName)
	if name == "" {
		return nil, invalid("patient_name", "is required")
	}

	if _, err := s.activeProvider(ctx, req.ProviderID); err != nil {
		return nil, err
	}

	appt := &models.Appointment{
		ProviderID:   req.ProviderID,
		Date:         req.Date,
		Time:         req.Time,
		Status:       models.StatusScheduled,
		PatientName:  name,
		PatientPhone: strings.TrimSpace(req.PatientPhone),
		Notes:        strings.TrimSpace(req.Notes),
	}
	start, ok := appt.StartsAt(s.opts.Location)
	if !ok {
		return nil, invalid("time", "expected HH:MM, got %q", req.Time)
	}
	if err := s.checkBookingWindow(start); err != nil {
		return nil, err
	}

	free, err := s.freeSlots(ctx, req.ProviderID, day, false)
	if err != nil {
		return nil, err
	}
	if !slots.Contains(free, req.Time) {
		return nil, ErrSlotUnavailable
	}

	if err := s.store.CreateAppointment(ctx, appt); err != nil {
		switch {
		case errors.Is(err, database.ErrSlotTaken):
			return nil, ErrSlotTaken
		case errors.Is(err, database.ErrNotFound):
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	s.cache.InvalidateDate(ctx, appt.ProviderID, appt.Date)
	metrics.IncAppointment(models.StatusScheduled)
	s.publish(ctx, events.AppointmentBooked, appt)

	s.logger.Info().
		Str("appointment_id", appt.ID).
		Int64("provider_id", appt.ProviderID).
		Str("date", appt.Date).
		Str("time", appt.Time).
		Msg("appointment booked")
	return appt, nil
}

func (s *BookingService) checkBookingWindow(start time.Time) error {
	now := s.now()
	lead := start.Sub(now)
	switch {
	case lead < 0:
		return ErrPastDate
	case lead < s.opts.MinAdvance:
		return ErrTooSoon
	case s.opts.MaxAdvance > 0 && lead > s.opts.MaxAdvance:
		return ErrDateTooFar
	}
	return nil
}

// Cancel frees the slot of a scheduled appointment.
func (s *BookingService) Cancel(ctx context.Context, id string) (*models.Appointment, error) {
	return s.transition(ctx, id, models.StatusCanceled, events.AppointmentCanceled)
}

// Complete marks a scheduled appointment as attended.
func (s *BookingService) Complete(ctx context.Context, id string) (*models.Appointment, error) {
	return s.transition(ctx, id, models.StatusCompleted, events.AppointmentCompleted)
}

func (s *BookingService) transition(ctx context.Context, id, to, eventType string) (*models.Appointment, error) {
	err := s.store.UpdateAppointmentStatus(ctx, id, models.StatusScheduled, to)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return nil, ErrAppointmentNotFound
	case errors.Is(err, database.ErrInvalidTransition):
		return nil, ErrInvalidTransition
	case err != nil:
		return nil, err
	}

	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload appointment %s: %w", id, err)
	}

	s.cache.InvalidateDate(ctx, appt.ProviderID, appt.Date)
	metrics.IncAppointment(to)
	s.publish(ctx, eventType, appt)

	s.logger.Info().Str("appointment_id", id).Str("status", to).Msg("appointment status changed")
	return appt, nil
}

// CompleteDue completes scheduled appointments that started more than olderThan ago.
func (s *BookingService) CompleteDue(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().In(s.opts.Location).Add(-olderThan)
	done, err := s.store.CompleteAppointmentsBefore(ctx, cutoff.Format(models.DateLayout), cutoff.Format(models.ClockLayout))
	if err != nil {
		return 0, fmt.Errorf("complete due appointments: %w", err)
	}

	for i := range done {
		s.cache.InvalidateDate(ctx, done[i].ProviderID, done[i].Date)
		metrics.IncAppointment(models.StatusCompleted)
		s.publish(ctx, events.AppointmentCompleted, &done[i])
	}
	if len(done) > 0 {
		s.logger.Info().Int("count", len(done)).Msg("due appointments completed")
	}
	return len(done), nil
}

// Appointments lists appointments. Date fields must be YYYY-MM-DD and Status a known status.
func (s *BookingService) Appointments(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, error) {
	for field, v := range map[string]string{"date": filter.Date, "from": filter.From, "to": filter.To} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(models.DateLayout, v); err != nil {
			return nil, invalid(field, "expected YYYY-MM-DD, got %q", v)
		}
	}
	if filter.Status != "" && !models.IsValidStatus(filter.Status) {
		return nil, invalid("status", "unknown status %q", filter.Status)
	}
	if filter.ProviderID != 0 {
		if _, err := s.provider(ctx, filter.ProviderID); err != nil {
			return nil, err
		}
	}
	return s.store.ListAppointments(ctx, filter)
}

// Providers lists active providers.
func (s *BookingService) Providers(ctx context.Context) ([]models.Provider, error) {
	return s.store.ListProviders(ctx, true)
}

// ApplyProvidersConfig syncs providers.yaml into the store and drops cached slots.
func (s *BookingService) ApplyProvidersConfig(ctx context.Context, cfg *config.ProvidersConfig) error {
	if err := s.store.SyncProvidersFromConfig(ctx, cfg); err != nil {
		return err
	}
	for _, p := range cfg.Providers {
		s.cache.InvalidateProvider(ctx, p.ID)
		s.publish(ctx, events.AvailabilityUpdated, events.AvailabilityChange{ProviderID: p.ID})
	}
	return nil
}

func (s *BookingService) parseDate(date string) (time.Time, error) {
	day, err := time.ParseInLocation(models.DateLayout, date, s.opts.Location)
	if err != nil {
		return time.Time{}, invalid("date", "expected YYYY-MM-DD, got %q", date)
	}
	return day, nil
}

func (s *BookingService) provider(ctx context.Context, id int64) (*models.Provider, error) {
	p, err := s.store.GetProvider(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrProviderNotFound
	}
	return p, err
}

func (s *BookingService) activeProvider(ctx context.Context, id int64) (*models.Provider, error) {
	p, err := s.provider(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrProviderNotFound
	}
	return p, nil
}

func (s *BookingService) publish(ctx context.Context, eventType string, payload any) {
	if err := s.events.PublishJSON(ctx, eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

type noCache struct{}

func (noCache) Get(context.Context, int64, string) ([]string, bool) { return nil, false }
func (noCache) Set(context.Context, int64, string, []string)        {}
func (noCache) InvalidateDate(context.Context, int64, string)       {}
func (noCache) InvalidateProvider(context.Context, int64)           {}

type noEvents struct{}

func (noEvents) PublishJSON(context.Context, string, any) error { return nil }
