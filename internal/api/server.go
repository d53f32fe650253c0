package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"dentaldesk/internal/config"
	"dentaldesk/internal/models"
	"dentaldesk/internal/service"
)

// BookingService is the part of service.BookingService the API exposes.
type BookingService interface {
	Providers(ctx context.Context) ([]models.Provider, error)
	Availability(ctx context.Context, providerID int64) (models.WeeklyAvailability, error)
	SetAvailability(ctx context.Context, providerID int64, day string, window models.Window) error
	ClearAvailability(ctx context.Context, providerID int64, day string) error
	AvailableSlots(ctx context.Context, providerID int64, date string) ([]string, error)
	Appointments(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, error)
	Book(ctx context.Context, req service.BookRequest) (*models.Appointment, error)
	Cancel(ctx context.Context, id string) (*models.Appointment, error)
	Complete(ctx context.Context, id string) (*models.Appointment, error)
	ExportAppointments(ctx context.Context, providerID int64, from, to string, w io.Writer) (string, error)
	ExportAudit(ctx context.Context, w io.Writer) (string, error)
}

// Checker reports whether a dependency is ready to serve traffic.
type Checker func(ctx context.Context) error

type HTTPServer struct {
	cfg      *config.Config
	svc      BookingService
	checks   map[string]Checker
	limiters *clientLimiters
	logger   zerolog.Logger
	server   *http.Server
}

// NewHTTPServer builds the API server. checks are run by /readyz.
func NewHTTPServer(cfg *config.Config, svc BookingService, checks map[string]Checker, logger *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		cfg:      cfg,
		svc:      svc,
		checks:   checks,
		limiters: newClientLimiters(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		logger:   logger.With().Str("component", "api").Logger(),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.RequestTimeout(),
		WriteTimeout:      2 * cfg.RequestTimeout(),
		IdleTimeout:       60 * time.Second,
	}
	if cfg.Server.APIKey == "" {
		s.logger.Warn().Msg("server.api_key is empty, API authentication disabled")
	}
	return s
}

// Handler returns the fully wrapped router.
func (s *HTTPServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.observe)

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.authenticate, s.rateLimit, s.timeout)

	api.HandleFunc("/providers", s.handleProviders).Methods(http.MethodGet)
	api.HandleFunc("/providers/{id:[0-9]+}/availability", s.handleGetAvailability).Methods(http.MethodGet)
	api.HandleFunc("/providers/{id:[0-9]+}/availability/{day}", s.handleSetAvailability).Methods(http.MethodPut)
	api.HandleFunc("/providers/{id:[0-9]+}/availability/{day}", s.handleClearAvailability).Methods(http.MethodDelete)
	api.HandleFunc("/providers/{id:[0-9]+}/slots", s.handleSlots).Methods(http.MethodGet)
	api.HandleFunc("/providers/{id:[0-9]+}/appointments/export", s.handleExportAppointments).Methods(http.MethodGet)
	api.HandleFunc("/providers/{id:[0-9]+}/appointments", s.handleListAppointments).Methods(http.MethodGet)
	api.HandleFunc("/providers/{id:[0-9]+}/appointments", s.handleBook).Methods(http.MethodPost)
	api.HandleFunc("/appointments/{id}/cancel", s.handleCancel).Methods(http.MethodPost)
	api.HandleFunc("/appointments/{id}/complete", s.handleComplete).Methods(http.MethodPost)
	api.HandleFunc("/audit/export", s.handleExportAudit).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	var h http.Handler = r
	if len(s.cfg.Server.AllowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.cfg.Server.AllowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type", apiKeyHeader}),
			handlers.ExposedHeaders([]string{"Content-Disposition"}),
		)(h)
	}
	if s.cfg.Server.TrustProxyHeaders {
		h = handlers.ProxyHeaders(h)
	}
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
		handlers.PrintRecoveryStack(true),
	)(h)
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("API server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("shutdown API server: %w", err)
	}
	s.logger.Info().Msg("API server stopped")
	return nil
}

type recoveryLogger struct {
	logger zerolog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error().Msg(fmt.Sprint(v...))
}
