package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"dentaldesk/internal/api"
	"dentaldesk/internal/cache"
	"dentaldesk/internal/config"
	"dentaldesk/internal/database"
	"dentaldesk/internal/events"
	"dentaldesk/internal/jobs"
	"dentaldesk/internal/metrics"
	"dentaldesk/internal/notify"
	"dentaldesk/internal/service"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn().Err(err).Msg("failed to read .env")
	}

	cfg, err := config.Load(os.Getenv("DENTALDESK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		logger = logger.Level(lvl)
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}
	slotCache := cache.NewSlotCache(rdb, cfg.SlotCacheTTL(), &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewEventBus(&logger)
	svc := service.NewBookingService(db, slotCache, bus, service.OptionsFromConfig(cfg), &logger)

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Telegram.BotToken != "" {
		bot, err := notify.NewBotSender(cfg.Telegram.BotToken, cfg.Telegram.Debug)
		if err != nil {
			logger.Error().Err(err).Msg("telegram disabled")
		} else {
			notifier = notify.NewTelegramNotifier(bot, cfg.Telegram.StaffChatIDs, db, &logger)
		}
	}
	notifyHandler := events.Detached(notifier.HandleEvent, 30*time.Second, &logger)
	bus.Subscribe(events.AppointmentBooked, notifyHandler)
	bus.Subscribe(events.AppointmentCanceled, notifyHandler)

	watcher := &config.ProvidersWatcher{
		Path:     cfg.Providers.Path,
		Interval: cfg.ProvidersWatchInterval(),
		OnUpdate: func(pc *config.ProvidersConfig) {
			if err := svc.ApplyProvidersConfig(ctx, pc); err != nil {
				logger.Error().Err(err).Msg("failed to apply providers config")
				return
			}
			logger.Info().Str("providers", pc.String()).Msg("providers config applied")
		},
		OnError: func(err error) {
			logger.Error().Err(err).Msg("providers config reload failed, keeping previous")
		},
	}
	if err := watcher.Start(ctx); err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Providers.Path).Msg("failed to load providers config")
	}

	var backups jobs.Backuper
	if cfg.Backup.Enabled {
		backups = database.NewBackupService(db, cfg.Backup, &logger)
	}
	scheduler, err := jobs.NewScheduler(jobs.ConfigFromApp(cfg), svc, backups, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid job schedule")
	}
	scheduler.Start(ctx)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	checks := map[string]api.Checker{"db": db.PingContext}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	server := api.NewHTTPServer(cfg, svc, checks, &logger)

	logger.Info().Int("port", cfg.Server.Port).Str("timezone", cfg.Booking.Timezone).Msg("dentaldesk started")
	if err := server.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("API server error")
	}

	ctxStop, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := scheduler.Stop(ctxStop); err != nil {
		logger.Warn().Err(err).Msg("jobs did not finish before shutdown")
	}
	logger.Info().Msg("dentaldesk stopped")
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
