package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/workclock/timesheet-backend/internal/timesheet/consumers"
	"github.com/workclock/timesheet-backend/internal/timesheet/events"
	"github.com/workclock/timesheet-backend/internal/timesheet/handler"
	"github.com/workclock/timesheet-backend/internal/timesheet/repository"
	"github.com/workclock/timesheet-backend/internal/timesheet/service"
	"github.com/workclock/timesheet-backend/pkg/config"
	"github.com/workclock/timesheet-backend/pkg/database"
	"github.com/workclock/timesheet-backend/pkg/httputil"
	"github.com/workclock/timesheet-backend/pkg/logger"
	"github.com/workclock/timesheet-backend/pkg/messaging"
)

type stores struct {
	punches   service.PunchStore
	schedules service.ScheduleStore
	absences  service.AbsenceStore
	health    func(ctx context.Context) map[string]string
	close     func()
}

func main() {
	// Load configuration
	cfg, err := config.LoadWithValidation()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(config.ServiceName, cfg.Server.Environment)
	log.Info().Msg("starting Timesheet Service")

	svcCfg, err := service.NewConfig(cfg.Timesheet)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid timesheet configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer st.close()

	// Messaging
	var rmq *messaging.RabbitMQ
	publisher := events.NewNop(log)
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		if err := rmq.DeclareDeadLetterQueue(config.ServiceName); err != nil {
			log.Fatal().Err(err).Msg("failed to declare dead letter queue")
		}

		publisher, err = events.NewTimesheetEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
	} else {
		log.Warn().Msg("RabbitMQ disabled, events are dropped and no punches are consumed")
	}

	// Initialize service
	timesheetService := service.NewTimesheetService(
		st.punches, st.schedules, st.absences, publisher, svcCfg, time.Now, log,
	)

	// Start punch consumer
	if rmq != nil {
		punchConsumer, err := consumers.NewPunchEventConsumer(rmq, cfg.Timesheet.PunchQueue, timesheetService, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create punch event consumer")
		}
		if err := punchConsumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start punch event consumer")
		}
		go watchBroker(ctx, rmq, punchConsumer, log)
	}

	// Initialize handlers
	timesheetHandler := handler.NewTimesheetHandler(timesheetService, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"status":   "healthy",
			"service":  config.ServiceName,
			"database": st.health(r.Context()),
		}
		if rmq != nil {
			status["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, status)
	})

	r.Route("/api/v1/timesheet", timesheetHandler.Register)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumers
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// openStores connects the configured storage backend and migrates it
func openStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, error) {
	if cfg.Timesheet.Storage == config.StorageMemory {
		if cfg.Server.IsDevelopment() {
			log.Info().Msg("using in-memory storage")
		} else {
			log.Warn().Str("environment", cfg.Server.Environment).Msg("using in-memory storage, data is lost on restart")
		}
		mem := repository.NewMemoryStore()
		return &stores{
			punches:   mem,
			schedules: mem,
			absences:  mem,
			health: func(context.Context) map[string]string {
				return map[string]string{"status": "up", "backend": config.StorageMemory}
			},
			close: func() {},
		}, nil
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	log.Info().Str("database", cfg.Database.Redacted()).Msg("database ready")

	return &stores{
		punches:   repository.NewPunchRepository(db),
		schedules: repository.NewScheduleRepository(db),
		absences:  repository.NewAbsenceRepository(db),
		health:    db.Health,
		close:     func() { _ = db.Close() },
	}, nil
}

// watchBroker reconnects after the broker drops the connection and restarts
// the consumer on the new channel
func watchBroker(ctx context.Context, rmq *messaging.RabbitMQ, consumer *consumers.PunchEventConsumer, log *logger.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case amqpErr, ok := <-rmq.NotifyClose():
			if !ok {
				// closed on purpose
				return
			}
			log.Warn().Interface("reason", amqpErr).Msg("RabbitMQ connection lost")

			if err := rmq.Reconnect(ctx); err != nil {
				log.Error().Err(err).Msg("giving up on RabbitMQ")
				return
			}
			if err := consumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("failed to restart punch event consumer")
				return
			}
		}
	}
}
