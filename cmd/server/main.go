package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gavelclass/interact-server-go/internal/config"
	"github.com/gavelclass/interact-server-go/internal/database"
	"github.com/gavelclass/interact-server-go/internal/handler"
	"github.com/gavelclass/interact-server-go/internal/jobs"
	"github.com/gavelclass/interact-server-go/internal/middleware"
	"github.com/gavelclass/interact-server-go/internal/redis"
	"github.com/gavelclass/interact-server-go/internal/repository"
	"github.com/gavelclass/interact-server-go/internal/service"
	"github.com/gavelclass/interact-server-go/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setLogLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	userRepo := repository.NewUserRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	handRepo := repository.NewHandRaiseRepository(db.DB)
	timerRepo := repository.NewSpeechTimerRepository(db.DB)
	pollRepo := repository.NewPollRepository(db.DB)
	banRepo := repository.NewBanRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	snapshotService := service.NewSnapshotService(sessionRepo, handRepo, timerRepo, pollRepo, broker)
	sessionService := service.NewSessionService(sessionRepo, broker, snapshotService)
	handService := service.NewHandService(sessionRepo, handRepo, banRepo, snapshotService)
	timerService := service.NewTimerService(db, sessionRepo, handRepo, timerRepo, snapshotService)
	pollService := service.NewPollService(db, sessionRepo, pollRepo, snapshotService)
	moderationService := service.NewModerationService(
		db, sessionRepo, banRepo, handRepo, timerRepo, broker, snapshotService,
	)

	authMiddleware := middleware.NewAuthMiddleware(userRepo)

	sessionHandler := handler.NewSessionHandler(sessionService, snapshotService)
	interactHandler := handler.NewInteractHandler(handService, timerService, pollService, moderationService)
	eventsHandler := handler.NewEventsHandler(broker, snapshotService, moderationService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":     "ok",
			"timestamp":  time.Now().UnixMilli(),
			"sseClients": broker.TotalClients(),
		})
	})

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		sessionHandler.Register(r)
		interactHandler.Register(r)
		r.Get("/{id}/stream", eventsHandler.ServeHTTP)
	})

	sweepJob := jobs.NewTimerSweepJob(
		db, timerRepo, handRepo, snapshotService,
		cfg.TimerSweepInterval(), cfg.TimerGrace(),
	)
	sweepJob.Start()
	defer sweepJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
