package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"signet/internal/jwtauth"
	"signet/internal/platform/config"
	"signet/internal/platform/httpserver"
	"signet/internal/platform/logger"
	platformmetrics "signet/internal/platform/metrics"
	"signet/internal/platform/middleware"
	platformredis "signet/internal/platform/redis"
	"signet/internal/webhook/dispatcher"
	"signet/internal/webhook/handler"
	"signet/internal/webhook/metrics"
	"signet/internal/webhook/notifier"
	"signet/internal/webhook/service"
	"signet/internal/webhook/store/attempt"
	"signet/internal/webhook/store/subscription"
	"signet/internal/webhook/stream"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	// Store selection: Postgres when configured, in-memory otherwise.
	var (
		subStore     subscription.Store
		attemptStore attempt.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		if err := db.Ping(); err != nil {
			log.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		subStore = subscription.NewPostgres(db)
		attemptStore = attempt.NewPostgres(db)
	} else {
		log.Warn("no DATABASE_URL configured, using in-memory stores")
		subStore = subscription.NewInMemory()
		attemptStore = attempt.NewInMemory()
	}

	// Optional Redis match cache.
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	subStore = subscription.NewCached(subStore, redisClient, log)

	// Optional Kafka delivery stream.
	publisher, err := stream.New(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	if err != nil {
		log.Error("failed to connect to kafka", "error", err)
		os.Exit(1)
	}
	streamCtx, stopStream := context.WithCancel(context.Background())
	defer stopStream()
	if publisher != nil {
		go func() {
			if err := publisher.Run(streamCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("delivery stream stopped", "error", err)
			}
		}()
	}

	m := metrics.New()
	registry := service.New(subStore, attemptStore,
		service.WithLogger(log),
		service.WithMetrics(m),
	)

	// Delivery pipeline: dispatcher fans events out, notifier derives them
	// from reported document mutations.
	dispatcherOpts := []dispatcher.Option{
		dispatcher.WithLogger(log),
		dispatcher.WithMetrics(m),
	}
	if publisher != nil {
		dispatcherOpts = append(dispatcherOpts, dispatcher.WithAttemptPublisher(publisher))
	}
	sender := dispatcher.New(subStore, attemptStore, dispatcherOpts...)
	notif := notifier.New(sender,
		notifier.WithLogger(log),
		notifier.WithMetrics(m),
	)

	jwt := jwtauth.New(cfg.JWTSigningKey, "signet")
	webhooks := handler.New(registry, log)
	documents := handler.NewEvents(notif, log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(middleware.Metrics(platformmetrics.New()))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireTenant(jwt, log))
		r.Use(middleware.ContentTypeJSON)
		webhooks.Register(r)
		documents.Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting signet", "addr", cfg.Addr,
		"postgres", cfg.DatabaseURL != "",
		"redis_cache", redisClient != nil,
		"delivery_stream", publisher != nil,
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	// Drain in-flight fan-outs before tearing down the stream they feed.
	notif.Wait()
	if publisher != nil {
		stopStream()
		publisher.Close(ctx)
	}
}
