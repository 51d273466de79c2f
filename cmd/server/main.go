package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/estructura360/estructura-360-engineering-sub000/internal/config"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/db"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/logging"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/migrations"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/observability"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/offline"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/pricing"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/seed"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/store"
)

type server struct {
	store    *store.Store
	metrics  *observability.Metrics
	log      *slog.Logger
	workers  int
	currency string
	// outbox forwards saved calculations downstream; nil when not configured.
	outbox *offline.Manager
}

func main() {
	cfg := config.Load()

	logger, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}
	defer logger.Close()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := migrations.Up(ctx, database); err != nil {
		log.Fatalf("failed to run database migrations: %v", err)
	}

	seedCfg := seed.Config{}
	if cfg.PricesFile != "" {
		if seedCfg.Prices, err = pricing.LoadPrices(cfg.PricesFile); err != nil {
			log.Fatalf("failed to load prices: %v", err)
		}
	}
	if cfg.IsDev() {
		seedCfg.DemoProject = cfg.DemoProject
	}
	stats, err := seed.Run(ctx, database, seedCfg)
	if err != nil {
		log.Fatalf("failed to seed database: %v", err)
	}
	logger.Info("seed complete", "inserts", stats.Inserts)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	srv := &server{
		store:    store.New(database),
		metrics:  metrics,
		log:      logger.Logger,
		workers:  cfg.DefaultWorkers,
		currency: cfg.Currency,
	}

	if len(cfg.SyncKafkaBrokers) > 0 {
		sender := offline.NewKafkaSender(cfg.SyncKafkaBrokers, cfg.SyncKafkaTopic)
		defer sender.Close()
		srv.outbox = offline.New(database, sender, offline.Options{
			Interval:    cfg.SyncInterval,
			Logger:      logger.Logger,
			Observer:    metrics,
			StartOnline: true,
		})
		srv.outbox.Start(ctx)
		defer srv.outbox.Close()
		logger.Info("forwarding calculations to kafka", "brokers", cfg.SyncKafkaBrokers, "topic", cfg.SyncKafkaTopic)
	}

	var h http.Handler = srv.routes()
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", offline.IdempotencyHeader}),
	)(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)),
		handlers.PrintRecoveryStack(true),
	)(h)
	h = handlers.CombinedLoggingHandler(os.Stdout, h)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on %s", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server stopped: %v", err)
	}
}

func (s *server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.metrics.Middleware)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/layout", s.handleLayoutQuery)
		r.Post("/layout", s.handleLayout)
		r.Post("/wall", s.handleWall)
		r.Get("/estimate", s.handleEstimateQuery)
		r.Post("/estimate", s.handleEstimate)

		r.Get("/prices", s.handlePricesGet)
		r.Put("/prices", s.handlePricesPut)

		r.Get("/projects", s.handleProjectsList)
		r.Post("/projects", s.handleProjectsCreate)
		r.Get("/projects/{id}", s.handleProjectGet)
		r.Put("/projects/{id}", s.handleProjectUpdate)
		r.Delete("/projects/{id}", s.handleProjectDelete)
		r.Get("/projects/{id}/calculations", s.handleCalculationsList)
		r.Post("/projects/{id}/calculations", s.handleCalculationsCreate)
		r.Get("/projects/{id}/logs", s.handleLogsList)
		r.Post("/projects/{id}/logs", s.handleLogsCreate)

		r.Get("/calculations/{id}", s.handleCalculationGet)
		r.Get("/calculations/{id}/text", s.handleCalculationText)
		r.Get("/calculations/{id}/xlsx", s.handleCalculationXLSX)

		r.Post("/sync/{kind}", s.handleSync)
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DB().PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
