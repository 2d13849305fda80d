package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agromet-cloud/internal/config"
	"agromet-cloud/internal/dispatch"
	"agromet-cloud/internal/eventing"
	"agromet-cloud/internal/indicators"
	indicatorrepo "agromet-cloud/internal/indicators/infrastructure/postgres"
	"agromet-cloud/internal/ingest"
	masterdatarepo "agromet-cloud/internal/masterdata/infrastructure/postgres"
	"agromet-cloud/internal/observability/metrics"
	"agromet-cloud/internal/providers"
	"agromet-cloud/internal/providers/openmeteo"
	usageapp "agromet-cloud/internal/usage/application"
	usagerepo "agromet-cloud/internal/usage/infrastructure/postgres"
	weatherrepo "agromet-cloud/internal/weather/infrastructure/postgres"

	"github.com/go-co-op/gocron"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	providerRepo := masterdatarepo.NewProviderRepository(db)
	linkRepo := masterdatarepo.NewLinkRepository(db)
	documentRepo := usagerepo.NewDocumentRepository(db)
	measurementRepo := weatherrepo.NewMeasurementRepository(db)

	counter, err := usageapp.NewCounter(documentRepo)
	if err != nil {
		logger.Fatalf("usage counter error: %v", err)
	}
	picker, err := usageapp.NewPicker(providerRepo, counter)
	if err != nil {
		logger.Fatalf("credential picker error: %v", err)
	}

	registry := providers.NewRegistry()
	var clientOpts []openmeteo.Option
	if cfg.OpenMeteoBaseURL != "" {
		clientOpts = append(clientOpts, openmeteo.WithBaseURL(cfg.OpenMeteoBaseURL))
	}
	openMeteo, err := openmeteo.NewClient(&http.Client{Timeout: cfg.HTTPTimeout}, logger, clientOpts...)
	if err != nil {
		logger.Fatalf("open-meteo client error: %v", err)
	}
	registry.Register(openmeteo.Code, openMeteo)

	pipeline, err := ingest.NewPipeline(registry, measurementRepo, logger)
	if err != nil {
		logger.Fatalf("ingest pipeline error: %v", err)
	}

	var bus eventing.EventBus
	if cfg.RecomputeIndicators {
		memBus := eventing.NewInMemoryBus()
		engine, err := indicators.NewEngine(measurementRepo, indicatorrepo.NewIndicatorRepository(db))
		if err != nil {
			logger.Fatalf("indicator engine error: %v", err)
		}
		subscriber, err := indicators.NewSubscriber(engine, logger)
		if err != nil {
			logger.Fatalf("indicator subscriber error: %v", err)
		}
		subscriber.Register(memBus)
		bus = memBus
	}

	runner, err := dispatch.NewRunner(pipeline, counter, linkRepo, bus, logger)
	if err != nil {
		logger.Fatalf("job runner error: %v", err)
	}
	pool, err := dispatch.NewPool(runner, logger,
		dispatch.WithWorkers(cfg.Workers),
		dispatch.WithJobTimeout(cfg.JobTimeout),
	)
	if err != nil {
		logger.Fatalf("worker pool error: %v", err)
	}
	pool.Start()

	orchestrator, err := dispatch.NewOrchestrator(linkRepo, picker, measurementRepo, pool, logger,
		dispatch.WithMaxGapSpanDays(cfg.MaxGapSpanDays),
	)
	if err != nil {
		logger.Fatalf("orchestrator error: %v", err)
	}

	scheduler := gocron.NewScheduler(time.UTC)
	_, err = scheduler.Every(cfg.CycleInterval).Do(func() {
		stats, err := orchestrator.RunCycle(context.Background())
		if err != nil {
			logger.Printf("dispatch cycle error: %v", err)
			return
		}
		if bus != nil {
			_ = bus.Publish(context.Background(), eventing.CycleCompleted{
				OccurredAt:    stats.At,
				Checked:       stats.Checked,
				SkippedLimits: stats.SkippedLimits,
				SkippedPeriod: stats.SkippedPeriod,
				Dispatched:    stats.Dispatched,
			})
		}
	})
	if err != nil {
		logger.Fatalf("scheduler error: %v", err)
	}
	scheduler.StartAsync()
	logger.Printf("dispatch cycle scheduled every %s", cfg.CycleInterval)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(mux, logger)}
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Printf("shutting down")
	scheduler.Stop()
	pool.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown error: %v", err)
	}
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
