package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cybrsens.io/internal/audit"
	"cybrsens.io/internal/config"
	"cybrsens.io/internal/directory"
	"cybrsens.io/internal/httpapi"
	"cybrsens.io/internal/metrics"
	"cybrsens.io/internal/obs"
	"cybrsens.io/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Without a DSN the service runs on in-memory stores; local demos and
	// the test suite use that mode.
	var (
		directoryStore directory.Store
		metricsStore   metrics.Store
		readyProbe     httpapi.ReadyProbe
		pgStore        *pg.Store
	)
	if cfg.DatabaseDSN != "" {
		pgStore, err = pg.Open(cfg.DatabaseDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		directoryStore = pgStore
		metricsStore = pgStore
		readyProbe = httpapi.ReadyProbe{Pinger: pgStore}
	} else {
		auditLog := audit.NewMemory()
		directoryStore = directory.NewMemory(auditLog)
		metricsStore = metrics.NewMemory(auditLog)
	}

	directorySvc, err := directory.NewService(directoryStore)
	if err != nil {
		log.Fatalf("directory service: %v", err)
	}
	aggregator, err := metrics.NewAggregator(metricsStore)
	if err != nil {
		log.Fatalf("metrics aggregator: %v", err)
	}

	api := httpapi.New(httpapi.Config{
		Directory:    directorySvc,
		Metrics:      aggregator,
		Ready:        readyProbe,
		Version:      version,
		RateBurst:    cfg.RateBurst,
		RatePerSec:   cfg.RatePerSec,
		MaxBodyBytes: cfg.MaxBodyBytes,
		StoreTimeout: cfg.StoreTimeout,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting cybrsens-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
