package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ethlas/builderhub/internal/auth"
	"github.com/ethlas/builderhub/internal/config"
	"github.com/ethlas/builderhub/internal/db"
	httpx "github.com/ethlas/builderhub/internal/http"
	"github.com/ethlas/builderhub/internal/http/handlers"
	"github.com/ethlas/builderhub/internal/observability"
	fsrepo "github.com/ethlas/builderhub/internal/repo/firestore"
	"github.com/ethlas/builderhub/internal/repo/memory"
	pgrepo "github.com/ethlas/builderhub/internal/repo/postgres"
)

func main() {
	cfg, err := config.Load()

	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)

	// Tracing is best effort: a missing collector should not stop the API.
	tracerShutdown, err := observability.InitTracer(context.Background(), "builderhub", cfg.OTLPEndpoint)

	if err != nil {
		log.Warn("tracer init failed, continuing without tracing", "err", err)
		tracerShutdown = func(context.Context) error { return nil }
	}

	registry := prometheus.NewRegistry()
	prom := observability.NewProm(registry)

	store, ping, closeStore, err := buildStore(cfg, prom)

	if err != nil {
		log.Error("store init failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}

	jwt := auth.NewManager(cfg.JWTSecret)

	router := httpx.NewRouter(log, cfg, store, jwt, jwt, prom, registry, ping)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}

		if err := tracerShutdown(ctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}

		closeStore()
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

// buildStore constructs the configured store driver plus its readiness
// ping and cleanup hook.
func buildStore(cfg config.Config, prom *observability.Prom) (handlers.BuilderStore, func() error, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverFirestore:
		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		repo, err := fsrepo.New(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentialsFile, prom)

		if err != nil {
			return nil, nil, nil, err
		}

		ping := func() error { return nil }

		return repo, ping, func() { _ = repo.Close() }, nil

	case config.DriverPostgres:
		pool, err := db.NewPool(cfg.DBURL)

		if err != nil {
			return nil, nil, nil, err
		}

		err = db.EnsureSchema(pool)

		if err != nil {
			pool.Close()
			return nil, nil, nil, err
		}

		ping := func() error {
			ctx, cancel := config.WithTimeout(1 * time.Second)
			defer cancel()

			return pool.Ping(ctx)
		}

		return pgrepo.NewBuildersRepo(pool, prom), ping, pool.Close, nil

	default:
		repo := memory.NewBuildersRepo()
		ping := func() error { return nil }

		return repo, ping, func() {}, nil
	}
}
