package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jerry-run/apirouter/internal/api"
	"github.com/jerry-run/apirouter/internal/config"
	"github.com/jerry-run/apirouter/internal/database"
	"github.com/jerry-run/apirouter/internal/keys"
	"github.com/jerry-run/apirouter/internal/providers"
	"github.com/jerry-run/apirouter/internal/search"
	"github.com/jerry-run/apirouter/internal/usage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config load: %v", err)
	}

	var (
		keyStore keys.Store
		registry providers.Registry
		ledger   usage.Ledger
	)

	switch cfg.StorageBackend {
	case "memory":
		keyStore = keys.NewMemoryStore()
		registry = providers.NewMemoryRegistry()
		ledger = usage.NewMemoryLedger()
	default:
		db, err := database.Open(cfg.DatabasePath)
		if err != nil {
			log.Fatalf("Database init: %v", err)
		}
		defer database.Close(db)

		keyStore = keys.NewDBStore(db)
		registry = providers.NewDBRegistry(db)
		ledger = usage.NewDBLedger(db)
	}

	gateway := search.NewGateway(registry, cfg.BraveBaseURL)
	handlers := api.NewHandlers(keyStore, registry, ledger, gateway)

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	handlers.Register(r)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("API Router starting on %s (storage: %s)", cfg.ListenAddr, cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	log.Println("API Router stopped")
}
