package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pysugar/antigravity-nexus/internal/api/handlers"
	authgoogle "github.com/pysugar/antigravity-nexus/internal/auth/google"
	"github.com/pysugar/antigravity-nexus/internal/config"
	"github.com/pysugar/antigravity-nexus/internal/db"
	"github.com/pysugar/antigravity-nexus/internal/logging"
	"github.com/pysugar/antigravity-nexus/internal/migration"
	"github.com/pysugar/antigravity-nexus/internal/pool"
	"github.com/pysugar/antigravity-nexus/internal/selector"
	"github.com/pysugar/antigravity-nexus/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.InitDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	accountPool, err := pool.New(database)
	if err != nil {
		log.Fatalf("Failed to load account pool: %v", err)
	}

	selector.UltraRequiredModels = append(selector.UltraRequiredModels, cfg.UltraRequiredModels...)

	oauthClient := authgoogle.NewClient()
	resolver := migration.NewResolver(accountPool, oauthClient, cfg.LegacyDir)

	r := chi.NewRouter()
	r.Use(logging.Middleware)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/accounts", handlers.AccountsHandler(accountPool))
		r.Delete("/accounts/{email}", handlers.RemoveAccountHandler(accountPool))
		r.Post("/accounts/{email}/usage", handlers.UsageHandler(accountPool))
		r.Get("/select", handlers.SelectHandler(accountPool))
		r.Post("/import/legacy", handlers.ImportLegacyHandler(resolver))
		r.Post("/import/file", handlers.ImportFileHandler(resolver))
	})

	log.Printf("🚀 Antigravity-Nexus %s starting on http://%s", version.Version, cfg.Addr())
	log.Printf("🪪 Upstream User-Agent: %s", version.UserAgent())
	log.Printf("📦 Pool holds %d accounts", accountPool.Len())

	if err := http.ListenAndServe(cfg.Addr(), r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
