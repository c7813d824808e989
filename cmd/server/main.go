// Copyright 2026 The FleetDesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fleetdesk/fleetdesk/internal/audit"
	"github.com/fleetdesk/fleetdesk/internal/authz"
	"github.com/fleetdesk/fleetdesk/internal/config"
	"github.com/fleetdesk/fleetdesk/internal/identity"
	"github.com/fleetdesk/fleetdesk/internal/observability/logger"
	"github.com/fleetdesk/fleetdesk/internal/observability/metrics"
	"github.com/fleetdesk/fleetdesk/internal/observability/tracing"
	"github.com/fleetdesk/fleetdesk/internal/queue"
	"github.com/fleetdesk/fleetdesk/internal/store/postgres"
	"github.com/fleetdesk/fleetdesk/internal/tenant"
	transportHTTP "github.com/fleetdesk/fleetdesk/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting fleetdesk dashboard backend")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Initialize context
	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}
	httpMetrics, err := metrics.NewHTTPMetrics(meter)
	if err != nil {
		slog.Error("failed to create http metrics", logger.Error(err))
	}

	// Initialize tenant config store
	var store tenant.Store
	var db *postgres.DB
	switch cfg.Tenants.Kind {
	case "postgres":
		db, err = postgres.New(ctx, postgres.Config{
			Host:         cfg.Database.Host,
			Port:         cfg.Database.Port,
			User:         cfg.Database.User,
			Password:     cfg.Database.Password,
			Database:     cfg.Database.Database,
			SSLMode:      cfg.Database.SSLMode,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
		})
		if err != nil {
			slog.Error("failed to connect to database", logger.Error(err))
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("connected to database")
		store = postgres.NewTenantConfigRepository(db)
	default:
		fileStore, err := tenant.NewFileStore(cfg.Tenants.Dir)
		if err != nil {
			slog.Error("failed to open tenant config directory", logger.Error(err))
			os.Exit(1)
		}
		store = fileStore
	}

	registry := tenant.NewRegistry(store)

	// Invalidate cached tenant configs on file changes
	if cfg.Tenants.Kind == "file" && cfg.Tenants.Watch {
		fs := store.(*tenant.FileStore)
		go func() {
			if err := fs.Watch(ctx, registry); err != nil {
				slog.Error("tenant config watcher stopped", logger.Error(err))
			}
		}()
	}

	// Initialize helpers
	auditLogger := audit.NewSlogLogger()
	provider := identity.NewClient(identity.Config{
		CookieName: cfg.Identity.CookieName,
		SigningKey: []byte(cfg.Identity.SigningKey),
		BaseURL:    cfg.Identity.BaseURL,
		APIKey:     cfg.Identity.APIKey,
		Timeout:    cfg.Identity.Timeout,
	})
	gate := authz.NewGate(provider, authz.ErrorPolicy(cfg.Authz.OnMembershipError), auditLogger)
	requestQueue := queue.New(cfg.Queue.Concurrency)

	// Rate limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.Window, cfg.RateLimit.Cap)
	sweeperStop := make(chan struct{})
	defer close(sweeperStop)
	rateLimiter.StartSweeper(sweeperStop, cfg.RateLimit.Sweep)

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		registry,
		provider,
		gate,
		requestQueue,
		auditLogger,
		httpMetrics,
		cfg.Tenants.DefaultTenant,
		transportHTTP.UpstreamConfig{
			Timeout:  cfg.Upstream.Timeout,
			PageSize: cfg.Upstream.PageSize,
			MaxPages: cfg.Upstream.MaxPages,
		},
	)
	if assets, err := staticAssets(); err == nil {
		handler.SetStaticAssets(assets)
	}

	// Create router
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
