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

package http

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fleetdesk/fleetdesk/internal/audit"
	"github.com/fleetdesk/fleetdesk/internal/authz"
	"github.com/fleetdesk/fleetdesk/internal/identity"
	"github.com/fleetdesk/fleetdesk/internal/observability/logger"
	"github.com/fleetdesk/fleetdesk/internal/observability/metrics"
	"github.com/fleetdesk/fleetdesk/internal/queue"
	"github.com/fleetdesk/fleetdesk/internal/teable"
	"github.com/fleetdesk/fleetdesk/internal/tenant"
)

// UpstreamConfig holds per-call settings for backend proxying.
type UpstreamConfig struct {
	Timeout  time.Duration
	PageSize int
	MaxPages int
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	registry    *tenant.Registry
	provider    identity.Provider
	gate        *authz.Gate
	queue       *queue.Queue
	auditLogger audit.Logger
	httpMetrics *metrics.HTTPMetrics

	defaultTenant string
	upstream      UpstreamConfig
	staticAssets  fs.FS
}

// SetStaticAssets wires the bundled dashboard assets served under
// /static/. Optional; without assets the static routes answer 404.
func (h *Handler) SetStaticAssets(assets fs.FS) {
	h.staticAssets = assets
}

// NewHandler creates a new HTTP handler
func NewHandler(
	registry *tenant.Registry,
	provider identity.Provider,
	gate *authz.Gate,
	q *queue.Queue,
	auditLogger audit.Logger,
	httpMetrics *metrics.HTTPMetrics,
	defaultTenant string,
	upstream UpstreamConfig,
) *Handler {
	if defaultTenant == "" {
		defaultTenant = tenant.DefaultTenantID
	}
	return &Handler{
		registry:      registry,
		provider:      provider,
		gate:          gate,
		queue:         q,
		auditLogger:   auditLogger,
		httpMetrics:   httpMetrics,
		defaultTenant: defaultTenant,
		upstream:      upstream,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter, h.httpMetrics, h.auditLogger))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(h.TenantResolution)
	r.Use(h.RequireSession)

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/tenant-config", h.TenantConfig)

		r.Route("/work-schedule", func(r chi.Router) {
			r.Get("/", h.ListWorkSchedule)
			r.Post("/", h.CreateWorkSchedule)
			r.Post("/batch", h.BatchWorkSchedule)
			r.Patch("/{recordID}", h.UpdateWorkSchedule)
			r.Delete("/{recordID}", h.DeleteWorkSchedule)
		})

		mountResource(r, "/customers", h, tenant.TableCustomers)
		mountResource(r, "/drivers", h, tenant.TableDrivers)
		mountResource(r, "/vehicles", h, tenant.TableVehicles)
		r.Get("/vehicle-types", h.listResource(tenant.TableVehicleTypes))

		r.Post("/upload-attachment", h.UploadAttachment)
		r.Post("/upload-to-record", h.UploadToRecord)
		r.Post("/replace-file", h.ReplaceFile)
		r.Post("/simple-upload", h.UploadToRecord)
		r.Get("/view-file", h.ViewFile)
		r.Post("/delete-file", h.DeleteAttachment)
		r.Post("/delete-attachment", h.DeleteAttachment)
		r.Post("/simple-delete", h.DeleteAttachment)
	})

	r.Handle("/static/*", StaticHandler{Assets: h.staticAssets})
	r.Get("/sign-in", h.SignInPage)
	r.Get("/sign-up", h.SignUpPage)
	r.Get("/", h.TenantPage)
	r.Get("/{tenant}", h.TenantPage)

	return r
}

func mountResource(r chi.Router, pattern string, h *Handler, table string) {
	r.Route(pattern, func(r chi.Router) {
		r.Get("/", h.listResource(table))
		r.Post("/", h.createResource(table))
		r.Patch("/{recordID}", h.updateResource(table))
		r.Delete("/{recordID}", h.deleteResource(table))
	})
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "fleetdesk",
	})
}

// TenantConfig exposes the public slice of a tenant's configuration:
// id and display name only. Table and field identifiers and credentials
// never leave the server. Unknown and malformed tenant identifiers get
// the same generic 404.
func (h *Handler) TenantConfig(w http.ResponseWriter, r *http.Request) {
	tenantID := GetTenantID(r.Context())
	cfg, err := h.registry.Load(r.Context(), tenantID)
	if err != nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"id":   cfg.ID,
		"name": cfg.Name,
	})
}

// tenantContext builds the request-scoped tenant context from the
// resolved tenant ID: cached config plus the env-derived credential.
// Never cached across requests.
func (h *Handler) tenantContext(r *http.Request) (*tenant.Context, error) {
	tenantID := GetTenantID(r.Context())
	cfg, err := h.registry.Load(r.Context(), tenantID)
	if err != nil {
		return nil, err
	}
	return &tenant.Context{
		TenantID:   tenantID,
		Config:     cfg,
		Credential: tenant.ResolveCredential(tenantID),
	}, nil
}

// gateway builds a single-tenant backend client for this request.
func (h *Handler) gateway(r *http.Request) (*teable.Client, *tenant.Context, error) {
	tc, err := h.tenantContext(r)
	if err != nil {
		return nil, nil, err
	}
	return teable.NewClient(tc, teable.WithTimeout(h.upstream.Timeout)), tc, nil
}

// tableID resolves a logical table for the tenant or fails with
// ErrTableNotConfigured.
func tableID(tc *tenant.Context, table string) (string, error) {
	id, ok := tc.Config.TableID(table)
	if !ok || id == "" {
		return "", teable.ErrTableNotConfigured
	}
	return id, nil
}

func (h *Handler) countUpstreamError(ctx context.Context) {
	if h.httpMetrics != nil {
		h.httpMetrics.UpstreamErrors.Add(ctx, 1)
	}
}

func (h *Handler) observeUpstream(ctx context.Context, start time.Time) {
	if h.httpMetrics != nil {
		h.httpMetrics.UpstreamLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}
}

// respondFailure maps every error from the dispatch path into the
// response taxonomy. Upstream failures keep the backend's status code
// and carry its raw error body under "details"; nothing is swallowed
// into a generic 200.
func (h *Handler) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		respondError(w, http.StatusNotFound, "not found")

	case errors.Is(err, teable.ErrMissingCredential):
		slog.ErrorContext(ctx, "backend credential not configured",
			logger.TenantID(GetTenantID(ctx)),
		)
		respondError(w, http.StatusInternalServerError, "backend credential not configured")

	case errors.Is(err, teable.ErrTableNotConfigured):
		slog.ErrorContext(ctx, "table missing from tenant config",
			logger.TenantID(GetTenantID(ctx)),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "tenant configuration incomplete")

	case errors.Is(err, teable.ErrUpstreamTimeout):
		h.countUpstreamError(ctx)
		respondJSON(w, http.StatusGatewayTimeout, map[string]any{
			"error":   "Failed",
			"details": "backend request timed out",
		})

	default:
		if ue, ok := teable.AsUpstreamError(err); ok {
			h.countUpstreamError(ctx)
			status := ue.StatusCode
			if status < 400 || status > 599 {
				status = http.StatusInternalServerError
			}
			slog.ErrorContext(ctx, "backend call failed",
				logger.TenantID(GetTenantID(ctx)),
				logger.UpstreamStatus(ue.StatusCode),
			)
			respondJSON(w, status, map[string]any{
				"error":   "Failed",
				"details": rawDetails(ue.Body),
			})
			return
		}

		slog.ErrorContext(ctx, "request failed",
			logger.TenantID(GetTenantID(ctx)),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// rawDetails preserves the backend's error body: passed through as JSON
// when it is JSON, as a string otherwise.
func rawDetails(body []byte) any {
	if json.Valid(body) && len(body) > 0 {
		return json.RawMessage(body)
	}
	return string(body)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func getIPAddress(r *http.Request) string {
	return clientKey(r)
}
