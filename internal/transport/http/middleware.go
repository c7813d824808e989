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
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/fleetdesk/fleetdesk/internal/identity"
	"github.com/fleetdesk/fleetdesk/internal/observability/logger"
)

// TenantIDHeader is the internal header carrying the resolved tenant ID.
// The tenant resolution middleware is its only writer: any externally
// supplied value is stripped before resolution, so downstream handlers
// may treat it as already trusted.
const TenantIDHeader = "X-Tenant-Id"

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.TenantID(GetTenantID(r.Context())),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// TenantResolution determines which tenant a request belongs to and
// attaches the tenant ID to the request context and the internal header.
// Resolution order:
//
//	1. tenant already attached by a prior run of this middleware
//	2. API paths: explicit "tenant" query parameter, else the first path
//	   segment of the Referer (the page the API call originated from),
//	   else the default tenant
//	3. other paths: the first path segment, else the default tenant
//
// Handlers never re-derive the tenant; they read the context value set
// here.
func (h *Handler) TenantResolution(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only this middleware may set the internal header.
		external := r.Header.Get(TenantIDHeader)
		r.Header.Del(TenantIDHeader)
		if external != "" {
			slog.WarnContext(r.Context(), "stripped externally supplied tenant header",
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)
		}

		tenantID := GetTenantID(r.Context())
		if tenantID == "" {
			tenantID = h.resolveTenantID(r)
		}

		r.Header.Set(TenantIDHeader, tenantID)
		ctx := WithTenantID(r.Context(), tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) resolveTenantID(r *http.Request) string {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		if t := r.URL.Query().Get("tenant"); t != "" {
			return t
		}
		if t := tenantFromReferer(r.Referer()); t != "" {
			return t
		}
		return h.defaultTenant
	}

	if seg := firstPathSegment(r.URL.Path); seg != "" && !isReservedSegment(seg) {
		return seg
	}
	return h.defaultTenant
}

// tenantFromReferer extracts the tenant from the page path an API call
// originated on. Best effort: a referer pointing at an API or auth path
// names no tenant.
func tenantFromReferer(referer string) string {
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil {
		return ""
	}
	seg := firstPathSegment(u.Path)
	if seg == "" || isReservedSegment(seg) {
		return ""
	}
	return seg
}

func firstPathSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	seg, _, _ := strings.Cut(path, "/")
	return seg
}

func isReservedSegment(seg string) bool {
	switch seg {
	case "api", "sign-in", "sign-up", "health", "static", "favicon.ico":
		return true
	}
	return false
}

// RequireSession enforces authentication for page routes. Public routes
// (sign-in, sign-up, health) and all API routes bypass the check: API
// handlers resolve their own tenant context and proxy with the tenant's
// backend credential, so there is nothing session-scoped to enforce at
// this layer. Unauthenticated page requests are redirected to sign-in
// with the original URL preserved.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicRoute(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		user, err := h.provider.UserFromRequest(r)
		if err != nil {
			if !errors.Is(err, identity.ErrNoSession) {
				slog.WarnContext(r.Context(), "rejecting unusable session",
					logger.Path(r.URL.Path),
					logger.Error(err),
				)
			}
			redirectToSignIn(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func isPublicRoute(path string) bool {
	if strings.HasPrefix(path, "/api/") {
		return true
	}
	switch path {
	case "/health", "/sign-in", "/sign-up":
		return true
	}
	return strings.HasPrefix(path, "/sign-in/") || strings.HasPrefix(path, "/sign-up/") || strings.HasPrefix(path, "/static/")
}

func redirectToSignIn(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, "/sign-in?redirect_url="+url.QueryEscape(target), http.StatusFound)
}
