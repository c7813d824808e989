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
	"html/template"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/fleetdesk/fleetdesk/internal/authz"
	"github.com/fleetdesk/fleetdesk/internal/tenant"
)

var pageTemplates = template.Must(template.New("pages").Parse(`
{{define "sign-in"}}<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Sign in</title></head>
<body>
<div id="auth-root" data-mode="sign-in" data-redirect-url="{{.RedirectURL}}"></div>
<script src="/static/auth.js"></script>
</body>
</html>{{end}}

{{define "sign-up"}}<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Sign up</title></head>
<body>
<div id="auth-root" data-mode="sign-up" data-redirect-url="{{.RedirectURL}}"></div>
<script src="/static/auth.js"></script>
</body>
</html>{{end}}

{{define "shell"}}<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.TenantName}}</title></head>
<body>
<div id="app-root" data-tenant="{{.TenantID}}"></div>
<script src="/static/app.js"></script>
</body>
</html>{{end}}

{{define "no-access"}}<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>No access</title></head>
<body>
<main>
<h1>No access</h1>
<p>Your account is not a member of this workspace. Ask an administrator to invite you.</p>
<p><a href="/sign-in">Sign in with a different account</a></p>
</main>
</body>
</html>{{end}}

{{define "not-found"}}<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Not found</title></head>
<body>
<main><h1>Not found</h1></main>
</body>
</html>{{end}}
`))

type authPageData struct {
	RedirectURL string
}

type shellPageData struct {
	TenantID   string
	TenantName string
}

// SignInPage renders the sign-in shell. The redirect_url query parameter
// survives into the page so the auth widget can send the user back where
// they started.
func (h *Handler) SignInPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, http.StatusOK, "sign-in", authPageData{
		RedirectURL: sanitizeRedirect(r.URL.Query().Get("redirect_url")),
	})
}

// SignUpPage renders the sign-up shell.
func (h *Handler) SignUpPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, http.StatusOK, "sign-up", authPageData{
		RedirectURL: sanitizeRedirect(r.URL.Query().Get("redirect_url")),
	})
}

// TenantPage renders a tenant's dashboard shell after the organization
// membership check. Unknown tenants and unauthenticated identities get
// the same generic not-found page; a signed-in user outside the tenant's
// organization gets an explicit no-access page instead.
//
// A request to the bare root carries no tenant in the path. For a
// signed-in user we route to the first tenant whose organization they
// belong to; otherwise the default tenant's page is rendered.
func (h *Handler) TenantPage(w http.ResponseWriter, r *http.Request) {
	user := GetUser(r.Context())

	tenantID := chi.URLParam(r, "tenant")
	if tenantID == "" {
		if user != nil {
			if routed := authz.TenantForUser(r.Context(), h.registry, h.provider, user.ID); routed != "" {
				http.Redirect(w, r, "/"+routed, http.StatusFound)
				return
			}
		}
		tenantID = h.defaultTenant
	}

	cfg, err := h.registry.Load(r.Context(), tenantID)
	if err != nil {
		renderPage(w, http.StatusNotFound, "not-found", nil)
		return
	}

	switch h.gate.Check(r.Context(), user, cfg) {
	case authz.DecisionAllow:
		renderPage(w, http.StatusOK, "shell", shellPageData{
			TenantID:   cfg.ID,
			TenantName: shellTitle(cfg),
		})
	case authz.DecisionDeny:
		renderPage(w, http.StatusForbidden, "no-access", nil)
	default:
		renderPage(w, http.StatusNotFound, "not-found", nil)
	}
}

func shellTitle(cfg *tenant.Config) string {
	if cfg.Name != "" {
		return cfg.Name
	}
	return cfg.ID
}

// sanitizeRedirect keeps redirect targets on this origin. Absolute URLs
// and scheme-relative URLs are discarded.
func sanitizeRedirect(target string) string {
	if target == "" {
		return "/"
	}
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	if len(target) == 0 || target[0] != '/' {
		return "/"
	}
	return target
}

func renderPage(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplates.ExecuteTemplate(w, name, data); err != nil {
		// Headers are already out; nothing left to do but drop the body.
		return
	}
}
