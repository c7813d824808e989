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

package authz

import (
	"context"
	"log/slog"

	"github.com/fleetdesk/fleetdesk/internal/audit"
	"github.com/fleetdesk/fleetdesk/internal/identity"
	"github.com/fleetdesk/fleetdesk/internal/observability/logger"
	"github.com/fleetdesk/fleetdesk/internal/tenant"
)

// ErrorPolicy decides what happens when the membership check itself
// fails (identity provider transient failure). This is a named,
// configurable policy, not a side effect of error handling.
type ErrorPolicy string

const (
	// PolicyAllow favors availability: a flaky identity provider does
	// not lock users out of their dashboard.
	PolicyAllow ErrorPolicy = "allow"
	// PolicyDeny favors strictness: no membership proof, no access.
	PolicyDeny ErrorPolicy = "deny"
)

// Decision is the outcome of the page-load organization check.
type Decision int

const (
	// DecisionNotFound: no authenticated identity. Rendered as a
	// generic not-found so the response does not reveal whether the
	// tenant exists.
	DecisionNotFound Decision = iota
	// DecisionAllow: render the tenant dashboard.
	DecisionAllow
	// DecisionDeny: authenticated but not a member of the tenant's
	// organization. Rendered as an explicit no-access page, distinct
	// from not-found.
	DecisionDeny
)

// Gate performs the page-load organization membership check. It applies
// only when rendering a tenant's page shell, not on API calls.
type Gate struct {
	provider    identity.Provider
	policy      ErrorPolicy
	auditLogger audit.Logger
}

// NewGate creates an authorization gate.
func NewGate(provider identity.Provider, policy ErrorPolicy, auditLogger audit.Logger) *Gate {
	if policy != PolicyDeny {
		policy = PolicyAllow
	}
	return &Gate{
		provider:    provider,
		policy:      policy,
		auditLogger: auditLogger,
	}
}

// Check evaluates access for user (nil when unauthenticated) against the
// tenant's declared organization. Tenants with no declared organization
// are open to any authenticated identity.
func (g *Gate) Check(ctx context.Context, user *identity.User, cfg *tenant.Config) Decision {
	if user == nil {
		return DecisionNotFound
	}
	if cfg.ClerkOrgID == "" {
		return DecisionAllow
	}

	memberships, err := g.provider.Memberships(ctx, user.ID)
	if err != nil {
		slog.WarnContext(ctx, "organization membership check failed",
			logger.TenantID(cfg.ID),
			logger.UserID(user.ID),
			logger.String("policy", string(g.policy)),
			logger.Error(err),
		)
		g.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeMembershipCheck,
			TenantID: cfg.ID,
			ActorID:  user.ID,
			Resource: "page_shell",
			Metadata: map[string]any{"policy": string(g.policy)},
		})
		if g.policy == PolicyDeny {
			return DecisionDeny
		}
		return DecisionAllow
	}

	for _, m := range memberships {
		if m.OrganizationID == cfg.ClerkOrgID {
			g.auditLogger.Log(ctx, audit.Event{
				Type:     audit.TypeAccessGranted,
				TenantID: cfg.ID,
				ActorID:  user.ID,
				Resource: "page_shell",
			})
			return DecisionAllow
		}
	}

	g.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAccessDenied,
		TenantID: cfg.ID,
		ActorID:  user.ID,
		Resource: "page_shell",
		Metadata: map[string]any{"org_id": cfg.ClerkOrgID},
	})
	return DecisionDeny
}

// TenantForUser routes a signed-in identity to the first configured
// tenant whose organization the user belongs to. Used after sign-in when
// the request itself names no tenant. Returns "" when no tenant matches.
func TenantForUser(ctx context.Context, registry *tenant.Registry, provider identity.Provider, userID string) string {
	memberships, err := provider.Memberships(ctx, userID)
	if err != nil || len(memberships) == 0 {
		return ""
	}
	ids, err := registry.List(ctx)
	if err != nil {
		return ""
	}
	for _, id := range ids {
		cfg, err := registry.Load(ctx, id)
		if err != nil || cfg.ClerkOrgID == "" {
			continue
		}
		for _, m := range memberships {
			if m.OrganizationID == cfg.ClerkOrgID {
				return id
			}
		}
	}
	return ""
}
