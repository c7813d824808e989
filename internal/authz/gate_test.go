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
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fleetdesk/fleetdesk/internal/audit"
	"github.com/fleetdesk/fleetdesk/internal/identity"
	"github.com/fleetdesk/fleetdesk/internal/tenant"
)

// mockProvider serves canned memberships per user.
type mockProvider struct {
	memberships map[string][]identity.Membership
	err         error
}

func (m *mockProvider) UserFromRequest(r *http.Request) (*identity.User, error) {
	return nil, identity.ErrNoSession
}

func (m *mockProvider) Memberships(ctx context.Context, userID string) ([]identity.Membership, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.memberships[userID], nil
}

func orgConfig(id, orgID string) *tenant.Config {
	return &tenant.Config{
		ID:         id,
		Name:       id,
		APIURL:     "https://tables.example.com/api",
		BaseID:     "bse1",
		ClerkOrgID: orgID,
		Tables:     map[string]string{tenant.TableWorkSchedule: "tbl1"},
		Fields:     map[string]map[string]string{tenant.GroupWorkSchedule: {tenant.FieldDate: "fld1"}},
	}
}

// TestPurpose: Validates the page-load membership gate across all identity and membership combinations.
// Scope: Unit Test
// Security: Organization boundary enforcement on tenant page shells
// Expected: No identity yields not-found, member yields allow, non-member yields deny, no declared org yields allow.
// Test Case ID: AUT-01
func TestGate_Check(t *testing.T) {
	provider := &mockProvider{
		memberships: map[string][]identity.Membership{
			"user-a": {{OrganizationID: "org_acme"}},
		},
	}
	gate := NewGate(provider, PolicyAllow, audit.NewSlogLogger())

	ctx := context.Background()
	cfg := orgConfig("acme", "org_acme")

	assert.Equal(t, DecisionNotFound, gate.Check(ctx, nil, cfg))
	assert.Equal(t, DecisionAllow, gate.Check(ctx, &identity.User{ID: "user-a"}, cfg))
	assert.Equal(t, DecisionDeny, gate.Check(ctx, &identity.User{ID: "user-b"}, cfg))
	assert.Equal(t, DecisionAllow, gate.Check(ctx, &identity.User{ID: "user-b"}, orgConfig("open", "")))
}

// TestPurpose: Validates the configurable failure policy when the membership lookup itself errors.
// Scope: Unit Test
// Expected: PolicyAllow admits on provider failure, PolicyDeny rejects.
// Test Case ID: AUT-02
func TestGate_Check_MembershipErrorPolicy(t *testing.T) {
	ctx := context.Background()
	cfg := orgConfig("acme", "org_acme")
	user := &identity.User{ID: "user-a"}
	failing := &mockProvider{err: errors.New("provider unavailable")}

	open := NewGate(failing, PolicyAllow, audit.NewSlogLogger())
	assert.Equal(t, DecisionAllow, open.Check(ctx, user, cfg))

	closed := NewGate(failing, PolicyDeny, audit.NewSlogLogger())
	assert.Equal(t, DecisionDeny, closed.Check(ctx, user, cfg))
}

func TestNewGate_UnknownPolicyDefaultsToAllow(t *testing.T) {
	failing := &mockProvider{err: errors.New("down")}
	gate := NewGate(failing, ErrorPolicy("whatever"), audit.NewSlogLogger())
	assert.Equal(t, DecisionAllow, gate.Check(context.Background(), &identity.User{ID: "u"}, orgConfig("acme", "org_acme")))
}

// TestPurpose: Validates post-sign-in routing to the first tenant whose organization the user belongs to.
// Scope: Unit Test
// Expected: The matching tenant ID is returned; no match yields empty.
// Test Case ID: AUT-03
func TestTenantForUser(t *testing.T) {
	ctx := context.Background()
	store := &staticStore{configs: map[string]*tenant.Config{
		"acme":   orgConfig("acme", "org_acme"),
		"globex": orgConfig("globex", "org_globex"),
		"open":   orgConfig("open", ""),
	}}
	registry := tenant.NewRegistry(store)

	provider := &mockProvider{
		memberships: map[string][]identity.Membership{
			"user-g": {{OrganizationID: "org_globex"}},
			"user-x": {{OrganizationID: "org_elsewhere"}},
		},
	}

	assert.Equal(t, "globex", TenantForUser(ctx, registry, provider, "user-g"))
	assert.Equal(t, "", TenantForUser(ctx, registry, provider, "user-x"))
	assert.Equal(t, "", TenantForUser(ctx, registry, provider, "user-none"))
}

type staticStore struct {
	configs map[string]*tenant.Config
}

func (s *staticStore) Get(ctx context.Context, tenantID string) (*tenant.Config, error) {
	cfg, ok := s.configs[tenantID]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	return cfg, nil
}

func (s *staticStore) List(ctx context.Context) ([]string, error) {
	// Deterministic order so routing picks a stable first match.
	return []string{"acme", "globex", "open"}, nil
}
