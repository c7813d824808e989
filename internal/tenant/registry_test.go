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

package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore records how many times each tenant was read from the
// backing store, so tests can observe cache behavior.
type countingStore struct {
	configs map[string]*Config
	reads   map[string]int
}

func newCountingStore(configs ...*Config) *countingStore {
	s := &countingStore{
		configs: make(map[string]*Config),
		reads:   make(map[string]int),
	}
	for _, c := range configs {
		s.configs[c.ID] = c
	}
	return s
}

func (s *countingStore) Get(ctx context.Context, tenantID string) (*Config, error) {
	s.reads[tenantID]++
	cfg, ok := s.configs[tenantID]
	if !ok {
		return nil, ErrTenantNotFound
	}
	return cfg, nil
}

func (s *countingStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	for id := range s.configs {
		ids = append(ids, id)
	}
	return ids, nil
}

func validTestConfig(id string) *Config {
	return &Config{
		ID:     id,
		Name:   "Test " + id,
		APIURL: "https://tables.example.com/api",
		BaseID: "bse123",
		Tables: map[string]string{TableWorkSchedule: "tblabc"},
		Fields: map[string]map[string]string{
			GroupWorkSchedule: {FieldDate: "fld001"},
		},
	}
}

// TestPurpose: Validates that unknown tenant identifiers resolve to ErrTenantNotFound.
// Scope: Unit Test
// Security: Tenant enumeration resistance (unknown and malformed IDs fail identically)
// Expected: Load returns ErrTenantNotFound for unknown and empty identifiers.
// Test Case ID: TEN-01
func TestRegistry_Load_UnknownTenant(t *testing.T) {
	registry := NewRegistry(newCountingStore())

	_, err := registry.Load(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrTenantNotFound)

	_, err = registry.Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

// TestPurpose: Validates that a loaded tenant config is cached and the store is not re-read.
// Scope: Unit Test
// Expected: Two Loads of the same tenant hit the store exactly once.
// Test Case ID: TEN-02
func TestRegistry_Load_CachesConfig(t *testing.T) {
	store := newCountingStore(validTestConfig("acme"))
	registry := NewRegistry(store)

	first, err := registry.Load(context.Background(), "acme")
	require.NoError(t, err)

	second, err := registry.Load(context.Background(), "acme")
	require.NoError(t, err)

	assert.Equal(t, 1, store.reads["acme"])
	assert.Same(t, first, second)
}

// TestPurpose: Validates that Invalidate evicts a cached entry and the next Load re-reads the store.
// Scope: Unit Test
// Expected: Load, Invalidate, Load results in two store reads.
// Test Case ID: TEN-03
func TestRegistry_Invalidate_ForcesReread(t *testing.T) {
	store := newCountingStore(validTestConfig("acme"))
	registry := NewRegistry(store)

	_, err := registry.Load(context.Background(), "acme")
	require.NoError(t, err)

	registry.Invalidate("acme")

	_, err = registry.Load(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, store.reads["acme"])
}

// TestPurpose: Validates that a structurally invalid config is rejected and never cached.
// Scope: Unit Test
// Expected: Load returns a validation error and retries hit the store again.
// Test Case ID: TEN-04
func TestRegistry_Load_RejectsInvalidConfig(t *testing.T) {
	broken := validTestConfig("broken")
	broken.APIURL = ""
	store := newCountingStore(broken)
	registry := NewRegistry(store)

	_, err := registry.Load(context.Background(), "broken")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = registry.Load(context.Background(), "broken")
	require.Error(t, err)
	assert.Equal(t, 2, store.reads["broken"])
}

func TestConfig_FieldID(t *testing.T) {
	cfg := validTestConfig("acme")

	id, ok := cfg.FieldID(GroupWorkSchedule, FieldDate)
	assert.True(t, ok)
	assert.Equal(t, "fld001", id)

	_, ok = cfg.FieldID(GroupWorkSchedule, "NOT_A_FIELD")
	assert.False(t, ok)

	_, ok = cfg.FieldID("notAGroup", FieldDate)
	assert.False(t, ok)
}
