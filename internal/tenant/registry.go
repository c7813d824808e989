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
	"errors"
	"log/slog"
	"sync"

	"github.com/fleetdesk/fleetdesk/internal/observability/logger"
)

// Store is the persistent side of the registry: one config record per
// tenant, keyed by tenant identifier. Implementations must return
// ErrTenantNotFound for unknown identifiers.
type Store interface {
	Get(ctx context.Context, tenantID string) (*Config, error)
	List(ctx context.Context) ([]string, error)
}

// Registry loads tenant configs lazily and caches them for the lifetime
// of the process. The cache is unbounded; tenant cardinality is tens, not
// millions. Entries are evicted only through Invalidate (wired to the
// config watcher) or restart.
type Registry struct {
	store Store

	mu    sync.RWMutex
	cache map[string]*Config
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store Store) *Registry {
	return &Registry{
		store: store,
		cache: make(map[string]*Config),
	}
}

// Load resolves a tenant config: cache first, then the store. Unknown
// tenants yield ErrTenantNotFound; callers must surface it as a generic
// not-found that does not distinguish malformed identifiers from real but
// unrecognized ones.
func (r *Registry) Load(ctx context.Context, tenantID string) (*Config, error) {
	if tenantID == "" {
		return nil, ErrTenantNotFound
	}

	r.mu.RLock()
	cfg, ok := r.cache[tenantID]
	r.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	cfg, err := r.store.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, ErrTenantNotFound
		}
		slog.ErrorContext(ctx, "failed to read tenant config from store",
			logger.TenantID(tenantID),
			logger.Error(err),
		)
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		slog.ErrorContext(ctx, "tenant config failed validation",
			logger.TenantID(tenantID),
			logger.Error(err),
		)
		return nil, err
	}

	r.mu.Lock()
	// Another request may have populated the entry while we read the
	// store; last write wins, both reads saw the same record.
	r.cache[tenantID] = cfg
	r.mu.Unlock()

	return cfg, nil
}

// List enumerates all configured tenant identifiers. Used for routing a
// freshly signed-in identity to its tenant.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	return r.store.List(ctx)
}

// Invalidate drops a single cached entry. The next Load re-reads the
// store.
func (r *Registry) Invalidate(tenantID string) {
	r.mu.Lock()
	delete(r.cache, tenantID)
	r.mu.Unlock()
}

// InvalidateAll drops every cached entry.
func (r *Registry) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[string]*Config)
	r.mu.Unlock()
}
