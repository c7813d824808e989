package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fleetdesk/fleetdesk/internal/tenant"
)

// TenantConfigRepository implements tenant.Store over PostgreSQL, for
// deployments that keep tenant configs in a database instead of a config
// directory.
type TenantConfigRepository struct {
	db *DB
}

// NewTenantConfigRepository creates a new tenant config repository
func NewTenantConfigRepository(db *DB) *TenantConfigRepository {
	return &TenantConfigRepository{db: db}
}

// Get retrieves a single tenant config by tenant identifier
func (r *TenantConfigRepository) Get(ctx context.Context, tenantID string) (*tenant.Config, error) {
	var raw []byte
	err := r.db.pool.QueryRow(ctx, `
		SELECT config FROM tenant_configs WHERE id = $1
	`, tenantID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to get tenant config: %w", err)
	}

	var cfg tenant.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode tenant config %s: %w", tenantID, err)
	}
	if cfg.ID == "" {
		cfg.ID = tenantID
	}
	return &cfg, nil
}

// List enumerates all configured tenant identifiers
func (r *TenantConfigRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT id FROM tenant_configs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant configs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Upsert writes a tenant config record. Used by provisioning tooling,
// not by the request path.
func (r *TenantConfigRepository) Upsert(ctx context.Context, cfg *tenant.Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode tenant config: %w", err)
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO tenant_configs (id, config)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET config = EXCLUDED.config, updated_at = now()
	`, cfg.ID, raw)
	if err != nil {
		return fmt.Errorf("failed to upsert tenant config: %w", err)
	}
	return nil
}
