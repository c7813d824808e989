package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/fleetdesk/fleetdesk/internal/observability/logger"
)

// FileStore reads tenant configs from a directory holding one JSON file
// per tenant, filename = "<tenantID>.json".
type FileStore struct {
	dir string
}

// NewFileStore creates a store over the given config directory.
func NewFileStore(dir string) (*FileStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("tenant config dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("tenant config dir %s is not a directory", dir)
	}
	return &FileStore{dir: dir}, nil
}

// Get reads and decodes a single tenant config file.
func (s *FileStore) Get(ctx context.Context, tenantID string) (*Config, error) {
	// Reject identifiers that could escape the config directory. The
	// caller gets the same not-found as for an unknown tenant.
	if tenantID != filepath.Base(tenantID) || strings.HasPrefix(tenantID, ".") {
		return nil, ErrTenantNotFound
	}

	data, err := os.ReadFile(filepath.Join(s.dir, tenantID+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("read tenant config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode tenant config %s: %w", tenantID, err)
	}
	if cfg.ID == "" {
		cfg.ID = tenantID
	}
	return &cfg, nil
}

// List enumerates tenant identifiers from the directory contents.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list tenant configs: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// Watch invalidates registry entries when tenant config files change, so
// edits take effect without a restart. Blocks until ctx is done.
func (s *FileStore) Watch(ctx context.Context, registry *Registry) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watch tenant config dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, ".json") {
				continue
			}
			tenantID := strings.TrimSuffix(name, ".json")
			registry.Invalidate(tenantID)
			slog.InfoContext(ctx, "tenant config changed, cache entry invalidated",
				logger.TenantID(tenantID),
			)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.ErrorContext(ctx, "tenant config watcher error", logger.Error(err))
		}
	}
}
