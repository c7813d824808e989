package tenant

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTenantFile(t *testing.T, dir, tenantID string, cfg *Config) {
	t.Helper()
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, tenantID+".json"), data, 0o600))
}

func TestFileStore_Get(t *testing.T) {
	dir := t.TempDir()
	writeTenantFile(t, dir, "acme", validTestConfig("acme"))

	store, err := NewFileStore(dir)
	require.NoError(t, err)

	cfg, err := store.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.ID)
	assert.Equal(t, "tblabc", cfg.Tables[TableWorkSchedule])

	_, err = store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

// TestPurpose: Validates that tenant identifiers cannot traverse outside the config directory.
// Scope: Unit Test
// Security: Path traversal prevention on attacker-controlled tenant IDs
// Expected: Identifiers containing path separators or dot prefixes resolve to ErrTenantNotFound.
// Test Case ID: TEN-05
func TestFileStore_Get_RejectsPathEscape(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	for _, id := range []string{"../etc/passwd", "a/b", ".hidden", ".."} {
		_, err := store.Get(context.Background(), id)
		assert.ErrorIs(t, err, ErrTenantNotFound, "id %q", id)
	}
}

func TestFileStore_List(t *testing.T) {
	dir := t.TempDir()
	writeTenantFile(t, dir, "acme", validTestConfig("acme"))
	writeTenantFile(t, dir, "globex", validTestConfig("globex"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".backup.json"), []byte("{}"), 0o600))

	store, err := NewFileStore(dir)
	require.NoError(t, err)

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"acme", "globex"}, ids)
}

func TestFileStore_Get_DefaultsIDFromFilename(t *testing.T) {
	dir := t.TempDir()
	cfg := validTestConfig("acme")
	cfg.ID = ""
	writeTenantFile(t, dir, "acme", cfg)

	store, err := NewFileStore(dir)
	require.NoError(t, err)

	got, err := store.Get(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.ID)
}

func TestNewFileStore_MissingDir(t *testing.T) {
	_, err := NewFileStore(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
