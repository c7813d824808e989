package tenant

import (
	"os"
	"strings"
)

// Environment entries consulted by ResolveCredential. The two global
// names are legacy aliases kept for backward compatibility.
const (
	envCredentialPrefix = "TEABLE_API_KEY_"
	envGlobalToken      = "TEABLE_APP_TOKEN"
	envGlobalKey        = "TEABLE_API_KEY"
)

// ResolveCredential derives the backend API credential for a tenant:
// tenant-specific entry first, then the global defaults. An empty result
// is not an error here; it fails only at point of use in the gateway, so
// tenant lookups keep working in environments where the credential has
// not been provisioned yet. The value must never be logged.
func ResolveCredential(tenantID string) string {
	if tenantID != "" {
		key := envCredentialPrefix + normalizeEnvKey(tenantID)
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	if v := os.Getenv(envGlobalToken); v != "" {
		return v
	}
	return os.Getenv(envGlobalKey)
}

func normalizeEnvKey(tenantID string) string {
	key := strings.ToUpper(tenantID)
	key = strings.ReplaceAll(key, "-", "_")
	return key
}
