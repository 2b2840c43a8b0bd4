package config

import (
	"context"
	"strings"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
)

// builtinIdentity is used when no app identity file is discoverable, e.g. for
// an installed binary run outside the repository.
var builtinIdentity = appidentity.Identity{
	BinaryName: "s3compat",
	EnvPrefix:  "S3COMPAT_",
	ConfigName: "s3compat",
}

// loadAppIdentity resolves the app identity once per process.
func loadAppIdentity(ctx context.Context) *appidentity.Identity {
	configMu.RLock()
	id := appIdentity
	configMu.RUnlock()
	if id != nil {
		return id
	}

	id, err := appidentity.Get(ctx)
	if err != nil || id == nil || strings.TrimSpace(id.EnvPrefix) == "" || strings.TrimSpace(id.ConfigName) == "" {
		fallback := builtinIdentity
		id = &fallback
	}

	configMu.Lock()
	defer configMu.Unlock()
	if appIdentity == nil {
		appIdentity = id
	}
	return appIdentity
}

// GetAppIdentity returns the identity resolved by Load, or nil before the
// first Load.
func GetAppIdentity() *appidentity.Identity {
	configMu.RLock()
	defer configMu.RUnlock()
	return appIdentity
}

// ConfigFileEnv names the environment variable holding an explicit config
// file path, e.g. S3COMPAT_CONFIG.
func ConfigFileEnv(ctx context.Context) string {
	return loadAppIdentity(ctx).EnvPrefix + "CONFIG"
}

// getUserConfigPaths returns the per-user directories searched for the config
// file. Empty until the identity is resolved.
func getUserConfigPaths() []string {
	id := GetAppIdentity()
	if id == nil || id.ConfigName == "" {
		return nil
	}
	return []string{gfconfig.GetAppConfigDir(id.ConfigName)}
}
