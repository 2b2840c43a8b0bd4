package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps user config files and S3COMPAT_* variables from leaking in.
func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, kv := range os.Environ() {
		if name, _, _ := strings.Cut(kv, "="); strings.HasPrefix(name, builtinIdentity.EnvPrefix) {
			t.Setenv(name, "")
			require.NoError(t, os.Unsetenv(name))
		}
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		isolate(t)
		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Empty(t, cfg.Storage.Host)
		assert.Equal(t, "v4", cfg.Storage.SignatureVersion)
		assert.Equal(t, 2, cfg.Storage.ListAPIVersion)
		assert.Equal(t, 100*time.Second, cfg.Storage.URLExpiry)
		assert.Equal(t, int64(64<<20), cfg.Storage.PartSize)
		assert.Equal(t, int64(0), cfg.Storage.MultipartThreshold)
		assert.Equal(t, 4, cfg.Storage.Concurrency)
		assert.Equal(t, 1000, cfg.Storage.MaxKeys)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "STRUCTURED", cfg.Logging.Profile)
		assert.Equal(t, "json", cfg.Output.Format)
		assert.Empty(t, cfg.Metrics.File)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		isolate(t)
		overrides := map[string]any{
			"storage": map[string]any{
				"host":      "minio.local:9000",
				"bucket":    "media",
				"part_size": "8MiB",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)

		assert.Equal(t, "minio.local:9000", cfg.Storage.Host)
		assert.Equal(t, "media", cfg.Storage.Bucket)
		assert.Equal(t, int64(8<<20), cfg.Storage.PartSize)
		assert.Equal(t, "debug", cfg.Logging.Level)

		// Untouched values keep their defaults.
		assert.Equal(t, "STRUCTURED", cfg.Logging.Profile)
		assert.Equal(t, 4, cfg.Storage.Concurrency)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		isolate(t)
		t.Setenv("S3COMPAT_HOST", "s3.wasabisys.com")
		t.Setenv("S3COMPAT_ENCRYPT_UPLOADS", "true")
		t.Setenv("S3COMPAT_LOG_LEVEL", "warn")
		t.Setenv("S3COMPAT_URL_EXPIRY", "15m")
		t.Setenv("S3COMPAT_MULTIPART_THRESHOLD", "100 MB")
		t.Setenv("S3COMPAT_RATE_LIMIT", "2.5")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, "s3.wasabisys.com", cfg.Storage.Host)
		assert.True(t, cfg.Storage.EncryptUploads)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, 15*time.Minute, cfg.Storage.URLExpiry)
		assert.Equal(t, int64(100_000_000), cfg.Storage.MultipartThreshold)
		assert.InDelta(t, 2.5, cfg.Storage.RateLimit, 0.0001)
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		isolate(t)
		dir := t.TempDir()
		file := filepath.Join(dir, "s3compat.yaml")
		require.NoError(t, os.WriteFile(file, []byte(`
storage:
  host: from-file
  bucket: file-bucket
  concurrency: 2
output:
  format: YAML
`), 0o600))
		t.Setenv(ConfigFileEnv(context.Background()), file)
		t.Setenv("S3COMPAT_HOST", "from-env")

		cfg, err := Load(ctx, map[string]any{"storage": map[string]any{"bucket": "from-flag"}})
		require.NoError(t, err)

		assert.Equal(t, "from-env", cfg.Storage.Host, "env beats file")
		assert.Equal(t, "from-flag", cfg.Storage.Bucket, "overrides beat file")
		assert.Equal(t, 2, cfg.Storage.Concurrency)
		assert.Equal(t, "yaml", cfg.Output.Format)
	})

	t.Run("OverrideBeatsEnv", func(t *testing.T) {
		isolate(t)
		t.Setenv("S3COMPAT_BUCKET", "from-env")

		cfg, err := Load(ctx, map[string]any{"storage": map[string]any{"bucket": "from-flag"}})
		require.NoError(t, err)
		assert.Equal(t, "from-flag", cfg.Storage.Bucket)
	})

	t.Run("SearchesUserConfigDirectory", func(t *testing.T) {
		isolate(t)
		_, err := Load(ctx)
		require.NoError(t, err)

		paths := getUserConfigPaths()
		require.Len(t, paths, 1)
		require.NoError(t, os.MkdirAll(paths[0], 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(paths[0], "s3compat.yaml"), []byte("storage:\n  bucket: user-dir\n"), 0o600))
		t.Chdir(t.TempDir())

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "user-dir", cfg.Storage.Bucket)
	})

	t.Run("SearchesWorkingDirectory", func(t *testing.T) {
		isolate(t)
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "s3compat.yaml"), []byte("storage:\n  bucket: cwd\n"), 0o600))
		t.Chdir(dir)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "cwd", cfg.Storage.Bucket)
	})
}

func TestLoad_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		setup     func(t *testing.T)
		overrides map[string]any
		wantErr   string
	}{
		{
			name:      "bad output format",
			overrides: map[string]any{"output": map[string]any{"format": "xml"}},
			wantErr:   "invalid output format",
		},
		{
			name:      "bad byte size",
			overrides: map[string]any{"storage": map[string]any{"part_size": "lots"}},
			wantErr:   "invalid byte size",
		},
		{
			name:      "bad duration",
			overrides: map[string]any{"storage": map[string]any{"url_expiry": "soon"}},
			wantErr:   "decode config",
		},
		{
			name: "missing explicit file",
			setup: func(t *testing.T) {
				t.Setenv(ConfigFileEnv(context.Background()), filepath.Join(t.TempDir(), "nope.yaml"))
			},
			wantErr: "read config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			if tt.setup != nil {
				tt.setup(t)
			}
			_, err := Load(ctx, tt.overrides)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetConfig(t *testing.T) {
	isolate(t)
	cfg, err := Load(context.Background(), map[string]any{"storage": map[string]any{"bucket": "latest"}})
	require.NoError(t, err)

	got := GetConfig()
	require.NotNil(t, got)
	assert.Equal(t, cfg.Storage.Bucket, got.Storage.Bucket)
}

func TestEnvSpecs(t *testing.T) {
	isolate(t)
	_, err := Load(context.Background())
	require.NoError(t, err)

	specs := getEnvSpecs()
	require.NotEmpty(t, specs)

	names := make(map[string]string, len(specs))
	for _, spec := range specs {
		assert.True(t, strings.HasPrefix(spec.Name, "S3COMPAT_"), spec.Name)
		assert.NotEmpty(t, spec.Path, "env var %s should have a path", spec.Name)
		names[spec.Name] = spec.Path
	}

	assert.Equal(t, "storage.access_key", names["S3COMPAT_ACCESS_KEY"])
	assert.Equal(t, "storage.secret_key", names["S3COMPAT_SECRET_KEY"])
	assert.Equal(t, "logging.level", names["S3COMPAT_LOG_LEVEL"])
}

// resetAppIdentity clears package state so identity resolution runs again.
func resetAppIdentity() {
	configMu.Lock()
	defer configMu.Unlock()
	appIdentity = nil
	appConfig = nil
}

func TestGetAppIdentity(t *testing.T) {
	resetAppIdentity()
	assert.Nil(t, GetAppIdentity())

	isolate(t)
	_, err := Load(context.Background())
	require.NoError(t, err)

	id := GetAppIdentity()
	require.NotNil(t, id)
	assert.Equal(t, "S3COMPAT_", id.EnvPrefix)
	assert.Equal(t, "s3compat", id.ConfigName)
	assert.Equal(t, "S3COMPAT_CONFIG", ConfigFileEnv(context.Background()))
}

func TestGetUserConfigPathsNilIdentity(t *testing.T) {
	resetAppIdentity()
	defer func() { _, _ = Load(context.Background()) }()

	assert.Empty(t, getUserConfigPaths())
}

func TestGetEnvSpecsNilIdentity(t *testing.T) {
	resetAppIdentity()
	defer func() { _, _ = Load(context.Background()) }()

	assert.Empty(t, getEnvSpecs())
}

func TestFlatten(t *testing.T) {
	got := flatten("", map[string]any{
		"a": 1,
		"b": map[string]any{"c": "x", "d": map[string]any{"e": true}},
	})
	assert.Equal(t, map[string]any{"a": 1, "b.c": "x", "b.d.e": true}, got)
}

func TestStorageConfig_ProviderConfig(t *testing.T) {
	s := StorageConfig{
		Host:             "minio:9000",
		Bucket:           "b",
		Prefix:           "tenant/",
		AccessKey:        "ak",
		SecretKey:        "sk",
		SignatureVersion: "v2",
		ListAPIVersion:   1,
		URLExpiry:        time.Minute,
		PartSize:         8 << 20,
		Concurrency:      3,
		EncryptUploads:   true,
	}

	pc := s.ProviderConfig()
	assert.Equal(t, "minio:9000", pc.Host)
	assert.Equal(t, "tenant/", pc.Prefix)
	assert.Equal(t, "v2", pc.SignatureVersion)
	assert.Equal(t, 1, pc.ListAPIVersion)
	assert.Equal(t, time.Minute, pc.URLExpiry)
	assert.Equal(t, int64(8<<20), pc.PartSize)
	assert.True(t, pc.EncryptUploads)
	require.NoError(t, pc.Validate())
}
