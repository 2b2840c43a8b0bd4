package config

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

var (
	configMu    sync.RWMutex
	appIdentity *appidentity.Identity
	appConfig   *Config
)

// envSpec maps one environment variable onto a config key.
type envSpec struct {
	Name string
	Path string
}

// Load builds the configuration. Later overrides win over earlier ones and
// over every other source.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	return LoadFile(ctx, os.Getenv(ConfigFileEnv(ctx)), overrides...)
}

// LoadFile is Load with an explicit config file. An empty path searches the
// working directory and the user config directory for <config name>.yaml.
func LoadFile(ctx context.Context, path string, overrides ...map[string]any) (*Config, error) {
	identity := loadAppIdentity(ctx)

	v := viper.New()
	setDefaults(v)

	if err := readConfigFile(v, identity.ConfigName, path); err != nil {
		return nil, err
	}

	for _, spec := range getEnvSpecs() {
		if err := v.BindEnv(spec.Path, spec.Name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", spec.Name, err)
		}
	}

	for _, o := range overrides {
		for key, val := range flatten("", o) {
			v.Set(key, val)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		byteSizeHook(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Logging.Profile = strings.ToUpper(cfg.Logging.Profile)
	cfg.Output.Format = strings.ToLower(cfg.Output.Format)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()
	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setDefaults(v *viper.Viper) {
	for _, key := range []string{"host", "bucket", "prefix", "access_key", "secret_key", "profile", "region"} {
		v.SetDefault("storage."+key, "")
	}
	v.SetDefault("storage.encrypt_uploads", false)
	v.SetDefault("storage.signature_version", "v4")
	v.SetDefault("storage.list_api_version", 2)
	v.SetDefault("storage.url_expiry", "100s")
	v.SetDefault("storage.part_size", "64MiB")
	v.SetDefault("storage.multipart_threshold", "0")
	v.SetDefault("storage.concurrency", 4)
	v.SetDefault("storage.rate_limit", 0)
	v.SetDefault("storage.max_keys", 1000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("output.format", "json")
	v.SetDefault("metrics.file", "")
}

func readConfigFile(v *viper.Viper, name, path string) error {
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName(name)
	v.AddConfigPath(".")
	for _, dir := range getUserConfigPaths() {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// getEnvSpecs lists the environment variables bound under the identity's
// env prefix. Empty until the identity is resolved.
func getEnvSpecs() []envSpec {
	id := GetAppIdentity()
	if id == nil || id.EnvPrefix == "" {
		return nil
	}
	prefix := id.EnvPrefix

	specs := []envSpec{
		{Name: prefix + "LOG_LEVEL", Path: "logging.level"},
		{Name: prefix + "LOG_PROFILE", Path: "logging.profile"},
		{Name: prefix + "FORMAT", Path: "output.format"},
		{Name: prefix + "METRICS_FILE", Path: "metrics.file"},
	}
	for _, key := range []string{
		"host", "bucket", "prefix", "access_key", "secret_key", "profile", "region",
		"encrypt_uploads", "signature_version", "list_api_version", "url_expiry",
		"part_size", "multipart_threshold", "concurrency", "rate_limit", "max_keys",
	} {
		specs = append(specs, envSpec{Name: prefix + strings.ToUpper(key), Path: "storage." + key})
	}
	return specs
}

// flatten turns nested override maps into dotted viper keys.
func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = val
	}
	return out
}

// byteSizeHook decodes human byte sizes ("8MiB", "5 MB", "1048576") into
// int64 fields. Durations share the int64 kind and are left alone.
func byteSizeHook() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 || t == durationType {
			return data, nil
		}
		s := strings.TrimSpace(reflect.ValueOf(data).String())
		if s == "" {
			return int64(0), nil
		}
		n, err := humanize.ParseBytes(s)
		if err != nil {
			return nil, fmt.Errorf("invalid byte size %q: %w", s, err)
		}
		if n > math.MaxInt64 {
			return nil, fmt.Errorf("byte size %q out of range", s)
		}
		return int64(n), nil
	}
}

func (c *Config) validate() error {
	switch c.Output.Format {
	case "json", "yaml":
	default:
		return fmt.Errorf("invalid output format %q: expected json or yaml", c.Output.Format)
	}
	return nil
}
