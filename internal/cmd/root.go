// Package cmd implements the s3compat command-line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/s3compat/internal/config"
	"github.com/3leaps/s3compat/internal/observability"
	"github.com/3leaps/s3compat/pkg/metrics"
	"github.com/3leaps/s3compat/pkg/provider"
	"github.com/3leaps/s3compat/pkg/provider/s3compat"
)

// VersionInfo describes the running binary.
type VersionInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildDate string `json:"buildDate" yaml:"buildDate"`
}

var versionInfo = VersionInfo{Version: "dev", Commit: "HEAD", BuildDate: "unknown"}

// SetVersionInfo records build metadata injected through ldflags.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo = VersionInfo{Version: version, Commit: commit, BuildDate: buildDate}
}

// ExitError carries a process exit code alongside the failure.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func exitError[C ~int](code C, msg string, err error) error {
	return &ExitError{Code: int(code), Message: msg, Err: err}
}

// providerExit maps a provider failure onto an exit code.
func providerExit(msg string, err error) error {
	var cfgErr *s3compat.ConfigError
	switch {
	case errors.Is(err, context.Canceled):
		return exitError(foundry.ExitSignalInt, msg, err)
	case errors.As(err, &cfgErr),
		errors.Is(err, provider.ErrInvalidPath),
		errors.Is(err, provider.ErrConflict):
		return exitError(foundry.ExitInvalidArgument, msg, err)
	case errors.Is(err, provider.ErrNotFound):
		return exitError(foundry.ExitFileNotFound, msg, err)
	default:
		return exitError(foundry.ExitExternalServiceUnavailable, msg, err)
	}
}

// app holds state shared by every command in one invocation.
type app struct {
	configFile string
	flags      globalFlags

	cfg      *config.Config
	log      *zap.Logger
	registry *prometheus.Registry
	out      *printer
}

type globalFlags struct {
	host, bucket, prefix string
	accessKey, secretKey string
	profile, region      string
	signatureVersion     string
	logLevel, format     string
	metricsFile          string
	encrypt              bool
}

// NewRootCommand builds the full command tree.
func NewRootCommand() *cobra.Command {
	root, _ := newRoot()
	return root
}

func newRoot() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:   "s3compat",
		Short: "Operate on files in any S3-compatible bucket",
		Long: `s3compat treats an S3-compatible bucket as a file tree.

Paths are absolute and start with "/". A trailing "/" names a folder.
Connection settings come from flags, S3COMPAT_* environment variables or
an s3compat.yaml config file.

Examples:
  s3compat --host minio.local:9000 --bucket media ls /photos/
  s3compat stat /photos/cat.jpg
  s3compat put ./cat.jpg /photos/cat.jpg
  s3compat presign /photos/cat.jpg --expiry 10m`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "Config file (default ./s3compat.yaml)")
	pf.StringVar(&a.flags.host, "host", "", "Endpoint host, host:port or URL")
	pf.StringVarP(&a.flags.bucket, "bucket", "b", "", "Bucket name")
	pf.StringVar(&a.flags.prefix, "prefix", "", "Key prefix every path is scoped to")
	pf.StringVar(&a.flags.accessKey, "access-key", "", "Access key (default: AWS credential chain)")
	pf.StringVar(&a.flags.secretKey, "secret-key", "", "Secret key")
	pf.StringVarP(&a.flags.profile, "profile", "p", "", "Shared config profile")
	pf.StringVarP(&a.flags.region, "region", "r", "", "Signing region")
	pf.StringVar(&a.flags.signatureVersion, "signature-version", "", "URL signing: v4 or v2")
	pf.BoolVar(&a.flags.encrypt, "encrypt", false, "Request server-side encryption on writes")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVarP(&a.flags.format, "format", "o", "", "Output format: json or yaml")
	pf.StringVar(&a.flags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	root.AddCommand(
		newLsCmd(a),
		newStatCmd(a),
		newGetCmd(a),
		newPutCmd(a),
		newRmCmd(a),
		newCopyCmd(a, false),
		newCopyCmd(a, true),
		newMkdirCmd(a),
		newRevisionsCmd(a),
		newPresignCmd(a),
		newProbeCmd(a),
		newVersionCmd(a),
	)
	return root, a
}

// overrides collects the flags the user actually set.
func (a *app) overrides(cmd *cobra.Command) map[string]any {
	storage := map[string]any{}
	out := map[string]any{}
	set := func(flag string, dst map[string]any, key string, val any) {
		if cmd.Flags().Changed(flag) {
			dst[key] = val
		}
	}

	set("host", storage, "host", a.flags.host)
	set("bucket", storage, "bucket", a.flags.bucket)
	set("prefix", storage, "prefix", a.flags.prefix)
	set("access-key", storage, "access_key", a.flags.accessKey)
	set("secret-key", storage, "secret_key", a.flags.secretKey)
	set("profile", storage, "profile", a.flags.profile)
	set("region", storage, "region", a.flags.region)
	set("signature-version", storage, "signature_version", a.flags.signatureVersion)
	set("encrypt", storage, "encrypt_uploads", a.flags.encrypt)
	if len(storage) > 0 {
		out["storage"] = storage
	}

	logging := map[string]any{}
	set("log-level", logging, "level", a.flags.logLevel)
	if len(logging) > 0 {
		out["logging"] = logging
	}
	if cmd.Flags().Changed("format") {
		out["output"] = map[string]any{"format": a.flags.format}
	}
	if cmd.Flags().Changed("metrics-file") {
		out["metrics"] = map[string]any{"file": a.flags.metricsFile}
	}
	return out
}

func (a *app) setup(cmd *cobra.Command) error {
	path := a.configFile
	if path == "" {
		path = os.Getenv(config.ConfigFileEnv(cmd.Context()))
	}
	cfg, err := config.LoadFile(cmd.Context(), path, a.overrides(cmd))
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	log, err := observability.NewCLILogger(cfg.Logging.Level, cfg.Logging.Profile)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid logging configuration", err)
	}
	observability.SetCLILogger(log)

	a.cfg = cfg
	a.log = log
	a.registry = prometheus.NewRegistry()
	a.out = &printer{w: cmd.OutOrStdout(), format: cfg.Output.Format}
	return nil
}

// provider opens the configured backend with metrics attached.
func (a *app) provider(ctx context.Context) (*s3compat.Provider, error) {
	p, err := s3compat.New(ctx, a.cfg.Storage.ProviderConfig(),
		s3compat.WithLogger(a.log),
		s3compat.WithObserver(metrics.NewStorageMetrics(a.registry)),
	)
	if err != nil {
		observability.CLILogger.Error("Failed to create provider", zap.Error(err))
		return nil, providerExit("Failed to connect to storage provider", err)
	}
	return p, nil
}

// flushMetrics writes the registry to the configured textfile, if any.
func (a *app) flushMetrics() error {
	if a.cfg == nil || a.registry == nil || a.cfg.Metrics.File == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(a.cfg.Metrics.File, a.registry); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write metrics file", err)
	}
	return nil
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root, a := newRoot()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if ferr := a.flushMetrics(); ferr != nil && err == nil {
		err = ferr
	}
	if err == nil {
		return 0
	}

	_, _ = fmt.Fprintln(stderr, "Error:", err)
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return int(foundry.ExitInvalidArgument)
}
