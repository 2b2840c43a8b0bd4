// Package observability builds the loggers used by the s3compat CLI.
package observability

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logging profiles.
const (
	// ProfileStructured emits JSON lines, suitable for log shipping.
	ProfileStructured = "STRUCTURED"

	// ProfileConsole emits human-readable, colorless lines.
	ProfileConsole = "CONSOLE"
)

// CLILogger is the process-wide logger for command output. It is a no-op
// until InitCLILogger or SetCLILogger runs.
var CLILogger = zap.NewNop()

// NewCLILogger builds a logger writing to stderr at level using profile.
func NewCLILogger(level, profile string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch strings.ToUpper(strings.TrimSpace(profile)) {
	case "", ProfileStructured:
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.Sampling = nil
	case ProfileConsole:
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("invalid log profile %q: expected %s or %s", profile, ProfileStructured, ProfileConsole)
	}

	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// InitCLILogger installs a console logger for service. verbose lowers the
// level to debug. Used by tests and as the fallback before config loads.
func InitCLILogger(service string, verbose bool) {
	level := "info"
	if verbose {
		level = "debug"
	}
	l, err := NewCLILogger(level, ProfileConsole)
	if err != nil {
		return
	}
	SetCLILogger(l.Named(service))
}

// SetCLILogger replaces CLILogger. A nil logger installs a no-op.
func SetCLILogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	CLILogger = l
}
