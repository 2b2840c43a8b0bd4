package cmd

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/s3compat/internal/observability"
	"github.com/3leaps/s3compat/pkg/provider"
)

const probePrefix = ".s3compat-probe-"

// probeStep is one timed round trip of a probe.
type probeStep struct {
	Step   string  `json:"step" yaml:"step"`
	OK     bool    `json:"ok" yaml:"ok"`
	Millis float64 `json:"ms" yaml:"ms"`
	ETag   string  `json:"etag,omitempty" yaml:"etag,omitempty"`
	Error  string  `json:"error,omitempty" yaml:"error,omitempty"`
}

type probeReport struct {
	Endpoint string      `json:"endpoint" yaml:"endpoint"`
	Bucket   string      `json:"bucket" yaml:"bucket"`
	Path     string      `json:"path" yaml:"path"`
	OK       bool        `json:"ok" yaml:"ok"`
	Steps    []probeStep `json:"steps" yaml:"steps"`
}

func newProbeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "probe [folder]",
		Short: "Check that the endpoint accepts writes, reads and deletes",
		Long: `Write a small uniquely named object into folder, read it back, compare the
content and delete it. Each step is timed. The object is deleted even when
the read fails.

Examples:
  s3compat probe
  s3compat probe /scratch/`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := provider.Delimiter
			if len(args) == 1 {
				raw = args[0]
				if !strings.HasSuffix(raw, provider.Delimiter) {
					raw += provider.Delimiter
				}
			}

			ctx := cmd.Context()
			p, err := a.provider(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			folder, err := p.ValidatePath(ctx, raw)
			if err != nil {
				return providerExit("Invalid folder", err)
			}
			path, err := folder.Child(probePrefix+uuid.NewString(), false)
			if err != nil {
				return providerExit("Invalid folder", err)
			}
			payload := []byte("s3compat probe " + path.Name())

			report := probeReport{
				Endpoint: p.Connection().Endpoint(),
				Bucket:   a.cfg.Storage.Bucket,
				Path:     path.String(),
			}
			timed := func(step string, fn func() (string, error)) bool {
				start := time.Now()
				detail, err := fn()
				s := probeStep{Step: step, OK: err == nil, Millis: float64(time.Since(start).Microseconds()) / 1000, ETag: detail}
				if err != nil {
					s.Error = err.Error()
					observability.CLILogger.Warn("Probe step failed", zap.String("step", step), zap.Error(err))
				}
				report.Steps = append(report.Steps, s)
				return err == nil
			}

			wrote := timed("write", func() (string, error) {
				meta, _, err := p.Upload(ctx, bytes.NewReader(payload), path, provider.UploadOptions{Size: int64(len(payload)), ContentType: "text/plain"})
				if err != nil {
					return "", err
				}
				return meta.View().ETag, nil
			})
			read := wrote && timed("read", func() (string, error) {
				res, err := p.Download(ctx, path, provider.DownloadOptions{})
				if err != nil {
					return "", err
				}
				defer func() { _ = res.Close() }()
				got, err := io.ReadAll(res)
				if err != nil {
					return "", err
				}
				if !bytes.Equal(got, payload) {
					return "", fmt.Errorf("read back %d bytes, want %d identical bytes", len(got), len(payload))
				}
				return "", nil
			})
			deleted := wrote && timed("delete", func() (string, error) {
				return "", p.Delete(ctx, path, provider.DeleteOptions{})
			})

			report.OK = wrote && read && deleted
			if err := a.out.print(report); err != nil {
				return err
			}
			if !report.OK {
				return exitError(foundry.ExitExternalServiceUnavailable, "Probe failed", fmt.Errorf("see report for the failing step"))
			}
			return nil
		},
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.out.print(versionInfo)
		},
	}
}
