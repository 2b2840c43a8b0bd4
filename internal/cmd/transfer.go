package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/s3compat/internal/observability"
	"github.com/3leaps/s3compat/pkg/provider"
)

// stdio names standard input or output in place of a local file.
const stdio = "-"

func newGetCmd(a *app) *cobra.Command {
	var (
		version     string
		byteRange   string
		displayName string
	)

	c := &cobra.Command{
		Use:   "get <path> [dest]",
		Short: "Download a file",
		Long: `Download a file to dest, or to stdout when dest is "-" or omitted.

Examples:
  s3compat get /reports/q1.pdf ./q1.pdf
  s3compat get /logs/app.log --range 0-1023
  s3compat get /reports/q1.pdf - --version 3HL4kqtJlcpXroDTDmJ`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := provider.DownloadOptions{Version: version, DisplayName: displayName}
			if byteRange != "" {
				r, err := parseByteRange(byteRange)
				if err != nil {
					return exitError(foundry.ExitInvalidArgument, "Invalid --range value", err)
				}
				opts.Range = r
			}
			dest := stdio
			if len(args) == 2 {
				dest = args[1]
			}

			ctx := cmd.Context()
			p, err := a.provider(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			path, err := p.Resolve(ctx, args[0], provider.IntentFile)
			if err != nil {
				observability.CLILogger.Error("Failed to resolve file", zap.String("path", args[0]), zap.Error(err))
				return providerExit("Failed to resolve file", err)
			}

			res, err := p.Download(ctx, path, opts)
			if err != nil {
				observability.CLILogger.Error("Download failed", zap.String("path", path.String()), zap.Error(err))
				return providerExit("Download failed", err)
			}
			defer func() { _ = res.Close() }()

			if dest == stdio {
				if _, err := io.Copy(cmd.OutOrStdout(), res); err != nil {
					return providerExit("Download interrupted", err)
				}
				return nil
			}

			if info, err := os.Stat(dest); err == nil && info.IsDir() {
				dest = filepath.Join(dest, res.Name)
			}
			n, err := writeFile(dest, res)
			if err != nil {
				return err
			}
			observability.CLILogger.Info("Downloaded file",
				zap.String("path", path.String()),
				zap.String("dest", dest),
				zap.Int64("bytes", n),
				zap.Bool("partial", res.Partial))
			return a.out.print(map[string]any{
				"path":    path.String(),
				"file":    dest,
				"bytes":   n,
				"partial": res.Partial,
			})
		},
	}

	c.Flags().StringVar(&version, "version", "", "Object version to download")
	c.Flags().StringVar(&byteRange, "range", "", "Inclusive byte range, e.g. 0-1023")
	c.Flags().StringVar(&displayName, "name", "", "File name suggested through Content-Disposition")
	return c
}

// writeFile streams r into path, removing the partial file on failure.
func writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, exitError(foundry.ExitFileWriteError, "Failed to create destination", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return n, exitError(foundry.ExitFileWriteError, "Failed to write destination", err)
	}
	return n, nil
}

// parseByteRange parses "start-end" into an inclusive range.
func parseByteRange(s string) (*provider.ByteRange, error) {
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return nil, fmt.Errorf("expected start-end, got %q", s)
	}
	start, err := strconv.ParseInt(strings.TrimSpace(lo), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid range start %q", lo)
	}
	end, err := strconv.ParseInt(strings.TrimSpace(hi), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid range end %q", hi)
	}
	if start < 0 || end < start {
		return nil, fmt.Errorf("range %d-%d is empty", start, end)
	}
	return &provider.ByteRange{Start: start, End: end}, nil
}

func newPutCmd(a *app) *cobra.Command {
	var contentType string

	c := &cobra.Command{
		Use:   "put <src> <path>",
		Short: "Upload a local file",
		Long: `Upload src to path. src "-" reads stdin. A path ending in "/" receives
the file under its local name. Large bodies are sent as multipart uploads.

Examples:
  s3compat put ./q1.pdf /reports/
  tar cz . | s3compat put - /backups/site.tgz --content-type application/gzip`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, raw := args[0], args[1]

			var (
				body io.Reader = cmd.InOrStdin()
				size int64
			)
			if src != stdio {
				f, err := os.Open(src)
				if err != nil {
					if errors.Is(err, fs.ErrNotExist) {
						return exitError(foundry.ExitFileNotFound, "Source file not found", err)
					}
					return exitError(foundry.ExitFileReadError, "Failed to open source", err)
				}
				defer func() { _ = f.Close() }()
				info, err := f.Stat()
				if err != nil {
					return exitError(foundry.ExitFileReadError, "Failed to stat source", err)
				}
				body, size = f, info.Size()
			}

			ctx := cmd.Context()
			p, err := a.provider(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			path, err := p.ValidatePath(ctx, raw)
			if err != nil {
				return providerExit("Invalid destination", err)
			}
			if path.IsDir() {
				if src == stdio {
					return exitError(foundry.ExitInvalidArgument, "Invalid destination", fmt.Errorf("stdin uploads need a file path, got folder %s", path))
				}
				if path, err = path.Child(filepath.Base(src), false); err != nil {
					return providerExit("Invalid destination", err)
				}
			}

			meta, created, err := p.Upload(ctx, body, path, provider.UploadOptions{Size: size, ContentType: contentType})
			if err != nil {
				observability.CLILogger.Error("Upload failed", zap.String("path", path.String()), zap.Error(err))
				return providerExit("Upload failed", err)
			}
			observability.CLILogger.Info("Uploaded file",
				zap.String("path", path.String()),
				zap.Bool("created", created))
			return a.out.print(writeResult{Created: created, Entry: meta.View()})
		},
	}

	c.Flags().StringVar(&contentType, "content-type", "", "MIME type stored with the object")
	return c
}

func newRmCmd(a *app) *cobra.Command {
	var confirmRoot bool

	c := &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a file, or a folder and everything in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := a.provider(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			path, err := p.Resolve(ctx, args[0], provider.IntentAny)
			if err != nil {
				observability.CLILogger.Error("Failed to resolve path", zap.String("path", args[0]), zap.Error(err))
				return providerExit("Failed to resolve path", err)
			}
			if err := p.Delete(ctx, path, provider.DeleteOptions{ConfirmRoot: confirmRoot}); err != nil {
				observability.CLILogger.Error("Delete failed", zap.String("path", path.String()), zap.Error(err))
				return providerExit("Delete failed", err)
			}
			observability.CLILogger.Info("Deleted", zap.String("path", path.String()))
			return a.out.print(map[string]string{"deleted": path.String()})
		},
	}

	c.Flags().BoolVar(&confirmRoot, "confirm-root", false, "Allow deleting everything under the root")
	return c
}

func newCopyCmd(a *app, move bool) *cobra.Command {
	use, short := "cp <src> <dst>", "Copy a file or folder"
	if move {
		use, short = "mv <src> <dst>", "Move a file or folder"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `.

A file copied onto a folder path keeps its name. A folder is always copied to
a folder, whether or not dst ends with "/".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := a.provider(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			src, err := p.Resolve(ctx, args[0], provider.IntentAny)
			if err != nil {
				observability.CLILogger.Error("Failed to resolve source", zap.String("path", args[0]), zap.Error(err))
				return providerExit("Failed to resolve source", err)
			}
			dst, err := p.ValidatePath(ctx, args[1])
			if err != nil {
				return providerExit("Invalid destination", err)
			}
			switch {
			case src.IsDir():
				dst = dst.AsFolder()
			case dst.IsDir():
				if dst, err = dst.Child(src.Name(), false); err != nil {
					return providerExit("Invalid destination", err)
				}
			}

			op, transfer := "Copy", p.Copy
			if move {
				op, transfer = "Move", p.Move
			}
			meta, created, err := transfer(ctx, src, dst)
			if err != nil {
				observability.CLILogger.Error(op+" failed",
					zap.String("src", src.String()),
					zap.String("dst", dst.String()),
					zap.Error(err))
				return providerExit(op+" failed", err)
			}
			return a.out.print(writeResult{Created: created, Entry: meta.View()})
		},
	}
}

func newMkdirCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create an empty folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := a.provider(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			path, err := p.ValidatePath(ctx, args[0])
			if err != nil {
				return providerExit("Invalid path", err)
			}
			meta, err := p.CreateFolder(ctx, path.AsFolder())
			if err != nil {
				observability.CLILogger.Error("Failed to create folder", zap.String("path", path.String()), zap.Error(err))
				return providerExit("Failed to create folder", err)
			}
			return a.out.print(writeResult{Created: true, Entry: meta.View()})
		},
	}
}
