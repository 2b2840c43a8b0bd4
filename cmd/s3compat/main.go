// Command s3compat operates on files in an S3-compatible bucket.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/3leaps/s3compat/internal/cmd"
)

// Set through -ldflags at build time.
var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cmd.Execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
