package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/s3compat/internal/observability"
	"github.com/3leaps/s3compat/pkg/provider"
)

func newStatCmd(a *app) *cobra.Command {
	var version string

	c := &cobra.Command{
		Use:   "stat <path>",
		Short: "Show metadata for a file, or the children of a folder",
		Long: `Show metadata for a path.

A path without a trailing "/" is probed as both a file and a folder; if both
exist the command fails with a conflict. Use a trailing "/" to force a folder.

Examples:
  s3compat stat /photos/cat.jpg
  s3compat stat /photos/cat.jpg --version 3HL4kqtJlcpXroDTDmJ
  s3compat stat /photos/ -o yaml`,
		Args: cobra.ExactArgs(1),
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

			entries, err := p.Metadata(ctx, path, provider.MetadataOptions{Version: version})
			if err != nil {
				observability.CLILogger.Error("Failed to read metadata", zap.String("path", path.String()), zap.Error(err))
				return providerExit("Failed to read metadata", err)
			}
			return a.out.print(views(entries))
		},
	}

	c.Flags().StringVar(&version, "version", "", "Object version to describe")
	return c
}

func newRevisionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "revisions <path>",
		Short: "List the versions of a file, newest first",
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
			revs, err := p.Revisions(ctx, path.AsFile())
			if err != nil {
				observability.CLILogger.Error("Failed to list revisions", zap.String("path", path.String()), zap.Error(err))
				return providerExit("Failed to list revisions", err)
			}
			return a.out.print(views(revs))
		},
	}
}
