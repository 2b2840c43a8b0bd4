package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/s3compat/internal/observability"
	"github.com/3leaps/s3compat/pkg/match"
	"github.com/3leaps/s3compat/pkg/provider"
)

func newLsCmd(a *app) *cobra.Command {
	var filter match.Config

	c := &cobra.Command{
		Use:   "ls [path]",
		Short: "List the immediate children of a folder",
		Long: `List the files and folders directly inside a folder.

The path may omit the trailing "/". --match and --exclude filter entry names
with doublestar glob syntax; folder names are matched without their
trailing "/".

Examples:
  s3compat ls
  s3compat ls /photos
  s3compat ls /photos/ --match '*.{jpg,png}' --exclude '_*'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := provider.Delimiter
			if len(args) == 1 {
				raw = args[0]
			}
			m, err := match.New(filter)
			if err != nil {
				return exitError(foundry.ExitInvalidArgument, "Invalid filter pattern", err)
			}

			ctx := cmd.Context()
			p, err := a.provider(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			folder, err := p.Resolve(ctx, raw, provider.IntentFolder)
			if err != nil {
				observability.CLILogger.Error("Failed to resolve folder", zap.String("path", raw), zap.Error(err))
				return providerExit("Failed to resolve folder", err)
			}

			entries, err := p.ListFolder(ctx, folder)
			if err != nil {
				observability.CLILogger.Error("Failed to list folder", zap.String("path", folder.String()), zap.Error(err))
				return providerExit("Failed to list folder", err)
			}

			total := len(entries)
			if !m.Empty() {
				entries = m.Filter(entries)
			}
			observability.CLILogger.Debug("Listed folder",
				zap.String("path", folder.String()),
				zap.Int("entries", total),
				zap.Int("shown", len(entries)))
			return a.out.print(views(entries))
		},
	}

	c.Flags().StringArrayVar(&filter.Includes, "match", nil, "Only show entries whose name matches this glob (repeatable)")
	c.Flags().StringArrayVar(&filter.Excludes, "exclude", nil, "Hide entries whose name matches this glob (repeatable)")
	c.Flags().BoolVar(&filter.SkipHidden, "skip-hidden", false, "Hide entries whose name starts with '.'")
	return c
}
