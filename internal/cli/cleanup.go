package cli

import (
	"context"
	"fmt"

	"github.com/aaronromeo/imapbox/internal/announcer"
	"github.com/aaronromeo/imapbox/internal/cleanup"
	"github.com/aaronromeo/imapbox/internal/config"
	"github.com/aaronromeo/imapbox/internal/imap"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newCleanupCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Process IMAP folders based on configured rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(a.cfg.Rules) == 0 {
				return errors.Errorf("no rules configured; pass --config or set %s", config.EnvConfig)
			}
			fmt.Fprintln(cmd.OutOrStdout(), config.Summary(a.cfg))

			return a.withMailbox(cmd, "", func(ctx context.Context, client *imap.Client) error {
				svc, err := cleanup.NewService(client,
					cleanup.WithLogger(a.logger),
					cleanup.WithDryRun(dryRun),
					cleanup.WithAnnouncer(announcer.New(announcer.WithWebhookURL(config.WebhookURL()))),
				)
				if err != nil {
					return err
				}

				results, err := svc.Run(ctx, a.cfg.Rules)
				for _, result := range results {
					fmt.Fprintf(cmd.OutOrStdout(), "Rule %q folder %q matched %d messages\n", result.Rule, result.Folder, len(result.Matched))
					for _, report := range result.Applied {
						if report.DryRun {
							fmt.Fprintf(cmd.OutOrStdout(), "Dry run: would %s %d messages for rule %q\n", report.Action, report.Count, report.Rule)
						}
					}
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate and report actions without making changes")
	return cmd
}
