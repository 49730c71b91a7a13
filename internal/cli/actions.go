package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/aaronromeo/imapbox/internal/imap"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newMoveCmd(a *app) *cobra.Command {
	var (
		destination string
		dryRun      bool
	)
	cmd := &cobra.Command{
		Use:   "move --to <folder> <criteria>",
		Short: "Move the messages matching a search to another folder",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			destination = strings.TrimSpace(destination)
			if destination == "" {
				return errors.New("--to is required")
			}
			criteria := strings.Join(args, " ")
			folder := a.currentFolder()
			return a.withMailbox(cmd, folder, func(ctx context.Context, client *imap.Client) error {
				uids, err := client.Search(ctx, criteria)
				if err != nil {
					return err
				}
				if dryRun {
					fmt.Fprintf(cmd.OutOrStdout(), "Dry run: would move %d messages from %q to %q\n", len(uids), folder, destination)
					return nil
				}
				if err := client.Move(ctx, uids, destination); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved %d messages from %q to %q\n", len(uids), folder, destination)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&destination, "to", "", "Destination folder")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report without moving")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "delete <criteria>",
		Short: "Permanently delete the messages matching a search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria := strings.Join(args, " ")
			folder := a.currentFolder()
			return a.withMailbox(cmd, folder, func(ctx context.Context, client *imap.Client) error {
				uids, err := client.Search(ctx, criteria)
				if err != nil {
					return err
				}
				if dryRun {
					fmt.Fprintf(cmd.OutOrStdout(), "Dry run: would delete %d messages from %q\n", len(uids), folder)
					return nil
				}
				if err := client.Delete(ctx, uids); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d messages from %q\n", len(uids), folder)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report without deleting")
	return cmd
}
