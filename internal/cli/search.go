package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/aaronromeo/imapbox/internal/imap"
	"github.com/aaronromeo/imapbox/internal/imap/messages"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <criteria>",
		Short: "Print the UIDs matching an IMAP search in the folder",
		Long: "Print the UIDs matching an IMAP search in the folder.\n\n" +
			"Criteria use IMAP SEARCH syntax plus date macros such as\n" +
			"TODAY, YESTERDAY, THIS WEEK, LAST MONTH and OLDER THAN 30 DAYS.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria := strings.Join(args, " ")
			return a.withMailbox(cmd, a.currentFolder(), func(ctx context.Context, client *imap.Client) error {
				uids, err := client.Search(ctx, criteria)
				if err != nil {
					return err
				}
				for _, uid := range uids {
					fmt.Fprintln(cmd.OutOrStdout(), uid)
				}
				return nil
			})
		},
	}
}

func newLsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "ls [criteria]",
		Short: "List message headers in the folder, optionally filtered",
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria := strings.Join(args, " ")
			return a.withMailbox(cmd, a.currentFolder(), func(ctx context.Context, client *imap.Client) error {
				var (
					it  *messages.Iterator
					err error
				)
				if criteria == "" {
					it, err = client.Iterate(ctx)
				} else {
					var uids []uint32
					uids, err = client.Search(ctx, criteria)
					if err != nil {
						return err
					}
					it, err = client.IterateUIDs(ctx, uids)
				}
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "UID\tDATE\tFROM\tSIZE\tSUBJECT")
				shown := 0
				for it.Next(ctx) {
					if limit > 0 && shown >= limit {
						break
					}
					msg := it.Message()
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
						msg.UID,
						msg.Date().Format("2006-01-02 15:04"),
						fromLine(msg),
						humanize.Bytes(uint64(msg.Size)),
						msg.Subject())
					shown++
				}
				if err := it.Err(); err != nil {
					return err
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most n messages")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <uid>",
		Short: "Print one message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil || uid == 0 {
				return errors.Errorf("invalid uid %q", args[0])
			}
			return a.withMailbox(cmd, a.currentFolder(), func(ctx context.Context, client *imap.Client) error {
				msg, err := client.Fetch(ctx, uint32(uid))
				if err != nil {
					return err
				}
				parts, err := msg.Parts(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "From:    %s\n", msg.Text("From"))
				fmt.Fprintf(out, "To:      %s\n", msg.Text("To"))
				fmt.Fprintf(out, "Date:    %s\n", msg.Date().Format("Mon, 02 Jan 2006 15:04:05 -0700"))
				fmt.Fprintf(out, "Subject: %s\n", msg.Subject())
				fmt.Fprintf(out, "Size:    %s\n\n", humanize.Bytes(uint64(msg.Size)))

				body := parts.Text
				if body == "" {
					body = parts.HTML
				}
				fmt.Fprintln(out, strings.TrimRight(body, "\r\n"))

				for _, att := range parts.Attachments {
					fmt.Fprintf(out, "\n[attachment] %s (%s, %s)", att.Filename, att.MIMEType, humanize.Bytes(uint64(att.Size)))
				}
				if len(parts.Attachments) > 0 {
					fmt.Fprintln(out)
				}
				return nil
			})
		},
	}
}

func fromLine(msg *messages.Message) string {
	addrs := msg.From()
	if len(addrs) == 0 {
		return msg.Text("From")
	}
	names := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		names = append(names, addr.Address)
	}
	return strings.Join(names, ", ")
}
