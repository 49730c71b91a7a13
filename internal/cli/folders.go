package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/aaronromeo/imapbox/internal/imap"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newFoldersCmd(a *app) *cobra.Command {
	var (
		count  bool
		lookup string
	)
	cmd := &cobra.Command{
		Use:   "folders",
		Short: "List the folders of the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withMailbox(cmd, "", func(ctx context.Context, client *imap.Client) error {
				if lookup != "" {
					names, err := client.FolderLookup(ctx, lookup)
					if err != nil {
						return err
					}
					for _, name := range names {
						fmt.Fprintln(cmd.OutOrStdout(), name)
					}
					return nil
				}

				folders, err := client.ListFolders(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, folder := range folders {
					line := folder.Name + "\t" + strings.Join(folder.Attrs, " ")
					if count {
						n, err := client.Count(ctx, folder.Name)
						if err != nil {
							return err
						}
						line += "\t" + humanize.Comma(int64(n))
					}
					fmt.Fprintln(w, line)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&count, "count", false, "Show the number of messages in each folder")
	cmd.Flags().StringVar(&lookup, "lookup", "", `Find folders by special-use attribute or name (e.g. "\Trash", "spam")`)
	return cmd
}
