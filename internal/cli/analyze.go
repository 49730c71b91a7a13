package cli

import (
	"cmp"
	"context"
	"encoding/csv"
	"slices"
	"strconv"
	"strings"

	"github.com/aaronromeo/imapbox/internal/imap"
	"github.com/aaronromeo/imapbox/internal/imap/messages"
	"github.com/spf13/cobra"
)

type domainCount struct {
	Domain string
	Count  int
	Bytes  int64
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "analyze [criteria]",
		Short: "Report sender domains of the messages in the folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria := strings.Join(args, " ")
			if criteria == "" {
				criteria = "ALL"
			}
			return a.withMailbox(cmd, a.currentFolder(), func(ctx context.Context, client *imap.Client) error {
				uids, err := client.Search(ctx, criteria)
				if err != nil {
					return err
				}
				it, err := client.IterateUIDs(ctx, uids)
				if err != nil {
					return err
				}
				counts, err := countSenderDomains(ctx, it)
				if err != nil {
					return err
				}
				if top > 0 && len(counts) > top {
					counts = counts[:top]
				}

				writer := csv.NewWriter(cmd.OutOrStdout())
				if err := writer.Write([]string{"SenderDomain", "Count", "Bytes"}); err != nil {
					return err
				}
				for _, c := range counts {
					if err := writer.Write([]string{c.Domain, strconv.Itoa(c.Count), strconv.FormatInt(c.Bytes, 10)}); err != nil {
						return err
					}
				}
				writer.Flush()
				return writer.Error()
			})
		},
	}
	cmd.Flags().IntVar(&top, "top", 0, "Only report the n most frequent domains")
	return cmd
}

// countSenderDomains drains it and returns domains by descending count.
func countSenderDomains(ctx context.Context, it *messages.Iterator) ([]domainCount, error) {
	byDomain := map[string]*domainCount{}
	for it.Next(ctx) {
		msg := it.Message()
		seen := map[string]bool{}
		for _, addr := range msg.From() {
			_, domain, ok := strings.Cut(addr.Address, "@")
			if !ok {
				continue
			}
			domain = strings.ToLower(domain)
			if seen[domain] {
				continue
			}
			seen[domain] = true
			c, ok := byDomain[domain]
			if !ok {
				c = &domainCount{Domain: domain}
				byDomain[domain] = c
			}
			c.Count++
			c.Bytes += msg.Size
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}

	counts := make([]domainCount, 0, len(byDomain))
	for _, c := range byDomain {
		counts = append(counts, *c)
	}
	slices.SortFunc(counts, func(x, y domainCount) int {
		if n := cmp.Compare(y.Count, x.Count); n != 0 {
			return n
		}
		return strings.Compare(x.Domain, y.Domain)
	})
	return counts, nil
}
