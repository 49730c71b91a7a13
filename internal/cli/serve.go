package cli

import (
	"context"
	"strings"

	"github.com/aaronromeo/imapbox/internal/config"
	"github.com/aaronromeo/imapbox/internal/imap"
	"github.com/aaronromeo/imapbox/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the mailbox over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := a.sessionOptions(cmd, "")
			if err != nil {
				return err
			}

			addr := strings.TrimSpace(listen)
			if addr == "" {
				addr = a.cfg.Server.Listen
			}
			if addr == "" {
				addr = config.DefaultListen
			}

			srv := server.New(func(context.Context) (imap.Mailbox, error) {
				client := imap.New(opts...)
				if err := client.Connect(); err != nil {
					return nil, err
				}
				return client, nil
			}, a.logger)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return srv.Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from config, "+config.DefaultListen+")")
	return cmd
}
