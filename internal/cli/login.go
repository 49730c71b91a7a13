package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/aaronromeo/imapbox/internal/config"
	"github.com/aaronromeo/imapbox/internal/credential"
	"github.com/aaronromeo/imapbox/internal/imap"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var (
		verify bool
		forget bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the IMAP password in the system keyring",
		Long: "Read the IMAP password from stdin and store it in the system keyring\n" +
			"for the account named by IMAPBOX_IMAP_USER and IMAPBOX_IMAP_HOST.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := config.IMAPEnvFromEnv(false)
			if err != nil {
				return err
			}
			store, err := openCredentials()
			if err != nil {
				return err
			}
			key := credential.Key(env.User, env.Host)

			if forget {
				if err := store.Delete(key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed password for %s\n", key)
				return nil
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Password for %s: ", key)
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return errors.Wrap(err, "reading password")
			}
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				return errors.New("empty password")
			}

			if verify {
				env.Pass = password
				opts, err := a.optionsFor(cmd, env, "")
				if err != nil {
					return err
				}
				if err := imap.Run(cmd.Context(), opts, func(context.Context, *imap.Client) error { return nil }); err != nil {
					return errors.Wrap(err, "verifying password")
				}
			}

			if err := store.Set(key, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored password for %s\n", key)
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", true, "Log in once before storing the password")
	cmd.Flags().BoolVar(&forget, "forget", false, "Remove the stored password instead")
	return cmd
}
