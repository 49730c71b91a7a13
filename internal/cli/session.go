package cli

import (
	"context"
	"crypto/tls"

	"github.com/aaronromeo/imapbox/internal/config"
	"github.com/aaronromeo/imapbox/internal/credential"
	"github.com/aaronromeo/imapbox/internal/imap"
	"github.com/aaronromeo/imapbox/internal/imap/sessionmgr"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// openCredentials is replaced in tests.
var openCredentials = credential.Open

// sessionOptions builds connection options from the environment and the
// account config. A missing password is looked up in the keyring.
func (a *app) sessionOptions(cmd *cobra.Command, folder string) ([]sessionmgr.Option, error) {
	env, err := config.IMAPEnvFromEnv(false)
	if err != nil {
		return nil, err
	}
	if env.Pass == "" {
		env.Pass, err = keyringPassword(env)
		if err != nil {
			return nil, err
		}
	}
	return a.optionsFor(cmd, env, folder)
}

func (a *app) optionsFor(cmd *cobra.Command, env config.IMAPEnv, folder string) ([]sessionmgr.Option, error) {
	security, err := sessionmgr.ParseSecurity(a.cfg.Account.Security)
	if err != nil {
		return nil, err
	}
	timeout, err := a.cfg.Account.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	port := env.Port
	if port == 0 {
		port = a.cfg.Account.Port
	}

	opts := []sessionmgr.Option{
		sessionmgr.WithHost(env.Host, port),
		sessionmgr.WithCreds(env.User, env.Pass),
		sessionmgr.WithSecurity(security),
		sessionmgr.WithTLSConfig(&tls.Config{
			ServerName:         env.Host,
			InsecureSkipVerify: a.cfg.Account.InsecureSkipVerify, //nolint:gosec
		}),
		sessionmgr.WithDefaultFolder(folder),
		sessionmgr.WithLogger(a.logger),
	}
	if timeout > 0 {
		opts = append(opts, sessionmgr.WithTimeout(timeout))
	}
	if a.imapDebug {
		opts = append(opts, sessionmgr.WithDebugWriter(cmd.ErrOrStderr()))
	}
	return opts, nil
}

func keyringPassword(env config.IMAPEnv) (string, error) {
	store, err := openCredentials()
	if err != nil {
		return "", err
	}
	pass, err := store.Get(credential.Key(env.User, env.Host))
	if errors.Is(err, credential.ErrNotFound) {
		return "", errors.New("no IMAP password: set IMAPBOX_IMAP_PASS or run `imapbox login`")
	}
	return pass, err
}

// withMailbox runs fn on a session with the given folder selected. An empty
// folder leaves the session without a selection.
func (a *app) withMailbox(cmd *cobra.Command, folder string, fn func(ctx context.Context, client *imap.Client) error) error {
	opts, err := a.sessionOptions(cmd, folder)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return imap.Run(ctx, opts, fn)
}
