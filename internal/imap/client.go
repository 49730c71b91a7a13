package imap

import (
	"context"

	"github.com/aaronromeo/imapbox/internal/imap/actions"
	"github.com/aaronromeo/imapbox/internal/imap/messages"
	"github.com/aaronromeo/imapbox/internal/imap/searches"
	"github.com/aaronromeo/imapbox/internal/imap/selectors"
	"github.com/aaronromeo/imapbox/internal/imap/sessionmgr"
)

// Client is one IMAP session together with the operations run on it.
// A Client is not safe for concurrent use.
type Client struct {
	*sessionmgr.IMAPConnector
	*searches.IMAPSearchManager
	*actions.IMAPActionManager
	*selectors.IMAPSelectorManager
	*messages.IMAPMessageManager
}

func New(opts ...sessionmgr.Option) *Client {
	session := sessionmgr.NewServerConnector(opts...)
	client := &Client{
		session,
		searches.New(session),
		actions.New(session),
		selectors.New(session),
		messages.New(session),
	}
	return client
}

// Run connects, selects the default folder when one is configured, calls
// fn and closes the session whatever fn returns, including on panic.
// A close failure is reported only when fn succeeded.
func Run(ctx context.Context, opts []sessionmgr.Option, fn func(ctx context.Context, client *Client) error) (err error) {
	client := New(opts...)
	if err := client.Connect(); err != nil {
		return err
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if client.DefaultFolder != "" {
		if _, err := client.Select(ctx, client.DefaultFolder); err != nil {
			return err
		}
	}
	return fn(ctx, client)
}
