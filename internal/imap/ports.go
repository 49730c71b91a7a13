package imap

import (
	"context"

	"github.com/aaronromeo/imapbox/internal/imap/actions"
	"github.com/aaronromeo/imapbox/internal/imap/messages"
	"github.com/aaronromeo/imapbox/internal/imap/searches"
	"github.com/aaronromeo/imapbox/internal/imap/selectors"
	"github.com/aaronromeo/imapbox/internal/imap/sessionmgr"
	"github.com/emersion/go-imap/v2"
)

//go:generate mockgen -destination=mock/mailbox.go -package=mock . Mailbox

// Mailbox is the folder-oriented view of a mail account used by the
// cleanup runner and the HTTP server.
type Mailbox interface {
	Connect() error
	Select(ctx context.Context, folder string) (*imap.SelectData, error)
	Search(ctx context.Context, criteria string) ([]uint32, error)
	Iterate(ctx context.Context) (*messages.Iterator, error)
	IterateUIDs(ctx context.Context, uids []uint32) (*messages.Iterator, error)
	Fetch(ctx context.Context, uid uint32) (*messages.Message, error)
	ListFolders(ctx context.Context) ([]selectors.Folder, error)
	Move(ctx context.Context, uids []uint32, destination string) error
	Delete(ctx context.Context, uids []uint32) error
	Close() error
}

type ServerRunner interface {
	sessionmgr.ServerConnector
	searches.ClientSearcher
	selectors.ClientSelectors
	messages.ClientMessages
	actions.Actions
}

var (
	_ Mailbox      = (*Client)(nil)
	_ ServerRunner = (*Client)(nil)
)
