package messages

import (
	"context"
	"errors"
	"fmt"

	"github.com/aaronromeo/imapbox/internal/imap/base"
	"github.com/emersion/go-imap/v2"
)

type ClientMessages interface {
	Iterate(ctx context.Context) (*Iterator, error)
	Items(ctx context.Context) (*Iterator, error)
	IterateUIDs(ctx context.Context, uids []uint32) (*Iterator, error)
	Fetch(ctx context.Context, uid uint32) (*Message, error)
	FetchHeaders(ctx context.Context, uid uint32) (*Message, error)
}

// Interface to initialize the manager
type ClientProvider interface {
	SessionState() *base.State
}

type IMAPMessageManager struct {
	provider func() *base.State
}

func New(provider ClientProvider) *IMAPMessageManager {
	return &IMAPMessageManager{provider: provider.SessionState}
}

// Iterate walks the selected folder with header-only messages. The UID
// list is taken once, when Iterate is called.
func (c *IMAPMessageManager) Iterate(ctx context.Context) (*Iterator, error) {
	return c.iterate(ctx, false)
}

// Items walks the selected folder with full bodies.
func (c *IMAPMessageManager) Items(ctx context.Context) (*Iterator, error) {
	return c.iterate(ctx, true)
}

// IterateUIDs walks the given UIDs, typically the result of a search.
func (c *IMAPMessageManager) IterateUIDs(ctx context.Context, uids []uint32) (*Iterator, error) {
	state := c.provider()
	if err := state.Require("iterate", true); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.newIterator(uids, false), nil
}

// Fetch loads one message with its body.
func (c *IMAPMessageManager) Fetch(ctx context.Context, uid uint32) (*Message, error) {
	return c.fetchOne(ctx, "fetch", uid, true)
}

// FetchHeaders loads one message without its body.
func (c *IMAPMessageManager) FetchHeaders(ctx context.Context, uid uint32) (*Message, error) {
	return c.fetchOne(ctx, "fetch", uid, false)
}

func (c *IMAPMessageManager) iterate(ctx context.Context, full bool) (*Iterator, error) {
	state := c.provider()
	if err := state.Require("iterate", true); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := state.Client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		opErr := base.Classify("iterate", err)
		opErr.Folder = state.Folder
		return nil, opErr
	}
	all := data.AllUIDs()
	uids := make([]uint32, 0, len(all))
	for _, uid := range all {
		uids = append(uids, uint32(uid))
	}
	state.Logger().Debug("iterate", "folder", state.Folder, "messages", len(uids))
	return c.newIterator(uids, full), nil
}

func (c *IMAPMessageManager) newIterator(uids []uint32, full bool) *Iterator {
	return &Iterator{
		uids: uids,
		fetch: func(ctx context.Context, uid uint32) (*Message, error) {
			return c.fetchOne(ctx, "iterate", uid, full)
		},
	}
}

func (c *IMAPMessageManager) fetchOne(ctx context.Context, op string, uid uint32, full bool) (*Message, error) {
	state := c.provider()
	if err := state.Require(op, true); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msg, err := fetch(state, uid, full)
	if err != nil {
		opErr := base.Classify(op, err)
		opErr.Folder = state.Folder
		return nil, opErr
	}
	if !full {
		folder := msg.Folder
		msg.load = func(ctx context.Context) ([]byte, error) {
			return c.loadBody(ctx, folder, uid)
		}
	}
	return msg, nil
}

// loadBody fetches the body of a message found earlier. The session must
// still have the message's folder selected.
func (c *IMAPMessageManager) loadBody(ctx context.Context, folder string, uid uint32) ([]byte, error) {
	state := c.provider()
	if err := state.Require("fetch", true); err != nil {
		return nil, err
	}
	if state.Folder != folder {
		return nil, &base.OpError{
			Op:     "fetch",
			Folder: folder,
			Kind:   base.ErrNoFolderSelected,
			Err:    fmt.Errorf("%q is selected", state.Folder),
		}
	}
	msg, err := c.fetchOne(ctx, "fetch", uid, true)
	if err != nil {
		return nil, err
	}
	return msg.body, nil
}

func fetch(state *base.State, uid uint32, full bool) (*Message, error) {
	section := &imap.FetchItemBodySection{Peek: true}
	if !full {
		section.Specifier = imap.PartSpecifierHeader
	}
	options := &imap.FetchOptions{
		UID:          true,
		Flags:        true,
		Envelope:     true,
		RFC822Size:   true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{section},
	}

	fetchCmd := state.Client.Fetch(imap.UIDSetNum(imap.UID(uid)), options)
	item := fetchCmd.Next()
	if item == nil {
		if err := fetchCmd.Close(); err != nil {
			return nil, err
		}
		return nil, base.Wrap("fetch", base.ErrMessageNotFound, fmt.Errorf("uid %d", uid))
	}
	buf, err := item.Collect()
	if err != nil {
		_ = fetchCmd.Close()
		return nil, err
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, err
	}
	if uint32(buf.UID) != uid {
		return nil, base.Wrap("fetch", base.ErrMessageNotFound, fmt.Errorf("uid %d", uid))
	}

	raw := buf.FindBodySection(section)
	header, err := readHeader(raw)
	if err != nil {
		return nil, base.Wrap("fetch", base.ErrProtocol, errors.Join(fmt.Errorf("uid %d header", uid), err))
	}

	msg := &Message{
		UID:          uid,
		Folder:       state.Folder,
		Size:         buf.RFC822Size,
		InternalDate: buf.InternalDate,
		Flags:        buf.Flags,
		Envelope:     buf.Envelope,
		Header:       header,
	}
	if full {
		msg.setBody(raw)
	}
	return msg, nil
}
