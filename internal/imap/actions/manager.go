package actions

import (
	"context"
	"errors"
	"strings"

	"github.com/aaronromeo/imapbox/internal/imap/base"
	"github.com/aaronromeo/imapbox/internal/imap/criteria"
	"github.com/emersion/go-imap/v2"
)

type Actions interface {
	Move(ctx context.Context, uids []uint32, destination string) error
	Copy(ctx context.Context, uids []uint32, destination string) error
	Delete(ctx context.Context, uids []uint32) error
	Discard(ctx context.Context, uids []uint32) error
	Expunge(ctx context.Context, uids []uint32) error
	Add(ctx context.Context, folder string, literal []byte, opts *imap.AppendOptions) (uint32, error)
}

// Interface to initialize the manager
type ClientProvider interface {
	SessionState() *base.State
}

type IMAPActionManager struct {
	provider func() *base.State
}

func New(provider ClientProvider) *IMAPActionManager {
	return &IMAPActionManager{provider: provider.SessionState}
}

// Move copies each message to destination, marks the original deleted and
// expunges the originals from the current folder. When a step fails the
// messages already copied are still expunged before the first error is
// returned, so no message ends up in both folders.
func (c *IMAPActionManager) Move(ctx context.Context, uids []uint32, destination string) error {
	state := c.provider()
	if err := state.Require("move", true); err != nil {
		return err
	}
	if len(uids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return &base.OpError{Op: "move", Folder: state.Folder, Kind: base.ErrFolderNotFound, Err: errors.New("destination mailbox is required")}
	}

	var (
		flagged []uint32
		moveErr error
	)
	for _, uid := range uids {
		if err := ctx.Err(); err != nil {
			moveErr = err
			break
		}
		uidSet := imap.UIDSetNum(imap.UID(uid))
		if _, err := state.Client.Copy(uidSet, destination).Wait(); err != nil {
			opErr := base.Classify("copy", err)
			opErr.Folder = destination
			moveErr = opErr
			break
		}
		if err := flagDeleted(state, uidSet); err != nil {
			moveErr = err
			break
		}
		flagged = append(flagged, uid)
	}

	if len(flagged) > 0 {
		if err := expunge(state, flagged); err != nil && moveErr == nil {
			moveErr = err
		}
	}
	if moveErr != nil {
		state.Logger().Warn("move incomplete", "folder", state.Folder, "destination", destination, "moved", len(flagged), "requested", len(uids), "error", moveErr)
		return moveErr
	}
	state.Logger().Debug("moved messages", "folder", state.Folder, "destination", destination, "count", len(flagged))
	return nil
}

// Copy copies messages to destination and leaves the originals in place.
func (c *IMAPActionManager) Copy(ctx context.Context, uids []uint32, destination string) error {
	state := c.provider()
	if err := state.Require("copy", true); err != nil {
		return err
	}
	if len(uids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return &base.OpError{Op: "copy", Folder: state.Folder, Kind: base.ErrFolderNotFound, Err: errors.New("destination mailbox is required")}
	}

	if _, err := state.Client.Copy(criteria.UIDSet(uids), destination).Wait(); err != nil {
		opErr := base.Classify("copy", err)
		opErr.Folder = destination
		return opErr
	}
	return ctx.Err()
}

// Delete marks messages deleted and expunges them.
func (c *IMAPActionManager) Delete(ctx context.Context, uids []uint32) error {
	if err := c.Discard(ctx, uids); err != nil {
		return err
	}
	if len(uids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	state := c.provider()
	if err := expunge(state, uids); err != nil {
		return err
	}
	state.Logger().Debug("deleted messages", "folder", state.Folder, "count", len(uids))
	return nil
}

// Discard marks messages deleted without expunging them.
func (c *IMAPActionManager) Discard(ctx context.Context, uids []uint32) error {
	state := c.provider()
	if err := state.Require("delete", true); err != nil {
		return err
	}
	if len(uids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return flagDeleted(state, criteria.UIDSet(uids))
}

// Expunge removes messages already marked deleted. With no UIDs every
// deleted message of the folder is removed.
func (c *IMAPActionManager) Expunge(ctx context.Context, uids []uint32) error {
	state := c.provider()
	if err := state.Require("expunge", true); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(uids) == 0 {
		if _, err := state.Client.Expunge().Collect(); err != nil {
			return folderErr("expunge", state, err)
		}
		return nil
	}
	return expunge(state, uids)
}

// Add appends a raw RFC 5322 message to folder and returns its UID when
// the server reports one.
func (c *IMAPActionManager) Add(ctx context.Context, folder string, literal []byte, opts *imap.AppendOptions) (uint32, error) {
	state := c.provider()
	if err := state.Require("append", false); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if folder == "" {
		folder = state.Folder
	}
	if folder == "" {
		return 0, &base.OpError{Op: "append", Kind: base.ErrNoFolderSelected}
	}

	cmd := state.Client.Append(folder, int64(len(literal)), opts)
	if _, err := cmd.Write(literal); err != nil {
		_ = cmd.Close()
		opErr := base.Classify("append", err)
		opErr.Folder = folder
		return 0, opErr
	}
	if err := cmd.Close(); err != nil {
		opErr := base.Classify("append", err)
		opErr.Folder = folder
		return 0, opErr
	}
	data, err := cmd.Wait()
	if err != nil {
		opErr := base.Classify("append", err)
		opErr.Folder = folder
		return 0, opErr
	}
	return uint32(data.UID), nil
}

func flagDeleted(state *base.State, uidSet imap.UIDSet) error {
	store := imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}
	if err := state.Client.Store(uidSet, &store, nil).Close(); err != nil {
		return folderErr("store", state, err)
	}
	return nil
}

// expunge removes only the given UIDs when the server supports UIDPLUS.
// Otherwise it falls back to a plain EXPUNGE of the folder.
func expunge(state *base.State, uids []uint32) error {
	if state.Client.Caps().Has(imap.CapUIDPlus) {
		if _, err := state.Client.UIDExpunge(criteria.UIDSet(uids)).Collect(); err != nil {
			return folderErr("expunge", state, err)
		}
		return nil
	}
	if _, err := state.Client.Expunge().Collect(); err != nil {
		return folderErr("expunge", state, err)
	}
	return nil
}

func folderErr(op string, state *base.State, err error) error {
	opErr := base.Classify(op, err)
	opErr.Folder = state.Folder
	return opErr
}
