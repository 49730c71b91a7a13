package searches

import (
	"context"

	"github.com/aaronromeo/imapbox/internal/imap/base"
	"github.com/aaronromeo/imapbox/internal/imap/criteria"
	"github.com/emersion/go-imap/v2"
)

type ClientSearcher interface {
	Search(ctx context.Context, query string) ([]uint32, error)
	SearchCriteria(ctx context.Context, criteria *imap.SearchCriteria) ([]uint32, error)
	Keys(ctx context.Context) ([]uint32, error)
	Len(ctx context.Context) (int, error)
}

// Interface to initialize the manager
type ClientProvider interface {
	SessionState() *base.State
}

type IMAPSearchManager struct {
	provider func() *base.State

	// Parser resolves search text. Its clock drives the date macros.
	Parser criteria.Parser
}

func New(provider ClientProvider) *IMAPSearchManager {
	return &IMAPSearchManager{provider: provider.SessionState}
}

// Search runs an IMAP SEARCH in the selected folder. The query uses IMAP
// SEARCH syntax plus the macros documented in package criteria. UIDs are
// returned in the order the server reported them.
func (m *IMAPSearchManager) Search(ctx context.Context, query string) ([]uint32, error) {
	state := m.provider()
	if err := state.Require("search", true); err != nil {
		return nil, withCriteria(err, query)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parsed, err := m.Parser.Parse(query)
	if err != nil {
		return nil, &base.OpError{
			Op:       "search",
			Folder:   state.Folder,
			Criteria: query,
			Kind:     base.ErrInvalidCriteria,
			Err:      err,
		}
	}
	state.Logger().Debug("search", "folder", state.Folder, "criteria", query, "expanded", parsed.Expanded)

	return m.run(ctx, state, parsed.Criteria, query)
}

// SearchCriteria runs a search built by the caller.
func (m *IMAPSearchManager) SearchCriteria(ctx context.Context, criteria *imap.SearchCriteria) ([]uint32, error) {
	state := m.provider()
	if err := state.Require("search", true); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if criteria == nil {
		criteria = &imap.SearchCriteria{}
	}
	return m.run(ctx, state, criteria, "")
}

// Keys returns every UID in the selected folder.
func (m *IMAPSearchManager) Keys(ctx context.Context) ([]uint32, error) {
	return m.SearchCriteria(ctx, &imap.SearchCriteria{})
}

// Len returns the number of messages in the selected folder.
func (m *IMAPSearchManager) Len(ctx context.Context) (int, error) {
	uids, err := m.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(uids), nil
}

func (m *IMAPSearchManager) run(ctx context.Context, state *base.State, criteria *imap.SearchCriteria, query string) ([]uint32, error) {
	data, err := state.Client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		opErr := base.Classify("search", err)
		opErr.Folder = state.Folder
		opErr.Criteria = query
		return nil, opErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	uids := data.AllUIDs()
	matches := make([]uint32, 0, len(uids))
	for _, uid := range uids {
		matches = append(matches, uint32(uid))
	}
	return matches, nil
}

func withCriteria(err error, query string) error {
	if opErr, ok := err.(*base.OpError); ok {
		opErr.Criteria = query
	}
	return err
}
