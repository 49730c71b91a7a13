package selectors

import (
	"context"
	"errors"
	"strings"

	"github.com/aaronromeo/imapbox/internal/imap/base"
	"github.com/emersion/go-imap/v2"
)

type ClientSelectors interface {
	Select(ctx context.Context, folder string) (*imap.SelectData, error)
	ListFolders(ctx context.Context) ([]Folder, error)
	FolderLookup(ctx context.Context, query string) ([]string, error)
	Count(ctx context.Context, folder string) (uint32, error)
}

// Interface to initialize the manager
type ClientProvider interface {
	SessionState() *base.State
}

// Folder is one entry of a LIST response.
type Folder struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Delimiter   string   `json:"delimiter"`
	Attrs       []string `json:"attrs"`
}

// HasAttr reports whether the folder carries attr, ignoring case.
func (f Folder) HasAttr(attr string) bool {
	for _, a := range f.Attrs {
		if strings.EqualFold(a, attr) {
			return true
		}
	}
	return false
}

type IMAPSelectorManager struct {
	provider func() *base.State
}

func New(provider ClientProvider) *IMAPSelectorManager {
	return &IMAPSelectorManager{provider: provider.SessionState}
}

// Select selects a folder and returns its metadata. A failed SELECT
// leaves the session without a selected folder.
func (c *IMAPSelectorManager) Select(ctx context.Context, folder string) (*imap.SelectData, error) {
	state := c.provider()
	if err := state.Require("select", false); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return nil, &base.OpError{Op: "select", Kind: base.ErrFolderNotFound, Err: errors.New("mailbox is required")}
	}

	data, err := state.Client.Select(folder, nil).Wait()
	if err != nil {
		state.Deselected()
		opErr := base.Classify("select", err)
		opErr.Folder = folder
		return nil, opErr
	}
	state.Selected(folder)
	state.Logger().Debug("selected folder", "folder", folder, "messages", data.NumMessages, "uid_validity", data.UIDValidity)
	return data, nil
}

// ListFolders lists every folder of the account.
func (c *IMAPSelectorManager) ListFolders(ctx context.Context) ([]Folder, error) {
	state := c.provider()
	if err := state.Require("list", false); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := state.Client.List("", "*", nil).Collect()
	if err != nil {
		return nil, base.Classify("list", err)
	}

	folders := make([]Folder, 0, len(data))
	for _, item := range data {
		folder := Folder{
			Name:        item.Mailbox,
			DisplayName: item.Mailbox,
		}
		if item.Delim != 0 {
			folder.Delimiter = string(item.Delim)
			parts := strings.Split(item.Mailbox, folder.Delimiter)
			folder.DisplayName = parts[len(parts)-1]
		}
		for _, attr := range item.Attrs {
			folder.Attrs = append(folder.Attrs, string(attr))
		}
		folders = append(folders, folder)
	}
	return folders, nil
}

// FolderLookup finds folders by special-use attribute (for example
// `\Junk`) or, when no folder carries the attribute, by name substring.
func (c *IMAPSelectorManager) FolderLookup(ctx context.Context, query string) ([]string, error) {
	folders, err := c.ListFolders(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	var matches []string
	for _, folder := range folders {
		if folder.HasAttr(query) {
			matches = append(matches, folder.Name)
		}
	}
	if len(matches) > 0 {
		return matches, nil
	}

	needle := strings.ToLower(strings.TrimPrefix(query, `\`))
	for _, folder := range folders {
		if strings.Contains(strings.ToLower(folder.Name), needle) {
			matches = append(matches, folder.Name)
		}
	}
	return matches, nil
}

// Count returns the number of messages in folder using STATUS, without
// changing the selection.
func (c *IMAPSelectorManager) Count(ctx context.Context, folder string) (uint32, error) {
	state := c.provider()
	if err := state.Require("status", false); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	data, err := state.Client.Status(folder, &imap.StatusOptions{NumMessages: true}).Wait()
	if err != nil {
		opErr := base.Classify("status", err)
		opErr.Folder = folder
		return 0, opErr
	}
	if data.NumMessages == nil {
		return 0, nil
	}
	return *data.NumMessages, nil
}
