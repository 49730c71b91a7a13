package base

import (
	"io"
	"log/slog"

	giimapclient "github.com/emersion/go-imap/v2/imapclient"
)

// SessionState tracks where a session is in its lifecycle.
type SessionState int

const (
	Disconnected SessionState = iota
	Connected
	FolderSelected
	Closed
)

func (s SessionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case FolderSelected:
		return "folder-selected"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// State is the session data shared by every manager of a Client.
type State struct {
	Client *giimapclient.Client
	Folder string
	Status SessionState
	Log    *slog.Logger
}

// Logger never returns nil.
func (s *State) Logger() *slog.Logger {
	if s.Log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Log
}

// Selected records folder as the current folder.
func (s *State) Selected(folder string) {
	s.Folder = folder
	s.Status = FolderSelected
}

// Deselected clears the current folder, keeping the session open.
func (s *State) Deselected() {
	s.Folder = ""
	if s.Status == FolderSelected {
		s.Status = Connected
	}
}

// Require returns an error unless the session is usable for op.
// When folderScoped is set a folder must also be selected.
func (s *State) Require(op string, folderScoped bool) error {
	switch s.Status {
	case Closed:
		return &OpError{Op: op, Kind: ErrClosed}
	case Disconnected:
		return &OpError{Op: op, Kind: ErrNotConnected}
	}
	if s.Client == nil {
		return &OpError{Op: op, Kind: ErrNotConnected}
	}
	if folderScoped && (s.Status != FolderSelected || s.Folder == "") {
		return &OpError{Op: op, Kind: ErrNoFolderSelected}
	}
	return nil
}
