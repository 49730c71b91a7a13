package base

import (
	"errors"
	"io"
	"net"
	"strings"

	"github.com/emersion/go-imap/v2"
)

var (
	ErrAuthentication   = errors.New("authentication failed")
	ErrConnection       = errors.New("connection failed")
	ErrFolderNotFound   = errors.New("folder not found")
	ErrNoFolderSelected = errors.New("no folder selected")
	ErrInvalidCriteria  = errors.New("invalid search criteria")
	ErrProtocol         = errors.New("protocol error")
	ErrNotConnected     = errors.New("IMAP client is not connected")
	ErrClosed           = errors.New("session is closed")
	ErrMessageNotFound  = errors.New("message not found")
)

// OpError describes a failed mailbox operation. Kind is one of the
// sentinel errors above and Err, when set, is the underlying cause.
type OpError struct {
	Op       string
	Folder   string
	Criteria string
	Kind     error
	Err      error
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Folder != "" {
		b.WriteString(" ")
		b.WriteString(e.Folder)
	}
	if e.Criteria != "" {
		b.WriteString(" [")
		b.WriteString(e.Criteria)
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func (e *OpError) Is(target error) bool {
	return e.Kind == target
}

// Wrap builds an OpError of the given kind.
func Wrap(op string, kind error, err error) *OpError {
	return &OpError{Op: op, Kind: kind, Err: err}
}

// Classify maps an error returned by the IMAP client to an OpError.
// Errors that are already classified keep their kind.
func Classify(op string, err error) *OpError {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return &OpError{Op: op, Folder: opErr.Folder, Criteria: opErr.Criteria, Kind: opErr.Kind, Err: opErr.Err}
	}
	return &OpError{Op: op, Kind: kindOf(op, err), Err: err}
}

func kindOf(op string, err error) error {
	var imapErr *imap.Error
	if errors.As(err, &imapErr) {
		switch imapErr.Code {
		case imap.ResponseCodeAuthenticationFailed:
			return ErrAuthentication
		case imap.ResponseCodeNonExistent, imap.ResponseCodeTryCreate:
			return ErrFolderNotFound
		}
		switch {
		case op == "login" && imapErr.Type == imap.StatusResponseTypeNo:
			return ErrAuthentication
		case op == "search" && imapErr.Type == imap.StatusResponseTypeBad:
			return ErrInvalidCriteria
		case (op == "select" || op == "status") && imapErr.Type == imap.StatusResponseTypeNo:
			return ErrFolderNotFound
		}
		return ErrProtocol
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return ErrConnection
	}
	return ErrProtocol
}
