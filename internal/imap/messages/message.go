package messages

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
)

// Message is one message of a folder. Iteration fills the metadata and
// the header; the body is fetched from the server on first use.
type Message struct {
	UID          uint32
	Folder       string
	Size         int64
	InternalDate time.Time
	Flags        []imap.Flag
	Envelope     *imap.Envelope
	Header       mail.Header

	body   []byte
	loaded bool
	load   func(ctx context.Context) ([]byte, error)
}

// Attachment describes an attachment part without keeping its content.
type Attachment struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Parts is the decoded MIME structure of a message.
type Parts struct {
	Text        string       `json:"text,omitempty"`
	HTML        string       `json:"html,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Parse builds a loaded message from a raw RFC 5322 message.
func Parse(folder string, uid uint32, raw []byte) (*Message, error) {
	header, err := readHeader(raw)
	if err != nil {
		return nil, err
	}
	msg := &Message{
		UID:    uid,
		Folder: folder,
		Size:   int64(len(raw)),
		Header: header,
	}
	msg.setBody(raw)
	return msg, nil
}

func (m *Message) Subject() string {
	return m.Text("Subject")
}

// From returns the parsed From addresses. Unparseable headers yield nil.
func (m *Message) From() []*mail.Address {
	addrs, err := m.Header.AddressList("From")
	if err != nil {
		return nil
	}
	return addrs
}

// Date is the Date header, falling back to the internal date.
func (m *Message) Date() time.Time {
	date, err := m.Header.Date()
	if err != nil || date.IsZero() {
		return m.InternalDate
	}
	return date
}

// Text returns the decoded value of a header field.
func (m *Message) Text(key string) string {
	value, err := m.Header.Text(key)
	if err != nil {
		return strings.TrimSpace(m.Header.Get(key))
	}
	return strings.TrimSpace(value)
}

func (m *Message) HasFlag(flag imap.Flag) bool {
	for _, f := range m.Flags {
		if strings.EqualFold(string(f), string(flag)) {
			return true
		}
	}
	return false
}

// Loaded reports whether the body has been fetched.
func (m *Message) Loaded() bool {
	return m.loaded
}

// Body returns the full RFC 822 message, fetching it once.
func (m *Message) Body(ctx context.Context) ([]byte, error) {
	if m.loaded {
		return m.body, nil
	}
	if m.load == nil {
		return nil, errors.New("message body is not available")
	}
	body, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	m.setBody(body)
	return m.body, nil
}

// Parts decodes the body into text, HTML and attachment metadata.
func (m *Message) Parts(ctx context.Context) (*Parts, error) {
	body, err := m.Body(ctx)
	if err != nil {
		return nil, err
	}
	return parseParts(body), nil
}

func (m *Message) setBody(body []byte) {
	m.body = body
	m.loaded = true
	m.load = nil
}

func parseParts(raw []byte) *Parts {
	parts := &Parts{}
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// Not MIME; keep the whole thing as text.
		parts.Text = string(raw)
		return parts
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			if contentType == "" {
				contentType = "text/plain"
			}
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/plain") && parts.Text == "":
				parts.Text = string(body)
			case strings.HasPrefix(contentType, "text/html") && parts.HTML == "":
				parts.HTML = string(body)
			}
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			size, readErr := io.Copy(io.Discard, part.Body)
			if readErr != nil {
				continue
			}
			parts.Attachments = append(parts.Attachments, Attachment{
				Filename: filename,
				MIMEType: contentType,
				Size:     size,
			})
		}
	}
	return parts
}

func readHeader(raw []byte) (mail.Header, error) {
	if raw == nil {
		return mail.Header{}, errors.New("missing header literal")
	}
	tpHeader, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return mail.Header{}, err
	}
	return mail.Header{Header: message.Header{Header: tpHeader}}, nil
}
