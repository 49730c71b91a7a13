package matchers

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aaronromeo/imapbox/internal/config"
	"github.com/aaronromeo/imapbox/internal/imap/messages"
)

// ClientMessage is the header data client-side matchers look at.
type ClientMessage struct {
	SubjectRaw string
	Senders    []string
	Recipients []string
	ListID     string
}

// FromMessage extracts the matched fields from a fetched message header.
func FromMessage(msg *messages.Message) ClientMessage {
	data := ClientMessage{
		SubjectRaw: msg.Subject(),
		ListID:     msg.Text("List-Id"),
	}
	for _, addr := range msg.From() {
		data.Senders = append(data.Senders, addr.Address)
	}
	for _, key := range []string{"To", "Cc"} {
		addrs, err := msg.Header.AddressList(key)
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			data.Recipients = append(data.Recipients, addr.Address)
		}
	}
	return data
}

// Matcher holds compiled client matchers. Every configured field must
// match; within a field any pattern may match.
type Matcher struct {
	subject    []*regexp.Regexp
	sender     []*regexp.Regexp
	recipients []*regexp.Regexp
	listID     []*regexp.Regexp
}

// Compile validates the patterns once so a rule can be applied to many messages.
func Compile(matchers *config.ClientMatchers) (*Matcher, error) {
	m := &Matcher{}
	if matchers.IsEmpty() {
		return m, nil
	}
	var err error
	if m.subject, err = compileAll(matchers.SubjectRegex); err != nil {
		return nil, err
	}
	if m.sender, err = compileAll(matchers.SenderRegex); err != nil {
		return nil, err
	}
	if m.recipients, err = compileAll(matchers.RecipientsRegex); err != nil {
		return nil, err
	}
	if m.listID, err = compileAll(matchers.ListIDRegex); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Matcher) Match(data ClientMessage) bool {
	if len(m.subject) > 0 && !matchAny(m.subject, data.SubjectRaw) {
		return false
	}
	if len(m.sender) > 0 && !matchAny(m.sender, data.Senders...) {
		return false
	}
	if len(m.recipients) > 0 && !matchAny(m.recipients, data.Recipients...) {
		return false
	}
	if len(m.listID) > 0 && !matchAny(m.listID, data.ListID) {
		return false
	}
	return true
}

// MatchesClient returns true if the message satisfies all configured client matchers.
func MatchesClient(matchers *config.ClientMatchers, data ClientMessage) (bool, error) {
	m, err := Compile(matchers)
	if err != nil {
		return false, err
	}
	return m.Match(data), nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchAny(res []*regexp.Regexp, values ...string) bool {
	for _, re := range res {
		for _, value := range values {
			if re.MatchString(value) {
				return true
			}
		}
	}
	return false
}
