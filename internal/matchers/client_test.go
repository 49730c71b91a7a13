package matchers

import (
	"testing"

	"github.com/aaronromeo/imapbox/internal/config"
	"github.com/aaronromeo/imapbox/internal/imap/messages"
)

const listIDHeader = "f7443300a7bb349db1e85fa6emc list <f7443300a7bb349db1e85fa6e.1520313.list-id.mcsv.net>"

func TestMatchesClientListIDRegex(t *testing.T) {
	matchers := &config.ClientMatchers{
		ListIDRegex: []string{`<f7443300a7bb349db1e85fa6e\.1520313\.list-id\.mcsv\.net>`},
	}

	ok, err := MatchesClient(matchers, ClientMessage{ListID: listIDHeader})
	if err != nil {
		t.Fatalf("match client: %v", err)
	}
	if !ok {
		t.Fatal("expected list_id_regex to match ListID")
	}
}

func TestMatchesClientListIDRegexNoMatch(t *testing.T) {
	matchers := &config.ClientMatchers{
		ListIDRegex: []string{`<not-a-match>`},
	}

	ok, err := MatchesClient(matchers, ClientMessage{ListID: listIDHeader})
	if err != nil {
		t.Fatalf("match client: %v", err)
	}
	if ok {
		t.Fatal("expected list_id_regex to not match ListID")
	}
}

func TestMatchesClientSenderAndSubjectRequiresBoth(t *testing.T) {
	matchers := &config.ClientMatchers{
		SenderRegex:  []string{`ghost\.io$`},
		SubjectRegex: []string{`(?i)digest`},
	}

	cases := []struct {
		name string
		data ClientMessage
		want bool
	}{
		{
			name: "both match",
			data: ClientMessage{Senders: []string{"news@ghost.io"}, SubjectRaw: "Weekly Digest"},
			want: true,
		},
		{
			name: "subject differs",
			data: ClientMessage{Senders: []string{"news@ghost.io"}, SubjectRaw: "Invoice"},
		},
		{
			name: "sender differs",
			data: ClientMessage{Senders: []string{"news@example.com"}, SubjectRaw: "Weekly Digest"},
		},
		{
			name: "no sender",
			data: ClientMessage{SubjectRaw: "Weekly Digest"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := MatchesClient(matchers, tc.data)
			if err != nil {
				t.Fatalf("match client: %v", err)
			}
			if ok != tc.want {
				t.Fatalf("got %v, want %v", ok, tc.want)
			}
		})
	}
}

func TestMatchesClientRecipientsRegex(t *testing.T) {
	matchers := &config.ClientMatchers{
		RecipientsRegex: []string{`user@example\.com`},
	}
	data := ClientMessage{
		Recipients: []string{"team@example.org", "user@example.com"},
	}

	ok, err := MatchesClient(matchers, data)
	if err != nil {
		t.Fatalf("match client: %v", err)
	}
	if !ok {
		t.Fatal("expected recipients_regex to match recipient")
	}
}

func TestMatchesClientEmpty(t *testing.T) {
	ok, err := MatchesClient(nil, ClientMessage{})
	if err != nil || !ok {
		t.Fatalf("expected nil matchers to match everything, got %v %v", ok, err)
	}
}

func TestCompileInvalidRegex(t *testing.T) {
	_, err := Compile(&config.ClientMatchers{SubjectRegex: []string{"("}})
	if err == nil {
		t.Fatal("expected invalid regex error")
	}
}

func TestFromMessage(t *testing.T) {
	raw := "From: News <news@ghost.io>\r\n" +
		"To: user@example.com\r\n" +
		"Cc: Team <team@example.org>\r\n" +
		"Subject: Weekly digest\r\n" +
		"List-Id: " + listIDHeader + "\r\n" +
		"\r\n" +
		"body\r\n"
	msg, err := messages.Parse("INBOX", 7, []byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	data := FromMessage(msg)
	if data.SubjectRaw != "Weekly digest" {
		t.Fatalf("unexpected subject %q", data.SubjectRaw)
	}
	if len(data.Senders) != 1 || data.Senders[0] != "news@ghost.io" {
		t.Fatalf("unexpected senders %v", data.Senders)
	}
	if len(data.Recipients) != 2 || data.Recipients[1] != "team@example.org" {
		t.Fatalf("unexpected recipients %v", data.Recipients)
	}
	if data.ListID != listIDHeader {
		t.Fatalf("unexpected list id %q", data.ListID)
	}
}
