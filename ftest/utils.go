package ftest

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	giimapserver "github.com/emersion/go-imap/v2/imapserver"
	giimapmemserver "github.com/emersion/go-imap/v2/imapserver/imapmemserver"
)

const (
	DefaultUser = "user@example.com"
	DefaultPass = "password"

	VIPSender   = "vip@example.com"
	OtherSender = "other@example.org"
)

// Seeded holds the UIDs of the default INBOX messages, in append order.
type Seeded struct {
	VIP   []uint32
	Other []uint32
}

// All returns every seeded UID in ascending order.
func (s Seeded) All() []uint32 {
	all := append(append([]uint32(nil), s.VIP...), s.Other...)
	slices.Sort(all)
	return all
}

type MailboxMessage struct {
	Mailbox string
	From    string
	To      string
	Subject string
	ListID  string
	Body    string
	Time    time.Time
}

type RawMessage struct {
	Mailbox string
	Raw     string
	Flags   []imap.Flag
	Time    time.Time
}

type Options struct {
	// Caps overrides the advertised capabilities. Nil keeps the server
	// defaults, which include UIDPLUS.
	Caps imap.CapSet
	// Mailboxes are created besides INBOX.
	Mailboxes []string
	Messages  []MailboxMessage
	Raw       []RawMessage
	// Plain serves without TLS.
	Plain bool
	// Seed appends the default INBOX messages: three from VIPSender
	// and two from OtherSender.
	Seed bool
	// CopyLimit, when positive, is the number of COPY commands the server
	// accepts. Later ones fail with a NO response.
	CopyLimit int
}

type Server struct {
	Addr   string
	Seeded Seeded
	User   *giimapmemserver.User
}

// Host splits Addr.
func (s *Server) Host() (string, int) {
	host, port, err := net.SplitHostPort(s.Addr)
	if err != nil {
		return s.Addr, 0
	}
	p, _ := net.LookupPort("tcp", port)
	return host, p
}

// SetupIMAPServer starts the default fixture: a seeded INBOX plus the
// Archive, Receipts and Empty folders.
func SetupIMAPServer(t *testing.T, caps imap.CapSet) *Server {
	t.Helper()
	return Start(t, Options{
		Caps:      caps,
		Mailboxes: []string{"Archive", "Receipts", "Empty"},
		Seed:      true,
	})
}

// Start runs an in-memory IMAP server until the test ends.
func Start(t *testing.T, opts Options) *Server {
	t.Helper()

	mem := giimapmemserver.New()
	user := giimapmemserver.NewUser(DefaultUser, DefaultPass)
	mem.AddUser(user)

	if err := user.Create("INBOX", nil); err != nil {
		t.Fatalf("create mailbox: %v", err)
	}
	for _, mailbox := range opts.Mailboxes {
		if strings.TrimSpace(mailbox) == "" {
			continue
		}
		if err := user.Create(mailbox, nil); err != nil {
			t.Fatalf("create mailbox %q: %v", mailbox, err)
		}
	}

	srv := &Server{User: user}
	if opts.Seed {
		srv.Seeded = seed(t, user)
	}

	for _, msg := range opts.Messages {
		mailbox := strings.TrimSpace(msg.Mailbox)
		if mailbox == "" {
			mailbox = "INBOX"
		}
		appendMessage(t, user, mailbox, SampleMessage(msg.From, msg.To, msg.Subject, msg.ListID, msg.Body), nil, msg.Time)
	}
	for _, msg := range opts.Raw {
		mailbox := strings.TrimSpace(msg.Mailbox)
		if mailbox == "" {
			mailbox = "INBOX"
		}
		appendMessage(t, user, mailbox, msg.Raw, msg.Flags, msg.Time)
	}

	var copies *atomic.Int64
	if opts.CopyLimit > 0 {
		copies = &atomic.Int64{}
		copies.Store(int64(opts.CopyLimit))
	}

	tlsConfig := testTLSConfig(t)
	serverOptions := &giimapserver.Options{
		NewSession: func(*giimapserver.Conn) (giimapserver.Session, *giimapserver.GreetingData, error) {
			if copies != nil {
				return &copyLimitSession{Session: mem.NewSession(), remaining: copies}, nil, nil
			}
			return mem.NewSession(), nil, nil
		},
		Caps:         opts.Caps,
		InsecureAuth: true,
	}

	var (
		ln  net.Listener
		err error
	)
	if opts.Plain {
		ln, err = net.Listen("tcp", "127.0.0.1:0")
	} else {
		serverOptions.TLSConfig = tlsConfig
		ln, err = tls.Listen("tcp", "127.0.0.1:0", tlsConfig)
	}
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	server := giimapserver.New(serverOptions)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	t.Cleanup(func() {
		_ = server.Close()
		_ = ln.Close()
		select {
		case <-errCh:
		default:
		}
	})

	srv.Addr = ln.Addr().String()
	return srv
}

// copyLimitSession refuses COPY once remaining reaches zero.
type copyLimitSession struct {
	giimapserver.Session
	remaining *atomic.Int64
}

func (s *copyLimitSession) Copy(numSet imap.NumSet, dest string) (*imap.CopyData, error) {
	if s.remaining.Add(-1) < 0 {
		return nil, &imap.Error{
			Type: imap.StatusResponseTypeNo,
			Code: imap.ResponseCodeLimit,
			Text: "Copy limit reached",
		}
	}
	return s.Session.Copy(numSet, dest)
}

func seed(t *testing.T, user *giimapmemserver.User) Seeded {
	t.Helper()

	var seeded Seeded
	now := time.Now()
	messages := []struct {
		from    string
		subject string
		body    string
		vip     bool
	}{
		{from: "VIP <" + VIPSender + ">", subject: "Quarterly numbers", body: "See the attached report.", vip: true},
		{from: "Newsletter <" + OtherSender + ">", subject: "Weekly digest", body: "Please unsubscribe from these updates."},
		{from: "VIP <" + VIPSender + ">", subject: "Lunch on Friday", body: "Are you free?", vip: true},
		{from: "Newsletter <" + OtherSender + ">", subject: "Sale ends soon", body: "Last chance."},
		{from: "VIP <" + VIPSender + ">", subject: "Re: Quarterly numbers", body: "Thanks.", vip: true},
	}
	for i, msg := range messages {
		raw := SampleMessage(msg.from, "User <"+DefaultUser+">", msg.subject, "", msg.body)
		uid := appendMessage(t, user, "INBOX", raw, nil, now.Add(time.Duration(i-len(messages))*time.Hour))
		if msg.vip {
			seeded.VIP = append(seeded.VIP, uid)
		} else {
			seeded.Other = append(seeded.Other, uid)
		}
	}
	return seeded
}

func appendMessage(t *testing.T, user *giimapmemserver.User, mailbox, raw string, flags []imap.Flag, at time.Time) uint32 {
	t.Helper()
	if at.IsZero() {
		at = time.Now()
	}
	data, err := user.Append(mailbox, newLiteral(t, raw), &imap.AppendOptions{Flags: flags, Time: at})
	if err != nil {
		t.Fatalf("append message to %q: %v", mailbox, err)
	}
	return uint32(data.UID)
}

type literalReader struct {
	*bytes.Reader
	size int64
}

func newLiteral(t *testing.T, raw string) imap.LiteralReader {
	t.Helper()
	buf := []byte(raw)
	return &literalReader{
		Reader: bytes.NewReader(buf),
		size:   int64(len(buf)),
	}
}

func (lr *literalReader) Size() int64 {
	return lr.size
}

// SampleMessage renders a minimal RFC 5322 message.
func SampleMessage(from, to, subject, listID, body string) string {
	builder := &strings.Builder{}
	builder.WriteString("From: ")
	builder.WriteString(from)
	builder.WriteString("\r\n")
	builder.WriteString("To: ")
	builder.WriteString(to)
	builder.WriteString("\r\n")
	if listID != "" {
		builder.WriteString("List-ID: ")
		builder.WriteString(listID)
		builder.WriteString("\r\n")
	}
	builder.WriteString("Subject: ")
	builder.WriteString(subject)
	builder.WriteString("\r\n")
	builder.WriteString("Date: ")
	builder.WriteString(time.Now().Format(time.RFC1123Z))
	builder.WriteString("\r\n")
	builder.WriteString("\r\n")
	builder.WriteString(body)
	builder.WriteString("\r\n")
	return builder.String()
}

func testTLSConfig(t *testing.T) *tls.Config {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		t.Fatalf("generate serial: %v", err)
	}

	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: "localhost",
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}

	cert := tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"imap"},
	}
}
