package sessionmgr

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/aaronromeo/imapbox/internal/imap/base"
	"github.com/emersion/go-imap/v2"
	giimapclient "github.com/emersion/go-imap/v2/imapclient"
)

const (
	DefaultPort    = 993
	DefaultFolder  = "INBOX"
	DefaultTimeout = 30 * time.Second
)

// Security selects how the connection is secured.
type Security int

const (
	SecurityTLS Security = iota
	SecurityStartTLS
	SecurityNone
)

// ParseSecurity accepts "tls", "starttls" or "none". An empty value means TLS.
func ParseSecurity(value string) (Security, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "tls", "ssl":
		return SecurityTLS, nil
	case "starttls":
		return SecurityStartTLS, nil
	case "none", "plain", "insecure":
		return SecurityNone, nil
	default:
		return SecurityTLS, fmt.Errorf("unknown security mode %q", value)
	}
}

func (s Security) String() string {
	switch s {
	case SecurityStartTLS:
		return "starttls"
	case SecurityNone:
		return "none"
	default:
		return "tls"
	}
}

type Option func(*IMAPConnector)

type ServerConnector interface {
	Connect() error
	Close() error

	IMAPClient() *giimapclient.Client
	SessionState() *base.State
}

type IMAPConnector struct {
	Addr                  string
	Username              string
	Password              string
	TLSConfig             *tls.Config
	Security              Security
	Timeout               time.Duration
	DefaultFolder         string
	DebugWriter           io.Writer
	UnilateralDataHandler *giimapclient.UnilateralDataHandler

	base.State
}

func WithAddr(a string) Option {
	return func(c *IMAPConnector) {
		c.Addr = a
	}
}

// WithHost sets the address from a host and port. A zero port uses DefaultPort.
func WithHost(host string, port int) Option {
	return func(c *IMAPConnector) {
		if port == 0 {
			port = DefaultPort
		}
		c.Addr = net.JoinHostPort(strings.TrimSpace(host), strconv.Itoa(port))
	}
}

func WithCreds(username string, password string) Option {
	return func(c *IMAPConnector) {
		c.Username = username
		c.Password = password
	}
}

func WithTLSConfig(config *tls.Config) Option {
	return func(state *IMAPConnector) {
		state.TLSConfig = config
	}
}

func WithSecurity(security Security) Option {
	return func(c *IMAPConnector) {
		c.Security = security
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *IMAPConnector) {
		c.Timeout = timeout
	}
}

func WithDefaultFolder(folder string) Option {
	return func(c *IMAPConnector) {
		c.DefaultFolder = strings.TrimSpace(folder)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *IMAPConnector) {
		c.Log = logger
	}
}

func WithDebugWriter(w io.Writer) Option {
	return func(c *IMAPConnector) {
		c.DebugWriter = w
	}
}

func WithUnilateralDataHandler(handler *giimapclient.UnilateralDataHandler) Option {
	return func(state *IMAPConnector) {
		state.UnilateralDataHandler = handler
	}
}

func NewServerConnector(opts ...Option) *IMAPConnector {
	c := &IMAPConnector{
		Timeout:       DefaultTimeout,
		DefaultFolder: DefaultFolder,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *IMAPConnector) IMAPClient() *giimapclient.Client {
	return c.Client
}

func (c *IMAPConnector) SessionState() *base.State {
	return &c.State
}

// Connect establishes the IMAP connection and logs in. Connecting an open
// session is a no-op; connecting a closed one fails.
func (c *IMAPConnector) Connect() error {
	if c.Status == base.Closed {
		return &base.OpError{Op: "connect", Kind: base.ErrClosed}
	}
	if c.Client != nil {
		return nil
	}
	if err := validateDeps(c); err != nil {
		return base.Wrap("connect", base.ErrConnection, err)
	}

	logger := c.Logger().With("addr", c.Addr, "security", c.Security.String())

	options := &giimapclient.Options{
		TLSConfig:             c.TLSConfig,
		UnilateralDataHandler: c.UnilateralDataHandler,
		DebugWriter:           c.DebugWriter,
		Dialer:                &net.Dialer{Timeout: c.Timeout},
	}

	var (
		client *giimapclient.Client
		err    error
	)
	switch c.Security {
	case SecurityStartTLS:
		client, err = giimapclient.DialStartTLS(c.Addr, options)
	case SecurityNone:
		client, err = giimapclient.DialInsecure(c.Addr, options)
	default:
		client, err = giimapclient.DialTLS(c.Addr, options)
	}
	if err != nil {
		return base.Wrap("connect", base.ErrConnection, err)
	}

	if err := client.Login(c.Username, c.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		_ = client.Close()
		return base.Classify("login", err)
	}

	c.Client = client
	c.Status = base.Connected
	c.Folder = ""
	logger.Debug("connection established", "user", c.Username)
	return nil
}

// Capability returns the capabilities advertised by the server.
func (c *IMAPConnector) Capability() (imap.CapSet, error) {
	if err := c.Require("capability", false); err != nil {
		return nil, err
	}
	return c.Client.Caps(), nil
}

// CurrentFolder returns the selected folder, or "" when none is selected.
func (c *IMAPConnector) CurrentFolder() string {
	return c.Folder
}

// Close logs out and clears the connection. It is safe to call repeatedly.
func (c *IMAPConnector) Close() error {
	if c.Client == nil {
		c.Status = base.Closed
		c.Folder = ""
		return nil
	}
	err := c.Client.Logout().Wait()
	_ = c.Client.Close()
	c.Client = nil
	c.Folder = ""
	c.Status = base.Closed
	c.Logger().Debug("connection closed", "addr", c.Addr)
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return base.Classify("logout", err)
	}
	return nil
}

func validateDeps(state *IMAPConnector) error {
	if strings.TrimSpace(state.Addr) == "" {
		return errors.New("IMAP address is required")
	}
	if strings.TrimSpace(state.Username) == "" || strings.TrimSpace(state.Password) == "" {
		return errors.New("IMAP credentials are required")
	}

	return nil
}
