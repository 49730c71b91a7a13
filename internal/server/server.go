// Package server exposes a mailbox over HTTP. Each request opens its own
// IMAP session since a session cannot be shared between requests.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aaronromeo/imapbox/internal/imap"
	"github.com/aaronromeo/imapbox/internal/imap/base"
	"github.com/gofiber/contrib/otelfiber/v2"
	"github.com/gofiber/fiber/v2"
)

const mailboxLocal = "mailbox"

// SessionFactory opens a connected mailbox for one request.
type SessionFactory func(ctx context.Context) (imap.Mailbox, error)

type Server struct {
	app    *fiber.App
	open   SessionFactory
	logger *slog.Logger
}

func New(open SessionFactory, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{open: open, logger: logger}
	s.app = fiber.New(fiber.Config{
		AppName:               "imapbox",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	s.app.Use(otelfiber.Middleware())

	folders := s.app.Group("/folders", s.withSession)
	folders.Get("/", ListFolders)
	folders.Get("/:folder/messages", ListMessages)
	folders.Get("/:folder/messages/:uid", ShowMessage)
	folders.Post("/:folder/move", MoveMessages)
	folders.Post("/:folder/delete", DeleteMessages)

	s.app.Use(NotFound)
	return s
}

// App is the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(addr)
	}()
	s.logger.InfoContext(ctx, "HTTP server listening", slog.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			return err
		}
		return <-errCh
	}
}

func (s *Server) withSession(c *fiber.Ctx) error {
	mailbox, err := s.open(c.UserContext())
	if err != nil {
		return err
	}
	defer func() {
		if err := mailbox.Close(); err != nil {
			s.logger.WarnContext(c.UserContext(), "Failed to close IMAP session", slog.String("error", err.Error()))
		}
	}()
	c.Locals(mailboxLocal, mailbox)
	return c.Next()
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := StatusFor(err)
	if code >= fiber.StatusInternalServerError {
		s.logger.ErrorContext(c.UserContext(), "Request failed",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()))
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// StatusFor maps an error to an HTTP status code.
func StatusFor(err error) int {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.Is(err, base.ErrFolderNotFound), errors.Is(err, base.ErrMessageNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, base.ErrInvalidCriteria):
		return fiber.StatusBadRequest
	case errors.Is(err, base.ErrAuthentication):
		return fiber.StatusUnauthorized
	case errors.Is(err, base.ErrConnection):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
