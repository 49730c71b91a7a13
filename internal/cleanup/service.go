// Package cleanup applies configured rules to a mailbox: a server-side
// search, optional client-side header matchers, then move or delete.
package cleanup

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aaronromeo/imapbox/internal/announcer"
	"github.com/aaronromeo/imapbox/internal/config"
	"github.com/aaronromeo/imapbox/internal/imap"
	"github.com/aaronromeo/imapbox/internal/matchers"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/aaronromeo/imapbox/internal/cleanup"

// Service runs cleanup rules.
type Service interface {
	Run(ctx context.Context, rules []config.Rule) ([]Result, error)
	RunRule(ctx context.Context, rule config.Rule) (Result, error)
}

// Result is the outcome of one rule.
type Result struct {
	Rule    string
	Folder  string
	Matched []uint32
	Applied []announcer.Report
}

type Option func(*ServiceImpl)

func WithLogger(logger *slog.Logger) Option {
	return func(s *ServiceImpl) {
		s.logger = logger
	}
}

func WithAnnouncer(a announcer.Service) Option {
	return func(s *ServiceImpl) {
		s.announcer = a
	}
}

// WithDryRun reports matches without moving or deleting anything.
func WithDryRun(dryRun bool) Option {
	return func(s *ServiceImpl) {
		s.dryRun = dryRun
	}
}

type ServiceImpl struct {
	mailbox   imap.Mailbox
	logger    *slog.Logger
	announcer announcer.Service
	dryRun    bool
	processed metric.Int64Counter
}

// NewService returns a cleanup service over a connected mailbox.
func NewService(mailbox imap.Mailbox, opts ...Option) (*ServiceImpl, error) {
	s := &ServiceImpl{
		mailbox:   mailbox,
		logger:    slog.Default(),
		announcer: announcer.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"imapbox.cleanup.messages",
		metric.WithDescription("Messages moved or deleted by cleanup rules"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}
	s.processed = counter
	return s, nil
}

// Run applies the rules in order and stops at the first failure.
func (s *ServiceImpl) Run(ctx context.Context, rules []config.Rule) ([]Result, error) {
	results := make([]Result, 0, len(rules))
	for _, rule := range rules {
		result, err := s.RunRule(ctx, rule)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *ServiceImpl) RunRule(ctx context.Context, rule config.Rule) (result Result, err error) {
	folder := strings.TrimSpace(rule.Folder)
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "cleanup.rule")
	span.SetAttributes(
		attribute.String("rule", rule.Name),
		attribute.String("folder", folder),
		attribute.Bool("dry_run", s.dryRun),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	logger := s.logger.With(slog.String("rule", rule.Name), slog.String("folder", folder))
	result = Result{Rule: rule.Name, Folder: folder}

	clientMatcher, err := matchers.Compile(rule.Client)
	if err != nil {
		return result, errors.Wrapf(err, "rule %q", rule.Name)
	}

	if _, err := s.mailbox.Select(ctx, folder); err != nil {
		return result, errors.Wrapf(err, "rule %q", rule.Name)
	}

	criteria := strings.TrimSpace(rule.Search)
	if criteria == "" {
		criteria = "ALL"
	}
	uids, err := s.mailbox.Search(ctx, criteria)
	if err != nil {
		return result, errors.Wrapf(err, "rule %q", rule.Name)
	}

	if !rule.Client.IsEmpty() && len(uids) > 0 {
		uids, err = s.filter(ctx, clientMatcher, uids)
		if err != nil {
			return result, errors.Wrapf(err, "rule %q", rule.Name)
		}
	}
	result.Matched = uids
	span.SetAttributes(attribute.Int("matched", len(uids)))
	logger.InfoContext(ctx, "Rule matched messages", slog.Int("count", len(uids)))

	pending := uids
	for _, action := range rule.Actions {
		report := announcer.Report{
			Action:      string(action.Type),
			Rule:        rule.Name,
			Folder:      folder,
			Destination: strings.TrimSpace(action.Destination),
			Count:       len(pending),
			DryRun:      s.dryRun,
		}

		if !s.dryRun && len(pending) > 0 {
			switch action.Type {
			case config.MOVE:
				err = s.mailbox.Move(ctx, pending, report.Destination)
			case config.DELETE:
				err = s.mailbox.Delete(ctx, pending)
			default:
				err = errors.Errorf("unsupported action type %q", action.Type)
			}
			if err != nil {
				return result, errors.Wrapf(err, "rule %q: %s", rule.Name, action.Type)
			}
			s.processed.Add(ctx, int64(len(pending)), metric.WithAttributes(
				attribute.String("action", string(action.Type)),
				attribute.String("rule", rule.Name),
			))
			// Moved or deleted messages are gone from the folder.
			pending = nil
		}

		result.Applied = append(result.Applied, report)
		logger.InfoContext(ctx, report.Message())
		if err := s.announcer.Do(ctx, report); err != nil {
			logger.WarnContext(ctx, "Failed to announce rule result", slog.String("error", err.Error()))
		}
	}
	return result, nil
}

func (s *ServiceImpl) filter(ctx context.Context, m *matchers.Matcher, uids []uint32) ([]uint32, error) {
	it, err := s.mailbox.IterateUIDs(ctx, uids)
	if err != nil {
		return nil, err
	}
	kept := make([]uint32, 0, len(uids))
	for it.Next(ctx) {
		msg := it.Message()
		if m.Match(matchers.FromMessage(msg)) {
			kept = append(kept, msg.UID)
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return kept, nil
}
