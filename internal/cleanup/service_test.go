package cleanup

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aaronromeo/imapbox/internal/announcer"
	"github.com/aaronromeo/imapbox/internal/config"
	"github.com/aaronromeo/imapbox/internal/imap/base"
	"github.com/aaronromeo/imapbox/internal/imap/messages"
	"github.com/aaronromeo/imapbox/internal/imap/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type recordingAnnouncer struct {
	reports []announcer.Report
	err     error
}

func (r *recordingAnnouncer) Do(_ context.Context, report announcer.Report) error {
	r.reports = append(r.reports, report)
	return r.err
}

func parsed(t *testing.T, uid uint32, from, subject string) *messages.Message {
	t.Helper()
	raw := fmt.Sprintf("From: %s\r\nTo: me@example.com\r\nSubject: %s\r\n\r\nbody\r\n", from, subject)
	msg, err := messages.Parse("INBOX", uid, []byte(raw))
	require.NoError(t, err)
	return msg
}

func newTestService(t *testing.T, mailbox *mock.MockMailbox, opts ...Option) (*ServiceImpl, *recordingAnnouncer) {
	t.Helper()
	rec := &recordingAnnouncer{}
	svc, err := NewService(mailbox, append([]Option{WithAnnouncer(rec)}, opts...)...)
	require.NoError(t, err)
	return svc, rec
}

func TestRunRuleMove(t *testing.T) {
	ctrl := gomock.NewController(t)
	mailbox := mock.NewMockMailbox(ctrl)
	ctx := context.Background()

	gomock.InOrder(
		mailbox.EXPECT().Select(gomock.Any(), "INBOX").Return(nil, nil),
		mailbox.EXPECT().Search(gomock.Any(), "FROM news@example.com").Return([]uint32{4, 9}, nil),
		mailbox.EXPECT().Move(gomock.Any(), []uint32{4, 9}, "Archive").Return(nil),
	)

	svc, rec := newTestService(t, mailbox)
	result, err := svc.RunRule(ctx, config.Rule{
		Name:    "Newsletters",
		Folder:  " INBOX ",
		Search:  "FROM news@example.com",
		Actions: []config.Action{{Type: config.MOVE, Destination: "Archive"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []uint32{4, 9}, result.Matched)
	require.Len(t, rec.reports, 1)
	assert.Equal(t, announcer.Report{
		Action:      "move",
		Rule:        "Newsletters",
		Folder:      "INBOX",
		Destination: "Archive",
		Count:       2,
	}, rec.reports[0])
	assert.Equal(t, rec.reports, result.Applied)
}

func TestRunRuleDryRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	mailbox := mock.NewMockMailbox(ctrl)

	mailbox.EXPECT().Select(gomock.Any(), "Promotions").Return(nil, nil)
	mailbox.EXPECT().Search(gomock.Any(), "ALL").Return([]uint32{1, 2, 3}, nil)

	svc, rec := newTestService(t, mailbox, WithDryRun(true))
	result, err := svc.RunRule(context.Background(), config.Rule{
		Name:    "Promotions",
		Folder:  "Promotions",
		Actions: []config.Action{{Type: config.DELETE}},
	})
	require.NoError(t, err)

	assert.Len(t, result.Matched, 3)
	require.Len(t, rec.reports, 1)
	assert.True(t, rec.reports[0].DryRun)
	assert.Equal(t, 3, rec.reports[0].Count)
}

func TestRunRuleClientMatchers(t *testing.T) {
	ctrl := gomock.NewController(t)
	mailbox := mock.NewMockMailbox(ctrl)

	msgs := []*messages.Message{
		parsed(t, 1, "news@ghost.io", "Weekly digest"),
		parsed(t, 2, "friend@example.com", "Weekly digest"),
		parsed(t, 3, "news@ghost.io", "Daily digest"),
	}

	gomock.InOrder(
		mailbox.EXPECT().Select(gomock.Any(), "INBOX").Return(nil, nil),
		mailbox.EXPECT().Search(gomock.Any(), "SEEN").Return([]uint32{1, 2, 3}, nil),
		mailbox.EXPECT().IterateUIDs(gomock.Any(), []uint32{1, 2, 3}).Return(messages.FromMessages(msgs...), nil),
		mailbox.EXPECT().Delete(gomock.Any(), []uint32{1, 3}).Return(nil),
	)

	svc, _ := newTestService(t, mailbox)
	result, err := svc.RunRule(context.Background(), config.Rule{
		Name:   "Ghost",
		Folder: "INBOX",
		Search: "SEEN",
		Client: &config.ClientMatchers{
			SenderRegex:  []string{`ghost\.io$`},
			SubjectRegex: []string{`(?i)digest`},
		},
		Actions: []config.Action{{Type: config.DELETE}},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 3}, result.Matched)
}

func TestRunRuleMoveThenDelete(t *testing.T) {
	ctrl := gomock.NewController(t)
	mailbox := mock.NewMockMailbox(ctrl)

	mailbox.EXPECT().Select(gomock.Any(), "INBOX").Return(nil, nil)
	mailbox.EXPECT().Search(gomock.Any(), "ALL").Return([]uint32{7}, nil)
	mailbox.EXPECT().Move(gomock.Any(), []uint32{7}, "Archive").Return(nil)

	svc, rec := newTestService(t, mailbox)
	_, err := svc.RunRule(context.Background(), config.Rule{
		Name:   "Both",
		Folder: "INBOX",
		Actions: []config.Action{
			{Type: config.MOVE, Destination: "Archive"},
			{Type: config.DELETE},
		},
	})
	require.NoError(t, err)

	require.Len(t, rec.reports, 2)
	assert.Equal(t, 1, rec.reports[0].Count)
	assert.Equal(t, 0, rec.reports[1].Count)
}

func TestRunRuleErrors(t *testing.T) {
	t.Run("search error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mailbox := mock.NewMockMailbox(ctrl)

		searchErr := &base.OpError{Op: "search", Kind: base.ErrInvalidCriteria, Err: errors.New("unexpected token")}
		mailbox.EXPECT().Select(gomock.Any(), "INBOX").Return(nil, nil)
		mailbox.EXPECT().Search(gomock.Any(), "OLDER THAN").Return(nil, searchErr)

		svc, rec := newTestService(t, mailbox)
		_, err := svc.RunRule(context.Background(), config.Rule{
			Name:    "Broken",
			Folder:  "INBOX",
			Search:  "OLDER THAN",
			Actions: []config.Action{{Type: config.DELETE}},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, base.ErrInvalidCriteria)
		assert.Contains(t, err.Error(), `rule "Broken"`)
		assert.Empty(t, rec.reports)
	})

	t.Run("select error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mailbox := mock.NewMockMailbox(ctrl)

		mailbox.EXPECT().Select(gomock.Any(), "Nope").Return(nil, &base.OpError{Op: "select", Kind: base.ErrFolderNotFound})

		svc, _ := newTestService(t, mailbox)
		_, err := svc.RunRule(context.Background(), config.Rule{
			Name:    "Missing",
			Folder:  "Nope",
			Actions: []config.Action{{Type: config.DELETE}},
		})
		assert.ErrorIs(t, err, base.ErrFolderNotFound)
	})

	t.Run("invalid regex", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mailbox := mock.NewMockMailbox(ctrl)

		svc, _ := newTestService(t, mailbox)
		_, err := svc.RunRule(context.Background(), config.Rule{
			Name:    "Regex",
			Folder:  "INBOX",
			Client:  &config.ClientMatchers{SubjectRegex: []string{"("}},
			Actions: []config.Action{{Type: config.DELETE}},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid regex")
	})
}

func TestRunAnnouncerFailureIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	mailbox := mock.NewMockMailbox(ctrl)

	mailbox.EXPECT().Select(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
	mailbox.EXPECT().Search(gomock.Any(), "ALL").Return([]uint32{}, nil).Times(2)

	rec := &recordingAnnouncer{err: errors.New("webhook down")}
	svc, err := NewService(mailbox, WithAnnouncer(rec))
	require.NoError(t, err)

	results, err := svc.Run(context.Background(), []config.Rule{
		{Name: "One", Folder: "INBOX", Actions: []config.Action{{Type: config.DELETE}}},
		{Name: "Two", Folder: "Archive", Actions: []config.Action{{Type: config.MOVE, Destination: "Trash"}}},
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Len(t, rec.reports, 2)
}
