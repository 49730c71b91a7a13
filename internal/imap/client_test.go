package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/aaronromeo/imapbox/ftest"
	"github.com/aaronromeo/imapbox/internal/imap/base"
	"github.com/aaronromeo/imapbox/internal/imap/sessionmgr"
	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(addr string) []sessionmgr.Option {
	return []sessionmgr.Option{
		sessionmgr.WithAddr(addr),
		sessionmgr.WithCreds(ftest.DefaultUser, ftest.DefaultPass),
		sessionmgr.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}),
		sessionmgr.WithTimeout(5 * time.Second),
	}
}

func setupTestClient(t *testing.T, caps imap.CapSet) (*Client, *ftest.Server) {
	t.Helper()

	srv := ftest.SetupIMAPServer(t, caps)
	client := New(testOptions(srv.Addr)...)
	require.NoError(t, client.Connect(), "connect")
	t.Cleanup(func() {
		_ = client.Close()
	})

	_, err := client.Select(testContext(t), "INBOX")
	require.NoError(t, err, "select inbox")
	return client, srv
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func uidQuery(uids []uint32) string {
	query := "UID "
	for i, uid := range uids {
		if i > 0 {
			query += ","
		}
		query += fmt.Sprint(uid)
	}
	return query
}

func TestSearchLocalServer(t *testing.T) {
	client, srv := setupTestClient(t, nil)
	ctx := testContext(t)

	cases := []struct {
		name     string
		criteria string
		wantUIDs []uint32
	}{
		{
			name:     "from vip in ascending order",
			criteria: "FROM vip@example.com",
			wantUIDs: srv.Seeded.VIP,
		},
		{
			name:     "all",
			criteria: "ALL",
			wantUIDs: srv.Seeded.All(),
		},
		{
			name:     "empty criteria matches all",
			criteria: "",
			wantUIDs: srv.Seeded.All(),
		},
		{
			name:     "not from vip",
			criteria: "NOT FROM vip@example.com",
			wantUIDs: srv.Seeded.Other,
		},
		{
			name:     "subject",
			criteria: `SUBJECT "Quarterly numbers"`,
			wantUIDs: []uint32{srv.Seeded.VIP[0], srv.Seeded.VIP[2]},
		},
		{
			name:     "older than macro",
			criteria: "OLDER THAN 2 YEARS",
			wantUIDs: []uint32{},
		},
		{
			name:     "smaller zero matches nothing",
			criteria: "SMALLER 0",
			wantUIDs: []uint32{},
		},
		{
			name:     "not smaller zero matches all",
			criteria: "NOT SMALLER 0",
			wantUIDs: srv.Seeded.All(),
		},
		{
			name:     "uid set",
			criteria: uidQuery(srv.Seeded.Other),
			wantUIDs: srv.Seeded.Other,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uids, err := client.Search(ctx, tc.criteria)
			require.NoError(t, err)
			assert.Equal(t, tc.wantUIDs, uids)
		})
	}
}

func TestSearchOnlyReturnsSelectedFolder(t *testing.T) {
	client, _ := setupTestClient(t, nil)
	ctx := testContext(t)

	_, err := client.Select(ctx, "Empty")
	require.NoError(t, err)
	assert.Equal(t, "Empty", client.CurrentFolder())

	uids, err := client.Search(ctx, "ALL")
	require.NoError(t, err)
	assert.Empty(t, uids)

	count, err := client.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSearchErrors(t *testing.T) {
	client, _ := setupTestClient(t, nil)
	ctx := testContext(t)

	_, err := client.Search(ctx, "BOGUS vip")
	assert.ErrorIs(t, err, base.ErrInvalidCriteria)
	var opErr *base.OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "BOGUS vip", opErr.Criteria)
	assert.Equal(t, "INBOX", opErr.Folder)

	_, err = client.Select(ctx, "DoesNotExist")
	assert.ErrorIs(t, err, base.ErrFolderNotFound)
	assert.Empty(t, client.CurrentFolder())

	_, err = client.Search(ctx, "ALL")
	assert.ErrorIs(t, err, base.ErrNoFolderSelected)
}

func TestMoveLocalServer(t *testing.T) {
	cases := []struct {
		name string
		caps imap.CapSet
	}{
		{
			name: "uidplus",
			caps: imap.CapSet{
				imap.CapIMAP4rev1: {},
				imap.CapUIDPlus:   {},
			},
		},
		{
			name: "expunge",
			caps: imap.CapSet{
				imap.CapIMAP4rev1: {},
			},
		},
		{
			name: "server defaults",
			caps: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, srv := setupTestClient(t, tc.caps)
			ctx := testContext(t)

			uids, err := client.Search(ctx, "FROM vip@example.com")
			require.NoError(t, err)
			require.Len(t, uids, 3)

			require.NoError(t, client.Move(ctx, uids, "Archive"))

			remaining, err := client.Search(ctx, "FROM vip@example.com")
			require.NoError(t, err)
			assert.Empty(t, remaining, "expected no vip mail in INBOX after move")

			others, err := client.Search(ctx, "ALL")
			require.NoError(t, err)
			assert.Equal(t, srv.Seeded.Other, others)

			_, err = client.Select(ctx, "Archive")
			require.NoError(t, err)
			moved, err := client.Search(ctx, "FROM vip@example.com")
			require.NoError(t, err)
			assert.Len(t, moved, 3, "expected moved messages in Archive")
		})
	}
}

func TestMoveMissingDestination(t *testing.T) {
	client, srv := setupTestClient(t, nil)
	ctx := testContext(t)

	err := client.Move(ctx, srv.Seeded.VIP, "DoesNotExist")
	assert.ErrorIs(t, err, base.ErrFolderNotFound)

	uids, err := client.Search(ctx, "FROM vip@example.com")
	require.NoError(t, err)
	assert.Equal(t, srv.Seeded.VIP, uids, "messages must stay when nothing was copied")

	err = client.Move(ctx, srv.Seeded.VIP, "  ")
	assert.ErrorIs(t, err, base.ErrFolderNotFound)
}

func TestMovePartialFailure(t *testing.T) {
	srv := ftest.Start(t, ftest.Options{
		Caps: imap.CapSet{
			imap.CapIMAP4rev1: {},
			imap.CapUIDPlus:   {},
		},
		Mailboxes: []string{"Archive"},
		Seed:      true,
		CopyLimit: 1,
	})
	client := New(testOptions(srv.Addr)...)
	require.NoError(t, client.Connect())
	t.Cleanup(func() {
		_ = client.Close()
	})
	ctx := testContext(t)
	_, err := client.Select(ctx, "INBOX")
	require.NoError(t, err)

	vip := srv.Seeded.VIP
	err = client.Move(ctx, vip, "Archive")
	require.Error(t, err)
	assert.ErrorIs(t, err, base.ErrProtocol)
	var opErr *base.OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "Archive", opErr.Folder)

	remaining, err := client.Search(ctx, "FROM vip@example.com")
	require.NoError(t, err)
	assert.Equal(t, vip[1:], remaining, "messages after the failed copy stay in the source")

	_, err = client.Select(ctx, "Archive")
	require.NoError(t, err)
	it, err := client.Items(ctx)
	require.NoError(t, err)
	archived, err := it.Collect(ctx)
	require.NoError(t, err)
	require.Len(t, archived, 1, "only the copied message reaches the destination")
	assert.Equal(t, "Quarterly numbers", archived[0].Subject())
}

func TestMoveEmptyIsNoop(t *testing.T) {
	client, srv := setupTestClient(t, nil)
	ctx := testContext(t)

	require.NoError(t, client.Move(ctx, nil, "Archive"))
	uids, err := client.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, srv.Seeded.All(), uids)
}

func TestDeleteLocalServer(t *testing.T) {
	cases := []struct {
		name string
		caps imap.CapSet
	}{
		{
			name: "uidplus",
			caps: imap.CapSet{
				imap.CapIMAP4rev1: {},
				imap.CapUIDPlus:   {},
			},
		},
		{
			name: "expunge",
			caps: imap.CapSet{
				imap.CapIMAP4rev1: {},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, srv := setupTestClient(t, tc.caps)
			ctx := testContext(t)

			require.NoError(t, client.Delete(ctx, srv.Seeded.Other))

			gone, err := client.Search(ctx, uidQuery(srv.Seeded.Other))
			require.NoError(t, err)
			assert.Empty(t, gone)

			remaining, err := client.Search(ctx, "ALL")
			require.NoError(t, err)
			assert.Equal(t, srv.Seeded.VIP, remaining)
		})
	}
}

func TestDiscardThenExpunge(t *testing.T) {
	client, srv := setupTestClient(t, nil)
	ctx := testContext(t)

	target := srv.Seeded.VIP[:1]
	require.NoError(t, client.Discard(ctx, target))

	flagged, err := client.Search(ctx, "DELETED")
	require.NoError(t, err)
	assert.Equal(t, target, flagged)

	require.NoError(t, client.Expunge(ctx, nil))
	count, err := client.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestCopyAndAdd(t *testing.T) {
	client, srv := setupTestClient(t, nil)
	ctx := testContext(t)

	require.NoError(t, client.Copy(ctx, srv.Seeded.VIP[:1], "Receipts"))

	raw := ftest.SampleMessage("Shop <shop@example.net>", "User <user@example.com>", "Your receipt", "", "Total: 10")
	_, err := client.Add(ctx, "Receipts", []byte(raw), &imap.AppendOptions{Flags: []imap.Flag{imap.FlagSeen}})
	require.NoError(t, err)

	count, err := client.Count(ctx, "Receipts")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), count)

	inbox, err := client.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, inbox, "copy must leave the source intact")
}

func TestIterateLocalServer(t *testing.T) {
	client, srv := setupTestClient(t, nil)
	ctx := testContext(t)

	it, err := client.Iterate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, it.Len())

	var (
		uids     []uint32
		subjects []string
	)
	for it.Next(ctx) {
		msg := it.Message()
		uids = append(uids, msg.UID)
		subjects = append(subjects, msg.Subject())
		assert.False(t, msg.Loaded(), "iteration must not load bodies")
		assert.Equal(t, "INBOX", msg.Folder)
		assert.Positive(t, msg.Size)
	}
	require.NoError(t, it.Err())
	assert.Equal(t, srv.Seeded.All(), uids)
	assert.Contains(t, subjects, "Lunch on Friday")
}

func TestIterateEmptyFolder(t *testing.T) {
	client, _ := setupTestClient(t, nil)
	ctx := testContext(t)

	_, err := client.Select(ctx, "Empty")
	require.NoError(t, err)

	it, err := client.Iterate(ctx)
	require.NoError(t, err)
	assert.False(t, it.Next(ctx))
	assert.NoError(t, it.Err())
}

func TestIterateSkipsExpungedMessages(t *testing.T) {
	client, srv := setupTestClient(t, nil)
	ctx := testContext(t)

	it, err := client.Iterate(ctx)
	require.NoError(t, err)

	require.NoError(t, client.Delete(ctx, srv.Seeded.VIP[:1]))

	msgs, err := it.Collect(ctx)
	require.NoError(t, err)
	assert.Len(t, msgs, 4)
}

func TestLazyBodyDoesNotSetSeen(t *testing.T) {
	client, srv := setupTestClient(t, nil)
	ctx := testContext(t)

	msg, err := client.FetchHeaders(ctx, srv.Seeded.Other[0])
	require.NoError(t, err)
	assert.False(t, msg.Loaded())
	assert.Equal(t, "Weekly digest", msg.Subject())
	require.Len(t, msg.From(), 1)
	assert.Equal(t, ftest.OtherSender, msg.From()[0].Address)

	parts, err := msg.Parts(ctx)
	require.NoError(t, err)
	assert.True(t, msg.Loaded())
	assert.Contains(t, parts.Text, "unsubscribe")

	again, err := client.FetchHeaders(ctx, srv.Seeded.Other[0])
	require.NoError(t, err)
	assert.False(t, again.HasFlag(imap.FlagSeen))
}

func TestLazyBodyRequiresSameFolder(t *testing.T) {
	client, srv := setupTestClient(t, nil)
	ctx := testContext(t)

	msg, err := client.FetchHeaders(ctx, srv.Seeded.VIP[0])
	require.NoError(t, err)

	_, err = client.Select(ctx, "Archive")
	require.NoError(t, err)

	_, err = msg.Body(ctx)
	assert.ErrorIs(t, err, base.ErrNoFolderSelected)
}

func TestItemsLoadBodies(t *testing.T) {
	client, _ := setupTestClient(t, nil)
	ctx := testContext(t)

	it, err := client.Items(ctx)
	require.NoError(t, err)
	for uid, msg := range it.All(ctx) {
		assert.Equal(t, uid, msg.UID)
		assert.True(t, msg.Loaded())
	}
	require.NoError(t, it.Err())
}

func TestFetchUnknownUID(t *testing.T) {
	client, _ := setupTestClient(t, nil)
	ctx := testContext(t)

	_, err := client.Fetch(ctx, 9999)
	assert.ErrorIs(t, err, base.ErrMessageNotFound)
}

func TestFoldersLocalServer(t *testing.T) {
	client, _ := setupTestClient(t, nil)
	ctx := testContext(t)

	folders, err := client.ListFolders(ctx)
	require.NoError(t, err)
	var names []string
	for _, folder := range folders {
		names = append(names, folder.Name)
	}
	assert.ElementsMatch(t, []string{"INBOX", "Archive", "Receipts", "Empty"}, names)

	matches, err := client.FolderLookup(ctx, "arch")
	require.NoError(t, err)
	assert.Equal(t, []string{"Archive"}, matches)

	count, err := client.Count(ctx, "INBOX")
	require.NoError(t, err)
	assert.Equal(t, uint32(5), count)

	_, err = client.Count(ctx, "DoesNotExist")
	assert.ErrorIs(t, err, base.ErrFolderNotFound)
}

func TestCloseTwice(t *testing.T) {
	client, _ := setupTestClient(t, nil)
	ctx := testContext(t)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	assert.Equal(t, base.Closed, client.SessionState().Status)

	_, err := client.Search(ctx, "ALL")
	assert.ErrorIs(t, err, base.ErrClosed)
	assert.ErrorIs(t, client.Connect(), base.ErrClosed)
}

func TestOperationsBeforeConnect(t *testing.T) {
	client := New()
	ctx := testContext(t)

	_, err := client.Select(ctx, "INBOX")
	assert.ErrorIs(t, err, base.ErrNotConnected)
	_, err = client.ListFolders(ctx)
	assert.ErrorIs(t, err, base.ErrNotConnected)
}

func TestConnectErrors(t *testing.T) {
	srv := ftest.SetupIMAPServer(t, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	refused := ln.Addr().String()
	require.NoError(t, ln.Close())

	cases := []struct {
		name    string
		opts    []sessionmgr.Option
		wantErr error
	}{
		{
			name: "bad password",
			opts: append(testOptions(srv.Addr),
				sessionmgr.WithCreds(ftest.DefaultUser, "wrong")),
			wantErr: base.ErrAuthentication,
		},
		{
			name:    "connection refused",
			opts:    testOptions(refused),
			wantErr: base.ErrConnection,
		},
		{
			name:    "missing credentials",
			opts:    append(testOptions(srv.Addr), sessionmgr.WithCreds("", "")),
			wantErr: base.ErrConnection,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := New(tc.opts...)
			err := client.Connect()
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Nil(t, client.IMAPClient())
		})
	}
}

func TestConnectPlain(t *testing.T) {
	srv := ftest.Start(t, ftest.Options{Plain: true, Seed: true})
	host, port := srv.Host()

	client := New(
		sessionmgr.WithHost(host, port),
		sessionmgr.WithCreds(ftest.DefaultUser, ftest.DefaultPass),
		sessionmgr.WithSecurity(sessionmgr.SecurityNone),
	)
	require.NoError(t, client.Connect())
	t.Cleanup(func() { _ = client.Close() })

	caps, err := client.Capability()
	require.NoError(t, err)
	assert.NotEmpty(t, caps)
}

func TestRunClosesSession(t *testing.T) {
	srv := ftest.SetupIMAPServer(t, nil)
	ctx := testContext(t)

	var session *Client
	err := Run(ctx, testOptions(srv.Addr), func(ctx context.Context, client *Client) error {
		session = client
		assert.Equal(t, "INBOX", client.CurrentFolder())
		uids, err := client.Search(ctx, "FROM vip@example.com")
		require.NoError(t, err)
		assert.Equal(t, srv.Seeded.VIP, uids)
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, base.Closed, session.SessionState().Status)

	boom := errors.New("boom")
	err = Run(ctx, testOptions(srv.Addr), func(ctx context.Context, client *Client) error {
		session = client
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, base.Closed, session.SessionState().Status)

	assert.Panics(t, func() {
		_ = Run(ctx, testOptions(srv.Addr), func(ctx context.Context, client *Client) error {
			session = client
			panic("boom")
		})
	})
	assert.Equal(t, base.Closed, session.SessionState().Status)
}
