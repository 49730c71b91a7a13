package announcer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoPostsReport(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, webhookAnnouncePath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	a := New(WithWebhookURL(srv.URL + "/"))
	err := a.Do(context.Background(), Report{
		Action:      "move",
		Rule:        "Newsletters",
		Folder:      "INBOX",
		Destination: "Archive",
		Count:       3,
	})
	require.NoError(t, err)

	assert.Equal(t, "move", got["action"])
	assert.Equal(t, "Newsletters", got["rule"])
	assert.EqualValues(t, 3, got["count"])
	assert.Equal(t, `move: Rule "Newsletters" folder "INBOX" matched 3 messages -> "Archive"`, got["message"])
}

func TestDoReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(WithWebhookURL(srv.URL), WithHTTPClient(srv.Client())).Do(context.Background(), Report{Action: "delete"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestDoWithoutURL(t *testing.T) {
	assert.NoError(t, New().Do(context.Background(), Report{Action: "delete"}))
}

func TestReportMessageDryRun(t *testing.T) {
	r := Report{Action: "delete", Rule: "Old", Folder: "Promotions", Count: 0, DryRun: true}
	assert.Equal(t, `dry-run delete: Rule "Old" folder "Promotions" matched 0 messages`, r.Message())
}
