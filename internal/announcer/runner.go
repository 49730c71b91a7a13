package announcer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const webhookAnnouncePath = "/announcements"

type Option func(*webhookAnnouncer)

// Service reports the outcome of a cleanup rule.
type Service interface {
	Do(ctx context.Context, report Report) error
}

// Report is one rule action applied to a folder.
type Report struct {
	Action      string `json:"action"`
	Rule        string `json:"rule"`
	Folder      string `json:"folder"`
	Destination string `json:"destination,omitempty"`
	Count       int    `json:"count"`
	DryRun      bool   `json:"dry_run"`
}

func (r Report) Message() string {
	prefix := r.Action
	if r.DryRun {
		prefix = "dry-run " + prefix
	}
	msg := fmt.Sprintf("%s: Rule %q folder %q matched %d messages", prefix, r.Rule, r.Folder, r.Count)
	if r.Destination != "" {
		msg += fmt.Sprintf(" -> %q", r.Destination)
	}
	return msg
}

func WithWebhookURL(webhookURL string) Option {
	return func(a *webhookAnnouncer) {
		a.baseURL = strings.TrimSpace(webhookURL)
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(a *webhookAnnouncer) {
		a.client = client
	}
}

type webhookAnnouncer struct {
	baseURL string
	client  *http.Client
}

// New returns an announcer. Without a webhook URL, Do is a no-op.
func New(opts ...Option) *webhookAnnouncer {
	a := &webhookAnnouncer{
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *webhookAnnouncer) Do(ctx context.Context, report Report) error {
	if a.baseURL == "" {
		return nil
	}
	payload, err := json.Marshal(struct {
		Message string `json:"message"`
		Report
	}{Message: report.Message(), Report: report})
	if err != nil {
		return err
	}

	baseURL := strings.TrimRight(a.baseURL, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+webhookAnnouncePath, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("reporting webhook returned status %s", resp.Status)
	}
	return nil
}
