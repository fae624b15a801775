package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go-watchdog/internal/config"
)

// Channel is an operator-wide broadcast target.
type Channel interface {
	Name() string
	Send(ctx context.Context, title, message string) error
}

func NewChannels(cfgs []config.ChannelConfig) []Channel {
	client := &http.Client{Timeout: 10 * time.Second}
	var channels []Channel
	for _, cfg := range cfgs {
		if ch := newChannel(cfg, client); ch != nil {
			channels = append(channels, ch)
		}
	}
	return channels
}

func newChannel(cfg config.ChannelConfig, client *http.Client) Channel {
	switch strings.ToLower(cfg.Type) {
	case "discord":
		return &DiscordChannel{URL: cfg.URL, client: client}
	case "slack":
		return &SlackChannel{URL: cfg.URL, client: client}
	case "webhook":
		return &WebhookChannel{URL: cfg.URL, client: client}
	default:
		return nil
	}
}

// --- DISCORD ---
type DiscordChannel struct {
	URL    string
	client *http.Client
}

func (d *DiscordChannel) Name() string { return "discord" }

func (d *DiscordChannel) Send(ctx context.Context, title, message string) error {
	payload := map[string]string{"content": fmt.Sprintf("**%s**\n%s", title, message)}
	return postJSON(ctx, d.client, d.URL, payload)
}

// --- SLACK ---
type SlackChannel struct {
	URL    string
	client *http.Client
}

func (s *SlackChannel) Name() string { return "slack" }

func (s *SlackChannel) Send(ctx context.Context, title, message string) error {
	payload := map[string]string{"text": fmt.Sprintf("*%s*\n%s", title, message)}
	return postJSON(ctx, s.client, s.URL, payload)
}

// --- GENERIC WEBHOOK ---
type WebhookChannel struct {
	URL    string
	client *http.Client
}

func (w *WebhookChannel) Name() string { return "webhook" }

func (w *WebhookChannel) Send(ctx context.Context, title, message string) error {
	payload := map[string]string{
		"title":   title,
		"message": message,
		"status":  "alert",
	}
	return postJSON(ctx, w.client, w.URL, payload)
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s responded with status %d", url, resp.StatusCode)
	}
	return nil
}
