package modlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sleetbot/warden/automod/engine"
)

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Mirrors modlog entries for every guild to one slack channel.
type SlackModLog struct {
	WebhookURL string
	// defaults to http.DefaultClient
	Client *http.Client
}

var _ engine.ModLog = (*SlackModLog)(nil)

func (s *SlackModLog) CreateLogEntry(ctx context.Context, guildID, category, emoji, title, body string) error {
	msg := fmt.Sprintf("%s %s (guild `%s`)\n%s", emoji, title, guildID, body)
	return s.send(ctx, msg)
}

// Sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
func (s *SlackModLog) send(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	if resp.StatusCode != http.StatusOK || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}
