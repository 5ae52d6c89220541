package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultSlackUsername is the bot name shown on webhook posts.
const DefaultSlackUsername = "stockwatch"

// Slack forwards system notifications to an incoming webhook so they reach
// the player's phone while the game is running.
type Slack struct {
	Webhook  string
	Username string
	Client   *http.Client
}

func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook:  webhook,
		Username: DefaultSlackUsername,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type slackMessage struct {
	Text      string `json:"text"`
	Username  string `json:"username,omitempty"`
	IconEmoji string `json:"icon_emoji,omitempty"`
}

// Slack treats these three as control characters in mrkdwn.
var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func (s *Slack) Send(ctx context.Context, title, text string) error {
	if s == nil || s.Webhook == "" {
		return errors.New("slack disabled")
	}
	msg := slackMessage{
		Text:      "*" + slackEscaper.Replace(title) + "*\n" + slackEscaper.Replace(text),
		Username:  s.Username,
		IconEmoji: ":hourglass_flowing_sand:",
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("slack: status %d", resp.StatusCode)
	}
	return nil
}
