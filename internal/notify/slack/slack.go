// Package slack implements the notify Sender for a Slack channel.
package slack

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/gatehouse/gatehouse/internal/notify"
)

// maxRetries is the max number of retries for rate-limited API calls.
const maxRetries = 3

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Sender posts notifications to a fixed Slack channel.
type Sender struct {
	client    slackClient
	channelID string
}

// Opts holds parameters for creating a Slack Sender.
type Opts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string // channel to post to
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// New creates a Slack Sender.
func New(opts Opts) (*Sender, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel ID is required")
	}
	s := &Sender{channelID: opts.ChannelID, client: opts.Client}
	if s.client == nil {
		s.client = slackapi.New(opts.BotToken)
	}
	return s, nil
}

// Name implements notify.Sender.
func (s *Sender) Name() string { return "slack" }

// Send posts the message as an attachment with a severity color.
func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	att := slackapi.Attachment{
		Title:    msg.Title,
		Text:     msg.Body,
		Color:    severityColor(msg.Severity),
		Fallback: msg.Title,
		Fields: []slackapi.AttachmentField{
			{Title: "Recipient", Value: msg.Recipient, Short: true},
		},
	}
	err := retryOnRateLimit(ctx, func() error {
		_, _, postErr := s.client.PostMessageContext(ctx, s.channelID,
			slackapi.MsgOptionAttachments(att))
		return postErr
	})
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// severityColor maps a severity string to a sidebar color.
func severityColor(severity string) string {
	switch severity {
	case "success":
		return "#36a64f"
	case "warning":
		return "#ff9800"
	default:
		return "#2196f3"
	}
}

// retryOnRateLimit calls fn and retries with backoff on Slack rate limit
// errors. It respects context cancellation and the RetryAfter duration
// from Slack.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) {
			return err // not a rate limit error, don't retry
		}
		if attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
