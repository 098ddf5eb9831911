// Package discord implements the notify Sender for a Discord channel.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/gatehouse/gatehouse/internal/notify"
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Sender posts notifications to a fixed Discord channel. Delivery uses the
// REST API only; no Gateway connection is opened.
type Sender struct {
	sess      session
	channelID string
}

// Opts holds parameters for creating a Discord Sender.
type Opts struct {
	BotToken  string // Discord bot token
	ChannelID string // channel to post to
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// New creates a Discord Sender.
func New(opts Opts) (*Sender, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel ID is required")
	}
	s := &Sender{channelID: opts.ChannelID, sess: opts.Session}
	if s.sess == nil {
		dg, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		s.sess = dg
	}
	return s, nil
}

// Name implements notify.Sender.
func (s *Sender) Name() string { return "discord" }

// Send posts the message as an embed with a severity color.
func (s *Sender) Send(ctx context.Context, msg notify.Message) error {
	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Body,
		Color:       severityColor(msg.Severity),
		Footer:      &discordgo.MessageEmbedFooter{Text: msg.Recipient},
	}
	if _, err := s.sess.ChannelMessageSendEmbed(s.channelID, embed,
		discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send embed: %w", err)
	}
	return nil
}

// severityColor maps a severity string to an embed color.
func severityColor(severity string) int {
	switch severity {
	case "success":
		return 0x36a64f
	case "warning":
		return 0xff9800
	default:
		return 0x2196f3
	}
}
