package alerting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// ChannelSender is the slice of *discordgo.Session the notifier needs.
type ChannelSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts events into one channel.
type DiscordNotifier struct {
	sender    ChannelSender
	channelID string
	logger    zerolog.Logger
}

// NewDiscordNotifier constructs a Discord notifier for channelID.
func NewDiscordNotifier(sender ChannelSender, channelID string, logger zerolog.Logger) *DiscordNotifier {
	return &DiscordNotifier{
		sender:    sender,
		channelID: strings.TrimSpace(channelID),
		logger:    logger.With().Str("component", "alert_discord").Logger(),
	}
}

// Notify sends the rendered event. The request context is honoured through
// discordgo.WithContext.
func (n *DiscordNotifier) Notify(ctx context.Context, event Event) error {
	if n.sender == nil {
		return errors.New("discord session not configured")
	}
	if n.channelID == "" {
		return errors.New("discord channel not configured")
	}

	if _, err := n.sender.ChannelMessageSend(n.channelID, Render(event), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}

	n.logger.Info().Str("kind", string(event.Kind)).Str("channel_id", n.channelID).Msg("alert sent (discord)")
	return nil
}

var _ Notifier = (*DiscordNotifier)(nil)
