package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// DiscordSink posts notifications as embeds through the Discord REST API. It does not open a gateway session.
type DiscordSink struct {
	session *discordgo.Session
}

func NewDiscordSink(token string) (*DiscordSink, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("unable to create discord session: %w", err)
	}

	return &DiscordSink{session: session}, nil
}

func (s *DiscordSink) Send(ctx context.Context, channelID string, n *Notification) error {
	_, err := s.session.ChannelMessageSendEmbed(channelID, notificationEmbed(n), discordgo.WithContext(ctx))
	return err
}

func notificationEmbed(n *Notification) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		URL:         n.URL,
		Type:        discordgo.EmbedTypeRich,
		Title:       n.Title,
		Description: n.Description,
		Color:       n.Color,
	}

	if !n.PublishedAt.IsZero() {
		embed.Timestamp = n.PublishedAt.UTC().Format(time.RFC3339)
	}
	if n.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: n.ThumbnailURL}
	}
	if n.AuthorName != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{Name: n.AuthorName, URL: n.AuthorURL, IconURL: n.AuthorIconURL}
	}
	if n.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: n.Footer}
	}

	return embed
}
