package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Discord implements Messenger on top of a discordgo session.
type Discord struct {
	session *discordgo.Session
}

// NewDiscord wraps an opened (or about to be opened) discordgo session.
func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

// Send posts the message to the channel. Failures are returned as-is;
// callers decide whether a failed send is fatal.
func (d *Discord) Send(ctx context.Context, channelID string, msg Message) error {
	send := &discordgo.MessageSend{Content: msg.Content}
	if msg.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{toDiscordEmbed(msg.Embed)}
	}

	_, err := d.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("sending message to channel %s: %w", channelID, err)
	}
	return nil
}

// UserMention resolves the user and returns their mention string.
func (d *Discord) UserMention(ctx context.Context, userID string) (string, error) {
	user, err := d.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("fetching user %s: %w", userID, err)
	}
	return user.Mention(), nil
}

// BotIdentity returns the bot's display name and avatar URL, if the
// session has finished its ready handshake.
func (d *Discord) BotIdentity() (name, avatarURL string) {
	if d.session.State == nil || d.session.State.User == nil {
		return "", ""
	}
	u := d.session.State.User
	return u.Username, u.AvatarURL("")
}

func toDiscordEmbed(e *Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if e.AuthorName != "" {
		out.Author = &discordgo.MessageEmbedAuthor{
			Name:    e.AuthorName,
			IconURL: e.AuthorIconURL,
		}
	}
	if e.FooterText != "" {
		out.Footer = &discordgo.MessageEmbedFooter{
			Text:    e.FooterText,
			IconURL: e.FooterIconURL,
		}
	}
	if !e.Timestamp.IsZero() {
		out.Timestamp = e.Timestamp.Format(time.RFC3339)
	}
	return out
}
