package chat

import (
	"context"
	"time"
)

// Messenger delivers messages to a chat channel. Consumers such as the
// summary deliverer depend on this interface instead of a concrete
// platform client.
type Messenger interface {
	// Send posts one message to the given channel.
	Send(ctx context.Context, channelID string, msg Message) error

	// UserMention resolves a user ID into a mention string suitable for
	// inclusion in message content.
	UserMention(ctx context.Context, userID string) (string, error)
}

// Message is one outbound chat message: plain content, an embed, or both.
type Message struct {
	Content string
	Embed   *Embed
}

// Embed is a platform-neutral rich message block.
type Embed struct {
	Title         string
	Description   string
	Color         int
	AuthorName    string
	AuthorIconURL string
	FooterText    string
	FooterIconURL string
	Timestamp     time.Time
}
