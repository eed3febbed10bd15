package summary

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/kalambet/meetsum/internal/chat"
)

const (
	// maxMessageLength is the hard per-message cap; longer chunk content
	// is truncated, never re-chunked.
	maxMessageLength = 4096

	// defaultChunkDelay is the pause between consecutive chunk messages.
	// It keeps sends ordered in the channel and under rate limits.
	defaultChunkDelay = time.Second
)

const (
	colorChunk = 0x0099ff
	colorFinal = 0x28a745
	colorError = 0xff0000
)

// DeliveryContext carries display metadata across one chunk loop. It is
// not retained between deliveries.
type DeliveryContext struct {
	ChannelID     string
	FileName      string
	UserID        string
	UserAvatarURL string
}

// Identity reports the bot's own display identity for embed authorship.
type Identity interface {
	BotIdentity() (name, avatarURL string)
}

// Deliverer turns a workflow reply into ordered channel messages.
// Deliver never fails upward: every failure degrades to an error message
// sent to the same channel the summary would have gone to.
type Deliverer struct {
	messenger chat.Messenger

	// BotName labels each summary embed. Identity, when set, overrides
	// it with the live session identity and supplies the author icon.
	BotName  string
	Identity Identity

	// ChunkDelay overrides the pacing between chunk messages; tests
	// shorten it.
	ChunkDelay time.Duration

	now func() time.Time
}

// NewDeliverer creates a Deliverer with the default pacing.
func NewDeliverer(messenger chat.Messenger) *Deliverer {
	return &Deliverer{
		messenger:  messenger,
		BotName:    "Meeting Summary Bot",
		ChunkDelay: defaultChunkDelay,
		now:        time.Now,
	}
}

// Deliver validates the reply and streams its chunks to the channel, one
// message per valid chunk, in array order. It never returns an error and
// never panics.
func (d *Deliverer) Deliver(ctx context.Context, body []byte, dc DeliveryContext) {
	log := logrus.WithFields(logrus.Fields{"channel": dc.ChannelID, "file": dc.FileName})

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("unexpected failure while processing workflow response: %v", r)
			d.sendError(ctx, dc, "an internal error occurred while processing the workflow response")
		}
	}()

	rawChunks, userID, perr := parse(body)
	if perr != nil {
		if perr.kind == parseWorkflowError {
			log.Errorf("workflow engine reported an error: %s", perr.detail)
		} else {
			log.Errorf("rejected workflow response: %s", d.rejectionMessage(perr, dc.FileName))
		}
		d.sendError(ctx, dc, d.rejectionMessage(perr, dc.FileName))
		return
	}

	// The engine may name the requesting user itself; it wins over the
	// value carried from the trigger.
	if userID != "" {
		dc.UserID = userID
	}

	log.Infof("delivering %d chunks", len(rawChunks))

	sent := 0
	for i, raw := range rawChunks {
		chunk, ok := decodeChunk(raw)
		if !ok {
			log.Warnf("skipping invalid chunk at position %d", i)
			continue
		}
		if sent > 0 {
			d.pause()
		}
		d.sendChunk(ctx, chunk, dc)
		sent++
	}

	log.Infof("delivered %d of %d chunks", sent, len(rawChunks))
}

func (d *Deliverer) pause() {
	if d.ChunkDelay > 0 {
		time.Sleep(d.ChunkDelay)
	}
}

// rejectionMessage maps a failed validation step onto its distinct
// user-facing message.
func (d *Deliverer) rejectionMessage(perr *parseError, fileName string) string {
	switch perr.kind {
	case parseEmptyResult:
		return fmt.Sprintf("received an empty result from the workflow engine for file: %s", fileName)
	case parseEmptyArray:
		return fmt.Sprintf("received an empty array from the workflow engine for file: %s", fileName)
	case parseNullElement:
		return fmt.Sprintf("the first element of the workflow result is empty for file: %s", fileName)
	case parseWorkflowError:
		return "the workflow engine reported an error: " + perr.detail
	default:
		return fmt.Sprintf("the summary structure returned by the workflow engine is invalid for file: %s", fileName)
	}
}

// sendChunk renders one chunk as one message. Send failures are logged
// and swallowed; a dead channel must not abort the remaining sequence.
func (d *Deliverer) sendChunk(ctx context.Context, chunk Chunk, dc DeliveryContext) {
	msg := chat.Message{
		Content: d.greeting(ctx, chunk, dc),
		Embed:   d.chunkEmbed(chunk, dc),
	}
	if err := d.messenger.Send(ctx, dc.ChannelID, msg); err != nil {
		logrus.WithError(err).Warnf("failed to send chunk %d/%d for file %s", chunk.Index, chunk.Total, dc.FileName)
	}
}

// greeting builds the leading mention line for the first chunk. A failed
// user lookup degrades to a mention-less greeting, never an error.
func (d *Deliverer) greeting(ctx context.Context, chunk Chunk, dc DeliveryContext) string {
	if !chunk.IsFirst {
		return ""
	}

	mention := ""
	if dc.UserID != "" {
		m, err := d.messenger.UserMention(ctx, dc.UserID)
		if err != nil {
			logrus.WithError(err).Warnf("could not resolve user %s for greeting", dc.UserID)
		} else {
			mention = m + " "
		}
	}

	if hasKnownName(dc.FileName) {
		return fmt.Sprintf("%shere is the **meeting summary** from **%s** you requested:\n\n", mention, dc.FileName)
	}
	return mention + "here is the **meeting summary** you requested:\n\n"
}

func hasKnownName(fileName string) bool {
	return fileName != "" && !strings.EqualFold(fileName, "unknown file")
}

func (d *Deliverer) chunkEmbed(chunk Chunk, dc DeliveryContext) *chat.Embed {
	e := &chat.Embed{
		AuthorName:    d.BotName,
		Color:         colorChunk,
		Description:   truncate(chunk.Content, maxMessageLength),
		FooterIconURL: dc.UserAvatarURL,
		Timestamp:     d.now(),
	}
	if d.Identity != nil {
		if name, avatar := d.Identity.BotIdentity(); name != "" {
			e.AuthorName = name
			e.AuthorIconURL = avatar
		}
	}
	if chunk.IsLast {
		e.Color = colorFinal
	}

	if chunk.Total > 1 {
		e.Title = fmt.Sprintf("Summary (part %d/%d)", chunk.Index, chunk.Total)
	} else {
		e.Title = "Meeting summary"
	}

	e.FooterText = "File: " + dc.FileName
	if chunk.Total > 1 {
		e.FooterText += fmt.Sprintf(" • part %d/%d", chunk.Index, chunk.Total)
	}
	if chunk.IsLast {
		e.FooterText = "Processing complete • File: " + dc.FileName
	}
	return e
}

// SendError delivers a workflow failure message to the channel. The flow
// controller uses it for trigger errors; Deliver uses it internally.
func (d *Deliverer) SendError(ctx context.Context, dc DeliveryContext, message string) {
	d.sendError(ctx, dc, message)
}

func (d *Deliverer) sendError(ctx context.Context, dc DeliveryContext, message string) {
	description := strings.TrimSpace(message)
	if description == "" {
		description = "an unknown error occurred"
	}

	lower := strings.ToLower(description)
	if strings.Contains(lower, "timeout") || strings.Contains(lower, "524") {
		description += "\n\n**Possible causes:**\n" +
			"• the file is too large\n" +
			"• the workflow engine is busy with another job\n" +
			"• a network, proxy, or gateway timeout"
	}

	fileName := dc.FileName
	if fileName == "" {
		fileName = "unknown file"
	}

	msg := chat.Message{Embed: &chat.Embed{
		Title:         "Failed to process file: " + fileName,
		Description:   truncate(description, maxMessageLength),
		Color:         colorError,
		FooterText:    "Try again later, or pick a smaller file",
		FooterIconURL: dc.UserAvatarURL,
		Timestamp:     d.now(),
	}}
	if err := d.messenger.Send(ctx, dc.ChannelID, msg); err != nil {
		logrus.WithError(err).Warnf("failed to send error message for file %s", fileName)
	}
}

// truncate hard-caps s at limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := s[:limit]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
