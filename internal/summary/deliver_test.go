package summary

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/meetsum/internal/chat"
)

// fakeMessenger records every sent message with its send time.
type fakeMessenger struct {
	mu          sync.Mutex
	sent        []chat.Message
	sentAt      []time.Time
	sendErr     error
	mentionErr  error
	mentionedID string
}

func (f *fakeMessenger) Send(ctx context.Context, channelID string, msg chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	f.sentAt = append(f.sentAt, time.Now())
	return f.sendErr
}

func (f *fakeMessenger) UserMention(ctx context.Context, userID string) (string, error) {
	f.mentionedID = userID
	if f.mentionErr != nil {
		return "", f.mentionErr
	}
	return "<@" + userID + ">", nil
}

func newTestDeliverer(m *fakeMessenger) *Deliverer {
	d := NewDeliverer(m)
	d.ChunkDelay = 5 * time.Millisecond
	return d
}

func dctx() DeliveryContext {
	return DeliveryContext{ChannelID: "chan-1", FileName: "standup.m4a", UserID: "user-1"}
}

func threeChunks() []byte {
	return []byte(`{"summary":{"chunks":[
		{"index":1,"total":3,"isFirst":true,"content":"first part"},
		{"index":2,"total":3,"content":"second part"},
		{"index":3,"total":3,"isLast":true,"content":"third part"}
	]}}`)
}

type fakeIdentity struct {
	name   string
	avatar string
}

func (f fakeIdentity) BotIdentity() (string, string) { return f.name, f.avatar }

func TestDeliver_EmbedIdentityAndAvatars(t *testing.T) {
	m := &fakeMessenger{}
	d := newTestDeliverer(m)
	d.Identity = fakeIdentity{name: "meetsum", avatar: "https://cdn.example/bot.png"}

	dc := dctx()
	dc.UserAvatarURL = "https://cdn.example/requester.png"
	d.Deliver(context.Background(), threeChunks(), dc)

	if len(m.sent) != 3 {
		t.Fatalf("sent %d messages, want 3", len(m.sent))
	}
	for i, msg := range m.sent {
		if msg.Embed.AuthorName != "meetsum" {
			t.Errorf("author[%d] = %q, want the session identity", i, msg.Embed.AuthorName)
		}
		if msg.Embed.AuthorIconURL != "https://cdn.example/bot.png" {
			t.Errorf("author icon[%d] = %q", i, msg.Embed.AuthorIconURL)
		}
		if msg.Embed.FooterIconURL != "https://cdn.example/requester.png" {
			t.Errorf("footer icon[%d] = %q, want the requester avatar", i, msg.Embed.FooterIconURL)
		}
	}

	// An identity that has not finished its ready handshake reports
	// empty values; the configured name stays.
	m2 := &fakeMessenger{}
	d2 := newTestDeliverer(m2)
	d2.Identity = fakeIdentity{}
	d2.Deliver(context.Background(), threeChunks(), dctx())
	if m2.sent[0].Embed.AuthorName != d2.BotName {
		t.Errorf("author = %q, want fallback %q", m2.sent[0].Embed.AuthorName, d2.BotName)
	}
}

func TestSendError_CarriesRequesterAvatar(t *testing.T) {
	m := &fakeMessenger{}
	d := newTestDeliverer(m)

	dc := dctx()
	dc.UserAvatarURL = "https://cdn.example/requester.png"
	d.SendError(context.Background(), dc, "engine unreachable")

	if len(m.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(m.sent))
	}
	if m.sent[0].Embed.FooterIconURL != "https://cdn.example/requester.png" {
		t.Errorf("footer icon = %q, want the requester avatar", m.sent[0].Embed.FooterIconURL)
	}
}

func TestDeliver_ThreeChunks(t *testing.T) {
	m := &fakeMessenger{}
	d := newTestDeliverer(m)

	d.Deliver(context.Background(), threeChunks(), dctx())

	if len(m.sent) != 3 {
		t.Fatalf("sent %d messages, want 3", len(m.sent))
	}

	// First message greets the requesting user by mention.
	if !strings.Contains(m.sent[0].Content, "<@user-1>") {
		t.Errorf("first message content = %q, want mention", m.sent[0].Content)
	}
	if !strings.Contains(m.sent[0].Content, "standup.m4a") {
		t.Errorf("first message content = %q, want file name", m.sent[0].Content)
	}
	if m.sent[1].Content != "" || m.sent[2].Content != "" {
		t.Error("only the first chunk carries the greeting line")
	}

	// Titles show position/total; the last chunk gets the final color.
	if m.sent[0].Embed.Title != "Summary (part 1/3)" {
		t.Errorf("title[0] = %q", m.sent[0].Embed.Title)
	}
	if m.sent[0].Embed.Color != colorChunk || m.sent[1].Embed.Color != colorChunk {
		t.Error("non-final chunks must use the regular color")
	}
	if m.sent[2].Embed.Color != colorFinal {
		t.Errorf("final chunk color = %#x, want %#x", m.sent[2].Embed.Color, colorFinal)
	}
	if !strings.HasPrefix(m.sent[2].Embed.FooterText, "Processing complete") {
		t.Errorf("final footer = %q", m.sent[2].Embed.FooterText)
	}
}

func TestDeliver_OrderMatchesArrayOrder(t *testing.T) {
	// Chunks deliberately carry misleading index fields; array order wins.
	body := []byte(`{"summary":{"chunks":[
		{"index":3,"total":3,"content":"A"},
		{"index":1,"total":3,"content":"B"},
		{"index":2,"total":3,"content":"C"}
	]}}`)
	m := &fakeMessenger{}
	d := newTestDeliverer(m)

	d.Deliver(context.Background(), body, dctx())

	want := []string{"A", "B", "C"}
	if len(m.sent) != 3 {
		t.Fatalf("sent %d messages, want 3", len(m.sent))
	}
	for i, w := range want {
		if m.sent[i].Embed.Description != w {
			t.Errorf("message %d = %q, want %q", i, m.sent[i].Embed.Description, w)
		}
	}
}

func TestDeliver_SpacingBetweenSends(t *testing.T) {
	m := &fakeMessenger{}
	d := newTestDeliverer(m)
	d.ChunkDelay = 50 * time.Millisecond

	d.Deliver(context.Background(), threeChunks(), dctx())

	if len(m.sentAt) != 3 {
		t.Fatalf("sent %d messages, want 3", len(m.sentAt))
	}
	for i := 1; i < len(m.sentAt); i++ {
		gap := m.sentAt[i].Sub(m.sentAt[i-1])
		if gap < 45*time.Millisecond {
			t.Errorf("gap between sends %d and %d = %v, want >= ~ChunkDelay", i-1, i, gap)
		}
	}
}

func TestDeliver_DefaultDelayIsOneSecond(t *testing.T) {
	d := NewDeliverer(&fakeMessenger{})
	if d.ChunkDelay != time.Second {
		t.Errorf("default ChunkDelay = %v, want 1s", d.ChunkDelay)
	}
}

func TestDeliver_SkipsInvalidChunks(t *testing.T) {
	body := []byte(`{"summary":{"chunks":[
		{"index":1,"total":3,"isFirst":true,"content":"valid"},
		{"index":2,"total":3,"content":"   "},
		{"index":3,"total":3,"isLast":true,"content":"also valid"}
	]}}`)
	m := &fakeMessenger{}
	d := newTestDeliverer(m)

	d.Deliver(context.Background(), body, dctx())

	if len(m.sent) != 2 {
		t.Fatalf("sent %d messages, want 2 (blank chunk skipped)", len(m.sent))
	}
	if m.sent[1].Embed.Description != "also valid" {
		t.Errorf("second delivered chunk = %q", m.sent[1].Embed.Description)
	}
}

func TestDeliver_WorkflowReportedError(t *testing.T) {
	m := &fakeMessenger{}
	d := newTestDeliverer(m)

	d.Deliver(context.Background(), []byte(`{"success":false,"error":"boom"}`), dctx())

	if len(m.sent) != 1 {
		t.Fatalf("sent %d messages, want exactly 1 error message", len(m.sent))
	}
	e := m.sent[0].Embed
	if e == nil || e.Color != colorError {
		t.Fatalf("message is not an error embed: %+v", m.sent[0])
	}
	if !strings.Contains(e.Description, "boom") {
		t.Errorf("error description = %q, want it to contain the engine message", e.Description)
	}
}

func TestDeliver_EmptyArray(t *testing.T) {
	m := &fakeMessenger{}
	d := newTestDeliverer(m)

	d.Deliver(context.Background(), []byte(`[]`), dctx())

	if len(m.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(m.sent))
	}
	if !strings.Contains(m.sent[0].Embed.Description, "empty array") {
		t.Errorf("description = %q, want empty-array message", m.sent[0].Embed.Description)
	}
}

func TestDeliver_MentionLookupFailureIsNotFatal(t *testing.T) {
	m := &fakeMessenger{mentionErr: fmt.Errorf("user gone")}
	d := newTestDeliverer(m)

	d.Deliver(context.Background(), threeChunks(), dctx())

	if len(m.sent) != 3 {
		t.Fatalf("sent %d messages, want 3", len(m.sent))
	}
	if strings.Contains(m.sent[0].Content, "<@") {
		t.Errorf("greeting contains a mention despite failed lookup: %q", m.sent[0].Content)
	}
	if !strings.Contains(m.sent[0].Content, "meeting summary") {
		t.Errorf("greeting missing: %q", m.sent[0].Content)
	}
}

func TestDeliver_SendFailureDoesNotAbort(t *testing.T) {
	m := &fakeMessenger{sendErr: fmt.Errorf("channel deleted")}
	d := newTestDeliverer(m)

	d.Deliver(context.Background(), threeChunks(), dctx())

	if len(m.sent) != 3 {
		t.Fatalf("attempted %d sends, want 3 despite failures", len(m.sent))
	}
}

func TestDeliver_UserIDOverrideFromResult(t *testing.T) {
	body := []byte(`{"userId":"other-user","summary":{"chunks":[{"isFirst":true,"content":"hi"}]}}`)
	m := &fakeMessenger{}
	d := newTestDeliverer(m)

	d.Deliver(context.Background(), body, dctx())

	if m.mentionedID != "other-user" {
		t.Errorf("mentioned user = %q, want the result's userId override", m.mentionedID)
	}
}

func TestDeliver_TruncatesLongContent(t *testing.T) {
	long := strings.Repeat("x", maxMessageLength+500)
	body := []byte(fmt.Sprintf(`{"summary":{"chunks":[{"content":"%s"}]}}`, long))
	m := &fakeMessenger{}
	d := newTestDeliverer(m)

	d.Deliver(context.Background(), body, dctx())

	if len(m.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(m.sent))
	}
	if got := len(m.sent[0].Embed.Description); got != maxMessageLength {
		t.Errorf("description length = %d, want %d", got, maxMessageLength)
	}
}

func TestSendError_TimeoutHints(t *testing.T) {
	m := &fakeMessenger{}
	d := newTestDeliverer(m)

	d.SendError(context.Background(), dctx(), "request to the workflow engine timed out")

	if len(m.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(m.sent))
	}
	if !strings.Contains(m.sent[0].Embed.Description, "Possible causes") {
		t.Errorf("timeout error lacks advisory hints: %q", m.sent[0].Embed.Description)
	}
}
