package slack

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/beartank/internal/telegraph"
)

// --- Mock Slack client ---

type mockSlackClient struct {
	mu        sync.Mutex
	authResp  *slackapi.AuthTestResponse
	authErr   error
	posted    []postedMessage
	postErr   error
	failCount int // return rate limit errors for the first N posts
	calls     int
}

type postedMessage struct {
	channelID string
	options   []slackapi.MsgOption
}

func newMockSlackClient() *mockSlackClient {
	return &mockSlackClient{
		authResp: &slackapi.AuthTestResponse{UserID: "U_BOT_123"},
	}
}

func (m *mockSlackClient) AuthTest() (*slackapi.AuthTestResponse, error) {
	return m.authResp, m.authErr
}

func (m *mockSlackClient) PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failCount {
		return "", "", &slackapi.RateLimitedError{RetryAfter: time.Millisecond}
	}
	if m.postErr != nil {
		return "", "", m.postErr
	}
	m.posted = append(m.posted, postedMessage{channelID: channelID, options: options})
	return channelID, "1234567890.123456", nil
}

func (m *mockSlackClient) postedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posted)
}

func (m *mockSlackClient) lastPosted() postedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.posted[len(m.posted)-1]
}

func newTestAdapter(t *testing.T) (*Adapter, *mockSlackClient) {
	t.Helper()
	client := newMockSlackClient()

	a, err := New(AdapterOpts{
		Client:    client,
		ChannelID: "C_CLASS",
	})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return a, client
}

// --- New / Connect ---

func TestNew_RequiresBotToken(t *testing.T) {
	_, err := New(AdapterOpts{ChannelID: "C1"})
	if err == nil {
		t.Fatal("expected error for missing bot token")
	}
}

func TestNew_WithToken(t *testing.T) {
	a, err := New(AdapterOpts{BotToken: "xoxb-test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == nil {
		t.Fatal("expected non-nil adapter")
	}
}

func TestConnect_Success(t *testing.T) {
	a, _ := newTestAdapter(t)
	if a.BotUserID() != "U_BOT_123" {
		t.Errorf("bot user ID = %q, want U_BOT_123", a.BotUserID())
	}
}

func TestConnect_AuthError(t *testing.T) {
	client := newMockSlackClient()
	client.authErr = fmt.Errorf("invalid_auth")

	a, _ := New(AdapterOpts{Client: client})
	err := a.Connect(context.Background())
	if err == nil {
		t.Fatal("expected auth error")
	}
	if !strings.Contains(err.Error(), "auth test") {
		t.Errorf("error = %q, want auth test error", err.Error())
	}
}

func TestConnect_AlreadyClosed(t *testing.T) {
	a, _ := New(AdapterOpts{Client: newMockSlackClient()})
	a.Close()
	if err := a.Connect(context.Background()); err == nil {
		t.Fatal("expected error connecting a closed adapter")
	}
}

// --- Send ---

func TestSend_DefaultChannel(t *testing.T) {
	a, client := newTestAdapter(t)

	err := a.Send(context.Background(), telegraph.OutboundMessage{Text: "Stage unlocked"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.postedCount() != 1 {
		t.Fatalf("expected 1 posted message, got %d", client.postedCount())
	}
	if got := client.lastPosted().channelID; got != "C_CLASS" {
		t.Errorf("channel = %q, want C_CLASS", got)
	}
}

func TestSend_ExplicitChannel(t *testing.T) {
	a, client := newTestAdapter(t)

	a.Send(context.Background(), telegraph.OutboundMessage{ChannelID: "C_OTHER", Text: "hi"})
	if got := client.lastPosted().channelID; got != "C_OTHER" {
		t.Errorf("channel = %q, want C_OTHER", got)
	}
}

func TestSend_NoChannel(t *testing.T) {
	a, _ := New(AdapterOpts{Client: newMockSlackClient()})
	a.Connect(context.Background())

	err := a.Send(context.Background(), telegraph.OutboundMessage{Text: "no channel"})
	if err == nil {
		t.Fatal("expected error for no channel")
	}
}

func TestSend_NotConnected(t *testing.T) {
	a, _ := New(AdapterOpts{Client: newMockSlackClient(), ChannelID: "C1"})

	err := a.Send(context.Background(), telegraph.OutboundMessage{Text: "hello"})
	if err == nil {
		t.Fatal("expected error for not connected")
	}
}

func TestSend_PostError(t *testing.T) {
	a, client := newTestAdapter(t)
	client.postErr = fmt.Errorf("channel_not_found")

	err := a.Send(context.Background(), telegraph.OutboundMessage{Text: "hello"})
	if err == nil {
		t.Fatal("expected post error")
	}
	if !strings.Contains(err.Error(), "slack: post message") {
		t.Errorf("error = %q, want post message prefix", err.Error())
	}
}

func TestSend_RetriesOnRateLimit(t *testing.T) {
	a, client := newTestAdapter(t)
	client.failCount = 2

	err := a.Send(context.Background(), telegraph.OutboundMessage{Text: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.calls != 3 {
		t.Errorf("expected 3 calls (2 failures + 1 success), got %d", client.calls)
	}
	if client.postedCount() != 1 {
		t.Errorf("posted = %d, want 1", client.postedCount())
	}
}

// --- buildMessageOptions / eventToAttachment ---

func TestBuildMessageOptions_TextOnly(t *testing.T) {
	opts := buildMessageOptions(telegraph.OutboundMessage{Text: "hello"})
	if len(opts) != 1 {
		t.Errorf("expected 1 option, got %d", len(opts))
	}
}

func TestBuildMessageOptions_WithEvents(t *testing.T) {
	opts := buildMessageOptions(telegraph.OutboundMessage{
		Text:   "fallback",
		Events: []telegraph.FormattedEvent{{Title: "Test", Body: "body", Color: "#fff"}},
	})
	// attachments + fallback text
	if len(opts) != 2 {
		t.Errorf("expected 2 options, got %d", len(opts))
	}
}

func TestBuildMessageOptions_EventsWithoutText(t *testing.T) {
	opts := buildMessageOptions(telegraph.OutboundMessage{
		Events: []telegraph.FormattedEvent{{Title: "Test"}},
	})
	if len(opts) != 1 {
		t.Errorf("expected 1 option, got %d", len(opts))
	}
}

func TestEventToAttachment(t *testing.T) {
	evt := telegraph.FormattedEvent{
		Title:    "Bear Bakery earned 25,000 Bear Bucks",
		Body:     "Approved: Customer survey",
		Color:    telegraph.ColorSuccess,
		Severity: "success",
		Fields: []telegraph.Field{
			{Name: "Stage", Value: "Ideation", Short: true},
			{Name: "Status", Value: "complete", Short: true},
		},
	}

	att := eventToAttachment(evt)
	if att.Title != evt.Title {
		t.Errorf("title = %q", att.Title)
	}
	if att.Fallback != evt.Title {
		t.Errorf("fallback = %q, want title", att.Fallback)
	}
	if att.Text != "Approved: Customer survey" {
		t.Errorf("text = %q", att.Text)
	}
	if att.Color != "#36a64f" {
		t.Errorf("color = %q", att.Color)
	}
	if len(att.Fields) != 2 {
		t.Fatalf("fields count = %d, want 2", len(att.Fields))
	}
	if att.Fields[0].Title != "Stage" || !att.Fields[0].Short {
		t.Errorf("field[0] = %+v", att.Fields[0])
	}
}

// --- retryOnRateLimit ---

func TestRetryOnRateLimit_NonRateLimitError(t *testing.T) {
	calls := 0
	err := retryOnRateLimit(context.Background(), func() error {
		calls++
		return fmt.Errorf("some other error")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("should not retry non-rate-limit errors, calls = %d", calls)
	}
}

func TestRetryOnRateLimit_ExhaustsRetries(t *testing.T) {
	calls := 0
	err := retryOnRateLimit(context.Background(), func() error {
		calls++
		return &slackapi.RateLimitedError{RetryAfter: time.Millisecond}
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != maxRetries+1 {
		t.Errorf("expected %d calls, got %d", maxRetries+1, calls)
	}
}

func TestRetryOnRateLimit_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retryOnRateLimit(ctx, func() error {
		calls++
		return &slackapi.RateLimitedError{RetryAfter: time.Second}
	})
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call before context cancel, got %d", calls)
	}
}

func TestAdapter_SatisfiesInterface(t *testing.T) {
	var _ telegraph.Adapter = (*Adapter)(nil)
}
