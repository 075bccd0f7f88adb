package service

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/rexmccreary15-dotcom/trexai/internal/model"
	"github.com/rexmccreary15-dotcom/trexai/internal/policy"
	"github.com/rexmccreary15-dotcom/trexai/internal/provider"
	"github.com/rexmccreary15-dotcom/trexai/internal/store"
	"github.com/rexmccreary15-dotcom/trexai/pkg/logger"
)

type stubGenerator struct {
	resp     *provider.Response
	err      error
	calls    int
	lastReq  provider.Request
	selector string
}

func (g *stubGenerator) Generate(_ context.Context, selector string, _ map[string]string, req provider.Request) (*provider.Response, error) {
	g.calls++
	g.selector = selector
	g.lastReq = req
	if g.err != nil {
		return nil, g.err
	}
	return g.resp, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(context.Background(), "sqlite", dsn, true, "")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newChatService(st *store.Store, gen Generator) *ChatService {
	log := logger.NewNop()
	analytics := NewAnalyticsService(st, nil, time.UTC, 0, log)
	limiter := policy.NewRateLimiter(st, time.UTC)
	return NewChatService(st, gen, analytics, limiter, log)
}

func TestSendHappyPath(t *testing.T) {
	st := newTestStore(t)
	gen := &stubGenerator{resp: &provider.Response{Text: "hello back", Model: "m"}}
	svc := newChatService(st, gen)
	ctx := context.Background()

	resp, err := svc.Send(ctx, model.Identity{SessionID: "sess-1"}, model.ChatRequest{
		Messages:    []model.Message{{Role: model.RoleUser, Content: "hello"}},
		Model:       provider.ModelHosted,
		ChatID:      "44444444-4444-7444-8444-444444444444",
		SessionID:   "sess-1",
		DisplayName: "Rex",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.Message != "hello back" {
		t.Fatalf("unexpected response %q", resp.Message)
	}
	if gen.selector != provider.ModelHosted {
		t.Fatalf("dispatched to %q", gen.selector)
	}

	u, err := st.GetUserBySessionID(ctx, "sess-1")
	if err != nil {
		t.Fatalf("expected user row: %v", err)
	}
	if u.DisplayName == nil || *u.DisplayName != "Rex" {
		t.Fatalf("display name not saved: %+v", u.DisplayName)
	}
	if u.MessageCount != 1 {
		t.Fatalf("expected message count 1, got %d", u.MessageCount)
	}

	n, err := st.CountUserEventsSince(ctx, u.ID, model.EventMessageSent, time.Time{})
	if err != nil || n != 1 {
		t.Fatalf("expected exactly 1 event, got %d err=%v", n, err)
	}

	chat, err := st.GetChat(ctx, "44444444-4444-7444-8444-444444444444")
	if err != nil {
		t.Fatalf("expected persisted chat: %v", err)
	}
	if chat.Title != "hello" {
		t.Fatalf("unexpected title %q", chat.Title)
	}
	if chat.MessageCount != 2 {
		t.Fatalf("expected 2 saved messages, got %d", chat.MessageCount)
	}
}

func TestSendIncognitoSkipsTracking(t *testing.T) {
	st := newTestStore(t)
	gen := &stubGenerator{resp: &provider.Response{Text: "ok"}}
	svc := newChatService(st, gen)
	ctx := context.Background()

	_, err := svc.Send(ctx, model.Identity{SessionID: "sess-inc"}, model.ChatRequest{
		Messages:  []model.Message{{Role: model.RoleUser, Content: "private question"}},
		Model:     provider.ModelHosted,
		Incognito: true,
		ChatID:    "55555555-5555-7555-8555-555555555555",
		SessionID: "sess-inc",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	// The chat is still saved, flagged, so the admin keeps full history,
	// but no event is tracked.
	chat, err := st.GetChat(ctx, "55555555-5555-7555-8555-555555555555")
	if err != nil {
		t.Fatalf("expected incognito chat persisted: %v", err)
	}
	if !chat.IsIncognito {
		t.Fatalf("chat not flagged incognito")
	}
	u, err := st.GetUserBySessionID(ctx, "sess-inc")
	if err != nil {
		t.Fatalf("save resolves the user: %v", err)
	}
	n, err := st.CountUserEventsSince(ctx, u.ID, model.EventMessageSent, time.Time{})
	if err != nil || n != 0 {
		t.Fatalf("expected no events in incognito, got %d err=%v", n, err)
	}
	if u.MessageCount != 0 {
		t.Fatalf("message count must not move in incognito, got %d", u.MessageCount)
	}
}

func TestSendModerationToggle(t *testing.T) {
	st := newTestStore(t)
	gen := &stubGenerator{resp: &provider.Response{Text: "ok"}}
	svc := newChatService(st, gen)
	ctx := context.Background()
	now := time.Now().UTC()

	doc, _ := json.Marshal(model.ModerationSettings{Enabled: true, BlockedWords: "forbidden"})
	if err := st.UpsertSetting(ctx, model.SettingModeration, doc, now); err != nil {
		t.Fatalf("seed moderation: %v", err)
	}

	req := model.ChatRequest{
		Messages:  []model.Message{{Role: model.RoleUser, Content: "this is FORBIDDEN content"}},
		Model:     provider.ModelHosted,
		SessionID: "sess-mod",
	}
	_, err := svc.Send(ctx, model.Identity{SessionID: "sess-mod"}, req)
	serr, ok := err.(*StatusError)
	if !ok || serr.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 from moderation, got %v", err)
	}
	if gen.calls != 0 {
		t.Fatalf("blocked message must not reach a provider")
	}

	// Disabling moderation lets the same word through.
	doc, _ = json.Marshal(model.ModerationSettings{Enabled: false, BlockedWords: "forbidden"})
	if err := st.UpsertSetting(ctx, model.SettingModeration, doc, now); err != nil {
		t.Fatalf("update moderation: %v", err)
	}
	if _, err := svc.Send(ctx, model.Identity{SessionID: "sess-mod"}, req); err != nil {
		t.Fatalf("expected pass after disable, got %v", err)
	}
	if gen.calls != 1 {
		t.Fatalf("expected exactly one provider call, got %d", gen.calls)
	}
}

func TestSendRateLimit(t *testing.T) {
	st := newTestStore(t)
	gen := &stubGenerator{resp: &provider.Response{Text: "ok"}}
	svc := newChatService(st, gen)
	ctx := context.Background()
	now := time.Now().UTC()

	doc, _ := json.Marshal(model.RateLimitSettings{Enabled: true, MessagesPerMinute: 1, DailyCap: 100})
	if err := st.UpsertSetting(ctx, model.SettingRateLimit, doc, now); err != nil {
		t.Fatalf("seed rate limit: %v", err)
	}

	req := model.ChatRequest{
		Messages:  []model.Message{{Role: model.RoleUser, Content: "hi"}},
		Model:     provider.ModelHosted,
		SessionID: "sess-rl",
	}
	if _, err := svc.Send(ctx, model.Identity{SessionID: "sess-rl"}, req); err != nil {
		t.Fatalf("first message should pass: %v", err)
	}
	_, err := svc.Send(ctx, model.Identity{SessionID: "sess-rl"}, req)
	serr, ok := err.(*StatusError)
	if !ok || serr.Status != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on second message, got %v", err)
	}
}

func TestSendProviderErrorPropagates(t *testing.T) {
	st := newTestStore(t)
	gen := &stubGenerator{err: &provider.Error{Status: http.StatusUnauthorized, Message: "bad key"}}
	svc := newChatService(st, gen)

	_, err := svc.Send(context.Background(), model.Identity{SessionID: "sess-err"}, model.ChatRequest{
		Messages:  []model.Message{{Role: model.RoleUser, Content: "hi"}},
		Model:     provider.ModelOpenAI,
		SessionID: "sess-err",
	})
	serr, ok := err.(*StatusError)
	if !ok || serr.Status != http.StatusUnauthorized || serr.Message != "bad key" {
		t.Fatalf("expected mirrored provider error, got %v", err)
	}
}

func TestDeriveTitleAndSummary(t *testing.T) {
	long := "this question is quite a bit longer than fifty characters in total"
	msgs := []model.Message{
		{Role: model.RoleUser, Content: long},
		{Role: model.RoleAssistant, Content: "answer"},
		{Role: model.RoleUser, Content: "second"},
		{Role: model.RoleUser, Content: "third"},
		{Role: model.RoleUser, Content: "fourth"},
	}
	title := deriveTitle(msgs)
	if title != long[:50]+"..." {
		t.Fatalf("unexpected title %q", title)
	}
	summary := deriveSummary(msgs)
	if len(summary) > 103 {
		t.Fatalf("summary too long: %d", len(summary))
	}

	if deriveTitle(nil) != "New Chat" {
		t.Fatalf("expected default title")
	}
	if deriveSummary(nil) != "No summary available" {
		t.Fatalf("expected default summary")
	}
}
