package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rexmccreary15-dotcom/trexai/internal/model"
	"github.com/rexmccreary15-dotcom/trexai/pkg/logger"
)

func TestHeartbeatCreatesUser(t *testing.T) {
	st := newTestStore(t)
	svc := NewUserService(st, "maker15", "incog25", logger.NewNop())
	ctx := context.Background()

	if err := svc.Heartbeat(ctx, model.Identity{SessionID: "sess-hb"}); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	u, err := st.GetUserBySessionID(ctx, "sess-hb")
	if err != nil {
		t.Fatalf("expected user row: %v", err)
	}
	if u.LastHeartbeat == nil {
		t.Fatalf("heartbeat timestamp not set")
	}

	err = svc.Heartbeat(ctx, model.Identity{})
	serr, ok := err.(*StatusError)
	if !ok || serr.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 without identity, got %v", err)
	}
}

func TestBanStatus(t *testing.T) {
	st := newTestStore(t)
	svc := NewUserService(st, "maker15", "incog25", logger.NewNop())
	ctx := context.Background()

	// Unknown identity is not banned and no row is created.
	if status := svc.BanStatus(ctx, model.Identity{SessionID: "sess-nobody"}); status.Banned {
		t.Fatalf("unknown identity reported banned")
	}

	u, err := st.GetOrCreateUser(ctx, model.Identity{SessionID: "sess-banned"}, time.Now().UTC())
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	banned := true
	reason := "spamming"
	if _, err := st.UpdateUser(ctx, u.ID, model.UpdateUserRequest{IsBanned: &banned, BanReason: &reason}); err != nil {
		t.Fatalf("ban user: %v", err)
	}

	status := svc.BanStatus(ctx, model.Identity{SessionID: "sess-banned"})
	if !status.Banned || status.Reason != "spamming" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestUnlockFlow(t *testing.T) {
	st := newTestStore(t)
	svc := NewUserService(st, "maker15", "incog25", logger.NewNop())
	ctx := context.Background()
	identity := model.Identity{SessionID: "sess-u", AuthUserID: "auth-u", Email: "u@example.com"}

	_, err := svc.Unlock(ctx, identity, FeatureCreator, "wrong")
	serr, ok := err.(*StatusError)
	if !ok || serr.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong code, got %v", err)
	}

	msg, err := svc.Unlock(ctx, identity, FeatureCreator, "  MAKER15 ")
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if msg != "Creator Controls unlocked!" {
		t.Fatalf("unexpected message %q", msg)
	}

	unlocked, err := svc.UnlockStatus(ctx, "auth-u", FeatureCreator)
	if err != nil || !unlocked {
		t.Fatalf("expected unlocked, got %v err=%v", unlocked, err)
	}

	msg, err = svc.Unlock(ctx, identity, FeatureCreator, "maker15")
	if err != nil {
		t.Fatalf("repeat unlock: %v", err)
	}
	if msg != "Creator Controls already unlocked!" {
		t.Fatalf("unexpected repeat message %q", msg)
	}

	if _, err := svc.Unlock(ctx, identity, "backstage", "maker15"); err == nil {
		t.Fatalf("expected error for unknown feature")
	}
}

func TestProfileAndCommands(t *testing.T) {
	st := newTestStore(t)
	svc := NewUserService(st, "maker15", "incog25", logger.NewNop())
	ctx := context.Background()
	identity := model.Identity{SessionID: "sess-p"}

	p, err := svc.Profile(ctx, identity)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.DefaultModel != "myai" {
		t.Fatalf("unexpected default model %q", p.DefaultModel)
	}

	name := "Rex"
	keys := map[string]string{"openai": "sk-test"}
	modelName := "openai"
	p, err = svc.UpdateProfile(ctx, identity, model.UpdateProfileRequest{
		DisplayName:  &name,
		APIKeys:      &keys,
		DefaultModel: &modelName,
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if p.DisplayName == nil || *p.DisplayName != "Rex" || p.DefaultModel != "openai" || p.APIKeys["openai"] != "sk-test" {
		t.Fatalf("profile not updated: %+v", p)
	}

	cmds := []model.Command{{Name: "explain", Prompt: "Explain like I'm five:"}}
	if err := svc.SetCommands(ctx, identity, cmds); err != nil {
		t.Fatalf("set commands: %v", err)
	}
	got, err := svc.Commands(ctx, identity)
	if err != nil {
		t.Fatalf("commands: %v", err)
	}
	if len(got) != 1 || got[0].Name != "explain" {
		t.Fatalf("unexpected commands %+v", got)
	}
}

func TestListUsersReconcilesCounts(t *testing.T) {
	st := newTestStore(t)
	svc := NewUserService(st, "maker15", "incog25", logger.NewNop())
	ctx := context.Background()
	now := time.Now().UTC()

	u, err := st.GetOrCreateUser(ctx, model.Identity{SessionID: "sess-l"}, now)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	// Stored count drifts to 5 while only 2 events exist.
	if err := st.SetMessageCount(ctx, u.ID, 5); err != nil {
		t.Fatalf("set count: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := st.InsertEvent(ctx, model.AnalyticsEvent{UserID: u.ID, EventType: model.EventMessageSent, Model: "myai"}); err != nil {
			t.Fatalf("insert event: %v", err)
		}
	}

	page, err := svc.ListUsers(ctx, 1, 50)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if page.Total != 1 || len(page.Users) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Users[0].MessageCount != 2 {
		t.Fatalf("expected reconciled count 2, got %d", page.Users[0].MessageCount)
	}

	fresh, err := st.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if fresh.MessageCount != 2 {
		t.Fatalf("reconciliation not persisted, got %d", fresh.MessageCount)
	}
}

func TestExport(t *testing.T) {
	st := newTestStore(t)
	svc := NewUserService(st, "maker15", "incog25", logger.NewNop())
	ctx := context.Background()
	now := time.Now().UTC()

	u, err := st.GetOrCreateUser(ctx, model.Identity{SessionID: "sess-e"}, now)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	chat := model.Chat{ID: "66666666-6666-7666-8666-666666666666", UserID: u.ID, Title: "t", Model: "myai"}
	msgs := []model.Message{
		{Role: model.RoleUser, Content: "q"},
		{Role: model.RoleAssistant, Content: "a"},
	}
	if err := st.SaveChat(ctx, chat, msgs, now); err != nil {
		t.Fatalf("save chat: %v", err)
	}

	out, err := svc.Export(ctx, "chats", now)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if out["count"] != 1 {
		t.Fatalf("expected 1 chat, got %v", out["count"])
	}
	chats, ok := out["data"].([]exportedChat)
	if !ok || len(chats) != 1 || len(chats[0].Messages) != 2 {
		t.Fatalf("unexpected export payload %+v", out["data"])
	}

	if _, err := svc.Export(ctx, "bogus", now); err == nil {
		t.Fatalf("expected error for unknown export type")
	}
}
