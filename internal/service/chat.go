// Package service implements the application flows on top of the store
// and provider layers.
package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rexmccreary15-dotcom/trexai/internal/model"
	"github.com/rexmccreary15-dotcom/trexai/internal/policy"
	"github.com/rexmccreary15-dotcom/trexai/internal/provider"
	"github.com/rexmccreary15-dotcom/trexai/internal/store"
	"github.com/rexmccreary15-dotcom/trexai/pkg/logger"
	"github.com/rexmccreary15-dotcom/trexai/pkg/metrics"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 2000
)

// Generator produces a completion for a model selector.
type Generator interface {
	Generate(ctx context.Context, selector string, apiKeys map[string]string, req provider.Request) (*provider.Response, error)
}

// ChatService runs the message pipeline: identity resolution, tracking,
// rate limiting, moderation, provider dispatch and persistence.
type ChatService struct {
	store     *store.Store
	gen       Generator
	analytics *AnalyticsService
	limiter   *policy.RateLimiter
	log       *logger.Logger
}

func NewChatService(st *store.Store, gen Generator, analytics *AnalyticsService, limiter *policy.RateLimiter, log *logger.Logger) *ChatService {
	return &ChatService{store: st, gen: gen, analytics: analytics, limiter: limiter, log: log}
}

// Send handles one chat turn. Tracking runs before the rate-limit check
// so the current message is part of the window it is judged against.
// Analytics, policy reads and persistence all fail open: only policy
// rejections and provider failures surface to the caller.
func (s *ChatService) Send(ctx context.Context, identity model.Identity, req model.ChatRequest) (*model.ChatResponse, error) {
	now := time.Now().UTC()
	temperature := defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	var userID string
	if !req.Incognito && identity.Present() {
		u, err := s.store.GetOrCreateUser(ctx, identity, now)
		if err != nil {
			s.log.Error("resolve user", zap.Error(err))
		} else {
			userID = u.ID
			if name := strings.TrimSpace(req.DisplayName); name != "" {
				if err := s.store.SetDisplayName(ctx, userID, name); err != nil {
					s.log.Warn("save display name", zap.Error(err))
				}
			}
			s.analytics.Track(ctx, userID, req.Model, map[string]any{
				"has_image":   req.ImageData != "",
				"coding_mode": req.CodingMode,
			})
			if err := s.store.IncrementMessageCount(ctx, userID); err != nil {
				s.log.Warn("increment message count", zap.Error(err))
			}
			if rejected := s.checkRateLimit(ctx, userID, now); rejected != nil {
				metrics.ChatMessagesTotal.WithLabelValues(req.Model, "rate_limited").Inc()
				return nil, rejected
			}
		}
	}

	if rejected := s.checkModeration(ctx, req.Messages); rejected != nil {
		metrics.ChatMessagesTotal.WithLabelValues(req.Model, "blocked").Inc()
		return nil, rejected
	}

	preq := provider.Request{
		Messages:    toProviderMessages(req.Messages),
		Temperature: temperature,
		MaxTokens:   maxTokens,
		CodingMode:  req.CodingMode,
		Incognito:   req.Incognito,
	}
	if req.ImageData != "" {
		mime := req.ImageMimeType
		if mime == "" {
			mime = "image/png"
		}
		preq.Image = &provider.Image{Data: req.ImageData, MimeType: mime}
	}

	start := time.Now()
	resp, err := s.gen.Generate(ctx, req.Model, req.APIKeys, preq)
	metrics.RecordProviderCall(req.Model, callStatus(err), time.Since(start).Seconds())
	if err != nil {
		metrics.ChatMessagesTotal.WithLabelValues(req.Model, "error").Inc()
		var perr *provider.Error
		if errors.As(err, &perr) {
			return nil, statusError(perr.Status, perr.Message)
		}
		return nil, err
	}
	metrics.ChatMessagesTotal.WithLabelValues(req.Model, "ok").Inc()

	s.saveAfterResponse(ctx, identity, req, resp.Text, now)

	return &model.ChatResponse{Message: resp.Text}, nil
}

func (s *ChatService) checkRateLimit(ctx context.Context, userID string, now time.Time) error {
	settings, err := s.store.RateLimitSettings(ctx)
	if err != nil {
		s.log.Warn("load rate limit settings", zap.Error(err))
		return nil
	}
	res, err := s.limiter.Check(ctx, settings, userID, now)
	if err != nil {
		s.log.Warn("rate limit check", zap.Error(err))
		return nil
	}
	if res.Allowed {
		return nil
	}
	metrics.RateLimitRejectionsTotal.WithLabelValues(res.Window).Inc()
	if res.Window == policy.WindowMinute {
		return statusError(http.StatusTooManyRequests, "Rate limit exceeded: too many messages per minute")
	}
	return statusError(http.StatusTooManyRequests, "Daily usage cap reached")
}

func (s *ChatService) checkModeration(ctx context.Context, msgs []model.Message) error {
	settings, err := s.store.ModerationSettings(ctx)
	if err != nil {
		s.log.Warn("load moderation settings", zap.Error(err))
		return nil
	}
	mod := policy.NewModeration(settings)
	if n := len(msgs); n > 0 && msgs[n-1].Role == model.RoleUser {
		if _, blocked := mod.Blocked(msgs[n-1].Content); blocked {
			metrics.ModerationBlocksTotal.Inc()
			return statusError(http.StatusBadRequest, "Your message contains content that violates our guidelines.")
		}
	}
	return nil
}

// saveAfterResponse persists the full conversation once a response is
// in hand. Incognito chats are saved too, flagged, so the admin console
// keeps complete history. Failures are logged, never surfaced.
func (s *ChatService) saveAfterResponse(ctx context.Context, identity model.Identity, req model.ChatRequest, response string, now time.Time) {
	if req.ChatID == "" || !identity.Present() {
		return
	}
	u, err := s.store.GetOrCreateUser(ctx, identity, now)
	if err != nil {
		s.log.Error("resolve user for chat save", zap.Error(err))
		metrics.ChatsSavedTotal.WithLabelValues("error").Inc()
		return
	}

	full := make([]model.Message, 0, len(req.Messages)+1)
	for _, m := range req.Messages {
		full = append(full, model.Message{Role: m.Role, Content: m.Content})
	}
	full = append(full, model.Message{Role: model.RoleAssistant, Content: response})

	chat := model.Chat{
		ID:           req.ChatID,
		UserID:       u.ID,
		Title:        deriveTitle(full),
		Summary:      deriveSummary(full),
		Model:        req.Model,
		MessageCount: len(full),
		IsIncognito:  req.Incognito,
	}
	if err := s.store.SaveChat(ctx, chat, full, now); err != nil {
		s.log.Error("save chat", zap.String("chat_id", req.ChatID), zap.Error(err))
		metrics.ChatsSavedTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.ChatsSavedTotal.WithLabelValues("ok").Inc()
}

// deriveTitle is the first user message clipped to 50 characters.
func deriveTitle(msgs []model.Message) string {
	for _, m := range msgs {
		if m.Role != model.RoleUser || m.Content == "" {
			continue
		}
		if len(m.Content) > 50 {
			return m.Content[:50] + "..."
		}
		return m.Content
	}
	return "New Chat"
}

// deriveSummary joins the first three user messages, capped at 100
// characters.
func deriveSummary(msgs []model.Message) string {
	var parts []string
	for _, m := range msgs {
		if m.Role != model.RoleUser {
			continue
		}
		parts = append(parts, m.Content)
		if len(parts) == 3 {
			break
		}
	}
	if len(parts) == 0 {
		return "No summary available"
	}
	summary := strings.Join(parts, " | ")
	if len(summary) > 100 {
		return summary[:100] + "..."
	}
	return summary
}

func toProviderMessages(msgs []model.Message) []provider.Message {
	out := make([]provider.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, provider.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func callStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
