package provider

import (
	"context"
	"net/http"
	"strings"
)

// Dispatcher routes a request to the backend named by the model
// selector. The hosted backend is shared and server-keyed; the
// commercial backends are built per request around the caller's key.
type Dispatcher struct {
	hosted *HostedClient
}

func NewDispatcher(hosted *HostedClient) *Dispatcher {
	return &Dispatcher{hosted: hosted}
}

func (d *Dispatcher) Generate(ctx context.Context, selector string, apiKeys map[string]string, req Request) (*Response, error) {
	key := func(name string) string { return strings.TrimSpace(apiKeys[name]) }

	switch selector {
	case ModelHosted:
		return d.hosted.Generate(ctx, req)
	case ModelOpenAI:
		return NewOpenAIClient(key("openai")).Generate(ctx, req)
	case ModelGemini:
		return NewGeminiClient(key("gemini")).Generate(ctx, req)
	case ModelClaude:
		return NewClaudeClient(key("claude")).Generate(ctx, req)
	default:
		return nil, &Error{Status: http.StatusBadRequest, Message: "AI model not supported"}
	}
}
