package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
)

func hostedReply(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": text}},
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Fatalf("encode reply: %v", err)
	}
}

func TestHostedGenerate(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body hostedChatRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotModel = body.Model
		if body.Temperature > 1.3 {
			t.Fatalf("temperature %v escaped the safe range", body.Temperature)
		}
		if body.MaxTokens > 1024 {
			t.Fatalf("max tokens %d escaped the safe range", body.MaxTokens)
		}
		if len(body.Messages) == 0 || body.Messages[0].Role != "system" {
			t.Fatalf("expected a leading system message")
		}
		hostedReply(t, w, "  hello there  ")
	}))
	defer srv.Close()

	c := NewHostedClient("token", srv.URL)
	resp, err := c.Generate(context.Background(), Request{
		Messages:    []Message{{Role: "user", Content: "hi"}},
		Temperature: 2,
		MaxTokens:   4000,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text != "hello there" {
		t.Fatalf("expected trimmed text, got %q", resp.Text)
	}
	if gotModel != hostedModels[0] {
		t.Fatalf("expected first candidate model, got %s", gotModel)
	}
}

func TestHostedCorruptionRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body hostedChatRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if calls == 1 {
			hostedReply(t, w, "bad � output")
			return
		}
		if body.Temperature != 0.2 || body.MaxTokens != 256 {
			t.Fatalf("retry did not use conservative settings: %+v", body)
		}
		hostedReply(t, w, "clean answer")
	}))
	defer srv.Close()

	c := NewHostedClient("token", srv.URL)
	resp, err := c.Generate(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}, Temperature: 1.9, MaxTokens: 3800})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text != "clean answer" {
		t.Fatalf("expected retry result, got %q", resp.Text)
	}
	if calls != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", calls)
	}
}

func TestHostedAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewHostedClient("bad-token", srv.URL)
	_, err := c.Generate(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	perr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %v", err)
	}
	if perr.Status != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", perr.Status)
	}
	if !strings.Contains(perr.Message, "Inference Providers") {
		t.Fatalf("unexpected remediation: %s", perr.Message)
	}
}

func TestHostedFallsThroughCandidates(t *testing.T) {
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body hostedChatRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		models = append(models, body.Model)
		if len(models) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		hostedReply(t, w, "third time lucky")
	}))
	defer srv.Close()

	c := NewHostedClient("token", srv.URL)
	resp, err := c.Generate(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Model != hostedModels[2] {
		t.Fatalf("expected third candidate, got %s", resp.Model)
	}
	if resp.Text != "third time lucky" {
		t.Fatalf("unexpected text %q", resp.Text)
	}
}

func TestHostedRejectsImagesWithoutNetwork(t *testing.T) {
	c := NewHostedClient("token", "http://127.0.0.1:0")
	_, err := c.Generate(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "what is this"}},
		Image:    &Image{Data: "aGk=", MimeType: "image/png"},
	})
	perr, ok := err.(*Error)
	if !ok || perr.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 for image on free tier, got %v", err)
	}
}

func TestHostedMissingServerKey(t *testing.T) {
	c := NewHostedClient("", "http://127.0.0.1:0")
	_, err := c.Generate(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	perr, ok := err.(*Error)
	if !ok || perr.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unconfigured free mode, got %v", err)
	}
}

func TestGeminiCandidateIteration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/models":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"models": []map[string]any{
					{"name": "models/gemini-1.5-flash", "supportedGenerationMethods": []string{"generateContent"}},
					{"name": "models/gemini-1.5-pro", "supportedGenerationMethods": []string{"generateContent"}},
					{"name": "models/embedding-001", "supportedGenerationMethods": []string{"embedContent"}},
				},
			})
		case strings.Contains(r.URL.Path, "gemini-1.5-flash"):
			// Empty candidates: a soft failure, the client moves on.
			_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
		case strings.Contains(r.URL.Path, "gemini-1.5-pro"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"candidates": []map[string]any{
					{"content": map[string]any{"parts": []map[string]any{{"text": "pro answer"}}}},
				},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewGeminiClientWithBaseURL("key", srv.URL)
	resp, err := c.Generate(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}, MaxTokens: 2000})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Model != "gemini-1.5-pro" || resp.Text != "pro answer" {
		t.Fatalf("expected pro answer after flash soft failure, got %+v", resp)
	}
}

func TestGeminiInvalidKeyIsTerminal(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 400, "status": "INVALID_ARGUMENT", "message": "API key not valid. API_KEY_INVALID"},
		})
	}))
	defer srv.Close()

	c := NewGeminiClientWithBaseURL("bogus", srv.URL)
	_, err := c.Generate(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}})
	perr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %v", err)
	}
	if perr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid key, got %d", perr.Status)
	}
	if calls != 1 {
		t.Fatalf("invalid key should stop candidate iteration, made %d calls", calls)
	}
}

func TestMissingUserKeys(t *testing.T) {
	d := NewDispatcher(NewHostedClient("token", "http://127.0.0.1:0"))
	req := Request{Messages: []Message{{Role: "user", Content: "hi"}}}

	for _, selector := range []string{ModelOpenAI, ModelGemini, ModelClaude} {
		_, err := d.Generate(context.Background(), selector, map[string]string{}, req)
		perr, ok := err.(*Error)
		if !ok || perr.Status != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 without a key, got %v", selector, err)
		}
		if !strings.Contains(perr.Message, "key required") {
			t.Fatalf("%s: unexpected remediation %q", selector, perr.Message)
		}
	}
}

func TestDispatchUnknownSelector(t *testing.T) {
	d := NewDispatcher(NewHostedClient("token", "http://127.0.0.1:0"))
	_, err := d.Generate(context.Background(), "grok", nil, Request{})
	perr, ok := err.(*Error)
	if !ok || perr.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown selector, got %v", err)
	}
}

func TestLooksCorrupted(t *testing.T) {
	if looksCorrupted("a normal sentence") {
		t.Fatalf("clean ascii flagged as corrupted")
	}
	if !looksCorrupted("bad � byte") {
		t.Fatalf("replacement char not flagged")
	}
	long := strings.Repeat("ééé abc ", 60)
	if !looksCorrupted(long) {
		t.Fatalf("high non-ascii ratio not flagged")
	}
	short := "café résumé"
	if looksCorrupted(short) {
		t.Fatalf("short accented text flagged")
	}
}

func TestLengthInstructionTiers(t *testing.T) {
	if got := lengthInstruction(300); !strings.Contains(got, "very short") {
		t.Fatalf("unexpected tier for 300: %q", got)
	}
	if got := lengthInstruction(2000); !strings.Contains(got, "moderate") {
		t.Fatalf("unexpected tier for 2000: %q", got)
	}
	if got := lengthInstruction(4000); !strings.Contains(got, "super detailed") {
		t.Fatalf("unexpected tier for 4000: %q", got)
	}
}

func TestStripLengthHints(t *testing.T) {
	in := "What is gravity? Answer in a short, concise way. Be brief and direct."
	if got := stripLengthHints(in); got != "What is gravity?" {
		t.Fatalf("expected hints stripped, got %q", got)
	}
}

func TestOpenAIRequestConstruction(t *testing.T) {
	req := Request{
		Messages: []Message{
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi"},
			{Role: "user", Content: "what is in this picture?"},
		},
		Temperature: 1.5,
		MaxTokens:   800,
		CodingMode:  true,
	}

	out := buildOpenAIRequest(req)
	if out.Model != openai.GPT3Dot5Turbo {
		t.Fatalf("expected text model without image, got %q", out.Model)
	}
	if out.Temperature != 1.5 || out.MaxTokens != 800 {
		t.Fatalf("unexpected sampling params %v/%d", out.Temperature, out.MaxTokens)
	}
	if out.Messages[0].Role != "system" || !strings.Contains(out.Messages[0].Content, "software developer") {
		t.Fatalf("expected coding system prompt first, got %+v", out.Messages[0])
	}
	last := out.Messages[len(out.Messages)-1]
	if !strings.Contains(last.Content, "what is in this picture?") || !strings.Contains(last.Content, "short") {
		t.Fatalf("expected length instruction appended to last user message, got %q", last.Content)
	}

	req.Image = &Image{Data: "aGVsbG8=", MimeType: "image/png"}
	out = buildOpenAIRequest(req)
	if out.Model != openai.GPT4o {
		t.Fatalf("expected vision model with image, got %q", out.Model)
	}
	last = out.Messages[len(out.Messages)-1]
	if last.Content != "" || len(last.MultiContent) != 2 {
		t.Fatalf("expected two-part multi content on last message, got %+v", last)
	}
	if last.MultiContent[0].Type != openai.ChatMessagePartTypeText {
		t.Fatalf("expected text part first, got %+v", last.MultiContent[0])
	}
	img := last.MultiContent[1]
	if img.Type != openai.ChatMessagePartTypeImageURL || img.ImageURL.URL != "data:image/png;base64,aGVsbG8=" {
		t.Fatalf("unexpected image part %+v", img)
	}
	// The image attaches only to the final user turn.
	for _, m := range out.Messages[:len(out.Messages)-1] {
		if len(m.MultiContent) != 0 {
			t.Fatalf("image leaked into earlier message %+v", m)
		}
	}
}

func TestClaudeParamsConstruction(t *testing.T) {
	req := Request{
		Messages: []Message{
			{Role: "system", Content: "be nice"},
			{Role: "user", Content: "describe this"},
		},
		MaxTokens: 3500,
	}

	params := buildClaudeParams(req)
	if params.Model.Value != "claude-3-sonnet-20240229" {
		t.Fatalf("expected text model without image, got %q", params.Model.Value)
	}
	if params.MaxTokens.Value != 3500 {
		t.Fatalf("unexpected max tokens %d", params.MaxTokens.Value)
	}
	system := params.System.Value
	if len(system) != 1 || !strings.Contains(system[0].Text.Value, "super detailed") {
		t.Fatalf("unexpected system blocks %+v", system)
	}
	msgs := params.Messages.Value
	if len(msgs) != 1 {
		t.Fatalf("system turns must not reach the message list, got %d messages", len(msgs))
	}
	if len(msgs[0].Content.Value) != 1 {
		t.Fatalf("expected a single text block without image, got %d", len(msgs[0].Content.Value))
	}

	req.Image = &Image{Data: "aGVsbG8=", MimeType: "image/jpeg"}
	req.CodingMode = true
	params = buildClaudeParams(req)
	if params.Model.Value != "claude-3-5-sonnet-20241022" {
		t.Fatalf("expected vision model with image, got %q", params.Model.Value)
	}
	if !strings.Contains(params.System.Value[0].Text.Value, "software developer") {
		t.Fatalf("expected coding prefix in system block, got %q", params.System.Value[0].Text.Value)
	}
	blocks := params.Messages.Value[0].Content.Value
	if len(blocks) != 2 {
		t.Fatalf("expected image and text blocks on the user turn, got %d", len(blocks))
	}
	img, ok := blocks[0].(anthropic.ImageBlockParam)
	if !ok {
		t.Fatalf("expected image block first, got %T", blocks[0])
	}
	if img.Source.Value.Data.Value != "aGVsbG8=" || string(img.Source.Value.MediaType.Value) != "image/jpeg" {
		t.Fatalf("unexpected image source %+v", img.Source.Value)
	}
	if _, ok := blocks[1].(anthropic.TextBlockParam); !ok {
		t.Fatalf("expected text block second, got %T", blocks[1])
	}
}
