package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultHostedBaseURL is the Hugging Face Inference Providers router,
// an OpenAI-style chat completions endpoint.
const DefaultHostedBaseURL = "https://router.huggingface.co/v1/chat/completions"

// hostedModels are tried in order until one answers.
var hostedModels = []string{
	"meta-llama/Meta-Llama-3.1-8B-Instruct:fastest",
	"Qwen/Qwen2.5-7B-Instruct:fastest",
	"mistralai/Mistral-7B-Instruct-v0.3:fastest",
	"google/gemma-2-2b-it:fastest",
}

// HostedClient serves the free tier through the router with a
// server-side token. Callers never supply a key for this backend.
type HostedClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewHostedClient(apiKey, baseURL string) *HostedClient {
	if baseURL == "" {
		baseURL = DefaultHostedBaseURL
	}
	return &HostedClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *HostedClient) Name() string { return ModelHosted }

type hostedChatRequest struct {
	Model       string          `json:"model"`
	Messages    []hostedMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	TopP        float64         `json:"top_p"`
	MaxTokens   int             `json:"max_tokens"`
	Stream      bool            `json:"stream"`
}

type hostedMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type hostedChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate tries each candidate model in order. Router models can
// return garbled output at extreme settings, so sliders are mapped into
// a safe range and a corrupted answer is retried once conservatively.
func (c *HostedClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if c.apiKey == "" {
		return nil, &Error{
			Status:  http.StatusBadRequest,
			Message: "Free mode is not configured on this deployment. The site owner must set HUGGINGFACE_API_KEY in the server environment.",
		}
	}
	if req.Image != nil {
		return nil, &Error{
			Status:  http.StatusBadRequest,
			Message: "Image uploads are not supported in free mode. Please use ChatGPT, Gemini, or Claude for image analysis by adding your API key in Account Settings.",
		}
	}

	rawTemp := clampFloat(req.Temperature, 0, 2)
	safeTemp := rawTemp
	if rawTemp > 1 {
		// Map 0..2 onto 0..1.3 so "max creativity" stays on the rails.
		safeTemp = 1 + (rawTemp-1)*0.3
	}

	rawTokens := clampInt(req.MaxTokens, 100, 4000)
	// Map 100..4000 onto 128..1024.
	safeTokens := 128 + int(float64(rawTokens-100)/float64(4000-100)*float64(1024-128))
	safeTokens = clampInt(safeTokens, 32, 1024)

	outbound := []hostedMessage{{
		Role: "system",
		Content: strings.Join([]string{
			"You are a helpful assistant.",
			"Respond in clean plain text.",
			"Use ONE language consistently.",
			"Do not output garbled characters, random tokens, or repeated noise.",
			"If you don't know, say you don't know.",
			verbosityHint(rawTokens),
			creativityHint(rawTemp),
		}, " "),
	}}
	if req.CodingMode {
		outbound = append(outbound, hostedMessage{
			Role:    "system",
			Content: "Coding mode: provide correct code and practical steps. Use markdown code blocks only when needed.",
		})
	}
	for _, m := range req.Messages {
		if m.Role != "system" && m.Role != "user" && m.Role != "assistant" {
			continue
		}
		outbound = append(outbound, hostedMessage{Role: m.Role, Content: m.Content})
	}

	base := hostedChatRequest{
		Messages:    outbound,
		Temperature: safeTemp,
		TopP:        0.9,
		MaxTokens:   safeTokens,
	}

	var lastErr error
	for _, model := range hostedModels {
		text, status, err := c.tryModel(ctx, model, base)
		if err != nil {
			lastErr = err
			continue
		}
		switch status {
		case http.StatusOK:
			if looksCorrupted(text) {
				retry := base
				retry.Temperature = 0.2
				retry.TopP = 0.8
				retry.MaxTokens = 256
				if retryText, retryStatus, retryErr := c.tryModel(ctx, model, retry); retryErr == nil && retryStatus == http.StatusOK && !looksCorrupted(retryText) {
					return &Response{Text: retryText, Model: model}, nil
				}
			}
			return &Response{Text: text, Model: model}, nil
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, &Error{
				Status:  status,
				Message: "The server's Hugging Face token is missing permission for Inference Providers. Create a new token with Inference Providers access and redeploy.",
			}
		case http.StatusTooManyRequests:
			return nil, &Error{
				Status:  status,
				Message: "Rate limit reached on the free model. Please wait a moment and try again.",
			}
		default:
			lastErr = fmt.Errorf("model %s: status %d", model, status)
		}
	}

	msg := "Unknown"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	return nil, &Error{
		Status:  http.StatusBadGateway,
		Message: fmt.Sprintf("All free models are unavailable. Last error: %s. Try again later.", msg),
	}
}

func (c *HostedClient) tryModel(ctx context.Context, model string, body hostedChatRequest) (string, int, error) {
	body.Model = model
	payload, err := json.Marshal(body)
	if err != nil {
		return "", 0, fmt.Errorf("marshal hosted request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("build hosted request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", 0, fmt.Errorf("call hosted router: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", resp.StatusCode, nil
	}

	var parsed hostedChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", 0, fmt.Errorf("decode hosted response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", 0, fmt.Errorf("model %s: empty choices", model)
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), http.StatusOK, nil
}

// looksCorrupted flags common bad-generation artifacts: replacement
// characters, or a long answer that is mostly non-ASCII.
func looksCorrupted(text string) bool {
	if strings.ContainsRune(text, '�') {
		return true
	}
	if len(text) <= 200 {
		return false
	}
	nonASCII := 0
	for _, b := range []byte(text) {
		switch {
		case b == 0x09 || b == 0x0A || b == 0x0D:
		case b >= 0x20 && b <= 0x7E:
		default:
			nonASCII++
		}
	}
	return float64(nonASCII)/float64(len(text)) > 0.15
}

func verbosityHint(maxTokens int) string {
	switch {
	case maxTokens >= 3500:
		return "Be extremely detailed and thorough. Explain step-by-step, give multiple methods, add examples/analogies, and include a short recap at the end."
	case maxTokens >= 2500:
		return "Be very detailed. Explain step-by-step and include helpful examples."
	case maxTokens >= 1500:
		return "Be moderately detailed. Explain your reasoning clearly."
	case maxTokens >= 800:
		return "Be concise but include key steps."
	default:
		return "Be brief and direct."
	}
}

func creativityHint(temp float64) string {
	switch {
	case temp >= 1.8:
		return "Be maximally creative while staying correct: use vivid analogies, intuitive explanations, and interesting context."
	case temp >= 1.2:
		return "Be somewhat creative: use a helpful analogy or intuition when appropriate."
	default:
		return "Stay factual and focused."
	}
}
