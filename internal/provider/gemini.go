package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultGeminiBaseURL is the Generative Language REST API root.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// geminiFallbackModels are tried when model listing fails.
var geminiFallbackModels = []string{
	"gemini-1.5-flash-latest",
	"gemini-1.5-pro-latest",
	"gemini-1.5-flash",
	"gemini-1.5-pro",
}

// GeminiClient calls the Gemini REST API with the caller's own key. It
// enumerates the key's available models and walks them until one
// produces a usable answer.
type GeminiClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewGeminiClient(apiKey string) *GeminiClient {
	return NewGeminiClientWithBaseURL(apiKey, DefaultGeminiBaseURL)
}

func NewGeminiClientWithBaseURL(apiKey, baseURL string) *GeminiClient {
	return &GeminiClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *GeminiClient) Name() string { return ModelGemini }

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerateRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error *geminiAPIError `json:"error"`
}

type geminiAPIError struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type geminiModelList struct {
	Models []struct {
		Name                       string   `json:"name"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
}

func (c *GeminiClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if c.apiKey == "" {
		return nil, &Error{
			Status:  http.StatusBadRequest,
			Message: "Gemini API key required! Add your Gemini API key in Account Settings. Get your free key at: https://aistudio.google.com/app/apikey",
		}
	}

	contents := c.buildContents(req)
	models := c.listModels(ctx)
	if len(models) == 0 {
		models = geminiFallbackModels
	}

	body := geminiGenerateRequest{Contents: contents}
	body.GenerationConfig.Temperature = clampFloat(req.Temperature, 0, 1)
	body.GenerationConfig.MaxOutputTokens = clampInt(req.MaxTokens, 1, 8192)

	var (
		tried   []string
		lastErr error
	)
	for _, model := range models {
		name := strings.TrimPrefix(model, "models/")
		tried = append(tried, name)
		text, err := c.generateWith(ctx, name, body)
		if err != nil {
			var perr *Error
			if errors.As(err, &perr) {
				return nil, perr
			}
			lastErr = err
			continue
		}
		return &Response{Text: text, Model: name}, nil
	}

	detail := "Unknown error"
	if lastErr != nil {
		detail = lastErr.Error()
	}
	return nil, &Error{
		Status:  http.StatusBadGateway,
		Message: fmt.Sprintf("Gemini API: none of the available models worked. Tried: %s. Please check your API key at https://aistudio.google.com/app/apikey. Error: %s", strings.Join(tried, ", "), detail),
	}
}

// buildContents converts the conversation into Gemini turns. Stale
// length hints are stripped, coding mode is primed as a user/model
// exchange, and the image rides on the final user turn.
func (c *GeminiClient) buildContents(req Request) []geminiContent {
	msgs := filterMessages(req.Messages, req.Incognito)
	cleaned := msgs[:0]
	for _, m := range msgs {
		m.Content = stripLengthHints(m.Content)
		if m.Content == "" {
			continue
		}
		cleaned = append(cleaned, m)
	}
	msgs = cleaned

	var contents []geminiContent
	if req.CodingMode && !req.Incognito {
		contents = append(contents,
			geminiContent{Role: "user", Parts: []geminiPart{{Text: "You are an expert software developer. Focus on code solutions."}}},
			geminiContent{Role: "model", Parts: []geminiPart{{Text: "Understood."}}},
		)
	}
	for i, m := range msgs {
		if m.Role == "system" {
			continue
		}
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		var parts []geminiPart
		if req.Image != nil && m.Role == "user" && i == len(msgs)-1 {
			parts = append(parts, geminiPart{InlineData: &geminiInlineData{
				MimeType: req.Image.MimeType,
				Data:     req.Image.Data,
			}})
		}
		parts = append(parts, geminiPart{Text: m.Content})
		contents = append(contents, geminiContent{Role: role, Parts: parts})
	}
	return contents
}

// listModels asks the API which models this key can use for
// generateContent. Errors fall back to the static candidate list.
func (c *GeminiClient) listModels(ctx context.Context) []string {
	url := fmt.Sprintf("%s/models?key=%s", c.baseURL, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var list geminiModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil
	}
	var names []string
	for _, m := range list.Models {
		if !strings.Contains(m.Name, "gemini") {
			continue
		}
		for _, method := range m.SupportedGenerationMethods {
			if method == "generateContent" {
				names = append(names, strings.TrimPrefix(m.Name, "models/"))
				break
			}
		}
	}
	return names
}

// generateWith calls one model. Key problems surface as a terminal
// *Error; everything else is a soft failure and the caller moves on to
// the next candidate.
func (c *GeminiClient) generateWith(ctx context.Context, model string, body geminiGenerateRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	var parsed geminiGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			switch {
			case parsed.Error.Code == http.StatusUnauthorized || parsed.Error.Status == "UNAUTHENTICATED" || strings.Contains(parsed.Error.Message, "API_KEY_INVALID"):
				return "", &Error{
					Status:  http.StatusUnauthorized,
					Message: "Invalid Gemini API key. Please check your key in Account Settings.",
				}
			case parsed.Error.Code == http.StatusTooManyRequests || parsed.Error.Status == "RESOURCE_EXHAUSTED":
				return "", &Error{
					Status:  http.StatusTooManyRequests,
					Message: "Gemini API quota exceeded. Please check your usage or try again later.",
				}
			}
		}
		return "", fmt.Errorf("model %s: HTTP %d", model, resp.StatusCode)
	}

	if parsed.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("model %s: prompt blocked (%s)", model, parsed.PromptFeedback.BlockReason)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("model %s: empty candidates", model)
	}
	text := parsed.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", fmt.Errorf("model %s: empty text (finish reason %s)", model, parsed.Candidates[0].FinishReason)
	}
	return text, nil
}
