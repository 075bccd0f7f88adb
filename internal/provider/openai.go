package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient calls the OpenAI API with the caller's own key.
type OpenAIClient struct {
	apiKey string
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{apiKey: apiKey}
}

func (c *OpenAIClient) Name() string { return ModelOpenAI }

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if c.apiKey == "" {
		return nil, &Error{
			Status:  http.StatusBadRequest,
			Message: "OpenAI API key required! Add your OpenAI API key in Account Settings. Get your key at: https://platform.openai.com/api-keys",
		}
	}

	outbound := buildOpenAIRequest(req)

	client := openai.NewClient(c.apiKey)
	resp, err := client.CreateChatCompletion(ctx, outbound)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.HTTPStatusCode {
			case http.StatusUnauthorized:
				return nil, &Error{
					Status:  http.StatusUnauthorized,
					Message: "Your OpenAI API key has issues (invalid key). Please check your key in Account Settings or switch to the free model.",
				}
			case http.StatusTooManyRequests:
				return nil, &Error{
					Status:  http.StatusTooManyRequests,
					Message: "Your OpenAI API key has issues (quota exceeded). Please check your key in Account Settings or switch to the free model.",
				}
			}
		}
		return nil, fmt.Errorf("openai completion: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return &Response{Text: "No response", Model: outbound.Model}, nil
	}
	return &Response{Text: resp.Choices[0].Message.Content, Model: outbound.Model}, nil
}

// buildOpenAIRequest assembles the outbound completion request. The
// image rides as a data-URL part on the final user message, which also
// forces the vision model.
func buildOpenAIRequest(req Request) openai.ChatCompletionRequest {
	msgs := filterMessages(req.Messages, req.Incognito)
	if req.CodingMode {
		msgs = append([]Message{{
			Role:    "system",
			Content: "You are an expert software developer and web designer. Focus on providing code solutions, best practices, and building complete applications. When asked to build websites, provide full, working code with HTML, CSS, and JavaScript.",
		}}, msgs...)
	}
	if n := len(msgs); n > 0 && msgs[n-1].Role == "user" {
		msgs[n-1].Content = msgs[n-1].Content + " " + lengthInstruction(req.MaxTokens)
	}

	model := openai.GPT3Dot5Turbo
	if req.Image != nil {
		model = openai.GPT4o
	}

	outbound := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for i, m := range msgs {
		if req.Image != nil && m.Role == "user" && i == len(msgs)-1 {
			outbound = append(outbound, openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: m.Content},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: fmt.Sprintf("data:%s;base64,%s", req.Image.MimeType, req.Image.Data),
						},
					},
				},
			})
			continue
		}
		outbound = append(outbound, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    outbound,
		Temperature: float32(clampFloat(req.Temperature, 0, 2)),
		MaxTokens:   clampInt(req.MaxTokens, 1, 4000),
	}
}
