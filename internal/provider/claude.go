package provider

import (
	"context"
	"errors"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ClaudeClient calls the Anthropic API with the caller's own key.
type ClaudeClient struct {
	apiKey string
}

func NewClaudeClient(apiKey string) *ClaudeClient {
	return &ClaudeClient{apiKey: apiKey}
}

func (c *ClaudeClient) Name() string { return ModelClaude }

func (c *ClaudeClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if c.apiKey == "" {
		return nil, &Error{
			Status:  http.StatusBadRequest,
			Message: "Claude API key required! Add your Claude API key in Account Settings. Get your key at: https://console.anthropic.com/",
		}
	}

	params := buildClaudeParams(req)

	client := anthropic.NewClient(option.WithAPIKey(c.apiKey))
	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		status := http.StatusBadGateway
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
			status = apiErr.StatusCode
		}
		return nil, &Error{
			Status:  status,
			Message: "Your Claude API key has issues. Please check your key in Account Settings or switch to the free model.",
		}
	}

	text := "No response"
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			text = block.Text
			break
		}
	}
	return &Response{Text: text, Model: params.Model.Value}, nil
}

// buildClaudeParams assembles the outbound message params. System turns
// are dropped in favor of the system blocks; the image rides as a base64
// block ahead of the text on the final user turn and forces the vision
// model.
func buildClaudeParams(req Request) anthropic.MessageNewParams {
	msgs := filterMessages(req.Messages, req.Incognito)

	system := lengthInstruction(req.MaxTokens)
	if req.CodingMode {
		system = "You are an expert software developer. Focus on code solutions and building applications. " + system
	}

	model := "claude-3-sonnet-20240229"
	if req.Image != nil {
		model = "claude-3-5-sonnet-20241022"
	}

	outbound := make([]anthropic.MessageParam, 0, len(msgs))
	for i, m := range msgs {
		if m.Role == "system" {
			continue
		}
		role := anthropic.MessageParamRoleAssistant
		if m.Role == "user" {
			role = anthropic.MessageParamRoleUser
		}

		blocks := []anthropic.ContentBlockParamUnion{}
		if req.Image != nil && m.Role == "user" && i == len(msgs)-1 {
			blocks = append(blocks, anthropic.ImageBlockParam{
				Type: anthropic.F(anthropic.ImageBlockParamTypeImage),
				Source: anthropic.F(anthropic.ImageBlockParamSource{
					Type:      anthropic.F(anthropic.ImageBlockParamSourceTypeBase64),
					MediaType: anthropic.F(anthropic.ImageBlockParamSourceMediaType(req.Image.MimeType)),
					Data:      anthropic.F(req.Image.Data),
				}),
			})
		}
		blocks = append(blocks, anthropic.TextBlockParam{
			Type: anthropic.F(anthropic.TextBlockParamTypeText),
			Text: anthropic.F(m.Content),
		})

		outbound = append(outbound, anthropic.MessageParam{
			Role:    anthropic.F(role),
			Content: anthropic.F(blocks),
		})
	}

	return anthropic.MessageNewParams{
		Model:       anthropic.F(model),
		MaxTokens:   anthropic.F(int64(clampInt(req.MaxTokens, 1, 4000))),
		Temperature: anthropic.F(clampFloat(req.Temperature, 0, 1)),
		System: anthropic.F([]anthropic.TextBlockParam{{
			Type: anthropic.F(anthropic.TextBlockParamTypeText),
			Text: anthropic.F(system),
		}}),
		Messages: anthropic.F(outbound),
	}
}
