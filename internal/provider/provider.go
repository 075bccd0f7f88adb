// Package provider implements the chat completion backends: the free
// hosted router plus the user-keyed OpenAI, Gemini and Claude clients.
package provider

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Model selectors accepted on the wire.
const (
	ModelHosted = "myai"
	ModelOpenAI = "openai"
	ModelGemini = "gemini"
	ModelClaude = "claude"
)

// Message is a single conversation turn.
type Message struct {
	Role    string
	Content string
}

// Image is a base64-encoded attachment sent with the last user turn.
type Image struct {
	Data     string
	MimeType string
}

// Request carries one completion request to a backend.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
	CodingMode  bool
	Incognito   bool
	Image       *Image
}

// Response is a successful completion.
type Response struct {
	Text  string
	Model string
}

// Error is a provider failure with the HTTP status the API should
// mirror to the caller and a remediation message.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider error (%d): %s", e.Status, e.Message)
}

// Client generates a completion for one request.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// lengthInstruction maps the caller's token budget to a response length
// hint appended to the prompt.
func lengthInstruction(maxTokens int) string {
	switch {
	case maxTokens <= 500:
		return "Answer in a very short, concise way. Be brief and direct."
	case maxTokens <= 1000:
		return "Answer in a short, concise way."
	case maxTokens <= 2000:
		return "Answer in a moderate length, providing good detail."
	case maxTokens <= 3000:
		return "Answer in a detailed, comprehensive way. Provide thorough explanations."
	default:
		return "Answer in a super detailed, long, smart way of thinking that explains everything needed. Be comprehensive and thorough."
	}
}

var (
	lengthHintRe = regexp.MustCompile(`(?i)Answer in a .*? way\.`)
	briefHintRe  = regexp.MustCompile(`(?i)Be .*?\.`)
)

// stripLengthHints removes previously appended length instructions so
// they do not accumulate across turns.
func stripLengthHints(content string) string {
	content = lengthHintRe.ReplaceAllString(content, "")
	content = briefHintRe.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}

// filterMessages drops system turns when incognito and keeps only the
// roles a backend understands.
func filterMessages(msgs []Message, incognito bool) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "user", "assistant":
		case "system":
			if incognito {
				continue
			}
		default:
			continue
		}
		out = append(out, m)
	}
	return out
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
