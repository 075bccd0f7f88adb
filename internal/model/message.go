package model

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a persisted chat message. The message list of a chat is
// replaced wholesale on every save, so Seq is its only ordering.
type Message struct {
	ChatID  string `json:"chat_id,omitempty"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Seq     int    `json:"sequence_number,omitempty"`
}

// ChatRequest is the request to send a chat message.
type ChatRequest struct {
	Messages      []Message         `json:"messages"`
	Model         string            `json:"model"`
	Temperature   *float64          `json:"temperature,omitempty"`
	MaxTokens     *int              `json:"max_tokens,omitempty"`
	Incognito     bool              `json:"incognito"`
	APIKeys       map[string]string `json:"apiKeys,omitempty"`
	CodingMode    bool              `json:"codingMode"`
	ImageData     string            `json:"imageData,omitempty"`
	ImageMimeType string            `json:"imageMimeType,omitempty"`
	ChatID        string            `json:"chatId"`
	SessionID     string            `json:"sessionId"`
	DisplayName   string            `json:"displayName,omitempty"`
}

// ChatResponse carries the assistant's reply.
type ChatResponse struct {
	Message string `json:"message"`
}
