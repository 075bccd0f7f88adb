package policy

import (
	"strings"

	"github.com/rexmccreary15-dotcom/trexai/internal/model"
)

// Moderation evaluates message content against the creator-configured
// blocked word list. Matching is case-insensitive substring containment.
type Moderation struct {
	enabled bool
	words   []string
}

func NewModeration(s model.ModerationSettings) Moderation {
	return Moderation{enabled: s.Enabled, words: s.Words()}
}

// Blocked returns the first blocked word found in content. A disabled
// policy or an empty word list never blocks.
func (m Moderation) Blocked(content string) (string, bool) {
	if !m.enabled || len(m.words) == 0 {
		return "", false
	}
	lower := strings.ToLower(content)
	for _, w := range m.words {
		if w == "" {
			continue
		}
		if strings.Contains(lower, w) {
			return w, true
		}
	}
	return "", false
}
