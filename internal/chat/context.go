package chat

import (
	"strings"

	"github.com/RichardoC/blinky/internal/models"
)

const (
	userRole      = "user"
	assistantRole = "assistant"

	// DefaultWindow is how many recent user messages are replayed to the model.
	DefaultWindow = 8
)

// BuildContext renders the last window user messages, each followed by its
// answer when there is one. The window counts messages, not tokens, so long
// messages can still exceed a model's context.
func BuildContext(conv *models.Conversation, window int) string {
	if conv == nil || window <= 0 {
		return ""
	}
	start := len(conv.Messages) - window
	if start < 0 {
		start = 0
	}

	var sb strings.Builder
	for _, turn := range conv.TurnsFrom(start) {
		sb.WriteString(userRole + ": " + turn.Message.Content + "\n")
		if turn.Response != nil {
			sb.WriteString(assistantRole + ": " + turn.Response.Content + "\n")
		}
	}
	return sb.String()
}

// BuildPrompt prefixes the rendered history with the personality's prompt.
func BuildPrompt(p models.Personality, conv *models.Conversation, window int) string {
	return p.BasePrompt + "\n\n" + BuildContext(conv, window)
}
