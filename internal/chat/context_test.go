package chat

import (
	"fmt"
	"strings"
	"testing"

	"github.com/RichardoC/blinky/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conversationWith(n int, answered func(i int) bool) *models.Conversation {
	conv := &models.Conversation{ID: 1}
	for i := 1; i <= n; i++ {
		conv.Messages = append(conv.Messages, models.UserMessage{ID: int64(i), Content: fmt.Sprintf("m%d", i)})
		if answered(i) {
			conv.Responses = append(conv.Responses, models.AIResponse{
				ID: int64(100 + i), UserMessageID: int64(i), Content: fmt.Sprintf("r%d", i),
			})
		}
	}
	return conv
}

func userLines(ctx string) []string {
	var out []string
	for _, line := range strings.Split(ctx, "\n") {
		if strings.HasPrefix(line, "user: ") {
			out = append(out, strings.TrimPrefix(line, "user: "))
		}
	}
	return out
}

func TestBuildContextWindow(t *testing.T) {
	conv := conversationWith(10, func(int) bool { return true })

	got := BuildContext(conv, 8)
	assert.Equal(t, []string{"m3", "m4", "m5", "m6", "m7", "m8", "m9", "m10"}, userLines(got))
	assert.NotContains(t, got, "user: m1\n")
	assert.NotContains(t, got, "user: m2\n")
	assert.NotContains(t, got, "assistant: r2\n")
	assert.True(t, strings.HasPrefix(got, "user: m3\nassistant: r3\n"))
	assert.True(t, strings.HasSuffix(got, "user: m10\nassistant: r10\n"))
}

func TestBuildContextMinOfMessagesAndWindow(t *testing.T) {
	for m := 0; m <= 12; m++ {
		for _, w := range []int{1, 3, 8} {
			conv := conversationWith(m, func(int) bool { return false })
			lines := userLines(BuildContext(conv, w))
			want := m
			if w < m {
				want = w
			}
			require.Len(t, lines, want, "m=%d w=%d", m, w)
			if want > 0 {
				assert.Equal(t, fmt.Sprintf("m%d", m), lines[len(lines)-1])
			}
		}
	}
}

func TestBuildContextPairingIgnoresResponseOrder(t *testing.T) {
	conv := conversationWith(3, func(i int) bool { return i != 2 })
	ordered := BuildContext(conv, 8)

	conv.Responses[0], conv.Responses[1] = conv.Responses[1], conv.Responses[0]
	shuffled := BuildContext(conv, 8)

	assert.Equal(t, ordered, shuffled)
	assert.Equal(t, "user: m1\nassistant: r1\nuser: m2\nuser: m3\nassistant: r3\n", ordered)
}

func TestBuildContextEdges(t *testing.T) {
	assert.Empty(t, BuildContext(nil, 8))
	assert.Empty(t, BuildContext(&models.Conversation{}, 8))
	assert.Empty(t, BuildContext(conversationWith(2, func(int) bool { return true }), 0))
}

func TestBuildPrompt(t *testing.T) {
	conv := conversationWith(1, func(int) bool { return false })
	p := models.Personality{BasePrompt: "You are Blinky."}
	assert.Equal(t, "You are Blinky.\n\nuser: m1\n", BuildPrompt(p, conv, 8))
}
