package models

import "time"

type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Personality is a reusable system-prompt template. BasePrompt is used
// verbatim as the prefix of every prompt it governs.
type Personality struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	BasePrompt  string `json:"base_prompt"`
	Description string `json:"description"`
}

type Conversation struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`

	// Messages and Responses are both ordered by insertion (ascending id).
	Messages  []UserMessage `json:"-"`
	Responses []AIResponse  `json:"-"`
}

type UserMessage struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// AIResponse answers exactly one UserMessage of the same conversation.
type AIResponse struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	UserMessageID  int64     `json:"user_message_id"`
	PersonalityID  int64     `json:"personality_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`

	// Personality is populated when loaded with history. It may be nil if the
	// personality was deleted after the response was written.
	Personality *Personality `json:"-"`
}

// Turn is one user message plus its optional response.
type Turn struct {
	Message  UserMessage `json:"message"`
	Response *AIResponse `json:"response,omitempty"`
}

// Turns joins messages to responses by message id. Output follows message
// order regardless of how Responses is ordered; a message with more than one
// candidate response keeps the first one found.
func (c *Conversation) Turns() []Turn {
	return c.TurnsFrom(0)
}

// TurnsFrom is Turns restricted to messages at index start and later.
func (c *Conversation) TurnsFrom(start int) []Turn {
	if start < 0 {
		start = 0
	}
	if start >= len(c.Messages) {
		return []Turn{}
	}

	byMessage := make(map[int64]*AIResponse, len(c.Responses))
	for i := range c.Responses {
		r := &c.Responses[i]
		if _, ok := byMessage[r.UserMessageID]; !ok {
			byMessage[r.UserMessageID] = r
		}
	}

	turns := make([]Turn, 0, len(c.Messages)-start)
	for _, msg := range c.Messages[start:] {
		turns = append(turns, Turn{Message: msg, Response: byMessage[msg.ID]})
	}
	return turns
}

// LastResponse returns the most recently appended response, or nil.
func (c *Conversation) LastResponse() *AIResponse {
	if len(c.Responses) == 0 {
		return nil
	}
	return &c.Responses[len(c.Responses)-1]
}
