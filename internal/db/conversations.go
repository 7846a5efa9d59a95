package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RichardoC/blinky/internal/models"
)

// FindConversationByUser returns the user's conversation without history.
func (db *Database) FindConversationByUser(ctx context.Context, userID int64) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := db.db.QueryRowContext(ctx, `
        SELECT id, user_id, title, created_at
        FROM conversations
        WHERE user_id = ?`, userID,
	).Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation for user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (db *Database) CreateConversation(ctx context.Context, userID int64, title string) (*models.Conversation, error) {
	query := `
        INSERT INTO conversations (user_id, title, created_at)
        VALUES (?, ?, CURRENT_TIMESTAMP)
        RETURNING id, created_at`

	conv := &models.Conversation{UserID: userID, Title: title}
	err := db.db.QueryRowContext(ctx, query, userID, title).Scan(&conv.ID, &conv.CreatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("conversation for user %d: %w", userID, ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// LoadHistory returns the conversation with its messages and responses
// eagerly loaded, each in insertion order.
func (db *Database) LoadHistory(ctx context.Context, conversationID int64) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := db.db.QueryRowContext(ctx, `
        SELECT id, user_id, title, created_at
        FROM conversations
        WHERE id = ?`, conversationID,
	).Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %d: %w", conversationID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if conv.Messages, err = db.listMessages(ctx, conversationID); err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	if conv.Responses, err = db.listResponses(ctx, conversationID); err != nil {
		return nil, fmt.Errorf("failed to load responses: %w", err)
	}
	return conv, nil
}

func (db *Database) listMessages(ctx context.Context, conversationID int64) ([]models.UserMessage, error) {
	rows, err := db.db.QueryContext(ctx, `
        SELECT id, conversation_id, content, created_at
        FROM user_messages
        WHERE conversation_id = ?
        ORDER BY id ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.UserMessage, 0)
	for rows.Next() {
		var msg models.UserMessage
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (db *Database) listResponses(ctx context.Context, conversationID int64) ([]models.AIResponse, error) {
	rows, err := db.db.QueryContext(ctx, `
        SELECT r.id, r.conversation_id, r.user_message_id, r.personality_id, r.content, r.created_at,
               p.name, p.base_prompt, p.description
        FROM ai_responses r
        LEFT JOIN personalities p ON p.id = r.personality_id
        WHERE r.conversation_id = ?
        ORDER BY r.id ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	responses := make([]models.AIResponse, 0)
	for rows.Next() {
		var (
			resp                      models.AIResponse
			personalityID             sql.NullInt64
			name, prompt, description sql.NullString
		)
		err := rows.Scan(&resp.ID, &resp.ConversationID, &resp.UserMessageID, &personalityID,
			&resp.Content, &resp.CreatedAt, &name, &prompt, &description)
		if err != nil {
			return nil, err
		}
		if personalityID.Valid {
			resp.PersonalityID = personalityID.Int64
			resp.Personality = &models.Personality{
				ID:          personalityID.Int64,
				Name:        name.String,
				BasePrompt:  prompt.String,
				Description: description.String,
			}
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}

func (db *Database) AppendMessage(ctx context.Context, conversationID int64, content string) (*models.UserMessage, error) {
	query := `
        INSERT INTO user_messages (conversation_id, content, created_at)
        VALUES (?, ?, CURRENT_TIMESTAMP)
        RETURNING id, created_at`

	msg := &models.UserMessage{ConversationID: conversationID, Content: content}
	if err := db.db.QueryRowContext(ctx, query, conversationID, content).Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return nil, err
	}
	return msg, nil
}

// AppendResponse stores resp. The paired message must belong to
// resp.ConversationID and must not already have a response. A personality
// that no longer exists is stored as NULL and cleared on resp.
func (db *Database) AppendResponse(ctx context.Context, resp *models.AIResponse) error {
	query := `
        INSERT INTO ai_responses (conversation_id, user_message_id, personality_id, content, created_at)
        SELECT conversation_id, id, (SELECT p.id FROM personalities p WHERE p.id = ?), ?, CURRENT_TIMESTAMP
        FROM user_messages
        WHERE id = ? AND conversation_id = ?
        RETURNING id, personality_id, created_at`

	var personalityID sql.NullInt64
	err := db.db.QueryRowContext(ctx, query,
		sql.NullInt64{Int64: resp.PersonalityID, Valid: resp.PersonalityID != 0},
		resp.Content, resp.UserMessageID, resp.ConversationID,
	).Scan(&resp.ID, &personalityID, &resp.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("message %d in conversation %d: %w", resp.UserMessageID, resp.ConversationID, ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("message %d already answered: %w", resp.UserMessageID, ErrConflict)
	case err != nil:
		return err
	}
	if !personalityID.Valid {
		resp.PersonalityID = 0
		resp.Personality = nil
	}
	return nil
}

// ClearConversation removes every message and response of the
// conversation. The conversation row itself is kept.
func (db *Database) ClearConversation(ctx context.Context, conversationID int64) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM ai_responses WHERE conversation_id = ?", conversationID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM user_messages WHERE conversation_id = ?", conversationID); err != nil {
		return err
	}

	return tx.Commit()
}
