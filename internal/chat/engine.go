package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RichardoC/blinky/internal/db"
	"github.com/RichardoC/blinky/internal/llm"
	"github.com/RichardoC/blinky/internal/metrics"
	"github.com/RichardoC/blinky/internal/models"
	"go.uber.org/zap"
)

const defaultTitleTemplate = "Blinky Conversation: %s"

// ConversationStore persists a user's single conversation. Lookups that
// find nothing return an error wrapping db.ErrNotFound.
type ConversationStore interface {
	FindConversationByUser(ctx context.Context, userID int64) (*models.Conversation, error)
	CreateConversation(ctx context.Context, userID int64, title string) (*models.Conversation, error)
	LoadHistory(ctx context.Context, conversationID int64) (*models.Conversation, error)
	AppendMessage(ctx context.Context, conversationID int64, content string) (*models.UserMessage, error)
	AppendResponse(ctx context.Context, resp *models.AIResponse) error
	ClearConversation(ctx context.Context, conversationID int64) error
}

type UserDirectory interface {
	FindUserByID(ctx context.Context, id int64) (*models.User, error)
}

type PersonalityCache interface {
	GetByID(id int64) (models.Personality, bool)
	GetFirst() (models.Personality, bool)
}

// TokenCounter estimates prompt size. Optional.
type TokenCounter interface {
	Count(text string) int
}

type Config struct {
	Model  string
	Window int
	// TokenBudget logs a warning when an assembled prompt is estimated to
	// exceed it. Zero disables the check.
	TokenBudget int
}

// Engine runs conversation turns: it resolves the personality, records the
// user's message, asks the model with a bounded window of history, and
// records the parsed answer.
type Engine struct {
	users         UserDirectory
	conversations ConversationStore
	personalities PersonalityCache
	client        llm.Client
	tokens        TokenCounter
	metrics       *metrics.Metrics
	logger        *zap.Logger
	cfg           Config
	locks         *userLocks
}

type Option func(*Engine)

func WithTokenCounter(tc TokenCounter) Option {
	return func(e *Engine) { e.tokens = tc }
}

func NewEngine(
	users UserDirectory,
	conversations ConversationStore,
	personalities PersonalityCache,
	client llm.Client,
	m *metrics.Metrics,
	logger *zap.Logger,
	cfg Config,
	opts ...Option,
) *Engine {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	e := &Engine{
		users:         users,
		conversations: conversations,
		personalities: personalities,
		client:        client,
		metrics:       m,
		logger:        logger,
		cfg:           cfg,
		locks:         newUserLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SendPrompt runs one turn for userID. personalityID may be nil.
//
// If the model call fails the user's message stays stored without an
// answer; the next turn will show it in history unanswered.
func (e *Engine) SendPrompt(ctx context.Context, userID int64, prompt string, personalityID *int64) (Reply, error) {
	reply, err := e.sendPrompt(ctx, userID, prompt, personalityID)
	e.metrics.TurnsTotal.WithLabelValues(outcome(err)).Inc()
	return reply, err
}

func (e *Engine) sendPrompt(ctx context.Context, userID int64, prompt string, personalityID *int64) (Reply, error) {
	if strings.TrimSpace(prompt) == "" {
		return Reply{}, fmt.Errorf("%w: prompt must not be empty", ErrValidation)
	}

	user, err := e.findUser(ctx, userID)
	if err != nil {
		return Reply{}, err
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	conv, err := e.loadConversation(ctx, userID)
	if err != nil {
		return Reply{}, err
	}

	personality, err := e.resolvePersonality(conv, personalityID)
	if err != nil {
		return Reply{}, err
	}

	if conv == nil {
		conv, err = e.conversations.CreateConversation(ctx, userID, fmt.Sprintf(defaultTitleTemplate, user.Email))
		if err != nil {
			return Reply{}, fmt.Errorf("failed to create conversation: %w", err)
		}
		e.logger.Info("Conversation created",
			zap.Int64("userID", userID),
			zap.Int64("conversationID", conv.ID))
	}

	msg, err := e.conversations.AppendMessage(ctx, conv.ID, prompt)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to save user message: %w", err)
	}
	conv.Messages = append(conv.Messages, *msg)

	fullPrompt := BuildPrompt(personality, conv, e.cfg.Window)
	e.checkTokenBudget(userID, fullPrompt)

	raw, err := e.generate(ctx, fullPrompt)
	if err != nil {
		e.logger.Error("Inference failed; user message left unanswered",
			zap.Int64("userID", userID),
			zap.Int64("messageID", msg.ID),
			zap.Error(err))
		return Reply{}, err
	}

	reply := ParseResponse(raw)
	e.metrics.ReactionsTotal.WithLabelValues(fmt.Sprint(reply.HasReaction())).Inc()

	resp := &models.AIResponse{
		ConversationID: conv.ID,
		UserMessageID:  msg.ID,
		PersonalityID:  personality.ID,
		Content:        reply.Text,
		Personality:    &personality,
	}
	if err := e.conversations.AppendResponse(ctx, resp); err != nil {
		return Reply{}, fmt.Errorf("failed to save response: %w", err)
	}

	e.logger.Debug("Turn complete",
		zap.Int64("userID", userID),
		zap.Int64("personalityID", personality.ID),
		zap.String("reaction", reply.Reaction))
	return reply, nil
}

// ClearConversation empties the user's history. The conversation itself
// is kept; a user without one is left untouched.
func (e *Engine) ClearConversation(ctx context.Context, userID int64) error {
	if _, err := e.findUser(ctx, userID); err != nil {
		return err
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	conv, err := e.conversations.FindConversationByUser(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find conversation: %w", err)
	}

	if err := e.conversations.ClearConversation(ctx, conv.ID); err != nil {
		return fmt.Errorf("failed to clear conversation: %w", err)
	}
	e.metrics.ClearsTotal.Inc()
	e.logger.Info("Conversation cleared", zap.Int64("userID", userID), zap.Int64("conversationID", conv.ID))
	return nil
}

// History returns the user's turns oldest first, or none if the user has
// not talked yet.
func (e *Engine) History(ctx context.Context, userID int64) ([]models.Turn, error) {
	if _, err := e.findUser(ctx, userID); err != nil {
		return nil, err
	}
	conv, err := e.loadConversation(ctx, userID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return []models.Turn{}, nil
	}
	return conv.Turns(), nil
}

func (e *Engine) findUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := e.users.FindUserByID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// loadConversation returns the user's conversation with history, or nil if
// there is none yet.
func (e *Engine) loadConversation(ctx context.Context, userID int64) (*models.Conversation, error) {
	conv, err := e.conversations.FindConversationByUser(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}
	full, err := e.conversations.LoadHistory(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}
	return full, nil
}

// resolvePersonality picks, in order: the explicit id, the personality of
// the latest response, the first cached personality.
func (e *Engine) resolvePersonality(conv *models.Conversation, personalityID *int64) (models.Personality, error) {
	if personalityID != nil {
		p, ok := e.personalities.GetByID(*personalityID)
		if !ok {
			return models.Personality{}, fmt.Errorf("%w: personality %d", ErrNotFound, *personalityID)
		}
		return p, nil
	}

	if conv != nil {
		if last := conv.LastResponse(); last != nil && last.Personality != nil {
			return *last.Personality, nil
		}
	}

	p, ok := e.personalities.GetFirst()
	if !ok {
		return models.Personality{}, fmt.Errorf("%w: no personalities configured", ErrNotFound)
	}
	return p, nil
}

func (e *Engine) generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	raw, err := e.client.Generate(ctx, prompt, e.cfg.Model)
	e.metrics.InferenceDuration.WithLabelValues(outcome(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		var inferenceErr *llm.InferenceError
		if !errors.As(err, &inferenceErr) {
			err = &llm.InferenceError{Provider: "unknown", Err: err}
		}
		return "", err
	}
	return raw, nil
}

func (e *Engine) checkTokenBudget(userID int64, prompt string) {
	if e.tokens == nil {
		return
	}
	n := e.tokens.Count(prompt)
	e.metrics.PromptTokens.Observe(float64(n))
	if e.cfg.TokenBudget > 0 && n > e.cfg.TokenBudget {
		e.logger.Warn("Prompt exceeds token budget",
			zap.Int64("userID", userID),
			zap.Int("tokens", n),
			zap.Int("budget", e.cfg.TokenBudget),
			zap.Int("window", e.cfg.Window))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrValidation):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}
