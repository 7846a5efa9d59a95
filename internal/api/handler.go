package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/RichardoC/blinky/internal/chat"
	"github.com/RichardoC/blinky/internal/db"
	"github.com/RichardoC/blinky/internal/llm"
	"github.com/RichardoC/blinky/internal/metrics"
	"github.com/RichardoC/blinky/internal/models"
	"go.uber.org/zap"
)

// UserHeader carries the caller's user id. Authentication happens in front
// of this service.
const UserHeader = "X-User-ID"

type ChatEngine interface {
	SendPrompt(ctx context.Context, userID int64, prompt string, personalityID *int64) (chat.Reply, error)
	ClearConversation(ctx context.Context, userID int64) error
	History(ctx context.Context, userID int64) ([]models.Turn, error)
}

type PersonalityStore interface {
	ListPersonalities(ctx context.Context) ([]models.Personality, error)
	GetPersonality(ctx context.Context, id int64) (*models.Personality, error)
	CreatePersonality(ctx context.Context, p *models.Personality) error
	UpdatePersonality(ctx context.Context, p *models.Personality) error
	DeletePersonality(ctx context.Context, id int64) error
}

type PersonalityRefresher interface {
	Refresh(ctx context.Context) error
}

type Handler struct {
	engine        ChatEngine
	personalities PersonalityStore
	cache         PersonalityRefresher
	limiter       *RateLimiter
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

func NewHandler(
	engine ChatEngine,
	personalities PersonalityStore,
	cache PersonalityRefresher,
	limiter *RateLimiter,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		engine:        engine,
		personalities: personalities,
		cache:         cache,
		limiter:       limiter,
		metrics:       m,
		logger:        logger,
	}
}

type PromptRequest struct {
	Prompt        string `json:"prompt"`
	PersonalityID *int64 `json:"personality_id,omitempty"`
}

type PersonalityRequest struct {
	Name        string `json:"name"`
	BasePrompt  string `json:"base_prompt"`
	Description string `json:"description"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *Handler) HandlePrompt(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if !h.limiter.Allow(userID) {
		h.writeError(w, r, http.StatusTooManyRequests, "Too many requests, slow down")
		return
	}

	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	reply, err := h.engine.SendPrompt(r.Context(), userID, req.Prompt, req.PersonalityID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, reply)
}

func (h *Handler) ClearConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.engine.ClearConversation(r.Context(), userID); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	turns, err := h.engine.History(r.Context(), userID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, turns)
}

func (h *Handler) ListPersonalities(w http.ResponseWriter, r *http.Request) {
	list, err := h.personalities.ListPersonalities(r.Context())
	if err != nil {
		h.logger.Error("Failed to list personalities", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSON(w, r, http.StatusOK, list)
}

func (h *Handler) GetPersonality(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.personalities.GetPersonality(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, p)
}

func (h *Handler) CreatePersonality(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decodePersonality(w, r)
	if !ok {
		return
	}
	if err := h.personalities.CreatePersonality(r.Context(), p); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.refreshCache(r)
	h.writeJSON(w, r, http.StatusCreated, p)
}

func (h *Handler) UpdatePersonality(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, ok := h.decodePersonality(w, r)
	if !ok {
		return
	}
	p.ID = id
	if err := h.personalities.UpdatePersonality(r.Context(), p); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.refreshCache(r)
	h.writeJSON(w, r, http.StatusOK, p)
}

func (h *Handler) DeletePersonality(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.personalities.DeletePersonality(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.refreshCache(r)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RefreshPersonalities(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Refresh(r.Context()); err != nil {
		h.logger.Error("Failed to refresh personalities", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// refreshCache reloads the cache after a write. A failure only delays the
// change reaching chat turns, so it is logged rather than returned.
func (h *Handler) refreshCache(r *http.Request) {
	if err := h.cache.Refresh(r.Context()); err != nil {
		h.logger.Warn("Personality cache refresh failed",
			zap.String("requestID", RequestID(r.Context())),
			zap.Error(err))
	}
}

func (h *Handler) decodePersonality(w http.ResponseWriter, r *http.Request) (*models.Personality, bool) {
	var req PersonalityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || strings.TrimSpace(req.BasePrompt) == "" {
		h.writeError(w, r, http.StatusBadRequest, "name and base_prompt are required")
		return nil, false
	}
	return &models.Personality{Name: req.Name, BasePrompt: req.BasePrompt, Description: req.Description}, true
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get(UserHeader), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, r, http.StatusBadRequest, "Missing or invalid "+UserHeader+" header")
		return 0, false
	}
	return id, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "Invalid personality ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var inferenceErr *llm.InferenceError
	switch {
	case errors.Is(err, chat.ErrValidation):
		h.writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, err.Error())
	case errors.As(err, &inferenceErr):
		h.logger.Error("Model call failed",
			zap.String("requestID", RequestID(r.Context())),
			zap.Error(err))
		h.writeError(w, r, http.StatusBadGateway, "The model is unavailable, try again later")
	default:
		h.logger.Error("Failed to process request",
			zap.String("requestID", RequestID(r.Context())),
			zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, "Personality not found")
	case errors.Is(err, db.ErrConflict):
		h.writeError(w, r, http.StatusConflict, "A personality with that name already exists")
	default:
		h.logger.Error("Personality store failed",
			zap.String("requestID", RequestID(r.Context())),
			zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.writeJSON(w, r, status, errorResponse{Error: msg, RequestID: RequestID(r.Context())})
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response",
			zap.String("requestID", RequestID(r.Context())),
			zap.Error(err))
	}
}
