package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/RichardoC/blinky/internal/chat"
	"github.com/RichardoC/blinky/internal/db"
	"github.com/RichardoC/blinky/internal/llm"
	"github.com/RichardoC/blinky/internal/metrics"
	"github.com/RichardoC/blinky/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEngine struct {
	reply     chat.Reply
	err       error
	gotUser   int64
	gotPrompt string
	gotID     *int64
	cleared   []int64
	turns     []models.Turn
}

func (f *fakeEngine) SendPrompt(_ context.Context, userID int64, prompt string, personalityID *int64) (chat.Reply, error) {
	f.gotUser, f.gotPrompt, f.gotID = userID, prompt, personalityID
	return f.reply, f.err
}

func (f *fakeEngine) ClearConversation(_ context.Context, userID int64) error {
	f.cleared = append(f.cleared, userID)
	return f.err
}

func (f *fakeEngine) History(context.Context, int64) ([]models.Turn, error) {
	return f.turns, f.err
}

type memoryPersonalities struct {
	items  map[int64]models.Personality
	nextID int64
}

func newMemoryPersonalities() *memoryPersonalities {
	return &memoryPersonalities{items: make(map[int64]models.Personality)}
}

func (m *memoryPersonalities) ListPersonalities(context.Context) ([]models.Personality, error) {
	out := make([]models.Personality, 0, len(m.items))
	for id := int64(1); id <= m.nextID; id++ {
		if p, ok := m.items[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryPersonalities) GetPersonality(_ context.Context, id int64) (*models.Personality, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("personality %d: %w", id, db.ErrNotFound)
	}
	return &p, nil
}

func (m *memoryPersonalities) CreatePersonality(_ context.Context, p *models.Personality) error {
	for _, existing := range m.items {
		if existing.Name == p.Name {
			return db.ErrConflict
		}
	}
	m.nextID++
	p.ID = m.nextID
	m.items[p.ID] = *p
	return nil
}

func (m *memoryPersonalities) UpdatePersonality(_ context.Context, p *models.Personality) error {
	if _, ok := m.items[p.ID]; !ok {
		return db.ErrNotFound
	}
	m.items[p.ID] = *p
	return nil
}

func (m *memoryPersonalities) DeletePersonality(_ context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type countingRefresher struct{ calls int }

func (c *countingRefresher) Refresh(context.Context) error {
	c.calls++
	return nil
}

type testServer struct {
	engine    *fakeEngine
	store     *memoryPersonalities
	refresher *countingRefresher
	handler   http.Handler
}

func newTestServer(limiter *RateLimiter) *testServer {
	ts := &testServer{
		engine:    &fakeEngine{},
		store:     newMemoryPersonalities(),
		refresher: &countingRefresher{},
	}
	h := NewHandler(ts.engine, ts.store, ts.refresher, limiter, metrics.New(), zap.NewNop())
	ts.handler = h.Routes()
	return ts
}

func (ts *testServer) do(method, path, userID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set(UserHeader, userID)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func TestHandlePrompt(t *testing.T) {
	ts := newTestServer(nil)
	ts.engine.reply = chat.Reply{Text: "Hello there", Reaction: "[HAPPY]"}

	rec := ts.do(http.MethodPost, "/api/prompt", "7", `{"prompt":"hi","personality_id":3}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, map[string]string{"response": "Hello there", "reaction": "[HAPPY]"}, got)

	assert.Equal(t, int64(7), ts.engine.gotUser)
	assert.Equal(t, "hi", ts.engine.gotPrompt)
	require.NotNil(t, ts.engine.gotID)
	assert.Equal(t, int64(3), *ts.engine.gotID)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestHandlePromptOmitsMissingReaction(t *testing.T) {
	ts := newTestServer(nil)
	ts.engine.reply = chat.Reply{Text: "All good here, thanks"}

	rec := ts.do(http.MethodPost, "/api/prompt", "7", `{"prompt":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "reaction")
	assert.Nil(t, ts.engine.gotID)
}

func TestHandlePromptErrors(t *testing.T) {
	tests := []struct {
		name   string
		user   string
		body   string
		err    error
		status int
	}{
		{"missing user", "", `{"prompt":"hi"}`, nil, http.StatusBadRequest},
		{"bad user", "abc", `{"prompt":"hi"}`, nil, http.StatusBadRequest},
		{"bad body", "1", `{`, nil, http.StatusBadRequest},
		{"validation", "1", `{"prompt":""}`, fmt.Errorf("%w: empty", chat.ErrValidation), http.StatusBadRequest},
		{"not found", "1", `{"prompt":"hi"}`, fmt.Errorf("%w: personality 9", chat.ErrNotFound), http.StatusNotFound},
		{"inference", "1", `{"prompt":"hi"}`, &llm.InferenceError{Provider: "ollama", Err: errors.New("down")}, http.StatusBadGateway},
		{"other", "1", `{"prompt":"hi"}`, errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(nil)
			ts.engine.err = tt.err
			rec := ts.do(http.MethodPost, "/api/prompt", tt.user, tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var body errorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.NotEmpty(t, body.Error)
			assert.NotEmpty(t, body.RequestID)
		})
	}
}

func TestHandlePromptRateLimited(t *testing.T) {
	ts := newTestServer(NewRateLimiter(0.001, 2))

	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/prompt", "1", `{"prompt":"a"}`).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/prompt", "1", `{"prompt":"b"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, ts.do(http.MethodPost, "/api/prompt", "1", `{"prompt":"c"}`).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/prompt", "2", `{"prompt":"a"}`).Code, "other users unaffected")
}

func TestConversationEndpoints(t *testing.T) {
	ts := newTestServer(nil)
	ts.engine.turns = []models.Turn{{
		Message:  models.UserMessage{ID: 1, Content: "ping"},
		Response: &models.AIResponse{ID: 2, UserMessageID: 1, Content: "pong"},
	}}

	rec := ts.do(http.MethodGet, "/api/conversation", "5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var turns []models.Turn
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&turns))
	require.Len(t, turns, 1)
	assert.Equal(t, "pong", turns[0].Response.Content)

	rec = ts.do(http.MethodDelete, "/api/conversation", "5", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []int64{5}, ts.engine.cleared)

	ts.engine.err = fmt.Errorf("%w: user 5", chat.ErrNotFound)
	rec = ts.do(http.MethodDelete, "/api/conversation", "5", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPersonalityEndpoints(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(http.MethodPost, "/api/personalities", "", `{"name":"pirate","base_prompt":"Arr.","description":"sea"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.Personality
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, 1, ts.refresher.calls)

	rec = ts.do(http.MethodPost, "/api/personalities", "", `{"name":"pirate","base_prompt":"again"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodPost, "/api/personalities", "", `{"name":"","base_prompt":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/personalities/1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"base_prompt":"Arr."`)

	rec = ts.do(http.MethodPut, "/api/personalities/1", "", `{"name":"pirate","base_prompt":"Arr!"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Arr!", ts.store.items[1].BasePrompt)
	assert.Equal(t, 2, ts.refresher.calls)

	rec = ts.do(http.MethodGet, "/api/personalities", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Personality
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/api/personalities/1", "", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, "/api/personalities/1", "", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/personalities/1", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/personalities/abc", "", "").Code)

	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodPost, "/api/personalities/refresh", "", "").Code)
	assert.Equal(t, 4, ts.refresher.calls)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(nil)
	ts.do(http.MethodPost, "/api/prompt", "1", `{"prompt":"hi"}`)

	rec := ts.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `blinky_http_requests_total{code="200",route="POST /api/prompt"} 1`)
}

func TestRequestIDEchoed(t *testing.T) {
	ts := newTestServer(nil)
	req := httptest.NewRequest(http.MethodGet, "/api/personalities", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}
