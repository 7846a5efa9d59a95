package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ctxKey int

const requestIDKey ctxKey = iota

// RequestIDHeader is echoed back, or generated when the caller sent none.
const RequestIDHeader = "X-Request-ID"

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Routes wires every endpoint onto a new mux wrapped in the request
// middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/prompt", h.HandlePrompt)
	mux.HandleFunc("GET /api/conversation", h.GetConversation)
	mux.HandleFunc("DELETE /api/conversation", h.ClearConversation)

	mux.HandleFunc("GET /api/personalities", h.ListPersonalities)
	mux.HandleFunc("POST /api/personalities", h.CreatePersonality)
	mux.HandleFunc("POST /api/personalities/refresh", h.RefreshPersonalities)
	mux.HandleFunc("GET /api/personalities/{id}", h.GetPersonality)
	mux.HandleFunc("PUT /api/personalities/{id}", h.UpdatePersonality)
	mux.HandleFunc("DELETE /api/personalities/{id}", h.DeletePersonality)

	mux.Handle("GET /metrics", h.metrics.Handler())

	return h.middleware(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, id))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		h.metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		h.metrics.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		h.logger.Debug("Handled request",
			zap.String("requestID", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", elapsed))
	})
}
