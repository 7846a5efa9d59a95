// Package metrics provides Prometheus metrics for the chat backend
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
)

// Metrics holds all instruments. Each instance owns its registry so tests
// can create as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	TurnsTotal        *prometheus.CounterVec
	InferenceDuration *prometheus.HistogramVec
	PromptTokens      prometheus.Histogram
	ReactionsTotal    *prometheus.CounterVec
	ClearsTotal       prometheus.Counter

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blinky_turns_total",
				Help: "Prompt turns processed, by outcome",
			},
			[]string{"outcome"},
		),
		InferenceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blinky_inference_duration_seconds",
				Help:    "Duration of model calls in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
			},
			[]string{"outcome"},
		),
		PromptTokens: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "blinky_prompt_tokens",
				Help:    "Estimated token count of assembled prompts",
				Buckets: prometheus.ExponentialBuckets(64, 2, 9),
			},
		),
		ReactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blinky_reactions_total",
				Help: "Replies by whether the model tagged a reaction",
			},
			[]string{"tagged"},
		),
		ClearsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "blinky_conversation_clears_total",
				Help: "Conversations cleared",
			},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blinky_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "blinky_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

// TrackPersonalities exposes the size of the personality cache.
func (m *Metrics) TrackPersonalities(count func() int) {
	promauto.With(m.Registry).NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "blinky_personalities_cached",
			Help: "Personalities held in the in-memory cache",
		},
		func() float64 { return float64(count()) },
	)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
