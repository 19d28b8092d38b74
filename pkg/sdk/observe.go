package paywatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// clientMetrics are the series exported through WithPrometheus.
type clientMetrics struct {
	calls   *prometheus.CounterVec   // endpoint, outcome
	latency *prometheus.HistogramVec // endpoint
	tokens  *prometheus.CounterVec   // kind
}

// answerBuckets span a cached health check up to a multi-step agent answer.
var answerBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	m := &clientMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paywatch",
			Subsystem: "client",
			Name:      "calls_total",
			Help:      "Client calls by endpoint and outcome (ok, a server error code, timeout or transport).",
		}, []string{"endpoint", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "paywatch",
			Subsystem: "client",
			Name:      "call_duration_seconds",
			Help:      "Client call latency in seconds.",
			Buckets:   answerBuckets,
		}, []string{"endpoint"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paywatch",
			Subsystem: "client",
			Name:      "answer_tokens_total",
			Help:      "Tokens reported by the server for answered questions, by kind.",
		}, []string{"kind"}),
	}
	if err := adopt(reg, &m.calls); err != nil {
		return nil, err
	}
	if err := adopt(reg, &m.latency); err != nil {
		return nil, err
	}
	if err := adopt(reg, &m.tokens); err != nil {
		return nil, err
	}
	return m, nil
}

// adopt registers c, or points c at the collector another Client already registered.
func adopt[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var dup prometheus.AlreadyRegisteredError
	if !errors.As(err, &dup) {
		return fmt.Errorf("paywatch: register metric: %w", err)
	}
	existing, ok := dup.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("paywatch: metric already registered as %T", dup.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer logs and meters client calls. A nil observer records nothing.
type observer struct {
	logger  *slog.Logger
	metrics *clientMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newClientMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

// call tracks one in-flight request.
type call struct {
	obs      *observer
	endpoint string
	start    time.Time
	attrs    []any
}

func (o *observer) begin(endpoint string) *call {
	if o == nil {
		return nil
	}
	return &call{obs: o, endpoint: endpoint, start: time.Now()}
}

// with attaches log attributes reported when the call ends.
func (c *call) with(attrs ...any) {
	if c == nil {
		return
	}
	c.attrs = append(c.attrs, attrs...)
}

// usage meters the token spend of an answered question.
func (c *call) usage(u Usage) {
	if c == nil {
		return
	}
	if m := c.obs.metrics; m != nil {
		m.tokens.WithLabelValues("prompt").Add(float64(u.PromptTokens))
		m.tokens.WithLabelValues("completion").Add(float64(u.CompletionTokens))
		m.tokens.WithLabelValues("embedding").Add(float64(u.EmbeddingTokens))
	}
	c.with("prompt_tokens", u.PromptTokens, "completion_tokens", u.CompletionTokens, "tool_calls", u.ToolCalls)
}

func (c *call) end(err error) {
	if c == nil {
		return
	}
	elapsed := time.Since(c.start)
	result := outcome(err)

	if m := c.obs.metrics; m != nil {
		m.calls.WithLabelValues(c.endpoint, result).Inc()
		m.latency.WithLabelValues(c.endpoint).Observe(elapsed.Seconds())
	}

	log := c.obs.logger
	if log == nil {
		return
	}
	attrs := append([]any{"endpoint", c.endpoint, "outcome", result, "duration", elapsed}, c.attrs...)
	if err != nil {
		log.Warn("paywatch call failed", append(attrs, "error", err)...)
		return
	}
	log.Debug("paywatch call completed", attrs...)
}

// outcome labels an error by the server's error code where there is one.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code != "" {
			return apiErr.Code
		}
		return "http_" + strconv.Itoa(apiErr.StatusCode)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "transport"
}
