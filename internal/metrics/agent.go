package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "paywatch"

// Chat model, tool, currency and ingest metrics.
var (
	ChatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Total number of chat completion requests",
		},
		[]string{"provider", "model", "status"},
	)

	ChatRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_request_duration_seconds",
			Help:      "Chat completion request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"provider", "model"},
	)

	ChatTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_tokens_total",
			Help:      "Total chat tokens consumed",
		},
		[]string{"provider", "model", "type"}, // "prompt" / "completion"
	)

	AgentSteps = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_steps",
			Help:      "Model turns taken per answered question",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 12},
		},
	)

	ToolInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_invocations_total",
			Help:      "Tool invocations by tool and outcome",
		},
		[]string{"tool", "status"}, // "ok" / "error" / "unknown"
	)

	CurrencyRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "currency_requests_total",
			Help:      "Exchange-rate API requests by outcome",
		},
		[]string{"status"},
	)

	IngestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingests_total",
			Help:      "Spreadsheet ingests by outcome",
		},
		[]string{"status"},
	)

	SnapshotGeneration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_generation",
			Help:      "Generation number of the live snapshot",
		},
	)

	SnapshotRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_rows",
			Help:      "Candidate rows in the live snapshot",
		},
	)

	SnapshotChunks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_chunks",
			Help:      "Indexed chunks in the live snapshot",
		},
	)
)

var registerAgent sync.Once

// RegisterAgentMetrics registers chat, tool, currency and ingest metrics. Safe to call repeatedly.
func RegisterAgentMetrics() {
	registerAgent.Do(func() {
		prometheus.MustRegister(
			ChatRequestsTotal,
			ChatRequestDuration,
			ChatTokensTotal,
			AgentSteps,
			ToolInvocationsTotal,
			CurrencyRequestsTotal,
			IngestsTotal,
			SnapshotGeneration,
			SnapshotRows,
			SnapshotChunks,
		)
	})
}
