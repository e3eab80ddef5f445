package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TaskRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcrew_task_runs_total",
			Help: "Total number of crew task executions by outcome",
		},
		[]string{"task", "status"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobcrew_task_duration_seconds",
			Help:    "Duration of crew task execution in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"task"},
	)

	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcrew_tool_calls_total",
			Help: "Total number of agent tool invocations by outcome",
		},
		[]string{"tool", "status"},
	)

	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcrew_llm_requests_total",
			Help: "Total number of chat completion requests by outcome",
		},
		[]string{"status"},
	)

	LLMTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcrew_llm_tokens_total",
			Help: "Total number of tokens reported by the language model",
		},
		[]string{"kind"},
	)

	SearchCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobcrew_search_cache_total",
			Help: "Search cache lookups by result",
		},
		[]string{"result"},
	)
)
