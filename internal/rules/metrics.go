package rules

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// unknownRuleType labels leaves whose rule type has no descriptor.
const unknownRuleType = "unknown"

var (
	// evaluationsTotal counts top-level evaluations by scope and result
	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rulekeeper_evaluations_total",
		Help: "Total rule set evaluations by scope and result",
	}, []string{"scope", "result"})

	// evaluationDuration tracks evaluation latency including handler I/O
	evaluationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rulekeeper_evaluation_duration_seconds",
		Help:    "Rule set evaluation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us to ~2.6s
	}, []string{"scope"})

	// leafErrors counts handler and operator errors by rule type
	leafErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rulekeeper_leaf_errors_total",
		Help: "Total leaf evaluation errors by rule type",
	}, []string{"rule_type"})

	// missingHandlers counts leaves evaluated without a registered handler
	missingHandlers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rulekeeper_missing_handlers_total",
		Help: "Total leaves with no handler for their rule type",
	}, []string{"scope", "rule_type"})

	// compileErrors counts failed compilations by reason
	compileErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rulekeeper_compile_errors_total",
		Help: "Total rule set compilation failures by reason",
	}, []string{"reason"})

	// cacheRequests counts compiled tree cache lookups by result
	cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rulekeeper_cache_requests_total",
		Help: "Total compiled expression cache lookups by result",
	}, []string{"result"})
)
