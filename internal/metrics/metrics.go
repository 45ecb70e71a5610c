package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // Suggestions counts suggestion requests by strategy and outcome
    Suggestions = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "assignment_suggestions_total", Help: "Suggestion requests by strategy and outcome."},
        []string{"strategy", "outcome"},
    )
    // Reassignments counts reassignment requests by strategy and outcome
    Reassignments = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "assignment_reassignments_total", Help: "Reassignment requests by strategy and outcome."},
        []string{"strategy", "outcome"},
    )
    // CandidatesEvaluated counts scored driver candidates per operation
    CandidatesEvaluated = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "assignment_candidates_evaluated_total", Help: "Driver candidates scored, by operation."},
        []string{"operation"},
    )
    // ScoringDuration records end-to-end scoring time per operation
    ScoringDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "assignment_scoring_duration_seconds", Help: "Scoring duration in seconds.", Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1}},
        []string{"operation"},
    )

    // WebhookDeliveries counts webhook delivery outcomes by event type and status
    WebhookDeliveries = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
        []string{"event_type", "status"},
    )
    // WebhookLatency tracks webhook delivery latencies in milliseconds
    WebhookLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
        []string{"event_type", "status"},
    )
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
    regOnce.Do(func() {
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(Suggestions)
        Registry.MustRegister(Reassignments)
        Registry.MustRegister(CandidatesEvaluated)
        Registry.MustRegister(ScoringDuration)
        Registry.MustRegister(WebhookDeliveries)
        Registry.MustRegister(WebhookLatency)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
