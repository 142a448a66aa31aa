// metrics.go - Prometheus metrics of the pool daemon.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"shielder/internal/shielder"
)

var (
	// ============================================
	// Pool transitions
	// ============================================
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shielder_transitions_total",
			Help: "Pool entry point calls by relation and result code",
		},
		[]string{"relation", "result"},
	)

	TreeLeaves = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shielder_tree_leaves",
		Help: "Number of note commitments in the Merkle tree",
	})

	Nullifiers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shielder_nullifiers",
		Help: "Number of revealed nullifiers",
	})

	RegisteredTokens = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shielder_registered_tokens",
		Help: "Number of registered token ids",
	})

	// ============================================
	// Proofs
	// ============================================
	VerifyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shielder_verify_duration_seconds",
			Help:    "Proof verification latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"backend", "relation"},
	)

	ProveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shielder_prove_duration_seconds",
			Help:    "Proof generation latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		},
		[]string{"backend", "relation"},
	)

	// ============================================
	// Events and transport
	// ============================================
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shielder_events_published_total",
			Help: "Pool events handed to the event bus by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shielder_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shielder_http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shielder_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shielder_rate_limited_total",
		Help: "Requests rejected by the per-client rate limiter",
	})
)

// PoolStats is the subset of the pool the gauges read.
type PoolStats interface {
	NextLeafIndex() uint32
	NullifierCount() int
	RegisteredTokens() []shielder.Scalar
}

// ObservePool refreshes the pool gauges.
func ObservePool(p PoolStats) {
	TreeLeaves.Set(float64(p.NextLeafIndex()))
	Nullifiers.Set(float64(p.NullifierCount()))
	RegisteredTokens.Set(float64(len(p.RegisteredTokens())))
}

// instrumented times every call of the wrapped backend.
type instrumented struct {
	shielder.ProvingBackend
}

// InstrumentBackend wraps b so prove and verify latencies land in the histograms above.
func InstrumentBackend(b shielder.ProvingBackend) shielder.ProvingBackend {
	return instrumented{b}
}

func (i instrumented) ProveCreation(st shielder.CreationStatement, w shielder.CreationWitness) (*shielder.Proof, error) {
	defer observe(ProveDuration, i.Name(), shielder.RelationCreation, time.Now())
	return i.ProvingBackend.ProveCreation(st, w)
}

func (i instrumented) ProveUpdate(st shielder.UpdateStatement, w shielder.UpdateWitness) (*shielder.Proof, error) {
	defer observe(ProveDuration, i.Name(), shielder.RelationUpdate, time.Now())
	return i.ProvingBackend.ProveUpdate(st, w)
}

func (i instrumented) Verify(rel shielder.Relation, proof []byte, publicInputs []shielder.Scalar) error {
	defer observe(VerifyDuration, i.Name(), rel, time.Now())
	return i.ProvingBackend.Verify(rel, proof, publicInputs)
}

func observe(h *prometheus.HistogramVec, backend string, rel shielder.Relation, start time.Time) {
	h.WithLabelValues(backend, rel.String()).Observe(time.Since(start).Seconds())
}
