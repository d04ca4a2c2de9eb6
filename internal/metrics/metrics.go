package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for AnalysesTotal
const (
	OutcomeAnalyzed     = "analyzed"
	OutcomeCached       = "cached"
	OutcomeRejected     = "rejected"
	OutcomeNotTriggered = "not_triggered"
	OutcomeRateLimited  = "rate_limited"
	OutcomeUnavailable  = "unavailable"
)

// Metrics provides observability for the claim pipeline.
// Tracks gate decisions, provider latency, parse tiers and limiter occupancy.
type Metrics struct {
	AnalysesTotal      *prometheus.CounterVec
	RateLimitedTotal   *prometheus.CounterVec
	ParseTierTotal     *prometheus.CounterVec
	ProviderDuration   *prometheus.HistogramVec
	TrackedIdentifiers prometheus.Gauge
	ActiveIdentifiers  prometheus.Gauge
	GlobalRemaining    prometheus.Gauge
	SweptIdentifiers   prometheus.Counter
}

// New registers all pipeline metrics with reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		AnalysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claimgate_analyses_total",
			Help: "Analysis requests by mode and outcome",
		}, []string{"mode", "outcome"}),
		RateLimitedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claimgate_rate_limited_total",
			Help: "Requests denied by a rate gate",
		}, []string{"scope"}),
		ParseTierTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "claimgate_parse_tier_total",
			Help: "Parsed replies by the strategy that produced them",
		}, []string{"mode", "tier"}),
		ProviderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "claimgate_provider_duration_seconds",
			Help:    "Duration of external analysis calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"provider", "status"}),
		TrackedIdentifiers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "claimgate_ratelimit_tracked_identifiers",
			Help: "Identifiers with a window held by the per-identifier limiter",
		}),
		ActiveIdentifiers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "claimgate_ratelimit_active_identifiers",
			Help: "Identifiers with at least one admission inside the window",
		}),
		GlobalRemaining: factory.NewGauge(prometheus.GaugeOpts{
			Name: "claimgate_ratelimit_global_remaining",
			Help: "Admissions left in the global one-minute window",
		}),
		SweptIdentifiers: factory.NewCounter(prometheus.CounterOpts{
			Name: "claimgate_ratelimit_swept_identifiers_total",
			Help: "Idle identifiers dropped by the periodic sweep",
		}),
	}
}

// IncrementAnalysis records a pipeline outcome
func (m *Metrics) IncrementAnalysis(mode, outcome string) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(mode, outcome).Inc()
}

// IncrementRateLimited records a denial by scope ("identifier" or "global")
func (m *Metrics) IncrementRateLimited(scope string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(scope).Inc()
}

// IncrementParseTier records which parse strategy produced a result
func (m *Metrics) IncrementParseTier(mode, tier string) {
	if m == nil {
		return
	}
	m.ParseTierTotal.WithLabelValues(mode, tier).Inc()
}

// ObserveProvider records the duration of a provider call.
// Call with time.Now() at the start of the call.
func (m *Metrics) ObserveProvider(provider string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ProviderDuration.WithLabelValues(provider, status).Observe(time.Since(start).Seconds())
}

// SetLimiterOccupancy updates the limiter gauges
func (m *Metrics) SetLimiterOccupancy(tracked, active, globalRemaining int) {
	if m == nil {
		return
	}
	m.TrackedIdentifiers.Set(float64(tracked))
	m.ActiveIdentifiers.Set(float64(active))
	m.GlobalRemaining.Set(float64(globalRemaining))
}

// AddSwept records identifiers dropped by a sweep
func (m *Metrics) AddSwept(n int) {
	if m == nil {
		return
	}
	m.SweptIdentifiers.Add(float64(n))
}
