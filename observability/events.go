package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"tranchepool/core/events"
)

type poolMetrics struct {
	eventsTotal     *prometheus.CounterVec
	repaymentValue  *prometheus.CounterVec
	platformFees    *prometheus.CounterVec
	juniorInterest  *prometheus.CounterVec
	interestClaimed *prometheus.CounterVec
}

var (
	poolMetricsOnce sync.Once
	poolRegistry    *poolMetrics
)

// PoolMetrics returns the lazily-initialised metrics registry tracking pool
// engine events.
func PoolMetrics() *poolMetrics {
	poolMetricsOnce.Do(func() {
		poolRegistry = &poolMetrics{
			eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tranchepool",
				Subsystem: "events",
				Name:      "total",
				Help:      "Count of engine events segmented by event type.",
			}, []string{"type"}),
			repaymentValue: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tranchepool",
				Subsystem: "waterfall",
				Name:      "repaid_total",
				Help:      "Cumulative repayment value accepted per pool.",
			}, []string{"pool"}),
			platformFees: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tranchepool",
				Subsystem: "waterfall",
				Name:      "platform_fees_total",
				Help:      "Cumulative platform fees collected per pool.",
			}, []string{"pool"}),
			juniorInterest: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tranchepool",
				Subsystem: "waterfall",
				Name:      "junior_interest_total",
				Help:      "Cumulative residual interest credited to the junior tranche per pool.",
			}, []string{"pool"}),
			interestClaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tranchepool",
				Subsystem: "positions",
				Name:      "interest_claimed_total",
				Help:      "Cumulative junior interest paid out to positions per pool.",
			}, []string{"pool"}),
		}
		prometheus.MustRegister(
			poolRegistry.eventsTotal,
			poolRegistry.repaymentValue,
			poolRegistry.platformFees,
			poolRegistry.juniorInterest,
			poolRegistry.interestClaimed,
		)
	})
	return poolRegistry
}

// Record updates the counters for one engine event.
func (m *poolMetrics) Record(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	m.eventsTotal.WithLabelValues(evt.EventType()).Inc()
	switch e := evt.(type) {
	case events.RepaymentDistributed:
		m.repaymentValue.WithLabelValues(e.PoolID).Add(float64(e.Amount))
		m.platformFees.WithLabelValues(e.PoolID).Add(float64(e.PlatformFee))
		m.juniorInterest.WithLabelValues(e.PoolID).Add(float64(e.JuniorInterest))
	case events.InterestClaimed:
		m.interestClaimed.WithLabelValues(e.PoolID).Add(float64(e.Amount))
	}
}

// MetricsEmitter decorates an event emitter with Prometheus counters before
// forwarding to the wrapped sink.
type MetricsEmitter struct {
	next events.Emitter
}

// NewMetricsEmitter wraps next; a nil next forwards into a no-op sink.
func NewMetricsEmitter(next events.Emitter) *MetricsEmitter {
	if next == nil {
		next = events.NoopEmitter{}
	}
	return &MetricsEmitter{next: next}
}

// Emit implements events.Emitter.
func (m *MetricsEmitter) Emit(evt events.Event) {
	PoolMetrics().Record(evt)
	m.next.Emit(evt)
}
