package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts what the engine does. A nil *Metrics is valid and records nothing.
type Metrics struct {
	arrivals     *prometheus.CounterVec
	reversals    prometheus.Counter
	sideEffects  *prometheus.CounterVec
	ledgerPoints *prometheus.GaugeVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		arrivals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "invitebot_arrivals_total",
			Help: "member arrivals by outcome (credited, fake, unresolved)",
		}, []string{"outcome"}),
		reversals: factory.NewCounter(prometheus.CounterOpts{
			Name: "invitebot_reversals_total",
			Help: "credited referrals reversed on departure",
		}),
		sideEffects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "invitebot_side_effect_failures_total",
			Help: "failed gateway requests by action",
		}, []string{"action"}),
		ledgerPoints: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "invitebot_ledger_points",
			Help: "sum of ledger balances per guild",
		}, []string{"guild"}),
	}
}

func (m *Metrics) arrival(outcome string) {
	if m == nil {
		return
	}
	m.arrivals.WithLabelValues(outcome).Inc()
}

func (m *Metrics) reversal() {
	if m == nil {
		return
	}
	m.reversals.Inc()
}

func (m *Metrics) sideEffectFailed(action string) {
	if m == nil {
		return
	}
	m.sideEffects.WithLabelValues(action).Inc()
}

func (m *Metrics) ledgerTotal(guildID string, total int) {
	if m == nil {
		return
	}
	m.ledgerPoints.WithLabelValues(guildID).Set(float64(total))
}
