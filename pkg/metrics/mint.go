package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Mint outcomes.
const (
	MintOutcomeMinted  = "minted"
	MintOutcomePending = "pending"
	MintOutcomeSkipped = "skipped"
	MintOutcomeFailed  = "failed"
	// broadcast but no receipt yet; the record keeps its hash until reconciled
	MintOutcomeUnconfirmed = "unconfirmed"
)

// MintMetrics counts mint attempts by outcome and the bookkeeping writes that failed after a successful chain call.
type MintMetrics struct {
	outcomes    *prometheus.CounterVec
	bookkeeping prometheus.Counter
	drained     prometheus.Counter
}

// NewMintMetrics registers the mint metrics on the provided registerer.
func NewMintMetrics(reg prometheus.Registerer) *MintMetrics {
	if reg == nil {
		return &MintMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mint_outcomes_total",
		Help: "Mint orchestrator results by outcome.",
	}, []string{"outcome", "kind"})
	bookkeeping := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mint_bookkeeping_failures_total",
		Help: "Mints confirmed on chain whose local record could not be marked minted.",
	})
	drained := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wallet_drain_minted_total",
		Help: "Pending mints completed by wallet reconciliation.",
	})
	reg.MustRegister(outcomes, bookkeeping, drained)
	return &MintMetrics{
		outcomes:    outcomes,
		bookkeeping: bookkeeping,
		drained:     drained,
	}
}

// IncOutcome records a mint result. kind is "founder" or "location".
func (m *MintMetrics) IncOutcome(outcome, kind string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome), normalizeLabel(kind)).Inc()
}

// IncBookkeepingFailure records a minted token whose record update failed.
func (m *MintMetrics) IncBookkeepingFailure() {
	if m == nil || m.bookkeeping == nil {
		return
	}
	m.bookkeeping.Inc()
}

// AddDrained records tokens minted by a wallet drain.
func (m *MintMetrics) AddDrained(n int) {
	if m == nil || m.drained == nil || n <= 0 {
		return
	}
	m.drained.Add(float64(n))
}
