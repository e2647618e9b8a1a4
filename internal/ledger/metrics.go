package ledger

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sheikh-saqib/funding-ledger/internal/native"
	"go.uber.org/zap"
)

// Metrics for monitoring service.
var (
	fundedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of accepted contributions",
			Name:      "contributions_total",
			Namespace: "fundme",
		},
	)
	withdrawalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of committed withdrawals by variant",
			Name:      "withdrawals_total",
			Namespace: "fundme",
		},
		[]string{"variant"},
	)
	rejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of rejected calls by reason",
			Name:      "rejected_total",
			Namespace: "fundme",
		},
		[]string{"reason"},
	)
	heldBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Native balance held by the ledger, in whole coins",
			Name:      "held_balance",
			Namespace: "fundme",
		},
	)
	fundersGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Current length of the contributor sequence",
			Name:      "funders",
			Namespace: "fundme",
		},
	)
)

func init() {
	prometheus.MustRegister(
		fundedTotal,
		withdrawalsTotal,
		rejectedTotal,
		heldBalance,
		fundersGauge,
	)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientContribution):
		return "insufficient_contribution"
	case errors.Is(err, ErrNotOwner):
		return "not_owner"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, native.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrStalePrice):
		return "stale_price"
	default:
		return "other"
	}
}

// updateMetrics refreshes the gauges from committed state, it's supposed to
// be called with the ledger lock held.
func (l *Ledger) updateMetrics() {
	bal, err := l.token.BalanceOf(l.store, l.address)
	if err != nil {
		l.logger.Warn("failed to read held balance", zap.Error(err))
		return
	}
	heldBalance.Set(bal.Shift(-l.nativeDecimals).InexactFloat64())

	n, err := funderCount(l.store)
	if err != nil {
		l.logger.Warn("failed to read funder count", zap.Error(err))
		return
	}
	fundersGauge.Set(float64(n))
}
