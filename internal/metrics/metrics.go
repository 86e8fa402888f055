// Package metrics Prometheus 指标，通过 /metrics 暴露
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rewardhub"

var (
	// CallbacksTotal 回调处理结果：credited|duplicate|rejected|invalid|signature|unknown_provider|user_not_found|error
	CallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "callback",
			Name:      "requests_total",
			Help:      "Provider callbacks partitioned by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	CallbackDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "callback",
			Name:      "duration_seconds",
			Help:      "End-to-end callback processing time.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	PointsCreditedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "points_credited_total",
			Help:      "Points credited to user balances by source.",
		},
		[]string{"source"},
	)

	WithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "withdrawal",
			Name:      "transitions_total",
			Help:      "Withdrawal state transitions partitioned by resulting status.",
		},
		[]string{"status"},
	)

	FraudRecommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fraud",
			Name:      "recommendations_total",
			Help:      "Fraud scorer recommendations.",
		},
		[]string{"recommendation"},
	)

	FraudScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fraud",
			Name:      "risk_score",
			Help:      "Distribution of withdrawal risk scores.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		},
	)

	OutboxPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "publish_total",
			Help:      "Outbox publish attempts partitioned by result.",
		},
		[]string{"result"},
	)
)
