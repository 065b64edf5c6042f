package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsTotal counts consumed deposit notifications by outcome
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_deposit_notifications_total",
			Help: "Total number of deposit notifications consumed",
		},
		[]string{"outcome"},
	)

	// DepositsCreated counts newly created deposit records by chain
	DepositsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_deposits_created_total",
			Help: "Total number of deposit records created",
		},
		[]string{"chain"},
	)

	// StateTransitions counts deposit state transitions
	StateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_deposit_state_transitions_total",
			Help: "Total number of deposit state transitions",
		},
		[]string{"to_state"},
	)

	// ProcessingDuration tracks notification processing time
	ProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_notification_processing_duration_seconds",
			Help:    "Notification processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// GasEstimationsTotal counts gas estimation calls by mode and result
	GasEstimationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_gas_estimations_total",
			Help: "Total number of gas estimation calls",
		},
		[]string{"mode", "result"},
	)

	// GasEstimated tracks estimated gas totals per call
	GasEstimated = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_gas_estimated_units",
			Help:    "Estimated gas units per consolidation batch",
			Buckets: []float64{21000, 50000, 100000, 200000, 500000, 1000000},
		},
	)

	// ErrorsTotal counts errors by component and type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)
