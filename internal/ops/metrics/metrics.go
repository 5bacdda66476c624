package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProposalsTotal tracks proposal outcomes per chain
	ProposalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stager_proposals_total",
			Help: "Total number of proposals by outcome",
		},
		[]string{"chain", "outcome"},
	)

	// StagedTransactions tracks the number of staged entries per chain
	StagedTransactions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stager_staged_transactions",
			Help: "Number of staged transactions held in memory",
		},
		[]string{"chain"},
	)

	// AdmissionDuration tracks time spent inside the per-wallet critical section
	AdmissionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stager_admission_duration_seconds",
			Help:    "Time spent admitting a proposal, including chain calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain"},
	)

	// RPCCallsTotal tracks RPC calls per chain and provider
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stager_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"chain", "provider", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per chain and provider
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stager_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"chain", "provider", "error_type"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stager_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain", "provider", "method"},
	)

	// HTTPRequestsTotal tracks API requests by route and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stager_http_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)
)
