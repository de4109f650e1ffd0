package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameHTTPRequestsTotal,
			Help: HelpTextHTTPRequestsTotal,
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricNameHTTPRequestDuration,
			Help:    HelpTextHTTPRequestDuration,
			Buckets: HTTPLatencyBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricNameHTTPRequestsInFlight,
			Help: HelpTextHTTPRequestsInFlight,
		},
	)
)

// Business Metrics
var (
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameWebhookEvents,
			Help: HelpTextWebhookEvents,
		},
		[]string{LabelOutcome},
	)

	ProductionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameProductionRuns,
			Help: HelpTextProductionRuns,
		},
		[]string{LabelStatus},
	)

	StockWriteOffs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameStockWriteOffs,
			Help: HelpTextStockWriteOffs,
		},
		[]string{LabelStatus},
	)

	StockCredits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameStockCredits,
			Help: HelpTextStockCredits,
		},
		[]string{LabelStatus},
	)

	AuditCommentErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: MetricNameAuditCommentErrors,
			Help: HelpTextAuditCommentErrors,
		},
	)
)

// Outbound CRM client metrics
var (
	BitrixCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricNameBitrixCalls,
			Help: HelpTextBitrixCalls,
		},
		[]string{LabelMethod, LabelResult},
	)

	BitrixCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    MetricNameBitrixCallDuration,
			Help:    HelpTextBitrixCallDuration,
			Buckets: BitrixLatencyBuckets,
		},
		[]string{LabelMethod},
	)
)
