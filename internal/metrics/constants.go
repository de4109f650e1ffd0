package metrics

// Metric Names

// HTTP metric names
const (
	MetricNameHTTPRequestsTotal    = "http_requests_total"
	MetricNameHTTPRequestDuration  = "http_request_duration_seconds"
	MetricNameHTTPRequestsInFlight = "http_requests_in_flight"
)

// Business metric names
const (
	MetricNameWebhookEvents      = "webhook_events_total"
	MetricNameProductionRuns     = "production_runs_total"
	MetricNameStockWriteOffs     = "stock_writeoffs_total"
	MetricNameStockCredits       = "stock_credits_total"
	MetricNameAuditCommentErrors = "audit_comment_errors_total"
	MetricNameBitrixCalls        = "bitrix_api_calls_total"
	MetricNameBitrixCallDuration = "bitrix_api_call_duration_seconds"
)

// Metric Help Text
const (
	HelpTextHTTPRequestsTotal    = "Total number of HTTP requests"
	HelpTextHTTPRequestDuration  = "HTTP request latency in seconds"
	HelpTextHTTPRequestsInFlight = "Current number of HTTP requests being served"

	HelpTextWebhookEvents      = "Total number of CRM webhook events by outcome"
	HelpTextProductionRuns     = "Total number of production runs by report status"
	HelpTextStockWriteOffs     = "Total number of material write-off attempts by status"
	HelpTextStockCredits       = "Total number of finished-good credit attempts by status"
	HelpTextAuditCommentErrors = "Total number of swallowed deal-comment failures"
	HelpTextBitrixCalls        = "Total number of outbound CRM API calls by method and result"
	HelpTextBitrixCallDuration = "Outbound CRM API call latency in seconds"
)

// Metric label names
const (
	LabelMethod  = "method"
	LabelPath    = "path"
	LabelStatus  = "status"
	LabelOutcome = "outcome"
	LabelResult  = "result"
)

// HTTPLatencyBuckets covers the expected latency range of webhook handling,
// which includes several 30s-bounded outbound CRM calls.
var HTTPLatencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// BitrixLatencyBuckets covers a single outbound call up to its timeout.
var BitrixLatencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
