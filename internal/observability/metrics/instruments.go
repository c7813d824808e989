package metrics

import "go.opentelemetry.io/otel/metric"

// HTTPMetrics bundles the request-path instruments.
type HTTPMetrics struct {
	RequestsTotal    metric.Int64Counter
	RateLimitedTotal metric.Int64Counter
	UpstreamErrors   metric.Int64Counter
	UpstreamLatency  metric.Float64Histogram
}

// NewHTTPMetrics registers the request-path instruments on the meter.
func NewHTTPMetrics(m *Meter) (*HTTPMetrics, error) {
	requests, err := m.CreateCounter("http_requests_total", "Total inbound HTTP requests")
	if err != nil {
		return nil, err
	}
	rateLimited, err := m.CreateCounter("http_rate_limited_total", "Requests rejected by the rate limiter")
	if err != nil {
		return nil, err
	}
	upstreamErrors, err := m.CreateCounter("upstream_errors_total", "Non-success responses from the table service")
	if err != nil {
		return nil, err
	}
	upstreamLatency, err := m.CreateHistogram("upstream_latency", "Latency of table service calls", "ms")
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{
		RequestsTotal:    requests,
		RateLimitedTotal: rateLimited,
		UpstreamErrors:   upstreamErrors,
		UpstreamLatency:  upstreamLatency,
	}, nil
}
