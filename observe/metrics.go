package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// QueryMetrics records cache and fetch activity per endpoint. It satisfies
// the store's Metrics interface.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: recording never fails; instrument creation errors surface in
//   NewQueryMetrics only.
type QueryMetrics struct {
	cacheHits    metric.Int64Counter
	cacheMisses  metric.Int64Counter
	fetchTotal   metric.Int64Counter
	fetchErrors  metric.Int64Counter
	fetchLatency metric.Float64Histogram
	uploadTotal  metric.Int64Counter
	uploadErrors metric.Int64Counter
}

// NewQueryMetrics creates the instrument set on the given meter.
func NewQueryMetrics(meter metric.Meter) (*QueryMetrics, error) {
	var m QueryMetrics
	var err error

	if m.cacheHits, err = meter.Int64Counter(
		"query.cache.hits",
		metric.WithDescription("Reads served from the cache"),
		metric.WithUnit("{read}"),
	); err != nil {
		return nil, err
	}
	if m.cacheMisses, err = meter.Int64Counter(
		"query.cache.misses",
		metric.WithDescription("Reads that required a fetch"),
		metric.WithUnit("{read}"),
	); err != nil {
		return nil, err
	}
	if m.fetchTotal, err = meter.Int64Counter(
		"query.fetch.total",
		metric.WithDescription("Network fetches performed"),
		metric.WithUnit("{fetch}"),
	); err != nil {
		return nil, err
	}
	if m.fetchErrors, err = meter.Int64Counter(
		"query.fetch.errors",
		metric.WithDescription("Network fetches that failed"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}
	if m.fetchLatency, err = meter.Float64Histogram(
		"query.fetch.duration_ms",
		metric.WithDescription("Fetch duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.uploadTotal, err = meter.Int64Counter(
		"upload.total",
		metric.WithDescription("Upload attempts"),
		metric.WithUnit("{upload}"),
	); err != nil {
		return nil, err
	}
	if m.uploadErrors, err = meter.Int64Counter(
		"upload.errors",
		metric.WithDescription("Upload attempts that failed"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}

	return &m, nil
}

// RecordHit counts a read served from the cache.
func (m *QueryMetrics) RecordHit(ctx context.Context, endpoint string) {
	m.cacheHits.Add(ctx, 1, endpointAttr(endpoint))
}

// RecordMiss counts a read that had to fetch.
func (m *QueryMetrics) RecordMiss(ctx context.Context, endpoint string) {
	m.cacheMisses.Add(ctx, 1, endpointAttr(endpoint))
}

// RecordFetch records one network fetch with its duration and outcome.
func (m *QueryMetrics) RecordFetch(ctx context.Context, endpoint string, duration time.Duration, err error) {
	opt := endpointAttr(endpoint)
	m.fetchTotal.Add(ctx, 1, opt)
	if err != nil {
		m.fetchErrors.Add(ctx, 1, opt)
	}
	m.fetchLatency.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordUpload records one upload attempt.
func (m *QueryMetrics) RecordUpload(ctx context.Context, err error) {
	m.uploadTotal.Add(ctx, 1)
	if err != nil {
		m.uploadErrors.Add(ctx, 1)
	}
}

func endpointAttr(endpoint string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("query.endpoint", endpoint))
}
