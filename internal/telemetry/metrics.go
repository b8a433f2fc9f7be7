package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"habit-tracker/internal/query"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter  metric.Int64Counter
	RequestDuration metric.Float64Histogram
	QueryReads      metric.Int64Counter
	IndexRequests   metric.Int64Counter
}

func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("habit-tracker")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	queryReads, err := meter.Int64Counter(
		"query.reads.total",
		metric.WithDescription("Executor reads by the path that produced the result"),
	)
	if err != nil {
		return nil, err
	}

	indexRequests, err := meter.Int64Counter(
		"index.requests.total",
		metric.WithDescription("Index provisioning requests filed"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:  requestCounter,
		RequestDuration: requestDuration,
		QueryReads:      queryReads,
		IndexRequests:   indexRequests,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordQuery counts one executor read; outcome is primary, fallback or empty.
func (m *Metrics) RecordQuery(collection, outcome string) {
	m.QueryReads.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("db.collection", collection),
		attribute.String("query.outcome", outcome),
	))
}

func (m *Metrics) RecordIndexRequest(collection string, filed bool) {
	m.IndexRequests.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("db.collection", collection),
		attribute.Bool("filed", filed),
	))
}

type meteredRequester struct {
	next    query.IndexRequester
	metrics *Metrics
}

// WrapRequester counts every index request passed to next.
func (m *Metrics) WrapRequester(next query.IndexRequester) query.IndexRequester {
	return &meteredRequester{next: next, metrics: m}
}

func (r *meteredRequester) RequestIndex(ctx context.Context, spec query.IndexSpec) error {
	err := r.next.RequestIndex(ctx, spec)
	r.metrics.RecordIndexRequest(spec.Collection, err == nil)
	return err
}
