package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeteredAPI forwards every report to an inner API and also records it on
// otel instruments: broken and warning reports are counted per id and level,
// counts are recorded as a histogram per id.
type MeteredAPI struct {
	inner   API
	reports metric.Int64Counter
	counts  metric.Int64Histogram
}

func NewMeteredAPI(inner API, meter metric.Meter) (MeteredAPI, error) {
	reports, err := meter.Int64Counter(
		"tenderscrape.reports",
		metric.WithDescription("Broken and warning reports made by components."),
	)
	if err != nil {
		return MeteredAPI{}, err
	}
	counts, err := meter.Int64Histogram(
		"tenderscrape.counts",
		metric.WithDescription("Values reported through ReportCount."),
	)
	if err != nil {
		return MeteredAPI{}, err
	}
	return MeteredAPI{inner: inner, reports: reports, counts: counts}, nil
}

func (m MeteredAPI) ReportBroken(id string, params ...any) {
	m.inner.ReportBroken(id, params...)
	m.reports.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("id", id),
		attribute.String("level", "broken"),
	))
}

func (m MeteredAPI) ReportWarning(id string, params ...any) {
	m.inner.ReportWarning(id, params...)
	m.reports.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("id", id),
		attribute.String("level", "warning"),
	))
}

func (m MeteredAPI) ReportDebug(msg string, params ...any) {
	m.inner.ReportDebug(msg, params...)
}

func (m MeteredAPI) ReportCount(id string, count int64) {
	m.inner.ReportCount(id, count)
	m.counts.Record(context.Background(), count, metric.WithAttributes(attribute.String("id", id)))
}
