package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMeteredAPI(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	recorder := NewRecorder()
	api, err := NewMeteredAPI(recorder, provider.Meter("test"))
	require.NoError(t, err)

	api.ReportWarning("fetcher.download", "timeout")
	api.ReportWarning("fetcher.download", "timeout")
	api.ReportBroken("orchestrator.listing")
	api.ReportCount("parser.parse", 120)
	api.ReportDebug("ignored by meters")

	require.Len(t, recorder.Reports(), 5)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := map[string]metricdata.Metrics{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		byName[m.Name] = m
	}

	reports, ok := byName["tenderscrape.reports"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	sums := map[string]int64{}
	for _, point := range reports.DataPoints {
		level, _ := point.Attributes.Value(attribute.Key("level"))
		sums[level.AsString()] += point.Value
	}
	require.Equal(t, map[string]int64{"warning": 2, "broken": 1}, sums)

	counts, ok := byName["tenderscrape.counts"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, counts.DataPoints, 1)
	require.Equal(t, uint64(1), counts.DataPoints[0].Count)
	require.Equal(t, int64(120), counts.DataPoints[0].Sum)
}

func TestSetupOtlpDisabled(t *testing.T) {
	shutdown, err := SetupOtlp(context.Background(), "tenderscrape", OtlpConfig{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
