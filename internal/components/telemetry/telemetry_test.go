package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	recorder := NewRecorder()
	scoped := NewScopedAPI("pipeline", recorder)
	scoped.ReportWarning("orchestrator.record", "T-1")
	NewScopedAPI("detail", scoped).ReportCount("extractor.documents", 3)

	reports := recorder.Reports()
	require.Len(t, reports, 2)
	require.Equal(t, Report{Level: LevelWarning, ID: "pipeline: orchestrator.record", Params: []any{"T-1"}}, reports[0])
	require.Equal(t, Report{Level: LevelCount, ID: "pipeline/detail: extractor.documents", Count: 3}, reports[1])
	require.True(t, recorder.Has(LevelCount, "extractor.documents"))
	require.False(t, recorder.Has(LevelBroken, "extractor.documents"))
}

func TestNop(t *testing.T) {
	var api API = NewScopedAPI("fetch", Nop{})
	require.NotPanics(t, func() {
		api.ReportBroken("selector.fetch-listing")
		api.ReportWarning("selector.fallback")
		api.ReportDebug("switched")
		api.ReportCount("selector.rows", 1)
	})
}
