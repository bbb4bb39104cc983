package telemetry

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel/metric"
)

type perfGauges struct {
	cpu        metric.Float64Gauge
	memory     metric.Int64Gauge
	goroutines metric.Int64Gauge
}

func newPerfGauges(meter metric.Meter) (perfGauges, error) {
	cpu, err := meter.Float64Gauge("process.cpu_percent")
	if err != nil {
		return perfGauges{}, err
	}
	memory, err := meter.Int64Gauge("process.rss_mb")
	if err != nil {
		return perfGauges{}, err
	}
	goroutines, err := meter.Int64Gauge("process.goroutines")
	if err != nil {
		return perfGauges{}, err
	}
	return perfGauges{cpu: cpu, memory: memory, goroutines: goroutines}, nil
}

func (g perfGauges) sample(ctx context.Context, proc *process.Process) {
	cpu, err := proc.CPUPercentWithContext(ctx)
	if err == nil {
		g.cpu.Record(ctx, cpu)
	} else {
		slog.Debug("failed to read cpu usage", "err", err)
	}
	mem, err := proc.MemoryInfoWithContext(ctx)
	if err == nil {
		g.memory.Record(ctx, int64(mem.RSS/1_000_000))
	} else {
		slog.Debug("failed to read memory usage", "err", err)
	}
	g.goroutines.Record(ctx, int64(runtime.NumGoroutine()))
}

// InstrumentPerfStats samples the cpu, memory and goroutines of this process
// every interval until ctx is done. The chrome child processes are not counted.
func InstrumentPerfStats(ctx context.Context, meter metric.Meter, interval time.Duration) error {
	gauges, err := newPerfGauges(meter)
	if err != nil {
		return err
	}
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				gauges.sample(ctx, proc)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
