package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OtelAPI mirrors reports into otel instruments: broken and warning reports
// increment counters tagged by id, counts are recorded as gauges.
// Debug reports are dropped.
type OtelAPI struct {
	broken   metric.Int64Counter
	warnings metric.Int64Counter
	counts   metric.Int64Gauge
}

// NewOtelAPI creates instruments on the global meter provider, so SetupOtel
// should be called before it.
func NewOtelAPI(meterName string) (OtelAPI, error) {
	meter := otel.Meter(meterName)

	broken, err := meter.Int64Counter("reports.broken")
	if err != nil {
		return OtelAPI{}, err
	}
	warnings, err := meter.Int64Counter("reports.warning")
	if err != nil {
		return OtelAPI{}, err
	}
	counts, err := meter.Int64Gauge("reports.count")
	if err != nil {
		return OtelAPI{}, err
	}

	return OtelAPI{
		broken:   broken,
		warnings: warnings,
		counts:   counts,
	}, nil
}

func (o OtelAPI) ReportBroken(id string, params ...any) {
	o.broken.Add(context.Background(), 1, metric.WithAttributes(attribute.String("id", id)))
}

func (o OtelAPI) ReportWarning(id string, params ...any) {
	o.warnings.Add(context.Background(), 1, metric.WithAttributes(attribute.String("id", id)))
}

func (o OtelAPI) ReportDebug(msg string, params ...any) {}

func (o OtelAPI) ReportCount(id string, count int64) {
	o.counts.Record(context.Background(), count, metric.WithAttributes(attribute.String("id", id)))
}

var perfMeter = otel.Meter("go.perf_stats")

// InstrumentPerfStats records runtime gauges every 30 seconds until ctx is done.
func InstrumentPerfStats(ctx context.Context) {
	cpuGauge, _ := perfMeter.Float64Gauge("cpu_usage")
	memoryGauge, _ := perfMeter.Int64Gauge("allocated_mb")
	liveObjectsGauge, _ := perfMeter.Int64Gauge("live_objects")
	goroutineGauge, _ := perfMeter.Int64Gauge("goroutine_count")

	go func() {
		var memStats runtime.MemStats
		ticker := time.NewTicker(time.Second * 30)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runtime.ReadMemStats(&memStats)

				cpuUsage, err := cpu.PercentWithContext(ctx, time.Second*5, false)
				if err == nil && len(cpuUsage) > 0 {
					cpuGauge.Record(ctx, cpuUsage[0])
				} else if err != nil {
					slog.Warn("failed to read cpu usage", "err", err)
				}

				memoryGauge.Record(ctx, int64(memStats.Alloc/1_000_000))
				liveObjectsGauge.Record(ctx, int64(memStats.Mallocs)-int64(memStats.Frees))
				goroutineGauge.Record(ctx, int64(runtime.NumGoroutine()))
			case <-ctx.Done():
				return
			}
		}
	}()
}
