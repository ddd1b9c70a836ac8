package app

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/cellcare/cellcare_backend/config"
	"github.com/cellcare/cellcare_backend/internal/service/dedup"
	"github.com/cellcare/cellcare_backend/internal/worker"
	"github.com/cellcare/cellcare_backend/pkg/observability"
)

// WorkerModule registers the scheduled merge and the metrics endpoint.
var WorkerModule = fx.Module("workers",
	fx.Invoke(RegisterWorkers),
)

type WorkerParams struct {
	fx.In

	Lc       fx.Lifecycle
	Cfg      *config.Config
	Merger   *dedup.Merger
	DB       *sql.DB                 `optional:"true"`
	Provider *observability.Provider `optional:"true"`
}

func RegisterWorkers(p WorkerParams) {
	if p.Cfg.Dedup.Schedule.Enabled {
		interval := time.Duration(p.Cfg.Dedup.Schedule.IntervalMinutes) * time.Minute
		scheduler := worker.NewScheduler(p.Merger, interval, p.Cfg.Dedup.Schedule.RunOnStart)
		p.Lc.Append(fx.Hook{
			OnStart: scheduler.Start,
			OnStop:  scheduler.Stop,
		})
	} else {
		slog.Info("dedup_worker: schedule disabled")
	}

	metricsCfg := p.Cfg.Observability.Metrics
	if metricsCfg.Enabled && p.Provider != nil {
		var ready worker.ReadyFunc
		if p.DB != nil {
			ready = func(ctx context.Context) bool { return p.DB.PingContext(ctx) == nil }
		}
		srv := worker.NewMetricsServer(metricsCfg.Addr, metricsCfg.Path, p.Provider.MetricsHandler(), ready)
		p.Lc.Append(fx.Hook{
			OnStart: srv.Start,
			OnStop:  srv.Stop,
		})
	}
}
