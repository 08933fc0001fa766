package commands

import (
	"context"
	"database/sql"
	"log/slog"
	"pricescout-backend/internal/components/chrono"
	"pricescout-backend/internal/components/telemetry"
	"pricescout-backend/internal/db"
	"pricescout-backend/internal/extraction"
	"pricescout-backend/internal/pricemonitor"
	"pricescout-backend/pkg/serviceutil"
)

// app holds everything a command may need, the parts a command does not ask
// for are left nil.
type app struct {
	cfg   Config
	clock chrono.StandardImpl
	tel   telemetry.API
	otel  telemetry.Otel

	extractor *extraction.Client
	sqlDb     *sql.DB
	store     pricemonitor.Store
}

type appNeeds struct {
	extractor bool
	store     bool
}

func setupTelemetry(ctx context.Context, cfg telemetry.OtelConfig) (telemetry.API, telemetry.Otel) {
	otel, err := telemetry.SetupOtel(ctx, "pricescout", cfg)
	if err != nil {
		serviceutil.Fatal("failed to setup otel", err)
	}
	if otel.MeterProvider == nil {
		return telemetry.SlogAPI{}, otel
	}

	otelApi, err := telemetry.NewOtelAPI("pricescout")
	if err != nil {
		serviceutil.Fatal("failed to create otel instruments", err)
	}
	return telemetry.MultiAPI{telemetry.SlogAPI{}, otelApi}, otel
}

func openApp(ctx context.Context, needs appNeeds) *app {
	cfg, err := readConfig()
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	clock, err := chrono.NewStandardImpl(cfg.Timezone)
	if err != nil {
		serviceutil.Fatal("failed to load timezone", err)
	}

	tel, otel := setupTelemetry(ctx, cfg.Telemetry)
	a := &app{
		cfg:   cfg,
		clock: clock,
		tel:   tel,
		otel:  otel,
	}

	if needs.extractor {
		opts, err := cfg.Extraction.ClientOptions()
		if err != nil {
			serviceutil.Fatal("failed to configure extraction client", err)
		}
		a.extractor = extraction.NewClient(opts, tel)
	}

	if needs.store {
		sqlDb, err := cfg.Database.OpenDB(db.Schema)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		a.sqlDb = sqlDb
		a.store = pricemonitor.NewStore(db.New(sqlDb), db.NewMakeTx(sqlDb), clock, tel)
	}

	return a
}

func (a *app) notifier() pricemonitor.Notifier {
	if !a.cfg.Notify.Enabled() {
		return nil
	}
	return pricemonitor.NewEmailNotifier(a.cfg.Notify)
}

func (a *app) Close() {
	if a.sqlDb != nil {
		err := a.sqlDb.Close()
		if err != nil {
			slog.Warn("failed to close db", "err", err)
		}
	}

	ctx, cancel := serviceutil.ShutdownContext()
	defer cancel()
	err := a.otel.Shutdown(ctx)
	if err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}
}
