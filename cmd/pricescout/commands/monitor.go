package commands

import (
	"log/slog"
	"pricescout-backend/internal/components/chrono"
	"pricescout-backend/internal/components/telemetry"
	"pricescout-backend/internal/pricemonitor"
	"pricescout-backend/pkg/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	monitorDaemon bool
	monitorCron   string
)

func init() {
	monitorRunCmd.Flags().BoolVar(&monitorDaemon, "daemon", false, "Keep running and start a cycle on every tick of the cron schedule.")
	monitorRunCmd.Flags().StringVar(&monitorCron, "cron", "", "The cron schedule of the daemon, defaults to monitor.cron.")

	monitorCmd.AddCommand(monitorRunCmd)
	rootCmd.AddCommand(monitorCmd)
}

func renderChanges(changes []pricemonitor.Change) {
	t := newTable()
	t.AppendHeader(table.Row{"Detected", "Source", "Old", "New", "Change"})
	for _, c := range changes {
		t.AppendRow(table.Row{
			formatTime(c.DetectedAt),
			c.SourceName,
			c.OldPrice,
			c.NewPrice,
			formatPercent(c.ChangePercent),
		})
	}
	t.Render()
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Records the current price of every active source.",
}

var monitorRunCmd = &cobra.Command{
	Use:   "run [--daemon [--cron <spec>]]",
	Short: "Runs a monitoring cycle, or keeps running them on a schedule with --daemon.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx, appNeeds{extractor: true, store: true})
		defer a.Close()

		opts, err := a.cfg.Monitor.Options(a.notifier())
		if err != nil {
			serviceutil.Fatal("failed to configure monitor", err)
		}
		monitor := pricemonitor.NewMonitor(a.store, a.extractor, a.clock, opts, a.tel)

		registered, err := monitor.RegisterConfigured(ctx, a.cfg.Monitor.Sources)
		if err != nil {
			serviceutil.Fatal("failed to register configured sources", err)
		}
		if registered > 0 {
			slog.Info("registered configured sources", "count", registered)
		}

		report, err := monitor.RunCycle(ctx)
		if err != nil {
			serviceutil.Fatal("monitoring cycle failed", err)
		}
		slog.Info(
			"monitoring cycle finished",
			"processed", report.Processed,
			"failed", report.Failed,
			"changes", len(report.Changes),
		)
		if len(report.Changes) > 0 {
			renderChanges(report.Changes)
		}

		if !monitorDaemon {
			return
		}

		spec := monitorCron
		if spec == "" {
			spec = a.cfg.Monitor.Cron
		}
		cron := chrono.NewStandardCron(a.clock, a.tel)
		err = monitor.Schedule(ctx, cron, spec)
		if err != nil {
			serviceutil.Fatal("failed to schedule monitor", err)
		}
		telemetry.InstrumentPerfStats(ctx)

		slog.Info("monitor daemon started", "cron", spec)
		<-ctx.Done()

		shutdownCtx, cancel := serviceutil.ShutdownContext()
		defer cancel()
		cron.Stop(shutdownCtx)
	},
}
