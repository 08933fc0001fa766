package pricemonitor

import (
	"context"
	"encoding/json"
	"errors"
	"pricescout-backend/internal/components/assert"
	"pricescout-backend/internal/components/chrono"
	"pricescout-backend/internal/components/telemetry"
	"time"
)

const (
	report_monitor_source = "monitor.source"
	report_monitor_cycle  = "monitor.cycle"
	report_monitor_notify = "monitor.notify"
)

const DefaultDelay = 2 * time.Second

// Extractor runs a single extraction, *extraction.Client implements it.
type Extractor interface {
	Extract(ctx context.Context, url, goal string) (json.RawMessage, error)
}

type MonitorOptions struct {
	// Delay is slept between two sources of a cycle, it defaults to DefaultDelay.
	// A negative delay disables sleeping.
	Delay time.Duration
	// Notifier is optional.
	Notifier Notifier
}

type CycleReport struct {
	Processed int
	Failed    int
	Changes   []Change
}

// SourceConfig is a source listed in configuration.
type SourceConfig struct {
	Name           string `json:"name"`
	URL            string `json:"url"`
	ExtractionGoal string `json:"extraction_goal"`
}

// Monitor extracts the current price of every active source and records it.
type Monitor struct {
	store     Store
	extractor Extractor
	clock     chrono.API
	tel       telemetry.API
	delay     time.Duration
	notifier  Notifier
}

func NewMonitor(store Store, extractor Extractor, clock chrono.API, opts MonitorOptions, tel telemetry.API) Monitor {
	assert.NotNil(extractor, "extractor")
	assert.NotNil(clock, "clock")
	assert.NotNil(tel, "tel")

	if opts.Delay == 0 {
		opts.Delay = DefaultDelay
	}

	return Monitor{
		store:     store,
		extractor: extractor,
		clock:     clock,
		tel:       telemetry.NewScopedAPI("pricemonitor", tel),
		delay:     opts.Delay,
		notifier:  opts.Notifier,
	}
}

// RegisterConfigured registers every configured source that is not tracked yet
// and returns how many were new.
func (m Monitor) RegisterConfigured(ctx context.Context, sources []SourceConfig) (int, error) {
	registered := 0
	for _, src := range sources {
		_, err := m.store.RegisterSource(ctx, src.Name, src.URL, src.ExtractionGoal)
		if errors.Is(err, ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return registered, err
		}
		registered++
	}
	return registered, nil
}

// RunCycle processes every active source once, in registration order.
//
// A source that fails is reported and skipped, it never stops the cycle. The
// returned error is only set when the sources could not be listed or ctx ended
// the cycle early.
func (m Monitor) RunCycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{}

	sources, err := m.store.Sources(ctx, true)
	if err != nil {
		return report, err
	}
	if len(sources) == 0 {
		m.tel.ReportWarning(report_monitor_cycle, errors.New("no active sources"))
		return report, nil
	}

	for i, src := range sources {
		if i > 0 && m.delay > 0 {
			err := m.clock.Sleep(ctx, m.delay)
			if err != nil {
				return report, err
			}
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		change, err := m.processSource(ctx, src)
		if err != nil {
			report.Failed++
			m.tel.ReportWarning(
				report_monitor_source,
				err,
				telemetry.KV{Key: "source_id", Value: src.ID},
				telemetry.KV{Key: "name", Value: src.Name},
			)
			continue
		}
		report.Processed++
		if change != nil {
			report.Changes = append(report.Changes, *change)
		}
	}

	m.tel.ReportCount(report_monitor_cycle, int64(report.Processed))
	return report, nil
}

func (m Monitor) processSource(ctx context.Context, src TrackedSource) (*Change, error) {
	m.tel.ReportDebug("processing source", telemetry.KV{Key: "name", Value: src.Name}, telemetry.KV{Key: "url", Value: src.URL})

	raw, err := m.extractor.Extract(ctx, src.URL, src.ExtractionGoal)
	if err != nil {
		return nil, err
	}

	previous, found, err := m.store.LatestObservation(ctx, src.ID)
	if err != nil {
		return nil, err
	}
	current, err := m.store.RecordObservation(ctx, src.ID, src.URL, raw)
	if err != nil {
		return nil, err
	}

	if !found || previous.Price == "" {
		m.tel.ReportDebug("first price recorded", telemetry.KV{Key: "name", Value: src.Name}, telemetry.KV{Key: "price", Value: current.Price})
		return nil, nil
	}

	change, _, err := m.store.detectChange(ctx, src.ID, current.Price, previous.Price)
	if err != nil {
		return nil, err
	}
	if change != nil && m.notifier != nil {
		err := m.notifier.NotifyChange(ctx, *change)
		if err != nil {
			m.tel.ReportBroken(report_monitor_notify, err, telemetry.KV{Key: "source_id", Value: src.ID})
		}
	}
	return change, nil
}

// Schedule runs a cycle on every tick of the cron spec until ctx is done.
func (m Monitor) Schedule(ctx context.Context, cron chrono.CronAPI, spec string) error {
	return cron.Cron(spec, func() {
		if ctx.Err() != nil {
			return
		}
		report, err := m.RunCycle(ctx)
		if err != nil {
			m.tel.ReportWarning(report_monitor_cycle, err)
			return
		}
		m.tel.ReportDebug(
			"scheduled cycle finished",
			telemetry.KV{Key: "processed", Value: report.Processed},
			telemetry.KV{Key: "failed", Value: report.Failed},
			telemetry.KV{Key: "changes", Value: len(report.Changes)},
		)
	})
}
