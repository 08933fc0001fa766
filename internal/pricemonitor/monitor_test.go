package pricemonitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"pricescout-backend/internal/components/telemetry"
	"pricescout-backend/internal/extraction"
	"sync"
	"testing"
	"time"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/require"
)

// scriptedExtractor returns the next queued response of a url.
type scriptedExtractor struct {
	mutex     sync.Mutex
	responses map[string][]string
	calls     []string
}

func (s *scriptedExtractor) Extract(ctx context.Context, url, goal string) (json.RawMessage, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.calls = append(s.calls, url)

	queue := s.responses[url]
	if len(queue) == 0 {
		return nil, fmt.Errorf("%w: status 502", extraction.ErrUnreachable)
	}
	s.responses[url] = queue[1:]
	if queue[0] == "" {
		return nil, extraction.ErrNoResult
	}
	return json.RawMessage(queue[0]), nil
}

type recordingNotifier struct {
	changes []Change
	err     error
}

func (r *recordingNotifier) NotifyChange(ctx context.Context, change Change) error {
	r.changes = append(r.changes, change)
	return r.err
}

func TestRunCycle(t *testing.T) {
	store, clock, tel := newTestStore(t)
	ctx := context.Background()

	lamp, err := store.RegisterSource(ctx, "Lamp", "https://a.example.com/lamp", "")
	require.Nil(t, err)
	_, err = store.RegisterSource(ctx, "Broken", "https://b.example.com/broken", "")
	require.Nil(t, err)
	chair, err := store.RegisterSource(ctx, "Chair", "https://c.example.com/chair", "")
	require.Nil(t, err)

	extractor := &scriptedExtractor{
		responses: map[string][]string{
			"https://a.example.com/lamp":  {`{"price": "$10.00"}`, `{"price": "$12.50"}`},
			"https://c.example.com/chair": {`[{"title": "Chair", "price": "$40"}]`, `[{"title": "Chair", "price": "$40.00"}]`},
		},
	}
	notifier := &recordingNotifier{}
	monitor := NewMonitor(store, extractor, clock, MonitorOptions{
		Delay:    time.Second,
		Notifier: notifier,
	}, tel)

	report, err := monitor.RunCycle(ctx)
	require.Nil(t, err)
	require.Equal(t, 2, report.Processed)
	require.Equal(t, 1, report.Failed)
	require.Empty(t, report.Changes)
	require.Equal(t, []time.Duration{time.Second, time.Second}, clock.Sleeps())
	require.Equal(t, []string{
		"https://a.example.com/lamp",
		"https://b.example.com/broken",
		"https://c.example.com/chair",
	}, extractor.calls)

	report, err = monitor.RunCycle(ctx)
	require.Nil(t, err)
	require.Equal(t, 2, report.Processed)
	require.Len(t, report.Changes, 1)

	change := report.Changes[0]
	require.Equal(t, lamp, change.SourceID)
	require.Equal(t, "$10.00", change.OldPrice)
	require.Equal(t, "$12.50", change.NewPrice)
	require.Equal(t, 25.0, change.ChangePercent)
	require.Equal(t, report.Changes, notifier.changes)

	history, err := store.History(ctx, chair, 10)
	require.Nil(t, err)
	require.Len(t, history, 2)

	warnings := tel.Reports(telemetry.KindWarning)
	require.Len(t, warnings, 2)
	for _, w := range warnings {
		require.Equal(t, "pricemonitor: "+report_monitor_source, w.ID)
	}
}

func TestRunCycleFirstObservationWithoutPrice(t *testing.T) {
	store, clock, tel := newTestStore(t)
	ctx := context.Background()

	id, err := store.RegisterSource(ctx, "Lamp", "https://a.example.com/lamp", "")
	require.Nil(t, err)

	extractor := &scriptedExtractor{
		responses: map[string][]string{
			"https://a.example.com/lamp": {`{"title": "Lamp"}`, `{"price": "$5"}`, `{"price": "$6"}`},
		},
	}
	monitor := NewMonitor(store, extractor, clock, MonitorOptions{}, tel)

	for i := 0; i < 2; i++ {
		report, err := monitor.RunCycle(ctx)
		require.Nil(t, err)
		require.Empty(t, report.Changes)
	}
	report, err := monitor.RunCycle(ctx)
	require.Nil(t, err)
	require.Len(t, report.Changes, 1)
	require.Equal(t, 20.0, report.Changes[0].ChangePercent)

	// a single source never sleeps
	require.Empty(t, clock.Sleeps())

	history, err := store.History(ctx, id, 0)
	require.Nil(t, err)
	require.Len(t, history, 3)
}

func TestRunCycleNotifierFailureIsTolerated(t *testing.T) {
	store, clock, tel := newTestStore(t)
	ctx := context.Background()

	_, err := store.RegisterSource(ctx, "Lamp", "https://a.example.com/lamp", "")
	require.Nil(t, err)

	extractor := &scriptedExtractor{
		responses: map[string][]string{
			"https://a.example.com/lamp": {`{"price": "$5"}`, `{"price": "$4"}`},
		},
	}
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	monitor := NewMonitor(store, extractor, clock, MonitorOptions{Notifier: notifier}, tel)

	_, err = monitor.RunCycle(ctx)
	require.Nil(t, err)
	report, err := monitor.RunCycle(ctx)
	require.Nil(t, err)
	require.Equal(t, 1, report.Processed)
	require.Len(t, report.Changes, 1)
	require.Len(t, notifier.changes, 1)
	require.Len(t, tel.Reports(telemetry.KindBroken), 1)
}

func TestRunCycleNoActiveSources(t *testing.T) {
	store, clock, tel := newTestStore(t)
	ctx := context.Background()

	id, err := store.RegisterSource(ctx, "Lamp", "https://a.example.com/lamp", "")
	require.Nil(t, err)
	require.Nil(t, store.SetSourceActive(ctx, id, false))

	extractor := &scriptedExtractor{responses: map[string][]string{}}
	monitor := NewMonitor(store, extractor, clock, MonitorOptions{}, tel)

	report, err := monitor.RunCycle(ctx)
	require.Nil(t, err)
	require.Zero(t, report.Processed)
	require.Empty(t, extractor.calls)
}

func TestRunCycleCancelled(t *testing.T) {
	store, clock, tel := newTestStore(t)

	_, err := store.RegisterSource(context.Background(), "Lamp", "https://a.example.com/lamp", "")
	require.Nil(t, err)

	extractor := &scriptedExtractor{responses: map[string][]string{}}
	monitor := NewMonitor(store, extractor, clock, MonitorOptions{}, tel)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = monitor.RunCycle(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, extractor.calls)
}

func TestRegisterConfigured(t *testing.T) {
	store, clock, tel := newTestStore(t)
	ctx := context.Background()

	monitor := NewMonitor(store, &scriptedExtractor{}, clock, MonitorOptions{}, tel)
	sources := []SourceConfig{
		{Name: "Lamp", URL: "https://a.example.com/lamp"},
		{Name: "Chair", URL: "https://c.example.com/chair", ExtractionGoal: "get the chair price"},
	}

	registered, err := monitor.RegisterConfigured(ctx, sources)
	require.Nil(t, err)
	require.Equal(t, 2, registered)

	registered, err = monitor.RegisterConfigured(ctx, sources)
	require.Nil(t, err)
	require.Equal(t, 0, registered)

	all, err := store.Sources(ctx, false)
	require.Nil(t, err)
	require.Len(t, all, 2)
	require.Equal(t, DefaultExtractionGoal, all[0].ExtractionGoal)
	require.Equal(t, "get the chair price", all[1].ExtractionGoal)
}

type fakeCron struct {
	spec     string
	callback func()
}

func (f *fakeCron) Cron(spec string, callback func()) error {
	f.spec = spec
	f.callback = callback
	return nil
}

func TestSchedule(t *testing.T) {
	store, clock, tel := newTestStore(t)
	ctx := context.Background()

	_, err := store.RegisterSource(ctx, "Lamp", "https://a.example.com/lamp", "")
	require.Nil(t, err)

	extractor := &scriptedExtractor{
		responses: map[string][]string{
			"https://a.example.com/lamp": {`{"price": "$5"}`},
		},
	}
	monitor := NewMonitor(store, extractor, clock, MonitorOptions{}, tel)

	cron := &fakeCron{}
	require.Nil(t, monitor.Schedule(ctx, cron, "0 */6 * * *"))
	require.Equal(t, "0 */6 * * *", cron.spec)
	require.Empty(t, extractor.calls)

	cron.callback()
	require.Len(t, extractor.calls, 1)
}

func TestEmailNotifier(t *testing.T) {
	var sent []*email.Email
	notifier := NewEmailNotifier(EmailOptions{
		Host: "smtp.example.com",
		From: "alerts@example.com",
		To:   []string{"me@example.com"},
	})
	notifier.send = func(e *email.Email) error {
		sent = append(sent, e)
		return nil
	}

	change := Change{
		SourceName:    "Lamp",
		URL:           "https://a.example.com/lamp",
		OldPrice:      "$10.00",
		NewPrice:      "$12.50",
		ChangePercent: 25,
		DetectedAt:    time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
	require.Nil(t, notifier.NotifyChange(context.Background(), change))
	require.Len(t, sent, 1)
	require.Equal(t, "Price change: Lamp $10.00 -> $12.50", sent[0].Subject)
	require.Equal(t, []string{"me@example.com"}, sent[0].To)
	require.Contains(t, string(sent[0].Text), "Change: 25.00%")
	require.Contains(t, string(sent[0].Text), "Detected at: 2024-03-01 12:00:00")

	notifier.send = func(e *email.Email) error {
		return errors.New("connection refused")
	}
	require.NotNil(t, notifier.NotifyChange(context.Background(), change))

	require.False(t, EmailOptions{Host: "smtp.example.com"}.Enabled())
}
