package extraction

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	cases := []struct {
		line   string
		ok     bool
		status Status
	}{
		{line: `data: {"status": "PENDING"}`, ok: true, status: StatusPending},
		{line: `data:{"status":"COMPLETED","resultJson":{"a":1}}`, ok: true, status: StatusCompleted},
		{line: `{"status": "FAILED", "error": "blocked"}`, ok: true, status: StatusFailed},
		{line: ``, ok: false},
		{line: `   `, ok: false},
		{line: `: keep-alive`, ok: false},
		{line: `event: progress`, ok: false},
		{line: `id: 12`, ok: false},
		{line: `retry: 1000`, ok: false},
		{line: `data: not json`, ok: false},
		{line: `data: {"type": "progress"}`, ok: false},
	}

	for _, c := range cases {
		ev, ok := ParseLine(c.line)
		require.Equal(t, c.ok, ok, c.line)
		if ok {
			require.Equal(t, c.status, ev.Status, c.line)
		}
	}
}

func TestProtocolSingleTerminalTransition(t *testing.T) {
	var p Protocol
	require.Equal(t, StateAwaitingEvent, p.State())

	require.False(t, p.Feed(Event{Status: StatusPending}))
	require.True(t, p.Feed(Event{Status: StatusCompleted, ResultJSON: json.RawMessage(`{"price": "$1"}`)}))
	require.Equal(t, StateCompleted, p.State())

	// nothing after the terminal event changes the outcome
	require.True(t, p.Feed(Event{Status: StatusFailed, Error: json.RawMessage(`"late"`)}))
	require.Equal(t, StateCompleted, p.State())
	require.JSONEq(t, `{"price": "$1"}`, string(p.Result()))
	require.Empty(t, p.Failure())
}

func TestProtocolSkipsEmptyCompleted(t *testing.T) {
	var p Protocol
	for _, payload := range []string{``, `null`, `""`, `{}`, `[ ]`} {
		require.False(t, p.Feed(Event{Status: StatusCompleted, ResultJSON: json.RawMessage(payload)}), payload)
	}
	require.Equal(t, StateAwaitingEvent, p.State())
}

func TestProtocolFailureMessage(t *testing.T) {
	cases := []struct {
		errorField string
		expected   string
	}{
		{errorField: `"page blocked"`, expected: "page blocked"},
		{errorField: `{"code": 403}`, expected: `{"code": 403}`},
		{errorField: ``, expected: "unknown error"},
	}
	for _, c := range cases {
		var p Protocol
		require.True(t, p.Feed(Event{Status: StatusFailed, Error: json.RawMessage(c.errorField)}))
		require.Equal(t, StateFailed, p.State())
		require.Equal(t, c.expected, p.Failure())
	}
}

func TestConsume(t *testing.T) {
	stream := strings.Join([]string{
		`: connected`,
		`event: status`,
		`data: {"status": "PENDING"}`,
		``,
		`data: garbage`,
		`data: {"status": "COMPLETED", "resultJson": null}`,
		`data: {"status": "COMPLETED", "resultJson": [{"title": "Lamp"}]}`,
		`data: {"status": "FAILED", "error": "too late"}`,
	}, "\n")

	var p Protocol
	require.Nil(t, Consume(strings.NewReader(stream), &p))
	require.Equal(t, StateCompleted, p.State())
	require.JSONEq(t, `[{"title": "Lamp"}]`, string(p.Result()))
}

func TestConsumeWithoutTerminal(t *testing.T) {
	var p Protocol
	require.Nil(t, Consume(strings.NewReader("data: {\"status\": \"PENDING\"}\n\n"), &p))
	require.False(t, p.Terminal())
}
