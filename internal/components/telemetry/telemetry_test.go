package telemetry

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	rec := NewRecordingAPI()
	scoped := NewScopedAPI("monitor", NewScopedAPI("store", rec))

	scoped.ReportBroken("db.query", "a")
	scoped.ReportWarning("store.register-source")
	scoped.ReportCount("cycle.processed", 3)

	broken := rec.Reports(KindBroken)
	require.Len(t, broken, 1)
	require.Equal(t, "store: monitor: db.query", broken[0].ID)
	require.Equal(t, []any{"a"}, broken[0].Params)

	warnings := rec.Reports(KindWarning)
	require.Len(t, warnings, 1)
	require.Equal(t, "store: monitor: store.register-source", warnings[0].ID)

	counts := rec.Reports(KindCount)
	require.Len(t, counts, 1)
	require.Equal(t, int64(3), counts[0].Count)
}

func TestMultiAPI(t *testing.T) {
	a := NewRecordingAPI()
	b := NewRecordingAPI()
	MultiAPI{a, b}.ReportBroken("x")

	require.Len(t, a.Reports(KindBroken), 1)
	require.Len(t, b.Reports(KindBroken), 1)
}

func TestFormatHeadersRedacts(t *testing.T) {
	headers := http.Header{}
	headers.Set("X-API-Key", "secret")
	headers.Set("Content-Type", "application/json")

	rendered := formatHeaders(headers)
	require.NotContains(t, rendered, "secret")
	require.Contains(t, rendered, "X-Api-Key: <redacted>")
	require.Contains(t, rendered, "Content-Type: application/json")
}

func TestKVString(t *testing.T) {
	require.Equal(t, "source_id=4", KV{Key: "source_id", Value: 4}.String())
}
