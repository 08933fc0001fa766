package telemetry

import "sync"

type ReportKind int

const (
	KindBroken ReportKind = iota
	KindWarning
	KindDebug
	KindCount
)

type Report struct {
	Kind   ReportKind
	ID     string
	Params []any
	Count  int64
}

// RecordingAPI keeps every report in memory, it is meant for tests that
// need to assert that something was (or was not) reported.
type RecordingAPI struct {
	mutex   sync.Mutex
	reports []Report
}

func NewRecordingAPI() *RecordingAPI {
	return &RecordingAPI{}
}

func (r *RecordingAPI) record(report Report) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reports = append(r.reports, report)
}

func (r *RecordingAPI) ReportBroken(id string, params ...any) {
	r.record(Report{Kind: KindBroken, ID: id, Params: params})
}

func (r *RecordingAPI) ReportWarning(id string, params ...any) {
	r.record(Report{Kind: KindWarning, ID: id, Params: params})
}

func (r *RecordingAPI) ReportDebug(msg string, params ...any) {
	r.record(Report{Kind: KindDebug, ID: msg, Params: params})
}

func (r *RecordingAPI) ReportCount(id string, count int64) {
	r.record(Report{Kind: KindCount, ID: id, Count: count})
}

// Reports returns a copy of the reports of the given kind, in the order they were made.
func (r *RecordingAPI) Reports(kind ReportKind) []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var out []Report
	for _, report := range r.reports {
		if report.Kind == kind {
			out = append(out, report)
		}
	}
	return out
}
