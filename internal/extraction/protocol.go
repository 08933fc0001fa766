package extraction

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Request is the body posted to the extraction service.
type Request struct {
	URL  string `json:"url"`
	Goal string `json:"goal"`
}

// Event is a single record of the event stream.
type Event struct {
	Status     Status          `json:"status"`
	ResultJSON json.RawMessage `json:"resultJson"`
	Error      json.RawMessage `json:"error"`
}

// ErrorMessage renders the event's error field, which may be any json value.
func (e Event) ErrorMessage() string {
	if isEmptyPayload(e.Error) {
		return "unknown error"
	}
	var s string
	if err := json.Unmarshal(e.Error, &s); err == nil {
		return s
	}
	return string(e.Error)
}

// ParseLine decodes one line of the stream, ok is false for lines that carry no event:
// blank lines, comments, non-data fields, lines that are not json and records without a status.
func ParseLine(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, ":") {
		return Event{}, false
	}
	if rest, ok := strings.CutPrefix(line, "data:"); ok {
		line = strings.TrimSpace(rest)
	} else {
		for _, field := range []string{"event:", "id:", "retry:"} {
			if strings.HasPrefix(line, field) {
				return Event{}, false
			}
		}
	}

	var ev Event
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return Event{}, false
	}
	if ev.Status == "" {
		return Event{}, false
	}
	return ev, true
}

type State int

const (
	StateAwaitingEvent State = iota
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAwaitingEvent:
		return "awaiting_event"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Protocol tracks a single request's event stream. It leaves StateAwaitingEvent
// at most once, events fed after that are ignored.
type Protocol struct {
	state   State
	result  json.RawMessage
	failure string
}

func (p *Protocol) State() State {
	return p.state
}

func (p *Protocol) Terminal() bool {
	return p.state != StateAwaitingEvent
}

// Result is the payload of the COMPLETED event.
func (p *Protocol) Result() json.RawMessage {
	return p.result
}

// Failure is the error message of the FAILED event.
func (p *Protocol) Failure() string {
	return p.failure
}

// Feed applies one event and reports whether the protocol is now terminal.
//
// A COMPLETED event without a payload does not end the stream.
func (p *Protocol) Feed(ev Event) bool {
	if p.Terminal() {
		return true
	}

	switch ev.Status {
	case StatusCompleted:
		if isEmptyPayload(ev.ResultJSON) {
			return false
		}
		p.state = StateCompleted
		p.result = ev.ResultJSON
	case StatusFailed:
		p.state = StateFailed
		p.failure = ev.ErrorMessage()
	}
	return p.Terminal()
}

const maxLineSize = 16 * 1024 * 1024

// Consume feeds every event line of r into p until p is terminal or r is exhausted.
// The returned error is the read error, if any.
func Consume(r io.Reader, p *Protocol) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		ev, ok := ParseLine(scanner.Text())
		if !ok {
			continue
		}
		if p.Feed(ev) {
			return nil
		}
	}
	return scanner.Err()
}

var emptyPayloads = [][]byte{
	[]byte("null"),
	[]byte(`""`),
	[]byte("{}"),
	[]byte("[]"),
	[]byte("false"),
	[]byte("0"),
}

func isEmptyPayload(payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return true
	}
	compact := bytes.Buffer{}
	if err := json.Compact(&compact, trimmed); err == nil {
		trimmed = compact.Bytes()
	}
	for _, empty := range emptyPayloads {
		if bytes.Equal(trimmed, empty) {
			return true
		}
	}
	return false
}
