package transport

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// maxSSELine bounds a single line of the event stream
const maxSSELine = 1024 * 1024

// Event is one dispatched server-sent event
type Event struct {
	ID   string
	Name string
	Data string
}

// SSEReader decodes a text/event-stream body. It keeps the last event ID and
// the last retry delay the server sent, both of which outlive single events.
type SSEReader struct {
	scanner *bufio.Scanner
	lastID  string
	retry   time.Duration
	started bool
}

// NewSSEReader creates a reader over r. lastID seeds the event ID buffer,
// used when resuming after a reconnect.
func NewSSEReader(r io.Reader, lastID string) *SSEReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxSSELine)
	return &SSEReader{scanner: scanner, lastID: lastID}
}

// LastEventID returns the most recent id field seen
func (r *SSEReader) LastEventID() string { return r.lastID }

// Retry returns the most recent reconnection delay the server asked for,
// or zero if it never sent one.
func (r *SSEReader) Retry() time.Duration { return r.retry }

// Next returns the next event. It returns io.EOF when the stream ends
// cleanly; a trailing block without a blank line is discarded.
func (r *SSEReader) Next() (Event, error) {
	var (
		name    string
		data    strings.Builder
		hasData bool
	)

	for r.scanner.Scan() {
		line := r.scanner.Text()
		if !r.started {
			line = strings.TrimPrefix(line, "\ufeff")
			r.started = true
		}

		if line == "" {
			if !hasData {
				name = ""
				continue
			}
			ev := Event{ID: r.lastID, Name: name, Data: strings.TrimSuffix(data.String(), "\n")}
			if ev.Name == "" {
				ev.Name = "message"
			}
			return ev, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if found {
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "event":
			name = value
		case "data":
			data.WriteString(value)
			data.WriteByte('\n')
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				r.lastID = value
			}
		case "retry":
			if ms, err := strconv.ParseUint(value, 10, 32); err == nil {
				r.retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}
