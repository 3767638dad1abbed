// Package logging provides leveled logging and run event tracing for octorun.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - An EventLogger for structured JSONL run traces (~/.octorun/events.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug. At this level the rendered
// input file and the engine command line are logged in full.
const LevelTrace = slog.LevelDebug - 4

// EventsFile is the name of the JSONL trace written by EventLogger.
const EventsFile = "events.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "warn", "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "warn":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// EventLogger appends run events (input written, engine finished, report
// parsed) to a JSONL file. It is safe for concurrent use. A nil EventLogger
// is safe to use; all methods are no-ops on nil receiver.
type EventLogger struct {
	sink  *eventSink
	runID string
}

// eventSink is the file shared by a logger and everything derived from it.
type eventSink struct {
	mu   sync.Mutex
	file *os.File
}

// NewEventLogger opens dir/events.jsonl for append when level is debug or
// trace. At other levels, or when the file cannot be opened, it returns nil.
func NewEventLogger(dir string, level string) *EventLogger {
	if ParseLevel(level) > slog.LevelDebug {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	f, err := os.OpenFile(filepath.Join(dir, EventsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &EventLogger{sink: &eventSink{file: f}}
}

// ForRun returns a logger sharing the same file that stamps every event with
// runID. Safe to call on nil receiver.
func (el *EventLogger) ForRun(runID string) *EventLogger {
	if el == nil {
		return nil
	}
	return &EventLogger{sink: el.sink, runID: runID}
}

// Log writes one event line. "event", "time" and, when bound, "run_id" are
// added; the caller's map is not mutated.
func (el *EventLogger) Log(event string, fields map[string]any) {
	if el == nil {
		return
	}

	entry := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		entry[k] = v
	}
	entry["event"] = event
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	if el.runID != "" {
		entry["run_id"] = el.runID
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	el.sink.mu.Lock()
	defer el.sink.mu.Unlock()
	if el.sink.file == nil {
		return
	}
	_, _ = el.sink.file.Write(data)
}

// Close closes the underlying file. Loggers derived with ForRun share the
// file and become no-ops. Safe to call on nil receiver.
func (el *EventLogger) Close() {
	if el == nil {
		return
	}

	el.sink.mu.Lock()
	defer el.sink.mu.Unlock()

	if el.sink.file != nil {
		el.sink.file.Close()
		el.sink.file = nil
	}
}
