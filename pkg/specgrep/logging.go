// Copyright 2026 The Specgrep Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package specgrep

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Severity is the level of a log entry.
type Severity uint8

// Severities, lowest first.
const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

var (
	severityNameMap = map[Severity]string{
		SeverityDebug: "DEBUG",
		SeverityInfo:  "INFO",
		SeverityWarn:  "WARNING",
		SeverityError: "ERROR",
	}

	nameSeverityMap = map[string]Severity{
		"DEBUG":   SeverityDebug,
		"INFO":    SeverityInfo,
		"WARN":    SeverityWarn,
		"WARNING": SeverityWarn,
		"ERROR":   SeverityError,
	}
)

// Logger writes one JSON object per entry. Debug and info entries go to the
// out writer, warnings and errors to the err writer. Safe for concurrent use.
type Logger struct {
	level  Severity
	fields []any

	out *lockedWriter
	err *lockedWriter

	now func() time.Time
}

type lockedWriter struct {
	lock sync.Mutex
	w    io.Writer
}

// NewLogger creates a logger at the given level name. An empty level means
// INFO.
func NewLogger(level string, outw, errw io.Writer) (*Logger, error) {
	normalized := strings.ToUpper(strings.TrimSpace(level))
	if normalized == "" {
		normalized = "INFO"
	}

	v, ok := nameSeverityMap[normalized]
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	return &Logger{
		level: v,
		out:   &lockedWriter{w: outw},
		err:   &lockedWriter{w: errw},
		now:   time.Now,
	}, nil
}

// NewDiscardLogger returns a logger that writes nothing.
func NewDiscardLogger() *Logger {
	return &Logger{
		level: SeverityError + 1,
		out:   &lockedWriter{w: io.Discard},
		err:   &lockedWriter{w: io.Discard},
		now:   time.Now,
	}
}

// With returns a logger that adds the given key/value pairs to every entry.
func (l *Logger) With(fields ...any) *Logger {
	child := *l
	child.fields = append(append(make([]any, 0, len(l.fields)+len(fields)), l.fields...), fields...)
	return &child
}

// Debug logs at debug severity.
func (l *Logger) Debug(msg string, fields ...any) {
	l.log(l.out, msg, SeverityDebug, fields...)
}

// Info logs at info severity.
func (l *Logger) Info(msg string, fields ...any) {
	l.log(l.out, msg, SeverityInfo, fields...)
}

// Warn logs at warning severity.
func (l *Logger) Warn(msg string, fields ...any) {
	l.log(l.err, msg, SeverityWarn, fields...)
}

// Error logs at error severity.
func (l *Logger) Error(msg string, fields ...any) {
	l.log(l.err, msg, SeverityError, fields...)
}

func (l *Logger) log(w *lockedWriter, msg string, sev Severity, fields ...any) {
	if l == nil || l.level > sev {
		return
	}

	all := append(append(make([]any, 0, len(l.fields)+len(fields)), l.fields...), fields...)
	if len(all)%2 != 0 {
		all = append(all, "(MISSING)")
	}

	data := make(map[string]any, len(all)/2)
	for i := 0; i < len(all); i += 2 {
		key, ok := all[i].(string)
		if !ok {
			key = fmt.Sprintf("field%d", i/2)
		}

		switch typ := all[i+1].(type) {
		case error:
			data[key] = typ.Error()
		default:
			data[key] = typ
		}
	}

	jsonPayload, err := json.Marshal(&LogEntry{
		Time:     timePtr(l.now().UTC()),
		Severity: sev,
		Message:  msg,
		Data:     data,
	})
	if err != nil {
		jsonPayload = []byte(fmt.Sprintf(`{"severity":"ERROR","message":%q}`, "failed to marshal log entry: "+err.Error()))
	}

	w.lock.Lock()
	fmt.Fprintln(w.w, string(jsonPayload))
	w.lock.Unlock()
}

// LogEntry is one structured log line.
type LogEntry struct {
	Time     *time.Time
	Severity Severity
	Message  string
	Data     map[string]any
}

// MarshalJSON flattens the entry data next to the time, severity and message.
func (l *LogEntry) MarshalJSON() ([]byte, error) {
	d := make(map[string]any, 8)

	if l.Time != nil {
		d["time"] = l.Time.Format(time.RFC3339)
	}

	d["severity"] = severityNameMap[l.Severity]
	d["message"] = l.Message

	for k, v := range l.Data {
		d[k] = v
	}

	return json.Marshal(d)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
