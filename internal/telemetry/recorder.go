// Package telemetry keeps a CSV trail of every request the operator client
// attempted, one row per attempt.
package telemetry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
)

const (
	KindControl = "control"
	KindZero    = "zero"
	KindFlush   = "flush"
	KindServo   = "servo"
)

// Record is one dispatch attempt.
type Record struct {
	Session    string  `csv:"session"`
	Time       string  `csv:"time"`
	Tick       uint64  `csv:"tick"`
	Kind       string  `csv:"kind"`
	TranslateX float64 `csv:"translate_x"`
	TranslateY float64 `csv:"translate_y"`
	RotateZ    float64 `csv:"rotate_z"`
	ServoID    int     `csv:"servo_id"`
	Angle      float64 `csv:"angle"`
	OK         bool    `csv:"ok"`
	ErrorKind  string  `csv:"error_kind"`
	Error      string  `csv:"error"`
	LatencyMS  float64 `csv:"latency_ms"`
}

// Recorder appends Records as CSV. A nil *Recorder drops everything, so
// callers need no enabled check.
type Recorder struct {
	session string
	closer  io.Closer

	mu            sync.Mutex
	out           io.Writer
	headerWritten bool
}

// NewRecorder opens path for writing. It returns nil, nil when path is empty.
func NewRecorder(path string) (*Recorder, error) {
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating telemetry directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	r := NewWriterRecorder(f)
	r.closer = f
	return r, nil
}

func NewWriterRecorder(w io.Writer) *Recorder {
	return &Recorder{session: uuid.NewString(), out: w}
}

func (r *Recorder) Session() string {
	if r == nil {
		return ""
	}
	return r.session
}

// Write stamps rec with the session id and, when unset, the current time.
func (r *Recorder) Write(rec Record) error {
	if r == nil {
		return nil
	}
	rec.Session = r.session
	if rec.Time == "" {
		rec.Time = time.Now().UTC().Format(time.RFC3339Nano)
	}
	records := []Record{rec}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.headerWritten {
		if err := gocsv.Marshal(records, r.out); err != nil {
			return fmt.Errorf("writing telemetry: %w", err)
		}
		r.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, r.out); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

func (r *Recorder) Close() error {
	if r == nil || r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
