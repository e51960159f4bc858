// Package telemetry provides a JSONL event stream for recording the
// lifecycle of a matrix run. Every toolchain task, workspace, test
// invocation, and fuzz target is recorded as a structured JSON event,
// making runs auditable and analyzable after the fact.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Event kinds identify the type of telemetry event.
const (
	KindMatrixStart    = "matrix_start"
	KindToolchainStart = "toolchain_start"
	KindWorkspaceReady = "workspace_ready"
	KindPinApplied     = "pin_applied"
	KindRunDone        = "run_done"
	KindToolchainDone  = "toolchain_done"
	KindMatrixDone     = "matrix_done"
	KindFuzzStart      = "fuzz_start"
	KindFuzzTargetDone = "fuzz_target_done"
	KindShutdown       = "shutdown"
)

// Event represents a single telemetry record. Each event carries a timestamp,
// a kind tag, and optional context identifiers (toolchain, features, fuzz
// target) along with arbitrary structured data.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	Toolchain string    `json:"toolchain,omitempty"`
	Features  string    `json:"features,omitempty"`
	Target    string    `json:"target,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Emitter writes telemetry events to a JSONL file. It is safe for concurrent
// use by multiple goroutines. A nil *Emitter is a valid no-op emitter.
type Emitter struct {
	file *os.File
	enc  *json.Encoder
	mu   sync.Mutex
}

// NewEmitter creates a new Emitter that writes JSONL events to the file at
// path. The file is created if it does not exist, or appended to if it does.
func NewEmitter(path string) (*Emitter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	return &Emitter{
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

// Emit writes a single event to the JSONL file, stamping it with the current
// time if unset. It is safe for concurrent use. Calling Emit on a nil
// Emitter is a no-op.
func (e *Emitter) Emit(evt Event) error {
	if e == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enc.Encode(evt); err != nil {
		return fmt.Errorf("telemetry: encode event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file. Calling Close on a nil
// Emitter is a no-op.
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.file.Close(); err != nil {
		return fmt.Errorf("telemetry: close: %w", err)
	}
	return nil
}
