// Package events implements the deltanear_derivatives v1.0.0 audit event
// standard.
//
// Every event is a single line of the form
//
//	EVENT_JSON:{"standard":"deltanear_derivatives","version":"1.0.0","event":<name>,"data":[{...}]}
//
// with the data payload array-wrapped. The format is frozen: downstream
// indexers parse it byte-by-byte.
package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const (
	// Standard is the event standard identifier.
	Standard = "deltanear_derivatives"
	// Version is the frozen event standard version.
	Version = "1.0.0"
	// Prefix marks an event line in a log stream.
	Prefix = "EVENT_JSON:"
)

// Event names.
const (
	IntentSubmitted     = "intent_submitted"
	SimulationCompleted = "simulation_completed"
	SimulationRequired  = "simulation_required"
	ReplayPrevented     = "replay_prevented"
	ExecutionLogged     = "execution_logged"
	MetadataChecksum    = "metadata_checksum"
	SettlementInitiated = "settlement_initiated"
	SettlementCompleted = "settlement_completed"
)

// Event is one audit record.
type Event struct {
	Standard string `json:"standard"`
	Version  string `json:"version"`
	Event    string `json:"event"`
	Data     []any  `json:"data"`
}

// Sink consumes emitted events. Implementations must be safe for concurrent
// use; the emitter never depends on a specific transport.
type Sink interface {
	Emit(ev Event) error
}

// Emitter wraps payloads in the standard envelope and forwards them to a
// sink.
type Emitter struct {
	sink  Sink
	clock func() time.Time
}

// NewEmitter creates an emitter writing to sink. A nil sink falls back to a
// writer sink on stdout.
func NewEmitter(sink Sink) *Emitter {
	if sink == nil {
		sink = NewWriterSink(os.Stdout)
	}
	return &Emitter{sink: sink, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (e *Emitter) WithClock(clock func() time.Time) *Emitter {
	e.clock = clock
	return e
}

// Now returns the emitter's current timestamp in nanoseconds since the Unix
// epoch, the unit every event payload carries.
func (e *Emitter) Now() int64 {
	return e.clock().UnixNano()
}

// Emit wraps data in the standard envelope and forwards it.
func (e *Emitter) Emit(name string, data any) error {
	return e.sink.Emit(Event{
		Standard: Standard,
		Version:  Version,
		Event:    name,
		Data:     []any{data},
	})
}

// WriterSink serializes events as prefixed single lines to an io.Writer.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Emit(ev Event) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return fmt.Errorf("event serialization failed: %w", err)
	}
	line := append([]byte(Prefix), buf.Bytes()...)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(line)
	return err
}

// CollectorSink retains events in memory for tests and in-process
// subscribers.
type CollectorSink struct {
	mu     sync.Mutex
	events []Event
}

// NewCollectorSink creates an empty collector.
func NewCollectorSink() *CollectorSink {
	return &CollectorSink{}
}

func (s *CollectorSink) Emit(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Events returns a copy of everything collected so far.
func (s *CollectorSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByName returns collected events with the given name.
func (s *CollectorSink) ByName(name string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.Event == name {
			out = append(out, ev)
		}
	}
	return out
}

// MultiSink fans an event out to several sinks, returning the first error.
type MultiSink []Sink

func (m MultiSink) Emit(ev Event) error {
	for _, s := range m {
		if err := s.Emit(ev); err != nil {
			return err
		}
	}
	return nil
}
