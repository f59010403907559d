// Package progress delivers typed progress events over a channel.
//
// Events are ordered within a phase only. FILE_PROGRESS and HEARTBEAT are
// sampling events and are dropped when the consumer falls behind; every
// other type is delivered. Consumers must drain Events until it is closed.
package progress

import (
	"sync"
	"time"
)

// EventType identifies the kind of progress event.
type EventType string

// Event types.
const (
	PhaseStart         EventType = "PHASE_START"
	PhaseEnd           EventType = "PHASE_END"
	FileStart          EventType = "FILE_START"
	FileProgress       EventType = "FILE_PROGRESS"
	FileDone           EventType = "FILE_DONE"
	Heartbeat          EventType = "HEARTBEAT"
	SlowNetworkWarning EventType = "SLOW_NETWORK_WARNING"
)

// Lossy reports whether events of this type may be dropped under backpressure.
func (t EventType) Lossy() bool {
	return t == FileProgress || t == Heartbeat
}

// Event is one progress observation.
type Event struct {
	Type  EventType `json:"type"`
	Time  time.Time `json:"timestamp"`
	Phase string    `json:"phase"`

	Path string `json:"file_path,omitempty"`
	Op   string `json:"op_type,omitempty"`

	FileTotal int64 `json:"file_total_bytes,omitempty"`
	FileDone  int64 `json:"file_processed_bytes,omitempty"`
	RunTotal  int64 `json:"run_total_bytes,omitempty"`
	RunDone   int64 `json:"run_processed_bytes,omitempty"`

	// Items counts finished items in the phase; ItemsTotal is the phase size.
	Items      int `json:"items,omitempty"`
	ItemsTotal int `json:"items_total,omitempty"`

	Status    string        `json:"status,omitempty"`
	Elapsed   time.Duration `json:"elapsed_ms,omitempty"`
	SpeedMBps float64       `json:"speed_mbps,omitempty"`
	Evidence  string        `json:"evidence,omitempty"`
}

// DefaultBuffer is the channel capacity used by NewEmitter when size <= 0.
const DefaultBuffer = 256

// Emitter owns the event channel. A nil *Emitter discards everything, so
// components can emit unconditionally.
type Emitter struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool
	now    func() time.Time
}

// NewEmitter returns an emitter with a buffered channel.
func NewEmitter(size int) *Emitter {
	if size <= 0 {
		size = DefaultBuffer
	}
	return &Emitter{ch: make(chan Event, size), now: time.Now}
}

// Events returns the receive side of the channel.
func (e *Emitter) Events() <-chan Event {
	if e == nil {
		return nil
	}
	return e.ch
}

// Emit sends ev, stamping Time if unset. Lossy events are dropped when the
// buffer is full; other events block until the consumer receives them.
func (e *Emitter) Emit(ev Event) {
	if e == nil {
		return
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}

	if ev.Time.IsZero() {
		ev.Time = e.now()
	}

	if ev.Type.Lossy() {
		select {
		case e.ch <- ev:
		default:
		}
		return
	}
	e.ch <- ev
}

// Phase emits PHASE_START and returns a function that emits PHASE_END with
// the elapsed time and the given status.
func (e *Emitter) Phase(name string, itemsTotal int) func(status string) {
	if e == nil {
		return func(string) {}
	}
	start := e.now()
	e.Emit(Event{Type: PhaseStart, Phase: name, ItemsTotal: itemsTotal})
	return func(status string) {
		e.Emit(Event{Type: PhaseEnd, Phase: name, ItemsTotal: itemsTotal, Status: status, Elapsed: e.now().Sub(start)})
	}
}

// Close closes the channel. Later Emit calls are ignored.
func (e *Emitter) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
