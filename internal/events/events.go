// Package events publishes the progress of a deployment run to any number
// of sinks: the log, a live socket.io dashboard, a Postgres ledger.
//
// Publishing is best effort. A sink that fails is logged and skipped; it
// never interrupts the run.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/kiko1842/vaultwire/internal/ctxlog"
)

// Kind classifies an event.
type Kind string

const (
	KindRunStarted           Kind = "run_started"
	KindStageStarted         Kind = "stage_started"
	KindStageCompleted       Kind = "stage_completed"
	KindStageFailed          Kind = "stage_failed"
	KindComponentDeployed    Kind = "component_deployed"
	KindStepApplied          Kind = "step_applied"
	KindStepDeferred         Kind = "step_deferred"
	KindImplementationStaged Kind = "implementation_staged"
	KindVerification         Kind = "verification"
	KindCheck                Kind = "check"
	KindRunFinished          Kind = "run_finished"
)

// Event is a single progress record. Seq is unique and increasing within a
// run.
type Event struct {
	RunID   string         `json:"run_id"`
	Network string         `json:"network"`
	Seq     int            `json:"seq"`
	Stage   string         `json:"stage"`
	Kind    Kind           `json:"kind"`
	Subject string         `json:"subject,omitempty"`
	Detail  map[string]any `json:"detail,omitempty"`
	Time    time.Time      `json:"time"`
}

// Sink receives events.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// Bus stamps events with run identity and a sequence number and fans them
// out to every sink.
type Bus struct {
	mu      sync.Mutex
	runID   string
	network string
	seq     int
	sinks   []Sink
	now     func() time.Time
}

// NewBus creates a bus for one run.
func NewBus(runID, network string, sinks ...Sink) *Bus {
	return &Bus{runID: runID, network: network, sinks: sinks, now: time.Now}
}

// Emit publishes an event to all sinks in order.
func (b *Bus) Emit(ctx context.Context, stage string, kind Kind, subject string, detail map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	e := Event{
		RunID:   b.runID,
		Network: b.network,
		Seq:     b.seq,
		Stage:   stage,
		Kind:    kind,
		Subject: subject,
		Detail:  detail,
		Time:    b.now().UTC(),
	}
	for _, s := range b.sinks {
		if err := s.Publish(ctx, e); err != nil {
			ctxlog.FromContext(ctx).Warn("Event sink failed, continuing.", "sink", sinkName(s), "kind", kind, "error", err)
		}
	}
}

// RunID returns the identifier the bus stamps on every event.
func (b *Bus) RunID() string {
	return b.runID
}

func sinkName(s Sink) string {
	if n, ok := s.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "unnamed"
}

// Tracker remembers the latest event. It backs the health endpoint.
type Tracker struct {
	mu    sync.RWMutex
	last  Event
	seen  bool
	count int
}

func (t *Tracker) Name() string { return "tracker" }

func (t *Tracker) Publish(_ context.Context, e Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = e
	t.seen = true
	t.count++
	return nil
}

// Last returns the most recent event, if any.
func (t *Tracker) Last() (Event, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last, t.seen
}

// Count returns how many events were observed.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}
