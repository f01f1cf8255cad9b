package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/jwkim/schemadoc/internal/metadata"
)

// Kind distinguishes the two unit-of-work families the pool runs.
type Kind int

const (
	KindIntrospect Kind = iota
	KindExport
)

func (k Kind) String() string {
	if k == KindExport {
		return "export"
	}
	return "introspect"
}

// State is the job lifecycle state. Transitions are strictly
// Queued→Running→{Completed, Cancelled, Failed}, except that a job
// cancelled before starting goes Queued→Cancelled directly. Terminal
// states are never left.
type State int32

const (
	StateQueued State = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Body is the work a job performs. It runs on a pool worker, reports
// per-target progress through the *Job methods, and honors ctx at
// target boundaries only — never mid-query. A non-nil return marks the
// job Failed unless the error was a cancellation.
type Body func(ctx context.Context, j *Job) error

// Spec describes a job to enqueue.
type Spec struct {
	Kind    Kind
	Targets []metadata.TableRef

	// ExtraKeys participate in the single-active-job invariant beyond
	// the table targets. The export pipeline passes its destination
	// path here so two exports never race on one file.
	ExtraKeys []string

	Run Body
}

// Job is one queued or running unit of work. Bodies use the emit
// methods; consumers interact through Handle.
type Job struct {
	id      uuid.UUID
	kind    Kind
	targets []metadata.TableRef
	keys    []string

	state atomic.Int32
	body  Body

	events chan Event
	done   chan struct{}

	// cancelled is closed the moment cancellation is requested, so
	// publishers and the start wait unblock without waiting for the
	// body to reach a target boundary.
	cancelOnce sync.Once
	cancelled  chan struct{}

	// guarded by the pool mutex
	cancelFn context.CancelFunc

	mu      sync.Mutex
	results []TargetResult
	summary *Summary

	pool *Pool
}

func newJob(spec Spec, buffer int, p *Pool) *Job {
	keys := make([]string, 0, len(spec.Targets)+len(spec.ExtraKeys))
	results := make([]TargetResult, len(spec.Targets))
	for i, t := range spec.Targets {
		keys = append(keys, t.String())
		results[i] = TargetResult{Target: t, Outcome: OutcomeUnattempted}
	}
	keys = append(keys, spec.ExtraKeys...)

	return &Job{
		id:        uuid.New(),
		kind:      spec.Kind,
		targets:   spec.Targets,
		keys:      keys,
		body:      spec.Run,
		events:    make(chan Event, buffer),
		done:      make(chan struct{}),
		cancelled: make(chan struct{}),
		results:   results,
		pool:      p,
	}
}

// ID returns the job's unique identifier.
func (j *Job) ID() uuid.UUID { return j.id }

// Kind returns the job's work family.
func (j *Job) Kind() Kind { return j.kind }

// Targets returns the requested targets in request order.
// Callers must not mutate the returned slice.
func (j *Job) Targets() []metadata.TableRef { return j.targets }

// State returns the current lifecycle state.
func (j *Job) State() State { return State(j.state.Load()) }

func (j *Job) setState(s State) { j.state.Store(int32(s)) }

// EmitStructure records target idx as succeeded and publishes its
// structure. Blocks when the consumer lags behind the event buffer;
// that backpressure is what keeps a slow consumer from being buried.
func (j *Job) EmitStructure(idx int, st *metadata.TableStructure) {
	j.record(idx, OutcomeSucceeded, nil)
	j.publish(Event{
		JobID:        j.id,
		Target:       j.targets[idx],
		TargetIndex:  idx,
		TotalTargets: len(j.targets),
		Structure:    st,
	})
}

// EmitTargetError records target idx as failed and publishes the error.
// The job continues; per-target failures never abort remaining targets.
func (j *Job) EmitTargetError(idx int, err error) {
	j.record(idx, OutcomeFailed, err)
	j.publish(Event{
		JobID:        j.id,
		Target:       j.targets[idx],
		TargetIndex:  idx,
		TotalTargets: len(j.targets),
		Err:          err,
	})
}

// EmitTargetDone records target idx as succeeded and publishes a stage
// message in place of the structure payload. Export jobs use this: the
// structure goes into the workbook, not over the channel.
func (j *Job) EmitTargetDone(idx int, msg string) {
	j.record(idx, OutcomeSucceeded, nil)
	j.publish(Event{
		JobID:        j.id,
		Target:       j.targets[idx],
		TargetIndex:  idx,
		TotalTargets: len(j.targets),
		Message:      msg,
	})
}

// EmitProgress publishes a stage message for target idx without deciding
// its outcome (used by the export pipeline between fetch and write).
func (j *Job) EmitProgress(idx int, msg string) {
	ev := Event{
		JobID:        j.id,
		TargetIndex:  idx,
		TotalTargets: len(j.targets),
		Message:      msg,
	}
	if idx < len(j.targets) {
		ev.Target = j.targets[idx]
	}
	j.publish(ev)
}

func (j *Job) record(idx int, outcome TargetOutcome, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if idx < 0 || idx >= len(j.results) {
		return
	}
	j.results[idx].Outcome = outcome
	j.results[idx].Err = err
}

// publish delivers ev to the consumer, blocking while the bounded buffer
// is full. A blocked publish gives up when the job's cancellation is
// requested or the whole pool shuts down, so an abandoned consumer can
// never pin a worker: once cancelled, events are dropped rather than
// waited on. The fast path keeps delivery deterministic for consumers
// that are draining.
func (j *Job) publish(ev Event) {
	select {
	case j.events <- ev:
		return
	default:
	}
	select {
	case j.events <- ev:
	case <-j.cancelled:
	case <-j.pool.stopCh:
	}
}

// requestCancel marks the job as cancellation-requested. Idempotent.
func (j *Job) requestCancel() {
	j.cancelOnce.Do(func() { close(j.cancelled) })
}

// cancelPending reports whether cancellation has been requested.
func (j *Job) cancelPending() bool {
	select {
	case <-j.cancelled:
		return true
	default:
		return false
	}
}

func (j *Job) snapshotSummary() *Summary {
	j.mu.Lock()
	defer j.mu.Unlock()
	results := make([]TargetResult, len(j.results))
	copy(results, j.results)
	return newSummary(results)
}

// Handle is the caller's reference to an enqueued job.
type Handle struct {
	j *Job
}

// ID returns the job identifier.
func (h *Handle) ID() uuid.UUID { return h.j.id }

// Kind returns the job's work family.
func (h *Handle) Kind() Kind { return h.j.kind }

// State returns the job's current state.
func (h *Handle) State() State { return h.j.State() }

// Events returns the job's ordered progress stream. The channel is
// closed after the terminal event (or immediately, with no events, when
// a queued job is cancelled).
func (h *Handle) Events() <-chan Event { return h.j.events }

// Cancel requests cooperative cancellation. A queued job is removed
// immediately; a running job stops after its in-flight target.
func (h *Handle) Cancel() { h.j.pool.cancel(h.j) }

// Wait blocks until the job reaches a terminal state or ctx expires.
// It does not drain Events; callers consuming the stream should drain
// instead of waiting, or events will back up against the buffer bound.
func (h *Handle) Wait(ctx context.Context) (*Summary, error) {
	select {
	case <-h.j.done:
		h.j.mu.Lock()
		defer h.j.mu.Unlock()
		return h.j.summary, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
