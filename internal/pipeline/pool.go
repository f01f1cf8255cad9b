// Package pipeline is the asynchronous core of schemadoc: a bounded
// worker pool running introspection and export jobs, a debounced
// selection coalescer in front of it, and an ordered, backpressure-aware
// progress stream per job behind it.
//
// The interactive side of an application never blocks on database or
// file I/O: it enqueues jobs and drains events. Workers never touch
// presentation state: everything crosses the per-job event channel.
package pipeline

import (
	"context"
	"sync"

	"github.com/jwkim/schemadoc/internal/errs"
	"github.com/jwkim/schemadoc/internal/logger"
)

// ErrCancelled is returned by job bodies when they observe cancellation
// at a target boundary. It marks the normal termination path, not a fault.
var ErrCancelled = errs.New(errs.ErrKindCancelled, "job cancelled")

const (
	// DefaultWorkers bounds concurrent jobs independently of table count.
	DefaultWorkers = 4

	// DefaultEventBuffer is the per-job progress channel capacity. A
	// producer that gets this far ahead of its consumer blocks until
	// the consumer drains — that backpressure is the mechanism that
	// keeps a slow UI from being buried in stale results.
	DefaultEventBuffer = 64
)

// Config tunes the pool.
type Config struct {
	Workers     int `yaml:"workers"`
	EventBuffer int `yaml:"eventBuffer"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() *Config {
	return &Config{Workers: DefaultWorkers, EventBuffer: DefaultEventBuffer}
}

func (c *Config) withDefaults() *Config {
	if c == nil {
		return DefaultConfig()
	}
	out := *c
	if out.Workers <= 0 {
		out.Workers = DefaultWorkers
	}
	if out.EventBuffer <= 0 {
		out.EventBuffer = DefaultEventBuffer
	}
	return &out
}

// Pool owns a fixed set of background execution slots and a FIFO queue
// of jobs. At most one active job exists per target key at any instant;
// a newer job for overlapping targets cancels the older one before it
// starts (cooperative — the older job stops at its next target
// boundary, never mid-write).
type Pool struct {
	cfg *Config
	log *logger.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*Job
	active map[string]*Job

	stopped bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPool starts cfg.Workers workers and returns the pool.
func NewPool(cfg *Config, log *logger.Logger) *Pool {
	if log == nil {
		log = logger.Nop()
	}
	p := &Pool{
		cfg:    cfg.withDefaults(),
		log:    log,
		active: make(map[string]*Job),
		stopCh: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Enqueue adds a job to the FIFO queue and returns its handle.
// Queued jobs whose target keys overlap the new job are superseded:
// removed with zero emitted events. Running jobs with overlapping keys
// get their cancellation requested immediately, and the new job will
// additionally wait for them to release their targets before starting.
func (p *Pool) Enqueue(spec Spec) (*Handle, error) {
	if spec.Run == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "job has no body")
	}
	if len(spec.Targets) == 0 && len(spec.ExtraKeys) == 0 {
		return nil, errs.New(errs.ErrKindInvalidInput, "job has no targets")
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil, errs.New(errs.ErrKindInvalidInput, "pool is closed")
	}

	j := newJob(spec, p.cfg.EventBuffer, p)
	keys := keySet(j)

	// Supersede queued jobs that share a key.
	var superseded []*Job
	kept := p.queue[:0]
	for _, q := range p.queue {
		if overlaps(q, keys) {
			superseded = append(superseded, q)
		} else {
			kept = append(kept, q)
		}
	}
	p.queue = kept

	// Ask running overlapping jobs to stop at their next boundary, and
	// unblock them if they are stalled on an undrained event buffer.
	for _, owner := range p.overlappingActive(keys) {
		owner.requestCancel()
		if owner.cancelFn != nil {
			owner.cancelFn()
		}
	}

	p.queue = append(p.queue, j)
	p.cond.Signal()
	p.mu.Unlock()

	for _, q := range superseded {
		p.finalizeUnstarted(q)
		p.log.Info().
			Str("job", q.id.String()).
			Str("superseded_by", j.id.String()).
			Msg("queued job superseded")
	}

	p.log.Info().
		Str("job", j.id.String()).
		Str("kind", j.kind.String()).
		Int("targets", len(j.targets)).
		Msg("job enqueued")

	return &Handle{j: j}, nil
}

// Close stops the pool: queued jobs are cancelled with zero events,
// running jobs are cancelled cooperatively, and Close blocks until all
// workers have exited.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	queued := p.queue
	p.queue = nil

	seen := map[*Job]bool{}
	var cancels []context.CancelFunc
	for _, j := range p.active {
		if !seen[j] && j.cancelFn != nil {
			seen[j] = true
			cancels = append(cancels, j.cancelFn)
		}
	}
	close(p.stopCh)
	p.cond.Broadcast()
	p.mu.Unlock()

	for _, q := range queued {
		p.finalizeUnstarted(q)
	}
	for _, cancel := range cancels {
		cancel()
	}
	p.wg.Wait()
}

// --- worker side ---

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		j := p.next()
		if j == nil {
			return
		}
		p.run(j)
	}
}

func (p *Pool) next() *Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.stopped {
			return nil
		}
		if len(p.queue) > 0 {
			j := p.queue[0]
			p.queue = p.queue[1:]
			return j
		}
		p.cond.Wait()
	}
}

// run starts j once no active job holds any of its target keys,
// cancelling older holders first. The per-target invariant lives here:
// registration in p.active is atomic under the pool mutex, so two jobs
// can never hold the same key.
func (p *Pool) run(j *Job) {
	keys := keySet(j)
	for {
		p.mu.Lock()
		if j.cancelPending() || p.stopped {
			p.mu.Unlock()
			p.finalizeUnstarted(j)
			return
		}

		blockers := p.overlappingActive(keys)
		if len(blockers) == 0 {
			ctx, cancel := context.WithCancel(context.Background())
			j.cancelFn = cancel
			j.setState(StateRunning)
			for _, k := range j.keys {
				p.active[k] = j
			}
			p.mu.Unlock()
			p.execute(ctx, j, cancel)
			return
		}

		for _, b := range blockers {
			b.requestCancel()
			if b.cancelFn != nil {
				b.cancelFn()
			}
		}
		p.mu.Unlock()

		// Wait outside the lock for the older jobs to reach a target
		// boundary and release their keys, then re-check. The wait also
		// observes this job's own cancellation and pool shutdown, so a
		// stuck predecessor can never wedge its successor.
		for _, b := range blockers {
			select {
			case <-b.done:
			case <-j.cancelled:
			case <-p.stopCh:
			}
		}
	}
}

func (p *Pool) execute(ctx context.Context, j *Job, cancel context.CancelFunc) {
	defer cancel()

	log := p.log.With().Str("job", j.id.String()).Str("kind", j.kind.String()).Logger()
	log.Info().Int("targets", len(j.targets)).Msg("job started")

	err := j.body(ctx, j)

	state := StateCompleted
	switch {
	case err == nil:
		state = StateCompleted
	case errs.IsCancelled(err):
		state = StateCancelled
	default:
		state = StateFailed
	}

	summary := j.snapshotSummary()
	j.mu.Lock()
	j.summary = summary
	j.mu.Unlock()
	j.setState(state)

	// The terminal event indexes one past the last target, so the
	// per-job index sequence never decreases, even after export-stage
	// progress emitted at len(targets).
	terminal := Event{
		JobID:        j.id,
		TargetIndex:  len(j.targets),
		TotalTargets: len(j.targets),
		Terminal:     true,
		State:        state,
		Summary:      summary,
	}
	if state == StateFailed {
		terminal.Err = err
	}
	j.publish(terminal)
	close(j.events)

	p.mu.Lock()
	for _, k := range j.keys {
		if p.active[k] == j {
			delete(p.active, k)
		}
	}
	p.mu.Unlock()
	close(j.done)

	ev := log.Info()
	if state == StateFailed {
		ev = log.Error().Err(err)
	}
	ev.Str("state", state.String()).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("unattempted", summary.Unattempted).
		Msg("job finished")
}

// finalizeUnstarted terminates a job that never ran: state Cancelled,
// zero emitted events, channel closed.
func (p *Pool) finalizeUnstarted(j *Job) {
	j.setState(StateCancelled)
	j.mu.Lock()
	j.summary = j.snapshotSummaryLocked()
	j.mu.Unlock()
	close(j.events)
	close(j.done)
}

func (j *Job) snapshotSummaryLocked() *Summary {
	results := make([]TargetResult, len(j.results))
	copy(results, j.results)
	return newSummary(results)
}

// cancel implements Handle.Cancel.
func (p *Pool) cancel(j *Job) {
	p.mu.Lock()
	switch j.State() {
	case StateQueued:
		for i, q := range p.queue {
			if q == j {
				p.queue = append(p.queue[:i], p.queue[i+1:]...)
				p.mu.Unlock()
				p.finalizeUnstarted(j)
				p.log.Info().Str("job", j.id.String()).Msg("queued job cancelled")
				return
			}
		}
		// Popped by a worker but not yet started; the worker will see
		// the request before registering and finalize with zero events.
		j.requestCancel()
		p.mu.Unlock()
	case StateRunning:
		fn := j.cancelFn
		j.requestCancel()
		p.mu.Unlock()
		if fn != nil {
			fn()
		}
		p.log.Info().Str("job", j.id.String()).Msg("cancellation requested")
	default:
		p.mu.Unlock()
	}
}

// --- helpers ---

func (p *Pool) overlappingActive(keys map[string]bool) []*Job {
	seen := map[*Job]bool{}
	var out []*Job
	for k := range keys {
		if owner, ok := p.active[k]; ok && !seen[owner] {
			seen[owner] = true
			out = append(out, owner)
		}
	}
	return out
}

func keySet(j *Job) map[string]bool {
	m := make(map[string]bool, len(j.keys))
	for _, k := range j.keys {
		m[k] = true
	}
	return m
}

func overlaps(j *Job, keys map[string]bool) bool {
	for _, k := range j.keys {
		if keys[k] {
			return true
		}
	}
	return false
}
