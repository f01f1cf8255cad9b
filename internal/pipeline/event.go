package pipeline

import (
	"github.com/google/uuid"

	"github.com/jwkim/schemadoc/internal/metadata"
)

// Event is one progress report from a running job. Events for the same
// job are delivered in non-decreasing TargetIndex order; the last event
// has Terminal set and carries the job's final State and Summary.
type Event struct {
	JobID        uuid.UUID
	Target       metadata.TableRef
	TargetIndex  int
	TotalTargets int

	// Structure is the introspection payload for this target.
	// Nil for export progress events and for failed targets.
	Structure *metadata.TableStructure

	// Message describes export-stage progress (sheet written, file
	// moved into place). Empty for introspection events.
	Message string

	// Err is the per-target error, if this target failed.
	Err error

	Terminal bool
	State    State    // meaningful only when Terminal
	Summary  *Summary // meaningful only when Terminal
}

// TargetOutcome classifies how one target ended.
type TargetOutcome int

const (
	OutcomeUnattempted TargetOutcome = iota
	OutcomeSucceeded
	OutcomeFailed
)

func (o TargetOutcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	default:
		return "unattempted"
	}
}

// TargetResult is the recorded outcome of a single target.
type TargetResult struct {
	Target  metadata.TableRef
	Outcome TargetOutcome
	Err     error // set when Outcome is OutcomeFailed
}

// Summary is the per-target success/failure report carried by a job's
// terminal event. Nothing is silently dropped: every requested target
// appears exactly once, in request order.
type Summary struct {
	Total       int
	Succeeded   int
	Failed      int
	Unattempted int
	Targets     []TargetResult
}

func newSummary(results []TargetResult) *Summary {
	s := &Summary{Total: len(results), Targets: results}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeSucceeded:
			s.Succeeded++
		case OutcomeFailed:
			s.Failed++
		default:
			s.Unattempted++
		}
	}
	return s
}
