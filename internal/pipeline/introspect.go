package pipeline

import (
	"context"

	"github.com/jwkim/schemadoc/internal/errs"
	"github.com/jwkim/schemadoc/internal/metadata"
)

// Introspect enqueues a job that fetches the structure of each target
// from src, in request order, emitting one event per target.
//
// src is used as given: callers whose source does not advertise
// concurrency safety should wrap it with metadata.Serial once, at
// construction, so the one-in-flight-query-per-session rule holds
// across jobs.
func Introspect(p *Pool, src metadata.Source, targets []metadata.TableRef) (*Handle, error) {
	return p.Enqueue(Spec{
		Kind:    KindIntrospect,
		Targets: targets,
		Run:     introspectBody(src),
	})
}

// introspectBody walks the targets one by one. A per-target failure is
// recorded and the job moves on; only a job-fatal error (lost session)
// stops the walk, leaving the remaining targets unattempted.
// Cancellation is observed at target boundaries only.
func introspectBody(src metadata.Source) Body {
	return func(ctx context.Context, j *Job) error {
		for i, target := range j.Targets() {
			if ctx.Err() != nil {
				return ErrCancelled
			}

			st, err := src.DescribeTable(ctx, target)
			if err != nil {
				// A query interrupted by our own cancellation is the
				// boundary in progress, not a target failure.
				if ctx.Err() != nil {
					return ErrCancelled
				}
				j.EmitTargetError(i, err)
				if errs.IsJobFatal(err) {
					return err
				}
				continue
			}
			j.EmitStructure(i, st)
		}
		return nil
	}
}
