// Package export runs the document export pipeline: fetch each
// selected table's structure, assemble the workbook incrementally, then
// write the finished document to its destination in one atomic step.
//
// Exports run as pool jobs, so they obey the same rules as
// introspection: one active job per target, cooperative cancellation at
// target boundaries, per-target fault isolation. The destination path
// joins the job's keys, so two exports never race on one file.
package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jwkim/schemadoc/internal/errs"
	"github.com/jwkim/schemadoc/internal/filestore"
	"github.com/jwkim/schemadoc/internal/metadata"
	"github.com/jwkim/schemadoc/internal/pipeline"
	"github.com/jwkim/schemadoc/internal/workbook"
)

// Exporter enqueues export jobs on a pool and lands the finished
// documents in a Store.
type Exporter struct {
	pool  *pipeline.Pool
	store filestore.Store
}

// New creates an Exporter writing through store.
func New(pool *pipeline.Pool, store filestore.Store) *Exporter {
	return &Exporter{pool: pool, store: store}
}

// Export enqueues a job that builds a workbook for targets and writes
// it to dest. The returned handle streams stage progress; the file
// appears at dest only if the job completes.
//
// Cancellation before the final write leaves nothing at dest. A
// destination write failure fails the job even though every fetch
// succeeded.
func (e *Exporter) Export(src metadata.Source, targets []metadata.TableRef, dest string) (*pipeline.Handle, error) {
	if dest == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "export destination is required")
	}
	return e.pool.Enqueue(pipeline.Spec{
		Kind:      pipeline.KindExport,
		Targets:   targets,
		ExtraKeys: []string{dest},
		Run:       e.body(src, dest),
	})
}

// body walks the targets, growing the workbook as structures arrive.
// Fetch and assembly interleave: each structure is laid onto its sheets
// and released before the next fetch starts, so memory tracks the
// document, not the raw results.
func (e *Exporter) body(src metadata.Source, dest string) pipeline.Body {
	return func(ctx context.Context, j *pipeline.Job) error {
		b := workbook.NewBuilder()

		for i, target := range j.Targets() {
			if ctx.Err() != nil {
				return pipeline.ErrCancelled
			}

			st, err := src.DescribeTable(ctx, target)
			if err != nil {
				if ctx.Err() != nil {
					return pipeline.ErrCancelled
				}
				j.EmitTargetError(i, err)
				if errs.IsJobFatal(err) {
					return err
				}
				continue
			}

			b.Add(st)
			j.EmitTargetDone(i, fmt.Sprintf("added %s to workbook", target))
		}

		if ctx.Err() != nil {
			return pipeline.ErrCancelled
		}

		return e.write(ctx, j, b, dest)
	}
}

// write serializes the workbook and moves it to dest. Serialization
// happens in memory; the store's Put contract guarantees nothing lands
// at dest unless the whole write succeeds.
func (e *Exporter) write(ctx context.Context, j *pipeline.Job, b *workbook.Builder, dest string) error {
	j.EmitProgress(len(j.Targets()), "writing "+dest)

	var buf bytes.Buffer
	if err := workbook.Write(b.Workbook(), &buf); err != nil {
		return err
	}

	err := e.store.Put(ctx, dest, &buf, int64(buf.Len()), filestore.ContentTypeXLSX)
	if err != nil {
		if errs.IsCancelled(err) || ctx.Err() != nil {
			return pipeline.ErrCancelled
		}
		if errs.IsWriteFailed(err) {
			return err
		}
		return errs.Wrap(errs.ErrKindWriteFailed, "failed to store workbook", err)
	}

	j.EmitProgress(len(j.Targets()), "export complete: "+dest)
	return nil
}
