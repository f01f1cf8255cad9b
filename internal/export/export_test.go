package export

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jwkim/schemadoc/internal/errs"
	"github.com/jwkim/schemadoc/internal/filestore/local"
	"github.com/jwkim/schemadoc/internal/metadata"
	"github.com/jwkim/schemadoc/internal/pipeline"
	"github.com/jwkim/schemadoc/internal/workbook"
)

type stubSource struct {
	failWith map[string]error
	gate     chan struct{} // when non-nil, each DescribeTable consumes one token
}

func (s *stubSource) ConcurrencySafe() {}

func (s *stubSource) Ping(context.Context) error { return nil }
func (s *stubSource) Close()                     {}

func (s *stubSource) ListTables(context.Context) ([]metadata.TableMeta, error) {
	return nil, nil
}

func (s *stubSource) GenerateDDL(_ context.Context, ref metadata.TableRef) (string, error) {
	return "", nil
}

func (s *stubSource) DescribeTable(ctx context.Context, ref metadata.TableRef) (*metadata.TableStructure, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, errs.Wrap(errs.ErrKindTimeout, "describe interrupted", ctx.Err())
		}
	}
	if err := s.failWith[ref.String()]; err != nil {
		return nil, err
	}
	return &metadata.TableStructure{
		Ref:     ref,
		Comment: "about " + ref.Name,
		Columns: []metadata.ColumnInfo{
			{Name: "id", DataType: "bigint", Key: "PRI"},
		},
	}, nil
}

func refs(names ...string) []metadata.TableRef {
	out := make([]metadata.TableRef, len(names))
	for i, n := range names {
		out[i] = metadata.TableRef{Schema: "public", Name: n}
	}
	return out
}

func drain(h *pipeline.Handle) []pipeline.Event {
	var events []pipeline.Event
	for ev := range h.Events() {
		events = append(events, ev)
	}
	return events
}

func TestExport_WritesWorkbook(t *testing.T) {
	dir := t.TempDir()
	p := pipeline.NewPool(nil, nil)
	defer p.Close()

	e := New(p, local.New(dir))
	h, err := e.Export(&stubSource{}, refs("a", "b"), "schema.xlsx")
	require.NoError(t, err)

	events := drain(h)
	terminal := events[len(events)-1]
	require.True(t, terminal.Terminal)
	assert.Equal(t, pipeline.StateCompleted, terminal.State)
	assert.Equal(t, 2, terminal.Summary.Succeeded)

	f, err := excelize.OpenFile(filepath.Join(dir, "schema.xlsx"))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetCellValue(workbook.ListingSheetName, "B2")
	require.NoError(t, err)
	assert.Equal(t, "a", got)
	got, err = f.GetCellValue(workbook.ListingSheetName, "B3")
	require.NoError(t, err)
	assert.Equal(t, "b", got)
}

func TestExport_CancelBeforeWriteLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	src := &stubSource{gate: make(chan struct{}, 4)}

	p := pipeline.NewPool(&pipeline.Config{Workers: 1}, nil)
	defer p.Close()

	e := New(p, local.New(dir))
	h, err := e.Export(src, refs("a", "b", "c"), "schema.xlsx")
	require.NoError(t, err)

	// First target completes, then cancel mid-job.
	src.gate <- struct{}{}
	first := <-h.Events()
	assert.Equal(t, 0, first.TargetIndex)

	h.Cancel()
	events := drain(h)
	terminal := events[len(events)-1]
	assert.Equal(t, pipeline.StateCancelled, terminal.State)

	// No file, no temp artifacts.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExport_WriteFailureFailsJob(t *testing.T) {
	p := pipeline.NewPool(nil, nil)
	defer p.Close()

	e := New(p, failingStore{})
	h, err := e.Export(&stubSource{}, refs("a"), "schema.xlsx")
	require.NoError(t, err)

	events := drain(h)
	terminal := events[len(events)-1]
	require.True(t, terminal.Terminal)
	assert.Equal(t, pipeline.StateFailed, terminal.State)
	assert.True(t, errs.IsWriteFailed(terminal.Err))

	// Every fetch succeeded; the write is what failed.
	assert.Equal(t, 1, terminal.Summary.Succeeded)
}

func TestExport_PerTargetFailureIsIsolated(t *testing.T) {
	dir := t.TempDir()
	src := &stubSource{failWith: map[string]error{
		"public.b": errs.New(errs.ErrKindQueryFailed, "view is broken"),
	}}

	p := pipeline.NewPool(nil, nil)
	defer p.Close()

	e := New(p, local.New(dir))
	h, err := e.Export(src, refs("a", "b", "c"), "schema.xlsx")
	require.NoError(t, err)

	events := drain(h)
	terminal := events[len(events)-1]
	assert.Equal(t, pipeline.StateCompleted, terminal.State)
	assert.Equal(t, 2, terminal.Summary.Succeeded)
	assert.Equal(t, 1, terminal.Summary.Failed)

	// The document still lands, holding the two good tables.
	f, err := excelize.OpenFile(filepath.Join(dir, "schema.xlsx"))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetCellValue(workbook.ListingSheetName, "B3")
	require.NoError(t, err)
	assert.Equal(t, "c", got)
}

func TestExport_EmptyDestinationRejected(t *testing.T) {
	p := pipeline.NewPool(nil, nil)
	defer p.Close()

	e := New(p, local.New(t.TempDir()))
	_, err := e.Export(&stubSource{}, refs("a"), "")
	assert.True(t, errs.IsInvalidInput(err))
}

type failingStore struct{}

func (failingStore) Ping(context.Context) error { return nil }
func (failingStore) Close() error               { return nil }

func (failingStore) Put(context.Context, string, io.Reader, int64, string) error {
	return errs.New(errs.ErrKindWriteFailed, "disk full")
}

// The full export stream, stage progress and terminal event included,
// must keep TargetIndex non-decreasing.
func TestExport_EventIndicesNeverDecrease(t *testing.T) {
	p := pipeline.NewPool(nil, nil)
	defer p.Close()

	e := New(p, local.New(t.TempDir()))
	h, err := e.Export(&stubSource{}, refs("a", "b"), "schema.xlsx")
	require.NoError(t, err)

	events := drain(h)
	require.NotEmpty(t, events)

	last := 0
	for i, ev := range events {
		require.GreaterOrEqual(t, ev.TargetIndex, last, "TargetIndex decreased at event %d", i)
		last = ev.TargetIndex
	}

	terminal := events[len(events)-1]
	require.True(t, terminal.Terminal)
	assert.Equal(t, 2, terminal.TargetIndex)
}
