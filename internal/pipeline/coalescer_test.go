package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwkim/schemadoc/internal/metadata"
)

type dispatchRecorder struct {
	mu      sync.Mutex
	batches [][]metadata.TableRef
}

func (r *dispatchRecorder) dispatch(targets []metadata.TableRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, targets)
}

func (r *dispatchRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *dispatchRecorder) batch(i int) []metadata.TableRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches[i]
}

func ref(name string) metadata.TableRef {
	return metadata.TableRef{Schema: "public", Name: name}
}

func TestCoalescer_BurstProducesOneDispatch(t *testing.T) {
	rec := &dispatchRecorder{}
	c := NewCoalescer(40*time.Millisecond, rec.dispatch)
	defer c.Close()

	// Rapid-fire toggles within the quiet window, with duplicates.
	c.Submit(ref("a"))
	c.Submit(ref("b"))
	c.Submit(ref("a"), ref("c"))

	require.Eventually(t, func() bool { return rec.count() == 1 },
		time.Second, 5*time.Millisecond)

	// Exactly one dispatch with the union, in first-seen order.
	assert.Equal(t, []metadata.TableRef{ref("a"), ref("b"), ref("c")}, rec.batch(0))

	// And it stays at one.
	time.Sleep(3 * 40 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestCoalescer_SeparateBurstsDispatchSeparately(t *testing.T) {
	rec := &dispatchRecorder{}
	c := NewCoalescer(30*time.Millisecond, rec.dispatch)
	defer c.Close()

	c.Submit(ref("a"))
	require.Eventually(t, func() bool { return rec.count() == 1 },
		time.Second, 5*time.Millisecond)

	c.Submit(ref("b"))
	require.Eventually(t, func() bool { return rec.count() == 2 },
		time.Second, 5*time.Millisecond)

	assert.Equal(t, []metadata.TableRef{ref("a")}, rec.batch(0))
	assert.Equal(t, []metadata.TableRef{ref("b")}, rec.batch(1))
}

func TestCoalescer_SubmitRestartsWindow(t *testing.T) {
	rec := &dispatchRecorder{}
	c := NewCoalescer(60*time.Millisecond, rec.dispatch)
	defer c.Close()

	// Keep submitting inside the window; nothing may fire while the
	// burst is still going.
	for i := 0; i < 5; i++ {
		c.Submit(ref("a"))
		time.Sleep(20 * time.Millisecond)
		assert.Zero(t, rec.count())
	}

	require.Eventually(t, func() bool { return rec.count() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestCoalescer_CloseDropsPending(t *testing.T) {
	rec := &dispatchRecorder{}
	c := NewCoalescer(30*time.Millisecond, rec.dispatch)

	c.Submit(ref("a"))
	c.Close()

	time.Sleep(4 * 30 * time.Millisecond)
	assert.Zero(t, rec.count(), "pending dispatch must be dropped on Close")

	// Submitting after Close is a no-op.
	c.Submit(ref("b"))
	time.Sleep(2 * 30 * time.Millisecond)
	assert.Zero(t, rec.count())
}
