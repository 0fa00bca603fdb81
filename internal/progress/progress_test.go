package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	calls [][2]int
}

func (r *recorder) OnProgress(current, total int) {
	r.calls = append(r.calls, [2]int{current, total})
}

func TestFunc_Nil(t *testing.T) {
	var f Func
	f.OnProgress(1, 2) // must not panic
	Discard.OnProgress(1, 2)
}

func TestTracker_MonotonicAndBounded(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(10, rec)

	tr.Set(0)
	tr.Set(3)
	tr.Set(2)  // regression dropped
	tr.Set(3)  // no advance dropped
	tr.Set(50) // clamped to total
	tr.Advance(1)
	tr.Done()

	assert.Equal(t, [][2]int{{0, 10}, {3, 10}, {10, 10}}, rec.calls)
	assert.Equal(t, 10, tr.Current())
}

func TestTracker_NegativeTotal(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(-5, rec)
	tr.Advance(3)

	assert.Equal(t, 0, tr.Total())
	assert.Equal(t, [][2]int{{0, 0}}, rec.calls)
}

func TestCoalescer_Steps(t *testing.T) {
	rec := &recorder{}
	c := NewCoalescer(rec, CoalesceOptions{MinStepPercent: 10})

	for i := 0; i <= 100; i++ {
		c.OnProgress(i, 100)
	}

	assert.Len(t, rec.calls, 11)
	assert.Equal(t, [2]int{0, 100}, rec.calls[0])
	assert.Equal(t, [2]int{100, 100}, rec.calls[len(rec.calls)-1])
}

func TestCoalescer_FinalAlwaysForwarded(t *testing.T) {
	rec := &recorder{}
	c := NewCoalescer(rec, CoalesceOptions{MinStepPercent: 50})

	c.OnProgress(0, 1000)
	c.OnProgress(10, 1000)
	c.OnProgress(1000, 1000)

	assert.Equal(t, [][2]int{{0, 1000}, {1000, 1000}}, rec.calls)
}

func TestCoalescer_Interval(t *testing.T) {
	rec := &recorder{}
	now := time.Unix(0, 0)
	c := NewCoalescer(rec, CoalesceOptions{
		MinStepPercent: 50,
		MinInterval:    time.Second,
		Now:            func() time.Time { return now },
	})

	c.OnProgress(0, 100)
	c.OnProgress(1, 100) // too small, too soon
	now = now.Add(2 * time.Second)
	c.OnProgress(2, 100) // interval elapsed

	assert.Equal(t, [][2]int{{0, 100}, {2, 100}}, rec.calls)
}

func TestChain(t *testing.T) {
	rec := &recorder{}
	tr := Chain(4, rec, CoalesceOptions{})

	for i := 0; i < 4; i++ {
		tr.Advance(1)
	}
	tr.Done()

	assert.Equal(t, [][2]int{{1, 4}, {2, 4}, {3, 4}, {4, 4}}, rec.calls)
}
