package timer

import (
	"container/heap"
	"time"

	"github.com/jonboulle/clockwork"
)

// Handle is a cancellable reference to one scheduled callback.
// A cancelled or fired handle never runs again.
type Handle struct {
	name  string
	at    time.Time
	seq   uint64
	fn    func()
	index int // position in the heap, -1 once removed
	queue *Queue
}

// Name returns the label the callback was scheduled with
func (h *Handle) Name() string { return h.name }

// Deadline returns when the callback is due
func (h *Handle) Deadline() time.Time { return h.at }

// Pending reports whether the callback has neither fired nor been cancelled
func (h *Handle) Pending() bool { return h != nil && h.index >= 0 }

// Cancel removes the callback from its queue. It returns false if the handle
// already fired or was cancelled. Cancel on a nil handle is a no-op.
func (h *Handle) Cancel() bool {
	if !h.Pending() {
		return false
	}
	heap.Remove(&h.queue.items, h.index)
	return true
}

// Queue is a deadline-ordered set of callbacks driven from a single goroutine.
// It never starts goroutines itself: the owner waits until Next and calls RunDue.
type Queue struct {
	clock clockwork.Clock
	items handleHeap
	seq   uint64

	// deadline of the callback currently running, zero outside RunDue
	firing time.Time
}

// New creates an empty queue reading time from clock
func New(clock clockwork.Clock) *Queue {
	return &Queue{clock: clock}
}

// Schedule arranges for fn to run d from now. Callbacks scheduled from inside
// another callback are relative to that callback's deadline, so a chain of
// timers keeps its spacing even when RunDue is called late.
func (q *Queue) Schedule(name string, d time.Duration, fn func()) *Handle {
	base := q.firing
	if base.IsZero() {
		base = q.clock.Now()
	}
	if d < 0 {
		d = 0
	}

	q.seq++
	h := &Handle{
		name:  name,
		at:    base.Add(d),
		seq:   q.seq,
		fn:    fn,
		queue: q,
	}
	heap.Push(&q.items, h)
	return h
}

// Replace cancels prev, if still pending, and schedules a new callback in its place
func (q *Queue) Replace(prev *Handle, name string, d time.Duration, fn func()) *Handle {
	prev.Cancel()
	return q.Schedule(name, d, fn)
}

// Next returns the earliest pending deadline
func (q *Queue) Next() (time.Time, bool) {
	if len(q.items) == 0 {
		return time.Time{}, false
	}
	return q.items[0].at, true
}

// RunDue runs every callback whose deadline is at or before now, in deadline
// order (ties in scheduling order), and returns how many ran.
func (q *Queue) RunDue(now time.Time) int {
	ran := 0
	for len(q.items) > 0 && !q.items[0].at.After(now) {
		h := heap.Pop(&q.items).(*Handle)
		q.firing = h.at
		h.fn()
		ran++
	}
	q.firing = time.Time{}
	return ran
}

// Pending counts live callbacks scheduled under name
func (q *Queue) Pending(name string) int {
	n := 0
	for _, h := range q.items {
		if h.name == name {
			n++
		}
	}
	return n
}

// Len returns the number of live callbacks
func (q *Queue) Len() int { return len(q.items) }

// Clear cancels every pending callback
func (q *Queue) Clear() {
	for _, h := range q.items {
		h.index = -1
	}
	q.items = nil
}

// handleHeap implements heap.Interface ordered by deadline then sequence
type handleHeap []*Handle

func (hh handleHeap) Len() int { return len(hh) }

func (hh handleHeap) Less(i, j int) bool {
	if hh[i].at.Equal(hh[j].at) {
		return hh[i].seq < hh[j].seq
	}
	return hh[i].at.Before(hh[j].at)
}

func (hh handleHeap) Swap(i, j int) {
	hh[i], hh[j] = hh[j], hh[i]
	hh[i].index = i
	hh[j].index = j
}

func (hh *handleHeap) Push(x any) {
	h := x.(*Handle)
	h.index = len(*hh)
	*hh = append(*hh, h)
}

func (hh *handleHeap) Pop() any {
	old := *hh
	n := len(old)
	h := old[n-1]
	old[n-1] = nil
	h.index = -1
	*hh = old[:n-1]
	return h
}
