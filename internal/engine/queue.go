package engine

import (
	"sync"

	"github.com/wesleyorama2/replay/internal/directive"
)

// TaskQueue hands the directives of one wave to the workers. Every directive
// is dequeued by exactly one worker; DrainWait is the barrier that ends the
// wave.
//
// The queue is filled once and closed, so Dequeue never blocks on an empty
// queue: it reports ok == false and the worker terminates.
type TaskQueue struct {
	ch   chan *directive.Directive
	wg   sync.WaitGroup
	size int
}

// NewTaskQueue loads ds into a new queue.
func NewTaskQueue(ds []*directive.Directive) *TaskQueue {
	q := &TaskQueue{
		ch:   make(chan *directive.Directive, len(ds)),
		size: len(ds),
	}
	q.wg.Add(len(ds))
	for _, d := range ds {
		q.ch <- d
	}
	close(q.ch)
	return q
}

// Dequeue returns the next directive, or ok == false once the queue is empty.
func (q *TaskQueue) Dequeue() (d *directive.Directive, ok bool) {
	d, ok = <-q.ch
	return d, ok
}

// Done marks a dequeued directive as finished. It must be called exactly once
// per dequeued directive, whether it ran, was skipped or was drained.
func (q *TaskQueue) Done(*directive.Directive) {
	q.wg.Done()
}

// DrainWait blocks until every loaded directive has been marked done.
func (q *TaskQueue) DrainWait() {
	q.wg.Wait()
}

// Len returns the number of directives not yet dequeued.
func (q *TaskQueue) Len() int {
	return len(q.ch)
}

// Size returns the number of directives the queue was loaded with.
func (q *TaskQueue) Size() int {
	return q.size
}
