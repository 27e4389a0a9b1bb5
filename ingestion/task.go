package ingestion

import (
	"context"
	"sync"
)

// Task is the handle of a background extraction pass.
type Task struct {
	docID string
	done  chan struct{}
	once  sync.Once
	err   error
}

func newTask(docID string) *Task {
	return &Task{docID: docID, done: make(chan struct{})}
}

// DocID returns the document the task works on.
func (t *Task) DocID() string {
	return t.docID
}

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the task's outcome. It is nil until Done is closed, and nil
// afterwards if the pass succeeded.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Task) finish(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}
