package ingestion

import "sync"

// flights enforces one extraction pass per document. Per-document locks
// are created on first use and never removed, so no two goroutines can hold
// different locks for the same document.
type flights struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	tasks map[string]*Task
}

func newFlights() *flights {
	return &flights{
		locks: make(map[string]*sync.Mutex),
		tasks: make(map[string]*Task),
	}
}

// acquire takes the document's lock and registers a new task. If the lock
// is already held it returns the running task and false.
func (f *flights) acquire(docID string) (*Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	lock, ok := f.locks[docID]
	if !ok {
		lock = &sync.Mutex{}
		f.locks[docID] = lock
	}
	if !lock.TryLock() {
		return f.tasks[docID], false
	}

	task := newTask(docID)
	f.tasks[docID] = task
	return task, true
}

// release unregisters the document's task and unlocks it.
func (f *flights) release(docID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.tasks, docID)
	f.locks[docID].Unlock()
}

// running returns the in-flight task of a document, if any.
func (f *flights) running(docID string) *Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks[docID]
}
