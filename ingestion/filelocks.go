package ingestion

import "sync"

// fileLocks serializes registration and deletion of original files that
// share a name. An entry lives while someone holds or waits for it.
type fileLocks struct {
	mu    sync.Mutex
	locks map[string]*fileLock
}

type fileLock struct {
	sync.Mutex
	refs int
}

func newFileLocks() *fileLocks {
	return &fileLocks{locks: make(map[string]*fileLock)}
}

// lock blocks until name is free and returns the release func.
func (f *fileLocks) lock(name string) func() {
	f.mu.Lock()
	l, ok := f.locks[name]
	if !ok {
		l = &fileLock{}
		f.locks[name] = l
	}
	l.refs++
	f.mu.Unlock()

	l.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.Unlock()
			f.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(f.locks, name)
			}
			f.mu.Unlock()
		})
	}
}

func (f *fileLocks) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.locks)
}
