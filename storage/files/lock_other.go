//go:build !unix

package files

import "os"

// lockFile is a no-op where flock is unavailable; in-process writers are
// still serialized by their caller's mutex.
func lockFile(*os.File) error {
	return nil
}

// LockPath only creates path where flock is unavailable.
func LockPath(path string) (func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return f.Close, nil
}
