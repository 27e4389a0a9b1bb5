// Package retry runs an operation until it succeeds, a permanent error is
// returned, the attempts run out or the context ends.
package retry
