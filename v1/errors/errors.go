// Package errors holds the sentinel errors shared by the go-warp-sync
// packages. Callers match them with errors.Is.
package errors

import "errors"

var (
	// ErrTimeout is returned when a wait budget is exhausted before a permit
	// or signal was observed.
	ErrTimeout = errors.New("warp: timeout exceeded")
	// ErrTypeCollision is returned when a key holds a value of the wrong
	// kind for the primitive using it. It is never retried.
	ErrTypeCollision = errors.New("warp: type collision")
	// ErrInvalidCapacity is returned when a semaphore is built with fewer
	// than one permit.
	ErrInvalidCapacity = errors.New("warp: semaphore capacity must be positive")
	// ErrConnectionClosed is returned by stores used after Close.
	ErrConnectionClosed = errors.New("warp: connection closed")
)
