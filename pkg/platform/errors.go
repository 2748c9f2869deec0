package platform

import "errors"

var (
	// ErrTimeout is returned when a bounded wait exceeds its bound.
	ErrTimeout = errors.New("timed out")

	// ErrPlatform is returned when a request to the robot platform fails.
	ErrPlatform = errors.New("platform communication failure")

	// ErrIO is returned when a local artifact can't be written.
	ErrIO = errors.New("io failure")

	// ErrNoImage is returned when the camera has not produced a frame yet.
	ErrNoImage = errors.New("no camera image available")
)
