package cubeaction

import (
	"time"

	"github.com/teslashibe/cube-action/pkg/platform"
)

// State is the session lifecycle state.
type State int

const (
	// StateIdle means Initialize has not started.
	StateIdle State = iota

	// StateScanning means the robot is looking for cubes.
	StateScanning

	// StateReady means all cubes are found and taps are handled.
	StateReady
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Observer is notified of session changes. The debug viewer implements it.
// Calls may arrive concurrently from different tap goroutines.
type Observer interface {
	StateChanged(state State)
	CubeLight(cubeID int, light platform.Light)
	BehaviorStarted(cubeID int, b Behavior)
	BehaviorFinished(cubeID int, b Behavior, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) StateChanged(State)                                   {}
func (nopObserver) CubeLight(int, platform.Light)                        {}
func (nopObserver) BehaviorStarted(int, Behavior)                        {}
func (nopObserver) BehaviorFinished(int, Behavior, time.Duration, error) {}
