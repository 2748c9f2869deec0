// Package platform defines the narrow contracts cube-action uses to talk to
// a robot platform: motion, speech, camera, behaviors, animation, lights and
// the cube object registry.
//
// Like the robot package these are small, focused interfaces composed into
// Robot. Consumers should depend only on what they actually call; tests
// substitute fakes without a live robot connection.
package platform

import (
	"context"
	"image"
	"time"
)

// Speaker renders speech on the robot.
type Speaker interface {
	// Say blocks until the utterance has been spoken.
	// durationScalar stretches (>1) or compresses (<1) the speaking time.
	Say(ctx context.Context, text string, durationScalar float64) error
}

// Navigator drives the robot.
type Navigator interface {
	// GoToObject drives to obj and stops distanceMM away from it.
	GoToObject(ctx context.Context, obj Object, distanceMM float64) error

	// TurnTowardsFace rotates the robot to face a previously observed face.
	TurnTowardsFace(ctx context.Context, face Face) error
}

// BehaviorRunner starts platform-provided autonomous routines.
type BehaviorRunner interface {
	StartBehavior(ctx context.Context, kind BehaviorType) (Behavior, error)
}

// Behavior is a running platform routine.
type Behavior interface {
	Type() BehaviorType
	Stop(ctx context.Context) error
}

// Animator plays named animation clips.
type Animator interface {
	// PlayAnimation blocks until the clip has finished.
	PlayAnimation(ctx context.Context, name string) error
}

// Camera provides access to the robot's image stream.
type Camera interface {
	EnableImageStream(ctx context.Context, enabled bool) error

	// LatestImage returns the most recent frame.
	// Returns ErrNoImage if the stream has not produced one yet.
	LatestImage(ctx context.Context) (image.Image, error)
}

// Backpack controls the chassis indicator lights.
type Backpack interface {
	SetBackpackLights(ctx context.Context, light Light) error
}

// World is the object registry: cube connectivity, discovery and faces.
type World interface {
	ConnectCubes(ctx context.Context) error

	// WaitForObjects blocks until n distinct objects of kind are observed.
	// Returns ErrTimeout if timeout elapses first. Never returns fewer than n.
	WaitForObjects(ctx context.Context, n int, kind ObjectType, timeout time.Duration) ([]Object, error)

	// WaitForFace blocks until a face is observed.
	// Returns ErrTimeout if timeout elapses first.
	WaitForFace(ctx context.Context, timeout time.Duration) (Face, error)
}

// Robot is the composite handle to the robot platform.
type Robot interface {
	Speaker
	Navigator
	BehaviorRunner
	Animator
	Camera
	Backpack
	World
}

// Object is a physical cube tracked by the platform.
type Object interface {
	// ID is the platform's object id. Stable for the object's lifetime.
	ID() string

	// CubeID is the cube identity assigned at pairing (1-3).
	CubeID() int

	Type() ObjectType

	// SetLights changes the cube's indicator. Returns once the request is sent.
	SetLights(ctx context.Context, light Light) error

	// OnTap subscribes handler to tap notifications for this object.
	// The platform invokes each notification on its own goroutine.
	// The returned func removes the subscription.
	OnTap(handler TapHandler) (unsubscribe func())
}

// TapHandler receives tap notifications.
type TapHandler func(ctx context.Context, ev TapEvent)
