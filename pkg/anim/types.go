// Package anim plays keyframe animation clips on the robot.
//
// Clips are loaded from JSON files in the recorded-move format (timestamps
// plus head matrix, antenna and body targets per frame) and played back in
// real time, interpolating between keyframes and pushing each pose to a
// PoseSink.
package anim

import (
	"context"
	"time"
)

// rawFrame is one keyframe as stored on disk.
type rawFrame struct {
	// Head is a 4x4 homogeneous transform: rotation plus translation in meters.
	Head [4][4]float64 `json:"head"`

	// Antennas are the left and right antenna positions in radians.
	Antennas [2]float64 `json:"antennas"`

	// BodyYaw is the body rotation in radians.
	BodyYaw float64 `json:"body_yaw"`
}

// rawClip is the JSON layout of a clip file.
type rawClip struct {
	Description   string     `json:"description"`
	Time          []float64  `json:"time"`
	SetTargetData []rawFrame `json:"set_target_data"`
}

// Pose is a complete robot target at one instant.
type Pose struct {
	Roll, Pitch, Yaw float64    // Head orientation in radians
	Antennas         [2]float64 // Left, right in radians
	BodyYaw          float64    // Radians
}

// Frame is a pose at a time offset from the clip start.
type Frame struct {
	At   time.Duration
	Pose Pose
}

// Clip is a loaded, playable animation.
type Clip struct {
	Name        string
	Description string
	Duration    time.Duration
	Frames      []Frame // Sorted by At, first frame at 0
}

// PoseSink receives poses during playback.
type PoseSink interface {
	SetPose(ctx context.Context, pose Pose) error
}

// PoseSinkFunc adapts a function to PoseSink.
type PoseSinkFunc func(ctx context.Context, pose Pose) error

// SetPose calls f.
func (f PoseSinkFunc) SetPose(ctx context.Context, pose Pose) error {
	return f(ctx, pose)
}
