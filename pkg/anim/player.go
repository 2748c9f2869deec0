package anim

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultFrameRate is the playback interpolation rate in Hz.
const DefaultFrameRate = 30.0

// Player plays one clip at a time.
type Player struct {
	frameRate float64

	mu      sync.Mutex
	playing *Clip
	stopCh  chan struct{}
}

// NewPlayer creates a player interpolating at frameRate Hz.
// A non-positive rate uses DefaultFrameRate.
func NewPlayer(frameRate float64) *Player {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	return &Player{frameRate: frameRate}
}

// Play pushes poses for clip to sink until the clip ends, Stop is called or
// ctx is done. Blocks for the clip's duration. The final keyframe is always
// sent on normal completion.
func (p *Player) Play(ctx context.Context, clip *Clip, sink PoseSink) error {
	if len(clip.Frames) == 0 {
		return fmt.Errorf("%w: %s has no frames", ErrInvalidClip, clip.Name)
	}

	p.mu.Lock()
	if p.playing != nil {
		p.mu.Unlock()
		return ErrAlreadyPlaying
	}
	p.playing = clip
	stopCh := make(chan struct{})
	p.stopCh = stopCh
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.playing = nil
		p.stopCh = nil
		p.mu.Unlock()
	}()

	if err := sink.SetPose(ctx, clip.Frames[0].Pose); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(float64(time.Second) / p.frameRate))
	defer ticker.Stop()
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-stopCh:
			return nil

		case <-ticker.C:
			elapsed := time.Since(start)
			if elapsed >= clip.Duration {
				return sink.SetPose(ctx, clip.Frames[len(clip.Frames)-1].Pose)
			}
			if err := sink.SetPose(ctx, clip.PoseAt(elapsed)); err != nil {
				return err
			}
		}
	}
}

// Stop ends the current playback, if any.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopCh != nil {
		close(p.stopCh)
		p.stopCh = nil
	}
}

// Playing returns the clip being played, or nil.
func (p *Player) Playing() *Clip {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// PoseAt returns the interpolated pose at elapsed, clamped to the clip.
func (c *Clip) PoseAt(elapsed time.Duration) Pose {
	frames := c.Frames
	if len(frames) == 0 {
		return Pose{}
	}

	idx := sort.Search(len(frames), func(i int) bool {
		return frames[i].At > elapsed
	})
	if idx == 0 {
		return frames[0].Pose
	}
	if idx >= len(frames) {
		return frames[len(frames)-1].Pose
	}

	prev, next := frames[idx-1], frames[idx]
	span := next.At - prev.At
	if span <= 0 {
		return prev.Pose
	}
	alpha := float64(elapsed-prev.At) / float64(span)
	return interpolate(prev.Pose, next.Pose, alpha)
}
