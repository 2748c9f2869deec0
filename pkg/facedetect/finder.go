package facedetect

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/teslashibe/cube-action/internal/log"
	"github.com/teslashibe/cube-action/pkg/platform"
)

// DefaultInterval is how often the Finder samples the camera.
const DefaultInterval = 200 * time.Millisecond

// FrameSource supplies JPEG camera frames.
type FrameSource interface {
	LatestJPEG(ctx context.Context) ([]byte, error)
}

// FaceSink receives faces found by the Finder.
type FaceSink interface {
	ObserveFace(face platform.Face)
}

// BehaviorState reports which platform behaviors are running.
type BehaviorState interface {
	BehaviorActive(kind platform.BehaviorType) bool
}

// Finder runs local detection while a find-faces behavior is active.
type Finder struct {
	detector Detector
	frames   FrameSource
	sink     FaceSink
	state    BehaviorState

	interval      time.Duration
	minConfidence float64
	log           *slog.Logger
}

// FinderOption configures a Finder.
type FinderOption func(*Finder)

// WithInterval sets the sampling interval.
func WithInterval(d time.Duration) FinderOption {
	return func(f *Finder) { f.interval = d }
}

// WithMinConfidence drops detections below c.
func WithMinConfidence(c float64) FinderOption {
	return func(f *Finder) { f.minConfidence = c }
}

// WithFinderLogger sets the logger.
func WithFinderLogger(l *slog.Logger) FinderOption {
	return func(f *Finder) { f.log = l }
}

// NewFinder creates a Finder. It does not take ownership of detector.
func NewFinder(detector Detector, frames FrameSource, sink FaceSink, state BehaviorState, opts ...FinderOption) *Finder {
	f := &Finder{
		detector: detector,
		frames:   frames,
		sink:     sink,
		state:    state,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = log.Component("facedetect")
	}
	return f
}

// Run samples frames until ctx is done.
func (f *Finder) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !f.state.BehaviorActive(platform.FindFaces) {
				continue
			}
			f.scan(ctx)
		}
	}
}

// scan runs one detection pass. Reports whether a face was sent to the sink.
func (f *Finder) scan(ctx context.Context) bool {
	frame, err := f.frames.LatestJPEG(ctx)
	if err != nil {
		if !errors.Is(err, platform.ErrNoImage) && ctx.Err() == nil {
			f.log.Debug("frame fetch failed", "error", err)
		}
		return false
	}

	dets, err := f.detector.Detect(frame)
	if err != nil {
		f.log.Debug("detect failed", "error", err)
		return false
	}

	best := SelectBest(dets)
	if best == nil || best.Confidence < f.minConfidence {
		return false
	}

	f.log.Debug("face detected", "confidence", best.Confidence, "faces", len(dets))
	f.sink.ObserveFace(platform.Face{
		X:          best.X,
		Y:          best.Y,
		W:          best.W,
		H:          best.H,
		ObservedAt: time.Now(),
	})
	return true
}
