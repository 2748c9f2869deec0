package anim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Parse decodes a clip from its JSON representation.
func Parse(name string, data []byte) (*Clip, error) {
	var raw rawClip
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidClip, name, err)
	}

	if len(raw.Time) == 0 || len(raw.SetTargetData) == 0 {
		return nil, fmt.Errorf("%w: %s has no keyframes", ErrInvalidClip, name)
	}
	if len(raw.Time) != len(raw.SetTargetData) {
		return nil, fmt.Errorf("%w: %s has %d timestamps for %d keyframes",
			ErrInvalidClip, name, len(raw.Time), len(raw.SetTargetData))
	}
	if !sort.Float64sAreSorted(raw.Time) {
		return nil, fmt.Errorf("%w: %s timestamps are not increasing", ErrInvalidClip, name)
	}

	t0 := raw.Time[0]
	frames := make([]Frame, len(raw.Time))
	for i, kf := range raw.SetTargetData {
		roll, pitch, yaw := matrixToEuler(kf.Head)
		frames[i] = Frame{
			At: time.Duration((raw.Time[i] - t0) * float64(time.Second)),
			Pose: Pose{
				Roll:     roll,
				Pitch:    pitch,
				Yaw:      yaw,
				Antennas: kf.Antennas,
				BodyYaw:  kf.BodyYaw,
			},
		}
	}

	return &Clip{
		Name:        name,
		Description: raw.Description,
		Duration:    frames[len(frames)-1].At,
		Frames:      frames,
	}, nil
}

// LoadFile loads a clip from disk. The clip is named after the file.
func LoadFile(path string) (*Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read clip: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(name, data)
}

// LoadDir loads every *.json clip in dir into a new library.
// A missing directory yields an empty library.
func LoadDir(dir string) (*Library, error) {
	lib := NewLibrary()

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}

	for _, file := range files {
		clip, err := LoadFile(file)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
		lib.Add(clip)
	}
	return lib, nil
}
