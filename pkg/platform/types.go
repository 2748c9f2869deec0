package platform

import (
	"fmt"
	"time"
)

// ObjectType classifies objects in the world.
type ObjectType string

const (
	// LightCube is a tappable cube with a controllable light.
	LightCube ObjectType = "light_cube"
	// Charger is the robot's charging dock.
	Charger ObjectType = "charger"
)

// BehaviorType names a platform behavior.
type BehaviorType string

const (
	// LookAroundInPlace turns the robot in place scanning for objects.
	LookAroundInPlace BehaviorType = "look_around_in_place"
	// FindFaces moves the head and body searching for faces.
	FindFaces BehaviorType = "find_faces"
)

// Face is a face observed by the platform (or a local detector).
type Face struct {
	ID int // Platform face id, 0 for local detections

	// Bounding box, normalized to 0-1 of the frame
	X, Y, W, H float64

	ObservedAt time.Time
}

// Center returns the center point of the face box.
func (f Face) Center() (x, y float64) {
	return f.X + f.W/2, f.Y + f.H/2
}

// TapEvent is a notification that an object was physically tapped.
type TapEvent struct {
	Object Object
	At     time.Time

	// Extra holds platform-supplied fields the controller doesn't interpret
	// (tap count, duration, intensity...).
	Extra map[string]any
}

// Light is an indicator color.
type Light struct {
	Name    string
	R, G, B uint8
}

// String returns the light name.
func (l Light) String() string {
	if l.Name != "" {
		return l.Name
	}
	return fmt.Sprintf("#%02x%02x%02x", l.R, l.G, l.B)
}

// Hex returns the light as a CSS hex color.
func (l Light) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", l.R, l.G, l.B)
}

// Indicator palette.
var (
	Red   = Light{Name: "red", R: 255}
	Green = Light{Name: "green", G: 255}
	Blue  = Light{Name: "blue", B: 255}
	Off   = Light{Name: "off"}
)
