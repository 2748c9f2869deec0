// Package facedetect finds faces in camera frames on the host.
//
// It backs the portrait behavior when the platform's own face events are
// unavailable or too slow: a Finder polls the camera while a find-faces
// behavior runs and reports the best detection as a platform face.
package facedetect

// Detection is a detected face.
type Detection struct {
	X, Y       float64 // Top-left corner (0-1 normalized)
	W, H       float64 // Width and height (0-1 normalized)
	Confidence float64 // Detection confidence (0-1)
}

// Center returns the center point of the detection.
func (d Detection) Center() (x, y float64) {
	return d.X + d.W/2, d.Y + d.H/2
}

// Area returns the area of the bounding box.
func (d Detection) Area() float64 {
	return d.W * d.H
}

// Detector is a face detection backend.
type Detector interface {
	// Detect finds faces in a JPEG frame.
	Detect(jpeg []byte) ([]Detection, error)

	// Close releases resources.
	Close() error
}

// Config holds detector configuration.
type Config struct {
	ModelPath        string  // Path to ONNX model
	ConfidenceThresh float64 // Minimum confidence (default 0.5)
	InputWidth       int     // Model input width
	InputHeight      int     // Model input height
}

// DefaultConfig returns defaults for YuNet with the given model.
func DefaultConfig(modelPath string) Config {
	return Config{
		ModelPath:        modelPath,
		ConfidenceThresh: 0.5,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// SelectBest picks the face to report from multiple detections.
// Score is confidence*0.7 + relative area*0.3.
func SelectBest(dets []Detection) *Detection {
	switch len(dets) {
	case 0:
		return nil
	case 1:
		return &dets[0]
	}

	maxArea := 0.0
	for _, d := range dets {
		maxArea = max(maxArea, d.Area())
	}
	if maxArea == 0 {
		maxArea = 1
	}

	bestScore := -1.0
	var best *Detection
	for i := range dets {
		score := dets[i].Confidence*0.7 + (dets[i].Area()/maxArea)*0.3
		if score > bestScore {
			bestScore = score
			best = &dets[i]
		}
	}
	return best
}
