package anim

import "errors"

var (
	// ErrNotFound is returned when a clip is not in the library.
	ErrNotFound = errors.New("clip not found")

	// ErrAlreadyPlaying is returned when the player is busy.
	ErrAlreadyPlaying = errors.New("clip already playing")

	// ErrInvalidClip is returned when a clip file is malformed.
	ErrInvalidClip = errors.New("invalid clip data")
)
