package anim

import (
	"fmt"
	"sort"
	"sync"
)

// Library is a named collection of clips.
type Library struct {
	mu    sync.RWMutex
	clips map[string]*Clip
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{clips: make(map[string]*Clip)}
}

// Add registers clip, replacing any clip with the same name.
func (l *Library) Add(clip *Clip) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clips[clip.Name] = clip
}

// Get retrieves a clip by name.
func (l *Library) Get(name string) (*Clip, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	clip, ok := l.clips[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return clip, nil
}

// Names returns all clip names, sorted.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.clips))
	for name := range l.clips {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of clips.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.clips)
}
