package world

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// ErrAlreadyLoaded is returned when a World is added to a Registry that
// already holds a World with the same name.
var ErrAlreadyLoaded = errors.New("world already loaded")

// Registry maps world names to the Worlds loaded. Names are compared case
// insensitively. A Registry is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	worlds map[string]*World
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{worlds: make(map[string]*World)}
}

var (
	foldMu sync.Mutex
	fold   = cases.Fold()
)

// FoldName returns the case folded form of a world name. Two names refer to
// the same world if their folded forms are equal.
func FoldName(name string) string {
	// A Caser keeps state between calls.
	foldMu.Lock()
	defer foldMu.Unlock()
	return fold.String(name)
}

// Add registers w. An error wrapping ErrAlreadyLoaded is returned if a World
// with the same name is already registered.
func (r *Registry) Add(w *World) error {
	k := FoldName(w.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.worlds[k]; ok {
		return fmt.Errorf("register %q: %w", w.Name(), ErrAlreadyLoaded)
	}
	r.worlds[k] = w
	return nil
}

// World returns the World registered under name.
func (r *Registry) World(name string) (*World, bool) {
	k := FoldName(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.worlds[k]
	return w, ok
}

// Remove unregisters the World with the name passed and returns it.
func (r *Registry) Remove(name string) (*World, bool) {
	k := FoldName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.worlds[k]
	if ok {
		delete(r.worlds, k)
	}
	return w, ok
}

// Worlds returns all registered Worlds sorted by name.
func (r *Registry) Worlds() []*World {
	r.mu.RLock()
	worlds := make([]*World, 0, len(r.worlds))
	for _, w := range r.worlds {
		worlds = append(worlds, w)
	}
	r.mu.RUnlock()
	slices.SortFunc(worlds, func(a, b *World) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return worlds
}

// Len returns the amount of registered Worlds.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.worlds)
}
