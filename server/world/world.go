package world

import (
	"errors"
	"sync"
)

var (
	// ErrNotFound is returned by a Provider if data requested is not present.
	ErrNotFound = errors.New("not found")
	// ErrInvalidName is returned by a ProviderFunc if the name passed cannot be
	// used as the name of a world folder.
	ErrInvalidName = errors.New("invalid world name")
)

// Metadata holds the world-wide settings read from a world's level.dat.
type Metadata struct {
	// Spawn is the default spawn location of the world.
	Spawn Location
	// Difficulty is the difficulty the world is played on.
	Difficulty Difficulty
}

// Provider provides persistent storage for a World. Metadata and chunk
// database are opened separately, in that order, when a World is loaded.
type Provider interface {
	// LoadMetadata reads the metadata of the world.
	LoadMetadata() (Metadata, error)
	// OpenDatabase opens the key-value database holding the chunks of the
	// world, creating it if it does not yet exist.
	OpenDatabase() error
	// Get returns the raw value stored under key. An error matching
	// ErrNotFound is returned if the key is not present.
	Get(key []byte) ([]byte, error)
	// Close releases the database. It must be safe to call Close on a
	// Provider that never opened its database.
	Close() error
}

// World is a world registered on a server: a name bound to a Provider and the
// metadata loaded from it. A World is only created once both metadata and
// database were loaded successfully.
type World struct {
	name string
	prov Provider

	mu     sync.RWMutex
	meta   Metadata
	closed bool
}

func newWorld(name string, prov Provider, meta Metadata) *World {
	meta.Spawn.World = name
	return &World{name: name, prov: prov, meta: meta}
}

// Name returns the name the World was loaded with.
func (w *World) Name() string {
	return w.name
}

// Provider returns the Provider of the World.
func (w *World) Provider() Provider {
	return w.prov
}

// Metadata returns the metadata of the World.
func (w *World) Metadata() Metadata {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.meta
}

// Spawn returns the spawn location of the World.
func (w *World) Spawn() Location {
	return w.Metadata().Spawn
}

// Difficulty returns the difficulty of the World.
func (w *World) Difficulty() Difficulty {
	return w.Metadata().Difficulty
}

// SetMetadata replaces the metadata of the World in memory. The spawn location
// is always bound to the World itself.
func (w *World) SetMetadata(meta Metadata) {
	meta.Spawn.World = w.name
	w.mu.Lock()
	defer w.mu.Unlock()
	w.meta = meta
}

// Get returns the raw value stored under key in the World's database.
func (w *World) Get(key []byte) ([]byte, error) {
	return w.prov.Get(key)
}

// State returns StateRegistered for a World in use, and StateUnregistered
// once it was closed.
func (w *World) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return StateUnregistered
	}
	return StateRegistered
}

// Close closes the Provider of the World.
func (w *World) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return w.prov.Close()
}
