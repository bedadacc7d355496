package world

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// State is a step in loading a World. Each step is only reached if the one
// before it succeeded.
type State int

const (
	StateUnregistered State = iota
	StateDirectoryReady
	StateMetadataLoaded
	StateDatabaseOpen
	StateRegistered
	StateFailed
)

// String ...
func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateDirectoryReady:
		return "directory ready"
	case StateMetadataLoaded:
		return "metadata loaded"
	case StateDatabaseOpen:
		return "database open"
	case StateRegistered:
		return "registered"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ProviderFunc creates the Provider for the world with the name passed,
// preparing the world's directory. An error returned is considered fatal: a
// server cannot run without its data directory.
type ProviderFunc func(name string) (Provider, error)

// LifecycleConfig holds the collaborators of a Lifecycle.
type LifecycleConfig struct {
	// Log is the Logger load outcomes are logged to. If nil, slog.Default() is
	// used.
	Log *slog.Logger
	// Registry is the Registry loaded Worlds are added to. If nil, a new
	// Registry is created.
	Registry *Registry
	// Open creates the Provider of a world. Open must be non-nil.
	Open ProviderFunc
	// OnTransition, if non-nil, is called every time a world load moves to a
	// new State.
	OnTransition func(name string, from, to State)
}

// Lifecycle loads Worlds into a Registry. A World is only registered if both
// its metadata and its database could be opened. Nothing is rolled back if a
// step fails: directories created stay on disk.
type Lifecycle struct {
	conf LifecycleConfig
	mu   sync.Mutex
}

// New creates a Lifecycle using the fields of conf.
func (conf LifecycleConfig) New() *Lifecycle {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Registry == nil {
		conf.Registry = NewRegistry()
	}
	if conf.Open == nil {
		panic("world: LifecycleConfig.Open must not be nil")
	}
	return &Lifecycle{conf: conf}
}

// Registry returns the Registry Worlds are loaded into.
func (l *Lifecycle) Registry() *Registry {
	return l.conf.Registry
}

// LoadOrCreate loads the world with the name passed and registers it. False is
// returned if a world with that name was already loaded, if the name is
// rejected with ErrInvalidName or if its metadata or database could not be
// opened. The error returned is non-nil only if the world's directory could not
// be prepared, which callers should treat as fatal.
func (l *Lifecycle) LoadOrCreate(name string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	log := l.conf.Log.With("world", name)
	if _, ok := l.conf.Registry.World(name); ok {
		log.Warn("World was already loaded.")
		return false, nil
	}
	state := StateUnregistered
	advance := func(to State) {
		if l.conf.OnTransition != nil {
			l.conf.OnTransition(name, state, to)
		}
		state = to
	}
	prov, err := l.conf.Open(name)
	if errors.Is(err, ErrInvalidName) {
		advance(StateFailed)
		log.Warn("World name is invalid.", "err", err)
		return false, nil
	} else if err != nil {
		advance(StateFailed)
		log.Error("World directory could not be prepared.", "err", err)
		return false, fmt.Errorf("prepare world %q: %w", name, err)
	}
	advance(StateDirectoryReady)

	fail := func(err error) (bool, error) {
		log.Error("World load failed.", "state", state.String(), "err", err)
		if cerr := prov.Close(); cerr != nil {
			log.Error("Close world provider.", "err", cerr)
		}
		advance(StateFailed)
		return false, nil
	}
	meta, err := prov.LoadMetadata()
	if err != nil {
		return fail(fmt.Errorf("load metadata: %w", err))
	}
	advance(StateMetadataLoaded)

	if err := prov.OpenDatabase(); err != nil {
		return fail(fmt.Errorf("open database: %w", err))
	}
	advance(StateDatabaseOpen)

	if err := l.conf.Registry.Add(newWorld(name, prov, meta)); err != nil {
		return fail(err)
	}
	advance(StateRegistered)
	log.Info("World has been loaded successfully.", "spawn", meta.Spawn.String(), "difficulty", meta.Difficulty.String())
	return true, nil
}

// Unload removes the world with the name passed from the Registry and closes
// its Provider. False is returned if no such world was loaded.
func (l *Lifecycle) Unload(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.conf.Registry.Remove(name)
	if !ok {
		return false
	}
	log := l.conf.Log.With("world", w.Name())
	if err := w.Close(); err != nil {
		log.Error("Close world provider.", "err", err)
	}
	log.Info("World has been unloaded.")
	return true
}
