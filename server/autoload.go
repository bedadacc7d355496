package server

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/dm-vev/terracotta/server/world"
	"github.com/pelletier/go-toml"
)

// ErrInvalidWorldName is returned when an empty world name is passed to an
// Autoload operation.
var ErrInvalidWorldName = world.ErrInvalidName

// Autoload is the list of worlds loaded when a server starts, persisted in a
// TOML file. Names are compared case-insensitively, in the same way as by a
// world.Registry.
type Autoload struct {
	mu       sync.RWMutex
	worlds   map[string]string
	filePath string
}

type autoloadFile struct {
	Worlds []string `toml:"worlds"`
}

// LoadAutoload loads the autoload list stored in the file at the path passed.
// If the file does not exist yet, it is created with an empty list.
func LoadAutoload(path string) (*Autoload, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("autoload path must not be empty")
	}
	a := &Autoload{worlds: make(map[string]string), filePath: path}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.readLocked(); err != nil {
		return nil, err
	}
	return a, nil
}

// Add inserts the world name passed into the list. The bool returned is true if
// the name was newly added.
func (a *Autoload) Add(name string) (bool, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return false, ErrInvalidWorldName
	}
	key := world.FoldName(trimmed)

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.worlds[key]; ok {
		return false, nil
	}
	a.worlds[key] = trimmed
	if err := a.writeLocked(); err != nil {
		delete(a.worlds, key)
		return false, err
	}
	return true, nil
}

// Remove deletes the world name passed from the list. The bool returned is true
// if the name was present before the call.
func (a *Autoload) Remove(name string) (bool, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return false, ErrInvalidWorldName
	}
	key := world.FoldName(trimmed)

	a.mu.Lock()
	defer a.mu.Unlock()
	original, ok := a.worlds[key]
	if !ok {
		return false, nil
	}
	delete(a.worlds, key)
	if err := a.writeLocked(); err != nil {
		a.worlds[key] = original
		return false, err
	}
	return true, nil
}

// Worlds returns the names in the list, sorted case-insensitively.
func (a *Autoload) Worlds() []string {
	if a == nil {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sortedLocked()
}

func (a *Autoload) readLocked() error {
	contents, err := os.ReadFile(a.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return a.writeLocked()
	} else if err != nil {
		return fmt.Errorf("read autoload list: %w", err)
	}
	var data autoloadFile
	if len(contents) != 0 {
		if err := toml.Unmarshal(contents, &data); err != nil {
			return fmt.Errorf("decode autoload list: %w", err)
		}
	}
	for _, name := range data.Worlds {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			a.worlds[world.FoldName(trimmed)] = trimmed
		}
	}
	return nil
}

func (a *Autoload) writeLocked() error {
	if dir := filepath.Dir(a.filePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0777); err != nil {
			return fmt.Errorf("create autoload directory: %w", err)
		}
	}
	encoded, err := toml.Marshal(autoloadFile{Worlds: a.sortedLocked()})
	if err != nil {
		return fmt.Errorf("encode autoload list: %w", err)
	}
	if err := os.WriteFile(a.filePath, encoded, 0644); err != nil {
		return fmt.Errorf("write autoload list: %w", err)
	}
	return nil
}

func (a *Autoload) sortedLocked() []string {
	keys := slices.Sorted(maps.Keys(a.worlds))
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = a.worlds[k]
	}
	return names
}
