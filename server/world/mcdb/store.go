// Package mcdb implements the persistent storage of a world: the level.dat
// file holding the world's metadata and the key-value database holding its
// chunks, both found in the world's folder.
package mcdb

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/dm-vev/terracotta/server/world"
	"github.com/dm-vev/terracotta/server/world/leveldat"
)

var (
	// ErrNotFound is returned if the level.dat of a world or a key looked up in
	// its database does not exist.
	ErrNotFound = world.ErrNotFound
	// ErrInvalidName is returned by Config.Open if the world name passed is not
	// the name of a single folder.
	ErrInvalidName = world.ErrInvalidName
	// ErrParse is returned if the level.dat of a world could not be parsed.
	ErrParse = errors.New("parse level.dat")
	// ErrStorageOpen is returned if the chunk database could not be created or
	// opened.
	ErrStorageOpen = errors.New("open chunk database")
	// ErrClosed is returned when the database is used before
	// Store.OpenDatabase was called or after Store.Close.
	ErrClosed = errors.New("chunk database not open")
)

// Store is the persistent storage of a single world. A Store is created by
// Config.Open and owns the world's database exclusively.
type Store struct {
	conf Config
	name string
	dir  string

	mu   sync.RWMutex
	db   database
	ldat *leveldat.LevelDat
	meta world.Metadata
}

// Name returns the name of the world the Store belongs to.
func (s *Store) Name() string {
	return s.name
}

// Dir returns the folder of the world.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) levelDatPath() string {
	return filepath.Join(s.dir, "level.dat")
}

// LoadMetadata reads the level.dat of the world and returns the spawn location
// and difficulty held in it. The spawn location is bound to the Store's world
// name. An error wrapping ErrNotFound is returned if the file does not exist,
// and one wrapping ErrParse if it could not be parsed.
func (s *Store) LoadMetadata() (world.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.levelDatPath()
	ldat, err := leveldat.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && s.conf.CreateLevelDat {
		s.conf.Log.Info("No level.dat found, creating a default one.")
		if err = leveldat.New().WriteFile(path); err == nil {
			ldat, err = leveldat.ReadFile(path)
		}
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return world.Metadata{}, fmt.Errorf("load metadata: %w: %w", ErrNotFound, err)
	case errors.Is(err, leveldat.ErrHeader):
		return world.Metadata{}, fmt.Errorf("load metadata: %w: %w", ErrParse, err)
	case err != nil:
		return world.Metadata{}, fmt.Errorf("load metadata: %w", err)
	}
	var d leveldat.Data
	if err := ldat.Unmarshal(&d); err != nil {
		return world.Metadata{}, fmt.Errorf("load metadata: %w: %w", ErrParse, err)
	}
	diff, ok := world.DifficultyByID(d.Difficulty)
	if !ok {
		return world.Metadata{}, fmt.Errorf("load metadata: %w: invalid difficulty %v", ErrParse, d.Difficulty)
	}
	s.ldat = ldat
	s.meta = world.Metadata{
		Spawn:      world.NewLocation(s.name, d.SpawnX, d.SpawnY, d.SpawnZ),
		Difficulty: diff,
	}
	s.conf.Log.Debug("Loaded level.dat.", "version", ldat.Ver(), "spawn", s.meta.Spawn.String(), "difficulty", diff.String())
	return s.meta, nil
}

// Metadata returns the metadata last loaded or saved.
func (s *Store) Metadata() world.Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// SaveMetadata writes meta to the level.dat of the world. Fields of the
// level.dat not covered by world.Metadata are preserved.
func (s *Store) SaveMetadata(meta world.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conf.ReadOnly {
		return errors.New("save metadata: store is read only")
	}
	ldat := s.ldat
	if ldat == nil {
		ldat = leveldat.New()
	}
	b := meta.Spawn.Block()
	if err := ldat.Marshal(leveldat.Data{SpawnX: b[0], SpawnY: b[1], SpawnZ: b[2], Difficulty: int32(meta.Difficulty)}); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	if err := ldat.WriteFile(s.levelDatPath()); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	meta.Spawn.World = s.name
	s.ldat, s.meta = ldat, meta
	return nil
}

// OpenDatabase opens the chunk database at <world>/db, creating it if it does
// not exist. An error wrapping ErrStorageOpen is returned if it could not be
// opened, for example because another process holds its lock. Calling
// OpenDatabase on a Store with an open database is a no-op.
func (s *Store) OpenDatabase() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}
	db, err := openDatabase(s.conf, s.dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageOpen, err)
	}
	s.db = db
	s.conf.Log.Debug("Opened chunk database.")
	return nil
}

// Get returns the value stored under key in the chunk database. An error
// wrapping ErrNotFound is returned if the key does not exist.
func (s *Store) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	v, err := s.db.Get(key)
	switch {
	case errors.Is(err, ErrNotFound):
		s.conf.Metrics.read(readMiss)
		return nil, err
	case err != nil:
		s.conf.Metrics.read(readError)
		return nil, fmt.Errorf("get %x: %w", key, err)
	}
	s.conf.Metrics.read(readHit)
	return v, nil
}

// Put stores value under key in the chunk database.
func (s *Store) Put(key, value []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	if err := s.db.Put(key, value); err != nil {
		return fmt.Errorf("put %x: %w", key, err)
	}
	s.conf.Metrics.write()
	return nil
}

// Delete removes key from the chunk database.
func (s *Store) Delete(key []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	if err := s.db.Delete(key); err != nil {
		return fmt.Errorf("delete %x: %w", key, err)
	}
	s.conf.Metrics.write()
	return nil
}

// SubChunk returns the raw data of the sub chunk at the coordinates passed,
// looked up using the Config's KeyFunc.
func (s *Store) SubChunk(x, z int32, y int8) ([]byte, error) {
	return s.Get(s.conf.Key(s.name, x, z, y))
}

// StoreSubChunk stores the raw data of the sub chunk at the coordinates
// passed.
func (s *Store) StoreSubChunk(x, z int32, y int8, data []byte) error {
	return s.Put(s.conf.Key(s.name, x, z, y), data)
}

// Close closes the chunk database. Close may be called on a Store whose
// database was never opened and may be called more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("close chunk database: %w", err)
	}
	return nil
}

// Compile time check to make sure Store implements world.Provider.
var _ world.Provider = (*Store)(nil)
