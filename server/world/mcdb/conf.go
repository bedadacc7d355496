package mcdb

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/df-mc/goleveldb/leveldb/opt"
)

// Engine is the key-value engine used for the chunk database of a world.
type Engine string

const (
	// EngineLevelDB stores chunks in a LevelDB database, the format used by
	// Bedrock Edition worlds.
	EngineLevelDB Engine = "leveldb"
	// EngineBadger stores chunks in a Badger database.
	EngineBadger Engine = "badger"
)

// Config holds the settings used to open the Store of a world.
type Config struct {
	// Log is the Logger to use for debug messages and errors. If nil, Log is
	// set to slog.Default().
	Log *slog.Logger
	// Dir is the directory world folders are created in. Defaults to "worlds".
	Dir string
	// Engine is the engine of the chunk database. Defaults to EngineLevelDB.
	Engine Engine
	// Compression is the compression used for LevelDB blocks. Defaults to
	// opt.FlateCompression. It is ignored by other engines.
	Compression opt.Compression
	// BlockSize is the LevelDB block size. Defaults to 16KiB.
	BlockSize int
	// ReadOnly opens the chunk database in read only mode.
	ReadOnly bool
	// Key maps sub chunk coordinates to database keys. Defaults to
	// BedrockKey.
	Key KeyFunc
	// Metrics, if non-nil, records database reads and writes.
	Metrics *Metrics
	// CreateLevelDat specifies if a default level.dat should be written when a
	// world without one is loaded. If false, loading such a world fails.
	CreateLevelDat bool
}

// Open prepares the folder of the world with the name passed under
// Config.Dir, creating it if it does not exist, and returns a Store for it.
// Neither metadata nor database are opened: Store.LoadMetadata and
// Store.OpenDatabase must be called for that.
func (conf Config) Open(name string) (*Store, error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Dir == "" {
		conf.Dir = "worlds"
	}
	if conf.Engine == "" {
		conf.Engine = EngineLevelDB
	}
	if conf.Compression == opt.DefaultCompression {
		conf.Compression = opt.FlateCompression
	}
	if conf.BlockSize == 0 {
		conf.BlockSize = 16 * opt.KiB
	}
	if conf.Key == nil {
		conf.Key = BedrockKey
	}
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return nil, fmt.Errorf("open world: %w: %q", ErrInvalidName, name)
	}
	dir := filepath.Join(conf.Dir, name)
	if err := os.MkdirAll(dir, 0777); err != nil {
		return nil, fmt.Errorf("open world: create directory: %w", err)
	}
	conf.Log = conf.Log.With("world", name, "engine", string(conf.Engine))
	return &Store{conf: conf, name: name, dir: dir}, nil
}

// ParseCompression parses the name of a LevelDB compression: "flate",
// "snappy" or "none".
func ParseCompression(name string) (opt.Compression, error) {
	switch name {
	case "", "flate":
		return opt.FlateCompression, nil
	case "snappy":
		return opt.SnappyCompression, nil
	case "none":
		return opt.NoCompression, nil
	}
	return 0, fmt.Errorf("unknown compression %q", name)
}

// ParseEngine parses the name of an Engine.
func ParseEngine(name string) (Engine, error) {
	switch e := Engine(name); e {
	case "":
		return EngineLevelDB, nil
	case EngineLevelDB, EngineBadger:
		return e, nil
	}
	return "", fmt.Errorf("unknown database engine %q", name)
}
