package server

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dm-vev/terracotta/server/resource"
	"github.com/dm-vev/terracotta/server/world"
	"github.com/dm-vev/terracotta/server/world/mcdb"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// Config contains options for starting a Terracotta server.
type Config struct {
	// Log is the Logger to use for logging information. If nil, Log is set to
	// slog.Default().
	Log *slog.Logger
	// Name is the name of the server.
	Name string
	// Worlds holds the settings used to open the storage of every world
	// loaded. If Worlds.Log is nil, it is set to Log.
	Worlds mcdb.Config
	// DefaultWorld is the name of the world loaded when the Server starts
	// running. Defaults to "world".
	DefaultWorld string
	// Autoload, if non-nil, holds the names of worlds loaded after the default
	// world when the Server starts running.
	Autoload *Autoload
	// TickInterval is the interval between two ticks of the main loop.
	// Defaults to 50ms, or 20 ticks per second.
	TickInterval time.Duration
	// Palettes holds the block palettes of the protocol versions supported. If
	// nil, an empty resource.Registry is used.
	Palettes *resource.Registry
	// Metrics, if non-nil, is the Registerer server and storage metrics are
	// registered with.
	Metrics prometheus.Registerer
}

// New creates a Server using fields of conf. No worlds are loaded until
// Server.Run is called.
func (conf Config) New() *Server {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Name == "" {
		conf.Name = "Terracotta Server"
	}
	if conf.DefaultWorld == "" {
		conf.DefaultWorld = "world"
	}
	if conf.TickInterval <= 0 {
		conf.TickInterval = time.Second / 20
	}
	if conf.Palettes == nil {
		conf.Palettes = resource.NewRegistry()
	}
	if conf.Worlds.Log == nil {
		conf.Worlds.Log = conf.Log
	}
	if conf.Worlds.Metrics == nil && conf.Metrics != nil {
		conf.Worlds.Metrics = mcdb.NewMetrics(conf.Metrics)
	}

	srv := &Server{
		conf:    conf,
		id:      uuid.New(),
		metrics: newMetrics(conf.Metrics),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
		failed:  make(chan struct{}),
	}
	srv.lifecycle = world.LifecycleConfig{
		Log:          conf.Log,
		Open:         srv.openWorld,
		OnTransition: srv.transition,
	}.New()
	return srv
}

// openWorld creates the Store of a world. The interface is only non-nil if no
// error occurred.
func (srv *Server) openWorld(name string) (world.Provider, error) {
	s, err := srv.conf.Worlds.Open(name)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// UserConfig is the user configuration for a Terracotta server. It holds
// settings such as the server's name and where worlds are stored. UserConfig
// may be serialised to TOML or YAML and can be converted to a Config by
// calling UserConfig.Config().
type UserConfig struct {
	Server struct {
		// Name is the name of the server.
		Name string
	}
	World struct {
		// Folder is the folder that the folders of all worlds reside in.
		Folder string
		// Default is the name of the world loaded on start-up.
		Default string
		// Engine is the database engine used for chunks: "leveldb" or
		// "badger".
		Engine string
		// Compression is the LevelDB block compression: "flate", "snappy" or
		// "none".
		Compression string
		// CreateLevelDat specifies if a default level.dat should be written for
		// worlds that do not have one. If false, such worlds fail to load.
		CreateLevelDat bool
		// AutoloadFile is the path to the TOML file holding the names of
		// worlds loaded after the default world.
		AutoloadFile string
	}
	Resources struct {
		// Folder is the folder block palettes named
		// block_palette_<protocol>.nbt are read from.
		Folder string
	}
	Metrics struct {
		// Enabled specifies if Prometheus metrics should be collected and
		// served.
		Enabled bool
		// Address is the address the metrics endpoint listens on.
		Address string
	}
}

// Config converts a UserConfig to a Config, so that it may be used for creating
// a Server. An error is returned if a setting is invalid or loading resources
// failed.
func (uc UserConfig) Config(log *slog.Logger) (Config, error) {
	engine, err := mcdb.ParseEngine(strings.TrimSpace(uc.World.Engine))
	if err != nil {
		return Config{}, fmt.Errorf("world engine: %w", err)
	}
	compression, err := mcdb.ParseCompression(strings.TrimSpace(uc.World.Compression))
	if err != nil {
		return Config{}, fmt.Errorf("world compression: %w", err)
	}
	conf := Config{
		Log:          log,
		Name:         uc.Server.Name,
		DefaultWorld: uc.World.Default,
		Worlds: mcdb.Config{
			Log:            log,
			Dir:            uc.World.Folder,
			Engine:         engine,
			Compression:    compression,
			CreateLevelDat: uc.World.CreateLevelDat,
		},
	}
	if uc.Metrics.Enabled {
		conf.Metrics = prometheus.DefaultRegisterer
	}
	if conf.Palettes, err = loadResources(uc.Resources.Folder); err != nil {
		return conf, fmt.Errorf("load resources: %w", err)
	}
	if f := strings.TrimSpace(uc.World.AutoloadFile); f != "" {
		if conf.Autoload, err = LoadAutoload(f); err != nil {
			return conf, fmt.Errorf("load autoload list: %w", err)
		}
	}
	return conf, nil
}

// loadResources loads all block palettes found in the directory passed,
// creating it if it does not exist.
func loadResources(dir string) (*resource.Registry, error) {
	if dir == "" {
		return resource.NewRegistry(), nil
	}
	_ = os.MkdirAll(dir, 0777)
	return resource.LoadDir(dir)
}

// DefaultConfig returns a configuration with the default values filled out.
func DefaultConfig() UserConfig {
	c := UserConfig{}
	c.Server.Name = "Terracotta Server"
	c.World.Folder = "worlds"
	c.World.Default = "world"
	c.World.Engine = string(mcdb.EngineLevelDB)
	c.World.Compression = "flate"
	c.World.CreateLevelDat = true
	c.World.AutoloadFile = "autoload.toml"
	c.Resources.Folder = "resources"
	c.Metrics.Address = ":9100"
	return c
}

// LoadUserConfig reads the UserConfig stored at path. The format is picked by
// the file extension: .toml, or .yaml and .yml. If the file does not exist, it
// is created holding DefaultConfig, which is then returned.
func LoadUserConfig(path string) (UserConfig, error) {
	c := DefaultConfig()
	marshal, unmarshal, err := configCodec(path)
	if err != nil {
		return c, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if data, err = marshal(c); err != nil {
			return c, fmt.Errorf("encode default config: %w", err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return c, fmt.Errorf("create default config: %w", err)
		}
		return c, nil
	} else if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	if err := unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

func configCodec(path string) (marshal func(any) ([]byte, error), unmarshal func([]byte, any) error, err error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Marshal, toml.Unmarshal, nil
	case ".yaml", ".yml":
		return yaml.Marshal, yaml.Unmarshal, nil
	}
	return nil, nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
}
