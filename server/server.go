// Package server implements a Terracotta server: the worlds loaded from disk,
// the resource tables read on start-up and the main loop running tasks
// submitted through Server.Exec.
package server

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/dm-vev/terracotta/server/resource"
	"github.com/dm-vev/terracotta/server/world"
	"github.com/google/uuid"
)

// Server holds the worlds of a Terracotta server and runs its main loop. A
// Server is created by calling Config.New and started with Server.Run.
type Server struct {
	conf      Config
	id        uuid.UUID
	lifecycle *world.Lifecycle
	metrics   *metrics

	queueMu sync.Mutex
	queue   []task

	tick atomic.Int64
	tps  atomic.Uint64

	running   atomic.Bool
	stopped   bool
	closeOnce sync.Once
	closing   chan struct{}
	done      chan struct{}

	failOnce sync.Once
	failed   chan struct{}
	fatal    error
}

// ID returns the unique ID of the Server, generated when it was created.
func (srv *Server) ID() uuid.UUID {
	return srv.id
}

// Name returns the name of the Server as set in its Config.
func (srv *Server) Name() string {
	return srv.conf.Name
}

// LoadWorld loads the world with the name passed from disk and registers it.
// It returns true only if the world was loaded by this call: false is returned
// if a world with the same name, compared case-insensitively, was already
// loaded, or if its level.dat or database could not be opened. If the world's
// directory could not be created, the failure is considered fatal and
// Server.Run returns it.
func (srv *Server) LoadWorld(name string) bool {
	if _, ok := srv.World(name); ok {
		srv.metrics.load(loadAlreadyLoaded)
	}
	ok, err := srv.lifecycle.LoadOrCreate(name)
	if err != nil {
		srv.fail(err)
		return false
	}
	srv.metrics.setLoaded(srv.lifecycle.Registry().Len())
	return ok
}

// UnloadWorld closes the world with the name passed and removes it from the
// Server. False is returned if no such world was loaded.
func (srv *Server) UnloadWorld(name string) bool {
	ok := srv.lifecycle.Unload(name)
	srv.metrics.setLoaded(srv.lifecycle.Registry().Len())
	return ok
}

// World returns the loaded world with the name passed.
func (srv *Server) World(name string) (*world.World, bool) {
	return srv.lifecycle.Registry().World(name)
}

// DefaultWorld returns the world named by Config.DefaultWorld, if it is
// loaded.
func (srv *Server) DefaultWorld() (*world.World, bool) {
	return srv.World(srv.conf.DefaultWorld)
}

// Worlds returns all loaded worlds sorted by name.
func (srv *Server) Worlds() []*world.World {
	return srv.lifecycle.Registry().Worlds()
}

// Palettes returns the block palettes the Server was configured with.
func (srv *Server) Palettes() *resource.Registry {
	return srv.conf.Palettes
}

// Autoload returns the autoload list of the Server, or nil if it has none.
func (srv *Server) Autoload() *Autoload {
	return srv.conf.Autoload
}

// CurrentTick returns the amount of ticks the main loop has performed.
func (srv *Server) CurrentTick() int64 {
	return srv.tick.Load()
}

// TPS returns the average ticks per second of the main loop, measured over the
// last tpsSampleSize ticks. It is zero until enough ticks were performed.
func (srv *Server) TPS() float64 {
	return math.Float64frombits(srv.tps.Load())
}

// transition is called by the world lifecycle for every state change of a
// world being loaded.
func (srv *Server) transition(name string, from, to world.State) {
	srv.conf.Log.Debug("World state changed.", "world", name, "from", from.String(), "to", to.String())
	switch to {
	case world.StateRegistered:
		srv.metrics.load(loadLoaded)
	case world.StateFailed:
		srv.metrics.load(loadFailed)
	}
}

// fail records err as the fatal error of the Server, stopping Server.Run.
func (srv *Server) fail(err error) {
	srv.failOnce.Do(func() {
		srv.fatal = err
		close(srv.failed)
	})
}

// Close stops the main loop and closes all loaded worlds. If Server.Run is
// active, Close blocks until it has returned, so it must not be called from a
// task passed to Server.Exec.
func (srv *Server) Close() error {
	srv.closeOnce.Do(func() {
		close(srv.closing)
	})
	if srv.running.Load() {
		<-srv.done
		return nil
	}
	srv.closeWorlds()
	return nil
}

func (srv *Server) closeWorlds() {
	for _, w := range srv.Worlds() {
		srv.UnloadWorld(w.Name())
	}
}
