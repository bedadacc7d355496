package server

import (
	"context"
	"errors"
	"math"
	"time"
)

const tpsSampleSize = 20

// task is a function queued using Server.Exec, along with the channel closed
// once it has run.
type task struct {
	f func()
	c chan struct{}
}

// Exec queues f to be run on the main loop of the Server and returns a channel
// that is closed once f has run. Exec may be called from any goroutine and
// never blocks. Tasks run in the order they were queued. If the Server has
// stopped, f is discarded and the channel returned is closed immediately.
func (srv *Server) Exec(f func()) <-chan struct{} {
	c := make(chan struct{})

	srv.queueMu.Lock()
	defer srv.queueMu.Unlock()
	if srv.stopped {
		close(c)
		return c
	}
	srv.queue = append(srv.queue, task{f: f, c: c})
	return c
}

// Run loads the default world and the worlds in the autoload list and then
// runs the main loop, ticking once every Config.TickInterval. Run blocks until
// ctx is cancelled, Server.Close is called or a fatal error occurs, which is
// then returned. All worlds are closed before Run returns.
func (srv *Server) Run(ctx context.Context) error {
	if !srv.running.CompareAndSwap(false, true) {
		return errors.New("server is already running")
	}
	defer close(srv.done)
	defer srv.closeWorlds()
	defer srv.stop()

	select {
	case <-srv.closing:
		return nil
	default:
	}
	srv.conf.Log.Info("Starting server.", "name", srv.conf.Name, "id", srv.id.String())
	srv.LoadWorld(srv.conf.DefaultWorld)
	for _, name := range srv.conf.Autoload.Worlds() {
		srv.LoadWorld(name)
	}
	return srv.tickLoop(ctx)
}

// tickLoop ticks the Server every Config.TickInterval, sampling the tick rate
// like a world does.
func (srv *Server) tickLoop(ctx context.Context) error {
	tc := time.NewTicker(srv.conf.TickInterval)
	defer tc.Stop()

	threshold := 0.95 * float64(time.Second) / float64(srv.conf.TickInterval)
	lastTick := time.Now()
	var (
		durationSum time.Duration
		ticksCount  int
		warned      bool
	)
	for {
		select {
		case <-tc.C:
			tickStart := time.Now()
			duration := tickStart.Sub(lastTick)
			lastTick = tickStart
			if duration > 0 {
				durationSum += duration
				ticksCount++
				if ticksCount >= tpsSampleSize {
					tps := 1.0 / (durationSum / time.Duration(ticksCount)).Seconds()
					srv.tps.Store(math.Float64bits(tps))
					if tps < threshold && !warned {
						srv.conf.Log.Warn("TPS dropped below threshold.", "tps", tps)
						warned = true
					} else if tps >= threshold {
						warned = false
					}
					durationSum, ticksCount = 0, 0
				}
			}
			srv.tickOnce()
		case <-srv.failed:
			srv.conf.Log.Error("Server stopped after a fatal error.", "err", srv.fatal)
			return srv.fatal
		case <-srv.closing:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// tickOnce advances the tick counter and runs queued tasks until the queue is
// empty, including tasks queued by the tasks run.
func (srv *Server) tickOnce() {
	srv.tick.Add(1)
	for {
		t, ok := srv.pop()
		if !ok {
			return
		}
		t.f()
		close(t.c)
	}
}

func (srv *Server) pop() (task, bool) {
	srv.queueMu.Lock()
	defer srv.queueMu.Unlock()
	if len(srv.queue) == 0 {
		return task{}, false
	}
	t := srv.queue[0]
	srv.queue[0] = task{}
	srv.queue = srv.queue[1:]
	return t, true
}

// stop runs the tasks still queued and makes Exec discard any task queued
// afterwards.
func (srv *Server) stop() {
	for {
		srv.queueMu.Lock()
		if len(srv.queue) == 0 {
			srv.stopped = true
			srv.queueMu.Unlock()
			return
		}
		t := srv.queue[0]
		srv.queue = srv.queue[1:]
		srv.queueMu.Unlock()

		t.f()
		close(t.c)
	}
}
