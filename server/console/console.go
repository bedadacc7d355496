// Package console implements a command line for operating a server: loading
// and unloading worlds and inspecting their storage.
package console

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dm-vev/terracotta/server"
)

// Console reads commands line by line from an io.Reader (defaulting to
// os.Stdin) and executes them on the main loop of a server. Output is written
// to a logger.
type Console struct {
	srv    *server.Server
	log    *slog.Logger
	reader io.Reader
}

// New returns a Console bound to the provided server. The console reads from
// os.Stdin and writes command output to the supplied logger.
func New(srv *server.Server, log *slog.Logger) *Console {
	if log == nil {
		log = slog.Default()
	}
	return &Console{
		srv:    srv,
		log:    log,
		reader: os.Stdin,
	}
}

// WithReader sets a custom reader for the console input. It enables testing the
// console without relying on os.Stdin.
func (c *Console) WithReader(r io.Reader) *Console {
	if r != nil {
		c.reader = r
	}
	return c
}

// Run starts consuming commands from the console. It blocks until the context
// is cancelled, the underlying reader reaches EOF or the stop command is run.
func (c *Console) Run(ctx context.Context) {
	scanner := bufio.NewScanner(c.reader)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				c.log.Error("Console input error.", "err", err)
			}
			return
		}
		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(args[0], "/"))
		if name == "stop" {
			c.log.Info("Stopping server.")
			if err := c.srv.Close(); err != nil {
				c.log.Error("Stop server.", "err", err)
			}
			return
		}
		cmd, ok := commands[name]
		if !ok {
			c.log.Error("Unknown command.", "command", name)
			continue
		}
		if len(args)-1 < cmd.args {
			c.log.Error("Usage: " + cmd.usage)
			continue
		}
		<-c.srv.Exec(func() {
			if err := cmd.run(c, args[1:]); err != nil {
				c.log.Error(err.Error(), "command", name)
			}
		})
	}
}

// command is a console command. run is called on the main loop of the server
// with at least args arguments.
type command struct {
	usage string
	args  int
	run   func(c *Console, args []string) error
}

var commands = map[string]command{
	"load":     {usage: "load <world>", args: 1, run: (*Console).load},
	"unload":   {usage: "unload <world>", args: 1, run: (*Console).unload},
	"worlds":   {usage: "worlds", run: (*Console).worlds},
	"info":     {usage: "info <world>", args: 1, run: (*Console).info},
	"get":      {usage: "get <world> <hex key>", args: 2, run: (*Console).get},
	"snapshot": {usage: "snapshot <world> <file>", args: 2, run: (*Console).snapshot},
	"autoload": {usage: "autoload <add|remove|list> [world]", args: 1, run: (*Console).autoload},
}

func (c *Console) load(args []string) error {
	if !c.srv.LoadWorld(args[0]) {
		return fmt.Errorf("world %v was not loaded", args[0])
	}
	return nil
}

func (c *Console) unload(args []string) error {
	if !c.srv.UnloadWorld(args[0]) {
		return fmt.Errorf("world %v is not loaded", args[0])
	}
	return nil
}

func (c *Console) worlds([]string) error {
	worlds := c.srv.Worlds()
	names := make([]string, len(worlds))
	for i, w := range worlds {
		names[i] = w.Name()
	}
	c.log.Info(fmt.Sprintf("Loaded worlds (%d): %v", len(names), strings.Join(names, ", ")))
	return nil
}

func (c *Console) info(args []string) error {
	w, ok := c.srv.World(args[0])
	if !ok {
		return fmt.Errorf("world %v is not loaded", args[0])
	}
	meta := w.Metadata()
	c.log.Info("World info.", "world", w.Name(), "spawn", meta.Spawn.String(), "difficulty", meta.Difficulty.String(), "state", w.State().String())
	return nil
}

func (c *Console) get(args []string) error {
	w, ok := c.srv.World(args[0])
	if !ok {
		return fmt.Errorf("world %v is not loaded", args[0])
	}
	key, err := hex.DecodeString(args[1])
	if err != nil {
		return fmt.Errorf("invalid key: %w", err)
	}
	v, err := w.Get(key)
	if err != nil {
		return fmt.Errorf("get %x: %w", key, err)
	}
	c.log.Info("Value found.", "world", w.Name(), "key", args[1], "len", len(v), "value", hex.EncodeToString(v))
	return nil
}

// snapshotter is implemented by world providers able to write snapshots of
// their database.
type snapshotter interface {
	Snapshot(w io.Writer) (int, error)
}

func (c *Console) snapshot(args []string) error {
	w, ok := c.srv.World(args[0])
	if !ok {
		return fmt.Errorf("world %v is not loaded", args[0])
	}
	s, ok := w.Provider().(snapshotter)
	if !ok {
		return fmt.Errorf("world %v does not support snapshots", w.Name())
	}
	f, err := os.Create(args[1])
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	n, err := s.Snapshot(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	c.log.Info("Snapshot written.", "world", w.Name(), "file", args[1], "entries", n)
	return nil
}

func (c *Console) autoload(args []string) error {
	a := c.srv.Autoload()
	if a == nil {
		return fmt.Errorf("no autoload list configured")
	}
	action := strings.ToLower(args[0])
	switch action {
	case "list":
		c.log.Info("Autoloaded worlds: " + strings.Join(a.Worlds(), ", "))
		return nil
	case "add", "remove":
		if len(args) < 2 {
			return fmt.Errorf("usage: autoload %v <world>", action)
		}
		var changed bool
		var err error
		if action == "add" {
			changed, err = a.Add(args[1])
		} else {
			changed, err = a.Remove(args[1])
		}
		if err != nil {
			return err
		}
		c.log.Info("Autoload list updated.", "world", args[1], "changed", changed)
		return nil
	}
	return fmt.Errorf("unknown autoload action %q", args[0])
}
