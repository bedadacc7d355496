// Command inspect_world prints the metadata of a world folder and, optionally,
// the block storage of one of its sub chunks or the states of a block palette.
package main

import (
	"bytes"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dm-vev/terracotta/server/resource"
	"github.com/dm-vev/terracotta/server/world/chunk"
	"github.com/dm-vev/terracotta/server/world/mcdb"
)

func main() {
	dir := flag.String("world", "worlds/world", "path to the world folder")
	engine := flag.String("engine", "leveldb", "database engine of the world")
	subChunk := flag.String("subchunk", "", "sub chunk to decode, as x,z,y")
	key := flag.String("key", "", "hex encoded database key to print the raw value of")
	palette := flag.String("palette", "", "block palette file to list, for example resources/block_palette_685.nbt")
	filter := flag.String("filter", "", "only list palette states with names containing this string")
	flag.Parse()

	if *palette != "" {
		if err := listPalette(os.Stdout, *palette, *filter); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if err := inspectWorld(os.Stdout, *dir, *engine, *subChunk, *key); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func inspectWorld(w io.Writer, dir, engine, subChunk, key string) error {
	e, err := mcdb.ParseEngine(engine)
	if err != nil {
		return err
	}
	conf := mcdb.Config{
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Dir:      filepath.Dir(dir),
		Engine:   e,
		ReadOnly: true,
	}
	s, err := conf.Open(filepath.Base(dir))
	if err != nil {
		return err
	}
	defer s.Close()

	meta, err := s.LoadMetadata()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "world:      %v\nspawn:      %v\ndifficulty: %v\n", s.Name(), meta.Spawn, meta.Difficulty)
	if key != "" {
		k, err := hex.DecodeString(key)
		if err != nil {
			return fmt.Errorf("parse key: %w", err)
		}
		if err := s.OpenDatabase(); err != nil {
			return err
		}
		v, err := s.Get(k)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "key %x:     %v bytes\n%x\n", k, len(v), v)
	}
	if subChunk == "" {
		return nil
	}
	var x, z, y int32
	if _, err := fmt.Sscanf(subChunk, "%d,%d,%d", &x, &z, &y); err != nil {
		return fmt.Errorf("parse sub chunk %q: %w", subChunk, err)
	}
	if err := s.OpenDatabase(); err != nil {
		return err
	}
	data, err := s.SubChunk(x, z, int8(y))
	if err != nil {
		return err
	}
	storage, err := chunk.DecodeBlockStorage(bytes.NewReader(data))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "sub chunk:  %v,%v,%v (%v, %v entries)\n", x, z, y, storage.Version(), len(storage.Palette()))
	for i, rid := range storage.Palette() {
		fmt.Fprintf(w, "  %3d: %v\n", i, rid)
	}
	return nil
}

func listPalette(w io.Writer, path, filter string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	p, err := resource.ReadBlockPalette(0, f)
	if err != nil {
		return err
	}
	for rid, s := range p.States() {
		if filter != "" && !strings.Contains(s.Name, filter) {
			continue
		}
		fmt.Fprintf(w, "%5d %v => %+v\n", rid, s.Name, s.Properties)
	}
	return nil
}
