package resource

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
)

// Registry holds the block palettes of all protocol versions supported. It is
// built once and never modified, so it may be shared freely.
type Registry struct {
	palettes map[int32]*BlockPalette
}

// NewRegistry creates a Registry holding the palettes passed. A later palette
// replaces an earlier one of the same protocol.
func NewRegistry(palettes ...*BlockPalette) *Registry {
	r := &Registry{palettes: make(map[int32]*BlockPalette, len(palettes))}
	for _, p := range palettes {
		r.palettes[p.Protocol()] = p
	}
	return r
}

// LoadDir creates a Registry from the files named block_palette_<protocol>.nbt
// found in dir. Other files are ignored.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load resources: %w", err)
	}
	var palettes []*BlockPalette
	for _, e := range entries {
		protocol, ok := blockPaletteFile(e.Name())
		if !ok || e.IsDir() {
			continue
		}
		p, err := readPaletteFile(protocol, filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("load resources: %w", err)
		}
		palettes = append(palettes, p)
	}
	return NewRegistry(palettes...), nil
}

func readPaletteFile(protocol int32, path string) (*BlockPalette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBlockPalette(protocol, f)
}

// Palette returns the block palette of the protocol version passed.
func (r *Registry) Palette(protocol int32) (*BlockPalette, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.palettes[protocol]
	return p, ok
}

// Protocols returns the protocol versions palettes are held for, in ascending
// order.
func (r *Registry) Protocols() []int32 {
	if r == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(r.palettes))
}
