// Package resource holds the protocol specific tables a server reads from its
// resource folder, such as the block palettes used to map block states to the
// runtime IDs sent to clients.
package resource

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/brentp/intintmap"
	"github.com/cespare/xxhash/v2"
	"github.com/df-mc/worldupgrader/blockupgrader"
	"github.com/sandertv/gophertunnel/minecraft/nbt"
)

// BlockState is a single entry of a block palette: a block name with the
// properties of one of its states.
type BlockState struct {
	Name       string         `nbt:"name"`
	Properties map[string]any `nbt:"states"`
	Version    int32          `nbt:"version"`
}

// BlockPalette maps the block states of a protocol version to runtime IDs. The
// runtime ID of a state is its index in the palette. A BlockPalette is
// immutable and safe for concurrent use.
type BlockPalette struct {
	protocol int32
	states   []BlockState
	hashes   *intintmap.Map
	names    map[string]uint32
}

// ReadBlockPalette reads the block palette of the protocol version passed
// from r. r holds a sequence of network little endian NBT compounds, one per
// state, read until EOF. Every state is upgraded to the latest version known.
func ReadBlockPalette(protocol int32, r io.Reader) (*BlockPalette, error) {
	br := bufio.NewReader(r)
	dec := nbt.NewDecoderWithEncoding(br, nbt.NetworkLittleEndian)

	var states []BlockState
	for {
		if _, err := br.Peek(1); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("read block palette %v: %w", protocol, err)
		}
		var s BlockState
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("read block palette %v: state %v: %w", protocol, len(states), err)
		}
		upgraded := blockupgrader.Upgrade(blockupgrader.BlockState{Name: s.Name, Properties: s.Properties, Version: s.Version})
		states = append(states, BlockState{Name: upgraded.Name, Properties: upgraded.Properties, Version: upgraded.Version})
	}
	return NewBlockPalette(protocol, states), nil
}

// NewBlockPalette creates a BlockPalette holding the states passed in order.
func NewBlockPalette(protocol int32, states []BlockState) *BlockPalette {
	p := &BlockPalette{
		protocol: protocol,
		states:   slices.Clone(states),
		hashes:   intintmap.New(max(len(states), 1), 0.75),
		names:    make(map[string]uint32),
	}
	for rid, s := range p.states {
		h := int64(stateHash(s.Name, s.Properties))
		if _, ok := p.hashes.Get(h); !ok {
			p.hashes.Put(h, int64(rid))
		}
		if _, ok := p.names[s.Name]; !ok {
			p.names[s.Name] = uint32(rid)
		}
	}
	return p
}

// Protocol returns the protocol version the palette belongs to.
func (p *BlockPalette) Protocol() int32 {
	return p.protocol
}

// Len returns the amount of states in the palette.
func (p *BlockPalette) Len() int {
	return len(p.states)
}

// State returns the block state with the runtime ID passed.
func (p *BlockPalette) State(rid uint32) (BlockState, bool) {
	if int(rid) >= len(p.states) {
		return BlockState{}, false
	}
	return p.states[rid], true
}

// RuntimeID returns the runtime ID of the state with the name and properties
// passed. Property values must have the types found in the palette: uint8 for
// booleans, int32 and string.
func (p *BlockPalette) RuntimeID(name string, properties map[string]any) (uint32, bool) {
	rid, ok := p.hashes.Get(int64(stateHash(name, properties)))
	if !ok {
		return 0, false
	}
	s := p.states[rid]
	if s.Name != name || !maps.Equal(s.Properties, properties) {
		return 0, false
	}
	return uint32(rid), true
}

// NameToRuntimeID returns the runtime ID of the first state of the block with
// the name passed.
func (p *BlockPalette) NameToRuntimeID(name string) (uint32, bool) {
	rid, ok := p.names[name]
	return rid, ok
}

// States returns a copy of all states in the palette, ordered by runtime ID.
func (p *BlockPalette) States() []BlockState {
	return slices.Clone(p.states)
}

// stateHash hashes a block name and its properties. Properties are hashed
// sorted by key.
func stateHash(name string, properties map[string]any) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(name)
	for _, k := range slices.Sorted(maps.Keys(properties)) {
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(k)
		_, _ = h.WriteString(fmt.Sprintf("=%T:%v", properties[k], properties[k]))
	}
	return h.Sum64()
}

// blockPaletteFile returns the protocol of a file named
// block_palette_<protocol>.nbt.
func blockPaletteFile(name string) (int32, bool) {
	rest, ok := strings.CutPrefix(name, "block_palette_")
	if !ok {
		return 0, false
	}
	rest, ok = strings.CutSuffix(rest, ".nbt")
	if !ok {
		return 0, false
	}
	var protocol int32
	if _, err := fmt.Sscan(rest, &protocol); err != nil || fmt.Sprint(protocol) != rest {
		return 0, false
	}
	return protocol, true
}
