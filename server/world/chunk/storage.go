package chunk

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// BlockStorage is a single layer of a sub chunk: a palette of block runtime IDs
// and, for every block, the index of its runtime ID in that palette.
type BlockStorage struct {
	indices Indices
	palette []uint32
	// version is the palette version the storage was decoded with. It is reset
	// once the storage is modified.
	version PaletteVersion
}

// maxPaletteSize is the amount of palette entries addressable by a uint16
// index.
const maxPaletteSize = 1 << 16

// NewBlockStorage returns a BlockStorage filled entirely with the runtime ID
// passed.
func NewBlockStorage(fill uint32) *BlockStorage {
	return &BlockStorage{palette: []uint32{fill}}
}

// index returns the offset of a block in the indices array. x, y and z must be
// in the range 0-15.
func index(x, y, z uint8) uint16 {
	return uint16(x&15)<<8 | uint16(z&15)<<4 | uint16(y&15)
}

// At returns the runtime ID of the block at the position passed.
func (s *BlockStorage) At(x, y, z uint8) uint32 {
	return s.palette[s.indices[index(x, y, z)]]
}

// Set changes the runtime ID of the block at the position passed, adding it to
// the palette if it was not yet present.
func (s *BlockStorage) Set(x, y, z uint8, rid uint32) {
	i := -1
	for j, v := range s.palette {
		if v == rid {
			i = j
			break
		}
	}
	if i == -1 {
		if len(s.palette) == maxPaletteSize {
			// At most SubChunkVolume entries are referenced, so compacting
			// always frees space.
			s.Compact()
		}
		i = len(s.palette)
		s.palette = append(s.palette, rid)
	}
	s.indices[index(x, y, z)] = uint16(i)
	s.version = PaletteVersion{}
}

// Version returns the palette version the storage was decoded with. For a
// storage created with NewBlockStorage or modified after decoding, it is the
// version the current palette would be written with.
func (s *BlockStorage) Version() PaletteVersion {
	if s.version.bits != 0 {
		return s.version
	}
	v, _ := WriteVersion(len(s.palette))
	return v
}

// Palette returns the runtime IDs currently held in the palette. The slice
// must not be modified.
func (s *BlockStorage) Palette() []uint32 {
	return s.palette
}

// Indices returns the palette indices of all blocks in the storage.
func (s *BlockStorage) Indices() *Indices {
	return &s.indices
}

// Compact removes palette entries no longer referenced by any block and
// rewrites the indices accordingly.
func (s *BlockStorage) Compact() {
	used := make([]bool, len(s.palette))
	for _, i := range s.indices {
		used[i] = true
	}
	remap := make([]uint16, len(s.palette))
	palette := s.palette[:0]
	for i, rid := range s.palette {
		if used[i] {
			remap[i] = uint16(len(palette))
			palette = append(palette, rid)
		}
	}
	s.palette = palette
	for i, v := range s.indices {
		s.indices[i] = remap[v]
	}
	s.version = PaletteVersion{}
}

// Encode compacts the storage and writes it to w: a header byte holding the
// bits per index shifted left once, the packed indices, the palette length
// and the palette runtime IDs, all little endian.
func (s *BlockStorage) Encode(w io.Writer) error {
	s.Compact()
	v, err := WriteVersion(len(s.palette))
	if err != nil {
		return fmt.Errorf("encode block storage: %w", err)
	}
	bw := bufio.NewWriter(w)
	if err := bw.WriteByte(byte(v.bits << 1)); err != nil {
		return fmt.Errorf("encode block storage: %w", err)
	}
	enc, _ := NewEncoder(bw, v)
	if err := enc.Add(s.indices[:]...); err != nil {
		return fmt.Errorf("encode block storage: %w", err)
	}
	if err := enc.Finish(); err != nil {
		return fmt.Errorf("encode block storage: %w", err)
	}
	buf := make([]byte, 4*(len(s.palette)+1))
	binary.LittleEndian.PutUint32(buf, uint32(len(s.palette)))
	for i, rid := range s.palette {
		binary.LittleEndian.PutUint32(buf[4*(i+1):], rid)
	}
	if _, err := bw.Write(buf); err != nil {
		return fmt.Errorf("encode block storage: %w", err)
	}
	return bw.Flush()
}

// DecodeBlockStorage reads a BlockStorage previously written using
// BlockStorage.Encode. Any palette version may be read, including the padded
// ones.
func DecodeBlockStorage(r io.Reader) (*BlockStorage, error) {
	var header [1]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("decode block storage: read header: %w", err)
	}
	v, err := ReadVersion(int(header[0] >> 1))
	if err != nil {
		return nil, fmt.Errorf("decode block storage: %w", err)
	}
	indices, err := Decode(r, v)
	if err != nil {
		return nil, fmt.Errorf("decode block storage: %w", err)
	}
	var l [4]byte
	if _, err := io.ReadFull(r, l[:]); err != nil {
		return nil, fmt.Errorf("decode block storage: read palette length: %w", err)
	}
	n := binary.LittleEndian.Uint32(l[:])
	if n == 0 || n > uint32(v.Capacity()) {
		return nil, fmt.Errorf("decode block storage: palette length %v invalid for %v", n, v)
	}
	buf := make([]byte, 4*n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("decode block storage: read palette: %w", err)
	}
	s := &BlockStorage{indices: *indices, palette: make([]uint32, n), version: v}
	for i := range s.palette {
		s.palette[i] = binary.LittleEndian.Uint32(buf[4*i:])
	}
	for _, i := range s.indices {
		if uint32(i) >= n {
			return nil, fmt.Errorf("decode block storage: index %v out of palette bounds %v", i, n)
		}
	}
	return s, nil
}
