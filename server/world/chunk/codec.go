package chunk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Indices holds the palette indices of every block in a sub chunk, ordered
// x<<8 | z<<4 | y.
type Indices [SubChunkVolume]uint16

// Encoder packs palette indices into 32-bit little endian words. Indices may
// be added over multiple calls to Add. Finish must be called once all indices
// were added so that a partially filled word is written too.
type Encoder struct {
	w    io.Writer
	v    PaletteVersion
	word uint32
	slot uint8
	buf  [4]byte
}

// NewEncoder returns an Encoder writing words for the palette version passed
// to w. Padded versions cannot be written and result in an error.
func NewEncoder(w io.Writer, v PaletteVersion) (*Encoder, error) {
	if !v.Writable() {
		return nil, fmt.Errorf("encode %v: %w", v, ErrUnsupportedVersion)
	}
	return &Encoder{w: w, v: v}, nil
}

// Add packs the indices passed into the current word, writing every word that
// is filled completely.
func (enc *Encoder) Add(indices ...uint16) error {
	limit := uint32(enc.v.Capacity())
	for _, index := range indices {
		if uint32(index) >= limit {
			return fmt.Errorf("encode %v: index %v: %w", enc.v, index, ErrIndexOverflow)
		}
		enc.word |= uint32(index) << (uint32(enc.slot) * uint32(enc.v.bits))
		if enc.slot++; enc.slot == enc.v.perWord {
			if err := enc.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Finish writes the word currently being filled, if any indices were added to
// it. Unfilled slots in that word are left zero.
func (enc *Encoder) Finish() error {
	if enc.slot == 0 {
		return nil
	}
	return enc.flush()
}

func (enc *Encoder) flush() error {
	binary.LittleEndian.PutUint32(enc.buf[:], enc.word)
	enc.word, enc.slot = 0, 0
	if _, err := enc.w.Write(enc.buf[:]); err != nil {
		return fmt.Errorf("write word: %w", err)
	}
	return nil
}

// Pack encodes a full sub chunk of indices using the palette version passed.
func Pack(indices *Indices, v PaletteVersion) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, v.Words()*4))
	enc, err := NewEncoder(buf, v)
	if err != nil {
		return nil, err
	}
	if err := enc.Add(indices[:]...); err != nil {
		return nil, err
	}
	if err := enc.Finish(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unpack decodes the packed words in b using the palette version passed. b must
// hold exactly the amount of words the version requires for a sub chunk.
func Unpack(b []byte, v PaletteVersion) (*Indices, error) {
	if v.bits == 0 {
		return nil, fmt.Errorf("decode %v: %w", v, ErrUnsupportedVersion)
	}
	if want := v.Words() * 4; len(b) != want {
		return nil, fmt.Errorf("decode %v: got %v bytes, expected %v: %w", v, len(b), want, ErrStreamLength)
	}
	indices := new(Indices)
	unpackWords(b, v, indices)
	return indices, nil
}

// Decode reads the words of a single sub chunk from r and decodes them using
// the palette version passed. Only the words the version requires are
// consumed from r.
func Decode(r io.Reader, v PaletteVersion) (*Indices, error) {
	if v.bits == 0 {
		return nil, fmt.Errorf("decode %v: %w", v, ErrUnsupportedVersion)
	}
	b := make([]byte, v.Words()*4)
	if n, err := io.ReadFull(r, b); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("decode %v: read %v of %v bytes: %w: %w", v, n, len(b), ErrStreamLength, io.ErrUnexpectedEOF)
		}
		return nil, fmt.Errorf("decode %v: %w", v, err)
	}
	indices := new(Indices)
	unpackWords(b, v, indices)
	return indices, nil
}

// unpackWords decodes the words in b into indices. len(b) must be v.Words()*4.
func unpackWords(b []byte, v PaletteVersion, indices *Indices) {
	perWord, bits := int(v.perWord), int(v.bits)
	for i := 0; i < v.Words(); i++ {
		word := binary.LittleEndian.Uint32(b[i*4:])
		cursor := 0
		for slot := 0; slot < perWord; slot++ {
			var value uint16
			for bit := 0; bit < bits; bit++ {
				if word&(1<<cursor) != 0 {
					value |= 1 << bit
				}
				cursor++
			}
			// The last word may hold slots past the end of the sub chunk.
			if offset := i*perWord + slot; offset < SubChunkVolume {
				indices[offset] = value
			}
		}
	}
}
