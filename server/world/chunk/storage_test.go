package chunk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestBlockStorageSetAt(t *testing.T) {
	s := NewBlockStorage(0)
	s.Set(1, 2, 3, 42)
	s.Set(15, 15, 15, 7)
	if got := s.At(1, 2, 3); got != 42 {
		t.Fatalf("expected 42 at (1,2,3), got %v", got)
	}
	if got := s.At(15, 15, 15); got != 7 {
		t.Fatalf("expected 7 at (15,15,15), got %v", got)
	}
	if got := s.At(0, 0, 0); got != 0 {
		t.Fatalf("expected fill value 0 at origin, got %v", got)
	}
	if i := s.Indices()[1<<8|3<<4|2]; i != 1 {
		t.Fatalf("expected palette index 1 at offset of (1,2,3), got %v", i)
	}
}

func TestBlockStorageCompact(t *testing.T) {
	s := NewBlockStorage(0)
	s.Set(0, 0, 0, 10)
	s.Set(0, 0, 1, 20)
	s.Set(0, 0, 0, 0)
	s.Compact()
	if got := s.Palette(); len(got) != 2 || got[0] != 0 || got[1] != 20 {
		t.Fatalf("unexpected palette after compaction: %v", got)
	}
	if s.At(0, 0, 1) != 20 || s.At(0, 0, 0) != 0 {
		t.Fatalf("blocks changed during compaction")
	}
}

func TestBlockStorageEncodeDecode(t *testing.T) {
	for _, distinct := range []int{1, 2, 3, 10, 17, 300} {
		s := NewBlockStorage(1000)
		for i := 0; i < SubChunkVolume; i++ {
			x, z, y := uint8(i>>8), uint8(i>>4&15), uint8(i&15)
			s.Set(x, y, z, uint32(1000+i%distinct))
		}
		buf := new(bytes.Buffer)
		if err := s.Encode(buf); err != nil {
			t.Fatalf("%v entries: encode: %v", distinct, err)
		}
		want, _ := WriteVersion(distinct)
		if header := buf.Bytes()[0]; int(header>>1) != want.Bits() {
			t.Fatalf("%v entries: header bits %v, expected %v", distinct, header>>1, want.Bits())
		}
		if l := buf.Len(); l != 1+want.Words()*4+4+4*distinct {
			t.Fatalf("%v entries: unexpected encoded length %v", distinct, l)
		}
		got, err := DecodeBlockStorage(buf)
		if err != nil {
			t.Fatalf("%v entries: decode: %v", distinct, err)
		}
		for i := 0; i < SubChunkVolume; i++ {
			x, z, y := uint8(i>>8), uint8(i>>4&15), uint8(i&15)
			if got.At(x, y, z) != s.At(x, y, z) {
				t.Fatalf("%v entries: block %v differs after round trip", distinct, i)
			}
		}
	}
}

func TestDecodeBlockStorageUnknownVersion(t *testing.T) {
	_, err := DecodeBlockStorage(bytes.NewReader([]byte{7 << 1}))
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDecodeBlockStorageTruncated(t *testing.T) {
	s := NewBlockStorage(1)
	s.Set(0, 0, 0, 2)
	buf := new(bytes.Buffer)
	if err := s.Encode(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	b := buf.Bytes()
	if _, err := DecodeBlockStorage(bytes.NewReader(b[:100])); !errors.Is(err, ErrStreamLength) {
		t.Fatalf("expected ErrStreamLength, got %v", err)
	}
	if _, err := DecodeBlockStorage(bytes.NewReader(b[:len(b)-1])); err == nil {
		t.Fatalf("expected error decoding truncated palette")
	}
}

func TestBlockStorageSetFullPalette(t *testing.T) {
	s := NewBlockStorage(0)
	s.Set(0, 0, 1, 5)
	// Fill the palette with entries no longer referenced, as left behind by
	// repeatedly overwriting a block.
	for rid := uint32(100); len(s.palette) < maxPaletteSize; rid++ {
		s.palette = append(s.palette, rid)
	}
	last := s.palette[maxPaletteSize-1]
	s.indices[index(0, 0, 0)] = maxPaletteSize - 1
	s.Set(3, 4, 5, 1<<20)
	if l := len(s.Palette()); l != 4 {
		t.Fatalf("expected compacted palette of 4 entries, got %v", l)
	}
	want := map[[3]uint8]uint32{{0, 0, 0}: last, {0, 0, 1}: 5, {3, 4, 5}: 1 << 20, {15, 15, 15}: 0}
	for pos, rid := range want {
		if got := s.At(pos[0], pos[1], pos[2]); got != rid {
			t.Fatalf("expected %v at %v, got %v", rid, pos, got)
		}
	}
}

func TestBlockStorageVersion(t *testing.T) {
	// A single entry palette written with a padded version wider than needed.
	b := []byte{byte(Version3.Bits()) << 1}
	b = append(b, make([]byte, Version3.Words()*4)...)
	b = binary.LittleEndian.AppendUint32(b, 1)
	b = binary.LittleEndian.AppendUint32(b, 77)

	s, err := DecodeBlockStorage(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v := s.Version(); v != Version3 {
		t.Fatalf("expected decoded version %v, got %v", Version3, v)
	}
	if s.At(7, 7, 7) != 77 {
		t.Fatalf("expected 77 at (7,7,7), got %v", s.At(7, 7, 7))
	}
	s.Set(0, 0, 0, 78)
	if v := s.Version(); v != Version1 {
		t.Fatalf("expected %v after modification, got %v", Version1, v)
	}
}
