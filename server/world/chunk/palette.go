package chunk

import (
	"errors"
	"fmt"
)

// SubChunkVolume is the amount of blocks held by a single 16x16x16 sub chunk
// and therefore the amount of palette indices packed per storage.
const SubChunkVolume = 4096

var (
	// ErrUnsupportedVersion is returned when a palette version cannot be used
	// for the requested operation: either a padded version was passed to an
	// encoder, or a persisted bits-per-index tag matched no known version.
	ErrUnsupportedVersion = errors.New("unsupported palette version")
	// ErrPaletteTooLarge is returned by WriteVersion if no writable version can
	// address the amount of palette entries requested.
	ErrPaletteTooLarge = errors.New("palette too large")
	// ErrIndexOverflow is returned when an index does not fit in the bit width
	// of the palette version it is encoded with.
	ErrIndexOverflow = errors.New("palette index overflows bit width")
	// ErrStreamLength is returned when a packed stream does not hold exactly the
	// amount of words the palette version requires.
	ErrStreamLength = errors.New("packed stream has wrong length")
)

// PaletteVersion describes one generation of the packed palette index format.
// Each version stores indices of a fixed bit width in 32-bit little endian
// words without letting an index span two words. The zero value is not a
// valid version.
type PaletteVersion struct {
	bits, perWord, padding uint8
}

// The palette versions known. Versions 3, 5 and 6 leave 2 bits of padding in
// every word and may only be read.
var (
	Version1  = PaletteVersion{bits: 1, perWord: 32}
	Version2  = PaletteVersion{bits: 2, perWord: 16}
	Version3  = PaletteVersion{bits: 3, perWord: 10, padding: 2}
	Version4  = PaletteVersion{bits: 4, perWord: 8}
	Version5  = PaletteVersion{bits: 5, perWord: 6, padding: 2}
	Version6  = PaletteVersion{bits: 6, perWord: 5, padding: 2}
	Version8  = PaletteVersion{bits: 8, perWord: 4}
	Version16 = PaletteVersion{bits: 16, perWord: 2}
)

var versions = [...]PaletteVersion{Version1, Version2, Version3, Version4, Version5, Version6, Version8, Version16}

// Versions returns all palette versions in declaration order.
func Versions() []PaletteVersion {
	return versions[:]
}

// Bits returns the bit width of one index.
func (v PaletteVersion) Bits() int { return int(v.bits) }

// IndicesPerWord returns the amount of indices stored in a single word.
func (v PaletteVersion) IndicesPerWord() int { return int(v.perWord) }

// Padding returns the amount of unused high bits in every word.
func (v PaletteVersion) Padding() int { return int(v.padding) }

// Words returns the amount of words needed to store a full sub chunk.
func (v PaletteVersion) Words() int {
	return (SubChunkVolume + int(v.perWord) - 1) / int(v.perWord)
}

// Writable reports if indices may be encoded using the version.
func (v PaletteVersion) Writable() bool {
	return v.bits != 0 && v.padding == 0
}

// Capacity returns the amount of distinct palette entries addressable with an
// index of the version's bit width.
func (v PaletteVersion) Capacity() int {
	return 1 << v.bits
}

// String ...
func (v PaletteVersion) String() string {
	return fmt.Sprintf("Version%d", v.bits)
}

// WriteVersion returns the smallest writable palette version able to address
// n distinct palette entries. Padded versions are never returned.
func WriteVersion(n int) (PaletteVersion, error) {
	for _, v := range versions {
		if v.Writable() && v.Capacity() >= n {
			return v, nil
		}
	}
	return PaletteVersion{}, fmt.Errorf("%w: %v entries", ErrPaletteTooLarge, n)
}

// ReadVersion returns the palette version whose bit width equals the tag
// persisted alongside packed data.
func ReadVersion(tag int) (PaletteVersion, error) {
	for _, v := range versions {
		if int(v.bits) == tag {
			return v, nil
		}
	}
	return PaletteVersion{}, fmt.Errorf("%w: bits per index %v", ErrUnsupportedVersion, tag)
}
