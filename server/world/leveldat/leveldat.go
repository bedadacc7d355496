// Package leveldat implements reading and writing of the level.dat file found
// in the root of a world folder. The file holds an 8-byte header (a storage
// version and the payload length, both little endian int32) followed by a
// little endian NBT compound.
package leveldat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"maps"
	"os"

	"github.com/sandertv/gophertunnel/minecraft/nbt"
)

// Version is the storage version written to the header of new level.dat files.
const Version = 10

var (
	// ErrHeader is returned if a level.dat file is too short to hold its header.
	ErrHeader = errors.New("level.dat: header truncated")
	// ErrMissingField is matched by every *FieldError.
	ErrMissingField = errors.New("level.dat: missing field")
)

// FieldError is returned by LevelDat.Unmarshal if a required field is absent
// from the compound or is not of the type expected.
type FieldError struct {
	Field string
	// Found is the value present for the field, or nil if it was absent.
	Found any
}

// Error ...
func (e *FieldError) Error() string {
	if e.Found == nil {
		return fmt.Sprintf("level.dat: field %v is missing", e.Field)
	}
	return fmt.Sprintf("level.dat: field %v has type %T, expected int32", e.Field, e.Found)
}

// Is makes errors.Is(err, ErrMissingField) report true for a *FieldError.
func (e *FieldError) Is(target error) bool {
	return target == ErrMissingField
}

// Data holds the fields of a level.dat compound used by the server.
type Data struct {
	SpawnX, SpawnY, SpawnZ int32
	Difficulty             int32
	// LevelName is the display name stored in the file. It is empty if the file
	// does not hold one.
	LevelName string
}

// LevelDat is a parsed level.dat file. The full compound is retained so that
// writing it back preserves fields not covered by Data.
type LevelDat struct {
	ver    int32
	raw    []byte
	fields map[string]any
}

// New returns a LevelDat holding default values: spawn at (0, 64, 0) and
// normal difficulty.
func New() *LevelDat {
	ldat := &LevelDat{ver: Version, fields: map[string]any{}}
	_ = ldat.Marshal(Data{SpawnY: 64, Difficulty: 2})
	return ldat
}

// ReadFile reads the level.dat file at the path passed.
func ReadFile(name string) (*LevelDat, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read level.dat: %w", err)
	}
	return Read(b)
}

// Read parses the contents of a level.dat file. The header is not validated:
// only the compound following it is read, by LevelDat.Unmarshal.
func Read(b []byte) (*LevelDat, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("%w: %v bytes", ErrHeader, len(b))
	}
	return &LevelDat{ver: int32(binary.LittleEndian.Uint32(b)), raw: b[8:]}, nil
}

// Ver returns the storage version found in the header.
func (ldat *LevelDat) Ver() int32 {
	return ldat.ver
}

// Unmarshal decodes the compound of the level.dat into dst. SpawnX, SpawnY,
// SpawnZ and Difficulty must be present as int32 fields.
func (ldat *LevelDat) Unmarshal(dst *Data) error {
	if ldat.fields == nil {
		fields := map[string]any{}
		if err := nbt.UnmarshalEncoding(ldat.raw, &fields, nbt.LittleEndian); err != nil {
			return fmt.Errorf("decode level.dat compound: %w", err)
		}
		ldat.fields = fields
	}
	required := [...]struct {
		name string
		dst  *int32
	}{{"SpawnX", &dst.SpawnX}, {"SpawnY", &dst.SpawnY}, {"SpawnZ", &dst.SpawnZ}, {"Difficulty", &dst.Difficulty}}
	for _, f := range required {
		v, ok := ldat.fields[f.name].(int32)
		if !ok {
			return &FieldError{Field: f.name, Found: ldat.fields[f.name]}
		}
		*f.dst = v
	}
	dst.LevelName, _ = ldat.fields["LevelName"].(string)
	return nil
}

// Marshal stores the values of src in the compound of the level.dat. Fields
// already present that are not part of Data are left untouched.
func (ldat *LevelDat) Marshal(src Data) error {
	if ldat.fields == nil {
		var d Data
		if err := ldat.Unmarshal(&d); err != nil && !errors.Is(err, ErrMissingField) {
			return err
		}
	}
	ldat.fields["SpawnX"], ldat.fields["SpawnY"], ldat.fields["SpawnZ"] = src.SpawnX, src.SpawnY, src.SpawnZ
	ldat.fields["Difficulty"] = src.Difficulty
	if src.LevelName != "" {
		ldat.fields["LevelName"] = src.LevelName
	}
	return nil
}

// Fields returns a copy of the full compound of the level.dat.
func (ldat *LevelDat) Fields() (map[string]any, error) {
	if ldat.fields == nil {
		var d Data
		if err := ldat.Unmarshal(&d); err != nil && !errors.Is(err, ErrMissingField) {
			return nil, err
		}
	}
	return maps.Clone(ldat.fields), nil
}

// WriteFile encodes the level.dat and writes it to the path passed.
func (ldat *LevelDat) WriteFile(name string) error {
	if ldat.fields == nil {
		if _, err := ldat.Fields(); err != nil {
			return err
		}
	}
	payload, err := nbt.MarshalEncoding(ldat.fields, nbt.LittleEndian)
	if err != nil {
		return fmt.Errorf("encode level.dat compound: %w", err)
	}
	buf := bytes.NewBuffer(make([]byte, 0, len(payload)+8))
	_ = binary.Write(buf, binary.LittleEndian, ldat.ver)
	_ = binary.Write(buf, binary.LittleEndian, int32(len(payload)))
	buf.Write(payload)

	if err := os.WriteFile(name, buf.Bytes(), 0666); err != nil {
		return fmt.Errorf("write level.dat: %w", err)
	}
	ldat.raw = payload
	return nil
}
