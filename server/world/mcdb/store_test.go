package mcdb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dm-vev/terracotta/server/world"
	"github.com/dm-vev/terracotta/server/world/leveldat"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sandertv/gophertunnel/minecraft/nbt"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Log: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Dir: t.TempDir(),
	}
}

func openStore(t *testing.T, conf Config, name string) *Store {
	t.Helper()
	s, err := conf.Open(name)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeLevelDat(t *testing.T, dir string, fields map[string]any) {
	t.Helper()
	payload, err := nbt.MarshalEncoding(fields, nbt.LittleEndian)
	if err != nil {
		t.Fatalf("encode compound: %v", err)
	}
	b := binary.LittleEndian.AppendUint32(nil, 9)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(payload)))
	if err := os.WriteFile(filepath.Join(dir, "level.dat"), append(b, payload...), 0o644); err != nil {
		t.Fatalf("write level.dat: %v", err)
	}
}

func TestOpenCreatesWorldDirectory(t *testing.T) {
	conf := testConfig(t)
	conf.Dir = filepath.Join(conf.Dir, "nested", "worlds")
	s := openStore(t, conf, "survival")

	info, err := os.Stat(filepath.Join(conf.Dir, "survival"))
	if err != nil {
		t.Fatalf("stat world dir: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("world path is not a directory")
	}
	if s.Dir() != filepath.Join(conf.Dir, "survival") || s.Name() != "survival" {
		t.Fatalf("unexpected store name %q dir %q", s.Name(), s.Dir())
	}
}

func TestOpenRejectsInvalidName(t *testing.T) {
	conf := testConfig(t)
	for _, name := range []string{"", ".", "..", "a/b", "../escape"} {
		if _, err := conf.Open(name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("expected ErrInvalidName opening world %q, got %v", name, err)
		}
	}
}

func TestLoadMetadata(t *testing.T) {
	conf := testConfig(t)
	s := openStore(t, conf, "world")
	writeLevelDat(t, s.Dir(), map[string]any{
		"SpawnX":     int32(100),
		"SpawnY":     int32(64),
		"SpawnZ":     int32(-200),
		"Difficulty": int32(2),
		"LevelName":  "Bedrock level",
	})

	meta, err := s.LoadMetadata()
	if err != nil {
		t.Fatalf("load metadata: %v", err)
	}
	if meta.Difficulty != world.DifficultyNormal {
		t.Fatalf("expected NORMAL difficulty, got %v", meta.Difficulty)
	}
	if b := meta.Spawn.Block(); b != [3]int32{100, 64, -200} {
		t.Fatalf("expected spawn (100, 64, -200), got %v", b)
	}
	if meta.Spawn.World != "world" {
		t.Fatalf("expected spawn bound to world, got %q", meta.Spawn.World)
	}
	if s.Metadata() != meta {
		t.Fatalf("Metadata does not return last loaded metadata")
	}
}

func TestLoadMetadataMissing(t *testing.T) {
	s := openStore(t, testConfig(t), "world")
	if _, err := s.LoadMetadata(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadMetadataCreatesDefault(t *testing.T) {
	conf := testConfig(t)
	conf.CreateLevelDat = true
	s := openStore(t, conf, "fresh")

	meta, err := s.LoadMetadata()
	if err != nil {
		t.Fatalf("load metadata: %v", err)
	}
	if b := meta.Spawn.Block(); b != [3]int32{0, 64, 0} {
		t.Fatalf("expected default spawn, got %v", b)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "level.dat")); err != nil {
		t.Fatalf("default level.dat not written: %v", err)
	}
}

func TestLoadMetadataParseErrors(t *testing.T) {
	tests := map[string]func(t *testing.T, dir string){
		"truncated header": func(t *testing.T, dir string) {
			if err := os.WriteFile(filepath.Join(dir, "level.dat"), []byte{1, 2, 3}, 0o644); err != nil {
				t.Fatal(err)
			}
		},
		"missing field": func(t *testing.T, dir string) {
			writeLevelDat(t, dir, map[string]any{"SpawnX": int32(1), "SpawnY": int32(2), "Difficulty": int32(1)})
		},
		"invalid difficulty": func(t *testing.T, dir string) {
			writeLevelDat(t, dir, map[string]any{"SpawnX": int32(1), "SpawnY": int32(2), "SpawnZ": int32(3), "Difficulty": int32(7)})
		},
		"malformed compound": func(t *testing.T, dir string) {
			b := []byte{9, 0, 0, 0, 3, 0, 0, 0, 0xff, 0xff, 0xff}
			if err := os.WriteFile(filepath.Join(dir, "level.dat"), b, 0o644); err != nil {
				t.Fatal(err)
			}
		},
	}
	for name, prepare := range tests {
		t.Run(name, func(t *testing.T) {
			s := openStore(t, testConfig(t), "world")
			prepare(t, s.Dir())
			if _, err := s.LoadMetadata(); !errors.Is(err, ErrParse) {
				t.Fatalf("expected ErrParse, got %v", err)
			}
		})
	}
}

func TestSaveMetadataPreservesFields(t *testing.T) {
	s := openStore(t, testConfig(t), "world")
	writeLevelDat(t, s.Dir(), map[string]any{
		"SpawnX": int32(0), "SpawnY": int32(70), "SpawnZ": int32(0),
		"Difficulty": int32(1),
		"RandomSeed": int64(12345),
	})
	if _, err := s.LoadMetadata(); err != nil {
		t.Fatalf("load metadata: %v", err)
	}
	meta := world.Metadata{Spawn: world.NewLocation("other", 5, 80, -5), Difficulty: world.DifficultyHard}
	if err := s.SaveMetadata(meta); err != nil {
		t.Fatalf("save metadata: %v", err)
	}
	if s.Metadata().Spawn.World != "world" {
		t.Fatalf("saved metadata not bound to world")
	}

	ldat, err := leveldat.ReadFile(filepath.Join(s.Dir(), "level.dat"))
	if err != nil {
		t.Fatalf("read level.dat: %v", err)
	}
	fields, err := ldat.Fields()
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if fields["RandomSeed"] != int64(12345) {
		t.Fatalf("RandomSeed not preserved: %v", fields["RandomSeed"])
	}
	if fields["SpawnY"] != int32(80) || fields["Difficulty"] != int32(3) {
		t.Fatalf("metadata not written: %v", fields)
	}
}

func TestDatabaseOperations(t *testing.T) {
	for _, engine := range []Engine{EngineLevelDB, EngineBadger} {
		t.Run(string(engine), func(t *testing.T) {
			conf := testConfig(t)
			conf.Engine = engine
			s := openStore(t, conf, "world")

			if _, err := s.Get([]byte("k")); !errors.Is(err, ErrClosed) {
				t.Fatalf("expected ErrClosed before open, got %v", err)
			}
			if err := s.OpenDatabase(); err != nil {
				t.Fatalf("open database: %v", err)
			}
			if err := s.OpenDatabase(); err != nil {
				t.Fatalf("second open database: %v", err)
			}
			if _, err := os.Stat(filepath.Join(s.Dir(), "db")); err != nil {
				t.Fatalf("db directory not created: %v", err)
			}

			if _, err := s.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if err := s.StoreSubChunk(-1, 3, 4, []byte{8, 1}); err != nil {
				t.Fatalf("store sub chunk: %v", err)
			}
			v, err := s.SubChunk(-1, 3, 4)
			if err != nil {
				t.Fatalf("sub chunk: %v", err)
			}
			if !bytes.Equal(v, []byte{8, 1}) {
				t.Fatalf("unexpected sub chunk data %x", v)
			}
			if err := s.Delete(BedrockKey("world", -1, 3, 4)); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := s.SubChunk(-1, 3, 4); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}

			if err := s.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
			if err := s.Close(); err != nil {
				t.Fatalf("second close: %v", err)
			}
			if err := s.Put([]byte("k"), nil); !errors.Is(err, ErrClosed) {
				t.Fatalf("expected ErrClosed after close, got %v", err)
			}
		})
	}
}

func TestDatabasePersists(t *testing.T) {
	conf := testConfig(t)
	s := openStore(t, conf, "world")
	if err := s.OpenDatabase(); err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := s.Put([]byte("key"), []byte("value")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s = openStore(t, conf, "world")
	if err := s.OpenDatabase(); err != nil {
		t.Fatalf("reopen database: %v", err)
	}
	v, err := s.Get([]byte("key"))
	if err != nil || string(v) != "value" {
		t.Fatalf("expected persisted value, got %q, %v", v, err)
	}
}

func TestOpenDatabaseFailure(t *testing.T) {
	s := openStore(t, testConfig(t), "world")
	if err := os.WriteFile(filepath.Join(s.Dir(), "db"), []byte("not a database"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.OpenDatabase(); !errors.Is(err, ErrStorageOpen) {
		t.Fatalf("expected ErrStorageOpen, got %v", err)
	}
}

func TestBedrockKey(t *testing.T) {
	got := BedrockKey("world", 1, -1, 3)
	want := []byte{1, 0, 0, 0, 0xff, 0xff, 0xff, 0xff, '/', 3}
	if !bytes.Equal(got, want) {
		t.Fatalf("expected key %x, got %x", want, got)
	}
}

func TestSnapshotRestore(t *testing.T) {
	src := openStore(t, testConfig(t), "src")
	if err := src.OpenDatabase(); err != nil {
		t.Fatalf("open database: %v", err)
	}
	entries := map[string][]byte{
		"a":                             {1, 2, 3},
		"b":                             {},
		string(BedrockKey("", 0, 0, 0)): bytes.Repeat([]byte{7}, 5000),
	}
	for k, v := range entries {
		if err := src.Put([]byte(k), v); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	var buf bytes.Buffer
	n, err := src.Snapshot(&buf)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if n != len(entries) {
		t.Fatalf("expected %v entries in snapshot, got %v", len(entries), n)
	}

	dst := openStore(t, testConfig(t), "dst")
	if err := dst.OpenDatabase(); err != nil {
		t.Fatalf("open database: %v", err)
	}
	n, err = dst.Restore(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if n != len(entries) {
		t.Fatalf("expected %v restored entries, got %v", len(entries), n)
	}
	for k, want := range entries {
		got, err := dst.Get([]byte(k))
		if err != nil {
			t.Fatalf("get %x: %v", k, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("value of %x: expected %x, got %x", k, want, got)
		}
	}
}

func TestRestoreRejectsGarbage(t *testing.T) {
	s := openStore(t, testConfig(t), "world")
	if err := s.OpenDatabase(); err != nil {
		t.Fatalf("open database: %v", err)
	}
	if _, err := s.Restore(bytes.NewReader([]byte("definitely not zstd"))); err == nil {
		t.Fatalf("expected error restoring garbage")
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	conf := testConfig(t)
	conf.Metrics = NewMetrics(reg)
	s := openStore(t, conf, "world")
	if err := s.OpenDatabase(); err != nil {
		t.Fatalf("open database: %v", err)
	}
	_ = s.Put([]byte("k"), []byte("v"))
	_, _ = s.Get([]byte("k"))
	_, _ = s.Get([]byte("k"))
	_, _ = s.Get([]byte("missing"))

	if v := testutil.ToFloat64(conf.Metrics.reads.WithLabelValues(readHit)); v != 2 {
		t.Fatalf("expected 2 hits, got %v", v)
	}
	if v := testutil.ToFloat64(conf.Metrics.reads.WithLabelValues(readMiss)); v != 1 {
		t.Fatalf("expected 1 miss, got %v", v)
	}
	if v := testutil.ToFloat64(conf.Metrics.writes); v != 1 {
		t.Fatalf("expected 1 write, got %v", v)
	}
}
