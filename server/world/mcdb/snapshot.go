package mcdb

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// snapshotMagic starts every snapshot written by Store.Snapshot.
var snapshotMagic = [4]byte{'T', 'C', 'S', '1'}

// Snapshot writes every key-value pair of the chunk database to w as a zstd
// compressed stream and returns the amount of pairs written. Each pair is
// written as a uvarint key length, the key, a uvarint value length and the
// value.
func (s *Store) Snapshot(w io.Writer) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return 0, ErrClosed
	}
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, fmt.Errorf("snapshot: %w", err)
	}
	bw := bufio.NewWriter(zw)
	if _, err := bw.Write(snapshotMagic[:]); err != nil {
		_ = zw.Close()
		return 0, fmt.Errorf("snapshot: %w", err)
	}
	var (
		n   int
		buf [binary.MaxVarintLen64]byte
	)
	err = s.db.Iterate(func(key, value []byte) error {
		for _, b := range [2][]byte{key, value} {
			if _, err := bw.Write(buf[:binary.PutUvarint(buf[:], uint64(len(b)))]); err != nil {
				return err
			}
			if _, err := bw.Write(b); err != nil {
				return err
			}
		}
		n++
		return nil
	})
	if err == nil {
		err = bw.Flush()
	}
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("snapshot: %w", err)
	}
	s.conf.Log.Debug("Wrote snapshot.", "entries", n)
	return n, nil
}

// Restore reads a snapshot written by Store.Snapshot from r and stores every
// key-value pair it holds in the chunk database, overwriting existing values.
// It returns the amount of pairs restored.
func (s *Store) Restore(r io.Reader) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return 0, ErrClosed
	}
	zr, err := zstd.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("restore: %w", err)
	}
	defer zr.Close()
	br := bufio.NewReader(zr)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return 0, fmt.Errorf("restore: read magic: %w", err)
	}
	if magic != snapshotMagic {
		return 0, fmt.Errorf("restore: not a snapshot (magic %x)", magic)
	}
	n := 0
	for {
		key, err := readChunk(br)
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return n, fmt.Errorf("restore: entry %v key: %w", n, err)
		}
		value, err := readChunk(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return n, fmt.Errorf("restore: entry %v value: %w", n, err)
		}
		if err := s.db.Put(key, value); err != nil {
			return n, fmt.Errorf("restore: %w", err)
		}
		s.conf.Metrics.write()
		n++
	}
	s.conf.Log.Debug("Restored snapshot.", "entries", n)
	return n, nil
}

// maxSnapshotEntry is the largest key or value accepted by Restore.
const maxSnapshotEntry = 64 << 20

// readChunk reads a uvarint length prefixed byte slice from r. io.EOF is only
// returned if r was exhausted before the length.
func readChunk(r *bufio.Reader) ([]byte, error) {
	l, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if l > maxSnapshotEntry {
		return nil, fmt.Errorf("entry length %v exceeds %v", l, maxSnapshotEntry)
	}
	b := make([]byte, l)
	if _, err := io.ReadFull(r, b); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return b, nil
}
