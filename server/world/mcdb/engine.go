package mcdb

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/df-mc/goleveldb/leveldb"
	"github.com/df-mc/goleveldb/leveldb/opt"
	"github.com/dgraph-io/badger/v3"
)

// database is the key-value engine backing a Store. Implementations return
// ErrNotFound for absent keys.
type database interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// Iterate calls fn for every key-value pair in the database. The slices
	// passed are only valid until fn returns.
	Iterate(fn func(key, value []byte) error) error
	Close() error
}

// openDatabase opens the database at <world>/db using the engine configured.
func openDatabase(conf Config, worldDir string) (database, error) {
	dir := filepath.Join(worldDir, "db")
	switch conf.Engine {
	case EngineLevelDB:
		ldb, err := leveldb.OpenFile(dir, &opt.Options{
			Compression: conf.Compression,
			BlockSize:   conf.BlockSize,
			ReadOnly:    conf.ReadOnly,
		})
		if err != nil {
			return nil, err
		}
		return levelDB{ldb: ldb}, nil
	case EngineBadger:
		bdb, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil).WithReadOnly(conf.ReadOnly))
		if err != nil {
			return nil, err
		}
		return badgerDB{bdb: bdb}, nil
	}
	return nil, fmt.Errorf("unknown database engine %q", conf.Engine)
}

// levelDB is a database backed by LevelDB.
type levelDB struct {
	ldb *leveldb.DB
}

func (db levelDB) Get(key []byte) ([]byte, error) {
	v, err := db.ldb.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

func (db levelDB) Put(key, value []byte) error {
	return db.ldb.Put(key, value, nil)
}

func (db levelDB) Delete(key []byte) error {
	return db.ldb.Delete(key, nil)
}

func (db levelDB) Iterate(fn func(key, value []byte) error) error {
	iter := db.ldb.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (db levelDB) Close() error {
	return db.ldb.Close()
}

// badgerDB is a database backed by Badger.
type badgerDB struct {
	bdb *badger.DB
}

func (db badgerDB) Get(key []byte) (value []byte, err error) {
	err = db.bdb.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (db badgerDB) Put(key, value []byte) error {
	return db.bdb.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (db badgerDB) Delete(key []byte) error {
	return db.bdb.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (db badgerDB) Iterate(fn func(key, value []byte) error) error {
	return db.bdb.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if err := item.Value(func(v []byte) error {
				return fn(item.Key(), v)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db badgerDB) Close() error {
	return db.bdb.Close()
}
