package storage

import (
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("storage: key not found")

// Database is a generic interface for a key-value store, so the pool state
// can run on an in-memory map in tests and LevelDB in the daemon. Write
// applies every staged put of a batch as one atomic commit.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Write(batch *Batch) error
	Close()
}

// Batch stages a set of puts so one operation's writes hit the database as a
// single atomic commit. A repeated key keeps the latest value.
type Batch struct {
	order  []string
	values map[string][]byte
}

func NewBatch() *Batch {
	return &Batch{values: make(map[string][]byte)}
}

func (b *Batch) Put(key []byte, value []byte) {
	k := string(key)
	if _, ok := b.values[k]; !ok {
		b.order = append(b.order, k)
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	b.values[k] = buf
}

// Get returns the staged value for key, if any.
func (b *Batch) Get(key []byte) ([]byte, bool) {
	value, ok := b.values[string(key)]
	return value, ok
}

// Len reports the number of distinct staged keys.
func (b *Batch) Len() int { return len(b.order) }

// --- In-Memory DB (for testing) ---

type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemDB() *MemDB {
	return &MemDB{
		data: make(map[string][]byte),
	}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	buf := make([]byte, len(value))
	copy(buf, value)
	db.data[string(key)] = buf
	return nil
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, ok := db.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

// Write applies the whole batch under one lock acquisition.
func (db *MemDB) Write(batch *Batch) error {
	if batch == nil {
		return nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, key := range batch.order {
		value := batch.values[key]
		buf := make([]byte, len(value))
		copy(buf, value)
		db.data[key] = buf
	}
	return nil
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {
	// Nothing to close for an in-memory database.
}

// --- Persistent DB (for production) ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

// Write commits the whole batch atomically.
func (ldb *LevelDB) Write(batch *Batch) error {
	if batch == nil {
		return nil
	}
	wb := new(leveldb.Batch)
	for _, key := range batch.order {
		wb.Put([]byte(key), batch.values[key])
	}
	return ldb.db.Write(wb, nil)
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	ldb.db.Close()
}
