package storage

import "sync"

// Store bundles the typed pool state and the token ledger over one database
// and gives the host the serialization and atomicity the engine requires:
// Update runs one operation at a time, stages every write into a single
// batch, and commits the batch only when the operation succeeds. A failed
// operation leaves the database untouched, and concurrent readers never see
// a half-applied operation.
type Store struct {
	mu     sync.Mutex
	db     Database
	state  *State
	tokens *Tokens
}

// NewStore wraps the database with a shared state adapter and token ledger.
func NewStore(db Database) *Store {
	return &Store{
		db:     db,
		state:  NewState(db),
		tokens: NewTokens(db),
	}
}

// State returns the typed record adapter backing the engine.
func (s *Store) State() *State { return s.state }

// Tokens returns the token ledger backing the engine.
func (s *Store) Tokens() *Tokens { return s.tokens }

// Update executes one mutating operation. Operations are serialized, so the
// engine's read-compute-write cycle never interleaves with another writer,
// and all staged writes commit as one batch after fn succeeds.
func (s *Store) Update(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := NewBatch()
	s.state.begin(batch)
	s.tokens.begin(batch)
	defer func() {
		s.state.end()
		s.tokens.end()
	}()
	if err := fn(); err != nil {
		return err
	}
	return s.db.Write(batch)
}

// View executes fn with the same serialization as Update, for reads that
// must observe a consistent multi-record snapshot.
func (s *Store) View(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}
