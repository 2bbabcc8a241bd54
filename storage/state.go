package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"tranchepool/native/pool"
)

// Key prefixes for the typed pool records. One keyspace per record kind, with
// the pool identity (and sub-key where applicable) appended.
const (
	keyConfig       = "pool/config"
	prefixPool      = "pool/record/"
	prefixSub       = "pool/sub/"
	prefixSenior    = "pool/senior/"
	prefixFirstLoss = "pool/firstloss/"
	prefixJuniorInt = "pool/juniorint/"
	prefixRepayment = "pool/repay/"
	prefixPosition  = "pool/position/"
)

// State adapts a Database into the typed persistence surface the pool engine
// requires. Records are stored as JSON. While a batch is staged (see Store),
// writes collect into it and reads see the staged values, so nothing reaches
// the database until the whole operation commits.
type State struct {
	db    Database
	batch *Batch
}

// NewState wraps the database.
func NewState(db Database) *State {
	return &State{db: db}
}

func (s *State) begin(batch *Batch) { s.batch = batch }
func (s *State) end()               { s.batch = nil }

func (s *State) put(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	if s.batch != nil {
		s.batch.Put([]byte(key), raw)
		return nil
	}
	return s.db.Put([]byte(key), raw)
}

// get decodes the record at key into out, reporting whether it existed.
func (s *State) get(key string, out interface{}) (bool, error) {
	var raw []byte
	var ok bool
	if s.batch != nil {
		raw, ok = s.batch.Get([]byte(key))
	}
	if !ok {
		var err error
		raw, err = s.db.Get([]byte(key))
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("storage: decode %s: %w", key, err)
	}
	return true, nil
}

func subKey(poolID string, investor [20]byte, tranche pool.Tranche) string {
	return fmt.Sprintf("%s%s/%x/%d", prefixSub, poolID, investor, tranche)
}

func (s *State) Config() (*pool.SystemConfig, error) {
	cfg := new(pool.SystemConfig)
	ok, err := s.get(keyConfig, cfg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return cfg, nil
}

func (s *State) PutConfig(cfg *pool.SystemConfig) error {
	return s.put(keyConfig, cfg)
}

func (s *State) GetPool(id string) (*pool.Pool, bool, error) {
	record := new(pool.Pool)
	ok, err := s.get(prefixPool+id, record)
	if err != nil || !ok {
		return nil, false, err
	}
	return record, true, nil
}

func (s *State) PutPool(p *pool.Pool) error {
	return s.put(prefixPool+p.ID, p)
}

func (s *State) GetSubscription(poolID string, investor [20]byte, tranche pool.Tranche) (*pool.Subscription, bool, error) {
	sub := new(pool.Subscription)
	ok, err := s.get(subKey(poolID, investor, tranche), sub)
	if err != nil || !ok {
		return nil, false, err
	}
	return sub, true, nil
}

func (s *State) PutSubscription(sub *pool.Subscription) error {
	return s.put(subKey(sub.PoolID, sub.Investor, sub.Tranche), sub)
}

func (s *State) GetSeniorLedger(poolID string) (*pool.SeniorLedger, bool, error) {
	ledger := new(pool.SeniorLedger)
	ok, err := s.get(prefixSenior+poolID, ledger)
	if err != nil || !ok {
		return nil, false, err
	}
	return ledger, true, nil
}

func (s *State) PutSeniorLedger(l *pool.SeniorLedger) error {
	return s.put(prefixSenior+l.PoolID, l)
}

func (s *State) GetFirstLossLedger(poolID string) (*pool.FirstLossLedger, bool, error) {
	ledger := new(pool.FirstLossLedger)
	ok, err := s.get(prefixFirstLoss+poolID, ledger)
	if err != nil || !ok {
		return nil, false, err
	}
	return ledger, true, nil
}

func (s *State) PutFirstLossLedger(l *pool.FirstLossLedger) error {
	return s.put(prefixFirstLoss+l.PoolID, l)
}

func (s *State) GetJuniorInterestLedger(poolID string) (*pool.JuniorInterestLedger, bool, error) {
	ledger := new(pool.JuniorInterestLedger)
	ok, err := s.get(prefixJuniorInt+poolID, ledger)
	if err != nil || !ok {
		return nil, false, err
	}
	return ledger, true, nil
}

func (s *State) PutJuniorInterestLedger(l *pool.JuniorInterestLedger) error {
	return s.put(prefixJuniorInt+l.PoolID, l)
}

func (s *State) GetRepayment(poolID string, period uint64) (*pool.RepaymentRecord, bool, error) {
	record := new(pool.RepaymentRecord)
	ok, err := s.get(fmt.Sprintf("%s%s/%d", prefixRepayment, poolID, period), record)
	if err != nil || !ok {
		return nil, false, err
	}
	return record, true, nil
}

func (s *State) PutRepayment(r *pool.RepaymentRecord) error {
	return s.put(fmt.Sprintf("%s%s/%d", prefixRepayment, r.PoolID, r.Period), r)
}

func (s *State) GetPosition(poolID string, id uint64) (*pool.JuniorPosition, bool, error) {
	position := new(pool.JuniorPosition)
	ok, err := s.get(fmt.Sprintf("%s%s/%d", prefixPosition, poolID, id), position)
	if err != nil || !ok {
		return nil, false, err
	}
	return position, true, nil
}

func (s *State) PutPosition(p *pool.JuniorPosition) error {
	return s.put(fmt.Sprintf("%s%s/%d", prefixPosition, p.PoolID, p.ID), p)
}
