package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
)

var (
	// ErrInsufficientFunds is returned by Transfer and Burn when the source
	// balance cannot cover the amount.
	ErrInsufficientFunds = errors.New("storage: insufficient token balance")
	// ErrBalanceOverflow is returned when a stored balance no longer fits
	// the engine's 64-bit amount domain.
	ErrBalanceOverflow = errors.New("storage: balance exceeds 64 bits")
)

const (
	prefixBalance = "token/balance/"
	prefixSupply  = "token/supply/"
)

// Tokens is the value-transfer primitive backing the engine: per-token
// balances and total supply for the pool asset and yield tokens. Balances are
// persisted as fixed 256-bit words so corrupt or out-of-domain values are
// caught on load instead of silently truncated. Every mutation is a
// read-modify-write, so a mutex serialises them; hosts that need whole
// operations serialised wrap calls in Store.Update, which also stages the
// writes into one atomic batch.
type Tokens struct {
	db    Database
	mu    sync.Mutex
	batch *Batch
}

// NewTokens wraps the database.
func NewTokens(db Database) *Tokens {
	return &Tokens{db: db}
}

func (t *Tokens) begin(batch *Batch) { t.batch = batch }
func (t *Tokens) end()               { t.batch = nil }

func balanceKey(token string, addr [20]byte) string {
	return fmt.Sprintf("%s%s/%x", prefixBalance, token, addr)
}

func (t *Tokens) load(key string) (uint64, error) {
	var raw []byte
	var ok bool
	if t.batch != nil {
		raw, ok = t.batch.Get([]byte(key))
	}
	if !ok {
		var err error
		raw, err = t.db.Get([]byte(key))
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
	}
	value := new(uint256.Int).SetBytes(raw)
	if !value.IsUint64() {
		return 0, ErrBalanceOverflow
	}
	return value.Uint64(), nil
}

func (t *Tokens) store(key string, amount uint64) error {
	word := uint256.NewInt(amount).Bytes32()
	if t.batch != nil {
		t.batch.Put([]byte(key), word[:])
		return nil
	}
	return t.db.Put([]byte(key), word[:])
}

// Transfer moves amount between two holders of token. Fails atomically on an
// insufficient source balance; no partial write happens.
func (t *Tokens) Transfer(token string, from, to [20]byte, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if from == to || amount == 0 {
		return nil
	}
	fromBal, err := t.load(balanceKey(token, from))
	if err != nil {
		return err
	}
	if fromBal < amount {
		return ErrInsufficientFunds
	}
	toBal, err := t.load(balanceKey(token, to))
	if err != nil {
		return err
	}
	sum := new(uint256.Int).AddUint64(uint256.NewInt(toBal), amount)
	if !sum.IsUint64() {
		return ErrBalanceOverflow
	}
	if err := t.store(balanceKey(token, from), fromBal-amount); err != nil {
		return err
	}
	return t.store(balanceKey(token, to), sum.Uint64())
}

// Mint creates amount of token for the recipient and grows the supply.
func (t *Tokens) Mint(token string, to [20]byte, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if amount == 0 {
		return nil
	}
	supply, err := t.load(prefixSupply + token)
	if err != nil {
		return err
	}
	newSupply := new(uint256.Int).AddUint64(uint256.NewInt(supply), amount)
	if !newSupply.IsUint64() {
		return ErrBalanceOverflow
	}
	balance, err := t.load(balanceKey(token, to))
	if err != nil {
		return err
	}
	newBalance := new(uint256.Int).AddUint64(uint256.NewInt(balance), amount)
	if !newBalance.IsUint64() {
		return ErrBalanceOverflow
	}
	if err := t.store(prefixSupply+token, newSupply.Uint64()); err != nil {
		return err
	}
	return t.store(balanceKey(token, to), newBalance.Uint64())
}

// Burn destroys amount of token held by from and shrinks the supply.
func (t *Tokens) Burn(token string, from [20]byte, amount uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if amount == 0 {
		return nil
	}
	balance, err := t.load(balanceKey(token, from))
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrInsufficientFunds
	}
	supply, err := t.load(prefixSupply + token)
	if err != nil {
		return err
	}
	if supply < amount {
		return ErrInsufficientFunds
	}
	if err := t.store(balanceKey(token, from), balance-amount); err != nil {
		return err
	}
	return t.store(prefixSupply+token, supply-amount)
}

// BalanceOf reports the holder's balance of token.
func (t *Tokens) BalanceOf(token string, addr [20]byte) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(balanceKey(token, addr))
}

// TotalSupply reports the outstanding supply of token.
func (t *Tokens) TotalSupply(token string) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(prefixSupply + token)
}
