package storage

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"tranchepool/native/pool"
)

func newFundingEngine(t *testing.T, store *Store, total uint64) *pool.Engine {
	t.Helper()
	engine := pool.NewEngine()
	engine.SetState(store.State())
	engine.SetTokens(store.Tokens())
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })

	admin := testAddr(0x01)
	require.NoError(t, store.Update(func() error {
		return engine.InitializeConfig(admin, testAddr(0x02), 200, 100, 150, 100, 2000)
	}))
	require.NoError(t, store.Update(func() error {
		return engine.SetAssetSupported(admin, "usdx", true)
	}))
	require.NoError(t, store.Update(func() error {
		_, err := engine.CreatePool(testAddr(0x03), pool.CreatePoolParams{
			ID:                 "pool-1",
			Name:               "bridge loan",
			Asset:              "usdx",
			TotalAmount:        total,
			MinAmount:          1,
			FundingStart:       1_700_000_000,
			FundingEnd:         1_700_000_000 + 30*86_400,
			RepaymentRateBps:   500,
			SeniorFixedRateBps: 800,
			RepaymentPeriod:    30 * 86_400,
			RepaymentCount:     10,
		})
		return err
	}))
	require.NoError(t, store.Update(func() error {
		return engine.ApprovePool(admin, "pool-1")
	}))
	require.NoError(t, store.Update(func() error {
		return engine.ActivatePool(admin, "pool-1", testAddr(0x10), "snr-pool-1")
	}))
	return engine
}

// Concurrent subscriptions must not lose ledger updates: every deposit has to
// land in both the pool record and the vault balance, no matter how the
// callers interleave.
func TestStoreSerializesConcurrentSubscriptions(t *testing.T) {
	const (
		investors = 16
		deposits  = 100
	)
	store := NewStore(NewMemDB())
	engine := newFundingEngine(t, store, investors*deposits)

	addrs := make([][20]byte, investors)
	for i := range addrs {
		addrs[i] = testAddr(byte(0x20 + i))
		require.NoError(t, store.Update(func() error {
			return store.Tokens().Mint("usdx", addrs[i], deposits)
		}))
	}

	var wg sync.WaitGroup
	errCh := make(chan error, investors)
	for i := 0; i < investors; i++ {
		wg.Add(1)
		go func(investor [20]byte) {
			defer wg.Done()
			for j := 0; j < deposits; j++ {
				err := store.Update(func() error {
					return engine.Subscribe(investor, "pool-1", pool.TrancheSenior, 1)
				})
				if err != nil {
					errCh <- err
					return
				}
			}
		}(addrs[i])
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	record, ok, err := store.State().GetPool("pool-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(investors*deposits), record.SeniorAmount)

	vault, err := store.Tokens().BalanceOf("usdx", testAddr(0x10))
	require.NoError(t, err)
	require.Equal(t, uint64(investors*deposits), vault)

	// Conservation: every unit minted is either still with its investor or in
	// the vault.
	var held uint64
	for _, addr := range addrs {
		balance, err := store.Tokens().BalanceOf("usdx", addr)
		require.NoError(t, err)
		held += balance
	}
	require.Equal(t, uint64(investors*deposits), held+vault)
	require.Zero(t, held)

	for _, addr := range addrs {
		sub, ok, err := store.State().GetSubscription("pool-1", addr, pool.TrancheSenior)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(deposits), sub.Amount)
	}
}

// A failed operation must leave the database byte-for-byte untouched, even
// when it staged writes before failing.
func TestStoreDiscardsWritesOnFailure(t *testing.T) {
	store := NewStore(NewMemDB())
	boom := errors.New("boom")

	err := store.Update(func() error {
		if err := store.State().PutPool(&pool.Pool{ID: "ghost", TotalAmount: 1}); err != nil {
			return err
		}
		if err := store.Tokens().Mint("usdx", testAddr(0x04), 500); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, ok, err := store.State().GetPool("ghost")
	require.NoError(t, err)
	require.False(t, ok)

	balance, err := store.Tokens().BalanceOf("usdx", testAddr(0x04))
	require.NoError(t, err)
	require.Zero(t, balance)
}

// Writes staged inside Update are readable before the commit, so an operation
// can observe its own earlier writes.
func TestStoreStagedWritesReadableWithinUpdate(t *testing.T) {
	store := NewStore(NewMemDB())

	require.NoError(t, store.Update(func() error {
		if err := store.Tokens().Mint("usdx", testAddr(0x05), 42); err != nil {
			return err
		}
		balance, err := store.Tokens().BalanceOf("usdx", testAddr(0x05))
		if err != nil {
			return err
		}
		require.Equal(t, uint64(42), balance)

		if err := store.State().PutPool(&pool.Pool{ID: "pool-1", TotalAmount: 7}); err != nil {
			return err
		}
		record, ok, err := store.State().GetPool("pool-1")
		if err != nil {
			return err
		}
		require.True(t, ok)
		require.Equal(t, uint64(7), record.TotalAmount)
		return nil
	}))

	// The commit made both writes durable.
	balance, err := store.Tokens().BalanceOf("usdx", testAddr(0x05))
	require.NoError(t, err)
	require.Equal(t, uint64(42), balance)
	record, ok, err := store.State().GetPool("pool-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7), record.TotalAmount)
}
