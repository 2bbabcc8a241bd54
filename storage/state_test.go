package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tranchepool/native/pool"
)

func testAddr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func TestStateRoundTripsRecords(t *testing.T) {
	state := NewState(NewMemDB())

	cfg, err := state.Config()
	require.NoError(t, err)
	require.Nil(t, cfg, "config should be absent before initialisation")

	require.NoError(t, state.PutConfig(&pool.SystemConfig{
		Treasury:       testAddr(0x02),
		PlatformFeeBps: 200,
		Assets:         map[string]bool{"usdx": true},
		Initialized:    true,
	}))
	cfg, err = state.Config()
	require.NoError(t, err)
	require.True(t, cfg.Initialized)
	require.True(t, cfg.AssetSupported("usdx"))

	_, ok, err := state.GetPool("pool-1")
	require.NoError(t, err)
	require.False(t, ok)

	record := &pool.Pool{ID: "pool-1", Name: "bridge loan", Asset: "usdx", TotalAmount: 100_000, RepaymentCount: 10}
	require.NoError(t, state.PutPool(record))
	loaded, ok, err := state.GetPool("pool-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, record, loaded)

	sub := &pool.Subscription{PoolID: "pool-1", Investor: testAddr(0x04), Tranche: pool.TrancheJunior, Amount: 5_000}
	require.NoError(t, state.PutSubscription(sub))
	gotSub, ok, err := state.GetSubscription("pool-1", testAddr(0x04), pool.TrancheJunior)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sub, gotSub)

	// The senior record for the same investor lives under its own key.
	_, ok, err = state.GetSubscription("pool-1", testAddr(0x04), pool.TrancheSenior)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, state.PutRepayment(&pool.RepaymentRecord{PoolID: "pool-1", Period: 3, Amount: 15_000}))
	rec, ok, err := state.GetRepayment("pool-1", 3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(15_000), rec.Amount)
	_, ok, err = state.GetRepayment("pool-1", 4)
	require.NoError(t, err)
	require.False(t, ok)

	position := &pool.JuniorPosition{ID: 7, PoolID: "pool-1", Owner: testAddr(0x05), Principal: 5_000}
	require.NoError(t, state.PutPosition(position))
	gotPos, ok, err := state.GetPosition("pool-1", 7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, position, gotPos)
}

func TestStateLedgerKeysAreDisjoint(t *testing.T) {
	state := NewState(NewMemDB())

	require.NoError(t, state.PutSeniorLedger(&pool.SeniorLedger{PoolID: "p", TotalDeposits: 1}))
	require.NoError(t, state.PutFirstLossLedger(&pool.FirstLossLedger{PoolID: "p", TotalDeposits: 2}))
	require.NoError(t, state.PutJuniorInterestLedger(&pool.JuniorInterestLedger{PoolID: "p", Total: 3}))

	senior, ok, err := state.GetSeniorLedger("p")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), senior.TotalDeposits)

	firstLoss, ok, err := state.GetFirstLossLedger("p")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2), firstLoss.TotalDeposits)

	junior, ok, err := state.GetJuniorInterestLedger("p")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(3), junior.Total)
}

// The storage adapter satisfies the engine's persistence interface end to end.
func TestStateDrivesEngine(t *testing.T) {
	state := NewState(NewMemDB())
	tokens := NewTokens(NewMemDB())

	engine := pool.NewEngine()
	engine.SetState(state)
	engine.SetTokens(tokens)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })

	admin := testAddr(0x01)
	require.NoError(t, engine.InitializeConfig(admin, testAddr(0x02), 200, 100, 150, 100, 2000))
	require.NoError(t, engine.SetAssetSupported(admin, "usdx", true))

	_, err := engine.CreatePool(testAddr(0x03), pool.CreatePoolParams{
		ID:                 "pool-1",
		Name:               "bridge loan",
		Asset:              "usdx",
		TotalAmount:        100_000,
		MinAmount:          5_000,
		FundingStart:       1_700_000_000,
		FundingEnd:         1_700_000_000 + 30*86_400,
		RepaymentRateBps:   500,
		SeniorFixedRateBps: 800,
		RepaymentPeriod:    30 * 86_400,
		RepaymentCount:     10,
	})
	require.NoError(t, err)
	require.NoError(t, engine.ApprovePool(admin, "pool-1"))
	require.NoError(t, engine.ActivatePool(admin, "pool-1", testAddr(0x10), "snr-pool-1"))

	loaded, ok, err := state.GetPool("pool-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pool.StatusFunding, loaded.Status)
	require.True(t, loaded.LedgersInitialized)

	investor := testAddr(0x04)
	require.NoError(t, tokens.Mint("usdx", investor, 10_000))
	require.NoError(t, engine.Subscribe(investor, "pool-1", pool.TrancheSenior, 10_000))

	vault, err := tokens.BalanceOf("usdx", testAddr(0x10))
	require.NoError(t, err)
	require.Equal(t, uint64(10_000), vault)

	sub, ok, err := state.GetSubscription("pool-1", investor, pool.TrancheSenior)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(10_000), sub.Amount)
}
