package pool

import (
	"time"

	"tranchepool/core/events"
	nativecommon "tranchepool/native/common"
)

const moduleName = "pool"

// engineState is the narrow persistence surface the engine requires. The host
// guarantees atomic visibility of one operation's writes; the engine validates
// fully before writing anything back.
type engineState interface {
	Config() (*SystemConfig, error)
	PutConfig(cfg *SystemConfig) error

	GetPool(id string) (*Pool, bool, error)
	PutPool(p *Pool) error

	GetSubscription(poolID string, investor [20]byte, tranche Tranche) (*Subscription, bool, error)
	PutSubscription(sub *Subscription) error

	GetSeniorLedger(poolID string) (*SeniorLedger, bool, error)
	PutSeniorLedger(l *SeniorLedger) error
	GetFirstLossLedger(poolID string) (*FirstLossLedger, bool, error)
	PutFirstLossLedger(l *FirstLossLedger) error
	GetJuniorInterestLedger(poolID string) (*JuniorInterestLedger, bool, error)
	PutJuniorInterestLedger(l *JuniorInterestLedger) error

	GetRepayment(poolID string, period uint64) (*RepaymentRecord, bool, error)
	PutRepayment(rec *RepaymentRecord) error

	GetPosition(poolID string, id uint64) (*JuniorPosition, bool, error)
	PutPosition(pos *JuniorPosition) error
}

// TokenLedger is the value-transfer primitive supplied by the host. Every call
// is atomic and fails the whole operation on insufficient balance.
type TokenLedger interface {
	Transfer(token string, from, to [20]byte, amount uint64) error
	Mint(token string, to [20]byte, amount uint64) error
	Burn(token string, from [20]byte, amount uint64) error
	BalanceOf(token string, addr [20]byte) (uint64, error)
	TotalSupply(token string) (uint64, error)
}

// Engine orchestrates the state transitions for the tranche pool module: the
// pool lifecycle, the subscription ledger, the repayment waterfall, junior
// positions and early exits.
type Engine struct {
	state   engineState
	tokens  TokenLedger
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs an engine with the default wall clock and a discarding
// event sink. State and tokens must be wired before use.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokens wires the engine to the host's value-transfer primitive.
func (e *Engine) SetTokens(tokens TokenLedger) { e.tokens = tokens }

// SetEmitter configures the event sink. A nil emitter restores the default
// no-op sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetNowFunc overrides the engine clock. Passing nil restores the wall clock.
func (e *Engine) SetNowFunc(now func() int64) {
	if e == nil {
		return
	}
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	e.nowFn = now
}

func (e *Engine) now() int64 { return e.nowFn() }

func (e *Engine) requireState() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return nil
}

func (e *Engine) requireTokens() error {
	if e.tokens == nil {
		return ErrNilTokens
	}
	return nil
}

// config loads the system configuration, failing when it was never
// initialised.
func (e *Engine) config() (*SystemConfig, error) {
	cfg, err := e.state.Config()
	if err != nil {
		return nil, err
	}
	if cfg == nil || !cfg.Initialized {
		return nil, ErrConfigNotInitialized
	}
	return cfg, nil
}

// guardedConfig loads the configuration and applies the module pause guard.
// Administrative configuration operations skip the guard so the system can be
// unpaused again.
func (e *Engine) guardedConfig() (*SystemConfig, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(cfg, moduleName); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isSuperAdmin(cfg *SystemConfig, caller [20]byte) bool {
	return caller == cfg.SuperAdmin
}

// isOperator authorises pool lifecycle administration: the operation admin or
// the super admin.
func isOperator(cfg *SystemConfig, caller [20]byte) bool {
	return caller == cfg.OperationAdmin || caller == cfg.SuperAdmin
}

// InitializeConfig bootstraps the global configuration singleton. All four
// admin roles are seeded to the caller; they can be reassigned afterwards with
// UpdateAdmin. Fails once initialised.
func (e *Engine) InitializeConfig(caller, treasury [20]byte, platformFeeBps, seniorExitBeforeBps, seniorExitAfterBps, juniorExitBeforeBps, defaultMinJuniorBps uint16) error {
	if err := e.requireState(); err != nil {
		return err
	}
	existing, err := e.state.Config()
	if err != nil {
		return err
	}
	if existing != nil && existing.Initialized {
		return ErrConfigInitialized
	}
	cfg := &SystemConfig{
		SuperAdmin:          caller,
		SystemAdmin:         caller,
		TreasuryAdmin:       caller,
		OperationAdmin:      caller,
		Treasury:            treasury,
		PlatformFeeBps:      platformFeeBps,
		SeniorExitBeforeBps: seniorExitBeforeBps,
		SeniorExitAfterBps:  seniorExitAfterBps,
		JuniorExitBeforeBps: juniorExitBeforeBps,
		DefaultMinJuniorBps: defaultMinJuniorBps,
		Assets:              make(map[string]bool),
		Initialized:         true,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := e.state.PutConfig(cfg); err != nil {
		return err
	}
	e.emitter.Emit(events.ConfigInitialized{Treasury: treasury, Timestamp: e.now()})
	return nil
}

// UpdateAdmin reassigns one admin role. Only the super admin may call it.
func (e *Engine) UpdateAdmin(caller [20]byte, role AdminRole, addr [20]byte) error {
	if err := e.requireState(); err != nil {
		return err
	}
	cfg, err := e.config()
	if err != nil {
		return err
	}
	if !isSuperAdmin(cfg, caller) {
		return ErrUnauthorized
	}
	updated := cfg.Clone()
	if err := updated.setAdmin(role, addr); err != nil {
		return err
	}
	if err := e.state.PutConfig(updated); err != nil {
		return err
	}
	e.emitter.Emit(events.AdminUpdated{Role: role.String(), NewAdmin: addr, Timestamp: e.now()})
	return nil
}

// UpdateFeeRate changes one global fee rate, re-validating the per-kind cap.
func (e *Engine) UpdateFeeRate(caller [20]byte, kind FeeKind, rateBps uint16) error {
	if err := e.requireState(); err != nil {
		return err
	}
	cfg, err := e.config()
	if err != nil {
		return err
	}
	if !isSuperAdmin(cfg, caller) {
		return ErrUnauthorized
	}
	updated := cfg.Clone()
	if err := updated.setFeeRate(kind, rateBps); err != nil {
		return err
	}
	if err := e.state.PutConfig(updated); err != nil {
		return err
	}
	e.emitter.Emit(events.FeeRateUpdated{Kind: kind.String(), NewRate: rateBps, Timestamp: e.now()})
	return nil
}

// SetTreasury changes the global treasury address.
func (e *Engine) SetTreasury(caller, treasury [20]byte) error {
	if err := e.requireState(); err != nil {
		return err
	}
	cfg, err := e.config()
	if err != nil {
		return err
	}
	if !isSuperAdmin(cfg, caller) {
		return ErrUnauthorized
	}
	updated := cfg.Clone()
	updated.Treasury = treasury
	if err := e.state.PutConfig(updated); err != nil {
		return err
	}
	e.emitter.Emit(events.TreasuryUpdated{Treasury: treasury, Timestamp: e.now()})
	return nil
}

// SetAssetSupported adds or removes an asset from the whitelist.
func (e *Engine) SetAssetSupported(caller [20]byte, asset string, supported bool) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if asset == "" {
		return ErrAssetNotSupported
	}
	cfg, err := e.config()
	if err != nil {
		return err
	}
	if !isSuperAdmin(cfg, caller) {
		return ErrUnauthorized
	}
	updated := cfg.Clone()
	if supported {
		updated.Assets[asset] = true
	} else {
		delete(updated.Assets, asset)
	}
	if err := e.state.PutConfig(updated); err != nil {
		return err
	}
	e.emitter.Emit(events.AssetSupportUpdated{Asset: asset, Supported: supported, Timestamp: e.now()})
	return nil
}

// Pause halts every guarded operation. Configuration operations stay
// available so the flag can be cleared again.
func (e *Engine) Pause(caller [20]byte) error {
	if err := e.requireState(); err != nil {
		return err
	}
	cfg, err := e.config()
	if err != nil {
		return err
	}
	if !isSuperAdmin(cfg, caller) {
		return ErrUnauthorized
	}
	updated := cfg.Clone()
	updated.Paused = true
	if err := e.state.PutConfig(updated); err != nil {
		return err
	}
	e.emitter.Emit(events.SystemPaused{Timestamp: e.now()})
	return nil
}

// Unpause clears the pause flag.
func (e *Engine) Unpause(caller [20]byte) error {
	if err := e.requireState(); err != nil {
		return err
	}
	cfg, err := e.config()
	if err != nil {
		return err
	}
	if !isSuperAdmin(cfg, caller) {
		return ErrUnauthorized
	}
	updated := cfg.Clone()
	updated.Paused = false
	if err := e.state.PutConfig(updated); err != nil {
		return err
	}
	e.emitter.Emit(events.SystemUnpaused{Timestamp: e.now()})
	return nil
}

// CreatePoolParams carries the creator-supplied pool terms. Fee rates and the
// minimum junior ratio are snapshotted from the global configuration so later
// config changes do not retroactively reprice live pools.
type CreatePoolParams struct {
	ID                 string
	Name               string
	Asset              string
	TotalAmount        uint64
	MinAmount          uint64
	FundingStart       int64
	FundingEnd         int64
	RepaymentRateBps   uint16
	SeniorFixedRateBps uint16
	RepaymentPeriod    int64
	RepaymentCount     uint64
}

func validatePoolParams(p CreatePoolParams, now int64) error {
	if p.ID == "" || p.Name == "" || len(p.Name) > MaxPoolNameLen {
		return ErrInvalidName
	}
	if p.TotalAmount == 0 || p.MinAmount == 0 || p.MinAmount > p.TotalAmount {
		return ErrInvalidFundingParams
	}
	if p.FundingStart >= p.FundingEnd || p.FundingEnd <= now {
		return ErrInvalidTimeWindow
	}
	window := p.FundingEnd - p.FundingStart
	if window < MinFundingWindow || window > MaxFundingWindow {
		return ErrInvalidTimeWindow
	}
	if p.RepaymentRateBps == 0 || p.RepaymentRateBps > MaxAnnualRateBps {
		return ErrInvalidRepaymentRate
	}
	if p.SeniorFixedRateBps == 0 || p.SeniorFixedRateBps > MaxAnnualRateBps {
		return ErrInvalidSeniorRate
	}
	if p.RepaymentPeriod < MinRepaymentSecs || p.RepaymentPeriod > MaxRepaymentSecs {
		return ErrInvalidRepaymentPeriod
	}
	if p.RepaymentCount == 0 || p.RepaymentCount > MaxRepaymentCnt {
		return ErrInvalidRepaymentCount
	}
	return nil
}

// CreatePool records a new pool in Created status with the global fee
// schedule snapshotted onto it.
func (e *Engine) CreatePool(creator [20]byte, params CreatePoolParams) (*Pool, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	cfg, err := e.guardedConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.AssetSupported(params.Asset) {
		return nil, ErrAssetNotSupported
	}
	now := e.now()
	if err := validatePoolParams(params, now); err != nil {
		return nil, err
	}
	if _, ok, err := e.state.GetPool(params.ID); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrPoolExists
	}
	pool := &Pool{
		ID:                  params.ID,
		Name:                params.Name,
		Status:              StatusCreated,
		Asset:               params.Asset,
		PlatformFeeBps:      cfg.PlatformFeeBps,
		SeniorExitBeforeBps: cfg.SeniorExitBeforeBps,
		SeniorExitAfterBps:  cfg.SeniorExitAfterBps,
		JuniorExitBeforeBps: cfg.JuniorExitBeforeBps,
		MinJuniorRatioBps:   cfg.DefaultMinJuniorBps,
		RepaymentRateBps:    params.RepaymentRateBps,
		SeniorFixedRateBps:  params.SeniorFixedRateBps,
		RepaymentPeriod:     params.RepaymentPeriod,
		RepaymentCount:      params.RepaymentCount,
		TotalAmount:         params.TotalAmount,
		MinAmount:           params.MinAmount,
		FundingStart:        params.FundingStart,
		FundingEnd:          params.FundingEnd,
		Creator:             creator,
		CreatedAt:           now,
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.PoolCreated{
		PoolID:      pool.ID,
		Creator:     creator,
		TotalAmount: pool.TotalAmount,
		MinAmount:   pool.MinAmount,
		Timestamp:   now,
	})
	return pool.Clone(), nil
}

// ApprovePool advances a Created pool to Approved.
func (e *Engine) ApprovePool(caller [20]byte, poolID string) error {
	if err := e.requireState(); err != nil {
		return err
	}
	cfg, err := e.config()
	if err != nil {
		return err
	}
	if !isOperator(cfg, caller) {
		return ErrUnauthorized
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	switch pool.Status {
	case StatusCreated:
	case StatusApproved:
		return ErrPoolAlreadyApproved
	default:
		return ErrInvalidPoolStatus
	}
	pool.Status = StatusApproved
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emitter.Emit(events.PoolApproved{PoolID: poolID, Timestamp: e.now()})
	return nil
}

// ActivatePool atomically creates the pool's three sub-ledgers, binds the
// funding vault and yield-token identity, copies the current treasury onto
// the pool and opens the funding phase. Subscriptions are rejected until
// this has run.
func (e *Engine) ActivatePool(caller [20]byte, poolID string, vault [20]byte, yieldToken string) error {
	if err := e.requireState(); err != nil {
		return err
	}
	cfg, err := e.config()
	if err != nil {
		return err
	}
	if !isOperator(cfg, caller) {
		return ErrUnauthorized
	}
	if yieldToken == "" {
		return ErrInvalidName
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if pool.LedgersInitialized {
		return ErrLedgersInitialized
	}
	if pool.Status != StatusApproved {
		return ErrPoolNotApproved
	}
	pool.Vault = vault
	pool.Treasury = cfg.Treasury
	pool.YieldToken = yieldToken
	pool.LedgersInitialized = true
	pool.Status = StatusFunding
	if err := e.state.PutSeniorLedger(&SeniorLedger{PoolID: poolID, YieldToken: yieldToken}); err != nil {
		return err
	}
	if err := e.state.PutFirstLossLedger(&FirstLossLedger{PoolID: poolID}); err != nil {
		return err
	}
	if err := e.state.PutJuniorInterestLedger(&JuniorInterestLedger{PoolID: poolID}); err != nil {
		return err
	}
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emitter.Emit(events.PoolActivated{PoolID: poolID, Vault: vault, YieldToken: yieldToken, Timestamp: e.now()})
	return nil
}

// Subscribe accumulates a funding commitment into the caller's per-tranche
// record and moves the committed value into the pool vault.
func (e *Engine) Subscribe(investor [20]byte, poolID string, tranche Tranche, amount uint64) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if err := e.requireTokens(); err != nil {
		return err
	}
	cfg, err := e.guardedConfig()
	if err != nil {
		return err
	}
	if !tranche.Valid() {
		return ErrInvalidTranche
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if pool.Status != StatusFunding {
		return ErrInvalidPoolStatus
	}
	if !cfg.AssetSupported(pool.Asset) {
		return ErrAssetNotSupported
	}
	now := e.now()
	if now < pool.FundingStart {
		return ErrFundingNotStarted
	}
	if now > pool.FundingEnd {
		return ErrFundingEnded
	}
	sub, ok, err := e.state.GetSubscription(poolID, investor, tranche)
	if err != nil {
		return err
	}
	if !ok {
		sub = &Subscription{
			PoolID:       poolID,
			Investor:     investor,
			Tranche:      tranche,
			Status:       SubscriptionPending,
			SubscribedAt: now,
		}
	} else if sub.Status != SubscriptionPending {
		return ErrSubscriptionNotPending
	}
	newAmount, err := addChecked(sub.Amount, amount)
	if err != nil {
		return err
	}
	var newSenior, newJunior uint64
	switch tranche {
	case TrancheSenior:
		if newSenior, err = addChecked(pool.SeniorAmount, amount); err != nil {
			return err
		}
		newJunior = pool.JuniorAmount
	case TrancheJunior:
		if newJunior, err = addChecked(pool.JuniorAmount, amount); err != nil {
			return err
		}
		newSenior = pool.SeniorAmount
	}
	if err := e.tokens.Transfer(pool.Asset, investor, pool.Vault, amount); err != nil {
		return err
	}
	sub.Amount = newAmount
	pool.SeniorAmount = newSenior
	pool.JuniorAmount = newJunior
	if err := e.state.PutSubscription(sub); err != nil {
		return err
	}
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emitter.Emit(events.SubscriptionRecorded{
		PoolID:    poolID,
		Investor:  investor,
		Tranche:   tranche.String(),
		Amount:    amount,
		Timestamp: now,
	})
	return nil
}

// WithdrawSubscription partially unwinds a pending commitment while the
// funding window is still open. The before-close fee for the tranche comes
// from the global configuration; the subscription and the pool tranche total
// shrink by the gross amount, not the net payout.
func (e *Engine) WithdrawSubscription(investor [20]byte, poolID string, tranche Tranche, amount uint64) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if err := e.requireTokens(); err != nil {
		return err
	}
	cfg, err := e.guardedConfig()
	if err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if pool.Status != StatusFunding {
		return ErrInvalidPoolStatus
	}
	if e.now() > pool.FundingEnd {
		return ErrFundingEnded
	}
	sub, ok, err := e.state.GetSubscription(poolID, investor, tranche)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSubscriptionNotFound
	}
	if sub.Status != SubscriptionPending {
		return ErrSubscriptionNotPending
	}
	if amount > sub.Amount {
		return ErrInsufficientCommitment
	}
	var feeRate uint16
	switch tranche {
	case TrancheSenior:
		feeRate = cfg.SeniorExitBeforeBps
	case TrancheJunior:
		feeRate = cfg.JuniorExitBeforeBps
	default:
		return ErrInvalidTranche
	}
	fee, err := bpsShare(amount, feeRate)
	if err != nil {
		return err
	}
	net, err := subChecked(amount, fee)
	if err != nil {
		return err
	}
	newSubAmount, err := subChecked(sub.Amount, amount)
	if err != nil {
		return err
	}
	var newSenior, newJunior uint64
	switch tranche {
	case TrancheSenior:
		if newSenior, err = subChecked(pool.SeniorAmount, amount); err != nil {
			return err
		}
		newJunior = pool.JuniorAmount
	case TrancheJunior:
		if newJunior, err = subChecked(pool.JuniorAmount, amount); err != nil {
			return err
		}
		newSenior = pool.SeniorAmount
	}
	if net > 0 {
		if err := e.tokens.Transfer(pool.Asset, pool.Vault, investor, net); err != nil {
			return err
		}
	}
	if fee > 0 {
		if err := e.tokens.Transfer(pool.Asset, pool.Vault, pool.Treasury, fee); err != nil {
			return err
		}
	}
	sub.Amount = newSubAmount
	pool.SeniorAmount = newSenior
	pool.JuniorAmount = newJunior
	if err := e.state.PutSubscription(sub); err != nil {
		return err
	}
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emitter.Emit(events.SubscriptionWithdrawn{
		PoolID:    poolID,
		Investor:  investor,
		Tranche:   tranche.String(),
		Amount:    amount,
		Fee:       fee,
		Timestamp: e.now(),
	})
	return nil
}

// CompleteFunding advances a funding-phase pool to Funded once the funding window
// has closed with the minimum raise and junior ratio met, and fixes the
// capital structure into the senior and first-loss ledgers.
func (e *Engine) CompleteFunding(caller [20]byte, poolID string) error {
	if err := e.requireState(); err != nil {
		return err
	}
	cfg, err := e.config()
	if err != nil {
		return err
	}
	if !isOperator(cfg, caller) {
		return ErrUnauthorized
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if pool.Status != StatusFunding {
		return ErrInvalidPoolStatus
	}
	if e.now() <= pool.FundingEnd {
		return ErrFundingNotClosed
	}
	total, err := addChecked(pool.SeniorAmount, pool.JuniorAmount)
	if err != nil {
		return err
	}
	if total < pool.MinAmount {
		return ErrFundingMinimumNotMet
	}
	ratio, err := juniorRatioBps(pool.JuniorAmount, total)
	if err != nil {
		return err
	}
	if ratio < uint64(pool.MinJuniorRatioBps) {
		return ErrJuniorRatioBelowMinimum
	}
	senior, err := e.loadSeniorLedger(poolID)
	if err != nil {
		return err
	}
	firstLoss, err := e.loadFirstLossLedger(poolID)
	if err != nil {
		return err
	}
	senior.TotalDeposits = pool.SeniorAmount
	firstLoss.TotalDeposits = pool.JuniorAmount
	pool.Status = StatusFunded
	if err := e.state.PutSeniorLedger(senior); err != nil {
		return err
	}
	if err := e.state.PutFirstLossLedger(firstLoss); err != nil {
		return err
	}
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emitter.Emit(events.FundingCompleted{
		PoolID:       poolID,
		SeniorAmount: pool.SeniorAmount,
		JuniorAmount: pool.JuniorAmount,
		Timestamp:    e.now(),
	})
	return nil
}

// DistributeSeniorToken mints the pool's yield token against one pending
// senior subscription and confirms it. Runs per investor after Funded.
func (e *Engine) DistributeSeniorToken(caller [20]byte, poolID string, investor [20]byte) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if err := e.requireTokens(); err != nil {
		return err
	}
	cfg, err := e.config()
	if err != nil {
		return err
	}
	if !isOperator(cfg, caller) {
		return ErrUnauthorized
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if pool.Status != StatusFunded {
		return ErrInvalidPoolStatus
	}
	sub, ok, err := e.state.GetSubscription(poolID, investor, TrancheSenior)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSubscriptionNotFound
	}
	if sub.Status != SubscriptionPending {
		return ErrSubscriptionNotPending
	}
	if err := e.tokens.Mint(pool.YieldToken, investor, sub.Amount); err != nil {
		return err
	}
	sub.Status = SubscriptionConfirmed
	return e.state.PutSubscription(sub)
}

// DistributeJuniorPosition converts one pending junior subscription into a
// junior position whose principal equals the subscribed amount, and confirms
// the subscription. Position ids are caller-assigned and unique per pool.
func (e *Engine) DistributeJuniorPosition(caller [20]byte, poolID string, investor [20]byte, positionID uint64) error {
	if err := e.requireState(); err != nil {
		return err
	}
	cfg, err := e.config()
	if err != nil {
		return err
	}
	if !isOperator(cfg, caller) {
		return ErrUnauthorized
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if pool.Status != StatusFunded {
		return ErrInvalidPoolStatus
	}
	sub, ok, err := e.state.GetSubscription(poolID, investor, TrancheJunior)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSubscriptionNotFound
	}
	if sub.Status != SubscriptionPending {
		return ErrSubscriptionNotPending
	}
	if _, ok, err := e.state.GetPosition(poolID, positionID); err != nil {
		return err
	} else if ok {
		return ErrPositionExists
	}
	position := &JuniorPosition{
		ID:        positionID,
		PoolID:    poolID,
		Owner:     investor,
		Principal: sub.Amount,
		CreatedAt: e.now(),
	}
	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	sub.Status = SubscriptionConfirmed
	return e.state.PutSubscription(sub)
}

// FinalizeDistribution closes the distribution step with an audit event once
// every subscription has been converted.
func (e *Engine) FinalizeDistribution(caller [20]byte, poolID string, seniorCount, juniorCount uint64) error {
	if err := e.requireState(); err != nil {
		return err
	}
	cfg, err := e.config()
	if err != nil {
		return err
	}
	if !isOperator(cfg, caller) {
		return ErrUnauthorized
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if pool.Status != StatusFunded {
		return ErrInvalidPoolStatus
	}
	e.emitter.Emit(events.TokensDistributed{
		PoolID:      poolID,
		SeniorCount: seniorCount,
		JuniorCount: juniorCount,
		Timestamp:   e.now(),
	})
	return nil
}

// fundingFailed is the shared funding-failure predicate for refunds and
// cancellation: the window closed without the raise conditions holding.
func (e *Engine) fundingFailed(pool *Pool) (bool, error) {
	if e.now() <= pool.FundingEnd {
		return false, nil
	}
	total, err := addChecked(pool.SeniorAmount, pool.JuniorAmount)
	if err != nil {
		return false, err
	}
	if total < pool.MinAmount {
		return true, nil
	}
	if pool.JuniorAmount == 0 {
		return true, nil
	}
	ratio, err := juniorRatioBps(pool.JuniorAmount, total)
	if err != nil {
		return false, err
	}
	return ratio < uint64(pool.MinJuniorRatioBps), nil
}

// ProcessRefund returns one pending subscription in full after a funding
// failure. Callable by the investor or an operator.
func (e *Engine) ProcessRefund(caller [20]byte, poolID string, investor [20]byte, tranche Tranche) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if err := e.requireTokens(); err != nil {
		return err
	}
	cfg, err := e.config()
	if err != nil {
		return err
	}
	if caller != investor && !isOperator(cfg, caller) {
		return ErrUnauthorized
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	if pool.Status != StatusFunding {
		return ErrInvalidPoolStatus
	}
	failed, err := e.fundingFailed(pool)
	if err != nil {
		return err
	}
	if !failed {
		return ErrFundingTargetNotMet
	}
	sub, ok, err := e.state.GetSubscription(poolID, investor, tranche)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSubscriptionNotFound
	}
	if sub.Status == SubscriptionRefunded {
		return ErrRefundProcessed
	}
	if sub.Status != SubscriptionPending {
		return ErrSubscriptionNotPending
	}
	// A subscription withdrawn down to zero has nothing to refund and must
	// not flip to Refunded.
	if sub.Amount == 0 {
		return ErrInvalidAmount
	}
	var newSenior, newJunior uint64
	switch tranche {
	case TrancheSenior:
		if newSenior, err = subChecked(pool.SeniorAmount, sub.Amount); err != nil {
			return err
		}
		newJunior = pool.JuniorAmount
	case TrancheJunior:
		if newJunior, err = subChecked(pool.JuniorAmount, sub.Amount); err != nil {
			return err
		}
		newSenior = pool.SeniorAmount
	default:
		return ErrInvalidTranche
	}
	if err := e.tokens.Transfer(pool.Asset, pool.Vault, investor, sub.Amount); err != nil {
		return err
	}
	refunded := sub.Amount
	sub.Status = SubscriptionRefunded
	pool.SeniorAmount = newSenior
	pool.JuniorAmount = newJunior
	if err := e.state.PutSubscription(sub); err != nil {
		return err
	}
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emitter.Emit(events.RefundProcessed{
		PoolID:    poolID,
		Investor:  investor,
		Tranche:   tranche.String(),
		Amount:    refunded,
		Timestamp: e.now(),
	})
	return nil
}

// CancelPool moves a failed pool into the terminal Cancelled state. Once
// sub-ledgers exist the vault must have been fully drained by refunds first.
func (e *Engine) CancelPool(caller [20]byte, poolID string) error {
	if err := e.requireState(); err != nil {
		return err
	}
	cfg, err := e.config()
	if err != nil {
		return err
	}
	if !isOperator(cfg, caller) {
		return ErrUnauthorized
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return err
	}
	switch pool.Status {
	case StatusCreated, StatusApproved, StatusFunding:
	default:
		return ErrInvalidPoolStatus
	}
	failed, err := e.fundingFailed(pool)
	if err != nil {
		return err
	}
	if !failed {
		return ErrFundingTargetNotMet
	}
	if pool.LedgersInitialized {
		if err := e.requireTokens(); err != nil {
			return err
		}
		balance, err := e.tokens.BalanceOf(pool.Asset, pool.Vault)
		if err != nil {
			return err
		}
		if balance != 0 {
			return ErrInsufficientVault
		}
	}
	pool.Status = StatusCancelled
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emitter.Emit(events.PoolCancelled{PoolID: poolID, Timestamp: e.now()})
	return nil
}

func (e *Engine) loadPool(poolID string) (*Pool, error) {
	pool, ok, err := e.state.GetPool(poolID)
	if err != nil {
		return nil, err
	}
	if !ok || pool == nil {
		return nil, ErrPoolNotFound
	}
	return pool, nil
}

func (e *Engine) loadSeniorLedger(poolID string) (*SeniorLedger, error) {
	ledger, ok, err := e.state.GetSeniorLedger(poolID)
	if err != nil {
		return nil, err
	}
	if !ok || ledger == nil {
		return nil, ErrLedgersNotInitialized
	}
	return ledger, nil
}

func (e *Engine) loadFirstLossLedger(poolID string) (*FirstLossLedger, error) {
	ledger, ok, err := e.state.GetFirstLossLedger(poolID)
	if err != nil {
		return nil, err
	}
	if !ok || ledger == nil {
		return nil, ErrLedgersNotInitialized
	}
	return ledger, nil
}

func (e *Engine) loadJuniorInterestLedger(poolID string) (*JuniorInterestLedger, error) {
	ledger, ok, err := e.state.GetJuniorInterestLedger(poolID)
	if err != nil {
		return nil, err
	}
	if !ok || ledger == nil {
		return nil, ErrLedgersNotInitialized
	}
	return ledger, nil
}
