package events

// Event type identifiers emitted by the pool engine. Downstream consumers key
// metrics and audit records off these strings, so they are part of the wire
// contract and must stay stable.
const (
	TypeConfigInitialized     = "config.initialized"
	TypeAdminUpdated          = "config.admin_updated"
	TypeFeeRateUpdated        = "config.fee_rate_updated"
	TypeTreasuryUpdated       = "config.treasury_updated"
	TypeAssetSupportUpdated   = "config.asset_support_updated"
	TypeSystemPaused          = "config.paused"
	TypeSystemUnpaused        = "config.unpaused"
	TypePoolCreated           = "pool.created"
	TypePoolApproved          = "pool.approved"
	TypePoolActivated         = "pool.activated"
	TypePoolCancelled         = "pool.cancelled"
	TypeSubscriptionRecorded  = "pool.subscription_recorded"
	TypeSubscriptionWithdrawn = "pool.subscription_withdrawn"
	TypeFundingCompleted      = "pool.funding_completed"
	TypeTokensDistributed     = "pool.tokens_distributed"
	TypeRefundProcessed       = "pool.refund_processed"
	TypeRepaymentDistributed  = "pool.repayment_distributed"
	TypeInterestClaimed       = "pool.interest_claimed"
	TypePrincipalWithdrawn    = "pool.principal_withdrawn"
	TypeEarlyExitProcessed    = "pool.early_exit_processed"
)

// AdminUpdated reports a configuration admin role change.
type AdminUpdated struct {
	Role      string
	NewAdmin  [20]byte
	Timestamp int64
}

func (AdminUpdated) EventType() string { return TypeAdminUpdated }

// FeeRateUpdated reports a global fee-rate change.
type FeeRateUpdated struct {
	Kind      string
	NewRate   uint16
	Timestamp int64
}

func (FeeRateUpdated) EventType() string { return TypeFeeRateUpdated }

// TreasuryUpdated reports a treasury address change.
type TreasuryUpdated struct {
	Treasury  [20]byte
	Timestamp int64
}

func (TreasuryUpdated) EventType() string { return TypeTreasuryUpdated }

// AssetSupportUpdated reports an asset whitelist change.
type AssetSupportUpdated struct {
	Asset     string
	Supported bool
	Timestamp int64
}

func (AssetSupportUpdated) EventType() string { return TypeAssetSupportUpdated }

// ConfigInitialized reports the one-shot system configuration bootstrap.
type ConfigInitialized struct {
	Treasury  [20]byte
	Timestamp int64
}

func (ConfigInitialized) EventType() string { return TypeConfigInitialized }

// SystemPaused and SystemUnpaused report pause flag toggles.
type SystemPaused struct{ Timestamp int64 }

func (SystemPaused) EventType() string { return TypeSystemPaused }

type SystemUnpaused struct{ Timestamp int64 }

func (SystemUnpaused) EventType() string { return TypeSystemUnpaused }

// PoolCreated reports a new pool record.
type PoolCreated struct {
	PoolID      string
	Creator     [20]byte
	TotalAmount uint64
	MinAmount   uint64
	Timestamp   int64
}

func (PoolCreated) EventType() string { return TypePoolCreated }

// PoolApproved reports an administrative approval.
type PoolApproved struct {
	PoolID    string
	Timestamp int64
}

func (PoolApproved) EventType() string { return TypePoolApproved }

// PoolActivated reports the atomic creation of a pool's sub-ledgers and vault.
type PoolActivated struct {
	PoolID     string
	Vault      [20]byte
	YieldToken string
	Timestamp  int64
}

func (PoolActivated) EventType() string { return TypePoolActivated }

// PoolCancelled reports a funding-failure cancellation.
type PoolCancelled struct {
	PoolID    string
	Timestamp int64
}

func (PoolCancelled) EventType() string { return TypePoolCancelled }

// SubscriptionRecorded reports a funding-window commitment.
type SubscriptionRecorded struct {
	PoolID    string
	Investor  [20]byte
	Tranche   string
	Amount    uint64
	Timestamp int64
}

func (SubscriptionRecorded) EventType() string { return TypeSubscriptionRecorded }

// SubscriptionWithdrawn reports a partial early withdrawal during funding.
type SubscriptionWithdrawn struct {
	PoolID    string
	Investor  [20]byte
	Tranche   string
	Amount    uint64
	Fee       uint64
	Timestamp int64
}

func (SubscriptionWithdrawn) EventType() string { return TypeSubscriptionWithdrawn }

// FundingCompleted reports the Approved -> Funded transition.
type FundingCompleted struct {
	PoolID       string
	SeniorAmount uint64
	JuniorAmount uint64
	Timestamp    int64
}

func (FundingCompleted) EventType() string { return TypeFundingCompleted }

// TokensDistributed reports the end of yield-token/position distribution.
type TokensDistributed struct {
	PoolID      string
	SeniorCount uint64
	JuniorCount uint64
	Timestamp   int64
}

func (TokensDistributed) EventType() string { return TypeTokensDistributed }

// RefundProcessed reports a funding-failure refund payout.
type RefundProcessed struct {
	PoolID    string
	Investor  [20]byte
	Tranche   string
	Amount    uint64
	Timestamp int64
}

func (RefundProcessed) EventType() string { return TypeRefundProcessed }

// RepaymentDistributed reports one waterfall allocation.
type RepaymentDistributed struct {
	PoolID         string
	Period         uint64
	Amount         uint64
	PlatformFee    uint64
	SeniorAmount   uint64
	JuniorInterest uint64
	Timestamp      int64
}

func (RepaymentDistributed) EventType() string { return TypeRepaymentDistributed }

// InterestClaimed reports a junior position interest payout.
type InterestClaimed struct {
	PoolID     string
	PositionID uint64
	Owner      [20]byte
	Amount     uint64
	Timestamp  int64
}

func (InterestClaimed) EventType() string { return TypeInterestClaimed }

// PrincipalWithdrawn reports a junior position final redemption.
type PrincipalWithdrawn struct {
	PoolID     string
	PositionID uint64
	Owner      [20]byte
	Amount     uint64
	Timestamp  int64
}

func (PrincipalWithdrawn) EventType() string { return TypePrincipalWithdrawn }

// EarlyExitProcessed reports a senior exit, early or post-completion.
type EarlyExitProcessed struct {
	PoolID    string
	Investor  [20]byte
	Amount    uint64
	Fee       uint64
	NetAmount uint64
	Timestamp int64
}

func (EarlyExitProcessed) EventType() string { return TypeEarlyExitProcessed }
