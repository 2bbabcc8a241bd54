package pool

import "errors"

// Sentinel errors returned by the engine. Every operation rejects before any
// state mutation, so observing one of these means no ledger changed. Parameter
// errors are permanent; state and timing errors may clear on retry.
var (
	ErrNilState       = errors.New("pool engine: state not configured")
	ErrNilTokens      = errors.New("pool engine: token ledger not configured")
	ErrInvalidAmount  = errors.New("pool engine: amount must be positive")
	ErrInvalidTranche = errors.New("pool engine: invalid tranche")

	ErrConfigNotInitialized = errors.New("pool engine: system config not initialized")
	ErrConfigInitialized    = errors.New("pool engine: system config already initialized")
	ErrUnauthorized         = errors.New("pool engine: caller not authorized")
	ErrInvalidAdminRole     = errors.New("pool engine: invalid admin role")
	ErrInvalidFeeKind       = errors.New("pool engine: invalid fee kind")
	ErrAssetNotSupported    = errors.New("pool engine: asset not in whitelist")

	ErrInvalidName            = errors.New("pool engine: pool name empty or too long")
	ErrInvalidPlatformFee     = errors.New("pool engine: platform fee exceeds cap")
	ErrInvalidExitFee         = errors.New("pool engine: early exit fee exceeds cap")
	ErrInvalidMinJuniorRatio  = errors.New("pool engine: min junior ratio out of range")
	ErrInvalidRepaymentRate   = errors.New("pool engine: repayment rate out of range")
	ErrInvalidSeniorRate      = errors.New("pool engine: senior fixed rate out of range")
	ErrInvalidRepaymentPeriod = errors.New("pool engine: repayment period out of range")
	ErrInvalidRepaymentCount  = errors.New("pool engine: repayment count out of range")
	ErrInvalidFundingParams   = errors.New("pool engine: invalid funding amounts")
	ErrInvalidTimeWindow      = errors.New("pool engine: invalid funding window")

	ErrPoolExists              = errors.New("pool engine: pool already exists")
	ErrPoolNotFound            = errors.New("pool engine: pool not found")
	ErrInvalidPoolStatus       = errors.New("pool engine: operation not allowed in pool status")
	ErrPoolAlreadyApproved     = errors.New("pool engine: pool already approved")
	ErrPoolNotApproved         = errors.New("pool engine: pool not approved")
	ErrLedgersInitialized      = errors.New("pool engine: sub-ledgers already initialized")
	ErrLedgersNotInitialized   = errors.New("pool engine: sub-ledgers not initialized")
	ErrFundingNotStarted       = errors.New("pool engine: funding window not open yet")
	ErrFundingEnded            = errors.New("pool engine: funding window closed")
	ErrFundingNotClosed        = errors.New("pool engine: funding window still open")
	ErrFundingMinimumNotMet    = errors.New("pool engine: funding minimum not met")
	ErrFundingTargetNotMet     = errors.New("pool engine: funding-failure conditions not met")
	ErrJuniorRatioBelowMinimum = errors.New("pool engine: junior ratio below minimum")

	ErrSubscriptionNotFound   = errors.New("pool engine: subscription not found")
	ErrSubscriptionNotPending = errors.New("pool engine: subscription not pending")
	ErrInsufficientCommitment = errors.New("pool engine: withdrawal exceeds subscribed amount")
	ErrRefundProcessed        = errors.New("pool engine: refund already processed")

	ErrInvalidPeriod        = errors.New("pool engine: repayment period index out of range")
	ErrRepaymentNotDue      = errors.New("pool engine: repayment period not due yet")
	ErrDuplicatePeriod      = errors.New("pool engine: repayment period already recorded")
	ErrInsufficientPayment  = errors.New("pool engine: repayment below per-period due")
	ErrInsufficientVault    = errors.New("pool engine: insufficient vault balance")
	ErrInsufficientInterest = errors.New("pool engine: insufficient undistributed interest")

	ErrPositionNotFound    = errors.New("pool engine: position not found")
	ErrPositionExists      = errors.New("pool engine: position already exists")
	ErrNoInterestToClaim   = errors.New("pool engine: no interest to claim")
	ErrNoPrincipal         = errors.New("pool engine: no principal share")
	ErrPrincipalWithdrawn  = errors.New("pool engine: principal already withdrawn")
	ErrPoolNotCompleted    = errors.New("pool engine: pool not completed")
	ErrNoRemainingShares   = errors.New("pool engine: no remaining junior shares")
	ErrInsufficientBalance = errors.New("pool engine: insufficient token balance")

	ErrArithmetic = errors.New("pool engine: arithmetic overflow")
)
