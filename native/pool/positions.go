package pool

import "tranchepool/core/events"

// ClaimInterest pays out the claimable residual interest for one junior
// position: the position's pro-rata share of all interest credited so far,
// minus what it already claimed.
func (e *Engine) ClaimInterest(caller [20]byte, poolID string, positionID uint64) (uint64, error) {
	if err := e.requireState(); err != nil {
		return 0, err
	}
	if err := e.requireTokens(); err != nil {
		return 0, err
	}
	if _, err := e.guardedConfig(); err != nil {
		return 0, err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return 0, err
	}
	switch pool.Status {
	case StatusRepaying, StatusCompleted:
	default:
		return 0, ErrInvalidPoolStatus
	}
	position, ok, err := e.state.GetPosition(poolID, positionID)
	if err != nil {
		return 0, err
	}
	if !ok || position == nil {
		return 0, ErrPositionNotFound
	}
	if position.Owner != caller {
		return 0, ErrUnauthorized
	}
	firstLoss, err := e.loadFirstLossLedger(poolID)
	if err != nil {
		return 0, err
	}
	juniorLedger, err := e.loadJuniorInterestLedger(poolID)
	if err != nil {
		return 0, err
	}
	if firstLoss.TotalDeposits == 0 {
		return 0, ErrNoInterestToClaim
	}
	entitlement, err := mulDiv(juniorLedger.Total, position.Principal, firstLoss.TotalDeposits)
	if err != nil {
		return 0, err
	}
	if entitlement <= position.ClaimedInterest {
		return 0, ErrNoInterestToClaim
	}
	claimable := entitlement - position.ClaimedInterest
	undistributed, err := subChecked(juniorLedger.Total, juniorLedger.Distributed)
	if err != nil {
		return 0, err
	}
	if undistributed < claimable {
		return 0, ErrInsufficientInterest
	}
	if err := e.tokens.Transfer(pool.Asset, pool.Vault, position.Owner, claimable); err != nil {
		return 0, err
	}
	if juniorLedger.Distributed, err = addChecked(juniorLedger.Distributed, claimable); err != nil {
		return 0, err
	}
	if position.ClaimedInterest, err = addChecked(position.ClaimedInterest, claimable); err != nil {
		return 0, err
	}
	if err := e.state.PutJuniorInterestLedger(juniorLedger); err != nil {
		return 0, err
	}
	if err := e.state.PutPosition(position); err != nil {
		return 0, err
	}
	e.emitter.Emit(events.InterestClaimed{
		PoolID:     poolID,
		PositionID: positionID,
		Owner:      position.Owner,
		Amount:     claimable,
		Timestamp:  e.now(),
	})
	return claimable, nil
}

// WithdrawPrincipal redeems a junior position once the pool has completed.
// The payout is pro-rata against the remaining vault balance over the
// remaining unredeemed shares, so shortfalls absorbed by the buffer during
// repayment are borne proportionally. The position's principal share, not the
// transferred amount, is marked consumed on the first-loss ledger.
func (e *Engine) WithdrawPrincipal(caller [20]byte, poolID string, positionID uint64) (uint64, error) {
	if err := e.requireState(); err != nil {
		return 0, err
	}
	if err := e.requireTokens(); err != nil {
		return 0, err
	}
	if _, err := e.guardedConfig(); err != nil {
		return 0, err
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return 0, err
	}
	if pool.Status != StatusCompleted {
		return 0, ErrPoolNotCompleted
	}
	position, ok, err := e.state.GetPosition(poolID, positionID)
	if err != nil {
		return 0, err
	}
	if !ok || position == nil {
		return 0, ErrPositionNotFound
	}
	if position.Owner != caller {
		return 0, ErrUnauthorized
	}
	if position.PrincipalWithdrawn {
		return 0, ErrPrincipalWithdrawn
	}
	if position.Principal == 0 {
		return 0, ErrNoPrincipal
	}
	firstLoss, err := e.loadFirstLossLedger(poolID)
	if err != nil {
		return 0, err
	}
	remaining, err := firstLoss.Remaining()
	if err != nil {
		return 0, err
	}
	if remaining == 0 {
		return 0, ErrNoRemainingShares
	}
	balance, err := e.tokens.BalanceOf(pool.Asset, pool.Vault)
	if err != nil {
		return 0, err
	}
	actual, err := mulDiv(balance, position.Principal, remaining)
	if err != nil {
		return 0, err
	}
	if actual > 0 {
		if err := e.tokens.Transfer(pool.Asset, pool.Vault, position.Owner, actual); err != nil {
			return 0, err
		}
	}
	position.PrincipalWithdrawn = true
	if firstLoss.Repaid, err = addChecked(firstLoss.Repaid, position.Principal); err != nil {
		return 0, err
	}
	if err := e.state.PutFirstLossLedger(firstLoss); err != nil {
		return 0, err
	}
	if err := e.state.PutPosition(position); err != nil {
		return 0, err
	}
	e.emitter.Emit(events.PrincipalWithdrawn{
		PoolID:     poolID,
		PositionID: positionID,
		Owner:      position.Owner,
		Amount:     actual,
		Timestamp:  e.now(),
	})
	return actual, nil
}
