package pool

import "tranchepool/core/events"

// ExitSenior redeems senior yield tokens before maturity or after completion.
// While the pool is Funded or Repaying the payout is face value minus the
// pool's before/after-close exit fee, with the first-loss buffer covering a
// vault shortfall; after completion it is a pure pro-rata redemption against
// the remaining vault balance over the outstanding yield-token supply.
func (e *Engine) ExitSenior(caller [20]byte, poolID string, amount uint64) (uint64, error) {
	if err := e.requireState(); err != nil {
		return 0, err
	}
	if err := e.requireTokens(); err != nil {
		return 0, err
	}
	if _, err := e.guardedConfig(); err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	pool, err := e.loadPool(poolID)
	if err != nil {
		return 0, err
	}
	switch pool.Status {
	case StatusFunded, StatusRepaying:
		return e.exitSeniorEarly(caller, pool, amount)
	case StatusCompleted:
		return e.exitSeniorCompleted(caller, pool, amount)
	default:
		return 0, ErrInvalidPoolStatus
	}
}

func (e *Engine) exitSeniorEarly(caller [20]byte, pool *Pool, amount uint64) (uint64, error) {
	senior, err := e.loadSeniorLedger(pool.ID)
	if err != nil {
		return 0, err
	}
	firstLoss, err := e.loadFirstLossLedger(pool.ID)
	if err != nil {
		return 0, err
	}
	now := e.now()
	feeRate := pool.SeniorExitBeforeBps
	if now >= pool.FundingEnd {
		feeRate = pool.SeniorExitAfterBps
	}
	fee, err := bpsShare(amount, feeRate)
	if err != nil {
		return 0, err
	}
	net, err := subChecked(amount, fee)
	if err != nil {
		return 0, err
	}
	newDeposits, err := subChecked(senior.TotalDeposits, amount)
	if err != nil {
		return 0, ErrInsufficientBalance
	}
	if err := e.tokens.Burn(pool.YieldToken, caller, amount); err != nil {
		return 0, err
	}
	if fee > 0 {
		if err := e.tokens.Transfer(pool.Asset, pool.Vault, pool.Treasury, fee); err != nil {
			return 0, err
		}
	}
	balance, err := e.tokens.BalanceOf(pool.Asset, pool.Vault)
	if err != nil {
		return 0, err
	}
	// The buffer covers a vault shortfall, but only on the ledger: the
	// payout is still capped by what the vault actually holds.
	payout := net
	if balance < net {
		shortfall := net - balance
		remaining, err := firstLoss.Remaining()
		if err != nil {
			return 0, err
		}
		draw := shortfall
		if draw > remaining {
			draw = remaining
		}
		if firstLoss.Repaid, err = addChecked(firstLoss.Repaid, draw); err != nil {
			return 0, err
		}
		if err := e.state.PutFirstLossLedger(firstLoss); err != nil {
			return 0, err
		}
		payout = balance
	}
	if payout > 0 {
		if err := e.tokens.Transfer(pool.Asset, pool.Vault, caller, payout); err != nil {
			return 0, err
		}
	}
	senior.TotalDeposits = newDeposits
	if err := e.state.PutSeniorLedger(senior); err != nil {
		return 0, err
	}
	e.emitter.Emit(events.EarlyExitProcessed{
		PoolID:    pool.ID,
		Investor:  caller,
		Amount:    amount,
		Fee:       fee,
		NetAmount: payout,
		Timestamp: now,
	})
	return payout, nil
}

func (e *Engine) exitSeniorCompleted(caller [20]byte, pool *Pool, amount uint64) (uint64, error) {
	senior, err := e.loadSeniorLedger(pool.ID)
	if err != nil {
		return 0, err
	}
	supply, err := e.tokens.TotalSupply(pool.YieldToken)
	if err != nil {
		return 0, err
	}
	if supply == 0 || amount > supply {
		return 0, ErrInsufficientBalance
	}
	balance, err := e.tokens.BalanceOf(pool.Asset, pool.Vault)
	if err != nil {
		return 0, err
	}
	actual, err := mulDiv(balance, amount, supply)
	if err != nil {
		return 0, err
	}
	if err := e.tokens.Burn(pool.YieldToken, caller, amount); err != nil {
		return 0, err
	}
	if actual > 0 {
		if err := e.tokens.Transfer(pool.Asset, pool.Vault, caller, actual); err != nil {
			return 0, err
		}
	}
	// Post-completion redemption retires deposits by the amount actually
	// paid, not the face amount burned.
	if senior.TotalDeposits, err = subChecked(senior.TotalDeposits, actual); err != nil {
		return 0, err
	}
	if err := e.state.PutSeniorLedger(senior); err != nil {
		return 0, err
	}
	e.emitter.Emit(events.EarlyExitProcessed{
		PoolID:    pool.ID,
		Investor:  caller,
		Amount:    amount,
		Fee:       0,
		NetAmount: actual,
		Timestamp: e.now(),
	})
	return actual, nil
}
