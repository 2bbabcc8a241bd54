package pool

import "tranchepool/core/events"

// Repay accepts one periodic installment and allocates it through the
// waterfall: platform fee, senior principal plus fixed interest, first-loss
// top-up when the senior entitlement is unmet, residual junior interest.
// Period indexes are unique per pool; replaying a recorded period fails
// without touching any ledger.
func (e *Engine) Repay(caller [20]byte, poolID string, amount, period uint64) error {
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
	switch pool.Status {
	case StatusFunded, StatusRepaying:
	default:
		return ErrInvalidPoolStatus
	}
	if !cfg.AssetSupported(pool.Asset) {
		return ErrAssetNotSupported
	}
	if period == 0 || period > pool.RepaymentCount {
		return ErrInvalidPeriod
	}
	now := e.now()
	due := currentDuePeriod(now, pool.FundingEnd, pool.RepaymentPeriod)
	if period > due {
		return ErrRepaymentNotDue
	}
	if _, ok, err := e.state.GetRepayment(poolID, period); err != nil {
		return err
	} else if ok {
		return ErrDuplicatePeriod
	}

	perDue, err := perPeriodDue(pool.TotalAmount, pool.RepaymentCount, pool.RepaymentRateBps)
	if err != nil {
		return err
	}
	if amount < perDue {
		return ErrInsufficientPayment
	}

	senior, err := e.loadSeniorLedger(poolID)
	if err != nil {
		return err
	}
	firstLoss, err := e.loadFirstLossLedger(poolID)
	if err != nil {
		return err
	}
	juniorLedger, err := e.loadJuniorInterestLedger(poolID)
	if err != nil {
		return err
	}

	if err := e.tokens.Transfer(pool.Asset, caller, pool.Vault, amount); err != nil {
		return err
	}
	platformFee, err := bpsShare(perDue, pool.PlatformFeeBps)
	if err != nil {
		return err
	}
	if platformFee > 0 {
		if err := e.tokens.Transfer(pool.Asset, pool.Vault, pool.Treasury, platformFee); err != nil {
			return err
		}
	}

	seniorDue, err := perPeriodDue(pool.SeniorAmount, pool.RepaymentCount, pool.SeniorFixedRateBps)
	if err != nil {
		return err
	}
	available, err := e.tokens.BalanceOf(pool.Asset, pool.Vault)
	if err != nil {
		return err
	}

	// Senior entitlement stays in the vault; only the ledger is credited.
	// A shortfall draws down the first-loss buffer before senior absorbs a
	// partial period.
	actualSenior := seniorDue
	if available < seniorDue {
		shortfall := seniorDue - available
		remaining, err := firstLoss.Remaining()
		if err != nil {
			return err
		}
		draw := shortfall
		if draw > remaining {
			draw = remaining
		}
		if actualSenior, err = addChecked(available, draw); err != nil {
			return err
		}
		if firstLoss.Repaid, err = addChecked(firstLoss.Repaid, draw); err != nil {
			return err
		}
	}
	if senior.Repaid, err = addChecked(senior.Repaid, actualSenior); err != nil {
		return err
	}

	var juniorInterest uint64
	if consumed, err := addChecked(platformFee, actualSenior); err != nil {
		return err
	} else if consumed < amount {
		juniorInterest = amount - consumed
		if juniorLedger.Total, err = addChecked(juniorLedger.Total, juniorInterest); err != nil {
			return err
		}
	}

	if pool.RepaidAmount, err = addChecked(pool.RepaidAmount, amount); err != nil {
		return err
	}
	if pool.Status == StatusFunded {
		pool.Status = StatusRepaying
	}
	if period == pool.RepaymentCount {
		pool.Status = StatusCompleted
	}

	record := &RepaymentRecord{
		PoolID:   poolID,
		Period:   period,
		Amount:   amount,
		RepaidAt: now,
		Status:   RepaymentCompleted,
	}
	if err := e.state.PutRepayment(record); err != nil {
		return err
	}
	if err := e.state.PutSeniorLedger(senior); err != nil {
		return err
	}
	if err := e.state.PutFirstLossLedger(firstLoss); err != nil {
		return err
	}
	if err := e.state.PutJuniorInterestLedger(juniorLedger); err != nil {
		return err
	}
	if err := e.state.PutPool(pool); err != nil {
		return err
	}
	e.emitter.Emit(events.RepaymentDistributed{
		PoolID:         poolID,
		Period:         period,
		Amount:         amount,
		PlatformFee:    platformFee,
		SeniorAmount:   actualSenior,
		JuniorInterest: juniorInterest,
		Timestamp:      now,
	})
	return nil
}
