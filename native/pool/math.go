package pool

import (
	"math"

	"github.com/holiman/uint256"
)

// Basis-point denominator shared by every rate and ratio parameter.
const basisPoints = 10_000

func addChecked(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrArithmetic
	}
	return a + b, nil
}

func subChecked(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrArithmetic
	}
	return a - b, nil
}

// mulDiv computes a*b/den with a widened intermediate so the product cannot
// overflow before truncation. The quotient must still fit in 64 bits.
func mulDiv(a, b, den uint64) (uint64, error) {
	if den == 0 {
		return 0, ErrArithmetic
	}
	prod := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	quot := prod.Div(prod, uint256.NewInt(den))
	if !quot.IsUint64() {
		return 0, ErrArithmetic
	}
	return quot.Uint64(), nil
}

// bpsShare computes amount*rate/10000, the floor share a basis-point rate
// takes of an amount.
func bpsShare(amount uint64, rateBps uint16) (uint64, error) {
	return mulDiv(amount, uint64(rateBps), basisPoints)
}

// perPeriodDue is the contractual installment: principal split evenly across
// periods plus the per-period interest on the full principal. Principal and
// interest are floored independently and then summed.
func perPeriodDue(principal, periods uint64, rateBps uint16) (uint64, error) {
	if periods == 0 {
		return 0, ErrInvalidRepaymentCount
	}
	interest, err := bpsShare(principal, rateBps)
	if err != nil {
		return 0, err
	}
	return addChecked(principal/periods, interest)
}

// juniorRatioBps returns the junior share of the pool in basis points.
func juniorRatioBps(junior, total uint64) (uint64, error) {
	if total == 0 {
		return 0, ErrJuniorRatioBelowMinimum
	}
	return mulDiv(junior, basisPoints, total)
}

// currentDuePeriod maps elapsed time since funding close onto the installment
// schedule. The first installment is due immediately once funding has closed,
// even before a full period has elapsed.
func currentDuePeriod(now, fundingEnd, periodSeconds int64) uint64 {
	if now < fundingEnd || periodSeconds <= 0 {
		return 0
	}
	elapsed := uint64(now - fundingEnd)
	count := elapsed / uint64(periodSeconds)
	if count == 0 {
		return 1
	}
	return count
}
