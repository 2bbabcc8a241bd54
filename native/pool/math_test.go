package pool

import (
	"errors"
	"math"
	"testing"
)

func TestCheckedArithmetic(t *testing.T) {
	if _, err := addChecked(math.MaxUint64, 1); !errors.Is(err, ErrArithmetic) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if got, err := addChecked(math.MaxUint64-1, 1); err != nil || got != math.MaxUint64 {
		t.Fatalf("expected max, got %d err %v", got, err)
	}
	if _, err := subChecked(1, 2); !errors.Is(err, ErrArithmetic) {
		t.Fatalf("expected underflow, got %v", err)
	}
	if got, err := subChecked(2, 2); err != nil || got != 0 {
		t.Fatalf("expected 0, got %d err %v", got, err)
	}
}

func TestMulDivWidensIntermediate(t *testing.T) {
	// The raw product overflows 64 bits; the quotient does not.
	got, err := mulDiv(math.MaxUint64, 5_000, 10_000)
	if err != nil {
		t.Fatalf("mulDiv: %v", err)
	}
	if want := math.MaxUint64 / 2; got != uint64(want) {
		t.Fatalf("expected %d, got %d", want, got)
	}
	if _, err := mulDiv(math.MaxUint64, 2, 1); !errors.Is(err, ErrArithmetic) {
		t.Fatalf("expected quotient overflow, got %v", err)
	}
	if _, err := mulDiv(1, 1, 0); !errors.Is(err, ErrArithmetic) {
		t.Fatalf("expected division by zero error, got %v", err)
	}
}

func TestPerPeriodDue(t *testing.T) {
	got, err := perPeriodDue(100_000, 10, 500)
	if err != nil {
		t.Fatalf("perPeriodDue: %v", err)
	}
	if got != 15_000 {
		t.Fatalf("expected 15000, got %d", got)
	}
	// Principal and interest floor independently: 1001/10 = 100,
	// 1001*500/10000 = 50.
	got, err = perPeriodDue(1_001, 10, 500)
	if err != nil {
		t.Fatalf("perPeriodDue: %v", err)
	}
	if got != 150 {
		t.Fatalf("expected 150, got %d", got)
	}
	if _, err := perPeriodDue(1_000, 0, 500); !errors.Is(err, ErrInvalidRepaymentCount) {
		t.Fatalf("expected ErrInvalidRepaymentCount, got %v", err)
	}
}

func TestJuniorRatioBps(t *testing.T) {
	got, err := juniorRatioBps(1_000, 9_000)
	if err != nil {
		t.Fatalf("juniorRatioBps: %v", err)
	}
	if got != 1_111 {
		t.Fatalf("expected 1111, got %d", got)
	}
	got, err = juniorRatioBps(2_500, 10_500)
	if err != nil {
		t.Fatalf("juniorRatioBps: %v", err)
	}
	if got != 2_380 {
		t.Fatalf("expected 2380, got %d", got)
	}
	if _, err := juniorRatioBps(1, 0); !errors.Is(err, ErrJuniorRatioBelowMinimum) {
		t.Fatalf("expected error on zero total, got %v", err)
	}
}

func TestCurrentDuePeriod(t *testing.T) {
	const end = int64(1_000_000)
	const period = int64(100)
	if got := currentDuePeriod(end-1, end, period); got != 0 {
		t.Fatalf("expected 0 before close, got %d", got)
	}
	// The first installment is due the moment funding closes.
	if got := currentDuePeriod(end, end, period); got != 1 {
		t.Fatalf("expected 1 at close, got %d", got)
	}
	if got := currentDuePeriod(end+99, end, period); got != 1 {
		t.Fatalf("expected 1 within first period, got %d", got)
	}
	if got := currentDuePeriod(end+100, end, period); got != 1 {
		t.Fatalf("expected 1 after one full period, got %d", got)
	}
	if got := currentDuePeriod(end+350, end, period); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
	if got := currentDuePeriod(end+1, end, 0); got != 0 {
		t.Fatalf("expected 0 with zero period length, got %d", got)
	}
}
