package pool

import "fmt"

// PoolStatus represents the lifecycle states of a tranche pool.
type PoolStatus uint8

const (
	StatusCreated PoolStatus = iota
	StatusApproved
	StatusFunding
	StatusFunded
	StatusRepaying
	StatusCompleted
	StatusCancelled
)

// Valid reports whether the status value is within the supported range.
func (s PoolStatus) Valid() bool {
	return s <= StatusCancelled
}

func (s PoolStatus) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusApproved:
		return "approved"
	case StatusFunding:
		return "funding"
	case StatusFunded:
		return "funded"
	case StatusRepaying:
		return "repaying"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Terminal reports whether the status admits no further transition.
func (s PoolStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Tranche tags a subscription or ledger with its risk slice.
type Tranche uint8

const (
	TrancheSenior Tranche = iota
	TrancheJunior
)

func (t Tranche) Valid() bool { return t == TrancheSenior || t == TrancheJunior }

func (t Tranche) String() string {
	switch t {
	case TrancheSenior:
		return "senior"
	case TrancheJunior:
		return "junior"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// SubscriptionStatus tracks the state of a funding commitment.
type SubscriptionStatus uint8

const (
	SubscriptionPending SubscriptionStatus = iota
	SubscriptionConfirmed
	SubscriptionRefunded
)

func (s SubscriptionStatus) Valid() bool { return s <= SubscriptionRefunded }

func (s SubscriptionStatus) String() string {
	switch s {
	case SubscriptionPending:
		return "pending"
	case SubscriptionConfirmed:
		return "confirmed"
	case SubscriptionRefunded:
		return "refunded"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// RepaymentStatus tracks the state of a period installment record.
type RepaymentStatus uint8

const (
	RepaymentPending RepaymentStatus = iota
	RepaymentCompleted
	RepaymentPartial
)

// Pool is the root record of one two-tranche credit pool. All amounts are in
// the asset's base units; all rates and ratios are basis points; all
// timestamps are unix seconds.
type Pool struct {
	ID     string
	Name   string
	Status PoolStatus
	Asset  string

	// Assigned when the sub-ledgers are initialised; zero before that.
	Vault      [20]byte
	Treasury   [20]byte
	YieldToken string

	PlatformFeeBps      uint16
	SeniorExitBeforeBps uint16
	SeniorExitAfterBps  uint16
	JuniorExitBeforeBps uint16
	MinJuniorRatioBps   uint16

	RepaymentRateBps   uint16
	SeniorFixedRateBps uint16
	RepaymentPeriod    int64 // seconds per installment
	RepaymentCount     uint64

	TotalAmount  uint64
	MinAmount    uint64
	FundingStart int64
	FundingEnd   int64

	SeniorAmount uint64
	JuniorAmount uint64
	RepaidAmount uint64

	Creator            [20]byte
	CreatedAt          int64
	LedgersInitialized bool
}

// Clone returns a deep copy so callers can mutate without affecting the stored
// instance.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// Subscription accumulates one investor's commitment to one tranche of one
// pool. Repeated subscriptions add into the same record.
type Subscription struct {
	PoolID       string
	Investor     [20]byte
	Tranche      Tranche
	Amount       uint64
	Status       SubscriptionStatus
	SubscribedAt int64
}

func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// SeniorLedger tracks the senior tranche aggregate: deposits fixed at funding
// completion and the cumulative entitlement satisfied by the waterfall.
type SeniorLedger struct {
	PoolID        string
	YieldToken    string
	TotalDeposits uint64
	Repaid        uint64
}

func (l *SeniorLedger) Clone() *SeniorLedger {
	if l == nil {
		return nil
	}
	clone := *l
	return &clone
}

// FirstLossLedger tracks the junior capital held as the first-loss buffer.
// Repaid accumulates both buffer draws during the waterfall and principal
// shares consumed by final redemption; Remaining derives the live buffer.
type FirstLossLedger struct {
	PoolID        string
	TotalDeposits uint64
	Repaid        uint64
}

func (l *FirstLossLedger) Clone() *FirstLossLedger {
	if l == nil {
		return nil
	}
	clone := *l
	return &clone
}

// Remaining returns the unconsumed buffer balance.
func (l *FirstLossLedger) Remaining() (uint64, error) {
	return subChecked(l.TotalDeposits, l.Repaid)
}

// JuniorInterestLedger tracks residual interest credited by the waterfall and
// the portion already claimed by positions.
type JuniorInterestLedger struct {
	PoolID      string
	Total       uint64
	Distributed uint64
}

func (l *JuniorInterestLedger) Clone() *JuniorInterestLedger {
	if l == nil {
		return nil
	}
	clone := *l
	return &clone
}

// RepaymentRecord pins one accepted installment to its period. Period indexes
// are unique per pool; a duplicate repayment fails rather than overwrites.
type RepaymentRecord struct {
	PoolID   string
	Period   uint64
	Amount   uint64
	RepaidAt int64
	Status   RepaymentStatus
}

func (r *RepaymentRecord) Clone() *RepaymentRecord {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// JuniorPosition is the per-investor junior entitlement unit: a fixed
// principal share, a monotone claimed-interest counter and a one-shot
// principal-withdrawn flag.
type JuniorPosition struct {
	ID                 uint64
	PoolID             string
	Owner              [20]byte
	Principal          uint64
	ClaimedInterest    uint64
	PrincipalWithdrawn bool
	CreatedAt          int64
}

func (p *JuniorPosition) Clone() *JuniorPosition {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
