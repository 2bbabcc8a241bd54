package pool

import "fmt"

// Parameter caps shared by the global configuration and per-pool terms.
const (
	MaxPlatformFeeBps  = 5_000
	MaxEarlyExitFeeBps = 2_000
	MinJuniorRatioBps  = 500
	MaxJuniorRatioBps  = 5_000
	MaxAnnualRateBps   = 10_000

	MinFundingWindow = 86_400          // one day, seconds
	MaxFundingWindow = 365 * 86_400    // one year
	MinRepaymentSecs = int64(86_400)   // one day per installment
	MaxRepaymentSecs = int64(31_536_000)
	MaxRepaymentCnt  = uint64(120)

	MaxPoolNameLen = 64
)

// SystemConfig is the global configuration singleton: admin roles, treasury,
// default fee schedule, pause flag and the asset whitelist. It is passed to
// the engine explicitly through the state backend; nothing reads it as
// ambient global state.
type SystemConfig struct {
	SuperAdmin     [20]byte
	SystemAdmin    [20]byte
	TreasuryAdmin  [20]byte
	OperationAdmin [20]byte
	Treasury       [20]byte

	PlatformFeeBps       uint16
	SeniorExitBeforeBps  uint16
	SeniorExitAfterBps   uint16
	JuniorExitBeforeBps  uint16
	DefaultMinJuniorBps  uint16

	Paused      bool
	Assets      map[string]bool
	Initialized bool
}

// Clone returns a deep copy of the configuration.
func (c *SystemConfig) Clone() *SystemConfig {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Assets = make(map[string]bool, len(c.Assets))
	for asset, ok := range c.Assets {
		clone.Assets[asset] = ok
	}
	return &clone
}

// IsPaused implements common.PauseView; the whole engine pauses as one module.
func (c *SystemConfig) IsPaused(string) bool {
	return c != nil && c.Paused
}

// AssetSupported reports whether the asset is whitelisted.
func (c *SystemConfig) AssetSupported(asset string) bool {
	return c != nil && c.Assets[asset]
}

// Validate checks the fee schedule and ratio defaults against the caps.
func (c *SystemConfig) Validate() error {
	if c.PlatformFeeBps > MaxPlatformFeeBps {
		return ErrInvalidPlatformFee
	}
	if c.SeniorExitBeforeBps > MaxEarlyExitFeeBps ||
		c.SeniorExitAfterBps > MaxEarlyExitFeeBps ||
		c.JuniorExitBeforeBps > MaxEarlyExitFeeBps {
		return ErrInvalidExitFee
	}
	if c.DefaultMinJuniorBps < MinJuniorRatioBps || c.DefaultMinJuniorBps > MaxJuniorRatioBps {
		return ErrInvalidMinJuniorRatio
	}
	return nil
}

// AdminRole selects which configuration role an update-admin call targets.
type AdminRole uint8

const (
	RoleSuperAdmin AdminRole = iota
	RoleSystemAdmin
	RoleTreasuryAdmin
	RoleOperationAdmin
)

func (r AdminRole) String() string {
	switch r {
	case RoleSuperAdmin:
		return "super_admin"
	case RoleSystemAdmin:
		return "system_admin"
	case RoleTreasuryAdmin:
		return "treasury_admin"
	case RoleOperationAdmin:
		return "operation_admin"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(r))
	}
}

// setAdmin applies the role update, matching the role tag exhaustively.
func (c *SystemConfig) setAdmin(role AdminRole, addr [20]byte) error {
	switch role {
	case RoleSuperAdmin:
		c.SuperAdmin = addr
	case RoleSystemAdmin:
		c.SystemAdmin = addr
	case RoleTreasuryAdmin:
		c.TreasuryAdmin = addr
	case RoleOperationAdmin:
		c.OperationAdmin = addr
	default:
		return ErrInvalidAdminRole
	}
	return nil
}

// FeeKind selects which global fee rate an update-fee-rate call targets.
type FeeKind uint8

const (
	FeePlatform FeeKind = iota
	FeeSeniorExitBefore
	FeeSeniorExitAfter
	FeeJuniorExitBefore
)

func (k FeeKind) String() string {
	switch k {
	case FeePlatform:
		return "platform"
	case FeeSeniorExitBefore:
		return "senior_exit_before"
	case FeeSeniorExitAfter:
		return "senior_exit_after"
	case FeeJuniorExitBefore:
		return "junior_exit_before"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// setFeeRate applies the fee update, re-validating the per-kind cap.
func (c *SystemConfig) setFeeRate(kind FeeKind, rateBps uint16) error {
	switch kind {
	case FeePlatform:
		if rateBps > MaxPlatformFeeBps {
			return ErrInvalidPlatformFee
		}
		c.PlatformFeeBps = rateBps
	case FeeSeniorExitBefore:
		if rateBps > MaxEarlyExitFeeBps {
			return ErrInvalidExitFee
		}
		c.SeniorExitBeforeBps = rateBps
	case FeeSeniorExitAfter:
		if rateBps > MaxEarlyExitFeeBps {
			return ErrInvalidExitFee
		}
		c.SeniorExitAfterBps = rateBps
	case FeeJuniorExitBefore:
		if rateBps > MaxEarlyExitFeeBps {
			return ErrInvalidExitFee
		}
		c.JuniorExitBeforeBps = rateBps
	default:
		return ErrInvalidFeeKind
	}
	return nil
}
