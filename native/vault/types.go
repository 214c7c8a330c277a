package vault

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// MaxNameLength bounds the vault label in bytes.
	MaxNameLength = 32
	// VolumeWindowSeconds is the rolling period of TotalVolume24h.
	VolumeWindowSeconds int64 = 86_400

	MaxBurnFeeBps    uint64 = 4_500
	MaxPartnerFeeBps uint64 = 500

	DefaultOracleUpdateInterval  int64  = 1_800
	DefaultMaxRebalanceInterval  int64  = 86_400
	DefaultArbitrageThresholdBps uint64 = 200
)

// Vault is the accounting record of one underlying/wrapped pair.
type Vault struct {
	Address         common.Address
	Creator         common.Address
	UnderlyingAsset common.Address
	WrappedAsset    common.Address
	Name            string

	TotalWrapped       uint64
	TotalBurned        uint64
	TotalVolume24h     uint64
	VolumeWindowStart  int64
	TotalFeesCollected uint64

	BackingRatio uint64
	Oracle       PriceWindow

	LastOracleUpdate        int64
	LastRebalance           int64
	RebalanceCount          uint64
	ArbitrageOpportunityBps uint64
	PriceDeviation          uint64

	Guard ReentrancyGuard

	Paused         bool
	PauseTimestamp int64

	RiftsTokensDistributed uint64
	RiftsTokensBurned      uint64
	PendingRewards         uint64
	// DeferredBuyback is the buyback share held in the vault while the swap
	// executor's quota was exhausted.
	DeferredBuyback uint64

	FeesBurned     uint64
	FeesToPartner  uint64
	FeesToTreasury uint64

	CreatedAt    int64
	LastActivity int64
}

// Clone returns a copy safe to hand to callers.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}

// DeriveAddress returns the deterministic vault account for an asset pair.
func DeriveAddress(underlying, wrapped common.Address) common.Address {
	digest := crypto.Keccak256([]byte("riftvault/vault"), underlying.Bytes(), wrapped.Bytes())
	return common.BytesToAddress(digest[12:])
}

// Policy is the governed parameter set of a vault. The engine fetches it from
// governance on every operation and never stores it on the record.
type Policy struct {
	BurnFeeBps            uint64
	PartnerFeeBps         uint64
	PartnerWallet         *common.Address
	TreasuryWallet        common.Address
	OracleUpdateInterval  int64
	MaxRebalanceInterval  int64
	ArbitrageThresholdBps uint64
}

// DefaultPolicy returns the parameters a fresh vault starts with.
func DefaultPolicy(treasury common.Address) Policy {
	return Policy{
		TreasuryWallet:        treasury,
		OracleUpdateInterval:  DefaultOracleUpdateInterval,
		MaxRebalanceInterval:  DefaultMaxRebalanceInterval,
		ArbitrageThresholdBps: DefaultArbitrageThresholdBps,
	}
}

// HasPartner reports whether a partner wallet is configured.
func (p Policy) HasPartner() bool {
	return p.PartnerWallet != nil && *p.PartnerWallet != (common.Address{})
}

// Validate enforces the governed bounds.
func (p Policy) Validate() error {
	if p.BurnFeeBps > MaxBurnFeeBps {
		return fail("policy", CodeInvalidPolicy, "burn fee %d bps exceeds %d", p.BurnFeeBps, MaxBurnFeeBps)
	}
	if p.PartnerFeeBps > MaxPartnerFeeBps {
		return fail("policy", CodeInvalidPolicy, "partner fee %d bps exceeds %d", p.PartnerFeeBps, MaxPartnerFeeBps)
	}
	if p.OracleUpdateInterval <= 0 {
		return fail("policy", CodeInvalidPolicy, "oracle update interval must be positive")
	}
	if p.MaxRebalanceInterval <= 0 {
		return fail("policy", CodeInvalidPolicy, "max rebalance interval must be positive")
	}
	if p.TreasuryWallet == (common.Address{}) {
		return fail("policy", CodeInvalidPolicy, "treasury wallet not configured")
	}
	return nil
}

func validateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fail("engine", CodeInvalidName, "name required")
	}
	if len(trimmed) > MaxNameLength {
		return "", fail("engine", CodeInvalidName, "name exceeds %d bytes", MaxNameLength)
	}
	return trimmed, nil
}

// WrapRequest deposits Amount of underlying into Vault on behalf of User.
type WrapRequest struct {
	User          common.Address
	Vault         common.Address
	Amount        uint64
	MinBuybackOut uint64
}

// WrapResult reports the minted wrapped amount and the fee split.
type WrapResult struct {
	Minted uint64
	Fee    uint64
	Split  FeeSplit
}

// UnwrapRequest redeems Amount of wrapped tokens.
type UnwrapRequest struct {
	User          common.Address
	Vault         common.Address
	Amount        uint64
	MinBuybackOut uint64
}

// UnwrapResult reports the underlying returned and the fee split.
type UnwrapResult struct {
	Underlying uint64
	Returned   uint64
	Fee        uint64
	Split      FeeSplit
}

// OracleUpdate summarises the effect of an accepted oracle sample.
type OracleUpdate struct {
	Average    uint64
	Deviation  uint64
	Rebalanced bool
	Rebalance  *RebalanceResult
}

// RebalanceResult records a backing ratio change.
type RebalanceResult struct {
	PreviousRatio uint64
	NewRatio      uint64
	Count         uint64
	Timestamp     int64
}
