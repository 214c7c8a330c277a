package config

// Policy mirrors vault.Policy with string addresses for TOML.
type Policy struct {
	BurnFeeBps           uint64 `toml:"BurnFeeBps"`
	PartnerFeeBps        uint64 `toml:"PartnerFeeBps"`
	PartnerWallet        string `toml:"PartnerWallet,omitempty"`
	TreasuryWallet       string `toml:"TreasuryWallet"`
	OracleUpdateInterval int64  `toml:"OracleUpdateInterval"`
	MaxRebalanceInterval int64  `toml:"MaxRebalanceInterval"`
	// ArbitrageThresholdBps is optional; an explicit 0 rebalances on any
	// reported arbitrage.
	ArbitrageThresholdBps *uint64 `toml:"ArbitrageThresholdBps,omitempty"`
}

// Buyback configures the fixed-rate venue fee buybacks settle against.
type Buyback struct {
	RewardAsset string `toml:"RewardAsset"`
	Reserve     string `toml:"Reserve"`
	RateBps     uint64 `toml:"RateBps"`
	Quota       Quota  `toml:"Quota"`
}

// Quota bounds buyback orders per vault per epoch.
type Quota struct {
	MaxRequestsPerEpoch uint32 `toml:"MaxRequestsPerEpoch"`
	MaxAmountPerEpoch   uint64 `toml:"MaxAmountPerEpoch"`
	EpochSeconds        uint32 `toml:"EpochSeconds"`
}

// Balance seeds an account at genesis.
type Balance struct {
	Asset  string `toml:"Asset"`
	Owner  string `toml:"Owner"`
	Amount uint64 `toml:"Amount"`
}

// Vault registers a vault at genesis, optionally with a policy override.
type Vault struct {
	Name       string  `toml:"Name"`
	Creator    string  `toml:"Creator,omitempty"`
	Underlying string  `toml:"Underlying"`
	Wrapped    string  `toml:"Wrapped"`
	Policy     *Policy `toml:"Policy,omitempty"`
}

// Pauses lists native modules halted at genesis.
type Pauses struct {
	Vault   bool `toml:"Vault"`
	Buyback bool `toml:"Buyback"`
}
