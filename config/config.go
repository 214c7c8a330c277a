package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"riftvault/core"
	"riftvault/native/buyback"
	nativecommon "riftvault/native/common"
	"riftvault/native/staking"
	"riftvault/native/vault"
)

// Config is the node-level vault configuration: where state lives and what
// the store is seeded with on first start.
type Config struct {
	DataDir       string    `toml:"DataDir"`
	NetworkName   string    `toml:"NetworkName"`
	Authorities   []string  `toml:"Authorities"`
	Oracles       []string  `toml:"Oracles"`
	DefaultPolicy Policy    `toml:"DefaultPolicy"`
	Buyback       Buyback   `toml:"Buyback"`
	Pauses        Pauses    `toml:"Pauses"`
	Balances      []Balance `toml:"Balances"`
	Vaults        []Vault   `toml:"Vaults"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %q", path, undecoded[0].String())
	}

	applyDefaults(cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "rift-local"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./rift-data"
	}
	fillPolicyDefaults(&cfg.DefaultPolicy)
	for i := range cfg.Vaults {
		if cfg.Vaults[i].Policy != nil {
			fillPolicyDefaults(cfg.Vaults[i].Policy)
		}
	}
	if cfg.Buyback.RateBps == 0 {
		cfg.Buyback.RateBps = vault.BasisPoints
	}
}

func fillPolicyDefaults(p *Policy) {
	if p.OracleUpdateInterval == 0 {
		p.OracleUpdateInterval = vault.DefaultOracleUpdateInterval
	}
	if p.MaxRebalanceInterval == 0 {
		p.MaxRebalanceInterval = vault.DefaultMaxRebalanceInterval
	}
	if p.ArbitrageThresholdBps == nil {
		threshold := vault.DefaultArbitrageThresholdBps
		p.ArbitrageThresholdBps = &threshold
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		DataDir:     "./rift-data",
		NetworkName: "rift-local",
		Authorities: []string{},
		Oracles:     []string{},
		Balances:    []Balance{},
		Vaults:      []Vault{},
	}
	fillPolicyDefaults(&cfg.DefaultPolicy)
	cfg.Buyback.RateBps = vault.BasisPoints
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// ToPolicy converts the TOML form into an engine policy.
func (p Policy) ToPolicy() (vault.Policy, error) {
	treasury, err := ParseAddress(p.TreasuryWallet)
	if err != nil {
		return vault.Policy{}, fmt.Errorf("TreasuryWallet: %w", err)
	}
	out := vault.Policy{
		BurnFeeBps:            p.BurnFeeBps,
		PartnerFeeBps:         p.PartnerFeeBps,
		TreasuryWallet:        treasury,
		OracleUpdateInterval:  p.OracleUpdateInterval,
		MaxRebalanceInterval:  p.MaxRebalanceInterval,
		ArbitrageThresholdBps: vault.DefaultArbitrageThresholdBps,
	}
	if p.ArbitrageThresholdBps != nil {
		out.ArbitrageThresholdBps = *p.ArbitrageThresholdBps
	}
	if strings.TrimSpace(p.PartnerWallet) != "" {
		partner, err := ParseAddress(p.PartnerWallet)
		if err != nil {
			return vault.Policy{}, fmt.Errorf("PartnerWallet: %w", err)
		}
		out.PartnerWallet = &partner
	}
	if err := out.Validate(); err != nil {
		return vault.Policy{}, err
	}
	return out, nil
}

// BuybackConfig resolves the venue settings. Rewards are minted to the
// staking pool.
func (c *Config) BuybackConfig() (buyback.Config, error) {
	asset, err := ParseAddress(c.Buyback.RewardAsset)
	if err != nil {
		return buyback.Config{}, fmt.Errorf("Buyback.RewardAsset: %w", err)
	}
	reserve, err := ParseAddress(c.Buyback.Reserve)
	if err != nil {
		return buyback.Config{}, fmt.Errorf("Buyback.Reserve: %w", err)
	}
	cfg := buyback.Config{
		RewardAsset: asset,
		RewardSink:  staking.ModuleAddress,
		Reserve:     reserve,
		RateBps:     c.Buyback.RateBps,
		Quota: nativecommon.Quota{
			MaxRequestsPerEpoch: c.Buyback.Quota.MaxRequestsPerEpoch,
			MaxAmountPerEpoch:   c.Buyback.Quota.MaxAmountPerEpoch,
			EpochSeconds:        c.Buyback.Quota.EpochSeconds,
		},
	}
	return cfg, cfg.Validate()
}

// Genesis resolves the seed state.
func (c *Config) Genesis() (core.Genesis, error) {
	var g core.Genesis
	var err error
	if g.Authorities, err = parseAddresses("Authorities", c.Authorities); err != nil {
		return g, err
	}
	if g.Oracles, err = parseAddresses("Oracles", c.Oracles); err != nil {
		return g, err
	}
	if g.DefaultPolicy, err = c.DefaultPolicy.ToPolicy(); err != nil {
		return g, fmt.Errorf("DefaultPolicy: %w", err)
	}
	if c.Pauses.Vault {
		g.PausedModules = append(g.PausedModules, "vault")
	}
	if c.Pauses.Buyback {
		g.PausedModules = append(g.PausedModules, "buyback")
	}
	for i, bal := range c.Balances {
		asset, err := ParseAddress(bal.Asset)
		if err != nil {
			return g, fmt.Errorf("Balances[%d].Asset: %w", i, err)
		}
		owner, err := ParseAddress(bal.Owner)
		if err != nil {
			return g, fmt.Errorf("Balances[%d].Owner: %w", i, err)
		}
		g.Balances = append(g.Balances, core.GenesisBalance{Asset: asset, Owner: owner, Amount: bal.Amount})
	}
	for i, v := range c.Vaults {
		spec := core.GenesisVault{Name: v.Name}
		if spec.Underlying, err = ParseAddress(v.Underlying); err != nil {
			return g, fmt.Errorf("Vaults[%d].Underlying: %w", i, err)
		}
		if spec.Wrapped, err = ParseAddress(v.Wrapped); err != nil {
			return g, fmt.Errorf("Vaults[%d].Wrapped: %w", i, err)
		}
		if strings.TrimSpace(v.Creator) != "" {
			if spec.Creator, err = ParseAddress(v.Creator); err != nil {
				return g, fmt.Errorf("Vaults[%d].Creator: %w", i, err)
			}
		}
		if v.Policy != nil {
			p, err := v.Policy.ToPolicy()
			if err != nil {
				return g, fmt.Errorf("Vaults[%d].Policy: %w", i, err)
			}
			spec.Policy = &p
		}
		g.Vaults = append(g.Vaults, spec)
	}
	return g, nil
}
