package config

import (
	"fmt"
	"strings"

	"riftvault/native/vault"
)

// ValidateConfig checks the bounds a seed must satisfy before it is applied.
// Address syntax is checked when the genesis is resolved.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	if len(cfg.Vaults) > 0 || len(cfg.Balances) > 0 {
		if len(cfg.Authorities) == 0 {
			return fmt.Errorf("config: at least one authority required to seed state")
		}
	}
	if err := validatePolicy("DefaultPolicy", cfg.DefaultPolicy); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(cfg.Vaults))
	for i, v := range cfg.Vaults {
		key := strings.ToLower(strings.TrimSpace(v.Underlying)) + "/" + strings.ToLower(strings.TrimSpace(v.Wrapped))
		if _, dup := seen[key]; dup {
			return fmt.Errorf("config: Vaults[%d] duplicates pair %s", i, key)
		}
		seen[key] = struct{}{}
		if v.Policy != nil {
			if err := validatePolicy(fmt.Sprintf("Vaults[%d].Policy", i), *v.Policy); err != nil {
				return err
			}
		}
	}
	for i, bal := range cfg.Balances {
		if bal.Amount == 0 {
			return fmt.Errorf("config: Balances[%d] amount must be positive", i)
		}
	}
	if q := cfg.Buyback.Quota; (q.MaxRequestsPerEpoch > 0 || q.MaxAmountPerEpoch > 0) && q.EpochSeconds == 0 {
		return fmt.Errorf("config: Buyback.Quota requires EpochSeconds")
	}
	return nil
}

func validatePolicy(field string, p Policy) error {
	if p.BurnFeeBps > vault.MaxBurnFeeBps {
		return fmt.Errorf("config: %s.BurnFeeBps %d exceeds %d", field, p.BurnFeeBps, vault.MaxBurnFeeBps)
	}
	if p.PartnerFeeBps > vault.MaxPartnerFeeBps {
		return fmt.Errorf("config: %s.PartnerFeeBps %d exceeds %d", field, p.PartnerFeeBps, vault.MaxPartnerFeeBps)
	}
	if p.OracleUpdateInterval <= 0 || p.MaxRebalanceInterval <= 0 {
		return fmt.Errorf("config: %s intervals must be positive", field)
	}
	return nil
}
