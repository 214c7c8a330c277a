package governance

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"riftvault/native/vault"
)

// PolicyJSON is the wire form of a vault policy. Values are stored as JSON to
// match the payloads operators submit.
type PolicyJSON struct {
	BurnFeeBps            uint64 `json:"burn_fee_bps"`
	PartnerFeeBps         uint64 `json:"partner_fee_bps"`
	PartnerWallet         string `json:"partner_wallet,omitempty"`
	TreasuryWallet        string `json:"treasury_wallet"`
	OracleUpdateInterval  int64  `json:"oracle_update_interval"`
	MaxRebalanceInterval  int64  `json:"max_rebalance_interval"`
	ArbitrageThresholdBps uint64 `json:"arbitrage_threshold_bps"`
}

// ToJSON renders the policy for storage or transport.
func ToJSON(p vault.Policy) PolicyJSON {
	out := PolicyJSON{
		BurnFeeBps:            p.BurnFeeBps,
		PartnerFeeBps:         p.PartnerFeeBps,
		TreasuryWallet:        p.TreasuryWallet.Hex(),
		OracleUpdateInterval:  p.OracleUpdateInterval,
		MaxRebalanceInterval:  p.MaxRebalanceInterval,
		ArbitrageThresholdBps: p.ArbitrageThresholdBps,
	}
	if p.HasPartner() {
		out.PartnerWallet = p.PartnerWallet.Hex()
	}
	return out
}

// Policy parses the wire form.
func (p PolicyJSON) Policy() (vault.Policy, error) {
	out := vault.Policy{
		BurnFeeBps:            p.BurnFeeBps,
		PartnerFeeBps:         p.PartnerFeeBps,
		OracleUpdateInterval:  p.OracleUpdateInterval,
		MaxRebalanceInterval:  p.MaxRebalanceInterval,
		ArbitrageThresholdBps: p.ArbitrageThresholdBps,
	}
	treasury := strings.TrimSpace(p.TreasuryWallet)
	if !common.IsHexAddress(treasury) {
		return vault.Policy{}, fmt.Errorf("governance: invalid treasury wallet %q", p.TreasuryWallet)
	}
	out.TreasuryWallet = common.HexToAddress(treasury)
	if partner := strings.TrimSpace(p.PartnerWallet); partner != "" {
		if !common.IsHexAddress(partner) {
			return vault.Policy{}, fmt.Errorf("governance: invalid partner wallet %q", p.PartnerWallet)
		}
		addr := common.HexToAddress(partner)
		out.PartnerWallet = &addr
	}
	return out, nil
}

func encodePolicy(p vault.Policy) ([]byte, error) {
	encoded, err := json.Marshal(ToJSON(p))
	if err != nil {
		return nil, fmt.Errorf("governance: encode policy: %w", err)
	}
	return encoded, nil
}

func decodePolicy(raw []byte) (vault.Policy, error) {
	var wire PolicyJSON
	if err := json.Unmarshal(raw, &wire); err != nil {
		return vault.Policy{}, fmt.Errorf("governance: decode policy: %w", err)
	}
	return wire.Policy()
}
