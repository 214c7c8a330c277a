package config

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
)

// AddressHRP is the human readable prefix of bech32 vault accounts.
const AddressHRP = "rift"

// ParseAddress accepts 0x-prefixed hex or a rift1... bech32 account.
func ParseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return common.Address{}, fmt.Errorf("address required")
	}
	if common.IsHexAddress(trimmed) {
		return common.HexToAddress(trimmed), nil
	}
	hrp, data, err := bech32.Decode(trimmed)
	if err != nil {
		return common.Address{}, fmt.Errorf("decode bech32 account: %w", err)
	}
	if hrp != AddressHRP {
		return common.Address{}, fmt.Errorf("decode bech32 account: unsupported hrp %q", hrp)
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return common.Address{}, fmt.Errorf("decode bech32 account: %w", err)
	}
	if len(decoded) != common.AddressLength {
		return common.Address{}, fmt.Errorf("decode bech32 account: invalid address length %d", len(decoded))
	}
	return common.BytesToAddress(decoded), nil
}

// FormatBech32 renders addr as a rift1... account.
func FormatBech32(addr common.Address) (string, error) {
	conv, err := bech32.ConvertBits(addr.Bytes(), 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(AddressHRP, conv)
}

func parseAddresses(field string, raw []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(raw))
	for i, entry := range raw {
		addr, err := ParseAddress(entry)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", field, i, err)
		}
		out = append(out, addr)
	}
	return out, nil
}
