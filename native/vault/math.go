package vault

import "github.com/holiman/uint256"

const (
	// BasisPoints is the denominator for every bps quantity.
	BasisPoints uint64 = 10_000
	// WrapFeeBps is the fixed fee charged on both wrap and unwrap legs.
	WrapFeeBps uint64 = 70
	// MinWrapAmount guarantees a non-zero fee.
	MinWrapAmount uint64 = 10_000
	// MaxAmount bounds deposits, redemptions and converted amounts.
	MaxAmount uint64 = 1_000_000_000_000_000
	// MaxBackingRatio bounds the backing ratio and oracle prices.
	MaxBackingRatio uint64 = 1_000_000_000_000
	// DefaultBackingRatio is parity.
	DefaultBackingRatio uint64 = 10_000
)

func u256(v uint64) *uint256.Int { return uint256.NewInt(v) }

func toUint64(v *uint256.Int, overflow bool, component string) (uint64, error) {
	if overflow || !v.IsUint64() {
		return 0, fail(component, CodeMathOverflow, "")
	}
	return v.Uint64(), nil
}

// mulDiv returns floor(a*b/d) with a 256-bit intermediate.
func mulDiv(component string, a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, fail(component, CodeMathOverflow, "division by zero")
	}
	z, overflow := new(uint256.Int).MulDivOverflow(u256(a), u256(b), u256(d))
	return toUint64(z, overflow, component)
}

func checkedAdd(component string, a, b uint64) (uint64, error) {
	z, overflow := new(uint256.Int).AddOverflow(u256(a), u256(b))
	return toUint64(z, overflow, component)
}

func checkedSub(component string, a, b uint64) (uint64, error) {
	z, underflow := new(uint256.Int).SubOverflow(u256(a), u256(b))
	return toUint64(z, underflow, component)
}

func checkedMul(component string, a, b uint64) (uint64, error) {
	z, overflow := new(uint256.Int).MulOverflow(u256(a), u256(b))
	return toUint64(z, overflow, component)
}

// saturatingSub floors at zero.
func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// ValidateBackingRatio enforces 0 < ratio <= MaxBackingRatio.
func ValidateBackingRatio(ratio uint64) error {
	if ratio == 0 {
		return fail("ledger", CodeInvalidBackingRatio, "")
	}
	if ratio > MaxBackingRatio {
		return fail("ledger", CodeBackingRatioTooLarge, "%d", ratio)
	}
	return nil
}
