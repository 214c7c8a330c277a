package vault

// WrapQuote is the pure conversion of a deposit.
type WrapQuote struct {
	Amount uint64
	Fee    uint64
	Net    uint64
	Minted uint64
}

// UnwrapQuote is the pure conversion of a redemption.
type UnwrapQuote struct {
	Wrapped    uint64
	Underlying uint64
	Fee        uint64
	Returned   uint64
}

// WrapFee returns floor(amount * 70 / 10000).
func WrapFee(amount uint64) (uint64, error) {
	return mulDiv("ledger", amount, WrapFeeBps, BasisPoints)
}

func validateWrapAmount(amount uint64) error {
	if amount == 0 {
		return fail("ledger", CodeInvalidAmount, "")
	}
	if amount > MaxAmount {
		return fail("ledger", CodeAmountTooLarge, "%d", amount)
	}
	if amount < MinWrapAmount {
		return fail("ledger", CodeAmountTooSmall, "%d below %d", amount, MinWrapAmount)
	}
	return nil
}

// QuoteWrap converts amount of underlying into wrapped tokens at ratio.
func QuoteWrap(amount, ratio uint64) (WrapQuote, error) {
	if err := validateWrapAmount(amount); err != nil {
		return WrapQuote{}, err
	}
	if err := ValidateBackingRatio(ratio); err != nil {
		return WrapQuote{}, err
	}
	fee, err := WrapFee(amount)
	if err != nil {
		return WrapQuote{}, err
	}
	net, err := checkedSub("ledger", amount, fee)
	if err != nil {
		return WrapQuote{}, err
	}
	minted, err := mulDiv("ledger", net, BasisPoints, ratio)
	if err != nil {
		return WrapQuote{}, err
	}
	if minted == 0 {
		return WrapQuote{}, fail("ledger", CodeMintAmountTooSmall, "")
	}
	if minted > MaxAmount {
		return WrapQuote{}, fail("ledger", CodeMintAmountTooLarge, "%d", minted)
	}
	return WrapQuote{Amount: amount, Fee: fee, Net: net, Minted: minted}, nil
}

// QuoteUnwrap converts wrapped tokens back into underlying at ratio. The
// underlying leg must reach MinWrapAmount so the fee is never zero.
func QuoteUnwrap(wrapped, ratio uint64) (UnwrapQuote, error) {
	if wrapped == 0 {
		return UnwrapQuote{}, fail("ledger", CodeInvalidAmount, "")
	}
	if wrapped > MaxAmount {
		return UnwrapQuote{}, fail("ledger", CodeAmountTooLarge, "%d", wrapped)
	}
	if err := ValidateBackingRatio(ratio); err != nil {
		return UnwrapQuote{}, err
	}
	underlying, err := mulDiv("ledger", wrapped, ratio, BasisPoints)
	if err != nil {
		return UnwrapQuote{}, err
	}
	if underlying < MinWrapAmount {
		return UnwrapQuote{}, fail("ledger", CodeAmountTooSmall, "underlying %d below %d", underlying, MinWrapAmount)
	}
	if underlying > MaxAmount {
		return UnwrapQuote{}, fail("ledger", CodeAmountTooLarge, "underlying %d", underlying)
	}
	fee, err := WrapFee(underlying)
	if err != nil {
		return UnwrapQuote{}, err
	}
	returned, err := checkedSub("ledger", underlying, fee)
	if err != nil {
		return UnwrapQuote{}, err
	}
	return UnwrapQuote{Wrapped: wrapped, Underlying: underlying, Fee: fee, Returned: returned}, nil
}

// rollVolume resets the 24h volume once the window has elapsed.
func rollVolume(v *Vault, now int64) {
	if now-v.VolumeWindowStart >= VolumeWindowSeconds {
		v.TotalVolume24h = 0
		v.VolumeWindowStart = now
	}
}

// applyWrap commits the ledger effects of a wrap to v.
func applyWrap(v *Vault, q WrapQuote, now int64) error {
	wrapped, err := checkedAdd("ledger", v.TotalWrapped, q.Minted)
	if err != nil {
		return err
	}
	fees, err := checkedAdd("ledger", v.TotalFeesCollected, q.Fee)
	if err != nil {
		return err
	}
	rollVolume(v, now)
	volume, err := checkedAdd("ledger", v.TotalVolume24h, q.Amount)
	if err != nil {
		return err
	}
	v.TotalWrapped = wrapped
	v.TotalFeesCollected = fees
	v.TotalVolume24h = volume
	v.LastActivity = now
	return nil
}

// applyUnwrap commits the ledger effects of an unwrap to v. TotalWrapped
// saturates at zero.
func applyUnwrap(v *Vault, q UnwrapQuote, now int64) error {
	burned, err := checkedAdd("ledger", v.TotalBurned, q.Wrapped)
	if err != nil {
		return err
	}
	fees, err := checkedAdd("ledger", v.TotalFeesCollected, q.Fee)
	if err != nil {
		return err
	}
	rollVolume(v, now)
	volume, err := checkedAdd("ledger", v.TotalVolume24h, q.Underlying)
	if err != nil {
		return err
	}
	v.TotalWrapped = saturatingSub(v.TotalWrapped, q.Wrapped)
	v.TotalBurned = burned
	v.TotalFeesCollected = fees
	v.TotalVolume24h = volume
	v.LastActivity = now
	return nil
}

// PendingFees returns the undistributed reward balance. When no rewards are
// pending it falls back to the fees not yet attributed to the buyback
// counters, floored at zero.
func PendingFees(v *Vault) uint64 {
	if v.PendingRewards > 0 {
		return v.PendingRewards
	}
	attributed := v.RiftsTokensDistributed + v.RiftsTokensBurned
	if attributed < v.RiftsTokensDistributed {
		return 0
	}
	return saturatingSub(v.TotalFeesCollected, attributed)
}
