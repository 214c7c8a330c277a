package vault

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "riftvault/native/common"
)

const (
	// TreasuryPercent of the post burn/partner remainder goes to the treasury.
	TreasuryPercent uint64 = 5
	// LPSharePercent of the buyback is earmarked for LP stakers.
	LPSharePercent uint64 = 90
)

// FeeSplit is the deterministic decomposition of one collected fee.
// Burn + Partner + Treasury + Buyback always equals Fee.
type FeeSplit struct {
	Fee       uint64
	Burn      uint64
	Partner   uint64
	Remaining uint64
	Treasury  uint64
	Buyback   uint64
	LPShare   uint64
	BurnShare uint64
	// Deferred is set when the swap executor refused the buyback for quota
	// reasons and the share stayed in the vault.
	Deferred bool
}

// SplitFee computes the cascade shares for fee under policy.
func SplitFee(fee uint64, policy Policy) (FeeSplit, error) {
	split := FeeSplit{Fee: fee}
	var err error
	if split.Burn, err = mulDiv("cascade", fee, policy.BurnFeeBps, BasisPoints); err != nil {
		return FeeSplit{}, err
	}
	if split.Partner, err = mulDiv("cascade", fee, policy.PartnerFeeBps, BasisPoints); err != nil {
		return FeeSplit{}, err
	}
	if split.Remaining, err = checkedSub("cascade", fee, split.Burn); err != nil {
		return FeeSplit{}, err
	}
	if split.Remaining, err = checkedSub("cascade", split.Remaining, split.Partner); err != nil {
		return FeeSplit{}, err
	}
	if split.Treasury, err = mulDiv("cascade", split.Remaining, TreasuryPercent, 100); err != nil {
		return FeeSplit{}, err
	}
	if split.Buyback, err = checkedSub("cascade", split.Remaining, split.Treasury); err != nil {
		return FeeSplit{}, err
	}
	if split.LPShare, err = mulDiv("cascade", split.Buyback, LPSharePercent, 100); err != nil {
		return FeeSplit{}, err
	}
	if split.BurnShare, err = checkedSub("cascade", split.Buyback, split.LPShare); err != nil {
		return FeeSplit{}, err
	}
	return split, nil
}

// distributeFee forwards every non-zero share of fee held by the vault and
// updates the buyback bookkeeping on v.
func (e *Engine) distributeFee(v *Vault, policy Policy, fee, minBuybackOut uint64) (FeeSplit, error) {
	split, err := SplitFee(fee, policy)
	if err != nil {
		return FeeSplit{}, err
	}
	if fee == 0 {
		return split, nil
	}
	if split.Burn > 0 {
		if err := e.bank.Burn(v.UnderlyingAsset, v.Address, split.Burn); err != nil {
			return FeeSplit{}, wrapFail("cascade", CodeFeeTransfer, fmt.Errorf("burn share: %w", err))
		}
		if v.FeesBurned, err = checkedAdd("cascade", v.FeesBurned, split.Burn); err != nil {
			return FeeSplit{}, err
		}
	}
	if split.Partner > 0 && policy.HasPartner() {
		if err := e.bank.Transfer(v.UnderlyingAsset, v.Address, *policy.PartnerWallet, split.Partner); err != nil {
			return FeeSplit{}, wrapFail("cascade", CodeFeeTransfer, fmt.Errorf("partner share: %w", err))
		}
		if v.FeesToPartner, err = checkedAdd("cascade", v.FeesToPartner, split.Partner); err != nil {
			return FeeSplit{}, err
		}
	}
	if split.Treasury > 0 {
		if err := e.bank.Transfer(v.UnderlyingAsset, v.Address, policy.TreasuryWallet, split.Treasury); err != nil {
			return FeeSplit{}, wrapFail("cascade", CodeFeeTransfer, fmt.Errorf("treasury share: %w", err))
		}
		if v.FeesToTreasury, err = checkedAdd("cascade", v.FeesToTreasury, split.Treasury); err != nil {
			return FeeSplit{}, err
		}
	}
	if split.Buyback > 0 {
		deferred, err := e.executeBuyback(v, split.Buyback, minBuybackOut)
		if err != nil {
			return FeeSplit{}, err
		}
		if deferred {
			if v.DeferredBuyback, err = checkedAdd("cascade", v.DeferredBuyback, split.Buyback); err != nil {
				return FeeSplit{}, err
			}
			split.Deferred = true
			return split, nil
		}
	}
	if v.RiftsTokensDistributed, err = checkedAdd("cascade", v.RiftsTokensDistributed, split.LPShare); err != nil {
		return FeeSplit{}, err
	}
	if v.RiftsTokensBurned, err = checkedAdd("cascade", v.RiftsTokensBurned, split.BurnShare); err != nil {
		return FeeSplit{}, err
	}
	if v.PendingRewards, err = checkedAdd("cascade", v.PendingRewards, split.LPShare); err != nil {
		return FeeSplit{}, err
	}
	if split.LPShare > 0 && e.rewards != nil {
		if err := e.rewards.DepositRewards(v.Address, split.LPShare); err != nil {
			return FeeSplit{}, wrapFail("cascade", CodeFeeTransfer, fmt.Errorf("reward deposit: %w", err))
		}
	}
	return split, nil
}

// executeBuyback reports deferred=true when the executor's epoch quota is
// spent. The quota only throttles buybacks; it never blocks the ledger
// operation that produced the fee.
func (e *Engine) executeBuyback(v *Vault, amount, minOut uint64) (bool, error) {
	if e.swap == nil {
		return false, wrapFail("cascade", CodeFeeTransfer, errors.New("swap executor not configured"))
	}
	bought, err := e.swap.ExecuteBuyback(BuybackOrder{
		Vault:  v.Address,
		Asset:  v.UnderlyingAsset,
		Amount: amount,
	})
	if err != nil {
		if quotaExhausted(err) {
			e.logger.Warn("buyback deferred", "vault", v.Address.Hex(), "amount", amount, "err", err)
			return true, nil
		}
		return false, wrapFail("cascade", CodeFeeTransfer, fmt.Errorf("buyback: %w", err))
	}
	if bought < minOut {
		return false, fail("cascade", CodeBuybackSlippage, "bought %d below minimum %d", bought, minOut)
	}
	return false, nil
}

func quotaExhausted(err error) bool {
	return errors.Is(err, nativecommon.ErrQuotaRequestsExceeded) ||
		errors.Is(err, nativecommon.ErrQuotaAmountExceeded)
}

// BuybackOrder asks the swap executor to convert Amount of Asset held by Vault
// into reward tokens.
type BuybackOrder struct {
	Vault  common.Address
	Asset  common.Address
	Amount uint64
}
