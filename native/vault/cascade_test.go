package vault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	nativecommon "riftvault/native/common"
)

func TestSplitFeeScenario(t *testing.T) {
	split, err := SplitFee(700, testPolicy(1_000))
	require.NoError(t, err)
	require.Equal(t, FeeSplit{
		Fee:       700,
		Burn:      70,
		Partner:   0,
		Remaining: 630,
		Treasury:  31,
		Buyback:   599,
		LPShare:   539,
		BurnShare: 60,
	}, split)
}

func TestSplitFeeConservesEveryUnit(t *testing.T) {
	bpsPairs := [][2]uint64{{0, 0}, {1_000, 0}, {4_500, 500}, {123, 77}, {4_500, 0}, {0, 500}}
	for _, pair := range bpsPairs {
		policy := testPolicy(pair[0])
		policy.PartnerFeeBps = pair[1]
		for fee := uint64(0); fee <= 5_000; fee += 7 {
			split, err := SplitFee(fee, policy)
			require.NoError(t, err)
			if got := split.Burn + split.Partner + split.Treasury + split.Buyback; got != fee {
				t.Fatalf("bps %v fee %d: shares sum to %d", pair, fee, got)
			}
			if split.LPShare+split.BurnShare != split.Buyback {
				t.Fatalf("bps %v fee %d: buyback drift", pair, fee)
			}
		}
	}
	split, err := SplitFee(^uint64(0), testPolicy(4_500))
	require.NoError(t, err)
	require.Equal(t, ^uint64(0), split.Burn+split.Partner+split.Treasury+split.Buyback)
}

func TestCascadeForwardsPartnerShare(t *testing.T) {
	policy := testPolicy(1_000)
	policy.PartnerFeeBps = 500
	partner := testPartner
	policy.PartnerWallet = &partner
	h := newHarness(policy)
	h.create()

	res, err := h.engine.Wrap(WrapRequest{User: testUser, Vault: h.vault, Amount: 100_000})
	require.NoError(t, err)
	require.Equal(t, uint64(35), res.Split.Partner)
	require.Equal(t, uint64(29), res.Split.Treasury)
	require.Equal(t, uint64(566), res.Split.Buyback)

	require.Equal(t, uint64(35), h.bank.balances[testUnderlying][testPartner])
	require.Equal(t, uint64(29), h.bank.balances[testUnderlying][testTreasury])
	require.Equal(t, uint64(566), h.bank.balances[testUnderlying][testReserve])
	require.Equal(t, uint64(35), h.load().FeesToPartner)
}

func TestCascadeSkipsMissingPartnerSilently(t *testing.T) {
	policy := testPolicy(1_000)
	policy.PartnerFeeBps = 500
	h := newHarness(policy)
	h.create()

	res, err := h.engine.Wrap(WrapRequest{User: testUser, Vault: h.vault, Amount: 100_000})
	require.NoError(t, err)
	require.Equal(t, uint64(35), res.Split.Partner)
	require.Zero(t, h.bank.balances[testUnderlying][testPartner])
	// The unsent partner share stays in the vault pool.
	require.Equal(t, uint64(100_000-70-29-566), h.bank.balances[testUnderlying][h.vault])
	require.Zero(t, h.load().FeesToPartner)
}

func TestCascadeRejectsBuybackSlippage(t *testing.T) {
	h := newHarness(testPolicy(1_000))
	h.create()
	h.swap.rateBps = 5_000

	_, err := h.engine.Wrap(WrapRequest{User: testUser, Vault: h.vault, Amount: 100_000, MinBuybackOut: 500})
	require.ErrorIs(t, err, ErrBuybackSlippage)
	require.Equal(t, KindValidation, KindOf(err))

	fresh := newHarness(testPolicy(1_000))
	fresh.create()
	fresh.swap.rateBps = 5_000
	res, err := fresh.engine.Wrap(WrapRequest{User: testUser, Vault: fresh.vault, Amount: 100_000, MinBuybackOut: 299})
	require.NoError(t, err)
	require.Equal(t, uint64(599), res.Split.Buyback)
	require.False(t, res.Split.Deferred)
	require.True(t, fresh.load().Guard.Idle())
}

func TestCascadeDefersBuybackWhenQuotaExhausted(t *testing.T) {
	h := newHarness(testPolicy(1_000))
	h.create()
	h.swap.err = fmt.Errorf("buyback: vault %s: %w", h.vault.Hex(), nativecommon.ErrQuotaRequestsExceeded)

	res, err := h.engine.Wrap(WrapRequest{User: testUser, Vault: h.vault, Amount: 100_000, MinBuybackOut: 500})
	require.NoError(t, err)
	require.True(t, res.Split.Deferred)
	require.Equal(t, uint64(99_300), res.Minted)

	v := h.load()
	require.True(t, v.Guard.Idle())
	require.Equal(t, uint64(599), v.DeferredBuyback)
	require.Zero(t, v.PendingRewards)
	require.Zero(t, v.RiftsTokensDistributed)
	require.Zero(t, h.rewards.deposits[h.vault])
	// Burn and treasury shares still leave; the buyback share stays behind.
	require.Equal(t, uint64(31), h.bank.balances[testUnderlying][testTreasury])
	require.Equal(t, uint64(99_300+599), h.bank.balances[testUnderlying][h.vault])

	// Unreleased fees surface through the pending fee fallback.
	pending, err := h.engine.PendingFees(h.vault)
	require.NoError(t, err)
	require.Equal(t, uint64(700), pending)

	h.swap.err = fmt.Errorf("buyback: %w", nativecommon.ErrQuotaAmountExceeded)
	out, err := h.engine.Unwrap(UnwrapRequest{User: testUser, Vault: h.vault, Amount: 50_000})
	require.NoError(t, err)
	require.True(t, out.Split.Deferred)
	require.Greater(t, h.load().DeferredBuyback, uint64(599))
}

func TestCascadeWrapsCollaboratorFailures(t *testing.T) {
	h := newHarness(testPolicy(1_000))
	h.create()
	h.swap.err = errors.New("swap venue offline")

	_, err := h.engine.Wrap(WrapRequest{User: testUser, Vault: h.vault, Amount: 100_000})
	require.ErrorIs(t, err, ErrFeeTransfer)
	require.Equal(t, KindUnknown, KindOf(err))
	require.Contains(t, err.Error(), "swap venue offline")
}
