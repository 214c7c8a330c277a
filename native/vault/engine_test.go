package vault

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	nativecommon "riftvault/native/common"
)

func TestCreateVaultDefaults(t *testing.T) {
	h := newHarness(testPolicy(0))
	v := h.create()

	require.Equal(t, DeriveAddress(testUnderlying, testWrapped), v.Address)
	require.Equal(t, DefaultBackingRatio, v.BackingRatio)
	require.True(t, v.Guard.Idle())
	require.Zero(t, v.TotalWrapped)
	require.Equal(t, 0, v.Oracle.Count())

	_, err := h.engine.CreateVault(testCreator, testUnderlying, testWrapped, "again")
	require.ErrorIs(t, err, ErrVaultExists)

	_, err = h.engine.CreateVault(testCreator, testUnderlying, testUnderlying, "same")
	require.ErrorIs(t, err, ErrInvalidAsset)

	_, err = h.engine.CreateVault(testCreator, addr(0xB1), addr(0xB2), "a name that is definitely longer than 32 bytes")
	require.ErrorIs(t, err, ErrInvalidName)

	vaults, err := h.engine.Vaults()
	require.NoError(t, err)
	require.Len(t, vaults, 1)
}

func TestCreateVaultRejectsInvalidPolicy(t *testing.T) {
	policy := testPolicy(MaxBurnFeeBps + 1)
	h := newHarness(policy)
	_, err := h.engine.CreateVault(testCreator, testUnderlying, testWrapped, "bad")
	require.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestWrapScenario(t *testing.T) {
	h := newHarness(testPolicy(1_000))
	h.create()

	res, err := h.engine.Wrap(WrapRequest{User: testUser, Vault: h.vault, Amount: 100_000})
	require.NoError(t, err)
	require.Equal(t, uint64(99_300), res.Minted)
	require.Equal(t, uint64(700), res.Fee)
	require.Equal(t, uint64(539), res.Split.LPShare)
	require.Equal(t, uint64(60), res.Split.BurnShare)

	v := h.load()
	require.True(t, v.Guard.Idle())
	require.Equal(t, uint64(99_300), v.TotalWrapped)
	require.Equal(t, uint64(700), v.TotalFeesCollected)
	require.Equal(t, uint64(100_000), v.TotalVolume24h)
	require.Equal(t, uint64(539), v.RiftsTokensDistributed)
	require.Equal(t, uint64(60), v.RiftsTokensBurned)
	require.Equal(t, uint64(539), v.PendingRewards)
	require.Equal(t, uint64(70), v.FeesBurned)
	require.Equal(t, uint64(31), v.FeesToTreasury)

	require.Equal(t, uint64(10_000_000-100_000), h.bank.balances[testUnderlying][testUser])
	require.Equal(t, uint64(99_300), h.bank.balances[testWrapped][testUser])
	require.Equal(t, uint64(99_300), h.bank.balances[testUnderlying][h.vault])
	require.Equal(t, uint64(31), h.bank.balances[testUnderlying][testTreasury])
	require.Equal(t, uint64(599), h.bank.balances[testUnderlying][testReserve])
	require.Equal(t, uint64(539), h.rewards.deposits[h.vault])

	pending, err := h.engine.PendingFees(h.vault)
	require.NoError(t, err)
	require.Equal(t, uint64(539), pending)
}

func TestUnwrapAfterWrap(t *testing.T) {
	h := newHarness(testPolicy(1_000))
	h.create()
	_, err := h.engine.Wrap(WrapRequest{User: testUser, Vault: h.vault, Amount: 100_000})
	require.NoError(t, err)

	res, err := h.engine.Unwrap(UnwrapRequest{User: testUser, Vault: h.vault, Amount: 99_300})
	require.NoError(t, err)
	require.Equal(t, uint64(99_300), res.Underlying)
	require.Equal(t, uint64(695), res.Fee)
	require.Equal(t, uint64(98_605), res.Returned)
	require.Less(t, res.Returned, uint64(100_000))

	v := h.load()
	require.True(t, v.Guard.Idle())
	require.Zero(t, v.TotalWrapped)
	require.Equal(t, uint64(99_300), v.TotalBurned)
	require.Equal(t, uint64(700+695), v.TotalFeesCollected)
	require.Zero(t, h.bank.balances[testWrapped][testUser])
	require.Zero(t, h.bank.balances[testUnderlying][h.vault])
	require.Equal(t, uint64(10_000_000-100_000+98_605), h.bank.balances[testUnderlying][testUser])
}

func TestUnwrapRequiresReserves(t *testing.T) {
	h := newHarness(testPolicy(0))
	h.create()
	h.bank.credit(testWrapped, testUser, 50_000)

	_, err := h.engine.Unwrap(UnwrapRequest{User: testUser, Vault: h.vault, Amount: 50_000})
	require.ErrorIs(t, err, ErrInsufficientReserves)
	require.Zero(t, h.load().TotalBurned)
}

func TestWrapReentrancyFromCascadeIsRejected(t *testing.T) {
	h := newHarness(testPolicy(1_000))
	h.create()

	var (
		nestedErr error
		snapshot  *Vault
	)
	h.swap.hook = func(BuybackOrder) {
		_, nestedErr = h.engine.Wrap(WrapRequest{User: testUser, Vault: h.vault, Amount: 50_000})
		snapshot = h.load()
	}

	_, err := h.engine.Wrap(WrapRequest{User: testUser, Vault: h.vault, Amount: 100_000})
	require.NoError(t, err)

	if !errors.Is(nestedErr, ErrReentrancyDetected) {
		t.Fatalf("expected reentrancy error, got %v", nestedErr)
	}
	require.Equal(t, KindConcurrency, KindOf(nestedErr))

	require.NotNil(t, snapshot)
	require.True(t, snapshot.Guard.Busy)
	require.Equal(t, uint64(99_300), snapshot.TotalWrapped)
	require.Equal(t, uint64(700), snapshot.TotalFeesCollected)
	require.Equal(t, uint64(100_000), snapshot.TotalVolume24h)
	require.Zero(t, snapshot.RiftsTokensDistributed)
	require.Zero(t, snapshot.RiftsTokensBurned)
	require.Zero(t, snapshot.PendingRewards)
	require.Len(t, h.swap.orders, 1)

	require.True(t, h.load().Guard.Idle())
}

func TestPauseIsGovernanceOnly(t *testing.T) {
	h := newHarness(testPolicy(0))
	h.create()

	err := h.engine.Pause(testUser, h.vault)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, KindAuthorization, KindOf(err))

	require.NoError(t, h.engine.Pause(testAuthority, h.vault))
	v := h.load()
	require.True(t, v.Paused)
	require.Equal(t, h.clock.Unix(), v.PauseTimestamp)

	_, err = h.engine.Wrap(WrapRequest{User: testUser, Vault: h.vault, Amount: 100_000})
	require.ErrorIs(t, err, ErrRiftPaused)
	_, err = h.engine.TriggerRebalance(testUser, h.vault)
	require.ErrorIs(t, err, ErrRiftPaused)

	require.NoError(t, h.engine.Unpause(testAuthority, h.vault))
	_, err = h.engine.Wrap(WrapRequest{User: testUser, Vault: h.vault, Amount: 100_000})
	require.NoError(t, err)
}

func TestModulePauseBlocksMutation(t *testing.T) {
	h := newHarness(testPolicy(0))
	h.create()
	h.engine.SetPauses(stubPauseView{modules: map[string]bool{"vault": true}})

	_, err := h.engine.Wrap(WrapRequest{User: testUser, Vault: h.vault, Amount: 100_000})
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)
	require.Equal(t, uint64(10_000_000), h.bank.balances[testUnderlying][testUser])
	require.Zero(t, h.load().TotalWrapped)
}

func TestRecordOraclePriceValidation(t *testing.T) {
	h := newHarness(testPolicy(0))
	h.create()
	now := h.clock.Unix()

	_, err := h.engine.RecordOraclePrice(testUser, h.vault, OracleSample{Price: 10_000, Timestamp: now})
	require.ErrorIs(t, err, ErrUnauthorizedOracle)

	_, err = h.engine.RecordOraclePrice(testOracle, h.vault, OracleSample{Price: 10_000, Timestamp: now - 301})
	require.ErrorIs(t, err, ErrStaleOracle)

	_, err = h.engine.RecordOraclePrice(testOracle, h.vault, OracleSample{Price: 0, Timestamp: now})
	require.ErrorIs(t, err, ErrInvalidOraclePrice)

	_, err = h.engine.RecordOraclePrice(testOracle, addr(0xEE), OracleSample{Price: 10_000, Timestamp: now})
	require.ErrorIs(t, err, ErrVaultNotFound)
	require.Equal(t, KindNotFound, KindOf(err))

	require.Equal(t, 0, h.load().Oracle.Count())
}

func TestOracleDeviationTriggersRebalance(t *testing.T) {
	h := newHarness(testPolicy(0))
	h.create()

	h.advance(time.Minute)
	update, err := h.engine.RecordOraclePrice(testOracle, h.vault, OracleSample{Price: 10_100, Timestamp: h.clock.Unix()})
	require.NoError(t, err)
	require.False(t, update.Rebalanced)
	require.Equal(t, uint64(100), update.Deviation)
	require.Equal(t, uint64(100), h.load().PriceDeviation)

	h.advance(time.Minute)
	update, err = h.engine.RecordOraclePrice(testOracle, h.vault, OracleSample{Price: 10_600, Timestamp: h.clock.Unix()})
	require.NoError(t, err)
	require.True(t, update.Rebalanced)
	require.Equal(t, uint64(10_350), update.Rebalance.NewRatio)

	v := h.load()
	require.Equal(t, uint64(10_350), v.BackingRatio)
	require.Equal(t, uint64(1), v.RebalanceCount)
	require.Zero(t, v.PriceDeviation)
	require.Equal(t, h.clock.Unix(), v.LastRebalance)
	require.Equal(t, h.clock.Unix(), v.LastOracleUpdate)
}

func TestOracleStalenessTriggersRebalance(t *testing.T) {
	h := newHarness(testPolicy(0))
	h.create()

	h.advance(time.Duration(DefaultMaxRebalanceInterval+1) * time.Second)
	update, err := h.engine.RecordOraclePrice(testOracle, h.vault, OracleSample{Price: 10_000, Timestamp: h.clock.Unix()})
	require.NoError(t, err)
	require.True(t, update.Rebalanced)
	require.Equal(t, DefaultBackingRatio, h.load().BackingRatio)
}

func TestPausedVaultDefersOracleRebalance(t *testing.T) {
	h := newHarness(testPolicy(0))
	h.create()
	require.NoError(t, h.engine.Pause(testAuthority, h.vault))

	update, err := h.engine.RecordOraclePrice(testOracle, h.vault, OracleSample{Price: 12_000, Timestamp: h.clock.Unix()})
	require.NoError(t, err)
	require.False(t, update.Rebalanced)
	v := h.load()
	require.Equal(t, DefaultBackingRatio, v.BackingRatio)
	require.Equal(t, 1, v.Oracle.Count())
}

func TestTriggerRebalanceGates(t *testing.T) {
	h := newHarness(testPolicy(0))
	h.create()

	_, err := h.engine.TriggerRebalance(testUser, h.vault)
	require.ErrorIs(t, err, ErrRebalanceNotDue)

	require.NoError(t, h.engine.ReportArbitrage(testOracle, h.vault, 250))
	res, err := h.engine.TriggerRebalance(testUser, h.vault)
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.Count)
	require.Zero(t, h.load().ArbitrageOpportunityBps)

	_, err = h.engine.TriggerRebalance(testUser, h.vault)
	require.ErrorIs(t, err, ErrRebalanceNotDue)

	h.advance(time.Duration(DefaultOracleUpdateInterval+1) * time.Second)
	res, err = h.engine.TriggerRebalance(testUser, h.vault)
	require.NoError(t, err)
	require.Equal(t, uint64(2), res.Count)

	require.ErrorIs(t, h.engine.ReportArbitrage(testUser, h.vault, 10), ErrUnauthorizedOracle)
}

func TestCountdownQueries(t *testing.T) {
	h := newHarness(testPolicy(0))
	h.create()

	oracle, err := h.engine.OracleCountdown(h.vault)
	require.NoError(t, err)
	require.Equal(t, DefaultOracleUpdateInterval, oracle)

	h.advance(2_000 * time.Second)
	oracle, err = h.engine.OracleCountdown(h.vault)
	require.NoError(t, err)
	require.Zero(t, oracle)

	rebalance, err := h.engine.RebalanceCountdown(h.vault)
	require.NoError(t, err)
	require.Equal(t, DefaultMaxRebalanceInterval-2_000, rebalance)
}

func TestCloseVault(t *testing.T) {
	h := newHarness(testPolicy(0))
	h.create()
	_, err := h.engine.Wrap(WrapRequest{User: testUser, Vault: h.vault, Amount: 100_000})
	require.NoError(t, err)

	require.ErrorIs(t, h.engine.CloseVault(testCreator, h.vault), ErrVaultNotEmpty)
	require.ErrorIs(t, h.engine.CloseVault(testUser, h.vault), ErrUnauthorized)

	_, err = h.engine.Unwrap(UnwrapRequest{User: testUser, Vault: h.vault, Amount: 99_300})
	require.NoError(t, err)

	require.NoError(t, h.engine.CloseVault(testCreator, h.vault))
	_, err = h.engine.Vault(h.vault)
	require.ErrorIs(t, err, ErrVaultNotFound)
	vaults, err := h.engine.Vaults()
	require.NoError(t, err)
	require.Empty(t, vaults)
}

func TestAcknowledgeRewards(t *testing.T) {
	h := newHarness(testPolicy(1_000))
	h.create()
	_, err := h.engine.Wrap(WrapRequest{User: testUser, Vault: h.vault, Amount: 100_000})
	require.NoError(t, err)

	require.ErrorIs(t, h.engine.AcknowledgeRewards(testUser, h.vault, 10), ErrUnauthorized)
	require.ErrorIs(t, h.engine.AcknowledgeRewards(testRewardPool, h.vault, 540), ErrMathOverflow)

	require.NoError(t, h.engine.AcknowledgeRewards(testRewardPool, h.vault, 539))
	pending, err := h.engine.PendingFees(h.vault)
	require.NoError(t, err)
	require.Equal(t, uint64(700-539-60), pending)
}

func TestStoredVaultRoundTrip(t *testing.T) {
	h := newHarness(testPolicy(0))
	h.create()
	_, err := h.engine.RecordOraclePrice(testOracle, h.vault, OracleSample{Price: 10_100, Confidence: 7, Timestamp: h.clock.Unix()})
	require.NoError(t, err)

	v := h.load()
	require.NoError(t, h.engine.storeVault(v))
	again := h.load()
	require.Equal(t, v, again)
	sample, ok := again.Oracle.Latest()
	require.True(t, ok)
	require.Equal(t, uint64(7), sample.Confidence)
}
