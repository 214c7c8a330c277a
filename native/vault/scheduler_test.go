package vault

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func schedulerVault() *Vault {
	return &Vault{BackingRatio: DefaultBackingRatio, LastRebalance: 1_000, LastOracleUpdate: 1_000}
}

func TestShouldRebalanceStalenessBoundary(t *testing.T) {
	v := schedulerVault()
	sched := NewScheduler(v, testPolicy(0))

	due, err := sched.ShouldRebalance(1_000 + DefaultMaxRebalanceInterval)
	require.NoError(t, err)
	require.False(t, due)

	due, err = sched.ShouldRebalance(1_000 + DefaultMaxRebalanceInterval + 1)
	require.NoError(t, err)
	require.True(t, due)
}

func TestShouldRebalanceOnArbitrageSignal(t *testing.T) {
	v := schedulerVault()
	sched := NewScheduler(v, testPolicy(0))

	v.ArbitrageOpportunityBps = DefaultArbitrageThresholdBps
	due, err := sched.ShouldRebalance(1_001)
	require.NoError(t, err)
	require.False(t, due)

	v.ArbitrageOpportunityBps = DefaultArbitrageThresholdBps + 1
	due, err = sched.ShouldRebalance(1_001)
	require.NoError(t, err)
	require.True(t, due)
}

func TestShouldRebalanceOnDeviation(t *testing.T) {
	v := schedulerVault()
	sched := NewScheduler(v, testPolicy(0))

	v.Oracle.Record(OracleSample{Price: 10_200, Timestamp: 1_001})
	due, err := sched.ShouldRebalance(1_001)
	require.NoError(t, err)
	require.False(t, due, "exactly 200 bps does not trigger")

	v.Oracle.Record(OracleSample{Price: 10_204, Timestamp: 1_002})
	due, err = sched.ShouldRebalance(1_002)
	require.NoError(t, err)
	require.True(t, due)

	// The deviation trigger ignores the configurable arbitrage threshold.
	policy := testPolicy(0)
	policy.ArbitrageThresholdBps = 5_000
	due, err = NewScheduler(v, policy).ShouldRebalance(1_002)
	require.NoError(t, err)
	require.True(t, due)
}

func TestDeviation(t *testing.T) {
	d, err := Deviation(10_350, 10_000)
	require.NoError(t, err)
	require.Equal(t, uint64(350), d)

	d, err = Deviation(9_000, 10_000)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), d)

	_, err = Deviation(1, 0)
	require.ErrorIs(t, err, ErrInvalidBackingRatio)
}

func TestRebalanceResetsSignals(t *testing.T) {
	v := schedulerVault()
	v.ArbitrageOpportunityBps = 900
	v.PriceDeviation = 450
	v.Oracle.Record(OracleSample{Price: 10_450, Timestamp: 1_500})

	result, err := NewScheduler(v, testPolicy(0)).Rebalance(2_000)
	require.NoError(t, err)
	require.Equal(t, uint64(DefaultBackingRatio), result.PreviousRatio)
	require.Equal(t, uint64(10_450), result.NewRatio)
	require.Equal(t, uint64(10_450), v.BackingRatio)
	require.Equal(t, int64(2_000), v.LastRebalance)
	require.Equal(t, uint64(1), v.RebalanceCount)
	require.Zero(t, v.ArbitrageOpportunityBps)
	require.Zero(t, v.PriceDeviation)
}

func TestRebalanceCountOverflow(t *testing.T) {
	v := schedulerVault()
	v.RebalanceCount = ^uint64(0)
	_, err := NewScheduler(v, testPolicy(0)).Rebalance(2_000)
	require.ErrorIs(t, err, ErrMathOverflow)
	require.Equal(t, uint64(DefaultBackingRatio), v.BackingRatio)
}

func TestManualGateAndCountdowns(t *testing.T) {
	v := schedulerVault()
	sched := NewScheduler(v, testPolicy(0))

	require.False(t, sched.CanManualRebalance(1_000+DefaultOracleUpdateInterval))
	require.True(t, sched.CanManualRebalance(1_000+DefaultOracleUpdateInterval+1))

	require.Equal(t, DefaultOracleUpdateInterval-100, sched.OracleCountdown(1_100))
	require.Zero(t, sched.OracleCountdown(1_000+DefaultOracleUpdateInterval*3))
	require.Equal(t, DefaultMaxRebalanceInterval-100, sched.RebalanceCountdown(1_100))
	require.Zero(t, sched.RebalanceCountdown(1_000+DefaultMaxRebalanceInterval*2))
}
