package vault

// DeviationTriggerBps is the oracle/ratio divergence that forces a rebalance
// independently of the governed arbitrage threshold.
const DeviationTriggerBps uint64 = 200

// Deviation returns |oracle - ratio| * 10000 / ratio.
func Deviation(oracle, ratio uint64) (uint64, error) {
	if ratio == 0 {
		return 0, fail("scheduler", CodeInvalidBackingRatio, "")
	}
	return mulDiv("scheduler", absDiff(oracle, ratio), BasisPoints, ratio)
}

// Scheduler evaluates rebalance triggers for one vault under one policy.
type Scheduler struct {
	vault  *Vault
	policy Policy
}

// NewScheduler binds the scheduler to a vault record and its current policy.
func NewScheduler(v *Vault, policy Policy) Scheduler {
	return Scheduler{vault: v, policy: policy}
}

// ShouldRebalance reports whether any automatic trigger holds at now.
func (s Scheduler) ShouldRebalance(now int64) (bool, error) {
	v := s.vault
	if now-v.LastRebalance > s.policy.MaxRebalanceInterval {
		return true, nil
	}
	if v.ArbitrageOpportunityBps > s.policy.ArbitrageThresholdBps {
		return true, nil
	}
	avg, err := v.Oracle.Average(v.BackingRatio)
	if err != nil {
		return false, err
	}
	deviation, err := Deviation(avg, v.BackingRatio)
	if err != nil {
		return false, err
	}
	return deviation > DeviationTriggerBps, nil
}

// CanManualRebalance reports whether the oracle cadence has lapsed so that
// anyone may force a rebalance.
func (s Scheduler) CanManualRebalance(now int64) bool {
	return now-s.vault.LastOracleUpdate > s.policy.OracleUpdateInterval
}

// Rebalance overwrites the backing ratio with the oracle average. It is the
// only mutation of BackingRatio after creation.
func (s Scheduler) Rebalance(now int64) (RebalanceResult, error) {
	v := s.vault
	avg, err := v.Oracle.Average(v.BackingRatio)
	if err != nil {
		return RebalanceResult{}, err
	}
	if err := ValidateBackingRatio(avg); err != nil {
		return RebalanceResult{}, err
	}
	count, err := checkedAdd("scheduler", v.RebalanceCount, 1)
	if err != nil {
		return RebalanceResult{}, err
	}
	result := RebalanceResult{PreviousRatio: v.BackingRatio, NewRatio: avg, Count: count, Timestamp: now}
	v.BackingRatio = avg
	v.LastRebalance = now
	v.RebalanceCount = count
	v.ArbitrageOpportunityBps = 0
	v.PriceDeviation = 0
	return result, nil
}

// OracleCountdown returns the seconds until the next oracle update is due.
func (s Scheduler) OracleCountdown(now int64) int64 {
	return clampCountdown(s.vault.LastOracleUpdate + s.policy.OracleUpdateInterval - now)
}

// RebalanceCountdown returns the seconds until the staleness trigger fires.
func (s Scheduler) RebalanceCountdown(now int64) int64 {
	return clampCountdown(s.vault.LastRebalance + s.policy.MaxRebalanceInterval - now)
}

func clampCountdown(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
