package vault

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
)

type storedSlot struct {
	Filled     bool
	Price      uint64
	Confidence uint64
	Timestamp  uint64
}

type storedVault struct {
	Address         [20]byte
	Creator         [20]byte
	UnderlyingAsset [20]byte
	WrappedAsset    [20]byte
	Name            string

	TotalWrapped       uint64
	TotalBurned        uint64
	TotalVolume24h     uint64
	VolumeWindowStart  uint64
	TotalFeesCollected uint64

	BackingRatio uint64
	OracleSlots  []storedSlot
	OracleCursor uint64

	LastOracleUpdate        uint64
	LastRebalance           uint64
	RebalanceCount          uint64
	ArbitrageOpportunityBps uint64
	PriceDeviation          uint64

	GuardBusy bool

	Paused         bool
	PauseTimestamp uint64

	RiftsTokensDistributed uint64
	RiftsTokensBurned      uint64
	PendingRewards         uint64

	FeesBurned     uint64
	FeesToPartner  uint64
	FeesToTreasury uint64

	CreatedAt    uint64
	LastActivity uint64

	DeferredBuyback uint64
}

func unixToStored(ts int64) uint64 {
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func storedToUnix(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("vault store: timestamp %d overflows int64", v)
	}
	return int64(v), nil
}

func toStoredVault(v *Vault) storedVault {
	stored := storedVault{
		Address:                 v.Address,
		Creator:                 v.Creator,
		UnderlyingAsset:         v.UnderlyingAsset,
		WrappedAsset:            v.WrappedAsset,
		Name:                    v.Name,
		TotalWrapped:            v.TotalWrapped,
		TotalBurned:             v.TotalBurned,
		TotalVolume24h:          v.TotalVolume24h,
		VolumeWindowStart:       unixToStored(v.VolumeWindowStart),
		TotalFeesCollected:      v.TotalFeesCollected,
		BackingRatio:            v.BackingRatio,
		OracleCursor:            uint64(v.Oracle.Cursor),
		LastOracleUpdate:        unixToStored(v.LastOracleUpdate),
		LastRebalance:           unixToStored(v.LastRebalance),
		RebalanceCount:          v.RebalanceCount,
		ArbitrageOpportunityBps: v.ArbitrageOpportunityBps,
		PriceDeviation:          v.PriceDeviation,
		GuardBusy:               v.Guard.Busy,
		Paused:                  v.Paused,
		PauseTimestamp:          unixToStored(v.PauseTimestamp),
		RiftsTokensDistributed:  v.RiftsTokensDistributed,
		RiftsTokensBurned:       v.RiftsTokensBurned,
		PendingRewards:          v.PendingRewards,
		FeesBurned:              v.FeesBurned,
		FeesToPartner:           v.FeesToPartner,
		FeesToTreasury:          v.FeesToTreasury,
		CreatedAt:               unixToStored(v.CreatedAt),
		LastActivity:            unixToStored(v.LastActivity),
		DeferredBuyback:         v.DeferredBuyback,
	}
	stored.OracleSlots = make([]storedSlot, OracleWindowSize)
	for i, slot := range v.Oracle.Slots {
		stored.OracleSlots[i] = storedSlot{
			Filled:     slot.Filled,
			Price:      slot.Sample.Price,
			Confidence: slot.Sample.Confidence,
			Timestamp:  unixToStored(slot.Sample.Timestamp),
		}
	}
	return stored
}

func fromStoredVault(stored *storedVault) (*Vault, error) {
	if stored == nil {
		return nil, fmt.Errorf("vault store: nil stored record")
	}
	if len(stored.OracleSlots) != OracleWindowSize {
		return nil, fmt.Errorf("vault store: expected %d oracle slots, got %d", OracleWindowSize, len(stored.OracleSlots))
	}
	if stored.OracleCursor >= OracleWindowSize {
		return nil, fmt.Errorf("vault store: oracle cursor %d out of range", stored.OracleCursor)
	}
	v := &Vault{
		Address:                 common.Address(stored.Address),
		Creator:                 common.Address(stored.Creator),
		UnderlyingAsset:         common.Address(stored.UnderlyingAsset),
		WrappedAsset:            common.Address(stored.WrappedAsset),
		Name:                    stored.Name,
		TotalWrapped:            stored.TotalWrapped,
		TotalBurned:             stored.TotalBurned,
		TotalVolume24h:          stored.TotalVolume24h,
		TotalFeesCollected:      stored.TotalFeesCollected,
		BackingRatio:            stored.BackingRatio,
		RebalanceCount:          stored.RebalanceCount,
		ArbitrageOpportunityBps: stored.ArbitrageOpportunityBps,
		PriceDeviation:          stored.PriceDeviation,
		Guard:                   ReentrancyGuard{Busy: stored.GuardBusy},
		Paused:                  stored.Paused,
		RiftsTokensDistributed:  stored.RiftsTokensDistributed,
		RiftsTokensBurned:       stored.RiftsTokensBurned,
		PendingRewards:          stored.PendingRewards,
		FeesBurned:              stored.FeesBurned,
		FeesToPartner:           stored.FeesToPartner,
		FeesToTreasury:          stored.FeesToTreasury,
		DeferredBuyback:         stored.DeferredBuyback,
	}
	v.Oracle.Cursor = uint8(stored.OracleCursor)
	for i, slot := range stored.OracleSlots {
		ts, err := storedToUnix(slot.Timestamp)
		if err != nil {
			return nil, err
		}
		v.Oracle.Slots[i] = OracleSlot{
			Filled: slot.Filled,
			Sample: OracleSample{Price: slot.Price, Confidence: slot.Confidence, Timestamp: ts},
		}
	}
	timestamps := []struct {
		dst *int64
		src uint64
	}{
		{&v.VolumeWindowStart, stored.VolumeWindowStart},
		{&v.LastOracleUpdate, stored.LastOracleUpdate},
		{&v.LastRebalance, stored.LastRebalance},
		{&v.PauseTimestamp, stored.PauseTimestamp},
		{&v.CreatedAt, stored.CreatedAt},
		{&v.LastActivity, stored.LastActivity},
	}
	for _, ts := range timestamps {
		value, err := storedToUnix(ts.src)
		if err != nil {
			return nil, err
		}
		*ts.dst = value
	}
	return v, nil
}

func (e *Engine) loadVault(addr common.Address) (*Vault, error) {
	if e.state == nil {
		return nil, errNilState
	}
	var stored storedVault
	ok, err := e.state.KVGet(vaultRecordKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fail("engine", CodeVaultNotFound, "%s", addr.Hex())
	}
	return fromStoredVault(&stored)
}

func (e *Engine) storeVault(v *Vault) error {
	if e.state == nil {
		return errNilState
	}
	return e.state.KVPut(vaultRecordKey(v.Address), toStoredVault(v))
}

func (e *Engine) vaultExists(addr common.Address) (bool, error) {
	if e.state == nil {
		return false, errNilState
	}
	return e.state.KVGet(vaultRecordKey(addr), nil)
}

func (e *Engine) indexVault(addr common.Address) error {
	return e.state.KVAppend(vaultIndexKey, addr.Bytes())
}

func (e *Engine) unindexVault(addr common.Address) error {
	return e.state.KVRemove(vaultIndexKey, addr.Bytes())
}

func (e *Engine) vaultIndex() ([]common.Address, error) {
	if e.state == nil {
		return nil, errNilState
	}
	var raw [][]byte
	if err := e.state.KVGetList(vaultIndexKey, &raw); err != nil {
		return nil, err
	}
	out := make([]common.Address, 0, len(raw))
	for _, entry := range raw {
		out = append(out, common.BytesToAddress(entry))
	}
	return out, nil
}
