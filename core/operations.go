package core

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"riftvault/native/buyback"
	"riftvault/native/governance"
	"riftvault/native/staking"
	"riftvault/native/vault"
)

// CreateVault registers a vault for the pair.
func (x *Executor) CreateVault(ctx context.Context, creator, underlying, wrapped common.Address, name string) (*vault.Vault, error) {
	var out *vault.Vault
	addr := vault.DeriveAddress(underlying, wrapped)
	err := x.Execute(ctx, "create_vault", addr, func(m *Modules) error {
		v, err := m.Vault.CreateVault(creator, underlying, wrapped, name)
		out = v
		return err
	})
	if err != nil {
		return nil, err
	}
	x.metrics.SetBackingRatio(out.Address.Hex(), out.BackingRatio)
	return out, nil
}

func (x *Executor) Wrap(ctx context.Context, req vault.WrapRequest) (*vault.WrapResult, error) {
	var out *vault.WrapResult
	err := x.Execute(ctx, "wrap", req.Vault, func(m *Modules) error {
		res, err := m.Vault.Wrap(req)
		out = res
		return err
	})
	if err != nil {
		return nil, err
	}
	x.recordSplit(req.Vault, out.Split)
	return out, nil
}

func (x *Executor) Unwrap(ctx context.Context, req vault.UnwrapRequest) (*vault.UnwrapResult, error) {
	var out *vault.UnwrapResult
	err := x.Execute(ctx, "unwrap", req.Vault, func(m *Modules) error {
		res, err := m.Vault.Unwrap(req)
		out = res
		return err
	})
	if err != nil {
		return nil, err
	}
	x.recordSplit(req.Vault, out.Split)
	return out, nil
}

// RecordOraclePrice submits a sample from an allow-listed oracle.
func (x *Executor) RecordOraclePrice(ctx context.Context, oracle, vaultAddr common.Address, sample vault.OracleSample) (*vault.OracleUpdate, error) {
	var out *vault.OracleUpdate
	err := x.Execute(ctx, "record_oracle_price", vaultAddr, func(m *Modules) error {
		res, err := m.Vault.RecordOraclePrice(oracle, vaultAddr, sample)
		out = res
		return err
	})
	if err != nil {
		return nil, err
	}
	if out.Rebalanced && out.Rebalance != nil {
		x.metrics.RecordRebalance(vaultAddr.Hex(), "oracle")
		x.metrics.SetBackingRatio(vaultAddr.Hex(), out.Rebalance.NewRatio)
	}
	return out, nil
}

func (x *Executor) ReportArbitrage(ctx context.Context, oracle, vaultAddr common.Address, bps uint64) error {
	return x.Execute(ctx, "report_arbitrage", vaultAddr, func(m *Modules) error {
		return m.Vault.ReportArbitrage(oracle, vaultAddr, bps)
	})
}

func (x *Executor) TriggerRebalance(ctx context.Context, caller, vaultAddr common.Address) (*vault.RebalanceResult, error) {
	var out *vault.RebalanceResult
	err := x.Execute(ctx, "trigger_rebalance", vaultAddr, func(m *Modules) error {
		res, err := m.Vault.TriggerRebalance(caller, vaultAddr)
		out = res
		return err
	})
	if err != nil {
		return nil, err
	}
	x.metrics.RecordRebalance(vaultAddr.Hex(), "manual")
	x.metrics.SetBackingRatio(vaultAddr.Hex(), out.NewRatio)
	return out, nil
}

func (x *Executor) Pause(ctx context.Context, caller, vaultAddr common.Address) error {
	return x.Execute(ctx, "pause", vaultAddr, func(m *Modules) error {
		return m.Vault.Pause(caller, vaultAddr)
	})
}

func (x *Executor) Unpause(ctx context.Context, caller, vaultAddr common.Address) error {
	return x.Execute(ctx, "unpause", vaultAddr, func(m *Modules) error {
		return m.Vault.Unpause(caller, vaultAddr)
	})
}

func (x *Executor) CloseVault(ctx context.Context, caller, vaultAddr common.Address) error {
	return x.Execute(ctx, "close_vault", vaultAddr, func(m *Modules) error {
		return m.Vault.CloseVault(caller, vaultAddr)
	})
}

// DistributeRewards marks amount of a vault's LP rewards as paid out by the
// staking pool and clears it from the vault's pending balance. Only a
// governance authority may release rewards.
func (x *Executor) DistributeRewards(ctx context.Context, caller, vaultAddr common.Address, amount uint64) error {
	return x.Execute(ctx, "distribute_rewards", vaultAddr, func(m *Modules) error {
		ok, err := m.Governance.IsAuthority(caller)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", governance.ErrUnauthorized, caller.Hex())
		}
		if err := m.Rewards.MarkDistributed(vaultAddr, amount); err != nil {
			return err
		}
		return m.Vault.AcknowledgeRewards(m.Rewards.Address(), vaultAddr, amount)
	})
}

// Governance mutations.

func (x *Executor) SetVaultPolicy(ctx context.Context, caller, vaultAddr common.Address, p vault.Policy) error {
	return x.Execute(ctx, "set_vault_policy", vaultAddr, func(m *Modules) error {
		return m.Governance.SetVaultPolicy(caller, vaultAddr, p)
	})
}

func (x *Executor) SetDefaultPolicy(ctx context.Context, caller common.Address, p vault.Policy) error {
	return x.Execute(ctx, "set_default_policy", common.Address{}, func(m *Modules) error {
		return m.Governance.SetDefaultPolicy(caller, p)
	})
}

func (x *Executor) AuthorizeOracle(ctx context.Context, caller, oracle common.Address) error {
	return x.Execute(ctx, "authorize_oracle", common.Address{}, func(m *Modules) error {
		return m.Governance.AuthorizeOracle(caller, oracle)
	})
}

func (x *Executor) RevokeOracle(ctx context.Context, caller, oracle common.Address) error {
	return x.Execute(ctx, "revoke_oracle", common.Address{}, func(m *Modules) error {
		return m.Governance.RevokeOracle(caller, oracle)
	})
}

func (x *Executor) SetModulePaused(ctx context.Context, caller common.Address, module string, paused bool) error {
	return x.Execute(ctx, "set_module_paused", common.Address{}, func(m *Modules) error {
		return m.Governance.SetModulePaused(caller, module, paused)
	})
}

// Queries.

func (x *Executor) Vault(addr common.Address) (*vault.Vault, error) {
	var out *vault.Vault
	err := x.View(func(m *Modules) error {
		v, err := m.Vault.Vault(addr)
		out = v
		return err
	})
	return out, err
}

func (x *Executor) Vaults() ([]*vault.Vault, error) {
	var out []*vault.Vault
	err := x.View(func(m *Modules) error {
		list, err := m.Vault.Vaults()
		out = list
		return err
	})
	return out, err
}

// VaultStatus bundles the read-only view of one vault.
type VaultStatus struct {
	Vault              *vault.Vault
	PendingFees        uint64
	OracleCountdown    int64
	RebalanceCountdown int64
	Rewards            staking.Totals
	Buyback            buyback.Totals
}

func (x *Executor) Status(addr common.Address) (*VaultStatus, error) {
	out := &VaultStatus{}
	err := x.View(func(m *Modules) error {
		var err error
		if out.Vault, err = m.Vault.Vault(addr); err != nil {
			return err
		}
		if out.PendingFees, err = m.Vault.PendingFees(addr); err != nil {
			return err
		}
		if out.OracleCountdown, err = m.Vault.OracleCountdown(addr); err != nil {
			return err
		}
		if out.RebalanceCountdown, err = m.Vault.RebalanceCountdown(addr); err != nil {
			return err
		}
		if out.Rewards, err = m.Rewards.Totals(addr); err != nil {
			return err
		}
		out.Buyback, err = m.Buyback.Totals(addr)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (x *Executor) PreviewWrap(addr common.Address, amount uint64) (vault.WrapQuote, error) {
	var out vault.WrapQuote
	err := x.View(func(m *Modules) error {
		q, err := m.Vault.PreviewWrap(addr, amount)
		out = q
		return err
	})
	return out, err
}

func (x *Executor) PreviewUnwrap(addr common.Address, amount uint64) (vault.UnwrapQuote, error) {
	var out vault.UnwrapQuote
	err := x.View(func(m *Modules) error {
		q, err := m.Vault.PreviewUnwrap(addr, amount)
		out = q
		return err
	})
	return out, err
}

func (x *Executor) Balance(asset, owner common.Address) (uint64, error) {
	var out uint64
	err := x.View(func(m *Modules) error {
		b, err := m.Bank.Balance(asset, owner)
		out = b
		return err
	})
	return out, err
}

func (x *Executor) Policy(addr common.Address) (vault.Policy, error) {
	var out vault.Policy
	err := x.View(func(m *Modules) error {
		p, err := m.Governance.VaultPolicy(addr)
		out = p
		return err
	})
	return out, err
}
