package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"riftvault/native/governance"
	"riftvault/native/vault"
)

var ErrGenesisApplied = errors.New("core: genesis already applied")

// GenesisBalance seeds an account balance.
type GenesisBalance struct {
	Asset  common.Address
	Owner  common.Address
	Amount uint64
}

// GenesisVault registers a vault at genesis.
type GenesisVault struct {
	Creator    common.Address
	Underlying common.Address
	Wrapped    common.Address
	Name       string
	Policy     *vault.Policy
}

// Genesis is the initial state of a fresh store.
type Genesis struct {
	Authorities   []common.Address
	Oracles       []common.Address
	DefaultPolicy vault.Policy
	PausedModules []string
	Balances      []GenesisBalance
	Vaults        []GenesisVault
}

// ApplyGenesis seeds an empty store in a single operation. A store that has
// already been bootstrapped is rejected with ErrGenesisApplied.
func (x *Executor) ApplyGenesis(ctx context.Context, g Genesis) error {
	if len(g.Authorities) == 0 {
		return fmt.Errorf("core: genesis requires an authority")
	}
	admin := g.Authorities[0]
	return x.Execute(ctx, "genesis", common.Address{}, func(m *Modules) error {
		if err := m.Governance.Bootstrap(g.Authorities, g.DefaultPolicy); err != nil {
			if errors.Is(err, governance.ErrAlreadyBootstrap) {
				return ErrGenesisApplied
			}
			return err
		}
		for _, oracle := range g.Oracles {
			if err := m.Governance.AuthorizeOracle(admin, oracle); err != nil {
				return err
			}
		}
		for _, bal := range g.Balances {
			if err := m.Bank.Credit(bal.Asset, bal.Owner, bal.Amount); err != nil {
				return fmt.Errorf("core: genesis balance %s: %w", bal.Owner.Hex(), err)
			}
		}
		for _, spec := range g.Vaults {
			creator := spec.Creator
			if creator == (common.Address{}) {
				creator = admin
			}
			if spec.Policy != nil {
				addr := vault.DeriveAddress(spec.Underlying, spec.Wrapped)
				if err := m.Governance.SetVaultPolicy(admin, addr, *spec.Policy); err != nil {
					return err
				}
			}
			if _, err := m.Vault.CreateVault(creator, spec.Underlying, spec.Wrapped, spec.Name); err != nil {
				return fmt.Errorf("core: genesis vault %q: %w", spec.Name, err)
			}
		}
		// Module pauses go last; CreateVault honours them.
		for _, module := range g.PausedModules {
			if err := m.Governance.SetModulePaused(admin, module, true); err != nil {
				return err
			}
		}
		return nil
	})
}
