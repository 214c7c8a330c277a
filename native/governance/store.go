package governance

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"riftvault/native/vault"
)

var (
	ErrUnauthorized     = errors.New("governance: caller is not an authority")
	ErrPolicyNotSet     = errors.New("governance: default policy not configured")
	ErrInvalidModule    = errors.New("governance: module name required")
	ErrLastAuthority    = errors.New("governance: cannot remove the last authority")
	ErrAlreadyBootstrap = errors.New("governance: already bootstrapped")
)

// State captures the subset of state manager capabilities required by the
// governance store.
type State interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVAppend(key []byte, value []byte) error
	KVRemove(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// Store is the governance view consumed by the vault engine: per-vault
// policies, the oracle allow-list, the authority set and module pauses.
// Proposal handling happens elsewhere; authorities apply approved changes
// directly.
type Store struct {
	state State
}

// NewStore binds the store to state.
func NewStore(state State) *Store {
	return &Store{state: state}
}

func (s *Store) withState() (State, error) {
	if s == nil || s.state == nil {
		return nil, fmt.Errorf("governance: state not configured")
	}
	return s.state, nil
}

// Bootstrap seeds the authority set and default policy. It only succeeds on
// an empty store.
func (s *Store) Bootstrap(authorities []common.Address, defaults vault.Policy) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	existing, err := s.Authorities()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return ErrAlreadyBootstrap
	}
	if len(authorities) == 0 {
		return fmt.Errorf("governance: at least one authority required")
	}
	if err := defaults.Validate(); err != nil {
		return err
	}
	for _, authority := range authorities {
		if err := state.KVAppend(authorityIndexKey, authority.Bytes()); err != nil {
			return err
		}
	}
	return s.putPolicy(defaultPolicyKey, defaults)
}

func (s *Store) requireAuthority(caller common.Address) error {
	ok, err := s.IsAuthority(caller)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller.Hex())
	}
	return nil
}

func (s *Store) putPolicy(key []byte, p vault.Policy) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	encoded, err := encodePolicy(p)
	if err != nil {
		return err
	}
	return state.KVPut(key, encoded)
}

func (s *Store) getPolicy(key []byte) (vault.Policy, bool, error) {
	state, err := s.withState()
	if err != nil {
		return vault.Policy{}, false, err
	}
	var raw []byte
	ok, err := state.KVGet(key, &raw)
	if err != nil || !ok || len(bytes.TrimSpace(raw)) == 0 {
		return vault.Policy{}, false, err
	}
	p, err := decodePolicy(raw)
	if err != nil {
		return vault.Policy{}, false, err
	}
	return p, true, nil
}

// DefaultPolicy returns the policy applied to vaults without an override.
func (s *Store) DefaultPolicy() (vault.Policy, error) {
	p, ok, err := s.getPolicy(defaultPolicyKey)
	if err != nil {
		return vault.Policy{}, err
	}
	if !ok {
		return vault.Policy{}, ErrPolicyNotSet
	}
	return p, nil
}

// VaultPolicy returns the override for addr, or the default policy.
func (s *Store) VaultPolicy(addr common.Address) (vault.Policy, error) {
	p, ok, err := s.getPolicy(vaultPolicyKey(addr))
	if err != nil {
		return vault.Policy{}, err
	}
	if ok {
		return p, nil
	}
	return s.DefaultPolicy()
}

// SetDefaultPolicy replaces the default policy.
func (s *Store) SetDefaultPolicy(caller common.Address, p vault.Policy) error {
	if err := s.requireAuthority(caller); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return s.putPolicy(defaultPolicyKey, p)
}

// SetVaultPolicy installs a per-vault override.
func (s *Store) SetVaultPolicy(caller, addr common.Address, p vault.Policy) error {
	if err := s.requireAuthority(caller); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return s.putPolicy(vaultPolicyKey(addr), p)
}

// ClearVaultPolicy drops the override so the vault follows the default.
func (s *Store) ClearVaultPolicy(caller, addr common.Address) error {
	if err := s.requireAuthority(caller); err != nil {
		return err
	}
	state, err := s.withState()
	if err != nil {
		return err
	}
	return state.KVDelete(vaultPolicyKey(addr))
}

func (s *Store) list(key []byte) ([]common.Address, error) {
	state, err := s.withState()
	if err != nil {
		return nil, err
	}
	var raw [][]byte
	if err := state.KVGetList(key, &raw); err != nil {
		return nil, err
	}
	out := make([]common.Address, 0, len(raw))
	for _, entry := range raw {
		out = append(out, common.BytesToAddress(entry))
	}
	return out, nil
}

func contains(list []common.Address, id common.Address) bool {
	for _, entry := range list {
		if entry == id {
			return true
		}
	}
	return false
}

// Authorities lists the governance authorities.
func (s *Store) Authorities() ([]common.Address, error) { return s.list(authorityIndexKey) }

// IsAuthority reports whether id may act for governance.
func (s *Store) IsAuthority(id common.Address) (bool, error) {
	list, err := s.Authorities()
	if err != nil {
		return false, err
	}
	return contains(list, id), nil
}

// AddAuthority grants id governance rights.
func (s *Store) AddAuthority(caller, id common.Address) error {
	if err := s.requireAuthority(caller); err != nil {
		return err
	}
	return s.state.KVAppend(authorityIndexKey, id.Bytes())
}

// RemoveAuthority revokes id. The last authority cannot be removed.
func (s *Store) RemoveAuthority(caller, id common.Address) error {
	if err := s.requireAuthority(caller); err != nil {
		return err
	}
	list, err := s.Authorities()
	if err != nil {
		return err
	}
	if len(list) == 1 && list[0] == id {
		return ErrLastAuthority
	}
	return s.state.KVRemove(authorityIndexKey, id.Bytes())
}

// Oracles lists the allow-listed oracle identities.
func (s *Store) Oracles() ([]common.Address, error) { return s.list(oracleIndexKey) }

// IsOracleAuthorized reports whether id may submit prices.
func (s *Store) IsOracleAuthorized(id common.Address) (bool, error) {
	list, err := s.Oracles()
	if err != nil {
		return false, err
	}
	return contains(list, id), nil
}

// AuthorizeOracle adds id to the allow-list.
func (s *Store) AuthorizeOracle(caller, id common.Address) error {
	if err := s.requireAuthority(caller); err != nil {
		return err
	}
	return s.state.KVAppend(oracleIndexKey, id.Bytes())
}

// RevokeOracle removes id from the allow-list.
func (s *Store) RevokeOracle(caller, id common.Address) error {
	if err := s.requireAuthority(caller); err != nil {
		return err
	}
	return s.state.KVRemove(oracleIndexKey, id.Bytes())
}

// SetModulePaused halts or resumes a native module.
func (s *Store) SetModulePaused(caller common.Address, module string, paused bool) error {
	if err := s.requireAuthority(caller); err != nil {
		return err
	}
	module = strings.ToLower(strings.TrimSpace(module))
	if module == "" {
		return ErrInvalidModule
	}
	if paused {
		return s.state.KVPut(modulePauseKey(module), true)
	}
	return s.state.KVDelete(modulePauseKey(module))
}

// IsPaused satisfies the native pause view. Lookup failures report the module
// as paused.
func (s *Store) IsPaused(module string) bool {
	state, err := s.withState()
	if err != nil {
		return true
	}
	module = strings.ToLower(strings.TrimSpace(module))
	var paused bool
	ok, err := state.KVGet(modulePauseKey(module), &paused)
	if err != nil {
		return true
	}
	return ok && paused
}
