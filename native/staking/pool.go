package staking

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

var (
	ErrInvalidAmount   = errors.New("staking: amount must be positive")
	ErrOverDistributed = errors.New("staking: distribution exceeds deposits")
	ErrOverflow        = errors.New("staking: counter overflow")
)

var poolTotalsPrefix = []byte("staking/pool/")

// ModuleAddress is the identity the pool uses when calling back into vaults.
var ModuleAddress = common.BytesToAddress(crypto.Keccak256([]byte("riftvault/staking"))[12:])

// State is the subset of the state manager the pool needs.
type State interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Totals is the per-vault reward ledger of the pool.
type Totals struct {
	Deposited   uint64
	Distributed uint64
	Deposits    uint64
}

// Undistributed returns the rewards not yet handed to stakers.
func (t Totals) Undistributed() uint64 {
	if t.Distributed >= t.Deposited {
		return 0
	}
	return t.Deposited - t.Distributed
}

// Pool receives the LP share of vault buybacks. Reward-per-share accrual is
// handled by the staking service that drains it.
type Pool struct {
	state State
}

// NewPool binds the pool to state.
func NewPool(state State) *Pool {
	return &Pool{state: state}
}

// Address returns the pool identity.
func (p *Pool) Address() common.Address { return ModuleAddress }

func totalsKey(vault common.Address) []byte {
	buf := make([]byte, len(poolTotalsPrefix)+common.AddressLength)
	copy(buf, poolTotalsPrefix)
	copy(buf[len(poolTotalsPrefix):], vault.Bytes())
	return buf
}

// Totals returns the reward ledger for vault.
func (p *Pool) Totals(vault common.Address) (Totals, error) {
	if p == nil || p.state == nil {
		return Totals{}, fmt.Errorf("staking: state not configured")
	}
	var totals Totals
	if _, err := p.state.KVGet(totalsKey(vault), &totals); err != nil {
		return Totals{}, err
	}
	return totals, nil
}

func add(a, b uint64) (uint64, error) {
	z, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !z.IsUint64() {
		return 0, ErrOverflow
	}
	return z.Uint64(), nil
}

// DepositRewards records amount of LP rewards from vault.
func (p *Pool) DepositRewards(vault common.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	totals, err := p.Totals(vault)
	if err != nil {
		return err
	}
	if totals.Deposited, err = add(totals.Deposited, amount); err != nil {
		return err
	}
	if totals.Deposits, err = add(totals.Deposits, 1); err != nil {
		return err
	}
	return p.state.KVPut(totalsKey(vault), totals)
}

// MarkDistributed records that amount of vault rewards reached stakers.
func (p *Pool) MarkDistributed(vault common.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	totals, err := p.Totals(vault)
	if err != nil {
		return err
	}
	if amount > totals.Undistributed() {
		return fmt.Errorf("%w: %d requested, %d available", ErrOverDistributed, amount, totals.Undistributed())
	}
	totals.Distributed += amount
	return p.state.KVPut(totalsKey(vault), totals)
}
