package bank

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	ErrInvalidAmount       = errors.New("bank: amount must be positive")
	ErrOverflow            = errors.New("bank: balance overflow")
	ErrZeroAddress         = errors.New("bank: zero address")
)

var (
	balancePrefix = []byte("bank/balance/")
	supplyPrefix  = []byte("bank/supply/")
)

// State is the subset of the state manager the ledger needs.
type State interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Ledger tracks multi-asset balances and supply. Assets are identified by
// their token address.
type Ledger struct {
	state State
}

// NewLedger binds a ledger to state.
func NewLedger(state State) *Ledger {
	return &Ledger{state: state}
}

func balanceKey(asset, owner common.Address) []byte {
	buf := make([]byte, 0, len(balancePrefix)+2*common.AddressLength)
	buf = append(buf, balancePrefix...)
	buf = append(buf, asset.Bytes()...)
	return append(buf, owner.Bytes()...)
}

func supplyKey(asset common.Address) []byte {
	buf := make([]byte, 0, len(supplyPrefix)+common.AddressLength)
	buf = append(buf, supplyPrefix...)
	return append(buf, asset.Bytes()...)
}

func (l *Ledger) withState() (State, error) {
	if l == nil || l.state == nil {
		return nil, fmt.Errorf("bank: state not configured")
	}
	return l.state, nil
}

func (l *Ledger) load(key []byte) (uint64, error) {
	state, err := l.withState()
	if err != nil {
		return 0, err
	}
	var value uint64
	if _, err := state.KVGet(key, &value); err != nil {
		return 0, err
	}
	return value, nil
}

func (l *Ledger) store(key []byte, value uint64) error {
	state, err := l.withState()
	if err != nil {
		return err
	}
	return state.KVPut(key, value)
}

func add(a, b uint64) (uint64, error) {
	z, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !z.IsUint64() {
		return 0, ErrOverflow
	}
	return z.Uint64(), nil
}

// Balance returns the holdings of owner in asset.
func (l *Ledger) Balance(asset, owner common.Address) (uint64, error) {
	return l.load(balanceKey(asset, owner))
}

// Supply returns the minted minus burned amount of asset.
func (l *Ledger) Supply(asset common.Address) (uint64, error) {
	return l.load(supplyKey(asset))
}

// Transfer moves amount of asset between accounts.
func (l *Ledger) Transfer(asset, from, to common.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if from == to {
		return nil
	}
	fromBal, err := l.Balance(asset, from)
	if err != nil {
		return err
	}
	if fromBal < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientBalance, from.Hex(), fromBal, amount)
	}
	toBal, err := l.Balance(asset, to)
	if err != nil {
		return err
	}
	next, err := add(toBal, amount)
	if err != nil {
		return err
	}
	if err := l.store(balanceKey(asset, from), fromBal-amount); err != nil {
		return err
	}
	return l.store(balanceKey(asset, to), next)
}

// Mint credits new units of asset to to.
func (l *Ledger) Mint(asset, to common.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	supply, err := l.Supply(asset)
	if err != nil {
		return err
	}
	nextSupply, err := add(supply, amount)
	if err != nil {
		return err
	}
	bal, err := l.Balance(asset, to)
	if err != nil {
		return err
	}
	nextBal, err := add(bal, amount)
	if err != nil {
		return err
	}
	if err := l.store(supplyKey(asset), nextSupply); err != nil {
		return err
	}
	return l.store(balanceKey(asset, to), nextBal)
}

// Burn destroys amount of asset held by from.
func (l *Ledger) Burn(asset, from common.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	bal, err := l.Balance(asset, from)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientBalance, from.Hex(), bal, amount)
	}
	supply, err := l.Supply(asset)
	if err != nil {
		return err
	}
	if err := l.store(balanceKey(asset, from), bal-amount); err != nil {
		return err
	}
	// Genesis credits bypass Mint, so supply floors at zero.
	if supply < amount {
		supply = amount
	}
	return l.store(supplyKey(asset), supply-amount)
}

// Credit seeds a balance without touching supply. Genesis allocation only.
func (l *Ledger) Credit(asset, owner common.Address, amount uint64) error {
	bal, err := l.Balance(asset, owner)
	if err != nil {
		return err
	}
	next, err := add(bal, amount)
	if err != nil {
		return err
	}
	return l.store(balanceKey(asset, owner), next)
}
