package buyback

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	nativecommon "riftvault/native/common"
	"riftvault/native/vault"
)

var (
	ErrInvalidAmount   = errors.New("buyback: amount must be positive")
	ErrNotConfigured   = errors.New("buyback: executor not configured")
	ErrZeroFill        = errors.New("buyback: order filled zero reward tokens")
	ErrRateUnavailable = errors.New("buyback: rate overflow")
)

var (
	quotaPrefix  = []byte("buyback/quota/")
	totalsPrefix = []byte("buyback/totals/")
)

// Bank is the token ledger used to settle orders.
type Bank interface {
	Transfer(asset, from, to common.Address, amount uint64) error
	Mint(asset, to common.Address, amount uint64) error
}

// State persists per-vault quota counters and totals.
type State interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Config describes the fixed-rate swap venue used for buybacks.
type Config struct {
	// RewardAsset is minted to RewardSink for every filled order.
	RewardAsset common.Address
	RewardSink  common.Address
	// Reserve receives the sold fee asset.
	Reserve common.Address
	// RateBps is reward units per 10000 fee units.
	RateBps uint64
	// Quota bounds orders per vault per epoch.
	Quota nativecommon.Quota
}

// Validate checks the venue parameters.
func (c Config) Validate() error {
	if c.RewardAsset == (common.Address{}) || c.RewardSink == (common.Address{}) || c.Reserve == (common.Address{}) {
		return fmt.Errorf("%w: reward asset, sink and reserve required", ErrNotConfigured)
	}
	if c.RateBps == 0 {
		return fmt.Errorf("%w: rate must be positive", ErrNotConfigured)
	}
	return nil
}

// Totals is the lifetime volume executed for a vault.
type Totals struct {
	Sold   uint64
	Bought uint64
	Orders uint64
}

// Executor validates and settles buyback orders coming from vault fee
// cascades.
type Executor struct {
	bank  Bank
	state State
	cfg   Config
	nowFn func() time.Time
}

// NewExecutor binds the executor to its ledger, state and venue config.
func NewExecutor(bank Bank, state State, cfg Config) *Executor {
	return &Executor{bank: bank, state: state, cfg: cfg, nowFn: time.Now}
}

// SetNowFunc overrides the clock used for quota epochs.
func (e *Executor) SetNowFunc(now func() time.Time) {
	if e == nil || now == nil {
		return
	}
	e.nowFn = now
}

func keyFor(prefix []byte, vault common.Address) []byte {
	buf := make([]byte, len(prefix)+common.AddressLength)
	copy(buf, prefix)
	copy(buf[len(prefix):], vault.Bytes())
	return buf
}

// Quote returns the reward tokens an order of amount would receive.
func (e *Executor) Quote(amount uint64) (uint64, error) {
	z, overflow := new(uint256.Int).MulDivOverflow(uint256.NewInt(amount), uint256.NewInt(e.cfg.RateBps), uint256.NewInt(vault.BasisPoints))
	if overflow || !z.IsUint64() {
		return 0, ErrRateUnavailable
	}
	return z.Uint64(), nil
}

// ExecuteBuyback sells order.Amount of the fee asset held by the vault into
// the reserve and mints the reward asset to the sink.
func (e *Executor) ExecuteBuyback(order vault.BuybackOrder) (uint64, error) {
	if e == nil || e.bank == nil || e.state == nil {
		return 0, ErrNotConfigured
	}
	if err := e.cfg.Validate(); err != nil {
		return 0, err
	}
	if order.Amount == 0 {
		return 0, ErrInvalidAmount
	}
	var usage nativecommon.QuotaNow
	if _, err := e.state.KVGet(keyFor(quotaPrefix, order.Vault), &usage); err != nil {
		return 0, err
	}
	epoch := e.cfg.Quota.EpochOf(e.nowFn().UTC().Unix())
	next, err := nativecommon.CheckQuota(e.cfg.Quota, epoch, usage, 1, order.Amount)
	if err != nil {
		return 0, fmt.Errorf("buyback: vault %s: %w", order.Vault.Hex(), err)
	}
	bought, err := e.Quote(order.Amount)
	if err != nil {
		return 0, err
	}
	if bought == 0 {
		return 0, ErrZeroFill
	}
	if err := e.bank.Transfer(order.Asset, order.Vault, e.cfg.Reserve, order.Amount); err != nil {
		return 0, fmt.Errorf("buyback: settle sell leg: %w", err)
	}
	if err := e.bank.Mint(e.cfg.RewardAsset, e.cfg.RewardSink, bought); err != nil {
		return 0, fmt.Errorf("buyback: settle buy leg: %w", err)
	}
	if err := e.state.KVPut(keyFor(quotaPrefix, order.Vault), next); err != nil {
		return 0, err
	}
	totals, err := e.Totals(order.Vault)
	if err != nil {
		return 0, err
	}
	totals.Sold += order.Amount
	totals.Bought += bought
	totals.Orders++
	if err := e.state.KVPut(keyFor(totalsPrefix, order.Vault), totals); err != nil {
		return 0, err
	}
	return bought, nil
}

// Totals returns the lifetime buyback volume for vault.
func (e *Executor) Totals(vaultAddr common.Address) (Totals, error) {
	if e == nil || e.state == nil {
		return Totals{}, ErrNotConfigured
	}
	var totals Totals
	if _, err := e.state.KVGet(keyFor(totalsPrefix, vaultAddr), &totals); err != nil {
		return Totals{}, err
	}
	return totals, nil
}
