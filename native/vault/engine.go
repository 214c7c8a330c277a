package vault

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "riftvault/native/common"
)

const moduleName = "vault"

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVAppend(key []byte, value []byte) error
	KVRemove(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// Bank moves the underlying and wrapped tokens.
type Bank interface {
	Balance(asset, owner common.Address) (uint64, error)
	Transfer(asset, from, to common.Address, amount uint64) error
	Mint(asset, to common.Address, amount uint64) error
	Burn(asset, from common.Address, amount uint64) error
}

// Governance supplies governed parameters and caller permissions.
type Governance interface {
	VaultPolicy(vault common.Address) (Policy, error)
	IsOracleAuthorized(id common.Address) (bool, error)
	IsAuthority(id common.Address) (bool, error)
}

// SwapExecutor converts the buyback share into reward tokens and reports the
// amount bought.
type SwapExecutor interface {
	ExecuteBuyback(order BuybackOrder) (uint64, error)
}

// RewardPool receives the LP share of every buyback.
type RewardPool interface {
	Address() common.Address
	DepositRewards(vault common.Address, amount uint64) error
}

// Engine applies vault operations against the bound state. The host binds a
// fresh state per operation and discards it when an operation fails.
type Engine struct {
	state      engineState
	bank       Bank
	governance Governance
	swap       SwapExecutor
	rewards    RewardPool
	pauses     nativecommon.PauseView
	nowFn      func() time.Time
	logger     *slog.Logger
}

// NewEngine constructs an engine with no collaborators bound.
func NewEngine() *Engine {
	return &Engine{
		nowFn:  time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetBank(bank Bank) { e.bank = bank }

func (e *Engine) SetGovernance(gov Governance) { e.governance = gov }

func (e *Engine) SetSwapExecutor(swap SwapExecutor) { e.swap = swap }

func (e *Engine) SetRewardPool(pool RewardPool) { e.rewards = pool }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the clock, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if e == nil || now == nil {
		return
	}
	e.nowFn = now
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil || logger == nil {
		return
	}
	e.logger = logger
}

func (e *Engine) now() int64 { return e.nowFn().UTC().Unix() }

func (e *Engine) ready() error {
	if e.state == nil {
		return errNilState
	}
	if e.bank == nil {
		return fmt.Errorf("vault engine: bank not configured")
	}
	if e.governance == nil {
		return fmt.Errorf("vault engine: governance not configured")
	}
	return nil
}

func (e *Engine) policy(addr common.Address) (Policy, error) {
	policy, err := e.governance.VaultPolicy(addr)
	if err != nil {
		return Policy{}, fmt.Errorf("vault engine: load policy: %w", err)
	}
	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

// checkActive rejects operations on a re-entered or paused vault.
func (e *Engine) checkActive(v *Vault) error {
	if err := v.Guard.Check(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if v.Paused {
		return fail("engine", CodeRiftPaused, "%s", v.Address.Hex())
	}
	return nil
}

func (e *Engine) requireAuthority(caller common.Address) error {
	ok, err := e.governance.IsAuthority(caller)
	if err != nil {
		return fmt.Errorf("vault engine: authority lookup: %w", err)
	}
	if !ok {
		return fail("engine", CodeUnauthorized, "%s", caller.Hex())
	}
	return nil
}

func (e *Engine) requireOracle(caller common.Address) error {
	ok, err := e.governance.IsOracleAuthorized(caller)
	if err != nil {
		return fmt.Errorf("vault engine: oracle lookup: %w", err)
	}
	if !ok {
		return fail("oracle", CodeUnauthorizedOracle, "%s", caller.Hex())
	}
	return nil
}

// CreateVault registers a new underlying/wrapped pair at parity.
func (e *Engine) CreateVault(creator, underlying, wrapped common.Address, name string) (*Vault, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if underlying == (common.Address{}) || wrapped == (common.Address{}) || underlying == wrapped {
		return nil, fail("engine", CodeInvalidAsset, "underlying %s wrapped %s", underlying.Hex(), wrapped.Hex())
	}
	label, err := validateName(name)
	if err != nil {
		return nil, err
	}
	addr := DeriveAddress(underlying, wrapped)
	exists, err := e.vaultExists(addr)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fail("engine", CodeVaultExists, "%s", addr.Hex())
	}
	if _, err := e.policy(addr); err != nil {
		return nil, err
	}
	now := e.now()
	v := &Vault{
		Address:           addr,
		Creator:           creator,
		UnderlyingAsset:   underlying,
		WrappedAsset:      wrapped,
		Name:              label,
		BackingRatio:      DefaultBackingRatio,
		VolumeWindowStart: now,
		LastOracleUpdate:  now,
		LastRebalance:     now,
		CreatedAt:         now,
		LastActivity:      now,
	}
	if err := e.storeVault(v); err != nil {
		return nil, err
	}
	if err := e.indexVault(addr); err != nil {
		return nil, err
	}
	e.logger.Info("vault created", "vault", addr.Hex(), "name", label, "creator", creator.Hex())
	return v.Clone(), nil
}

// Wrap deposits underlying and mints wrapped tokens. Ledger totals and the
// Busy guard are written before any token moves; the fee cascade runs last.
func (e *Engine) Wrap(req WrapRequest) (*WrapResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	v, err := e.loadVault(req.Vault)
	if err != nil {
		return nil, err
	}
	if err := e.checkActive(v); err != nil {
		return nil, err
	}
	policy, err := e.policy(v.Address)
	if err != nil {
		return nil, err
	}
	now := e.now()
	quote, err := QuoteWrap(req.Amount, v.BackingRatio)
	if err != nil {
		return nil, err
	}
	if err := applyWrap(v, quote, now); err != nil {
		return nil, err
	}
	if err := v.Guard.Acquire(); err != nil {
		return nil, err
	}
	if err := e.storeVault(v); err != nil {
		return nil, err
	}

	if err := e.bank.Transfer(v.UnderlyingAsset, req.User, v.Address, quote.Amount); err != nil {
		return nil, fmt.Errorf("vault ledger: deposit: %w", err)
	}
	if err := e.bank.Mint(v.WrappedAsset, req.User, quote.Minted); err != nil {
		return nil, fmt.Errorf("vault ledger: mint: %w", err)
	}
	split, err := e.distributeFee(v, policy, quote.Fee, req.MinBuybackOut)
	if err != nil {
		return nil, err
	}

	v.Guard.Release()
	if err := e.storeVault(v); err != nil {
		return nil, err
	}
	e.logger.Debug("vault wrap", "vault", v.Address.Hex(), "user", req.User.Hex(),
		"amount", quote.Amount, "minted", quote.Minted, "fee", quote.Fee)
	return &WrapResult{Minted: quote.Minted, Fee: quote.Fee, Split: split}, nil
}

// Unwrap burns wrapped tokens and returns underlying net of the fee.
func (e *Engine) Unwrap(req UnwrapRequest) (*UnwrapResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	v, err := e.loadVault(req.Vault)
	if err != nil {
		return nil, err
	}
	if err := e.checkActive(v); err != nil {
		return nil, err
	}
	policy, err := e.policy(v.Address)
	if err != nil {
		return nil, err
	}
	now := e.now()
	quote, err := QuoteUnwrap(req.Amount, v.BackingRatio)
	if err != nil {
		return nil, err
	}
	reserves, err := e.bank.Balance(v.UnderlyingAsset, v.Address)
	if err != nil {
		return nil, fmt.Errorf("vault ledger: reserves: %w", err)
	}
	if reserves < quote.Underlying {
		return nil, fail("ledger", CodeInsufficientReserves, "need %d have %d", quote.Underlying, reserves)
	}
	if err := applyUnwrap(v, quote, now); err != nil {
		return nil, err
	}
	if err := v.Guard.Acquire(); err != nil {
		return nil, err
	}
	if err := e.storeVault(v); err != nil {
		return nil, err
	}

	if err := e.bank.Burn(v.WrappedAsset, req.User, quote.Wrapped); err != nil {
		return nil, fmt.Errorf("vault ledger: burn: %w", err)
	}
	if err := e.bank.Transfer(v.UnderlyingAsset, v.Address, req.User, quote.Returned); err != nil {
		return nil, fmt.Errorf("vault ledger: redeem: %w", err)
	}
	split, err := e.distributeFee(v, policy, quote.Fee, req.MinBuybackOut)
	if err != nil {
		return nil, err
	}

	v.Guard.Release()
	if err := e.storeVault(v); err != nil {
		return nil, err
	}
	e.logger.Debug("vault unwrap", "vault", v.Address.Hex(), "user", req.User.Hex(),
		"wrapped", quote.Wrapped, "returned", quote.Returned, "fee", quote.Fee)
	return &UnwrapResult{Underlying: quote.Underlying, Returned: quote.Returned, Fee: quote.Fee, Split: split}, nil
}

// RecordOraclePrice accepts a sample from an allow-listed oracle and
// rebalances when a trigger fires. Samples are still recorded while the vault
// is paused but the rebalance is deferred.
func (e *Engine) RecordOraclePrice(oracle, vaultAddr common.Address, sample OracleSample) (*OracleUpdate, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.requireOracle(oracle); err != nil {
		return nil, err
	}
	v, err := e.loadVault(vaultAddr)
	if err != nil {
		return nil, err
	}
	if err := v.Guard.Check(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	now := e.now()
	if err := validateSample(sample, now); err != nil {
		return nil, err
	}
	policy, err := e.policy(v.Address)
	if err != nil {
		return nil, err
	}

	v.Oracle.Record(sample)
	v.LastOracleUpdate = now
	v.LastActivity = now
	avg, err := v.Oracle.Average(v.BackingRatio)
	if err != nil {
		return nil, err
	}
	deviation, err := Deviation(avg, v.BackingRatio)
	if err != nil {
		return nil, err
	}
	v.PriceDeviation = deviation
	update := &OracleUpdate{Average: avg, Deviation: deviation}

	sched := NewScheduler(v, policy)
	due, err := sched.ShouldRebalance(now)
	if err != nil {
		return nil, err
	}
	if due && !v.Paused {
		result, err := sched.Rebalance(now)
		if err != nil {
			return nil, err
		}
		update.Rebalanced = true
		update.Rebalance = &result
		e.logger.Info("vault rebalanced", "vault", v.Address.Hex(), "trigger", "oracle",
			"previous_ratio", result.PreviousRatio, "ratio", result.NewRatio)
	}
	if err := e.storeVault(v); err != nil {
		return nil, err
	}
	return update, nil
}

// ReportArbitrage records the externally computed arbitrage signal.
func (e *Engine) ReportArbitrage(oracle, vaultAddr common.Address, bps uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireOracle(oracle); err != nil {
		return err
	}
	v, err := e.loadVault(vaultAddr)
	if err != nil {
		return err
	}
	if err := v.Guard.Check(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if bps > BasisPoints {
		return fail("scheduler", CodeInvalidAmount, "arbitrage %d bps exceeds 100%%", bps)
	}
	v.ArbitrageOpportunityBps = bps
	v.LastActivity = e.now()
	return e.storeVault(v)
}

// TriggerRebalance lets any caller rebalance once a trigger fires or the
// oracle cadence has lapsed.
func (e *Engine) TriggerRebalance(caller, vaultAddr common.Address) (*RebalanceResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	v, err := e.loadVault(vaultAddr)
	if err != nil {
		return nil, err
	}
	if err := e.checkActive(v); err != nil {
		return nil, err
	}
	policy, err := e.policy(v.Address)
	if err != nil {
		return nil, err
	}
	now := e.now()
	sched := NewScheduler(v, policy)
	due, err := sched.ShouldRebalance(now)
	if err != nil {
		return nil, err
	}
	if !due && !sched.CanManualRebalance(now) {
		return nil, fail("scheduler", CodeRebalanceNotDue, "next oracle update in %ds", sched.OracleCountdown(now))
	}
	result, err := sched.Rebalance(now)
	if err != nil {
		return nil, err
	}
	v.LastActivity = now
	if err := e.storeVault(v); err != nil {
		return nil, err
	}
	e.logger.Info("vault rebalanced", "vault", v.Address.Hex(), "trigger", "manual", "caller", caller.Hex(),
		"previous_ratio", result.PreviousRatio, "ratio", result.NewRatio)
	return &result, nil
}

// Pause halts wrap, unwrap and rebalancing for the vault.
func (e *Engine) Pause(caller, vaultAddr common.Address) error {
	return e.setPaused(caller, vaultAddr, true)
}

// Unpause resumes a paused vault.
func (e *Engine) Unpause(caller, vaultAddr common.Address) error {
	return e.setPaused(caller, vaultAddr, false)
}

func (e *Engine) setPaused(caller, vaultAddr common.Address, paused bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireAuthority(caller); err != nil {
		return err
	}
	v, err := e.loadVault(vaultAddr)
	if err != nil {
		return err
	}
	if err := v.Guard.Check(); err != nil {
		return err
	}
	now := e.now()
	v.Paused = paused
	if paused {
		v.PauseTimestamp = now
	} else {
		v.PauseTimestamp = 0
	}
	v.LastActivity = now
	if err := e.storeVault(v); err != nil {
		return err
	}
	e.logger.Info("vault pause toggled", "vault", v.Address.Hex(), "paused", paused, "caller", caller.Hex())
	return nil
}

// CloseVault removes an empty vault. Residual underlying dust is swept to the
// treasury wallet.
func (e *Engine) CloseVault(caller, vaultAddr common.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	v, err := e.loadVault(vaultAddr)
	if err != nil {
		return err
	}
	if err := v.Guard.Check(); err != nil {
		return err
	}
	if caller != v.Creator {
		if err := e.requireAuthority(caller); err != nil {
			return err
		}
	}
	if v.TotalWrapped != 0 {
		return fail("engine", CodeVaultNotEmpty, "%d outstanding", v.TotalWrapped)
	}
	policy, err := e.policy(v.Address)
	if err != nil {
		return err
	}
	dust, err := e.bank.Balance(v.UnderlyingAsset, v.Address)
	if err != nil {
		return fmt.Errorf("vault engine: reserves: %w", err)
	}
	if dust > 0 {
		if err := e.bank.Transfer(v.UnderlyingAsset, v.Address, policy.TreasuryWallet, dust); err != nil {
			return fmt.Errorf("vault engine: sweep: %w", err)
		}
	}
	if err := e.state.KVDelete(vaultRecordKey(v.Address)); err != nil {
		return err
	}
	if err := e.unindexVault(v.Address); err != nil {
		return err
	}
	e.logger.Info("vault closed", "vault", v.Address.Hex(), "swept", dust, "caller", caller.Hex())
	return nil
}

// AcknowledgeRewards is called by the reward pool once it has distributed
// amount of the pending LP rewards.
func (e *Engine) AcknowledgeRewards(caller, vaultAddr common.Address, amount uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.rewards == nil || caller != e.rewards.Address() {
		return fail("engine", CodeUnauthorized, "%s is not the reward pool", caller.Hex())
	}
	v, err := e.loadVault(vaultAddr)
	if err != nil {
		return err
	}
	if err := v.Guard.Check(); err != nil {
		return err
	}
	if amount == 0 {
		return fail("engine", CodeInvalidAmount, "")
	}
	pending, err := checkedSub("engine", v.PendingRewards, amount)
	if err != nil {
		return err
	}
	v.PendingRewards = pending
	v.LastActivity = e.now()
	return e.storeVault(v)
}

// Vault returns a copy of the stored record.
func (e *Engine) Vault(addr common.Address) (*Vault, error) {
	return e.loadVault(addr)
}

// Vaults returns every registered vault in creation order.
func (e *Engine) Vaults() ([]*Vault, error) {
	addrs, err := e.vaultIndex()
	if err != nil {
		return nil, err
	}
	out := make([]*Vault, 0, len(addrs))
	for _, addr := range addrs {
		v, err := e.loadVault(addr)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// PendingFees reports the undistributed reward balance of a vault.
func (e *Engine) PendingFees(addr common.Address) (uint64, error) {
	v, err := e.loadVault(addr)
	if err != nil {
		return 0, err
	}
	return PendingFees(v), nil
}

// OracleCountdown returns the seconds until the next oracle update is due.
func (e *Engine) OracleCountdown(addr common.Address) (int64, error) {
	sched, err := e.scheduler(addr)
	if err != nil {
		return 0, err
	}
	return sched.OracleCountdown(e.now()), nil
}

// RebalanceCountdown returns the seconds until the staleness trigger fires.
func (e *Engine) RebalanceCountdown(addr common.Address) (int64, error) {
	sched, err := e.scheduler(addr)
	if err != nil {
		return 0, err
	}
	return sched.RebalanceCountdown(e.now()), nil
}

func (e *Engine) scheduler(addr common.Address) (Scheduler, error) {
	if err := e.ready(); err != nil {
		return Scheduler{}, err
	}
	v, err := e.loadVault(addr)
	if err != nil {
		return Scheduler{}, err
	}
	policy, err := e.policy(addr)
	if err != nil {
		return Scheduler{}, err
	}
	return NewScheduler(v, policy), nil
}

// PreviewWrap quotes a wrap at the current backing ratio without side effects.
func (e *Engine) PreviewWrap(addr common.Address, amount uint64) (WrapQuote, error) {
	v, err := e.loadVault(addr)
	if err != nil {
		return WrapQuote{}, err
	}
	return QuoteWrap(amount, v.BackingRatio)
}

// PreviewUnwrap quotes an unwrap at the current backing ratio without side
// effects.
func (e *Engine) PreviewUnwrap(addr common.Address, amount uint64) (UnwrapQuote, error) {
	v, err := e.loadVault(addr)
	if err != nil {
		return UnwrapQuote{}, err
	}
	return QuoteUnwrap(amount, v.BackingRatio)
}
