package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"riftvault/core/state"
	"riftvault/native/bank"
	"riftvault/native/buyback"
	"riftvault/native/governance"
	"riftvault/native/staking"
	"riftvault/native/vault"
	"riftvault/observability"
	telemetry "riftvault/observability/otel"
	"riftvault/storage"
)

// MaxConflictRetries bounds how often an operation is re-executed after its
// commit lost an optimistic race on a shared key.
const MaxConflictRetries = 32

var ErrTooManyConflicts = errors.New("core: commit conflicts exceeded retry budget")

// Modules is the set of native engines bound to one operation's overlay.
type Modules struct {
	State      *state.Manager
	Bank       *bank.Ledger
	Governance *governance.Store
	Rewards    *staking.Pool
	Buyback    *buyback.Executor
	Vault      *vault.Engine
}

// Executor runs vault operations atomically. Each operation executes against
// its own overlay which is committed on success and discarded on failure.
// Operations on the same vault are serialised; different vaults proceed in
// parallel and conflicting commits are re-executed.
type Executor struct {
	store   *storage.Store
	buyback buyback.Config
	logger  *slog.Logger
	nowFn   func() time.Time
	metrics *observability.VaultMetrics
	tracer  trace.Tracer

	locksMu sync.Mutex
	locks   map[common.Address]*sync.Mutex
}

// NewExecutor wires an executor over db. The buyback venue config is applied
// to every operation.
func NewExecutor(db storage.Database, cfg buyback.Config) *Executor {
	return &Executor{
		store:   storage.NewStore(db),
		buyback: cfg,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		nowFn:   time.Now,
		metrics: observability.Vault(),
		tracer:  telemetry.Tracer(),
		locks:   make(map[common.Address]*sync.Mutex),
	}
}

func (x *Executor) SetLogger(logger *slog.Logger) {
	if x == nil || logger == nil {
		return
	}
	x.logger = logger
}

// SetNowFunc overrides the clock for every bound engine.
func (x *Executor) SetNowFunc(now func() time.Time) {
	if x == nil || now == nil {
		return
	}
	x.nowFn = now
}

func (x *Executor) lockFor(addr common.Address) *sync.Mutex {
	x.locksMu.Lock()
	defer x.locksMu.Unlock()
	mu, ok := x.locks[addr]
	if !ok {
		mu = &sync.Mutex{}
		x.locks[addr] = mu
	}
	return mu
}

func (x *Executor) bind(db storage.Database) *Modules {
	manager := state.NewManager(db)
	ledger := bank.NewLedger(manager)
	gov := governance.NewStore(manager)
	pool := staking.NewPool(manager)
	swap := buyback.NewExecutor(ledger, manager, x.buyback)
	swap.SetNowFunc(x.nowFn)

	engine := vault.NewEngine()
	engine.SetState(manager)
	engine.SetBank(ledger)
	engine.SetGovernance(gov)
	engine.SetSwapExecutor(swap)
	engine.SetRewardPool(pool)
	engine.SetPauses(gov)
	engine.SetNowFunc(x.nowFn)
	engine.SetLogger(x.logger.With("component", "vault"))

	return &Modules{
		State:      manager,
		Bank:       ledger,
		Governance: gov,
		Rewards:    pool,
		Buyback:    swap,
		Vault:      engine,
	}
}

// Execute runs fn atomically. A zero vault address skips the per-vault lock.
func (x *Executor) Execute(ctx context.Context, op string, vaultAddr common.Address, fn func(*Modules) error) error {
	ctx, span := x.tracer.Start(ctx, "vault."+op, trace.WithAttributes(
		attribute.String("vault.address", vaultAddr.Hex()),
	))
	defer span.End()

	if vaultAddr != (common.Address{}) {
		mu := x.lockFor(vaultAddr)
		mu.Lock()
		defer mu.Unlock()
	}

	start := time.Now()
	err := x.attempt(ctx, op, fn)
	x.metrics.ObserveOperation(op, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		x.logger.Debug("vault operation failed", "operation", op, "vault", vaultAddr.Hex(), "error", err)
	}
	return err
}

func (x *Executor) attempt(ctx context.Context, op string, fn func(*Modules) error) error {
	for attempt := 0; attempt < MaxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		overlay := x.store.Begin()
		if err := fn(x.bind(overlay)); err != nil {
			overlay.Discard()
			return err
		}
		err := overlay.Commit()
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return err
		}
		x.metrics.RecordConflict(op)
		x.logger.Debug("vault operation conflicted", "operation", op, "attempt", attempt+1)
	}
	return fmt.Errorf("%w: %s", ErrTooManyConflicts, op)
}

// View runs fn against committed state without taking locks. Writes made by
// fn are discarded.
func (x *Executor) View(fn func(*Modules) error) error {
	overlay := x.store.Begin()
	defer overlay.Discard()
	return fn(x.bind(overlay))
}

func (x *Executor) recordSplit(vaultAddr common.Address, split vault.FeeSplit) {
	label := vaultAddr.Hex()
	x.metrics.RecordFee(label, "burn", split.Burn)
	x.metrics.RecordFee(label, "partner", split.Partner)
	x.metrics.RecordFee(label, "treasury", split.Treasury)
	if split.Deferred {
		x.metrics.RecordFee(label, "buyback_deferred", split.Buyback)
		return
	}
	x.metrics.RecordFee(label, "lp", split.LPShare)
	x.metrics.RecordFee(label, "buyback_burn", split.BurnShare)
}
