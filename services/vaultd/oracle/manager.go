package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"riftvault/native/oraclefeed"
	"riftvault/native/vault"
	"riftvault/observability"
	"riftvault/services/vaultd/storage"
)

// Source fetches the latest raw vendor payload for one vault.
type Source interface {
	Name() string
	Vendor() string
	Vault() common.Address
	Fetch(ctx context.Context) ([]byte, error)
}

// Submitter forwards parsed samples to the vault engine.
type Submitter interface {
	RecordOraclePrice(ctx context.Context, oracle, vaultAddr common.Address, sample vault.OracleSample) (*vault.OracleUpdate, error)
}

// Journal keeps the polled sample history.
type Journal interface {
	RecordSample(ctx context.Context, sample *storage.OracleSample) error
}

// Manager polls every configured source and submits the parsed samples as
// the service's oracle identity.
type Manager struct {
	logger    *slog.Logger
	journal   Journal
	submitter Submitter
	registry  *oraclefeed.Registry
	identity  common.Address
	sources   []Source
	interval  time.Duration
	nowFn     func() time.Time
	metrics   *observability.OracleFeedMetrics
	once      sync.Once
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger installs a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithJournal records every polled sample.
func WithJournal(j Journal) Option {
	return func(m *Manager) {
		m.journal = j
	}
}

// WithRegistry overrides the vendor parser registry.
func WithRegistry(r *oraclefeed.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithClock overrides the clock used for staleness checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.nowFn = now
		}
	}
}

// New constructs a manager instance.
func New(submitter Submitter, identity common.Address, sources []Source, interval time.Duration, opts ...Option) (*Manager, error) {
	if submitter == nil {
		return nil, fmt.Errorf("submitter required")
	}
	if identity == (common.Address{}) {
		return nil, fmt.Errorf("oracle identity required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	mgr := &Manager{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		submitter: submitter,
		registry:  oraclefeed.DefaultRegistry(),
		identity:  identity,
		sources:   append([]Source{}, sources...),
		interval:  interval,
		nowFn:     time.Now,
		metrics:   observability.OracleFeed(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(mgr)
		}
	}
	return mgr, nil
}

// Run blocks, periodically polling upstream feeds until the context is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	if m == nil {
		return fmt.Errorf("manager not configured")
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.once.Do(func() {
		m.logger.Info("oracle manager started", "sources", len(m.sources), "interval", m.interval.String())
	})
	for {
		if err := m.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Warn("oracle tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick polls every source once. Source failures do not stop the cycle; they
// are returned joined.
func (m *Manager) Tick(ctx context.Context) error {
	if m == nil {
		return fmt.Errorf("manager not configured")
	}
	var errs []error
	for _, src := range m.sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.poll(ctx, src); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) poll(ctx context.Context, src Source) error {
	record := &storage.OracleSample{
		Vault:  src.Vault().Hex(),
		Source: src.Name(),
		Vendor: strings.ToLower(src.Vendor()),
	}
	err := m.submit(ctx, src, record)
	if err != nil {
		record.Error = truncate(err.Error(), 512)
		m.metrics.RecordSample(src.Name(), "rejected")
	} else {
		m.metrics.RecordSample(src.Name(), "accepted")
	}
	if m.journal != nil && record.Price > 0 {
		if jerr := m.journal.RecordSample(ctx, record); jerr != nil {
			m.logger.Warn("record oracle sample", "source", src.Name(), "error", jerr)
		}
	}
	return err
}

func (m *Manager) submit(ctx context.Context, src Source, record *storage.OracleSample) error {
	payload, err := src.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	now := m.nowFn().UTC()
	sample, err := m.registry.Parse(src.Vendor(), payload, now.Unix())
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	record.Price = sample.Price
	record.Confidence = sample.Confidence
	record.ObservedAt = time.Unix(sample.Timestamp, 0).UTC()
	m.metrics.RecordFreshness(src.Name(), now.Sub(record.ObservedAt))

	update, err := m.submitter.RecordOraclePrice(ctx, m.identity, src.Vault(), sample)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	record.Accepted = true
	record.Rebalanced = update.Rebalanced
	if update.Rebalanced && update.Rebalance != nil {
		m.logger.Info("vault rebalanced from feed",
			"vault", src.Vault().Hex(),
			"source", src.Name(),
			"previous_ratio", update.Rebalance.PreviousRatio,
			"new_ratio", update.Rebalance.NewRatio)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
