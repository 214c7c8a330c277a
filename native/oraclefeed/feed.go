package oraclefeed

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/holiman/uint256"

	"riftvault/native/vault"
)

var (
	ErrMalformedPayload  = errors.New("oraclefeed: malformed payload")
	ErrStalePrice        = errors.New("oraclefeed: stale price")
	ErrConfidenceTooWide = errors.New("oraclefeed: confidence interval too wide")
	ErrNonPositivePrice  = errors.New("oraclefeed: price must be positive")
	ErrUnknownVendor     = errors.New("oraclefeed: unknown vendor")
	ErrPriceOutOfRange   = errors.New("oraclefeed: price out of range")
)

// Parser decodes one vendor's byte layout into a sample denominated in
// backing ratio basis points.
type Parser interface {
	Vendor() string
	Parse(payload []byte, now int64) (vault.OracleSample, error)
}

// Registry dispatches payloads to vendor parsers.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

// NewRegistry returns a registry holding the given parsers.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range parsers {
		r.Register(p)
	}
	return r
}

// DefaultRegistry knows every built-in vendor.
func DefaultRegistry() *Registry {
	return NewRegistry(PythParser{}, SwitchboardParser{}, ChainlinkParser{})
}

func normaliseVendor(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds or replaces the parser for its vendor.
func (r *Registry) Register(p Parser) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[normaliseVendor(p.Vendor())] = p
}

// Vendors lists the registered vendor names.
func (r *Registry) Vendors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.parsers))
	for name := range r.parsers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Parse decodes payload with the named vendor's parser.
func (r *Registry) Parse(vendor string, payload []byte, now int64) (vault.OracleSample, error) {
	r.mu.RLock()
	p, ok := r.parsers[normaliseVendor(vendor)]
	r.mu.RUnlock()
	if !ok {
		return vault.OracleSample{}, fmt.Errorf("%w: %q", ErrUnknownVendor, vendor)
	}
	return p.Parse(payload, now)
}

func checkFreshness(ts, now, maxAge int64) error {
	if ts <= 0 {
		return fmt.Errorf("%w: timestamp %d", ErrMalformedPayload, ts)
	}
	if ts > now {
		return fmt.Errorf("%w: timestamp %d ahead of %d", ErrStalePrice, ts, now)
	}
	if now-ts > maxAge {
		return fmt.Errorf("%w: age %ds exceeds %ds", ErrStalePrice, now-ts, maxAge)
	}
	return nil
}

var pow10 = func() [78]*uint256.Int {
	var table [78]*uint256.Int
	table[0] = uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := 1; i < len(table); i++ {
		table[i] = new(uint256.Int).Mul(table[i-1], ten)
	}
	return table
}()

// toBps scales mantissa * 10^exp into basis points.
func toBps(mantissa *uint256.Int, exp int) (uint64, error) {
	bps := uint256.NewInt(vault.BasisPoints)
	var (
		z        *uint256.Int
		overflow bool
	)
	switch {
	case exp < 0:
		if -exp >= len(pow10) {
			return 0, fmt.Errorf("%w: exponent %d", ErrPriceOutOfRange, exp)
		}
		z, overflow = new(uint256.Int).MulDivOverflow(mantissa, bps, pow10[-exp])
	default:
		if exp >= len(pow10) {
			return 0, fmt.Errorf("%w: exponent %d", ErrPriceOutOfRange, exp)
		}
		z, overflow = new(uint256.Int).MulOverflow(mantissa, bps)
		if !overflow {
			z, overflow = new(uint256.Int).MulOverflow(z, pow10[exp])
		}
	}
	if overflow || !z.IsUint64() {
		return 0, fmt.Errorf("%w: scaled value overflows", ErrPriceOutOfRange)
	}
	return z.Uint64(), nil
}

// checkConfidence rejects samples whose uncertainty exceeds price/divisor.
func checkConfidence(price, confidence, divisor uint64) error {
	if confidence > price/divisor {
		return fmt.Errorf("%w: %d exceeds %d", ErrConfidenceTooWide, confidence, price/divisor)
	}
	return nil
}
