package oraclefeed

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const now = int64(1_700_000_000)

func TestPythParse(t *testing.T) {
	// 1.0350 with expo -4 scales to 10350 bps.
	payload := EncodePyth(10_350, 50, -4, now-10)
	sample, err := DefaultRegistry().Parse("Pyth", payload, now)
	require.NoError(t, err)
	require.Equal(t, uint64(10_350), sample.Price)
	require.Equal(t, uint64(50), sample.Confidence)
	require.Equal(t, now-10, sample.Timestamp)
}

func TestPythRejections(t *testing.T) {
	p := PythParser{}
	cases := []struct {
		name    string
		payload []byte
		want    error
	}{
		{"short", EncodePyth(1, 0, 0, now)[:10], ErrMalformedPayload},
		{"magic", append([]byte("XXXX"), EncodePyth(10_000, 0, -4, now)[4:]...), ErrMalformedPayload},
		{"negative", EncodePyth(-5, 0, -4, now), ErrNonPositivePrice},
		{"stale", EncodePyth(10_000, 0, -4, now-301), ErrStalePrice},
		{"future", EncodePyth(10_000, 0, -4, now+1), ErrStalePrice},
		{"wide", EncodePyth(10_000, 1_001, -4, now), ErrConfidenceTooWide},
		{"rounds to zero", EncodePyth(1, 0, -9, now), ErrNonPositivePrice},
	}
	for _, tc := range cases {
		if _, err := p.Parse(tc.payload, now); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	_, err := p.Parse(EncodePyth(10_000, 1_000, -4, now-300), now)
	require.NoError(t, err)
}

func TestSwitchboardParse(t *testing.T) {
	// 0.98 with scale 18.
	mantissa := uint64(980_000_000_000_000_000)
	std := uint64(100_000_000_000_000_000) // 0.1 -> 1000 bps, under price/5
	sample, err := SwitchboardParser{}.Parse(EncodeSwitchboard(mantissa, 18, std, now-5), now)
	require.NoError(t, err)
	require.Equal(t, uint64(9_800), sample.Price)
	require.Equal(t, uint64(1_000), sample.Confidence)

	_, err = SwitchboardParser{}.Parse(EncodeSwitchboard(mantissa, 18, 3*std, now), now)
	require.ErrorIs(t, err, ErrConfidenceTooWide)

	neg := EncodeSwitchboard(mantissa, 18, 0, now)
	for i := 12; i < 20; i++ {
		neg[i] = 0xff
	}
	_, err = SwitchboardParser{}.Parse(neg, now)
	require.ErrorIs(t, err, ErrNonPositivePrice)
}

func TestDecodeInt128Negative(t *testing.T) {
	b := make([]byte, 16)
	for i := range b {
		b[i] = 0xff
	}
	v, negative := decodeInt128(b)
	require.True(t, negative)
	require.Equal(t, uint64(1), v.Uint64())
}

func TestChainlinkParse(t *testing.T) {
	sample, err := ChainlinkParser{}.Parse(EncodeChainlink(7, 101_000_000, 8, now-60, 500_000), now)
	require.NoError(t, err)
	require.Equal(t, uint64(10_100), sample.Price)
	require.Equal(t, uint64(50), sample.Confidence)

	_, err = ChainlinkParser{}.Parse(EncodeChainlink(7, 101_000_000, 8, now-121, 0), now)
	require.ErrorIs(t, err, ErrStalePrice)
	_, err = ChainlinkParser{}.Parse(EncodeChainlink(0, 101_000_000, 8, now, 0), now)
	require.ErrorIs(t, err, ErrMalformedPayload)
	_, err = ChainlinkParser{}.Parse(EncodeChainlink(7, 101_000_000, 8, now, 11_000_000), now)
	require.ErrorIs(t, err, ErrConfidenceTooWide)
}

func TestRegistryUnknownVendor(t *testing.T) {
	r := DefaultRegistry()
	require.Equal(t, []string{"chainlink", "pyth", "switchboard"}, r.Vendors())
	_, err := r.Parse("band", nil, now)
	require.ErrorIs(t, err, ErrUnknownVendor)
}
