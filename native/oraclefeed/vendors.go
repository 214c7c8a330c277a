package oraclefeed

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"

	"riftvault/native/vault"
)

const (
	PythVendor        = "pyth"
	SwitchboardVendor = "switchboard"
	ChainlinkVendor   = "chainlink"

	pythMaxAge        int64 = 300
	switchboardMaxAge int64 = 300
	chainlinkMaxAge   int64 = 120
)

var (
	pythMagic        = []byte("PYTH")
	switchboardMagic = []byte("SWBD")
	chainlinkMagic   = []byte("CHLK")
)

const (
	pythPayloadLen        = 4 + 8 + 8 + 4 + 8
	switchboardPayloadLen = 4 + 16 + 4 + 16 + 8
	chainlinkPayloadLen   = 4 + 8 + 8 + 1 + 8 + 8
)

func checkFrame(payload, magic []byte, size int) error {
	if len(payload) != size {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedPayload, size, len(payload))
	}
	if !bytes.Equal(payload[:len(magic)], magic) {
		return fmt.Errorf("%w: bad magic %q", ErrMalformedPayload, payload[:len(magic)])
	}
	return nil
}

// PythParser decodes `PYTH | price i64 | conf u64 | expo i32 | publish_time i64`
// little-endian. The confidence interval must stay within price/10.
type PythParser struct{}

func (PythParser) Vendor() string { return PythVendor }

func (PythParser) Parse(payload []byte, now int64) (vault.OracleSample, error) {
	if err := checkFrame(payload, pythMagic, pythPayloadLen); err != nil {
		return vault.OracleSample{}, err
	}
	body := payload[4:]
	price := int64(binary.LittleEndian.Uint64(body[0:8]))
	conf := binary.LittleEndian.Uint64(body[8:16])
	expo := int32(binary.LittleEndian.Uint32(body[16:20]))
	publish := int64(binary.LittleEndian.Uint64(body[20:28]))
	if price <= 0 {
		return vault.OracleSample{}, ErrNonPositivePrice
	}
	if err := checkFreshness(publish, now, pythMaxAge); err != nil {
		return vault.OracleSample{}, err
	}
	return scaleSample(uint256.NewInt(uint64(price)), uint256.NewInt(conf), int(expo), publish, 10)
}

// SwitchboardParser decodes `SWBD | mantissa i128 | scale u32 | std_dev i128 |
// timestamp i64` little-endian, value = mantissa / 10^scale. The standard
// deviation must stay within price/5.
type SwitchboardParser struct{}

func (SwitchboardParser) Vendor() string { return SwitchboardVendor }

func (SwitchboardParser) Parse(payload []byte, now int64) (vault.OracleSample, error) {
	if err := checkFrame(payload, switchboardMagic, switchboardPayloadLen); err != nil {
		return vault.OracleSample{}, err
	}
	body := payload[4:]
	mantissa, negative := decodeInt128(body[0:16])
	if negative || mantissa.IsZero() {
		return vault.OracleSample{}, ErrNonPositivePrice
	}
	scale := binary.LittleEndian.Uint32(body[16:20])
	stdDev, negDev := decodeInt128(body[20:36])
	if negDev {
		return vault.OracleSample{}, fmt.Errorf("%w: negative std deviation", ErrMalformedPayload)
	}
	ts := int64(binary.LittleEndian.Uint64(body[36:44]))
	if err := checkFreshness(ts, now, switchboardMaxAge); err != nil {
		return vault.OracleSample{}, err
	}
	if scale > uint32(len(pow10)-1) {
		return vault.OracleSample{}, fmt.Errorf("%w: scale %d", ErrPriceOutOfRange, scale)
	}
	return scaleSample(mantissa, stdDev, -int(scale), ts, 5)
}

// ChainlinkParser decodes `CHLK | round_id u64 | answer i64 | decimals u8 |
// updated_at i64 | deviation u64` little-endian. Rounds older than two minutes
// are stale and the reported deviation must stay within price/10.
type ChainlinkParser struct{}

func (ChainlinkParser) Vendor() string { return ChainlinkVendor }

func (ChainlinkParser) Parse(payload []byte, now int64) (vault.OracleSample, error) {
	if err := checkFrame(payload, chainlinkMagic, chainlinkPayloadLen); err != nil {
		return vault.OracleSample{}, err
	}
	body := payload[4:]
	roundID := binary.LittleEndian.Uint64(body[0:8])
	answer := int64(binary.LittleEndian.Uint64(body[8:16]))
	decimals := body[16]
	updated := int64(binary.LittleEndian.Uint64(body[17:25]))
	deviation := binary.LittleEndian.Uint64(body[25:33])
	if roundID == 0 {
		return vault.OracleSample{}, fmt.Errorf("%w: round id zero", ErrMalformedPayload)
	}
	if answer <= 0 {
		return vault.OracleSample{}, ErrNonPositivePrice
	}
	if err := checkFreshness(updated, now, chainlinkMaxAge); err != nil {
		return vault.OracleSample{}, err
	}
	return scaleSample(uint256.NewInt(uint64(answer)), uint256.NewInt(deviation), -int(decimals), updated, 10)
}

func scaleSample(price, conf *uint256.Int, exp int, ts int64, confDivisor uint64) (vault.OracleSample, error) {
	priceBps, err := toBps(price, exp)
	if err != nil {
		return vault.OracleSample{}, err
	}
	if priceBps == 0 {
		return vault.OracleSample{}, fmt.Errorf("%w: rounds to zero bps", ErrNonPositivePrice)
	}
	confBps, err := toBps(conf, exp)
	if err != nil {
		return vault.OracleSample{}, err
	}
	if err := checkConfidence(priceBps, confBps, confDivisor); err != nil {
		return vault.OracleSample{}, err
	}
	return vault.OracleSample{Price: priceBps, Confidence: confBps, Timestamp: ts}, nil
}

// decodeInt128 reads a little-endian two's complement 128-bit integer and
// returns its magnitude.
func decodeInt128(b []byte) (*uint256.Int, bool) {
	lo := binary.LittleEndian.Uint64(b[0:8])
	hi := binary.LittleEndian.Uint64(b[8:16])
	negative := hi>>63 == 1
	if negative {
		lo = ^lo + 1
		hi = ^hi
		if lo == 0 {
			hi++
		}
	}
	value := new(uint256.Int).Lsh(uint256.NewInt(hi), 64)
	value.Or(value, uint256.NewInt(lo))
	return value, negative
}

// EncodePyth builds a Pyth payload. Used by feed adapters and tests.
func EncodePyth(price int64, conf uint64, expo int32, publish int64) []byte {
	buf := make([]byte, pythPayloadLen)
	copy(buf, pythMagic)
	binary.LittleEndian.PutUint64(buf[4:], uint64(price))
	binary.LittleEndian.PutUint64(buf[12:], conf)
	binary.LittleEndian.PutUint32(buf[20:], uint32(expo))
	binary.LittleEndian.PutUint64(buf[24:], uint64(publish))
	return buf
}

// EncodeSwitchboard builds a Switchboard payload for non-negative values
// that fit in 64 bits.
func EncodeSwitchboard(mantissa uint64, scale uint32, stdDev uint64, ts int64) []byte {
	buf := make([]byte, switchboardPayloadLen)
	copy(buf, switchboardMagic)
	binary.LittleEndian.PutUint64(buf[4:], mantissa)
	binary.LittleEndian.PutUint32(buf[20:], scale)
	binary.LittleEndian.PutUint64(buf[24:], stdDev)
	binary.LittleEndian.PutUint64(buf[40:], uint64(ts))
	return buf
}

// EncodeChainlink builds a Chainlink payload.
func EncodeChainlink(roundID uint64, answer int64, decimals uint8, updated int64, deviation uint64) []byte {
	buf := make([]byte, chainlinkPayloadLen)
	copy(buf, chainlinkMagic)
	binary.LittleEndian.PutUint64(buf[4:], roundID)
	binary.LittleEndian.PutUint64(buf[12:], uint64(answer))
	buf[20] = decimals
	binary.LittleEndian.PutUint64(buf[21:], uint64(updated))
	binary.LittleEndian.PutUint64(buf[29:], deviation)
	return buf
}
