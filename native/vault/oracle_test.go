package vault

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAverageOfEmptyWindowIsFallback(t *testing.T) {
	var w PriceWindow
	avg, err := w.Average(12_345)
	require.NoError(t, err)
	require.Equal(t, uint64(12_345), avg)

	_, err = w.Average(0)
	require.ErrorIs(t, err, ErrInvalidOraclePrice)

	_, err = w.Average(MaxBackingRatio + 1)
	require.ErrorIs(t, err, ErrOraclePriceTooLarge)
}

func TestRecordOverwritesOldestSlot(t *testing.T) {
	var w PriceWindow
	for i := 0; i < OracleWindowSize; i++ {
		w.Record(OracleSample{Price: 10_000, Timestamp: int64(i + 1)})
	}
	require.Equal(t, uint8(0), w.Cursor)
	require.Equal(t, OracleWindowSize, w.Count())

	w.Record(OracleSample{Price: 20_000, Timestamp: 100})
	require.Equal(t, uint8(1), w.Cursor)
	require.Equal(t, OracleWindowSize, w.Count())

	avg, err := w.Average(1)
	require.NoError(t, err)
	require.Equal(t, uint64((9*10_000+20_000)/10), avg)

	latest, ok := w.Latest()
	require.True(t, ok)
	require.Equal(t, int64(100), latest.Timestamp)

	samples := w.Samples()
	require.Len(t, samples, OracleWindowSize)
	require.Equal(t, int64(2), samples[0].Timestamp)
	require.Equal(t, int64(100), samples[len(samples)-1].Timestamp)
}

func TestAverageIgnoresUnsetSlots(t *testing.T) {
	var w PriceWindow
	w.Record(OracleSample{Price: 9_000, Timestamp: 5})
	w.Record(OracleSample{Price: 11_000, Timestamp: 6})
	avg, err := w.Average(50_000)
	require.NoError(t, err)
	require.Equal(t, uint64(10_000), avg)
}

func TestAverageFloorsDivision(t *testing.T) {
	var w PriceWindow
	w.Record(OracleSample{Price: 10_000, Timestamp: 1})
	w.Record(OracleSample{Price: 10_001, Timestamp: 2})
	avg, err := w.Average(1)
	require.NoError(t, err)
	require.Equal(t, uint64(10_000), avg)
}

func TestValidateSample(t *testing.T) {
	now := int64(1_700_000_000)
	require.NoError(t, validateSample(OracleSample{Price: 10_000, Timestamp: now - MaxOracleStaleness}, now))
	require.ErrorIs(t, validateSample(OracleSample{Price: 10_000, Timestamp: now - MaxOracleStaleness - 1}, now), ErrStaleOracle)
	require.ErrorIs(t, validateSample(OracleSample{Price: 10_000, Timestamp: now + 1}, now), ErrStaleOracle)
	require.ErrorIs(t, validateSample(OracleSample{Price: 0, Timestamp: now}, now), ErrInvalidOraclePrice)
	require.ErrorIs(t, validateSample(OracleSample{Price: MaxBackingRatio + 1, Timestamp: now}, now), ErrOraclePriceTooLarge)
	require.ErrorIs(t, validateSample(OracleSample{Price: 10_000, Timestamp: 0}, now), ErrInvalidOraclePrice)
}
