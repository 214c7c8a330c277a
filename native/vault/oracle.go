package vault

const (
	// OracleWindowSize is the number of samples retained per vault.
	OracleWindowSize = 10
	// MaxOracleStaleness bounds the age of an accepted oracle sample in seconds.
	MaxOracleStaleness int64 = 300
)

// OracleSample is a single price observation expressed in backing ratio bps.
type OracleSample struct {
	Price      uint64
	Confidence uint64
	Timestamp  int64
}

// OracleSlot is either unset or holds a sample.
type OracleSlot struct {
	Filled bool
	Sample OracleSample
}

// PriceWindow is the rolling buffer of recent oracle samples. Cursor points at
// the next slot to overwrite.
type PriceWindow struct {
	Slots  [OracleWindowSize]OracleSlot
	Cursor uint8
}

// Record stores the sample over the oldest slot and advances the cursor.
func (w *PriceWindow) Record(sample OracleSample) {
	idx := int(w.Cursor) % OracleWindowSize
	w.Slots[idx] = OracleSlot{Filled: true, Sample: sample}
	w.Cursor = uint8((idx + 1) % OracleWindowSize)
}

// Count returns the number of filled slots.
func (w *PriceWindow) Count() int {
	n := 0
	for _, slot := range w.Slots {
		if slot.Filled {
			n++
		}
	}
	return n
}

// Samples returns the filled samples from oldest to newest.
func (w *PriceWindow) Samples() []OracleSample {
	out := make([]OracleSample, 0, OracleWindowSize)
	for i := 0; i < OracleWindowSize; i++ {
		slot := w.Slots[(int(w.Cursor)+i)%OracleWindowSize]
		if slot.Filled {
			out = append(out, slot.Sample)
		}
	}
	return out
}

// Latest returns the most recently recorded sample.
func (w *PriceWindow) Latest() (OracleSample, bool) {
	idx := (int(w.Cursor) + OracleWindowSize - 1) % OracleWindowSize
	slot := w.Slots[idx]
	return slot.Sample, slot.Filled
}

// Average returns the mean price over the filled slots, or fallback when the
// window is empty. The result must lie in (0, MaxBackingRatio].
func (w *PriceWindow) Average(fallback uint64) (uint64, error) {
	var (
		sum   uint64
		count uint64
		err   error
	)
	for _, slot := range w.Slots {
		if !slot.Filled {
			continue
		}
		if sum, err = checkedAdd("oracle", sum, slot.Sample.Price); err != nil {
			return 0, err
		}
		count++
	}
	avg := fallback
	if count > 0 {
		avg = sum / count
	}
	if avg == 0 {
		return 0, fail("oracle", CodeInvalidOraclePrice, "average is zero")
	}
	if avg > MaxBackingRatio {
		return 0, fail("oracle", CodeOraclePriceTooLarge, "average %d", avg)
	}
	return avg, nil
}

// validateSample checks an incoming sample against the current time.
func validateSample(sample OracleSample, now int64) error {
	if sample.Price == 0 {
		return fail("oracle", CodeInvalidOraclePrice, "price must be positive")
	}
	if sample.Price > MaxBackingRatio {
		return fail("oracle", CodeOraclePriceTooLarge, "price %d", sample.Price)
	}
	if sample.Timestamp <= 0 {
		return fail("oracle", CodeInvalidOraclePrice, "timestamp must be positive")
	}
	if sample.Timestamp > now {
		return fail("oracle", CodeStaleOracle, "timestamp %d ahead of %d", sample.Timestamp, now)
	}
	if now-sample.Timestamp > MaxOracleStaleness {
		return fail("oracle", CodeStaleOracle, "age %ds exceeds %ds", now-sample.Timestamp, MaxOracleStaleness)
	}
	return nil
}
