package vault

// ReentrancyGuard is the per-vault execution latch. It moves Idle -> Busy on
// Acquire and back on Release; Busy -> Busy is rejected.
type ReentrancyGuard struct {
	Busy bool
}

// Acquire takes the latch or fails with ReentrancyDetected.
func (g *ReentrancyGuard) Acquire() error {
	if g.Busy {
		return fail("guard", CodeReentrancyDetected, "")
	}
	g.Busy = true
	return nil
}

// Release returns the latch to Idle. Only the success path calls it; a failed
// operation is discarded by the host together with the Busy state.
func (g *ReentrancyGuard) Release() { g.Busy = false }

// Check fails when the latch is held without taking it.
func (g ReentrancyGuard) Check() error {
	if g.Busy {
		return fail("guard", CodeReentrancyDetected, "")
	}
	return nil
}

// Idle reports whether the latch is free.
func (g ReentrancyGuard) Idle() bool { return !g.Busy }
