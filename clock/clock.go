// Package clock converts wall-clock time into the ledger's native time unit,
// the micromark, per the R⬢ time model.
package clock

import (
	"math/big"
	"sync"
	"time"
)

// MicromarksPerTurn is the number of micromarks in one "turn": one sidereal
// day, 86,164,090 milliseconds, expressed as 10^9 micromarks.
const MicromarksPerTurn = 1_000_000_000

// sideralDayMillis is the wall-clock length of one turn.
const sideralDayMillis = 86_164_090

// GTClock converts Unix milliseconds to micromarks relative to a ledger
// epoch. The epoch is established by the root scope's genesis record and may
// be zero (unset) until then.
type GTClock struct {
	mu           sync.RWMutex
	epochUnixMs  int64
	epochSet     bool
	nowUnixMilli func() int64
}

// New returns a GTClock with no epoch set. NowMicromarks will use the epoch
// set by SetEpoch once it has been called.
func New() *GTClock {
	return &GTClock{nowUnixMilli: func() int64 { return time.Now().UnixMilli() }}
}

// SetEpoch fixes the ledger epoch to the given Unix millisecond timestamp.
// This is normally called once, from the root scope's scope:genesis record's
// unix_ms field.
func (c *GTClock) SetEpoch(unixMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epochUnixMs = unixMs
	c.epochSet = true
}

// EpochSet reports whether SetEpoch has been called.
func (c *GTClock) EpochSet() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epochSet
}

// Epoch returns the configured epoch, in Unix milliseconds.
func (c *GTClock) Epoch() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epochUnixMs
}

// NowMicromarks returns the number of micromarks elapsed since the epoch, as
// of the current wall-clock time. Pre-epoch callers (epoch in the future)
// receive a negative value.
func (c *GTClock) NowMicromarks() int64 {
	return c.MicromarksAt(c.nowUnixMilli())
}

// MicromarksAt converts an arbitrary Unix millisecond timestamp to
// micromarks relative to the configured epoch, using at least 128-bit
// intermediate arithmetic so that the multiply-before-divide never
// overflows a 64-bit accumulator for any realistic timestamp range.
func (c *GTClock) MicromarksAt(unixMs int64) int64 {
	c.mu.RLock()
	epoch := c.epochUnixMs
	c.mu.RUnlock()

	delta := big.NewInt(unixMs - epoch)
	delta.Mul(delta, big.NewInt(MicromarksPerTurn))
	delta.Quo(delta, big.NewInt(sideralDayMillis))
	return delta.Int64()
}

// UnixMillisAt converts a micromark count back to a Unix millisecond
// timestamp relative to the configured epoch — the inverse of MicromarksAt,
// used by status-reporting callers that want a human-readable time for a
// record's context.at.
func (c *GTClock) UnixMillisAt(micromarks int64) int64 {
	c.mu.RLock()
	epoch := c.epochUnixMs
	c.mu.RUnlock()

	delta := big.NewInt(micromarks)
	delta.Mul(delta, big.NewInt(sideralDayMillis))
	delta.Quo(delta, big.NewInt(MicromarksPerTurn))
	return epoch + delta.Int64()
}

// Split splits a micromark count into whole turns (one turn =
// MicromarksPerTurn micromarks) and the remaining offset within the current
// turn, using Euclidean division so that offset is always in [0, turn).
func Split(micromarks int64) (turn int64, offset int64) {
	q, r := new(big.Int).QuoRem(
		big.NewInt(micromarks),
		big.NewInt(MicromarksPerTurn),
		new(big.Int),
	)
	if r.Sign() < 0 {
		r.Add(r, big.NewInt(MicromarksPerTurn))
		q.Sub(q, big.NewInt(1))
	}
	return q.Int64(), r.Int64()
}

// Join reassembles a micromark count from a (turn, offset) pair produced by
// Split.
func Join(turn, offset int64) int64 {
	return turn*MicromarksPerTurn + offset
}
