package policy

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// windowMicromarks is the period over which rate_per_mark is measured: one
// turn.
const windowMicromarks = 1_000_000_000

// limiterKey identifies one token bucket.
type limiterKey struct {
	scope      string
	recordType string
	publicKey  [32]byte
}

// Limiter tracks a per-(scope, record_type, public_key) token bucket built
// on golang.org/x/time/rate: it refills at rate_per_mark tokens per
// windowMicromarks and bursts up to rate_per_mark, which reproduces the
// sliding-window admission behavior rate_per_mark describes.
type Limiter struct {
	mu      sync.Mutex
	buckets map[limiterKey]*rate.Limiter
}

// NewLimiter returns an empty Limiter.
func NewLimiter() *Limiter {
	return &Limiter{buckets: make(map[limiterKey]*rate.Limiter)}
}

// Allow admits one record at micromark `at` for the given key if its token
// bucket holds a token, treating `at` as the bucket's clock (one micromark
// == one nanosecond of bucket time, so a full windowMicromarks elapsed
// always refills a bucket to its burst). ratePerMark <= 0 means unlimited.
func (l *Limiter) Allow(scope, recordType string, publicKey [32]byte, at uint64, ratePerMark int) error {
	if ratePerMark <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := limiterKey{scope: scope, recordType: recordType, publicKey: publicKey}
	lim, ok := l.buckets[key]
	if !ok || lim.Burst() != ratePerMark {
		lim = rate.NewLimiter(rate.Limit(float64(ratePerMark)/float64(windowMicromarks)), ratePerMark)
		l.buckets[key] = lim
	}

	now := time.Unix(0, int64(at))
	if !lim.AllowN(now, 1) {
		return ErrRateLimited
	}
	return nil
}
