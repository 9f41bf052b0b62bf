package staleness

import (
	"math/rand/v2"
	"time"
)

// Policy is the interface for the cache staleness checker.
// Implementations determine when a populated cache should be repopulated.
type Policy interface {
	// IsStale returns true if a cache populated at loadedAt is stale.
	// The now parameter represents the current time.
	IsStale(now, loadedAt time.Time) bool
}

// Never is a policy under which a populated cache never goes stale.
// The cache is only invalidated explicitly, e.g. via DropCache.
type Never struct{}

var _ Policy = Never{}

// IsStale always returns false, indicating that the cache never goes stale.
func (Never) IsStale(now, loadedAt time.Time) bool {
	return false
}

// MaxAge is a policy that marks the cache stale once it is older than TTL.
type MaxAge struct {
	// TTL is the maximum age of a populated cache.
	TTL time.Duration
}

var _ Policy = MaxAge{}

// IsStale returns true if the cache was populated more than TTL ago.
func (p MaxAge) IsStale(now, loadedAt time.Time) bool {
	return now.Sub(loadedAt) > p.TTL
}

// JitteredMaxAge is a policy that can mark the cache stale before it reaches
// its full TTL. Spreading repopulation over time keeps several views backed
// by the same provider from refreshing at the same moment.
type JitteredMaxAge struct {
	// TTL is the maximum age of a populated cache.
	TTL time.Duration

	// Jitter is how much earlier the cache can go stale.
	// For example, with a TTL of 5 minutes and a Jitter of 30 seconds,
	// the cache might be considered stale after 4 minutes 30 seconds.
	Jitter time.Duration

	// Percentage is the chance (between 0 and 1) that the cache goes stale early.
	// A value of 0 means never early, while 1 means always early.
	Percentage float64

	// Random is the random number generator to decide early staleness.
	// If not set, the default system random generator is used.
	// This can be set to a specific random generator for deterministic behavior in tests.
	Random *rand.Rand
}

var _ Policy = (*JitteredMaxAge)(nil)

// IsStale checks if the cache is stale.
// With probability (1-Percentage) it behaves like MaxAge; with probability
// Percentage it shortens the TTL by Jitter.
func (p *JitteredMaxAge) IsStale(now, loadedAt time.Time) bool {
	ttl := p.TTL
	if p.randFloat64() <= p.Percentage {
		ttl -= p.Jitter
	}
	return now.Sub(loadedAt) > ttl
}

func (p *JitteredMaxAge) randFloat64() float64 {
	if p.Random == nil {
		return rand.Float64()
	}
	return p.Random.Float64()
}
