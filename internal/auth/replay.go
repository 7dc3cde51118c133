package auth

import (
	"sync"
	"time"
)

const minReplayPrune = 256

// ReplayCache remembers wallet signatures that were already accepted. A
// signature stays remembered for twice the allowed clock skew, after which
// VerifyWallet rejects its timestamp anyway.
type ReplayCache struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	ttl       time.Duration
	nextPrune int
}

// NewReplayCache returns a cache for signatures accepted with maxSkew.
func NewReplayCache(maxSkew time.Duration) *ReplayCache {
	return &ReplayCache{
		seen:      make(map[string]time.Time),
		ttl:       2 * maxSkew,
		nextPrune: minReplayPrune,
	}
}

// Claim records signature as used at now. It reports false when the
// signature was already claimed and has not expired.
func (c *ReplayCache) Claim(signature string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if exp, ok := c.seen[signature]; ok && now.Before(exp) {
		return false
	}
	c.seen[signature] = now.Add(c.ttl)

	if len(c.seen) >= c.nextPrune {
		for sig, exp := range c.seen {
			if !now.Before(exp) {
				delete(c.seen, sig)
			}
		}
		c.nextPrune = max(2*len(c.seen), minReplayPrune)
	}
	return true
}

// Len returns the number of remembered signatures.
func (c *ReplayCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
