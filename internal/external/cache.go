package external

import (
	"sync"
	"time"

	"github.com/kjannette/ethflow-bot/internal/models"
)

// SnapshotCache remembers the last price fetch, successful or not, for a
// fixed time-to-live. It holds a single slot: the client serves one asset.
type SnapshotCache struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	fetchedAt time.Time
	value     *models.PriceSnapshot
	err       error
	filled    bool
}

func NewSnapshotCache(ttl time.Duration, now func() time.Time) *SnapshotCache {
	if now == nil {
		now = time.Now
	}
	return &SnapshotCache{ttl: ttl, now: now}
}

// Result is one remembered fetch outcome.
type Result struct {
	Snapshot *models.PriceSnapshot
	Err      error
}

// Get returns the cached result while it is younger than the TTL.
func (c *SnapshotCache) Get() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.filled || c.ttl <= 0 || c.now().Sub(c.fetchedAt) >= c.ttl {
		return Result{}, false
	}
	res := Result{Err: c.err}
	if c.value != nil {
		cp := *c.value
		res.Snapshot = &cp
	}
	return res, true
}

func (c *SnapshotCache) Put(snap *models.PriceSnapshot, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fetchedAt = c.now()
	c.value = snap
	c.err = err
	c.filled = true
}

// Age reports how long ago the slot was filled.
func (c *SnapshotCache) Age() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.filled {
		return 0
	}
	return c.now().Sub(c.fetchedAt)
}
