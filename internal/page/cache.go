package page

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"TokenBridge/internal/metrics"
)

// FetchFunc loads a complete template document.
type FetchFunc func(ctx context.Context) (string, error)

// RefreshPolicy decides when a loaded template is fetched again.
//
// With RefreshWithin set the template is refetched while less than Threshold
// has elapsed since the last load, and served from memory afterwards. This is
// the behaviour the demo page has always had. Clearing RefreshWithin gives
// the usual expiry: refetch once Threshold has elapsed.
type RefreshPolicy struct {
	Threshold     time.Duration
	RefreshWithin bool
}

func (p RefreshPolicy) due(elapsed time.Duration) bool {
	if p.RefreshWithin {
		return elapsed.Seconds() < p.Threshold.Seconds()
	}
	return elapsed.Seconds() >= p.Threshold.Seconds()
}

// Cache holds the most recently fetched template.
//
// The lock only guards the two fields. It is not held while fetching, so
// concurrent callers that all see a refresh due each fetch, and the last
// write wins. Every stored value is a complete document.
type Cache struct {
	fetch  FetchFunc
	policy RefreshPolicy
	now    func() time.Time
	log    *zap.Logger

	mu        sync.Mutex
	text      string
	fetchedAt time.Time
}

func NewCache(fetch FetchFunc, policy RefreshPolicy, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		fetch:  fetch,
		policy: policy,
		now:    time.Now,
		log:    logger,
	}
}

// WithClock replaces the time source.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Get returns the template, fetching it first when the cache is empty or the
// refresh policy says so. A failed fetch leaves the cache untouched.
func (c *Cache) Get(ctx context.Context) (string, error) {
	c.mu.Lock()
	text, fetchedAt := c.text, c.fetchedAt
	c.mu.Unlock()

	if !fetchedAt.IsZero() && !c.policy.due(c.now().Sub(fetchedAt)) {
		metrics.TemplateCacheLookups.WithLabelValues("hit").Inc()
		return text, nil
	}

	metrics.TemplateCacheLookups.WithLabelValues("refresh").Inc()

	fresh, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.text = fresh
	c.fetchedAt = c.now()
	c.mu.Unlock()

	c.log.Debug("template refreshed", zap.Int("bytes", len(fresh)))

	return fresh, nil
}
