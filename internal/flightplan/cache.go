package flightplan

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yegors/flightdev/pkg/logger"
)

// CachedMetadata memoises lookups of another Metadata, including not-found answers.
// Lookups of different flights proceed concurrently; other errors are not cached.
type CachedMetadata struct {
	source Metadata
	logger *logger.Logger

	mu     sync.RWMutex
	plans  map[string]*FlightPlan // nil value: no plan filed
	hits   int
	misses int
}

// NewCachedMetadata wraps source with a cache
func NewCachedMetadata(source Metadata, log *logger.Logger) *CachedMetadata {
	if log == nil {
		log = logger.NewNop()
	}
	return &CachedMetadata{
		source: source,
		logger: log.Named("plan-cache"),
		plans:  map[string]*FlightPlan{},
	}
}

// Lookup implements Metadata
func (c *CachedMetadata) Lookup(ctx context.Context, flightID string) (*FlightPlan, error) {
	c.mu.RLock()
	fp, ok := c.plans[flightID]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		if fp == nil {
			return nil, fmt.Errorf("%s: %w", flightID, ErrPlanNotFound)
		}
		return fp, nil
	}

	fp, err := c.source.Lookup(ctx, flightID)
	if err != nil && !errors.Is(err, ErrPlanNotFound) {
		return nil, err
	}

	c.mu.Lock()
	c.misses++
	c.plans[flightID] = fp
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return fp, nil
}

// Invalidate clears the cache
func (c *CachedMetadata) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.plans = map[string]*FlightPlan{}
	c.logger.Debug("Plan cache invalidated")
}

// Stats returns cache statistics
func (c *CachedMetadata) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"entries": len(c.plans),
		"hits":    c.hits,
		"misses":  c.misses,
	}
}
