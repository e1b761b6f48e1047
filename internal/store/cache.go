package store

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"construct-calc/internal/domain/models"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "construct_calc_template_cache_lookups_total",
	Help: "Template cache lookups partitioned by outcome (hit, miss, expired).",
}, []string{"outcome"})

type cacheEntry struct {
	template *models.Template
	expires  time.Time
}

// CachedTemplates is a read-through cache in front of a TemplateStore's
// GetTemplate. Entries expire after ttl; Invalidate and Purge drop them
// explicitly. A ttl of zero disables caching.
type CachedTemplates struct {
	TemplateStore

	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCachedTemplates wraps next with a cache of the given ttl.
func NewCachedTemplates(next TemplateStore, ttl time.Duration) *CachedTemplates {
	return &CachedTemplates{
		TemplateStore: next,
		ttl:           ttl,
		now:           time.Now,
		entries:       make(map[string]cacheEntry),
	}
}

// GetTemplate serves id from the cache, falling through to the wrapped store
// on a miss. ErrNotFound is not cached.
func (c *CachedTemplates) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	if c.ttl <= 0 {
		return c.TemplateStore.GetTemplate(ctx, id)
	}

	now := c.now()

	c.mu.Lock()
	entry, ok := c.entries[id]
	if ok && now.Before(entry.expires) {
		c.mu.Unlock()
		cacheLookups.WithLabelValues("hit").Inc()
		return cloneTemplate(entry.template), nil
	}
	if ok {
		delete(c.entries, id)
	}
	c.mu.Unlock()

	if ok {
		cacheLookups.WithLabelValues("expired").Inc()
	} else {
		cacheLookups.WithLabelValues("miss").Inc()
	}

	t, err := c.TemplateStore.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[id] = cacheEntry{template: cloneTemplate(t), expires: now.Add(c.ttl)}
	c.mu.Unlock()

	return t, nil
}

// CreateTemplate writes through and drops any stale entry for the id.
func (c *CachedTemplates) CreateTemplate(ctx context.Context, t *models.Template) error {
	if err := c.TemplateStore.CreateTemplate(ctx, t); err != nil {
		return err
	}
	c.Invalidate(t.ID)
	return nil
}

// Invalidate drops the cached entry for id.
func (c *CachedTemplates) Invalidate(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// Purge drops every cached entry.
func (c *CachedTemplates) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len returns the number of cached entries, expired ones included.
func (c *CachedTemplates) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
