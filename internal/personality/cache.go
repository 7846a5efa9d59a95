// Package personality keeps an in-memory snapshot of every personality so a
// chat turn never needs a store round-trip to resolve one.
package personality

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RichardoC/blinky/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Directory is the bulk source the cache loads from.
type Directory interface {
	ListPersonalities(ctx context.Context) ([]models.Personality, error)
}

// Cache maps personality id to personality. Reads never block on a reload:
// Refresh builds a new snapshot and swaps it in once complete, so readers
// see either the old or the new mapping.
type Cache struct {
	dir    Directory
	logger *zap.Logger

	mu    sync.RWMutex
	byID  map[int64]models.Personality
	order []int64

	group       singleflight.Group
	requested   atomic.Uint64
	loadTimeout time.Duration
}

// DefaultLoadTimeout bounds a single directory read.
const DefaultLoadTimeout = 30 * time.Second

func NewCache(dir Directory, logger *zap.Logger) *Cache {
	return &Cache{
		dir:         dir,
		logger:      logger,
		byID:        make(map[int64]models.Personality),
		loadTimeout: DefaultLoadTimeout,
	}
}

// Load populates the cache. It is meant to run once at startup; a failure
// there should stop the process.
func (c *Cache) Load(ctx context.Context) error {
	return c.Refresh(ctx)
}

// Refresh replaces the snapshot with the directory's current contents.
// Callers arriving while a read is in flight share the next read that
// starts after they arrived, so a write made before Refresh is always
// visible once it returns nil. The shared read is detached from any one
// caller's ctx; each caller stops waiting when its own ctx ends.
func (c *Cache) Refresh(ctx context.Context) error {
	want := c.requested.Add(1)
	for {
		ch := c.group.DoChan("refresh", func() (any, error) {
			return c.load(context.WithoutCancel(ctx))
		})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return res.Err
			}
			if res.Val.(uint64) >= want {
				return nil
			}
			c.logger.Debug("Personality refresh joined an older read; reading again")
		}
	}
}

// load reads the directory and swaps the snapshot. It returns the request
// generation it started at: every Refresh that registered at or before it
// is satisfied by this read.
func (c *Cache) load(ctx context.Context) (any, error) {
	gen := c.requested.Load()

	ctx, cancel := context.WithTimeout(ctx, c.loadTimeout)
	defer cancel()
	list, err := c.dir.ListPersonalities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list personalities: %w", err)
	}

	byID := make(map[int64]models.Personality, len(list))
	order := make([]int64, 0, len(list))
	for _, p := range list {
		if _, dup := byID[p.ID]; !dup {
			order = append(order, p.ID)
		}
		byID[p.ID] = p
	}

	c.mu.Lock()
	c.byID = byID
	c.order = order
	c.mu.Unlock()

	c.logger.Info("Personality cache loaded", zap.Int("count", len(order)))
	return gen, nil
}

func (c *Cache) GetByID(id int64) (models.Personality, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byID[id]
	return p, ok
}

// GetFirst returns the personality listed first by the directory (lowest
// id for the SQLite store).
func (c *Cache) GetFirst() (models.Personality, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.order) == 0 {
		return models.Personality{}, false
	}
	return c.byID[c.order[0]], true
}

// All returns a copy of every cached personality in directory order.
func (c *Cache) All() []models.Personality {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Personality, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
