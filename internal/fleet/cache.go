package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// overrideLoaders bounds concurrent override reads during a load.
const overrideLoaders = 8

// LoadDataset reads the root listing and the override record of every
// listed entity. Missing or unparseable data degrades to an empty (or
// partial) dataset; it is never an error for the caller.
func LoadDataset(ctx context.Context, store Store, logger *zap.Logger) *Dataset {
	if logger == nil {
		logger = zap.NewNop()
	}
	ds := &Dataset{Entities: []Entity{}, Overrides: map[string]Entity{}, LoadedAt: time.Now()}

	raw, err := store.ReadRoot(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Warn("fleet listing unreadable", zap.Error(err))
		}
		return ds
	}
	entities, err := DecodeListing(raw)
	if err != nil {
		logger.Warn("fleet listing unparseable", zap.Error(err))
		return ds
	}
	ds.Entities = entities

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(overrideLoaders)
	for _, e := range entities {
		id := e.ID
		if !ValidID(id) {
			continue
		}
		g.Go(func() error {
			b, err := store.ReadOverride(gctx, id)
			if err != nil {
				if !errors.Is(err, ErrNotFound) {
					logger.Warn("override unreadable", zap.String("id", id), zap.Error(err))
				}
				return nil
			}
			var detail Entity
			if err := json.Unmarshal(b, &detail); err != nil {
				logger.Warn("override unparseable", zap.String("id", id), zap.Error(err))
				return nil
			}
			if detail.ID == "" {
				detail.ID = id
			}
			mu.Lock()
			ds.Overrides[id] = detail
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return ds
}

// Cache lazily loads one Dataset and shares it across requests. It is
// never refreshed on its own: callers (or Watch) must call Invalidate
// after the underlying data changes.
type Cache struct {
	store  Store
	logger *zap.Logger

	mu sync.Mutex
	ds *Dataset
}

func NewCache(store Store, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: store, logger: logger}
}

// Dataset returns the cached snapshot, loading it on first use. The
// returned value must be treated as read-only.
func (c *Cache) Dataset(ctx context.Context) *Dataset {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ds != nil {
		return c.ds
	}
	ds := LoadDataset(ctx, c.store, c.logger)
	if ctx.Err() != nil {
		// possibly partial; serve it but do not keep it
		return ds
	}
	c.ds = ds
	c.logger.Debug("fleet dataset loaded",
		zap.Int("entities", len(ds.Entities)),
		zap.Int("overrides", len(ds.Overrides)))
	return ds
}

// Invalidate drops the snapshot so the next Dataset call reloads.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.ds = nil
	c.mu.Unlock()
}

// Store exposes the backing store for direct record reads and writes.
func (c *Cache) Store() Store { return c.store }
