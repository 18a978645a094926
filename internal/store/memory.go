package store

import (
	"sync"
	"time"

	"fleet-monitor-backend/internal/types"
)

// SummaryCache keeps the last squadron AI analysis in memory and mirrors
// it to a JSONFile so it survives restarts. The file is read once, on the
// first Get.
type SummaryCache struct {
	file *JSONFile
	now  func() time.Time

	mu     sync.RWMutex
	loaded bool
	entry  *types.SummaryCacheEntry
}

func NewSummaryCache(file *JSONFile) *SummaryCache {
	return &SummaryCache{file: file, now: time.Now}
}

// Get returns a copy of the cached entry, or nil when none was saved.
func (c *SummaryCache) Get() (*types.SummaryCacheEntry, error) {
	c.mu.RLock()
	if c.loaded {
		defer c.mu.RUnlock()
		return copyEntry(c.entry), nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		var e types.SummaryCacheEntry
		ok, err := c.file.Decode(&e)
		if err != nil {
			return nil, err
		}
		if ok {
			c.entry = &e
		}
		c.loaded = true
	}
	return copyEntry(c.entry), nil
}

// Put stamps entry with the current time in milliseconds, persists it
// and makes it the cached value.
func (c *SummaryCache) Put(entry types.SummaryCacheEntry) (types.SummaryCacheEntry, error) {
	entry.TS = c.now().UnixMilli()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.file.Write(entry); err != nil {
		return entry, err
	}
	c.entry = &entry
	c.loaded = true
	return entry, nil
}

func copyEntry(e *types.SummaryCacheEntry) *types.SummaryCacheEntry {
	if e == nil {
		return nil
	}
	cp := *e
	return &cp
}
