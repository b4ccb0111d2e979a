package feast

import (
	"context"
	"sync"
	"time"

	"github.com/rushteam/retainiq/core"
)

// CachedProfileSource 为画像数据源加一层进程内缓存（TTL + LRU），
// 减少同一客户短时间内重复查询对在线特征库的访问。NOT_FOUND 等错误不缓存。
type CachedProfileSource struct {
	source core.ProfileSource

	mu      sync.Mutex
	entries map[string]*cacheEntry
	maxSize int
	ttl     time.Duration

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

type cacheEntry struct {
	profile    core.CustomerProfile
	expireTime time.Time
	accessTime time.Time
}

// NewCachedProfileSource 创建带缓存的画像数据源
func NewCachedProfileSource(source core.ProfileSource, maxSize int, ttl time.Duration) *CachedProfileSource {
	if maxSize <= 0 {
		maxSize = 1024
	}
	c := &CachedProfileSource{
		source:      source,
		entries:     make(map[string]*cacheEntry),
		maxSize:     maxSize,
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
	}
	c.cleanupTicker = time.NewTicker(time.Minute)
	go c.cleanup()
	return c
}

func (c *CachedProfileSource) Name() string { return c.source.Name() + "+cache" }

// Lookup 命中且未过期时返回缓存副本，否则回源并写入缓存。
func (c *CachedProfileSource) Lookup(ctx context.Context, customerID string) (*core.CustomerProfile, error) {
	now := time.Now()
	c.mu.Lock()
	if e, ok := c.entries[customerID]; ok && now.Before(e.expireTime) {
		e.accessTime = now
		p := e.profile
		c.mu.Unlock()
		return &p, nil
	}
	c.mu.Unlock()

	p, err := c.source.Lookup(ctx, customerID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if _, exists := c.entries[customerID]; !exists && len(c.entries) >= c.maxSize {
		c.evictLRU()
	}
	c.entries[customerID] = &cacheEntry{profile: *p, expireTime: now.Add(c.ttl), accessTime: now}
	c.mu.Unlock()
	return p, nil
}

// Invalidate 删除单个客户的缓存
func (c *CachedProfileSource) Invalidate(customerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, customerID)
}

// Len 当前缓存条目数（含未清理的过期条目）
func (c *CachedProfileSource) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *CachedProfileSource) cleanup() {
	for {
		select {
		case <-c.cleanupTicker.C:
			c.cleanExpired(time.Now())
		case <-c.stopCleanup:
			c.cleanupTicker.Stop()
			return
		}
	}
}

func (c *CachedProfileSource) cleanExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		if now.After(e.expireTime) {
			delete(c.entries, id)
		}
	}
}

// evictLRU 删除最久未访问的条目，调用方持有锁
func (c *CachedProfileSource) evictLRU() {
	var (
		oldestKey  string
		oldestTime time.Time
		first      = true
	)
	for id, e := range c.entries {
		if first || e.accessTime.Before(oldestTime) {
			oldestKey = id
			oldestTime = e.accessTime
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// Close 停止清理协程
func (c *CachedProfileSource) Close() {
	c.closeOnce.Do(func() { close(c.stopCleanup) })
}
