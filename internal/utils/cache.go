package utils

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// CacheItem 包装缓存数据和过期时间
type CacheItem struct {
	Data      any
	ExpiresAt time.Time
}

// Cache 本地 LRU 缓存，每个条目带 TTL。
// Purge 会递增 generation，之前开始的加载结果不会再写回缓存。
type Cache struct {
	lruCache *lru.Cache[string, CacheItem]
	ttl      time.Duration
	group    singleflight.Group
	now      func() time.Time

	mu         sync.Mutex
	generation uint64
}

// NewCache 创建容量为 size 的缓存，size <= 0 时使用 500
func NewCache(size int, ttl time.Duration) (*Cache, error) {
	if size <= 0 {
		size = 500
	}
	l, err := lru.New[string, CacheItem](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &Cache{lruCache: l, ttl: ttl, now: time.Now}, nil
}

// Set 设置缓存，使用默认 TTL
func (c *Cache) Set(key string, data any) {
	c.lruCache.Add(key, CacheItem{
		Data:      data,
		ExpiresAt: c.now().Add(c.ttl),
	})
}

// Get 获取缓存，若不存在或已过期则返回 false
func (c *Cache) Get(key string) (any, bool) {
	val, ok := c.lruCache.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return nil, false
	}
	return val.Data, true
}

// GetOrLoad 未命中时调用 load，同一个 key 的并发请求只加载一次。
// load 出错时不写缓存；load 期间发生过 Purge/Delete 时结果只返回给调用方，不写缓存。
func (c *Cache) GetOrLoad(key string, load func() (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	gen := c.currentGeneration()
	// singleflight 的 key 带上 generation，清空之后的请求不会合并到旧的加载上
	v, err, _ := c.group.Do(strconv.FormatUint(gen, 10)+":"+key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return nil, err
		}
		c.setIfGeneration(gen, key, v)
		return v, nil
	})
	return v, err
}

func (c *Cache) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *Cache) setIfGeneration(gen uint64, key string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return
	}
	c.Set(key, data)
}

// Delete 删除指定缓存
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.lruCache.Remove(key)
}

// Purge 清空所有缓存
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.lruCache.Purge()
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	return c.lruCache.Len()
}
