package mediatool

import (
	"context"
	"os"
	"sync"
	"syscall"

	"golang.org/x/sync/singleflight"
)

// ProbeService is the subset of Prober's surface the action library
// depends on, satisfied by both a bare Prober and a CachingProber.
type ProbeService interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)
}

type probeCacheEntry struct {
	result *ProbeResult
	inode  uint64
	size   int64
}

// CachingProber wraps a Prober with an inode+size-validated cache and a
// singleflight group so concurrent callers asking about the same path (two
// actions probing the same file at once, for instance) share
// one ffprobe invocation instead of spawning one each. Grounded on the
// cache-plus-signature-check pattern,
// generalized with golang.org/x/sync/singleflight's request collapsing in
// place of a bespoke recursive-count-only use of it.
type CachingProber struct {
	inner *Prober

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]probeCacheEntry
}

// NewCachingProber wraps an existing Prober.
func NewCachingProber(inner *Prober) *CachingProber {
	return &CachingProber{inner: inner, cache: make(map[string]probeCacheEntry)}
}

// Probe returns a cached result if the file's inode and size still match
// what was cached, otherwise runs ffprobe (collapsing concurrent callers for
// the same path into a single invocation) and caches the fresh result.
func (c *CachingProber) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	info, statErr := os.Stat(path)
	var inode uint64
	var size int64
	if statErr == nil {
		size = info.Size()
		if stat, ok := info.Sys().(*syscall.Stat_t); ok {
			inode = stat.Ino
		}
	}

	if statErr == nil {
		c.mu.RLock()
		entry, ok := c.cache[path]
		c.mu.RUnlock()
		if ok && entry.inode == inode && entry.size == size {
			return entry.result, nil
		}
	}

	v, err, _ := c.group.Do(path, func() (any, error) {
		result, err := c.inner.Probe(ctx, path)
		if err != nil {
			return nil, err
		}
		if statErr == nil {
			c.mu.Lock()
			c.cache[path] = probeCacheEntry{result: result, inode: inode, size: size}
			c.mu.Unlock()
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ProbeResult), nil
}

// Invalidate drops any cached result for path, so the next Probe of it runs
// ffprobe again.
func (c *CachingProber) Invalidate(path string) {
	c.mu.Lock()
	delete(c.cache, path)
	c.mu.Unlock()
}
