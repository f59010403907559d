package cache

import (
	"errors"
	"sync"
	"time"
)

// DigestCache adapts a Store to the lookups made by the dedup engines.
// It is safe for concurrent use by the hashing workers.
type DigestCache struct {
	store *Store

	mu     sync.Mutex
	hits   int
	misses int
}

// NewDigestCache wraps store.
func NewDigestCache(store *Store) *DigestCache {
	return &DigestCache{store: store}
}

// Close closes the underlying store.
func (c *DigestCache) Close() error {
	return c.store.Close()
}

// Digests returns the cached digests for path if the entry is fresh and
// holds every requested algorithm.
func (c *DigestCache) Digests(path string, size int64, mtime time.Time, algorithms []string) (map[string]string, bool) {
	entry, ok := c.fresh(path, size, mtime)
	if ok {
		out := make(map[string]string, len(algorithms))
		for _, alg := range algorithms {
			v, found := entry.Digests[alg]
			if !found {
				ok = false
				break
			}
			out[alg] = v
		}
		if ok {
			c.count(true)
			return out, true
		}
	}
	c.count(false)
	return nil, false
}

// PutDigests records digests for path, keeping any perceptual hash already stored.
func (c *DigestCache) PutDigests(path string, size int64, mtime time.Time, digests map[string]string) error {
	return c.merge(path, size, mtime, &Entry{Digests: digests})
}

// PHash returns the cached perceptual hash for path.
func (c *DigestCache) PHash(path string, size int64, mtime time.Time) (uint64, bool) {
	entry, ok := c.fresh(path, size, mtime)
	if ok && entry.HasPHash {
		c.count(true)
		return entry.PHash, true
	}
	c.count(false)
	return 0, false
}

// PutPHash records the perceptual hash for path.
func (c *DigestCache) PutPHash(path string, size int64, mtime time.Time, hash uint64) error {
	return c.merge(path, size, mtime, &Entry{PHash: hash, HasPHash: true})
}

// Stats returns hit and miss counts since creation.
func (c *DigestCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *DigestCache) fresh(path string, size int64, mtime time.Time) (*Entry, bool) {
	entry, err := c.store.Get(path)
	if err != nil || !entry.Fresh(size, mtime.UnixNano()) {
		return nil, false
	}
	return entry, true
}

func (c *DigestCache) merge(path string, size int64, mtime time.Time, update *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, err := c.store.Get(path)
	switch {
	case errors.Is(err, ErrNotFound):
		entry = &Entry{}
	case err != nil:
		return err
	}
	if !entry.Fresh(size, mtime.UnixNano()) {
		entry = &Entry{}
	}
	entry.Size, entry.Mtime = size, mtime.UnixNano()
	entry.Merge(update)
	return c.store.Put(path, entry)
}

func (c *DigestCache) count(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}
