package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/codewithboateng/adlint/internal/model"
)

// ReportCache memoizes reports per (ruleset version, text). A new ruleset
// version makes older entries unreachable; they expire on TTL.
type ReportCache struct {
	cache *gocache.Cache
}

// New creates a cache. A ttl <= 0 keeps entries until Flush.
func New(ttl, cleanupInterval time.Duration) *ReportCache {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &ReportCache{cache: gocache.New(ttl, cleanupInterval)}
}

// Key derives the cache key for a text scanned under a ruleset version.
func Key(version uint64, text string) string {
	sum := sha256.Sum256([]byte(text))
	return strconv.FormatUint(version, 10) + ":" + hex.EncodeToString(sum[:])
}

func (c *ReportCache) Get(key string) (model.Report, bool) {
	if c == nil {
		return model.Report{}, false
	}
	if v, found := c.cache.Get(key); found {
		return v.(model.Report), true
	}
	return model.Report{}, false
}

func (c *ReportCache) Set(key string, rep model.Report) {
	if c == nil {
		return
	}
	c.cache.SetDefault(key, rep)
}

func (c *ReportCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.ItemCount()
}

// Flush drops every entry.
func (c *ReportCache) Flush() {
	if c == nil {
		return
	}
	c.cache.Flush()
}
