package build

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"

	"github.com/conneroisu/astral/internal/compiler"
	"github.com/conneroisu/astral/internal/logging"
	"github.com/conneroisu/astral/internal/runtime"
)

var fetchContentCall = []byte("fetchContent")

// CachedCompiler memoizes a compiler by source content. Inputs carrying a
// pre-parsed tree bypass the cache, as do sources calling fetchContent,
// whose output depends on the files their glob matches.
type CachedCompiler struct {
	inner       runtime.Compiler
	memory      *MemoryCache
	disk        *DiskCache
	fingerprint string
	logger      logging.Logger

	diskHits int64
}

// NewCachedCompiler wraps inner. fingerprint must change whenever the
// output for the same source would, for example with the compiler mode.
// disk may be nil.
func NewCachedCompiler(inner runtime.Compiler, memory *MemoryCache, disk *DiskCache, fingerprint string, logger logging.Logger) *CachedCompiler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CachedCompiler{
		inner:       inner,
		memory:      memory,
		disk:        disk,
		fingerprint: fingerprint,
		logger:      logger.WithComponent("cache"),
	}
}

// Key is the cache key of in.
func (c *CachedCompiler) Key(in compiler.Input) string {
	h := sha256.New()
	h.Write([]byte(c.fingerprint))
	h.Write([]byte{0})
	h.Write([]byte(in.Filename))
	h.Write([]byte{0})
	h.Write([]byte(in.FileID))
	h.Write([]byte{0})
	h.Write(in.Source)
	return hex.EncodeToString(h.Sum(nil))
}

// Compile implements runtime.Compiler.
func (c *CachedCompiler) Compile(ctx context.Context, in compiler.Input) (*compiler.Output, error) {
	if in.Tree != nil || bytes.Contains(in.Source, fetchContentCall) {
		return c.inner.Compile(ctx, in)
	}
	key := c.Key(in)

	if out, ok := c.memory.Get(key); ok {
		return out, nil
	}
	out, ok, err := c.disk.Get(key)
	if err != nil {
		c.logger.Warn(ctx, err, "Reading disk cache", "file", in.Filename)
	}
	if ok {
		atomic.AddInt64(&c.diskHits, 1)
		c.memory.Set(key, out)
		return out, nil
	}

	out, err = c.inner.Compile(ctx, in)
	if err != nil {
		return nil, err
	}
	c.memory.Set(key, out)
	if err := c.disk.Put(key, out); err != nil {
		c.logger.Warn(ctx, err, "Writing disk cache", "file", in.Filename)
	}
	return out, nil
}

// Stats returns the memory cache statistics with disk hits counted as hits.
func (c *CachedCompiler) Stats() CacheStats {
	s := c.memory.Stats()
	s.DiskHits = atomic.LoadInt64(&c.diskHits)
	s.Hits += s.DiskHits
	s.Misses -= s.DiskHits
	return s
}
