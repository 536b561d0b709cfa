package netcdf

import (
	"sync"

	"github.com/robert-malhotra/go-netcdf4/container"
)

// Default chunk cache tuning applied to files opened or created while
// the process-wide defaults are untouched.
const (
	DefaultChunkCacheSize    = 4 * 1024 * 1024
	DefaultChunkCacheNElems  = 1009
	DefaultChunkCachePreempt = 0.75
)

// Per-variable cache growth policy: when one chunk does not fit the
// default cache, the variable's cache is grown to hold this many
// chunks, capped at the maximum.
const (
	chunksPerVarCache = 10
	maxVarCacheSize   = 64 * 1024 * 1024
)

// chunkCacheDefaults is the process-wide mutable default, snapshotted
// into each file at open/create time. Single writer, many readers.
var chunkCacheDefaults = struct {
	sync.RWMutex
	cfg container.CacheConfig
}{
	cfg: container.CacheConfig{
		Size:       DefaultChunkCacheSize,
		NElems:     DefaultChunkCacheNElems,
		Preemption: DefaultChunkCachePreempt,
	},
}

// SetChunkCache sets the process-wide default chunk cache parameters.
// Only files opened or created afterwards are affected. The
// preemption fraction must lie in [0, 1]; out-of-range values fail
// with ErrInvalid and leave the stored defaults untouched.
func SetChunkCache(size, nelems uint64, preemption float64) error {
	if preemption < 0 || preemption > 1 {
		return ErrInvalid
	}
	chunkCacheDefaults.Lock()
	defer chunkCacheDefaults.Unlock()
	chunkCacheDefaults.cfg = container.CacheConfig{Size: size, NElems: nelems, Preemption: preemption}
	return nil
}

// ChunkCache returns the process-wide default chunk cache parameters.
func ChunkCache() (size, nelems uint64, preemption float64) {
	chunkCacheDefaults.RLock()
	defer chunkCacheDefaults.RUnlock()
	cfg := chunkCacheDefaults.cfg
	return cfg.Size, cfg.NElems, cfg.Preemption
}

// SetChunkCacheInts is the integer-scaled form of SetChunkCache, with
// the preemption fraction expressed as a percentage. Fixed-point
// callers cannot express the full floating-point range safely, so
// size and nelems must additionally be strictly positive.
func SetChunkCacheInts(size, nelems, preemption int) error {
	if size <= 0 || nelems <= 0 || preemption < 0 || preemption > 100 {
		return ErrInvalid
	}
	chunkCacheDefaults.Lock()
	defer chunkCacheDefaults.Unlock()
	chunkCacheDefaults.cfg = container.CacheConfig{
		Size:       uint64(size),
		NElems:     uint64(nelems),
		Preemption: float64(preemption) / 100,
	}
	return nil
}

// ChunkCacheInts returns the defaults in integer-scaled form.
func ChunkCacheInts() (size, nelems, preemption int) {
	chunkCacheDefaults.RLock()
	defer chunkCacheDefaults.RUnlock()
	cfg := chunkCacheDefaults.cfg
	return int(cfg.Size), int(cfg.NElems), int(cfg.Preemption * 100)
}

// snapshotChunkCache captures the current defaults for a file being
// opened or created. Later changes to the defaults do not affect the
// file.
func snapshotChunkCache() container.CacheConfig {
	chunkCacheDefaults.RLock()
	defer chunkCacheDefaults.RUnlock()
	return chunkCacheDefaults.cfg
}

// adjustVarCache grows a chunked variable's cache when a single chunk
// exceeds the cache byte budget, so first access does not thrash.
func (v *Variable) adjustVarCache() error {
	if len(v.chunks) == 0 {
		return nil
	}
	chunkBytes := v.typ.size
	for _, c := range v.chunks {
		chunkBytes *= c
	}
	if chunkBytes <= v.cache.Size {
		return nil
	}
	size := chunkBytes * chunksPerVarCache
	if size > maxVarCacheSize {
		size = maxVarCacheSize
	}
	if size < chunkBytes {
		size = chunkBytes
	}
	v.cache.Size = size
	if v.ds == nil {
		return nil
	}
	return v.ds.SetCacheConfig(v.cache)
}
