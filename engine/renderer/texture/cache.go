package texture

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
)

// AllocInfo describes a render target attachment.
type AllocInfo struct {
	Format            metadata.Format
	Width             uint32
	Height            uint32
	IsInputAttachment bool
}

// Cache lends render target textures to materials. A texture stays with its
// borrower until handed back with Free.
type Cache interface {
	Allocate(info AllocInfo) (*metadata.Texture, error)
	Free(tex *metadata.Texture)
}

// Allocator creates and destroys backend textures.
type Allocator interface {
	Create(info AllocInfo) (*metadata.Texture, error)
	Destroy(tex *metadata.Texture)
}

type PooledCacheConfig struct {
	/** @brief The maximum number of textures alive at once, lent or pooled. */
	MaxTextureCount uint32
}

type PooledCacheStats struct {
	Created   uint64
	Reused    uint64
	Destroyed uint64
	Lent      uint32
	Pooled    uint32
}

/**
 * @brief A Cache keeping freed textures for reuse by later allocations with
 * the same description.
 */
type PooledCache struct {
	mu        sync.Mutex
	config    *PooledCacheConfig
	allocator Allocator
	free      map[AllocInfo][]*metadata.Texture
	lent      map[*metadata.Texture]AllocInfo
	stats     PooledCacheStats
}

func NewPooledCache(config *PooledCacheConfig, allocator Allocator) (*PooledCache, error) {
	if config.MaxTextureCount == 0 {
		err := fmt.Errorf("func NewPooledCache - config.MaxTextureCount must be > 0: %w", core.ErrConfiguration)
		core.LogError(err.Error())
		return nil, err
	}
	return &PooledCache{
		config:    config,
		allocator: allocator,
		free:      make(map[AllocInfo][]*metadata.Texture),
		lent:      make(map[*metadata.Texture]AllocInfo),
	}, nil
}

func (c *PooledCache) Allocate(info AllocInfo) (*metadata.Texture, error) {
	if info.Width == 0 || info.Height == 0 {
		return nil, fmt.Errorf("texture of %dx%d requested: %w", info.Width, info.Height, core.ErrUsage)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if pooled := c.free[info]; len(pooled) > 0 {
		tex := pooled[len(pooled)-1]
		c.free[info] = pooled[:len(pooled)-1]
		c.lent[tex] = info
		c.stats.Reused++
		return tex, nil
	}

	if c.liveLocked() >= c.config.MaxTextureCount {
		// Make room with textures nobody asked for lately.
		c.trimLocked()
	}
	if c.liveLocked() >= c.config.MaxTextureCount {
		err := fmt.Errorf("texture cache holds %d lent textures: %w", len(c.lent), core.ErrResourceExhausted)
		core.LogError(err.Error())
		return nil, err
	}

	tex, err := c.allocator.Create(info)
	if err != nil {
		core.LogError("failed to create %dx%d texture: %s", info.Width, info.Height, err)
		return nil, err
	}
	c.lent[tex] = info
	c.stats.Created++
	core.LogDebug("texture cache created %dx%d texture %d", info.Width, info.Height, tex.ID)
	return tex, nil
}

// Free returns tex to the pool. Unknown textures are ignored.
func (c *PooledCache) Free(tex *metadata.Texture) {
	if tex == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	info, ok := c.lent[tex]
	if !ok {
		core.LogWarn("texture cache asked to free texture %d it never lent", tex.ID)
		return
	}
	delete(c.lent, tex)
	c.free[info] = append(c.free[info], tex)
}

// Trim destroys every pooled texture.
func (c *PooledCache) Trim() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trimLocked()
}

func (c *PooledCache) Stats() PooledCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.stats
	st.Lent = uint32(len(c.lent))
	st.Pooled = c.liveLocked() - st.Lent
	return st
}

func (c *PooledCache) liveLocked() uint32 {
	n := len(c.lent)
	for _, pooled := range c.free {
		n += len(pooled)
	}
	return uint32(n)
}

func (c *PooledCache) trimLocked() {
	for info, pooled := range c.free {
		for _, tex := range pooled {
			c.allocator.Destroy(tex)
			c.stats.Destroyed++
		}
		delete(c.free, info)
	}
}
