package pipeline

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/spaghettifunk/anima-graph/engine/core"
)

type CacheConfig struct {
	// Capacity bounds the number of pipelines kept across brackets.
	Capacity int
	// WarmWorkers is the number of goroutines Warm compiles with.
	WarmWorkers int
}

type CacheStats struct {
	Entries     int
	Hits        uint64
	Misses      uint64
	Compiles    uint64
	Failures    uint64
	Evictions   uint64
	Invalidated uint64
}

type entry struct {
	key      Key
	pipeline *Pipeline
	err      error
	// ready is non-nil while the pipeline compiles and closed when done.
	ready   chan struct{}
	elem    *list.Element
	touched uint64
	stale   bool
}

/**
 * @brief Memoizes compiled pipelines by structural key.
 *
 * Lookups are safe for concurrent use. A key compiles at most once at a time:
 * concurrent lookups wait for the in-flight compile and share its result.
 * Failed compiles are never cached.
 */
type Cache struct {
	mu       sync.Mutex
	compiler Compiler
	capacity int
	workers  int

	entries map[Key]*entry
	// lru holds *entry, most recently touched first.
	lru       *list.List
	bracket   uint64
	inBracket bool
	// stale pipelines are destroyed when the current bracket ends.
	stale []*Pipeline
	stats CacheStats
}

func NewCache(compiler Compiler, config *CacheConfig) (*Cache, error) {
	if compiler == nil {
		err := fmt.Errorf("pipeline cache needs a compiler: %w", core.ErrConfiguration)
		core.LogError(err.Error())
		return nil, err
	}
	if config.Capacity <= 0 {
		err := fmt.Errorf("pipeline cache capacity must be positive, got %d: %w", config.Capacity, core.ErrConfiguration)
		core.LogError(err.Error())
		return nil, err
	}
	workers := config.WarmWorkers
	if workers < 1 {
		workers = 1
	}
	return &Cache{
		compiler: compiler,
		capacity: config.Capacity,
		workers:  workers,
		entries:  make(map[Key]*entry, config.Capacity),
		lru:      list.New(),
	}, nil
}

// Start opens a bracket, usually one frame. Entries not touched inside the
// bracket become eviction candidates.
func (c *Cache) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inBracket {
		return fmt.Errorf("pipeline cache Start called twice without End: %w", core.ErrUsage)
	}
	c.bracket++
	c.inBracket = true
	return nil
}

// End closes the bracket, destroys invalidated pipelines and evicts down to
// capacity. It fails with ErrResourceExhausted when every remaining entry
// was used in the bracket and the cache is still over capacity.
func (c *Cache) End() error {
	c.mu.Lock()
	if !c.inBracket {
		c.mu.Unlock()
		return fmt.Errorf("pipeline cache End called without Start: %w", core.ErrUsage)
	}
	c.inBracket = false
	doomed := c.stale
	c.stale = nil
	doomed = append(doomed, c.evictLocked(true)...)
	over := len(c.entries) - c.capacity
	c.mu.Unlock()

	c.destroy(doomed)
	if over > 0 {
		err := fmt.Errorf("pipeline cache holds %d entries over its capacity of %d: %w", over, c.capacity, core.ErrResourceExhausted)
		core.LogError(err.Error())
		return err
	}
	return nil
}

// Caching returns the pipeline for info, compiling it on a miss.
func (c *Cache) Caching(info Info) (*Pipeline, error) {
	key := info.Key()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.touchLocked(e)
		if ready := e.ready; ready != nil {
			c.stats.Hits++
			c.mu.Unlock()
			<-ready
			if e.err != nil {
				return nil, e.err
			}
			return e.pipeline, nil
		}
		c.stats.Hits++
		p := e.pipeline
		c.mu.Unlock()
		return p, nil
	}

	e := &entry{key: key, ready: make(chan struct{})}
	e.elem = c.lru.PushFront(e)
	e.touched = c.bracket
	c.entries[key] = e
	c.stats.Misses++
	doomed := c.evictLocked(false)
	c.mu.Unlock()
	c.destroy(doomed)

	p, err := c.compile(info, key)

	c.mu.Lock()
	if err != nil {
		e.err = err
		c.stats.Failures++
		c.removeLocked(e)
	} else {
		e.pipeline = p
		c.stats.Compiles++
		if e.stale {
			c.retireLocked(p)
		}
	}
	close(e.ready)
	e.ready = nil
	doomed = c.flushLocked()
	c.mu.Unlock()
	c.destroy(doomed)

	if err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Cache) compile(info Info, key Key) (p *Pipeline, err error) {
	start := time.Now()
	p, err = c.compiler.Compile(info)
	if err == nil && p == nil {
		err = fmt.Errorf("compiler returned no pipeline")
	}
	if err != nil {
		err = fmt.Errorf("pipeline for shader %d, layout %d, render pass %d subpass %d: %w: %w",
			key.ShaderID, key.VertexLayoutID, key.RenderPassID, key.Subpass, core.ErrCompilation, err)
		core.LogError(err.Error())
		return nil, err
	}
	p.Key = key
	core.LogDebug("compiled pipeline for shader %d, render pass %d subpass %d in %s",
		key.ShaderID, key.RenderPassID, key.Subpass, time.Since(start))
	return p, nil
}

// Warm compiles every info in parallel on a worker pool and reports the first
// failure. Already cached keys cost a lookup.
func (c *Cache) Warm(infos []Info) error {
	if len(infos) == 0 {
		return nil
	}
	pool := worker.NewDynamicWorkerPool(c.workers, len(infos), 1*time.Second)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error
	for i, info := range infos {
		wg.Add(1)
		pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				p, err := c.Caching(info)
				if err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				return p, err
			},
		})
	}
	wg.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("warming %d pipelines, %d failed: %w", len(infos), len(errs), errs[0])
	}
	return nil
}

// Invalidate drops every entry whose key matches. Dropped pipelines are never
// returned again and are destroyed at the end of the current bracket, or
// immediately outside one.
func (c *Cache) Invalidate(match func(Key) bool) int {
	c.mu.Lock()
	var dropped []*entry
	for k, e := range c.entries {
		if match(k) {
			dropped = append(dropped, e)
		}
	}
	for _, e := range dropped {
		c.removeLocked(e)
		if e.ready != nil {
			e.stale = true
			continue
		}
		c.retireLocked(e.pipeline)
	}
	c.stats.Invalidated += uint64(len(dropped))
	doomed := c.flushLocked()
	c.mu.Unlock()

	c.destroy(doomed)
	if len(dropped) > 0 {
		core.LogDebug("invalidated %d cached pipelines", len(dropped))
	}
	return len(dropped)
}

// InvalidateShader drops every pipeline built from the shader.
func (c *Cache) InvalidateShader(shaderID uint32) int {
	return c.Invalidate(func(k Key) bool { return k.ShaderID == shaderID })
}

// Clear destroys every cached pipeline. Used when the targets are resized.
func (c *Cache) Clear() {
	c.mu.Lock()
	doomed := c.stale
	c.stale = nil
	for _, e := range c.entries {
		if e.ready != nil {
			e.stale = true
			continue
		}
		doomed = append(doomed, e.pipeline)
	}
	n := len(c.entries)
	c.entries = make(map[Key]*entry, c.capacity)
	c.lru.Init()
	c.mu.Unlock()

	c.destroy(doomed)
	core.LogDebug("pipeline cache cleared, %d entries dropped", n)
}

func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.stats
	st.Entries = len(c.entries)
	return st
}

// Len is the number of cached or in-flight pipelines.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) touchLocked(e *entry) {
	e.touched = c.bracket
	c.lru.MoveToFront(e.elem)
}

func (c *Cache) removeLocked(e *entry) {
	if cur, ok := c.entries[e.key]; ok && cur == e {
		delete(c.entries, e.key)
		c.lru.Remove(e.elem)
	}
}

// retireLocked schedules p for destruction at the end of the bracket.
func (c *Cache) retireLocked(p *Pipeline) {
	if p != nil {
		c.stale = append(c.stale, p)
	}
}

// flushLocked hands back the retired pipelines that can be destroyed now.
// Nothing recorded can reference them outside a bracket.
func (c *Cache) flushLocked() []*Pipeline {
	if c.inBracket {
		return nil
	}
	doomed := c.stale
	c.stale = nil
	return doomed
}

// evictLocked removes least recently touched entries until the cache fits.
// Inside a bracket entries touched in it are kept; at the end of a bracket
// (closing) the most recent bracket's entries are kept as well.
func (c *Cache) evictLocked(closing bool) []*Pipeline {
	var doomed []*Pipeline
	protect := c.inBracket || closing
	for el := c.lru.Back(); el != nil && len(c.entries) > c.capacity; {
		e := el.Value.(*entry)
		prev := el.Prev()
		if e.ready == nil && !(protect && e.touched == c.bracket) {
			c.removeLocked(e)
			doomed = append(doomed, e.pipeline)
			c.stats.Evictions++
			core.LogDebug("evicted pipeline for shader %d, render pass %d subpass %d",
				e.key.ShaderID, e.key.RenderPassID, e.key.Subpass)
		}
		el = prev
	}
	return doomed
}

func (c *Cache) destroy(pipelines []*Pipeline) {
	for _, p := range pipelines {
		if p != nil {
			c.compiler.Destroy(p)
		}
	}
}
