package assets

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
)

// Invalidator drops every cached pipeline built from a shader.
type Invalidator interface {
	InvalidateShader(shaderID uint32) int
}

/**
 * @brief Watches compiled shader stages on disk. When a registered stage
 * file is written, every pipeline built from its shader is invalidated and
 * recompiled on next use.
 */
type ShaderWatcher struct {
	cache Invalidator

	mutex   sync.RWMutex
	shaders map[string][]uint32

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
	started  bool
	// OnReload is called after a stage file change invalidated pipelines.
	OnReload func(path string, invalidated int)
}

func NewShaderWatcher(cache Invalidator) (*ShaderWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &ShaderWatcher{
		cache:    cache,
		shaders:  make(map[string][]uint32),
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// Watch starts watching dir and all of its sub-directories.
func (sw *ShaderWatcher) Watch(dir string) error {
	if sw.isClosed {
		return errors.New("shader watcher already closed")
	}
	if err := sw.watchRecursive(dir); err != nil {
		return err
	}
	if !sw.started {
		sw.started = true
		go sw.start()
	}
	core.LogInfo("watching shaders in %s", dir)
	return nil
}

// Register maps every stage file of shader to its id.
func (sw *ShaderWatcher) Register(shader *metadata.Shader) {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()
	for _, stage := range shader.Stages {
		path := normalize(stage.FilePath)
		sw.shaders[path] = appendUnique(sw.shaders[path], shader.ID)
	}
}

func (sw *ShaderWatcher) Unregister(shader *metadata.Shader) {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()
	for _, stage := range shader.Stages {
		path := normalize(stage.FilePath)
		ids := sw.shaders[path][:0]
		for _, id := range sw.shaders[path] {
			if id != shader.ID {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			delete(sw.shaders, path)
		} else {
			sw.shaders[path] = ids
		}
	}
}

func (sw *ShaderWatcher) Close() error {
	if sw.isClosed {
		return nil
	}
	sw.isClosed = true
	if !sw.started {
		return sw.fsnotify.Close()
	}
	close(sw.done)
	<-sw.stopped
	return nil
}

func (sw *ShaderWatcher) start() {
	defer close(sw.stopped)
	for {
		select {
		case e := <-sw.fsnotify.Events:
			if e.Op&fsnotify.Create != 0 {
				if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
					if err := sw.watchRecursive(e.Name); err != nil {
						core.LogWarn("unable to watch %s: %s", e.Name, err)
					}
				}
			}
			sw.handleFileEvent(e)

		case err := <-sw.fsnotify.Errors:
			if err != nil {
				core.LogError(err.Error())
			}

		case <-sw.done:
			sw.fsnotify.Close()
			return
		}
	}
}

// watchRecursive adds all directories under the given one to the watch list.
func (sw *ShaderWatcher) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return sw.fsnotify.Add(walkPath)
		}
		return nil
	})
}

// handleFileEvent invalidates the shaders using the changed file and returns
// how many pipelines were dropped.
func (sw *ShaderWatcher) handleFileEvent(e fsnotify.Event) int {
	// Compilers often write to a temporary file and rename it over the stage.
	if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return 0
	}
	path := normalize(e.Name)
	sw.mutex.RLock()
	ids := append([]uint32(nil), sw.shaders[path]...)
	sw.mutex.RUnlock()
	if len(ids) == 0 {
		return 0
	}

	invalidated := 0
	for _, id := range ids {
		invalidated += sw.cache.InvalidateShader(id)
	}
	core.LogInfo("shader stage %s changed, %d pipelines invalidated", e.Name, invalidated)
	if sw.OnReload != nil {
		sw.OnReload(path, invalidated)
	}
	return invalidated
}

func normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func appendUnique(ids []uint32, id uint32) []uint32 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
