package texture

import (
	"errors"
	"testing"

	"github.com/spaghettifunk/anima-graph/engine/core"
	"github.com/spaghettifunk/anima-graph/engine/renderer/metadata"
)

type fakeAllocator struct {
	created   int
	destroyed int
}

func (a *fakeAllocator) Create(info AllocInfo) (*metadata.Texture, error) {
	a.created++
	return &metadata.Texture{ID: uint32(a.created), Format: info.Format, Width: info.Width, Height: info.Height}, nil
}

func (a *fakeAllocator) Destroy(tex *metadata.Texture) {
	a.destroyed++
}

func TestPooledCacheReusesFreedTextures(t *testing.T) {
	alloc := &fakeAllocator{}
	c, err := NewPooledCache(&PooledCacheConfig{MaxTextureCount: 4}, alloc)
	if err != nil {
		t.Fatal(err)
	}
	info := AllocInfo{Format: metadata.FormatR8G8B8A8Unorm, Width: 512, Height: 512}

	a, err := c.Allocate(info)
	if err != nil {
		t.Fatal(err)
	}
	c.Free(a)
	b, err := c.Allocate(info)
	if err != nil {
		t.Fatal(err)
	}
	if a != b || alloc.created != 1 {
		t.Fatalf("freed texture not reused (created %d)", alloc.created)
	}

	other, err := c.Allocate(AllocInfo{Format: metadata.FormatR8G8B8A8Unorm, Width: 256, Height: 256})
	if err != nil {
		t.Fatal(err)
	}
	if other == b {
		t.Fatalf("texture of another size was reused")
	}
	st := c.Stats()
	if st.Created != 2 || st.Reused != 1 || st.Lent != 2 || st.Pooled != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestPooledCacheLimit(t *testing.T) {
	alloc := &fakeAllocator{}
	c, _ := NewPooledCache(&PooledCacheConfig{MaxTextureCount: 2}, alloc)

	x, _ := c.Allocate(AllocInfo{Format: metadata.FormatD32Sfloat, Width: 64, Height: 64})
	if _, err := c.Allocate(AllocInfo{Format: metadata.FormatD32Sfloat, Width: 64, Height: 64}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Allocate(AllocInfo{Format: metadata.FormatD32Sfloat, Width: 8, Height: 8}); !errors.Is(err, core.ErrResourceExhausted) {
		t.Fatalf("over the limit: %v", err)
	}

	// A pooled texture of another size is destroyed to make room.
	c.Free(x)
	if _, err := c.Allocate(AllocInfo{Format: metadata.FormatD32Sfloat, Width: 8, Height: 8}); err != nil {
		t.Fatalf("trim did not make room: %v", err)
	}
	if alloc.destroyed != 1 {
		t.Fatalf("destroyed %d textures, want 1", alloc.destroyed)
	}
}

func TestPooledCacheRejectsEmptyTextures(t *testing.T) {
	c, _ := NewPooledCache(&PooledCacheConfig{MaxTextureCount: 2}, &fakeAllocator{})
	if _, err := c.Allocate(AllocInfo{Width: 0, Height: 4}); !errors.Is(err, core.ErrUsage) {
		t.Fatalf("zero width accepted: %v", err)
	}
	if _, err := NewPooledCache(&PooledCacheConfig{}, &fakeAllocator{}); !errors.Is(err, core.ErrConfiguration) {
		t.Fatalf("zero limit accepted: %v", err)
	}
}
