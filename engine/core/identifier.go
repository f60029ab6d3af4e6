package core

import (
	"sync/atomic"

	"github.com/google/uuid"
)

var nextID atomic.Uint32

// NextID hands out process-unique ids for render passes, shaders, meshes and
// vertex layouts. Zero is never returned so it can stand for "unset".
func NextID() uint32 {
	return nextID.Add(1)
}

// NewInstanceID identifies a visual object or a bound render target.
// uuid.Nil is reserved for "none".
func NewInstanceID() uuid.UUID {
	return uuid.New()
}
