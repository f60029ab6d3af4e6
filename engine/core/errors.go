package core

import (
	"errors"
)

var (
	// ErrConfiguration marks setup mistakes that cannot be recovered at runtime:
	// rebinding a bind-once material, an invalid subpass index, a bad config value.
	ErrConfiguration = errors.New("configuration error")
	// ErrCompilation marks a pipeline that failed to compile.
	ErrCompilation = errors.New("pipeline compilation failed")
	// ErrResourceExhausted marks a cache that could not evict down to its bound.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrUsage marks begin/end or stream ordering misuse.
	ErrUsage = errors.New("usage error")
)
