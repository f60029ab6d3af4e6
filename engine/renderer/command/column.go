package command

const defaultCapacity = 16

// column is one array of the recorder's structure-of-arrays storage. Items
// are addressed by index only, so growing the backing slice never breaks a
// reference held elsewhere.
type column[T any] struct {
	items []T
	count uint32
	grows uint32
}

func newColumn[T any](capacity uint32) column[T] {
	if capacity == 0 {
		capacity = defaultCapacity
	}
	return column[T]{items: make([]T, capacity)}
}

func (c *column[T]) reserve(n uint32) {
	need := c.count + n
	if need <= uint32(len(c.items)) {
		return
	}
	size := uint32(len(c.items)) * 2
	if size == 0 {
		size = defaultCapacity
	}
	for size < need {
		size *= 2
	}
	items := make([]T, size)
	copy(items, c.items[:c.count])
	c.items = items
	c.grows++
}

func (c *column[T]) add(v T) uint32 {
	c.reserve(1)
	c.items[c.count] = v
	c.count++
	return c.count - 1
}

// addAll appends vs and returns the span they occupy.
func (c *column[T]) addAll(vs []T) span {
	if len(vs) == 0 {
		return span{}
	}
	c.reserve(uint32(len(vs)))
	first := c.count
	copy(c.items[first:], vs)
	c.count += uint32(len(vs))
	return span{first: first, count: uint32(len(vs))}
}

func (c *column[T]) at(i uint32) T {
	return c.items[i]
}

// slice returns a capped view so appends by the caller never reach our storage.
func (c *column[T]) slice(s span) []T {
	if s.count == 0 {
		return nil
	}
	end := s.first + s.count
	return c.items[s.first:end:end]
}

func (c *column[T]) view() []T {
	return c.items[:c.count:c.count]
}

// reset drops the logical contents but keeps the storage. Old entries are
// zeroed so pointers held by the previous frame can be collected.
func (c *column[T]) reset() {
	clear(c.items[:c.count])
	c.count = 0
}

func (c *column[T]) capacity() uint32 {
	return uint32(len(c.items))
}

type span struct {
	first uint32
	count uint32
}
