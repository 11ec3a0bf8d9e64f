// Package dedup coalesces concurrent requests for the same key into a
// single in-flight operation, grounded on the singleflight.Group
// pattern used by the pack's block metadata fetcher (mimir's
// block.BaseFetcher wraps a fetch in g.Do("", ...) to collapse concurrent
// refreshes; here the engine keys by hex(IndexID) rather than a constant
// string, since distinct identifiers must not block each other).
package dedup

import "golang.org/x/sync/singleflight"

// Context coalesces concurrent calls with the same key, so that
// uploading or downloading the same IndexID twice at once does the
// work once and hands both callers the result (§5 "Deduplication
// contexts").
type Context[T any] struct {
	g singleflight.Group
}

// New returns an empty dedup context.
func New[T any]() *Context[T] {
	return &Context[T]{}
}

// Do runs fn for key unless another call for the same key is already in
// flight, in which case it waits for and returns that call's result.
// shared reports whether the result was handed to more than one caller.
func (c *Context[T]) Do(key string, fn func() (T, error)) (result T, shared bool, err error) {
	v, shared, err := c.g.Do(key, func() (any, error) {
		return fn()
	})
	if v == nil {
		return result, shared, err
	}
	return v.(T), shared, err
}

// Forget removes key from the in-flight set, so the next call for it
// runs fn again rather than joining a call that has already returned.
func (c *Context[T]) Forget(key string) {
	c.g.Forget(key)
}
