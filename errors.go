package scoped

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound indicates the key is absent from every scope currently
	// on the stack, the root included.
	ErrKeyNotFound = errors.New("scoped: key not found")
	// ErrPathDesync indicates the path provider and the store have
	// desynchronized: after eviction no scope on the stack covers the
	// reported path. This is a programming error, not a recoverable
	// condition.
	ErrPathDesync = errors.New("scoped: scope stack does not cover current path")
)

// KeyError reports a failed lookup together with the path it was attempted
// from. It unwraps to ErrKeyNotFound so callers can match with errors.Is.
type KeyError struct {
	Key  string
	Path string
}

func (e *KeyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("scoped: key %q not visible from path %q", e.Key, e.Path)
}

func (e *KeyError) Unwrap() error {
	return ErrKeyNotFound
}
