package scoped

import (
	"fmt"

	"github.com/goliatone/go-scoped/internal/hydrate"
)

// Unmarshal decodes the store's flattened snapshot into out via JSON, letting
// inner scopes override outer values before typing. Field names follow the
// usual encoding/json matching rules.
func Unmarshal[T any, V any](s *Store[V], out *T) error {
	if s == nil {
		return fmt.Errorf("scoped: store is required")
	}
	if out == nil {
		return fmt.Errorf("scoped: target must not be nil")
	}
	decoder := hydrate.NewDecoder[T]()
	result, err := decoder.Decode(hydrate.Context{Path: s.CurrentPath()}, s.snapshotEnv())
	if err != nil {
		return err
	}
	*out = result
	return nil
}
