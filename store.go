package scoped

import (
	"fmt"

	"github.com/goliatone/go-scoped/layering"
	"github.com/goliatone/go-scoped/pkg/activity"
)

// frame is one level of the hierarchical namespace: the path it was created
// at plus the overrides written while that path was current.
type frame[V any] struct {
	path    string
	entries map[string]V
}

func newFrame[V any](path string) *frame[V] {
	return &frame[V]{
		path:    path,
		entries: map[string]V{},
	}
}

// Store is a key-value store whose visible entries depend on the caller's
// current hierarchical path. Writes land in the scope matching the current
// path (pushing a new one when needed), reads search innermost to root, and
// scopes whose path no longer covers the current path are evicted lazily on
// the next access.
//
// A Store is single-threaded state: callers sharing one across goroutines
// must synchronize externally.
type Store[V any] struct {
	provider PathProvider
	stack    []*frame[V]
	cfg      storeConfig[V]
	emitter  *activity.Emitter
}

// New constructs a Store bound to the supplied path provider. The root scope
// (path "") is created immediately and is never evicted; WithRootEntries
// seeds it.
func New[V any](provider PathProvider, opts ...Option[V]) (*Store[V], error) {
	if provider == nil {
		return nil, fmt.Errorf("scoped: path provider is required")
	}
	cfg := applyOptions(opts)
	root := newFrame[V]("")
	for key, value := range cfg.rootEntries {
		root.entries[key] = value
	}
	cfg.rootEntries = nil
	return &Store[V]{
		provider: provider,
		stack:    []*frame[V]{root},
		cfg:      cfg,
		emitter:  activity.NewEmitter(cfg.activityHooks, cfg.activityConfig),
	}, nil
}

// sync queries the provider and pops every stale scope before returning the
// normalized current path. The root scope's empty path covers every path, so
// the loop always terminates with at least one frame left.
func (s *Store[V]) sync() string {
	current := NormalizePath(s.provider.CurrentPath())
	for len(s.stack) > 0 && !isPathPrefix(s.stack[0].path, current) {
		evicted := s.stack[0]
		s.stack = s.stack[1:]
		s.emitScopeEvicted(evicted.path, len(evicted.entries), current)
	}
	return current
}

// Get returns the value for key from the innermost scope that defines it.
// The miss error unwraps to ErrKeyNotFound.
func (s *Store[V]) Get(key string) (V, error) {
	current := s.sync()
	for _, fr := range s.stack {
		if value, ok := fr.entries[key]; ok {
			return value, nil
		}
	}
	var zero V
	return zero, &KeyError{Key: key, Path: current}
}

// Contains reports whether key is visible from the current path.
func (s *Store[V]) Contains(key string) bool {
	s.sync()
	for _, fr := range s.stack {
		if _, ok := fr.entries[key]; ok {
			return true
		}
	}
	return false
}

// Set writes key into the scope matching the current path, pushing a new
// scope when the current path is deeper than the innermost one. The returned
// error wraps ErrPathDesync only when the provider and the stack have
// desynchronized, which no well-behaved provider can cause.
func (s *Store[V]) Set(key string, value V) error {
	current := s.sync()
	if len(s.stack) == 0 || !isPathPrefix(s.stack[0].path, current) {
		return fmt.Errorf("%w: current path %q", ErrPathDesync, current)
	}
	top := s.stack[0]
	if top.path != current {
		top = newFrame[V](current)
		s.stack = append([]*frame[V]{top}, s.stack...)
		s.emitScopePushed(current)
	}
	old, had := top.entries[key]
	top.entries[key] = value
	s.emitEntrySet(current, key, old, had, value)
	return nil
}

// SetDefault writes key only when it is not already visible from the current
// path; a visible key at any scope level makes it a no-op.
func (s *Store[V]) SetDefault(key string, value V) error {
	if s.Contains(key) {
		return nil
	}
	if err := s.Set(key, value); err != nil {
		return err
	}
	s.emitDefaultApplied(s.CurrentPath(), key, value)
	return nil
}

// Snapshot flattens the stack into one merged mapping reflecting current
// visibility, innermost scope winning on key collision. Values are deep
// cloned so mutating the result cannot touch store state.
func (s *Store[V]) Snapshot() map[string]V {
	s.sync()
	out := make(map[string]V)
	for i := len(s.stack) - 1; i >= 0; i-- {
		for key, value := range s.stack[i].entries {
			out[key] = layering.Clone(value)
		}
	}
	return out
}

// Depth returns the number of live scopes, the root included.
func (s *Store[V]) Depth() int {
	s.sync()
	return len(s.stack)
}

// CurrentPath returns the provider's normalized current path after evicting
// stale scopes.
func (s *Store[V]) CurrentPath() string {
	return s.sync()
}

// ScopePaths returns the live scope paths ordered innermost first.
func (s *Store[V]) ScopePaths() []string {
	s.sync()
	paths := make([]string, len(s.stack))
	for i, fr := range s.stack {
		paths[i] = fr.path
	}
	return paths
}

// scopeInfos snapshots per-scope metadata for schema documents, innermost
// first. Depth counts from the root, so the root scope reports 0.
func (s *Store[V]) scopeInfos() []ScopeInfo {
	infos := make([]ScopeInfo, len(s.stack))
	for i, fr := range s.stack {
		infos[i] = ScopeInfo{
			Path:    fr.path,
			Depth:   len(s.stack) - 1 - i,
			Entries: len(fr.entries),
		}
	}
	return infos
}

// Schema derives a schema document from the flattened snapshot and annotates
// it with the live scopes.
func (s *Store[V]) Schema() (SchemaDocument, error) {
	snapshot := s.snapshotEnv()
	doc, err := s.schemaGenerator().Generate(snapshot)
	if err != nil {
		return SchemaDocument{}, err
	}
	doc.Scopes = s.scopeInfos()
	return doc, nil
}

// snapshotEnv flattens the stack into a map[string]any for evaluators and
// schema generation.
func (s *Store[V]) snapshotEnv() map[string]any {
	s.sync()
	out := make(map[string]any)
	for i := len(s.stack) - 1; i >= 0; i-- {
		for key, value := range s.stack[i].entries {
			out[key] = any(value)
		}
	}
	return out
}
