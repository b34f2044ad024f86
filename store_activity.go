package scoped

import (
	"context"

	"github.com/goliatone/go-scoped/pkg/activity"
)

// WithActivityHooks attaches activity hooks to the store configuration and
// enables emission. Hooks are cloned and nil entries dropped to preserve
// immutability.
func WithActivityHooks[V any](hooks activity.Hooks) Option[V] {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *storeConfig[V]) {
		cfg.activityHooks = normalized
		cfg.activityConfig.Enabled = len(normalized) > 0
	}
}

// WithActivityConfig overrides the emission defaults (channel, kill switch).
func WithActivityConfig[V any](config activity.Config) Option[V] {
	return func(cfg *storeConfig[V]) {
		cfg.activityConfig = config
	}
}

// WithHookErrorHandler receives errors returned by activity hooks. Store
// mutations never fail on hook errors; without a handler they are dropped.
func WithHookErrorHandler[V any](handler func(error)) Option[V] {
	return func(cfg *storeConfig[V]) {
		cfg.hookErrHandler = handler
	}
}

// ActivityHooks returns a cloned slice of the hooks configured on the store.
// The returned slice can be safely mutated by the caller.
func (s *Store[V]) ActivityHooks() activity.Hooks {
	if s == nil {
		return nil
	}
	return cloneActivityHooks(s.cfg.activityHooks)
}

func (s *Store[V]) emit(event activity.Event) {
	if s.emitter == nil || !s.emitter.Enabled() {
		return
	}
	if err := s.emitter.Emit(context.Background(), event); err != nil && s.cfg.hookErrHandler != nil {
		s.cfg.hookErrHandler(err)
	}
}

func (s *Store[V]) emitEntrySet(path, key string, old any, had bool, value any) {
	if s.emitter == nil || !s.emitter.Enabled() {
		return
	}
	input := activity.StoreEventInput{
		Path:     path,
		Key:      key,
		NewValue: value,
	}
	if had {
		input.OldValue = old
	}
	s.emit(activity.BuildEntrySetEvent(input))
}

func (s *Store[V]) emitDefaultApplied(path, key string, value any) {
	if s.emitter == nil || !s.emitter.Enabled() {
		return
	}
	s.emit(activity.BuildDefaultAppliedEvent(activity.StoreEventInput{
		Path:     path,
		Key:      key,
		NewValue: value,
	}))
}

func (s *Store[V]) emitScopePushed(path string) {
	if s.emitter == nil || !s.emitter.Enabled() {
		return
	}
	s.emit(activity.BuildScopePushedEvent(activity.StoreEventInput{
		Path:      path,
		ScopePath: path,
	}))
}

func (s *Store[V]) emitScopeEvicted(scopePath string, entries int, current string) {
	if s.emitter == nil || !s.emitter.Enabled() {
		return
	}
	s.emit(activity.BuildScopeEvictedEvent(activity.StoreEventInput{
		Path:      current,
		ScopePath: scopePath,
		Entries:   entries,
	}))
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
