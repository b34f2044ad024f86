package scoped

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithProgramCache registers a program cache on the store.
func WithProgramCache[V any](cache ProgramCache) Option[V] {
	return func(cfg *storeConfig[V]) {
		cfg.programCache = cache
	}
}
