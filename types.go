package scoped

import (
	"time"

	"github.com/goliatone/go-scoped/pkg/activity"
)

// SchemaFormat identifies the representation a schema document encodes.
type SchemaFormat string

const (
	// SchemaFormatDescriptors represents the flattened field descriptors.
	SchemaFormatDescriptors SchemaFormat = "descriptors"
)

// SchemaDocument encapsulates a generated schema output alongside its format
// identifier. Implementations must ensure Document is JSON-serialisable.
type SchemaDocument struct {
	Format   SchemaFormat
	Document any
	Scopes   []ScopeInfo
}

// ScopeInfo describes one live scope included in a schema document.
type ScopeInfo struct {
	Path    string `json:"path"`
	Depth   int    `json:"depth"`
	Entries int    `json:"entries"`
}

// SchemaGenerator transforms a flattened snapshot into a schema document. All
// implementations MUST be safe for concurrent use and handle nil inputs by
// returning an empty schema document.
type SchemaGenerator interface {
	Generate(value any) (SchemaDocument, error)
}

// Response stores a typed result produced by an evaluator.
type Response[T any] struct {
	Value T
}

// RuleContext carries inputs needed when evaluating an expression.
type RuleContext struct {
	Snapshot any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	Path     string
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) pathLabel() string {
	if ctx.Path == "" {
		return "root"
	}
	return ctx.Path
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// Option configures a Store during construction.
type Option[V any] func(*storeConfig[V])

type storeConfig[V any] struct {
	evaluator       Evaluator
	programCache    ProgramCache
	functions       *FunctionRegistry
	logger          EvaluatorLogger
	schemaGenerator SchemaGenerator
	rootEntries     map[string]V
	activityHooks   activity.Hooks
	activityConfig  activity.Config
	hookErrHandler  func(error)
}

func applyOptions[V any](opts []Option[V]) storeConfig[V] {
	cfg := storeConfig[V]{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithEvaluator configures an evaluator on the store.
func WithEvaluator[V any](e Evaluator) Option[V] {
	return func(cfg *storeConfig[V]) {
		cfg.evaluator = e
	}
}

// WithRootEntries seeds the root scope at construction. The map is copied so
// the store stays detached from the caller's reference.
func WithRootEntries[V any](entries map[string]V) Option[V] {
	return func(cfg *storeConfig[V]) {
		if len(entries) == 0 {
			return
		}
		seed := make(map[string]V, len(entries))
		for key, value := range entries {
			seed[key] = value
		}
		cfg.rootEntries = seed
	}
}

// WithSchemaGenerator configures a custom schema generator implementation.
func WithSchemaGenerator[V any](generator SchemaGenerator) Option[V] {
	return func(cfg *storeConfig[V]) {
		cfg.schemaGenerator = generator
	}
}

func (s *Store[V]) evaluatorOrNil() Evaluator {
	return s.cfg.evaluator
}

func (s *Store[V]) withEvaluator(e Evaluator) {
	s.cfg.evaluator = e
}

func (s *Store[V]) programCache() ProgramCache {
	return s.cfg.programCache
}

func (s *Store[V]) functionRegistry() *FunctionRegistry {
	return s.cfg.functions
}

func (s *Store[V]) evaluatorLogger() EvaluatorLogger {
	if s.cfg.logger != nil {
		return s.cfg.logger
	}
	return noopEvaluatorLogger{}
}

func (s *Store[V]) schemaGenerator() SchemaGenerator {
	if s == nil {
		return DefaultSchemaGenerator()
	}
	if s.cfg.schemaGenerator != nil {
		return s.cfg.schemaGenerator
	}
	return DefaultSchemaGenerator()
}
