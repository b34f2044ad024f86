package scoped

import (
	"errors"
	"sync"
	"testing"
)

type capturingEvaluator struct {
	contexts []RuleContext
	result   any
	err      error
}

func (c *capturingEvaluator) Evaluate(ctx RuleContext, _ string) (any, error) {
	c.contexts = append(c.contexts, ctx)
	return c.result, c.err
}

func (c *capturingEvaluator) Compile(expr string, _ ...CompileOption) (CompiledRule, error) {
	return capturedRule{evaluator: c, expr: expr}, nil
}

type capturedRule struct {
	evaluator *capturingEvaluator
	expr      string
}

func (r capturedRule) Evaluate(ctx RuleContext) (any, error) {
	return r.evaluator.Evaluate(ctx, r.expr)
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]any
	hits    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]any{}}
}

func (c *mapCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return value, ok
}

func (c *mapCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

var evaluatorFactories = []struct {
	name string
	new  func(cache ProgramCache, registry *FunctionRegistry) Evaluator
}{
	{
		name: "expr",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []ExprEvaluatorOption{}
			if cache != nil {
				opts = append(opts, ExprWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, ExprWithFunctionRegistry(registry))
			}
			return NewExprEvaluator(opts...)
		},
	},
	{
		name: "cel",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []CELEvaluatorOption{}
			if cache != nil {
				opts = append(opts, CELWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, CELWithFunctionRegistry(registry))
			}
			return NewCELEvaluator(opts...)
		},
	},
}

func TestEvaluateUsesSnapshotAndPath(t *testing.T) {
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			store, tracker := newTestStore(t, WithEvaluator[any](factory.new(nil, nil)))
			mustSet(t, store, "threshold", 10)

			leave := tracker.Enter("train")
			mustSet(t, store, "threshold", 20)

			resp, err := store.Evaluate(`threshold == 20 && path == "train"`)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if resp.Value != true {
				t.Fatalf("expected true, got %v", resp.Value)
			}
			leave()

			resp, err = store.Evaluate(`threshold == 10 && path == ""`)
			if err != nil {
				t.Fatalf("evaluate after leave: %v", err)
			}
			if resp.Value != true {
				t.Fatalf("expected shadow to lift after leave, got %v", resp.Value)
			}
		})
	}
}

func TestEvaluateDefaultsToExpr(t *testing.T) {
	store, _ := newTestStore(t)
	mustSet(t, store, "enabled", true)

	resp, err := store.Evaluate("enabled")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if resp.Value != true {
		t.Fatalf("expected default expr evaluator, got %v", resp.Value)
	}
}

func TestEvaluateRejectsEmptyExpression(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Evaluate(""); err == nil {
		t.Fatalf("expected error for empty expression")
	}
}

func TestEvaluateWithDefaultsContext(t *testing.T) {
	capture := &capturingEvaluator{}
	store, tracker := newTestStore(t, WithEvaluator[any](capture))
	mustSet(t, store, "k", 1)
	leave := tracker.Enter("foo")

	if _, err := store.EvaluateWith(RuleContext{}, "1 == 1"); err != nil {
		t.Fatalf("evaluate with: %v", err)
	}
	if len(capture.contexts) != 1 {
		t.Fatalf("expected one captured context, got %d", len(capture.contexts))
	}
	ctx := capture.contexts[0]
	if ctx.Now == nil || ctx.Now.IsZero() {
		t.Fatalf("expected Now to be defaulted")
	}
	if ctx.Args == nil || ctx.Metadata == nil {
		t.Fatalf("expected maps to be defaulted")
	}
	if ctx.Path != "foo" {
		t.Fatalf("expected current path injected, got %q", ctx.Path)
	}
	snapshot, ok := ctx.Snapshot.(map[string]any)
	if !ok || snapshot["k"] != 1 {
		t.Fatalf("expected flattened snapshot, got %v", ctx.Snapshot)
	}
	leave()
}

func TestEvaluateWrapsErrors(t *testing.T) {
	base := errors.New("boom")
	capture := &capturingEvaluator{err: base}
	store, _ := newTestStore(t, WithEvaluator[any](capture))

	_, err := store.Evaluate("anything")
	if err == nil {
		t.Fatalf("expected error")
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected base error to unwrap")
	}
	if evalErr.Path != "root" {
		t.Fatalf("expected root path label, got %q", evalErr.Path)
	}
}

func TestEvaluatorLoggerReceivesEvents(t *testing.T) {
	var events []EvaluatorLogEvent
	store, _ := newTestStore(t,
		WithEvaluatorLogger[any](EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
			events = append(events, event)
		})),
	)
	mustSet(t, store, "enabled", true)

	if _, err := store.Evaluate("enabled"); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one log event, got %d", len(events))
	}
	if events[0].Engine != "expr" || events[0].Expr != "enabled" {
		t.Fatalf("unexpected event metadata: %+v", events[0])
	}
	if events[0].Err != nil {
		t.Fatalf("expected nil error in event, got %v", events[0].Err)
	}
}

func TestFunctionRegistryAvailableToEvaluators(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("double", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, errors.New("double expects one argument")
		}
		value, ok := args[0].(int)
		if !ok {
			return nil, errors.New("double expects an int")
		}
		return value * 2, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	store, _ := newTestStore(t,
		WithEvaluator[any](NewExprEvaluator(ExprWithFunctionRegistry(registry))),
	)
	mustSet(t, store, "base", 21)

	resp, err := store.Evaluate("double(base) == 42")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if resp.Value != true {
		t.Fatalf("expected registered function result, got %v", resp.Value)
	}
}

func TestProgramCacheReuseAcrossEvaluations(t *testing.T) {
	cache := newMapCache()
	store, _ := newTestStore(t,
		WithEvaluator[any](NewExprEvaluator(ExprWithProgramCache(cache))),
	)
	mustSet(t, store, "enabled", true)

	for i := 0; i < 3; i++ {
		if _, err := store.Evaluate("enabled"); err != nil {
			t.Fatalf("evaluate %d: %v", i, err)
		}
	}
	if cache.hits < 2 {
		t.Fatalf("expected cached program reuse, hits=%d", cache.hits)
	}
}

func TestCompiledRuleEvaluates(t *testing.T) {
	evaluator := NewExprEvaluator()
	rule, err := evaluator.Compile("threshold > 5")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	result, err := rule.Evaluate(RuleContext{Snapshot: map[string]any{"threshold": 10}})
	if err != nil {
		t.Fatalf("rule evaluate: %v", err)
	}
	if result != true {
		t.Fatalf("expected true, got %v", result)
	}
}

func TestFunctionRegistryGuards(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("", func(...any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if err := registry.Register("fn", nil); err == nil {
		t.Fatalf("expected error for nil function")
	}
	if err := registry.Register("fn", func(...any) (any, error) { return 1, nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("FN", func(...any) (any, error) { return 2, nil }); err == nil {
		t.Fatalf("expected duplicate detection to be case-insensitive")
	}
	if _, err := registry.Call("missing"); err == nil {
		t.Fatalf("expected error calling unregistered function")
	}
	value, err := registry.Call("fn")
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if value != 1 {
		t.Fatalf("expected registered result, got %v", value)
	}
}
