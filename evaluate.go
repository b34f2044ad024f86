package scoped

import (
	"errors"
	"fmt"
	"time"
)

var ErrNoEvaluator = errors.New("scoped: evaluator not configured")

// Evaluate executes expr against the store's flattened snapshot using the
// configured evaluator and wraps the result.
func (s *Store[V]) Evaluate(expr string) (Response[any], error) {
	if expr == "" {
		return Response[any]{}, fmt.Errorf("expression must not be empty")
	}
	evaluator, err := s.resolveEvaluator()
	if err != nil {
		return Response[any]{}, err
	}
	ctx := RuleContext{
		Snapshot: s.snapshotEnv(),
		Path:     s.CurrentPath(),
	}
	return s.evaluate(evaluator, ctx, expr)
}

// EvaluateWith executes expr using ctx, falling back to the store's snapshot
// when ctx.Snapshot is nil and to the current path when ctx.Path is empty.
func (s *Store[V]) EvaluateWith(ctx RuleContext, expr string) (Response[any], error) {
	if expr == "" {
		return Response[any]{}, fmt.Errorf("expression must not be empty")
	}
	evaluator, err := s.resolveEvaluator()
	if err != nil {
		return Response[any]{}, err
	}
	if ctx.Snapshot == nil {
		ctx.Snapshot = s.snapshotEnv()
	}
	if ctx.Path == "" {
		ctx.Path = s.CurrentPath()
	}
	return s.evaluate(evaluator, ctx, expr)
}

func (s *Store[V]) evaluate(evaluator Evaluator, ctx RuleContext, expr string) (Response[any], error) {
	ctx = ctx.withDefaultNow().withDefaultMaps()
	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, expr)
	duration := time.Since(start)
	evalErr = wrapEvaluationError("", expr, ctx.pathLabel(), evalErr)
	s.evaluatorLogger().LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expr,
		Path:     ctx.pathLabel(),
		Duration: duration,
		Err:      evalErr,
	})
	if evalErr != nil {
		return Response[any]{}, evalErr
	}
	return Response[any]{Value: value}, nil
}

func (s *Store[V]) resolveEvaluator() (Evaluator, error) {
	evaluator := s.evaluatorOrNil()
	if evaluator != nil {
		return evaluator, nil
	}
	var exprOpts []ExprEvaluatorOption
	if cache := s.programCache(); cache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(cache))
	}
	if registry := s.functionRegistry(); registry != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(registry))
	}
	defaultEvaluator := NewExprEvaluator(exprOpts...)
	if defaultEvaluator == nil {
		return nil, ErrNoEvaluator
	}
	s.withEvaluator(defaultEvaluator)
	return defaultEvaluator, nil
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*scoped.exprEvaluator":
		return "expr"
	case "*scoped.celEvaluator":
		return "cel"
	case "*scoped.jsEvaluator":
		return "js"
	default:
		return "custom"
	}
}
