// Package condition evaluates boolean expressions against a State Store
// snapshot. It backs page skipIf conditions and expr validate tasks.
//
// Expressions use the expr language: `skipEverything`, `root != ""`,
// `len(formats) > 0`, `install?.clean == true`. Identifiers that are not set
// in the store evaluate to nil. A bare identifier always names a store key,
// even when it matches a builtin: `count >= 3` reads the key count, while
// `count(formats, # == "AU")` still calls the builtin.
package condition

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/builtin"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
)

// Evaluator compiles and caches expressions. The zero value is not usable; use New.
type Evaluator struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// New creates an Evaluator.
func New() *Evaluator {
	return &Evaluator{programs: make(map[string]*vm.Program)}
}

// Compile checks an expression and caches its program.
func (e *Evaluator) Compile(input string) error {
	_, err := e.program(input)
	return err
}

// Eval runs input against env and requires a boolean result.
func (e *Evaluator) Eval(input string, env map[string]any) (bool, error) {
	program, err := e.program(input)
	if err != nil {
		return false, err
	}
	out, err := expr.Run(program, exprEnv(env))
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", input, err)
	}
	switch v := out.(type) {
	case bool:
		return v, nil
	case nil:
		return false, nil
	}
	return false, fmt.Errorf("evaluate %q: expected bool, got %T", input, out)
}

func (e *Evaluator) program(input string) (*vm.Program, error) {
	e.mu.RLock()
	p, ok := e.programs[input]
	e.mu.RUnlock()
	if ok {
		return p, nil
	}

	opts := []expr.Option{expr.AllowUndefinedVariables()}
	for _, name := range shadowedBuiltins(input) {
		opts = append(opts, expr.DisableBuiltin(name))
	}
	p, err := expr.Compile(input, opts...)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", input, err)
	}

	e.mu.Lock()
	e.programs[input] = p
	e.mu.Unlock()
	return p, nil
}

// shadowedBuiltins lists builtin names that input uses as plain identifiers.
// Calls parse as builtin nodes and are not affected. Parse errors are left
// for Compile to report.
func shadowedBuiltins(input string) []string {
	tree, err := parser.Parse(input)
	if err != nil {
		return nil
	}
	idents := &identCollector{}
	ast.Walk(&tree.Node, idents)
	return idents.names
}

type identCollector struct {
	names []string
}

func (c *identCollector) Visit(node *ast.Node) {
	id, ok := (*node).(*ast.IdentifierNode)
	if !ok {
		return
	}
	if _, isBuiltin := builtin.Index[id.Value]; isBuiltin {
		c.names = append(c.names, id.Value)
	}
}

// exprEnv converts json.Number leaves to int or float64 so that numeric
// comparisons type-check inside expressions.
func exprEnv(env map[string]any) map[string]any {
	out := make(map[string]any, len(env))
	for k, v := range env {
		out[k] = exprValue(v)
	}
	return out
}

func exprValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i)
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		return exprEnv(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = exprValue(item)
		}
		return out
	}
	return v
}
