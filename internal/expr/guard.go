// Package expr evaluates operator-supplied stop conditions for the agent loop.
package expr

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Env holds the variables visible to a guard expression.
type Env struct {
	Cycles        int    `expr:"cycles"`
	ParseFailures int    `expr:"parse_failures"`
	ModelErrors   int    `expr:"model_errors"`
	TokensUsed    int    `expr:"tokens_used"`
	LastCommand   string `expr:"last_command"`
	Records       int    `expr:"records"`
}

// Guard is a compiled boolean stop condition, e.g.
//
//	cycles >= 50 || tokens_used > 200000
type Guard struct {
	Source  string
	program *vm.Program
}

// Compile type-checks source against Env and requires a boolean result.
func Compile(source string) (*Guard, error) {
	if source == "" {
		return nil, fmt.Errorf("empty expression")
	}
	program, err := expr.Compile(source, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("expression compile error: %w", err)
	}
	return &Guard{Source: source, program: program}, nil
}

// Tripped reports whether the condition holds for env. A nil guard never trips.
func (g *Guard) Tripped(env Env) (bool, error) {
	if g == nil || g.program == nil {
		return false, nil
	}
	out, err := expr.Run(g.program, env)
	if err != nil {
		return false, fmt.Errorf("expression eval error for %q: %w", g.Source, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %T, expected bool", g.Source, out)
	}
	return b, nil
}
