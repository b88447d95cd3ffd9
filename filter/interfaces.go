package filter

import (
	"context"
)

// Row is one result row keyed by column label. Search rows use field uids
// ("name", "Entity.completename"), item listings use column names.
type Row map[string]any

// Filter decides whether a row is kept
type Filter interface {
	// Match evaluates the filter against row
	Match(row Row) (bool, error)
}

// CompiledFilter represents a pre-compiled filter ready for evaluation
type CompiledFilter interface {
	Filter

	// Expression returns the original filter expression
	Expression() string
}

// Compiler compiles filter expressions into executable filters
type Compiler interface {
	// Compile parses and compiles a filter expression
	Compile(expression string) (CompiledFilter, error)
}

// Evaluator applies a filter to a set of rows
type Evaluator interface {
	// Evaluate returns the matching rows, preserving their order
	Evaluate(ctx context.Context, filter CompiledFilter, rows []Row) ([]Row, error)
}
