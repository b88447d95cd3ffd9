package filter

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// GLPI renders datetimes without a zone, in the server's local time.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// exprFilter implements CompiledFilter using the expr language
type exprFilter struct {
	expression string
	program    *vm.Program
	helpers    map[string]any
}

// ExprCompilerOption configures an expr compiler
type ExprCompilerOption func(*exprCompiler)

// WithCache enables filter caching with the specified size
func WithCache(size int) ExprCompilerOption {
	return func(c *exprCompiler) {
		if size > 0 {
			c.cache = newLRUCache(size)
		}
	}
}

// WithCustomFunctions adds custom helper functions
func WithCustomFunctions(funcs map[string]any) ExprCompilerOption {
	return func(c *exprCompiler) {
		maps.Copy(c.helpers, funcs)
	}
}

// NewExprCompiler creates a new expr-based filter compiler.
//
// Expressions see every row column whose label is an identifier once dots
// are replaced by underscores (Entity.completename becomes
// Entity_completename), the whole row as Row, and these helpers:
//
//	field(name)      value of any column, nil when absent
//	has(name)        column present and not empty
//	text(v)          v as a string, "" for nil
//	num(v)           v as a float64, 0 when not numeric
//	icontains(v, s)  case-insensitive substring test
//	parseDate(v)     GLPI datetime string to time.Time
//	daysSince(v)     whole days since a GLPI datetime, -1 when unparsable
//	daysAgo(n)       the time n days before now
func NewExprCompiler(opts ...ExprCompilerOption) Compiler {
	c := &exprCompiler{
		helpers: staticHelpers(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// exprCompiler implements Compiler for expr-based filters
type exprCompiler struct {
	helpers map[string]any
	cache   *lruCache
}

// Compile compiles an expression into an executable filter
func (c *exprCompiler) Compile(expression string) (CompiledFilter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "empty expression",
		}
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(expression); ok {
			return cached, nil
		}
	}

	env := make(map[string]any, len(c.helpers)+3)
	maps.Copy(env, c.helpers)
	env["Row"] = map[string]any{}
	env["field"] = func(string) any { return nil }
	env["has"] = func(string) bool { return false }

	program, err := expr.Compile(expression,
		expr.Env(env),
		expr.AllowUndefinedVariables(), // row columns are only known at run time
		expr.AsBool(),
	)
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "failed to compile expression",
			Err:        err,
		}
	}

	filter := &exprFilter{
		expression: expression,
		program:    program,
		helpers:    c.helpers,
	}

	if c.cache != nil {
		c.cache.Put(expression, filter)
	}

	return filter, nil
}

// Match evaluates the filter against row
func (f *exprFilter) Match(row Row) (bool, error) {
	result, err := expr.Run(f.program, f.environment(row))
	if err != nil {
		return false, &EvaluationError{
			Expression: f.expression,
			RowID:      rowID(row),
			Err:        err,
		}
	}

	matched, _ := result.(bool)
	return matched, nil
}

// Expression returns the original expression
func (f *exprFilter) Expression() string {
	return f.expression
}

func (f *exprFilter) environment(row Row) map[string]any {
	env := make(map[string]any, len(row)+len(f.helpers)+3)

	for key, value := range row {
		name := strings.ReplaceAll(key, ".", "_")
		if identifier.MatchString(name) {
			env[name] = value
		}
	}

	// helpers shadow columns of the same name
	maps.Copy(env, f.helpers)

	env["Row"] = map[string]any(row)
	env["field"] = func(name string) any {
		return row[name]
	}
	env["has"] = func(name string) bool {
		v, ok := row[name]
		return ok && v != nil && text(v) != ""
	}

	return env
}

func staticHelpers() map[string]any {
	return map[string]any{
		"text": text,
		"num":  num,
		"icontains": func(v any, substr string) bool {
			return strings.Contains(strings.ToLower(text(v)), strings.ToLower(substr))
		},
		"parseDate": parseDate,
		"daysSince": func(v any) int {
			t := parseDate(v)
			if t.IsZero() {
				return -1
			}
			return int(time.Since(t).Hours() / 24)
		},
		"daysAgo": func(days int) time.Time {
			return time.Now().AddDate(0, 0, -days)
		},
	}
}

func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func num(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case json.Number:
		f, _ := val.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f
	case bool:
		if val {
			return 1
		}
	}
	return 0
}

func parseDate(v any) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, val, time.Local); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// rowID identifies row in error messages.
func rowID(row Row) string {
	for _, key := range []string{"id", "2"} {
		if v, ok := row[key]; ok && v != nil {
			return text(v)
		}
	}
	return ""
}
