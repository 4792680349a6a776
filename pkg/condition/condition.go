// Package condition evaluates predicates from condition nodes against the
// execution context.
package condition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs/v2"
	"github.com/expr-lang/expr"
)

// Operator is the predicate applied to a field value.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpIsEmpty     Operator = "is_empty"
	OpIsNotEmpty  Operator = "is_not_empty"
)

// Evaluate applies op to the value at the dot-path field inside doc. A missing
// path evaluates as empty/false for all operators except is_empty, not_equals
// and not_contains, which hold vacuously.
func Evaluate(doc map[string]any, field string, op Operator, expected string) (bool, error) {
	value := lookup(doc, field)

	switch op {
	case OpEquals:
		return equalsFold(value, expected), nil
	case OpNotEquals:
		return !equalsFold(value, expected), nil
	case OpContains:
		return contains(value, expected), nil
	case OpNotContains:
		return !contains(value, expected), nil
	case OpGreaterThan:
		actual, target, ok := numericPair(value, expected)

		return ok && actual > target, nil
	case OpLessThan:
		actual, target, ok := numericPair(value, expected)

		return ok && actual < target, nil
	case OpIsEmpty:
		return isEmpty(value), nil
	case OpIsNotEmpty:
		return !isEmpty(value), nil
	default:
		return false, fmt.Errorf("unknown condition operator: %s", op)
	}
}

// EvaluateExpression compiles and runs an expr-lang expression against env,
// coercing the result to a boolean.
func EvaluateExpression(source string, env map[string]any) (bool, error) {
	program, err := expr.Compile(source, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return false, fmt.Errorf("failed to compile expression %q: %w", source, err)
	}

	output, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate expression %q: %w", source, err)
	}

	return truthy(output), nil
}

func lookup(doc map[string]any, field string) any {
	if field == "" {
		return nil
	}

	container := gabs.Wrap(doc)

	result := container.Path(field)
	if result == nil {
		return nil
	}

	return result.Data()
}

func equalsFold(value any, expected string) bool {
	if value == nil {
		return false
	}

	return strings.EqualFold(toString(value), expected)
}

func contains(value any, expected string) bool {
	switch v := value.(type) {
	case nil:
		return false
	case []any:
		for _, item := range v {
			if strings.EqualFold(toString(item), expected) {
				return true
			}
		}

		return false
	default:
		haystack := strings.ToLower(toString(value))

		return strings.Contains(haystack, strings.ToLower(expected))
	}
}

func numericPair(value any, expected string) (float64, float64, bool) {
	actual, okActual := toFloat(value)

	target, err := strconv.ParseFloat(strings.TrimSpace(expected), 64)
	if err != nil {
		return 0, 0, false
	}

	return actual, target, okActual
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)

		return parsed, err == nil
	default:
		return 0, false
	}
}

func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case float64:
		return v != 0
	case nil:
		return false
	default:
		return false
	}
}
