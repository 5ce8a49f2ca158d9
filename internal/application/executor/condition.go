package executor

import (
	"errors"
	"strings"

	"github.com/Knetic/govaluate"
)

var errNotBoolean = errors.New("condition did not evaluate to boolean")

// EvaluateCondition evaluates a govaluate expression against a decision context.
// Nested keys are reachable with bracketed dotted names, e.g. [team.size] > 4.
// An empty condition is true.
func EvaluateCondition(condition string, ctx map[string]any) (bool, error) {
	cond := strings.TrimSpace(condition)
	if cond == "" {
		return true, nil
	}
	switch strings.ToLower(cond) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	expr, err := govaluate.NewEvaluableExpression(cond)
	if err != nil {
		return false, err
	}
	result, err := expr.Evaluate(conditionParams(ctx))
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, errNotBoolean
	}
	return b, nil
}

func conditionParams(ctx map[string]any) map[string]interface{} {
	params := make(map[string]interface{}, len(ctx))
	for k, v := range ctx {
		params[k] = v
	}
	flatten("", ctx, params)
	return params
}

func flatten(prefix string, m map[string]any, out map[string]interface{}) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}
