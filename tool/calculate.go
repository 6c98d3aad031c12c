package tool

import (
	"context"
	"errors"

	"github.com/dispatchd/dispatch/fault"
)

// CalculateTool evaluates an arithmetic expression.
type CalculateTool struct{}

func (t *CalculateTool) Definition() Def {
	return Def{
		Name:        "calculate",
		Description: "Evaluate an arithmetic expression, e.g. \"(2 + 3) * 4\"",
		Params: []Param{
			{Name: "expression", Kind: KindString, Description: "Expression to evaluate", Required: true},
		},
	}
}

func (t *CalculateTool) Execute(_ context.Context, args map[string]any) (any, error) {
	expr, _ := args["expression"].(string)
	v, err := evalExpr(expr)
	if err != nil {
		if errors.Is(err, errDisallowed) {
			return nil, fault.Wrap(fault.KindValidation, err, "expression %q", expr)
		}
		return nil, fault.Wrap(fault.KindValidation, err, "evaluate %q", expr)
	}
	n, ok := v.(float64)
	if !ok {
		return nil, fault.Validation("expression %q is not numeric", expr)
	}
	return map[string]any{"expression": expr, "result": n}, nil
}
