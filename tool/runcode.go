package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/dispatchd/dispatch/fault"
)

const maxCodeLen = 4096

// RunCodeTool executes a snippet in the restricted in-process evaluator.
// The evaluator has no host capabilities at all; anything outside its
// grammar or allow-list fails closed as a sandbox violation.
type RunCodeTool struct{}

func (t *RunCodeTool) Definition() Def {
	return Def{
		Name:        "run_code",
		Description: "Run a short script in a restricted sandbox (arithmetic, strings, variables, pure functions)",
		Params: []Param{
			{Name: "code", Kind: KindString, Description: "Script to run; the last statement's value is returned", Required: true},
		},
	}
}

func (t *RunCodeTool) Execute(_ context.Context, args map[string]any) (any, error) {
	code, _ := args["code"].(string)
	if len(code) > maxCodeLen {
		return nil, fault.Sandbox("script exceeds %d bytes", maxCodeLen)
	}
	v, err := evalProgram(code)
	if err != nil {
		if errors.Is(err, errDisallowed) {
			return nil, fault.Wrap(fault.KindSandbox, err, "rejected script")
		}
		return nil, fmt.Errorf("run_code: %w", err)
	}
	return map[string]any{"result": v}, nil
}
