package tool

import (
	"context"
	"encoding/json"

	"github.com/dispatchd/dispatch/fault"
)

// JSONTool parses or stringifies JSON values.
type JSONTool struct{}

func (t *JSONTool) Definition() Def {
	return Def{
		Name:        "json",
		Description: "Parse a JSON string or stringify a value",
		Params: []Param{
			{Name: "op", Kind: KindString, Description: "\"parse\" or \"stringify\"", Required: true},
			{Name: "text", Kind: KindString, Description: "JSON text to parse (op=parse)"},
			{Name: "value", Kind: KindAny, Description: "Value to stringify (op=stringify)"},
			{Name: "pretty", Kind: KindBoolean, Description: "Indent stringified output"},
		},
	}
}

func (t *JSONTool) Execute(_ context.Context, args map[string]any) (any, error) {
	op, _ := args["op"].(string)
	switch op {
	case "parse":
		text, _ := args["text"].(string)
		if text == "" {
			return nil, fault.Validation("json parse: text is required")
		}
		var parsed any
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			return nil, fault.Wrap(fault.KindValidation, err, "json parse")
		}
		return map[string]any{"value": parsed}, nil

	case "stringify":
		value, ok := args["value"]
		if !ok {
			return nil, fault.Validation("json stringify: value is required")
		}
		var (
			data []byte
			err  error
		)
		if pretty, _ := args["pretty"].(bool); pretty {
			data, err = json.MarshalIndent(value, "", "  ")
		} else {
			data, err = json.Marshal(value)
		}
		if err != nil {
			return nil, fault.Wrap(fault.KindValidation, err, "json stringify")
		}
		return map[string]any{"text": string(data)}, nil

	default:
		return nil, fault.Validation("json: op must be parse or stringify, got %q", op)
	}
}
