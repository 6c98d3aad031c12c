// Package tool provides the tool registry and executor available to skills
// during generation: argument validation, execution with a deadline,
// result memoization, and concurrent fan-out.
package tool

import "context"

// ParamKind is the expected JSON kind of a tool argument.
type ParamKind string

const (
	KindString  ParamKind = "string"
	KindNumber  ParamKind = "number"
	KindBoolean ParamKind = "boolean"
	KindObject  ParamKind = "object"
	KindArray   ParamKind = "array"
	KindAny     ParamKind = "any"
)

// Param describes one argument in a tool's schema.
type Param struct {
	Name        string    `json:"name"`
	Kind        ParamKind `json:"kind"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required,omitempty"`
}

// Def is a tool definition advertised to skills and, through them, to the
// model.
type Def struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params,omitempty"`
}

// Schema renders the definition as a JSON-Schema shaped map, the form
// chat-completions style APIs expect for function parameters.
func (d Def) Schema() map[string]any {
	props := make(map[string]any, len(d.Params))
	var required []string
	for _, p := range d.Params {
		prop := map[string]any{"description": p.Description}
		if p.Kind != KindAny {
			prop["type"] = string(p.Kind)
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Tool is one named capability exposed to skills.
type Tool interface {
	// Definition returns the tool's name, description, and schema.
	// Immutable after registration.
	Definition() Def

	// Execute runs the tool with already-validated arguments.
	Execute(ctx context.Context, args map[string]any) (any, error)
}
