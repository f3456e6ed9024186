package abilities

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Registry maps ability names to abilities and runs them.
// It satisfies engine.Dispatcher.
type Registry struct {
	mu        sync.RWMutex
	abilities map[string]registered
}

type registered struct {
	Ability
	schema *gojsonschema.Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{abilities: make(map[string]registered)}
}

// Register adds an ability. Names must be unique.
func (r *Registry) Register(a Ability) error {
	if a.Name == "" {
		return fmt.Errorf("ability has no name")
	}
	if a.Fn == nil {
		return fmt.Errorf("ability %s has no function", a.Name)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaFor(a.Parameters)))
	if err != nil {
		return fmt.Errorf("ability %s: build schema: %w", a.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.abilities[a.Name]; exists {
		return fmt.Errorf("ability %s already registered", a.Name)
	}
	r.abilities[a.Name] = registered{Ability: a, schema: schema}
	return nil
}

// MustRegister is Register that panics, for wiring built-in abilities.
func (r *Registry) MustRegister(abilities ...Ability) {
	for _, a := range abilities {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
}

// Get returns an ability by name.
func (r *Registry) Get(name string) (Ability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.abilities[name]
	return a.Ability, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.abilities))
	for name := range r.abilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListForPrompt renders one line per ability, sorted by name.
func (r *Registry) ListForPrompt() string {
	var b strings.Builder
	for i, name := range r.Names() {
		a, _ := r.Get(name)
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(a.String())
	}
	return b.String()
}

// Run validates args against the ability's parameters and invokes it.
func (r *Registry) Run(ctx context.Context, taskID, name string, args map[string]any) (string, error) {
	r.mu.RLock()
	a, ok := r.abilities[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAbility, name)
	}

	coerced := coerceArgs(a.Parameters, args)
	result, err := a.schema.Validate(gojsonschema.NewGoLoader(coerced))
	if err != nil {
		return "", fmt.Errorf("validate arguments for %s: %w", name, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return "", &ValidationError{Ability: name, Errors: msgs}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return a.Fn(ctx, taskID, coerced)
}

// schemaFor builds a JSON schema object from parameter declarations.
// Unknown extra arguments are allowed and passed through.
func schemaFor(params []Parameter) map[string]any {
	props := make(map[string]any, len(params))
	required := make([]any, 0, len(params))
	for _, p := range params {
		prop := map[string]any{}
		if t := jsonType(p.Type); t != "" {
			prop["type"] = t
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func jsonType(t string) string {
	switch t := strings.ToLower(strings.TrimSpace(t)); {
	case t == "string" || t == "str" || t == "bytes":
		return "string"
	case t == "integer" || t == "int":
		return "integer"
	case t == "number" || t == "float":
		return "number"
	case t == "boolean" || t == "bool":
		return "boolean"
	case strings.HasPrefix(t, "list") || strings.HasPrefix(t, "array"):
		return "array"
	case t == "dict" || t == "object":
		return "object"
	default:
		return ""
	}
}

// coerceArgs converts scalar arguments the model commonly sends in the wrong
// shape: numbers and booleans for string parameters, numeric strings for
// numbers, "true"/"false" for booleans. Everything else passes through.
func coerceArgs(params []Parameter, args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	for _, p := range params {
		v, ok := out[p.Name]
		if !ok || v == nil {
			if ok && v == nil && !p.Required {
				delete(out, p.Name)
			}
			continue
		}
		switch jsonType(p.Type) {
		case "string":
			switch x := v.(type) {
			case float64:
				out[p.Name] = strconv.FormatFloat(x, 'f', -1, 64)
			case bool:
				out[p.Name] = strconv.FormatBool(x)
			case map[string]any, []any:
				if b, err := json.Marshal(x); err == nil {
					out[p.Name] = string(b)
				}
			}
		case "integer", "number":
			if s, ok := v.(string); ok {
				if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
					out[p.Name] = f
				}
			}
		case "boolean":
			if s, ok := v.(string); ok {
				if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
					out[p.Name] = b
				}
			}
		}
	}
	return out
}

// stringArg reads an optional string argument.
func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}
