// Package abilities holds the actions the model can ask the agent to take.
package abilities

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Func runs an ability for a task with validated arguments.
type Func func(ctx context.Context, taskID string, args map[string]any) (string, error)

// Parameter declares one named argument of an ability.
type Parameter struct {
	Name        string
	Description string
	Type        string // string, bytes, integer, number, boolean, list[str], dict
	Required    bool
}

// Ability is a named action with declared parameters.
type Ability struct {
	Name        string
	Description string
	Parameters  []Parameter
	OutputType  string
	Category    string
	Fn          Func
}

// String renders the ability the way it is listed in system prompts.
func (a Ability) String() string {
	params := make([]string, 0, len(a.Parameters))
	for _, p := range a.Parameters {
		params = append(params, fmt.Sprintf("%s: %s", p.Name, p.Type))
	}
	out := a.OutputType
	if out == "" {
		out = "None"
	}
	return fmt.Sprintf("%s(%s) -> %s. Usage: %s", a.Name, strings.Join(params, ", "), out, a.Description)
}

// ErrUnknownAbility is returned when no ability has the requested name.
var ErrUnknownAbility = errors.New("unknown ability")

// ValidationError lists what was wrong with an ability's arguments.
type ValidationError struct {
	Ability string
	Errors  []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Ability, strings.Join(e.Errors, "; "))
}
