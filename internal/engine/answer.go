package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FinishAbility is the ability name that ends a task.
const FinishAbility = "finish"

// AbilityCall is the ability the model chose and its arguments.
type AbilityCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Answer is a model reply parsed best-effort. Only Raw is always present.
type Answer struct {
	Raw      string          // compact JSON of the whole reply
	Thoughts json.RawMessage // nil when the reply has no "thoughts"
	Speak    *string         // thoughts.speak, when present
	Plan     *string         // thoughts.plan, when present
	Ability  *AbilityCall    // nil when the reply has no usable "ability"
}

// ParseAnswer decodes a model reply. The reply must be a JSON object;
// every key inside it is optional.
func ParseAnswer(content string) (Answer, error) {
	trimmed := strings.TrimSpace(content)
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &top); err != nil {
		return Answer{}, &DecodeError{Content: content, Err: err}
	}
	if top == nil {
		return Answer{}, &DecodeError{Content: content, Err: errors.New("reply is null")}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(trimmed)); err != nil {
		return Answer{}, &DecodeError{Content: content, Err: err}
	}
	a := Answer{Raw: buf.String()}

	if raw, ok := top["thoughts"]; ok {
		a.Thoughts = compactRaw(raw)
		var thoughts map[string]json.RawMessage
		if json.Unmarshal(raw, &thoughts) == nil {
			if v, ok := thoughts["speak"]; ok {
				s := rawText(v)
				a.Speak = &s
			}
			if v, ok := thoughts["plan"]; ok {
				s := rawText(v)
				a.Plan = &s
			}
		}
	}

	if raw, ok := top["ability"]; ok {
		var call AbilityCall
		if json.Unmarshal(raw, &call) == nil && call.Name != "" {
			if call.Args == nil {
				call.Args = map[string]any{}
			}
			a.Ability = &call
		}
	}

	return a, nil
}

// StepOutput resolves the text a step reports: thoughts.speak, else the
// thoughts value, else the whole reply.
func (a Answer) StepOutput() string {
	if a.Speak != nil {
		return *a.Speak
	}
	if a.Thoughts != nil {
		return rawText(a.Thoughts)
	}
	return a.Raw
}

// AbilityName returns the chosen ability name or "".
func (a Answer) AbilityName() string {
	if a.Ability == nil {
		return ""
	}
	return a.Ability.Name
}

// IsFinish reports whether the answer picked the terminating ability.
func (a Answer) IsFinish() bool {
	return a.AbilityName() == FinishAbility
}

// AbilitySummary is the assistant message recorded after a successful ability.
func AbilitySummary(call AbilityCall, output string) string {
	args, err := json.Marshal(call.Args)
	if err != nil {
		args = []byte(fmt.Sprint(call.Args))
	}
	return fmt.Sprintf("Here is the output of the ability %s applied to %s: %s", call.Name, args, output)
}

// rawText renders a JSON value as text: strings unquoted, everything else compact JSON.
func rawText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(compactRaw(raw))
}

func compactRaw(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
