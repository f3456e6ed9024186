package prompts

import "text/template"

// Names of the built-in templates.
const (
	SystemFormat        = "system-format"
	TaskStep            = "task-step"
	SystemFormatActor   = "system-format_actor"
	SystemFormatPlanner = "system-format_planner"
	TaskIntroPlanner    = "task-intro_planner"
	TaskIntroActor      = "task-intro_actor"
	UserStepPlanner     = "user-step_planner"
	UserStepActor       = "user-step_actor"
)

// Source tells where a template was loaded from.
type Source string

const (
	SourceEmbedded Source = "embedded"
	SourceOverride Source = "override"
)

// Prompt is a parsed template and where it came from.
type Prompt struct {
	Name   string
	Source Source
	Path   string // file path for overrides
	tmpl   *template.Template
}

// knownVars are always present when rendering so templates can test them
// with default/empty without tripping over missing keys.
var knownVars = []string{"task", "abilities", "plan", "step_output"}
