package abilities

import "context"

// NewFinishAbility is the terminating ability. The controllers end the task
// when the model picks it; running it only echoes the reason. The reason is
// optional so a bare finish never fails validation.
func NewFinishAbility() Ability {
	return Ability{
		Name: "finish",
		Description: "Use this to shut down once you have accomplished all of your goals," +
			" or when there are insurmountable problems that make it impossible" +
			" for you to finish your task.",
		Parameters: []Parameter{
			{Name: "reason", Description: "A summary to the user of how the goals were accomplished", Type: "string"},
		},
		OutputType: "None",
		Category:   "finish",
		Fn: func(_ context.Context, _ string, args map[string]any) (string, error) {
			return stringArg(args, "reason"), nil
		},
	}
}
