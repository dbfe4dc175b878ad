// Package prompts contains the LLM prompt templates and fixed user-facing
// copy used by Pulse.
//
// Prompt text is Go code rather than config files because it is program logic:
// templates use fmt.Sprintf interpolation, benefit from compile-time embedding,
// and can be validated by tests.
//
// Convention: each prompt category gets its own file (persona.go,
// analysis.go, reminder.go, checkin.go) with an exported function that
// accepts the dynamic parts and returns the fully interpolated prompt string.
package prompts
