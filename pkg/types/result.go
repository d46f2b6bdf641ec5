package types

import "fmt"

// ActionOutcome pairs an action with what happened to it during one executor
// run: a success message, a failure error, or a validation skip reason.
type ActionOutcome struct {
	Action Action `json:"action"`

	// Message describes a successful application (Applied entries).
	Message string `json:"message,omitempty"`

	// Error describes a failure (Failed entries) or skip reason (Skipped).
	Error string `json:"error,omitempty"`
}

// ExecutionResult is the outcome of one executor invocation. It is
// constructed once per run and immutable after construction; callers use it
// only for reporting.
type ExecutionResult struct {
	// Success is true iff no valid action failed. Skipped actions alone do
	// not fail the batch.
	Success bool `json:"success"`

	Applied []ActionOutcome `json:"applied,omitempty"`
	Failed  []ActionOutcome `json:"failed,omitempty"`
	Skipped []ActionOutcome `json:"skipped,omitempty"`

	// BuildOutput is the report text from the post-apply rebuild, if one ran.
	BuildOutput string `json:"build_output,omitempty"`

	// Message is a one-line summary of the run.
	Message string `json:"message,omitempty"`
}

// Summary renders a short human-readable account of the run.
func (r *ExecutionResult) Summary() string {
	s := ""
	if r.Message != "" {
		s = r.Message + "\n"
	}
	s += fmt.Sprintf("Applied: %d, Failed: %d, Skipped: %d",
		len(r.Applied), len(r.Failed), len(r.Skipped))
	if r.BuildOutput != "" {
		out := r.BuildOutput
		if len(out) > 200 {
			out = out[:200]
		}
		s += "\nBuild: " + out
	}
	return s
}
