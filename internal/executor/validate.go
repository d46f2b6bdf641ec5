// Package executor applies planned maintenance actions to a workspace,
// with validation up front and git-stash rollback when the rebuild that
// follows a mutation fails.
package executor

import (
	"fmt"

	"github.com/mnemo-sh/mnemo/pkg/types"
)

// ValidateActions checks a plan before execution and partitions it into
// executable actions and skipped ones with reasons. Checks:
//   - the action kind is known
//   - required fields per kind are present
//   - SUPERSEDE chains contain no cycles
//
// Validation never rejects the whole plan; each bad action is skipped on its
// own so the rest can proceed.
func ValidateActions(actions []types.Action) (valid []types.Action, skipped []types.ActionOutcome) {
	// Supersede graph over the whole plan, including actions that will be
	// skipped for other reasons: a cycle is a property of the plan.
	supersededBy := make(map[string]string)
	for _, a := range actions {
		if a.Kind == types.ActionSupersede && a.OldID != "" && a.ByID != "" {
			supersededBy[a.OldID] = a.ByID
		}
	}

	skip := func(a types.Action, reason string) {
		skipped = append(skipped, types.ActionOutcome{Action: a, Error: reason})
	}

	for _, a := range actions {
		if !types.KnownKind(a.Kind) {
			skip(a, fmt.Sprintf("Unknown action kind: %s", a.Kind))
			continue
		}

		switch a.Kind {
		case types.ActionRetag, types.ActionDeprecate, types.ActionUpdate, types.ActionPrune:
			if a.ID == "" {
				skip(a, fmt.Sprintf("%s requires 'id'", a.Kind))
				continue
			}
		case types.ActionSupersede:
			if a.OldID == "" {
				skip(a, "SUPERSEDE requires 'old_id'")
				continue
			}
		case types.ActionSplitFile:
			if a.RstPath == "" {
				skip(a, "SPLIT_FILE requires 'rst_path'")
				continue
			}
		}

		if a.Kind == types.ActionSupersede && hasSupersedeCycle(supersededBy, a.OldID) {
			skip(a, fmt.Sprintf("Circular supersede chain involving %s", a.OldID))
			continue
		}

		valid = append(valid, a)
	}
	return valid, skipped
}

// hasSupersedeCycle walks the supersede chain from start and reports whether
// it revisits a node.
func hasSupersedeCycle(supersededBy map[string]string, start string) bool {
	visited := make(map[string]bool)
	current := start
	for {
		next, ok := supersededBy[current]
		if !ok {
			return false
		}
		if visited[current] {
			return true
		}
		visited[current] = true
		current = next
	}
}
