package executor

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mnemo-sh/mnemo/internal/engine"
	"github.com/mnemo-sh/mnemo/internal/rst"
	"github.com/mnemo-sh/mnemo/internal/workspace"
	"github.com/mnemo-sh/mnemo/pkg/types"
)

// Git is the version-control collaborator used for rollback and commits.
// Every method is best-effort: false means the operation did not happen,
// never that execution should stop.
type Git interface {
	StashPush() bool
	StashPop() bool
	StashDrop() bool
	Commit(message string) bool
}

// RebuildFunc regenerates the snapshot index and reports (success, output).
type RebuildFunc func(ws *workspace.Workspace) (bool, string)

// Options controls plan execution.
type Options struct {
	// AutoCommit commits the directive changes after a fully successful run.
	AutoCommit bool

	// SkipRebuild leaves the snapshot index stale. Used when the caller
	// batches several plan applications and rebuilds once at the end.
	SkipRebuild bool
}

// Executor applies plans to one workspace.
type Executor struct {
	ws      *workspace.Workspace
	git     Git
	rebuild RebuildFunc
}

// New creates an executor. rebuild may be nil, defaulting to engine.Rebuild.
func New(ws *workspace.Workspace, git Git, rebuild RebuildFunc) *Executor {
	if rebuild == nil {
		rebuild = engine.Rebuild
	}
	return &Executor{ws: ws, git: git, rebuild: rebuild}
}

// ExecutePlan validates and applies actions sequentially.
//
// Failures are isolated per action: one failed action is recorded and the
// rest still run. After mutations a rebuild verifies the workspace still
// parses; on rebuild failure the pre-apply git stash is popped, rolling every
// mutation back, and the result reports nothing as applied.
func (x *Executor) ExecutePlan(actions []types.Action, opts Options) *types.ExecutionResult {
	valid, skipped := ValidateActions(actions)

	if len(valid) == 0 {
		return &types.ExecutionResult{
			Success: true,
			Skipped: skipped,
			Message: "No valid actions to execute.",
		}
	}

	stashed := x.git.StashPush()

	var applied, failed []types.ActionOutcome
	for _, a := range valid {
		ok, msg := x.executeOne(a)
		if ok {
			applied = append(applied, types.ActionOutcome{Action: a, Message: msg})
		} else {
			failed = append(failed, types.ActionOutcome{Action: a, Message: msg, Error: msg})
		}
	}

	buildOK := true
	buildOutput := ""
	if !opts.SkipRebuild && len(applied) > 0 {
		buildOK, buildOutput = x.rebuild(x.ws)
	}

	if !buildOK {
		result := &types.ExecutionResult{
			Success:     false,
			Failed:      failed,
			Skipped:     skipped,
			BuildOutput: buildOutput,
		}
		if stashed {
			x.git.StashPop()
			result.Message = "Build failed after applying actions — rolled back via git stash pop."
		} else {
			// Nothing to roll back with; the mutations stand.
			result.Applied = applied
			result.Message = "Build failed after applying actions — no git stash available for rollback; workspace may be in an inconsistent state."
		}
		return result
	}

	if stashed {
		x.git.StashDrop()
	}

	if opts.AutoCommit && len(applied) > 0 {
		x.git.Commit(commitMessage(applied))
	}

	return &types.ExecutionResult{
		Success:     len(failed) == 0,
		Applied:     applied,
		Failed:      failed,
		Skipped:     skipped,
		BuildOutput: buildOutput,
		Message:     fmt.Sprintf("Plan executed: %d applied, %d failed, %d skipped.", len(applied), len(failed), len(skipped)),
	}
}

// executeOne dispatches a single validated action.
func (x *Executor) executeOne(a types.Action) (bool, string) {
	switch a.Kind {
	case types.ActionRetag:
		return x.executeRetag(a)
	case types.ActionSupersede:
		return x.executeSupersede(a)
	case types.ActionDeprecate:
		return rst.Deprecate(x.ws, a.ID, a.ByID)
	case types.ActionUpdate:
		return x.executeUpdate(a)
	case types.ActionPrune:
		return rst.Deprecate(x.ws, a.ID, "")
	case types.ActionSplitFile:
		return true, fmt.Sprintf("File splitting noted for %s — handled automatically on next append.", a.RstPath)
	}
	return false, fmt.Sprintf("Unknown action kind: %s", a.Kind)
}

func (x *Executor) executeRetag(a types.Action) (bool, string) {
	var messages []string
	ok := true

	if len(a.RemoveTags) > 0 {
		success, msg := rst.RemoveTags(x.ws, a.ID, a.RemoveTags)
		messages = append(messages, msg)
		ok = ok && success
	}
	if len(a.AddTags) > 0 {
		success, msg := rst.AddTags(x.ws, a.ID, a.AddTags)
		messages = append(messages, msg)
		ok = ok && success
	}
	return ok, strings.Join(messages, "; ")
}

func (x *Executor) executeSupersede(a types.Action) (bool, string) {
	ok, msg := rst.Deprecate(x.ws, a.OldID, a.ByID)
	if !ok {
		return false, fmt.Sprintf("Failed to deprecate %s: %s", a.OldID, msg)
	}
	messages := []string{msg}

	// A replacement entity is optional; most supersedes point at an
	// existing canonical entity via by_id.
	if a.NewType != "" && a.NewTitle != "" {
		directive := rst.Generate(rst.Fields{
			Type:       a.NewType,
			Title:      a.NewTitle,
			Tags:       a.NewTags,
			Body:       a.NewBody,
			Supersedes: []string{a.OldID},
		})
		target, err := rst.Append(x.ws, a.NewType, directive)
		if err != nil {
			return false, fmt.Sprintf("Failed to create replacement for %s: %v", a.OldID, err)
		}
		messages = append(messages, fmt.Sprintf("Created replacement in %s", filepath.Base(target)))
	}
	return true, strings.Join(messages, "; ")
}

func (x *Executor) executeUpdate(a types.Action) (bool, string) {
	if len(a.FieldChanges) == 0 {
		return true, fmt.Sprintf("No field changes for %s", a.ID)
	}

	fields := make([]string, 0, len(a.FieldChanges))
	for f := range a.FieldChanges {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var messages []string
	ok := true
	for _, f := range fields {
		success, msg := rst.SetField(x.ws, a.ID, f, a.FieldChanges[f])
		messages = append(messages, msg)
		ok = ok && success
	}
	return ok, strings.Join(messages, "; ")
}

// commitMessage summarizes an applied plan for the auto-commit.
func commitMessage(applied []types.ActionOutcome) string {
	kindSet := make(map[string]bool)
	for _, o := range applied {
		kindSet[string(o.Action.Kind)] = true
	}
	kinds := make([]string, 0, len(kindSet))
	for k := range kindSet {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return fmt.Sprintf("memory: auto-apply %s (%d actions)", strings.Join(kinds, ", "), len(applied))
}
