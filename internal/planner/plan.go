package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mnemo-sh/mnemo/internal/engine"
	"github.com/mnemo-sh/mnemo/internal/workspace"
	"github.com/mnemo-sh/mnemo/pkg/types"
)

// Check names accepted by RunPlan.
const (
	CheckDuplicates   = "duplicates"
	CheckMissingTags  = "missing_tags"
	CheckStale        = "stale"
	CheckConflicts    = "conflicts"
	CheckTagNormalize = "tag_normalize"
	CheckSplitFiles   = "split_files"
)

// AllChecks lists every check in execution order.
var AllChecks = []string{
	CheckDuplicates,
	CheckMissingTags,
	CheckStale,
	CheckConflicts,
	CheckTagNormalize,
	CheckSplitFiles,
}

// KnownCheck reports whether name is a recognized check.
func KnownCheck(name string) bool {
	for _, c := range AllChecks {
		if c == name {
			return true
		}
	}
	return false
}

// RunPlan runs the selected checks (all of them when checks is empty) and
// returns the combined action list in check order. snap may be pre-loaded;
// when nil the workspace's snapshot index is loaded. Unknown check names are
// skipped.
func RunPlan(ws *workspace.Workspace, checks []string, snap *engine.Snapshot) ([]types.Action, error) {
	if snap == nil {
		var err error
		snap, err = engine.LoadSnapshot(ws)
		if err != nil {
			return nil, err
		}
	}

	titleThreshold := ws.TitleThreshold
	if titleThreshold <= 0 {
		titleThreshold = DefaultTitleThreshold
	}
	tagThreshold := ws.TagOverlapThreshold
	if tagThreshold <= 0 {
		tagThreshold = DefaultTagOverlapThreshold
	}

	if len(checks) == 0 {
		checks = AllChecks
	}

	var actions []types.Action
	for _, check := range checks {
		switch check {
		case CheckDuplicates:
			actions = append(actions, DetectDuplicates(snap, titleThreshold, tagThreshold)...)
		case CheckMissingTags:
			actions = append(actions, DetectMissingTags(snap)...)
		case CheckStale:
			actions = append(actions, DetectStale(snap, types.Today())...)
		case CheckConflicts:
			actions = append(actions, DetectConflicts(snap)...)
		case CheckTagNormalize:
			actions = append(actions, DetectTagNormalization(snap)...)
		case CheckSplitFiles:
			actions = append(actions, DetectSplitFiles(ws)...)
		}
	}
	return actions, nil
}

// kindOrder is the display order of action groups in the human format.
var kindOrder = []types.ActionKind{
	types.ActionSupersede,
	types.ActionDeprecate,
	types.ActionRetag,
	types.ActionUpdate,
	types.ActionPrune,
	types.ActionSplitFile,
}

// FormatPlan renders a plan as human-readable markdown or as JSON.
func FormatPlan(actions []types.Action, format string) (string, error) {
	if len(actions) == 0 {
		return "No issues found — memory graph looks healthy.", nil
	}

	if format == "json" {
		data, err := types.MarshalPlan(actions)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	byKind := make(map[types.ActionKind][]types.Action)
	for _, a := range actions {
		byKind[a.Kind] = append(byKind[a.Kind], a)
	}

	lines := []string{fmt.Sprintf("## Memory Maintenance Plan — %d action(s)\n", len(actions))}
	for _, kind := range kindOrder {
		group := byKind[kind]
		if len(group) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("### %s (%d)\n", kind, len(group)))
		for _, a := range group {
			lines = append(lines, fmt.Sprintf("  - **%s**: %s", a.Target(), a.Reason))
			if len(a.AddTags) > 0 {
				lines = append(lines, fmt.Sprintf("    + add tags: %s", strings.Join(a.AddTags, ", ")))
			}
			if len(a.RemoveTags) > 0 {
				lines = append(lines, fmt.Sprintf("    - remove tags: %s", strings.Join(a.RemoveTags, ", ")))
			}
			for _, k := range sortedKeys(a.FieldChanges) {
				lines = append(lines, fmt.Sprintf("    ~ %s → %s", k, a.FieldChanges[k]))
			}
			if a.ByID != "" {
				lines = append(lines, fmt.Sprintf("    → superseded by: %s", a.ByID))
			}
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n"), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
