package planner

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

// Detection thresholds. Workspace configuration overrides these.
const (
	DefaultTitleThreshold      = 0.8
	DefaultTagOverlapThreshold = 0.5
)

// conflictLinkKinds are the link kinds that count as an explicit relationship
// for the conflict detector. An example_of link is illustrative, not a
// statement about agreement, so it does not suppress the finding.
var conflictLinkKinds = []string{"relates", "supports", "depends", "contradicts", "supersedes"}

// DetectDuplicates finds near-duplicate pairs among active entities: title
// similarity at or above titleThreshold and tag Jaccard overlap at or above
// tagOverlapThreshold. For each pair it proposes superseding the
// lower-scoring entity, where score is (confidence rank, created_at) compared
// lexicographically. O(n²) over active entities.
func DetectDuplicates(snap *engine.Snapshot, titleThreshold, tagOverlapThreshold float64) []types.Action {
	active := snap.Active()
	var actions []types.Action

	for i, e1 := range active {
		for _, e2 := range active[i+1:] {
			sim := Ratio(strings.ToLower(e1.Title), strings.ToLower(e2.Title))
			if sim < titleThreshold {
				continue
			}

			overlap, ok := jaccard(e1.Tags, e2.Tags)
			if !ok || overlap < tagOverlapThreshold {
				continue
			}

			// Keep the newer, higher-confidence entity. On a full score tie
			// the first in ID order wins.
			oldID, newID := e2.ID, e1.ID
			if scoreLess(e1, e2) {
				oldID, newID = e1.ID, e2.ID
			}

			actions = append(actions, types.Action{
				Kind: types.ActionSupersede,
				Reason: fmt.Sprintf(
					"Near-duplicate: title similarity %.0f%%, tag overlap %.0f%%. Keep %s (higher score), deprecate %s.",
					sim*100, overlap*100, newID, oldID),
				OldID: oldID,
				ByID:  newID,
			})
		}
	}
	return actions
}

// jaccard returns |a∩b| / |a∪b|. ok is false when both sets are empty; tagless
// pairs carry no overlap signal either way.
func jaccard(a, b []string) (float64, bool) {
	set1 := make(map[string]bool, len(a))
	for _, t := range a {
		set1[t] = true
	}
	set2 := make(map[string]bool, len(b))
	for _, t := range b {
		set2[t] = true
	}
	union := len(set1)
	inter := 0
	for t := range set2 {
		if set1[t] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0, false
	}
	return float64(inter) / float64(union), true
}

// scoreLess reports whether e1 scores strictly below e2 on the
// (confidence rank, created_at) tuple.
func scoreLess(e1, e2 *types.Entity) bool {
	r1, r2 := e1.ConfidenceRank(), e2.ConfidenceRank()
	if r1 != r2 {
		return r1 < r2
	}
	return e1.CreatedAt < e2.CreatedAt
}

// DetectMissingTags finds active entities lacking a topic: or repo: tag. The
// finding is notification-only: it names the missing prefixes but proposes no
// tag values, because inventing them needs human judgment.
func DetectMissingTags(snap *engine.Snapshot) []types.Action {
	var actions []types.Action
	for _, e := range snap.Active() {
		var missing []string
		if !hasPrefix(e.Tags, "topic:") {
			missing = append(missing, "topic:")
		}
		if !hasPrefix(e.Tags, "repo:") {
			missing = append(missing, "repo:")
		}
		if len(missing) > 0 {
			actions = append(actions, types.Action{
				Kind:   types.ActionRetag,
				Reason: fmt.Sprintf("Missing required tag prefix(es): %s", strings.Join(missing, ", ")),
				ID:     e.ID,
			})
		}
	}
	return actions
}

func hasPrefix(tags []string, prefix string) bool {
	for _, t := range tags {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}

// DetectStale finds active entities past their expiry or review date as of
// today. Expiry takes priority: an entity that is both expired and review-due
// yields only the expiry finding.
func DetectStale(snap *engine.Snapshot, today types.Date) []types.Action {
	var actions []types.Action
	for _, e := range snap.Active() {
		switch {
		case e.ExpiresAt.OnOrBefore(today):
			actions = append(actions, types.Action{
				Kind:         types.ActionUpdate,
				Reason:       fmt.Sprintf("Expired on %s — needs review or deprecation.", e.ExpiresAt),
				ID:           e.ID,
				FieldChanges: map[string]string{"status": "review"},
			})
		case e.ReviewAfter.OnOrBefore(today):
			actions = append(actions, types.Action{
				Kind:         types.ActionUpdate,
				Reason:       fmt.Sprintf("Review overdue since %s.", e.ReviewAfter),
				ID:           e.ID,
				FieldChanges: map[string]string{"status": "review"},
			})
		}
	}
	return actions
}

// DetectConflicts finds pairs of active decisions or preferences sharing a
// topic: tag with no explicit relationship link between them in either
// direction. The finding carries no field changes: recording the actual
// relationship is up to a human.
func DetectConflicts(snap *engine.Snapshot) []types.Action {
	byTopic := make(map[string][]*types.Entity)
	for _, e := range snap.Active() {
		if e.Type != types.TypeDecision && e.Type != types.TypePreference {
			continue
		}
		for _, tag := range e.Tags {
			if strings.HasPrefix(tag, "topic:") {
				byTopic[tag] = append(byTopic[tag], e)
			}
		}
	}

	topics := make([]string, 0, len(byTopic))
	for t := range byTopic {
		topics = append(topics, t)
	}
	sort.Strings(topics)

	var actions []types.Action
	seen := make(map[[2]string]bool)
	for _, topic := range topics {
		group := byTopic[topic]
		for i, e1 := range group {
			for _, e2 := range group[i+1:] {
				pair := [2]string{e1.ID, e2.ID}
				if pair[0] > pair[1] {
					pair[0], pair[1] = pair[1], pair[0]
				}
				if seen[pair] {
					continue
				}
				seen[pair] = true

				if linkedUnder(e1, e2.ID) || linkedUnder(e2, e1.ID) {
					continue
				}
				actions = append(actions, types.Action{
					Kind: types.ActionUpdate,
					Reason: fmt.Sprintf(
						"Potential conflict: %s and %s are both active %s/%s entries on the same topic with no explicit relationship link.",
						e1.ID, e2.ID, e1.Type, e2.Type),
					ID: e1.ID,
				})
			}
		}
	}
	return actions
}

func linkedUnder(e *types.Entity, target string) bool {
	for _, kind := range conflictLinkKinds {
		for _, t := range e.Links[kind] {
			if t == target {
				return true
			}
		}
	}
	return false
}

// DetectTagNormalization finds tags that differ only by case and proposes
// rewriting every use of a minority form to the canonical one. Canonical is
// the most-used form; count ties go to the lexicographically smallest form.
func DetectTagNormalization(snap *engine.Snapshot) []types.Action {
	active := snap.Active()

	usage := make(map[string]int)
	for _, e := range active {
		for _, tag := range e.Tags {
			usage[tag]++
		}
	}

	groups := make(map[string][]string)
	for tag := range usage {
		key := strings.ToLower(tag)
		groups[key] = append(groups[key], tag)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var actions []types.Action
	for _, key := range keys {
		forms := groups[key]
		if len(forms) <= 1 {
			continue
		}
		sort.Strings(forms)
		canonical := forms[0]
		for _, f := range forms[1:] {
			if usage[f] > usage[canonical] {
				canonical = f
			}
		}
		for _, form := range forms {
			if form == canonical {
				continue
			}
			for _, e := range active {
				if e.HasTag(form) {
					actions = append(actions, types.Action{
						Kind:       types.ActionRetag,
						Reason:     fmt.Sprintf("Tag normalization: '%s' → '%s'", form, canonical),
						ID:         e.ID,
						RemoveTags: []string{form},
						AddTags:    []string{canonical},
					})
				}
			}
		}
	}
	return actions
}

// DetectSplitFiles finds directive files holding more entries than the
// workspace's per-file limit.
func DetectSplitFiles(ws *workspace.Workspace) []types.Action {
	var actions []types.Action
	for _, code := range types.AllTypes {
		for _, path := range rst.FindFiles(ws, code) {
			count := rst.CountEntries(path)
			if count > ws.MaxEntriesPerFile {
				actions = append(actions, types.Action{
					Kind:    types.ActionSplitFile,
					Reason:  fmt.Sprintf("%s has %d entries (limit: %d).", filepath.Base(path), count, ws.MaxEntriesPerFile),
					RstPath: ws.Rel(path),
				})
			}
		}
	}
	return actions
}
