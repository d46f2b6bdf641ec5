// Package formatter renders entities for different audiences: one-line brief
// output, scannable compact lines, full metadata dumps, and the context-pack
// layout meant to be pasted into an AI assistant's context window.
package formatter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mnemo-sh/mnemo/pkg/types"
)

// metadataFields are shown in full output, in this order.
var metadataFields = []string{
	"source", "owner", "created_at", "updated_at", "review_after", "expires_at",
}

// contextPackOrder lists types by trust level, facts first.
var contextPackOrder = []string{
	types.TypeFact,
	types.TypeDecision,
	types.TypePreference,
	types.TypeGoal,
	types.TypeObservation,
	types.TypeRisk,
	types.TypeQuestion,
}

var contextPackLabels = map[string]string{
	types.TypeFact:        "Facts (verified, high trust)",
	types.TypeDecision:    "Decisions (with rationale)",
	types.TypePreference:  "Preferences (coding style, conventions)",
	types.TypeGoal:        "Goals (objectives)",
	types.TypeObservation: "Observations (may need verification)",
	types.TypeRisk:        "Risks & Assumptions",
	types.TypeQuestion:    "Open Questions (unresolved)",
}

const bodySnippetLimit = 500

// Brief renders an ultra-compact single line: [ID] Title (confidence)
// {key-tags}. Only topic: and repo: tags are shown.
func Brief(e *types.Entity) string {
	var keyTags []string
	for _, t := range e.Tags {
		if strings.HasPrefix(t, "topic:") || strings.HasPrefix(t, "repo:") {
			keyTags = append(keyTags, t)
		}
	}
	line := fmt.Sprintf("[%s] %s (%s)", e.ID, e.Title, orUnknown(e.Confidence))
	if len(keyTags) > 0 {
		line += fmt.Sprintf(" {%s}", strings.Join(keyTags, ","))
	}
	return line
}

// Compact renders one pipe-separated line per entity, optionally followed by
// an indented body snippet.
func Compact(e *types.Entity, showBody bool) string {
	parts := []string{
		fmt.Sprintf("[%s]", e.ID),
		e.Title,
		"status=" + orUnknown(e.Status),
		"confidence=" + orUnknown(e.Confidence),
	}
	if len(e.Tags) > 0 {
		parts = append(parts, fmt.Sprintf("tags=[%s]", strings.Join(e.Tags, ",")))
	}

	var links []string
	for _, kind := range types.LinkKinds {
		if targets := e.Links[kind]; len(targets) > 0 {
			links = append(links, fmt.Sprintf("%s:%s", kind, strings.Join(targets, ",")))
		}
		if back := e.BackLinks[kind]; len(back) > 0 {
			links = append(links, fmt.Sprintf("%s_back:%s", kind, strings.Join(back, ",")))
		}
	}
	if len(links) > 0 {
		parts = append(parts, fmt.Sprintf("links=[%s]", strings.Join(links, "; ")))
	}

	line := strings.Join(parts, " | ")
	if showBody {
		if body := strings.TrimSpace(e.Body); body != "" {
			snippet := body
			if len(snippet) > bodySnippetLimit {
				snippet = snippet[:bodySnippetLimit] + "..."
			}
			line += "\n  > " + snippet
		}
	}
	return line
}

// Full renders every field of a single entity for deep inspection.
func Full(e *types.Entity) string {
	lines := []string{
		fmt.Sprintf("# %s: %s", e.ID, e.Title),
		"type: " + orUnknown(e.Type),
		"status: " + orUnknown(e.Status),
		"confidence: " + orUnknown(e.Confidence),
		"scope: " + orUnknown(e.Scope),
	}
	if len(e.Tags) > 0 {
		lines = append(lines, "tags: "+strings.Join(e.Tags, ", "))
	}

	for _, f := range metadataFields {
		if v := metadataValue(e, f); v != "" {
			lines = append(lines, f+": "+v)
		}
	}

	for _, kind := range types.LinkKinds {
		if targets := e.Links[kind]; len(targets) > 0 {
			lines = append(lines, fmt.Sprintf("%s: %s", kind, strings.Join(targets, ", ")))
		}
		if back := e.BackLinks[kind]; len(back) > 0 {
			lines = append(lines, fmt.Sprintf("%s_back: %s", kind, strings.Join(back, ", ")))
		}
	}

	if body := strings.TrimSpace(e.Body); body != "" {
		lines = append(lines, "\n"+body)
	}
	return strings.Join(lines, "\n")
}

// ContextPack renders a set of entities as a structured prompt section,
// grouped by type in trust order. Body text is hidden by default to save
// tokens.
func ContextPack(entities map[string]*types.Entity, showBody bool) string {
	if len(entities) == 0 {
		return "No relevant memories found."
	}

	lines := []string{fmt.Sprintf("## Recalled Memories (%d results)\n", len(entities))}

	byType := make(map[string][]*types.Entity)
	for _, e := range entities {
		byType[e.Type] = append(byType[e.Type], e)
	}

	for _, t := range contextPackOrder {
		group := byType[t]
		if len(group) == 0 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			if group[i].ConfidenceRank() != group[j].ConfidenceRank() {
				return group[i].ConfidenceRank() > group[j].ConfidenceRank()
			}
			return group[i].ID < group[j].ID
		})
		lines = append(lines, "### "+contextPackLabels[t])
		for _, e := range group {
			lines = append(lines, Compact(e, showBody))
		}
		lines = append(lines, "")
	}

	if !showBody {
		lines = append(lines, "_Use `mnemo get <ID>` to see full body text._")
	}
	return strings.Join(lines, "\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

func metadataValue(e *types.Entity, field string) string {
	switch field {
	case "source":
		return e.Source
	case "owner":
		return e.Owner
	case "created_at":
		return string(e.CreatedAt)
	case "updated_at":
		return string(e.UpdatedAt)
	case "review_after":
		return string(e.ReviewAfter)
	case "expires_at":
		return string(e.ExpiresAt)
	}
	return ""
}
