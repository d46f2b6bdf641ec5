// Package query implements the read-side operations shared by the CLI and
// the MCP server: recall filtering, result sorting, set formatting, tag
// summaries, and the staleness report.
package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mnemo-sh/mnemo/internal/engine"
	"github.com/mnemo-sh/mnemo/internal/formatter"
	"github.com/mnemo-sh/mnemo/pkg/types"
)

// RecallOptions filters a snapshot down to relevant entities.
type RecallOptions struct {
	// Query is a free-text search; words are OR-combined.
	Query string

	// Tags must all be present on a match (AND logic).
	Tags []string

	// Type restricts matches to one memory type code.
	Type string

	// StaleOnly keeps only expired or review-overdue entities.
	StaleOnly bool

	// Expand walks the link graph this many hops out from the matches.
	Expand int

	// Today anchors date comparisons; zero value means the current date.
	Today types.Date
}

// Recall filters the snapshot. Deprecated entities never match and are
// filtered from graph expansion too; expired ones are hidden unless
// StaleOnly asks for them.
func Recall(snap *engine.Snapshot, opts RecallOptions) map[string]*types.Entity {
	today := opts.Today
	if !today.IsSet() {
		today = types.Today()
	}

	matched := make(map[string]*types.Entity)
	for _, e := range snap.Active() {
		if e.ExpiresAt.OnOrBefore(today) && !opts.StaleOnly {
			continue
		}
		if opts.Type != "" && e.Type != opts.Type {
			continue
		}
		if len(opts.Tags) > 0 && !engine.TagMatch(e, opts.Tags) {
			continue
		}
		if opts.Query != "" && !engine.TextMatch(e, opts.Query) {
			continue
		}
		if opts.StaleOnly && !e.ExpiresAt.OnOrBefore(today) && !e.ReviewAfter.OnOrBefore(today) {
			continue
		}
		matched[e.ID] = e
	}

	if len(matched) == 0 || opts.Expand <= 0 {
		return matched
	}

	seeds := make([]string, 0, len(matched))
	for id := range matched {
		seeds = append(seeds, id)
	}
	sort.Strings(seeds)

	expanded := snap.ExpandGraph(seeds, opts.Expand)
	for id, e := range expanded {
		if e.IsDeprecated() {
			delete(expanded, id)
		}
	}
	return expanded
}

// Sort keys for result ordering.
const (
	SortNewest     = "newest"
	SortOldest     = "oldest"
	SortConfidence = "confidence"
	SortUpdated    = "updated"
)

// SortEntities orders a result set. An empty or unknown key sorts by ID.
func SortEntities(entities map[string]*types.Entity, key string) []*types.Entity {
	out := make([]*types.Entity, 0, len(entities))
	for _, e := range entities {
		out = append(out, e)
	}
	// ID order first so every sort key is deterministic under ties.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	switch key {
	case SortNewest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	case SortConfidence:
		sort.SliceStable(out, func(i, j int) bool { return out[i].ConfidenceRank() > out[j].ConfidenceRank() })
	case SortUpdated:
		sort.SliceStable(out, func(i, j int) bool { return lastTouched(out[i]) > lastTouched(out[j]) })
	}
	return out
}

func lastTouched(e *types.Entity) types.Date {
	if e.UpdatedAt.IsSet() {
		return e.UpdatedAt
	}
	return e.CreatedAt
}

// Output formats accepted by FormatSet.
const (
	FormatBrief   = "brief"
	FormatCompact = "compact"
	FormatContext = "context"
	FormatJSON    = "json"
)

// FormatSet renders a result set. limit truncates after sorting (falling
// back to confidence order when no sort key was given) and reports how many
// results were omitted; 0 means unlimited.
func FormatSet(entities map[string]*types.Entity, format string, limit int, showBody bool, sortKey string) (string, error) {
	sorted := SortEntities(entities, sortKey)

	omitted := 0
	if limit > 0 && len(sorted) > limit {
		if sortKey == "" {
			sorted = SortEntities(entities, SortConfidence)
		}
		omitted = len(sorted) - limit
		sorted = sorted[:limit]
	}

	trimmed := make(map[string]*types.Entity, len(sorted))
	for _, e := range sorted {
		trimmed[e.ID] = e
	}

	var lines []string
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(sorted, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	case FormatBrief:
		for _, e := range sorted {
			lines = append(lines, formatter.Brief(e))
		}
	case FormatCompact:
		for _, e := range sorted {
			lines = append(lines, formatter.Compact(e, showBody))
		}
	default:
		lines = append(lines, formatter.ContextPack(trimmed, showBody))
	}

	if omitted > 0 {
		lines = append(lines, fmt.Sprintf("\n(%d more results omitted — use limit parameter to see more)", omitted))
	}
	return strings.Join(lines, "\n"), nil
}

// TagSummary renders every tag in use on active entities with usage counts,
// grouped by prefix. prefix filters to one group when non-empty.
func TagSummary(snap *engine.Snapshot, prefix string) string {
	counts := make(map[string]int)
	for _, e := range snap.Active() {
		for _, tag := range e.Tags {
			counts[tag]++
		}
	}
	if len(counts) == 0 {
		return "No tags found."
	}

	byPrefix := make(map[string][]string)
	for tag := range counts {
		p := "_untagged"
		if i := strings.Index(tag, ":"); i >= 0 {
			p = tag[:i]
		}
		byPrefix[p] = append(byPrefix[p], tag)
	}

	prefixes := make([]string, 0, len(byPrefix))
	for p := range byPrefix {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)

	var lines []string
	total := 0
	for _, p := range prefixes {
		if prefix != "" && p != prefix {
			continue
		}
		tags := byPrefix[p]
		sort.Slice(tags, func(i, j int) bool {
			if counts[tags[i]] != counts[tags[j]] {
				return counts[tags[i]] > counts[tags[j]]
			}
			return tags[i] < tags[j]
		})
		lines = append(lines, fmt.Sprintf("\n%s:", p))
		for _, tag := range tags {
			lines = append(lines, fmt.Sprintf("  %s  (%d)", tag, counts[tag]))
			total += counts[tag]
		}
	}

	lines = append(lines, fmt.Sprintf("\n%d unique tags, %d total usages", len(counts), total))
	return strings.Join(lines, "\n")
}

// StaleReport lists expired and review-overdue active entities. An entity
// with both dates past appears only in the expired section.
func StaleReport(snap *engine.Snapshot, today types.Date) string {
	if !today.IsSet() {
		today = types.Today()
	}

	var expired, reviewDue []*types.Entity
	for _, e := range snap.Active() {
		switch {
		case e.ExpiresAt.OnOrBefore(today):
			expired = append(expired, e)
		case e.ReviewAfter.OnOrBefore(today):
			reviewDue = append(reviewDue, e)
		}
	}

	if len(expired) == 0 && len(reviewDue) == 0 {
		return "No stale memories found."
	}

	var lines []string
	if len(expired) > 0 {
		sort.Slice(expired, func(i, j int) bool { return expired[i].ExpiresAt < expired[j].ExpiresAt })
		lines = append(lines, fmt.Sprintf("## %d EXPIRED memories\n", len(expired)))
		for _, e := range expired {
			lines = append(lines, fmt.Sprintf("  [EXPIRED %s] %s", e.ExpiresAt, formatter.Compact(e, false)))
		}
		lines = append(lines, "")
	}
	if len(reviewDue) > 0 {
		sort.Slice(reviewDue, func(i, j int) bool { return reviewDue[i].ReviewAfter < reviewDue[j].ReviewAfter })
		lines = append(lines, fmt.Sprintf("## %d memories overdue for review\n", len(reviewDue)))
		for _, e := range reviewDue {
			lines = append(lines, fmt.Sprintf("  [REVIEW %s] %s", e.ReviewAfter, formatter.Compact(e, false)))
		}
	}
	return strings.Join(lines, "\n")
}
