package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mnemo-sh/mnemo/internal/rst"
	"github.com/mnemo-sh/mnemo/internal/workspace"
	"github.com/mnemo-sh/mnemo/pkg/types"
)

// Rebuild parses every directive file in the workspace and replaces the
// snapshot index with the result. It returns (success, report) and never
// returns an error value: a failed rebuild is an outcome the planner and
// executor need to act on, not an exception.
func Rebuild(ws *workspace.Workspace) (bool, string) {
	db, err := openIndex(ws.IndexPath())
	if err != nil {
		return false, fmt.Sprintf("Rebuild failed: %v", err)
	}
	defer db.Close()

	var entities []*types.Entity
	var warnings []string
	seen := make(map[string]string) // id -> source file

	for _, code := range sortedTypeCodes(ws) {
		for _, path := range rst.FindFiles(ws, code) {
			directives, err := rst.ParseFile(path)
			if err != nil {
				return false, fmt.Sprintf("Rebuild failed: %v", err)
			}
			rel := ws.Rel(path)
			for _, d := range directives {
				e := d.ToEntity(rel)
				if e == nil {
					warnings = append(warnings, fmt.Sprintf("%s:%d: directive %q has no :id:, skipped", rel, d.Line, d.Title))
					continue
				}
				if prev, dup := seen[e.ID]; dup {
					warnings = append(warnings, fmt.Sprintf("%s:%d: duplicate id %s (first defined in %s), skipped", rel, d.Line, e.ID, prev))
					continue
				}
				seen[e.ID] = rel
				entities = append(entities, e)
			}
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return false, fmt.Sprintf("Rebuild failed: %v", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"entity_links", "entity_tags", "entities"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return false, fmt.Sprintf("Rebuild failed: %v", err)
		}
	}

	for _, e := range entities {
		_, err := tx.Exec(`
			INSERT INTO entities (id, type, status, title, body, confidence, scope, source, owner,
				created_at, updated_at, review_after, expires_at, source_file)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Type, e.Status, e.Title, e.Body, e.Confidence, e.Scope, e.Source, e.Owner,
			string(e.CreatedAt), string(e.UpdatedAt), string(e.ReviewAfter), string(e.ExpiresAt), e.SourceFile)
		if err != nil {
			return false, fmt.Sprintf("Rebuild failed: insert %s: %v", e.ID, err)
		}
		for i, tag := range e.Tags {
			if _, err := tx.Exec("INSERT INTO entity_tags (entity_id, position, tag) VALUES (?, ?, ?)", e.ID, i, tag); err != nil {
				return false, fmt.Sprintf("Rebuild failed: insert tag for %s: %v", e.ID, err)
			}
		}
		for _, kind := range types.LinkKinds {
			for i, target := range e.Links[kind] {
				if _, err := tx.Exec("INSERT INTO entity_links (entity_id, kind, position, target) VALUES (?, ?, ?, ?)", e.ID, kind, i, target); err != nil {
					return false, fmt.Sprintf("Rebuild failed: insert link for %s: %v", e.ID, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Sprintf("Rebuild failed: %v", err)
	}

	return true, rebuildReport(ws, entities, warnings)
}

func rebuildReport(ws *workspace.Workspace, entities []*types.Entity, warnings []string) string {
	byType := make(map[string]int)
	byStatus := make(map[string]int)
	for _, e := range entities {
		byType[e.Type]++
		byStatus[e.Status]++
	}

	lines := []string{
		fmt.Sprintf("Index updated at %s", ws.Rel(ws.IndexPath())),
		fmt.Sprintf("Total: %d memories", len(entities)),
		fmt.Sprintf("  Types:    %s", countSummary(byType)),
		fmt.Sprintf("  Statuses: %s", countSummary(byStatus)),
	}
	for _, w := range warnings {
		lines = append(lines, "  WARN "+w)
	}
	return strings.Join(lines, "\n")
}

func countSummary(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, ", ")
}

// sortedTypeCodes returns the workspace's type codes with the canonical types
// first, so index order and report order are stable across runs.
func sortedTypeCodes(ws *workspace.Workspace) []string {
	var codes []string
	known := make(map[string]bool)
	for _, code := range types.AllTypes {
		if _, ok := ws.TypeFiles[code]; ok {
			codes = append(codes, code)
			known[code] = true
		}
	}
	var extra []string
	for code := range ws.TypeFiles {
		if !known[code] {
			extra = append(extra, code)
		}
	}
	sort.Strings(extra)
	return append(codes, extra...)
}
