package rst

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mnemo-sh/mnemo/internal/workspace"
)

// Edit primitives mutate directive files in place. They return
// (ok, message) rather than errors: a missing entity is an outcome to
// report, and the message is what CLI and executor surface verbatim.
//
// Field lookup is positional: the field line is searched within a small
// window around the ":id:" line, which is where a well-formed directive
// keeps its metadata block.

const (
	fieldSearchBack    = 2
	fieldSearchForward = 20
)

var metadataLine = regexp.MustCompile(`^\s+:\w`)

// findEntity locates the directive file and the ":id:" line index for an
// entity. Returns ("", nil, -1) when the entity is in no file.
func findEntity(ws *workspace.Workspace, id string) (path string, lines []string, idIdx int) {
	needle := ":id: " + id
	for _, f := range AllFiles(ws) {
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		content := string(data)
		if !strings.Contains(content, needle) {
			continue
		}
		ls := strings.Split(content, "\n")
		for i, line := range ls {
			if strings.TrimSpace(line) == needle {
				return f, ls, i
			}
		}
	}
	return "", nil, -1
}

func writeLines(path string, lines []string) error {
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644)
}

// fieldWindow yields the [lo, hi) line range to scan for a field near idIdx.
func fieldWindow(idIdx, total int) (int, int) {
	lo := idIdx - fieldSearchBack
	if lo < 0 {
		lo = 0
	}
	hi := idIdx + fieldSearchForward
	if hi > total {
		hi = total
	}
	return lo, hi
}

// insertAfterMetadata returns the index at which a new field line goes: just
// past the last contiguous ":key:" line following the :id: line.
func insertAfterMetadata(lines []string, idIdx int) int {
	i := idIdx + 1
	for i < len(lines) && metadataLine.MatchString(lines[i]) {
		i++
	}
	return i
}

// SetField updates one metadata field on an entity, inserting the field into
// the directive's metadata block when it is not already present.
func SetField(ws *workspace.Workspace, id, field, value string) (bool, string) {
	path, lines, idIdx := findEntity(ws, id)
	if path == "" {
		return false, fmt.Sprintf("Memory '%s' not found in any directive file.", id)
	}

	marker := ":" + field + ":"
	lo, hi := fieldWindow(idIdx, len(lines))
	for j := lo; j < hi; j++ {
		if !strings.Contains(lines[j], marker) {
			continue
		}
		indent := lines[j][:strings.Index(lines[j], marker)]
		lines[j] = indent + marker + " " + value
		if err := writeLines(path, lines); err != nil {
			return false, fmt.Sprintf("Failed writing %s: %v", path, err)
		}
		return true, fmt.Sprintf("Updated %s on %s in %s", field, id, filepath.Base(path))
	}

	insertIdx := insertAfterMetadata(lines, idIdx)
	lines = append(lines[:insertIdx], append([]string{"   " + marker + " " + value}, lines[insertIdx:]...)...)
	if err := writeLines(path, lines); err != nil {
		return false, fmt.Sprintf("Failed writing %s: %v", path, err)
	}
	return true, fmt.Sprintf("Added %s=%s to %s in %s", field, value, id, filepath.Base(path))
}

// AddTags merges new tags into an entity's :tags: field, preserving existing
// order and dropping duplicates. A missing :tags: field is created.
func AddTags(ws *workspace.Workspace, id string, newTags []string) (bool, string) {
	path, lines, idIdx := findEntity(ws, id)
	if path == "" {
		return false, fmt.Sprintf("Memory '%s' not found in any directive file.", id)
	}

	lo, hi := fieldWindow(idIdx, len(lines))
	for j := lo; j < hi; j++ {
		if !strings.Contains(lines[j], ":tags:") {
			continue
		}
		existing := SplitList(strings.SplitN(lines[j], ":tags:", 2)[1])
		merged := existing
		for _, t := range newTags {
			if !contains(merged, t) {
				merged = append(merged, t)
			}
		}
		indent := lines[j][:strings.Index(lines[j], ":tags:")]
		lines[j] = indent + ":tags: " + strings.Join(merged, ", ")
		if err := writeLines(path, lines); err != nil {
			return false, fmt.Sprintf("Failed writing %s: %v", path, err)
		}
		return true, fmt.Sprintf("Tags updated on %s: %s", id, strings.Join(merged, ", "))
	}

	insertIdx := insertAfterMetadata(lines, idIdx)
	lines = append(lines[:insertIdx], append([]string{"   :tags: " + strings.Join(newTags, ", ")}, lines[insertIdx:]...)...)
	if err := writeLines(path, lines); err != nil {
		return false, fmt.Sprintf("Failed writing %s: %v", path, err)
	}
	return true, fmt.Sprintf("Added tags to %s: %s", id, strings.Join(newTags, ", "))
}

// RemoveTags deletes the named tags from an entity's :tags: field. The field
// line itself is dropped when no tags remain. Tags not present are ignored.
func RemoveTags(ws *workspace.Workspace, id string, drop []string) (bool, string) {
	path, lines, idIdx := findEntity(ws, id)
	if path == "" {
		return false, fmt.Sprintf("Memory '%s' not found in any directive file.", id)
	}

	lo, hi := fieldWindow(idIdx, len(lines))
	for j := lo; j < hi; j++ {
		if !strings.Contains(lines[j], ":tags:") {
			continue
		}
		existing := SplitList(strings.SplitN(lines[j], ":tags:", 2)[1])
		var remaining, removed []string
		for _, t := range existing {
			if contains(drop, t) {
				removed = append(removed, t)
			} else {
				remaining = append(remaining, t)
			}
		}
		if len(remaining) > 0 {
			indent := lines[j][:strings.Index(lines[j], ":tags:")]
			lines[j] = indent + ":tags: " + strings.Join(remaining, ", ")
		} else {
			lines = append(lines[:j], lines[j+1:]...)
		}
		if err := writeLines(path, lines); err != nil {
			return false, fmt.Sprintf("Failed writing %s: %v", path, err)
		}
		return true, fmt.Sprintf("Removed tags from %s: %s", id, strings.Join(removed, ", "))
	}
	return false, fmt.Sprintf("No :tags: field on %s", id)
}

// Deprecate flips an entity's status to deprecated. When supersededBy is set
// the message reminds the caller to record the supersedes link on the
// replacement.
func Deprecate(ws *workspace.Workspace, id, supersededBy string) (bool, string) {
	ok, msg := SetField(ws, id, "status", "deprecated")
	if ok && supersededBy != "" {
		msg += fmt.Sprintf("\nSuperseded by: %s", supersededBy)
		msg += fmt.Sprintf("\nRemember to add ':supersedes: %s' to %s", id, supersededBy)
	}
	return ok, msg
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
