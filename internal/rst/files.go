package rst

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mnemo-sh/mnemo/internal/workspace"
)

var entryMarker = regexp.MustCompile(`(?m)^\.\. \w+::`)

// CountEntries counts directive blocks in a file. Missing files count zero.
func CountEntries(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	return len(entryMarker.FindAllIndex(data, -1))
}

// FindFiles returns every directive file for a memory type in order: the
// primary file first, then numbered continuation files (facts_002.rst,
// facts_003.rst, ...) sorted by name. Files that do not exist are omitted.
func FindFiles(ws *workspace.Workspace, typeCode string) []string {
	base := ws.FilePath(typeCode)
	if base == "" {
		return nil
	}
	dir := filepath.Dir(base)
	if _, err := os.Stat(dir); err != nil {
		return nil
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(filepath.Base(base), ext)

	var files []string
	if _, err := os.Stat(base); err == nil {
		files = append(files, base)
	}
	splits, _ := filepath.Glob(filepath.Join(dir, stem+"_[0-9][0-9][0-9]"+ext))
	sort.Strings(splits)
	return append(files, splits...)
}

// AllFiles returns every directive file in the workspace across all types.
func AllFiles(ws *workspace.Workspace) []string {
	var files []string
	for code := range ws.TypeFiles {
		files = append(files, FindFiles(ws, code)...)
	}
	sort.Strings(files)
	return files
}

// createSplitFile creates the next numbered continuation file for a type and
// returns its path.
func createSplitFile(ws *workspace.Workspace, typeCode string) (string, error) {
	base := ws.FilePath(typeCode)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(filepath.Base(base), ext)

	next := len(FindFiles(ws, typeCode)) + 1
	path := filepath.Join(filepath.Dir(base), fmt.Sprintf("%s_%03d%s", stem, next, ext))

	title := fmt.Sprintf("%s (Part %d)", strings.ToUpper(stem[:1])+stem[1:], next)
	bar := strings.Repeat("=", len(title))
	header := fmt.Sprintf("%s\n%s\n%s\n\n", bar, title, bar)
	if err := os.WriteFile(path, []byte(header), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Append writes a rendered directive to the newest file of its type group,
// creating the primary file or a numbered continuation file as needed. A
// continuation file is started once the newest file holds MaxEntriesPerFile
// entries. Returns the file written to.
func Append(ws *workspace.Workspace, typeCode, content string) (string, error) {
	base := ws.FilePath(typeCode)
	if base == "" {
		return "", fmt.Errorf("unknown memory type: %s", typeCode)
	}
	if _, err := os.Stat(base); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(base, []byte(workspace.FileHeader(base)), 0o644); err != nil {
			return "", err
		}
	}

	files := FindFiles(ws, typeCode)
	target := base
	if len(files) > 0 {
		target = files[len(files)-1]
	}
	if CountEntries(target) >= ws.MaxEntriesPerFile {
		split, err := createSplitFile(ws, typeCode)
		if err != nil {
			return "", fmt.Errorf("create split file: %w", err)
		}
		target = split
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return "", err
	}
	existing := string(data)
	if !strings.HasSuffix(existing, "\n\n") {
		existing = strings.TrimRight(existing, "\n") + "\n\n"
	}
	if err := os.WriteFile(target, []byte(existing+content), 0o644); err != nil {
		return "", err
	}
	return target, nil
}
