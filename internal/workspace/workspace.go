// Package workspace locates, opens, and scaffolds mnemo memory workspaces.
//
// A workspace is a directory containing a mnemo.yaml marker file, a memory/
// subdirectory of directive files (one file group per memory type), and a
// _build/ directory holding the rebuilt snapshot index. Discovery never
// happens inside the core packages: a resolved *Workspace handle is passed
// explicitly into every operation.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mnemo-sh/mnemo/pkg/types"
)

// MarkerFile is the filename that identifies a workspace root.
const MarkerFile = "mnemo.yaml"

// ErrNotFound indicates that no workspace could be located.
var ErrNotFound = errors.New("no memory workspace found")

// DefaultTypeFiles maps each memory type code to its primary directive file,
// relative to the workspace root.
var DefaultTypeFiles = map[string]string{
	types.TypeObservation: "memory/observations.rst",
	types.TypeDecision:    "memory/decisions.rst",
	types.TypeFact:        "memory/facts.rst",
	types.TypePreference:  "memory/preferences.rst",
	types.TypeRisk:        "memory/risks.rst",
	types.TypeGoal:        "memory/goals.rst",
	types.TypeQuestion:    "memory/questions.rst",
}

// DefaultMaxEntriesPerFile is the entry count past which a directive file
// group grows a numbered continuation file.
const DefaultMaxEntriesPerFile = 50

// Workspace is a resolved handle on one memory workspace.
type Workspace struct {
	// Root is the absolute workspace directory.
	Root string

	// TypeFiles maps memory type codes to primary directive files, relative
	// to Root.
	TypeFiles map[string]string

	// MaxEntriesPerFile is the per-file entry limit before splitting.
	MaxEntriesPerFile int

	// TitleThreshold and TagOverlapThreshold override the planner's duplicate
	// detection thresholds when set (> 0).
	TitleThreshold      float64
	TagOverlapThreshold float64
}

// markerConfig is the YAML shape of mnemo.yaml. All fields are optional;
// an empty file is a valid marker.
type markerConfig struct {
	Types   map[string]string `yaml:"types,omitempty"`
	Planner struct {
		TitleThreshold      float64 `yaml:"title_threshold,omitempty"`
		TagOverlapThreshold float64 `yaml:"tag_overlap_threshold,omitempty"`
	} `yaml:"planner,omitempty"`
	MaxEntriesPerFile int `yaml:"max_entries_per_file,omitempty"`
}

// Find locates the workspace directory.
//
// Resolution order:
//  1. The explicit dir argument (errors if it is not a workspace).
//  2. The env value (typically MNEMO_DIR, resolved by the caller).
//  3. Walking up from the current directory looking for mnemo.yaml.
func Find(explicit, env string) (*Workspace, error) {
	if explicit != "" {
		abs, err := filepath.Abs(explicit)
		if err != nil {
			return nil, err
		}
		if !IsWorkspace(abs) {
			return nil, fmt.Errorf("not a memory workspace: %s (run 'mnemo init %s' to create one)", abs, abs)
		}
		return Open(abs)
	}

	if env != "" {
		abs, err := filepath.Abs(env)
		if err != nil {
			return nil, err
		}
		if !IsWorkspace(abs) {
			return nil, fmt.Errorf("MNEMO_DIR=%s is not a valid memory workspace", env)
		}
		return Open(abs)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	dir := cwd
	for {
		if IsWorkspace(dir) {
			return Open(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, fmt.Errorf("%w (run 'mnemo init <dir>' to create one, or set MNEMO_DIR)", ErrNotFound)
		}
		dir = parent
	}
}

// IsWorkspace reports whether dir contains a mnemo.yaml marker.
func IsWorkspace(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, MarkerFile))
	return err == nil && !info.IsDir()
}

// Open loads the workspace at root, applying mnemo.yaml overrides on top of
// the built-in defaults.
func Open(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	ws := &Workspace{
		Root:              abs,
		TypeFiles:         make(map[string]string, len(DefaultTypeFiles)),
		MaxEntriesPerFile: DefaultMaxEntriesPerFile,
	}
	for code, rel := range DefaultTypeFiles {
		ws.TypeFiles[code] = rel
	}

	data, err := os.ReadFile(filepath.Join(abs, MarkerFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("not a memory workspace: %s", abs)
		}
		return nil, err
	}

	var cfg markerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", MarkerFile, err)
	}
	for code, rel := range cfg.Types {
		ws.TypeFiles[code] = rel
	}
	if cfg.MaxEntriesPerFile > 0 {
		ws.MaxEntriesPerFile = cfg.MaxEntriesPerFile
	}
	ws.TitleThreshold = cfg.Planner.TitleThreshold
	ws.TagOverlapThreshold = cfg.Planner.TagOverlapThreshold

	return ws, nil
}

// FilePath returns the absolute primary directive file for a memory type,
// or an empty string for an unknown type.
func (w *Workspace) FilePath(typeCode string) string {
	rel, ok := w.TypeFiles[typeCode]
	if !ok {
		return ""
	}
	return filepath.Join(w.Root, filepath.FromSlash(rel))
}

// BuildDir returns the directory holding rebuild artifacts.
func (w *Workspace) BuildDir() string {
	return filepath.Join(w.Root, "_build")
}

// IndexPath returns the snapshot index database path.
func (w *Workspace) IndexPath() string {
	return filepath.Join(w.BuildDir(), "index.db")
}

// Rel returns path relative to the workspace root when possible, for
// display; it falls back to the input.
func (w *Workspace) Rel(path string) string {
	rel, err := filepath.Rel(w.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

// defaultMarker is written by Init. Kept minimal: every key is optional and
// the defaults are spelled out as comments for discoverability.
const defaultMarker = `# mnemo workspace configuration
#
# types:                      # override directive file layout per type code
#   fact: memory/facts.rst
# planner:
#   title_threshold: 0.8      # duplicate detection: minimum title similarity
#   tag_overlap_threshold: 0.5
# max_entries_per_file: 50
`

// Init scaffolds a new workspace at dir: mnemo.yaml, the memory/ directive
// files with section headers, and a .gitignore for build artifacts. Existing
// files are left untouched so Init is safe to re-run.
func Init(dir string) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}

	marker := filepath.Join(abs, MarkerFile)
	if _, err := os.Stat(marker); os.IsNotExist(err) {
		if err := os.WriteFile(marker, []byte(defaultMarker), 0o644); err != nil {
			return nil, err
		}
	}

	gitignore := filepath.Join(abs, ".gitignore")
	if _, err := os.Stat(gitignore); os.IsNotExist(err) {
		if err := os.WriteFile(gitignore, []byte("_build/\n"), 0o644); err != nil {
			return nil, err
		}
	}

	ws, err := Open(abs)
	if err != nil {
		return nil, err
	}

	for _, code := range types.AllTypes {
		path := ws.FilePath(code)
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(FileHeader(path)), 0o644); err != nil {
			return nil, err
		}
	}

	return ws, nil
}

// FileHeader renders the section title block for a directive file, derived
// from the file's base name ("facts.rst" -> "Facts").
func FileHeader(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	title := strings.ToUpper(name[:1]) + name[1:]
	bar := strings.Repeat("=", len(title))
	return fmt.Sprintf("%s\n%s\n%s\n\n", bar, title, bar)
}
