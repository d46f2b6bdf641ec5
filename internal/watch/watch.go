// Package watch rebuilds the snapshot index whenever directive files change
// on disk. It backs the `mnemo watch` command, keeping the index fresh while
// a human edits memory files in an editor alongside a running MCP server.
package watch

import (
	"log"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mnemo-sh/mnemo/internal/engine"
	"github.com/mnemo-sh/mnemo/internal/workspace"
)

// Watcher observes the workspace's directive directories and triggers a
// rebuild after changes settle.
type Watcher struct {
	ws       *workspace.Workspace
	debounce time.Duration
	rebuild  func(*workspace.Workspace) (bool, string)

	// OnRebuild, when set, observes each rebuild outcome. Used by tests and
	// by the CLI to print reports.
	OnRebuild func(ok bool, output string)

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// New creates a watcher. rebuild may be nil, defaulting to engine.Rebuild.
func New(ws *workspace.Workspace, debounce time.Duration, rebuild func(*workspace.Workspace) (bool, string)) *Watcher {
	if rebuild == nil {
		rebuild = engine.Rebuild
	}
	return &Watcher{
		ws:       ws,
		debounce: debounce,
		rebuild:  rebuild,
		done:     make(chan struct{}),
	}
}

// Start begins watching every directory that holds directive files. Call
// Stop to clean up.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, dir := range w.directiveDirs() {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return err
		}
	}
	w.watcher = fsw

	go w.loop()
	log.Printf("watch: watching %s for directive changes", w.ws.Root)
	return nil
}

// Stop shuts down the watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
	<-w.done
}

// directiveDirs returns the distinct directories containing directive files.
// Continuation files land in the same directories as their primaries, so
// watching the directories covers files that do not exist yet.
func (w *Watcher) directiveDirs() []string {
	seen := make(map[string]bool)
	for code := range w.ws.TypeFiles {
		if path := w.ws.FilePath(code); path != "" {
			seen[filepath.Dir(path)] = true
		}
	}
	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

func (w *Watcher) loop() {
	defer close(w.done)

	// Debounce: editors fire several events per save, and a git checkout
	// touches every file. One rebuild after the burst settles is enough.
	var settled <-chan time.Time

	for {
		select {
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if isDirectiveEvent(evt) {
				settled = time.After(w.debounce)
			}

		case <-settled:
			settled = nil
			ok, out := w.rebuild(w.ws)
			if ok {
				log.Printf("watch: rebuilt index")
			} else {
				log.Printf("watch: rebuild failed: %s", firstLine(out))
			}
			if w.OnRebuild != nil {
				w.OnRebuild(ok, out)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watch: watcher error: %v", err)
		}
	}
}

// isDirectiveEvent reports whether the event is a content change to a
// directive file. Chmod-only events are ignored.
func isDirectiveEvent(evt fsnotify.Event) bool {
	if !strings.HasSuffix(evt.Name, ".rst") {
		return false
	}
	return evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
