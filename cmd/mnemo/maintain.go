package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mnemo-sh/mnemo/internal/config"
	"github.com/mnemo-sh/mnemo/internal/engine"
	"github.com/mnemo-sh/mnemo/internal/executor"
	"github.com/mnemo-sh/mnemo/internal/gitops"
	"github.com/mnemo-sh/mnemo/internal/planner"
	"github.com/mnemo-sh/mnemo/internal/rst"
	"github.com/mnemo-sh/mnemo/internal/watch"
	"github.com/mnemo-sh/mnemo/internal/workspace"
	"github.com/mnemo-sh/mnemo/pkg/types"
)

func cmdRebuild(args []string) int {
	fs, dir := newFlagSet("rebuild")
	ws, code := openWorkspace(fs, dir, args)
	if code != 0 {
		return code
	}

	ok, out := engine.Rebuild(ws)
	fmt.Println(out)
	if !ok {
		return 1
	}
	return 0
}

func cmdPlan(args []string) int {
	fs, dir := newFlagSet("plan")
	checks := fs.String("checks", "", "comma-separated check names (default: all)")
	format := fs.String("format", "human", "output: human or json")
	out := fs.String("out", "", "write the JSON plan to a file for later 'mnemo apply -plan'")

	ws, code := openWorkspace(fs, dir, args)
	if code != 0 {
		return code
	}

	names := rst.SplitList(*checks)
	for _, c := range names {
		if !planner.KnownCheck(c) {
			log.Printf("unknown check %q (known: %s)", c, strings.Join(planner.AllChecks, ", "))
			return 2
		}
	}

	actions, err := planner.RunPlan(ws, names, nil)
	if err != nil {
		return fail(err)
	}

	if *out != "" {
		data, err := types.MarshalPlan(actions)
		if err != nil {
			return fail(err)
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			return fail(err)
		}
		fmt.Printf("Wrote %d action(s) to %s\n", len(actions), *out)
	}

	text, err := planner.FormatPlan(actions, *format)
	if err != nil {
		return fail(err)
	}
	fmt.Println(text)
	return 0
}

func cmdApply(args []string) int {
	fs, dir := newFlagSet("apply")
	planFile := fs.String("plan", "", "JSON plan file from 'mnemo plan -out' (default: compute a fresh plan)")
	checks := fs.String("checks", "", "comma-separated checks for the fresh plan")
	autoCommit := fs.Bool("auto-commit", false, "git commit the changes after a successful run")
	noRebuild := fs.Bool("no-rebuild", false, "leave the snapshot index stale")
	noGit := fs.Bool("no-git", false, "skip git stash/commit entirely")
	dryRun := fs.Bool("dry-run", false, "validate and show the plan without applying anything")

	ws, code := openWorkspace(fs, dir, args)
	if code != 0 {
		return code
	}

	var actions []types.Action
	if *planFile != "" {
		data, err := os.ReadFile(*planFile)
		if err != nil {
			return fail(err)
		}
		actions, err = types.ActionsFromJSON(data)
		if err != nil {
			return fail(err)
		}
	} else {
		names := rst.SplitList(*checks)
		for _, c := range names {
			if !planner.KnownCheck(c) {
				log.Printf("unknown check %q (known: %s)", c, strings.Join(planner.AllChecks, ", "))
				return 2
			}
		}
		var err error
		actions, err = planner.RunPlan(ws, names, nil)
		if err != nil {
			return fail(err)
		}
	}

	if len(actions) == 0 {
		fmt.Println("No actions to apply — memory graph looks healthy.")
		return 0
	}

	if *dryRun {
		valid, skipped := executor.ValidateActions(actions)
		text, err := planner.FormatPlan(valid, "human")
		if err != nil {
			return fail(err)
		}
		fmt.Println(text)
		for _, o := range skipped {
			fmt.Printf("  - would skip %s: %s\n", o.Action.Target(), o.Error)
		}
		fmt.Printf("Dry run: %d action(s) would be applied, %d skipped.\n", len(valid), len(skipped))
		return 0
	}

	cfg := config.Load()
	git := gitops.New(ws.Root, cfg.Git.Disabled || *noGit)
	result := executor.New(ws, git, nil).ExecutePlan(actions, executor.Options{
		AutoCommit:  *autoCommit,
		SkipRebuild: *noRebuild,
	})

	printExecution(result)
	if !result.Success {
		return 1
	}
	return 0
}

func printExecution(r *types.ExecutionResult) {
	if r.Message != "" {
		fmt.Println(r.Message)
	}
	for _, o := range r.Applied {
		fmt.Println("  ✓ " + o.Message)
	}
	for _, o := range r.Failed {
		fmt.Println("  ✗ " + o.Error)
	}
	for _, o := range r.Skipped {
		fmt.Printf("  - skipped %s: %s\n", o.Action.Target(), o.Error)
	}
	if r.BuildOutput != "" {
		fmt.Println(r.BuildOutput)
	}
}

func cmdWatch(args []string) int {
	fs, dir := newFlagSet("watch")
	ws, code := openWorkspace(fs, dir, args)
	if code != 0 {
		return code
	}

	w := watch.New(ws, config.Load().Watch.Debounce, nil)
	w.OnRebuild = func(ok bool, out string) {
		fmt.Println(out)
	}
	if err := w.Start(); err != nil {
		return fail(err)
	}
	defer w.Stop()

	fmt.Printf("Watching %s — Ctrl-C to stop.\n", ws.Root)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	fmt.Println("\nStopped.")
	return 0
}

func cmdDoctor(args []string) int {
	fs, dir := newFlagSet("doctor")
	ws, code := openWorkspace(fs, dir, args)
	if code != 0 {
		return code
	}

	fmt.Printf("Workspace: %s\n", ws.Root)
	problems := 0

	// Directive files and entry counts.
	for _, typeCode := range types.AllTypes {
		primary := ws.FilePath(typeCode)
		if primary == "" {
			continue
		}
		files := rst.FindFiles(ws, typeCode)
		if len(files) == 0 {
			fmt.Printf("  MISSING  %s\n", ws.Rel(primary))
			problems++
			continue
		}
		total := 0
		for _, f := range files {
			total += rst.CountEntries(f)
		}
		marker := "ok"
		if last := files[len(files)-1]; rst.CountEntries(last) > ws.MaxEntriesPerFile {
			marker = "OVERSIZED"
			problems++
		}
		fmt.Printf("  %-9s %s: %d entries in %d file(s)\n", marker, typeCode, total, len(files))
	}

	// Snapshot index freshness.
	if !engine.IndexExists(ws) {
		fmt.Println("  MISSING  snapshot index (run 'mnemo rebuild')")
		problems++
	} else if indexStale(ws) {
		fmt.Println("  STALE    snapshot index is older than the directive files (run 'mnemo rebuild')")
		problems++
	} else if snap, err := engine.LoadSnapshot(ws); err != nil {
		fmt.Printf("  BROKEN   snapshot index: %v\n", err)
		problems++
	} else {
		fmt.Printf("  ok        snapshot index: %d memories\n", len(snap.Entities))
		problems += reportDanglingLinks(snap)
	}

	// Version control.
	if _, err := os.Stat(filepath.Join(ws.Root, ".git")); err != nil {
		fmt.Println("  note      not a git repository — 'mnemo apply' runs without rollback protection")
	} else {
		fmt.Println("  ok        git repository present")
	}

	if problems > 0 {
		fmt.Printf("%d problem(s) found.\n", problems)
		return 1
	}
	fmt.Println("Workspace looks healthy.")
	return 0
}

// indexStale reports whether any directive file is newer than the index.
func indexStale(ws *workspace.Workspace) bool {
	info, err := os.Stat(ws.IndexPath())
	if err != nil {
		return true
	}
	for _, f := range rst.AllFiles(ws) {
		if fi, err := os.Stat(f); err == nil && fi.ModTime().After(info.ModTime()) {
			return true
		}
	}
	return false
}

func reportDanglingLinks(snap *engine.Snapshot) int {
	problems := 0
	for _, e := range snap.Sorted() {
		for kind, targets := range e.Links {
			for _, target := range targets {
				if _, ok := snap.Entities[target]; !ok {
					fmt.Printf("  DANGLING %s %s → %s\n", e.ID, kind, target)
					problems++
				}
			}
		}
	}
	return problems
}
