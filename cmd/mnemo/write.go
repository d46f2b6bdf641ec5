package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mnemo-sh/mnemo/internal/engine"
	"github.com/mnemo-sh/mnemo/internal/rst"
	"github.com/mnemo-sh/mnemo/internal/workspace"
	"github.com/mnemo-sh/mnemo/pkg/types"
)

func cmdInit(args []string) int {
	fs, _ := newFlagSet("init")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}

	ws, err := workspace.Init(dir)
	if err != nil {
		return fail(err)
	}
	ok, out := engine.Rebuild(ws)
	if !ok {
		log.Print(out)
		return 1
	}
	fmt.Printf("Initialized memory workspace at %s\n%s\n", ws.Root, out)
	return 0
}

func cmdAdd(args []string) int {
	fs, dir := newFlagSet("add")
	typeCode := fs.String("type", "", "memory type: mem, dec, fact, pref, risk, goal, q (required)")
	title := fs.String("title", "", "one-line summary (required)")
	tags := fs.String("tags", "", "comma-separated tags")
	body := fs.String("body", "", "longer description")
	confidence := fs.String("confidence", "", "low, medium (default), high")
	source := fs.String("source", "", "provenance reference")
	scope := fs.String("scope", "", "where this applies (default global)")
	owner := fs.String("owner", "", "responsible person or agent")
	relates := fs.String("relates", "", "comma-separated related IDs")
	supersedes := fs.String("supersedes", "", "comma-separated IDs this replaces")
	id := fs.String("id", "", "explicit ID override")
	noRebuild := fs.Bool("no-rebuild", false, "skip the index rebuild")

	ws, code := openWorkspace(fs, dir, args)
	if code != 0 {
		return code
	}
	if *typeCode == "" || *title == "" {
		log.Print("add: -type and -title are required")
		return 2
	}
	if ws.FilePath(*typeCode) == "" {
		log.Printf("add: unknown memory type %q (expected one of %s)", *typeCode, strings.Join(types.AllTypes, ", "))
		return 2
	}

	newID := *id
	if newID == "" {
		newID = rst.GenerateID(*typeCode, *title)
	}
	if snap, err := engine.LoadSnapshot(ws); err == nil {
		newID = rst.UniqueID(newID, func(candidate string) bool {
			_, taken := snap.Entities[candidate]
			return taken
		})
	}

	content := rst.Generate(rst.Fields{
		Type:       *typeCode,
		Title:      *title,
		ID:         newID,
		Tags:       rst.SplitList(*tags),
		Source:     *source,
		Confidence: *confidence,
		Scope:      *scope,
		Owner:      *owner,
		Body:       *body,
		Relates:    rst.SplitList(*relates),
		Supersedes: rst.SplitList(*supersedes),
	})
	path, err := rst.Append(ws, *typeCode, content)
	if err != nil {
		return fail(err)
	}
	fmt.Printf("Added %s → %s\n", newID, ws.Rel(path))

	if !*noRebuild {
		ok, out := engine.Rebuild(ws)
		fmt.Println(out)
		if !ok {
			return 1
		}
	}
	return 0
}

func cmdUpdate(args []string) int {
	fs, dir := newFlagSet("update")
	id := fs.String("id", "", "memory ID (required)")
	status := fs.String("status", "", "new status")
	confidence := fs.String("confidence", "", "new confidence")
	scope := fs.String("scope", "", "new scope")
	reviewAfter := fs.String("review-after", "", "new review date (YYYY-MM-DD)")
	source := fs.String("source", "", "new source")
	addTags := fs.String("add-tags", "", "comma-separated tags to add")
	removeTags := fs.String("remove-tags", "", "comma-separated tags to remove")

	ws, code := openWorkspace(fs, dir, args)
	if code != 0 {
		return code
	}
	if *id == "" {
		log.Print("update: -id is required")
		return 2
	}

	fields := []struct{ name, value string }{
		{"status", *status},
		{"confidence", *confidence},
		{"scope", *scope},
		{"review_after", *reviewAfter},
		{"source", *source},
	}

	changed := false
	failed := false
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		changed = true
		ok, msg := rst.SetField(ws, *id, f.name, f.value)
		fmt.Println(msg)
		if !ok {
			failed = true
		}
	}
	if add := rst.SplitList(*addTags); len(add) > 0 {
		changed = true
		ok, msg := rst.AddTags(ws, *id, add)
		fmt.Println(msg)
		if !ok {
			failed = true
		}
	}
	if remove := rst.SplitList(*removeTags); len(remove) > 0 {
		changed = true
		ok, msg := rst.RemoveTags(ws, *id, remove)
		fmt.Println(msg)
		if !ok {
			failed = true
		}
	}

	if !changed {
		log.Print("update: no changes specified")
		return 2
	}
	if failed {
		return 1
	}
	fmt.Println("Run 'mnemo rebuild' to update the index.")
	return 0
}

func cmdDeprecate(args []string) int {
	fs, dir := newFlagSet("deprecate")
	by := fs.String("by", "", "ID of the replacing memory")

	ws, code := openWorkspace(fs, dir, args)
	if code != 0 {
		return code
	}
	if fs.NArg() != 1 {
		log.Print("usage: mnemo deprecate <id> [-by <id>]")
		return 2
	}

	ok, msg := rst.Deprecate(ws, fs.Arg(0), *by)
	fmt.Println(msg)
	if !ok {
		return 1
	}
	fmt.Println("Run 'mnemo rebuild' to update the index.")
	return 0
}

func cmdReview(args []string) int {
	fs, dir := newFlagSet("review")
	days := fs.Int("days", 30, "days until the next review")

	ws, code := openWorkspace(fs, dir, args)
	if code != 0 {
		return code
	}
	if fs.NArg() != 1 {
		log.Print("usage: mnemo review <id> [-days N]")
		return 2
	}

	next := time.Now().AddDate(0, 0, *days).Format("2006-01-02")
	ok, msg := rst.SetField(ws, fs.Arg(0), "review_after", next)
	fmt.Println(msg)
	if !ok {
		return 1
	}
	fmt.Printf("Next review: %s\n", next)
	return 0
}
