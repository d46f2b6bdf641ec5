package main

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/mnemo-sh/mnemo/internal/engine"
	"github.com/mnemo-sh/mnemo/internal/formatter"
	"github.com/mnemo-sh/mnemo/internal/query"
	"github.com/mnemo-sh/mnemo/internal/rst"
	"github.com/mnemo-sh/mnemo/pkg/types"
)

func cmdRecall(args []string) int {
	fs, dir := newFlagSet("recall")
	tag := fs.String("tag", "", "comma-separated tag filters (AND)")
	typeCode := fs.String("type", "", "memory type filter")
	format := fs.String("format", query.FormatContext, "output: brief, compact, context, json")
	limit := fs.Int("limit", 0, "maximum results (0 = unlimited)")
	body := fs.Bool("body", false, "include body text")
	sortKey := fs.String("sort", "", "order: newest, oldest, confidence, updated")
	expand := fs.Int("expand", 1, "link-graph hops out from matches")
	stale := fs.Bool("stale", false, "only expired or review-overdue memories")

	ws, code := openWorkspace(fs, dir, args)
	if code != 0 {
		return code
	}

	snap, err := engine.LoadSnapshot(ws)
	if err != nil {
		return fail(err)
	}

	results := query.Recall(snap, query.RecallOptions{
		Query:     strings.Join(fs.Args(), " "),
		Tags:      rst.SplitList(*tag),
		Type:      *typeCode,
		StaleOnly: *stale,
		Expand:    *expand,
	})
	out, err := query.FormatSet(results, *format, *limit, *body, *sortKey)
	if err != nil {
		return fail(err)
	}
	fmt.Println(out)
	return 0
}

func cmdGet(args []string) int {
	fs, dir := newFlagSet("get")
	ws, code := openWorkspace(fs, dir, args)
	if code != 0 {
		return code
	}
	if fs.NArg() != 1 {
		log.Print("usage: mnemo get <id>")
		return 2
	}

	snap, err := engine.LoadSnapshot(ws)
	if err != nil {
		return fail(err)
	}
	id := snap.ResolveID(fs.Arg(0))
	if id == "" {
		log.Printf("memory %q not found (try 'mnemo recall')", fs.Arg(0))
		return 1
	}
	fmt.Println(formatter.Full(snap.Entities[id]))
	return 0
}

func cmdRelated(args []string) int {
	fs, dir := newFlagSet("related")
	hops := fs.Int("hops", 1, "link-graph hops to walk")
	body := fs.Bool("body", false, "include body text")

	ws, code := openWorkspace(fs, dir, args)
	if code != 0 {
		return code
	}
	if fs.NArg() != 1 {
		log.Print("usage: mnemo related <id> [-hops N]")
		return 2
	}

	snap, err := engine.LoadSnapshot(ws)
	if err != nil {
		return fail(err)
	}
	id := snap.ResolveID(fs.Arg(0))
	if id == "" {
		log.Printf("memory %q not found", fs.Arg(0))
		return 1
	}

	related := snap.ExpandGraph([]string{id}, *hops)
	delete(related, id)
	for rid, e := range related {
		if e.IsDeprecated() {
			delete(related, rid)
		}
	}
	if len(related) == 0 {
		fmt.Printf("%s has no linked memories within %d hop(s).\n", id, *hops)
		return 0
	}

	fmt.Printf("Linked to %s within %d hop(s):\n", id, *hops)
	for _, e := range query.SortEntities(related, "") {
		fmt.Println(formatter.Compact(e, *body))
	}
	return 0
}

func cmdList(args []string) int {
	fs, dir := newFlagSet("list")
	typeCode := fs.String("type", "", "memory type filter")
	status := fs.String("status", "", "status filter (default: everything but deprecated)")

	ws, code := openWorkspace(fs, dir, args)
	if code != 0 {
		return code
	}

	snap, err := engine.LoadSnapshot(ws)
	if err != nil {
		return fail(err)
	}

	var shown []*types.Entity
	for _, e := range snap.Sorted() {
		if *typeCode != "" && e.Type != *typeCode {
			continue
		}
		if *status != "" {
			if e.Status != *status {
				continue
			}
		} else if e.IsDeprecated() {
			continue
		}
		shown = append(shown, e)
	}
	sort.Slice(shown, func(i, j int) bool {
		if shown[i].Type != shown[j].Type {
			return shown[i].Type < shown[j].Type
		}
		return shown[i].ID < shown[j].ID
	})

	for _, e := range shown {
		fmt.Println(formatter.Brief(e))
	}
	fmt.Printf("%d memories\n", len(shown))
	return 0
}

func cmdTags(args []string) int {
	fs, dir := newFlagSet("tags")
	prefix := fs.String("prefix", "", "only show one namespace")

	ws, code := openWorkspace(fs, dir, args)
	if code != 0 {
		return code
	}
	snap, err := engine.LoadSnapshot(ws)
	if err != nil {
		return fail(err)
	}
	fmt.Println(query.TagSummary(snap, *prefix))
	return 0
}

func cmdStale(args []string) int {
	fs, dir := newFlagSet("stale")
	ws, code := openWorkspace(fs, dir, args)
	if code != 0 {
		return code
	}
	snap, err := engine.LoadSnapshot(ws)
	if err != nil {
		return fail(err)
	}
	fmt.Println(query.StaleReport(snap, types.Today()))
	return 0
}
