package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mnemo-sh/mnemo/internal/workspace"
	"github.com/mnemo-sh/mnemo/pkg/types"
)

// ErrNoIndex indicates the snapshot index has not been built yet.
var ErrNoIndex = errors.New("snapshot index not found")

// Snapshot is the in-memory view of one built index: every entity by ID,
// with derived back-links populated. A Snapshot is read-only; mutations go
// through the directive files followed by a rebuild.
type Snapshot struct {
	Entities map[string]*types.Entity
}

// LoadSnapshot reads the snapshot index into memory. A missing index is an
// error telling the caller to rebuild first.
func LoadSnapshot(ws *workspace.Workspace) (*Snapshot, error) {
	if !IndexExists(ws) {
		return nil, fmt.Errorf("%w at %s (run 'mnemo rebuild')", ErrNoIndex, ws.Rel(ws.IndexPath()))
	}

	db, err := openIndex(ws.IndexPath())
	if err != nil {
		return nil, err
	}
	defer db.Close()

	snap := &Snapshot{Entities: make(map[string]*types.Entity)}

	rows, err := db.Query(`
		SELECT id, type, status, title, body, confidence, scope, source, owner,
			created_at, updated_at, review_after, expires_at, source_file
		FROM entities`)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e types.Entity
		var created, updated, review, expires string
		if err := rows.Scan(&e.ID, &e.Type, &e.Status, &e.Title, &e.Body, &e.Confidence,
			&e.Scope, &e.Source, &e.Owner, &created, &updated, &review, &expires, &e.SourceFile); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e.CreatedAt = types.Date(created)
		e.UpdatedAt = types.Date(updated)
		e.ReviewAfter = types.Date(review)
		e.ExpiresAt = types.Date(expires)
		snap.Entities[e.ID] = &e
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tagRows, err := db.Query("SELECT entity_id, tag FROM entity_tags ORDER BY entity_id, position")
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var id, tag string
		if err := tagRows.Scan(&id, &tag); err != nil {
			return nil, err
		}
		if e, ok := snap.Entities[id]; ok {
			e.Tags = append(e.Tags, tag)
		}
	}
	if err := tagRows.Err(); err != nil {
		return nil, err
	}

	linkRows, err := db.Query("SELECT entity_id, kind, target FROM entity_links ORDER BY entity_id, kind, position")
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer linkRows.Close()
	for linkRows.Next() {
		var id, kind, target string
		if err := linkRows.Scan(&id, &kind, &target); err != nil {
			return nil, err
		}
		if e, ok := snap.Entities[id]; ok {
			if e.Links == nil {
				e.Links = make(map[string][]string)
			}
			e.Links[kind] = append(e.Links[kind], target)
		}
	}
	if err := linkRows.Err(); err != nil {
		return nil, err
	}

	snap.deriveBackLinks()
	return snap, nil
}

// deriveBackLinks populates BackLinks from the forward link lists. Dangling
// targets are skipped; they have no entity to hang a back-link on.
func (s *Snapshot) deriveBackLinks() {
	for _, src := range s.Sorted() {
		for kind, targets := range src.Links {
			for _, tid := range targets {
				target, ok := s.Entities[tid]
				if !ok {
					continue
				}
				if target.BackLinks == nil {
					target.BackLinks = make(map[string][]string)
				}
				target.BackLinks[kind] = append(target.BackLinks[kind], src.ID)
			}
		}
	}
}

// Sorted returns all entities ordered by ID. Detectors iterate this so pair
// scans and reports are deterministic.
func (s *Snapshot) Sorted() []*types.Entity {
	out := make([]*types.Entity, 0, len(s.Entities))
	for _, e := range s.Entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Active returns all non-deprecated entities ordered by ID.
func (s *Snapshot) Active() []*types.Entity {
	var out []*types.Entity
	for _, e := range s.Sorted() {
		if !e.IsDeprecated() {
			out = append(out, e)
		}
	}
	return out
}

// ResolveID resolves an entity ID with case-insensitive fallback. Returns ""
// when nothing matches.
func (s *Snapshot) ResolveID(raw string) string {
	if _, ok := s.Entities[raw]; ok {
		return raw
	}
	lower := strings.ToLower(raw)
	var ids []string
	for id := range s.Entities {
		if strings.ToLower(id) == lower {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return ""
	}
	sort.Strings(ids)
	return ids[0]
}

// TextMatch reports whether an entity matches a free-text query. Words are
// OR-combined: any one of them appearing in the entity's searchable text is
// a match.
func TextMatch(e *types.Entity, query string) bool {
	searchable := strings.ToLower(strings.Join([]string{
		e.ID, e.Title, e.Body, strings.Join(e.Tags, " "), e.Scope, e.Source,
	}, " "))
	for _, word := range strings.Fields(strings.ToLower(query)) {
		if strings.Contains(searchable, word) {
			return true
		}
	}
	return false
}

// TagMatch reports whether an entity carries every one of the given tags.
func TagMatch(e *types.Entity, tags []string) bool {
	for _, t := range tags {
		if !e.HasTag(t) {
			return false
		}
	}
	return true
}

// ExpandGraph walks the link graph from the seed IDs up to the given number
// of hops, following every link kind in both directions. The seeds are
// included in the result; dangling targets are silently skipped.
func (s *Snapshot) ExpandGraph(seeds []string, hops int) map[string]*types.Entity {
	collected := make(map[string]bool, len(seeds))
	frontier := make(map[string]bool, len(seeds))
	for _, id := range seeds {
		collected[id] = true
		frontier[id] = true
	}

	for h := 0; h < hops; h++ {
		next := make(map[string]bool)
		for id := range frontier {
			e, ok := s.Entities[id]
			if !ok {
				continue
			}
			for _, kind := range types.LinkKinds {
				for _, target := range e.Links[kind] {
					if !collected[target] {
						next[target] = true
					}
				}
				for _, source := range e.BackLinks[kind] {
					if !collected[source] {
						next[source] = true
					}
				}
			}
		}
		for id := range next {
			collected[id] = true
		}
		frontier = next
	}

	out := make(map[string]*types.Entity)
	for id := range collected {
		if e, ok := s.Entities[id]; ok {
			out[id] = e
		}
	}
	return out
}
