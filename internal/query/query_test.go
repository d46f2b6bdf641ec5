package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-sh/mnemo/internal/engine"
	"github.com/mnemo-sh/mnemo/pkg/types"
)

const today = types.Date("2026-06-15")

func snapOf(entities ...*types.Entity) *engine.Snapshot {
	s := &engine.Snapshot{Entities: make(map[string]*types.Entity)}
	for _, e := range entities {
		if e.Status == "" {
			e.Status = types.StatusActive
		}
		s.Entities[e.ID] = e
	}
	return s
}

func fixture() *engine.Snapshot {
	snap := snapOf(
		&types.Entity{ID: "FACT_gateway", Type: types.TypeFact, Title: "Gateway timeout",
			Tags: []string{"topic:gateway", "repo:infra"}, Confidence: types.ConfidenceHigh, CreatedAt: "2026-01-01"},
		&types.Entity{ID: "DEC_proxy", Type: types.TypeDecision, Title: "Use the proxy",
			Tags: []string{"topic:gateway"}, CreatedAt: "2026-03-01",
			Links: map[string][]string{"relates": {"FACT_gateway"}}},
		&types.Entity{ID: "MEM_note", Type: types.TypeObservation, Title: "Unrelated note",
			Tags: []string{"topic:other"}, CreatedAt: "2026-02-01"},
		&types.Entity{ID: "FACT_dead", Type: types.TypeFact, Title: "Gateway retired",
			Status: types.StatusDeprecated, Tags: []string{"topic:gateway"}},
		&types.Entity{ID: "FACT_expired", Type: types.TypeFact, Title: "Gateway cert expires",
			Tags: []string{"topic:gateway"}, ExpiresAt: "2026-06-01"},
	)
	snap2 := &engine.Snapshot{Entities: snap.Entities}
	// derive back-links the way LoadSnapshot does
	for _, e := range snap2.Entities {
		for kind, targets := range e.Links {
			for _, tid := range targets {
				if t, ok := snap2.Entities[tid]; ok {
					if t.BackLinks == nil {
						t.BackLinks = make(map[string][]string)
					}
					t.BackLinks[kind] = append(t.BackLinks[kind], e.ID)
				}
			}
		}
	}
	return snap2
}

func TestRecallTextQuery(t *testing.T) {
	got := Recall(fixture(), RecallOptions{Query: "gateway", Today: today})
	assert.Contains(t, got, "FACT_gateway")
	assert.NotContains(t, got, "FACT_dead", "deprecated never matches")
	assert.NotContains(t, got, "FACT_expired", "expired hidden by default")
	assert.NotContains(t, got, "MEM_note")
}

func TestRecallTagAndType(t *testing.T) {
	got := Recall(fixture(), RecallOptions{Tags: []string{"topic:gateway", "repo:infra"}, Today: today})
	require.Len(t, got, 1)
	assert.Contains(t, got, "FACT_gateway")

	got = Recall(fixture(), RecallOptions{Type: types.TypeDecision, Today: today})
	require.Len(t, got, 1)
	assert.Contains(t, got, "DEC_proxy")
}

func TestRecallExpandPullsNeighbors(t *testing.T) {
	got := Recall(fixture(), RecallOptions{Query: "proxy", Expand: 1, Today: today})
	assert.Contains(t, got, "DEC_proxy")
	assert.Contains(t, got, "FACT_gateway", "one hop out via relates")
}

func TestRecallExpandFiltersDeprecated(t *testing.T) {
	snap := fixture()
	snap.Entities["DEC_proxy"].Links["relates"] = append(snap.Entities["DEC_proxy"].Links["relates"], "FACT_dead")
	got := Recall(snap, RecallOptions{Query: "proxy", Expand: 1, Today: today})
	assert.NotContains(t, got, "FACT_dead")
}

func TestRecallStaleOnly(t *testing.T) {
	got := Recall(fixture(), RecallOptions{StaleOnly: true, Today: today})
	require.Len(t, got, 1)
	assert.Contains(t, got, "FACT_expired")
}

func TestRecallNoMatchesSkipsExpansion(t *testing.T) {
	got := Recall(fixture(), RecallOptions{Query: "zebra", Expand: 3, Today: today})
	assert.Empty(t, got)
}

func TestSortEntities(t *testing.T) {
	entities := map[string]*types.Entity{
		"A": {ID: "A", CreatedAt: "2026-01-01", Confidence: types.ConfidenceLow},
		"B": {ID: "B", CreatedAt: "2026-03-01", Confidence: types.ConfidenceHigh},
		"C": {ID: "C", CreatedAt: "2026-02-01", UpdatedAt: "2026-04-01"},
	}

	ids := func(es []*types.Entity) []string {
		var out []string
		for _, e := range es {
			out = append(out, e.ID)
		}
		return out
	}

	assert.Equal(t, []string{"A", "B", "C"}, ids(SortEntities(entities, "")))
	assert.Equal(t, []string{"B", "C", "A"}, ids(SortEntities(entities, SortNewest)))
	assert.Equal(t, []string{"A", "C", "B"}, ids(SortEntities(entities, SortOldest)))
	assert.Equal(t, "B", ids(SortEntities(entities, SortConfidence))[0])
	assert.Equal(t, []string{"C", "B", "A"}, ids(SortEntities(entities, SortUpdated)), "updated_at falls back to created_at")
}

func TestFormatSetLimitReportsOmitted(t *testing.T) {
	entities := map[string]*types.Entity{
		"A": {ID: "A", Type: types.TypeFact, Title: "a", Confidence: types.ConfidenceHigh},
		"B": {ID: "B", Type: types.TypeFact, Title: "b"},
		"C": {ID: "C", Type: types.TypeFact, Title: "c"},
	}
	out, err := FormatSet(entities, FormatBrief, 2, false, "")
	require.NoError(t, err)
	assert.Contains(t, out, "(1 more results omitted")
	assert.Contains(t, out, "[A]", "confidence order keeps the high-confidence entry")
	lines := strings.Count(out, "\n")
	assert.GreaterOrEqual(t, lines, 2)
}

func TestFormatSetJSON(t *testing.T) {
	entities := map[string]*types.Entity{
		"A": {ID: "A", Type: types.TypeFact, Title: "a"},
	}
	out, err := FormatSet(entities, FormatJSON, 0, false, "")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "A"`)
}

func TestFormatSetContextDefault(t *testing.T) {
	entities := map[string]*types.Entity{
		"FACT_a": {ID: "FACT_a", Type: types.TypeFact, Title: "a"},
	}
	out, err := FormatSet(entities, FormatContext, 0, false, "")
	require.NoError(t, err)
	assert.Contains(t, out, "## Recalled Memories (1 results)")
}

func TestTagSummary(t *testing.T) {
	snap := snapOf(
		&types.Entity{ID: "A", Tags: []string{"topic:x", "repo:r"}},
		&types.Entity{ID: "B", Tags: []string{"topic:x", "plain"}},
		&types.Entity{ID: "C", Status: types.StatusDeprecated, Tags: []string{"topic:ghost"}},
	)
	out := TagSummary(snap, "")

	assert.Contains(t, out, "topic:\n  topic:x  (2)")
	assert.Contains(t, out, "_untagged:\n  plain  (1)")
	assert.NotContains(t, out, "topic:ghost", "deprecated entities do not count")
	assert.Contains(t, out, "3 unique tags, 4 total usages")
}

func TestTagSummaryPrefixFilter(t *testing.T) {
	snap := snapOf(
		&types.Entity{ID: "A", Tags: []string{"topic:x", "repo:r"}},
	)
	out := TagSummary(snap, "repo")
	assert.Contains(t, out, "repo:r")
	assert.NotContains(t, out, "topic:x")
}

func TestTagSummaryEmpty(t *testing.T) {
	assert.Equal(t, "No tags found.", TagSummary(snapOf(), ""))
}

func TestStaleReport(t *testing.T) {
	snap := snapOf(
		&types.Entity{ID: "A", Title: "expired", ExpiresAt: "2026-06-01"},
		&types.Entity{ID: "B", Title: "due", ReviewAfter: "2026-06-10"},
		&types.Entity{ID: "C", Title: "both", ExpiresAt: "2026-05-01", ReviewAfter: "2026-01-01"},
		&types.Entity{ID: "D", Title: "fresh", ReviewAfter: "2027-01-01"},
	)
	out := StaleReport(snap, today)

	assert.Contains(t, out, "## 2 EXPIRED memories")
	assert.Contains(t, out, "## 1 memories overdue for review")
	assert.Contains(t, out, "[EXPIRED 2026-05-01]")
	assert.Contains(t, out, "[REVIEW 2026-06-10]")
	assert.NotContains(t, out, "fresh")

	// C sorts before A within the expired section.
	assert.Less(t, strings.Index(out, "[EXPIRED 2026-05-01]"), strings.Index(out, "[EXPIRED 2026-06-01]"))
}

func TestStaleReportEmpty(t *testing.T) {
	snap := snapOf(&types.Entity{ID: "A", ReviewAfter: "2027-01-01"})
	assert.Equal(t, "No stale memories found.", StaleReport(snap, today))
}
