package planner

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-sh/mnemo/internal/engine"
	"github.com/mnemo-sh/mnemo/internal/rst"
	"github.com/mnemo-sh/mnemo/internal/workspace"
	"github.com/mnemo-sh/mnemo/pkg/types"
)

func snapOf(entities ...*types.Entity) *engine.Snapshot {
	s := &engine.Snapshot{Entities: make(map[string]*types.Entity)}
	for _, e := range entities {
		s.Entities[e.ID] = e
	}
	return s
}

func TestRatio(t *testing.T) {
	assert.InDelta(t, 1.0, Ratio("hello", "hello"), 1e-9)
	assert.InDelta(t, 1.0, Ratio("", ""), 1e-9)
	assert.InDelta(t, 0.0, Ratio("abc", "xyz"), 1e-9)
	assert.InDelta(t, 0.0, Ratio("abc", ""), 1e-9)

	// Two matching blocks: "bcd" is the longest common substring, no
	// further matches remain on either side.
	assert.InDelta(t, 0.75, Ratio("abcd", "bcde"), 1e-9)

	// Recursion picks up "ab" to the left of the longest block "def".
	assert.InDelta(t, 10.0/14.0, Ratio("abcdefg", "abXdefY"), 1e-9)
}

func TestRatioIsOrderSensitiveButSymmetricInScore(t *testing.T) {
	a, b := "use postgres for analytics", "use postgres for the analytics"
	assert.InDelta(t, Ratio(a, b), Ratio(b, a), 1e-9)
	assert.Greater(t, Ratio(a, b), 0.9)
}

func dupPair(conf1, created1, conf2, created2 string) (*types.Entity, *types.Entity) {
	return &types.Entity{
			ID: "DEC_aaa", Type: types.TypeDecision, Status: types.StatusActive,
			Title: "Use postgres for analytics", Tags: []string{"topic:storage", "repo:infra"},
			Confidence: conf1, CreatedAt: types.Date(created1),
		}, &types.Entity{
			ID: "DEC_bbb", Type: types.TypeDecision, Status: types.StatusActive,
			Title: "Use postgres for analytics", Tags: []string{"topic:storage", "repo:infra"},
			Confidence: conf2, CreatedAt: types.Date(created2),
		}
}

func TestDetectDuplicatesKeepsHigherConfidence(t *testing.T) {
	e1, e2 := dupPair("low", "2026-05-01", "high", "2024-01-01")
	actions := DetectDuplicates(snapOf(e1, e2), 0.8, 0.5)

	require.Len(t, actions, 1)
	a := actions[0]
	assert.Equal(t, types.ActionSupersede, a.Kind)
	assert.Equal(t, "DEC_aaa", a.OldID, "confidence outranks recency")
	assert.Equal(t, "DEC_bbb", a.ByID)
	assert.Contains(t, a.Reason, "title similarity 100%")
	assert.Contains(t, a.Reason, "tag overlap 100%")
}

func TestDetectDuplicatesBreaksConfidenceTieByRecency(t *testing.T) {
	e1, e2 := dupPair("medium", "2024-01-01", "medium", "2026-05-01")
	actions := DetectDuplicates(snapOf(e1, e2), 0.8, 0.5)

	require.Len(t, actions, 1)
	assert.Equal(t, "DEC_aaa", actions[0].OldID)
	assert.Equal(t, "DEC_bbb", actions[0].ByID)
}

func TestDetectDuplicatesFullTieKeepsFirst(t *testing.T) {
	e1, e2 := dupPair("medium", "2025-01-01", "medium", "2025-01-01")
	actions := DetectDuplicates(snapOf(e1, e2), 0.8, 0.5)

	require.Len(t, actions, 1)
	assert.Equal(t, "DEC_aaa", actions[0].ByID)
	assert.Equal(t, "DEC_bbb", actions[0].OldID)
}

func TestDetectDuplicatesRespectsThresholds(t *testing.T) {
	e1, e2 := dupPair("medium", "2025-01-01", "medium", "2025-01-02")
	e2.Title = "Completely different subject"
	assert.Empty(t, DetectDuplicates(snapOf(e1, e2), 0.8, 0.5), "dissimilar titles never pair")

	e1, e2 = dupPair("medium", "2025-01-01", "medium", "2025-01-02")
	e2.Tags = []string{"topic:other", "tier:web"}
	assert.Empty(t, DetectDuplicates(snapOf(e1, e2), 0.8, 0.5), "low tag overlap never pairs")
}

func TestDetectDuplicatesBothTaglessSkipped(t *testing.T) {
	e1, e2 := dupPair("medium", "2025-01-01", "medium", "2025-01-02")
	e1.Tags = nil
	e2.Tags = nil
	assert.Empty(t, DetectDuplicates(snapOf(e1, e2), 0.8, 0.5))
}

func TestDetectDuplicatesIgnoresDeprecated(t *testing.T) {
	e1, e2 := dupPair("medium", "2025-01-01", "medium", "2025-01-02")
	e1.Status = types.StatusDeprecated
	assert.Empty(t, DetectDuplicates(snapOf(e1, e2), 0.8, 0.5))
}

func TestDetectMissingTags(t *testing.T) {
	snap := snapOf(
		&types.Entity{ID: "FACT_a", Status: types.StatusActive, Tags: []string{"topic:x", "repo:y"}},
		&types.Entity{ID: "FACT_b", Status: types.StatusActive, Tags: []string{"topic:x"}},
		&types.Entity{ID: "FACT_c", Status: types.StatusActive},
		&types.Entity{ID: "FACT_d", Status: types.StatusDeprecated},
	)
	actions := DetectMissingTags(snap)

	require.Len(t, actions, 2)
	assert.Equal(t, "FACT_b", actions[0].ID)
	assert.Equal(t, "Missing required tag prefix(es): repo:", actions[0].Reason)
	assert.Equal(t, "FACT_c", actions[1].ID)
	assert.Equal(t, "Missing required tag prefix(es): topic:, repo:", actions[1].Reason)
	assert.Empty(t, actions[0].AddTags, "missing-tag findings never invent tag values")
}

func TestDetectStale(t *testing.T) {
	today := types.Date("2026-06-15")
	snap := snapOf(
		&types.Entity{ID: "FACT_expired", Status: types.StatusActive, ExpiresAt: "2026-06-01"},
		&types.Entity{ID: "FACT_due", Status: types.StatusActive, ReviewAfter: "2026-06-15"},
		&types.Entity{ID: "FACT_fresh", Status: types.StatusActive, ReviewAfter: "2026-07-01"},
		&types.Entity{ID: "FACT_both", Status: types.StatusActive, ExpiresAt: "2026-06-01", ReviewAfter: "2026-01-01"},
		&types.Entity{ID: "FACT_dated_but_gone", Status: types.StatusDeprecated, ExpiresAt: "2020-01-01"},
	)
	actions := DetectStale(snap, today)

	require.Len(t, actions, 3)
	byID := make(map[string]types.Action)
	for _, a := range actions {
		byID[a.ID] = a
	}

	assert.Contains(t, byID["FACT_expired"].Reason, "Expired on 2026-06-01")
	assert.Equal(t, map[string]string{"status": "review"}, byID["FACT_expired"].FieldChanges)

	assert.Contains(t, byID["FACT_due"].Reason, "Review overdue since 2026-06-15", "boundary date counts as due")

	assert.Contains(t, byID["FACT_both"].Reason, "Expired", "expiry takes priority over review")
	assert.NotContains(t, byID, "FACT_fresh")
}

func TestDetectConflicts(t *testing.T) {
	snap := snapOf(
		&types.Entity{ID: "DEC_a", Type: types.TypeDecision, Status: types.StatusActive, Tags: []string{"topic:storage"}},
		&types.Entity{ID: "PREF_b", Type: types.TypePreference, Status: types.StatusActive, Tags: []string{"topic:storage"}},
		&types.Entity{ID: "FACT_c", Type: types.TypeFact, Status: types.StatusActive, Tags: []string{"topic:storage"}},
	)
	actions := DetectConflicts(snap)

	require.Len(t, actions, 1, "facts never participate in conflict detection")
	a := actions[0]
	assert.Equal(t, types.ActionUpdate, a.Kind)
	assert.Equal(t, "DEC_a", a.ID)
	assert.Contains(t, a.Reason, "DEC_a and PREF_b")
	assert.Contains(t, a.Reason, "dec/pref")
	assert.Empty(t, a.FieldChanges, "conflict findings carry no automatic changes")
}

func TestDetectConflictsSuppressedByAnyLink(t *testing.T) {
	for _, kind := range []string{"relates", "supports", "depends", "contradicts", "supersedes"} {
		snap := snapOf(
			&types.Entity{ID: "DEC_a", Type: types.TypeDecision, Status: types.StatusActive, Tags: []string{"topic:x"},
				Links: map[string][]string{kind: {"DEC_b"}}},
			&types.Entity{ID: "DEC_b", Type: types.TypeDecision, Status: types.StatusActive, Tags: []string{"topic:x"}},
		)
		assert.Empty(t, DetectConflicts(snap), "link kind %s should suppress the finding", kind)
	}
}

func TestDetectConflictsReverseLinkSuppresses(t *testing.T) {
	snap := snapOf(
		&types.Entity{ID: "DEC_a", Type: types.TypeDecision, Status: types.StatusActive, Tags: []string{"topic:x"}},
		&types.Entity{ID: "DEC_b", Type: types.TypeDecision, Status: types.StatusActive, Tags: []string{"topic:x"},
			Links: map[string][]string{"contradicts": {"DEC_a"}}},
	)
	assert.Empty(t, DetectConflicts(snap))
}

func TestDetectConflictsSharedTopicsReportOnce(t *testing.T) {
	snap := snapOf(
		&types.Entity{ID: "DEC_a", Type: types.TypeDecision, Status: types.StatusActive, Tags: []string{"topic:x", "topic:y"}},
		&types.Entity{ID: "DEC_b", Type: types.TypeDecision, Status: types.StatusActive, Tags: []string{"topic:x", "topic:y"}},
	)
	assert.Len(t, DetectConflicts(snap), 1, "a pair sharing two topics is still one finding")
}

func TestDetectTagNormalization(t *testing.T) {
	snap := snapOf(
		&types.Entity{ID: "FACT_a", Status: types.StatusActive, Tags: []string{"topic:API"}},
		&types.Entity{ID: "FACT_b", Status: types.StatusActive, Tags: []string{"topic:api"}},
		&types.Entity{ID: "FACT_c", Status: types.StatusActive, Tags: []string{"topic:api"}},
	)
	actions := DetectTagNormalization(snap)

	require.Len(t, actions, 1)
	a := actions[0]
	assert.Equal(t, types.ActionRetag, a.Kind)
	assert.Equal(t, "FACT_a", a.ID)
	assert.Equal(t, []string{"topic:API"}, a.RemoveTags)
	assert.Equal(t, []string{"topic:api"}, a.AddTags)
	assert.Contains(t, a.Reason, "'topic:API' → 'topic:api'")
}

func TestDetectTagNormalizationTieBreaksLexicographically(t *testing.T) {
	snap := snapOf(
		&types.Entity{ID: "FACT_a", Status: types.StatusActive, Tags: []string{"Topic:X"}},
		&types.Entity{ID: "FACT_b", Status: types.StatusActive, Tags: []string{"topic:x"}},
	)
	actions := DetectTagNormalization(snap)

	require.Len(t, actions, 1)
	assert.Equal(t, []string{"topic:x"}, actions[0].RemoveTags, "uppercase T sorts first, becomes canonical on a count tie")
	assert.Equal(t, []string{"Topic:X"}, actions[0].AddTags)
}

func TestDetectTagNormalizationNoVariants(t *testing.T) {
	snap := snapOf(
		&types.Entity{ID: "FACT_a", Status: types.StatusActive, Tags: []string{"topic:x", "repo:y"}},
	)
	assert.Empty(t, DetectTagNormalization(snap))
}

func TestDetectSplitFiles(t *testing.T) {
	ws, err := workspace.Init(t.TempDir())
	require.NoError(t, err)
	ws.MaxEntriesPerFile = 2

	var content strings.Builder
	for i := 0; i < 3; i++ {
		content.WriteString(rst.Generate(rst.Fields{Type: types.TypeFact, Title: fmt.Sprintf("Fact %d", i)}))
	}
	// Write directly so Append's auto-split cannot kick in.
	require.NoError(t, os.WriteFile(ws.FilePath(types.TypeFact), []byte(content.String()), 0o644))

	actions := DetectSplitFiles(ws)
	require.Len(t, actions, 1)
	a := actions[0]
	assert.Equal(t, types.ActionSplitFile, a.Kind)
	assert.Equal(t, "memory/facts.rst", a.RstPath)
	assert.Contains(t, a.Reason, "facts.rst has 3 entries (limit: 2)")
}

func TestDetectSplitFilesAtLimitIsFine(t *testing.T) {
	ws, err := workspace.Init(t.TempDir())
	require.NoError(t, err)
	ws.MaxEntriesPerFile = 2

	for i := 0; i < 2; i++ {
		_, err := rst.Append(ws, types.TypeFact, rst.Generate(rst.Fields{Type: types.TypeFact, Title: fmt.Sprintf("Fact %d", i)}))
		require.NoError(t, err)
	}
	assert.Empty(t, DetectSplitFiles(ws), "exactly at the limit is not over it")
}

func TestRunPlanFiltersChecks(t *testing.T) {
	ws, err := workspace.Init(t.TempDir())
	require.NoError(t, err)
	snap := snapOf(
		&types.Entity{ID: "FACT_a", Status: types.StatusActive},
	)

	actions, err := RunPlan(ws, []string{CheckMissingTags}, snap)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, types.ActionRetag, actions[0].Kind)

	actions, err = RunPlan(ws, []string{CheckConflicts}, snap)
	require.NoError(t, err)
	assert.Empty(t, actions)

	// Unknown checks are skipped, not errors.
	actions, err = RunPlan(ws, []string{"bogus"}, snap)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestRunPlanWithoutIndexErrors(t *testing.T) {
	ws, err := workspace.Init(t.TempDir())
	require.NoError(t, err)

	_, err = RunPlan(ws, nil, nil)
	assert.Error(t, err, "no snapshot index and none supplied")
}

func TestFormatPlanEmpty(t *testing.T) {
	out, err := FormatPlan(nil, "human")
	require.NoError(t, err)
	assert.Equal(t, "No issues found — memory graph looks healthy.", out)
}

func TestFormatPlanHumanGroupsByKind(t *testing.T) {
	actions := []types.Action{
		{Kind: types.ActionRetag, ID: "FACT_a", Reason: "Missing required tag prefix(es): topic:"},
		{Kind: types.ActionSupersede, OldID: "DEC_old", ByID: "DEC_new", Reason: "Near-duplicate."},
		{Kind: types.ActionUpdate, ID: "FACT_b", Reason: "Review overdue.", FieldChanges: map[string]string{"status": "review"}},
	}
	out, err := FormatPlan(actions, "human")
	require.NoError(t, err)

	assert.Contains(t, out, "## Memory Maintenance Plan — 3 action(s)")
	assert.Contains(t, out, "### SUPERSEDE (1)")
	assert.Contains(t, out, "→ superseded by: DEC_new")
	assert.Contains(t, out, "### RETAG (1)")
	assert.Contains(t, out, "### UPDATE (1)")
	assert.Contains(t, out, "~ status → review")

	// SUPERSEDE renders before RETAG which renders before UPDATE.
	sup := strings.Index(out, "### SUPERSEDE")
	ret := strings.Index(out, "### RETAG")
	upd := strings.Index(out, "### UPDATE")
	assert.Less(t, sup, ret)
	assert.Less(t, ret, upd)
}

func TestFormatPlanJSONRoundTrips(t *testing.T) {
	actions := []types.Action{
		{Kind: types.ActionSupersede, OldID: "DEC_old", ByID: "DEC_new", Reason: "dup"},
	}
	out, err := FormatPlan(actions, "json")
	require.NoError(t, err)

	parsed, err := types.ActionsFromJSON([]byte(out))
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.True(t, parsed[0].Equal(actions[0]))
}
