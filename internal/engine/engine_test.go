package engine

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-sh/mnemo/internal/rst"
	"github.com/mnemo-sh/mnemo/internal/workspace"
	"github.com/mnemo-sh/mnemo/pkg/types"
)

func seedWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.Init(t.TempDir())
	require.NoError(t, err)

	add := func(f rst.Fields) {
		t.Helper()
		_, err := rst.Append(ws, f.Type, rst.Generate(f))
		require.NoError(t, err)
	}

	add(rst.Fields{
		Type: types.TypeFact, Title: "Gateway timeout is 30 seconds",
		Tags: []string{"topic:gateway", "repo:infra"},
	})
	add(rst.Fields{
		Type: types.TypeDecision, Title: "Use sqlite for the index",
		Tags:    []string{"topic:storage"},
		Relates: []string{"FACT_gateway_timeout_is_30_seconds"},
	})
	add(rst.Fields{
		Type: types.TypeObservation, Title: "Deploys are slow on Fridays",
		Tags: []string{"topic:deploys"},
	})
	return ws
}

func rebuildAndLoad(t *testing.T, ws *workspace.Workspace) *Snapshot {
	t.Helper()
	ok, report := Rebuild(ws)
	require.True(t, ok, report)
	snap, err := LoadSnapshot(ws)
	require.NoError(t, err)
	return snap
}

func TestRebuildReportsCounts(t *testing.T) {
	ws := seedWorkspace(t)

	ok, report := Rebuild(ws)
	require.True(t, ok, report)
	assert.Contains(t, report, "Total: 3 memories")
	assert.Contains(t, report, "dec=1, fact=1, mem=1")
	assert.True(t, IndexExists(ws))
}

func TestRebuildSkipsDirectivesWithoutID(t *testing.T) {
	ws := seedWorkspace(t)
	_, err := rst.Append(ws, types.TypeFact, ".. fact:: No identity\n\n   Broken.\n")
	require.NoError(t, err)

	ok, report := Rebuild(ws)
	require.True(t, ok)
	assert.Contains(t, report, "Total: 3 memories")
	assert.Contains(t, report, "has no :id:")
}

func TestRebuildSkipsDuplicateIDs(t *testing.T) {
	ws := seedWorkspace(t)
	_, err := rst.Append(ws, types.TypeFact, rst.Generate(rst.Fields{
		Type: types.TypeFact, Title: "Gateway timeout is 30 seconds",
	}))
	require.NoError(t, err)

	ok, report := Rebuild(ws)
	require.True(t, ok)
	assert.Contains(t, report, "Total: 3 memories")
	assert.Contains(t, report, "duplicate id FACT_gateway_timeout_is_30_seconds")
}

func TestRebuildIsIdempotentReplacement(t *testing.T) {
	ws := seedWorkspace(t)
	rebuildAndLoad(t, ws)

	// A second rebuild must not accumulate rows.
	snap := rebuildAndLoad(t, ws)
	assert.Len(t, snap.Entities, 3)
}

func TestLoadSnapshotWithoutIndex(t *testing.T) {
	ws, err := workspace.Init(t.TempDir())
	require.NoError(t, err)

	_, err = LoadSnapshot(ws)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mnemo rebuild")
}

func TestSnapshotRoundTrip(t *testing.T) {
	ws := seedWorkspace(t)
	snap := rebuildAndLoad(t, ws)

	fact := snap.Entities["FACT_gateway_timeout_is_30_seconds"]
	require.NotNil(t, fact)
	assert.Equal(t, types.TypeFact, fact.Type)
	assert.Equal(t, types.StatusPromoted, fact.Status)
	assert.Equal(t, []string{"topic:gateway", "repo:infra"}, fact.Tags)
	assert.Equal(t, "memory/facts.rst", fact.SourceFile)
	assert.True(t, fact.CreatedAt.IsSet())

	dec := snap.Entities["DEC_use_sqlite_for_the_index"]
	require.NotNil(t, dec)
	assert.Equal(t, []string{"FACT_gateway_timeout_is_30_seconds"}, dec.Links["relates"])
}

func TestSnapshotDerivesBackLinks(t *testing.T) {
	ws := seedWorkspace(t)
	snap := rebuildAndLoad(t, ws)

	fact := snap.Entities["FACT_gateway_timeout_is_30_seconds"]
	require.NotNil(t, fact)
	assert.Equal(t, []string{"DEC_use_sqlite_for_the_index"}, fact.BackLinks["relates"])
}

func TestResolveID(t *testing.T) {
	ws := seedWorkspace(t)
	snap := rebuildAndLoad(t, ws)

	assert.Equal(t, "FACT_gateway_timeout_is_30_seconds", snap.ResolveID("FACT_gateway_timeout_is_30_seconds"))
	assert.Equal(t, "FACT_gateway_timeout_is_30_seconds", snap.ResolveID("fact_GATEWAY_timeout_is_30_seconds"))
	assert.Empty(t, snap.ResolveID("FACT_nope"))
}

func TestTextMatchIsOrLogic(t *testing.T) {
	e := &types.Entity{
		ID: "FACT_x", Title: "Gateway timeout", Body: "Edge proxy drops connections.",
		Tags: []string{"topic:gateway"},
	}
	assert.True(t, TextMatch(e, "gateway"))
	assert.True(t, TextMatch(e, "nonsense proxy"), "any word matching is enough")
	assert.True(t, TextMatch(e, "TIMEOUT"))
	assert.False(t, TextMatch(e, "database"))
}

func TestTagMatchIsAndLogic(t *testing.T) {
	e := &types.Entity{Tags: []string{"topic:a", "repo:r"}}
	assert.True(t, TagMatch(e, []string{"topic:a"}))
	assert.True(t, TagMatch(e, []string{"topic:a", "repo:r"}))
	assert.False(t, TagMatch(e, []string{"topic:a", "tier:web"}))
}

func TestExpandGraphFollowsBothDirections(t *testing.T) {
	ws := seedWorkspace(t)
	snap := rebuildAndLoad(t, ws)

	// Forward from the decision, and backward from the fact, both reach the
	// other node in one hop.
	got := snap.ExpandGraph([]string{"DEC_use_sqlite_for_the_index"}, 1)
	assert.Contains(t, got, "FACT_gateway_timeout_is_30_seconds")

	got = snap.ExpandGraph([]string{"FACT_gateway_timeout_is_30_seconds"}, 1)
	assert.Contains(t, got, "DEC_use_sqlite_for_the_index")

	// Zero hops returns just the seed.
	got = snap.ExpandGraph([]string{"FACT_gateway_timeout_is_30_seconds"}, 0)
	assert.Len(t, got, 1)

	// The unlinked observation is never pulled in.
	got = snap.ExpandGraph([]string{"DEC_use_sqlite_for_the_index"}, 5)
	assert.NotContains(t, got, "MEM_deploys_are_slow_on_fridays")
}

func TestExpandGraphSkipsDanglingTargets(t *testing.T) {
	ws := seedWorkspace(t)
	_, err := rst.Append(ws, types.TypeObservation, rst.Generate(rst.Fields{
		Type: types.TypeObservation, Title: "Dangling link holder",
		Relates: []string{"FACT_does_not_exist"},
	}))
	require.NoError(t, err)
	snap := rebuildAndLoad(t, ws)

	got := snap.ExpandGraph([]string{"MEM_dangling_link_holder"}, 2)
	assert.NotContains(t, got, "FACT_does_not_exist")
}

func TestActiveFiltersDeprecated(t *testing.T) {
	ws := seedWorkspace(t)
	ok, _ := rst.Deprecate(ws, "MEM_deploys_are_slow_on_fridays", "")
	require.True(t, ok)
	snap := rebuildAndLoad(t, ws)

	for _, e := range snap.Active() {
		assert.NotEqual(t, "MEM_deploys_are_slow_on_fridays", e.ID)
	}
	assert.Len(t, snap.Active(), 2)
	assert.Len(t, snap.Sorted(), 3, "deprecated entities stay addressable")
}

func TestSortedIsDeterministic(t *testing.T) {
	ws := seedWorkspace(t)
	snap := rebuildAndLoad(t, ws)

	var ids []string
	for _, e := range snap.Sorted() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{
		"DEC_use_sqlite_for_the_index",
		"FACT_gateway_timeout_is_30_seconds",
		"MEM_deploys_are_slow_on_fridays",
	}, ids)
}

func TestRebuildHandlesMissingFiles(t *testing.T) {
	ws, err := workspace.Init(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.Remove(ws.FilePath(types.TypeQuestion)))

	ok, report := Rebuild(ws)
	require.True(t, ok, report)
	assert.Contains(t, report, "Total: 0 memories")
}
