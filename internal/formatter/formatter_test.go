package formatter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mnemo-sh/mnemo/pkg/types"
)

func sample() *types.Entity {
	return &types.Entity{
		ID:         "FACT_gateway_timeout",
		Type:       types.TypeFact,
		Status:     types.StatusPromoted,
		Title:      "Gateway timeout is 30 seconds",
		Body:       "The edge gateway closes idle upstream connections after 30 seconds.",
		Confidence: types.ConfidenceHigh,
		Scope:      "global",
		Source:     "incident-42",
		Tags:       []string{"topic:gateway", "repo:infra", "tier:web"},
		Links:      map[string][]string{"relates": {"MEM_edge_rollout"}},
		BackLinks:  map[string][]string{"supports": {"DEC_keepalive"}},
		CreatedAt:  "2026-01-15",
	}
}

func TestBrief(t *testing.T) {
	got := Brief(sample())
	assert.Equal(t, "[FACT_gateway_timeout] Gateway timeout is 30 seconds (high) {topic:gateway,repo:infra}", got)
}

func TestBriefNoKeyTags(t *testing.T) {
	e := sample()
	e.Tags = []string{"tier:web"}
	e.Confidence = ""
	assert.Equal(t, "[FACT_gateway_timeout] Gateway timeout is 30 seconds (?)", Brief(e))
}

func TestCompact(t *testing.T) {
	got := Compact(sample(), false)
	assert.Contains(t, got, "[FACT_gateway_timeout] | Gateway timeout is 30 seconds")
	assert.Contains(t, got, "status=promoted")
	assert.Contains(t, got, "tags=[topic:gateway,repo:infra,tier:web]")
	assert.Contains(t, got, "relates:MEM_edge_rollout")
	assert.Contains(t, got, "supports_back:DEC_keepalive")
	assert.NotContains(t, got, "edge gateway", "body hidden by default")
}

func TestCompactWithBody(t *testing.T) {
	got := Compact(sample(), true)
	assert.Contains(t, got, "\n  > The edge gateway")
}

func TestCompactTruncatesLongBody(t *testing.T) {
	e := sample()
	e.Body = strings.Repeat("x", 600)
	got := Compact(e, true)
	assert.Contains(t, got, strings.Repeat("x", 500)+"...")
	assert.NotContains(t, got, strings.Repeat("x", 501))
}

func TestFull(t *testing.T) {
	got := Full(sample())
	assert.Contains(t, got, "# FACT_gateway_timeout: Gateway timeout is 30 seconds")
	assert.Contains(t, got, "type: fact")
	assert.Contains(t, got, "source: incident-42")
	assert.Contains(t, got, "created_at: 2026-01-15")
	assert.Contains(t, got, "relates: MEM_edge_rollout")
	assert.Contains(t, got, "supports_back: DEC_keepalive")
	assert.True(t, strings.HasSuffix(got, "after 30 seconds."), "body comes last")
}

func TestContextPackEmpty(t *testing.T) {
	assert.Equal(t, "No relevant memories found.", ContextPack(nil, false))
}

func TestContextPackGroupsAndOrders(t *testing.T) {
	entities := map[string]*types.Entity{
		"MEM_a": {ID: "MEM_a", Type: types.TypeObservation, Title: "An observation"},
		"FACT_b": {ID: "FACT_b", Type: types.TypeFact, Title: "A fact"},
		"FACT_c": {ID: "FACT_c", Type: types.TypeFact, Title: "Another fact", Confidence: types.ConfidenceHigh},
	}
	got := ContextPack(entities, false)

	assert.Contains(t, got, "## Recalled Memories (3 results)")
	facts := strings.Index(got, "### Facts (verified, high trust)")
	obs := strings.Index(got, "### Observations (may need verification)")
	assert.Less(t, facts, obs, "facts render before observations")

	// Within a group, higher confidence first.
	c := strings.Index(got, "[FACT_c]")
	b := strings.Index(got, "[FACT_b]")
	assert.Less(t, c, b)

	assert.Contains(t, got, "_Use `mnemo get <ID>` to see full body text._")
}

func TestContextPackShowBodyDropsFooter(t *testing.T) {
	entities := map[string]*types.Entity{
		"FACT_b": {ID: "FACT_b", Type: types.TypeFact, Title: "A fact", Body: "Details."},
	}
	got := ContextPack(entities, true)
	assert.Contains(t, got, "  > Details.")
	assert.NotContains(t, got, "mnemo get <ID>")
}
