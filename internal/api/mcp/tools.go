package mcp

// prop builds one JSON-schema property entry.
func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

// schema builds a JSON-schema object for a tool's inputSchema.
func schema(properties map[string]interface{}, required ...string) map[string]interface{} {
	s := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// toolDefinitions returns the tools/list catalog. Descriptions are written
// for the calling model: they say when to reach for each tool, not just what
// it does.
func toolDefinitions() []Tool {
	return []Tool{
		{
			Name: "memory_recall",
			Description: "Search the memory workspace. Use at the start of a task to pull in " +
				"relevant facts, decisions, and preferences. Filters combine: tag filters are " +
				"AND, query words are OR. Results expand one hop through the link graph by default.",
			InputSchema: schema(map[string]interface{}{
				"query":  prop("string", "Free-text search over titles, bodies, and tags (words OR-combined)"),
				"tag":    prop("string", "Comma-separated tag filters, all required (e.g. 'topic:gateway,repo:infra')"),
				"type":   prop("string", "Memory type code: mem, dec, fact, pref, risk, goal, q"),
				"format": prop("string", "Output format: brief, compact, context (default), json"),
				"limit":  prop("integer", "Maximum results to return (0 = unlimited)"),
				"body":   prop("boolean", "Include body text (default false, saves tokens)"),
				"sort":   prop("string", "Result order: newest, oldest, confidence, updated"),
				"expand": prop("integer", "Link-graph hops out from matches (default 1, 0 = exact only)"),
				"stale":  prop("boolean", "Only expired or review-overdue memories"),
			}),
		},
		{
			Name:        "memory_get",
			Description: "Fetch one memory by ID with every field and its full body text.",
			InputSchema: schema(map[string]interface{}{
				"id": prop("string", "Memory ID (case-insensitive, e.g. 'FACT_gateway_timeout')"),
			}, "id"),
		},
		{
			Name: "memory_add",
			Description: "Record a new memory as a text directive. Use when you learn a durable " +
				"fact, a decision is made, or a preference is stated. Tags should include a " +
				"topic: and, where relevant, a repo: namespace.",
			InputSchema: schema(map[string]interface{}{
				"type":       prop("string", "Memory type code: mem, dec, fact, pref, risk, goal, q"),
				"title":      prop("string", "Short one-line summary"),
				"tags":       prop("string", "Comma-separated tags (e.g. 'topic:gateway,repo:infra')"),
				"body":       prop("string", "Longer free-text description"),
				"confidence": prop("string", "low, medium (default), or high"),
				"source":     prop("string", "Provenance: URL, commit, conversation reference"),
				"scope":      prop("string", "Where this applies (default 'global')"),
				"relates":    prop("string", "Comma-separated IDs of related memories"),
				"supersedes": prop("string", "Comma-separated IDs this memory replaces"),
				"id":         prop("string", "Explicit ID override (normally derived from type and title)"),
				"rebuild":    prop("boolean", "Refresh the snapshot index afterwards (default true)"),
			}, "type", "title", "tags"),
		},
		{
			Name: "memory_update",
			Description: "Change metadata fields on an existing memory: status, confidence, " +
				"scope, review date, source, or tags. At least one field is required.",
			InputSchema: schema(map[string]interface{}{
				"id":           prop("string", "Memory ID to update"),
				"status":       prop("string", "New status: draft, active, promoted, deprecated, review"),
				"confidence":   prop("string", "New confidence: low, medium, high"),
				"scope":        prop("string", "New scope"),
				"review_after": prop("string", "New review date (YYYY-MM-DD)"),
				"source":       prop("string", "New source reference"),
				"add_tags":     prop("string", "Comma-separated tags to add"),
				"remove_tags":  prop("string", "Comma-separated tags to remove"),
			}, "id"),
		},
		{
			Name: "memory_deprecate",
			Description: "Mark a memory deprecated so it stops appearing in recall. " +
				"Cite the replacing memory when one exists.",
			InputSchema: schema(map[string]interface{}{
				"id": prop("string", "Memory ID to deprecate"),
				"by": prop("string", "ID of the memory that replaces it"),
			}, "id"),
		},
		{
			Name:        "memory_tags",
			Description: "List every tag in use with usage counts, grouped by namespace prefix.",
			InputSchema: schema(map[string]interface{}{
				"prefix": prop("string", "Only show one namespace (e.g. 'topic')"),
			}),
		},
		{
			Name:        "memory_stale",
			Description: "Report memories past their expiry or review date.",
			InputSchema: schema(map[string]interface{}{}),
		},
		{
			Name: "memory_rebuild",
			Description: "Re-parse all directive files and refresh the snapshot index. " +
				"Run after editing directive files outside the tools.",
			InputSchema: schema(map[string]interface{}{}),
		},
		{
			Name: "memory_plan",
			Description: "Run maintenance detectors (duplicates, missing tags, staleness, " +
				"conflicts, tag normalization, oversized files) and propose a plan of fixes " +
				"without changing anything. Use format=json to get a plan you can edit and " +
				"pass to memory_apply.",
			InputSchema: schema(map[string]interface{}{
				"checks": prop("string", "Comma-separated check names (default: all): duplicates, missing_tags, stale, conflicts, tag_normalize, split_files"),
				"format": prop("string", "human (default) or json"),
			}),
		},
		{
			Name: "memory_apply",
			Description: "Validate and apply a maintenance plan. Changes are staged behind a " +
				"git stash and rolled back if the workspace fails to rebuild afterwards. " +
				"Without an actions array, a fresh plan is computed and applied.",
			InputSchema: schema(map[string]interface{}{
				"actions":     map[string]interface{}{"type": "array", "description": "Action array from memory_plan format=json"},
				"checks":      prop("string", "Comma-separated checks for the fresh plan when actions is omitted"),
				"auto_commit": prop("boolean", "git commit the changes after a successful run"),
			}),
		},
	}
}
