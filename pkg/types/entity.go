package types

import "time"

// Memory type codes. The closed set of directive types a workspace can hold.
// Short codes are what appear in directive markup and entity IDs; labels are
// for human-facing output.
const (
	TypeObservation = "mem"
	TypeDecision    = "dec"
	TypeFact        = "fact"
	TypePreference  = "pref"
	TypeRisk        = "risk"
	TypeGoal        = "goal"
	TypeQuestion    = "q"
)

// AllTypes lists every memory type code in canonical order.
var AllTypes = []string{
	TypeObservation,
	TypeDecision,
	TypeFact,
	TypePreference,
	TypeRisk,
	TypeGoal,
	TypeQuestion,
}

// Entity statuses. A deprecated entity is logically inactive: detectors skip
// it and graph expansion filters it from results, but it stays addressable as
// a link target for audit.
const (
	StatusDraft      = "draft"
	StatusActive     = "active"
	StatusPromoted   = "promoted"
	StatusDeprecated = "deprecated"
	StatusReview     = "review"
)

// Confidence levels, ordered low < medium < high.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// LinkKinds is the fixed set of typed link fields an entity can carry, in
// directive order. Reverse links are derived at snapshot-load time, not stored.
var LinkKinds = []string{
	"relates",
	"supports",
	"depends",
	"supersedes",
	"contradicts",
	"example_of",
}

// Date is an ISO-8601 calendar date ("2006-01-02") or empty when unset.
// The fixed-width format makes lexicographic comparison equivalent to
// chronological comparison, which the staleness detector relies on.
type Date string

// IsSet reports whether the date carries a value.
func (d Date) IsSet() bool { return d != "" }

// OnOrBefore reports whether d is set and falls on or before other.
func (d Date) OnOrBefore(other Date) bool {
	return d.IsSet() && d <= other
}

// Today returns the current date in ISO-8601 form.
func Today() Date {
	return Date(time.Now().Format("2006-01-02"))
}

// Entity is one node in the memory graph: an observation, decision, fact,
// preference, risk, goal, or open question. Entities are persisted as text
// directives and materialized into the snapshot index by the rebuild step.
type Entity struct {
	// ID is the globally unique, stable identifier (e.g. "FACT_gateway_timeout").
	// Once assigned it is never reused, even after deprecation.
	ID string `json:"id"`

	// Type is one of the memory type codes (mem, dec, fact, pref, risk, goal, q).
	Type string `json:"type"`

	// Status is the lifecycle status (draft, active, promoted, deprecated, review).
	Status string `json:"status"`

	// Title is the short human-readable summary line.
	Title string `json:"title"`

	// Body is the free-text description.
	Body string `json:"body,omitempty"`

	// Confidence is low, medium, or high.
	Confidence string `json:"confidence,omitempty"`

	// Scope narrows where the entity applies (e.g. "global", "backend").
	Scope string `json:"scope,omitempty"`

	// Source records provenance (a URL, commit, conversation reference).
	Source string `json:"source,omitempty"`

	// Owner is the responsible person or agent.
	Owner string `json:"owner,omitempty"`

	// Tags in insertion order. Tags are case-sensitive strings, optionally
	// namespaced as "prefix:value" (topic:, repo:, tier:, ...).
	Tags []string `json:"tags,omitempty"`

	// Links maps each link kind to an ordered list of target entity IDs.
	// Dangling targets are tolerated: a link to a missing or deprecated ID is
	// data to be cleaned up, not an error.
	Links map[string][]string `json:"links,omitempty"`

	// BackLinks maps each link kind to the IDs of entities that link here.
	// Derived by the snapshot loader; never persisted.
	BackLinks map[string][]string `json:"back_links,omitempty"`

	// Lifecycle dates. Empty means unset.
	CreatedAt   Date `json:"created_at,omitempty"`
	UpdatedAt   Date `json:"updated_at,omitempty"`
	ReviewAfter Date `json:"review_after,omitempty"`
	ExpiresAt   Date `json:"expires_at,omitempty"`

	// SourceFile is the workspace-relative path of the directive file the
	// entity was parsed from. Informational only.
	SourceFile string `json:"source_file,omitempty"`
}

// IsDeprecated reports whether the entity is logically inactive.
func (e *Entity) IsDeprecated() bool {
	return e.Status == StatusDeprecated
}

// ConfidenceRank maps the confidence level to an ordinal: low=0, medium=1,
// high=2. Unknown or missing confidence ranks as medium.
func (e *Entity) ConfidenceRank() int {
	switch e.Confidence {
	case ConfidenceLow:
		return 0
	case ConfidenceHigh:
		return 2
	default:
		return 1
	}
}

// HasTag reports whether the entity carries the exact tag.
func (e *Entity) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// LinkedTo reports whether the entity links to target under any link kind.
func (e *Entity) LinkedTo(target string) bool {
	for _, targets := range e.Links {
		for _, t := range targets {
			if t == target {
				return true
			}
		}
	}
	return false
}

// TypeLabel returns the human-readable label for a memory type code.
func TypeLabel(code string) string {
	switch code {
	case TypeObservation:
		return "Observation"
	case TypeDecision:
		return "Decision"
	case TypeFact:
		return "Fact"
	case TypePreference:
		return "Preference"
	case TypeRisk:
		return "Risk"
	case TypeGoal:
		return "Goal"
	case TypeQuestion:
		return "Open Question"
	default:
		return code
	}
}

// DefaultStatus returns the status a newly created entity of the given type
// starts with. Facts start promoted (verified, high trust); observations and
// goals start as drafts.
func DefaultStatus(code string) string {
	switch code {
	case TypeFact:
		return StatusPromoted
	case TypeObservation, TypeGoal:
		return StatusDraft
	default:
		return StatusActive
	}
}
