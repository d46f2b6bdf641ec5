package types

import (
	"encoding/json"
	"fmt"
)

// ActionKind identifies the kind of maintenance action. The set is closed:
// the executor dispatches on it exhaustively, and anything outside the set is
// rejected at the validation boundary.
type ActionKind string

const (
	// ActionRetag adds and/or removes tags on one entity.
	ActionRetag ActionKind = "RETAG"

	// ActionSupersede deprecates an old entity in favor of a replacement,
	// optionally authoring the replacement in the same step.
	ActionSupersede ActionKind = "SUPERSEDE"

	// ActionDeprecate marks one entity deprecated, optionally citing the
	// entity that replaces it.
	ActionDeprecate ActionKind = "DEPRECATE"

	// ActionUpdate applies field-level metadata changes to one entity.
	ActionUpdate ActionKind = "UPDATE"

	// ActionPrune deprecates one entity with no replacement reference.
	ActionPrune ActionKind = "PRUNE"

	// ActionSplitFile flags a directive file that exceeded the per-file entry
	// limit. Informational: the store splits automatically on the next append.
	ActionSplitFile ActionKind = "SPLIT_FILE"
)

// KnownKind reports whether k is one of the closed set of action kinds.
func KnownKind(k ActionKind) bool {
	switch k {
	case ActionRetag, ActionSupersede, ActionDeprecate, ActionUpdate, ActionPrune, ActionSplitFile:
		return true
	}
	return false
}

// Action is a single proposed, not-yet-applied change to the memory
// workspace. Actions are produced by detectors, optionally serialized for
// human review, validated, and consumed exactly once by the executor.
//
// The JSON form is the one bit-exact external contract of the planning
// pipeline: empty fields are omitted to keep saved plans compact, and every
// populated field must survive a serialize/deserialize round trip unchanged.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Reason string     `json:"reason"`

	// ID is the primary target entity (RETAG, DEPRECATE, UPDATE, PRUNE).
	ID string `json:"id,omitempty"`

	// RETAG fields. A RETAG with neither list populated is a notification
	// that the entity needs manual retagging.
	AddTags    []string `json:"add_tags,omitempty"`
	RemoveTags []string `json:"remove_tags,omitempty"`

	// UPDATE fields: metadata field name -> new value.
	FieldChanges map[string]string `json:"field_changes,omitempty"`

	// SUPERSEDE fields. OldID is deprecated in favor of ByID; when NewType
	// and NewTitle are populated a replacement entity is appended that
	// supersedes OldID.
	OldID    string   `json:"old_id,omitempty"`
	NewType  string   `json:"new_type,omitempty"`
	NewTitle string   `json:"new_title,omitempty"`
	NewBody  string   `json:"new_body,omitempty"`
	NewTags  []string `json:"new_tags,omitempty"`
	NewLinks []string `json:"new_links,omitempty"`

	// ByID is the replacing entity (SUPERSEDE, DEPRECATE).
	ByID string `json:"by_id,omitempty"`

	// RstPath locates the overflowing directive file (SPLIT_FILE only).
	RstPath string `json:"rst_path,omitempty"`
}

// Target returns the action's primary subject for display: the entity ID,
// falling back to the superseded ID or the file path.
func (a *Action) Target() string {
	if a.ID != "" {
		return a.ID
	}
	if a.OldID != "" {
		return a.OldID
	}
	return a.RstPath
}

// Equal reports whether two actions have identical populated fields.
func (a Action) Equal(b Action) bool {
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(aj) == string(bj)
}

// MarshalPlan serializes a plan (ordered action list) to indented JSON,
// the persisted and transmissible form shared by the CLI and MCP front ends.
func MarshalPlan(actions []Action) ([]byte, error) {
	data, err := json.MarshalIndent(actions, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal plan: %w", err)
	}
	return data, nil
}

// ActionsFromJSON deserializes a plan previously produced by MarshalPlan (or
// hand-edited by a reviewer). Omitted fields come back as their zero values.
// Unknown kinds are preserved here and rejected later by validation, so a
// reviewer gets a per-action skip reason instead of a parse failure.
func ActionsFromJSON(data []byte) ([]Action, error) {
	var actions []Action
	if err := json.Unmarshal(data, &actions); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	return actions, nil
}
