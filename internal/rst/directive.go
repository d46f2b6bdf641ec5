// Package rst is the structured-text directive layer: it generates, parses,
// and edits the memory directive files that are the workspace's source of
// truth. Mutation primitives never return errors for "not found"; they return
// (ok=false, message) so callers can surface per-entity outcomes.
package rst

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mnemo-sh/mnemo/pkg/types"
)

// typePrefixes maps memory type codes to entity ID prefixes.
var typePrefixes = map[string]string{
	types.TypeObservation: "MEM",
	types.TypeDecision:    "DEC",
	types.TypeFact:        "FACT",
	types.TypePreference:  "PREF",
	types.TypeRisk:        "RISK",
	types.TypeGoal:        "GOAL",
	types.TypeQuestion:    "Q",
}

const (
	maxSlugLength = 50
	bodyWrapWidth = 72
)

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// Slugify converts a title into a safe lowercase ID slug.
func Slugify(text string) string {
	slug := strings.ToLower(text)
	slug = nonSlugChars.ReplaceAllString(slug, "")
	slug = whitespace.ReplaceAllString(strings.TrimSpace(slug), "_")
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	return slug
}

// GenerateID derives an entity ID from the type prefix and slugified title.
func GenerateID(typeCode, title string) string {
	prefix, ok := typePrefixes[typeCode]
	if !ok {
		prefix = "MEM"
	}
	return prefix + "_" + Slugify(title)
}

// UniqueID returns id if exists reports it free, otherwise id with a short
// random suffix. IDs are never reused, so a collision on re-adding a
// deprecated title still gets a fresh identity.
func UniqueID(id string, exists func(string) bool) string {
	if !exists(id) {
		return id
	}
	return id + "_" + uuid.NewString()[:8]
}

// Fields carries everything needed to author a new directive. Zero-valued
// optional fields are omitted from the output.
type Fields struct {
	Type       string
	Title      string
	ID         string // derived from Type+Title when empty
	Tags       []string
	Source     string
	Confidence string // default "medium"
	Scope      string // default "global"
	Owner      string
	Body       string
	Relates    []string
	Supports   []string
	Depends    []string
	Supersedes []string
	ReviewDays int // default 30
}

// Generate renders one directive block, trailing newline included.
func Generate(f Fields) string {
	id := f.ID
	if id == "" {
		id = GenerateID(f.Type, f.Title)
	}
	confidence := f.Confidence
	if confidence == "" {
		confidence = types.ConfidenceMedium
	}
	scope := f.Scope
	if scope == "" {
		scope = "global"
	}
	reviewDays := f.ReviewDays
	if reviewDays == 0 {
		reviewDays = 30
	}
	today := time.Now()
	review := today.AddDate(0, 0, reviewDays)

	var b strings.Builder
	fmt.Fprintf(&b, ".. %s:: %s\n", f.Type, f.Title)
	fmt.Fprintf(&b, "   :id: %s\n", id)
	fmt.Fprintf(&b, "   :status: %s\n", types.DefaultStatus(f.Type))
	if len(f.Tags) > 0 {
		fmt.Fprintf(&b, "   :tags: %s\n", strings.Join(f.Tags, ", "))
	}
	if f.Source != "" {
		fmt.Fprintf(&b, "   :source: %s\n", f.Source)
	}
	fmt.Fprintf(&b, "   :confidence: %s\n", confidence)
	fmt.Fprintf(&b, "   :scope: %s\n", scope)
	if f.Owner != "" {
		fmt.Fprintf(&b, "   :owner: %s\n", f.Owner)
	}
	fmt.Fprintf(&b, "   :created_at: %s\n", today.Format("2006-01-02"))
	fmt.Fprintf(&b, "   :review_after: %s\n", review.Format("2006-01-02"))
	if len(f.Relates) > 0 {
		fmt.Fprintf(&b, "   :relates: %s\n", strings.Join(f.Relates, ", "))
	}
	if len(f.Supports) > 0 {
		fmt.Fprintf(&b, "   :supports: %s\n", strings.Join(f.Supports, ", "))
	}
	if len(f.Depends) > 0 {
		fmt.Fprintf(&b, "   :depends: %s\n", strings.Join(f.Depends, ", "))
	}
	if len(f.Supersedes) > 0 {
		fmt.Fprintf(&b, "   :supersedes: %s\n", strings.Join(f.Supersedes, ", "))
	}
	b.WriteString("\n")
	if f.Body != "" {
		for _, line := range wrap(f.Body, bodyWrapWidth) {
			fmt.Fprintf(&b, "   %s\n", line)
		}
	} else {
		b.WriteString("   TODO: Add description.\n")
	}
	b.WriteString("\n")
	return b.String()
}

// wrap greedily wraps text into lines of at most width characters, breaking
// on spaces. Words longer than width are kept whole on their own line.
func wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	current := words[0]
	for _, w := range words[1:] {
		if len(current)+1+len(w) <= width {
			current += " " + w
		} else {
			lines = append(lines, current)
			current = w
		}
	}
	return append(lines, current)
}
