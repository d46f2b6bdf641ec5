package rst

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/mnemo-sh/mnemo/pkg/types"
)

// Directive is one parsed directive block, before interpretation as an
// entity. Option keys are kept raw so unknown fields survive a round trip.
type Directive struct {
	Type    string
	Title   string
	Options map[string]string
	Body    string
	Line    int // 1-based line of the ".. type::" marker
}

var directiveStart = regexp.MustCompile(`^\.\. (\w+):: ?(.*)$`)
var optionLine = regexp.MustCompile(`^\s+:([\w-]+): ?(.*)$`)

// ParseFile reads every directive in one file. Malformed blocks are not
// errors; anything that does not look like a directive is ignored, matching
// how a documentation build would treat stray prose.
func ParseFile(path string) ([]Directive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(string(data)), nil
}

// Parse extracts directives from raw file content.
func Parse(content string) []Directive {
	lines := strings.Split(content, "\n")
	var out []Directive

	i := 0
	for i < len(lines) {
		m := directiveStart.FindStringSubmatch(lines[i])
		if m == nil {
			i++
			continue
		}
		d := Directive{
			Type:    m[1],
			Title:   strings.TrimSpace(m[2]),
			Options: make(map[string]string),
			Line:    i + 1,
		}
		i++

		// Option block: contiguous ":key: value" lines.
		for i < len(lines) {
			om := optionLine.FindStringSubmatch(lines[i])
			if om == nil {
				break
			}
			d.Options[om[1]] = strings.TrimSpace(om[2])
			i++
		}

		// Body: indented lines until the next directive or an unindented
		// non-blank line. Blank lines inside the body are preserved.
		var body []string
		for i < len(lines) {
			line := lines[i]
			if directiveStart.MatchString(line) {
				break
			}
			if strings.TrimSpace(line) == "" {
				body = append(body, "")
				i++
				continue
			}
			if !strings.HasPrefix(line, " ") {
				break
			}
			body = append(body, strings.TrimPrefix(line, "   "))
			i++
		}
		d.Body = strings.TrimSpace(strings.Join(body, "\n"))
		out = append(out, d)
	}
	return out
}

// ToEntity interprets a parsed directive as an entity. sourceFile is the
// workspace-relative path it came from. Directives without an :id: option
// yield nil; the rebuild step reports them instead of indexing them.
func (d Directive) ToEntity(sourceFile string) *types.Entity {
	id := d.Options["id"]
	if id == "" {
		return nil
	}
	e := &types.Entity{
		ID:          id,
		Type:        d.Type,
		Status:      d.Options["status"],
		Title:       d.Title,
		Body:        d.Body,
		Confidence:  d.Options["confidence"],
		Scope:       d.Options["scope"],
		Source:      d.Options["source"],
		Owner:       d.Options["owner"],
		Tags:        SplitList(d.Options["tags"]),
		CreatedAt:   types.Date(d.Options["created_at"]),
		UpdatedAt:   types.Date(d.Options["updated_at"]),
		ReviewAfter: types.Date(d.Options["review_after"]),
		ExpiresAt:   types.Date(d.Options["expires_at"]),
		SourceFile:  sourceFile,
	}
	if e.Status == "" {
		e.Status = types.DefaultStatus(d.Type)
	}
	for _, kind := range types.LinkKinds {
		if targets := SplitList(d.Options[kind]); len(targets) > 0 {
			if e.Links == nil {
				e.Links = make(map[string][]string)
			}
			e.Links[kind] = targets
		}
	}
	return e
}

// SplitList parses a comma-separated option value into trimmed elements,
// dropping empties.
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
