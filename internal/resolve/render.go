package resolve

import (
	"strings"
	"time"

	"assistant-workers/internal/kb"
)

// dateLayout is the user-facing timestamp format.
const dateLayout = "02.01.2006 (15:04:05)"

// inputLayouts are the accepted forms of date attributes stored as strings.
var inputLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Render builds the user-facing label of a record from its representation
// paths: each path is resolved, formatted, and the parts joined with a
// comma. Monetary amounts get a euro suffix, dates the local timestamp
// format. Paths that do not resolve are left out.
func Render(rec kb.Record, paths []string) string {
	parts := make([]string, 0, len(paths))
	for _, path := range paths {
		v, err := rec.Resolve(path)
		if err != nil {
			continue
		}
		parts = append(parts, formatValue(path, v))
	}
	return strings.Join(parts, ", ")
}

func formatValue(path string, v interface{}) string {
	segments := strings.Split(path, ".")
	attr := segments[len(segments)-1]

	switch {
	case strings.Contains(attr, "balance") || strings.Contains(attr, "amount"):
		return kb.ValueString(v) + " €"
	case strings.Contains(attr, "date"):
		return formatDate(v)
	default:
		return kb.ValueString(v)
	}
}

func formatDate(v interface{}) string {
	if t, ok := v.(time.Time); ok {
		return t.Format(dateLayout)
	}

	if s, ok := v.(string); ok {
		for _, layout := range inputLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Format(dateLayout)
			}
		}
	}
	return kb.ValueString(v)
}
