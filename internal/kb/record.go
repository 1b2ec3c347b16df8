package kb

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is an entity or relation with all its attributes. Relation
// participants appear as nested Records under their role name, so a
// transaction record holds its creator account at "account-of-creator".
type Record map[string]interface{}

// Resolve follows a dotted attribute path through the record, descending
// into nested role records one segment per dot. It fails fast on the first
// missing segment; a representation path must resolve against every record
// of its type.
func (r Record) Resolve(path string) (interface{}, error) {
	current := interface{}(r)

	for _, segment := range strings.Split(path, ".") {
		rec, ok := current.(Record)
		if !ok {
			return nil, fmt.Errorf("path %q: %T is not a record", path, current)
		}
		v, ok := rec[segment]
		if !ok {
			return nil, fmt.Errorf("path %q: attribute %q not present", path, segment)
		}
		current = v
	}

	return current, nil
}

// ValueString renders an attribute value as its plain string form.
func ValueString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

// matches reports whether the record satisfies all filters, comparing the
// string forms of top-level attribute values.
func (r Record) matches(filters []Filter) bool {
	for _, f := range filters {
		v, ok := r[f.Key]
		if !ok {
			return false
		}
		if ValueString(v) != f.Value {
			return false
		}
	}
	return true
}
