// internal/models/slots.go
package models

import "strings"

// Well-known conversation slot names shared by the assistant workers. The
// job variables of an assistant task are exactly the conversation slots.
const (
	SlotEntityType  = "entity_type"
	SlotAttribute   = "attribute"
	SlotMention     = "mention"
	SlotListedItems = "listed_items"
)

// Slots is the slot view of a job's variables.
type Slots map[string]interface{}

// String returns the named slot as a non-empty string. Unset, null, empty
// and non-string values all count as absent.
func (s Slots) String(name string) (string, bool) {
	v, ok := s[name]
	if !ok || v == nil {
		return "", false
	}
	str, ok := v.(string)
	if !ok || str == "" {
		return "", false
	}
	return str, true
}

// StringList returns the named slot as a list of strings. JSON decoding
// delivers lists as []interface{}; non-string elements are skipped.
func (s Slots) StringList(name string) []string {
	v, ok := s[name]
	if !ok || v == nil {
		return nil
	}

	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// SlotUpdates collects the slot-update directives of one action run. A nil
// value clears the slot.
type SlotUpdates map[string]interface{}

func (u SlotUpdates) Set(name string, value interface{}) {
	u[name] = value
}

func (u SlotUpdates) Clear(name string) {
	u[name] = nil
}

// AttributeSlot converts a canonical attribute name to its slot name
// (attribute names use dashes, slot names use underscores).
func AttributeSlot(attribute string) string {
	return strings.ReplaceAll(attribute, "-", "_")
}
