// internal/workers/assistant/query-entities/models.go
package queryentities

import "assistant-workers/internal/models"

// The job variables of an assistant task are the conversation slots
// themselves, so the input is the raw slot map.

// Output carries the action result back to the process: user-visible
// messages, the rephrase prompt flag, and the slot-update directives.
type Output struct {
	Messages []string           `json:"messages"`
	Rephrase bool               `json:"rephrase"`
	Slots    models.SlotUpdates `json:"slots"`
}

var inputSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"entity_type": map[string]interface{}{
			"type": []string{"string", "null"},
		},
		"account": map[string]interface{}{
			"type": []string{"string", "null"},
		},
		"listed_items": map[string]interface{}{
			"type":  []string{"array", "null"},
			"items": map[string]interface{}{"type": "string"},
		},
	},
}
