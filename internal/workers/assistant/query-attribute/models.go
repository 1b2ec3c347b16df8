// internal/workers/assistant/query-attribute/models.go
package queryattribute

import "assistant-workers/internal/models"

// Output carries the action result back to the process.
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
		"attribute": map[string]interface{}{
			"type": []string{"string", "null"},
		},
		"mention": map[string]interface{}{
			"type": []string{"string", "null"},
		},
		"listed_items": map[string]interface{}{
			"type":  []string{"array", "null"},
			"items": map[string]interface{}{"type": "string"},
		},
	},
}
