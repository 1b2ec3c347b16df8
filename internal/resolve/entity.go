package resolve

import (
	"context"
	"errors"
	"fmt"

	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/kb"
	"assistant-workers/internal/kb/schema"
	"assistant-workers/internal/models"
)

// EntityResolver figures out which entity of a given type the conversation
// refers to.
type EntityResolver struct {
	mapper *Mapper
	kb     kb.KnowledgeBase
	schema schema.Schema
	logger logger.Logger
}

func NewEntityResolver(mapper *Mapper, base kb.KnowledgeBase, s schema.Schema, log logger.Logger) *EntityResolver {
	return &EntityResolver{
		mapper: mapper,
		kb:     base,
		schema: s,
		logger: log.WithFields(map[string]interface{}{"component": "entity-resolver"}),
	}
}

// Entity returns the key value of the entity the slots refer to, trying in
// order:
//
//  1. an ordinal mention into the listed items — when a mention is set it is
//     authoritative, a miss does not fall through to the other strategies;
//  2. the entity type's own slot, holding a directly named entity;
//  3. disambiguation of the listed items by the set attribute slots, keeping
//     the one item that validates against all of them.
//
// The second return is false when no entity could be determined. An error
// is returned only for knowledge base failures.
func (r *EntityResolver) Entity(ctx context.Context, entityType string, slots models.Slots) (string, bool, error) {
	if mention, ok := slots.String(models.SlotMention); ok {
		resolved, err := r.mapper.Mention(ctx, mention, slots.StringList(models.SlotListedItems))
		if errors.Is(err, kb.ErrNotFound) {
			return "", false, nil
		}
		if err != nil {
			return "", false, fmt.Errorf("resolve mention %q: %w", mention, err)
		}
		return resolved, true, nil
	}

	if name, ok := slots.String(entityType); ok {
		return name, true, nil
	}

	listed := slots.StringList(models.SlotListedItems)
	filters := FiltersFromSlots(r.schema, entityType, slots)
	if len(listed) == 0 || len(filters) == 0 {
		return "", false, nil
	}

	keyAttribute := r.schema.KeyOf(entityType)
	for _, item := range listed {
		_, err := r.kb.ValidateEntity(ctx, entityType, item, keyAttribute, filters)
		if errors.Is(err, kb.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("validate %s %q: %w", entityType, item, err)
		}
		return item, true, nil
	}
	return "", false, nil
}

// FiltersFromSlots collects the attribute filters the user has set. Every
// schema attribute of the type has a slot named after it, dashes replaced
// with underscores.
func FiltersFromSlots(s schema.Schema, entityType string, slots models.Slots) []kb.Filter {
	var filters []kb.Filter
	for _, attr := range s.AttributesOf(entityType) {
		if v, ok := slots.String(models.AttributeSlot(attr)); ok {
			filters = append(filters, kb.Filter{Key: attr, Value: v})
		}
	}
	return filters
}

// ResetAttributeSlots clears every set attribute slot of the type so stale
// filters do not leak into the next query.
func ResetAttributeSlots(s schema.Schema, entityType string, slots models.Slots, updates models.SlotUpdates) {
	for _, attr := range s.AttributesOf(entityType) {
		slot := models.AttributeSlot(attr)
		if _, ok := slots.String(slot); ok {
			updates.Clear(slot)
		}
	}
}
