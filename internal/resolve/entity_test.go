package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/kb"
	"assistant-workers/internal/kb/schema"
	"assistant-workers/internal/models"
)

func newTestResolver() *EntityResolver {
	g := kb.NewDemoGraph()
	log := logger.NewNoOpLogger()
	return NewEntityResolver(NewMapper(g, nil, 0, log), g, schema.Default(), log)
}

func TestEntityResolverMention(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver()

	t.Run("mention picks from the listed items", func(t *testing.T) {
		slots := models.Slots{
			models.SlotMention:     "second",
			models.SlotListedItems: []interface{}{"N26", "DKB"},
		}
		name, ok, err := r.Entity(ctx, kb.TypeBank, slots)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "DKB", name)
	})

	t.Run("a set mention is authoritative", func(t *testing.T) {
		// The direct slot would resolve, but the dangling mention must not
		// silently fall through to it.
		slots := models.Slots{
			models.SlotMention:     "fourth",
			models.SlotListedItems: []interface{}{"N26", "DKB"},
			kb.TypeBank:            "N26",
		}
		_, ok, err := r.Entity(ctx, kb.TypeBank, slots)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestEntityResolverDirectSlot(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver()

	slots := models.Slots{kb.TypeBank: "N26"}
	name, ok, err := r.Entity(ctx, kb.TypeBank, slots)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "N26", name)
}

func TestEntityResolverDisambiguation(t *testing.T) {
	ctx := context.Background()
	r := newTestResolver()

	t.Run("attribute filters pick the single valid item", func(t *testing.T) {
		slots := models.Slots{
			models.SlotListedItems: []interface{}{
				kb.DemoPrincipal,
				"evelyn.burton@gmx.de",
			},
			"first_name": "Evelyn",
		}
		name, ok, err := r.Entity(ctx, kb.TypePerson, slots)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "evelyn.burton@gmx.de", name)
	})

	t.Run("no filters means no resolution", func(t *testing.T) {
		slots := models.Slots{
			models.SlotListedItems: []interface{}{"N26", "DKB"},
		}
		_, ok, err := r.Entity(ctx, kb.TypeBank, slots)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("filters matching nothing", func(t *testing.T) {
		slots := models.Slots{
			models.SlotListedItems: []interface{}{"N26", "DKB"},
			"headquarters":         "London",
		}
		_, ok, err := r.Entity(ctx, kb.TypeBank, slots)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestFiltersFromSlots(t *testing.T) {
	s := schema.Default()

	slots := models.Slots{
		"headquarters":  "Berlin",
		"free_accounts": "true",
		"balance":       nil,
		"unrelated":     "x",
	}
	filters := FiltersFromSlots(s, kb.TypeBank, slots)

	require.Len(t, filters, 2)
	assert.Contains(t, filters, kb.Filter{Key: "headquarters", Value: "Berlin"})
	assert.Contains(t, filters, kb.Filter{Key: "free-accounts", Value: "true"})
}

func TestResetAttributeSlots(t *testing.T) {
	s := schema.Default()

	slots := models.Slots{
		"headquarters": "Berlin",
		"country":      "Germany",
		"name":         nil,
	}
	updates := models.SlotUpdates{}
	ResetAttributeSlots(s, kb.TypeBank, slots, updates)

	require.Len(t, updates, 2)
	assert.Contains(t, updates, "headquarters")
	assert.Contains(t, updates, "country")
	assert.Nil(t, updates["headquarters"])
}
