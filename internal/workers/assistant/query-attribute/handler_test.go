package queryattribute

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/kb"
	"assistant-workers/internal/kb/schema"
	"assistant-workers/internal/models"
	"assistant-workers/internal/resolve"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	g := kb.NewDemoGraph()
	log := logger.NewTestLogger(t)
	s := schema.Default()
	mapper := resolve.NewMapper(g, nil, 0, log)
	resolver := resolve.NewEntityResolver(mapper, g, s, log)
	return NewHandler(LoadConfig(), g, mapper, resolver, s, log)
}

func TestExecuteDirectEntity(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)

	output, err := h.Execute(ctx, models.Slots{
		models.SlotEntityType: "bank",
		models.SlotAttribute:  "HQ",
		"bank":                "N26",
	})
	require.NoError(t, err)
	assert.False(t, output.Rephrase)

	require.Len(t, output.Messages, 1)
	assert.Equal(t, "N26 has the value 'Berlin' for attribute 'headquarters'.", output.Messages[0])

	assert.Equal(t, "N26", output.Slots["bank"])
	assert.Contains(t, output.Slots, models.SlotMention)
	assert.Nil(t, output.Slots[models.SlotMention])
}

func TestExecuteMentionedEntity(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)

	output, err := h.Execute(ctx, models.Slots{
		models.SlotEntityType:  "banks",
		models.SlotAttribute:   "country",
		models.SlotMention:     "second",
		models.SlotListedItems: []interface{}{"N26", "bunq"},
	})
	require.NoError(t, err)

	require.Len(t, output.Messages, 1)
	assert.Equal(t, "bunq has the value 'Netherlands' for attribute 'country'.", output.Messages[0])
	assert.Equal(t, "bunq", output.Slots["bank"])
}

func TestExecuteScopedAccountBalance(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)

	output, err := h.Execute(ctx, models.Slots{
		models.SlotEntityType: "account",
		models.SlotAttribute:  "balance",
		"account":             "DE1001",
	})
	require.NoError(t, err)

	require.Len(t, output.Messages, 1)
	assert.Equal(t, "DE1001 has the value '1200.5' for attribute 'balance'.", output.Messages[0])
}

func TestExecuteNoValidValue(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)

	t.Run("entity outside the principal's scope", func(t *testing.T) {
		output, err := h.Execute(ctx, models.Slots{
			models.SlotEntityType: "account",
			models.SlotAttribute:  "balance",
			"account":             "DE2001",
		})
		require.NoError(t, err)
		require.Len(t, output.Messages, 1)
		assert.Equal(t, "Did not find a valid value for attribute 'balance' for entity 'DE2001'.",
			output.Messages[0])
	})

	t.Run("ambiguous key yields no valid value", func(t *testing.T) {
		g := kb.NewMemoryGraph("nobody@example.com")
		g.AddEntity(kb.TypeBank, kb.Record{"name": "Twin", "country": "Germany"})
		g.AddEntity(kb.TypeBank, kb.Record{"name": "Twin", "country": "Austria"})
		g.AddLookup(kb.TableEntityTypes, "bank", kb.TypeBank)
		g.AddLookup(kb.TableAttributes, "country", "country")

		log := logger.NewTestLogger(t)
		s := schema.Default()
		mapper := resolve.NewMapper(g, nil, 0, log)
		h := NewHandler(LoadConfig(), g, mapper, resolve.NewEntityResolver(mapper, g, s, log), s, log)

		output, err := h.Execute(ctx, models.Slots{
			models.SlotEntityType: "bank",
			models.SlotAttribute:  "country",
			"bank":                "Twin",
		})
		require.NoError(t, err)
		require.Len(t, output.Messages, 1)
		assert.Equal(t, "Did not find a valid value for attribute 'country' for entity 'Twin'.",
			output.Messages[0])
	})
}

func TestExecuteRephrase(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)

	t.Run("unknown entity type", func(t *testing.T) {
		output, err := h.Execute(ctx, models.Slots{
			models.SlotEntityType: "mortgages",
			models.SlotAttribute:  "balance",
		})
		require.NoError(t, err)
		assert.True(t, output.Rephrase)
		assert.Empty(t, output.Slots)
	})

	t.Run("unknown attribute clears mention and filters", func(t *testing.T) {
		output, err := h.Execute(ctx, models.Slots{
			models.SlotEntityType: "bank",
			models.SlotAttribute:  "swiftness",
			"bank":                "N26",
			"headquarters":        "Berlin",
		})
		require.NoError(t, err)
		assert.True(t, output.Rephrase)
		assert.Contains(t, output.Slots, models.SlotMention)
		assert.Contains(t, output.Slots, "headquarters")
		assert.Nil(t, output.Slots["headquarters"])
	})

	t.Run("no entity name resolvable", func(t *testing.T) {
		output, err := h.Execute(ctx, models.Slots{
			models.SlotEntityType: "bank",
			models.SlotAttribute:  "country",
		})
		require.NoError(t, err)
		assert.True(t, output.Rephrase)
	})

	t.Run("dangling mention does not fall through", func(t *testing.T) {
		output, err := h.Execute(ctx, models.Slots{
			models.SlotEntityType:  "bank",
			models.SlotAttribute:   "country",
			models.SlotMention:     "fourth",
			models.SlotListedItems: []interface{}{"N26", "bunq"},
			"bank":                 "N26",
		})
		require.NoError(t, err)
		assert.True(t, output.Rephrase)
	})
}

func TestExecuteDisambiguatesByAttributes(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)

	output, err := h.Execute(ctx, models.Slots{
		models.SlotEntityType: "people",
		models.SlotAttribute:  "gender",
		models.SlotListedItems: []interface{}{
			kb.DemoPrincipal,
			"evelyn.burton@gmx.de",
		},
		"first_name": "Evelyn",
	})
	require.NoError(t, err)

	require.Len(t, output.Messages, 1)
	assert.Equal(t, "evelyn.burton@gmx.de has the value 'female' for attribute 'gender'.",
		output.Messages[0])
	assert.Equal(t, "evelyn.burton@gmx.de", output.Slots["person"])
	assert.Nil(t, output.Slots["first_name"])
}
