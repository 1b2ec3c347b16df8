package resolveentity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/kb"
	"assistant-workers/internal/models"
	"assistant-workers/internal/resolve"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	log := logger.NewTestLogger(t)
	mapper := resolve.NewMapper(kb.NewDemoGraph(), nil, 0, log)
	return NewHandler(LoadConfig(), mapper, log)
}

func TestExecuteMention(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)

	t.Run("mention resolves into the listed items", func(t *testing.T) {
		output, err := h.Execute(ctx, models.Slots{
			models.SlotEntityType:  "bank",
			models.SlotMention:     "second",
			models.SlotListedItems: []interface{}{"N26", "bunq"},
		})
		require.NoError(t, err)
		assert.False(t, output.Rephrase)
		assert.Equal(t, "bunq", output.Slots["bank"])
		assert.Nil(t, output.Slots[models.SlotMention])
	})

	t.Run("dangling mention fails without fallback", func(t *testing.T) {
		output, err := h.Execute(ctx, models.Slots{
			models.SlotEntityType:  "bank",
			models.SlotMention:     "fourth",
			models.SlotListedItems: []interface{}{"N26", "bunq"},
			"bank":                 "N26",
		})
		require.NoError(t, err)
		assert.True(t, output.Rephrase)
		assert.Contains(t, output.Slots, "bank")
		assert.Nil(t, output.Slots["bank"])
		assert.Nil(t, output.Slots[models.SlotMention])
	})
}

func TestExecuteDirectValue(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)

	t.Run("accepted when listed", func(t *testing.T) {
		output, err := h.Execute(ctx, models.Slots{
			models.SlotEntityType:  "bank",
			models.SlotListedItems: []interface{}{"N26", "bunq"},
			"bank":                 "bunq",
		})
		require.NoError(t, err)
		assert.False(t, output.Rephrase)
		assert.Equal(t, "bunq", output.Slots["bank"])
	})

	t.Run("rejected when not listed", func(t *testing.T) {
		output, err := h.Execute(ctx, models.Slots{
			models.SlotEntityType:  "bank",
			models.SlotListedItems: []interface{}{"N26", "bunq"},
			"bank":                 "Monzo",
		})
		require.NoError(t, err)
		assert.True(t, output.Rephrase)
		assert.Nil(t, output.Slots["bank"])
	})
}

func TestExecuteRephrase(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)

	t.Run("missing entity type", func(t *testing.T) {
		output, err := h.Execute(ctx, models.Slots{
			models.SlotMention: "first",
		})
		require.NoError(t, err)
		assert.True(t, output.Rephrase)
		assert.Empty(t, output.Slots)
	})

	t.Run("nothing to resolve from", func(t *testing.T) {
		output, err := h.Execute(ctx, models.Slots{
			models.SlotEntityType: "bank",
		})
		require.NoError(t, err)
		assert.True(t, output.Rephrase)
		assert.Contains(t, output.Slots, "bank")
		assert.Nil(t, output.Slots["bank"])
	})
}
