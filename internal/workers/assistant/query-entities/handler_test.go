package queryentities

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
	mapper := resolve.NewMapper(g, nil, 0, log)
	return NewHandler(LoadConfig(), g, mapper, schema.Default(), log)
}

func TestExecuteRephrase(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)

	t.Run("missing entity type slot", func(t *testing.T) {
		output, err := h.Execute(ctx, models.Slots{})
		require.NoError(t, err)
		assert.True(t, output.Rephrase)
		assert.Empty(t, output.Messages)
	})

	t.Run("unknown entity type word", func(t *testing.T) {
		output, err := h.Execute(ctx, models.Slots{
			models.SlotEntityType: "mortgages",
		})
		require.NoError(t, err)
		assert.True(t, output.Rephrase)
	})
}

func TestExecuteListsBanks(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)

	output, err := h.Execute(ctx, models.Slots{
		models.SlotEntityType: "banks",
	})
	require.NoError(t, err)
	assert.False(t, output.Rephrase)

	require.Len(t, output.Messages, 6)
	assert.Equal(t, "Found the following 'bank' entities:", output.Messages[0])
	assert.Equal(t, "1: Commerzbank", output.Messages[1])
	assert.Equal(t, "2: Deutsche Bank", output.Messages[2])
	assert.Equal(t, "3: N26", output.Messages[3])
	assert.Equal(t, "4: Targobank", output.Messages[4])
	assert.Equal(t, "5: bunq", output.Messages[5])

	assert.Equal(t, "bank", output.Slots[models.SlotEntityType])
	assert.Equal(t, []string{"Commerzbank", "Deutsche Bank", "N26", "Targobank", "bunq"},
		output.Slots[models.SlotListedItems])
	assert.NotContains(t, output.Slots, "bank", "multi-hit listing must not pin the entity slot")
}

func TestExecuteAppliesAttributeFilters(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)

	output, err := h.Execute(ctx, models.Slots{
		models.SlotEntityType: "banks",
		"headquarters":        "Berlin",
	})
	require.NoError(t, err)

	require.Len(t, output.Messages, 3)
	assert.Equal(t, "1: DKB", output.Messages[1])
	assert.Equal(t, "2: N26", output.Messages[2])

	assert.Contains(t, output.Slots, "headquarters")
	assert.Nil(t, output.Slots["headquarters"], "attribute slots are cleared after the query")
}

func TestExecuteSingleHitPinsEntitySlot(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)

	output, err := h.Execute(ctx, models.Slots{
		models.SlotEntityType: "banks",
		"headquarters":        "Frankfurt am Main",
		"free_accounts":       "true",
	})
	require.NoError(t, err)

	require.Len(t, output.Messages, 2)
	assert.Equal(t, "1: Commerzbank", output.Messages[1])
	assert.Equal(t, "Commerzbank", output.Slots["bank"])
	assert.Equal(t, []string{"Commerzbank"}, output.Slots[models.SlotListedItems])
}

func TestExecuteEmptyResult(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)

	output, err := h.Execute(ctx, models.Slots{
		models.SlotEntityType: "banks",
		"country":             "France",
	})
	require.NoError(t, err)
	assert.False(t, output.Rephrase)
	require.Len(t, output.Messages, 1)
	assert.Equal(t, "I could not find any entities for 'bank'.", output.Messages[0])
	assert.Empty(t, output.Slots[models.SlotListedItems])
}

func TestExecuteTransactions(t *testing.T) {
	ctx := context.Background()
	h := newTestHandler(t)

	t.Run("filtered by the account slot", func(t *testing.T) {
		output, err := h.Execute(ctx, models.Slots{
			models.SlotEntityType: "transactions",
			kb.TypeAccount:        "DE1001",
		})
		require.NoError(t, err)

		require.Len(t, output.Messages, 3)
		assert.Equal(t, "Found the following 'transaction' entities:", output.Messages[0])
		assert.Equal(t, "1: 01.03.2020 (14:05:00), groceries, DE2001, 40 €", output.Messages[1])
		assert.Equal(t, "2: 02.03.2020 (08:00:00), rent march, DE2001, 899.99 €", output.Messages[2])
		assert.Equal(t, []string{"T-9001", "T-9002"}, output.Slots[models.SlotListedItems])
	})

	t.Run("no account slot lists all owned transactions", func(t *testing.T) {
		output, err := h.Execute(ctx, models.Slots{
			models.SlotEntityType: "payments",
		})
		require.NoError(t, err)
		assert.Len(t, output.Messages, 4)
	})
}

func TestExecuteTransactionPostFilterCap(t *testing.T) {
	ctx := context.Background()

	g := kb.NewMemoryGraph("carol@example.com")
	carol := kb.Record{"email": "carol@example.com"}
	mine := kb.Record{"account-number": "DE01"}
	other := kb.Record{"account-number": "DE02"}
	g.AddRelation(kb.TypeContract, kb.Record{"identifier": "C1", kb.RoleCustomer: carol, kb.RoleOffer: mine})
	g.AddRelation(kb.TypeContract, kb.Record{"identifier": "C2", kb.RoleCustomer: carol, kb.RoleOffer: other})
	g.AddLookup(kb.TableEntityTypes, "transactions", kb.TypeTransaction)

	for i := 0; i < 7; i++ {
		creator := mine
		if i >= 5 {
			creator = other
		}
		g.AddRelation(kb.TypeTransaction, kb.Record{
			"identifier":          string(rune('A' + i)),
			"reference":           "r",
			"amount":              1.0,
			kb.RoleCreatorAccount: creator,
			kb.RoleReceiverAccount: kb.Record{
				"account-number": "DE02",
			},
		})
	}

	log := logger.NewTestLogger(t)
	h := NewHandler(LoadConfig(), g, resolve.NewMapper(g, nil, 0, log), schema.Default(), log)

	output, err := h.Execute(ctx, models.Slots{
		models.SlotEntityType: "transactions",
		kb.TypeAccount:        "DE01",
	})
	require.NoError(t, err)

	listed, ok := output.Slots[models.SlotListedItems].([]string)
	require.True(t, ok)
	assert.Len(t, listed, 5, "post-filter caps at five matches")
}
