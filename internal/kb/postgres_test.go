package kb

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant-workers/internal/common/logger"
)

const testPrincipal = "mitchell.gillis@t-online.de"

func newTestStore(t *testing.T) (*GraphStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewGraphStore(db, testPrincipal, logger.NewNoOpLogger()), mock
}

func TestGraphStoreGetEntitiesPlain(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT e.id FROM entities e WHERE e.entity_type = $1")).
		WithArgs("bank", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT a.entity_id, a.name, a.value FROM entity_attributes a")).
		WithArgs(pq.Array([]int64{1, 2})).
		WillReturnRows(sqlmock.NewRows([]string{"entity_id", "name", "value"}).
			AddRow(1, "name", "N26").
			AddRow(1, "headquarters", "Berlin").
			AddRow(2, "name", "DKB").
			AddRow(2, "headquarters", "Berlin"))

	records, err := store.GetEntities(context.Background(), TypeBank, nil, 5)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "N26", records[0]["name"])
	assert.Equal(t, "DKB", records[1]["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGraphStoreGetEntitiesWithFilters(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("f.name = $2 AND f.value = $3")).
		WithArgs("bank", "headquarters", "Berlin", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	records, err := store.GetEntities(context.Background(), TypeBank,
		[]Filter{{Key: "headquarters", Value: "Berlin"}}, 5)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGraphStoreGetEntitiesAccount(t *testing.T) {
	store, mock := newTestStore(t)

	// The principal is the first query argument; accounts never come back
	// unscoped.
	mock.ExpectQuery(regexp.QuoteMeta("pe.value = $1")).
		WithArgs(testPrincipal, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))

	mock.ExpectQuery(regexp.QuoteMeta("FROM relation_attributes ra")).
		WithArgs(pq.Array([]int64{10})).
		WillReturnRows(sqlmock.NewRows([]string{"relation_id", "name", "value"}).
			AddRow(10, "identifier", "C-1001"))

	mock.ExpectQuery(regexp.QuoteMeta("FROM relation_roles rr")).
		WithArgs(pq.Array([]int64{10})).
		WillReturnRows(sqlmock.NewRows([]string{"relation_id", "role", "name", "value"}).
			AddRow(10, "customer", "email", testPrincipal).
			AddRow(10, "offer", "account-number", "DE1001").
			AddRow(10, "offer", "balance", "1200.5").
			AddRow(10, "provider", "name", "N26"))

	records, err := store.GetEntities(context.Background(), TypeAccount, nil, 5)
	require.NoError(t, err)
	require.Len(t, records, 1)

	acc := records[0]
	assert.Equal(t, "DE1001", acc["account-number"], "offer attributes are flattened to the top level")
	assert.Equal(t, "1200.5", acc["balance"])
	assert.NotContains(t, acc, RoleOffer)

	provider, err := acc.Resolve("provider.name")
	require.NoError(t, err)
	assert.Equal(t, "N26", provider)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGraphStoreGetEntitiesTransaction(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.relation_type = 'transaction'")).
		WithArgs(testPrincipal).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(20).AddRow(21))

	mock.ExpectQuery(regexp.QuoteMeta("FROM relation_attributes ra")).
		WithArgs(pq.Array([]int64{20, 21})).
		WillReturnRows(sqlmock.NewRows([]string{"relation_id", "name", "value"}).
			AddRow(20, "identifier", "T-9001").
			AddRow(20, "amount", "40").
			AddRow(21, "identifier", "T-9002").
			AddRow(21, "amount", "899.99"))

	mock.ExpectQuery(regexp.QuoteMeta("FROM relation_roles rr")).
		WithArgs(pq.Array([]int64{20, 21})).
		WillReturnRows(sqlmock.NewRows([]string{"relation_id", "role", "name", "value"}).
			AddRow(20, "account-of-creator", "account-number", "DE1001").
			AddRow(21, "account-of-creator", "account-number", "DE1002"))

	records, err := store.GetEntities(context.Background(), TypeTransaction, nil, 5)
	require.NoError(t, err)
	require.Len(t, records, 2)

	creator, err := records[0].Resolve(RoleCreatorAccount + ".account-number")
	require.NoError(t, err)
	assert.Equal(t, "DE1001", creator)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGraphStoreGetAttributeOf(t *testing.T) {
	t.Run("plain entity", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT a.value FROM entities e")).
			WithArgs("name", "N26", "headquarters", "bank").
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("Berlin"))

		values, err := store.GetAttributeOf(context.Background(), TypeBank, "name", "N26", "headquarters")
		require.NoError(t, err)
		require.Len(t, values, 1)
		assert.Equal(t, "Berlin", values[0])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("scoped account carries the principal", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT a.value FROM entities e")).
			WithArgs("account-number", "DE1001", "balance", "account", testPrincipal).
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("1200.5"))

		values, err := store.GetAttributeOf(context.Background(), TypeAccount, "account-number", "DE1001", "balance")
		require.NoError(t, err)
		require.Len(t, values, 1)
		assert.Equal(t, "1200.5", values[0])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("scoped relation carries the principal", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT a.value FROM relations r")).
			WithArgs("identifier", "T-9001", "amount", "transaction", testPrincipal).
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("40"))

		values, err := store.GetAttributeOf(context.Background(), TypeTransaction, "identifier", "T-9001", "amount")
		require.NoError(t, err)
		require.Len(t, values, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no rows means no values", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT a.value FROM entities e")).
			WithArgs("name", "Monzo", "headquarters", "bank").
			WillReturnRows(sqlmock.NewRows([]string{"value"}))

		values, err := store.GetAttributeOf(context.Background(), TypeBank, "name", "Monzo", "headquarters")
		require.NoError(t, err)
		assert.Empty(t, values)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGraphStoreValidateEntity(t *testing.T) {
	t.Run("unique match", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT e.id FROM entities e")).
			WithArgs("bank", "name", "N26", 2).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

		mock.ExpectQuery(regexp.QuoteMeta("FROM entity_attributes a")).
			WithArgs(pq.Array([]int64{1})).
			WillReturnRows(sqlmock.NewRows([]string{"entity_id", "name", "value"}).
				AddRow(1, "name", "N26"))

		rec, err := store.ValidateEntity(context.Background(), TypeBank, "N26", "name", nil)
		require.NoError(t, err)
		assert.Equal(t, "N26", rec["name"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ambiguous match", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT e.id FROM entities e")).
			WithArgs("bank", "headquarters", "Berlin", 2).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))

		mock.ExpectQuery(regexp.QuoteMeta("FROM entity_attributes a")).
			WithArgs(pq.Array([]int64{1, 2})).
			WillReturnRows(sqlmock.NewRows([]string{"entity_id", "name", "value"}).
				AddRow(1, "name", "N26").
				AddRow(2, "name", "DKB"))

		_, err := store.ValidateEntity(context.Background(), TypeBank, "Berlin", "headquarters", nil)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero matches", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT e.id FROM entities e")).
			WithArgs("bank", "name", "Monzo", 2).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := store.ValidateEntity(context.Background(), TypeBank, "Monzo", "name", nil)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGraphStoreLookup(t *testing.T) {
	t.Run("single row", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT mapping_value FROM lookup_tables")).
			WithArgs(TableEntityTypes, "payments").
			WillReturnRows(sqlmock.NewRows([]string{"mapping_value"}).AddRow("transaction"))

		v, err := store.Lookup(context.Background(), TableEntityTypes, "payments")
		require.NoError(t, err)
		assert.Equal(t, "transaction", v)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no rows", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT mapping_value FROM lookup_tables")).
			WithArgs(TableEntityTypes, "mortgages").
			WillReturnRows(sqlmock.NewRows([]string{"mapping_value"}))

		_, err := store.Lookup(context.Background(), TableEntityTypes, "mortgages")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ambiguous rows", func(t *testing.T) {
		store, mock := newTestStore(t)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT mapping_value FROM lookup_tables")).
			WithArgs(TableAttributes, "rate").
			WillReturnRows(sqlmock.NewRows([]string{"mapping_value"}).
				AddRow("interest-rate").AddRow("exchange-rate"))

		_, err := store.Lookup(context.Background(), TableAttributes, "rate")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
