package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasfleet/dispatch-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

func testDraft() *model.OrderDraft {
	return &model.OrderDraft{
		LoadingAddress:   "Havnegade 12, 9340 Asaa, Denmark",
		UnloadingAddress: "Speicherstadt 4, 20457 Hamburg, Germany",
		CargoDescription: "frozen fish",
		MessageID:        "m-1",
		MessageSender:    "ops@example.com",
		MessageSubject:   "Transport Asaa - Hamburg",
	}
}

func TestPostgresStore_SaveOrder_Inserts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(pgxmock.AnyArg(), "m-1", "ops@example.com", "Transport Asaa - Hamburg", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, created, err := s.SaveOrder(context.Background(), testDraft())
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveOrder_IdempotentOnConflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	draftJSON, err := json.Marshal(testDraft())
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO orders`).
		WithArgs(pgxmock.AnyArg(), "m-1", "ops@example.com", "Transport Asaa - Hamburg", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(`SELECT id, draft, created_at FROM orders WHERE message_id = \$1`).
		WithArgs("m-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "draft", "created_at"}).
			AddRow("existing-id", draftJSON, time.Now().UTC()))

	id, created, err := s.SaveOrder(context.Background(), testDraft())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "existing-id", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveOrder_MissingMessageID(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	_, _, err := s.SaveOrder(context.Background(), &model.OrderDraft{})
	assert.Error(t, err)
}

func TestPostgresStore_GetOrderByMessageID_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, draft, created_at FROM orders WHERE message_id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetOrderByMessageID(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetOrderByMessageID_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	draftJSON, err := json.Marshal(testDraft())
	require.NoError(t, err)
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, draft, created_at FROM orders WHERE message_id = \$1`).
		WithArgs("m-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "draft", "created_at"}).
			AddRow("order-1", draftJSON, created))

	o, err := s.GetOrderByMessageID(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", o.ID)
	assert.Equal(t, "frozen fish", o.Draft.CargoDescription)
	assert.Equal(t, created, o.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListOrders_WithFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	draftJSON, err := json.Marshal(testDraft())
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, draft, created_at FROM orders WHERE true AND sender = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("ops@example.com", 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "draft", "created_at"}).
			AddRow("order-1", draftJSON, time.Now().UTC()))

	orders, err := s.ListOrders(context.Background(), OrderFilter{Sender: "ops@example.com", Limit: 10})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "order-1", orders[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountOrders(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM orders`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	n, err := s.CountOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS orders`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
