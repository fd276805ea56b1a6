package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/atlasfleet/dispatch-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used for
// single-operator deployments that do not run a Postgres server.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS orders (
	id         TEXT PRIMARY KEY,
	message_id TEXT NOT NULL UNIQUE,
	sender     TEXT NOT NULL DEFAULT '',
	subject    TEXT NOT NULL DEFAULT '',
	draft      TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_sender ON orders(sender);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveOrder inserts the draft as a new order unless one already exists for
// the same message id, in which case the existing id is returned untouched.
func (s *SQLiteStore) SaveOrder(ctx context.Context, draft *model.OrderDraft) (string, bool, error) {
	if draft == nil || draft.MessageID == "" {
		return "", false, eris.New("sqlite: draft missing message id")
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	draftJSON, err := json.Marshal(draft)
	if err != nil {
		return "", false, eris.Wrap(err, "sqlite: marshal draft")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, message_id, sender, subject, draft, created_at) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (message_id) DO NOTHING`,
		id, draft.MessageID, draft.MessageSender, draft.MessageSubject, string(draftJSON), now,
	)
	if err != nil {
		return "", false, eris.Wrapf(err, "sqlite: insert order for message %s", draft.MessageID)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return "", false, eris.Wrap(err, "sqlite: rows affected")
	}
	if affected == 0 {
		existing, err := s.GetOrderByMessageID(ctx, draft.MessageID)
		if err != nil {
			return "", false, eris.Wrapf(err, "sqlite: lookup existing order for message %s", draft.MessageID)
		}
		return existing.ID, false, nil
	}

	return id, true, nil
}

func (s *SQLiteStore) GetOrderByMessageID(ctx context.Context, messageID string) (*model.Order, error) {
	var o model.Order
	var draftJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, draft, created_at FROM orders WHERE message_id = ?`,
		messageID,
	).Scan(&o.ID, &draftJSON, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get order for message %s", messageID)
	}

	if err := json.Unmarshal([]byte(draftJSON), &o.Draft); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal draft")
	}
	return &o, nil
}

func (s *SQLiteStore) ListOrders(ctx context.Context, filter OrderFilter) ([]model.Order, error) {
	query := `SELECT id, draft, created_at FROM orders WHERE true`
	args := []any{}

	if filter.Sender != "" {
		query += ` AND sender = ?`
		args = append(args, filter.Sender)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list orders")
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		var draftJSON string
		if err := rows.Scan(&o.ID, &draftJSON, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan order")
		}
		if err := json.Unmarshal([]byte(draftJSON), &o.Draft); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal draft")
		}
		orders = append(orders, o)
	}
	return orders, eris.Wrap(rows.Err(), "sqlite: list orders")
}

func (s *SQLiteStore) CountOrders(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM orders`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count orders")
	}
	return n, nil
}
