package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/atlasfleet/dispatch-cli/internal/db"
	"github.com/atlasfleet/dispatch-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot store operations.
var preparedStatements = map[string]string{
	"insert_order":            `INSERT INTO orders (id, message_id, sender, subject, draft, created_at) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (message_id) DO NOTHING`,
	"get_order_by_message_id": `SELECT id, draft, created_at FROM orders WHERE message_id = $1`,
	"count_orders":            `SELECT count(*) FROM orders`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests to inject a mock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS orders (
	id         TEXT PRIMARY KEY,
	message_id TEXT NOT NULL UNIQUE,
	sender     TEXT NOT NULL DEFAULT '',
	subject    TEXT NOT NULL DEFAULT '',
	draft      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_orders_sender ON orders(sender);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveOrder inserts the draft as a new order unless one already exists for
// the same message id, in which case the existing id is returned untouched.
func (s *PostgresStore) SaveOrder(ctx context.Context, draft *model.OrderDraft) (string, bool, error) {
	if draft == nil || draft.MessageID == "" {
		return "", false, eris.New("postgres: draft missing message id")
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	draftJSON, err := json.Marshal(draft)
	if err != nil {
		return "", false, eris.Wrap(err, "postgres: marshal draft")
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO orders (id, message_id, sender, subject, draft, created_at) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (message_id) DO NOTHING`,
		id, draft.MessageID, draft.MessageSender, draft.MessageSubject, draftJSON, now,
	)
	if err != nil {
		return "", false, eris.Wrapf(err, "postgres: insert order for message %s", draft.MessageID)
	}

	if tag.RowsAffected() == 0 {
		existing, err := s.GetOrderByMessageID(ctx, draft.MessageID)
		if err != nil {
			return "", false, eris.Wrapf(err, "postgres: lookup existing order for message %s", draft.MessageID)
		}
		return existing.ID, false, nil
	}

	return id, true, nil
}

func (s *PostgresStore) GetOrderByMessageID(ctx context.Context, messageID string) (*model.Order, error) {
	var o model.Order
	var draftJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, draft, created_at FROM orders WHERE message_id = $1`,
		messageID,
	).Scan(&o.ID, &draftJSON, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get order for message %s", messageID)
	}

	if err := json.Unmarshal(draftJSON, &o.Draft); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal draft")
	}
	return &o, nil
}

func (s *PostgresStore) ListOrders(ctx context.Context, filter OrderFilter) ([]model.Order, error) {
	query := `SELECT id, draft, created_at FROM orders WHERE true`
	args := []any{}

	if filter.Sender != "" {
		args = append(args, filter.Sender)
		query += ` AND sender = $1`
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list orders")
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		var draftJSON []byte
		if err := rows.Scan(&o.ID, &draftJSON, &o.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan order")
		}
		if err := json.Unmarshal(draftJSON, &o.Draft); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal draft")
		}
		orders = append(orders, o)
	}
	return orders, eris.Wrap(rows.Err(), "postgres: list orders")
}

func (s *PostgresStore) CountOrders(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count orders")
	}
	return n, nil
}
