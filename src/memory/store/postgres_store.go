package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Protocol-Lattice/go-recall/src/memory/model"
)

// PostgresStore persists memories in a PostgreSQL table. Embeddings are kept
// as float4 arrays; similarity math stays in the engine.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS %s (
	id            BIGSERIAL PRIMARY KEY,
	user_id       TEXT NOT NULL,
	session_id    TEXT NOT NULL DEFAULT '',
	memory_type   TEXT NOT NULL DEFAULT 'conversation',
	content       TEXT NOT NULL,
	metadata      TEXT NOT NULL DEFAULT '{}',
	embedding     REAL[],
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_embedded TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS %s_user_session_idx ON %s (user_id, session_id);
`

// NewPostgresStore connects to PostgreSQL using the given DSN. The table
// name defaults to "memories".
func NewPostgresStore(ctx context.Context, dsn, table string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	if table == "" {
		table = "memories"
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool, table: table}, nil
}

// CreateSchema implements SchemaInitializer.
func (ps *PostgresStore) CreateSchema(ctx context.Context) error {
	if ps == nil || ps.pool == nil {
		return errors.New("nil postgres store")
	}
	_, err := ps.pool.Exec(ctx, fmt.Sprintf(postgresSchema, ps.table, ps.table, ps.table))
	return err
}

func (ps *PostgresStore) WriteMemory(ctx context.Context, rec model.MemoryRecord) (int64, error) {
	if ps == nil || ps.pool == nil {
		return 0, errors.New("nil postgres store")
	}
	if rec.UserID == "" {
		return 0, errors.New("memory record requires a user id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Metadata == "" {
		rec.Metadata = "{}"
	}
	var lastEmbedded *time.Time
	if !rec.LastEmbedded.IsZero() {
		lastEmbedded = &rec.LastEmbedded
	}
	var id int64
	err := ps.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %s (user_id, session_id, memory_type, content, metadata, embedding, created_at, last_embedded)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`, ps.table),
		rec.UserID, rec.SessionID, rec.MemoryType, rec.Content, rec.Metadata,
		rec.Embedding, rec.CreatedAt, lastEmbedded,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert memory: %w", err)
	}
	return id, nil
}

func (ps *PostgresStore) ListMemories(ctx context.Context, userID, sessionID string) ([]model.MemoryRecord, error) {
	if ps == nil || ps.pool == nil {
		return nil, errors.New("nil postgres store")
	}
	query := fmt.Sprintf(`
		SELECT id, user_id, session_id, memory_type, content, metadata, embedding, created_at, last_embedded
		FROM %s WHERE user_id = $1`, ps.table)
	args := []any{userID}
	if sessionID != "" {
		query += ` AND (session_id = $2 OR session_id = '')`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := ps.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var out []model.MemoryRecord
	for rows.Next() {
		var rec model.MemoryRecord
		var lastEmbedded *time.Time
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.SessionID, &rec.MemoryType,
			&rec.Content, &rec.Metadata, &rec.Embedding, &rec.CreatedAt, &lastEmbedded); err != nil {
			return nil, err
		}
		if lastEmbedded != nil {
			rec.LastEmbedded = *lastEmbedded
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) UpdateEmbedding(ctx context.Context, id int64, embedding []float32, lastEmbedded time.Time) error {
	if ps == nil || ps.pool == nil {
		return errors.New("nil postgres store")
	}
	tag, err := ps.pool.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET embedding = $1, last_embedded = $2 WHERE id = $3`, ps.table),
		embedding, lastEmbedded, id)
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.New("memory not found")
	}
	return nil
}

func (ps *PostgresStore) DeleteMemory(ctx context.Context, ids []int64) error {
	if ps == nil || ps.pool == nil || len(ids) == 0 {
		return nil
	}
	_, err := ps.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, ps.table), ids)
	return err
}

func (ps *PostgresStore) Count(ctx context.Context, userID string) (int, error) {
	if ps == nil || ps.pool == nil {
		return 0, errors.New("nil postgres store")
	}
	var n int
	err := ps.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s WHERE user_id = $1`, ps.table), userID).Scan(&n)
	return n, err
}

// Close releases the connection pool.
func (ps *PostgresStore) Close() error {
	if ps != nil && ps.pool != nil {
		ps.pool.Close()
	}
	return nil
}
