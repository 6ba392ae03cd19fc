package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"PoolsAgent/internal/domain"
)

const defaultBatchSize = 10

// PostgresRepository persists processed posts and serves settlement lookups.
type PostgresRepository struct {
	db        *sql.DB
	builder   sq.StatementBuilderType
	batchSize int
	logger    *slog.Logger
}

// NewPostgresRepository opens a connection pool against the given DSN.
func NewPostgresRepository(dsn string, batchSize int, logger *slog.Logger) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &PostgresRepository{
		db:        db,
		builder:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		batchSize: batchSize,
		logger:    logger,
	}, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Settled returns, for each given post id that already has a confirmed
// transaction, its settlement markers. Posts without a confirmed transaction
// are absent from the result and remain open for processing.
func (r *PostgresRepository) Settled(ctx context.Context, ids []string) (map[string]domain.Settlement, error) {
	if len(ids) == 0 {
		return map[string]domain.Settlement{}, nil
	}

	query, args, err := r.builder.
		Select("post_id", "pool_id", "transaction_hash").
		From("posts").
		Where("post_id = ANY(?)", pq.StringArray(ids)).
		Where(sq.NotEq{"transaction_hash": nil}).
		Where(sq.NotEq{"transaction_hash": ""}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build settled query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query settled posts: %w", err)
	}
	defer rows.Close()

	settled := make(map[string]domain.Settlement)
	for rows.Next() {
		var postID string
		var poolID, txHash sql.NullString
		if err := rows.Scan(&postID, &poolID, &txHash); err != nil {
			return nil, fmt.Errorf("scan settled row: %w", err)
		}
		settled[postID] = domain.Settlement{
			PoolID:          poolID.String,
			TransactionHash: txHash.String,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settled rows: %w", err)
	}
	return settled, nil
}

// UpsertPosts writes all records in concurrent fixed-size batches. A failed
// batch is logged and does not abort the others; the first batch error is
// returned after every batch has finished.
func (r *PostgresRepository) UpsertPosts(ctx context.Context, records []domain.PostRecord) error {
	if len(records) == 0 {
		return nil
	}

	var g errgroup.Group
	for start := 0; start < len(records); start += r.batchSize {
		end := start + r.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]
		g.Go(func() error {
			if err := r.upsertBatch(ctx, batch); err != nil {
				r.logger.Error("post batch upsert failed", "size", len(batch), "error", err)
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("upsert posts: %w", err)
	}
	return nil
}

func (r *PostgresRepository) upsertBatch(ctx context.Context, batch []domain.PostRecord) error {
	insert := r.builder.
		Insert("posts").
		Columns("post_id", "pool_id", "string_content", "json_content", "transaction_hash", "created_at")
	for _, rec := range batch {
		insert = insert.Values(
			rec.PostID,
			nullable(rec.PoolID),
			rec.StringContent,
			rec.JSONContent,
			nullable(rec.TransactionHash),
			rec.CreatedAt,
		)
	}
	insert = insert.Suffix(`ON CONFLICT (post_id) DO UPDATE SET
		pool_id = COALESCE(EXCLUDED.pool_id, posts.pool_id),
		string_content = EXCLUDED.string_content,
		json_content = EXCLUDED.json_content,
		transaction_hash = COALESCE(EXCLUDED.transaction_hash, posts.transaction_hash)`)

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("exec upsert: %w", err)
	}
	return nil
}

// nullable maps empty marker strings to NULL so existing settlement
// evidence is never overwritten by a blank value.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
