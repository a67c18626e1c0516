package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"mandoub-backend/internal/models"
)

type OutboxRepository struct {
	DB *pgxpool.Pool
}

func NewOutboxRepository(db *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{DB: db}
}

func (r *OutboxRepository) Enqueue(ctx context.Context, entry *models.OutboxEntry) error {
	raw, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("encode outbox payload: %w", err)
	}

	query := `
		INSERT INTO outbox (correlation_id, target_store, operation, collection, payload, last_error)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	return r.DB.QueryRow(ctx, query,
		entry.CorrelationID, entry.TargetStore, entry.Operation, entry.Collection, raw, entry.LastError,
	).Scan(&entry.ID, &entry.CreatedAt)
}

// ListPending returns the oldest pending entries.
func (r *OutboxRepository) ListPending(ctx context.Context, limit int) ([]*models.OutboxEntry, error) {
	query := `
		SELECT id, correlation_id, target_store, operation, collection, payload, attempts, last_error, status, created_at
		FROM outbox
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1
	`

	rows, err := r.DB.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.OutboxEntry
	for rows.Next() {
		e := &models.OutboxEntry{}
		var raw []byte
		if err := rows.Scan(&e.ID, &e.CorrelationID, &e.TargetStore, &e.Operation, &e.Collection,
			&raw, &e.Attempts, &e.LastError, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &e.Payload); err != nil {
			return nil, fmt.Errorf("decode outbox payload %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *OutboxRepository) MarkDone(ctx context.Context, id int64) error {
	_, err := r.DB.Exec(ctx, `UPDATE outbox SET status = 'done', updated_at = NOW() WHERE id = $1`, id)
	return err
}

// MarkFailed records a failed attempt. The entry is parked once maxAttempts is reached.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, lastErr string, maxAttempts int) error {
	query := `
		UPDATE outbox
		SET attempts = attempts + 1,
		    last_error = $2,
		    status = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE 'pending' END,
		    updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.DB.Exec(ctx, query, id, lastErr, maxAttempts)
	return err
}

// CountByStatus powers the admin outbox summary.
func (r *OutboxRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.Query(ctx, `SELECT status, COUNT(*) FROM outbox GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
