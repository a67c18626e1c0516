package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mandoub-backend/internal/store"
)

// DocumentRepository is store A: one JSONB row per document.
type DocumentRepository struct {
	DB *pgxpool.Pool
}

func NewDocumentRepository(db *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

func (r *DocumentRepository) Create(ctx context.Context, collection, id string, data map[string]any) (*store.Document, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	query := `
		INSERT INTO documents (id, collection, data)
		VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3)
		RETURNING id, created_at, updated_at, data
	`

	doc, err := scanDocument(r.DB.QueryRow(ctx, query, id, collection, raw))
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

// List returns documents of a collection newest first. The filter is evaluated
// with JSONB containment, which compares values exactly.
func (r *DocumentRepository) List(ctx context.Context, collection string, filter store.Filter) ([]*store.Document, error) {
	query, args, err := listQuery(collection, filter)
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*store.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *DocumentRepository) Update(ctx context.Context, collection, id string, patch map[string]any) (*store.Document, error) {
	raw, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}

	query := `
		UPDATE documents
		SET data = data || $1::jsonb, updated_at = NOW()
		WHERE collection = $2 AND id = $3
		RETURNING id, created_at, updated_at, data
	`

	doc, err := scanDocument(r.DB.QueryRow(ctx, query, raw, collection, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, collection, id string) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// listQuery builds the List statement. Filter values go into the containment
// document untouched: no trimming and no case folding.
func listQuery(collection string, filter store.Filter) (string, []any, error) {
	query := `
		SELECT id, created_at, updated_at, data
		FROM documents
		WHERE collection = $1
	`
	args := []any{collection}

	if len(filter) > 0 {
		raw, err := json.Marshal(filter)
		if err != nil {
			return "", nil, fmt.Errorf("encode filter: %w", err)
		}
		query += ` AND data @> $2::jsonb`
		args = append(args, raw)
	}
	query += ` ORDER BY created_at DESC, id`
	return query, args, nil
}

func scanDocument(row pgx.Row) (*store.Document, error) {
	doc := &store.Document{}
	var raw []byte
	if err := row.Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt, &raw); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	return doc, nil
}
