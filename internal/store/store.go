package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrNetwork     = errors.New("network error")
)

// Document is one stored record. ID is generated by the store that holds it;
// the same logical record has a different ID in every store.
type Document struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Data      map[string]any `json:"data"`
}

// Filter selects documents whose fields equal the given values exactly.
// No trimming or case folding is applied.
type Filter map[string]any

// DocumentStore is the contract both backends (and the proxy client) satisfy.
type DocumentStore interface {
	// Create stores data under id, or under a store-generated id when id is empty.
	Create(ctx context.Context, collection, id string, data map[string]any) (*Document, error)
	List(ctx context.Context, collection string, filter Filter) ([]*Document, error)
	// Update merges patch into the stored fields.
	Update(ctx context.Context, collection, id string, patch map[string]any) (*Document, error)
	Delete(ctx context.Context, collection, id string) error
}

// Matches reports whether data satisfies every filter field.
func (f Filter) Matches(data map[string]any) bool {
	for key, want := range f {
		got, ok := data[key]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// Merge returns a copy of data with patch applied.
func Merge(data, patch map[string]any) map[string]any {
	out := make(map[string]any, len(data)+len(patch))
	for k, v := range data {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
