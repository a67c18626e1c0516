package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a process-local DocumentStore. The proxy falls back to it when no
// bucket is configured, and tests use it as either backend.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]*memoryDoc
	seq         int64
	failErr     error
}

type memoryDoc struct {
	doc *Document
	seq int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]*memoryDoc)}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// Count returns the number of documents in a collection.
func (m *MemoryStore) Count(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.collections[collection])
}

func (m *MemoryStore) Create(ctx context.Context, collection, id string, data map[string]any) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if id == "" {
		id = uuid.NewString()
	}
	col, ok := m.collections[collection]
	if !ok {
		col = make(map[string]*memoryDoc)
		m.collections[collection] = col
	}

	now := time.Now().UTC()
	m.seq++
	doc := &Document{ID: id, CreatedAt: now, UpdatedAt: now, Data: Merge(data, nil)}
	col[id] = &memoryDoc{doc: doc, seq: m.seq}
	return copyDoc(doc), nil
}

// List returns matching documents, newest first.
func (m *MemoryStore) List(ctx context.Context, collection string, filter Filter) ([]*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matched := make([]*memoryDoc, 0, len(m.collections[collection]))
	for _, md := range m.collections[collection] {
		if filter.Matches(md.doc.Data) {
			matched = append(matched, md)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq > matched[j].seq })

	docs := make([]*Document, len(matched))
	for i, md := range matched {
		docs[i] = copyDoc(md.doc)
	}
	return docs, nil
}

func (m *MemoryStore) Update(ctx context.Context, collection, id string, patch map[string]any) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	md, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	md.doc.Data = Merge(md.doc.Data, patch)
	md.doc.UpdatedAt = time.Now().UTC()
	return copyDoc(md.doc), nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, ok := m.collections[collection][id]; !ok {
		return ErrNotFound
	}
	delete(m.collections[collection], id)
	return nil
}

func copyDoc(d *Document) *Document {
	c := *d
	c.Data = Merge(d.Data, nil)
	return &c
}
