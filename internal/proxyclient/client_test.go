package proxyclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandoub-backend/internal/models"
	"mandoub-backend/internal/proxy"
	"mandoub-backend/internal/store"
)

func newProxy(t *testing.T, backend store.DocumentStore, timeout time.Duration) *Client {
	t.Helper()
	r := mux.NewRouter()
	proxy.NewHandler(backend, proxy.NewQueue(4), timeout).Register(r, "storeb")
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return New(srv.URL, "storeb", 5*time.Second)
}

func TestClientRoundTripThroughProxy(t *testing.T) {
	backend := store.NewMemoryStore()
	c := newProxy(t, backend, time.Second)
	ctx := context.Background()

	doc, err := c.Create(ctx, "representatives", "", map[string]any{
		"name": "Rep 1", "role": models.RoleDelegate, "correlationId": "corr-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "corr-1", doc.Data["correlationId"])

	docs, err := c.List(ctx, "representatives", store.Filter{"correlationId": "corr-1"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.ID, docs[0].ID)

	updated, err := c.Update(ctx, "representatives", doc.ID, map[string]any{"location": "Qena"})
	require.NoError(t, err)
	assert.Equal(t, "Qena", updated.Data["location"])

	require.NoError(t, c.Delete(ctx, "representatives", doc.ID))
	assert.ErrorIs(t, c.Delete(ctx, "representatives", doc.ID), store.ErrNotFound)

	docs, err = c.List(ctx, "representatives", nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestClientMapsProxyStatuses(t *testing.T) {
	backend := store.NewMemoryStore()
	c := newProxy(t, backend, time.Second)
	ctx := context.Background()

	_, err := c.Create(ctx, "submissions", "", map[string]any{"representativeName": "Rep 1"})
	assert.ErrorIs(t, err, models.ErrValidation)

	backend.FailWith(store.ErrRateLimited)
	_, err = c.List(ctx, "submissions", nil)
	assert.ErrorIs(t, err, store.ErrRateLimited)

	backend.FailWith(store.ErrNetwork)
	_, err = c.List(ctx, "submissions", nil)
	assert.ErrorIs(t, err, store.ErrNetwork)
}

func TestClientUnreachableProxyIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, "storeb", time.Second)
	_, err := c.List(context.Background(), "submissions", nil)
	assert.ErrorIs(t, err, store.ErrNetwork)
}

func TestClientNonJSONErrorBodyFallsBackToStatusText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("<html>slow down</html>"))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "storeb", time.Second)
	_, err := c.List(context.Background(), "submissions", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrRateLimited)
	assert.Contains(t, err.Error(), http.StatusText(http.StatusTooManyRequests))
}
