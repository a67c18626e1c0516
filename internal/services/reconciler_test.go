package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandoub-backend/internal/models"
	"mandoub-backend/internal/store"
)

func newTestReconciler() (*Reconciler, *store.MemoryStore, *store.MemoryStore, *memOutbox) {
	a := store.NewMemoryStore()
	b := store.NewMemoryStore()
	r := NewReconciler(a, b)
	ob := &memOutbox{}
	r.SetOutbox(ob)
	return r, a, b, ob
}

func villageA() *models.Submission {
	return &models.Submission{
		VillageName:        "Village A",
		RepresentativeName: "Rep 1",
		TotalPeople:        100,
		AmountPerPerson:    50,
		TotalAmount:        5000,
	}
}

func TestWriteSucceedsWhenStoreBFails(t *testing.T) {
	r, a, b, ob := newTestReconciler()
	b.FailWith(errors.New("HTTP 500"))

	res, err := r.Write(context.Background(), villageA())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, SavedStoreA, res.Saved)
	assert.True(t, res.PerStore.StoreA.Success)
	assert.NotEmpty(t, res.PerStore.StoreA.ID)
	assert.False(t, res.PerStore.StoreB.Success)
	assert.Contains(t, res.PerStore.StoreB.Error, "HTTP 500")
	assert.Equal(t, 1, a.Count("submissions"))
	assert.Equal(t, 0, b.Count("submissions"))

	pending := ob.pending()
	require.Len(t, pending, 1)
	assert.Equal(t, models.StoreB, pending[0].TargetStore)
	assert.Equal(t, models.OutboxCreate, pending[0].Operation)
	assert.Equal(t, res.CorrelationID, pending[0].CorrelationID)
}

func TestWriteSucceedsWhenStoreAFails(t *testing.T) {
	r, a, b, _ := newTestReconciler()
	a.FailWith(store.ErrNetwork)

	res, err := r.Write(context.Background(), villageA())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, SavedStoreB, res.Saved)
	assert.False(t, res.PerStore.StoreA.Success)
	assert.ErrorIs(t, res.PerStore.StoreA.Err(), store.ErrNetwork)
	assert.True(t, res.PerStore.StoreB.Success)
	assert.Equal(t, 0, a.Count("submissions"))
	assert.Equal(t, 1, b.Count("submissions"))
}

func TestWriteFailsWhenBothFail(t *testing.T) {
	r, a, b, ob := newTestReconciler()
	a.FailWith(errors.New("store a down"))
	b.FailWith(errors.New("store b down"))

	res, err := r.Write(context.Background(), villageA())
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, SavedNone, res.Saved)
	assert.Contains(t, res.PerStore.StoreA.Error, "store a down")
	assert.Contains(t, res.PerStore.StoreB.Error, "store b down")
	assert.Empty(t, ob.pending())
}

func TestWriteRejectsInvalidRecordBeforeStores(t *testing.T) {
	r, a, b, _ := newTestReconciler()

	_, err := r.Write(context.Background(), &models.Submission{RepresentativeName: "Rep 1"})
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Equal(t, 0, a.Count("submissions"))
	assert.Equal(t, 0, b.Count("submissions"))
}

func TestWriteCallsStoresConcurrently(t *testing.T) {
	started := make(chan struct{})
	a := &gateStore{MemoryStore: store.NewMemoryStore(), wait: started}
	b := &gateStore{MemoryStore: store.NewMemoryStore(), signal: started}
	r := NewReconciler(a, b)

	done := make(chan *WriteResult, 1)
	go func() {
		res, _ := r.Write(context.Background(), villageA())
		done <- res
	}()

	select {
	case res := <-done:
		assert.Equal(t, SavedBoth, res.Saved)
	case <-time.After(2 * time.Second):
		t.Fatal("store A waited on store B: calls were not concurrent")
	}
}

// gateStore lets one store's Create wait until the other's has started.
type gateStore struct {
	*store.MemoryStore
	wait   chan struct{}
	signal chan struct{}
}

func (g *gateStore) Create(ctx context.Context, collection, id string, data map[string]any) (*store.Document, error) {
	if g.signal != nil {
		close(g.signal)
	}
	if g.wait != nil {
		<-g.wait
	}
	return g.MemoryStore.Create(ctx, collection, id, data)
}

func TestWriteStampsDerivedFields(t *testing.T) {
	r, a, _, _ := newTestReconciler()

	_, err := r.Write(context.Background(), &models.Submission{
		VillageName: "Village B", RepresentativeName: "Rep 2", TotalPeople: 4,
	})
	require.NoError(t, err)

	docs, err := a.List(context.Background(), "submissions", nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.EqualValues(t, 50, docs[0].Data["amountPerPerson"])
	assert.EqualValues(t, 200, docs[0].Data["totalAmount"])
	assert.NotEmpty(t, docs[0].Data["correlationId"])
	assert.NotEmpty(t, docs[0].Data["timestamp"])
}

func TestSameSubmissionTwiceIsStoredTwice(t *testing.T) {
	r, a, b, _ := newTestReconciler()
	ctx := context.Background()

	first, err := r.Write(ctx, villageA())
	require.NoError(t, err)
	second, err := r.Write(ctx, villageA())
	require.NoError(t, err)

	assert.NotEqual(t, first.PerStore.StoreA.ID, second.PerStore.StoreA.ID)
	assert.NotEqual(t, first.PerStore.StoreB.ID, second.PerStore.StoreB.ID)
	assert.NotEqual(t, first.CorrelationID, second.CorrelationID)
	assert.Equal(t, 2, a.Count("submissions"))
	assert.Equal(t, 2, b.Count("submissions"))
}

func TestReadFailsOverToStoreB(t *testing.T) {
	r, a, b, _ := newTestReconciler()
	ctx := context.Background()

	_, err := b.Create(ctx, "submissions", "", map[string]any{"villageName": "only in B"})
	require.NoError(t, err)
	a.FailWith(errors.New("store a down"))

	res, err := r.Read(ctx, models.KindSubmission)
	require.NoError(t, err)
	assert.Equal(t, models.StoreB, res.Source)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "only in B", res.Documents[0].Data["villageName"])
}

func TestReadFailsWhenBothFail(t *testing.T) {
	r, a, b, _ := newTestReconciler()
	a.FailWith(errors.New("store a down"))
	b.FailWith(store.ErrRateLimited)

	_, err := r.Read(context.Background(), models.KindSubmission)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store a down")
	assert.ErrorIs(t, err, store.ErrRateLimited)
}

func TestStoresDivergeWithoutRepair(t *testing.T) {
	r, a, b, _ := newTestReconciler()
	r.SetOutbox(nil)
	ctx := context.Background()

	b.FailWith(errors.New("HTTP 500"))
	res, err := r.Write(ctx, villageA())
	require.NoError(t, err)
	b.FailWith(nil)

	resA, err := a.List(ctx, "submissions", nil)
	require.NoError(t, err)
	resB, err := b.List(ctx, "submissions", nil)
	require.NoError(t, err)
	assert.Len(t, resA, 1)
	assert.Empty(t, resB)

	report, err := r.Drift(ctx, models.KindSubmission)
	require.NoError(t, err)
	assert.False(t, report.InSync())
	assert.Equal(t, []string{res.CorrelationID}, report.OnlyInA)
	assert.Empty(t, report.OnlyInB)
}

func TestDeleteByMatchIsExact(t *testing.T) {
	r, a, b, _ := newTestReconciler()
	ctx := context.Background()

	_, err := r.Write(ctx, &models.Representative{Name: "Ahmed ", Role: models.RoleDelegate})
	require.NoError(t, err)

	res := r.Delete(ctx, models.KindRepresentative, Ref{Match: store.Filter{"name": "Ahmed", "role": models.RoleDelegate}})
	assert.False(t, res.Success)
	assert.True(t, res.PerStore.StoreA.NotFound)
	assert.True(t, res.PerStore.StoreB.NotFound)
	assert.Empty(t, res.PerStore.StoreB.Error)
	assert.Equal(t, 1, a.Count("representatives"))
	assert.Equal(t, 1, b.Count("representatives"))

	res = r.Delete(ctx, models.KindRepresentative, Ref{Match: store.Filter{"name": "ahmed ", "role": models.RoleDelegate}})
	assert.True(t, res.PerStore.StoreB.NotFound)

	res = r.Delete(ctx, models.KindRepresentative, Ref{Match: store.Filter{"name": "Ahmed ", "role": models.RoleDelegate}})
	assert.True(t, res.Success)
	assert.Equal(t, 0, a.Count("representatives"))
	assert.Equal(t, 0, b.Count("representatives"))
}

func TestDeleteByCorrelationID(t *testing.T) {
	r, a, b, _ := newTestReconciler()
	ctx := context.Background()

	written, err := r.Write(ctx, villageA())
	require.NoError(t, err)
	require.NotEqual(t, written.PerStore.StoreA.ID, written.PerStore.StoreB.ID)

	res := r.Delete(ctx, models.KindSubmission, Ref{CorrelationID: written.CorrelationID})
	assert.True(t, res.Success)
	assert.Equal(t, written.PerStore.StoreA.ID, res.PerStore.StoreA.ID)
	assert.Equal(t, written.PerStore.StoreB.ID, res.PerStore.StoreB.ID)
	assert.Equal(t, 0, a.Count("submissions"))
	assert.Equal(t, 0, b.Count("submissions"))
}

func TestDeleteSucceedsOnPrimaryWhenSecondaryMissing(t *testing.T) {
	r, a, _, _ := newTestReconciler()
	ctx := context.Background()

	doc, err := a.Create(ctx, "submissions", "", map[string]any{"villageName": "A only"})
	require.NoError(t, err)

	res := r.Delete(ctx, models.KindSubmission, Ref{IDA: doc.ID, Match: store.Filter{"villageName": "A only"}})
	assert.True(t, res.Success)
	assert.True(t, res.PerStore.StoreB.NotFound)
}

func TestDeleteFailsWhenPrimaryFails(t *testing.T) {
	r, a, b, ob := newTestReconciler()
	ctx := context.Background()

	written, err := r.Write(ctx, villageA())
	require.NoError(t, err)
	a.FailWith(errors.New("store a down"))

	res := r.Delete(ctx, models.KindSubmission, Ref{CorrelationID: written.CorrelationID})
	assert.False(t, res.Success)
	assert.True(t, res.PerStore.StoreB.Success)
	assert.Equal(t, 0, b.Count("submissions"))

	pending := ob.pending()
	require.Len(t, pending, 1)
	assert.Equal(t, models.StoreA, pending[0].TargetStore)
	assert.Equal(t, models.OutboxDelete, pending[0].Operation)
}

func TestUpdateResolvesPerStore(t *testing.T) {
	r, a, b, _ := newTestReconciler()
	ctx := context.Background()

	written, err := r.Write(ctx, &models.Representative{Name: "Rep 1", Role: models.RoleSupervisor})
	require.NoError(t, err)

	res := r.Update(ctx, models.KindRepresentative, Ref{CorrelationID: written.CorrelationID}, map[string]any{"location": "Sohag"})
	assert.True(t, res.Success)

	for _, s := range []*store.MemoryStore{a, b} {
		docs, err := s.List(ctx, "representatives", nil)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Sohag", docs[0].Data["location"])
		assert.Equal(t, "Rep 1", docs[0].Data["name"])
	}
}

func TestClearAndDeleteWhere(t *testing.T) {
	r, a, b, _ := newTestReconciler()
	ctx := context.Background()

	for _, name := range []string{"Rep 1", "Rep 1", "Rep 2"} {
		s := villageA()
		s.RepresentativeName = name
		_, err := r.Write(ctx, s)
		require.NoError(t, err)
	}

	res := r.DeleteWhere(ctx, models.KindSubmission, func(doc *store.Document) bool {
		return doc.Data["representativeName"] == "Rep 1"
	})
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.PerStore.StoreA.Count)
	assert.Equal(t, 2, res.PerStore.StoreB.Count)
	assert.Equal(t, 1, a.Count("submissions"))

	res = r.Clear(ctx, models.KindSubmission)
	assert.True(t, res.Success)
	assert.Equal(t, 0, a.Count("submissions"))
	assert.Equal(t, 0, b.Count("submissions"))
}

func TestSaveSingletonKeepsOneCopyPerStore(t *testing.T) {
	r, a, b, _ := newTestReconciler()
	ctx := context.Background()

	first, err := r.SaveSingleton(ctx, &models.Settings{GoogleSheetsURL: "https://example.com/one"})
	require.NoError(t, err)
	assert.Equal(t, SavedBoth, first.Saved)

	_, err = r.SaveSingleton(ctx, &models.Settings{
		CorrelationID: first.CorrelationID, GoogleSheetsURL: "https://example.com/two", EnableGoogleSheets: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, a.Count("settings"))
	assert.Equal(t, 1, b.Count("settings"))

	doc, source, err := r.ReadSingleton(ctx, models.KindSettings)
	require.NoError(t, err)
	assert.Equal(t, models.StoreA, source)
	assert.Equal(t, "https://example.com/two", doc.Data["googleSheetsUrl"])

	_, err = r.SaveSingleton(ctx, villageA())
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestNotifierSeesWrites(t *testing.T) {
	r, _, _, _ := newTestReconciler()
	n := &recordingNotifier{}
	r.SetNotifier(n)

	_, err := r.Write(context.Background(), villageA())
	require.NoError(t, err)

	require.Len(t, n.events, 1)
	assert.Equal(t, recordedEvent{"created", models.KindSubmission}, n.events[0])
}
