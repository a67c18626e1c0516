package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mandoub-backend/internal/logger"
	"mandoub-backend/internal/metrics"
	"mandoub-backend/internal/models"
	"mandoub-backend/internal/store"
	"mandoub-backend/internal/timeutil"
)

// Saved values reported to callers
const (
	SavedBoth   = "both"
	SavedNone   = "none"
	SavedStoreA = models.StoreA
	SavedStoreB = models.StoreB
)

// Notifier receives reconciler events for the live feed.
type Notifier interface {
	Notify(event string, kind models.Kind, payload any)
}

// OutboxWriter records the store side that missed a write.
type OutboxWriter interface {
	Enqueue(ctx context.Context, entry *models.OutboxEntry) error
}

// StoreResult is the outcome of one store call.
type StoreResult struct {
	Success  bool   `json:"success"`
	ID       string `json:"id,omitempty"`
	NotFound bool   `json:"notFound,omitempty"`
	Count    int    `json:"count,omitempty"`
	Error    string `json:"error,omitempty"`

	err error
}

// Err returns the underlying store error, if any.
func (r StoreResult) Err() error { return r.err }

func okResult(id string) StoreResult { return StoreResult{Success: true, ID: id} }

func errResult(err error) StoreResult {
	if errors.Is(err, store.ErrNotFound) {
		return StoreResult{NotFound: true, Error: err.Error(), err: err}
	}
	return StoreResult{Error: err.Error(), err: err}
}

func notFoundResult() StoreResult { return StoreResult{NotFound: true} }

type PerStore struct {
	StoreA StoreResult `json:"storeA"`
	StoreB StoreResult `json:"storeB"`
}

// WriteResult reports where a write landed. Success means at least one store has it.
type WriteResult struct {
	Success       bool     `json:"success"`
	CorrelationID string   `json:"correlationId"`
	Saved         string   `json:"saved"`
	PerStore      PerStore `json:"perStore"`
}

// MutationResult reports an update or delete. Success follows store A; store B
// only decides it when store A had nothing to act on.
type MutationResult struct {
	Success  bool     `json:"success"`
	PerStore PerStore `json:"perStore"`
}

// ReadResult is a list served by exactly one store.
type ReadResult struct {
	Source    string            `json:"source"`
	Documents []*store.Document `json:"documents"`
}

// Ref identifies one logical record in both stores. Explicit ids win, then the
// correlation id, then exact field equality on Match.
type Ref struct {
	IDA           string
	IDB           string
	CorrelationID string
	Match         store.Filter
}

// DriftReport compares the two stores by correlation id.
type DriftReport struct {
	Kind      models.Kind `json:"kind"`
	CountA    int         `json:"countA"`
	CountB    int         `json:"countB"`
	OnlyInA   []string    `json:"onlyInA"`
	OnlyInB   []string    `json:"onlyInB"`
	Differing []string    `json:"differing"`
	Unkeyed   int         `json:"unkeyed"`
}

// InSync reports whether no divergence was found.
func (d *DriftReport) InSync() bool {
	return len(d.OnlyInA) == 0 && len(d.OnlyInB) == 0 && len(d.Differing) == 0
}

// Reconciler applies each logical write to both stores without a transaction.
type Reconciler struct {
	A store.DocumentStore
	B store.DocumentStore

	outbox   OutboxWriter
	notifier Notifier
	now      func() time.Time
	log      zerolog.Logger
}

func NewReconciler(a, b store.DocumentStore) *Reconciler {
	return &Reconciler{A: a, B: b, now: timeutil.Now, log: logger.For("reconciler")}
}

func (r *Reconciler) SetOutbox(o OutboxWriter) { r.outbox = o }

func (r *Reconciler) SetNotifier(n Notifier) { r.notifier = n }

// Write validates rec, stamps a correlation id and creates it in both stores
// concurrently. Store failures are reported in the result; the error return is
// only for records rejected before any store call.
func (r *Reconciler) Write(ctx context.Context, rec models.Record) (*WriteResult, error) {
	rec.Normalize(r.now())
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if rec.GetCorrelationID() == "" {
		rec.SetCorrelationID(uuid.NewString())
	}
	data, err := models.ToData(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	kind := rec.Kind()
	collection := kind.Collection()
	per := r.fanOut(ctx, "create", func(ctx context.Context, s store.DocumentStore) StoreResult {
		doc, err := s.Create(ctx, collection, "", data)
		if err != nil {
			return errResult(err)
		}
		return okResult(doc.ID)
	})

	result := &WriteResult{
		Success:       per.StoreA.Success || per.StoreB.Success,
		CorrelationID: rec.GetCorrelationID(),
		Saved:         saved(per),
		PerStore:      per,
	}
	r.enqueueMissed(ctx, per, models.OutboxCreate, collection, result.CorrelationID, data)

	if result.Success {
		r.notify("created", kind, withoutSecrets(data))
	} else {
		r.log.Error().Str("kind", string(kind)).Str("correlation_id", result.CorrelationID).
			Str("store_a", per.StoreA.Error).Str("store_b", per.StoreB.Error).Msg("write landed nowhere")
	}
	return result, nil
}

// Read lists a kind from store A, falling back to store B when A fails.
func (r *Reconciler) Read(ctx context.Context, kind models.Kind) (*ReadResult, error) {
	return r.ReadWhere(ctx, kind, nil)
}

// ReadWhere is Read with an equality filter.
func (r *Reconciler) ReadWhere(ctx context.Context, kind models.Kind, filter store.Filter) (*ReadResult, error) {
	collection := kind.Collection()

	docs, errA := r.A.List(ctx, collection, filter)
	r.count(models.StoreA, "list", errA)
	if errA == nil {
		return &ReadResult{Source: models.StoreA, Documents: docs}, nil
	}
	r.log.Warn().Err(errA).Str("kind", string(kind)).Msg("store A read failed, trying store B")
	metrics.ReadFailoversTotal.Inc()

	docs, errB := r.B.List(ctx, collection, filter)
	r.count(models.StoreB, "list", errB)
	if errB == nil {
		return &ReadResult{Source: models.StoreB, Documents: docs}, nil
	}
	r.log.Error().Err(errB).Str("kind", string(kind)).Msg("store B read failed")

	return nil, errors.Join(
		fmt.Errorf("storeA: %w", errA),
		fmt.Errorf("storeB: %w", errB),
	)
}

// Delete removes one logical record from both stores. A store where the record
// cannot be resolved reports notFound instead of failing.
func (r *Reconciler) Delete(ctx context.Context, kind models.Kind, ref Ref) *MutationResult {
	collection := kind.Collection()
	per := r.fanOutRef(ctx, "delete", collection, ref, func(ctx context.Context, s store.DocumentStore, id string) StoreResult {
		if err := s.Delete(ctx, collection, id); err != nil {
			return errResult(err)
		}
		return okResult(id)
	})

	r.enqueueMissed(ctx, per, models.OutboxDelete, collection, ref.CorrelationID, nil)
	result := &MutationResult{Success: primarySuccess(per), PerStore: per}
	if result.Success {
		r.notify("deleted", kind, map[string]any{"correlationId": ref.CorrelationID, "idA": per.StoreA.ID, "idB": per.StoreB.ID})
	}
	return result
}

// Update merges patch into one logical record in both stores.
func (r *Reconciler) Update(ctx context.Context, kind models.Kind, ref Ref, patch map[string]any) *MutationResult {
	collection := kind.Collection()
	per := r.fanOutRef(ctx, "update", collection, ref, func(ctx context.Context, s store.DocumentStore, id string) StoreResult {
		doc, err := s.Update(ctx, collection, id, patch)
		if err != nil {
			return errResult(err)
		}
		return okResult(doc.ID)
	})

	r.enqueueMissed(ctx, per, models.OutboxUpdate, collection, ref.CorrelationID, patch)
	result := &MutationResult{Success: primarySuccess(per), PerStore: per}
	if result.Success {
		r.notify("updated", kind, store.Merge(patch, map[string]any{"correlationId": ref.CorrelationID}))
	}
	return result
}

// Clear deletes every record of a kind in both stores.
func (r *Reconciler) Clear(ctx context.Context, kind models.Kind) *MutationResult {
	return r.DeleteWhere(ctx, kind, func(*store.Document) bool { return true })
}

// DeleteWhere deletes every record of a kind that match selects, store by store.
func (r *Reconciler) DeleteWhere(ctx context.Context, kind models.Kind, match func(*store.Document) bool) *MutationResult {
	collection := kind.Collection()
	per := r.fanOut(ctx, "delete_where", func(ctx context.Context, s store.DocumentStore) StoreResult {
		docs, err := s.List(ctx, collection, nil)
		if err != nil {
			return errResult(err)
		}
		res := StoreResult{Success: true}
		var errs []error
		for _, doc := range docs {
			if !match(doc) {
				continue
			}
			if err := s.Delete(ctx, collection, doc.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				errs = append(errs, err)
				continue
			}
			res.Count++
		}
		if len(errs) > 0 {
			err := errors.Join(errs...)
			res.Success = false
			res.Error = err.Error()
			res.err = err
		}
		return res
	})

	result := &MutationResult{Success: per.StoreA.Success || per.StoreB.Success, PerStore: per}
	if result.Success {
		r.notify("cleared", kind, map[string]any{"storeA": per.StoreA.Count, "storeB": per.StoreB.Count})
	}
	return result
}

// SaveSingleton writes a settings-style record: each store updates its existing
// copy or creates one.
func (r *Reconciler) SaveSingleton(ctx context.Context, rec models.Record) (*WriteResult, error) {
	kind := rec.Kind()
	if !kind.Singleton() {
		return nil, fmt.Errorf("%w: %s is not a singleton kind", models.ErrValidation, kind)
	}
	rec.Normalize(r.now())
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if rec.GetCorrelationID() == "" {
		rec.SetCorrelationID(uuid.NewString())
	}
	data, err := models.ToData(rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	collection := kind.Collection()
	per := r.fanOut(ctx, "save", func(ctx context.Context, s store.DocumentStore) StoreResult {
		docs, err := s.List(ctx, collection, nil)
		if err != nil {
			return errResult(err)
		}
		if len(docs) > 0 {
			doc, err := s.Update(ctx, collection, docs[0].ID, data)
			if err != nil {
				return errResult(err)
			}
			return okResult(doc.ID)
		}
		doc, err := s.Create(ctx, collection, "", data)
		if err != nil {
			return errResult(err)
		}
		return okResult(doc.ID)
	})

	result := &WriteResult{
		Success:       per.StoreA.Success || per.StoreB.Success,
		CorrelationID: rec.GetCorrelationID(),
		Saved:         saved(per),
		PerStore:      per,
	}
	if result.Success {
		r.notify("saved", kind, map[string]any{"correlationId": result.CorrelationID})
	}
	return result, nil
}

// ReadSingleton returns the first document of a singleton kind, or nil when
// the serving store has none.
func (r *Reconciler) ReadSingleton(ctx context.Context, kind models.Kind) (*store.Document, string, error) {
	res, err := r.Read(ctx, kind)
	if err != nil {
		return nil, "", err
	}
	if len(res.Documents) == 0 {
		return nil, res.Source, nil
	}
	return res.Documents[0], res.Source, nil
}

// Drift lists both stores and reports records present in only one of them or
// differing between them. Documents without a correlation id are counted as unkeyed.
func (r *Reconciler) Drift(ctx context.Context, kind models.Kind) (*DriftReport, error) {
	collection := kind.Collection()

	var docsA, docsB []*store.Document
	var errA, errB error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		docsA, errA = r.A.List(ctx, collection, nil)
	}()
	go func() {
		defer wg.Done()
		docsB, errB = r.B.List(ctx, collection, nil)
	}()
	wg.Wait()

	if errA != nil || errB != nil {
		var errs []error
		if errA != nil {
			errs = append(errs, fmt.Errorf("storeA: %w", errA))
		}
		if errB != nil {
			errs = append(errs, fmt.Errorf("storeB: %w", errB))
		}
		return nil, errors.Join(errs...)
	}

	report := &DriftReport{
		Kind:      kind,
		CountA:    len(docsA),
		CountB:    len(docsB),
		OnlyInA:   []string{},
		OnlyInB:   []string{},
		Differing: []string{},
	}

	indexA, unkeyedA := byCorrelation(docsA)
	indexB, unkeyedB := byCorrelation(docsB)
	report.Unkeyed = unkeyedA + unkeyedB

	for key, a := range indexA {
		b, ok := indexB[key]
		if !ok {
			report.OnlyInA = append(report.OnlyInA, key)
			continue
		}
		if !sameData(a.Data, b.Data) {
			report.Differing = append(report.Differing, key)
		}
	}
	for key := range indexB {
		if _, ok := indexA[key]; !ok {
			report.OnlyInB = append(report.OnlyInB, key)
		}
	}
	sort.Strings(report.OnlyInA)
	sort.Strings(report.OnlyInB)
	sort.Strings(report.Differing)
	return report, nil
}

// fanOut runs call against both stores concurrently. Neither call can cancel or
// block the other.
func (r *Reconciler) fanOut(ctx context.Context, op string, call func(ctx context.Context, s store.DocumentStore) StoreResult) PerStore {
	var per PerStore
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		per.StoreA = call(ctx, r.A)
	}()
	go func() {
		defer wg.Done()
		per.StoreB = call(ctx, r.B)
	}()
	wg.Wait()

	r.record(models.StoreA, op, per.StoreA)
	r.record(models.StoreB, op, per.StoreB)
	return per
}

// fanOutRef resolves ref in each store before running call on the resolved id.
func (r *Reconciler) fanOutRef(ctx context.Context, op, collection string, ref Ref, call func(ctx context.Context, s store.DocumentStore, id string) StoreResult) PerStore {
	var per PerStore
	var wg sync.WaitGroup
	wg.Add(2)
	run := func(s store.DocumentStore, explicitID string, out *StoreResult) {
		defer wg.Done()
		id, err := resolveID(ctx, s, collection, explicitID, ref)
		switch {
		case err != nil:
			*out = errResult(err)
		case id == "":
			*out = notFoundResult()
		default:
			*out = call(ctx, s, id)
		}
	}
	go run(r.A, ref.IDA, &per.StoreA)
	go run(r.B, ref.IDB, &per.StoreB)
	wg.Wait()

	r.record(models.StoreA, op, per.StoreA)
	r.record(models.StoreB, op, per.StoreB)
	return per
}

// resolveID returns the first document id matching ref in s, or "" when nothing
// matches. Matching is exact: no trimming or case folding.
func resolveID(ctx context.Context, s store.DocumentStore, collection, explicitID string, ref Ref) (string, error) {
	if explicitID != "" {
		return explicitID, nil
	}

	var filter store.Filter
	switch {
	case ref.CorrelationID != "":
		filter = store.Filter{"correlationId": ref.CorrelationID}
	case len(ref.Match) > 0:
		filter = ref.Match
	default:
		return "", nil
	}

	docs, err := s.List(ctx, collection, filter)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", nil
	}
	return docs[0].ID, nil
}

// enqueueMissed records the failed side of a partially applied operation.
// Nothing is queued when both sides failed or no correlation id is known.
func (r *Reconciler) enqueueMissed(ctx context.Context, per PerStore, op, collection, correlationID string, payload map[string]any) {
	if r.outbox == nil || correlationID == "" {
		return
	}
	if !per.StoreA.Success && !per.StoreB.Success {
		return
	}

	for _, side := range []struct {
		name string
		res  StoreResult
	}{{models.StoreA, per.StoreA}, {models.StoreB, per.StoreB}} {
		if side.res.Success || side.res.err == nil || side.res.NotFound {
			continue
		}
		entry := &models.OutboxEntry{
			CorrelationID: correlationID,
			TargetStore:   side.name,
			Operation:     op,
			Collection:    collection,
			Payload:       payload,
			LastError:     side.res.Error,
		}
		if err := r.outbox.Enqueue(context.WithoutCancel(ctx), entry); err != nil {
			r.log.Error().Err(err).Str("store", side.name).Str("correlation_id", correlationID).Msg("failed to enqueue outbox entry")
			continue
		}
		r.log.Info().Str("store", side.name).Str("op", op).Str("correlation_id", correlationID).Msg("queued for retry")
	}
}

func (r *Reconciler) record(storeName, op string, res StoreResult) {
	outcome := "ok"
	switch {
	case res.NotFound:
		outcome = "not_found"
	case !res.Success:
		outcome = "error"
	}
	metrics.StoreOperationsTotal.WithLabelValues(storeName, op, outcome).Inc()

	switch outcome {
	case "not_found":
		r.log.Info().Str("store", storeName).Str("op", op).Msg("record not found")
	case "error":
		r.log.Warn().Str("store", storeName).Str("op", op).Str("error", res.Error).Msg("store call failed")
	}
}

func (r *Reconciler) count(storeName, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.StoreOperationsTotal.WithLabelValues(storeName, op, outcome).Inc()
}

func (r *Reconciler) notify(event string, kind models.Kind, payload any) {
	if r.notifier != nil {
		r.notifier.Notify(event, kind, payload)
	}
}

// withoutSecrets drops credential hashes before a record leaves the process.
func withoutSecrets(data map[string]any) map[string]any {
	out := store.Merge(data, nil)
	delete(out, "passwordHash")
	delete(out, "adminPasswordHash")
	return out
}

func saved(per PerStore) string {
	switch {
	case per.StoreA.Success && per.StoreB.Success:
		return SavedBoth
	case per.StoreA.Success:
		return SavedStoreA
	case per.StoreB.Success:
		return SavedStoreB
	}
	return SavedNone
}

// primarySuccess: store A decides unless it had nothing to act on.
func primarySuccess(per PerStore) bool {
	if per.StoreA.Success {
		return true
	}
	return per.StoreA.NotFound && per.StoreB.Success
}

func byCorrelation(docs []*store.Document) (map[string]*store.Document, int) {
	index := make(map[string]*store.Document, len(docs))
	unkeyed := 0
	for _, doc := range docs {
		key, _ := doc.Data["correlationId"].(string)
		if key == "" {
			unkeyed++
			continue
		}
		index[key] = doc
	}
	return index, unkeyed
}

// sameData compares stored fields, ignoring bookkeeping timestamps each store may set.
func sameData(a, b map[string]any) bool {
	strip := func(m map[string]any) map[string]any {
		out := store.Merge(m, nil)
		delete(out, "updatedAt")
		return out
	}
	return reflect.DeepEqual(strip(a), strip(b))
}
