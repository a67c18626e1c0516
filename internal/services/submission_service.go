package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mandoub-backend/internal/cache"
	"mandoub-backend/internal/models"
	"mandoub-backend/internal/sheets"
	"mandoub-backend/internal/store"
	"mandoub-backend/internal/timeutil"
)

const statisticsTTL = 30 * time.Second

// Mirror forwards a change to the spreadsheet, best effort.
type Mirror interface {
	Mirror(ctx context.Context, action string, payload map[string]any)
}

type SubmissionService struct {
	Reconciler *Reconciler
	guard      *IdempotencyGuard
	mirror     Mirror
	now        func() time.Time
	prewarm    func(key string, fetcher func(ctx context.Context) ([]byte, error), ttl time.Duration)
}

func NewSubmissionService(r *Reconciler) *SubmissionService {
	return &SubmissionService{Reconciler: r, now: timeutil.Now, prewarm: cache.PreWarmKey}
}

// SetIdempotencyGuard enables duplicate rejection. Without a guard, submitting
// the same record twice stores it twice.
func (s *SubmissionService) SetIdempotencyGuard(g *IdempotencyGuard) { s.guard = g }

func (s *SubmissionService) SetMirror(m Mirror) { s.mirror = m }

func (s *SubmissionService) Create(ctx context.Context, sub *models.Submission) (*WriteResult, error) {
	now := s.now()
	sub.Normalize(now)
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	var claim string
	if s.guard != nil {
		key, err := s.guard.Check(ctx, sub, now)
		if err != nil {
			return nil, err
		}
		claim = key
	}

	result, err := s.Reconciler.Write(ctx, sub)
	if err != nil {
		if s.guard != nil {
			s.guard.Release(ctx, claim)
		}
		return nil, err
	}
	if !result.Success {
		if s.guard != nil {
			s.guard.Release(ctx, claim)
		}
		return result, nil
	}

	s.refreshCaches(ctx)
	if data, err := models.ToData(sub); err == nil {
		s.mirrorAction(ctx, sheets.ActionAddSubmission, data)
	}
	return result, nil
}

func (s *SubmissionService) List(ctx context.Context) (*ReadResult, error) {
	return s.Reconciler.Read(ctx, models.KindSubmission)
}

// Statistics aggregates whichever store served the read. Cached briefly.
func (s *SubmissionService) Statistics(ctx context.Context) (*models.Statistics, error) {
	if data, ok := cache.GetCached(ctx, cache.StatisticsKey); ok {
		var stats models.Statistics
		if err := json.Unmarshal(data, &stats); err == nil {
			return &stats, nil
		}
	}

	stats, err := s.computeStatistics(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(stats); err == nil {
		cache.SetCached(ctx, cache.StatisticsKey, data, statisticsTTL)
	}
	return stats, nil
}

func (s *SubmissionService) computeStatistics(ctx context.Context) (*models.Statistics, error) {
	res, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	subs, err := DecodeSubmissions(res.Documents)
	if err != nil {
		return nil, err
	}
	stats := models.CalculateStatistics(res.Source, subs)
	return &stats, nil
}

func (s *SubmissionService) statisticsJSON(ctx context.Context) ([]byte, error) {
	stats, err := s.computeStatistics(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(stats)
}

// refreshCaches drops the cached statistics and rebuilds them in the background.
func (s *SubmissionService) refreshCaches(ctx context.Context) {
	cache.InvalidateSubmissionCaches(ctx)
	if s.prewarm != nil {
		s.prewarm(cache.StatisticsKey, s.statisticsJSON, statisticsTTL)
	}
}

func (s *SubmissionService) Delete(ctx context.Context, ref Ref) *MutationResult {
	result := s.Reconciler.Delete(ctx, models.KindSubmission, ref)
	if result.Success {
		s.refreshCaches(ctx)
		s.mirrorAction(ctx, sheets.ActionDeleteSubmission, map[string]any{
			"correlationId": ref.CorrelationID,
			"id":            result.PerStore.StoreA.ID,
		})
	}
	return result
}

// DeleteAll clears every submission in both stores.
func (s *SubmissionService) DeleteAll(ctx context.Context) *MutationResult {
	result := s.Reconciler.Clear(ctx, models.KindSubmission)
	s.refreshCaches(ctx)
	return result
}

// DeletePerson removes every submission collected or entered by name.
func (s *SubmissionService) DeletePerson(ctx context.Context, name string) *MutationResult {
	result := s.Reconciler.DeleteWhere(ctx, models.KindSubmission, func(doc *store.Document) bool {
		var sub models.Submission
		if err := models.FromData(doc.Data, &sub); err != nil {
			return false
		}
		return sub.BelongsTo(name)
	})
	s.refreshCaches(ctx)
	return result
}

func (s *SubmissionService) mirrorAction(ctx context.Context, action string, payload map[string]any) {
	if s.mirror != nil {
		s.mirror.Mirror(ctx, action, payload)
	}
}

// DecodeSubmissions converts stored documents into submissions.
func DecodeSubmissions(docs []*store.Document) ([]*models.Submission, error) {
	subs := make([]*models.Submission, 0, len(docs))
	for _, doc := range docs {
		var sub models.Submission
		if err := models.FromData(doc.Data, &sub); err != nil {
			return nil, fmt.Errorf("decode submission %s: %w", doc.ID, err)
		}
		subs = append(subs, &sub)
	}
	return subs, nil
}
