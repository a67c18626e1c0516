package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mandoub-backend/internal/logger"
	"mandoub-backend/internal/metrics"
	"mandoub-backend/internal/models"
	"mandoub-backend/internal/store"
)

// OutboxQueue is the persistence the worker drains.
type OutboxQueue interface {
	ListPending(ctx context.Context, limit int) ([]*models.OutboxEntry, error)
	MarkDone(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, lastErr string, maxAttempts int) error
}

// OutboxWorker replays writes that reached only one store.
type OutboxWorker struct {
	queue       OutboxQueue
	stores      map[string]store.DocumentStore
	interval    time.Duration
	batchSize   int
	maxAttempts int

	stopChan chan struct{}
	wg       sync.WaitGroup
	log      zerolog.Logger
}

func NewOutboxWorker(q OutboxQueue, a, b store.DocumentStore, interval time.Duration, batchSize, maxAttempts int) *OutboxWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	if maxAttempts <= 0 {
		maxAttempts = 20
	}
	return &OutboxWorker{
		queue:       q,
		stores:      map[string]store.DocumentStore{models.StoreA: a, models.StoreB: b},
		interval:    interval,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
		stopChan:    make(chan struct{}),
		log:         logger.For("outbox"),
	}
}

// Start runs one pass immediately, then one per interval.
func (w *OutboxWorker) Start() {
	w.log.Info().Dur("interval", w.interval).Msg("starting outbox worker")

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.RunOnce(context.Background())

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.RunOnce(context.Background())
			case <-w.stopChan:
				w.log.Info().Msg("stopping outbox worker")
				return
			}
		}
	}()
}

func (w *OutboxWorker) Stop() {
	close(w.stopChan)
	w.wg.Wait()
}

// RunOnce processes one batch and returns how many entries completed.
func (w *OutboxWorker) RunOnce(ctx context.Context) int {
	entries, err := w.queue.ListPending(ctx, w.batchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("failed to list pending outbox entries")
		return 0
	}

	done := 0
	for _, entry := range entries {
		err := w.apply(ctx, entry)
		if err == nil {
			metrics.OutboxRetriesTotal.WithLabelValues(entry.TargetStore, "ok").Inc()
			if err := w.queue.MarkDone(ctx, entry.ID); err != nil {
				w.log.Error().Err(err).Int64("entry", entry.ID).Msg("failed to mark outbox entry done")
				continue
			}
			done++
			continue
		}

		metrics.OutboxRetriesTotal.WithLabelValues(entry.TargetStore, "error").Inc()
		w.log.Warn().Err(err).Int64("entry", entry.ID).Str("store", entry.TargetStore).
			Int("attempts", entry.Attempts+1).Msg("outbox retry failed")
		if err := w.queue.MarkFailed(ctx, entry.ID, err.Error(), w.maxAttempts); err != nil {
			w.log.Error().Err(err).Int64("entry", entry.ID).Msg("failed to record outbox failure")
		}
	}

	if len(entries) > 0 {
		w.log.Info().Int("pending", len(entries)).Int("done", done).Msg("outbox pass finished")
	}
	return done
}

// apply replays one entry. Creates check the target for the correlation id
// first so a write that did land is not duplicated.
func (w *OutboxWorker) apply(ctx context.Context, entry *models.OutboxEntry) error {
	s, ok := w.stores[entry.TargetStore]
	if !ok {
		return fmt.Errorf("unknown target store %q", entry.TargetStore)
	}

	existing, err := s.List(ctx, entry.Collection, store.Filter{"correlationId": entry.CorrelationID})
	if err != nil {
		return err
	}

	switch entry.Operation {
	case models.OutboxCreate:
		if len(existing) > 0 {
			return nil
		}
		_, err := s.Create(ctx, entry.Collection, "", entry.Payload)
		return err
	case models.OutboxUpdate:
		if len(existing) == 0 {
			return fmt.Errorf("%w: correlation id %s", store.ErrNotFound, entry.CorrelationID)
		}
		_, err := s.Update(ctx, entry.Collection, existing[0].ID, entry.Payload)
		return err
	case models.OutboxDelete:
		for _, doc := range existing {
			if err := s.Delete(ctx, entry.Collection, doc.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unknown outbox operation %q", entry.Operation)
}
