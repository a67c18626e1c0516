package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mandoub-backend/internal/cache"
	"mandoub-backend/internal/logger"
	"mandoub-backend/internal/models"
	"mandoub-backend/internal/timeutil"
)

// ErrDuplicateSubmission rejects a submission seen within the idempotency window.
var ErrDuplicateSubmission = errors.New("duplicate submission")

// Claimer reserves keys for a limited time.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string)
}

// RedisClaimer claims keys with SETNX on the shared Redis client.
type RedisClaimer struct{}

func (RedisClaimer) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return cache.ClaimKey(ctx, key, ttl)
}

func (RedisClaimer) Release(ctx context.Context, key string) {
	cache.ReleaseKey(ctx, key)
}

// IdempotencyGuard drops repeated submissions inside a short window. It fails
// open: if the claim store is unreachable the submission goes through.
type IdempotencyGuard struct {
	claimer Claimer
	window  time.Duration
	log     zerolog.Logger
}

func NewIdempotencyGuard(c Claimer, window time.Duration) *IdempotencyGuard {
	if window <= 0 {
		window = time.Minute
	}
	return &IdempotencyGuard{claimer: c, window: window, log: logger.For("idempotency")}
}

// Check claims the key for s. The returned key is empty when nothing was claimed.
func (g *IdempotencyGuard) Check(ctx context.Context, s *models.Submission, now time.Time) (string, error) {
	key := SubmissionKey(s, now, g.window)
	ok, err := g.claimer.Claim(ctx, key, 2*g.window)
	if err != nil {
		g.log.Warn().Err(err).Msg("idempotency claim failed, allowing submission")
		return "", nil
	}
	if !ok {
		return "", ErrDuplicateSubmission
	}
	return key, nil
}

// Release frees a claim after a write that landed nowhere, so it can be retried.
func (g *IdempotencyGuard) Release(ctx context.Context, key string) {
	if key != "" {
		g.claimer.Release(ctx, key)
	}
}

// SubmissionKey hashes the submitted fields with the time bucket they fall in.
func SubmissionKey(s *models.Submission, now time.Time, window time.Duration) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%d|%d|%d|%s|%d",
		s.VillageName, s.RepresentativeName,
		s.TotalPeople, s.ReceivedMoney, s.NotReceived, s.AmountPerPerson,
		s.SubmittedBy, timeutil.MinuteBucket(now, window).Unix(),
	)
	return cache.IdempotencyPrefix + hex.EncodeToString(h.Sum(nil))[:32]
}
