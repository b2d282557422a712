package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"planbid/internal/domain"
	"planbid/internal/logger"
	"planbid/internal/port"
)

const plansPrefix = "plans/"

// Location is one bucket/key a plan file may live at.
type Location struct {
	Bucket string
	Key    string
}

func (l Location) String() string { return l.Bucket + "/" + l.Key }

// PlanFileStore resolves plan PDFs from object storage, trying the plan's
// own location first and then the configured fallbacks.
type PlanFileStore struct {
	storage         port.ObjectStorage
	defaultBucket   string
	fallbackBuckets []string
	logger          *zap.Logger
}

// NewPlanFileStore creates a PlanFileStore. defaultBucket is used for plans
// that do not record a bucket.
func NewPlanFileStore(storage port.ObjectStorage, defaultBucket string, fallbackBuckets []string, l *zap.Logger) *PlanFileStore {
	return &PlanFileStore{
		storage:         storage,
		defaultBucket:   defaultBucket,
		fallbackBuckets: fallbackBuckets,
		logger:          logger.OrNop(l).Named("s3.PlanFileStore"),
	}
}

// Candidates lists, in order and without repeats: the plan's bucket/key,
// each fallback bucket with the same key, then the plan's bucket with the
// "plans/" key prefix added or removed.
func (s *PlanFileStore) Candidates(plan *domain.PlanDocument) []Location {
	bucket := plan.StorageBucket
	if bucket == "" {
		bucket = s.defaultBucket
	}
	key := strings.TrimLeft(plan.StorageKey, "/")

	var toggled string
	if strings.HasPrefix(key, plansPrefix) {
		toggled = strings.TrimPrefix(key, plansPrefix)
	} else {
		toggled = plansPrefix + key
	}

	seen := map[Location]bool{}
	var out []Location
	add := func(b, k string) {
		loc := Location{Bucket: b, Key: k}
		if b == "" || k == "" || seen[loc] {
			return
		}
		seen[loc] = true
		out = append(out, loc)
	}

	add(bucket, key)
	for _, fb := range s.fallbackBuckets {
		add(fb, key)
	}
	add(bucket, toggled)
	return out
}

// Fetch downloads the plan PDF. Each candidate is tried once with no delay
// between attempts; when all fail the error wraps domain.ErrPlanFileUnavailable
// and names every location tried.
func (s *PlanFileStore) Fetch(ctx context.Context, plan *domain.PlanDocument) ([]byte, error) {
	candidates := s.Candidates(plan)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("PlanFileStore.Fetch: plan %s has no storage key: %w", plan.ID, domain.ErrPlanFileUnavailable)
	}

	var (
		data  []byte
		tried []string
		next  int
	)
	err := retry.Do(
		func() error {
			loc := candidates[next]
			next++
			tried = append(tried, loc.String())
			b, err := s.storage.Download(ctx, loc.Bucket, loc.Key)
			if err != nil {
				return err
			}
			if len(b) == 0 {
				return errors.New("empty object")
			}
			data = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(len(candidates))),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debug("plan file candidate failed",
				zap.String("plan_id", plan.ID.String()),
				zap.String("location", candidates[n].String()),
				zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("PlanFileStore.Fetch: tried %s: %v: %w",
			strings.Join(tried, ", "), err, domain.ErrPlanFileUnavailable)
	}

	if len(tried) > 1 {
		s.logger.Info("plan file resolved from fallback",
			zap.String("plan_id", plan.ID.String()),
			zap.String("location", tried[len(tried)-1]))
	}
	return data, nil
}
