package trust

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/zoobzio/clockz"

	payerrors "github.com/byronwade/thorbis-payments/pkg/errors"
	"github.com/byronwade/thorbis-payments/pkg/store"
	"github.com/byronwade/thorbis-payments/pkg/types"
)

const defaultUpdateAttempts = 5

// Updater folds payment outcomes back into the stored trust record. Writes
// are read-modify-write under an optimistic version check: a lost race
// reloads and retries, so two payments completing close together for one
// company both land. Updates for different companies never contend.
type Updater struct {
	store       store.TrustStore
	cache       Cache
	clock       clockz.Clock
	maxAttempts int
}

// UpdaterOption configures an Updater.
type UpdaterOption func(*Updater)

// WithClock sets the clock used for lastCalculatedAt timestamps.
func WithClock(c clockz.Clock) UpdaterOption {
	return func(u *Updater) { u.clock = c }
}

// WithCache sets the cache invalidated after every write.
func WithCache(c Cache) UpdaterOption {
	return func(u *Updater) { u.cache = c }
}

// NewUpdater creates an updater over the trust store.
func NewUpdater(s store.TrustStore, opts ...UpdaterOption) *Updater {
	u := &Updater{
		store:       s,
		clock:       clockz.RealClock,
		maxAttempts: defaultUpdateAttempts,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// RecordOutcome applies one completed payment attempt, success or failure.
// Call exactly once per terminal outcome; attempts still awaiting
// resolution (requires_action, pending) are not recorded.
func (u *Updater) RecordOutcome(ctx context.Context, companyID string, success bool, amount int64) error {
	return u.update(ctx, companyID, func(rec *types.TrustScoreRecord) {
		rec.TotalPaymentsCount++
		if success {
			rec.SuccessfulPaymentsCount++
		} else {
			rec.FailedPaymentsCount++
		}
		rec.TotalPaymentsVolume += amount
		if amount > rec.LargestPaymentAmount {
			rec.LargestPaymentAmount = amount
		}
	})
}

// RecordRefund folds a completed refund amount into the record.
func (u *Updater) RecordRefund(ctx context.Context, companyID string, amount int64) error {
	return u.update(ctx, companyID, func(rec *types.TrustScoreRecord) {
		rec.RefundedAmount += amount
	})
}

func (u *Updater) update(ctx context.Context, companyID string, apply func(*types.TrustScoreRecord)) error {
	var lastErr error
	for attempt := 0; attempt < u.maxAttempts; attempt++ {
		if attempt > 0 {
			u.backoff(attempt)
		}

		rec, err := u.store.TrustScore(ctx, companyID)
		if errors.Is(err, payerrors.ErrTrustRecordNotFound) {
			// Onboarding normally seeds the record; start from neutral
			// defaults if a payment lands first.
			rec = &types.TrustScoreRecord{CompanyID: companyID}
		} else if err != nil {
			return payerrors.NewError("record outcome", "", err)
		}

		apply(rec)
		Recompute(rec)
		rec.LastCalculatedAt = u.clock.Now()

		err = u.store.SaveTrustScore(ctx, rec)
		if err == nil {
			if u.cache != nil {
				u.cache.Invalidate(ctx, companyID)
			}
			return nil
		}
		if !errors.Is(err, payerrors.ErrVersionConflict) {
			return payerrors.NewError("record outcome", "", err)
		}
		lastErr = err
	}
	return payerrors.NewError("record outcome", "", fmt.Errorf("gave up after %d attempts: %w", u.maxAttempts, lastErr))
}

// backoff sleeps briefly with jitter so colliding writers spread out.
func (u *Updater) backoff(attempt int) {
	base := time.Duration(attempt) * 5 * time.Millisecond
	jitter := time.Duration(rand.Int63n(int64(5 * time.Millisecond)))
	time.Sleep(base + jitter)
}
