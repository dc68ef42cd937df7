package trust

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	payerrors "github.com/byronwade/thorbis-payments/pkg/errors"
	"github.com/byronwade/thorbis-payments/pkg/store"
	"github.com/byronwade/thorbis-payments/pkg/types"
)

func TestRecordOutcomeCreatesRecord(t *testing.T) {
	mem := store.NewMemory()
	updater := NewUpdater(mem)

	err := updater.RecordOutcome(context.Background(), "co_new", true, 25_000)
	require.NoError(t, err)

	rec, err := mem.TrustScore(context.Background(), "co_new")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.TotalPaymentsCount)
	assert.Equal(t, int64(1), rec.SuccessfulPaymentsCount)
	assert.Equal(t, int64(0), rec.FailedPaymentsCount)
	assert.Equal(t, int64(25_000), rec.TotalPaymentsVolume)
	assert.Equal(t, int64(25_000), rec.LargestPaymentAmount)
	assert.False(t, rec.LastCalculatedAt.IsZero())
	assert.Greater(t, rec.OverallScore, 0.0)
}

func TestRecordOutcomeAccumulates(t *testing.T) {
	mem := store.NewMemory()
	updater := NewUpdater(mem)
	ctx := context.Background()

	require.NoError(t, updater.RecordOutcome(ctx, "co_1", true, 10_000))
	require.NoError(t, updater.RecordOutcome(ctx, "co_1", false, 5_000))
	require.NoError(t, updater.RecordOutcome(ctx, "co_1", true, 50_000))

	rec, err := mem.TrustScore(ctx, "co_1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.TotalPaymentsCount)
	assert.Equal(t, int64(2), rec.SuccessfulPaymentsCount)
	assert.Equal(t, int64(1), rec.FailedPaymentsCount)
	assert.Equal(t, int64(65_000), rec.TotalPaymentsVolume)
	assert.Equal(t, int64(50_000), rec.LargestPaymentAmount)
	assert.Equal(t, Score(*rec), rec.OverallScore)
}

func TestRecordRefund(t *testing.T) {
	mem := store.NewMemory()
	updater := NewUpdater(mem)
	ctx := context.Background()

	require.NoError(t, updater.RecordOutcome(ctx, "co_1", true, 100_000))
	require.NoError(t, updater.RecordRefund(ctx, "co_1", 20_000))

	rec, err := mem.TrustScore(ctx, "co_1")
	require.NoError(t, err)
	assert.Equal(t, int64(20_000), rec.RefundedAmount)
	assert.InDelta(t, 20.0, rec.RefundRate, 0.001)
}

func TestConcurrentUpdatesAllLand(t *testing.T) {
	mem := store.NewMemory()
	updater := NewUpdater(mem)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = updater.RecordOutcome(ctx, "co_1", i%2 == 0, 1_000)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}

	rec, err := mem.TrustScore(ctx, "co_1")
	require.NoError(t, err)
	assert.Equal(t, int64(writers), rec.TotalPaymentsCount)
	assert.Equal(t, int64(writers)*1_000, rec.TotalPaymentsVolume)
}

// conflictStore forces a fixed number of version conflicts before
// delegating to the real store.
type conflictStore struct {
	*store.Memory
	mu        sync.Mutex
	conflicts int
	attempts  int
}

func (s *conflictStore) SaveTrustScore(ctx context.Context, rec *types.TrustScoreRecord) error {
	s.mu.Lock()
	s.attempts++
	remaining := s.conflicts
	if remaining > 0 {
		s.conflicts--
	}
	s.mu.Unlock()

	if remaining > 0 {
		return payerrors.ErrVersionConflict
	}
	return s.Memory.SaveTrustScore(ctx, rec)
}

func TestUpdateRetriesOnVersionConflict(t *testing.T) {
	cs := &conflictStore{Memory: store.NewMemory(), conflicts: 3}
	updater := NewUpdater(cs)

	err := updater.RecordOutcome(context.Background(), "co_1", true, 1_000)
	require.NoError(t, err)
	assert.Equal(t, 4, cs.attempts)
}

func TestUpdateGivesUpAfterMaxAttempts(t *testing.T) {
	cs := &conflictStore{Memory: store.NewMemory(), conflicts: 100}
	updater := NewUpdater(cs)

	err := updater.RecordOutcome(context.Background(), "co_1", true, 1_000)
	require.Error(t, err)
	assert.ErrorIs(t, err, payerrors.ErrVersionConflict)
	assert.Equal(t, defaultUpdateAttempts, cs.attempts)
}

func TestUpdateInvalidatesCache(t *testing.T) {
	mem := store.NewMemory()
	cache := newMemoryCache()
	cache.Set(context.Background(), &types.TrustScoreRecord{CompanyID: "co_1", OverallScore: 80})
	updater := NewUpdater(mem, WithCache(cache))

	require.NoError(t, updater.RecordOutcome(context.Background(), "co_1", true, 1_000))

	_, ok := cache.records["co_1"]
	assert.False(t, ok)
}
