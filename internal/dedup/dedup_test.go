package dedup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobsentry/jobsentry/internal/scraper"
)

type fakeJobStore struct {
	mu      sync.Mutex
	known   map[string]bool
	findErr error
	finds   int
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{known: make(map[string]bool)}
}

func (s *fakeJobStore) UpsertJob(_ context.Context, record scraper.JobRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.known[record.Fingerprint] {
		return false, nil
	}
	s.known[record.Fingerprint] = true
	return true, nil
}

func (s *fakeJobStore) FindJob(_ context.Context, fingerprint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	if s.findErr != nil {
		return false, s.findErr
	}
	return s.known[fingerprint], nil
}

func (s *fakeJobStore) findCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finds
}

func sampleListing() scraper.Listing {
	return scraper.Listing{
		SiteID:    "site-1",
		Title:     "Go Engineer",
		Company:   "Acme",
		URL:       "https://acme.example/jobs/1",
		FetchedAt: time.Now().UTC(),
	}
}

func TestCheck_NewThenSeenAfterConfirm(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	jobs := newFakeJobStore()
	d := NewDeduplicator(NewMemoryCache(time.Hour), jobs, zap.NewNop())

	fp, outcome, err := d.Check(ctx, sampleListing())
	require.NoError(t, err)
	require.Equal(t, New, outcome)

	// Persist, then confirm.
	inserted, err := jobs.UpsertJob(ctx, scraper.NewRecord(sampleListing(), fp))
	require.NoError(t, err)
	require.True(t, inserted)
	d.Confirm(ctx, fp)

	_, outcome, err = d.Check(ctx, sampleListing())
	require.NoError(t, err)
	require.Equal(t, Seen, outcome)
}

func TestCheck_CacheAvoidsStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	jobs := newFakeJobStore()
	d := NewDeduplicator(NewMemoryCache(time.Hour), jobs, zap.NewNop())

	fp, _, err := d.Check(ctx, sampleListing())
	require.NoError(t, err)
	_, err = jobs.UpsertJob(ctx, scraper.NewRecord(sampleListing(), fp))
	require.NoError(t, err)
	d.Confirm(ctx, fp)

	before := jobs.findCount()
	_, outcome, err := d.Check(ctx, sampleListing())
	require.NoError(t, err)
	require.Equal(t, Seen, outcome)
	require.Equal(t, before, jobs.findCount(), "cached fingerprint must not hit the store")
}

func TestCheck_StoreIsTruthAcrossRestart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	jobs := newFakeJobStore()

	// First process lifetime.
	d1 := NewDeduplicator(NewMemoryCache(time.Hour), jobs, zap.NewNop())
	fp, outcome, err := d1.Check(ctx, sampleListing())
	require.NoError(t, err)
	require.Equal(t, New, outcome)
	_, err = jobs.UpsertJob(ctx, scraper.NewRecord(sampleListing(), fp))
	require.NoError(t, err)
	d1.Confirm(ctx, fp)

	// Restart: empty cache, same store.
	d2 := NewDeduplicator(NewMemoryCache(time.Hour), jobs, zap.NewNop())
	_, outcome, err = d2.Check(ctx, sampleListing())
	require.NoError(t, err)
	require.Equal(t, Seen, outcome, "store must prevent a second new verdict after restart")
}

func TestCheck_ExpiredCacheFallsBackToStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	jobs := newFakeJobStore()
	cache := NewMemoryCache(time.Minute)

	fixed := time.Now()
	cache.now = func() time.Time { return fixed }

	d := NewDeduplicator(cache, jobs, zap.NewNop())
	fp, _, err := d.Check(ctx, sampleListing())
	require.NoError(t, err)
	_, err = jobs.UpsertJob(ctx, scraper.NewRecord(sampleListing(), fp))
	require.NoError(t, err)
	d.Confirm(ctx, fp)

	// Let the cache entry expire; the store still answers Seen.
	cache.now = func() time.Time { return fixed.Add(2 * time.Minute) }
	before := jobs.findCount()
	_, outcome, err := d.Check(ctx, sampleListing())
	require.NoError(t, err)
	require.Equal(t, Seen, outcome)
	require.Greater(t, jobs.findCount(), before, "expired cache entry must trigger a store lookup")
}

func TestCheck_CacheErrorDegradesToStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	jobs := newFakeJobStore()
	d := NewDeduplicator(&failingCache{}, jobs, zap.NewNop())

	_, outcome, err := d.Check(ctx, sampleListing())
	require.NoError(t, err)
	require.Equal(t, New, outcome)
}

func TestCheck_StoreErrorSurfaces(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobStore()
	jobs.findErr = errors.New("store down")
	d := NewDeduplicator(NewMemoryCache(time.Hour), jobs, zap.NewNop())

	_, _, err := d.Check(context.Background(), sampleListing())
	require.Error(t, err)
}

type failingCache struct{}

func (failingCache) Seen(context.Context, string) (bool, error) {
	return false, errors.New("cache down")
}

func (failingCache) MarkSeen(context.Context, string) error {
	return errors.New("cache down")
}
