package weather

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeProvider struct {
	mu      sync.Mutex
	calls   int
	reports map[Purpose]Report
	err     error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Fetch(ctx context.Context, coord Coordinate, purpose Purpose) (Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return Report{}, f.err
	}
	return f.reports[purpose], nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testReport(last7 float64) Report {
	return Report{Snapshot: Snapshot{Last7Days: last7, Temp: 20}}
}

var melbourne = Coordinate{Latitude: -37.8136, Longitude: 144.9631}

func TestCacheSnapshotServedFromCacheWithinTTL(t *testing.T) {
	p := &fakeProvider{reports: map[Purpose]Report{PurposeFull: testReport(12)}}
	c := NewCache(p, CacheConfig{FullTTL: 10 * time.Minute}, nil)
	now := time.Now()

	s, fb := c.Snapshot(context.Background(), "site-1", melbourne, now)
	if fb {
		t.Fatal("first snapshot used fallback")
	}
	if s.Last7Days != 12 {
		t.Errorf("Last7Days = %v, want 12", s.Last7Days)
	}

	c.Snapshot(context.Background(), "site-1", melbourne, now.Add(9*time.Minute))
	if got := p.callCount(); got != 1 {
		t.Errorf("provider calls = %d, want 1 (second read inside TTL)", got)
	}
}

func TestCacheSnapshotRefetchesAfterTTL(t *testing.T) {
	p := &fakeProvider{reports: map[Purpose]Report{PurposeFull: testReport(12)}}
	c := NewCache(p, CacheConfig{FullTTL: 10 * time.Minute}, nil)
	now := time.Now()

	c.Snapshot(context.Background(), "site-1", melbourne, now)
	c.Snapshot(context.Background(), "site-1", melbourne, now.Add(11*time.Minute))
	if got := p.callCount(); got != 2 {
		t.Errorf("provider calls = %d, want 2 (entry expired)", got)
	}
}

func TestCacheConcurrentRequestsCollapseToOneFetch(t *testing.T) {
	p := &fakeProvider{reports: map[Purpose]Report{PurposeFull: testReport(3)}}
	c := NewCache(p, CacheConfig{}, nil)
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, fb := c.Snapshot(context.Background(), "site-1", melbourne, now)
			if fb || s.Last7Days != 3 {
				t.Errorf("unexpected result: snapshot=%+v fallback=%v", s, fb)
			}
		}()
	}
	wg.Wait()

	if got := p.callCount(); got != 1 {
		t.Errorf("provider calls = %d, want 1 for concurrent identical requests", got)
	}
}

func TestCacheSnapshotFallsBackOnProviderError(t *testing.T) {
	p := &fakeProvider{err: errors.New("boom")}
	fallback := Snapshot{Last7Days: 12.5, Next24Hours: 5.2, Next7Days: 18.3, Temp: 22, TempMax: 22, TempMin: 12}
	c := NewCache(p, CacheConfig{Fallback: fallback}, nil)

	s, fb := c.Snapshot(context.Background(), "site-1", melbourne, time.Now())
	if !fb {
		t.Fatal("expected usedFallback=true")
	}
	if s != fallback {
		t.Errorf("snapshot = %+v, want fallback %+v", s, fallback)
	}
}

func TestCacheFailedFetchIsNotCached(t *testing.T) {
	p := &fakeProvider{err: errors.New("boom")}
	c := NewCache(p, CacheConfig{}, nil)
	now := time.Now()

	c.Snapshot(context.Background(), "site-1", melbourne, now)
	p.mu.Lock()
	p.err = nil
	p.reports = map[Purpose]Report{PurposeFull: testReport(7)}
	p.mu.Unlock()

	s, fb := c.Snapshot(context.Background(), "site-1", melbourne, now)
	if fb {
		t.Fatal("recovered provider should not trip fallback")
	}
	if s.Last7Days != 7 {
		t.Errorf("Last7Days = %v, want 7 after provider recovery", s.Last7Days)
	}
}

func TestCachePurposesAreCachedIndependently(t *testing.T) {
	day := DailyForecast{Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), PrecipitationMM: 4.2}
	p := &fakeProvider{reports: map[Purpose]Report{
		PurposeFull:     testReport(1),
		PurposeForecast: {Days: []DailyForecast{day}},
	}}
	c := NewCache(p, CacheConfig{}, nil)
	now := time.Now()

	c.Snapshot(context.Background(), "site-1", melbourne, now)
	days, err := c.Forecast(context.Background(), melbourne, now)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(days) != 1 || days[0].PrecipitationMM != 4.2 {
		t.Errorf("forecast days = %+v", days)
	}
	if got := p.callCount(); got != 2 {
		t.Errorf("provider calls = %d, want 2 (one per purpose)", got)
	}
}

func TestCacheSetFallbackReplacesSeed(t *testing.T) {
	p := &fakeProvider{err: errors.New("boom")}
	c := NewCache(p, CacheConfig{Fallback: Snapshot{Last7Days: 1}}, nil)

	fresher := Snapshot{Last7Days: 9.5, Temp: 18}
	c.SetFallback(fresher)

	s, fb := c.Snapshot(context.Background(), "site-1", melbourne, time.Now())
	if !fb {
		t.Fatal("expected usedFallback=true")
	}
	if s != fresher {
		t.Errorf("snapshot = %+v, want the installed fallback", s)
	}
}

func TestCacheForecastSurfacesError(t *testing.T) {
	p := &fakeProvider{err: errors.New("upstream down")}
	c := NewCache(p, CacheConfig{}, nil)

	if _, err := c.Forecast(context.Background(), melbourne, time.Now()); err == nil {
		t.Fatal("expected forecast error to surface")
	}
}

func TestCacheRefreshFallbackPromotesSnapshot(t *testing.T) {
	p := &fakeProvider{reports: map[Purpose]Report{PurposeFull: testReport(42)}}
	c := NewCache(p, CacheConfig{}, nil)
	now := time.Now()

	s, err := c.RefreshFallback(context.Background(), melbourne, now)
	if err != nil {
		t.Fatalf("RefreshFallback: %v", err)
	}
	if s.Last7Days != 42 {
		t.Errorf("refreshed snapshot Last7Days = %v, want 42", s.Last7Days)
	}
	if got := c.Fallback(); got.Last7Days != 42 {
		t.Errorf("fallback not promoted: %+v", got)
	}

	// The refresh also primes the cache for subsequent reads.
	c.Snapshot(context.Background(), "site-1", melbourne, now)
	if got := p.callCount(); got != 1 {
		t.Errorf("provider calls = %d, want 1 (snapshot served from refreshed entry)", got)
	}
}

func TestCacheInvalidateForcesRefetch(t *testing.T) {
	p := &fakeProvider{reports: map[Purpose]Report{PurposeFull: testReport(5)}}
	c := NewCache(p, CacheConfig{}, nil)
	now := time.Now()

	c.Snapshot(context.Background(), "site-1", melbourne, now)
	c.Invalidate()
	c.Snapshot(context.Background(), "site-1", melbourne, now)
	if got := p.callCount(); got != 2 {
		t.Errorf("provider calls = %d, want 2 after invalidation", got)
	}
}

type recordingObserver struct {
	mu                               sync.Mutex
	hits, misses, fallbks, fetchErrs int
}

func (r *recordingObserver) CacheHit(Purpose) {
	r.mu.Lock()
	r.hits++
	r.mu.Unlock()
}

func (r *recordingObserver) CacheMiss(Purpose) {
	r.mu.Lock()
	r.misses++
	r.mu.Unlock()
}

func (r *recordingObserver) CacheFallback(Purpose) {
	r.mu.Lock()
	r.fallbks++
	r.mu.Unlock()
}

func (r *recordingObserver) CacheFetchError(Purpose) {
	r.mu.Lock()
	r.fetchErrs++
	r.mu.Unlock()
}

func TestCacheReportsTrafficToObserver(t *testing.T) {
	p := &fakeProvider{reports: map[Purpose]Report{PurposeFull: testReport(1)}}
	obs := &recordingObserver{}
	c := NewCache(p, CacheConfig{}, obs)
	now := time.Now()

	c.Snapshot(context.Background(), "site-1", melbourne, now) // miss
	c.Snapshot(context.Background(), "site-1", melbourne, now) // hit

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.misses != 1 || obs.hits != 1 || obs.fallbks != 0 {
		t.Errorf("observer saw hits=%d misses=%d fallbacks=%d, want 1/1/0", obs.hits, obs.misses, obs.fallbks)
	}
}

func TestCacheFallbackCountsOnlyServedFallbacks(t *testing.T) {
	p := &fakeProvider{err: errors.New("upstream down")}
	obs := &recordingObserver{}
	c := NewCache(p, CacheConfig{}, obs)
	now := time.Now()

	if _, err := c.Forecast(context.Background(), melbourne, now); err == nil {
		t.Fatal("expected forecast error to surface")
	}

	obs.mu.Lock()
	if obs.fallbks != 0 || obs.fetchErrs != 1 {
		t.Errorf("after forecast failure: fallbacks=%d fetch errors=%d, want 0/1", obs.fallbks, obs.fetchErrs)
	}
	obs.mu.Unlock()

	// The full tier serves a fallback, so both events fire there.
	c.Snapshot(context.Background(), "site-1", melbourne, now)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.fallbks != 1 || obs.fetchErrs != 2 {
		t.Errorf("after snapshot failure: fallbacks=%d fetch errors=%d, want 1/2", obs.fallbks, obs.fetchErrs)
	}
}
