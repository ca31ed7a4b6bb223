package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/uvsolutions/irrigation-advisor/internal/station"
	"github.com/uvsolutions/irrigation-advisor/internal/store"
	"github.com/uvsolutions/irrigation-advisor/internal/weather"
)

// Scheduler periodically warms the weather cache for every station in
// use and keeps the fallback snapshot fresh from the default station.
type Scheduler struct {
	scheduler *gocron.Scheduler
	cache     *weather.Cache
	directory *station.Directory
	store     *store.FileStore
	interval  time.Duration
}

// New creates a new Scheduler.
func New(directory *station.Directory, cache *weather.Cache, st *store.FileStore, interval time.Duration) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		cache:     cache,
		directory: directory,
		store:     st,
		interval:  interval,
	}
}

// Start schedules the periodic warmup and starts the underlying
// scheduler.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	if _, err := s.scheduler.Every(minutes).Minutes().Do(s.run); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) run() {
	log.Println("scheduler: warming station weather")
	now := time.Now()

	// Default station first: its snapshot doubles as the process-wide
	// fallback and is persisted for the next restart.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	def := s.directory.Default()
	snap, err := s.cache.RefreshFallback(ctx, def.Coordinate(), now)
	if err != nil {
		log.Printf("WARN: scheduler: default station refresh failed: %v", err)
	} else if s.store != nil {
		if err := s.store.SetFallbackSnapshot(snap); err != nil {
			log.Printf("WARN: scheduler: persist fallback snapshot: %v", err)
		}
	}

	defaultKey := def.Coordinate().Bucket()
	var wg sync.WaitGroup
	for _, st := range s.directory.Stations() {
		if st.Coordinate().Bucket() == defaultKey {
			continue
		}
		st := st
		wg.Add(1)
		go func() {
			defer wg.Done()

			wctx, wcancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer wcancel()

			if _, usedFallback := s.cache.Snapshot(wctx, st.Name, st.Coordinate(), time.Now()); usedFallback {
				log.Printf("WARN: scheduler: warmup fetch failed for station %s", st.Name)
			}
		}()
	}
	wg.Wait()

	log.Println("scheduler: station weather warm")
}
