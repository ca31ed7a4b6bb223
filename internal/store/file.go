package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uvsolutions/irrigation-advisor/internal/advisor"
	"github.com/uvsolutions/irrigation-advisor/internal/weather"
)

var (
	ErrNotFound       = errors.New("site not found")
	ErrThresholdOrder = errors.New("thresholds must be strictly ascending")
)

// fileLayout mirrors the legacy dashboard's data file, so existing
// deployments keep their sites and history across the migration.
// Pointer fields distinguish "absent" from "zero" in older files.
type fileLayout struct {
	Sites      map[string]*advisor.Site `json:"sites"`
	Weather    *weather.Snapshot        `json:"weather,omitempty"`
	Thresholds *advisor.Thresholds      `json:"priority_thresholds,omitempty"`
	LastSaved  string                   `json:"last_saved,omitempty"`
}

// DefaultSnapshot is the seeded fallback weather used until a real
// fetch for the default station succeeds.
func DefaultSnapshot() weather.Snapshot {
	return weather.Snapshot{
		Last7Days:   12.5,
		Next24Hours: 5.2,
		Next7Days:   18.3,
		Temp:        22,
		TempMax:     22,
		TempMin:     12,
	}
}

// FileStore keeps sites, priority thresholds and the default weather
// snapshot in memory and writes the whole state back to a JSON file on
// every mutation. Reads return copies; callers never share memory with
// the store.
type FileStore struct {
	mu         sync.RWMutex
	path       string
	sites      map[string]*advisor.Site
	thresholds advisor.Thresholds
	weather    weather.Snapshot
}

// Open loads the data file, seeding defaults for anything missing. A
// nonexistent file is a fresh install. A corrupt file is an error: the
// next persist would otherwise silently discard the operator's records.
// A misordered threshold triple counts as corrupt; the tier cascade
// assumes strict ascending order.
func Open(path string) (*FileStore, error) {
	s := &FileStore{
		path:       path,
		sites:      make(map[string]*advisor.Site),
		thresholds: advisor.DefaultThresholds(),
		weather:    DefaultSnapshot(),
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}

	var layout fileLayout
	if err := json.Unmarshal(raw, &layout); err != nil {
		return nil, fmt.Errorf("parse data file %s: %w", path, err)
	}

	if layout.Sites != nil {
		s.sites = layout.Sites
	}
	if layout.Weather != nil {
		s.weather = *layout.Weather
	}
	if layout.Thresholds != nil {
		if err := thresholdOrder(*layout.Thresholds); err != nil {
			return nil, fmt.Errorf("data file %s: %w", path, err)
		}
		s.thresholds = *layout.Thresholds
	}
	return s, nil
}

// Sites returns every site as a copy, ordered by name.
func (s *FileStore) Sites() []*advisor.Site {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*advisor.Site, 0, len(s.sites))
	for _, site := range s.sites {
		cp := *site
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Site returns a copy of one site.
func (s *FileStore) Site(id string) (*advisor.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	site, ok := s.sites[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *site
	return &cp, nil
}

// CreateSite registers a site, assigning an id when the caller left it
// blank.
func (s *FileStore) CreateSite(site advisor.Site) (*advisor.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if site.ID == "" {
		site.ID = uuid.NewString()
	}
	if _, exists := s.sites[site.ID]; exists {
		return nil, fmt.Errorf("site %s already exists", site.ID)
	}
	s.sites[site.ID] = &site

	if err := s.persist(); err != nil {
		delete(s.sites, site.ID)
		return nil, err
	}
	cp := site
	return &cp, nil
}

// UpdateSite applies a change to a site under the store lock, so visit
// appends racing a field edit cannot lose each other.
func (s *FileStore) UpdateSite(id string, apply func(*advisor.Site)) (*advisor.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	site, ok := s.sites[id]
	if !ok {
		return nil, ErrNotFound
	}

	prev := *site
	apply(site)
	site.ID = id // the id is not editable

	if err := s.persist(); err != nil {
		*site = prev
		return nil, err
	}
	cp := *site
	return &cp, nil
}

// DeleteSite removes a site and its visit history.
func (s *FileStore) DeleteSite(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	site, ok := s.sites[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.sites, id)

	if err := s.persist(); err != nil {
		s.sites[id] = site
		return err
	}
	return nil
}

// AppendVisit adds a field observation to a site. When probe readings
// are present the visit's aggregate moisture is recomputed from them,
// keeping the stored mean honest.
func (s *FileStore) AppendVisit(id string, v advisor.Visit) (*advisor.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	site, ok := s.sites[id]
	if !ok {
		return nil, ErrNotFound
	}

	if len(v.Readings) > 0 {
		v.Moisture = advisor.AggregateReadings(v.Readings)
	}
	site.Visits = append(site.Visits, v)

	if err := s.persist(); err != nil {
		site.Visits = site.Visits[:len(site.Visits)-1]
		return nil, err
	}
	cp := *site
	return &cp, nil
}

// Thresholds returns the current priority thresholds.
func (s *FileStore) Thresholds() advisor.Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.thresholds
}

// thresholdOrder rejects triples that break the strictly ascending
// invariant the tier cascade assumes.
func thresholdOrder(t advisor.Thresholds) error {
	if !(t.Critical < t.Medium && t.Medium < t.Low) {
		return fmt.Errorf("%w: critical=%d medium=%d low=%d", ErrThresholdOrder, t.Critical, t.Medium, t.Low)
	}
	return nil
}

// SetThresholds replaces the priority thresholds. Out-of-order triples
// are rejected here, before they can reach the engine.
func (s *FileStore) SetThresholds(t advisor.Thresholds) error {
	if err := thresholdOrder(t); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.thresholds
	s.thresholds = t
	if err := s.persist(); err != nil {
		s.thresholds = prev
		return err
	}
	return nil
}

// FallbackSnapshot returns the persisted default weather.
func (s *FileStore) FallbackSnapshot() weather.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weather
}

// SetFallbackSnapshot persists a newly fetched default-station snapshot
// so restarts start from real numbers instead of the seed.
func (s *FileStore) SetFallbackSnapshot(w weather.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.weather
	s.weather = w
	if err := s.persist(); err != nil {
		s.weather = prev
		return err
	}
	return nil
}

// persist writes the full state through a temp file and rename, so a
// crash mid-write cannot truncate the data file. Callers hold the write
// lock.
func (s *FileStore) persist() error {
	layout := fileLayout{
		Sites:      s.sites,
		Weather:    &s.weather,
		Thresholds: &s.thresholds,
		LastSaved:  time.Now().Format("2006-01-02 15:04:05"),
	}

	raw, err := json.MarshalIndent(layout, "", "  ")
	if err != nil {
		return fmt.Errorf("encode data file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write data file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}
