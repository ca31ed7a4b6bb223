package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/uvsolutions/irrigation-advisor/internal/weather"
)

var testCoord = weather.Coordinate{Latitude: -37.8136, Longitude: 144.9631}

// fourteenDayPayload covers 7 past days, today at index 7, and 6 future
// days. Nulls stand in for gaps the way Open-Meteo reports them.
const fourteenDayPayload = `{
	"current": {"temperature_2m": 21.96},
	"daily": {
		"time": ["2025-05-25","2025-05-26","2025-05-27","2025-05-28","2025-05-29","2025-05-30","2025-05-31","2025-06-01","2025-06-02","2025-06-03","2025-06-04","2025-06-05","2025-06-06","2025-06-07"],
		"precipitation_sum": [1.0,2.0,0.5,null,3.0,0.0,6.0,5.2,4.0,1.1,null,3.0,0.0,5.0],
		"temperature_2m_max": [20,21,22,23,24,25,26,22.4,23,24,25,26,27,28],
		"temperature_2m_min": [10,11,12,13,14,15,16,12.1,13,14,15,16,17,18]
	}
}`

const sevenDayPayload = `{
	"daily": {
		"time": ["2025-06-01","2025-06-02","2025-06-03","2025-06-04","2025-06-05","2025-06-06","2025-06-07"],
		"precipitation_sum": [5.2,4.0,1.1,null,3.0,0.0,5.0],
		"temperature_2m_max": [22.4,23,24,25,26,27,28],
		"temperature_2m_min": [12.1,13,14,15,16,17,18]
	}
}`

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*OpenMeteoProvider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewOpenMeteoProvider(srv.Client(), "Australia/Melbourne")
	p.baseURL = srv.URL
	return p, srv
}

func TestOpenMeteoFullFetch(t *testing.T) {
	var query url.Values
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Write([]byte(fourteenDayPayload))
	})

	report, err := p.Fetch(context.Background(), testCoord, weather.PurposeFull)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	want := weather.Snapshot{
		Last7Days:   12.5,
		Next24Hours: 5.2,
		Next7Days:   18.3,
		Temp:        22,
		TempMax:     22.4,
		TempMin:     12.1,
	}
	if report.Snapshot != want {
		t.Errorf("snapshot = %+v, want %+v", report.Snapshot, want)
	}

	if len(report.Days) != 7 {
		t.Fatalf("days = %d, want 7 (today through day six)", len(report.Days))
	}
	first := report.Days[0]
	if !first.Date.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first forecast day = %v, want 2025-06-01", first.Date)
	}
	if first.PrecipitationMM != 5.2 || first.TempMaxC != 22.4 || first.TempMinC != 12.1 {
		t.Errorf("first forecast day = %+v", first)
	}

	if got := query.Get("past_days"); got != "7" {
		t.Errorf("past_days = %q, want 7", got)
	}
	if got := query.Get("current"); got != "temperature_2m" {
		t.Errorf("current = %q, want temperature_2m", got)
	}
	if got := query.Get("timezone"); got != "Australia/Melbourne" {
		t.Errorf("timezone = %q", got)
	}
	if got := query.Get("latitude"); got != "-37.8136" {
		t.Errorf("latitude = %q", got)
	}
}

func TestOpenMeteoForecastFetch(t *testing.T) {
	var query url.Values
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Write([]byte(sevenDayPayload))
	})

	report, err := p.Fetch(context.Background(), testCoord, weather.PurposeForecast)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(report.Days) != 7 {
		t.Fatalf("days = %d, want 7", len(report.Days))
	}
	// Null precipitation renders as a dry day rather than poisoning the strip.
	if report.Days[3].PrecipitationMM != 0 {
		t.Errorf("null precipitation day = %v, want 0", report.Days[3].PrecipitationMM)
	}
	if (report.Snapshot != weather.Snapshot{}) {
		t.Errorf("forecast fetch should not build a snapshot, got %+v", report.Snapshot)
	}

	if query.Has("past_days") {
		t.Error("forecast fetch must not request past days")
	}
	if query.Has("current") {
		t.Error("forecast fetch must not request current conditions")
	}
	if got := query.Get("forecast_days"); got != "7" {
		t.Errorf("forecast_days = %q, want 7", got)
	}
}

func TestOpenMeteoShortSeriesTolerated(t *testing.T) {
	// Eight entries instead of fourteen: the future window sums what exists.
	const shortPayload = `{
		"current": {"temperature_2m": 20.0},
		"daily": {
			"time": ["2025-05-25","2025-05-26","2025-05-27","2025-05-28","2025-05-29","2025-05-30","2025-05-31","2025-06-01"],
			"precipitation_sum": [1.0,2.0,0.5,1.5,3.0,0.0,6.0,9.0],
			"temperature_2m_max": [20,21,22,23,24,25,26,27],
			"temperature_2m_min": [10,11,12,13,14,15,16,17]
		}
	}`
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(shortPayload))
	})

	report, err := p.Fetch(context.Background(), testCoord, weather.PurposeFull)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if report.Snapshot.Next7Days != 9.0 {
		t.Errorf("Next7Days = %v, want 9.0 from the single remaining day", report.Snapshot.Next7Days)
	}
	if report.Snapshot.Next24Hours != 9.0 {
		t.Errorf("Next24Hours = %v, want 9.0", report.Snapshot.Next24Hours)
	}
}

func TestOpenMeteoServerErrorFails(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := p.Fetch(context.Background(), testCoord, weather.PurposeFull)
	if !errors.Is(err, errServerError) {
		t.Errorf("err = %v, want errServerError", err)
	}
}

func TestOpenMeteoRateLimitFails(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := p.Fetch(context.Background(), testCoord, weather.PurposeFull)
	if !errors.Is(err, errRateLimited) {
		t.Errorf("err = %v, want errRateLimited", err)
	}
}

func TestOpenMeteoMalformedPayloadFails(t *testing.T) {
	cases := map[string]string{
		"truncated":   `{"daily": {`,
		"no daily":    `{"current": {"temperature_2m": 20.0}}`,
		"empty daily": `{"current": {"temperature_2m": 20.0}, "daily": {"time": []}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			_, err := p.Fetch(context.Background(), testCoord, weather.PurposeFull)
			if !errors.Is(err, errMalformed) {
				t.Errorf("err = %v, want errMalformed", err)
			}
		})
	}
}

func TestOpenMeteoFullFetchRequiresCurrent(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sevenDayPayload))
	})

	_, err := p.Fetch(context.Background(), testCoord, weather.PurposeFull)
	if !errors.Is(err, errMalformed) {
		t.Errorf("err = %v, want errMalformed for missing current block", err)
	}
}

func TestOpenMeteoCancelledContextFails(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fourteenDayPayload))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Fetch(ctx, testCoord, weather.PurposeFull); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
