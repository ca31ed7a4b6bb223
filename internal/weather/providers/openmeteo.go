package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/uvsolutions/irrigation-advisor/internal/weather"
)

// OpenMeteoProvider fetches daily precipitation and temperature series from
// Open-Meteo. A full fetch covers the past 7 days plus the next 7 (index 7
// of the daily arrays is today); a forecast fetch covers the next 7 only.
type OpenMeteoProvider struct {
	name     string
	baseURL  string
	timezone string
	client   *http.Client
	circuit  *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client, timezone string) *OpenMeteoProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &OpenMeteoProvider{
		name:     "openmeteo",
		baseURL:  "https://api.open-meteo.com/v1/forecast",
		timezone: timezone,
		client:   client,
		circuit:  cb,
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// openMeteoPayload mirrors the subset of the Open-Meteo response we read.
// Daily values are pointers because the API reports gaps as JSON null.
type openMeteoPayload struct {
	Current *struct {
		Temperature2m *float64 `json:"temperature_2m"`
	} `json:"current"`
	Daily *struct {
		Time             []string   `json:"time"`
		PrecipitationSum []*float64 `json:"precipitation_sum"`
		Temperature2mMax []*float64 `json:"temperature_2m_max"`
		Temperature2mMin []*float64 `json:"temperature_2m_min"`
	} `json:"daily"`
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, coord weather.Coordinate, purpose weather.Purpose) (weather.Report, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%.4f", coord.Latitude))
		values.Set("longitude", fmt.Sprintf("%.4f", coord.Longitude))
		values.Set("daily", "precipitation_sum,temperature_2m_max,temperature_2m_min")
		values.Set("timezone", p.timezone)
		values.Set("forecast_days", "7")
		if purpose == weather.PurposeFull {
			values.Set("current", "temperature_2m")
			values.Set("past_days", "7")
		}

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		return req, nil
	}

	resp, err := doRequest(ctx, p.client, p.circuit, buildRequest)
	if err != nil {
		return weather.Report{}, err
	}
	defer resp.Body.Close()

	var payload openMeteoPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Report{}, fmt.Errorf("%w: %v", errMalformed, err)
	}

	if payload.Daily == nil || len(payload.Daily.Time) == 0 {
		return weather.Report{}, fmt.Errorf("%w: no daily series", errMalformed)
	}

	if purpose == weather.PurposeForecast {
		return weather.Report{Days: dailyStrip(payload, 0, 7)}, nil
	}

	if payload.Current == nil || payload.Current.Temperature2m == nil {
		return weather.Report{}, fmt.Errorf("%w: missing current temperature", errMalformed)
	}

	current := *payload.Current.Temperature2m
	snap := weather.Snapshot{
		Last7Days:   weather.Round1(sumRange(payload.Daily.PrecipitationSum, 0, 7)),
		Next24Hours: weather.Round1(valueAt(payload.Daily.PrecipitationSum, 7, 0)),
		Next7Days:   weather.Round1(sumRange(payload.Daily.PrecipitationSum, 7, 14)),
		Temp:        weather.Round1(current),
		TempMax:     weather.Round1(valueAt(payload.Daily.Temperature2mMax, 7, current)),
		TempMin:     weather.Round1(valueAt(payload.Daily.Temperature2mMin, 7, current)),
	}

	return weather.Report{
		Snapshot: snap,
		Days:     dailyStrip(payload, 7, 14),
	}, nil
}

// sumRange totals values[from:to], skipping nulls and tolerating short
// series the same way the legacy dashboard did.
func sumRange(values []*float64, from, to int) float64 {
	var total float64
	for i := from; i < to && i < len(values); i++ {
		if values[i] != nil {
			total += *values[i]
		}
	}
	return total
}

// valueAt returns values[i] or def when the series is short or the entry
// is null.
func valueAt(values []*float64, i int, def float64) float64 {
	if i < len(values) && values[i] != nil {
		return *values[i]
	}
	return def
}

func dailyStrip(payload openMeteoPayload, from, to int) []weather.DailyForecast {
	daily := payload.Daily
	var days []weather.DailyForecast
	for i := from; i < to && i < len(daily.Time); i++ {
		date, err := time.Parse("2006-01-02", daily.Time[i])
		if err != nil {
			continue
		}
		days = append(days, weather.DailyForecast{
			Date:            date,
			PrecipitationMM: weather.Round1(valueAt(daily.PrecipitationSum, i, 0)),
			TempMaxC:        weather.Round1(valueAt(daily.Temperature2mMax, i, 0)),
			TempMinC:        weather.Round1(valueAt(daily.Temperature2mMin, i, 0)),
		})
	}
	return days
}
