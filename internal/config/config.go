package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/uvsolutions/irrigation-advisor/internal/advisor"
	"github.com/uvsolutions/irrigation-advisor/internal/station"
)

type AppConfig struct {
	Port string

	// DataFile is the JSON file holding sites, visits, thresholds and
	// the persisted fallback snapshot.
	DataFile string

	// StationsFile maps site names to their nearest BoM station.
	StationsFile string

	// SoilTablesFile optionally overrides the soil coefficient tables.
	SoilTablesFile string

	GeocoderAPIKey string

	// Outbound HTTP timeouts per fetch purpose.
	HTTPTimeout     time.Duration
	FullTimeout     time.Duration
	ForecastTimeout time.Duration

	// Cache freshness windows.
	FullTTL     time.Duration
	ForecastTTL time.Duration

	// FetchInterval controls the background warmup of station weather.
	FetchInterval time.Duration

	// Timezone the daily forecast buckets are aligned to.
	Timezone string

	DefaultStationName  string
	DefaultStationBomID string
	DefaultStationLat   float64
	DefaultStationLon   float64
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{
		Port:           getenvDefault("PORT", "8080"),
		DataFile:       getenvDefault("DATA_FILE", "uvs_data.json"),
		StationsFile:   os.Getenv("STATIONS_FILE"),
		SoilTablesFile: os.Getenv("SOIL_TABLES_FILE"),
		GeocoderAPIKey: os.Getenv("GEOCODER_API_KEY"),
		Timezone:       getenvDefault("WEATHER_TIMEZONE", "Australia/Melbourne"),

		DefaultStationName:  getenvDefault("DEFAULT_STATION_NAME", "Melbourne (Olympic Park)"),
		DefaultStationBomID: getenvDefault("DEFAULT_STATION_BOM_ID", "086338"),
		DefaultStationLat:   getenvFloat("DEFAULT_STATION_LAT", -37.8136),
		DefaultStationLon:   getenvFloat("DEFAULT_STATION_LON", 144.9631),
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.FullTimeout, err = getenvDuration("WEATHER_FULL_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.ForecastTimeout, err = getenvDuration("WEATHER_FORECAST_TIMEOUT", "5s"); err != nil {
		return nil, err
	}
	if cfg.FullTTL, err = getenvDuration("CACHE_TTL_FULL", "10m"); err != nil {
		return nil, err
	}
	if cfg.ForecastTTL, err = getenvDuration("CACHE_TTL_FORECAST", "2h"); err != nil {
		return nil, err
	}
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", "15m"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultStation is the station sites fall back to when no assignment
// exists.
func (c *AppConfig) DefaultStation() station.Station {
	return station.Station{
		Name:  c.DefaultStationName,
		BomID: c.DefaultStationBomID,
		Lat:   c.DefaultStationLat,
		Lon:   c.DefaultStationLon,
	}
}

// SoilTables loads coefficient overrides from SOIL_TABLES_FILE. Entries
// merge over the defaults, so a file may override a single soil type.
// Daily drop rates must be positive; the critical-horizon estimate
// divides by them.
func (c *AppConfig) SoilTables() (advisor.Tables, error) {
	tables := advisor.DefaultTables()
	if c.SoilTablesFile == "" {
		return tables, nil
	}

	raw, err := os.ReadFile(c.SoilTablesFile)
	if err != nil {
		return advisor.Tables{}, fmt.Errorf("read soil tables: %w", err)
	}
	if err := json.Unmarshal(raw, &tables); err != nil {
		return advisor.Tables{}, fmt.Errorf("parse soil tables %s: %w", c.SoilTablesFile, err)
	}
	for soil, rate := range tables.DailyDrop {
		if rate <= 0 {
			return advisor.Tables{}, fmt.Errorf("soil tables %s: daily drop for %q must be positive, got %v", c.SoilTablesFile, soil, rate)
		}
	}
	return tables, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}
