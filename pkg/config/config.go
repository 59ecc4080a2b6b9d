package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Env         string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Discovery   DiscoveryConfig
	Registry    RegistryConfig
	Places      PlacesConfig
	Overpass    OverpassConfig
	GovData     GovDataConfig
	Geocoding   GeocodingConfig
	Geolocation GeolocationConfig
	Breaker     BreakerConfig
	OTEL        OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds the government dataset mirror connection
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// DiscoveryConfig is the engine-wide search policy. It is copied into the
// orchestrator at construction and never mutated afterwards.
type DiscoveryConfig struct {
	GlobalTimeout     time.Duration
	MaxRadiusKm       float64
	DefaultRadiusKm   float64
	CacheTTL          time.Duration
	CacheKeyPrecision int
	MemoryCacheSize   int
	DebounceWindow    time.Duration
	DedupPrecision    int
	ProviderPriority  []string
	RatingPrecedence  []string
	SyntheticCount    int
}

// RegistryConfig holds the internal facility registry endpoint
type RegistryConfig struct {
	Enabled bool
	URL     string
	Timeout time.Duration
}

// PlacesConfig holds the commercial places API configuration
type PlacesConfig struct {
	Enabled bool
	URL     string
	APIKey  string
	Timeout time.Duration
}

// OverpassConfig holds the community geodata (OpenStreetMap Overpass) configuration
type OverpassConfig struct {
	Enabled        bool
	URL            string
	Timeout        time.Duration
	RequestsPerSec float64
}

// GovDataConfig holds the government dataset configuration
type GovDataConfig struct {
	Enabled    bool
	Source     string // "ckan" or "postgres"
	URL        string
	ResourceID string
	APIKey     string
	Timeout    time.Duration
}

// GeocodingConfig holds forward geocoder configuration
type GeocodingConfig struct {
	GoogleAPIKey       string
	GoogleURL          string
	Region             string
	NominatimURL       string
	UserAgent          string
	NominatimRateLimit float64
	Timeout            time.Duration
}

// GeolocationConfig holds device/IP location configuration
type GeolocationConfig struct {
	Source          string // "ipapi" or "static"
	IPAPIURL        string
	StaticLatitude  float64
	StaticLongitude float64
	MaxAccuracyM    float64
	DefaultTimeout  time.Duration
}

// BreakerConfig holds per-provider circuit breaker settings
type BreakerConfig struct {
	Enabled             bool
	ConsecutiveFailures int
	OpenTimeout         time.Duration
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", nil),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "facility_discovery"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Discovery: DiscoveryConfig{
			GlobalTimeout:     getEnvAsDuration("DISCOVERY_GLOBAL_TIMEOUT", 4*time.Second),
			MaxRadiusKm:       getEnvAsFloat("DISCOVERY_MAX_RADIUS_KM", 50),
			DefaultRadiusKm:   getEnvAsFloat("DISCOVERY_DEFAULT_RADIUS_KM", 5),
			CacheTTL:          getEnvAsDuration("DISCOVERY_CACHE_TTL", 10*time.Minute),
			CacheKeyPrecision: getEnvAsInt("DISCOVERY_CACHE_KEY_PRECISION", 3),
			MemoryCacheSize:   getEnvAsInt("DISCOVERY_MEMORY_CACHE_SIZE", 1024),
			DebounceWindow:    getEnvAsDuration("DISCOVERY_DEBOUNCE_WINDOW", 400*time.Millisecond),
			DedupPrecision:    getEnvAsInt("DISCOVERY_DEDUP_PRECISION", 3),
			ProviderPriority:  getEnvAsList("DISCOVERY_PROVIDER_PRIORITY", []string{"registry", "places", "osm", "gov"}),
			RatingPrecedence:  getEnvAsList("DISCOVERY_RATING_PRECEDENCE", []string{"places", "registry", "osm", "gov"}),
			SyntheticCount:    getEnvAsInt("DISCOVERY_SYNTHETIC_COUNT", 3),
		},
		Registry: RegistryConfig{
			Enabled: getEnvAsBool("REGISTRY_ENABLED", true),
			URL:     getEnv("REGISTRY_URL", "http://localhost:3001/api"),
			Timeout: getEnvAsDuration("REGISTRY_TIMEOUT", 2*time.Second),
		},
		Places: PlacesConfig{
			Enabled: getEnvAsBool("PLACES_ENABLED", true),
			URL:     getEnv("PLACES_URL", "https://maps.googleapis.com/maps/api/place/nearbysearch/json"),
			APIKey:  getEnv("PLACES_API_KEY", ""),
			Timeout: getEnvAsDuration("PLACES_TIMEOUT", 3*time.Second),
		},
		Overpass: OverpassConfig{
			Enabled:        getEnvAsBool("OVERPASS_ENABLED", true),
			URL:            getEnv("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),
			Timeout:        getEnvAsDuration("OVERPASS_TIMEOUT", 3500*time.Millisecond),
			RequestsPerSec: getEnvAsFloat("OVERPASS_RPS", 1),
		},
		GovData: GovDataConfig{
			Enabled:    getEnvAsBool("GOVDATA_ENABLED", false),
			Source:     getEnv("GOVDATA_SOURCE", "ckan"),
			URL:        getEnv("GOVDATA_URL", ""),
			ResourceID: getEnv("GOVDATA_RESOURCE_ID", ""),
			APIKey:     getEnv("GOVDATA_API_KEY", ""),
			Timeout:    getEnvAsDuration("GOVDATA_TIMEOUT", 3*time.Second),
		},
		Geocoding: GeocodingConfig{
			GoogleAPIKey:       getEnv("GEOCODING_GOOGLE_API_KEY", ""),
			GoogleURL:          getEnv("GEOCODING_GOOGLE_URL", "https://maps.googleapis.com/maps/api/geocode/json"),
			Region:             getEnv("GEOCODING_REGION", ""),
			NominatimURL:       getEnv("GEOCODING_NOMINATIM_URL", "https://nominatim.openstreetmap.org/search"),
			UserAgent:          getEnv("GEOCODING_USER_AGENT", "facility-discovery/1.0"),
			NominatimRateLimit: getEnvAsFloat("GEOCODING_NOMINATIM_RPS", 1),
			Timeout:            getEnvAsDuration("GEOCODING_TIMEOUT", 3*time.Second),
		},
		Geolocation: GeolocationConfig{
			Source:          getEnv("GEOLOCATION_SOURCE", "ipapi"),
			IPAPIURL:        getEnv("GEOLOCATION_IPAPI_URL", "http://ip-api.com/json"),
			StaticLatitude:  getEnvAsFloat("GEOLOCATION_STATIC_LAT", 0),
			StaticLongitude: getEnvAsFloat("GEOLOCATION_STATIC_LON", 0),
			MaxAccuracyM:    getEnvAsFloat("GEOLOCATION_MAX_ACCURACY_M", 25000),
			DefaultTimeout:  getEnvAsDuration("GEOLOCATION_TIMEOUT", 5*time.Second),
		},
		Breaker: BreakerConfig{
			Enabled:             getEnvAsBool("BREAKER_ENABLED", true),
			ConsecutiveFailures: getEnvAsInt("BREAKER_CONSECUTIVE_FAILURES", 5),
			OpenTimeout:         getEnvAsDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "facility-discovery"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MaxCoordinatePrecision caps decimal places for rounding coordinates. Eight
// places is about a millimetre; larger values overflow the rounding scale.
const MaxCoordinatePrecision = 8

// Validate rejects values the engine cannot run with
func (c *Config) Validate() error {
	d := c.Discovery
	if d.GlobalTimeout <= 0 {
		return fmt.Errorf("DISCOVERY_GLOBAL_TIMEOUT must be positive")
	}
	if d.MaxRadiusKm <= 0 {
		return fmt.Errorf("DISCOVERY_MAX_RADIUS_KM must be positive")
	}
	if d.DefaultRadiusKm <= 0 || d.DefaultRadiusKm > d.MaxRadiusKm {
		return fmt.Errorf("DISCOVERY_DEFAULT_RADIUS_KM must be in (0, %g]", d.MaxRadiusKm)
	}
	if d.CacheTTL < 0 {
		return fmt.Errorf("DISCOVERY_CACHE_TTL must not be negative")
	}
	for name, precision := range map[string]int{
		"DISCOVERY_CACHE_KEY_PRECISION": d.CacheKeyPrecision,
		"DISCOVERY_DEDUP_PRECISION":     d.DedupPrecision,
	} {
		if precision < 0 || precision > MaxCoordinatePrecision {
			return fmt.Errorf("%s must be in [0, %d], got %d", name, MaxCoordinatePrecision, precision)
		}
	}
	for name, timeout := range map[string]time.Duration{
		"REGISTRY_TIMEOUT": c.Registry.Timeout,
		"PLACES_TIMEOUT":   c.Places.Timeout,
		"OVERPASS_TIMEOUT": c.Overpass.Timeout,
		"GOVDATA_TIMEOUT":  c.GovData.Timeout,
	} {
		if timeout <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.GovData.Enabled && c.GovData.Source != "ckan" && c.GovData.Source != "postgres" {
		return fmt.Errorf("GOVDATA_SOURCE must be ckan or postgres, got %q", c.GovData.Source)
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("750ms", "2s") or bare milliseconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
