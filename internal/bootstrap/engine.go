// Package bootstrap builds the discovery engine from configuration. The HTTP
// server and the operator CLI share it so both run the same graph.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facility-discovery/internal/adapters/cache"
	"github.com/zatekoja/facility-discovery/internal/adapters/database"
	"github.com/zatekoja/facility-discovery/internal/adapters/events"
	"github.com/zatekoja/facility-discovery/internal/adapters/providers/facilities"
	"github.com/zatekoja/facility-discovery/internal/adapters/providers/geolocation"
	"github.com/zatekoja/facility-discovery/internal/application/services"
	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
	"github.com/zatekoja/facility-discovery/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/facility-discovery/internal/infrastructure/clients/redis"
	"github.com/zatekoja/facility-discovery/internal/infrastructure/clients/registry"
	"github.com/zatekoja/facility-discovery/internal/infrastructure/observability"
	"github.com/zatekoja/facility-discovery/pkg/config"
)

// memoryMaxTTL bounds in-process entries when no shared cache is configured;
// geocodes are the longest lived.
const memoryMaxTTL = 30 * 24 * time.Hour

// Options tweak how the graph is built.
type Options struct {
	// HTTPClient is shared by every HTTP adapter; nil uses per-adapter defaults.
	HTTPClient *http.Client
	// ListenForInvalidation subscribes to cache events from other instances.
	ListenForInvalidation bool
}

// Engine is the assembled discovery graph plus the resources it owns.
type Engine struct {
	InstanceID   string
	Metrics      *observability.Metrics
	Adapters     []providers.FacilityAdapter
	Orchestrator *services.SearchOrchestrator
	Cached       *services.CachedSearchService
	Discovery    *services.DiscoveryService
	// Checks probes optional dependencies for the health endpoint.
	Checks map[string]func(ctx context.Context) error

	invalidation *services.CacheInvalidationService
	closers      []func() error
}

// New builds the engine. Optional dependencies (Redis, the Postgres mirror)
// that fail to connect are logged and left out rather than failing startup.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Engine, error) {
	e := &Engine{
		InstanceID: uuid.NewString(),
		Checks:     make(map[string]func(ctx context.Context) error),
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	e.Metrics = metrics

	policy, err := services.NewMergePolicy(cfg.Discovery.ProviderPriority, cfg.Discovery.RatingPrecedence, cfg.Discovery.DedupPrecision)
	if err != nil {
		return nil, err
	}

	adapters, err := e.buildAdapters(ctx, cfg, opts.HTTPClient)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.Adapters = adapters

	cacheProvider, eventBus := e.buildCache(cfg)

	e.Orchestrator = services.NewSearchOrchestrator(
		services.OrchestratorConfig{
			GlobalTimeout: cfg.Discovery.GlobalTimeout,
			MaxRadiusKm:   cfg.Discovery.MaxRadiusKm,
		},
		adapters,
		services.NewMergeService(policy),
		services.NewRankingService(),
		services.NewFallbackSynthesizer(cfg.Discovery.SyntheticCount),
		metrics,
	)
	e.Cached = services.NewCachedSearchService(
		e.Orchestrator,
		cacheProvider,
		eventBus,
		services.CachedSearchConfig{
			TTL:          cfg.Discovery.CacheTTL,
			KeyPrecision: cfg.Discovery.CacheKeyPrecision,
			InstanceID:   e.InstanceID,
		},
		metrics,
	)

	var debouncer *services.Debouncer
	if cfg.Discovery.DebounceWindow > 0 {
		debouncer = services.NewDebouncer(e.Cached, cfg.Discovery.DebounceWindow)
	}

	e.Discovery = services.NewDiscoveryService(
		services.NewGeocodingService(cacheProvider, cfg.Geocoding.Timeout, buildGeocoders(cfg, opts.HTTPClient)...),
		services.NewGeolocator(buildPositionSource(cfg, opts.HTTPClient), cfg.Geolocation.MaxAccuracyM, cfg.Geolocation.DefaultTimeout),
		e.Cached,
		debouncer,
		cfg.Discovery.DefaultRadiusKm,
	)

	if opts.ListenForInvalidation && eventBus != nil {
		if layered, ok := cacheProvider.(*cache.LayeredAdapter); ok {
			e.invalidation = services.NewCacheInvalidationService(layered.Local(), eventBus, e.InstanceID)
			if err := e.invalidation.Start(); err != nil {
				log.Warn().Err(err).Msg("Cache invalidation listener not started")
				e.invalidation = nil
			}
		}
	}

	log.Info().
		Str("instance_id", e.InstanceID).
		Interface("providers", e.Orchestrator.Adapters()).
		Dur("global_timeout", cfg.Discovery.GlobalTimeout).
		Msg("Discovery engine ready")
	return e, nil
}

// Close stops background work and releases connections.
func (e *Engine) Close() error {
	if e.invalidation != nil {
		e.invalidation.Stop()
		e.invalidation = nil
	}
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

func (e *Engine) buildAdapters(ctx context.Context, cfg *config.Config, httpClient *http.Client) ([]providers.FacilityAdapter, error) {
	var adapters []providers.FacilityAdapter

	if cfg.Registry.Enabled {
		var client registry.Client
		if httpClient != nil {
			client = registry.NewClientWithHTTPClient(cfg.Registry.URL, httpClient)
		} else {
			client = registry.NewClient(cfg.Registry.URL)
		}
		adapters = append(adapters, facilities.NewRegistryAdapter(client, cfg.Registry.Timeout))
	}

	if cfg.Places.Enabled {
		if cfg.Places.APIKey == "" {
			log.Warn().Msg("PLACES_API_KEY is not set, commercial places provider disabled")
		} else {
			adapters = append(adapters, facilities.NewPlacesAdapter(cfg.Places.APIKey, cfg.Places.URL, cfg.Places.Timeout, httpClient))
		}
	}

	if cfg.Overpass.Enabled {
		adapters = append(adapters, facilities.NewOverpassAdapter(cfg.Overpass.URL, cfg.Overpass.Timeout, cfg.Overpass.RequestsPerSec, httpClient))
	}

	if cfg.GovData.Enabled {
		source, err := e.buildGovSource(ctx, cfg, httpClient)
		if err != nil {
			return nil, err
		}
		if source != nil {
			adapters = append(adapters, facilities.NewGovDataAdapter(source, cfg.GovData.Timeout))
		}
	}

	if cfg.Breaker.Enabled {
		for i, a := range adapters {
			adapters[i] = facilities.NewBreakerAdapter(a, cfg.Breaker.ConsecutiveFailures, cfg.Breaker.OpenTimeout)
		}
	}

	if len(adapters) == 0 {
		log.Warn().Msg("No facility providers enabled, every search will be degraded")
	}
	return adapters, nil
}

func (e *Engine) buildGovSource(ctx context.Context, cfg *config.Config, httpClient *http.Client) (providers.GovDatasetSource, error) {
	switch cfg.GovData.Source {
	case "postgres":
		if !cfg.Database.Enabled {
			log.Warn().Msg("GOVDATA_SOURCE=postgres but DB_ENABLED=false, government provider disabled")
			return nil, nil
		}
		pgClient, err := postgres.NewClient(ctx, &cfg.Database)
		if err != nil {
			log.Warn().Err(err).Msg("Government dataset mirror unavailable, government provider disabled")
			return nil, nil
		}
		e.closers = append(e.closers, pgClient.Close)
		e.Checks["postgres"] = pgClient.Ping
		return database.NewGovFacilityStore(pgClient), nil
	default:
		source, err := facilities.NewCKANSource(cfg.GovData.URL, cfg.GovData.ResourceID, cfg.GovData.APIKey, httpClient)
		if err != nil {
			return nil, fmt.Errorf("invalid government dataset configuration: %w", err)
		}
		return source, nil
	}
}

// buildCache returns a memory-only cache, or memory in front of Redis plus the
// Redis event bus when Redis is reachable.
func (e *Engine) buildCache(cfg *config.Config) (providers.CacheProvider, providers.EventBus) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryAdapter(cfg.Discovery.MemoryCacheSize, memoryMaxTTL), nil
	}

	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, using in-process cache only")
		return cache.NewMemoryAdapter(cfg.Discovery.MemoryCacheSize, memoryMaxTTL), nil
	}
	e.Checks["redis"] = redisClient.Ping

	localTTL := int(cfg.Discovery.CacheTTL / time.Second)
	if localTTL <= 0 {
		localTTL = 1
	}
	local := cache.NewMemoryAdapter(cfg.Discovery.MemoryCacheSize, cfg.Discovery.CacheTTL)
	eventBus := events.NewRedisEventBus(redisClient)

	// the bus must close before the client it subscribes through
	e.closers = append(e.closers, redisClient.Close, eventBus.Close)
	return cache.NewLayeredAdapter(local, cache.NewRedisAdapter(redisClient), localTTL), eventBus
}

func buildGeocoders(cfg *config.Config, httpClient *http.Client) []providers.Geocoder {
	var geocoders []providers.Geocoder
	if cfg.Geocoding.GoogleAPIKey != "" {
		google := geolocation.NewGoogleGeocoderWithOptions(cfg.Geocoding.GoogleAPIKey, cfg.Geocoding.GoogleURL, httpClient)
		google.Region = cfg.Geocoding.Region
		geocoders = append(geocoders, google)
	}
	geocoders = append(geocoders, geolocation.NewNominatimGeocoder(
		cfg.Geocoding.NominatimURL,
		cfg.Geocoding.UserAgent,
		cfg.Geocoding.NominatimRateLimit,
		httpClient,
	))
	return geocoders
}

func buildPositionSource(cfg *config.Config, httpClient *http.Client) providers.PositionSource {
	if cfg.Geolocation.Source == "static" {
		return geolocation.NewStaticSource(cfg.Geolocation.StaticLatitude, cfg.Geolocation.StaticLongitude)
	}
	return geolocation.NewIPAPISource(cfg.Geolocation.IPAPIURL, httpClient)
}

// Providers lists the ids of the configured facility providers.
func (e *Engine) Providers() []entities.ProviderID {
	return e.Orchestrator.Adapters()
}

// CircuitStates reports the breaker state ("closed", "half-open", "open") of
// every adapter wrapped in a circuit breaker, keyed by provider id.
func (e *Engine) CircuitStates() map[string]string {
	states := make(map[string]string)
	for _, a := range e.Adapters {
		if b, ok := a.(*facilities.BreakerAdapter); ok {
			states[string(b.ID())] = b.State().String()
		}
	}
	return states
}
