package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/internal/domain/providers"
	"github.com/zatekoja/facility-discovery/internal/infrastructure/observability"
)

// OrchestratorConfig is copied into the orchestrator at construction.
type OrchestratorConfig struct {
	GlobalTimeout time.Duration
	MaxRadiusKm   float64
}

// SearchOrchestrator fans a query out to every adapter, waits until all of them
// answer or the global deadline passes, then merges and ranks what arrived.
type SearchOrchestrator struct {
	cfg      OrchestratorConfig
	adapters []providers.FacilityAdapter
	merger   *MergeService
	ranker   *RankingService
	fallback *FallbackSynthesizer
	metrics  *observability.Metrics
	now      func() time.Time
	newID    func() string
}

// NewSearchOrchestrator creates an orchestrator. metrics may be nil.
func NewSearchOrchestrator(
	cfg OrchestratorConfig,
	adapters []providers.FacilityAdapter,
	merger *MergeService,
	ranker *RankingService,
	fallback *FallbackSynthesizer,
	metrics *observability.Metrics,
) *SearchOrchestrator {
	return &SearchOrchestrator{
		cfg:      cfg,
		adapters: append([]providers.FacilityAdapter(nil), adapters...),
		merger:   merger,
		ranker:   ranker,
		fallback: fallback,
		metrics:  metrics,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Adapters returns the ids of the configured adapters in dispatch order.
func (o *SearchOrchestrator) Adapters() []entities.ProviderID {
	ids := make([]entities.ProviderID, len(o.adapters))
	for i, a := range o.adapters {
		ids[i] = a.ID()
	}
	return ids
}

type adapterOutcome struct {
	index  int
	result entities.ProviderResult
}

// Search runs q against every adapter. Only a validation error on q, or the
// caller cancelling ctx, is returned as an error; provider failures are
// reported in ProviderStatuses.
func (o *SearchOrchestrator) Search(ctx context.Context, q entities.SearchQuery) (entities.SearchResult, error) {
	if err := q.Validate(o.cfg.MaxRadiusKm); err != nil {
		return entities.SearchResult{}, err
	}
	if q.SortBy == "" {
		q.SortBy = entities.SortByDistance
	}

	parent := ctx
	ctx, span := observability.StartSpan(ctx, "discovery.search")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.Float64("search.radius_km", q.RadiusKm),
		attribute.String("search.sort_by", string(q.SortBy)),
		attribute.Int("search.adapters", len(o.adapters)),
	)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.GlobalTimeout)
	defer cancel()

	results := o.fanOut(ctx, q)
	logger := observability.LoggerFromContext(ctx)

	if err := parent.Err(); errors.Is(err, context.Canceled) {
		return entities.SearchResult{}, err
	}

	for _, r := range results {
		observability.RecordProviderMetric(ctx, o.metrics, string(r.Provider), string(r.Status.Kind), r.LatencyMs)
		if r.Status.Kind != entities.StatusOk {
			logger.Warn().
				Str("provider", string(r.Provider)).
				Str("status", string(r.Status.Kind)).
				Str("error_kind", r.Status.ErrorKind).
				Str("reason", r.Status.Reason).
				Int64("latency_ms", r.LatencyMs).
				Msg("Provider did not return a complete result")
		}
	}

	candidates := o.merger.Merge(results)

	result := entities.SearchResult{
		SearchID:         o.newID(),
		Origin:           q.Origin,
		RadiusKm:         q.RadiusKm,
		ProviderStatuses: make([]entities.ProviderStatusSummary, len(results)),
		GeneratedAt:      o.now().UTC(),
	}
	for i, r := range results {
		result.ProviderStatuses[i] = r.Summary()
	}

	if len(candidates) == 0 {
		result.Degraded = true
		result.Facilities = o.ranker.Rank(o.fallback.Synthesize(q.Origin, q.RadiusKm), q.Origin, entities.SortByDistance, entities.Filters{})
		observability.RecordSearchDegraded(ctx, o.metrics)
		logger.Warn().
			Int("providers", len(results)).
			Float64("radius_km", q.RadiusKm).
			Msg("No provider returned facilities, serving synthetic placeholders")
	} else {
		result.Facilities = WithinRadius(o.ranker.Rank(candidates, q.Origin, q.SortBy, q.Filters), q.RadiusKm)
	}

	observability.SetSpanAttributes(span,
		attribute.Int("search.candidates", len(candidates)),
		attribute.Int("search.results", len(result.Facilities)),
		attribute.Bool("search.degraded", result.Degraded),
	)
	return result, nil
}

// fanOut returns one result per adapter, in adapter order. Adapters that have
// not answered when ctx is done are reported as timed out.
func (o *SearchOrchestrator) fanOut(ctx context.Context, q entities.SearchQuery) []entities.ProviderResult {
	start := o.now()
	req := providers.AdapterRequest{
		Origin:   q.Origin,
		RadiusKm: q.RadiusKm,
		Filters:  q.Filters,
		Timeout:  o.cfg.GlobalTimeout,
	}

	// buffered so late adapters never block after the deadline
	outcomes := make(chan adapterOutcome, len(o.adapters))
	for i, adapter := range o.adapters {
		go o.run(ctx, i, adapter, req, outcomes)
	}

	results := make([]entities.ProviderResult, len(o.adapters))
	arrived := make([]bool, len(o.adapters))
	pending := len(o.adapters)

collect:
	for pending > 0 {
		select {
		case out := <-outcomes:
			results[out.index] = out.result
			arrived[out.index] = true
			pending--
		case <-ctx.Done():
			break collect
		}
	}

	elapsed := o.now().Sub(start).Milliseconds()
	for i, ok := range arrived {
		if !ok {
			results[i] = entities.ProviderResult{
				Provider:  o.adapters[i].ID(),
				Status:    entities.TimedOut(),
				LatencyMs: elapsed,
			}
		}
	}
	return results
}

func (o *SearchOrchestrator) run(ctx context.Context, index int, adapter providers.FacilityAdapter, req providers.AdapterRequest, out chan<- adapterOutcome) {
	id := adapter.ID()
	start := o.now()

	ctx, span := observability.StartSpan(ctx, "provider."+string(id))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			observability.LoggerFromContext(ctx).Error().
				Str("provider", string(id)).
				Interface("panic", r).
				Msg("Provider adapter panicked")
			out <- adapterOutcome{index: index, result: entities.ProviderResult{
				Provider:  id,
				Status:    entities.Failed(string(providers.ProviderErrorMalformed), fmt.Sprintf("adapter panic: %v", r)),
				LatencyMs: o.now().Sub(start).Milliseconds(),
			}}
		}
	}()

	result := adapter.Search(ctx, req)
	observability.SetSpanAttributes(span,
		attribute.String("provider.status", string(result.Status.Kind)),
		attribute.Int("provider.count", len(result.Facilities)),
	)

	result.Provider = id
	if !result.Status.Usable() {
		result.Facilities = nil
	}
	out <- adapterOutcome{index: index, result: result}
}
