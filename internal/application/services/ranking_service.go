package services

import (
	"sort"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/pkg/geo"
	"github.com/zatekoja/facility-discovery/pkg/textnorm"
)

// RankingService attaches distances, filters and orders candidates.
type RankingService struct{}

// NewRankingService creates a ranking service
func NewRankingService() *RankingService {
	return &RankingService{}
}

// WithDistances returns copies of candidates with DistanceKm set from origin.
func (s *RankingService) WithDistances(candidates []entities.Facility, origin entities.Coordinate) []entities.Facility {
	out := make([]entities.Facility, len(candidates))
	for i, f := range candidates {
		f = f.Clone()
		f.DistanceKm = geo.HaversineKm(origin.Latitude, origin.Longitude, f.Coordinate.Latitude, f.Coordinate.Longitude)
		out[i] = f
	}
	return out
}

// Rank computes distances, applies filters and sorts. Ties on the primary key
// fall back to distance ascending, then name, then provider-qualified id.
func (s *RankingService) Rank(candidates []entities.Facility, origin entities.Coordinate, sortBy entities.SortBy, filters entities.Filters) []entities.Facility {
	withDistance := s.WithDistances(candidates, origin)

	ranked := make([]entities.Facility, 0, len(withDistance))
	for _, f := range withDistance {
		if Matches(f, filters) {
			ranked = append(ranked, f)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j], sortBy)
	})
	return ranked
}

// Matches reports whether f passes every set filter.
func Matches(f entities.Facility, filters entities.Filters) bool {
	if filters.EmergencyOnly && !f.EmergencyCapable {
		return false
	}
	if filters.Ownership != entities.OwnershipUnknown && f.Ownership != filters.Ownership {
		return false
	}
	if filters.Specialty != "" && !f.HasSpecialty(textnorm.Tag(filters.Specialty)) {
		return false
	}
	return true
}

// WithinRadius drops facilities farther than radiusKm. Distances must already be set.
func WithinRadius(facilities []entities.Facility, radiusKm float64) []entities.Facility {
	out := facilities[:0:0]
	for _, f := range facilities {
		if f.DistanceKm <= radiusKm {
			out = append(out, f)
		}
	}
	return out
}

func less(a, b entities.Facility, sortBy entities.SortBy) bool {
	switch sortBy {
	case entities.SortByRating:
		ra, rb := ratingOf(a), ratingOf(b)
		if ra != rb {
			return ra > rb
		}
	case entities.SortByName:
		na, nb := textnorm.Fold(a.Name), textnorm.Fold(b.Name)
		if na != nb {
			return na < nb
		}
	}

	if a.DistanceKm != b.DistanceKm {
		return a.DistanceKm < b.DistanceKm
	}
	if na, nb := textnorm.Fold(a.Name), textnorm.Fold(b.Name); na != nb {
		return na < nb
	}
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	return a.ID < b.ID
}

// unrated facilities sort after every rated one
func ratingOf(f entities.Facility) float64 {
	if f.Rating == nil {
		return -1
	}
	return *f.Rating
}
