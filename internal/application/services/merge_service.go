package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zatekoja/facility-discovery/internal/domain/entities"
	"github.com/zatekoja/facility-discovery/pkg/geo"
	"github.com/zatekoja/facility-discovery/pkg/textnorm"
)

// MergeField names a facility field whose value may come from a provider other
// than the surviving record's.
type MergeField string

const (
	FieldAddress   MergeField = "address"
	FieldPhone     MergeField = "phone"
	FieldWebsite   MergeField = "website"
	FieldRating    MergeField = "rating"
	FieldOwnership MergeField = "ownership"
)

// MergePolicy controls identity resolution across providers.
//
// Two records are treated as the same facility when their folded names are equal
// and their coordinates round to the same bucket at BucketPrecision decimal
// places. The heuristic produces false merges (two distinct clinics with the
// same name in one ~110 m bucket) and false splits (one facility whose provider
// coordinates straddle a bucket edge).
type MergePolicy struct {
	// ProviderPriority orders survivors, highest first. Providers not listed
	// rank after every listed one.
	ProviderPriority []entities.ProviderID
	// FieldPrecedence overrides ProviderPriority for individual fields.
	FieldPrecedence map[MergeField][]entities.ProviderID
	BucketPrecision int
}

// DefaultMergePolicy is registry > places > osm > gov, with ratings taken from
// the commercial provider first.
func DefaultMergePolicy() MergePolicy {
	return MergePolicy{
		ProviderPriority: append([]entities.ProviderID(nil), entities.DefaultProviderPriority...),
		FieldPrecedence: map[MergeField][]entities.ProviderID{
			FieldRating: {entities.ProviderPlaces, entities.ProviderRegistry, entities.ProviderOSM, entities.ProviderGov},
		},
		BucketPrecision: 3,
	}
}

const maxBucketPrecision = 8

// NewMergePolicy builds a policy from configured provider names.
func NewMergePolicy(priority, ratingPrecedence []string, bucketPrecision int) (MergePolicy, error) {
	if bucketPrecision < 0 || bucketPrecision > maxBucketPrecision {
		return MergePolicy{}, fmt.Errorf("bucket precision %d outside [0, %d]", bucketPrecision, maxBucketPrecision)
	}
	policy := DefaultMergePolicy()
	policy.BucketPrecision = bucketPrecision

	if len(priority) > 0 {
		ids, err := parseProviderList(priority)
		if err != nil {
			return MergePolicy{}, fmt.Errorf("provider priority: %w", err)
		}
		policy.ProviderPriority = ids
	}
	if len(ratingPrecedence) > 0 {
		ids, err := parseProviderList(ratingPrecedence)
		if err != nil {
			return MergePolicy{}, fmt.Errorf("rating precedence: %w", err)
		}
		policy.FieldPrecedence[FieldRating] = ids
	}
	return policy, nil
}

func parseProviderList(names []string) ([]entities.ProviderID, error) {
	ids := make([]entities.ProviderID, 0, len(names))
	for _, name := range names {
		id, ok := entities.ParseProviderID(name)
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// MergeService is the normalizer and deduplicator.
type MergeService struct {
	policy MergePolicy
	rank   map[entities.ProviderID]int
}

// NewMergeService creates a merge service for policy.
func NewMergeService(policy MergePolicy) *MergeService {
	rank := make(map[entities.ProviderID]int, len(policy.ProviderPriority))
	for i, id := range policy.ProviderPriority {
		if _, ok := rank[id]; !ok {
			rank[id] = i
		}
	}
	return &MergeService{policy: policy, rank: rank}
}

// Merge flattens the usable provider results into one candidate list with
// duplicates collapsed. The output depends only on the set of results, not on
// their order, and merging a result with itself equals merging it once.
func (s *MergeService) Merge(results []entities.ProviderResult) []entities.Facility {
	var all []entities.Facility
	seen := make(map[entities.FacilityRef]struct{})
	for _, r := range results {
		if !r.Status.Usable() {
			continue
		}
		for _, f := range r.Facilities {
			if f.Synthetic || f.Coordinate.Validate() != nil || strings.TrimSpace(f.Name) == "" {
				continue
			}
			if f.Source == "" {
				f.Source = r.Provider
			}
			if _, dup := seen[f.Ref()]; dup {
				continue
			}
			seen[f.Ref()] = struct{}{}
			all = append(all, f)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		ri, rj := s.providerRank(all[i].Source), s.providerRank(all[j].Source)
		if ri != rj {
			return ri < rj
		}
		if all[i].Source != all[j].Source {
			return all[i].Source < all[j].Source
		}
		return all[i].ID < all[j].ID
	})

	var (
		order  []string
		groups = make(map[string][]entities.Facility)
	)
	for _, f := range all {
		key := s.DedupKey(f)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], f)
	}

	merged := make([]entities.Facility, 0, len(order))
	for _, key := range order {
		merged = append(merged, s.mergeGroup(groups[key]))
	}
	return merged
}

// DedupKey is the folded name plus the coordinate bucket. A name that folds to
// nothing (only symbols or punctuation) keys on the provider reference, so the
// record is kept and never merged with another.
func (s *MergeService) DedupKey(f entities.Facility) string {
	name := textnorm.Fold(f.Name)
	if name == "" {
		ref := f.Ref()
		return "ref|" + string(ref.Source) + "|" + ref.ID
	}
	p := s.policy.BucketPrecision
	return name + "|" +
		strconv.FormatFloat(geo.Round(f.Coordinate.Latitude, p), 'f', p, 64) + "," +
		strconv.FormatFloat(geo.Round(f.Coordinate.Longitude, p), 'f', p, 64)
}

// mergeGroup keeps the first (highest priority) record and fills its empty
// fields from the others. A populated field is never replaced by an empty one.
func (s *MergeService) mergeGroup(group []entities.Facility) entities.Facility {
	survivor := group[0].Clone()
	if len(group) == 1 {
		return survivor
	}

	if f, ok := s.pick(group, FieldAddress, func(f entities.Facility) bool { return !f.Address.IsZero() }); ok {
		survivor.Address = f.Address
	}
	if f, ok := s.pick(group, FieldPhone, func(f entities.Facility) bool { return f.Phone != "" }); ok {
		survivor.Phone = f.Phone
	}
	if f, ok := s.pick(group, FieldWebsite, func(f entities.Facility) bool { return f.Website != "" }); ok {
		survivor.Website = f.Website
	}
	if f, ok := s.pick(group, FieldRating, func(f entities.Facility) bool { return f.Rating != nil }); ok {
		survivor.Rating = entities.Float64Ptr(*f.Rating)
	}
	if f, ok := s.pick(group, FieldOwnership, func(f entities.Facility) bool { return f.Ownership != entities.OwnershipUnknown }); ok {
		survivor.Ownership = f.Ownership
	}

	var specialties []string
	for _, f := range group {
		specialties = append(specialties, f.Specialties...)
		survivor.EmergencyCapable = survivor.EmergencyCapable || f.EmergencyCapable
	}
	survivor.Specialties = textnorm.Tags(specialties)

	survivor.MergedFrom = make([]entities.FacilityRef, 0, len(group)-1)
	for _, f := range group[1:] {
		survivor.MergedFrom = append(survivor.MergedFrom, f.Ref())
	}
	return survivor
}

// pick returns the first populated record in field precedence order. Group
// members are already in provider priority order, which breaks ties.
func (s *MergeService) pick(group []entities.Facility, field MergeField, populated func(entities.Facility) bool) (entities.Facility, bool) {
	precedence, ok := s.policy.FieldPrecedence[field]
	if !ok {
		precedence = s.policy.ProviderPriority
	}
	for _, id := range precedence {
		for _, f := range group {
			if f.Source == id && populated(f) {
				return f, true
			}
		}
	}
	for _, f := range group {
		if populated(f) {
			return f, true
		}
	}
	return entities.Facility{}, false
}

func (s *MergeService) providerRank(id entities.ProviderID) int {
	if r, ok := s.rank[id]; ok {
		return r
	}
	return len(s.policy.ProviderPriority)
}
