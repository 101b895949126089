package disambiguate

import (
	"context"
	"fmt"

	"github.com/ppiankov/toporag/internal/gazetteer"
	"github.com/ppiankov/toporag/internal/model"
)

// Coherence defaults
const (
	DefaultCoherenceRadiusKm = 250.0
	maxCoherenceNames        = 10
	nearbyPlacesLimit        = 500
	nameLookupLimit          = 10
)

// Coherence is the verdict for one proposed candidate
type Coherence struct {
	Coherent   bool
	Supporting []string
	Conflicts  []string
}

// CoherenceChecker tests a proposed candidate against the nearby names of its
// cluster using the gazetteer as the region oracle.
//
// A nearby name supports the proposal when a place of that name lies within
// the radius, or when the gazetteer places it inside the proposal's region:
// anywhere in the country for a country, the country itself or anything in the
// same first-level division for a state or province, and for smaller places an administrative area of
// the country that is country-level or shares the first-level division.
// The proposal is incoherent only when nearby names exist and none support it.
type CoherenceChecker struct {
	oracle   gazetteer.Gazetteer
	radiusKm float64
}

// NewCoherenceChecker creates a checker; radiusKm <= 0 selects the default
func NewCoherenceChecker(oracle gazetteer.Gazetteer, radiusKm float64) *CoherenceChecker {
	if radiusKm <= 0 {
		radiusKm = DefaultCoherenceRadiusKm
	}
	return &CoherenceChecker{oracle: oracle, radiusKm: radiusKm}
}

// Check evaluates the proposal against up to ten of the most frequent nearby names
func (c *CoherenceChecker) Check(ctx context.Context, proposal model.Candidate, nearby []string) (Coherence, error) {
	names := make([]string, 0, maxCoherenceNames)
	for _, n := range nearby {
		if model.SameName(n, proposal.Name) {
			continue
		}
		names = append(names, n)
		if len(names) == maxCoherenceNames {
			break
		}
	}
	if len(names) == 0 {
		return Coherence{Coherent: true}, nil
	}

	places, err := c.oracle.NearbyPlaces(ctx, proposal.Lat, proposal.Lon, c.radiusKm, nearbyPlacesLimit)
	if err != nil {
		return Coherence{}, fmt.Errorf("nearby places of %s: %w", proposal.ID, err)
	}
	local := make(map[string]bool, len(places))
	for _, p := range places {
		local[model.NormalizeName(p.Name)] = true
	}

	var out Coherence
	for _, name := range names {
		ok := local[model.NormalizeName(name)]
		if !ok {
			ok, err = c.sameRegion(ctx, proposal, name)
			if err != nil {
				return Coherence{}, err
			}
		}
		if ok {
			out.Supporting = append(out.Supporting, name)
		} else {
			out.Conflicts = append(out.Conflicts, name)
		}
	}
	out.Coherent = len(out.Supporting) > 0
	return out, nil
}

func (c *CoherenceChecker) sameRegion(ctx context.Context, proposal model.Candidate, name string) (bool, error) {
	if proposal.Country == "" {
		return false, nil
	}
	regions, err := c.oracle.Candidates(ctx, name, nameLookupLimit)
	if err != nil {
		return false, fmt.Errorf("region lookup %q: %w", name, err)
	}
	for _, r := range regions {
		if r.Country != proposal.Country {
			continue
		}
		if withinRegion(proposal, r) {
			return true, nil
		}
	}
	return false, nil
}

// withinRegion reports whether a same-country place r plausibly belongs to the
// administrative area of the proposal
func withinRegion(proposal, r model.Candidate) bool {
	if proposal.IsCountryLevel() {
		return true
	}
	// Below a first-level division only administrative areas vouch for the proposal
	if proposal.FeatureCode != "ADM1" && r.FeatureClass != "A" {
		return false
	}
	return r.IsCountryLevel() || (r.Admin1 != "" && r.Admin1 == proposal.Admin1)
}
