package gazetteer

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/toporag/internal/model"
)

var (
	_ Gazetteer     = (*Static)(nil)
	_ StatsProvider = (*Static)(nil)
)

// Static is an in-memory gazetteer loaded from a YAML (or JSON) file:
//
//	places:
//	  - id: "6058560"
//	    name: London
//	    lat: 42.98339
//	    lon: -81.23304
//	    feature_class: P
//	    feature_code: PPL
//	    country: CA
type Static struct {
	places []model.Candidate
	byName map[string][]int
}

type staticFile struct {
	Places []model.Candidate `yaml:"places"`
}

// NewStatic indexes a fixed set of places
func NewStatic(places []model.Candidate) *Static {
	s := &Static{
		places: make([]model.Candidate, len(places)),
		byName: make(map[string][]int),
	}
	copy(s.places, places)

	for i, p := range s.places {
		seen := map[string]bool{}
		for _, n := range append([]string{p.Name}, p.AlternateNames...) {
			key := model.NormalizeName(n)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			s.byName[key] = append(s.byName[key], i)
		}
	}
	return s
}

// LoadStatic reads a gazetteer file; YAML is a superset of JSON so both work
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gazetteer file: %w", err)
	}

	var f staticFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse gazetteer file %s: %w", path, err)
	}
	return NewStatic(f.Places), nil
}

// Candidates returns matching places ordered by population, then id
func (s *Static) Candidates(ctx context.Context, name string, limit int) ([]model.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx := s.byName[model.NormalizeName(name)]
	out := make([]model.Candidate, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.places[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].PopulationOrZero(), out[j].PopulationOrZero()
		if pi != pj {
			return pi > pj
		}
		return out[i].ID < out[j].ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// NearbyPlaces scans every place; the static backend is meant for small fixtures
func (s *Static) NearbyPlaces(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]model.Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []model.Place
	for _, p := range s.places {
		d := HaversineKm(lat, lon, p.Lat, p.Lon)
		if d > radiusKm {
			continue
		}
		out = append(out, model.Place{
			ID:         p.ID,
			Name:       p.Name,
			Lat:        p.Lat,
			Lon:        p.Lon,
			Country:    p.Country,
			Admin1:     p.Admin1,
			DistanceKm: d,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].ID < out[j].ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats counts places, distinct countries and populated places
func (s *Static) Stats(ctx context.Context) (Stats, error) {
	countries := map[string]bool{}
	var populated int64
	for _, p := range s.places {
		if p.Country != "" {
			countries[p.Country] = true
		}
		if p.FeatureClass == "P" {
			populated++
		}
	}
	return Stats{
		TotalPlaces:     int64(len(s.places)),
		Countries:       int64(len(countries)),
		PopulatedPlaces: populated,
	}, nil
}
