// Package gazetteer retrieves candidate places for a name and answers
// proximity queries used by geographic coherence checks.
package gazetteer

import (
	"context"
	"math"

	"github.com/ppiankov/toporag/internal/model"
)

// Gazetteer is the read-only knowledge graph of places
type Gazetteer interface {
	// Candidates returns places matching name case-insensitively, most populous first
	Candidates(ctx context.Context, name string, limit int) ([]model.Candidate, error)
	// NearbyPlaces returns places within radiusKm of a point, nearest first
	NearbyPlaces(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]model.Place, error)
}

// Stats summarizes gazetteer contents
type Stats struct {
	TotalPlaces     int64 `json:"total_places"`
	Countries       int64 `json:"countries"`
	PopulatedPlaces int64 `json:"populated_places"`
}

// StatsProvider is implemented by gazetteers that can report their size
type StatsProvider interface {
	Stats(ctx context.Context) (Stats, error)
}

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}
