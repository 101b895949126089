package gazetteer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"

	"github.com/ppiankov/toporag/internal/model"
)

var (
	_ Gazetteer     = (*Neo4j)(nil)
	_ StatsProvider = (*Neo4j)(nil)
)

// Neo4jConfig holds connection settings for the GeoNames graph
type Neo4jConfig struct {
	URI         string
	User        string
	Password    string
	Database    string
	MaxPoolSize int
	Logger      *slog.Logger
}

// Neo4j reads (:Place) nodes loaded from GeoNames
type Neo4j struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

const candidatesQuery = `
MATCH (p:Place)
WHERE toLower(p.name) = $lower
   OR toLower(p.asciiName) = $lower
   OR any(alt IN coalesce(p.alternateNames, []) WHERE toLower(alt) = $lower)
WITH p, coalesce(p.population, 0) AS pop
RETURN p.geonameId AS geonameId,
       p.wikidataId AS wikidataId,
       p.name AS name,
       p.alternateNames AS alternateNames,
       p.latitude AS lat,
       p.longitude AS lon,
       p.featureClass AS featureClass,
       p.featureCode AS featureCode,
       p.countryCode AS country,
       p.admin1Code AS admin1,
       p.admin2Code AS admin2,
       p.population AS population
ORDER BY pop DESC, p.geonameId ASC
LIMIT $limit`

// The bounding box keeps the distance computation on an indexed subset
const nearbyQuery = `
MATCH (p:Place)
WHERE p.latitude >= $minLat AND p.latitude <= $maxLat
  AND p.longitude >= $minLon AND p.longitude <= $maxLon
WITH p, point.distance(
       point({latitude: $lat, longitude: $lon}),
       point({latitude: p.latitude, longitude: p.longitude})) / 1000.0 AS distanceKm
WHERE distanceKm <= $radius
RETURN p.geonameId AS geonameId,
       p.name AS name,
       p.latitude AS lat,
       p.longitude AS lon,
       p.countryCode AS country,
       p.admin1Code AS admin1,
       distanceKm
ORDER BY distanceKm ASC
LIMIT $limit`

const statsQuery = `
MATCH (p:Place)
RETURN count(p) AS totalPlaces,
       count(DISTINCT p.countryCode) AS countries,
       sum(CASE WHEN p.featureClass = 'P' THEN 1 ELSE 0 END) AS populatedPlaces`

// NewNeo4j connects to the graph and verifies connectivity
func NewNeo4j(ctx context.Context, cfg Neo4jConfig) (*Neo4j, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.User, cfg.Password, ""),
		func(c *config.Config) {
			if cfg.MaxPoolSize > 0 {
				c.MaxConnectionPoolSize = cfg.MaxPoolSize
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j at %s: %w", cfg.URI, err)
	}

	logger.Debug("connected to neo4j", "uri", cfg.URI, "database", cfg.Database)

	return &Neo4j{driver: driver, database: cfg.Database, logger: logger}, nil
}

// Close releases the driver's connections
func (g *Neo4j) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

func (g *Neo4j) query(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithReadersRouting()}
	if g.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(g.database))
	}
	return neo4j.ExecuteQuery(ctx, g.driver, cypher, params, neo4j.EagerResultTransformer, opts...)
}

// Candidates returns places whose name, ASCII name or alternate names match
func (g *Neo4j) Candidates(ctx context.Context, name string, limit int) ([]model.Candidate, error) {
	cleaned := model.CleanToponym(name)
	if cleaned == "" {
		return nil, nil
	}

	result, err := g.query(ctx, candidatesQuery, map[string]any{
		"lower": strings.ToLower(cleaned),
		"limit": int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("candidate query for %q: %w", name, err)
	}

	candidates := make([]model.Candidate, 0, len(result.Records))
	for _, rec := range result.Records {
		candidates = append(candidates, candidateFromRecord(rec))
	}

	g.logger.Debug("gazetteer candidates", "toponym", name, "count", len(candidates))
	return candidates, nil
}

// NearbyPlaces uses a degree bounding box followed by an exact point distance filter
func (g *Neo4j) NearbyPlaces(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]model.Place, error) {
	latOffset, lonOffset := boundingBox(lat, radiusKm)

	result, err := g.query(ctx, nearbyQuery, map[string]any{
		"lat":    lat,
		"lon":    lon,
		"minLat": lat - latOffset,
		"maxLat": lat + latOffset,
		"minLon": lon - lonOffset,
		"maxLon": lon + lonOffset,
		"radius": radiusKm,
		"limit":  int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("nearby query at (%f, %f): %w", lat, lon, err)
	}

	places := make([]model.Place, 0, len(result.Records))
	for _, rec := range result.Records {
		places = append(places, placeFromRecord(rec))
	}
	return places, nil
}

// Stats reports node counts
func (g *Neo4j) Stats(ctx context.Context) (Stats, error) {
	result, err := g.query(ctx, statsQuery, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("statistics query: %w", err)
	}
	if len(result.Records) == 0 {
		return Stats{}, nil
	}

	rec := result.Records[0]
	return Stats{
		TotalPlaces:     intValue(rec, "totalPlaces"),
		Countries:       intValue(rec, "countries"),
		PopulatedPlaces: intValue(rec, "populatedPlaces"),
	}, nil
}

// boundingBox returns the half-widths in degrees of a box enclosing radiusKm
func boundingBox(lat, radiusKm float64) (float64, float64) {
	latOffset := radiusKm / 111.0
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 0.01 {
		return latOffset, 180
	}
	return latOffset, math.Min(180, radiusKm/(111.0*cos))
}

func candidateFromRecord(rec *neo4j.Record) model.Candidate {
	c := model.Candidate{
		ID:             idValue(rec, "geonameId"),
		Name:           stringValue(rec, "name"),
		Lat:            floatValue(rec, "lat"),
		Lon:            floatValue(rec, "lon"),
		FeatureClass:   stringValue(rec, "featureClass"),
		FeatureCode:    stringValue(rec, "featureCode"),
		Country:        stringValue(rec, "country"),
		Admin1:         stringValue(rec, "admin1"),
		Admin2:         stringValue(rec, "admin2"),
		WikidataID:     stringValue(rec, "wikidataId"),
		AlternateNames: stringsValue(rec, "alternateNames"),
	}
	if v, ok := rec.Get("population"); ok && v != nil {
		if n, ok := toInt64(v); ok {
			c.Population = &n
		}
	}
	return c
}

func placeFromRecord(rec *neo4j.Record) model.Place {
	return model.Place{
		ID:         idValue(rec, "geonameId"),
		Name:       stringValue(rec, "name"),
		Lat:        floatValue(rec, "lat"),
		Lon:        floatValue(rec, "lon"),
		Country:    stringValue(rec, "country"),
		Admin1:     stringValue(rec, "admin1"),
		DistanceKm: floatValue(rec, "distanceKm"),
	}
}

func stringValue(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// idValue renders integer GeoNames ids without a decimal point
func idValue(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	if n, ok := toInt64(v); ok {
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprint(v)
}

func floatValue(rec *neo4j.Record, key string) float64 {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}

func intValue(rec *neo4j.Record, key string) int64 {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0
	}
	n, _ := toInt64(v)
	return n
}

func stringsValue(rec *neo4j.Record, key string) []string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		// Some loads store alternate names as one comma-separated property
		var out []string
		for _, s := range strings.Split(list, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}
