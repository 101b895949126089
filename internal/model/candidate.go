package model

// Candidate is a real-world place returned by the gazetteer
type Candidate struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	Lat            float64  `json:"lat" yaml:"lat"`
	Lon            float64  `json:"lon" yaml:"lon"`
	FeatureClass   string   `json:"feature_class" yaml:"feature_class"` // GeoNames class: P, A, H, T, L, S, ...
	FeatureCode    string   `json:"feature_code,omitempty" yaml:"feature_code,omitempty"`
	Country        string   `json:"country,omitempty" yaml:"country,omitempty"` // ISO 3166 alpha-2
	Admin1         string   `json:"admin1,omitempty" yaml:"admin1,omitempty"`
	Admin2         string   `json:"admin2,omitempty" yaml:"admin2,omitempty"`
	Population     *int64   `json:"population,omitempty" yaml:"population,omitempty"`
	WikidataID     string   `json:"wikidata_id,omitempty" yaml:"wikidata_id,omitempty"`
	AlternateNames []string `json:"alternate_names,omitempty" yaml:"alternate_names,omitempty"`
}

// PopulationOrZero returns the population, treating unknown as zero
func (c Candidate) PopulationOrZero() int64 {
	if c.Population == nil {
		return 0
	}
	return *c.Population
}

// FeatureLabel returns the human-readable type of the candidate
func (c Candidate) FeatureLabel() string {
	return FeatureLabel(c.FeatureClass, c.FeatureCode)
}

// FeatureLabel maps a GeoNames feature class and code onto an explicit type label.
// Labels differ for every administrative level so a state can never read as a city.
func FeatureLabel(class, code string) string {
	switch class {
	case "P":
		switch code {
		case "PPLC":
			return "CAPITAL CITY (national capital)"
		case "PPL", "PPLA", "PPLA2", "PPLA3", "PPLA4":
			return "CITY/TOWN (populated place)"
		default:
			return "POPULATED PLACE (city/town/village)"
		}
	case "A":
		switch code {
		case "ADM1":
			return "STATE/PROVINCE (first-level administrative division)"
		case "ADM2":
			return "COUNTY/DISTRICT (second-level administrative division)"
		case "PCLI", "PCL", "PCLD", "PCLF", "PCLS":
			return "COUNTRY (independent political entity)"
		case "ADMD":
			return "ADMINISTRATIVE DIVISION"
		default:
			return "ADMINISTRATIVE AREA"
		}
	case "H":
		return "WATER FEATURE (river, lake, ocean, etc.)"
	case "T":
		return "TERRAIN FEATURE (mountain, valley, etc.)"
	case "L":
		return "LANDSCAPE/REGION (park, forest, etc.)"
	case "S":
		return "STRUCTURE/FACILITY (building, monument, etc.)"
	case "":
		return "UNCLASSIFIED"
	default:
		return class + " (see GeoNames classification)"
	}
}

// IsCountryLevel reports whether the candidate is a country-level entity
func (c Candidate) IsCountryLevel() bool {
	if c.FeatureClass != "A" {
		return false
	}
	switch c.FeatureCode {
	case "PCLI", "PCL", "PCLD", "PCLF", "PCLS":
		return true
	}
	return false
}

// Place is a gazetteer entry returned by a proximity query
type Place struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Country    string  `json:"country,omitempty"`
	Admin1     string  `json:"admin1,omitempty"`
	DistanceKm float64 `json:"distance_km"`
}
