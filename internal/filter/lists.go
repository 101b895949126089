package filter

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// Common NER errors
var blacklist = set(
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "from",
	"up", "down", "out", "over", "under", "about", "after", "before",
)

var genericDescriptors = set(
	"the river", "the lake", "the mountain", "the hill", "the valley",
	"the creek", "the stream", "the bay", "the island", "the peninsula",
	"the rapids", "the falls", "the portage", "the trail", "the road",
	"the bridge", "the pass", "the canyon", "the plateau", "the ridge",
	"the forest", "the woods", "the prairie", "the plains", "the desert",
	"the coast", "the shore", "the beach", "the harbor", "the port",
	"the settlement", "the village", "the town", "the city", "the fort",
	"the post", "the station", "the camp", "the encampment",
)

// Bare geographic terms recognised after a leading "the "
var genericTerms = set(
	"river", "lake", "mountain", "hill", "valley", "creek", "stream",
	"bay", "island", "rapids", "falls", "portage", "trail", "road",
	"bridge", "pass", "canyon", "plateau", "ridge", "forest", "woods",
	"prairie", "plains", "desert", "coast", "shore", "beach", "harbor",
	"settlement", "village", "town", "city", "fort", "post", "station",
)

var relativeReferences = set(
	"north", "south", "east", "west", "northeast", "northwest",
	"southeast", "southwest", "northern", "southern", "eastern", "western",
	"here", "there", "yonder", "beyond", "above", "below",
	"upstream", "downstream", "upriver", "downriver",
)

var nonSpecific = set(
	"the place", "the area", "the region", "the district", "the territory",
	"the country", "the land", "the locality", "the vicinity", "the neighborhood",
	"the site", "the spot", "the location", "the position",
)

// abbreviationExpansions lists ambiguous abbreviations and the phrases that resolve them
var abbreviationExpansions = map[string][]string{
	"N.Y.":   {"new york"},
	"U.S.":   {"united states", "america"},
	"U.K.":   {"united kingdom", "britain", "england"},
	"B.C.":   {"british columbia"},
	"D.C.":   {"district of columbia", "washington"},
	"Calif.": {"california"},
	"Penn.":  {"pennsylvania"},
	"Mass.":  {"massachusetts"},
	"Conn.":  {"connecticut"},
	"N.C.":   {"north carolina"},
	"S.C.":   {"south carolina"},
	"N.D.":   {"north dakota"},
	"S.D.":   {"south dakota"},
	"La.":    {"louisiana"},
	"Ont.":   {"ontario"},
	"Que.":   {"quebec"},
	"N.W.T.": {"northwest territories"},
	"Alta.":  {"alberta"},
	"Sask.":  {"saskatchewan"},
	"Man.":   {"manitoba"},
	"N.B.":   {"new brunswick"},
	"P.E.I.": {"prince edward island"},
	"N.S.":   {"nova scotia"},
}

var personTitles = []string{
	"mr.", "mrs.", "ms.", "miss", "dr.", "prof.", "sir", "lady", "lord",
	"capt.", "captain", "lt.", "col.", "gen.", "rev.", "father", "brother",
}

var personVerbs = []string{" said", " stated", " reported", " wrote", " argued", " claimed"}

// Nationality words NER often tags as places
var demonyms = set(
	"american", "americans", "canadian", "canadians", "british", "english",
	"french", "german", "germans", "irish", "scottish", "scotch", "spanish",
	"mexican", "mexicans", "dutch", "russian", "russians", "yankee", "yankees",
)

var defaultAmbiguousTerms = set(
	"fort", "river", "lake", "mountain", "hill", "creek", "island",
	"bay", "valley", "falls", "rapids", "portage", "pass", "bridge",
	"city", "town", "village", "settlement", "post", "station", "camp",
	"north", "south", "east", "west", "central", "upper", "lower",
	"new", "old", "great", "little", "big", "small",
	"union", "junction", "center", "centre", "cross", "corner",
	"point", "head", "mouth", "landing", "springs", "wells",
)
