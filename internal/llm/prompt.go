package llm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/toporag/internal/model"
)

// SystemPrompt frames every judgment call
const SystemPrompt = "You are an expert historical geographer. You link place names in historical documents to gazetteer entries and answer only with JSON."

// maxPromptNearby caps the co-occurring names listed in a prompt
const maxPromptNearby = 15

// BuildPrompt renders the fixed judgment prompt for one cluster
func BuildPrompt(req model.JudgmentRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are disambiguating the place name %q mentioned in a historical document.\n\n", req.Toponym)

	if req.Source != nil && req.Source.City != "" && req.Source.State != "" {
		fmt.Fprintf(&b, "SOURCE LOCATION: The document was published in %s, %s.\n", req.Source.City, req.Source.State)
		b.WriteString("Consider proximity to the source location when choosing among candidates.\n\n")
	}

	fmt.Fprintf(&b, "CONTEXTS (the mention is marked %s...%s):\n\n", model.HighlightOpen, model.HighlightClose)
	for i, ctx := range req.Contexts {
		fmt.Fprintf(&b, "%d. %s\n\n", i+1, ctx)
	}

	if len(req.Nearby) > 0 {
		nearby := req.Nearby
		if len(nearby) > maxPromptNearby {
			nearby = nearby[:maxPromptNearby]
		}
		fmt.Fprintf(&b, "NEARBY LOCATIONS (mentioned close to this place): %s\n", strings.Join(nearby, ", "))
		b.WriteString("These co-occurring places indicate the region being discussed.\n\n")
	}

	b.WriteString(supportNote(req.SupportTier))
	b.WriteString("\n\nCANDIDATE LOCATIONS:\n\n")
	for _, c := range req.Candidates {
		fmt.Fprintf(&b, "ID: %s\n", c.ID)
		fmt.Fprintf(&b, "Name: %s\n", c.Name)
		fmt.Fprintf(&b, "TYPE: %s\n", c.TypeLabel)
		fmt.Fprintf(&b, "Location: %s, %s\n", orNA(c.Admin1), orNA(c.Country))
		fmt.Fprintf(&b, "Coordinates: %.5f, %.5f\n", c.Lat, c.Lon)
		if c.Population != nil && *c.Population > 0 {
			fmt.Fprintf(&b, "Population: %s\n", groupThousands(*c.Population))
		}
		b.WriteString("\n")
	}

	b.WriteString(`RULES:
1. If the context reads "[City], [State]" or "[City], [Country]", select the CITY, never the state or country.
2. Prefer the most specific feature type the context supports: CITY/TOWN > COUNTY > STATE > COUNTRY.
3. The nearby locations must agree with your selection. If they point elsewhere, return null.
4. A wrong answer is worse than no answer. When evidence is weak or ambiguous, return null.

Return ONLY a JSON object:
{
  "selected_id": "<candidate ID or null>",
  "confidence": "<high|medium|low>",
  "reasoning": "<which rule applied and why the evidence supports it>"
}
`)

	return b.String()
}

func supportNote(tier model.Tier) string {
	switch tier {
	case model.TierHigh:
		return "Note: the contexts are geographically coherent and most likely share one referent."
	case model.TierMedium:
		return "Note: the contexts are moderately coherent."
	default:
		return "Note: coherence is low; contexts may refer to different places with the same name."
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
