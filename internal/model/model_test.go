package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestTier_Order(t *testing.T) {
	if !(TierLow < TierMedium && TierMedium < TierHigh) {
		t.Fatal("tiers must be ordered low < medium < high")
	}
	if !TierHigh.AtLeast(TierMedium) || TierLow.AtLeast(TierMedium) {
		t.Error("AtLeast ordering broken")
	}
	if TierUnknown.AtLeast(TierLow) {
		t.Error("unknown tier must never meet a minimum")
	}
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		in      string
		want    Tier
		wantErr bool
	}{
		{"high", TierHigh, false},
		{" Medium ", TierMedium, false},
		{"LOW", TierLow, false},
		{"certain", TierUnknown, true},
		{"", TierUnknown, true},
	}
	for _, tt := range tests {
		got, err := ParseTier(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseTier(%q) = %v, %v; want %v, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestTier_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		C Tier `json:"c"`
	}{TierMedium})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"c":"medium"}` {
		t.Errorf("got %s", data)
	}

	var j Judgment
	if err := json.Unmarshal([]byte(`{"selected_id":"1","confidence":"high"}`), &j); err != nil {
		t.Fatal(err)
	}
	if j.Confidence != TierHigh || !j.Selected() {
		t.Errorf("unexpected judgment %+v", j)
	}
	if err := json.Unmarshal([]byte(`{"confidence":"sure"}`), &j); err == nil {
		t.Error("expected error for unknown tier")
	}
}

func TestSupportTier(t *testing.T) {
	tests := []struct {
		support, total int
		want           Tier
	}{
		{3, 3, TierHigh},
		{3, 5, TierHigh},
		{2, 5, TierMedium},
		{3, 10, TierMedium},
		{1, 5, TierLow},
		{0, 0, TierLow},
	}
	for _, tt := range tests {
		if got := SupportTier(tt.support, tt.total); got != tt.want {
			t.Errorf("SupportTier(%d, %d) = %v, want %v", tt.support, tt.total, got, tt.want)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"Zürich", "zurich", true},
		{"Montréal", "MONTREAL", true},
		{"St.  Louis", "st. louis", true},
		{"Boston's", "Boston", true},
		{"London", "Londonderry", false},
	}
	for _, tt := range tests {
		if got := SameName(tt.a, tt.b); got != tt.same {
			t.Errorf("SameName(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.same)
		}
	}
}

func TestCleanToponym(t *testing.T) {
	tests := map[string]string{
		"Boston's":  "Boston",
		"Quebec’s":  "Quebec",
		" London, ": "London",
		"Ont.":      "Ont",
		"New York":  "New York",
		"Halifax;":  "Halifax",
	}
	for in, want := range tests {
		if got := CleanToponym(in); got != want {
			t.Errorf("CleanToponym(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFeatureLabel_DistinguishesCityFromState(t *testing.T) {
	city := Candidate{FeatureClass: "P", FeatureCode: "PPLA2"}
	state := Candidate{FeatureClass: "A", FeatureCode: "ADM1"}

	if city.FeatureLabel() == state.FeatureLabel() {
		t.Fatal("city and state must not share a label")
	}
	if !strings.HasPrefix(city.FeatureLabel(), "CITY") {
		t.Errorf("city label = %q", city.FeatureLabel())
	}
	if !strings.HasPrefix(state.FeatureLabel(), "STATE/PROVINCE") {
		t.Errorf("state label = %q", state.FeatureLabel())
	}

	annotated := Annotate([]Candidate{city, state})
	if annotated[0].TypeLabel != city.FeatureLabel() || annotated[1].TypeLabel != state.FeatureLabel() {
		t.Error("Annotate must label every candidate with its feature type")
	}
}

func TestCandidate_IsCountryLevel(t *testing.T) {
	if !(Candidate{FeatureClass: "A", FeatureCode: "PCLI"}).IsCountryLevel() {
		t.Error("PCLI is country-level")
	}
	if (Candidate{FeatureClass: "A", FeatureCode: "ADM1"}).IsCountryLevel() {
		t.Error("ADM1 is not country-level")
	}
	if (Candidate{FeatureClass: "P", FeatureCode: "PCLI"}).IsCountryLevel() {
		t.Error("only class A can be country-level")
	}
}

func TestSpan_Distance(t *testing.T) {
	a := Span{Start: 100, End: 106}
	tests := []struct {
		b    Span
		want int
	}{
		{Span{110, 116}, 4},
		{Span{80, 90}, 10},
		{Span{103, 120}, 0},
		{Span{106, 110}, 0},
	}
	for _, tt := range tests {
		if got := a.Distance(tt.b); got != tt.want {
			t.Errorf("Distance(%v) = %d, want %d", tt.b, got, tt.want)
		}
		if got := tt.b.Distance(a); got != tt.want {
			t.Errorf("Distance must be symmetric for %v", tt.b)
		}
	}
}

func TestNewToponymRecord(t *testing.T) {
	if _, err := NewToponymRecord("doc", "Paris", nil, nil); !errors.Is(err, ErrNoMentions) {
		t.Errorf("expected ErrNoMentions, got %v", err)
	}

	mentions := []Mention{{Start: 50, End: 55}, {Start: 10, End: 15}}
	r, err := NewToponymRecord("doc", "Paris", mentions, []string{"Paris", "France"})
	if err != nil {
		t.Fatal(err)
	}
	if r.Mention(0).Start != 10 {
		t.Error("mentions must be ordered by start offset")
	}
	mentions[0].Start = 999
	if r.Mention(1).Start != 50 {
		t.Error("record must copy its mentions")
	}

	sub, err := r.Subset(func(m Mention) bool { return m.Start > 20 })
	if err != nil {
		t.Fatal(err)
	}
	if sub.MentionCount() != 1 || len(sub.Universe()) != 2 {
		t.Errorf("unexpected subset %d mentions, %d universe", sub.MentionCount(), len(sub.Universe()))
	}
	if _, err := r.Subset(func(Mention) bool { return false }); !errors.Is(err, ErrNoMentions) {
		t.Error("empty subset must fail with ErrNoMentions")
	}
}

func TestMention_Highlighted(t *testing.T) {
	m := Mention{Context: "Off to Paris today", HighlightStart: 7, HighlightEnd: 12}
	if got := m.Highlighted(HighlightOpen, HighlightClose); got != "Off to [[Paris]] today" {
		t.Errorf("got %q", got)
	}
	m.HighlightStart, m.HighlightEnd = -1, -1
	if got := m.Highlighted(HighlightOpen, HighlightClose); got != m.Context {
		t.Errorf("unknown highlight must return the context unchanged, got %q", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Pipeline.SimilarityThreshold = 1.5
	cfg.Pipeline.MinConfidence = "certain"
	cfg.Concurrency.Judgments = 0
	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	for _, field := range []string{"SimilarityThreshold", "MinConfidence", "Judgments"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error should mention %s: %v", field, err)
		}
	}

	static := DefaultConfig()
	static.Gazetteer.Backend = "static"
	if err := static.Validate(); err == nil || !strings.Contains(err.Error(), "File") {
		t.Errorf("static backend without file must fail, got %v", err)
	}
}

func TestConfig_MinConfidenceTier(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MinConfidenceTier() != TierMedium {
		t.Errorf("default minimum should be medium, got %v", cfg.MinConfidenceTier())
	}
	cfg.Pipeline.MinConfidence = "low"
	if cfg.MinConfidenceTier() != TierLow {
		t.Error("expected low")
	}
}
