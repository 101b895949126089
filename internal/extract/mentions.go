package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ppiankov/toporag/internal/model"
)

// Input errors for a single annotation; the mention is dropped, the document continues
var (
	ErrEmptyName        = errors.New("empty toponym name")
	ErrBadOffsets       = errors.New("malformed character offsets")
	ErrUnknownParagraph = errors.New("paragraph not found")
	ErrOutsideParagraph = errors.New("offsets outside paragraph range")
)

// Extractor turns a document's annotations into toponym records
type Extractor struct {
	window            int
	contextParagraphs int
	logger            *slog.Logger
}

// ExtractorConfig holds configuration for the extractor
type ExtractorConfig struct {
	ProximityWindow   int // Characters; 0 means DefaultProximityWindow
	ContextParagraphs int // Paragraphs before/after the mention's paragraph
	Logger            *slog.Logger
}

// NewExtractor creates a new mention extractor
func NewExtractor(cfg ExtractorConfig) *Extractor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	window := cfg.ProximityWindow
	if window <= 0 {
		window = DefaultProximityWindow
	}

	ctxParas := cfg.ContextParagraphs
	if ctxParas < 0 {
		ctxParas = 0
	}

	return &Extractor{
		window:            window,
		contextParagraphs: ctxParas,
		logger:            logger,
	}
}

// RejectedMention is an annotation excluded because of an input error
type RejectedMention struct {
	Mention model.RawMention
	Err     error
}

// Extraction is the extractor's output for one document
type Extraction struct {
	DocumentID string
	Records    []*model.ToponymRecord // Ordered by name
	Rejected   []RejectedMention
	Universe   []string
	Network    map[string]map[string]int // name -> nearby name -> count
}

// Extract validates, dedupes and groups a document's mentions into records.
// Malformed annotations are logged and excluded; they never fail the document.
func (e *Extractor) Extract(doc model.Document) *Extraction {
	out := &Extraction{
		DocumentID: doc.ID,
		Network:    make(map[string]map[string]int),
	}

	paragraphs := orderedParagraphs(doc.Paragraphs)
	paraIndex := make(map[string]int, len(paragraphs))
	for i, p := range paragraphs {
		paraIndex[p.ID] = i
	}

	valid := make([]model.RawMention, 0, len(doc.Mentions))
	seen := make(map[model.RawMention]bool, len(doc.Mentions))
	for _, raw := range doc.Mentions {
		raw.Name = strings.TrimSpace(raw.Name)
		if err := validateMention(raw, paragraphs, paraIndex); err != nil {
			e.logger.Warn("excluding mention",
				"document", doc.ID,
				"name", raw.Name,
				"paragraph", raw.ParagraphID,
				"start", raw.Start,
				"end", raw.End,
				"error", err,
			)
			out.Rejected = append(out.Rejected, RejectedMention{Mention: raw, Err: err})
			continue
		}
		if seen[raw] {
			continue
		}
		seen[raw] = true
		valid = append(valid, raw)
	}

	index := NewProximityIndex(valid, e.window)
	docLen := doc.Length()

	grouped := make(map[string][]model.Mention)
	for _, raw := range valid {
		para := paragraphs[paraIndex[raw.ParagraphID]]
		context, hlStart, hlEnd := e.buildContext(paragraphs, paraIndex[raw.ParagraphID], raw.Start-para.Start, raw.End-para.Start)

		m := model.Mention{
			Name:           raw.Name,
			ParagraphID:    raw.ParagraphID,
			Start:          raw.Start,
			End:            raw.End,
			Context:        context,
			HighlightStart: hlStart,
			HighlightEnd:   hlEnd,
			Nearby:         index.Nearby(raw.Name, model.Span{Start: raw.Start, End: raw.End}),
			Position:       position(raw.Start, docLen),
		}
		grouped[raw.Name] = append(grouped[raw.Name], m)

		if out.Network[raw.Name] == nil {
			out.Network[raw.Name] = make(map[string]int)
		}
		for _, n := range m.Nearby {
			out.Network[raw.Name][n]++
		}
	}

	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)
	out.Universe = names

	for _, name := range names {
		record, err := model.NewToponymRecord(doc.ID, name, grouped[name], names)
		if err != nil {
			// grouped entries always hold at least one mention
			e.logger.Error("building toponym record", "document", doc.ID, "name", name, "error", err)
			continue
		}
		out.Records = append(out.Records, record)
	}

	e.logger.Debug("extracted mentions",
		"document", doc.ID,
		"toponyms", len(out.Records),
		"mentions", len(valid),
		"rejected", len(out.Rejected),
	)

	return out
}

// orderedParagraphs returns paragraphs sorted by document offset
func orderedParagraphs(paragraphs []model.Paragraph) []model.Paragraph {
	ordered := make([]model.Paragraph, len(paragraphs))
	copy(ordered, paragraphs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start < ordered[j].Start
	})
	return ordered
}

func validateMention(raw model.RawMention, paragraphs []model.Paragraph, paraIndex map[string]int) error {
	if raw.Name == "" {
		return ErrEmptyName
	}
	if raw.Start < 0 || raw.End <= raw.Start {
		return fmt.Errorf("%w: [%d,%d)", ErrBadOffsets, raw.Start, raw.End)
	}
	idx, ok := paraIndex[raw.ParagraphID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParagraph, raw.ParagraphID)
	}
	p := paragraphs[idx]
	if raw.Start < p.Start || raw.End > p.End {
		return fmt.Errorf("%w: [%d,%d) not in %s [%d,%d)", ErrOutsideParagraph, raw.Start, raw.End, p.ID, p.Start, p.End)
	}
	return nil
}

// buildContext joins the mention's paragraph with its neighbours and locates the
// mention inside the joined text. Offsets are in characters (runes) relative to
// the paragraph start; the returned highlight offsets are byte offsets.
func (e *Extractor) buildContext(paragraphs []model.Paragraph, idx, localStart, localEnd int) (string, int, int) {
	from := max(0, idx-e.contextParagraphs)
	to := min(len(paragraphs)-1, idx+e.contextParagraphs)

	var buf strings.Builder
	hlStart, hlEnd := -1, -1
	for i := from; i <= to; i++ {
		if i > from {
			buf.WriteString(" ")
		}
		if i == idx {
			text := paragraphs[i].Text
			bs, okStart := runeToByteOffset(text, localStart)
			be, okEnd := runeToByteOffset(text, localEnd)
			if okStart && okEnd {
				hlStart = buf.Len() + bs
				hlEnd = buf.Len() + be
			}
		}
		buf.WriteString(paragraphs[i].Text)
	}

	return buf.String(), hlStart, hlEnd
}

// runeToByteOffset converts a rune offset into a byte offset within s
func runeToByteOffset(s string, runes int) (int, bool) {
	if runes < 0 {
		return 0, false
	}
	if runes == 0 {
		return 0, true
	}
	count := 0
	for i := range s {
		if count == runes {
			return i, true
		}
		count++
	}
	if count == runes {
		return len(s), true
	}
	return 0, false
}

// position returns the normalized document position of an offset
func position(offset, docLen int) float64 {
	if docLen <= 0 {
		return 0
	}
	p := float64(offset) / float64(docLen)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
