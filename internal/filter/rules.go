package filter

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/ppiankov/toporag/internal/model"
)

// Options configures the rule filter
type Options struct {
	StrictMode         bool   // Check abbreviations even when context is present
	AmbiguousTermsFile string // Extra ambiguous terms, one per line, '#' comments
}

// RuleFilter rejects generic, relative and ambiguous names using fixed word lists
type RuleFilter struct {
	strict         bool
	ambiguousTerms map[string]bool
}

// NewRuleFilter creates a rule filter, loading the optional ambiguous-terms file
func NewRuleFilter(opts Options) (*RuleFilter, error) {
	terms := make(map[string]bool, len(defaultAmbiguousTerms))
	for t := range defaultAmbiguousTerms {
		terms[t] = true
	}

	if opts.AmbiguousTermsFile != "" {
		if err := loadTerms(opts.AmbiguousTermsFile, terms); err != nil {
			return nil, err
		}
	}

	return &RuleFilter{strict: opts.StrictMode, ambiguousTerms: terms}, nil
}

func loadTerms(path string, into map[string]bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open ambiguous terms file: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		term := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if term == "" || strings.HasPrefix(term, "#") {
			continue
		}
		into[term] = true
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read ambiguous terms file: %w", err)
	}
	return nil
}

// Check applies the rules in order; the first matching rule names the reason
func (f *RuleFilter) Check(name, context string) (Reason, bool) {
	return f.check(name, context, -1)
}

// CheckMention is Check with person-name cues read around the mention's own
// highlight rather than the first occurrence of the name in its context
func (f *RuleFilter) CheckMention(m model.Mention) (Reason, bool) {
	at := -1
	if m.HighlightStart >= 0 && m.HighlightStart < m.HighlightEnd && m.HighlightEnd <= len(m.Context) {
		at = m.HighlightStart
	}
	return f.check(m.Name, m.Context, at)
}

func (f *RuleFilter) check(name, context string, at int) (Reason, bool) {
	trimmed := strings.TrimSpace(name)
	normalized := strings.ToLower(trimmed)

	if blacklist[normalized] {
		return ReasonBlacklisted, false
	}
	if len([]rune(normalized)) <= 1 {
		return ReasonTooShort, false
	}
	if isNumeric(normalized) {
		return ReasonNumericOnly, false
	}
	if genericDescriptors[normalized] {
		return ReasonGenericDescriptor, false
	}
	if rest, ok := strings.CutPrefix(normalized, "the "); ok && genericTerms[rest] {
		return ReasonGenericDescriptor, false
	}
	if relativeReferences[normalized] {
		return ReasonRelativeReference, false
	}
	if nonSpecific[normalized] {
		return ReasonNonSpecific, false
	}

	if f.strict || context == "" {
		if _, ok := abbreviationExpansions[trimmed]; ok && !expansionInContext(trimmed, context) {
			return ReasonAmbiguousAbbreviation, false
		}
	}

	if context != "" && likelyPersonName(trimmed, context, at) {
		return ReasonLikelyPersonName, false
	}
	if demonyms[normalized] {
		return ReasonDemonym, false
	}
	if f.ambiguousTerms[normalized] {
		return ReasonAmbiguousTerm, false
	}

	return ReasonNone, true
}

func isNumeric(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r == '.' || r == ',':
		case unicode.IsDigit(r):
			digits++
		default:
			return false
		}
	}
	return digits > 0
}

func expansionInContext(abbrev, context string) bool {
	if context == "" {
		return false
	}
	lower := strings.ToLower(context)
	for _, exp := range abbreviationExpansions[abbrev] {
		if strings.Contains(lower, exp) {
			return true
		}
	}
	return false
}

// likelyPersonName looks for a title shortly before the name or a reporting
// verb shortly after it. The occurrence at byte offset at is examined when it
// holds the name, otherwise the first occurrence in the context.
func likelyPersonName(name, context string, at int) bool {
	lowerName := strings.ToLower(name)

	pos := -1
	if at >= 0 && at+len(name) <= len(context) && strings.EqualFold(context[at:at+len(name)], name) {
		pos = at
	}

	var lowerCtx string
	if pos >= 0 {
		// Lowercase the two sides separately so pos stays a valid offset
		before := strings.ToLower(context[:pos])
		lowerCtx = before + lowerName + strings.ToLower(context[pos+len(name):])
		pos = len(before)
	} else {
		lowerCtx = strings.ToLower(context)
		pos = strings.Index(lowerCtx, lowerName)
	}
	if pos < 0 {
		return false
	}

	start := max(0, pos-50)
	prefix := lowerCtx[start:pos]
	for _, title := range personTitles {
		if i := strings.LastIndex(prefix, title); i >= 0 && len(prefix)-i < 20 && wordBoundaryBefore(prefix, i) {
			return true
		}
	}

	after := pos + len(lowerName)
	suffix := lowerCtx[after:min(len(lowerCtx), after+30)]
	for _, verb := range personVerbs {
		if strings.Contains(suffix, verb) {
			return true
		}
	}
	return false
}

func wordBoundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r := rune(s[i-1])
	return !unicode.IsLetter(r)
}
