package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ppiankov/toporag/internal/model"
)

var validate = validator.New()

// judgmentPayload is the JSON shape requested by BuildPrompt
type judgmentPayload struct {
	SelectedID json.RawMessage `json:"selected_id"`
	Confidence string          `json:"confidence" validate:"required,oneof=high medium low"`
	Reasoning  string          `json:"reasoning"`
}

// ParseJudgment extracts a judgment from a model answer. The answer may wrap
// the object in a markdown fence or surrounding prose. Any structural problem
// yields an error wrapping model.ErrMalformedJudgment.
func ParseJudgment(raw string) (model.Judgment, error) {
	body, ok := extractObject(raw)
	if !ok {
		return model.Judgment{}, fmt.Errorf("%w: no JSON object in response", model.ErrMalformedJudgment)
	}

	var p judgmentPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return model.Judgment{}, fmt.Errorf("%w: %v", model.ErrMalformedJudgment, err)
	}

	p.Confidence = strings.ToLower(strings.TrimSpace(p.Confidence))
	if err := validate.Struct(p); err != nil {
		return model.Judgment{}, fmt.Errorf("%w: confidence %q", model.ErrMalformedJudgment, p.Confidence)
	}

	id, err := parseSelectedID(p.SelectedID)
	if err != nil {
		return model.Judgment{}, err
	}

	tier, _ := model.ParseTier(p.Confidence)
	return model.Judgment{
		SelectedID: id,
		Confidence: tier,
		Reasoning:  strings.TrimSpace(p.Reasoning),
		Raw:        raw,
	}, nil
}

// extractObject returns the outermost {...} of the answer
func extractObject(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			s = rest[:j]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// parseSelectedID accepts null, a string or a number; "null", "none" and
// NONE_MATCH strings mean no selection
func parseSelectedID(raw json.RawMessage) (*string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		s = strings.TrimSpace(s)
		switch strings.ToLower(s) {
		case "", "null", "none", "none_match":
			return nil, nil
		}
		return &s, nil
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		if i, err := n.Int64(); err == nil {
			id := strconv.FormatInt(i, 10)
			return &id, nil
		}
		id := n.String()
		return &id, nil
	}

	return nil, fmt.Errorf("%w: selected_id %s", model.ErrMalformedJudgment, string(trimmed))
}
