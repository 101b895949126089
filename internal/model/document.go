package model

// Document is the mention source for one input text: paragraphs with their
// document-level offsets plus the NER position annotations
type Document struct {
	ID         string       `json:"id"`
	Paragraphs []Paragraph  `json:"paragraphs"`
	Mentions   []RawMention `json:"mentions"`
	Source     *SourcePlace `json:"source,omitempty"` // Where the document was published, if known
}

// Paragraph is a block of plain text and its document-level character range
type Paragraph struct {
	ID    string `json:"id"`
	Start int    `json:"char_start"`
	End   int    `json:"char_end"`
	Text  string `json:"text"`
}

// RawMention is an unvalidated position annotation as produced by NER
type RawMention struct {
	Name        string `json:"name"`
	ParagraphID string `json:"paragraph_id"`
	Start       int    `json:"char_start"`
	End         int    `json:"char_end"`
}

// SourcePlace is the publication place of a document (e.g. a newspaper's city)
type SourcePlace struct {
	City  string `json:"city,omitempty"`
	State string `json:"state,omitempty"`
}

// Length returns the document length in characters (end of the last paragraph)
func (d Document) Length() int {
	length := 0
	for _, p := range d.Paragraphs {
		if p.End > length {
			length = p.End
		}
	}
	return length
}
