package extract

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/toporag/internal/model"
)

// xmlDocument mirrors the toponym XML format:
//
//	<document id="...">
//	  <text><paragraph id="p0" char_start="0" char_end="10">...</paragraph></text>
//	  <entities><toponyms>
//	    <toponym name="London"><mention paragraph_id="p0" char_start="5" char_end="11"/></toponym>
//	  </toponyms></entities>
//	</document>
type xmlDocument struct {
	XMLName     xml.Name       `xml:"document"`
	ID          string         `xml:"id,attr"`
	SourceCity  string         `xml:"source_city,attr"`
	SourceState string         `xml:"source_state,attr"`
	Paragraphs  []xmlParagraph `xml:"text>paragraph"`
	Toponyms    []xmlToponym   `xml:"entities>toponyms>toponym"`
}

type xmlParagraph struct {
	ID    string `xml:"id,attr"`
	Start string `xml:"char_start,attr"`
	End   string `xml:"char_end,attr"`
	Text  string `xml:",chardata"`
}

type xmlToponym struct {
	Name     string       `xml:"name,attr"`
	Mentions []xmlMention `xml:"mention"`
}

type xmlMention struct {
	ParagraphID string `xml:"paragraph_id,attr"`
	Start       string `xml:"char_start,attr"`
	End         string `xml:"char_end,attr"`
}

// ParseXML decodes a toponym XML document.
// Unparseable offsets become -1 so the extractor rejects the mention instead of the document.
func ParseXML(r io.Reader) (model.Document, error) {
	var raw xmlDocument
	if err := xml.NewDecoder(r).Decode(&raw); err != nil {
		return model.Document{}, fmt.Errorf("failed to decode toponym XML: %w", err)
	}

	doc := model.Document{ID: raw.ID}
	if raw.SourceCity != "" || raw.SourceState != "" {
		doc.Source = &model.SourcePlace{City: raw.SourceCity, State: raw.SourceState}
	}

	for _, p := range raw.Paragraphs {
		start, err := strconv.Atoi(strings.TrimSpace(p.Start))
		if err != nil {
			return model.Document{}, fmt.Errorf("paragraph %q: invalid char_start %q", p.ID, p.Start)
		}
		end, err := strconv.Atoi(strings.TrimSpace(p.End))
		if err != nil {
			return model.Document{}, fmt.Errorf("paragraph %q: invalid char_end %q", p.ID, p.End)
		}
		doc.Paragraphs = append(doc.Paragraphs, model.Paragraph{
			ID:    p.ID,
			Start: start,
			End:   end,
			Text:  p.Text,
		})
	}

	for _, t := range raw.Toponyms {
		for _, m := range t.Mentions {
			doc.Mentions = append(doc.Mentions, model.RawMention{
				Name:        t.Name,
				ParagraphID: m.ParagraphID,
				Start:       offsetOrInvalid(m.Start),
				End:         offsetOrInvalid(m.End),
			})
		}
	}

	return doc, nil
}

func offsetOrInvalid(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return -1
	}
	return n
}

// ParseJSON decodes a document in the JSON shape of model.Document
func ParseJSON(r io.Reader) (model.Document, error) {
	var doc model.Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return model.Document{}, fmt.Errorf("failed to decode document JSON: %w", err)
	}
	return doc, nil
}

// LoadFile reads a document, dispatching on the file extension (.xml or .json).
// A document without an id takes the file's base name.
func LoadFile(path string) (model.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Document{}, fmt.Errorf("failed to open document: %w", err)
	}
	defer func() { _ = f.Close() }()

	var doc model.Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		doc, err = ParseXML(f)
	case ".json":
		doc, err = ParseJSON(f)
	default:
		return model.Document{}, fmt.Errorf("unsupported document format: %s", path)
	}
	if err != nil {
		return model.Document{}, fmt.Errorf("%s: %w", path, err)
	}

	if doc.ID == "" {
		base := filepath.Base(path)
		doc.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return doc, nil
}

// ListDocuments expands paths into document files. Directories are scanned
// (non-recursively) for .xml and .json files; the result is sorted.
func ListDocuments(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", p, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(e.Name())) {
			case ".xml", ".json":
				files = append(files, filepath.Join(p, e.Name()))
			}
		}
	}
	sort.Strings(files)
	return files, nil
}
