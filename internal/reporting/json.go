package reporting

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/codewithboateng/adlint/internal/model"
)

// Document is a report together with the text it was produced from.
type Document struct {
	ID             string       `json:"id"`
	Source         string       `json:"source,omitempty"`
	Text           string       `json:"text"`
	RulesetVersion uint64       `json:"ruleset_version"`
	Report         model.Report `json:"report"`
}

func EncodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func WriteJSON(outDir string, doc Document) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, doc.ID+".json")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := EncodeJSON(f, doc); err != nil {
		return "", err
	}
	return path, nil
}

// ReadJSON loads a document written by WriteJSON.
func ReadJSON(path string) (Document, error) {
	var doc Document
	b, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}
	err = json.Unmarshal(b, &doc)
	return doc, err
}
