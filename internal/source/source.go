package source

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Extensions lists the file suffixes picked up from a directory walk.
var Extensions = []string{".txt", ".md"}

// MaxFileSize bounds a single document read from disk.
const MaxFileSize = 4 << 20

// Document is one ad copy to check.
type Document struct {
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
	Text string `json:"text"`
}

type Diagnostics struct {
	Warnings []string
}

// Collect reads a single file, or every matching file under a directory in
// lexical order. Unreadable files become warnings.
func Collect(path string) ([]Document, Diagnostics) {
	var docs []Document
	diags := Diagnostics{}

	info, err := os.Stat(path)
	if err != nil {
		diags.Warnings = append(diags.Warnings, err.Error())
		return nil, diags
	}
	if !info.IsDir() {
		doc, err := readFile(path)
		if err != nil {
			diags.Warnings = append(diags.Warnings, err.Error())
			return nil, diags
		}
		return []Document{doc}, diags
	}

	_ = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			diags.Warnings = append(diags.Warnings, err.Error())
			return nil
		}
		if d.IsDir() || !wanted(d.Name()) {
			return nil
		}
		doc, rerr := readFile(p)
		if rerr != nil {
			diags.Warnings = append(diags.Warnings, rerr.Error())
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })

	if len(docs) == 0 {
		diags.Warnings = append(diags.Warnings, "no .txt or .md files found under "+path)
	}
	return docs, diags
}

// Read builds a document from a reader such as stdin.
func Read(name string, r io.Reader) (Document, error) {
	b, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return Document{}, err
	}
	if len(b) > MaxFileSize {
		return Document{}, fmt.Errorf("%s: larger than %d bytes", name, MaxFileSize)
	}
	return Document{Name: name, Text: Normalize(string(b))}, nil
}

func readFile(p string) (Document, error) {
	f, err := os.Open(p)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()
	doc, err := Read(baseName(p), bufio.NewReader(f))
	if err != nil {
		return Document{}, err
	}
	doc.Path = filepath.Clean(p)
	return doc, nil
}

// Normalize strips a UTF-8 BOM and converts CRLF line endings to LF so
// positions do not depend on the editor that saved the file.
func Normalize(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func wanted(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range Extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func baseName(p string) string {
	return strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
}
