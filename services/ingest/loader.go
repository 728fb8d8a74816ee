package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Document is one parsed source file.
type Document struct {
	DocID      string
	Filename   string
	SourcePath string
	Text       string
}

// Supported source extensions
const (
	ExtPDF      = ".pdf"
	ExtText     = ".txt"
	ExtMarkdown = ".md"
)

var (
	pmidPattern  = regexp.MustCompile(`(?i)(PMID_\d+)`)
	pmcidPattern = regexp.MustCompile(`(?i)(PMCID_[A-Za-z0-9]+)`)

	horizontalSpace = regexp.MustCompile(`[ \t]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// ExtractDocID derives the document id from a filename: an embedded PubMed
// (PMID_123) or PubMed Central (PMCID_PMC9) tag, upper-cased, else the file stem.
func ExtractDocID(filename string) string {
	base := filepath.Base(filename)
	if m := pmidPattern.FindString(base); m != "" {
		return strings.ToUpper(m)
	}
	if m := pmcidPattern.FindString(base); m != "" {
		return strings.ToUpper(m)
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// NormalizeText collapses runs of spaces and tabs and caps blank lines at one.
func NormalizeText(text string) string {
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Supported reports whether path has an extension the loader can parse.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtPDF, ExtText, ExtMarkdown:
		return true
	}
	return false
}

// LoadDocument parses a single file. A document with no extractable text is
// returned with an empty Text so callers can skip it.
func LoadDocument(path string) (*Document, error) {
	var (
		text string
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ExtPDF:
		text, err = ParsePDF(path)
	case ExtText, ExtMarkdown:
		var raw []byte
		raw, err = os.ReadFile(path)
		text = string(raw)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	filename := filepath.Base(path)
	return &Document{
		DocID:      ExtractDocID(filename),
		Filename:   filename,
		SourcePath: path,
		Text:       NormalizeText(text),
	}, nil
}

// LoadPaths loads every supported file named in paths. Directories are read one
// level deep in lexical order; empty documents are dropped.
func LoadPaths(paths ...string) ([]Document, error) {
	files, err := collectFiles(paths)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(files))
	for _, file := range files {
		doc, err := LoadDocument(file)
		if err != nil {
			return nil, err
		}
		if doc.Text == "" {
			continue
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if !Supported(path) {
				return nil, fmt.Errorf("unsupported file type: %s", path)
			}
			files = append(files, path)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		var dirFiles []string
		for _, entry := range entries {
			if entry.IsDir() || !Supported(entry.Name()) {
				continue
			}
			dirFiles = append(dirFiles, filepath.Join(path, entry.Name()))
		}
		sort.Strings(dirFiles)
		files = append(files, dirFiles...)
	}
	return files, nil
}
