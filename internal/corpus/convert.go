package corpus

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/luxweb/luxrag-go/internal/rag"
)

// Converter turns one source format into plain text. raw holds the full file
// contents; path is only used for diagnostics.
type Converter interface {
	Convert(path string, raw []byte) (string, error)
}

// supportedExtension reports whether files with this extension are ingested.
func supportedExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".md", ".markdown", ".txt", ".html", ".htm", ".pdf":
		return true
	}
	return false
}

// converterFor picks a converter by content sniffing first, falling back to
// the file extension. Sniffing catches mislabelled files: a PDF renamed to
// .md still goes through the PDF path instead of being indexed as garbage.
func converterFor(path string, mtype *mimetype.MIME) Converter {
	switch {
	case mtype.Is("application/pdf"):
		return pdfConverter{}
	case mtype.Is("text/html"):
		return htmlConverter{}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt":
		if isTextual(mtype) {
			return textConverter{}
		}
	case ".html", ".htm":
		return htmlConverter{}
	case ".pdf":
		return pdfConverter{}
	}
	return nil
}

// isTextual reports whether the sniffed type is plain text or derived from
// it. Binary content renamed to a text extension fails this check.
func isTextual(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// textConverter passes markdown and plain text through unchanged, normalizing
// line endings.
type textConverter struct{}

func (textConverter) Convert(path string, raw []byte) (string, error) {
	return strings.ReplaceAll(string(raw), "\r\n", "\n"), nil
}

// unreadable wraps a load failure in the error type ingestion skips on.
func unreadable(path string, err error) error {
	return &rag.UnreadableSourceError{Path: path, Err: err}
}
