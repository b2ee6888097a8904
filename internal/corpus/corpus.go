// Package corpus discovers and loads knowledge base documents from a local
// directory tree, converting each supported format into plain text ready for
// chunking.
package corpus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// Document is one loaded source file, converted to text.
type Document struct {
	// Path is the absolute path of the source file.
	Path string

	// Rel is the path relative to the corpus root, using forward slashes.
	// It is the stable identity of the document across runs.
	Rel string

	// Title is the first heading when one exists, otherwise the file name
	// without extension.
	Title string

	// Text is the extracted text content. Empty when the file holds no
	// extractable text.
	Text string

	// Checksum is the hex SHA-256 of the raw file bytes, used to skip
	// unchanged documents on re-ingestion.
	Checksum string

	// Tags are labels inferred from the document's location.
	Tags []string

	// Metadata holds inferred key-value attributes (format, topic).
	Metadata map[string]string

	// ModTime is the file's modification time at load.
	ModTime time.Time
}

// Loader reads documents under a corpus root directory.
type Loader struct {
	// root is the absolute corpus root.
	root string
}

// NewLoader validates that root exists and is a directory.
func NewLoader(root string) (*Loader, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("corpus: resolve root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("corpus: stat root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus: root %s is not a directory", abs)
	}
	return &Loader{root: abs}, nil
}

// Root returns the absolute corpus root directory.
func (l *Loader) Root() string { return l.root }

// Discover walks the corpus root and returns the absolute paths of all
// supported documents in deterministic (lexical) order. Hidden files and
// directories are skipped.
func (l *Loader) Discover(ctx context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		name := d.Name()
		if d.IsDir() {
			if path != l.root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if supportedExtension(filepath.Ext(name)) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("corpus: discover under %s: %w", l.root, err)
	}
	return paths, nil
}

// Load reads and converts a single document. Files that cannot be read or
// converted return an UnreadableSourceError so ingestion can skip them and
// continue; a readable file with no extractable text is not an error, it
// just carries empty Text.
func (l *Loader) Load(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("corpus: load %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, unreadable(path, err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, unreadable(path, err)
	}

	var text string
	if len(raw) > 0 {
		conv := converterFor(path, mimetype.Detect(raw))
		if conv == nil {
			return nil, unreadable(path, fmt.Errorf("unsupported or unrecognized format %q", filepath.Ext(path)))
		}
		text, err = conv.Convert(path, raw)
		if err != nil {
			return nil, unreadable(path, err)
		}
	}

	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		return nil, unreadable(path, err)
	}
	rel = filepath.ToSlash(rel)

	sum := sha256.Sum256(raw)
	tags, metadata := InferMetadata(rel)

	return &Document{
		Path:     path,
		Rel:      rel,
		Title:    extractTitle(rel, text),
		Text:     text,
		Checksum: hex.EncodeToString(sum[:]),
		Tags:     tags,
		Metadata: metadata,
		ModTime:  info.ModTime(),
	}, nil
}

// extractTitle returns the first markdown heading in the text, or the file
// name without its extension when no heading exists.
func extractTitle(rel, text string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			title := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			if title != "" {
				return title
			}
		}
	}
	base := filepath.Base(rel)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
