package knowledge

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"interviewsim/internal/domain"
)

// Source names one knowledge-base file and the interview domain it covers.
type Source struct {
	ID   string // domain identifier, e.g. "backend"
	Name string // human readable, e.g. "Backend Development"
	File string // relative to the knowledge directory
}

// LoadDocuments reads every source file under dir. Missing files are logged
// and skipped so a partial knowledge base still loads; any other read error aborts.
func LoadDocuments(dir string, sources []Source, logger *slog.Logger) ([]domain.Document, error) {
	if logger == nil {
		logger = slog.Default()
	}
	docs := make([]domain.Document, 0, len(sources))
	for _, src := range sources {
		path := src.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("knowledge file not found, skipping", "domain", src.ID, "path", path)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%s is not valid UTF-8", path)
		}
		content := strings.ReplaceAll(string(data), "\r\n", "\n")
		docs = append(docs, domain.Document{
			ID:          src.ID,
			Name:        src.Name,
			Domain:      src.ID,
			Path:        path,
			Content:     content,
			Fingerprint: Fingerprint(content),
		})
	}
	return docs, nil
}

// SourceForPath returns the source whose file resolves to path.
func SourceForPath(dir string, sources []Source, path string) (Source, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Source{}, false
	}
	for _, src := range sources {
		p := src.File
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		if pa, err := filepath.Abs(p); err == nil && pa == abs {
			return src, true
		}
	}
	return Source{}, false
}
