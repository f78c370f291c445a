package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PathwiseAI/pathwise-engine/engine/domain"
)

// textExtensions are the already-extracted formats the loader accepts.
// Richer formats (PDF, HTML) are parsed by the external ingestion
// collaborator before they reach the engine.
var textExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// LoadDir reads plain-text documents from a directory (non-recursive)
// into DocumentInputs. Unknown extensions are skipped silently.
func LoadDir(dir string) ([]domain.DocumentInput, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("corpus: read dir %s: %w", dir, err)
	}

	var docs []domain.DocumentInput
	for _, e := range entries {
		if e.IsDir() || !textExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("corpus: read %s: %w", path, err)
		}
		docs = append(docs, domain.DocumentInput{
			Text:       string(data),
			SourcePath: path,
			Filename:   e.Name(),
		})
	}
	return docs, nil
}
