// Package local loads the optional local-knowledge corpus: a relevance
// index produced by an external ranking step, plus the markdown and PDF
// documents it points at.
package local

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// DefaultTopDocs is how many ranked documents feed the integration stage.
const DefaultTopDocs = 5

// Doc is one ranked document from the relevance index.
type Doc struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// Index maps a condition name to its ranked local documents.
type Index map[string][]Doc

// LoadIndex reads the relevance index JSON. A missing file is not an
// error: the local-integration stage is optional and simply skipped, so
// LoadIndex returns a nil Index.
func LoadIndex(path string) (Index, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading relevance index: %w", err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing relevance index %s: %w", path, err)
	}
	return idx, nil
}

// Docs returns the ranked documents for a condition, or nil when the
// index is absent or has no entry.
func (idx Index) Docs(condition string) []Doc {
	if idx == nil {
		return nil
	}
	return idx[condition]
}

// TopDocs selects the highest-scoring unique documents. Uniqueness is by
// (base name, score) so re-indexed copies of the same file collapse.
func TopDocs(docs []Doc, n int) []Doc {
	if n <= 0 {
		n = DefaultTopDocs
	}

	sorted := make([]Doc, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	type key struct {
		name  string
		score float64
	}
	seen := make(map[key]bool)
	var top []Doc
	for _, d := range sorted {
		if d.Path == "" {
			continue
		}
		k := key{filepath.Base(d.Path), d.Score}
		if seen[k] {
			continue
		}
		seen[k] = true
		top = append(top, d)
		if len(top) == n {
			break
		}
	}
	return top
}

// ReadSources reads the given documents and concatenates their text,
// separated by blank lines. Markdown and plain-text files are read
// directly; PDFs are run through text extraction. A file that cannot be
// read is logged and skipped so one broken path does not lose the rest
// of the corpus.
func ReadSources(docs []Doc, logger *zap.Logger) string {
	if logger == nil {
		logger = zap.NewNop()
	}

	var parts []string
	for _, d := range docs {
		var text string
		var err error
		switch strings.ToLower(filepath.Ext(d.Path)) {
		case ".pdf":
			text, err = extractPDFText(d.Path)
		default:
			var data []byte
			data, err = os.ReadFile(d.Path)
			text = string(data)
		}
		if err != nil {
			logger.Warn("skipping unreadable local document",
				zap.String("path", d.Path),
				zap.Error(err))
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}
