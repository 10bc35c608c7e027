package review

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// PaperLoader supplies a paper for review. Ingestion pipelines (PDF
// extraction, arXiv fetch) sit behind this interface; the orchestrator
// only ever sees the resulting Paper.
type PaperLoader interface {
	Load(ctx context.Context) (Paper, error)
}

// FilePaperLoader loads a paper from a JSON file: title, abstract, and
// optional id, authors, and body fields.
type FilePaperLoader struct {
	Path string
}

// Load reads and parses the paper file.
func (l FilePaperLoader) Load(ctx context.Context) (Paper, error) {
	if err := ctx.Err(); err != nil {
		return Paper{}, err
	}
	data, err := os.ReadFile(l.Path) // #nosec G304 -- path is operator-supplied
	if err != nil {
		return Paper{}, fmt.Errorf("failed to read paper: %w", err)
	}
	var paper Paper
	if err := json.Unmarshal(data, &paper); err != nil {
		return Paper{}, fmt.Errorf("failed to parse paper: %w", err)
	}
	return paper, nil
}
