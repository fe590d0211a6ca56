package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/aretw0/multipage/pkg/domain"
)

// Loader implements ports.GraphLoader over pages held in memory.
type Loader struct {
	pages []domain.Page
}

// NewLoader serves the given pages in order.
func NewLoader(pages ...domain.Page) *Loader {
	return &Loader{pages: slices.Clone(pages)}
}

// NewFromJSON decodes one JSON page document per entry.
// This lets tests and embedders describe pages the way files do.
func NewFromJSON(docs ...string) (*Loader, error) {
	pages := make([]domain.Page, 0, len(docs))
	for i, doc := range docs {
		var p domain.Page
		if err := json.Unmarshal([]byte(doc), &p); err != nil {
			return nil, fmt.Errorf("page #%d: %w", i, err)
		}
		if p.ID == "" {
			return nil, fmt.Errorf("page #%d: missing id", i)
		}
		pages = append(pages, p)
	}
	return &Loader{pages: pages}, nil
}

// LoadPages returns a copy of the pages.
func (l *Loader) LoadPages(ctx context.Context) ([]domain.Page, error) {
	return slices.Clone(l.pages), nil
}
