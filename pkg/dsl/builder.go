package dsl

import (
	"fmt"

	"github.com/aretw0/multipage/pkg/adapters/memory"
	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/graph"
)

// Builder manages the graph construction. Pages keep the order in which
// they were first added; that order is the page sequence.
type Builder struct {
	order []string
	pages map[string]*PageBuilder
}

// New creates a new graph builder.
func New() *Builder {
	return &Builder{
		pages: make(map[string]*PageBuilder),
	}
}

// Add creates a new page in the graph.
// If the page already exists, it returns the existing builder.
func (b *Builder) Add(id string) *PageBuilder {
	if pb, ok := b.pages[id]; ok {
		return pb
	}
	pb := &PageBuilder{
		page:    domain.Page{ID: id},
		builder: b,
	}
	b.pages[id] = pb
	b.order = append(b.order, id)
	return pb
}

// Pages returns the built pages in sequence order.
func (b *Builder) Pages() []domain.Page {
	pages := make([]domain.Page, 0, len(b.order))
	for _, id := range b.order {
		pages = append(pages, b.pages[id].Build())
	}
	return pages
}

// Build validates the pages and returns the graph.
func (b *Builder) Build() (*graph.Graph, error) {
	g, err := graph.New(b.Pages()...)
	if err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}
	return g, nil
}

// Loader validates the pages and wraps them in a memory loader.
func (b *Builder) Loader() (*memory.Loader, error) {
	if _, err := b.Build(); err != nil {
		return nil, err
	}
	return memory.NewLoader(b.Pages()...), nil
}
