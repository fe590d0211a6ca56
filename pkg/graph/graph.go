// Package graph holds the Page Graph: an ordered sequence of pages plus
// explicit branch and next edges. A Graph is immutable once built and is
// validated as a whole at construction time.
package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/multipage/pkg/domain"
)

// InvalidGraphError lists every problem found while building a graph.
type InvalidGraphError struct {
	Problems []string
}

func (e *InvalidGraphError) Error() string {
	return fmt.Sprintf("invalid page graph: %s", strings.Join(e.Problems, "; "))
}

// Graph is an immutable, validated page graph.
type Graph struct {
	pages []domain.Page
	index map[string]int
}

// New validates pages and builds a graph. The first page is the start page.
func New(pages ...domain.Page) (*Graph, error) {
	g := &Graph{
		pages: clonePages(pages),
		index: make(map[string]int, len(pages)),
	}
	if problems := validate(g); len(problems) > 0 {
		return nil, &InvalidGraphError{Problems: problems}
	}
	return g, nil
}

// MustNew is New that panics on error. Intended for tests and static graphs.
func MustNew(pages ...domain.Page) *Graph {
	g, err := New(pages...)
	if err != nil {
		panic(err)
	}
	return g
}

// Pages returns a copy of the page definitions in sequence order.
func (g *Graph) Pages() []domain.Page {
	return clonePages(g.pages)
}

// Len returns the number of pages.
func (g *Graph) Len() int {
	return len(g.pages)
}

// Start returns the id of the first page.
func (g *Graph) Start() string {
	return g.pages[0].ID
}

// Page returns the page with the given id.
func (g *Graph) Page(id string) (domain.Page, error) {
	i, ok := g.index[id]
	if !ok {
		return domain.Page{}, fmt.Errorf("%w: %s", domain.ErrPageNotFound, id)
	}
	return g.pages[i], nil
}

// Index returns the sequence position of a page, or -1.
func (g *Graph) Index(id string) int {
	i, ok := g.index[id]
	if !ok {
		return -1
	}
	return i
}

// At returns the page id at a sequence position.
func (g *Graph) At(i int) (string, error) {
	if i < 0 || i >= len(g.pages) {
		return "", fmt.Errorf("%w: index %d", domain.ErrPageNotFound, i)
	}
	return g.pages[i].ID, nil
}

// Successor returns the static next page of a non-branch page: its Next
// override, or the following page in sequence. ok is false at the end.
func (g *Graph) Successor(id string) (next string, ok bool) {
	i, found := g.index[id]
	if !found {
		return "", false
	}
	p := g.pages[i]
	if p.Next != "" {
		return p.Next, true
	}
	if i+1 < len(g.pages) {
		return g.pages[i+1].ID, true
	}
	return "", false
}

// Edge is a directed connection between two pages.
type Edge struct {
	From  string
	To    string
	Label string // branch case value, empty for sequence edges
}

// Edges lists every static and branch edge in sequence order.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, p := range g.pages {
		switch p.EffectiveKind() {
		case domain.PageTerminal:
			continue
		case domain.PageBranch:
			for _, value := range sortedCaseValues(p.Branch.Cases) {
				edges = append(edges, Edge{From: p.ID, To: p.Branch.Cases[value], Label: value})
			}
		default:
			if next, ok := g.Successor(p.ID); ok {
				edges = append(edges, Edge{From: p.ID, To: next})
			}
		}
	}
	return edges
}

// ContainsAll reports whether every id names a page of the graph.
func (g *Graph) ContainsAll(ids []string) bool {
	return !slices.ContainsFunc(ids, func(id string) bool {
		_, ok := g.index[id]
		return !ok
	})
}

func clonePages(in []domain.Page) []domain.Page {
	out := make([]domain.Page, len(in))
	copy(out, in)
	return out
}
