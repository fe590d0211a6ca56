package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/multipage/pkg/domain"
	pagegraph "github.com/aretw0/multipage/pkg/graph"
)

// GraphOverlay contains session data to visualize on the graph.
type GraphOverlay struct {
	VisitedPages []string
	CurrentPage  string
}

// OverlayFromSnapshot builds the overlay of a stored session.
func OverlayFromSnapshot(snap domain.Snapshot) *GraphOverlay {
	return &GraphOverlay{VisitedPages: snap.History, CurrentPage: snap.Current}
}

// GenerateMermaid produces a Mermaid flowchart of the page graph.
// It applies semantic styling:
// - Start: ((Circle))
// - Branch: {Rhombus}
// - Terminal: ([Stadium])
// - Pages running tasks: [[Subroutine]]
// - Pages with required input: [/Parallelogram/]
// - Default: [Rectangle]
// Skippable pages carry their condition, branch edges their case value.
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(g *pagegraph.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, p := range g.Pages() {
		safeID := sanitizeMermaidID(p.ID)
		opener, closer := shape(g, p)

		label := p.ID
		if p.SkipIf != "" {
			label = fmt.Sprintf("%s <br/> skip if %s", p.ID, escapeLabel(p.SkipIf))
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)
	}

	for _, e := range g.Edges() {
		arrow := "-->"
		if e.Label != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", escapeLabel(e.Label))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(e.From), arrow, sanitizeMermaidID(e.To))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedPages {
			if _, err := g.Page(id); err != nil {
				continue
			}
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentPage != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentPage))
		}
	}

	return sb.String()
}

func shape(g *pagegraph.Graph, p domain.Page) (string, string) {
	switch {
	case p.ID == g.Start():
		return "((", "))"
	case p.EffectiveKind() == domain.PageBranch:
		return "{", "}"
	case p.EffectiveKind() == domain.PageTerminal:
		return "([", "])"
	case len(p.Tasks) > 0:
		return "[[", "]]"
	case hasRequiredInput(p):
		return "[/", "/]"
	}
	return "[", "]"
}

func hasRequiredInput(p domain.Page) bool {
	for _, el := range p.Elements {
		if el.Required {
			return true
		}
	}
	return false
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
