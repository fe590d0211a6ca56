package ports

import (
	"context"

	"github.com/aretw0/multipage/pkg/domain"
)

// GraphLoader defines how the engine retrieves page definitions.
// This allows the definition source (JSON/YAML, Markdown, HCL, memory) to be decoupled.
// Pages are returned in sequence order; the first one is the start page.
type GraphLoader interface {
	LoadPages(ctx context.Context) ([]domain.Page, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying definitions change.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
