package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/ports"
)

// Mask replaces every masked value in a stored snapshot.
const Mask = "***"

type piiMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks, on save, the values whose key matches any pattern.
// Nested maps are walked; keys are matched by their own name, not their path.
func NewPIIMiddleware(patterns []string) (Middleware, error) {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pii pattern %q: %w", p, err)
		}
		compiled[i] = re
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{next: next, patterns: compiled}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	masked := *snap
	masked.Values = m.mask(snap.Values)
	return m.next.Save(ctx, sessionID, &masked)
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// mask returns a masked copy; the input is not modified.
func (m *piiMiddleware) mask(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		switch {
		case m.matches(k):
			out[k] = Mask
		default:
			if sub, ok := v.(map[string]any); ok {
				out[k] = m.mask(sub)
			} else {
				out[k] = v
			}
		}
	}
	return out
}

func (m *piiMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
