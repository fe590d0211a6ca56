// Package loam loads page definitions from a directory of Markdown, JSON or
// YAML documents through the loam library. The frontmatter describes the page;
// a Markdown body becomes a leading text element.
package loam

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/loam"

	"github.com/aretw0/multipage/pkg/domain"
)

// ContentElementID names the text element synthesized from a document body.
const ContentElementID = "content"

// Loader adapts a loam repository to ports.GraphLoader.
type Loader struct {
	Repo *loam.TypedRepository[PageMetadata]
}

// New creates a Loader over an existing typed repository.
func New(repo *loam.TypedRepository[PageMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only, strict loam repository at dir.
// Strict mode keeps numbers as json.Number, matching the State Store.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[PageMetadata](repo)), nil
}

type orderedPage struct {
	order int
	path  string
	page  domain.Page
}

// LoadPages lists every document and returns the pages sorted by order, then id.
// The listing only carries metadata, so each document is read again for its body.
func (l *Loader) LoadPages(ctx context.Context) ([]domain.Page, error) {
	listed, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	pages := make([]orderedPage, 0, len(listed))
	for _, entry := range listed {
		doc, err := l.Repo.Get(ctx, entry.ID)
		if err != nil {
			return nil, fmt.Errorf("loam get failed for %s: %w", entry.ID, err)
		}
		page, err := buildPage(doc.ID, doc.Data, doc.Content)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		if existing, ok := seen[page.ID]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", page.ID, existing, doc.ID)
		}
		seen[page.ID] = doc.ID
		pages = append(pages, orderedPage{order: doc.Data.Order, path: doc.ID, page: page})
	}

	slices.SortStableFunc(pages, func(a, b orderedPage) int {
		return cmp.Or(cmp.Compare(a.order, b.order), cmp.Compare(a.page.ID, b.page.ID))
	})
	out := make([]domain.Page, len(pages))
	for i, p := range pages {
		out[i] = p.page
	}
	return out, nil
}

func buildPage(docID string, meta PageMetadata, content string) (domain.Page, error) {
	rawID := meta.ID
	if rawID == "" {
		rawID = docID
	}
	page := domain.Page{
		ID:       trimExtension(rawID),
		Title:    meta.Title,
		Kind:     domain.PageKind(meta.Kind),
		Next:     meta.Next,
		SkipIf:   meta.SkipIf,
		Settings: meta.Settings,
		Branch:   meta.Branch,
	}

	if body := strings.TrimSpace(content); body != "" {
		page.Elements = append(page.Elements, domain.Element{
			ID:    ContentElementID,
			Type:  domain.ElementText,
			Props: domain.TextProps{Text: body},
		})
	}
	for i, raw := range meta.Elements {
		var el domain.Element
		if err := bridge(raw, &el); err != nil {
			return domain.Page{}, fmt.Errorf("elements[%d]: %w", i, err)
		}
		page.Elements = append(page.Elements, el)
	}
	for i, raw := range meta.Tasks {
		var t domain.Task
		if err := bridge(raw, &t); err != nil {
			return domain.Page{}, fmt.Errorf("tasks[%d]: %w", i, err)
		}
		page.Tasks = append(page.Tasks, t)
	}
	return page, nil
}

// bridge re-encodes a frontmatter entry so that the domain JSON decoders
// select the right props or spec variant.
func bridge(raw any, target any) error {
	data, err := json.Marshal(stringKeys(raw))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// stringKeys converts YAML map[any]any nodes into JSON-encodable maps.
func stringKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[k] = stringKeys(sub)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[fmt.Sprintf("%v", k)] = stringKeys(sub)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, sub := range val {
			out[i] = stringKeys(sub)
		}
		return out
	}
	return v
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// Watch implements ports.Watchable. Every change to a page document is
// reported once on the returned channel; bursts coalesce.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()
	return ch, nil
}
