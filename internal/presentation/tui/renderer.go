// Package tui renders page views for terminals.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/store"
)

// Renderer is a ports.RenderHost writing markdown-styled pages to a writer.
type Renderer struct {
	out      io.Writer
	markdown func(string) (string, error)
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithPlainText disables glamour styling; pages are written as raw markdown.
func WithPlainText() Option {
	return func(r *Renderer) {
		r.markdown = func(s string) (string, error) { return s, nil }
	}
}

// WithWordWrap sets the glamour wrap width.
func WithWordWrap(width int) Option {
	return func(r *Renderer) {
		r.markdown = glamourRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
	}
}

// NewRenderer returns a Renderer writing to out. Styling follows the
// terminal background.
func NewRenderer(out io.Writer, opts ...Option) *Renderer {
	r := &Renderer{out: out}
	for _, opt := range opts {
		opt(r)
	}
	if r.markdown == nil {
		r.markdown = glamourRenderer(glamour.WithAutoStyle())
	}
	return r
}

func glamourRenderer(opts ...glamour.TermRendererOption) func(string) (string, error) {
	tr, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return func(s string) (string, error) { return s, nil }
	}
	return tr.Render
}

// Render implements ports.RenderHost.
func (r *Renderer) Render(_ context.Context, view domain.PageView) error {
	out, err := r.markdown(Markdown(view))
	if err != nil {
		return fmt.Errorf("render page %s: %w", view.PageID, err)
	}
	_, err = io.WriteString(r.out, out)
	return err
}

// Markdown lays a page view out as markdown.
func Markdown(view domain.PageView) string {
	var sb strings.Builder
	title := view.Title
	if title == "" {
		title = view.PageID
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "_Page %d of %d_\n\n", view.Index+1, view.Total)

	for _, el := range view.Elements {
		writeElement(&sb, el)
	}
	switch view.Status {
	case domain.StatusFinished:
		sb.WriteString("**Finished.**\n")
	case domain.StatusAborted:
		sb.WriteString("**Aborted.**\n")
	}
	return sb.String()
}

func writeElement(sb *strings.Builder, el domain.ElementView) {
	marker := ""
	if el.Required {
		marker = " *"
	}
	switch props := el.Props.(type) {
	case domain.TextProps:
		fmt.Fprintf(sb, "%s\n\n", props.Text)
	case domain.InputProps:
		fmt.Fprintf(sb, "- **%s**%s `%s`: %s\n", label(props.Label, el.ID), marker, el.ID, valueText(el.Value))
	case domain.ButtonProps:
		if props.Toggle {
			box := "[ ]"
			if store.Truthy(el.Value) {
				box = "[x]"
			}
			fmt.Fprintf(sb, "- %s **%s** `%s`\n", box, label(props.Label, el.ID), el.ID)
		} else {
			fmt.Fprintf(sb, "- (%s) `%s`\n", label(props.Label, el.ID), el.ID)
		}
	case domain.FileSelectorProps:
		fmt.Fprintf(sb, "- **%s**%s `%s`: %s\n", label(props.Label, el.ID), marker, el.ID, valueText(el.Value))
	case domain.TagListProps:
		fmt.Fprintf(sb, "- **%s**%s `%s` (%s): %s\n", label(props.Label, el.ID), marker, el.ID, strings.Join(props.Options, ", "), valueText(el.Value))
	case domain.BranchSelectorProps:
		fmt.Fprintf(sb, "- **%s** `%s` (%s): %s\n", label(props.Label, el.ID), el.ID, strings.Join(props.Options, " | "), valueText(el.Value))
	case domain.SettingsProps:
		values, _ := el.Value.(map[string]any)
		for _, k := range props.Keys {
			fmt.Fprintf(sb, "- %s = %s\n", k, valueText(values[k]))
		}
	case domain.TaskProps:
		status := el.TaskStatus
		if status == "" {
			status = "idle"
		}
		fmt.Fprintf(sb, "- %s: _%s_\n", label(props.Label, props.TaskID), status)
	default:
		fmt.Fprintf(sb, "- `%s`: %s\n", el.ID, valueText(el.Value))
	}
}

func label(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func valueText(v any) string {
	if store.IsEmpty(v) {
		return "_(empty)_"
	}
	if list, ok := v.([]any); ok {
		parts := make([]string, len(list))
		for i, item := range list {
			parts[i] = store.Stringify(item)
		}
		return strings.Join(parts, ", ")
	}
	return store.Stringify(v)
}
