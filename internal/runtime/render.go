package runtime

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/aretw0/multipage/pkg/domain"
	"github.com/aretw0/multipage/pkg/registry"
	"github.com/aretw0/multipage/pkg/store"
	"github.com/aretw0/multipage/pkg/template"
)

// View materializes the current page against the store.
func (c *Controller) View() (domain.PageView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return domain.PageView{}, errors.New("session not started")
	}
	return c.view()
}

func (c *Controller) view() (domain.PageView, error) {
	p, err := c.page(c.current)
	if err != nil {
		return domain.PageView{}, err
	}
	lk := lookup(c.store)
	v := domain.PageView{
		PageID:    p.ID,
		Title:     template.ResolveLenient(p.Title, lk),
		Kind:      p.EffectiveKind(),
		Index:     c.graph.Index(p.ID),
		Total:     c.graph.Len(),
		Elements:  make([]domain.ElementView, 0, len(p.Elements)),
		History:   slices.Clone(c.history),
		Status:    c.status,
		CanGoBack: c.status == domain.StatusActive && len(c.history) > 1,
	}
	for _, el := range p.Elements {
		v.Elements = append(v.Elements, c.elementView(el, lk))
	}
	return v, nil
}

func (c *Controller) elementView(el domain.Element, lk template.Lookup) domain.ElementView {
	ev := domain.ElementView{
		ID:       el.ID,
		Type:     el.Type,
		BoundKey: el.BoundKey,
		Required: el.Required,
		Props:    el.Props,
	}
	switch props := el.Props.(type) {
	case domain.TextProps:
		props.Text = template.ResolveLenient(props.Text, lk)
		ev.Props = props
	case domain.SettingsProps:
		values := make(map[string]any, len(props.Keys))
		for _, k := range props.Keys {
			if val, ok := c.store.Get(k); ok {
				values[k] = val
			}
		}
		ev.Value = values
	case domain.TaskProps:
		ev.TaskStatus = c.taskOutcome(props.TaskID).Status
		if progress, ok := c.store.Get(domain.TaskProgressKey(props.TaskID)); ok {
			ev.Value = progress
		}
	}
	if el.BoundKey != "" {
		if val, ok := c.store.Get(el.BoundKey); ok {
			ev.Value = val
		} else {
			ev.Value = zeroValue(el)
		}
	}
	return ev
}

// zeroValue is what an unset bound element shows.
func zeroValue(el domain.Element) any {
	switch props := el.Props.(type) {
	case domain.ButtonProps:
		return false
	case domain.TagListProps:
		if props.Multiple {
			return []any{}
		}
	}
	return ""
}

// applyDefaults seeds unset input values from their defaults, once.
func (c *Controller) applyDefaults(p domain.Page) {
	lk := lookup(c.store)
	for _, el := range p.Elements {
		props, ok := el.Props.(domain.InputProps)
		if !ok || props.Default == "" || el.BoundKey == "" || c.store.Has(el.BoundKey) {
			continue
		}
		if err := c.store.Set(el.BoundKey, template.ResolveLenient(props.Default, lk)); err != nil {
			c.logger.Warn("input default rejected", "element", el.ID, "error", err)
		}
	}
}

// SetValue writes value to the key bound by elementID on the current page and
// runs the element change callback. Branch selectors only record the choice;
// the branch is resolved on Advance.
func (c *Controller) SetValue(ctx context.Context, elementID string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkActive(); err != nil {
		return err
	}
	p, err := c.page(c.current)
	if err != nil {
		return err
	}
	el, ok := p.Element(elementID)
	if !ok {
		return fmt.Errorf("%w: %s on page %s", domain.ErrUnknownElement, elementID, p.ID)
	}
	if el.BoundKey == "" {
		return fmt.Errorf("%w: %s is not bound to a key", domain.ErrUnknownElement, elementID)
	}

	v, err := coerce(el, value)
	if err != nil {
		return err
	}
	if err := c.store.Set(el.BoundKey, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidValue, err)
	}
	c.logger.Debug("value set", "page", p.ID, "element", el.ID, "key", el.BoundKey)

	if el.OnChange == "" {
		return nil
	}
	writes, err := c.registry.Invoke(ctx, el.OnChange, registry.Call{
		ID:     el.ID,
		PageID: p.ID,
		State:  c.store.Snapshot(),
		Value:  v,
	})
	if err != nil {
		return fmt.Errorf("element %s change callback: %w", el.ID, err)
	}
	if len(writes) > 0 {
		if err := c.store.Merge(writes); err != nil {
			return fmt.Errorf("element %s change callback: %w", el.ID, err)
		}
	}
	return nil
}

// coerce checks value against the element shape. Strings are accepted for
// toggles so that text transports can drive them.
func coerce(el domain.Element, value any) (any, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: element %s: %s", domain.ErrInvalidValue, el.ID, fmt.Sprintf(format, args...))
	}

	switch props := el.Props.(type) {
	case domain.ButtonProps:
		if !props.Toggle {
			return value, nil
		}
		switch b := value.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return nil, invalid("toggle expects a boolean, got %q", b)
			}
			return parsed, nil
		}
		return nil, invalid("toggle expects a boolean, got %T", value)

	case domain.TagListProps:
		var picked []string
		switch x := value.(type) {
		case string:
			picked = []string{x}
		case []string:
			picked = x
		case []any:
			for _, item := range x {
				s, ok := item.(string)
				if !ok {
					return nil, invalid("tags must be strings, got %T", item)
				}
				picked = append(picked, s)
			}
		default:
			return nil, invalid("unsupported tag value %T", value)
		}
		for _, s := range picked {
			if !slices.Contains(props.Options, s) {
				return nil, invalid("%q is not an option", s)
			}
		}
		if !props.Multiple {
			if len(picked) != 1 {
				return nil, invalid("exactly one tag expected")
			}
			return picked[0], nil
		}
		out := make([]any, len(picked))
		for i, s := range picked {
			out[i] = s
		}
		return out, nil

	case domain.BranchSelectorProps:
		s := store.Stringify(value)
		if len(props.Options) > 0 && !slices.Contains(props.Options, s) {
			return nil, invalid("%q is not an option", s)
		}
		return s, nil
	}
	return value, nil
}

func (c *Controller) render(ctx context.Context) {
	if c.host == nil {
		return
	}
	v, err := c.view()
	if err == nil {
		err = c.host.Render(ctx, v)
	}
	if err != nil {
		c.logger.Warn("render failed", "page", c.current, "error", err)
	}
}

func lookup(st *store.Store) template.Lookup {
	return func(name string) (string, bool) {
		v, ok := st.Get(name)
		if !ok {
			return "", false
		}
		return store.Stringify(v), true
	}
}
