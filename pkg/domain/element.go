package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ElementType is the closed set of element kinds a page can hold.
type ElementType string

const (
	ElementText           ElementType = "text"
	ElementButton         ElementType = "button"
	ElementInput          ElementType = "input"
	ElementFileSelector   ElementType = "file_selector"
	ElementTagList        ElementType = "tag_list"
	ElementSettings       ElementType = "settings"
	ElementBranchSelector ElementType = "branch_selector"
	ElementTask           ElementType = "task"
)

// Props is the type-specific property set of an element.
// Only the variants declared in this package implement it.
type Props interface {
	ElementType() ElementType
}

// TextProps is a presentational block. Text may contain placeholders.
type TextProps struct {
	Text string `json:"text" mapstructure:"text"`
}

// ButtonProps is a push button, or a toggle when Toggle is set.
type ButtonProps struct {
	Label  string `json:"label" mapstructure:"label"`
	Toggle bool   `json:"toggle,omitempty" mapstructure:"toggle"`
}

// InputProps is a free text field.
type InputProps struct {
	Label       string `json:"label,omitempty" mapstructure:"label"`
	Placeholder string `json:"placeholder,omitempty" mapstructure:"placeholder"`
	Default     string `json:"default,omitempty" mapstructure:"default"`
	Multiline   bool   `json:"multiline,omitempty" mapstructure:"multiline"`
}

// FileSelectorProps picks a file or directory path.
type FileSelectorProps struct {
	Label     string `json:"label,omitempty" mapstructure:"label"`
	Directory bool   `json:"directory,omitempty" mapstructure:"directory"`
	Pattern   string `json:"pattern,omitempty" mapstructure:"pattern"`
	MustExist bool   `json:"must_exist,omitempty" mapstructure:"must_exist"`
}

// TagListProps selects one or more values out of Options.
type TagListProps struct {
	Label    string   `json:"label,omitempty" mapstructure:"label"`
	Options  []string `json:"options" mapstructure:"options"`
	Multiple bool     `json:"multiple,omitempty" mapstructure:"multiple"`
}

// SettingsProps displays persisted settings keys.
type SettingsProps struct {
	Keys []string `json:"keys" mapstructure:"keys"`
}

// BranchSelectorProps is a view over the owning branch page discriminant.
type BranchSelectorProps struct {
	Label   string   `json:"label,omitempty" mapstructure:"label"`
	Options []string `json:"options" mapstructure:"options"`
}

// TaskProps displays the state of a task declared on the same page.
type TaskProps struct {
	TaskID string `json:"task_id" mapstructure:"task_id"`
	Label  string `json:"label,omitempty" mapstructure:"label"`
}

func (TextProps) ElementType() ElementType           { return ElementText }
func (ButtonProps) ElementType() ElementType         { return ElementButton }
func (InputProps) ElementType() ElementType          { return ElementInput }
func (FileSelectorProps) ElementType() ElementType   { return ElementFileSelector }
func (TagListProps) ElementType() ElementType        { return ElementTagList }
func (SettingsProps) ElementType() ElementType       { return ElementSettings }
func (BranchSelectorProps) ElementType() ElementType { return ElementBranchSelector }
func (TaskProps) ElementType() ElementType           { return ElementTask }

// Element is a typed node of a page.
type Element struct {
	ID       string      `json:"id"`
	Type     ElementType `json:"type"`
	BoundKey string      `json:"bound_key,omitempty"`
	Required bool        `json:"required,omitempty"`
	// OnChange names a registry function called with (elementID, newValue).
	OnChange string `json:"on_change,omitempty"`
	Props    Props  `json:"props,omitempty"`
}

type elementWire struct {
	ID       string          `json:"id"`
	Type     ElementType     `json:"type"`
	BoundKey string          `json:"bound_key,omitempty"`
	Required bool            `json:"required,omitempty"`
	OnChange string          `json:"on_change,omitempty"`
	Props    json.RawMessage `json:"props,omitempty"`
}

// UnmarshalJSON decodes the props into the variant matching Type.
func (e *Element) UnmarshalJSON(data []byte) error {
	var w elementWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	raw, err := rawMap(w.Props)
	if err != nil {
		return fmt.Errorf("element %q props: %w", w.ID, err)
	}
	props, err := DecodeProps(w.Type, raw)
	if err != nil {
		return fmt.Errorf("element %q: %w", w.ID, err)
	}
	*e = Element{
		ID:       w.ID,
		Type:     w.Type,
		BoundKey: w.BoundKey,
		Required: w.Required,
		OnChange: w.OnChange,
		Props:    props,
	}
	return nil
}

// DecodeProps converts a loosely typed property map into the variant for t.
// Unknown keys are rejected so that typos surface at graph construction.
func DecodeProps(t ElementType, raw map[string]any) (Props, error) {
	var target Props
	switch t {
	case ElementText:
		target = &TextProps{}
	case ElementButton:
		target = &ButtonProps{}
	case ElementInput:
		target = &InputProps{}
	case ElementFileSelector:
		target = &FileSelectorProps{}
	case ElementTagList:
		target = &TagListProps{}
	case ElementSettings:
		target = &SettingsProps{}
	case ElementBranchSelector:
		target = &BranchSelectorProps{}
	case ElementTask:
		target = &TaskProps{}
	default:
		return nil, fmt.Errorf("unknown element type %q", t)
	}
	if err := decodeStrict(raw, target); err != nil {
		return nil, fmt.Errorf("invalid %s props: %w", t, err)
	}
	return derefProps(target), nil
}

func derefProps(p Props) Props {
	switch v := p.(type) {
	case *TextProps:
		return *v
	case *ButtonProps:
		return *v
	case *InputProps:
		return *v
	case *FileSelectorProps:
		return *v
	case *TagListProps:
		return *v
	case *SettingsProps:
		return *v
	case *BranchSelectorProps:
		return *v
	case *TaskProps:
		return *v
	}
	return p
}

func rawMap(data json.RawMessage) (map[string]any, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}
