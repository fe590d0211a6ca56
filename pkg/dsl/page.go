package dsl

import (
	"fmt"

	"github.com/aretw0/multipage/pkg/domain"
)

// PageBuilder provides a fluent API for configuring a page.
// Modifiers such as Required apply to the element or task added last.
type PageBuilder struct {
	page    domain.Page
	builder *Builder

	// last is "element" or "task".
	last string
}

// Add starts the next page; shorthand for the parent builder Add.
func (p *PageBuilder) Add(id string) *PageBuilder {
	return p.builder.Add(id)
}

// Title sets the page title. It may contain placeholders.
func (p *PageBuilder) Title(title string) *PageBuilder {
	p.page.Title = title
	return p
}

// Text adds a text block.
func (p *PageBuilder) Text(content string) *PageBuilder {
	id := fmt.Sprintf("%s-text-%d", p.page.ID, len(p.page.Elements)+1)
	return p.Element(domain.Element{ID: id, Type: domain.ElementText, Props: domain.TextProps{Text: content}})
}

// Input adds a text field bound to key.
func (p *PageBuilder) Input(id, key, label string) *PageBuilder {
	return p.Element(domain.Element{ID: id, Type: domain.ElementInput, BoundKey: key, Props: domain.InputProps{Label: label}})
}

// Default sets the default of the last input element.
func (p *PageBuilder) Default(value string) *PageBuilder {
	if el := p.lastElement(); el != nil {
		if props, ok := el.Props.(domain.InputProps); ok {
			props.Default = value
			el.Props = props
		}
	}
	return p
}

// Toggle adds a boolean button bound to key.
func (p *PageBuilder) Toggle(id, key, label string) *PageBuilder {
	return p.Element(domain.Element{ID: id, Type: domain.ElementButton, BoundKey: key, Props: domain.ButtonProps{Label: label, Toggle: true}})
}

// Button adds a push button. Its change callback fires on press.
func (p *PageBuilder) Button(id, label, function string) *PageBuilder {
	return p.Element(domain.Element{ID: id, Type: domain.ElementButton, BoundKey: id, OnChange: function, Props: domain.ButtonProps{Label: label}})
}

// File adds a file selector bound to key.
func (p *PageBuilder) File(id, key string, props domain.FileSelectorProps) *PageBuilder {
	return p.Element(domain.Element{ID: id, Type: domain.ElementFileSelector, BoundKey: key, Props: props})
}

// Tags adds a tag list bound to key.
func (p *PageBuilder) Tags(id, key string, multiple bool, options ...string) *PageBuilder {
	return p.Element(domain.Element{ID: id, Type: domain.ElementTagList, BoundKey: key, Props: domain.TagListProps{Options: options, Multiple: multiple}})
}

// ShowSettings displays persisted settings keys.
func (p *PageBuilder) ShowSettings(keys ...string) *PageBuilder {
	id := fmt.Sprintf("%s-settings-%d", p.page.ID, len(p.page.Elements)+1)
	return p.Element(domain.Element{ID: id, Type: domain.ElementSettings, Props: domain.SettingsProps{Keys: keys}})
}

// Choice adds the branch selector of a branch page. It binds to the branch
// key, so call Branch first.
func (p *PageBuilder) Choice(id, label string, options ...string) *PageBuilder {
	key := ""
	if p.page.Branch != nil {
		key = p.page.Branch.Key
	}
	return p.Element(domain.Element{ID: id, Type: domain.ElementBranchSelector, BoundKey: key, Props: domain.BranchSelectorProps{Label: label, Options: options}})
}

// Progress displays the state of taskID.
func (p *PageBuilder) Progress(id, taskID, label string) *PageBuilder {
	return p.Element(domain.Element{ID: id, Type: domain.ElementTask, Props: domain.TaskProps{TaskID: taskID, Label: label}})
}

// Element adds a prebuilt element.
func (p *PageBuilder) Element(el domain.Element) *PageBuilder {
	p.page.Elements = append(p.page.Elements, el)
	p.last = "element"
	return p
}

// OnChange sets the change callback of the last element.
func (p *PageBuilder) OnChange(function string) *PageBuilder {
	if el := p.lastElement(); el != nil {
		el.OnChange = function
	}
	return p
}

// Validate adds a validate task.
func (p *PageBuilder) Validate(id string, spec domain.ValidateSpec) *PageBuilder {
	return p.Task(domain.Task{ID: id, Kind: domain.TaskValidate, Spec: spec})
}

// Download adds a download task. An empty dest downloads to a temporary file.
func (p *PageBuilder) Download(id, source, dest string) *PageBuilder {
	return p.Task(domain.Task{ID: id, Kind: domain.TaskDownload, Spec: domain.DownloadSpec{Source: source, Dest: dest}})
}

// Extract adds an extract task.
func (p *PageBuilder) Extract(id string, spec domain.ExtractSpec) *PageBuilder {
	return p.Task(domain.Task{ID: id, Kind: domain.TaskExtract, Spec: spec})
}

// Call adds a task invoking a registry function.
func (p *PageBuilder) Call(id, function string) *PageBuilder {
	return p.Task(domain.Task{ID: id, Kind: domain.TaskCustom, Spec: domain.CustomSpec{Function: function}})
}

// Persist adds a task saving keys to the settings file.
func (p *PageBuilder) Persist(id string, keys ...string) *PageBuilder {
	return p.Task(domain.Task{ID: id, Kind: domain.TaskPersist, Spec: domain.PersistSpec{Keys: keys}})
}

// Task adds a prebuilt task.
func (p *PageBuilder) Task(t domain.Task) *PageBuilder {
	p.page.Tasks = append(p.page.Tasks, t)
	p.last = "task"
	return p
}

// Async makes the last task asynchronous.
func (p *PageBuilder) Async() *PageBuilder {
	if t := p.lastTask(); t != nil {
		t.Notification = domain.NotifyAsync
	}
	return p
}

// OnSubmit fires the last task on advance instead of on entry.
func (p *PageBuilder) OnSubmit() *PageBuilder {
	if t := p.lastTask(); t != nil {
		t.Trigger = domain.TriggerOnSubmit
	}
	return p
}

// Writes declares the keys the last task writes.
func (p *PageBuilder) Writes(keys ...string) *PageBuilder {
	if t := p.lastTask(); t != nil {
		t.Writes = append(t.Writes, keys...)
	}
	return p
}

// Required marks the last element or task as required.
func (p *PageBuilder) Required() *PageBuilder {
	switch p.last {
	case "element":
		p.lastElement().Required = true
	case "task":
		p.lastTask().Required = true
	}
	return p
}

// Go sets the explicit successor of a linear page.
func (p *PageBuilder) Go(target string) *PageBuilder {
	p.page.Next = target
	return p
}

// Branch makes the page a branch on key. Add targets with Case.
func (p *PageBuilder) Branch(key string) *PageBuilder {
	p.page.Kind = domain.PageBranch
	if p.page.Branch == nil {
		p.page.Branch = &domain.Branch{Key: key, Cases: map[string]string{}}
	}
	p.page.Branch.Key = key
	for i, el := range p.page.Elements {
		if el.Type == domain.ElementBranchSelector {
			p.page.Elements[i].BoundKey = key
		}
	}
	return p
}

// Case routes the branch value to target.
func (p *PageBuilder) Case(value, target string) *PageBuilder {
	if p.page.Branch == nil {
		p.page.Kind = domain.PageBranch
		p.page.Branch = &domain.Branch{Cases: map[string]string{}}
	}
	p.page.Branch.Cases[value] = target
	return p
}

// SkipIf skips the page when cond holds on entry.
func (p *PageBuilder) SkipIf(cond string) *PageBuilder {
	p.page.SkipIf = cond
	return p
}

// Settings loads persisted keys into the store on entry.
func (p *PageBuilder) Settings(keys ...string) *PageBuilder {
	p.page.Settings = append(p.page.Settings, keys...)
	return p
}

// Terminal marks the page as the end of the flow.
func (p *PageBuilder) Terminal() *PageBuilder {
	p.page.Kind = domain.PageTerminal
	p.page.Branch = nil
	p.page.Next = ""
	return p
}

// Build returns the underlying domain.Page.
// This is primarily used by the Builder, but exposed for advanced usage.
func (p *PageBuilder) Build() domain.Page {
	return p.page
}

func (p *PageBuilder) lastElement() *domain.Element {
	if len(p.page.Elements) == 0 {
		return nil
	}
	return &p.page.Elements[len(p.page.Elements)-1]
}

func (p *PageBuilder) lastTask() *domain.Task {
	if len(p.page.Tasks) == 0 {
		return nil
	}
	return &p.page.Tasks[len(p.page.Tasks)-1]
}
